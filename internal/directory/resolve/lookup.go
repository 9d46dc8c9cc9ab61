package resolve

import (
	"strings"

	"trustdir/internal/directory/predicate"
	"trustdir/internal/identity/canonical"
	"trustdir/internal/identity/classify"
)

// Lookup builds the OR-set of identity conditions for a classified query.
// Every condition compares canonical values, so a record stored through the
// normalization pass matches however the caller formatted the query.
// When raw carries at least predicate.MinDigits digits, a phone suffix
// condition over the last canonical.PhoneSuffixLen digits is added.
func Lookup(c classify.Result, raw string) predicate.Predicate {
	v := c.CanonicalValue
	var conds []predicate.Predicate

	switch c.Type {
	case classify.TypeInstagramURL, classify.TypeInstagramUsername:
		conds = append(conds,
			predicate.Equals(predicate.FieldHandle, v),
			predicate.Equals(predicate.FieldProfileURL, canonical.ProfileURL(v)),
			predicate.Equals(predicate.FieldName, v),
		)
		conds = appendSlug(conds, v)
		if strings.Contains(v, ".") {
			conds = append(conds, predicate.Equals(predicate.FieldWebsite, canonical.Host(v)))
		}
	case classify.TypeWebsite:
		conds = append(conds,
			predicate.Equals(predicate.FieldWebsite, v),
			predicate.Equals(predicate.FieldName, v),
		)
	case classify.TypePhone:
		conds = append(conds, predicate.Equals(predicate.FieldPhone, v))
	default:
		conds = append(conds,
			predicate.Equals(predicate.FieldName, v),
			predicate.Equals(predicate.FieldHandle, canonical.Handle(v)),
		)
		conds = appendSlug(conds, v)
	}

	if suffix := canonical.PhoneSuffix(raw); len(suffix) >= predicate.MinDigits {
		conds = append(conds, predicate.DigitsSuffix(predicate.FieldPhone, suffix))
	}
	return predicate.Or(conds...)
}

// appendSlug adds a slug condition unless v has nothing sluggable, in which
// case Slug would return the shared fallback token.
func appendSlug(conds []predicate.Predicate, v string) []predicate.Predicate {
	if slug := canonical.Slug(v); slug != canonical.FallbackSlug || strings.EqualFold(v, canonical.FallbackSlug) {
		conds = append(conds, predicate.Equals(predicate.FieldSlug, slug))
	}
	return conds
}
