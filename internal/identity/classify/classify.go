// Package classify decides which identity type an arbitrary query string is.
//
// Classification is pure: it never touches a store, so the same (query, hint)
// pair always yields the same Result.
package classify

import (
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"

	"trustdir/internal/identity/canonical"
)

// Type is an identity classification.
type Type string

const (
	TypeInstagramURL      Type = "instagram_url"
	TypeInstagramUsername Type = "instagram_username"
	TypeWebsite           Type = "website"
	TypePhone             Type = "phone"
	TypeFreeText          Type = "free_text"
)

// precedence is the auto-detection order. free_text always matches last.
var precedence = []Type{
	TypeInstagramURL,
	TypeInstagramUsername,
	TypeWebsite,
	TypePhone,
}

var (
	instagramURLPattern = regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.|m\.)?(?:instagram\.com|instagr\.am)/([A-Za-z0-9_.]{1,30})/?(?:[?#].*)?$`)
	usernamePattern     = regexp.MustCompile(`^@?[A-Za-z0-9_.]{1,30}$`)
	websitePattern      = regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?((?:[a-z0-9](?:[a-z0-9-]*[a-z0-9])?\.)+[a-z]{2,63})\.?(?::\d+)?(?:[/?#].*)?$`)
	phonePattern        = regexp.MustCompile(`^\+?[0-9\s()\-]+$`)
)

const (
	minPhoneLen = 10
	maxPhoneLen = 20
)

// Result is the outcome of classifying a query.
type Result struct {
	Type            Type                  `json:"type"`
	CanonicalValue  string                `json:"canonical_value"`
	ExtractedHandle string                `json:"extracted_handle,omitempty"`
	Phone           canonical.PhoneResult `json:"-"`
}

// ParseType validates a hint. Unknown values return ok=false.
func ParseType(s string) (Type, bool) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeInstagramURL, TypeInstagramUsername, TypeWebsite, TypePhone, TypeFreeText:
		return t, true
	default:
		return "", false
	}
}

// Classify returns the type and canonical value of query. A hint naming a
// typed pattern that the query matches short-circuits auto-detection; any
// other hint is ignored.
func Classify(query, hint string) Result {
	q := strings.TrimSpace(query)

	if h, ok := ParseType(hint); ok && h != TypeFreeText && matches(h, q) {
		return build(h, q)
	}
	for _, t := range precedence {
		if matches(t, q) {
			return build(t, q)
		}
	}
	return build(TypeFreeText, q)
}

func matches(t Type, q string) bool {
	if q == "" {
		return false
	}
	switch t {
	case TypeInstagramURL:
		return instagramURLPattern.MatchString(q)
	case TypeInstagramUsername:
		return usernamePattern.MatchString(q)
	case TypeWebsite:
		return isWebsite(q)
	case TypePhone:
		return len(q) >= minPhoneLen && len(q) <= maxPhoneLen && phonePattern.MatchString(q)
	default:
		return false
	}
}

func isWebsite(q string) bool {
	m := websitePattern.FindStringSubmatch(q)
	if m == nil {
		return false
	}
	host := strings.ToLower(m[1])
	suffix, icann := publicsuffix.PublicSuffix(host)
	if suffix == host {
		return false
	}
	return icann || strings.Contains(suffix, ".")
}

func build(t Type, q string) Result {
	r := Result{Type: t}
	switch t {
	case TypeInstagramURL:
		m := instagramURLPattern.FindStringSubmatch(q)
		r.ExtractedHandle = canonical.Handle(m[1])
		r.CanonicalValue = r.ExtractedHandle
	case TypeInstagramUsername:
		r.CanonicalValue = canonical.Handle(q)
		r.ExtractedHandle = r.CanonicalValue
	case TypeWebsite:
		r.CanonicalValue = canonical.Host(q)
	case TypePhone:
		r.Phone = canonical.Phone(q, canonical.DefaultRegion)
		r.CanonicalValue = r.Phone.Value
	default:
		r.CanonicalValue = canonical.CollapseSpaces(q)
	}
	return r
}
