package models

import (
	"trustdir/internal/directory/predicate"
	"trustdir/internal/identity/canonical"
)

// BusinessQuery is a filtered, ordered, bounded business listing.
// An empty Status matches every status.
type BusinessQuery struct {
	Filter predicate.Predicate
	Status BusinessStatus
	Order  Order
	Limit  int
}

// BlacklistQuery is a filtered, bounded blacklist lookup.
type BlacklistQuery struct {
	Filter predicate.Predicate
	Limit  int
}

// SharedIdentityFilter matches records holding the same canonical phone or
// handle as ident. ok is false when ident carries neither.
func SharedIdentityFilter(ident canonical.Identity) (p predicate.Predicate, ok bool) {
	var conds []predicate.Predicate
	if ident.Phone != "" {
		conds = append(conds, predicate.Equals(predicate.FieldPhone, ident.Phone))
	}
	if ident.Handle != "" {
		conds = append(conds, predicate.Equals(predicate.FieldHandle, ident.Handle))
	}
	if len(conds) == 0 {
		return predicate.Predicate{}, false
	}
	return predicate.Or(conds...), true
}
