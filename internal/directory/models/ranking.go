package models

import "cmp"

// Order selects how business listings are ranked.
type Order string

const (
	// OrderDefault ranks verified first, then newest first.
	OrderDefault Order = "default"
	// OrderRating ranks by effective rating, then review count, then OrderDefault.
	OrderRating Order = "rating"
)

// ParseOrder maps "" and unknown values to OrderDefault.
func ParseOrder(s string) Order {
	if Order(s) == OrderRating {
		return OrderRating
	}
	return OrderDefault
}

// EffectiveRating is the internal rating when set, else the external one.
func (b *Business) EffectiveRating() float64 {
	if b.Rating > 0 {
		return b.Rating
	}
	return b.ExternalRating
}

// CompareDefault orders verified before unverified, then newer before older.
func CompareDefault(a, b *Business) int {
	if a.Verified != b.Verified {
		if a.Verified {
			return -1
		}
		return 1
	}
	return b.CreatedAt.Compare(a.CreatedAt)
}

// CompareRating orders by effective rating then review count, non-zero
// values ahead of zero, falling back to CompareDefault.
func CompareRating(a, b *Business) int {
	if c := cmp.Compare(b.EffectiveRating(), a.EffectiveRating()); c != 0 {
		return c
	}
	if c := cmp.Compare(b.ReviewCount, a.ReviewCount); c != 0 {
		return c
	}
	return CompareDefault(a, b)
}

// Comparator returns the comparison function for o.
func (o Order) Comparator() func(a, b *Business) int {
	if o == OrderRating {
		return CompareRating
	}
	return CompareDefault
}
