package models

import (
	"strings"
	"time"

	"trustdir/internal/directory/predicate"
	"trustdir/internal/identity/canonical"
	id "trustdir/pkg/domain"
)

// Business is the canonical public directory record.
//
// Invariants:
//   - Slug is non-empty and globally unique among businesses
//   - At most one Business carries a given ApplicationID
//   - Identity fields are stored in canonical form (see canonical.Normalize)
//   - A canonical phone or handle present here never resolves to a Blacklist
type Business struct {
	ID id.BusinessID `json:"id"`
	canonical.Identity
	Slug           string            `json:"slug"`
	Type           string            `json:"type,omitempty"`
	Address        string            `json:"address,omitempty"`
	City           string            `json:"city,omitempty"`
	District       string            `json:"district,omitempty"`
	Description    string            `json:"description,omitempty"`
	Summary        string            `json:"summary,omitempty"`
	Features       []string          `json:"features,omitempty"`
	Verified       bool              `json:"verified"`
	Status         BusinessStatus    `json:"status"`
	Rating         float64           `json:"rating,omitempty"`
	ExternalRating float64           `json:"external_rating,omitempty"`
	ReviewCount    int               `json:"review_count,omitempty"`
	ApplicationID  *id.ApplicationID `json:"application_id,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Value implements predicate.Record.
func (b *Business) Value(f predicate.Field) string {
	switch f {
	case predicate.FieldName:
		return b.Name
	case predicate.FieldType:
		return b.Type
	case predicate.FieldSlug:
		return b.Slug
	case predicate.FieldHandle:
		return b.Handle
	case predicate.FieldProfileURL:
		return b.ProfileURL
	case predicate.FieldWebsite:
		return b.Website
	case predicate.FieldPhone:
		return b.Phone
	case predicate.FieldAddress:
		return b.Address
	case predicate.FieldCity:
		return b.City
	case predicate.FieldDistrict:
		return b.District
	case predicate.FieldDescription:
		return b.Description
	case predicate.FieldSummary:
		return b.Summary
	case predicate.FieldFeatures:
		return strings.Join(b.Features, " ")
	default:
		return ""
	}
}

// LinkedTo reports whether b was promoted from the given application.
func (b *Business) LinkedTo(appID id.ApplicationID) bool {
	return b.ApplicationID != nil && *b.ApplicationID == appID
}

// LinkedElsewhere reports whether b is linked to an application other than appID.
func (b *Business) LinkedElsewhere(appID id.ApplicationID) bool {
	return b.ApplicationID != nil && *b.ApplicationID != appID
}

// Clone returns a deep copy.
func (b *Business) Clone() *Business {
	if b == nil {
		return nil
	}
	c := *b
	c.Features = append([]string(nil), b.Features...)
	if b.ApplicationID != nil {
		appID := *b.ApplicationID
		c.ApplicationID = &appID
	}
	return &c
}
