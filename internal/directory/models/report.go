package models

import (
	"slices"
	"time"

	"trustdir/internal/directory/predicate"
	"trustdir/internal/identity/canonical"
	id "trustdir/pkg/domain"
)

// Report is a public accusation against an identity.
//
// Invariants:
//   - SupportCount == len(Supporters) at all times
//   - Supporters holds each fingerprint at most once
//   - Identity fields are recomputed by canonical.Normalize on every write
type Report struct {
	ID id.ReportID `json:"id"`
	canonical.Identity
	Description  string       `json:"description"`
	ReporterIP   string       `json:"-"`
	Consent      bool         `json:"consent"`
	Status       ReportStatus `json:"status"`
	SupportCount int          `json:"support_count"`
	Supporters   []string     `json:"-"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// HasSupporter reports whether fingerprint already endorsed the report.
func (r *Report) HasSupporter(fingerprint string) bool {
	return slices.Contains(r.Supporters, fingerprint)
}

// AddSupporter appends fingerprint and bumps the count when it is new.
func (r *Report) AddSupporter(fingerprint string) bool {
	if fingerprint == "" || r.HasSupporter(fingerprint) {
		return false
	}
	r.Supporters = append(r.Supporters, fingerprint)
	r.SupportCount = len(r.Supporters)
	return true
}

// Clone returns a deep copy.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	c := *r
	c.Supporters = append([]string(nil), r.Supporters...)
	return &c
}

// Blacklist is a confirmed bad actor. It keeps no link to the Report it
// was escalated from.
type Blacklist struct {
	ID id.BlacklistID `json:"id"`
	canonical.Identity
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewBlacklistFromReport copies the normalized identity of r into a new entry.
func NewBlacklistFromReport(blID id.BlacklistID, r *Report, now time.Time) *Blacklist {
	return &Blacklist{
		ID:          blID,
		Identity:    canonical.Normalize(r.Identity),
		Description: r.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Value implements predicate.Record.
func (b *Blacklist) Value(f predicate.Field) string {
	switch f {
	case predicate.FieldName:
		return b.Name
	case predicate.FieldHandle:
		return b.Handle
	case predicate.FieldProfileURL:
		return b.ProfileURL
	case predicate.FieldWebsite:
		return b.Website
	case predicate.FieldPhone:
		return b.Phone
	case predicate.FieldDescription:
		return b.Description
	default:
		return ""
	}
}

// Clone returns a copy.
func (b *Blacklist) Clone() *Blacklist {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}
