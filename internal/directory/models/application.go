package models

import (
	"time"

	"trustdir/internal/identity/canonical"
	id "trustdir/pkg/domain"
	dErrors "trustdir/pkg/domain-errors"
)

// Application is a business owner's submission awaiting promotion.
//
// Invariants:
//   - Status transitions: pending -> approved | pending -> rejected only
//   - BusinessID is set exactly once, in the same unit of work that approves it
//   - Identity fields are canonical from the moment of submission
//
// BusinessID is a lookup reference; the Application does not own the Business.
type Application struct {
	ID id.ApplicationID `json:"id"`
	canonical.Identity
	Type            string            `json:"type,omitempty"`
	Address         string            `json:"address,omitempty"`
	City            string            `json:"city,omitempty"`
	District        string            `json:"district,omitempty"`
	Description     string            `json:"description,omitempty"`
	SubmitterName   string            `json:"submitter_name,omitempty"`
	SubmitterEmail  string            `json:"submitter_email,omitempty"`
	SubmitterPhone  string            `json:"submitter_phone,omitempty"`
	SubmitterIP     string            `json:"-"`
	Status          ApplicationStatus `json:"status"`
	BusinessID      *id.BusinessID    `json:"business_id,omitempty"`
	RejectionReason string            `json:"rejection_reason,omitempty"`
	DecidedAt       *time.Time        `json:"decided_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// IsApproved reports whether the application was promoted and linked.
func (a *Application) IsApproved() bool {
	return a.Status == ApplicationStatusApproved && a.BusinessID != nil
}

// CanApprove checks the pending -> approved transition.
func (a *Application) CanApprove() error {
	if !a.Status.CanTransitionTo(ApplicationStatusApproved) {
		return dErrors.New(dErrors.CodeConflict, "application is already "+string(a.Status))
	}
	return nil
}

// ApplyApproval marks the application approved and links it to businessID.
// Call CanApprove first.
func (a *Application) ApplyApproval(businessID id.BusinessID, now time.Time) {
	a.Status = ApplicationStatusApproved
	a.BusinessID = &businessID
	a.DecidedAt = &now
	a.UpdatedAt = now
}

// CanReject checks the pending -> rejected transition.
func (a *Application) CanReject() error {
	if !a.Status.CanTransitionTo(ApplicationStatusRejected) {
		return dErrors.New(dErrors.CodeConflict, "application is already "+string(a.Status))
	}
	return nil
}

// ApplyRejection marks the application rejected. Call CanReject first.
func (a *Application) ApplyRejection(reason string, now time.Time) {
	a.Status = ApplicationStatusRejected
	a.RejectionReason = reason
	a.DecidedAt = &now
	a.UpdatedAt = now
}

// Clone returns a deep copy.
func (a *Application) Clone() *Application {
	if a == nil {
		return nil
	}
	c := *a
	if a.BusinessID != nil {
		bid := *a.BusinessID
		c.BusinessID = &bid
	}
	if a.DecidedAt != nil {
		t := *a.DecidedAt
		c.DecidedAt = &t
	}
	return &c
}
