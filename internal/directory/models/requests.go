package models

import (
	"strings"

	"trustdir/internal/identity/canonical"
	dErrors "trustdir/pkg/domain-errors"
)

const (
	maxNameLen        = 200
	maxDescriptionLen = 2000
	maxFieldLen       = 500
)

// IdentityInput is the identity block shared by every write request.
type IdentityInput struct {
	Name       string `json:"name"`
	Handle     string `json:"handle,omitempty"`
	ProfileURL string `json:"profile_url,omitempty"`
	Website    string `json:"website,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// Canonical runs the write-boundary normalization pass.
func (in IdentityInput) Canonical() canonical.Identity {
	return canonical.Normalize(canonical.Identity(in))
}

func (in IdentityInput) validateSize() error {
	if len(in.Name) > maxNameLen {
		return dErrors.New(dErrors.CodeValidation, "name must be 200 characters or less")
	}
	for _, v := range []string{in.Handle, in.ProfileURL, in.Website, in.Phone} {
		if len(v) > maxFieldLen {
			return dErrors.New(dErrors.CodeValidation, "identity fields must be 500 characters or less")
		}
	}
	return nil
}

type SubmitApplicationRequest struct {
	IdentityInput
	Type           string `json:"type,omitempty"`
	Address        string `json:"address,omitempty"`
	City           string `json:"city,omitempty"`
	District       string `json:"district,omitempty"`
	Description    string `json:"description,omitempty"`
	SubmitterName  string `json:"submitter_name,omitempty"`
	SubmitterEmail string `json:"submitter_email,omitempty"`
	SubmitterPhone string `json:"submitter_phone,omitempty"`
}

func (r *SubmitApplicationRequest) Normalize() {
	if r == nil {
		return
	}
	r.Name = canonical.CollapseSpaces(r.Name)
	r.Type = strings.TrimSpace(r.Type)
	r.Address = canonical.CollapseSpaces(r.Address)
	r.City = canonical.CollapseSpaces(r.City)
	r.District = canonical.CollapseSpaces(r.District)
	r.Description = strings.TrimSpace(r.Description)
	r.SubmitterName = canonical.CollapseSpaces(r.SubmitterName)
	r.SubmitterEmail = strings.ToLower(strings.TrimSpace(r.SubmitterEmail))
	r.SubmitterPhone = strings.TrimSpace(r.SubmitterPhone)
}

// Follows validation order: Size -> Required -> Semantic.
func (r *SubmitApplicationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := r.validateSize(); err != nil {
		return err
	}
	if len(r.Description) > maxDescriptionLen {
		return dErrors.New(dErrors.CodeValidation, "description must be 2000 characters or less")
	}

	ident := r.Canonical()
	if ident.Name == "" && ident.Handle == "" {
		return dErrors.New(dErrors.CodeValidation, "name or handle is required")
	}
	if ident.Phone == "" && ident.Handle == "" && ident.Website == "" {
		return dErrors.New(dErrors.CodeValidation, "at least one of phone, handle or website is required")
	}
	if r.SubmitterEmail != "" && !strings.Contains(r.SubmitterEmail, "@") {
		return dErrors.New(dErrors.CodeValidation, "submitter_email is invalid")
	}
	return nil
}

type CreateReportRequest struct {
	IdentityInput
	Description string `json:"description"`
	Consent     bool   `json:"consent"`
}

func (r *CreateReportRequest) Normalize() {
	if r == nil {
		return
	}
	r.Name = canonical.CollapseSpaces(r.Name)
	r.Description = strings.TrimSpace(r.Description)
}

func (r *CreateReportRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := r.validateSize(); err != nil {
		return err
	}
	if len(r.Description) > maxDescriptionLen {
		return dErrors.New(dErrors.CodeValidation, "description must be 2000 characters or less")
	}
	if r.Canonical().IsEmpty() {
		return dErrors.New(dErrors.CodeValidation, "at least one identity field is required")
	}
	if r.Description == "" {
		return dErrors.New(dErrors.CodeValidation, "description is required")
	}
	if !r.Consent {
		return dErrors.New(dErrors.CodeValidation, "consent is required")
	}
	return nil
}

// UpdateReportRequest is a partial update. Nil fields are left unchanged.
type UpdateReportRequest struct {
	Name        *string       `json:"name,omitempty"`
	Handle      *string       `json:"handle,omitempty"`
	ProfileURL  *string       `json:"profile_url,omitempty"`
	Website     *string       `json:"website,omitempty"`
	Phone       *string       `json:"phone,omitempty"`
	Description *string       `json:"description,omitempty"`
	Status      *ReportStatus `json:"status,omitempty"`
}

func (r *UpdateReportRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Description != nil && len(*r.Description) > maxDescriptionLen {
		return dErrors.New(dErrors.CodeValidation, "description must be 2000 characters or less")
	}
	if r.Status != nil && !r.Status.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "status must be one of open, reviewing, closed")
	}
	return nil
}

// Apply copies the set fields onto rep and re-runs normalization.
func (r *UpdateReportRequest) Apply(rep *Report) {
	ident := rep.Identity
	apply(&ident.Name, r.Name)
	apply(&ident.Handle, r.Handle)
	apply(&ident.ProfileURL, r.ProfileURL)
	apply(&ident.Website, r.Website)
	apply(&ident.Phone, r.Phone)
	if r.Handle != nil && r.ProfileURL == nil {
		ident.ProfileURL = ""
	}
	rep.Identity = canonical.Normalize(ident)
	if r.Description != nil {
		rep.Description = strings.TrimSpace(*r.Description)
	}
	if r.Status != nil {
		rep.Status = *r.Status
	}
}

func apply(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

type CreateBlacklistRequest struct {
	IdentityInput
	Description string `json:"description,omitempty"`
}

func (r *CreateBlacklistRequest) Normalize() {
	if r == nil {
		return
	}
	r.Name = canonical.CollapseSpaces(r.Name)
	r.Description = strings.TrimSpace(r.Description)
}

func (r *CreateBlacklistRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := r.validateSize(); err != nil {
		return err
	}
	if !r.Canonical().HasContact() {
		return dErrors.New(dErrors.CodeValidation, "at least one of phone, handle, profile_url or website is required")
	}
	return nil
}
