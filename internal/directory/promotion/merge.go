package promotion

import (
	"time"

	"trustdir/internal/directory/models"
	"trustdir/internal/identity/canonical"
	id "trustdir/pkg/domain"
)

// newBusiness builds the verified Business for an application.
func newBusiness(app *models.Application, slug string, now time.Time) *models.Business {
	appID := app.ID
	return &models.Business{
		ID:            id.NewBusinessID(),
		Identity:      canonical.Normalize(app.Identity),
		Slug:          slug,
		Type:          app.Type,
		Address:       app.Address,
		City:          app.City,
		District:      app.District,
		Description:   app.Description,
		Verified:      true,
		Status:        models.BusinessStatusApproved,
		ApplicationID: &appID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// merge copies every populated application field onto b. Empty
// application fields never clear a populated business field. The slug
// is left alone.
func merge(b *models.Business, app *models.Application, now time.Time) {
	ident := canonical.Normalize(app.Identity)
	set(&b.Name, ident.Name)
	set(&b.Handle, ident.Handle)
	set(&b.ProfileURL, ident.ProfileURL)
	set(&b.Website, ident.Website)
	set(&b.Phone, ident.Phone)
	set(&b.Type, app.Type)
	set(&b.Address, app.Address)
	set(&b.City, app.City)
	set(&b.District, app.District)
	set(&b.Description, app.Description)

	if b.ApplicationID == nil {
		appID := app.ID
		b.ApplicationID = &appID
	}
	b.Verified = true
	b.Status = models.BusinessStatusApproved
	b.UpdatedAt = now
}

func set(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
