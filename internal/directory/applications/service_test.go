package applications

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustdir/internal/directory/models"
	"trustdir/internal/directory/store"
	id "trustdir/pkg/domain"
	dErrors "trustdir/pkg/domain-errors"
	"trustdir/pkg/requestcontext"
)

func newService(t *testing.T) *Service {
	t.Helper()
	svc, err := New(store.NewInMemory())
	require.NoError(t, err)
	return svc
}

func TestSubmit(t *testing.T) {
	ctx := requestcontext.WithClientMetadata(context.Background(), "198.51.100.4", "")

	t.Run("stores a pending canonical application", func(t *testing.T) {
		svc := newService(t)
		app, err := svc.Submit(ctx, &models.SubmitApplicationRequest{
			IdentityInput: models.IdentityInput{
				Name:    " Kule   Sapanca ",
				Handle:  "https://instagram.com/KuleSapanca/",
				Website: "www.kulesapanca.com",
				Phone:   "0543 166 54 54",
			},
			City:           " Sakarya ",
			SubmitterEmail: " Owner@Example.com ",
		})
		require.NoError(t, err)

		assert.Equal(t, models.ApplicationStatusPending, app.Status)
		assert.Equal(t, "Kule Sapanca", app.Name)
		assert.Equal(t, "kulesapanca", app.Handle)
		assert.Equal(t, "kulesapanca.com", app.Website)
		assert.Equal(t, "+905431665454", app.Phone)
		assert.Equal(t, "Sakarya", app.City)
		assert.Equal(t, "owner@example.com", app.SubmitterEmail)
		assert.Equal(t, "198.51.100.4", app.SubmitterIP)
		assert.Nil(t, app.BusinessID)

		got, err := svc.Get(ctx, app.ID)
		require.NoError(t, err)
		assert.Equal(t, app.ID, got.ID)
	})

	tests := []struct {
		name string
		req  *models.SubmitApplicationRequest
	}{
		{"name or handle required", &models.SubmitApplicationRequest{
			IdentityInput: models.IdentityInput{Phone: "05431665454"},
		}},
		{"contact signal required", &models.SubmitApplicationRequest{
			IdentityInput: models.IdentityInput{Name: "Kule Sapanca"},
		}},
		{"invalid email", &models.SubmitApplicationRequest{
			IdentityInput:  models.IdentityInput{Name: "Kule", Phone: "05431665454"},
			SubmitterEmail: "nope",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newService(t).Submit(ctx, tt.req)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "got %v", err)
		})
	}

	t.Run("handle alone satisfies both rules", func(t *testing.T) {
		_, err := newService(t).Submit(ctx, &models.SubmitApplicationRequest{
			IdentityInput: models.IdentityInput{Handle: "@kule"},
		})
		assert.NoError(t, err)
	})
}

func TestGetNotFound(t *testing.T) {
	_, err := newService(t).Get(context.Background(), id.NewApplicationID())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}
