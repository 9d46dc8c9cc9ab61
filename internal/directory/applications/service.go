// Package applications accepts business owner submissions. Approval and
// rejection live in the promotion package.
package applications

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"trustdir/internal/directory/models"
	id "trustdir/pkg/domain"
	dErrors "trustdir/pkg/domain-errors"
	"trustdir/pkg/platform/sentinel"
	"trustdir/pkg/requestcontext"
)

type Store interface {
	CreateApplication(ctx context.Context, a *models.Application) error
	FindApplicationByID(ctx context.Context, appID id.ApplicationID) (*models.Application, error)
}

type Service struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("application store is required")
	}
	svc := &Service{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Submit stores a pending Application with canonical identity fields.
func (s *Service) Submit(ctx context.Context, req *models.SubmitApplicationRequest) (*models.Application, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	app := &models.Application{
		ID:             id.NewApplicationID(),
		Identity:       req.Canonical(),
		Type:           req.Type,
		Address:        req.Address,
		City:           req.City,
		District:       req.District,
		Description:    req.Description,
		SubmitterName:  req.SubmitterName,
		SubmitterEmail: req.SubmitterEmail,
		SubmitterPhone: req.SubmitterPhone,
		SubmitterIP:    requestcontext.ClientIP(ctx),
		Status:         models.ApplicationStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateApplication(ctx, app); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to submit application")
	}
	s.logger.InfoContext(ctx, "application submitted",
		"application_id", app.ID.String(),
		"handle", app.Handle,
	)
	return app, nil
}

func (s *Service) Get(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	app, err := s.store.FindApplicationByID(ctx, appID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "application not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load application")
	}
	return app, nil
}
