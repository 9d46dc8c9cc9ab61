// Package promotion turns pending Applications into directory Businesses.
//
// Approve is idempotent and safe under concurrent calls for the same
// application: every read and write runs in one unit of work, the
// application row is locked for its duration, and the businesses slug
// unique index settles races between different applications.
package promotion

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"trustdir/internal/directory/metrics"
	"trustdir/internal/directory/models"
	"trustdir/internal/identity/canonical"
	id "trustdir/pkg/domain"
	dErrors "trustdir/pkg/domain-errors"
	"trustdir/pkg/platform/events"
	"trustdir/pkg/platform/sentinel"
	"trustdir/pkg/requestcontext"
)

var tracer = otel.Tracer("trustdir/directory/promotion")

// Store is the persistence the workflow needs. Inside RunInTx every call
// must go through the transaction carried by ctx.
type Store interface {
	FindApplicationForUpdate(ctx context.Context, appID id.ApplicationID) (*models.Application, error)
	UpdateApplication(ctx context.Context, app *models.Application) error
	FindBusinessByID(ctx context.Context, businessID id.BusinessID) (*models.Business, error)
	FindBusinessBySlug(ctx context.Context, slug string) (*models.Business, error)
	FindBusinessByHandle(ctx context.Context, handle string) (*models.Business, error)
	FindBusinessByPhone(ctx context.Context, phone string) (*models.Business, error)
	ListSlugs(ctx context.Context, base string) ([]string, error)
	CreateBusiness(ctx context.Context, b *models.Business) error
	UpdateBusiness(ctx context.Context, b *models.Business) error
	FindBlacklist(ctx context.Context, q models.BlacklistQuery) ([]*models.Blacklist, error)
}

// UnitOfWork commits all writes made by fn or none of them.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Publisher receives domain events after commit.
type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// Outcome reports what Approve did.
type Outcome struct {
	Business        *models.Business `json:"business"`
	Created         bool             `json:"created"`
	Updated         bool             `json:"updated"`
	AlreadyApproved bool             `json:"already_approved"`
}

func (o *Outcome) label() string {
	switch {
	case o.AlreadyApproved:
		return "already_approved"
	case o.Created:
		return "created"
	default:
		return "updated"
	}
}

type Service struct {
	store     Store
	tx        UnitOfWork
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func New(store Store, tx UnitOfWork, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("promotion store is required")
	}
	if tx == nil {
		return nil, errors.New("unit of work is required")
	}
	svc := &Service{
		store:  store,
		tx:     tx,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Approve promotes a pending application into a Business exactly once.
// Approving an already approved application returns its Business with no
// writes. Any failure leaves the application in its prior state.
func (s *Service) Approve(ctx context.Context, appID id.ApplicationID) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "promotion.Approve",
		trace.WithAttributes(attribute.String("application_id", appID.String())),
	)
	defer span.End()
	start := time.Now()

	var out *Outcome
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		out = nil
		o, err := s.approveInTx(ctx, appID)
		if err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		s.metrics.ObservePromotion("failed", start)
		span.RecordError(err)
		span.SetStatus(codes.Error, "approve failed")
		return nil, translate(err, "failed to approve application")
	}

	s.metrics.ObservePromotion(out.label(), start)
	span.SetAttributes(
		attribute.String("business_id", out.Business.ID.String()),
		attribute.String("outcome", out.label()),
	)
	if !out.AlreadyApproved {
		s.logger.InfoContext(ctx, "application approved",
			"application_id", appID.String(),
			"business_id", out.Business.ID.String(),
			"slug", out.Business.Slug,
			"created", out.Created,
		)
		s.publish(ctx, events.New(ctx, events.TypeBusinessPromoted, out.Business.ID.String(), out.Business))
	}
	return out, nil
}

func (s *Service) approveInTx(ctx context.Context, appID id.ApplicationID) (*Outcome, error) {
	app, err := s.store.FindApplicationForUpdate(ctx, appID)
	if err != nil {
		return nil, err
	}

	if app.IsApproved() {
		b, err := s.store.FindBusinessByID(ctx, *app.BusinessID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "approved application references a missing business")
		}
		if err != nil {
			return nil, err
		}
		return &Outcome{Business: b, AlreadyApproved: true}, nil
	}
	if err := app.CanApprove(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	out := &Outcome{}

	candidate, err := s.findCandidate(ctx, app)
	if err != nil {
		return nil, err
	}
	if candidate != nil {
		merge(candidate, app, now)
		if err := s.ensureNotBlacklisted(ctx, candidate.Identity); err != nil {
			return nil, err
		}
		if err := s.store.UpdateBusiness(ctx, candidate); err != nil {
			return nil, err
		}
		out.Business, out.Updated = candidate, true
	} else {
		if err := s.ensureNotBlacklisted(ctx, canonical.Normalize(app.Identity)); err != nil {
			return nil, err
		}
		b, err := s.createWithUniqueSlug(ctx, app, now)
		if err != nil {
			return nil, err
		}
		out.Business, out.Created = b, true
	}

	app.ApplyApproval(out.Business.ID, now)
	if err := s.store.UpdateApplication(ctx, app); err != nil {
		return nil, err
	}
	return out, nil
}

// ensureNotBlacklisted fails with a conflict when a Blacklist entry holds
// the canonical phone or handle the promoted Business would carry.
func (s *Service) ensureNotBlacklisted(ctx context.Context, ident canonical.Identity) error {
	filter, ok := models.SharedIdentityFilter(ident)
	if !ok {
		return nil
	}
	entries, err := s.store.FindBlacklist(ctx, models.BlacklistQuery{Filter: filter, Limit: 1})
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		s.logger.WarnContext(ctx, "application matches a blacklist entry",
			"blacklist_id", entries[0].ID.String(),
		)
		return dErrors.New(dErrors.CodeConflict, "identity is blacklisted")
	}
	return nil
}

// findCandidate looks for an existing Business by base slug, then handle,
// then phone. Businesses already promoted from another application are
// never merged into.
func (s *Service) findCandidate(ctx context.Context, app *models.Application) (*models.Business, error) {
	lookups := []struct {
		value string
		find  func(context.Context, string) (*models.Business, error)
	}{
		{BaseSlug(app), s.store.FindBusinessBySlug},
		{app.Handle, s.store.FindBusinessByHandle},
		{app.Phone, s.store.FindBusinessByPhone},
	}
	for _, l := range lookups {
		if l.value == "" {
			continue
		}
		b, err := l.find(ctx, l.value)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if b.LinkedElsewhere(app.ID) {
			continue
		}
		return b, nil
	}
	return nil, nil
}

// createWithUniqueSlug inserts a new Business under the next free slug.
// If a concurrent approval took that slug first, it retries exactly once
// with a fallback slug.
func (s *Service) createWithUniqueSlug(ctx context.Context, app *models.Application, now time.Time) (*models.Business, error) {
	base := BaseSlug(app)
	existing, err := s.store.ListSlugs(ctx, base)
	if err != nil {
		return nil, err
	}

	b := newBusiness(app, NextSlug(base, existing), now)
	err = s.store.CreateBusiness(ctx, b)
	if !errors.Is(err, sentinel.ErrAlreadyUsed) {
		return b, err
	}

	s.metrics.IncrementSlugRetry()
	s.logger.WarnContext(ctx, "slug taken concurrently, retrying with fallback",
		"application_id", app.ID.String(),
		"slug", b.Slug,
	)
	b.Slug = FallbackSlug(base, now)
	if err := s.store.CreateBusiness(ctx, b); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "business slug already taken")
		}
		return nil, err
	}
	return b, nil
}

// Reject moves a pending application to rejected. Rejecting an already
// rejected application is a no-op; rejecting an approved one is a conflict.
func (s *Service) Reject(ctx context.Context, appID id.ApplicationID, reason string) (*models.Application, error) {
	ctx, span := tracer.Start(ctx, "promotion.Reject",
		trace.WithAttributes(attribute.String("application_id", appID.String())),
	)
	defer span.End()

	var app *models.Application
	changed := false
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		changed = false
		a, err := s.store.FindApplicationForUpdate(ctx, appID)
		if err != nil {
			return err
		}
		app = a
		if a.Status == models.ApplicationStatusRejected {
			return nil
		}
		if err := a.CanReject(); err != nil {
			return err
		}
		a.ApplyRejection(reason, requestcontext.Now(ctx))
		if err := s.store.UpdateApplication(ctx, a); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reject failed")
		return nil, translate(err, "failed to reject application")
	}

	if changed {
		s.logger.InfoContext(ctx, "application rejected", "application_id", appID.String())
		s.publish(ctx, events.New(ctx, events.TypeApplicationRejected, appID.String(), app))
	}
	return app, nil
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.metrics.IncrementPublishFailure()
		s.logger.ErrorContext(ctx, "failed to publish event",
			"event_type", string(e.Type),
			"aggregate_id", e.AggregateID,
			"error", err,
		)
	}
}

// translate maps store sentinels to coded errors. Coded errors pass through.
func translate(err error, msg string) error {
	var coded *dErrors.Error
	switch {
	case errors.As(err, &coded):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "application not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed), errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "concurrent approval conflict")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
