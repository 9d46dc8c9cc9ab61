// Package reports manages public Reports, their endorsement counter and
// escalation to the Blacklist.
package reports

import (
	"context"
	"errors"
	"io"
	"log/slog"

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

var tracer = otel.Tracer("trustdir/directory/reports")

// Store is the persistence the report lifecycle needs.
type Store interface {
	CreateReport(ctx context.Context, r *models.Report) error
	FindReportByID(ctx context.Context, reportID id.ReportID) (*models.Report, error)
	UpdateReport(ctx context.Context, r *models.Report) error
	DeleteReport(ctx context.Context, reportID id.ReportID) error
	// AddSupporter appends fingerprint and increments the count in one
	// atomic conditional write. It reports whether the write happened and
	// the count after it.
	AddSupporter(ctx context.Context, reportID id.ReportID, fingerprint string) (bool, int, error)
	CreateBlacklist(ctx context.Context, b *models.Blacklist) error
	FindBusinesses(ctx context.Context, q models.BusinessQuery) ([]*models.Business, error)
}

type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// SupportResult is the outcome of AddSupport.
type SupportResult struct {
	Updated      bool `json:"updated"`
	SupportCount int  `json:"support_count"`
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
		return nil, errors.New("report store is required")
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

// Create files a new open Report. The reporter IP comes from ctx.
func (s *Service) Create(ctx context.Context, req *models.CreateReportRequest) (*models.Report, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	r := &models.Report{
		ID:          id.NewReportID(),
		Identity:    req.Canonical(),
		Description: req.Description,
		ReporterIP:  requestcontext.ClientIP(ctx),
		Consent:     req.Consent,
		Status:      models.ReportStatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateReport(ctx, r); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create report")
	}
	s.logger.InfoContext(ctx, "report created", "report_id", r.ID.String())
	return r, nil
}

func (s *Service) Get(ctx context.Context, reportID id.ReportID) (*models.Report, error) {
	r, err := s.store.FindReportByID(ctx, reportID)
	if err != nil {
		return nil, translate(err, "failed to load report")
	}
	return r, nil
}

// Update applies an admin edit. Identity fields are normalized again and
// the supporter set is never touched.
func (s *Service) Update(ctx context.Context, reportID id.ReportID, req *models.UpdateReportRequest) (*models.Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var out *models.Report
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		r, err := s.store.FindReportByID(ctx, reportID)
		if err != nil {
			return err
		}
		req.Apply(r)
		if r.Identity.IsEmpty() {
			return dErrors.New(dErrors.CodeValidation, "at least one identity field is required")
		}
		r.UpdatedAt = requestcontext.Now(ctx)
		if err := s.store.UpdateReport(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, translate(err, "failed to update report")
	}
	return out, nil
}

// AddSupport records one endorsement per fingerprint. An empty fingerprint
// changes nothing and returns the current count.
func (s *Service) AddSupport(ctx context.Context, reportID id.ReportID, fingerprint string) (*SupportResult, error) {
	ctx, span := tracer.Start(ctx, "reports.AddSupport",
		trace.WithAttributes(attribute.String("report_id", reportID.String())),
	)
	defer span.End()

	if fingerprint == "" {
		r, err := s.store.FindReportByID(ctx, reportID)
		if err != nil {
			return nil, translate(err, "failed to load report")
		}
		s.metrics.RecordSupport(false)
		return &SupportResult{Updated: false, SupportCount: r.SupportCount}, nil
	}

	updated, count, err := s.store.AddSupporter(ctx, reportID, fingerprint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "add support failed")
		return nil, translate(err, "failed to add support")
	}
	s.metrics.RecordSupport(updated)
	span.SetAttributes(attribute.Bool("updated", updated), attribute.Int("support_count", count))
	return &SupportResult{Updated: updated, SupportCount: count}, nil
}

// Escalate copies the report's normalized identity into a new Blacklist
// entry and deletes the report, both in one unit of work.
func (s *Service) Escalate(ctx context.Context, reportID id.ReportID) (*models.Blacklist, error) {
	ctx, span := tracer.Start(ctx, "reports.Escalate",
		trace.WithAttributes(attribute.String("report_id", reportID.String())),
	)
	defer span.End()

	var entry *models.Blacklist
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		r, err := s.store.FindReportByID(ctx, reportID)
		if err != nil {
			return err
		}
		entry = models.NewBlacklistFromReport(id.NewBlacklistID(), r, requestcontext.Now(ctx))
		if err := s.ensureNotListed(ctx, entry.Identity); err != nil {
			return err
		}
		if err := s.store.CreateBlacklist(ctx, entry); err != nil {
			return err
		}
		return s.store.DeleteReport(ctx, reportID)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "escalate failed")
		return nil, translate(err, "failed to escalate report")
	}

	s.metrics.IncrementEscalation()
	s.logger.InfoContext(ctx, "report escalated to blacklist",
		"report_id", reportID.String(),
		"blacklist_id", entry.ID.String(),
		"actor", requestcontext.Actor(ctx),
	)
	s.publish(ctx, events.New(ctx, events.TypeReportEscalated, entry.ID.String(), entry))
	return entry, nil
}

// CreateBlacklist inserts an entry directly, without a Report. An entry
// sharing a phone or handle with an approved Business is a conflict.
func (s *Service) CreateBlacklist(ctx context.Context, req *models.CreateBlacklistRequest) (*models.Blacklist, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	entry := &models.Blacklist{
		ID:          id.NewBlacklistID(),
		Identity:    req.Canonical(),
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.ensureNotListed(ctx, entry.Identity); err != nil {
			return err
		}
		return s.store.CreateBlacklist(ctx, entry)
	})
	if err != nil {
		return nil, translate(err, "failed to create blacklist entry")
	}
	s.logger.InfoContext(ctx, "blacklist entry created",
		"blacklist_id", entry.ID.String(),
		"actor", requestcontext.Actor(ctx),
	)
	return entry, nil
}

// ensureNotListed fails with a conflict when an approved Business already
// holds the canonical phone or handle of ident.
func (s *Service) ensureNotListed(ctx context.Context, ident canonical.Identity) error {
	filter, ok := models.SharedIdentityFilter(ident)
	if !ok {
		return nil
	}
	found, err := s.store.FindBusinesses(ctx, models.BusinessQuery{
		Filter: filter,
		Status: models.BusinessStatusApproved,
		Limit:  1,
	})
	if err != nil {
		return err
	}
	if len(found) > 0 {
		s.logger.WarnContext(ctx, "blacklist entry matches a listed business",
			"business_id", found[0].ID.String(),
		)
		return dErrors.New(dErrors.CodeConflict, "identity belongs to a listed business")
	}
	return nil
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

func translate(err error, msg string) error {
	var coded *dErrors.Error
	switch {
	case errors.As(err, &coded):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "report not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed), errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
