// Package resolve answers "is this business legitimate?" for a single query.
//
// A query is classified, turned into an OR-set of identity conditions and
// checked against verified Businesses first. Only when nothing verified
// matches is the Blacklist consulted. A verified match always wins; a query
// matching both sets is a data-integrity bug and is alerted, never resolved
// in favour of the blacklist.
package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"trustdir/internal/directory/cache"
	"trustdir/internal/directory/metrics"
	"trustdir/internal/directory/models"
	"trustdir/internal/directory/predicate"
	"trustdir/internal/identity/canonical"
	"trustdir/internal/identity/classify"
	dErrors "trustdir/pkg/domain-errors"
)

var tracer = otel.Tracer("trustdir/directory/resolve")

const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// Status is the outcome of a resolve.
type Status string

const (
	StatusVerified  Status = "verified"
	StatusBlacklist Status = "blacklist"
	StatusNotFound  Status = "not_found"
)

// Store reads both record sets.
type Store interface {
	FindBusinesses(ctx context.Context, q models.BusinessQuery) ([]*models.Business, error)
	FindBlacklist(ctx context.Context, q models.BlacklistQuery) ([]*models.Blacklist, error)
}

// Cache memoizes resolve results. Errors are treated as misses.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any) error
}

// Alerter reports conditions an operator must look at.
type Alerter interface {
	Alert(ctx context.Context, message string, tags map[string]string)
}

// Request is a resolve query. Hint is optional and must name a
// classify.Type to have any effect.
type Request struct {
	Query string
	Hint  string
	Limit int
}

// Result is the resolve outcome. Records holds every verified match with
// the primary first; Blacklisted is set only for StatusBlacklist.
type Result struct {
	Status         Status             `json:"status"`
	Classification classify.Result    `json:"classification"`
	Records        []*models.Business `json:"records,omitempty"`
	Blacklisted    *models.Blacklist  `json:"blacklist,omitempty"`
}

// Record returns the primary matched record, or nil for StatusNotFound.
func (r *Result) Record() any {
	switch r.Status {
	case StatusVerified:
		if len(r.Records) == 0 {
			return nil
		}
		return r.Records[0]
	case StatusBlacklist:
		return r.Blacklisted
	default:
		return nil
	}
}

// MarshalJSON adds the primary record under "record".
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	return json.Marshal(struct {
		plain
		Record any `json:"record,omitempty"`
	}{plain(r), r.Record()})
}

type Service struct {
	store          Store
	cache          Cache
	alerter        Alerter
	metrics        *metrics.Metrics
	logger         *slog.Logger
	integrityProbe bool
	group          singleflight.Group
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

func WithCache(c Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithAlerter(a Alerter) Option {
	return func(s *Service) {
		s.alerter = a
	}
}

// WithIntegrityProbe toggles the blacklist check that runs after a
// verified hit. It is on by default.
func WithIntegrityProbe(enabled bool) Option {
	return func(s *Service) {
		s.integrityProbe = enabled
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("directory store is required")
	}
	svc := &Service{
		store:          store,
		cache:          cache.Noop{},
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		integrityProbe: true,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Resolve classifies req.Query and looks it up in the directory.
func (s *Service) Resolve(ctx context.Context, req Request) (*Result, error) {
	query := canonical.CollapseSpaces(req.Query)
	if query == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "query is required")
	}
	limit := clampLimit(req.Limit)

	ctx, span := tracer.Start(ctx, "resolve.Resolve",
		trace.WithAttributes(attribute.Int("limit", limit)),
	)
	defer span.End()
	start := time.Now()

	c := classify.Classify(query, req.Hint)
	span.SetAttributes(attribute.String("query_type", string(c.Type)))

	// Only the query is free text, and it goes last.
	hint, _ := classify.ParseType(req.Hint)
	key := cache.Key("resolve", string(hint), strconv.Itoa(limit), query)
	var cached Result
	if ok, err := s.cache.Get(ctx, key, &cached); err != nil {
		s.metrics.RecordCacheLookup("resolve", "error")
		s.logger.WarnContext(ctx, "resolve cache read failed", "error", err)
	} else if ok {
		s.metrics.RecordCacheLookup("resolve", "hit")
		s.metrics.ObserveResolve(string(cached.Status), start)
		return &cached, nil
	}
	s.metrics.RecordCacheLookup("resolve", "miss")

	v, err, _ := s.group.Do(key, func() (any, error) {
		// Shared by every waiter, so one caller leaving must not cancel it.
		ctx := context.WithoutCancel(ctx)
		res, err := s.lookup(ctx, c, query, limit)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, key, res); err != nil {
			s.logger.WarnContext(ctx, "resolve cache write failed", "error", err)
		}
		return res, nil
	})
	if err != nil {
		s.metrics.ObserveResolve("error", start)
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve failed")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve query")
	}

	res := v.(*Result)
	s.metrics.ObserveResolve(string(res.Status), start)
	span.SetAttributes(attribute.String("status", string(res.Status)))
	return res, nil
}

func (s *Service) lookup(ctx context.Context, c classify.Result, raw string, limit int) (*Result, error) {
	filter := Lookup(c, raw)
	res := &Result{Status: StatusNotFound, Classification: c}

	businesses, err := s.store.FindBusinesses(ctx, models.BusinessQuery{
		Filter: filter,
		Status: models.BusinessStatusApproved,
		Order:  models.OrderDefault,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}
	if len(businesses) > 0 {
		res.Status = StatusVerified
		res.Records = businesses
		if s.integrityProbe {
			s.probe(ctx, c, filter, businesses[0])
		}
		return res, nil
	}

	entries, err := s.store.FindBlacklist(ctx, models.BlacklistQuery{Filter: filter, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		res.Status = StatusBlacklist
		res.Blacklisted = entries[0]
	}
	return res, nil
}

// probe checks that a verified hit has no blacklist counterpart. Failures
// here never affect the verified result.
func (s *Service) probe(ctx context.Context, c classify.Result, filter predicate.Predicate, verified *models.Business) {
	entries, err := s.store.FindBlacklist(ctx, models.BlacklistQuery{Filter: filter, Limit: 1})
	if err != nil {
		s.logger.WarnContext(ctx, "integrity probe failed", "error", err)
		return
	}
	if len(entries) == 0 {
		return
	}

	s.metrics.IncrementIntegrityViolation()
	s.logger.ErrorContext(ctx, "query matches both a verified business and a blacklist entry",
		"query_type", string(c.Type),
		"canonical_value", c.CanonicalValue,
		"business_id", verified.ID.String(),
		"blacklist_id", entries[0].ID.String(),
	)
	if s.alerter != nil {
		s.alerter.Alert(ctx, "directory integrity violation: verified and blacklisted", map[string]string{
			"query_type":      string(c.Type),
			"canonical_value": c.CanonicalValue,
			"business_id":     verified.ID.String(),
			"blacklist_id":    entries[0].ID.String(),
		})
	}
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	default:
		return n
	}
}
