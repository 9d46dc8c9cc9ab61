// Package search implements free-text directory search: tokenizing a query
// into a multi-field filter and ranking the matching businesses.
package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"trustdir/internal/directory/cache"
	"trustdir/internal/directory/metrics"
	"trustdir/internal/directory/models"
	dErrors "trustdir/pkg/domain-errors"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Store lists businesses matching a filter.
type Store interface {
	FindBusinesses(ctx context.Context, q models.BusinessQuery) ([]*models.Business, error)
}

// Cache memoizes search results. Errors are treated as misses.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any) error
}

// Query is a search request.
type Query struct {
	Text  string
	Limit int
	Order models.Order
}

// Result is a ranked page of businesses.
type Result struct {
	Items []*models.Business `json:"items"`
	Count int                `json:"count"`
}

type Service struct {
	store   Store
	cache   Cache
	metrics *metrics.Metrics
	logger  *slog.Logger
	group   singleflight.Group
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

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("business store is required")
	}
	svc := &Service{
		store:  store,
		cache:  cache.Noop{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Search returns approved businesses matching q.Text, ranked by q.Order.
func (s *Service) Search(ctx context.Context, q Query) (*Result, error) {
	start := time.Now()
	defer s.metrics.ObserveSearch(start)

	q.Limit = clampLimit(q.Limit)
	if q.Order == "" {
		q.Order = models.OrderDefault
	}
	key := cache.Key("search", string(q.Order), strconv.Itoa(q.Limit), q.Text)

	var cached Result
	if ok, err := s.cache.Get(ctx, key, &cached); err != nil {
		s.metrics.RecordCacheLookup("search", "error")
		s.logger.WarnContext(ctx, "search cache read failed", "error", err)
	} else if ok {
		s.metrics.RecordCacheLookup("search", "hit")
		return &cached, nil
	}
	s.metrics.RecordCacheLookup("search", "miss")

	v, err, _ := s.group.Do(key, func() (any, error) {
		// Shared by every waiter, so one caller leaving must not cancel it.
		ctx := context.WithoutCancel(ctx)
		items, err := s.store.FindBusinesses(ctx, models.BusinessQuery{
			Filter: BuildSearchFilter(q.Text),
			Status: models.BusinessStatusApproved,
			Order:  q.Order,
			Limit:  q.Limit,
		})
		if err != nil {
			return nil, err
		}
		Sort(items, q.Order)
		res := &Result{Items: items, Count: len(items)}
		if err := s.cache.Set(ctx, key, res); err != nil {
			s.logger.WarnContext(ctx, "search cache write failed", "error", err)
		}
		return res, nil
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search directory")
	}
	return v.(*Result), nil
}

// Sort ranks businesses in place. The sort is stable.
func Sort(items []*models.Business, order models.Order) {
	slices.SortStableFunc(items, order.Comparator())
}

// SortDefault ranks verified first, then newest.
func SortDefault(items []*models.Business) { Sort(items, models.OrderDefault) }

// SortByRating ranks by internal rating, external rating, then review count.
func SortByRating(items []*models.Business) { Sort(items, models.OrderRating) }

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
