// Package middleware throttles callers per client address. Checks go to the
// primary store; while the primary keeps failing a circuit breaker routes
// them to an in-memory fallback and the response carries
// X-RateLimit-Status: degraded.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"trustdir/internal/ratelimit/metrics"
	"trustdir/internal/ratelimit/models"
	dErrors "trustdir/pkg/domain-errors"
	"trustdir/pkg/platform/circuit"
	"trustdir/pkg/platform/httputil"
	"trustdir/pkg/requestcontext"
)

// Limiter counts hits against a sliding window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

type Middleware struct {
	primary  Limiter
	fallback Limiter
	breaker  *circuit.Breaker
	limits   map[models.EndpointClass]models.Limit
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// WithFallback sets the limiter used while the breaker is open.
func WithFallback(l Limiter) Option {
	return func(m *Middleware) {
		m.fallback = l
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(m *Middleware) {
		m.breaker = b
	}
}

func WithLimit(class models.EndpointClass, limit models.Limit) Option {
	return func(m *Middleware) {
		m.limits[class] = limit
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

func New(primary Limiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		primary: primary,
		logger:  logger,
		limits: map[models.EndpointClass]models.Limit{
			models.ClassRead:  {RequestsPerWindow: 120, Window: time.Minute},
			models.ClassWrite: {RequestsPerWindow: 20, Window: time.Minute},
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.breaker == nil {
		m.breaker = circuit.New("ratelimit")
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit throttles every request under one class.
func (m *Middleware) RateLimit(class models.EndpointClass) func(http.Handler) http.Handler {
	return m.handler(func(*http.Request) models.EndpointClass { return class })
}

// ByMethod applies the read class to safe methods and the write class to the rest.
func (m *Middleware) ByMethod() func(http.Handler) http.Handler {
	return m.handler(func(r *http.Request) models.EndpointClass {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return models.ClassRead
		}
		return models.ClassWrite
	})
}

func (m *Middleware) handler(classify func(*http.Request) models.EndpointClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			class := classify(r)
			limit, ok := m.limits[class]
			if !ok || limit.RequestsPerWindow <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ip := requestcontext.ClientIP(ctx)
			key := models.NewIPRateLimitKey(ip, class)

			result, degraded, err := m.check(ctx, key, limit)
			if err != nil {
				m.logger.ErrorContext(ctx, "rate limit check failed, allowing request", "error", err, "class", class)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if degraded {
				w.Header().Set("X-RateLimit-Status", "degraded")
			}
			if !result.Allowed {
				m.metrics.IncrementDenied(string(class))
				m.logger.WarnContext(ctx, "rate limit exceeded", "class", class, "client_ip", ip)
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests, retry later"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// check consults the primary store and falls back while the breaker is open.
func (m *Middleware) check(ctx context.Context, key string, limit models.Limit) (*models.RateLimitResult, bool, error) {
	result, err := m.primary.Allow(ctx, key, limit.RequestsPerWindow, limit.Window)
	if err != nil {
		m.metrics.IncrementErrors()
		useFallback, change := m.breaker.RecordFailure()
		if change.Opened {
			m.metrics.SetCircuitOpen(true)
			m.logger.WarnContext(ctx, "rate limit circuit opened", "breaker", m.breaker.Name(), "error", err)
		}
		if !useFallback || m.fallback == nil {
			return nil, false, err
		}
		return m.fromFallback(ctx, key, limit)
	}

	usePrimary, change := m.breaker.RecordSuccess()
	if change.Closed {
		m.metrics.SetCircuitOpen(false)
		m.logger.InfoContext(ctx, "rate limit circuit closed", "breaker", m.breaker.Name())
	}
	if !usePrimary && m.fallback != nil {
		return m.fromFallback(ctx, key, limit)
	}
	return result, false, nil
}

func (m *Middleware) fromFallback(ctx context.Context, key string, limit models.Limit) (*models.RateLimitResult, bool, error) {
	m.metrics.IncrementFallback()
	result, err := m.fallback.Allow(ctx, key, limit.RequestsPerWindow, limit.Window)
	return result, true, err
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}
