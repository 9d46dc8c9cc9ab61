package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trustdir/internal/device"
	"trustdir/internal/platform/metrics"
	"trustdir/internal/platform/middleware"
	"trustdir/pkg/platform/httputil"
	"trustdir/pkg/platform/middleware/metadata"
	request "trustdir/pkg/platform/middleware/request"
	"trustdir/pkg/platform/middleware/requesttime"
)

// Registrar mounts a module's routes.
type Registrar interface {
	Register(r chi.Router)
}

// CheckFunc reports whether a dependency is reachable.
type CheckFunc func(ctx context.Context) error

// Deps is what the shared middleware chain and the ops endpoints need.
type Deps struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Devices        *device.Service
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
	Checks         map[string]CheckFunc
	// RateLimit, when set, wraps every module route.
	RateLimit func(http.Handler) http.Handler
}

// NewRouter builds the root router: the shared middleware chain, /healthz,
// /metrics and every module's routes.
func NewRouter(deps Deps, modules ...Registrar) http.Handler {
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = 30 * time.Second
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(middleware.Recovery(deps.Logger, deps.Metrics))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.LatencyMiddleware(deps.Metrics))

	r.Get("/healthz", healthz(deps.Checks))
	r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(deps.RequestTimeout))
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit)
		}
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.Fingerprint(deps.Devices))
		for _, m := range modules {
			m.Register(r)
		}
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthz(checks map[string]CheckFunc) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: map[string]string{}}
		status := http.StatusOK
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
