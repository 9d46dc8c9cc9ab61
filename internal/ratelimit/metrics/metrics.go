package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RateLimitDenied       *prometheus.CounterVec
	RateLimitFallback     prometheus.Counter
	RateLimitErrors       prometheus.Counter
	RateLimitCircuitState prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		RateLimitDenied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trustdir_ratelimit_denied_total",
			Help: "Total number of requests rejected by the rate limiter",
		}, []string{"class"}),
		RateLimitFallback: f.NewCounter(prometheus.CounterOpts{
			Name: "trustdir_ratelimit_fallback_total",
			Help: "Total number of checks answered by the in-memory fallback",
		}),
		RateLimitErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "trustdir_ratelimit_store_errors_total",
			Help: "Total number of primary limiter store errors",
		}),
		RateLimitCircuitState: f.NewGauge(prometheus.GaugeOpts{
			Name: "trustdir_ratelimit_circuit_open",
			Help: "1 while the limiter runs on the in-memory fallback",
		}),
	}
}

func (m *Metrics) IncrementDenied(class string) {
	if m == nil {
		return
	}
	m.RateLimitDenied.WithLabelValues(class).Inc()
}

func (m *Metrics) IncrementFallback() {
	if m == nil {
		return
	}
	m.RateLimitFallback.Inc()
}

func (m *Metrics) IncrementErrors() {
	if m == nil {
		return
	}
	m.RateLimitErrors.Inc()
}

func (m *Metrics) SetCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.RateLimitCircuitState.Set(1)
		return
	}
	m.RateLimitCircuitState.Set(0)
}
