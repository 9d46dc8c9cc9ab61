package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics provides observability for the directory core.
// Every method is safe on a nil receiver so services can run without metrics.
type Metrics struct {
	ResolveTotal        *prometheus.CounterVec
	ResolveDuration     prometheus.Histogram
	IntegrityViolations prometheus.Counter
	SearchDuration      prometheus.Histogram
	CacheLookups        *prometheus.CounterVec
	Promotions          *prometheus.CounterVec
	PromotionDuration   prometheus.Histogram
	SlugRetries         prometheus.Counter
	SupportTotal        *prometheus.CounterVec
	Escalations         prometheus.Counter
	PublishFailures     prometheus.Counter
}

// New registers the directory metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		ResolveTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trustdir_resolve_total",
			Help: "Resolve calls by outcome status",
		}, []string{"status"}),
		ResolveDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "trustdir_resolve_duration_seconds",
			Help:    "Duration of Resolve operations",
			Buckets: latencyBuckets,
		}),
		IntegrityViolations: f.NewCounter(prometheus.CounterOpts{
			Name: "trustdir_integrity_violations_total",
			Help: "Queries that matched both a verified business and a blacklist entry",
		}),
		SearchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "trustdir_search_duration_seconds",
			Help:    "Duration of directory searches",
			Buckets: latencyBuckets,
		}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trustdir_cache_lookups_total",
			Help: "Result cache lookups by operation and result",
		}, []string{"operation", "result"}),
		Promotions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trustdir_promotions_total",
			Help: "Application approvals by outcome",
		}, []string{"outcome"}),
		PromotionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "trustdir_promotion_duration_seconds",
			Help:    "Duration of Approve operations including retries",
			Buckets: latencyBuckets,
		}),
		SlugRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "trustdir_slug_fallback_retries_total",
			Help: "Business creations retried with a fallback slug after a uniqueness violation",
		}),
		SupportTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trustdir_report_support_total",
			Help: "AddSupport calls by whether the counter moved",
		}, []string{"updated"}),
		Escalations: f.NewCounter(prometheus.CounterOpts{
			Name: "trustdir_report_escalations_total",
			Help: "Reports escalated to the blacklist",
		}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "trustdir_event_publish_failures_total",
			Help: "Domain events that could not be published after commit",
		}),
	}
}

// ObserveResolve records a finished resolve with its status.
func (m *Metrics) ObserveResolve(status string, start time.Time) {
	if m == nil {
		return
	}
	m.ResolveTotal.WithLabelValues(status).Inc()
	m.ResolveDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementIntegrityViolation() {
	if m == nil {
		return
	}
	m.IntegrityViolations.Inc()
}

func (m *Metrics) ObserveSearch(start time.Time) {
	if m == nil {
		return
	}
	m.SearchDuration.Observe(time.Since(start).Seconds())
}

// RecordCacheLookup records hit, miss or error for an operation's cache.
func (m *Metrics) RecordCacheLookup(operation, result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(operation, result).Inc()
}

// ObservePromotion records an approval outcome (created, updated,
// already_approved, failed) and its duration.
func (m *Metrics) ObservePromotion(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Promotions.WithLabelValues(outcome).Inc()
	m.PromotionDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementSlugRetry() {
	if m == nil {
		return
	}
	m.SlugRetries.Inc()
}

func (m *Metrics) RecordSupport(updated bool) {
	if m == nil {
		return
	}
	label := "false"
	if updated {
		label = "true"
	}
	m.SupportTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) IncrementEscalation() {
	if m == nil {
		return
	}
	m.Escalations.Inc()
}

func (m *Metrics) IncrementPublishFailure() {
	if m == nil {
		return
	}
	m.PublishFailures.Inc()
}
