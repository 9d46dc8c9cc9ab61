package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRequest(http.MethodGet, "/v1/resolve", http.StatusOK, 12*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "/v1/resolve", http.StatusOK, 3*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "", http.StatusNotFound, time.Millisecond)

	assert.Equal(t, 2.0, counterValue(t, m.RequestsTotal.WithLabelValues("GET", "/v1/resolve", "200")))
	assert.Equal(t, 1.0, counterValue(t, m.RequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest(http.MethodPost, "/v1/reports", http.StatusCreated, time.Millisecond)
		m.IncrementPanics()
	})
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, c.Write(&pb))
	return pb.GetCounter().GetValue()
}
