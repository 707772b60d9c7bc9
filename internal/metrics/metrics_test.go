package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectors(t *testing.T) {
	t.Parallel()

	m, err := New()
	require.NoError(t, err)

	m.ObserveHTTP(http.MethodGet, "/api/view/observations", 200, 15*time.Millisecond)
	m.ObserveHTTP(http.MethodGet, "/api/view/observations", 200, 5*time.Millisecond)
	m.ObserveUpstream("observations", "ok", time.Second)
	m.ObserveUpstream("observations", "timeout", 10*time.Second)
	m.CacheHit("observations")
	m.CacheMiss("observations")
	m.StaleResponse()
	m.SetSnapshotSize(42)

	assert.InDelta(t, 2, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/api/view/observations", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.upstreamCalls.WithLabelValues("observations", "timeout")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.cacheLookups.WithLabelValues("observations", "hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.staleResponses), 0)
	assert.InDelta(t, 42, testutil.ToFloat64(m.snapshotSize), 0)
}

func TestHandlerExposesRegistry(t *testing.T) {
	t.Parallel()

	m, err := New()
	require.NoError(t, err)
	m.StaleResponse()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "bioscout_stale_responses_total 1"))
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveHTTP("GET", "", 500, time.Millisecond)
		m.ObserveUpstream("qa", "network", time.Millisecond)
		m.CacheHit("x")
		m.CacheMiss("x")
		m.StaleResponse()
		m.SetSnapshotSize(1)
	})
	assert.Nil(t, m.Registry())
	assert.NotNil(t, m.Handler())
}
