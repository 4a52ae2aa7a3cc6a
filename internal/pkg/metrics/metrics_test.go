package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SetEndpointState("ethereum", "https://a", "healthy")
		m.EndpointOutcome("ethereum", "https://a", true)
		m.CacheLookup("balance", true)
		m.ObserveRequest("ethereum", "balance", time.Now(), "timeout")
	})
}

func TestSetEndpointState_OneHot(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetEndpointState("ethereum", "https://a", "healthy")
	m.SetEndpointState("ethereum", "https://a", "degraded")

	assert.Equal(t, 0.0, testutil.ToFloat64(m.endpointState.WithLabelValues("ethereum", "https://a", "healthy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.endpointState.WithLabelValues("ethereum", "https://a", "degraded")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.endpointState.WithLabelValues("ethereum", "https://a", "unreachable")))
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.CacheLookup("balance", true)
	m.CacheLookup("balance", false)
	m.CacheLookup("balance", false)
	m.ObserveRequest("ethereum", "quote", time.Now(), "not_found")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("balance", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("balance", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestErrors.WithLabelValues("ethereum", "quote", "not_found")))
}
