package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chain_provider"

// Metrics holds Prometheus collectors for the provider layer.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	endpointState    *prometheus.GaugeVec
	endpointOutcomes *prometheus.CounterVec
	dispatchAttempts *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	coalescedWaits   *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestErrors    *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		endpointState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "endpoint_state",
				Help:      "Current endpoint health (1 for the active state label).",
			},
			[]string{"chain", "endpoint", "state"},
		),
		endpointOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "endpoint_outcomes_total",
				Help:      "Outcomes reported to the endpoint pool.",
			},
			[]string{"chain", "endpoint", "outcome"},
		),
		dispatchAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_attempts_total",
				Help:      "RPC attempts made by the dispatcher.",
			},
			[]string{"chain", "kind", "result"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Response cache lookups by result.",
			},
			[]string{"kind", "result"},
		),
		coalescedWaits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "coalesced_requests_total",
				Help:      "Requests that shared an in-flight fetch.",
			},
			[]string{"kind"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Provider facade request duration.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"chain", "kind"},
		),
		requestErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "request_errors_total",
				Help:      "Provider facade errors by normalized kind.",
			},
			[]string{"chain", "kind", "error"},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.endpointState,
			m.endpointOutcomes,
			m.dispatchAttempts,
			m.cacheLookups,
			m.coalescedWaits,
			m.requestDuration,
			m.requestErrors,
		)
	}
	return m
}

var endpointStates = []string{"healthy", "degraded", "unreachable"}

// SetEndpointState marks state as the only active state of the endpoint.
func (m *Metrics) SetEndpointState(chain, endpoint, state string) {
	if m == nil {
		return
	}
	for _, s := range endpointStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.endpointState.WithLabelValues(chain, endpoint, s).Set(v)
	}
}

func (m *Metrics) EndpointOutcome(chain, endpoint string, success bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.endpointOutcomes.WithLabelValues(chain, endpoint, outcome).Inc()
}

func (m *Metrics) DispatchAttempt(chain, kind, result string) {
	if m == nil {
		return
	}
	m.dispatchAttempts.WithLabelValues(chain, kind, result).Inc()
}

func (m *Metrics) CacheLookup(kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) Coalesced(kind string) {
	if m == nil {
		return
	}
	m.coalescedWaits.WithLabelValues(kind).Inc()
}

// ObserveRequest records duration and, for failed requests, the error kind.
func (m *Metrics) ObserveRequest(chain, kind string, started time.Time, errKind string) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(chain, kind).Observe(time.Since(started).Seconds())
	if errKind != "" {
		m.requestErrors.WithLabelValues(chain, kind, errKind).Inc()
	}
}
