package entity

import (
	"strings"
	"time"
)

// EndpointState is the health classification of a chain endpoint.
type EndpointState string

const (
	StateHealthy     EndpointState = "healthy"
	StateDegraded    EndpointState = "degraded"
	StateUnreachable EndpointState = "unreachable"
)

// EndpointStatus is a point-in-time copy of an endpoint's health.
type EndpointStatus struct {
	URL                 string        `json:"url"`
	ChainID             string        `json:"chainId"`
	State               EndpointState `json:"state"`
	ConsecutiveFailures int           `json:"consecutiveFailures"`
	LastSuccess         *time.Time    `json:"lastSuccess,omitempty"`
	LastFailure         *time.Time    `json:"lastFailure,omitempty"`
	CooldownUntil       *time.Time    `json:"cooldownUntil,omitempty"`
	ProbeInFlight       bool          `json:"probeInFlight"`
}

// RedactURL reduces an endpoint URL to its host so API keys in paths or queries
// stay out of logs, metrics and responses.
func RedactURL(url string) string {
	u := url
	if i := strings.Index(u, "://"); i >= 0 {
		u = u[i+3:]
	}
	if i := strings.LastIndex(u, "@"); i >= 0 {
		u = u[i+1:]
	}
	if i := strings.IndexAny(u, "/?#"); i >= 0 {
		u = u[:i]
	}
	return u
}
