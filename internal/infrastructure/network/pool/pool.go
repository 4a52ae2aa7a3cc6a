package pool

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"chain_provider/internal/app/port"
	"chain_provider/internal/domain/entity"
	"chain_provider/internal/pkg/metrics"
)

// Config tunes endpoint health tracking.
type Config struct {
	FailureThreshold int
	Cooldown         time.Duration
	// RateLimit is the per-endpoint request rate; zero disables limiting.
	RateLimit float64
	Burst     int
}

// Endpoint is one RPC URL of a chain. Health fields are guarded by the owning Pool.
type Endpoint struct {
	URL   string
	Chain string
	// Name is the redacted form of URL used in logs, metrics and errors.
	Name string

	index   int
	limiter *rate.Limiter

	state         entity.EndpointState
	failures      int
	lastSuccess   time.Time
	lastFailure   time.Time
	cooldownStart time.Time
	probing       bool
}

// Wait blocks until the endpoint's rate limiter admits one request.
func (e *Endpoint) Wait(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	return e.limiter.Wait(ctx)
}

// Pool tracks endpoint health per chain and picks the endpoint for each call.
type Pool struct {
	mu      sync.Mutex
	chains  map[string][]*Endpoint
	cfg     Config
	logger  port.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option customises a Pool.
type Option func(*Pool)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

// New builds a pool with every endpoint of defs starting healthy.
func New(defs []entity.ChainDefinition, cfg Config, log port.Logger, m *metrics.Metrics, opts ...Option) *Pool {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	p := &Pool{
		chains:  make(map[string][]*Endpoint, len(defs)),
		cfg:     cfg,
		logger:  log,
		metrics: m,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	for _, def := range defs {
		chain := strings.ToLower(def.Identifier)
		eps := make([]*Endpoint, 0, len(def.RPCURLs))
		for i, u := range def.RPCURLs {
			ep := &Endpoint{URL: u, Chain: chain, Name: entity.RedactURL(u), index: i, state: entity.StateHealthy}
			if cfg.RateLimit > 0 {
				ep.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)
			}
			eps = append(eps, ep)
			p.metrics.SetEndpointState(chain, ep.Name, string(entity.StateHealthy))
		}
		p.chains[chain] = eps
	}
	return p
}

// SelectEndpoint returns the endpoint to use for the next call on chain.
// It never blocks: when nothing is selectable it fails with entity.ErrNoHealthyEndpoint.
func (p *Pool) SelectEndpoint(chain string) (*Endpoint, error) {
	return p.SelectEndpointExcluding(chain, nil)
}

// SelectEndpointExcluding is SelectEndpoint skipping endpoints whose URL is in tried.
// If every selectable endpoint was already tried, the regular policy applies.
func (p *Pool) SelectEndpointExcluding(chain string, tried map[string]struct{}) (*Endpoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	eps, ok := p.chains[strings.ToLower(chain)]
	if !ok || len(eps) == 0 {
		return nil, fmt.Errorf("chain %s: %w", chain, entity.ErrNoHealthyEndpoint)
	}

	now := p.now()
	p.promoteExpiredLocked(eps, now)

	if len(tried) > 0 {
		if ep := p.pickLocked(eps, now, tried); ep != nil {
			return ep, nil
		}
	}
	if ep := p.pickLocked(eps, now, nil); ep != nil {
		return ep, nil
	}
	return nil, fmt.Errorf("chain %s: %w", chain, entity.ErrNoHealthyEndpoint)
}

// pickLocked prefers a due probe, then the healthy endpoint with the freshest success.
func (p *Pool) pickLocked(eps []*Endpoint, now time.Time, tried map[string]struct{}) *Endpoint {
	var healthy []*Endpoint
	for _, ep := range eps {
		if _, skip := tried[ep.URL]; skip {
			continue
		}
		switch ep.state {
		case entity.StateHealthy:
			healthy = append(healthy, ep)
		case entity.StateDegraded:
			if !ep.probing && p.cooldownElapsed(ep, now) {
				ep.probing = true
				p.logger.Debug("Probing degraded endpoint", "chain", ep.Chain, "endpoint", ep.Name)
				return ep
			}
		}
	}
	if len(healthy) == 0 {
		return nil
	}
	sort.SliceStable(healthy, func(i, j int) bool {
		a, b := healthy[i], healthy[j]
		if a.lastSuccess.IsZero() != b.lastSuccess.IsZero() {
			return !a.lastSuccess.IsZero()
		}
		if !a.lastSuccess.Equal(b.lastSuccess) {
			return a.lastSuccess.After(b.lastSuccess)
		}
		return a.index < b.index
	})
	return healthy[0]
}

// promoteExpiredLocked moves unreachable endpoints whose cooldown elapsed to degraded.
func (p *Pool) promoteExpiredLocked(eps []*Endpoint, now time.Time) {
	for _, ep := range eps {
		if ep.state == entity.StateUnreachable && p.cooldownElapsed(ep, now) {
			p.transitionLocked(ep, entity.StateDegraded)
		}
	}
}

func (p *Pool) cooldownElapsed(ep *Endpoint, now time.Time) bool {
	return !now.Before(ep.cooldownStart.Add(p.cfg.Cooldown))
}

// ReportOutcome records the result of a call made through ep.
func (p *Pool) ReportOutcome(ep *Endpoint, success bool) {
	if ep == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	p.metrics.EndpointOutcome(ep.Chain, ep.Name, success)

	if success {
		ep.failures = 0
		ep.lastSuccess = now
		ep.probing = false
		if ep.state != entity.StateHealthy {
			p.transitionLocked(ep, entity.StateHealthy)
		}
		return
	}

	ep.failures++
	ep.lastFailure = now
	switch ep.state {
	case entity.StateHealthy:
		if ep.failures >= p.cfg.FailureThreshold {
			ep.cooldownStart = now
			p.transitionLocked(ep, entity.StateDegraded)
		}
	case entity.StateDegraded:
		if ep.probing {
			ep.probing = false
			ep.cooldownStart = now
			p.transitionLocked(ep, entity.StateUnreachable)
		}
	case entity.StateUnreachable:
		ep.cooldownStart = now
	}
}

// Release returns a probe slot taken by a call that ended without an outcome,
// e.g. because the caller gave up.
func (p *Pool) Release(ep *Endpoint) {
	if ep == nil {
		return
	}
	p.mu.Lock()
	ep.probing = false
	p.mu.Unlock()
}

func (p *Pool) transitionLocked(ep *Endpoint, to entity.EndpointState) {
	from := ep.state
	ep.state = to
	p.metrics.SetEndpointState(ep.Chain, ep.Name, string(to))
	if to == entity.StateHealthy {
		p.logger.Info("Endpoint recovered", "chain", ep.Chain, "endpoint", ep.Name, "from", from)
		return
	}
	p.logger.Warn("Endpoint health changed", "chain", ep.Chain, "endpoint", ep.Name, "from", from, "to", to, "consecutiveFailures", ep.failures)
}

// Snapshot returns a copy of the health of every endpoint of chain in configuration order.
func (p *Pool) Snapshot(chain string) ([]entity.EndpointStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	eps, ok := p.chains[strings.ToLower(chain)]
	if !ok {
		return nil, fmt.Errorf("chain %s: %w", chain, entity.ErrUnknownChain)
	}
	out := make([]entity.EndpointStatus, 0, len(eps))
	for _, ep := range eps {
		st := entity.EndpointStatus{
			URL:                 ep.URL,
			ChainID:             ep.Chain,
			State:               ep.state,
			ConsecutiveFailures: ep.failures,
			ProbeInFlight:       ep.probing,
		}
		if !ep.lastSuccess.IsZero() {
			t := ep.lastSuccess
			st.LastSuccess = &t
		}
		if !ep.lastFailure.IsZero() {
			t := ep.lastFailure
			st.LastFailure = &t
		}
		if ep.state != entity.StateHealthy {
			t := ep.cooldownStart.Add(p.cfg.Cooldown)
			st.CooldownUntil = &t
		}
		out = append(out, st)
	}
	return out, nil
}
