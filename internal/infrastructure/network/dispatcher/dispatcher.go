package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chain_provider/internal/app/port"
	"chain_provider/internal/domain/entity"
	"chain_provider/internal/infrastructure/network/pool"
	"chain_provider/internal/pkg/metrics"
	"chain_provider/internal/pkg/tracing"
)

// errThrottled marks attempts the local rate limiter refused before anything was sent.
var errThrottled = errors.New("rate limited locally")

// Config bounds retries and per-call time.
type Config struct {
	Retries     int
	CallTimeout time.Duration
	BackoffMin  time.Duration
	BackoffMax  time.Duration
}

// Dispatcher executes queries against a chain's endpoints with timeout, retry and rotation.
type Dispatcher struct {
	pool     *pool.Pool
	registry port.ChainRegistry
	clients  port.ChainClientProvider
	cfg      Config
	logger   port.Logger
	metrics  *metrics.Metrics
	backoff  retryablehttp.Backoff
}

// New creates a Dispatcher.
func New(p *pool.Pool, registry port.ChainRegistry, clients port.ChainClientProvider, cfg Config, log port.Logger, m *metrics.Metrics) *Dispatcher {
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 5 * time.Second
	}
	return &Dispatcher{
		pool:     p,
		registry: registry,
		clients:  clients,
		cfg:      cfg,
		logger:   log,
		metrics:  m,
		backoff:  retryablehttp.DefaultBackoff,
	}
}

// Execute runs q on one of its chain's endpoints and returns the client result:
// *entity.Balance, *entity.TokenMetadata or *entity.Quote.
//
// Transient failures are retried on other endpoints up to Retries times. Errors wrap
// entity.ErrTimeout, entity.ErrRPC, entity.ErrNoHealthyEndpoint, entity.ErrInvalidRequest,
// entity.ErrNotFound or the caller's context error.
func (d *Dispatcher) Execute(ctx context.Context, q entity.Query) (any, error) {
	def, ok := d.registry.Resolve(q.ChainID())
	if !ok {
		return nil, fmt.Errorf("%w: %w: %s", entity.ErrInvalidRequest, entity.ErrUnknownChain, q.ChainID())
	}
	client, err := d.clients.GetClient(def)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidRequest, err)
	}

	ctx, span := tracing.Tracer().Start(ctx, "dispatcher.Execute", trace.WithAttributes(
		attribute.String("chain", def.Identifier),
		attribute.String("kind", string(q.Kind())),
	))
	defer span.End()

	tried := make(map[string]struct{})
	var lastErr error
	for attempt := 0; attempt <= d.cfg.Retries; attempt++ {
		if attempt > 0 {
			if err := d.sleep(ctx, d.backoff(d.cfg.BackoffMin, d.cfg.BackoffMax, attempt-1, nil)); err != nil {
				return nil, err
			}
		}

		ep, err := d.pool.SelectEndpointExcluding(def.Identifier, tried)
		if err != nil {
			if errors.Is(lastErr, errThrottled) {
				tracing.RecordError(ctx, lastErr)
				return nil, lastErr
			}
			if lastErr != nil {
				err = fmt.Errorf("%w (last attempt: %v)", err, lastErr)
			}
			tracing.RecordError(ctx, err)
			return nil, err
		}
		tried[ep.URL] = struct{}{}
		span.SetAttributes(attribute.Int("attempts", attempt+1))

		res, err := d.attempt(ctx, client, ep, q)
		if err == nil {
			d.pool.ReportOutcome(ep, true)
			d.metrics.DispatchAttempt(def.Identifier, string(q.Kind()), "success")
			return res, nil
		}

		if ctx.Err() != nil {
			// The caller gave up; that says nothing about the endpoint.
			d.pool.Release(ep)
			d.metrics.DispatchAttempt(def.Identifier, string(q.Kind()), "canceled")
			return nil, fmt.Errorf("%s: %w", q.Kind(), ctx.Err())
		}

		if errors.Is(err, errThrottled) {
			// Nothing reached the endpoint, so its health is unchanged.
			d.pool.Release(ep)
			d.metrics.DispatchAttempt(def.Identifier, string(q.Kind()), "throttled")
			d.logger.Debug("Endpoint rate limit reached", "chain", def.Identifier, "endpoint", ep.Name)
			lastErr = err
			continue
		}

		if !retryable(err) {
			// The endpoint answered; the request itself was rejected.
			d.pool.ReportOutcome(ep, true)
			d.metrics.DispatchAttempt(def.Identifier, string(q.Kind()), "rejected")
			return nil, err
		}

		d.pool.ReportOutcome(ep, false)
		d.metrics.DispatchAttempt(def.Identifier, string(q.Kind()), "transient")
		d.logger.Warn("RPC attempt failed",
			"chain", def.Identifier,
			"kind", q.Kind(),
			"endpoint", ep.Name,
			"attempt", attempt+1,
			"maxAttempts", d.cfg.Retries+1,
			"error", err)
		lastErr = err
	}

	tracing.RecordError(ctx, lastErr)
	return nil, lastErr
}

func (d *Dispatcher) attempt(ctx context.Context, client port.ChainClient, ep *pool.Endpoint, q entity.Query) (any, error) {
	if err := ep.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// The limiter refuses waits that cannot finish before the deadline.
		return nil, fmt.Errorf("%w: %w on %s", entity.ErrTimeout, errThrottled, ep.Name)
	}

	callCtx, cancel := context.WithTimeout(ctx, d.cfg.CallTimeout)
	defer cancel()

	var (
		res any
		err error
	)
	switch qq := q.(type) {
	case entity.BalanceQuery:
		res, err = client.FetchBalance(callCtx, ep.URL, qq)
	case entity.TokenMetadataQuery:
		res, err = client.FetchTokenMetadata(callCtx, ep.URL, qq)
	case entity.QuoteQuery:
		res, err = client.FetchQuote(callCtx, ep.URL, qq)
	default:
		return nil, fmt.Errorf("%w: unsupported query kind %q", entity.ErrInvalidRequest, q.Kind())
	}
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("%w: call to %s exceeded %s", entity.ErrTimeout, ep.Name, d.cfg.CallTimeout)
	}
	return res, err
}

func retryable(err error) bool {
	return errors.Is(err, entity.ErrTimeout) || entity.IsTransientRPC(err)
}

func (d *Dispatcher) sleep(ctx context.Context, wait time.Duration) error {
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
