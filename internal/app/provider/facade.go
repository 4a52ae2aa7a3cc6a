package provider

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"chain_provider/internal/app/port"
	"chain_provider/internal/domain/entity"
	"chain_provider/internal/infrastructure/cache"
	"chain_provider/internal/pkg/metrics"
	"chain_provider/internal/pkg/tracing"
)

// Executor runs a query against the network.
type Executor interface {
	Execute(ctx context.Context, q entity.Query) (any, error)
}

// HealthSource reports endpoint health per chain.
type HealthSource interface {
	Snapshot(chain string) ([]entity.EndpointStatus, error)
}

// Config for the facade.
type Config struct {
	// FetchTimeout bounds a coalesced fetch independently of the callers waiting on it.
	FetchTimeout time.Duration
}

// Facade is the provider entry point: validation, read-through caching, request
// coalescing and error normalization in front of the dispatcher.
type Facade struct {
	registry port.ChainRegistry
	executor Executor
	health   HealthSource
	cache    *cache.Cache
	group    singleflight.Group
	cfg      Config
	logger   port.Logger
	metrics  *metrics.Metrics
}

var _ port.ChainDataProvider = (*Facade)(nil)

// NewFacade wires the facade.
func NewFacade(registry port.ChainRegistry, executor Executor, health HealthSource, c *cache.Cache, cfg Config, log port.Logger, m *metrics.Metrics) *Facade {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 20 * time.Second
	}
	return &Facade{
		registry: registry,
		executor: executor,
		health:   health,
		cache:    c,
		cfg:      cfg,
		logger:   log,
		metrics:  m,
	}
}

// GetBalance returns the balance of token held by address; an empty token means the native asset.
func (f *Facade) GetBalance(ctx context.Context, address, token, chain string) (*entity.Balance, error) {
	const op = "GetBalance"
	def, err := f.resolve(op, chain)
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(address) {
		return nil, invalid(op, def.Identifier, "address %q is not a hex address", address)
	}
	if !entity.IsNativeToken(token) && !common.IsHexAddress(token) {
		return nil, invalid(op, def.Identifier, "token %q is not a hex address", token)
	}

	q := entity.BalanceQuery{Chain: def.Identifier, Address: address, Token: token}
	v, err := fetch[entity.Balance](ctx, f, op, q)
	if err != nil {
		return nil, err
	}
	return v.Clone(), nil
}

// GetTokenMetadata returns name, symbol, decimals and total supply of a token.
func (f *Facade) GetTokenMetadata(ctx context.Context, tokenAddress, chain string) (*entity.TokenMetadata, error) {
	const op = "GetTokenMetadata"
	def, err := f.resolve(op, chain)
	if err != nil {
		return nil, err
	}
	if !entity.IsNativeToken(tokenAddress) && !common.IsHexAddress(tokenAddress) {
		return nil, invalid(op, def.Identifier, "token %q is not a hex address", tokenAddress)
	}

	q := entity.TokenMetadataQuery{Chain: def.Identifier, Token: tokenAddress}
	v, err := fetch[entity.TokenMetadata](ctx, f, op, q)
	if err != nil {
		return nil, err
	}
	return v.Clone(), nil
}

// GetQuote returns how much tokenOut the chain's router gives for amount of tokenIn.
// Quotes are never served stale.
func (f *Facade) GetQuote(ctx context.Context, tokenIn, tokenOut string, amount *big.Int, chain string) (*entity.Quote, error) {
	const op = "GetQuote"
	def, err := f.resolve(op, chain)
	if err != nil {
		return nil, err
	}
	if !def.SupportsQuotes() {
		return nil, invalid(op, def.Identifier, "quotes are not supported on %s", def.Identifier)
	}
	for _, tok := range []string{tokenIn, tokenOut} {
		if !entity.IsNativeToken(tok) && !common.IsHexAddress(tok) {
			return nil, invalid(op, def.Identifier, "token %q is not a hex address", tok)
		}
	}
	if entity.NormalizeToken(tokenIn) == entity.NormalizeToken(tokenOut) {
		return nil, invalid(op, def.Identifier, "tokenIn and tokenOut must differ")
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, invalid(op, def.Identifier, "amount must be positive")
	}

	q := entity.QuoteQuery{Chain: def.Identifier, TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: new(big.Int).Set(amount)}
	v, err := fetch[entity.Quote](ctx, f, op, q)
	if err != nil {
		return nil, err
	}
	return v.Clone(), nil
}

// InvalidateBalances drops every cached balance of address on chain.
func (f *Facade) InvalidateBalances(chain, address string) (int, error) {
	const op = "InvalidateBalances"
	def, err := f.resolve(op, chain)
	if err != nil {
		return 0, err
	}
	if !common.IsHexAddress(address) {
		return 0, invalid(op, def.Identifier, "address %q is not a hex address", address)
	}
	n := f.cache.InvalidateWalletBalances(def.Identifier, address)
	f.logger.Debug("Invalidated cached balances", "chain", def.Identifier, "address", entity.NormalizeAddress(address), "removed", n)
	return n, nil
}

// EndpointStatus returns the health of each endpoint of chain.
func (f *Facade) EndpointStatus(chain string) ([]entity.EndpointStatus, error) {
	const op = "EndpointStatus"
	def, err := f.resolve(op, chain)
	if err != nil {
		return nil, err
	}
	st, err := f.health.Snapshot(def.Identifier)
	if err != nil {
		return nil, normalize(op, def.Identifier, err)
	}
	return st, nil
}

// Chains lists the configured chains.
func (f *Facade) Chains() []entity.ChainDefinition {
	return f.registry.Chains()
}

func (f *Facade) resolve(op, chain string) (entity.ChainDefinition, error) {
	def, ok := f.registry.Resolve(chain)
	if !ok {
		return entity.ChainDefinition{}, &entity.ProviderError{
			Kind:    entity.KindInvalidRequest,
			Op:      op,
			ChainID: chain,
			Detail:  fmt.Sprintf("unknown chain %q", chain),
			Cause:   entity.ErrUnknownChain,
		}
	}
	return def, nil
}

// fetch serves q from the cache or through a single shared dispatch per key.
// The result is the cached value itself; public methods clone it before returning.
func fetch[T any](ctx context.Context, f *Facade, op string, q entity.Query) (result *T, err error) {
	started := time.Now()
	chain, kind := q.ChainID(), string(q.Kind())

	ctx, span := tracing.Tracer().Start(ctx, "provider."+op, trace.WithAttributes(
		attribute.String("chain", chain),
		attribute.String("kind", kind),
	))
	defer func() {
		errKind := ""
		if k, ok := entity.KindOf(err); ok {
			errKind = string(k)
			tracing.RecordError(ctx, err)
		}
		f.metrics.ObserveRequest(chain, kind, started, errKind)
		span.End()
	}()

	key := q.CacheKey()
	if e, ok := f.cache.Get(key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return typed[T](op, chain, e.Value)
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	if ctx.Err() != nil {
		return nil, normalize(op, chain, ctx.Err())
	}

	ch := f.group.DoChan(key, func() (any, error) {
		// Detached from the first caller so its cancellation does not fail the other waiters.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.cfg.FetchTimeout)
		defer cancel()

		if e, ok := f.cache.Get(key); ok {
			return e.Value, nil
		}
		v, err := f.executor.Execute(fctx, q)
		if err != nil {
			return nil, err
		}
		f.cache.Put(key, v, q.Kind())
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			f.metrics.Coalesced(kind)
		}
		if res.Err != nil {
			pe := normalize(op, chain, res.Err)
			f.logFailure(pe)
			return nil, pe
		}
		return typed[T](op, chain, res.Val)
	case <-ctx.Done():
		f.logger.Debug("Caller stopped waiting for fetch", "op", op, "chain", chain, "error", ctx.Err())
		return nil, normalize(op, chain, ctx.Err())
	}
}

func typed[T any](op, chain string, v any) (*T, error) {
	out, ok := v.(*T)
	if !ok || out == nil {
		return nil, &entity.ProviderError{
			Kind:    entity.KindUpstreamUnavailable,
			Op:      op,
			ChainID: chain,
			Cause:   fmt.Errorf("unexpected result type %T", v),
		}
	}
	return out, nil
}

func (f *Facade) logFailure(pe *entity.ProviderError) {
	if pe.Kind == entity.KindUpstreamUnavailable {
		f.logger.Warn("Provider request failed", "op", pe.Op, "chain", pe.ChainID, "kind", pe.Kind, "error", pe.Cause)
		return
	}
	f.logger.Debug("Provider request failed", "op", pe.Op, "chain", pe.ChainID, "kind", pe.Kind, "error", pe.Cause)
}

// normalize maps internal failures onto the caller-facing error kinds.
func normalize(op, chain string, err error) *entity.ProviderError {
	var pe *entity.ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	kind := entity.KindUpstreamUnavailable
	switch {
	case errors.Is(err, entity.ErrNoHealthyEndpoint):
		kind = entity.KindUpstreamUnavailable
	case errors.Is(err, entity.ErrInvalidRequest), errors.Is(err, entity.ErrUnknownChain):
		kind = entity.KindInvalidRequest
	case errors.Is(err, entity.ErrNotFound):
		kind = entity.KindNotFound
	case errors.Is(err, entity.ErrTimeout), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kind = entity.KindTimeout
	}
	return &entity.ProviderError{Kind: kind, Op: op, ChainID: chain, Cause: err}
}

func invalid(op, chain, format string, args ...any) *entity.ProviderError {
	return &entity.ProviderError{
		Kind:    entity.KindInvalidRequest,
		Op:      op,
		ChainID: strings.ToLower(chain),
		Detail:  fmt.Sprintf(format, args...),
	}
}
