package provider

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chain_provider/internal/domain/entity"
	"chain_provider/internal/infrastructure/cache"
	"chain_provider/internal/infrastructure/configloader"
	"chain_provider/internal/infrastructure/network/client"
	networkdefinition "chain_provider/internal/infrastructure/network/definition"
	"chain_provider/internal/infrastructure/network/dispatcher"
	"chain_provider/internal/infrastructure/network/pool"
	"chain_provider/internal/infrastructure/network/rpc"
	"chain_provider/internal/infrastructure/network/rpc/rpctest"
	"chain_provider/internal/pkg/logger"
)

const (
	wallet = "0x1111111111111111111111111111111111111111"
	usdc   = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	weth   = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
	router = "0x7a250d5630b4cf539739df2c5dacb4c659f2488d"
)

// fakeExecutor answers queries from fn, optionally blocking until release is closed.
type fakeExecutor struct {
	calls   atomic.Int64
	release chan struct{}
	fn      func(ctx context.Context, q entity.Query) (any, error)
}

func (e *fakeExecutor) Execute(ctx context.Context, q entity.Query) (any, error) {
	e.calls.Add(1)
	if e.release != nil {
		select {
		case <-e.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return e.fn(ctx, q)
}

type fakeHealth struct{}

func (fakeHealth) Snapshot(chain string) ([]entity.EndpointStatus, error) {
	return []entity.EndpointStatus{{URL: "https://a", ChainID: chain, State: entity.StateHealthy}}, nil
}

func testRegistry(t *testing.T, endpoints ...string) *networkdefinition.Registry {
	t.Helper()
	if len(endpoints) == 0 {
		endpoints = []string{"https://rpc.example"}
	}
	reg, err := networkdefinition.NewRegistry(logger.NewNop(), []configloader.ChainConfig{{
		Identifier:    "ethereum",
		Family:        "evm",
		Endpoints:     endpoints,
		QuoteRouter:   router,
		WrappedNative: weth,
	}, {
		Identifier: "gnosis",
		Family:     "evm",
		Endpoints:  []string{"https://gnosis.example"},
	}})
	require.NoError(t, err)
	return reg
}

func balanceResult(q entity.Query) *entity.Balance {
	bq := q.(entity.BalanceQuery)
	return &entity.Balance{ChainID: bq.Chain, WalletAddress: bq.Address, RawAmount: "42", Amount: big.NewInt(42)}
}

func newFacade(t *testing.T, exec Executor, ttls cache.TTLs) *Facade {
	t.Helper()
	c := cache.New(ttls, time.Minute, nil)
	return NewFacade(testRegistry(t), exec, fakeHealth{}, c, Config{FetchTimeout: 2 * time.Second}, logger.NewNop(), nil)
}

func defaultTTLs() cache.TTLs {
	return cache.TTLs{Balance: 5 * time.Second, TokenMetadata: time.Hour}
}

func TestGetBalance_CachedWithinTTL(t *testing.T) {
	exec := &fakeExecutor{fn: func(_ context.Context, q entity.Query) (any, error) { return balanceResult(q), nil }}
	f := newFacade(t, exec, defaultTTLs())

	for i := 0; i < 3; i++ {
		bal, err := f.GetBalance(context.Background(), wallet, "", "ethereum")
		require.NoError(t, err)
		assert.Equal(t, "42", bal.RawAmount)
	}
	assert.Equal(t, int64(1), exec.calls.Load())
}

func TestCachedResultsAreIsolatedFromCallers(t *testing.T) {
	exec := &fakeExecutor{fn: func(_ context.Context, q entity.Query) (any, error) {
		switch qq := q.(type) {
		case entity.BalanceQuery:
			return &entity.Balance{ChainID: qq.Chain, RawAmount: "1000", Amount: big.NewInt(1000)}, nil
		case entity.TokenMetadataQuery:
			return &entity.TokenMetadata{ChainID: qq.Chain, Symbol: "USDC", TotalSupply: big.NewInt(500)}, nil
		case entity.QuoteQuery:
			return &entity.Quote{ChainID: qq.Chain, AmountIn: qq.AmountIn, AmountOut: big.NewInt(7), Route: []string{usdc, weth}}, nil
		}
		return nil, errors.New("unexpected query")
	}}
	ttls := defaultTTLs()
	ttls.Quote = time.Second
	f := newFacade(t, exec, ttls)
	ctx := context.Background()

	b1, err := f.GetBalance(ctx, wallet, "", "ethereum")
	require.NoError(t, err)
	b1.Amount.SetInt64(1)
	b2, err := f.GetBalance(ctx, wallet, "", "ethereum")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), b2.Amount.Int64())

	m1, err := f.GetTokenMetadata(ctx, usdc, "ethereum")
	require.NoError(t, err)
	m1.TotalSupply.SetInt64(0)
	m2, err := f.GetTokenMetadata(ctx, usdc, "ethereum")
	require.NoError(t, err)
	assert.Equal(t, int64(500), m2.TotalSupply.Int64())

	q1, err := f.GetQuote(ctx, usdc, weth, big.NewInt(10), "ethereum")
	require.NoError(t, err)
	q1.AmountIn.SetInt64(99)
	q1.AmountOut.SetInt64(99)
	q1.Route[0] = "tampered"
	q2, err := f.GetQuote(ctx, usdc, weth, big.NewInt(10), "ethereum")
	require.NoError(t, err)
	assert.Equal(t, int64(10), q2.AmountIn.Int64())
	assert.Equal(t, int64(7), q2.AmountOut.Int64())
	assert.Equal(t, usdc, q2.Route[0])

	assert.Equal(t, int64(3), exec.calls.Load(), "every second read is a cache hit")
}

func TestGetBalance_ChainByNumericID(t *testing.T) {
	exec := &fakeExecutor{fn: func(_ context.Context, q entity.Query) (any, error) { return balanceResult(q), nil }}
	f := newFacade(t, exec, defaultTTLs())

	_, err := f.GetBalance(context.Background(), wallet, "", "ethereum")
	require.NoError(t, err)
	_, err = f.GetBalance(context.Background(), wallet, entity.ZeroAddress, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), exec.calls.Load(), "numeric id and native aliases share the cache entry")
}

func TestGetBalance_ConcurrentMissesCoalesce(t *testing.T) {
	exec := &fakeExecutor{
		release: make(chan struct{}),
		fn:      func(_ context.Context, q entity.Query) (any, error) { return balanceResult(q), nil },
	}
	f := newFacade(t, exec, defaultTTLs())

	const n = 25
	var wg sync.WaitGroup
	results := make([]*entity.Balance, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.GetBalance(context.Background(), wallet, usdc, "ethereum")
		}(i)
	}
	require.Eventually(t, func() bool { return exec.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(exec.release)
	wg.Wait()

	assert.Equal(t, int64(1), exec.calls.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "42", results[i].RawAmount)
	}
}

func TestGetBalance_CoalescedWaitersShareError(t *testing.T) {
	exec := &fakeExecutor{
		release: make(chan struct{}),
		fn: func(context.Context, entity.Query) (any, error) {
			return nil, fmt.Errorf("chain ethereum: %w", entity.ErrNoHealthyEndpoint)
		},
	}
	f := newFacade(t, exec, defaultTTLs())

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.GetBalance(context.Background(), wallet, "", "ethereum")
		}(i)
	}
	require.Eventually(t, func() bool { return exec.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(exec.release)
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, entity.ErrUpstreamUnavailable)
	}
	assert.Equal(t, int64(1), exec.calls.Load())
}

func TestGetBalance_CallerTimeoutStillPopulatesCache(t *testing.T) {
	exec := &fakeExecutor{
		release: make(chan struct{}),
		fn:      func(_ context.Context, q entity.Query) (any, error) { return balanceResult(q), nil },
	}
	f := newFacade(t, exec, defaultTTLs())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := f.GetBalance(ctx, wallet, "", "ethereum")
	assert.ErrorIs(t, err, entity.ErrTimeout)

	close(exec.release)
	require.Eventually(t, func() bool {
		bal, err := f.GetBalance(context.Background(), wallet, "", "ethereum")
		return err == nil && bal.RawAmount == "42"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), exec.calls.Load())
}

func TestValidation(t *testing.T) {
	exec := &fakeExecutor{fn: func(_ context.Context, q entity.Query) (any, error) { return balanceResult(q), nil }}
	f := newFacade(t, exec, defaultTTLs())
	ctx := context.Background()

	_, err := f.GetBalance(ctx, "not-an-address", "", "ethereum")
	assert.ErrorIs(t, err, entity.ErrInvalidRequest)
	_, err = f.GetBalance(ctx, wallet, "0x123", "ethereum")
	assert.ErrorIs(t, err, entity.ErrInvalidRequest)
	_, err = f.GetBalance(ctx, wallet, "", "solana")
	assert.ErrorIs(t, err, entity.ErrInvalidRequest)
	assert.EqualError(t, err, `GetBalance solana: invalid_request: unknown chain "solana"`)
	_, err = f.GetTokenMetadata(ctx, "zz", "ethereum")
	assert.ErrorIs(t, err, entity.ErrInvalidRequest)
	_, err = f.GetQuote(ctx, usdc, usdc, big.NewInt(1), "ethereum")
	assert.ErrorIs(t, err, entity.ErrInvalidRequest)
	_, err = f.GetQuote(ctx, usdc, weth, big.NewInt(0), "ethereum")
	assert.ErrorIs(t, err, entity.ErrInvalidRequest)
	_, err = f.GetQuote(ctx, usdc, weth, nil, "ethereum")
	assert.ErrorIs(t, err, entity.ErrInvalidRequest)
	_, err = f.GetQuote(ctx, usdc, weth, big.NewInt(1), "gnosis")
	assert.ErrorIs(t, err, entity.ErrInvalidRequest, "no router configured")
	_, err = f.InvalidateBalances("ethereum", "0x")
	assert.ErrorIs(t, err, entity.ErrInvalidRequest)

	assert.Equal(t, int64(0), exec.calls.Load(), "validation happens before any network access")
}

func TestErrorNormalization(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"no healthy endpoint", fmt.Errorf("x: %w", entity.ErrNoHealthyEndpoint), entity.ErrUpstreamUnavailable},
		{"rpc error", &entity.RPCError{Code: -32603, Message: "internal", Transient: true}, entity.ErrUpstreamUnavailable},
		{"timeout", fmt.Errorf("%w: slow", entity.ErrTimeout), entity.ErrTimeout},
		{"deadline", context.DeadlineExceeded, entity.ErrTimeout},
		{"not found", fmt.Errorf("%w: no code", entity.ErrNotFound), entity.ErrNotFound},
		{"invalid", fmt.Errorf("%w: bad params", entity.ErrInvalidRequest), entity.ErrInvalidRequest},
		{"unknown", errors.New("boom"), entity.ErrUpstreamUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			exec := &fakeExecutor{fn: func(context.Context, entity.Query) (any, error) { return nil, tc.err }}
			f := newFacade(t, exec, defaultTTLs())
			_, err := f.GetTokenMetadata(context.Background(), usdc, "ethereum")
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)

			var pe *entity.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "GetTokenMetadata", pe.Op)
			assert.Equal(t, "ethereum", pe.ChainID)
			assert.False(t, errors.Is(err, entity.ErrRPC), "transport details stay hidden")
			assert.Equal(t, "GetTokenMetadata ethereum: "+string(pe.Kind), err.Error())
		})
	}
}

func TestGetQuote_NeverCachedByDefault(t *testing.T) {
	var out atomic.Int64
	exec := &fakeExecutor{fn: func(_ context.Context, q entity.Query) (any, error) {
		qq := q.(entity.QuoteQuery)
		return &entity.Quote{ChainID: qq.Chain, AmountIn: qq.AmountIn, AmountOut: big.NewInt(out.Add(1))}, nil
	}}
	f := newFacade(t, exec, defaultTTLs())

	q1, err := f.GetQuote(context.Background(), usdc, weth, big.NewInt(10), "ethereum")
	require.NoError(t, err)
	q2, err := f.GetQuote(context.Background(), usdc, weth, big.NewInt(10), "ethereum")
	require.NoError(t, err)
	assert.NotEqual(t, q1.AmountOut.Int64(), q2.AmountOut.Int64())
	assert.Equal(t, int64(2), exec.calls.Load())
}

func TestInvalidateBalances(t *testing.T) {
	exec := &fakeExecutor{fn: func(_ context.Context, q entity.Query) (any, error) { return balanceResult(q), nil }}
	f := newFacade(t, exec, defaultTTLs())

	_, err := f.GetBalance(context.Background(), wallet, "", "ethereum")
	require.NoError(t, err)
	_, err = f.GetBalance(context.Background(), wallet, usdc, "ethereum")
	require.NoError(t, err)

	n, err := f.InvalidateBalances("ethereum", wallet)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = f.GetBalance(context.Background(), wallet, "", "ethereum")
	require.NoError(t, err)
	assert.Equal(t, int64(3), exec.calls.Load())
}

func TestEndpointStatusAndChains(t *testing.T) {
	f := newFacade(t, &fakeExecutor{}, defaultTTLs())
	st, err := f.EndpointStatus("ETHEREUM")
	require.NoError(t, err)
	require.Len(t, st, 1)
	assert.Equal(t, "ethereum", st[0].ChainID)

	_, err = f.EndpointStatus("nope")
	assert.ErrorIs(t, err, entity.ErrInvalidRequest)
	assert.Len(t, f.Chains(), 2)
}

// With every endpoint of a chain down the facade reports UpstreamUnavailable and
// later calls fail fast without network traffic.
func TestIntegration_AllEndpointsDown(t *testing.T) {
	a := rpctest.NewServer(nil)
	b := rpctest.NewServer(nil)
	defer a.Close()
	defer b.Close()
	a.FailHTTP(http.StatusServiceUnavailable)
	b.FailHTTP(http.StatusServiceUnavailable)

	log := logger.NewNop()
	reg := testRegistry(t, a.URL, b.URL)
	p := pool.New(reg.Chains(), pool.Config{FailureThreshold: 3, Cooldown: time.Minute}, log, nil)
	d := dispatcher.New(p, reg, client.NewProvider(rpc.NewClient(time.Second, 50, log), log), dispatcher.Config{
		Retries: 2, CallTimeout: 500 * time.Millisecond, BackoffMin: time.Millisecond, BackoffMax: 2 * time.Millisecond,
	}, log, nil)
	f := NewFacade(reg, d, p, cache.New(defaultTTLs(), time.Minute, nil), Config{FetchTimeout: 5 * time.Second}, log, nil)

	for i := 0; i < 3; i++ {
		_, err := f.GetBalance(context.Background(), wallet, "", "ethereum")
		require.Error(t, err)
		assert.ErrorIs(t, err, entity.ErrUpstreamUnavailable)
	}

	st, err := f.EndpointStatus("ethereum")
	require.NoError(t, err)
	for _, s := range st {
		assert.Equal(t, entity.StateDegraded, s.State)
	}

	before := a.Requests() + b.Requests()
	_, err = f.GetBalance(context.Background(), wallet, "", "ethereum")
	assert.ErrorIs(t, err, entity.ErrUpstreamUnavailable)
	assert.Equal(t, before, a.Requests()+b.Requests())
}

func TestIntegration_EndToEnd(t *testing.T) {
	chain := rpctest.NewChain()
	chain.Router = router
	chain.SetNative(wallet, big.NewInt(1_000_000_000_000_000_000))
	chain.AddToken(usdc, &rpctest.Token{Name: "USD Coin", Symbol: "USDC", Decimals: 6})
	chain.AddToken(weth, &rpctest.Token{Name: "Wrapped Ether", Symbol: "WETH", Decimals: 18})
	srv := rpctest.NewServer(chain.Handle)
	defer srv.Close()

	log := logger.NewNop()
	reg := testRegistry(t, srv.URL)
	p := pool.New(reg.Chains(), pool.Config{FailureThreshold: 3, Cooldown: time.Minute}, log, nil)
	d := dispatcher.New(p, reg, client.NewProvider(rpc.NewClient(time.Second, 50, log), log), dispatcher.Config{Retries: 2, CallTimeout: time.Second}, log, nil)
	f := NewFacade(reg, d, p, cache.New(defaultTTLs(), time.Minute, nil), Config{}, log, nil)
	ctx := context.Background()

	bal, err := f.GetBalance(ctx, wallet, "", "ethereum")
	require.NoError(t, err)
	assert.Equal(t, "1", bal.FormattedBalance)

	md, err := f.GetTokenMetadata(ctx, usdc, "ethereum")
	require.NoError(t, err)
	assert.Equal(t, "USDC", md.Symbol)

	q, err := f.GetQuote(ctx, weth, usdc, big.NewInt(5), "ethereum")
	require.NoError(t, err)
	assert.Equal(t, int64(10), q.AmountOut.Int64())

	_, err = f.GetTokenMetadata(ctx, "0x9999999999999999999999999999999999999999", "ethereum")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestGetBalance_RefetchedAfterTTL(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	exec := &fakeExecutor{fn: func(_ context.Context, q entity.Query) (any, error) { return balanceResult(q), nil }}
	c := cache.New(defaultTTLs(), time.Minute, nil, cache.WithClock(clock))
	f := NewFacade(testRegistry(t), exec, fakeHealth{}, c, Config{}, logger.NewNop(), nil)

	_, err := f.GetBalance(context.Background(), wallet, "", "ethereum")
	require.NoError(t, err)
	_, err = f.GetBalance(context.Background(), wallet, "", "ethereum")
	require.NoError(t, err)
	assert.Equal(t, int64(1), exec.calls.Load())

	mu.Lock()
	now = now.Add(6 * time.Second)
	mu.Unlock()

	_, err = f.GetBalance(context.Background(), wallet, "", "ethereum")
	require.NoError(t, err)
	assert.Equal(t, int64(2), exec.calls.Load(), "an expired entry is never served")
}
