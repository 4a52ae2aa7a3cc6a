package dispatcher

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chain_provider/internal/domain/entity"
	"chain_provider/internal/infrastructure/configloader"
	"chain_provider/internal/infrastructure/network/client"
	networkdefinition "chain_provider/internal/infrastructure/network/definition"
	"chain_provider/internal/infrastructure/network/pool"
	"chain_provider/internal/infrastructure/network/rpc"
	"chain_provider/internal/infrastructure/network/rpc/rpctest"
	"chain_provider/internal/pkg/logger"
)

const wallet = "0x1111111111111111111111111111111111111111"

type fixture struct {
	d    *Dispatcher
	pool *pool.Pool
	a, b *rpctest.Server
}

func newFixture(t *testing.T, retries int, handlerA, handlerB rpctest.Handler) *fixture {
	t.Helper()
	return newFixtureWithPool(t, retries, pool.Config{FailureThreshold: 3, Cooldown: time.Minute}, handlerA, handlerB)
}

func newFixtureWithPool(t *testing.T, retries int, poolCfg pool.Config, handlerA, handlerB rpctest.Handler) *fixture {
	t.Helper()
	a := rpctest.NewServer(handlerA)
	b := rpctest.NewServer(handlerB)
	t.Cleanup(a.Close)
	t.Cleanup(b.Close)

	log := logger.NewNop()
	reg, err := networkdefinition.NewRegistry(log, []configloader.ChainConfig{{
		Identifier: "ethereum",
		Family:     "evm",
		Endpoints:  []string{a.URL, b.URL},
	}})
	require.NoError(t, err)

	p := pool.New(reg.Chains(), poolCfg, log, nil)
	transport := rpc.NewClient(time.Second, 50, log)
	d := New(p, reg, client.NewProvider(transport, log), Config{
		Retries:     retries,
		CallTimeout: 200 * time.Millisecond,
		BackoffMin:  time.Millisecond,
		BackoffMax:  5 * time.Millisecond,
	}, log, nil)
	return &fixture{d: d, pool: p, a: a, b: b}
}

func nativeBalance(v int64) rpctest.Handler {
	chain := rpctest.NewChain()
	chain.SetNative(wallet, big.NewInt(v))
	return chain.Handle
}

func rpcError(code int, msg string) rpctest.Handler {
	return func(rpctest.Call) (any, *rpctest.Error) {
		return nil, &rpctest.Error{Code: code, Message: msg}
	}
}

func balanceQuery() entity.BalanceQuery {
	return entity.BalanceQuery{Chain: "ethereum", Address: wallet}
}

func snapshot(t *testing.T, p *pool.Pool) []entity.EndpointStatus {
	t.Helper()
	s, err := p.Snapshot("ethereum")
	require.NoError(t, err)
	return s
}

func TestExecute_Success(t *testing.T) {
	f := newFixture(t, 2, nativeBalance(7), nativeBalance(9))
	res, err := f.d.Execute(context.Background(), balanceQuery())
	require.NoError(t, err)
	bal, ok := res.(*entity.Balance)
	require.True(t, ok)
	assert.Equal(t, "7", bal.RawAmount)
	assert.Equal(t, int64(0), f.b.Requests())
}

func TestExecute_TransientFailureRotates(t *testing.T) {
	f := newFixture(t, 2, nativeBalance(7), nativeBalance(9))
	f.a.FailHTTP(http.StatusServiceUnavailable)

	res, err := f.d.Execute(context.Background(), balanceQuery())
	require.NoError(t, err)
	assert.Equal(t, "9", res.(*entity.Balance).RawAmount)

	s := snapshot(t, f.pool)
	assert.Equal(t, 1, s[0].ConsecutiveFailures)
	assert.NotNil(t, s[1].LastSuccess)
}

func TestExecute_RetriesExhausted(t *testing.T) {
	f := newFixture(t, 2, rpcError(-32603, "internal"), rpcError(-32603, "internal"))

	_, err := f.d.Execute(context.Background(), balanceQuery())
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrRPC)
	assert.Equal(t, int64(3), f.a.Requests()+f.b.Requests(), "one attempt plus two retries")
}

func TestExecute_ZeroRetries(t *testing.T) {
	f := newFixture(t, 0, rpcError(-32603, "internal"), nativeBalance(9))
	_, err := f.d.Execute(context.Background(), balanceQuery())
	assert.ErrorIs(t, err, entity.ErrRPC)
	assert.Equal(t, int64(0), f.b.Requests())
}

func TestExecute_NonTransientNotRetried(t *testing.T) {
	f := newFixture(t, 2, rpcError(-32602, "invalid argument"), nativeBalance(9))

	_, err := f.d.Execute(context.Background(), balanceQuery())
	assert.ErrorIs(t, err, entity.ErrInvalidRequest)
	assert.Equal(t, int64(1), f.a.Requests())
	assert.Equal(t, int64(0), f.b.Requests())

	s := snapshot(t, f.pool)
	assert.Equal(t, 0, s[0].ConsecutiveFailures, "a rejection still proves the endpoint is alive")
}

func TestExecute_RevertIsNotFound(t *testing.T) {
	f := newFixture(t, 2, rpcError(3, "execution reverted"), nativeBalance(9))
	_, err := f.d.Execute(context.Background(), balanceQuery())
	assert.ErrorIs(t, err, entity.ErrNotFound)
	assert.Equal(t, int64(0), f.b.Requests())
}

func TestExecute_TimeoutRetriedElsewhere(t *testing.T) {
	f := newFixture(t, 2, nativeBalance(7), nativeBalance(9))
	f.a.SetDelay(time.Second)

	res, err := f.d.Execute(context.Background(), balanceQuery())
	require.NoError(t, err)
	assert.Equal(t, "9", res.(*entity.Balance).RawAmount)
	assert.Equal(t, 1, snapshot(t, f.pool)[0].ConsecutiveFailures)
}

func TestExecute_AllTimeOut(t *testing.T) {
	f := newFixture(t, 1, nativeBalance(7), nativeBalance(9))
	f.a.SetDelay(time.Second)
	f.b.SetDelay(time.Second)

	_, err := f.d.Execute(context.Background(), balanceQuery())
	assert.ErrorIs(t, err, entity.ErrTimeout)
}

func TestExecute_CallerCancellationNotCounted(t *testing.T) {
	f := newFixture(t, 2, nativeBalance(7), nativeBalance(9))
	f.a.SetDelay(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := f.d.Execute(ctx, balanceQuery())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	s := snapshot(t, f.pool)
	assert.Equal(t, 0, s[0].ConsecutiveFailures)
	assert.Equal(t, int64(0), f.b.Requests())
}

// A single failing endpoint degrades after three failures; afterwards calls fail fast
// without touching the network.
func TestExecute_FailFastWhenAllDegraded(t *testing.T) {
	f := newFixture(t, 2, nil, nil)
	f.a.FailHTTP(http.StatusBadGateway)
	f.b.FailHTTP(http.StatusBadGateway)

	for i := 0; i < 2; i++ {
		_, err := f.d.Execute(context.Background(), balanceQuery())
		require.Error(t, err)
	}
	before := f.a.Requests() + f.b.Requests()

	_, err := f.d.Execute(context.Background(), balanceQuery())
	assert.ErrorIs(t, err, entity.ErrNoHealthyEndpoint)
	assert.Equal(t, before, f.a.Requests()+f.b.Requests())
}

func TestExecute_UnknownChain(t *testing.T) {
	f := newFixture(t, 2, nativeBalance(7), nativeBalance(9))
	_, err := f.d.Execute(context.Background(), entity.BalanceQuery{Chain: "solana", Address: wallet})
	assert.ErrorIs(t, err, entity.ErrInvalidRequest)
	assert.ErrorIs(t, err, entity.ErrUnknownChain)
}

func TestExecute_RateLimitDoesNotDegradeEndpoints(t *testing.T) {
	f := newFixtureWithPool(t, 2, pool.Config{
		FailureThreshold: 3,
		Cooldown:         time.Minute,
		RateLimit:        0.01,
		Burst:            1,
	}, nativeBalance(7), nativeBalance(9))

	res, err := f.d.Execute(context.Background(), balanceQuery())
	require.NoError(t, err)
	assert.Equal(t, "7", res.(*entity.Balance).RawAmount)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err = f.d.Execute(ctx, balanceQuery())
	require.NoError(t, err, "a throttled endpoint rotates to the next one")
	assert.Equal(t, "9", res.(*entity.Balance).RawAmount)

	for i := 0; i < 3; i++ {
		_, err = f.d.Execute(ctx, balanceQuery())
		require.Error(t, err)
		assert.ErrorIs(t, err, entity.ErrTimeout)
		assert.NotErrorIs(t, err, entity.ErrNoHealthyEndpoint)
	}

	for _, st := range snapshot(t, f.pool) {
		assert.Equal(t, entity.StateHealthy, st.State)
		assert.Zero(t, st.ConsecutiveFailures)
		assert.False(t, st.ProbeInFlight)
	}
	assert.Equal(t, int64(1), f.a.Requests())
	assert.Equal(t, int64(1), f.b.Requests())
}

func TestExecute_ErrorsDoNotExposeEndpointPath(t *testing.T) {
	a := rpctest.NewServer(nativeBalance(7))
	t.Cleanup(a.Close)
	a.FailHTTP(http.StatusServiceUnavailable)

	log := logger.NewNop()
	reg, err := networkdefinition.NewRegistry(log, []configloader.ChainConfig{{
		Identifier: "ethereum",
		Family:     "evm",
		Endpoints:  []string{a.URL + "/v3/secret-key"},
	}})
	require.NoError(t, err)
	p := pool.New(reg.Chains(), pool.Config{FailureThreshold: 3, Cooldown: time.Minute, RateLimit: 0.01, Burst: 1}, log, nil)
	d := New(p, reg, client.NewProvider(rpc.NewClient(time.Second, 50, log), log), Config{Retries: 1}, log, nil)

	_, err = d.Execute(context.Background(), balanceQuery())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-key")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = d.Execute(ctx, balanceQuery())
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrTimeout)
	assert.NotContains(t, err.Error(), "secret-key")
}
