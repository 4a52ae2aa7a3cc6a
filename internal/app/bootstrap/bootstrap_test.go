package bootstrap

import (
	"context"
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chain_provider/internal/infrastructure/configloader"
	"chain_provider/internal/infrastructure/network/rpc/rpctest"
)

const wallet = "0x1111111111111111111111111111111111111111"

func TestNew_WiresWorkingStack(t *testing.T) {
	chain := rpctest.NewChain()
	chain.SetNative(wallet, big.NewInt(5_000_000_000_000_000_000))
	srv := rpctest.NewServer(chain.Handle)
	defer srv.Close()

	cfg, err := configloader.Parse([]byte(`
chains:
  - identifier: ethereum
    endpoints: ["` + srv.URL + `"]
`))
	require.NoError(t, err)

	app, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer app.Close()

	require.Len(t, app.Registry.Chains(), 1)
	res, err := app.Balances.GetWalletBalances(context.Background(), "ethereum", wallet, nil)
	require.NoError(t, err)
	require.Len(t, res.Balances, 1)
	assert.Equal(t, "5", res.Balances[0].FormattedBalance)

	n, err := testutil.GatherAndCount(app.Metrics)
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestNew_RejectsInvalidChain(t *testing.T) {
	cfg, err := configloader.Parse([]byte(`
chains:
  - identifier: devnet
    endpoints: ["http://localhost:8545"]
`))
	require.NoError(t, err)

	_, err = New(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "chainId is required")
}
