package port

import (
	"context"
	"math/big"

	"chain_provider/internal/domain/entity"
)

// ChainDataProvider is the single entry point business services use for on-chain reads.
// Every error it returns is an *entity.ProviderError.
type ChainDataProvider interface {
	GetBalance(ctx context.Context, address, token, chain string) (*entity.Balance, error)
	GetTokenMetadata(ctx context.Context, tokenAddress, chain string) (*entity.TokenMetadata, error)
	GetQuote(ctx context.Context, tokenIn, tokenOut string, amount *big.Int, chain string) (*entity.Quote, error)

	// InvalidateBalances drops cached balances of address on chain and returns how many were removed.
	InvalidateBalances(chain, address string) (int, error)
	EndpointStatus(chain string) ([]entity.EndpointStatus, error)
	Chains() []entity.ChainDefinition
}
