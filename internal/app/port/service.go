package port

import (
	"context"

	"chain_provider/internal/domain/entity"
)

// BalanceService reads wallet balances.
type BalanceService interface {
	GetBalance(ctx context.Context, chain, address, token string) (*entity.Balance, error)
	GetWalletBalances(ctx context.Context, chain, address string, tokens []string) (*entity.WalletBalances, error)
	InvalidateBalances(chain, address string) (int, error)
}

// TokenService reads token metadata.
type TokenService interface {
	GetToken(ctx context.Context, chain, token string) (*entity.TokenMetadata, error)
	GetTokens(ctx context.Context, chain string, tokens []string) ([]entity.TokenMetadata, []entity.BalanceError, error)
}

// QuoteService prices swaps.
type QuoteService interface {
	GetQuote(ctx context.Context, chain, tokenIn, tokenOut, amount string) (*entity.PricedQuote, error)
}

// TokenListProvider supplies the default tokens checked for a wallet on a chain.
type TokenListProvider interface {
	TokensFor(chain string) []string
}
