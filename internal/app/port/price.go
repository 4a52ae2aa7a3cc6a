package port

import "context"

// PriceSource provides USD prices for tokens.
type PriceSource interface {
	// GetPriceUSD returns the token price and whether one was found.
	GetPriceUSD(ctx context.Context, dexScreenerChainID, tokenAddress string) (float64, bool, error)
}
