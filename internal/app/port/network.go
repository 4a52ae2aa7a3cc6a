package port

import (
	"context"

	"chain_provider/internal/domain/entity"
)

// ChainClient speaks one chain family's RPC dialect against a single endpoint.
// Implementations are bound to one chain definition.
type ChainClient interface {
	FetchBalance(ctx context.Context, endpointURL string, q entity.BalanceQuery) (*entity.Balance, error)
	FetchTokenMetadata(ctx context.Context, endpointURL string, q entity.TokenMetadataQuery) (*entity.TokenMetadata, error)
	FetchQuote(ctx context.Context, endpointURL string, q entity.QuoteQuery) (*entity.Quote, error)

	// Definition returns the chain definition associated with this client.
	Definition() entity.ChainDefinition
}

// ChainClientProvider hands out the client for a chain.
type ChainClientProvider interface {
	GetClient(def entity.ChainDefinition) (ChainClient, error)
}

// ChainRegistry resolves chain identifiers or numeric ids to definitions.
type ChainRegistry interface {
	Resolve(chain string) (entity.ChainDefinition, bool)
	Chains() []entity.ChainDefinition
}
