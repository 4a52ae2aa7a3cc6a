package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"chain_provider/internal/app/port"
	"chain_provider/internal/domain/entity"
	"chain_provider/internal/pkg/utils"
)

// MaxTokensPerBatch bounds a single GetTokens call.
const MaxTokensPerBatch = 100

// TokenServiceImpl implements port.TokenService.
type TokenServiceImpl struct {
	provider              port.ChainDataProvider
	logger                port.Logger
	maxConcurrentRoutines int
}

var _ port.TokenService = (*TokenServiceImpl)(nil)

// NewTokenService creates a new instance of TokenServiceImpl.
func NewTokenService(p port.ChainDataProvider, l port.Logger, maxRoutines int) *TokenServiceImpl {
	if maxRoutines <= 0 {
		maxRoutines = 1
	}
	return &TokenServiceImpl{provider: p, logger: l, maxConcurrentRoutines: maxRoutines}
}

// GetToken returns metadata of one token.
func (s *TokenServiceImpl) GetToken(ctx context.Context, chain, token string) (*entity.TokenMetadata, error) {
	return s.provider.GetTokenMetadata(ctx, token, chain)
}

// GetTokens looks up several tokens at once. Tokens that fail are listed separately,
// in request order.
func (s *TokenServiceImpl) GetTokens(ctx context.Context, chain string, tokens []string) ([]entity.TokenMetadata, []entity.BalanceError, error) {
	tokens = utils.UniqueLower(tokens)
	if len(tokens) == 0 {
		return nil, nil, invalidRequest("GetTokens", chain, "at least one token address is required")
	}
	if len(tokens) > MaxTokensPerBatch {
		return nil, nil, invalidRequest("GetTokens", chain, "at most %d tokens per request, got %d", MaxTokensPerBatch, len(tokens))
	}

	results := make([]*entity.TokenMetadata, len(tokens))
	errs := make([]error, len(tokens))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrentRoutines)
	for i, token := range tokens {
		g.Go(func() error {
			results[i], errs[i] = s.provider.GetTokenMetadata(gctx, token, chain)
			return nil
		})
	}
	_ = g.Wait()

	found := make([]entity.TokenMetadata, 0, len(tokens))
	var failed []entity.BalanceError
	for i, token := range tokens {
		if errs[i] != nil {
			failed = append(failed, toBalanceError(token, errs[i]))
			continue
		}
		found = append(found, *results[i])
	}
	s.logger.Debug("Token batch resolved", "chain", chain, "requested", len(tokens), "found", len(found), "failed", len(failed))
	return found, failed, nil
}
