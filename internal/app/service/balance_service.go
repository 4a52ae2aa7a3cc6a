package service

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	"chain_provider/internal/app/port"
	"chain_provider/internal/domain/entity"
	"chain_provider/internal/pkg/utils"
)

// BalanceServiceImpl implements port.BalanceService on top of the chain data provider.
type BalanceServiceImpl struct {
	provider              port.ChainDataProvider
	defaults              port.TokenListProvider // optional
	logger                port.Logger
	maxConcurrentRoutines int
}

var _ port.BalanceService = (*BalanceServiceImpl)(nil)

// NewBalanceService creates a new instance of BalanceServiceImpl. defaults may be nil.
func NewBalanceService(p port.ChainDataProvider, defaults port.TokenListProvider, l port.Logger, maxRoutines int) *BalanceServiceImpl {
	if maxRoutines <= 0 {
		maxRoutines = 1
	}
	return &BalanceServiceImpl{provider: p, defaults: defaults, logger: l, maxConcurrentRoutines: maxRoutines}
}

// GetBalance returns a single balance.
func (s *BalanceServiceImpl) GetBalance(ctx context.Context, chain, address, token string) (*entity.Balance, error) {
	return s.provider.GetBalance(ctx, address, token, chain)
}

// GetWalletBalances returns the native balance of address followed by each requested token.
// Without tokens the chain's default token list is used.
// Failures of individual tokens are reported in the result instead of failing the call;
// an invalid wallet or chain fails the whole call.
func (s *BalanceServiceImpl) GetWalletBalances(ctx context.Context, chain, address string, tokens []string) (*entity.WalletBalances, error) {
	native, err := s.provider.GetBalance(ctx, address, "", chain)
	if err != nil && errors.Is(err, entity.ErrInvalidRequest) {
		return nil, err
	}

	out := &entity.WalletBalances{
		ChainID:       chain,
		WalletAddress: entity.NormalizeAddress(address),
		Balances:      []entity.Balance{},
	}
	if native != nil {
		out.ChainID = native.ChainID
		out.Balances = append(out.Balances, *native)
	} else {
		out.Errors = append(out.Errors, toBalanceError(entity.ZeroAddress, err))
	}

	if len(tokens) == 0 && s.defaults != nil {
		tokens = s.defaults.TokensFor(s.identifier(chain))
	}
	tokens = utils.UniqueLower(tokens)
	results := make([]*entity.Balance, len(tokens))
	errs := make([]error, len(tokens))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrentRoutines)
	for i, token := range tokens {
		if entity.IsNativeToken(token) {
			continue
		}
		g.Go(func() error {
			// Per-token errors are collected, never returned, so one bad token does not cancel the rest.
			results[i], errs[i] = s.provider.GetBalance(gctx, address, token, chain)
			return nil
		})
	}
	_ = g.Wait()

	for i, token := range tokens {
		switch {
		case results[i] != nil:
			out.Balances = append(out.Balances, *results[i])
		case errs[i] != nil:
			out.Errors = append(out.Errors, toBalanceError(token, errs[i]))
		}
	}

	if len(out.Errors) > 0 {
		s.logger.Debug("Wallet balances fetched with errors",
			"chain", out.ChainID, "address", out.WalletAddress, "balances", len(out.Balances), "errors", len(out.Errors))
	}
	return out, nil
}

func (s *BalanceServiceImpl) identifier(chain string) string {
	for _, def := range s.provider.Chains() {
		if strings.EqualFold(def.Identifier, chain) || def.ChainIDString() == chain {
			return def.Identifier
		}
	}
	return chain
}

// InvalidateBalances drops cached balances of address.
func (s *BalanceServiceImpl) InvalidateBalances(chain, address string) (int, error) {
	return s.provider.InvalidateBalances(chain, address)
}
