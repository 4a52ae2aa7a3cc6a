package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"chain_provider/internal/app/port"
	"chain_provider/internal/domain/entity"
	"chain_provider/internal/pkg/utils"
)

// QuoteServiceImpl implements port.QuoteService: router quotes enriched with token
// details and, when a price source is configured, USD valuation.
type QuoteServiceImpl struct {
	provider port.ChainDataProvider
	prices   port.PriceSource // optional
	logger   port.Logger
}

var _ port.QuoteService = (*QuoteServiceImpl)(nil)

// NewQuoteService creates a new instance of QuoteServiceImpl. prices may be nil.
func NewQuoteService(p port.ChainDataProvider, prices port.PriceSource, l port.Logger) *QuoteServiceImpl {
	return &QuoteServiceImpl{provider: p, prices: prices, logger: l}
}

// GetQuote quotes amount base units of tokenIn into tokenOut on chain.
func (s *QuoteServiceImpl) GetQuote(ctx context.Context, chain, tokenIn, tokenOut, amount string) (*entity.PricedQuote, error) {
	amountIn, err := utils.ParseAmount(amount)
	if err != nil {
		return nil, invalidRequest("GetQuote", chain, "%v", err)
	}

	q, err := s.provider.GetQuote(ctx, tokenIn, tokenOut, amountIn, chain)
	if err != nil {
		return nil, err
	}

	pq := &entity.PricedQuote{
		Quote:        *q,
		AmountInRaw:  q.AmountIn.String(),
		AmountOutRaw: q.AmountOut.String(),
	}

	// Token details only decorate the quote; a failed lookup leaves those fields empty.
	// A plain group keeps one failed lookup from canceling the other.
	var (
		g           errgroup.Group
		mdIn, mdOut *entity.TokenMetadata
	)
	g.Go(func() (err error) {
		mdIn, err = s.provider.GetTokenMetadata(ctx, tokenIn, q.ChainID)
		return err
	})
	g.Go(func() (err error) {
		mdOut, err = s.provider.GetTokenMetadata(ctx, tokenOut, q.ChainID)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Debug("Token metadata unavailable for quote", "chain", q.ChainID, "tokenIn", tokenIn, "tokenOut", tokenOut, "error", err)
	}

	if mdIn != nil {
		pq.TokenInSymbol = mdIn.Symbol
		pq.AmountInFormatted = utils.FormatBigInt(q.AmountIn, mdIn.Decimals)
	}
	if mdOut != nil {
		pq.TokenOutSymbol = mdOut.Symbol
		pq.AmountOutFormatted = utils.FormatBigInt(q.AmountOut, mdOut.Decimals)
	}
	if mdIn != nil && mdOut != nil {
		pq.ExecutionPrice = utils.ExecutionPrice(q.AmountIn, mdIn.Decimals, q.AmountOut, mdOut.Decimals)
		pq.ValueInUSD = s.valueUSD(ctx, q.ChainID, tokenIn, utils.ToDecimal(q.AmountIn, mdIn.Decimals))
		pq.ValueOutUSD = s.valueUSD(ctx, q.ChainID, tokenOut, utils.ToDecimal(q.AmountOut, mdOut.Decimals))
	}
	return pq, nil
}

// valueUSD prices whole units of token; native assets are priced through their wrapped token.
func (s *QuoteServiceImpl) valueUSD(ctx context.Context, chain, token string, units decimal.Decimal) *float64 {
	if s.prices == nil {
		return nil
	}
	def, ok := s.definition(chain)
	if !ok || def.DEXScreenerChainID == "" {
		return nil
	}
	addr := entity.NormalizeToken(token)
	if entity.IsNativeToken(token) {
		if def.WrappedNativeTokenAddress == "" {
			return nil
		}
		addr = strings.ToLower(def.WrappedNativeTokenAddress)
	}

	price, found, err := s.prices.GetPriceUSD(ctx, def.DEXScreenerChainID, addr)
	if err != nil {
		s.logger.Warn("USD price lookup failed", "chain", chain, "token", addr, "error", err)
		return nil
	}
	if !found {
		return nil
	}
	v, _ := units.Mul(decimal.NewFromFloat(price)).Float64()
	return &v
}

func (s *QuoteServiceImpl) definition(chain string) (entity.ChainDefinition, bool) {
	for _, def := range s.provider.Chains() {
		if def.Identifier == chain {
			return def, true
		}
	}
	return entity.ChainDefinition{}, false
}
