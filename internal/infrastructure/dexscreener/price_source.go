package dexscreener

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"chain_provider/internal/app/port"
	"chain_provider/internal/domain/entity"
	"chain_provider/internal/pkg/utils"
)

var stablecoinSymbols = map[string]struct{}{
	"USDC": {},
	"USDT": {},
	"DAI":  {},
}

// PairFetcher is the part of Client the price source needs.
type PairFetcher interface {
	GetTokenPairsByAddresses(ctx context.Context, dexscreenerChainID string, tokenAddresses []string) ([]entity.PairData, error)
}

// PriceSource resolves USD token prices from DEX Screener pairs and caches them.
type PriceSource struct {
	fetcher PairFetcher
	prices  *cache.Cache // "dexChainID_token" -> float64, negative results stored as missing
	logger  *zap.Logger
}

type cachedPrice struct {
	price float64
	found bool
}

var _ port.PriceSource = (*PriceSource)(nil)

// NewPriceSource creates a price source whose entries live for ttl.
func NewPriceSource(fetcher PairFetcher, ttl time.Duration, logger *zap.Logger) *PriceSource {
	return &PriceSource{
		fetcher: fetcher,
		prices:  cache.New(ttl, 2*ttl),
		logger:  logger.Named("PriceSource"),
	}
}

// GetPriceUSD implements port.PriceSource.
func (s *PriceSource) GetPriceUSD(ctx context.Context, dexChainID, tokenAddress string) (float64, bool, error) {
	if dexChainID == "" {
		return 0, false, nil
	}
	token := strings.ToLower(tokenAddress)
	key := fmt.Sprintf("%s_%s", strings.ToLower(dexChainID), token)
	if v, ok := s.prices.Get(key); ok {
		cp := v.(cachedPrice)
		return cp.price, cp.found, nil
	}

	pairs, err := s.fetcher.GetTokenPairsByAddresses(ctx, dexChainID, []string{token})
	if err != nil {
		return 0, false, err
	}
	priceStr := selectBestPriceFromPairs(pairs, token)
	if priceStr == "" {
		s.logger.Debug("No suitable price found from pairs",
			zap.String("dexChainID", dexChainID),
			zap.String("tokenAddress", token),
			zap.Int("evaluatedPairCount", len(pairs)))
		s.prices.Set(key, cachedPrice{}, cache.DefaultExpiration)
		return 0, false, nil
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse price %q of %s: %w", priceStr, token, err)
	}
	s.prices.Set(key, cachedPrice{price: price, found: true}, cache.DefaultExpiration)
	s.logger.Debug("Cached price for token", zap.String("cacheKey", key), zap.Float64("price", price))
	return price, true, nil
}

// selectBestPriceFromPairs picks the USD price of baseTokenAddress.
// Pairs quoted in a stablecoin win; within a group the highest liquidity wins.
func selectBestPriceFromPairs(pairs []entity.PairData, baseTokenAddress string) string {
	var bestOverall, bestStable *entity.PairData
	liq := func(p *entity.PairData) float64 {
		return utils.SafeDerefFloat64(p.Liquidity, func(l entity.DEXLiquidity) float64 { return l.Usd })
	}

	for i := range pairs {
		pair := &pairs[i]
		if !strings.EqualFold(pair.BaseToken.Address, baseTokenAddress) {
			continue
		}
		if pair.PriceUsd == "" || pair.PriceUsd == "0" {
			continue
		}
		if _, ok := stablecoinSymbols[strings.ToUpper(pair.QuoteToken.Symbol)]; ok {
			if bestStable == nil || liq(pair) > liq(bestStable) {
				bestStable = pair
			}
		}
		if bestOverall == nil || liq(pair) > liq(bestOverall) {
			bestOverall = pair
		}
	}

	switch {
	case bestStable != nil:
		return bestStable.PriceUsd
	case bestOverall != nil:
		return bestOverall.PriceUsd
	}
	return ""
}
