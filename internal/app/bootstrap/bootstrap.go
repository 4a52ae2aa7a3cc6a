// Package bootstrap assembles the provider stack from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"chain_provider/internal/app/port"
	"chain_provider/internal/app/provider"
	"chain_provider/internal/app/service"
	"chain_provider/internal/infrastructure/cache"
	"chain_provider/internal/infrastructure/configloader"
	"chain_provider/internal/infrastructure/dexscreener"
	"chain_provider/internal/infrastructure/network/client"
	networkdefinition "chain_provider/internal/infrastructure/network/definition"
	"chain_provider/internal/infrastructure/network/dispatcher"
	"chain_provider/internal/infrastructure/network/pool"
	"chain_provider/internal/infrastructure/network/rpc"
	"chain_provider/internal/infrastructure/tokenloader"
	"chain_provider/internal/pkg/logger"
	"chain_provider/internal/pkg/metrics"
	"chain_provider/internal/pkg/tracing"
)

// App holds the wired components.
type App struct {
	Registry *networkdefinition.Registry
	Pool     *pool.Pool
	Facade   *provider.Facade
	Balances port.BalanceService
	Tokens   port.TokenService
	Quotes   port.QuoteService
	Metrics  *prometheus.Registry

	shutdownTracing func()
}

// New builds the provider stack described by cfg.
func New(ctx context.Context, cfg *configloader.Config, zapLogger *zap.Logger) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	registry, err := networkdefinition.NewRegistry(logger.Named(zapLogger, "registry"), cfg.Chains)
	if err != nil {
		shutdownTracing()
		return nil, fmt.Errorf("build chain registry: %w", err)
	}

	pc := cfg.Provider
	endpoints := pool.New(registry.Chains(), pool.Config{
		FailureThreshold: pc.FailureThreshold,
		Cooldown:         pc.Cooldown(),
		RateLimit:        pc.RateLimit,
		Burst:            pc.BurstLimit,
	}, logger.Named(zapLogger, "pool"), m)

	transport := rpc.NewClient(pc.CallTimeout(), pc.MaxBatchSize, logger.Named(zapLogger, "rpc"))
	clients := client.NewProvider(transport, logger.Named(zapLogger, "client"))
	disp := dispatcher.New(endpoints, registry, clients, dispatcher.Config{
		Retries:     pc.Retries,
		CallTimeout: pc.CallTimeout(),
		BackoffMin:  pc.BackoffMin(),
		BackoffMax:  pc.BackoffMax(),
	}, logger.Named(zapLogger, "dispatcher"), m)

	cc := cfg.Cache
	responses := cache.New(cache.TTLs{
		Balance:       configloader.Millis(cc.BalanceTTLMs),
		TokenMetadata: configloader.Millis(cc.TokenMetadataTTLMs),
		Quote:         configloader.Millis(cc.QuoteTTLMs),
	}, configloader.Millis(cc.CleanupIntervalMs), m)

	facade := provider.NewFacade(registry, disp, endpoints, responses, provider.Config{
		FetchTimeout: pc.FetchTimeout(),
	}, logger.Named(zapLogger, "provider"), m)

	var prices port.PriceSource
	if cfg.DEXScreener.Enabled {
		ds := dexscreener.NewClient(cfg.DEXScreener.BaseURL, configloader.Millis(cfg.DEXScreener.RequestTimeoutMillis), zapLogger)
		prices = dexscreener.NewPriceSource(ds, time.Duration(cfg.DEXScreener.PriceCacheTTLMinutes)*time.Minute, zapLogger)
		zapLogger.Info("DEXScreener price source enabled", zap.String("baseURL", cfg.DEXScreener.BaseURL))
	}

	lists, err := tokenloader.Load(cfg.TokenLists.Dir, registry.Chains(), logger.Named(zapLogger, "tokenlists"))
	if err != nil {
		shutdownTracing()
		return nil, fmt.Errorf("load token lists: %w", err)
	}

	workers := cfg.Performance.MaxConcurrentRoutines
	return &App{
		Registry:        registry,
		Pool:            endpoints,
		Facade:          facade,
		Balances:        service.NewBalanceService(facade, lists, logger.Named(zapLogger, "balances"), workers),
		Tokens:          service.NewTokenService(facade, logger.Named(zapLogger, "tokens"), workers),
		Quotes:          service.NewQuoteService(facade, prices, logger.Named(zapLogger, "quotes")),
		Metrics:         reg,
		shutdownTracing: shutdownTracing,
	}, nil
}

// Close flushes telemetry.
func (a *App) Close() {
	if a.shutdownTracing != nil {
		a.shutdownTracing()
	}
}
