package configloader

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when CONFIG_PATH is not set.
const DefaultPath = "config/config.yml"

// ServerConfig holds server-specific configurations.
type ServerConfig struct {
	Port                   string   `yaml:"port"`
	ReadTimeoutSeconds     int      `yaml:"readTimeoutSeconds"`
	WriteTimeoutSeconds    int      `yaml:"writeTimeoutSeconds"`
	ShutdownTimeoutSeconds int      `yaml:"shutdownTimeoutSeconds"`
	AllowedOrigins         []string `yaml:"allowedOrigins"`
	EnablePprof            bool     `yaml:"enablePprof"`
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// ProviderConfig tunes the endpoint pool and the dispatcher.
type ProviderConfig struct {
	Retries          int     `yaml:"retries"`
	FailureThreshold int     `yaml:"failureThreshold"`
	CooldownMs       int64   `yaml:"cooldownMs"`
	CallTimeoutMs    int64   `yaml:"callTimeoutMs"`
	FetchTimeoutMs   int64   `yaml:"fetchTimeoutMs"`
	BackoffMinMs     int64   `yaml:"backoffMinMs"`
	BackoffMaxMs     int64   `yaml:"backoffMaxMs"`
	RateLimit        float64 `yaml:"rateLimit"` // requests per second per endpoint, 0 = unlimited
	BurstLimit       int     `yaml:"burstLimit"`
	MaxBatchSize     int     `yaml:"maxBatchSize"`
}

// CacheConfig holds TTL classes of the response cache.
type CacheConfig struct {
	BalanceTTLMs       int64 `yaml:"balanceTTLMs"`
	TokenMetadataTTLMs int64 `yaml:"tokenMetadataTTLMs"`
	QuoteTTLMs         int64 `yaml:"quoteTTLMs"`
	CleanupIntervalMs  int64 `yaml:"cleanupIntervalMs"`
}

// ChainConfig overrides or extends a built-in chain definition.
type ChainConfig struct {
	Identifier         string   `yaml:"identifier"`
	Name               string   `yaml:"name"`
	ChainID            uint64   `yaml:"chainId"`
	Family             string   `yaml:"family"`
	NativeSymbol       string   `yaml:"nativeSymbol"`
	Decimals           uint8    `yaml:"decimals"`
	Endpoints          []string `yaml:"endpoints"`
	QuoteRouter        string   `yaml:"quoteRouter"`
	WrappedNative      string   `yaml:"wrappedNative"`
	DEXScreenerChainID string   `yaml:"dexScreenerChainId"`
}

// DEXScreenerConfig holds DEXScreener API specific configurations.
type DEXScreenerConfig struct {
	Enabled              bool   `yaml:"enabled"`
	BaseURL              string `yaml:"baseURL"`
	RequestTimeoutMillis int64  `yaml:"requestTimeoutMillis"`
	PriceCacheTTLMinutes int    `yaml:"priceCacheTTLMinutes"`
}

// TokenListConfig points at per-chain default token lists (<dir>/<identifier>.json).
type TokenListConfig struct {
	Dir string `yaml:"dir"`
}

// TracingConfig holds OpenTelemetry exporter settings.
type TracingConfig struct {
	OTLPEndpoint string `yaml:"otlpEndpoint"`
	ServiceName  string `yaml:"serviceName"`
	Insecure     bool   `yaml:"insecure"`
}

// PerformanceConfig holds performance-related configurations.
type PerformanceConfig struct {
	MaxConcurrentRoutines int `yaml:"max_concurrent_routines"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Provider    ProviderConfig    `yaml:"provider"`
	Cache       CacheConfig       `yaml:"cache"`
	Chains      []ChainConfig     `yaml:"chains"`
	DEXScreener DEXScreenerConfig `yaml:"dexScreener"`
	TokenLists  TokenListConfig   `yaml:"tokenLists"`
	Tracing     TracingConfig     `yaml:"tracing"`
	Performance PerformanceConfig `yaml:"performance"`
}

// PathFromEnv returns CONFIG_PATH or DefaultPath.
func PathFromEnv() string {
	if p := strings.TrimSpace(os.Getenv("CONFIG_PATH")); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads the YAML configuration file from the given path and unmarshals it.
func Load(path string) (*Config, error) {
	logrus.Infof("Loading configuration from path: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Errorf("Failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		logrus.Errorf("Failed to load config data from %s: %v", path, err)
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	logrus.Info("Configuration loaded successfully.")
	return cfg, nil
}

// Parse unmarshals raw YAML, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	// Keys absent from the document keep these sentinels.
	cfg := Config{Provider: ProviderConfig{Retries: -1}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config data: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ReadTimeoutSeconds <= 0 {
		c.Server.ReadTimeoutSeconds = 15
	}
	if c.Server.WriteTimeoutSeconds <= 0 {
		c.Server.WriteTimeoutSeconds = 30
	}
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		c.Server.ShutdownTimeoutSeconds = 10
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	// Zero retries is a valid choice.
	if c.Provider.Retries < 0 {
		c.Provider.Retries = 2
	}
	if c.Provider.FailureThreshold <= 0 {
		c.Provider.FailureThreshold = 3
		logrus.Infof("provider.failureThreshold not set, defaulting to %d", c.Provider.FailureThreshold)
	}
	if c.Provider.CooldownMs <= 0 {
		c.Provider.CooldownMs = 30_000
		logrus.Infof("provider.cooldownMs not set, defaulting to %d ms", c.Provider.CooldownMs)
	}
	if c.Provider.CallTimeoutMs <= 0 {
		c.Provider.CallTimeoutMs = 5_000
	}
	if c.Provider.FetchTimeoutMs <= 0 {
		c.Provider.FetchTimeoutMs = 20_000
	}
	if c.Provider.BackoffMinMs <= 0 {
		c.Provider.BackoffMinMs = 100
	}
	if c.Provider.BackoffMaxMs < c.Provider.BackoffMinMs {
		c.Provider.BackoffMaxMs = 2_000
		if c.Provider.BackoffMaxMs < c.Provider.BackoffMinMs {
			c.Provider.BackoffMaxMs = c.Provider.BackoffMinMs
		}
	}
	if c.Provider.BurstLimit <= 0 {
		c.Provider.BurstLimit = 1
	}
	if c.Provider.MaxBatchSize <= 0 {
		c.Provider.MaxBatchSize = 50
	}

	if c.Cache.BalanceTTLMs <= 0 {
		c.Cache.BalanceTTLMs = 5_000
	}
	if c.Cache.TokenMetadataTTLMs <= 0 {
		c.Cache.TokenMetadataTTLMs = 3_600_000
	}
	if c.Cache.QuoteTTLMs < 0 {
		c.Cache.QuoteTTLMs = 0
	}
	if c.Cache.QuoteTTLMs > 1_000 {
		logrus.Warnf("cache.quoteTTLMs %d exceeds 1000 ms, capping", c.Cache.QuoteTTLMs)
		c.Cache.QuoteTTLMs = 1_000
	}
	if c.Cache.CleanupIntervalMs <= 0 {
		c.Cache.CleanupIntervalMs = 60_000
	}

	for i := range c.Chains {
		c.Chains[i].Identifier = strings.ToLower(strings.TrimSpace(c.Chains[i].Identifier))
		if c.Chains[i].Family == "" {
			c.Chains[i].Family = "evm"
		}
		if c.Chains[i].DEXScreenerChainID == "" {
			c.Chains[i].DEXScreenerChainID = c.Chains[i].Identifier
		}
	}

	if c.DEXScreener.BaseURL == "" {
		c.DEXScreener.BaseURL = "https://api.dexscreener.com"
		logrus.Infof("DEXScreener.BaseURL not set, defaulting to %s", c.DEXScreener.BaseURL)
	}
	if c.DEXScreener.RequestTimeoutMillis <= 0 {
		c.DEXScreener.RequestTimeoutMillis = 10_000
	}
	if c.DEXScreener.PriceCacheTTLMinutes <= 0 {
		c.DEXScreener.PriceCacheTTLMinutes = 5
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "chain-provider"
	}
	if c.Performance.MaxConcurrentRoutines <= 0 {
		c.Performance.MaxConcurrentRoutines = 10
	}
}

func (c *Config) validate() error {
	seen := make(map[string]struct{}, len(c.Chains))
	for i, ch := range c.Chains {
		if ch.Identifier == "" {
			return fmt.Errorf("chains[%d]: identifier is required", i)
		}
		if _, dup := seen[ch.Identifier]; dup {
			return fmt.Errorf("chains[%d]: duplicate identifier %q", i, ch.Identifier)
		}
		seen[ch.Identifier] = struct{}{}
		if ch.Family != "evm" {
			return fmt.Errorf("chain %s: unsupported family %q", ch.Identifier, ch.Family)
		}
		for _, ep := range ch.Endpoints {
			if !strings.HasPrefix(ep, "http://") && !strings.HasPrefix(ep, "https://") {
				return fmt.Errorf("chain %s: endpoint %q must be an http(s) URL", ch.Identifier, ep)
			}
		}
	}
	return nil
}

// Duration helpers keep millisecond fields readable at call sites.
func Millis(ms int64) time.Duration { return time.Duration(ms) * time.Millisecond }

func (p ProviderConfig) Cooldown() time.Duration    { return Millis(p.CooldownMs) }
func (p ProviderConfig) CallTimeout() time.Duration { return Millis(p.CallTimeoutMs) }
func (p ProviderConfig) FetchTimeout() time.Duration {
	return Millis(p.FetchTimeoutMs)
}
func (p ProviderConfig) BackoffMin() time.Duration { return Millis(p.BackoffMinMs) }
func (p ProviderConfig) BackoffMax() time.Duration { return Millis(p.BackoffMaxMs) }
