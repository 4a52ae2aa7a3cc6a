package cache

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"chain_provider/internal/domain/entity"
	"chain_provider/internal/pkg/metrics"
)

// MaxQuoteTTL bounds how long a quote may be reused.
const MaxQuoteTTL = time.Second

// TTLs are the freshness classes, one per query kind. Zero disables caching for the kind.
type TTLs struct {
	Balance       time.Duration
	TokenMetadata time.Duration
	Quote         time.Duration
}

// Entry is a cached value with the time it was fetched.
type Entry struct {
	Value     any
	FetchedAt time.Time
	Class     entity.QueryKind
	expiresAt time.Time
}

// Cache is an in-memory, TTL-bounded response cache keyed by canonical query keys.
type Cache struct {
	store   *gocache.Cache
	ttls    map[entity.QueryKind]time.Duration
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option customises a Cache.
type Option func(*Cache)

// WithClock replaces time.Now for TTL checks.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a cache. Expired items are purged every cleanupInterval.
func New(ttls TTLs, cleanupInterval time.Duration, m *metrics.Metrics, opts ...Option) *Cache {
	if ttls.Quote > MaxQuoteTTL {
		ttls.Quote = MaxQuoteTTL
	}
	c := &Cache{
		store: gocache.New(gocache.NoExpiration, cleanupInterval),
		ttls: map[entity.QueryKind]time.Duration{
			entity.KindBalance:       ttls.Balance,
			entity.KindTokenMetadata: ttls.TokenMetadata,
			entity.KindQuote:         ttls.Quote,
		},
		metrics: m,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the lifetime of entries of class.
func (c *Cache) TTL(class entity.QueryKind) time.Duration {
	return c.ttls[class]
}

// Get returns the entry for key if present and within its TTL.
func (c *Cache) Get(key string) (Entry, bool) {
	class := classOf(key)
	v, ok := c.store.Get(key)
	if !ok {
		c.metrics.CacheLookup(class, false)
		return Entry{}, false
	}
	e := v.(Entry)
	if !c.now().Before(e.expiresAt) {
		c.store.Delete(key)
		c.metrics.CacheLookup(class, false)
		return Entry{}, false
	}
	c.metrics.CacheLookup(class, true)
	return e, true
}

// Put stores value under key with the TTL of class. Classes with a zero TTL are not stored.
func (c *Cache) Put(key string, value any, class entity.QueryKind) {
	c.PutFetched(key, value, class, c.now())
}

// PutFetched is Put with an explicit fetch time; the TTL counts from fetchedAt.
func (c *Cache) PutFetched(key string, value any, class entity.QueryKind, fetchedAt time.Time) {
	ttl := c.ttls[class]
	if ttl <= 0 {
		return
	}
	expiresAt := fetchedAt.Add(ttl)
	remaining := expiresAt.Sub(c.now())
	if remaining <= 0 {
		return
	}
	c.store.Set(key, Entry{Value: value, FetchedAt: fetchedAt, Class: class, expiresAt: expiresAt}, remaining)
}

// Invalidate removes every key matching pred and returns how many were removed.
func (c *Cache) Invalidate(pred func(key string) bool) int {
	removed := 0
	for key := range c.store.Items() {
		if pred(key) {
			c.store.Delete(key)
			removed++
		}
	}
	return removed
}

// InvalidateWalletBalances drops every cached balance of address on chain.
func (c *Cache) InvalidateWalletBalances(chain, address string) int {
	prefix := entity.KeyPrefix(chain, entity.KindBalance) + entity.NormalizeAddress(address) + "|"
	return c.Invalidate(func(key string) bool { return strings.HasPrefix(key, prefix) })
}

// Len returns the number of stored items, including expired ones not yet purged.
func (c *Cache) Len() int {
	return c.store.ItemCount()
}

// classOf extracts the kind segment of a canonical key for metrics labels.
func classOf(key string) string {
	parts := strings.SplitN(key, "|", 3)
	if len(parts) < 2 {
		return "unknown"
	}
	return parts[1]
}
