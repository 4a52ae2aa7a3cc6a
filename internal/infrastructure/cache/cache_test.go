package cache

import (
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chain_provider/internal/domain/entity"
	"chain_provider/internal/pkg/metrics"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

const (
	wallet = "0x1111111111111111111111111111111111111111"
	usdc   = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
)

func newTestCache(ttls TTLs) (*Cache, *clock) {
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(ttls, time.Minute, metrics.New(prometheus.NewRegistry()), WithClock(clk.Now)), clk
}

func defaultTTLs() TTLs {
	return TTLs{Balance: 5 * time.Second, TokenMetadata: time.Hour}
}

func TestPutGet_RoundTrip(t *testing.T) {
	c, _ := newTestCache(defaultTTLs())
	key := entity.BalanceQuery{Chain: "ethereum", Address: wallet, Token: usdc}.CacheKey()

	c.Put(key, "v", entity.KindBalance)
	e, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "v", e.Value)
	assert.Equal(t, entity.KindBalance, e.Class)
}

func TestGet_NeverPastTTL(t *testing.T) {
	c, clk := newTestCache(defaultTTLs())
	key := entity.BalanceQuery{Chain: "ethereum", Address: wallet}.CacheKey()
	c.Put(key, 1, entity.KindBalance)

	clk.Advance(4999 * time.Millisecond)
	_, ok := c.Get(key)
	assert.True(t, ok)

	clk.Advance(time.Millisecond)
	_, ok = c.Get(key)
	assert.False(t, ok, "entry expires exactly at its TTL")
}

func TestPut_QuoteNotCachedByDefault(t *testing.T) {
	c, _ := newTestCache(defaultTTLs())
	key := entity.QuoteQuery{Chain: "ethereum", TokenIn: usdc, TokenOut: wallet, AmountIn: big.NewInt(1)}.CacheKey()
	c.Put(key, "q", entity.KindQuote)
	_, ok := c.Get(key)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestNew_QuoteTTLCapped(t *testing.T) {
	c, _ := newTestCache(TTLs{Quote: time.Minute})
	assert.Equal(t, MaxQuoteTTL, c.TTL(entity.KindQuote))
}

func TestPutFetched_AgedEntry(t *testing.T) {
	c, clk := newTestCache(defaultTTLs())
	key := entity.BalanceQuery{Chain: "ethereum", Address: wallet}.CacheKey()

	fetched := clk.Now()
	clk.Advance(6 * time.Second)
	c.PutFetched(key, 1, entity.KindBalance, fetched)
	_, ok := c.Get(key)
	assert.False(t, ok, "a value older than its TTL is never stored")
}

func TestInvalidateWalletBalances(t *testing.T) {
	c, _ := newTestCache(defaultTTLs())
	other := "0x2222222222222222222222222222222222222222"

	native := entity.BalanceQuery{Chain: "ethereum", Address: wallet}.CacheKey()
	token := entity.BalanceQuery{Chain: "ethereum", Address: wallet, Token: usdc}.CacheKey()
	otherWallet := entity.BalanceQuery{Chain: "ethereum", Address: other}.CacheKey()
	otherChain := entity.BalanceQuery{Chain: "bsc", Address: wallet}.CacheKey()
	meta := entity.TokenMetadataQuery{Chain: "ethereum", Token: usdc}.CacheKey()
	for _, k := range []string{native, token, otherWallet, otherChain} {
		c.Put(k, 1, entity.KindBalance)
	}
	c.Put(meta, 1, entity.KindTokenMetadata)

	removed := c.InvalidateWalletBalances("Ethereum", "0x1111111111111111111111111111111111111111")
	assert.Equal(t, 2, removed)

	_, ok := c.Get(native)
	assert.False(t, ok)
	_, ok = c.Get(token)
	assert.False(t, ok)
	for _, k := range []string{otherWallet, otherChain, meta} {
		_, ok := c.Get(k)
		assert.True(t, ok, k)
	}
}

func TestInvalidate_Predicate(t *testing.T) {
	c, _ := newTestCache(defaultTTLs())
	c.Put("a|balance|x", 1, entity.KindBalance)
	c.Put("b|balance|x", 1, entity.KindBalance)
	assert.Equal(t, 1, c.Invalidate(func(k string) bool { return k[0] == 'a' }))
	assert.Equal(t, 1, c.Len())
}

func TestCacheKey_Canonical(t *testing.T) {
	upper := entity.BalanceQuery{Chain: "Ethereum", Address: "0xABCDEFabcdef0000000000000000000000000000", Token: usdc}
	lower := entity.BalanceQuery{Chain: "ethereum", Address: "0xabcdefabcdef0000000000000000000000000000", Token: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"}
	assert.Equal(t, upper.CacheKey(), lower.CacheKey())

	native1 := entity.BalanceQuery{Chain: "ethereum", Address: wallet}
	native2 := entity.BalanceQuery{Chain: "ethereum", Address: wallet, Token: entity.ZeroAddress}
	assert.Equal(t, native1.CacheKey(), native2.CacheKey())

	q1 := entity.QuoteQuery{Chain: "ethereum", TokenIn: usdc, TokenOut: wallet, AmountIn: big.NewInt(10)}
	q2 := entity.QuoteQuery{Chain: "ethereum", TokenIn: usdc, TokenOut: wallet, AmountIn: big.NewInt(11)}
	assert.NotEqual(t, q1.CacheKey(), q2.CacheKey())
}

func TestConcurrentAccess(t *testing.T) {
	c, _ := newTestCache(defaultTTLs())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := entity.BalanceQuery{Chain: "ethereum", Address: wallet}.CacheKey()
			c.Put(key, i, entity.KindBalance)
			c.Get(key)
			c.InvalidateWalletBalances("ethereum", wallet)
		}(i)
	}
	wg.Wait()
}
