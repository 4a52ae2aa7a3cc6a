package entity

import (
	"math/big"
	"strings"
)

// ZeroAddress denotes the chain's native asset wherever a token address is expected.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// QueryKind identifies the type of data a Query requests.
type QueryKind string

const (
	KindBalance       QueryKind = "balance"
	KindTokenMetadata QueryKind = "token_metadata"
	KindQuote         QueryKind = "quote"
)

// Query is a request for on-chain data scoped to exactly one chain.
type Query interface {
	Kind() QueryKind
	// ChainID returns the chain identifier the query must be served from.
	ChainID() string
	// CacheKey returns the canonical key; equivalent queries share a key.
	CacheKey() string
}

// BalanceQuery asks for the balance of Token held by Address.
// An empty or zero Token means the native asset.
type BalanceQuery struct {
	Chain   string
	Address string
	Token   string
}

func (q BalanceQuery) Kind() QueryKind { return KindBalance }
func (q BalanceQuery) ChainID() string { return q.Chain }
func (q BalanceQuery) CacheKey() string {
	return buildKey(q.Chain, KindBalance, NormalizeAddress(q.Address), NormalizeToken(q.Token))
}

// IsNative reports whether the query targets the native asset.
func (q BalanceQuery) IsNative() bool { return IsNativeToken(q.Token) }

// TokenMetadataQuery asks for the name, symbol and decimals of Token.
type TokenMetadataQuery struct {
	Chain string
	Token string
}

func (q TokenMetadataQuery) Kind() QueryKind { return KindTokenMetadata }
func (q TokenMetadataQuery) ChainID() string { return q.Chain }
func (q TokenMetadataQuery) CacheKey() string {
	return buildKey(q.Chain, KindTokenMetadata, NormalizeToken(q.Token))
}

// QuoteQuery asks how much TokenOut is received for AmountIn of TokenIn.
type QuoteQuery struct {
	Chain    string
	TokenIn  string
	TokenOut string
	AmountIn *big.Int
}

func (q QuoteQuery) Kind() QueryKind { return KindQuote }
func (q QuoteQuery) ChainID() string { return q.Chain }
func (q QuoteQuery) CacheKey() string {
	amount := "0"
	if q.AmountIn != nil {
		amount = q.AmountIn.String()
	}
	return buildKey(q.Chain, KindQuote, NormalizeToken(q.TokenIn), NormalizeToken(q.TokenOut), amount)
}

// KeyPrefix returns the key prefix shared by every query of kind on chain.
func KeyPrefix(chain string, kind QueryKind) string {
	return buildKey(chain, kind) + "|"
}

// NormalizeAddress lowercases and trims a hex address.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// NormalizeToken is NormalizeAddress with the native asset mapped to ZeroAddress.
func NormalizeToken(token string) string {
	if IsNativeToken(token) {
		return ZeroAddress
	}
	return NormalizeAddress(token)
}

// IsNativeToken reports whether token refers to the chain's native asset.
func IsNativeToken(token string) bool {
	t := NormalizeAddress(token)
	return t == "" || t == ZeroAddress || t == "native"
}

func buildKey(chain string, kind QueryKind, parts ...string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(chain))
	b.WriteByte('|')
	b.WriteString(string(kind))
	for _, p := range parts {
		b.WriteByte('|')
		b.WriteString(p)
	}
	return b.String()
}
