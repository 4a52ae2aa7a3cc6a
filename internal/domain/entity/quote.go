package entity

import (
	"math/big"
	"time"
)

// Quote is an on-chain swap quote for an exact input amount.
type Quote struct {
	ChainID   string    `json:"chainId"`
	TokenIn   string    `json:"tokenIn"`
	TokenOut  string    `json:"tokenOut"`
	AmountIn  *big.Int  `json:"-"`
	AmountOut *big.Int  `json:"-"`
	Route     []string  `json:"route"`
	Router    string    `json:"router"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// PricedQuote is a Quote enriched with token details and valuations.
type PricedQuote struct {
	Quote
	AmountInRaw        string   `json:"amountIn"`
	AmountOutRaw       string   `json:"amountOut"`
	AmountInFormatted  string   `json:"amountInFormatted"`
	AmountOutFormatted string   `json:"amountOutFormatted"`
	TokenInSymbol      string   `json:"tokenInSymbol"`
	TokenOutSymbol     string   `json:"tokenOutSymbol"`
	ExecutionPrice     string   `json:"executionPrice"`
	ValueInUSD         *float64 `json:"valueInUSD,omitempty"`
	ValueOutUSD        *float64 `json:"valueOutUSD,omitempty"`
}

// Clone returns a copy that shares no mutable state with q.
func (q *Quote) Clone() *Quote {
	out := *q
	out.AmountIn = cloneInt(q.AmountIn)
	out.AmountOut = cloneInt(q.AmountOut)
	if q.Route != nil {
		out.Route = append([]string(nil), q.Route...)
	}
	return &out
}
