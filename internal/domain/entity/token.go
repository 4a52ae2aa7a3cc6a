package entity

import (
	"math/big"
	"time"
)

// TokenMetadata holds the on-chain description of an ERC20-like token.
type TokenMetadata struct {
	ChainID     string    `json:"chainId"`
	Address     string    `json:"address"`
	Name        string    `json:"name"`
	Symbol      string    `json:"symbol"`
	Decimals    uint8     `json:"decimals"`
	TotalSupply *big.Int  `json:"-"`
	RawSupply   string    `json:"totalSupply,omitempty"`
	FetchedAt   time.Time `json:"fetchedAt"`
}

// Clone returns a copy that shares no mutable state with m.
func (m *TokenMetadata) Clone() *TokenMetadata {
	out := *m
	out.TotalSupply = cloneInt(m.TotalSupply)
	return &out
}
