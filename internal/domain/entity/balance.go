package entity

import (
	"math/big"
	"time"
)

// Balance represents the amount of a specific token held by a wallet on a chain.
type Balance struct {
	ChainID          string    `json:"chainId"`
	WalletAddress    string    `json:"walletAddress"`
	TokenAddress     string    `json:"tokenAddress"`
	TokenSymbol      string    `json:"tokenSymbol,omitempty"`
	Decimals         uint8     `json:"decimals"`
	IsNative         bool      `json:"isNative"`
	Amount           *big.Int  `json:"-"`
	RawAmount        string    `json:"rawAmount"`
	FormattedBalance string    `json:"formattedBalance"`
	FetchedAt        time.Time `json:"fetchedAt"`
}

// WalletBalances is the aggregated view of one wallet on one chain.
type WalletBalances struct {
	ChainID       string         `json:"chainId"`
	WalletAddress string         `json:"walletAddress"`
	Balances      []Balance      `json:"balances"`
	Errors        []BalanceError `json:"errors,omitempty"`
}

// BalanceError describes a token whose balance could not be fetched.
type BalanceError struct {
	TokenAddress string    `json:"tokenAddress"`
	Kind         ErrorKind `json:"kind"`
	Message      string    `json:"message"`
}

// Clone returns a copy that shares no mutable state with b.
func (b *Balance) Clone() *Balance {
	out := *b
	out.Amount = cloneInt(b.Amount)
	return &out
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
