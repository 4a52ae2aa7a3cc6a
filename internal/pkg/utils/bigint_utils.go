package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatBigInt converts a base-unit amount into a human-readable decimal string.
// Example: amount=1234500000000000000, decimals=18 => "1.2345"
func FormatBigInt(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return ToDecimal(amount, decimals).String()
}

// ToDecimal scales a base-unit amount by 10^-decimals.
func ToDecimal(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals))
}

// ParseAmount parses a positive integer amount in base units (decimal or 0x-hex).
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("amount is empty")
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("amount %q is not an integer", s)
	}
	if v.Sign() <= 0 {
		return nil, fmt.Errorf("amount %q must be positive", s)
	}
	return v, nil
}

// ExecutionPrice returns amountOut per amountIn in whole-token units, rounded to 18 places.
func ExecutionPrice(amountIn *big.Int, decimalsIn uint8, amountOut *big.Int, decimalsOut uint8) string {
	in := ToDecimal(amountIn, decimalsIn)
	if in.IsZero() {
		return "0"
	}
	return ToDecimal(amountOut, decimalsOut).DivRound(in, 18).String()
}
