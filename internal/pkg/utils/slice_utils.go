package utils

import (
	"strings"

	"chain_provider/internal/domain/entity"
)

// Batch splits items into batches of at most batchSize. Batches share items' backing array.
func Batch[T any](items []T, batchSize int) [][]T {
	if batchSize <= 0 {
		batchSize = len(items)
	}
	if len(items) == 0 {
		return [][]T{}
	}

	var batches [][]T
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[i:end])
	}
	return batches
}

// UniqueLower trims, lowercases and de-duplicates items, dropping empty ones.
// Order of first appearance is kept.
func UniqueLower(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		v := strings.ToLower(strings.TrimSpace(it))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// SafeDerefFloat64 reads a field of a possibly nil liquidity block.
func SafeDerefFloat64(liquidity *entity.DEXLiquidity, getter func(entity.DEXLiquidity) float64) float64 {
	if liquidity == nil {
		return 0.0
	}
	return getter(*liquidity)
}
