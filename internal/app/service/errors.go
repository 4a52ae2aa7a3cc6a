package service

import (
	"fmt"

	"chain_provider/internal/domain/entity"
)

func invalidRequest(op, chain, format string, args ...any) error {
	return &entity.ProviderError{
		Kind:    entity.KindInvalidRequest,
		Op:      op,
		ChainID: chain,
		Detail:  fmt.Sprintf(format, args...),
	}
}

// toBalanceError records a per-token failure for partial results.
func toBalanceError(token string, err error) entity.BalanceError {
	kind, ok := entity.KindOf(err)
	if !ok {
		kind = entity.KindUpstreamUnavailable
	}
	return entity.BalanceError{TokenAddress: entity.NormalizeToken(token), Kind: kind, Message: entity.PublicMessage(err)}
}
