package networkdefinition

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"chain_provider/internal/app/port"
	"chain_provider/internal/domain/entity"
	"chain_provider/internal/infrastructure/configloader"
)

// Registry resolves chain identifiers to immutable chain definitions.
type Registry struct {
	logger      port.Logger
	byID        map[string]entity.ChainDefinition
	byNumericID map[uint64]string
	ordered     []entity.ChainDefinition
}

// NewRegistry builds the active chain set. When chains are configured only those are
// active, each merged over a built-in definition of the same identifier if one exists.
// Without configured chains every built-in definition is active.
func NewRegistry(log port.Logger, chains []configloader.ChainConfig) (*Registry, error) {
	r := &Registry{
		logger:      log,
		byID:        make(map[string]entity.ChainDefinition),
		byNumericID: make(map[uint64]string),
	}

	if len(chains) == 0 {
		for _, def := range builtinDefinitions {
			if err := r.add(cloneDefinition(def)); err != nil {
				return nil, err
			}
		}
		r.logger.Info("Chain registry initialized from built-in definitions", "chains", len(r.ordered))
		return r, nil
	}

	builtins := make(map[string]entity.ChainDefinition, len(builtinDefinitions))
	for _, def := range builtinDefinitions {
		builtins[def.Identifier] = def
	}

	for _, cc := range chains {
		def, known := builtins[cc.Identifier]
		if known {
			def = cloneDefinition(def)
		} else {
			def = entity.ChainDefinition{Identifier: cc.Identifier, Decimals: 18}
		}
		mergeChainConfig(&def, cc)
		if err := validateDefinition(def); err != nil {
			return nil, err
		}
		if err := r.add(def); err != nil {
			return nil, err
		}
		r.logger.Debug("Chain activated", "chain", def.Identifier, "chainId", def.ChainID, "endpoints", len(def.RPCURLs), "builtin", known)
	}
	r.logger.Info("Chain registry initialized", "chains", len(r.ordered))
	return r, nil
}

func (r *Registry) add(def entity.ChainDefinition) error {
	if _, dup := r.byNumericID[def.ChainID]; dup {
		return fmt.Errorf("chain %s: chain id %d already registered", def.Identifier, def.ChainID)
	}
	r.byID[def.Identifier] = def
	r.byNumericID[def.ChainID] = def.Identifier
	r.ordered = append(r.ordered, def)
	return nil
}

// Chains returns all active definitions in configuration order.
func (r *Registry) Chains() []entity.ChainDefinition {
	if r == nil {
		return []entity.ChainDefinition{}
	}
	defsCopy := make([]entity.ChainDefinition, len(r.ordered))
	for i, def := range r.ordered {
		defsCopy[i] = cloneDefinition(def)
	}
	return defsCopy
}

// Resolve looks a chain up by identifier (case-insensitive) or numeric chain id.
func (r *Registry) Resolve(chain string) (entity.ChainDefinition, bool) {
	if r == nil {
		return entity.ChainDefinition{}, false
	}
	key := strings.ToLower(strings.TrimSpace(chain))
	if def, ok := r.byID[key]; ok {
		return cloneDefinition(def), true
	}
	if n, err := strconv.ParseUint(key, 10, 64); err == nil {
		if id, ok := r.byNumericID[n]; ok {
			return cloneDefinition(r.byID[id]), true
		}
	}
	return entity.ChainDefinition{}, false
}

func mergeChainConfig(def *entity.ChainDefinition, cc configloader.ChainConfig) {
	if cc.Name != "" {
		def.Name = cc.Name
	}
	if cc.ChainID != 0 {
		def.ChainID = cc.ChainID
	}
	if cc.Family != "" {
		def.Family = entity.ChainFamily(cc.Family)
	}
	if cc.NativeSymbol != "" {
		def.NativeSymbol = cc.NativeSymbol
	}
	if cc.Decimals != 0 {
		def.Decimals = cc.Decimals
	}
	if len(cc.Endpoints) > 0 {
		def.RPCURLs = append([]string(nil), cc.Endpoints...)
	}
	if cc.QuoteRouter != "" {
		def.QuoteRouterAddress = cc.QuoteRouter
	}
	if cc.WrappedNative != "" {
		def.WrappedNativeTokenAddress = cc.WrappedNative
	}
	if cc.DEXScreenerChainID != "" {
		def.DEXScreenerChainID = cc.DEXScreenerChainID
	}
	if def.Name == "" {
		def.Name = def.Identifier
	}
}

func validateDefinition(def entity.ChainDefinition) error {
	if def.ChainID == 0 {
		return fmt.Errorf("chain %s: chainId is required", def.Identifier)
	}
	if len(def.RPCURLs) == 0 {
		return fmt.Errorf("chain %s: at least one endpoint is required", def.Identifier)
	}
	if def.QuoteRouterAddress != "" && !common.IsHexAddress(def.QuoteRouterAddress) {
		return fmt.Errorf("chain %s: invalid quote router %q", def.Identifier, def.QuoteRouterAddress)
	}
	if def.WrappedNativeTokenAddress != "" && !common.IsHexAddress(def.WrappedNativeTokenAddress) {
		return fmt.Errorf("chain %s: invalid wrapped native token %q", def.Identifier, def.WrappedNativeTokenAddress)
	}
	return nil
}

func cloneDefinition(def entity.ChainDefinition) entity.ChainDefinition {
	def.RPCURLs = append([]string(nil), def.RPCURLs...)
	return def
}
