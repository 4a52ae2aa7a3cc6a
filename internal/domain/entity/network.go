package entity

import "strconv"

// ChainFamily groups chains that share the same RPC dialect.
type ChainFamily string

const (
	// FamilyEVM covers Ethereum and every EVM-compatible network.
	FamilyEVM ChainFamily = "evm"
)

// ChainDefinition holds the configuration for a specific blockchain network.
// It is built once at startup and never mutated afterwards.
type ChainDefinition struct {
	ChainID            uint64      `json:"chainId" yaml:"chainId"`
	Name               string      `json:"name" yaml:"name"`
	Identifier         string      `json:"identifier" yaml:"identifier"`
	Family             ChainFamily `json:"family" yaml:"family"`
	NativeSymbol       string      `json:"nativeSymbol" yaml:"nativeSymbol"`
	Decimals           uint8       `json:"decimals" yaml:"decimals"`
	RPCURLs            []string    `json:"-" yaml:"rpcUrls"`
	BlockExplorerURL   string      `json:"blockExplorerUrl,omitempty" yaml:"blockExplorerUrl,omitempty"`
	DEXScreenerChainID string      `json:"dexScreenerChainId,omitempty" yaml:"dexScreenerChainId,omitempty"`
	// WrappedNativeTokenAddress is used as the intermediate hop for quotes.
	WrappedNativeTokenAddress string `json:"wrappedNativeTokenAddress,omitempty" yaml:"wrappedNativeTokenAddress,omitempty"`
	// QuoteRouterAddress is a UniswapV2-compatible router; quotes are unavailable without it.
	QuoteRouterAddress string `json:"quoteRouterAddress,omitempty" yaml:"quoteRouterAddress,omitempty"`
}

// ChainIDString returns the numeric chain id in base 10.
func (d ChainDefinition) ChainIDString() string {
	return strconv.FormatUint(d.ChainID, 10)
}

// SupportsQuotes reports whether a quote router is configured for the chain.
func (d ChainDefinition) SupportsQuotes() bool {
	return d.QuoteRouterAddress != "" && d.QuoteRouterAddress != ZeroAddress
}
