package networkdefinition

import "chain_provider/internal/domain/entity"

// Built-in chain definitions. Configuration may override any field.
var ( //nolint:gochecknoglobals // Global for definitions
	Ethereum = entity.ChainDefinition{
		ChainID:                   1,
		Name:                      "Ethereum Mainnet",
		Identifier:                "ethereum",
		Family:                    entity.FamilyEVM,
		NativeSymbol:              "ETH",
		Decimals:                  18,
		RPCURLs:                   []string{"https://ethereum-rpc.publicnode.com", "https://rpc.ankr.com/eth", "https://ethereum.publicnode.com"},
		BlockExplorerURL:          "https://etherscan.io",
		DEXScreenerChainID:        "ethereum",
		WrappedNativeTokenAddress: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", // WETH
		QuoteRouterAddress:        "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D", // Uniswap V2
	}
	BSC = entity.ChainDefinition{
		ChainID:                   56,
		Name:                      "BNB Smart Chain",
		Identifier:                "bsc",
		Family:                    entity.FamilyEVM,
		NativeSymbol:              "BNB",
		Decimals:                  18,
		RPCURLs:                   []string{"https://1rpc.io/bnb", "https://bsc-dataseed2.binance.org/", "https://bsc.publicnode.com"},
		BlockExplorerURL:          "https://bscscan.com",
		DEXScreenerChainID:        "bsc",
		WrappedNativeTokenAddress: "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c", // WBNB
		QuoteRouterAddress:        "0x10ED43C718714eb63d5aA57B78B54704E256024E", // PancakeSwap V2
	}
	Polygon = entity.ChainDefinition{
		ChainID:                   137,
		Name:                      "Polygon PoS",
		Identifier:                "polygon",
		Family:                    entity.FamilyEVM,
		NativeSymbol:              "POL",
		Decimals:                  18,
		RPCURLs:                   []string{"https://polygon-rpc.com/", "https://rpc.ankr.com/polygon", "https://polygon.publicnode.com"},
		BlockExplorerURL:          "https://polygonscan.com",
		DEXScreenerChainID:        "polygon",
		WrappedNativeTokenAddress: "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270", // WPOL
		QuoteRouterAddress:        "0xa5E0829CaCEd8fFDD4De3c43696c57F7D7A678ff", // QuickSwap
	}
	Arbitrum = entity.ChainDefinition{
		ChainID:                   42161,
		Name:                      "Arbitrum One",
		Identifier:                "arbitrum",
		Family:                    entity.FamilyEVM,
		NativeSymbol:              "ETH",
		Decimals:                  18,
		RPCURLs:                   []string{"https://arb1.arbitrum.io/rpc", "https://arbitrum.llamarpc.com", "https://arbitrum.publicnode.com"},
		BlockExplorerURL:          "https://arbiscan.io",
		DEXScreenerChainID:        "arbitrum",
		WrappedNativeTokenAddress: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1",
		QuoteRouterAddress:        "0x1b02dA8Cb0d097eB8D57A175b88c7D8b47997506", // SushiSwap
	}
	Avalanche = entity.ChainDefinition{
		ChainID:                   43114,
		Name:                      "Avalanche C-Chain",
		Identifier:                "avalanche",
		Family:                    entity.FamilyEVM,
		NativeSymbol:              "AVAX",
		Decimals:                  18,
		RPCURLs:                   []string{"https://api.avax.network/ext/bc/C/rpc", "https://avalanche.public-rpc.com", "https://rpc.ankr.com/avalanche"},
		BlockExplorerURL:          "https://snowtrace.io",
		DEXScreenerChainID:        "avalanche",
		WrappedNativeTokenAddress: "0xB31f66AA3C1e785363F0875A1B74E27b85FD66c7", // WAVAX
		QuoteRouterAddress:        "0x60aE616a2155Ee3d9A68541Ba4544862310933d4", // Trader Joe
	}
	Base = entity.ChainDefinition{
		ChainID:                   8453,
		Name:                      "Base Mainnet",
		Identifier:                "base",
		Family:                    entity.FamilyEVM,
		NativeSymbol:              "ETH",
		Decimals:                  18,
		RPCURLs:                   []string{"https://1rpc.io/base", "https://base.publicnode.com", "https://base.llamarpc.com"},
		BlockExplorerURL:          "https://basescan.org",
		DEXScreenerChainID:        "base",
		WrappedNativeTokenAddress: "0x4200000000000000000000000000000000000006",
		QuoteRouterAddress:        "0x4752ba5DBc23f44D87826276BF6Fd6b1C372aD24", // Uniswap V2
	}
	Optimism = entity.ChainDefinition{
		ChainID:                   10,
		Name:                      "OP Mainnet",
		Identifier:                "optimism",
		Family:                    entity.FamilyEVM,
		NativeSymbol:              "ETH",
		Decimals:                  18,
		RPCURLs:                   []string{"https://op-pokt.nodies.app", "https://optimism.publicnode.com", "https://rpc.ankr.com/optimism"},
		BlockExplorerURL:          "https://optimistic.etherscan.io",
		DEXScreenerChainID:        "optimism",
		WrappedNativeTokenAddress: "0x4200000000000000000000000000000000000006",
		QuoteRouterAddress:        "0x4A7b5Da61326A6379179b40d00F57E5bbDC962c2", // Uniswap V2
	}
	Fantom = entity.ChainDefinition{
		ChainID:                   250,
		Name:                      "Fantom Opera",
		Identifier:                "fantom",
		Family:                    entity.FamilyEVM,
		NativeSymbol:              "FTM",
		Decimals:                  18,
		RPCURLs:                   []string{"https://1rpc.io/ftm", "https://fantom.publicnode.com", "https://rpc.ankr.com/fantom"},
		BlockExplorerURL:          "https://ftmscan.com",
		DEXScreenerChainID:        "fantom",
		WrappedNativeTokenAddress: "0x21be370D5312f44cB42ce377BC9b8a0cEF1A4C83", // WFTM
		QuoteRouterAddress:        "0xF491e7B69E4244ad4002BC14e878a34207E38c29", // SpookySwap
	}
	Gnosis = entity.ChainDefinition{
		ChainID:                   100,
		Name:                      "Gnosis Chain",
		Identifier:                "gnosis",
		Family:                    entity.FamilyEVM,
		NativeSymbol:              "xDAI",
		Decimals:                  18,
		RPCURLs:                   []string{"https://rpc.ankr.com/gnosis", "https://gnosis.publicnode.com"},
		BlockExplorerURL:          "https://gnosisscan.io",
		DEXScreenerChainID:        "gnosis",
		WrappedNativeTokenAddress: "0xe91D153E0b41518A2Ce8DD3D7944Fa863463A97d", // WXDAI
	}
	Linea = entity.ChainDefinition{
		ChainID:                   59144,
		Name:                      "Linea Mainnet",
		Identifier:                "linea",
		Family:                    entity.FamilyEVM,
		NativeSymbol:              "ETH",
		Decimals:                  18,
		RPCURLs:                   []string{"https://rpc.linea.build", "https://linea.blockpi.network/v1/rpc/public"},
		BlockExplorerURL:          "https://lineascan.build",
		DEXScreenerChainID:        "linea",
		WrappedNativeTokenAddress: "0xe5D7C2a44FfDDf6b295A15c148167daaAf5Cf34f",
	}
	Scroll = entity.ChainDefinition{
		ChainID:                   534352,
		Name:                      "Scroll",
		Identifier:                "scroll",
		Family:                    entity.FamilyEVM,
		NativeSymbol:              "ETH",
		Decimals:                  18,
		RPCURLs:                   []string{"https://rpc.scroll.io", "https://scroll.blockpi.network/v1/rpc/public"},
		BlockExplorerURL:          "https://scrollscan.com",
		DEXScreenerChainID:        "scroll",
		WrappedNativeTokenAddress: "0x5300000000000000000000000000000000000004",
	}
	ZkSync = entity.ChainDefinition{
		ChainID:                   324,
		Name:                      "zkSync Era Mainnet",
		Identifier:                "zksync",
		Family:                    entity.FamilyEVM,
		NativeSymbol:              "ETH",
		Decimals:                  18,
		RPCURLs:                   []string{"https://mainnet.era.zksync.io"},
		BlockExplorerURL:          "https://explorer.zksync.io",
		DEXScreenerChainID:        "zksync",
		WrappedNativeTokenAddress: "0x5AEa5775959fBC2557Cc8789bC1bf90A239D9a91",
	}
)

// builtinDefinitions keeps configuration order stable when no chains are configured.
var builtinDefinitions = []entity.ChainDefinition{ //nolint:gochecknoglobals
	Ethereum, BSC, Polygon, Arbitrum, Avalanche, Base, Optimism, Fantom, Gnosis, Linea, Scroll, ZkSync,
}
