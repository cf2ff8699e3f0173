package chain

// Canonical chain table. RPC endpoints are ordered by static priority;
// the fallback client reorders them at call time based on health.
var defaultChains = []Config{
	{
		ID:   1,
		Name: "Ethereum",
		Native: NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
		Endpoints: []Endpoint{
			{URL: "https://eth.llamarpc.com", Provider: "llamarpc", Priority: 1},
			{URL: "https://ethereum-rpc.publicnode.com", Provider: "publicnode", Priority: 2},
			{URL: "https://rpc.ankr.com/eth", Provider: "ankr", Priority: 3},
		},
		ExplorerURL: "https://etherscan.io",
		DefaultTokens: []DefaultToken{
			{Symbol: "USDC", Name: "USD Coin", Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6, Verified: true},
			{Symbol: "USDT", Name: "Tether USD", Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Decimals: 6, Verified: true},
			{Symbol: "DAI", Name: "Dai Stablecoin", Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F", Decimals: 18, Verified: true},
			{Symbol: "WETH", Name: "Wrapped Ether", Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Decimals: 18, Verified: true},
		},
	},
	{
		ID:   10,
		Name: "Optimism",
		Native: NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
		Endpoints: []Endpoint{
			{URL: "https://mainnet.optimism.io", Provider: "optimism", Priority: 1},
			{URL: "https://optimism-rpc.publicnode.com", Provider: "publicnode", Priority: 2},
		},
		ExplorerURL: "https://optimistic.etherscan.io",
		DefaultTokens: []DefaultToken{
			{Symbol: "USDC", Name: "USD Coin", Address: "0x7F5c764cBc14f9669B88837ca1490cCa17c31607", Decimals: 6, Verified: true},
			{Symbol: "DAI", Name: "Dai Stablecoin", Address: "0xDA10009cBd5D07dd0CeCc66161FC93D7c9000da1", Decimals: 18, Verified: true},
			{Symbol: "WETH", Name: "Wrapped Ether", Address: "0x4200000000000000000000000000000000000006", Decimals: 18, Verified: true},
		},
	},
	{
		ID:   56,
		Name: "BNB Smart Chain",
		Native: NativeCurrency{Name: "BNB", Symbol: "BNB", Decimals: 18},
		Endpoints: []Endpoint{
			{URL: "https://bsc-dataseed.binance.org", Provider: "binance", Priority: 1},
			{URL: "https://bsc-rpc.publicnode.com", Provider: "publicnode", Priority: 2},
		},
		ExplorerURL: "https://bscscan.com",
		DefaultTokens: []DefaultToken{
			{Symbol: "USDC", Name: "USD Coin", Address: "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d", Decimals: 18, Verified: true},
			{Symbol: "USDT", Name: "Tether USD", Address: "0x55d398326f99059fF775485246999027B3197955", Decimals: 18, Verified: true},
		},
	},
	{
		ID:   137,
		Name: "Polygon",
		Native: NativeCurrency{Name: "POL", Symbol: "POL", Decimals: 18},
		Endpoints: []Endpoint{
			{URL: "https://polygon-rpc.com", Provider: "polygon", Priority: 1},
			{URL: "https://polygon-bor-rpc.publicnode.com", Provider: "publicnode", Priority: 2},
		},
		ExplorerURL: "https://polygonscan.com",
		DefaultTokens: []DefaultToken{
			{Symbol: "USDC", Name: "USD Coin", Address: "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359", Decimals: 6, Verified: true},
			{Symbol: "USDT", Name: "Tether USD", Address: "0xc2132D05D31c914a87C6611C10748AEb04B58e8F", Decimals: 6, Verified: true},
			{Symbol: "WETH", Name: "Wrapped Ether", Address: "0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619", Decimals: 18, Verified: true},
		},
	},
	{
		ID:   8453,
		Name: "Base",
		Native: NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
		Endpoints: []Endpoint{
			{URL: "https://mainnet.base.org", Provider: "base", Priority: 1},
			{URL: "https://base-rpc.publicnode.com", Provider: "publicnode", Priority: 2},
			{URL: "https://base.llamarpc.com", Provider: "llamarpc", Priority: 3},
		},
		ExplorerURL: "https://basescan.org",
		DefaultTokens: []DefaultToken{
			{Symbol: "USDC", Name: "USD Coin", Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: 6, Verified: true},
			{Symbol: "DAI", Name: "Dai Stablecoin", Address: "0x50c5725949A6F0c72E6C4a641F24049A917DB0Cb", Decimals: 18, Verified: true},
			{Symbol: "WETH", Name: "Wrapped Ether", Address: "0x4200000000000000000000000000000000000006", Decimals: 18, Verified: true},
		},
	},
	{
		ID:   42161,
		Name: "Arbitrum One",
		Native: NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
		Endpoints: []Endpoint{
			{URL: "https://arb1.arbitrum.io/rpc", Provider: "arbitrum", Priority: 1},
			{URL: "https://arbitrum-one-rpc.publicnode.com", Provider: "publicnode", Priority: 2},
		},
		ExplorerURL: "https://arbiscan.io",
		DefaultTokens: []DefaultToken{
			{Symbol: "USDC", Name: "USD Coin", Address: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831", Decimals: 6, Verified: true},
			{Symbol: "USDT", Name: "Tether USD", Address: "0xFd086bC7CD5C481DCC9C85ebe478A1C0b69FCbb9", Decimals: 6, Verified: true},
			{Symbol: "WETH", Name: "Wrapped Ether", Address: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1", Decimals: 18, Verified: true},
		},
	},
	{
		ID:   43114,
		Name: "Avalanche C-Chain",
		Native: NativeCurrency{Name: "Avalanche", Symbol: "AVAX", Decimals: 18},
		Endpoints: []Endpoint{
			{URL: "https://api.avax.network/ext/bc/C/rpc", Provider: "avalanche", Priority: 1},
			{URL: "https://avalanche-c-chain-rpc.publicnode.com", Provider: "publicnode", Priority: 2},
		},
		ExplorerURL: "https://snowtrace.io",
		DefaultTokens: []DefaultToken{
			{Symbol: "USDC", Name: "USD Coin", Address: "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E", Decimals: 6, Verified: true},
			{Symbol: "USDT", Name: "Tether USD", Address: "0x9702230A8Ea53601f5cD2dc00fDBc13d4dF4A8c7", Decimals: 6, Verified: true},
		},
	},
	{
		ID:        11155111,
		Name:      "Sepolia",
		Native:    NativeCurrency{Name: "Sepolia Ether", Symbol: "ETH", Decimals: 18},
		IsTestnet: true,
		Endpoints: []Endpoint{
			{URL: "https://ethereum-sepolia-rpc.publicnode.com", Provider: "publicnode", Priority: 1},
			{URL: "https://rpc.sepolia.org", Provider: "sepolia", Priority: 2},
		},
		ExplorerURL: "https://sepolia.etherscan.io",
	},
	{
		ID:        84532,
		Name:      "Base Sepolia",
		Native:    NativeCurrency{Name: "Sepolia Ether", Symbol: "ETH", Decimals: 18},
		IsTestnet: true,
		Endpoints: []Endpoint{
			{URL: "https://sepolia.base.org", Provider: "base", Priority: 1},
			{URL: "https://base-sepolia-rpc.publicnode.com", Provider: "publicnode", Priority: 2},
		},
		ExplorerURL: "https://sepolia.basescan.org",
	},
}

var defaultAliases = map[string]int64{
	"eth":          1,
	"ethereum":     1,
	"mainnet":      1,
	"optimism":     10,
	"op":           10,
	"bsc":          56,
	"bnb":          56,
	"binance":      56,
	"polygon":      137,
	"matic":        137,
	"base":         8453,
	"arbitrum":     42161,
	"arb":          42161,
	"avalanche":    43114,
	"avax":         43114,
	"sepolia":      11155111,
	"base-sepolia": 84532,
	"basesepolia":  84532,
}
