// Package token describes ERC-20 tokens used for DEX aggregator quotes,
// with presets for the chains the scanner knows about.
package token

import "fmt"

// ChainID identifies an EVM chain.
type ChainID uint64

const (
	ChainEthereum ChainID = 1
	ChainBSC      ChainID = 56
	ChainBase     ChainID = 8453
)

// Name returns the chain slug used in aggregator API paths.
func (c ChainID) Name() string {
	switch c {
	case ChainEthereum:
		return "ethereum"
	case ChainBSC:
		return "bsc"
	case ChainBase:
		return "base"
	}
	return fmt.Sprintf("chain-%d", uint64(c))
}

// ParseChain resolves a chain slug to its ChainID.
func ParseChain(name string) (ChainID, error) {
	switch name {
	case "ethereum", "eth", "mainnet":
		return ChainEthereum, nil
	case "bsc", "bnb":
		return ChainBSC, nil
	case "base":
		return ChainBase, nil
	}
	return 0, fmt.Errorf("unknown chain %q", name)
}

// Token is one ERC-20 token on a specific chain.
type Token struct {
	Address  string
	Name     string
	Symbol   string
	Decimals uint8
	Chain    ChainID
}

// New constructs a token from its on-chain parameters. Tokens outside the
// preset tables are created this way.
func New(address, name, symbol string, decimals uint8, chain ChainID) Token {
	return Token{
		Address:  address,
		Name:     name,
		Symbol:   symbol,
		Decimals: decimals,
		Chain:    chain,
	}
}

var presets = map[ChainID]map[string]Token{
	ChainEthereum: {
		"USDT": New("0xdAC17F958D2ee523a2206206994597C13D831ec7", "Tether USD", "USDT", 6, ChainEthereum),
		"ETH":  New("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE", "Ether", "ETH", 18, ChainEthereum),
		"WETH": New("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", "Wrapped Ether", "WETH", 18, ChainEthereum),
		"WBTC": New("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599", "Wrapped BTC", "WBTC", 8, ChainEthereum),
	},
	ChainBSC: {
		"USDT": New("0x55d398326f99059fF775485246999027B3197955", "Tether USD", "USDT", 18, ChainBSC),
		"WBNB": New("0xbb4CdB9CBd36B01bD1cBaEF60aF814a3f6F0Ee75", "Wrapped BNB", "WBNB", 18, ChainBSC),
		"ETH":  New("0x2170Ed0880ac9A755fd29B2688956BD959F933F8", "Binance-Peg Ether", "ETH", 18, ChainBSC),
	},
	ChainBase: {
		"USDC": New("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", "USD Coin", "USDC", 6, ChainBase),
		"WETH": New("0x4200000000000000000000000000000000000006", "Wrapped Ether", "WETH", 18, ChainBase),
	},
}

// Preset returns the well-known token with the given symbol on a chain.
func Preset(chain ChainID, symbol string) (Token, bool) {
	tokens, ok := presets[chain]
	if !ok {
		return Token{}, false
	}
	t, ok := tokens[symbol]
	return t, ok
}
