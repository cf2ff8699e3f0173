package token

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ncasillas/txpilot/internal/chain"
)

// NativeAddress is the reserved all-zero address denoting a chain's
// native asset wherever a token reference is expected.
const NativeAddress = "0x0000000000000000000000000000000000000000"

// Token is one fungible asset on one chain. Lookup identity is
// (ChainID, Address); symbols are many-to-one and never unique.
type Token struct {
	ChainID  int64  `json:"chain_id"`
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name,omitempty"`
	Decimals int    `json:"decimals"`
	Verified bool   `json:"verified"`
	Source   string `json:"source,omitempty"`
}

func (t Token) IsNative() bool {
	return strings.EqualFold(strings.TrimSpace(t.Address), NativeAddress)
}

// Key is the dedupe identity used when merging provider results.
func (t Token) Key() string {
	return fmt.Sprintf("%d/%s", t.ChainID, strings.ToLower(strings.TrimSpace(t.Address)))
}

// Checksummed returns the token with its address in EIP-55 form.
func (t Token) Checksummed() Token {
	if common.IsHexAddress(t.Address) {
		t.Address = common.HexToAddress(t.Address).Hex()
	}
	return t
}

// Native builds the native-asset token for a chain.
func Native(cfg chain.Config) Token {
	return Token{
		ChainID:  cfg.ID,
		Address:  NativeAddress,
		Symbol:   cfg.Native.Symbol,
		Name:     cfg.Native.Name,
		Decimals: cfg.Native.Decimals,
		Verified: true,
		Source:   "registry",
	}
}
