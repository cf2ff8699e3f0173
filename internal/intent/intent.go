package intent

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ncasillas/txpilot/internal/token"
)

// Kind discriminates the closed set of normalized intent variants.
type Kind string

const (
	KindNativeTransfer Kind = "native-transfer"
	KindERC20Transfer  Kind = "erc20-transfer"
	KindSwap           Kind = "swap"
	KindBridge         Kind = "bridge"
	KindBridgeSwap     Kind = "bridge-swap"
)

// Raw is the loosely-typed intent handed over by an external parser or
// the CLI. SelectedToken/SelectedToToken carry the result of a prior
// token-selection round-trip and bypass provider resolution entirely.
type Raw struct {
	Action    string `json:"action"`
	Chain     string `json:"chain"`
	ToChain   string `json:"to_chain,omitempty"`
	Token     string `json:"token,omitempty"`
	ToToken   string `json:"to_token,omitempty"`
	Amount    string `json:"amount"`
	Recipient string `json:"recipient,omitempty"`
	Sender    string `json:"sender"`

	SelectedToken   *token.Token `json:"selected_token,omitempty"`
	SelectedToToken *token.Token `json:"selected_to_token,omitempty"`
}

// Normalized is the sealed sum of fully chain-resolved, checksummed,
// base-unit intent variants. Nothing ambiguous is legal past this type.
type Normalized interface {
	Kind() Kind
	// SourceChain is the chain the user's funds leave from.
	SourceChain() int64
	// Amount is the source amount in the source asset's base units.
	Amount() *big.Int
	// Recipient is always a concrete checksummed address.
	Recipient() common.Address

	sealed()
}

type NativeTransfer struct {
	ChainID   int64
	To        common.Address
	AmountWei *big.Int
}

func (NativeTransfer) Kind() Kind                  { return KindNativeTransfer }
func (n NativeTransfer) SourceChain() int64        { return n.ChainID }
func (n NativeTransfer) Amount() *big.Int          { return n.AmountWei }
func (n NativeTransfer) Recipient() common.Address { return n.To }
func (NativeTransfer) sealed()                     {}

type ERC20Transfer struct {
	ChainID   int64
	To        common.Address
	Token     token.Token
	AmountWei *big.Int
}

func (ERC20Transfer) Kind() Kind                  { return KindERC20Transfer }
func (n ERC20Transfer) SourceChain() int64        { return n.ChainID }
func (n ERC20Transfer) Amount() *big.Int          { return n.AmountWei }
func (n ERC20Transfer) Recipient() common.Address { return n.To }
func (ERC20Transfer) sealed()                     {}

type Swap struct {
	ChainID    int64
	FromToken  token.Token
	ToToken    token.Token
	FromAmount *big.Int
	To         common.Address
}

func (Swap) Kind() Kind                  { return KindSwap }
func (n Swap) SourceChain() int64        { return n.ChainID }
func (n Swap) Amount() *big.Int          { return n.FromAmount }
func (n Swap) Recipient() common.Address { return n.To }
func (Swap) sealed()                     {}

type Bridge struct {
	FromChainID int64
	ToChainID   int64
	Token       token.Token
	AmountWei   *big.Int
	To          common.Address
}

func (Bridge) Kind() Kind                  { return KindBridge }
func (n Bridge) SourceChain() int64        { return n.FromChainID }
func (n Bridge) Amount() *big.Int          { return n.AmountWei }
func (n Bridge) Recipient() common.Address { return n.To }
func (Bridge) sealed()                     {}

type BridgeSwap struct {
	FromChainID int64
	ToChainID   int64
	FromToken   token.Token
	ToToken     token.Token
	FromAmount  *big.Int
	To          common.Address
}

func (BridgeSwap) Kind() Kind                  { return KindBridgeSwap }
func (n BridgeSwap) SourceChain() int64        { return n.FromChainID }
func (n BridgeSwap) Amount() *big.Int          { return n.FromAmount }
func (n BridgeSwap) Recipient() common.Address { return n.To }
func (BridgeSwap) sealed()                     {}

// SourceToken returns the non-native asset leaving the source chain,
// or ok=false when the source asset is the chain's native currency.
func SourceToken(n Normalized) (token.Token, bool) {
	switch v := n.(type) {
	case ERC20Transfer:
		return v.Token, true
	case Swap:
		if !v.FromToken.IsNative() {
			return v.FromToken, true
		}
	case Bridge:
		if !v.Token.IsNative() {
			return v.Token, true
		}
	case BridgeSwap:
		if !v.FromToken.IsNative() {
			return v.FromToken, true
		}
	}
	return token.Token{}, false
}
