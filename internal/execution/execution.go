package execution

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/ncasillas/txpilot/internal/errors"
	"github.com/ncasillas/txpilot/internal/intent"
)

// Account modes the router dispatches on.
const (
	ModeEOA          = "eoa"
	ModeSmartAccount = "smartaccount"
	ModePasskey      = "passkey"
)

// Call is one prepared on-chain call: target, native value, calldata.
type Call struct {
	To       common.Address
	ValueWei *big.Int
	Data     []byte
}

// Quoter turns a routed intent (swap, bridge, bridge-swap) into an
// executable call against an aggregator router.
type Quoter interface {
	Quote(ctx context.Context, n intent.Normalized, from common.Address) (Call, error)
}

// Receipt is what a backend hands back after submission.
type Receipt struct {
	TxHash      string
	ExplorerURL string
}

// Backend executes one normalized intent under one account mode.
type Backend interface {
	Mode() string
	Execute(ctx context.Context, n intent.Normalized, from common.Address) (Receipt, error)
}

// Router picks the backend for the requested account mode.
type Router struct {
	backends map[string]Backend
}

func NewRouter(backends ...Backend) *Router {
	m := make(map[string]Backend, len(backends))
	for _, b := range backends {
		m[b.Mode()] = b
	}
	return &Router{backends: m}
}

func (r *Router) Route(mode string) (Backend, error) {
	b, ok := r.backends[strings.ToLower(strings.TrimSpace(mode))]
	if !ok {
		return nil, clierr.Newf(clierr.CodeUsage, "unknown account mode %q", mode)
	}
	return b, nil
}

func (r *Router) Execute(ctx context.Context, mode string, n intent.Normalized, from common.Address) (Receipt, error) {
	b, err := r.Route(mode)
	if err != nil {
		return Receipt{}, err
	}
	receipt, err := b.Execute(ctx, n, from)
	if err != nil {
		return Receipt{}, err
	}
	if strings.TrimSpace(receipt.TxHash) == "" {
		return Receipt{}, clierr.Newf(clierr.CodeNoTransactionHash,
			"%s backend returned no transaction hash", b.Mode())
	}
	return receipt, nil
}

// transferCall prepares the call for a plain transfer. Routed intents
// need a Quoter instead.
func transferCall(n intent.Normalized) (Call, bool, error) {
	switch t := n.(type) {
	case intent.NativeTransfer:
		return Call{To: t.To, ValueWei: t.AmountWei}, true, nil
	case intent.ERC20Transfer:
		data, err := packERC20Transfer(t.To, t.AmountWei)
		if err != nil {
			return Call{}, false, err
		}
		return Call{To: common.HexToAddress(t.Token.Address), ValueWei: new(big.Int), Data: data}, true, nil
	default:
		return Call{}, false, nil
	}
}

// isUserRejection matches the EIP-1193 user-rejected error (code 4001)
// that wallet services surface when the owner declines to sign.
func isUserRejection(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "4001") || strings.Contains(msg, "user rejected") ||
		strings.Contains(msg, "user denied")
}
