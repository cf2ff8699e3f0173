package execution

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ncasillas/txpilot/internal/chain"
	clierr "github.com/ncasillas/txpilot/internal/errors"
	"github.com/ncasillas/txpilot/internal/intent"
)

// sendCallsRequest is the EIP-5792 wallet_sendCalls payload. The batch
// is atomic: the wallet applies every call or none.
type sendCallsRequest struct {
	Version      string           `json:"version"`
	ChainID      string           `json:"chainId"`
	From         string           `json:"from"`
	Atomic       bool             `json:"atomicRequired"`
	Calls        []sendCallsEntry `json:"calls"`
	Capabilities map[string]any   `json:"capabilities,omitempty"`
}

type sendCallsEntry struct {
	To    string `json:"to"`
	Value string `json:"value"`
	Data  string `json:"data,omitempty"`
}

type sendCallsResult struct {
	ID string `json:"id"`
}

// PasskeyBackend relays transfers to a passkey wallet service over
// EIP-5792. Swap and bridge routes need calldata the wallet will not
// co-sign, so they are unsupported in this mode. A paymaster capability
// is attached when the chain and operation are enrolled in gas
// sponsorship.
type PasskeyBackend struct {
	cfg          chain.Config
	wallet       RPCCaller
	account      common.Address
	paymasterURL string
	// sponsored enrolls (chainID, intent kind) pairs for sponsorship.
	sponsored map[string]bool
	logger    *slog.Logger
}

func NewPasskeyBackend(cfg chain.Config, wallet RPCCaller, account common.Address, paymasterURL string, logger *slog.Logger) *PasskeyBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &PasskeyBackend{
		cfg:          cfg,
		wallet:       wallet,
		account:      account,
		paymasterURL: paymasterURL,
		sponsored:    make(map[string]bool),
		logger:       logger,
	}
}

func (b *PasskeyBackend) Mode() string { return ModePasskey }

// EnrollSponsorship marks one chain/operation pair as paymaster-funded.
func (b *PasskeyBackend) EnrollSponsorship(chainID int64, kind intent.Kind) {
	b.sponsored[sponsorKey(chainID, kind)] = true
}

func sponsorKey(chainID int64, kind intent.Kind) string {
	return fmt.Sprintf("%d/%s", chainID, kind)
}

func (b *PasskeyBackend) Execute(ctx context.Context, n intent.Normalized, from common.Address) (Receipt, error) {
	if b.account != from {
		return Receipt{}, clierr.Newf(clierr.CodeUsage,
			"passkey wallet is %s, intent is from %s", b.account.Hex(), from.Hex())
	}

	call, ok, err := transferCall(n)
	if err != nil {
		return Receipt{}, err
	}
	if !ok {
		return Receipt{}, clierr.Newf(clierr.CodeUnsupportedOperation,
			"passkey wallets cannot execute %s intents; use an eoa or smart account", n.Kind())
	}

	req := sendCallsRequest{
		Version: "2.0.0",
		ChainID: hexutil.EncodeUint64(uint64(b.cfg.ID)),
		From:    b.account.Hex(),
		Atomic:  true,
		Calls: []sendCallsEntry{{
			To:    call.To.Hex(),
			Value: hexutil.EncodeBig(call.ValueWei),
			Data:  encodeCallData(call.Data),
		}},
	}
	if b.paymasterURL != "" && b.sponsored[sponsorKey(b.cfg.ID, n.Kind())] {
		req.Capabilities = map[string]any{
			"paymasterService": map[string]string{"url": b.paymasterURL},
		}
	}

	var res sendCallsResult
	if err := b.wallet.CallContext(ctx, &res, "wallet_sendCalls", req); err != nil {
		if isUserRejection(err) {
			return Receipt{}, clierr.Wrap(clierr.CodeUserRejected, "passkey signing declined", err)
		}
		return Receipt{}, clierr.Wrap(clierr.CodeExecutionFailed, "submit wallet calls", err)
	}
	if strings.TrimSpace(res.ID) == "" {
		return Receipt{}, clierr.New(clierr.CodeNoTransactionHash, "wallet returned no call bundle id")
	}

	b.logger.Info("wallet call bundle submitted",
		"chain", b.cfg.Name, "id", res.ID, "sponsored", req.Capabilities != nil)
	return Receipt{TxHash: res.ID, ExplorerURL: b.cfg.ExplorerTxURL(res.ID)}, nil
}

func encodeCallData(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	return hexutil.Encode(data)
}
