package execution

import (
	"context"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ncasillas/txpilot/internal/chain"
	clierr "github.com/ncasillas/txpilot/internal/errors"
	"github.com/ncasillas/txpilot/internal/intent"
)

// defaultEntryPoint is the canonical ERC-4337 v0.7 entry point.
const defaultEntryPoint = "0x0000000071727De22E5E9d8BAf0edAc6f37da032"

// entryPointNonceABI is the nonce accessor of the entry point; user
// operation nonces live there, not in the account contract.
const entryPointNonceABI = `[
	{"name":"getNonce","type":"function","stateMutability":"view","inputs":[{"name":"sender","type":"address"},{"name":"key","type":"uint192"}],"outputs":[{"name":"nonce","type":"uint256"}]}
]`

var parsedEntryPointABI = mustABI(entryPointNonceABI)

// RPCCaller is the JSON-RPC surface the account backends use;
// *rpc.Client satisfies it.
type RPCCaller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

// NonceReader reads the entry-point nonce over a plain eth_call; the
// chain fallback client satisfies it.
type NonceReader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// userOperation is the ERC-4337 wire shape the bundler accepts. Gas
// fields are left to the bundler's estimation when zero.
type userOperation struct {
	Sender   string `json:"sender"`
	Nonce    string `json:"nonce"`
	CallData string `json:"callData"`
}

// SmartAccountBackend submits intents as ERC-4337 user operations to a
// bundler. The wallet service owns gas sponsorship and signing; this
// side prepares the account calldata, reads the entry-point nonce and
// relays the wire call.
type SmartAccountBackend struct {
	cfg        chain.Config
	bundler    RPCCaller
	reader     NonceReader
	entryPoint common.Address
	account    common.Address
	quoter     Quoter
	logger     *slog.Logger
}

func NewSmartAccountBackend(cfg chain.Config, bundler RPCCaller, reader NonceReader, account common.Address, quoter Quoter, logger *slog.Logger) *SmartAccountBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &SmartAccountBackend{
		cfg:        cfg,
		bundler:    bundler,
		reader:     reader,
		entryPoint: common.HexToAddress(defaultEntryPoint),
		account:    account,
		quoter:     quoter,
		logger:     logger,
	}
}

func (b *SmartAccountBackend) Mode() string { return ModeSmartAccount }

func (b *SmartAccountBackend) Execute(ctx context.Context, n intent.Normalized, from common.Address) (Receipt, error) {
	if b.account != from {
		return Receipt{}, clierr.Newf(clierr.CodeUsage,
			"smart account is %s, intent is from %s", b.account.Hex(), from.Hex())
	}

	call, ok, err := transferCall(n)
	if err != nil {
		return Receipt{}, err
	}
	if !ok {
		if b.quoter == nil {
			return Receipt{}, clierr.Newf(clierr.CodeUnsupportedOperation,
				"no route quoter configured for %s", n.Kind())
		}
		call, err = b.quoter.Quote(ctx, n, from)
		if err != nil {
			return Receipt{}, err
		}
	}

	callData, err := packAccountExecute(call)
	if err != nil {
		return Receipt{}, err
	}
	nonce, err := b.accountNonce(ctx)
	if err != nil {
		return Receipt{}, err
	}
	op := userOperation{
		Sender:   b.account.Hex(),
		Nonce:    hexutil.EncodeBig(nonce),
		CallData: hexutil.Encode(callData),
	}

	var userOpHash string
	err = b.bundler.CallContext(ctx, &userOpHash, "eth_sendUserOperation", op, b.entryPoint.Hex())
	if err != nil {
		if isUserRejection(err) {
			return Receipt{}, clierr.Wrap(clierr.CodeUserRejected, "user operation declined", err)
		}
		return Receipt{}, clierr.Wrap(clierr.CodeExecutionFailed, "submit user operation", err)
	}
	if strings.TrimSpace(userOpHash) == "" {
		return Receipt{}, clierr.New(clierr.CodeNoTransactionHash, "bundler returned no user operation hash")
	}

	b.logger.Info("user operation submitted", "chain", b.cfg.Name, "hash", userOpHash)
	return Receipt{TxHash: userOpHash, ExplorerURL: b.cfg.ExplorerTxURL(userOpHash)}, nil
}

// accountNonce reads getNonce(sender, 0) from the entry point.
func (b *SmartAccountBackend) accountNonce(ctx context.Context) (*big.Int, error) {
	data, err := parsedEntryPointABI.Pack("getNonce", b.account, big.NewInt(0))
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "pack getNonce calldata", err)
	}
	out, err := b.reader.CallContract(ctx, ethereum.CallMsg{To: &b.entryPoint, Data: data}, nil)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "read account nonce", err)
	}
	values, err := parsedEntryPointABI.Unpack("getNonce", out)
	if err != nil || len(values) != 1 {
		return nil, clierr.New(clierr.CodeUnavailable, "malformed getNonce response from the entry point")
	}
	nonce, ok := values[0].(*big.Int)
	if !ok {
		return nil, clierr.New(clierr.CodeUnavailable, "malformed getNonce response from the entry point")
	}
	return nonce, nil
}
