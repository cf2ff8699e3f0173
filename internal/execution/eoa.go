package execution

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ncasillas/txpilot/internal/chain"
	clierr "github.com/ncasillas/txpilot/internal/errors"
	"github.com/ncasillas/txpilot/internal/execution/signer"
	"github.com/ncasillas/txpilot/internal/intent"
)

// ChainWriter is the chain surface the EOA backend needs;
// rpcpool.ChainClient satisfies it.
type ChainWriter interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

const fallbackTipCapWei = 2_000_000_000 // 2 gwei when the node has no suggestion

// EOABackend signs EIP-1559 transactions locally and broadcasts them.
type EOABackend struct {
	cfg    chain.Config
	client ChainWriter
	signer signer.Signer
	quoter Quoter
	logger *slog.Logger

	// gasMultiplierNum/Den pad estimates, 120/100 by default.
	gasMultiplierNum int64
	gasMultiplierDen int64
}

func NewEOABackend(cfg chain.Config, client ChainWriter, s signer.Signer, quoter Quoter, logger *slog.Logger) *EOABackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &EOABackend{
		cfg:              cfg,
		client:           client,
		signer:           s,
		quoter:           quoter,
		logger:           logger,
		gasMultiplierNum: 120,
		gasMultiplierDen: 100,
	}
}

func (b *EOABackend) Mode() string { return ModeEOA }

func (b *EOABackend) Execute(ctx context.Context, n intent.Normalized, from common.Address) (Receipt, error) {
	if b.signer.Address() != from {
		return Receipt{}, clierr.Newf(clierr.CodeUsage,
			"signer controls %s, intent is from %s", b.signer.Address().Hex(), from.Hex())
	}

	call, err := b.prepare(ctx, n, from)
	if err != nil {
		return Receipt{}, err
	}

	gasLimit, err := b.client.EstimateGas(ctx, ethereum.CallMsg{
		From: from, To: &call.To, Value: call.ValueWei, Data: call.Data,
	})
	if err != nil {
		return Receipt{}, clierr.Wrap(clierr.CodeGasEstimationFailed, "estimate gas", err)
	}
	gasLimit = uint64(int64(gasLimit) * b.gasMultiplierNum / b.gasMultiplierDen)

	tipCap, err := b.client.SuggestGasTipCap(ctx)
	if err != nil {
		tipCap = big.NewInt(fallbackTipCapWei)
	}
	header, err := b.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return Receipt{}, clierr.Wrap(clierr.CodeUnavailable, "fetch latest header", err)
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(1_000_000_000)
	}
	// feeCap = 2*baseFee + tip rides out the next few blocks.
	feeCap := new(big.Int).Mul(baseFee, big.NewInt(2))
	feeCap.Add(feeCap, tipCap)

	nonce, err := b.client.PendingNonceAt(ctx, from)
	if err != nil {
		return Receipt{}, clierr.Wrap(clierr.CodeUnavailable, "fetch nonce", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(b.cfg.ID),
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &call.To,
		Value:     call.ValueWei,
		Data:      call.Data,
	})
	signed, err := b.signer.SignTx(big.NewInt(b.cfg.ID), tx)
	if err != nil {
		return Receipt{}, clierr.Wrap(clierr.CodeExecutionFailed, "sign transaction", err)
	}
	if err := b.client.SendTransaction(ctx, signed); err != nil {
		return Receipt{}, clierr.Wrap(clierr.CodeExecutionFailed, "broadcast transaction", err)
	}

	hash := signed.Hash().Hex()
	b.logger.Info("transaction broadcast",
		"chain", b.cfg.Name, "hash", hash, "nonce", nonce, "gas", gasLimit)
	return Receipt{TxHash: hash, ExplorerURL: b.cfg.ExplorerTxURL(hash)}, nil
}

func (b *EOABackend) prepare(ctx context.Context, n intent.Normalized, from common.Address) (Call, error) {
	call, ok, err := transferCall(n)
	if err != nil {
		return Call{}, err
	}
	if ok {
		return call, nil
	}
	if b.quoter == nil {
		return Call{}, clierr.Newf(clierr.CodeUnsupportedOperation,
			"no route quoter configured for %s", n.Kind())
	}
	return b.quoter.Quote(ctx, n, from)
}
