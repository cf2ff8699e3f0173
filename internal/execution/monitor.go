package execution

import (
	"context"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	clierr "github.com/ncasillas/txpilot/internal/errors"
)

// ReceiptReader is the receipt-polling surface; rpcpool.ChainClient
// satisfies it.
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// ConfirmationStatus classifies what the monitor observed.
type ConfirmationStatus string

const (
	StatusConfirmed ConfirmationStatus = "confirmed"
	StatusReverted  ConfirmationStatus = "reverted"
	StatusPending   ConfirmationStatus = "pending"
)

type Confirmation struct {
	Status      ConfirmationStatus
	BlockNumber uint64
	GasUsed     uint64
}

// Monitor waits for transaction inclusion by polling receipts at a
// fixed cadence. Timing out leaves the transaction pending, which is a
// result, not an error: the chain may still include it later.
type Monitor struct {
	receipts ReceiptReader
	attempts uint
	interval time.Duration
	logger   *slog.Logger
}

func NewMonitor(receipts ReceiptReader, timeout, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	attempts := uint(1)
	if timeout > interval {
		attempts = uint(timeout / interval)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{receipts: receipts, attempts: attempts, interval: interval, logger: logger}
}

func (m *Monitor) Await(ctx context.Context, txHash string) (Confirmation, error) {
	hash := common.HexToHash(txHash)

	receipt, err := retry.DoWithData(
		func() (*types.Receipt, error) {
			return m.receipts.TransactionReceipt(ctx, hash)
		},
		retry.Context(ctx),
		retry.Attempts(m.attempts),
		retry.Delay(m.interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if ctx.Err() != nil {
			return Confirmation{Status: StatusPending}, clierr.Wrap(clierr.CodeUnavailable,
				"receipt wait canceled", ctx.Err())
		}
		m.logger.Debug("receipt still missing after polling", "hash", txHash, "error", err)
		return Confirmation{Status: StatusPending}, nil
	}

	conf := Confirmation{
		Status:      StatusConfirmed,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		conf.Status = StatusReverted
	}
	return conf, nil
}
