package execution

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type fakeReceipts struct {
	pendingFor int
	status     uint64
	calls      int
}

func (f *fakeReceipts) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.calls++
	if f.calls <= f.pendingFor {
		return nil, ethereum.NotFound
	}
	return &types.Receipt{
		Status:      f.status,
		BlockNumber: big.NewInt(123),
		GasUsed:     21000,
	}, nil
}

func TestAwaitConfirmed(t *testing.T) {
	receipts := &fakeReceipts{pendingFor: 2, status: types.ReceiptStatusSuccessful}
	m := NewMonitor(receipts, 100*time.Millisecond, 10*time.Millisecond, nil)

	conf, err := m.Await(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if conf.Status != StatusConfirmed {
		t.Fatalf("status = %s, want confirmed", conf.Status)
	}
	if conf.BlockNumber != 123 || conf.GasUsed != 21000 {
		t.Fatalf("unexpected confirmation %+v", conf)
	}
	if receipts.calls != 3 {
		t.Fatalf("polled %d times, want 3", receipts.calls)
	}
}

func TestAwaitReverted(t *testing.T) {
	receipts := &fakeReceipts{status: types.ReceiptStatusFailed}
	m := NewMonitor(receipts, 100*time.Millisecond, 10*time.Millisecond, nil)

	conf, err := m.Await(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if conf.Status != StatusReverted {
		t.Fatalf("status = %s, want reverted", conf.Status)
	}
}

func TestAwaitTimeoutLeavesPending(t *testing.T) {
	receipts := &fakeReceipts{pendingFor: 1000, status: types.ReceiptStatusSuccessful}
	m := NewMonitor(receipts, 50*time.Millisecond, 10*time.Millisecond, nil)

	conf, err := m.Await(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("a pending transaction is not an error: %v", err)
	}
	if conf.Status != StatusPending {
		t.Fatalf("status = %s, want pending", conf.Status)
	}
}
