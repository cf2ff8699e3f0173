package execution

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ncasillas/txpilot/internal/chain"
	clierr "github.com/ncasillas/txpilot/internal/errors"
	"github.com/ncasillas/txpilot/internal/intent"
	"github.com/ncasillas/txpilot/internal/token"
)

var account = common.HexToAddress("0x3333333333333333333333333333333333333333")

type fakeRPC struct {
	method string
	args   []any
	result string
	err    error
}

func (f *fakeRPC) CallContext(ctx context.Context, result any, method string, args ...any) error {
	f.method = method
	f.args = args
	if f.err != nil {
		return f.err
	}
	switch out := result.(type) {
	case *string:
		*out = f.result
	case *sendCallsResult:
		out.ID = f.result
	}
	return nil
}

type fakeNonceReader struct {
	nonce *big.Int
	err   error
}

func (f *fakeNonceReader) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]byte, 32)
	f.nonce.FillBytes(out)
	return out, nil
}

func baseChain() chain.Config {
	return chain.Config{ID: 8453, Name: "Base", ExplorerURL: "https://basescan.org"}
}

func TestSmartAccountSubmitsUserOperation(t *testing.T) {
	rpc := &fakeRPC{result: "0xuserophash"}
	b := NewSmartAccountBackend(baseChain(), rpc, &fakeNonceReader{nonce: big.NewInt(0)}, account, nil, nil)

	n := intent.NativeTransfer{ChainID: 8453, To: recipient, AmountWei: big.NewInt(1000)}
	receipt, err := b.Execute(context.Background(), n, account)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if receipt.TxHash != "0xuserophash" {
		t.Fatalf("hash = %s", receipt.TxHash)
	}
	if rpc.method != "eth_sendUserOperation" {
		t.Fatalf("method = %s", rpc.method)
	}
	if len(rpc.args) != 2 {
		t.Fatalf("args = %d, want op + entry point", len(rpc.args))
	}
	op, ok := rpc.args[0].(userOperation)
	if !ok || op.Sender != account.Hex() || op.CallData == "" {
		t.Fatalf("unexpected user operation %+v", rpc.args[0])
	}
}

func TestSmartAccountUsesEntryPointNonce(t *testing.T) {
	rpc := &fakeRPC{result: "0xuserophash"}
	b := NewSmartAccountBackend(baseChain(), rpc, &fakeNonceReader{nonce: big.NewInt(7)}, account, nil, nil)

	n := intent.NativeTransfer{ChainID: 8453, To: recipient, AmountWei: big.NewInt(1000)}
	if _, err := b.Execute(context.Background(), n, account); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	op := rpc.args[0].(userOperation)
	if op.Nonce != "0x7" {
		t.Fatalf("nonce = %s, want the entry-point value 0x7", op.Nonce)
	}

	// A failed nonce read stops the submission before the bundler.
	rpc2 := &fakeRPC{result: "0xuserophash"}
	b = NewSmartAccountBackend(baseChain(), rpc2, &fakeNonceReader{err: errors.New("rpc down")}, account, nil, nil)
	_, err := b.Execute(context.Background(), n, account)
	if !clierr.Is(err, clierr.CodeUnavailable) {
		t.Fatalf("expected UNAVAILABLE, got %v", err)
	}
	if rpc2.method != "" {
		t.Fatal("nothing must reach the bundler when the nonce read fails")
	}
}

func TestSmartAccountEmptyHash(t *testing.T) {
	rpc := &fakeRPC{result: ""}
	b := NewSmartAccountBackend(baseChain(), rpc, &fakeNonceReader{nonce: big.NewInt(0)}, account, nil, nil)

	n := intent.NativeTransfer{ChainID: 8453, To: recipient, AmountWei: big.NewInt(1)}
	_, err := b.Execute(context.Background(), n, account)
	if !clierr.Is(err, clierr.CodeNoTransactionHash) {
		t.Fatalf("expected NO_TRANSACTION_HASH, got %v", err)
	}
}

func TestSmartAccountUserRejection(t *testing.T) {
	rpc := &fakeRPC{err: errors.New("rpc error 4001: user rejected the request")}
	b := NewSmartAccountBackend(baseChain(), rpc, &fakeNonceReader{nonce: big.NewInt(0)}, account, nil, nil)

	n := intent.NativeTransfer{ChainID: 8453, To: recipient, AmountWei: big.NewInt(1)}
	_, err := b.Execute(context.Background(), n, account)
	if !clierr.Is(err, clierr.CodeUserRejected) {
		t.Fatalf("expected USER_REJECTED, got %v", err)
	}
}

func TestPasskeyTransferWithSponsorship(t *testing.T) {
	rpc := &fakeRPC{result: "0xbundleid"}
	b := NewPasskeyBackend(baseChain(), rpc, account, "https://paymaster.example", nil)
	b.EnrollSponsorship(8453, intent.KindNativeTransfer)

	n := intent.NativeTransfer{ChainID: 8453, To: recipient, AmountWei: big.NewInt(42)}
	receipt, err := b.Execute(context.Background(), n, account)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if receipt.TxHash != "0xbundleid" {
		t.Fatalf("hash = %s", receipt.TxHash)
	}
	if rpc.method != "wallet_sendCalls" {
		t.Fatalf("method = %s", rpc.method)
	}
	req, ok := rpc.args[0].(sendCallsRequest)
	if !ok {
		t.Fatalf("unexpected payload %T", rpc.args[0])
	}
	if !req.Atomic || len(req.Calls) != 1 {
		t.Fatalf("unexpected request %+v", req)
	}
	if req.Capabilities == nil {
		t.Fatal("enrolled chain/op pair must carry the paymaster capability")
	}

	// ERC-20 on an unenrolled pair goes out without sponsorship.
	usdc := token.Token{ChainID: 8453, Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Symbol: "USDC", Decimals: 6}
	n2 := intent.ERC20Transfer{ChainID: 8453, To: recipient, Token: usdc, AmountWei: big.NewInt(1_000_000)}
	if _, err := b.Execute(context.Background(), n2, account); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	req = rpc.args[0].(sendCallsRequest)
	if req.Capabilities != nil {
		t.Fatal("unenrolled operation must not claim sponsorship")
	}
}

func TestPasskeySwapUnsupported(t *testing.T) {
	b := NewPasskeyBackend(baseChain(), &fakeRPC{result: "0xid"}, account, "", nil)

	n := intent.Swap{
		ChainID:    8453,
		FromToken:  token.Token{ChainID: 8453, Address: token.NativeAddress, Symbol: "ETH", Decimals: 18},
		ToToken:    token.Token{ChainID: 8453, Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Symbol: "USDC", Decimals: 6},
		FromAmount: big.NewInt(1),
		To:         account,
	}
	_, err := b.Execute(context.Background(), n, account)
	if !clierr.Is(err, clierr.CodeUnsupportedOperation) {
		t.Fatalf("expected UNSUPPORTED_OPERATION, got %v", err)
	}
}

func TestRouterDispatch(t *testing.T) {
	rpc := &fakeRPC{result: "0xbundleid"}
	passkey := NewPasskeyBackend(baseChain(), rpc, account, "", nil)
	r := NewRouter(passkey)

	if _, err := r.Route("passkey"); err != nil {
		t.Fatalf("route failed: %v", err)
	}
	if _, err := r.Route("ledger"); !clierr.Is(err, clierr.CodeUsage) {
		t.Fatalf("expected USAGE for unknown mode, got %v", err)
	}

	n := intent.NativeTransfer{ChainID: 8453, To: recipient, AmountWei: big.NewInt(1)}
	receipt, err := r.Execute(context.Background(), "passkey", n, account)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if receipt.TxHash != "0xbundleid" {
		t.Fatalf("hash = %s", receipt.TxHash)
	}

	// An empty backend hash is caught at the router.
	rpc.result = ""
	_, err = r.Execute(context.Background(), "passkey", n, account)
	if !clierr.Is(err, clierr.CodeNoTransactionHash) {
		t.Fatalf("expected NO_TRANSACTION_HASH, got %v", err)
	}
}
