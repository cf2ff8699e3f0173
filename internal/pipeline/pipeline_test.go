package pipeline

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/ncasillas/txpilot/internal/errors"
	"github.com/ncasillas/txpilot/internal/execution"
	"github.com/ncasillas/txpilot/internal/idempotency"
	"github.com/ncasillas/txpilot/internal/intent"
	"github.com/ncasillas/txpilot/internal/policy"
	"github.com/ncasillas/txpilot/internal/token"
	"github.com/ncasillas/txpilot/internal/validate"
)

const (
	senderHex    = "0x1111111111111111111111111111111111111111"
	recipientHex = "0x000000000000000000000000000000000000dEaD"
)

type stubNormalizer struct {
	outcome intent.Outcome
	err     error
}

func (s *stubNormalizer) Normalize(ctx context.Context, raw intent.Raw) (intent.Outcome, error) {
	return s.outcome, s.err
}

type stubValidator struct {
	err   error
	calls int
}

func (s *stubValidator) Validate(ctx context.Context, n intent.Normalized, from common.Address, cfg policy.Config) (validate.Report, error) {
	s.calls++
	if s.err != nil {
		return validate.Report{}, s.err
	}
	return validate.Report{GasEstimate: 21000, GasCostWei: big.NewInt(42_000), TotalWei: big.NewInt(1_042_000)}, nil
}

type stubExecutor struct {
	err   error
	calls int
}

func (s *stubExecutor) Execute(ctx context.Context, mode string, n intent.Normalized, from common.Address) (execution.Receipt, error) {
	s.calls++
	if s.err != nil {
		return execution.Receipt{}, s.err
	}
	return execution.Receipt{TxHash: "0xdeadbeef", ExplorerURL: "https://etherscan.io/tx/0xdeadbeef"}, nil
}

type stubMonitor struct {
	conf execution.Confirmation
}

func (s *stubMonitor) Await(ctx context.Context, txHash string) (execution.Confirmation, error) {
	return s.conf, nil
}

func normalizedTransfer(amountWei int64) intent.Outcome {
	return intent.Outcome{Intent: intent.NativeTransfer{
		ChainID:   1,
		To:        common.HexToAddress(recipientHex),
		AmountWei: big.NewInt(amountWei),
	}}
}

func bigTransfer() intent.Outcome {
	// 0.2 ETH, above the safe preset's 0.1 confirmation threshold.
	wei, _ := new(big.Int).SetString("200000000000000000", 10)
	return intent.Outcome{Intent: intent.NativeTransfer{
		ChainID:   1,
		To:        common.HexToAddress(recipientHex),
		AmountWei: wei,
	}}
}

func testRequest() Request {
	return Request{
		UserID: "user-1",
		Mode:   "eoa",
		Raw:    intent.Raw{Action: "send", Chain: "ethereum", Amount: "0.000001", Recipient: recipientHex, Sender: senderHex},
	}
}

func newTestPipeline(n Normalizer, v Validator, e Executor, m Awaiter) *Pipeline {
	cfg, _ := policy.Preset("safe")
	guard := idempotency.NewGuard(idempotency.NewMemoryStore(), 5*time.Minute, nil)
	return New(n, guard, policy.NewEngine(cfg), v, e, m, nil)
}

func TestRunHappyPath(t *testing.T) {
	validator := &stubValidator{}
	executor := &stubExecutor{}
	monitor := &stubMonitor{conf: execution.Confirmation{Status: execution.StatusConfirmed, BlockNumber: 99}}
	p := newTestPipeline(&stubNormalizer{outcome: normalizedTransfer(1_000_000)}, validator, executor, monitor)

	result, err := p.Run(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != StatusConfirmed {
		t.Fatalf("status = %s, want confirmed", result.Status)
	}
	if result.TxHash != "0xdeadbeef" || result.ExplorerURL == "" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.RequestID == "" || result.PromptID == "" {
		t.Fatal("expected request and prompt ids")
	}
	if validator.calls != 1 || executor.calls != 1 {
		t.Fatalf("stage calls: validate=%d execute=%d", validator.calls, executor.calls)
	}
	for _, stage := range []string{"normalize", "guard", "policy", "validate", "execute", "monitor"} {
		if _, ok := result.StageTimings[stage]; !ok {
			t.Fatalf("missing stage timing for %s: %v", stage, result.StageTimings)
		}
	}
}

func TestRunSelectionOutcome(t *testing.T) {
	outcome := intent.Outcome{Selection: &intent.Selection{
		Field:      "token",
		Candidates: []token.Token{{ChainID: 1, Symbol: "USDC"}, {ChainID: 8453, Symbol: "USDC"}},
		Message:    "pick one",
	}}
	executor := &stubExecutor{}
	p := newTestPipeline(&stubNormalizer{outcome: outcome}, &stubValidator{}, executor, nil)

	result, err := p.Run(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != StatusSelectionRequired || len(result.Candidates) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if executor.calls != 0 {
		t.Fatal("selection must halt the pipeline")
	}
}

func TestRunPolicyRejectionHaltsBeforeValidation(t *testing.T) {
	validator := &stubValidator{}
	executor := &stubExecutor{}
	// 1 ETH is over the safe preset's 0.5 per-transaction cap.
	wei, _ := new(big.Int).SetString("1000000000000000000", 10)
	outcome := intent.Outcome{Intent: intent.NativeTransfer{
		ChainID: 1, To: common.HexToAddress(recipientHex), AmountWei: wei,
	}}
	p := newTestPipeline(&stubNormalizer{outcome: outcome}, validator, executor, nil)

	_, err := p.Run(context.Background(), testRequest())
	if !clierr.Is(err, clierr.CodeAmountExceedsLimit) {
		t.Fatalf("expected AMOUNT_EXCEEDS_LIMIT, got %v", err)
	}
	if validator.calls != 0 || executor.calls != 0 {
		t.Fatal("policy rejection must stop the pipeline before validation")
	}

	// The rejection released the guard entry: an identical retry hits
	// the same policy gate again, never the duplicate guard.
	if _, err := p.Run(context.Background(), testRequest()); !clierr.Is(err, clierr.CodeAmountExceedsLimit) {
		t.Fatalf("retry should hit the same policy error, not a duplicate: %v", err)
	}
}

func TestRunConfirmationRoundTrip(t *testing.T) {
	executor := &stubExecutor{}
	p := newTestPipeline(&stubNormalizer{outcome: bigTransfer()}, &stubValidator{}, executor, nil)

	req := testRequest()
	result, err := p.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != StatusConfirmationRequired || result.Message == "" {
		t.Fatalf("unexpected result %+v", result)
	}
	if executor.calls != 0 {
		t.Fatal("unconfirmed intent must not execute")
	}

	// Re-entry with the user's approval goes through.
	req.Confirmed = true
	result, err = p.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("confirmed run failed: %v", err)
	}
	if result.Status != StatusSubmitted {
		t.Fatalf("status = %s, want submitted", result.Status)
	}
	if executor.calls != 1 {
		t.Fatalf("executor calls = %d", executor.calls)
	}
}

func TestRunDuplicateCompleted(t *testing.T) {
	p := newTestPipeline(&stubNormalizer{outcome: normalizedTransfer(1_000_000)}, &stubValidator{}, &stubExecutor{}, nil)

	if _, err := p.Run(context.Background(), testRequest()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	_, err := p.Run(context.Background(), testRequest())
	if !clierr.Is(err, clierr.CodeDuplicateCompleted) {
		t.Fatalf("expected DUPLICATE_COMPLETED, got %v", err)
	}
}

func TestRunExecutionFailureMarksEntry(t *testing.T) {
	executor := &stubExecutor{err: clierr.New(clierr.CodeExecutionFailed, "broadcast failed")}
	p := newTestPipeline(&stubNormalizer{outcome: normalizedTransfer(1_000_000)}, &stubValidator{}, executor, nil)

	_, err := p.Run(context.Background(), testRequest())
	if !clierr.Is(err, clierr.CodeExecutionFailed) {
		t.Fatalf("expected EXECUTION_FAILED, got %v", err)
	}

	// An immediate identical retry lands in the failed-recent grace.
	_, err = p.Run(context.Background(), testRequest())
	if !clierr.Is(err, clierr.CodeDuplicateFailedRecent) {
		t.Fatalf("expected DUPLICATE_FAILED_RECENT, got %v", err)
	}
}

func TestRunUserRejectionPropagates(t *testing.T) {
	executor := &stubExecutor{err: clierr.New(clierr.CodeUserRejected, "declined on device")}
	p := newTestPipeline(&stubNormalizer{outcome: normalizedTransfer(1_000_000)}, &stubValidator{}, executor, nil)

	_, err := p.Run(context.Background(), testRequest())
	if !clierr.Is(err, clierr.CodeUserRejected) {
		t.Fatalf("expected USER_REJECTED, got %v", err)
	}
}

func TestRunPendingTimeout(t *testing.T) {
	monitor := &stubMonitor{conf: execution.Confirmation{Status: execution.StatusPending}}
	p := newTestPipeline(&stubNormalizer{outcome: normalizedTransfer(1_000_000)}, &stubValidator{}, &stubExecutor{}, monitor)

	result, err := p.Run(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != StatusPending || result.Message == "" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRunBadSender(t *testing.T) {
	p := newTestPipeline(&stubNormalizer{outcome: normalizedTransfer(1)}, &stubValidator{}, &stubExecutor{}, nil)

	req := testRequest()
	req.Raw.Sender = "not-an-address"
	_, err := p.Run(context.Background(), req)
	if !clierr.Is(err, clierr.CodeAddressInvalid) {
		t.Fatalf("expected ADDRESS_INVALID, got %v", err)
	}
}
