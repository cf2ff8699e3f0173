package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	clierr "github.com/ncasillas/txpilot/internal/errors"
	"github.com/ncasillas/txpilot/internal/execution"
	"github.com/ncasillas/txpilot/internal/idempotency"
	"github.com/ncasillas/txpilot/internal/intent"
	"github.com/ncasillas/txpilot/internal/policy"
	"github.com/ncasillas/txpilot/internal/token"
	"github.com/ncasillas/txpilot/internal/validate"
)

// Status of a pipeline run. Selection and confirmation are round-trip
// outcomes, not failures.
type Status string

const (
	StatusSelectionRequired    Status = "selection_required"
	StatusConfirmationRequired Status = "confirmation_required"
	StatusSubmitted            Status = "submitted"
	StatusConfirmed            Status = "confirmed"
	StatusReverted             Status = "reverted"
	StatusPending              Status = "pending"
)

// Request is one user intent entering the pipeline.
type Request struct {
	UserID    string
	Mode      string // account mode: eoa | smartaccount | passkey
	Raw       intent.Raw
	Confirmed bool // user already approved a confirmation prompt
}

// Result is the envelope every run produces.
type Result struct {
	RequestID   string        `json:"request_id"`
	PromptID    string        `json:"prompt_id,omitempty"`
	Status      Status        `json:"status"`
	TxHash      string        `json:"tx_hash,omitempty"`
	ExplorerURL string        `json:"explorer_url,omitempty"`
	Candidates  []token.Token `json:"candidates,omitempty"`
	Message     string        `json:"message,omitempty"`
	GasCostWei  string        `json:"gas_cost_wei,omitempty"`
	Elapsed     time.Duration `json:"elapsed_ns,omitempty"`

	// StageTimings records wall time per completed stage, keyed by
	// stage name.
	StageTimings map[string]time.Duration `json:"stage_timings_ns,omitempty"`
}

// Normalizer, Validator, Executor and Awaiter are the stage
// collaborators, satisfied by intent.Normalizer, validate.Validator,
// execution.Router and execution.Monitor.
type Normalizer interface {
	Normalize(ctx context.Context, raw intent.Raw) (intent.Outcome, error)
}

type Validator interface {
	Validate(ctx context.Context, n intent.Normalized, from common.Address, cfg policy.Config) (validate.Report, error)
}

type Executor interface {
	Execute(ctx context.Context, mode string, n intent.Normalized, from common.Address) (execution.Receipt, error)
}

type Awaiter interface {
	Await(ctx context.Context, txHash string) (execution.Confirmation, error)
}

// Pipeline runs the fixed stage order: normalize, duplicate guard,
// policy, validate, execute, monitor. Any stage failure short-circuits
// with its typed error; nothing downstream runs after a rejection.
type Pipeline struct {
	normalizer Normalizer
	guard      *idempotency.Guard
	policy     *policy.Engine
	validator  Validator
	executor   Executor
	monitor    Awaiter // optional
	logger     *slog.Logger
}

func New(n Normalizer, g *idempotency.Guard, p *policy.Engine, v Validator, e Executor, m Awaiter, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		normalizer: n,
		guard:      g,
		policy:     p,
		validator:  v,
		executor:   e,
		monitor:    m,
		logger:     logger,
	}
}

// Run executes one request end to end. Independent requests may run
// concurrently; the guard and the policy engine are the only shared
// state and both are safe for concurrent use.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	result := Result{RequestID: uuid.NewString(), StageTimings: map[string]time.Duration{}}
	log := p.logger.With("request_id", result.RequestID, "user", req.UserID)
	stageStart := start
	mark := func(stage string) {
		now := time.Now()
		result.StageTimings[stage] = now.Sub(stageStart)
		stageStart = now
	}

	outcome, err := p.normalizer.Normalize(ctx, req.Raw)
	mark("normalize")
	if err != nil {
		return result, err
	}
	if outcome.Selection != nil {
		result.Status = StatusSelectionRequired
		result.Candidates = outcome.Selection.Candidates
		result.Message = outcome.Selection.Message
		result.Elapsed = time.Since(start)
		return result, nil
	}
	n := outcome.Intent

	if !common.IsHexAddress(req.Raw.Sender) {
		return result, clierr.Newf(clierr.CodeAddressInvalid, "sender %q is not a hex address", req.Raw.Sender)
	}
	from := common.HexToAddress(req.Raw.Sender)

	receipt, err := p.guard.Check(ctx, req.UserID, n)
	mark("guard")
	if err != nil {
		return result, err
	}
	result.PromptID = receipt.PromptID
	log = log.With("prompt_id", receipt.PromptID)

	decision, err := p.policy.Check(n)
	mark("policy")
	if err != nil {
		p.abandon(ctx, receipt.Key, log)
		return result, err
	}
	if decision.RequiresConfirmation && !req.Confirmed {
		// Hand the intent back; the confirmed re-submission must not
		// collide with this attempt.
		if err := p.guard.Release(ctx, receipt.Key); err != nil {
			log.Warn("release after confirmation prompt failed", "error", err)
		}
		result.Status = StatusConfirmationRequired
		result.Message = decision.Reason
		result.Elapsed = time.Since(start)
		return result, nil
	}

	report, err := p.validator.Validate(ctx, n, from, p.policy.Config())
	mark("validate")
	if err != nil {
		p.abandon(ctx, receipt.Key, log)
		return result, err
	}
	result.GasCostWei = report.GasCostWei.String()

	execReceipt, err := p.executor.Execute(ctx, req.Mode, n, from)
	mark("execute")
	if err != nil {
		if failErr := p.guard.Fail(ctx, receipt.Key); failErr != nil {
			log.Warn("record execution failure", "error", failErr)
		}
		return result, err
	}
	result.TxHash = execReceipt.TxHash
	result.ExplorerURL = execReceipt.ExplorerURL
	result.Status = StatusSubmitted

	p.policy.Record(n)
	if err := p.guard.Complete(ctx, receipt.Key, execReceipt.TxHash); err != nil {
		log.Warn("record completion", "error", err)
	}
	log.Info("intent submitted", "kind", n.Kind(), "chain", n.SourceChain(), "tx", execReceipt.TxHash)

	if p.monitor != nil {
		conf, err := p.monitor.Await(ctx, execReceipt.TxHash)
		mark("monitor")
		if err != nil {
			result.Elapsed = time.Since(start)
			return result, err
		}
		switch conf.Status {
		case execution.StatusConfirmed:
			result.Status = StatusConfirmed
		case execution.StatusReverted:
			result.Status = StatusReverted
		case execution.StatusPending:
			result.Status = StatusPending
			result.Message = "transaction submitted but not yet included; check the explorer"
		}
	}
	result.Elapsed = time.Since(start)
	return result, nil
}

// abandon drops the pending guard entry after a pre-execution
// rejection: nothing was submitted, so the user may fix the request
// and retry immediately.
func (p *Pipeline) abandon(ctx context.Context, key string, log *slog.Logger) {
	if err := p.guard.Release(ctx, key); err != nil {
		log.Warn("release idempotency entry", "error", err)
	}
}
