package policy

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ncasillas/txpilot/internal/amount"
	clierr "github.com/ncasillas/txpilot/internal/errors"
	"github.com/ncasillas/txpilot/internal/intent"
)

// Engine applies one policy tier to normalized intents and tracks the
// running spend and count windows.
type Engine struct {
	mu    sync.Mutex
	cfg   Config
	state State
	now   func() time.Time
}

func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:   cfg,
		state: State{DailySpentWei: new(big.Int)},
		now:   time.Now,
	}
}

// Check runs the ordered policy gates. The order is fixed: structural
// blocks first (zero address, blocklist, unverified token), then amount
// and window limits, then the confirmation threshold, then the chain
// allowlist. The first failing gate decides the error.
func (e *Engine) Check(n intent.Normalized) (Decision, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetWindows()

	recipient := n.Recipient()
	if e.cfg.BlockZeroAddress && recipient == (common.Address{}) {
		return Decision{}, clierr.New(clierr.CodeZeroAddressBlocked,
			"sending to the zero address burns funds; blocked by policy")
	}
	if e.cfg.BlockedRecipients[recipient] {
		return Decision{}, clierr.Newf(clierr.CodeRecipientBlocked,
			"recipient %s is on the blocklist", recipient.Hex())
	}
	if e.cfg.BlockUnverifiedTokens {
		if tok, ok := intent.SourceToken(n); ok && !tok.Verified {
			return Decision{}, clierr.Newf(clierr.CodeUnverifiedTokenBlocked,
				"token %s (%s) is not verified by any source; blocked by policy", tok.Symbol, tok.Address)
		}
	}

	wei, isNative := nativeAmount(n)
	if isNative {
		if e.cfg.MaxTxAmountWei != nil && wei.Cmp(e.cfg.MaxTxAmountWei) > 0 {
			return Decision{}, clierr.Newf(clierr.CodeAmountExceedsLimit,
				"amount %s exceeds the per-transaction limit of %s",
				amount.FromBaseUnits(wei, 18), amount.FromBaseUnits(e.cfg.MaxTxAmountWei, 18))
		}
		if e.cfg.DailySpendWei != nil {
			projected := new(big.Int).Add(e.state.DailySpentWei, wei)
			if projected.Cmp(e.cfg.DailySpendWei) > 0 {
				return Decision{}, clierr.Newf(clierr.CodeDailyLimitExceeded,
					"this transaction would bring today's spend to %s, over the %s daily limit",
					amount.FromBaseUnits(projected, 18), amount.FromBaseUnits(e.cfg.DailySpendWei, 18))
			}
		}
	}
	if e.cfg.MaxTxPerHour > 0 && e.state.HourlyTxCount+1 > e.cfg.MaxTxPerHour {
		return Decision{}, clierr.Newf(clierr.CodeHourlyTxLimitExceeded,
			"hourly transaction limit of %d reached", e.cfg.MaxTxPerHour)
	}
	if e.cfg.MaxTxPerDay > 0 && e.state.DailyTxCount+1 > e.cfg.MaxTxPerDay {
		return Decision{}, clierr.Newf(clierr.CodeDailyTxLimitExceeded,
			"daily transaction limit of %d reached", e.cfg.MaxTxPerDay)
	}

	decision := Decision{}
	if isNative && e.cfg.ConfirmAboveWei != nil && wei.Cmp(e.cfg.ConfirmAboveWei) >= 0 {
		decision.RequiresConfirmation = true
		decision.Reason = fmt.Sprintf("amount %s is at or above the %s confirmation threshold",
			amount.FromBaseUnits(wei, 18), amount.FromBaseUnits(e.cfg.ConfirmAboveWei, 18))
	}

	if e.cfg.AllowedChains != nil && !e.cfg.AllowedChains[n.SourceChain()] {
		return Decision{}, clierr.Newf(clierr.CodeChainNotAllowed,
			"chain %d is not on the policy allowlist", n.SourceChain())
	}
	return decision, nil
}

// Record applies a submitted intent to the running windows. Call it
// after the transaction is handed to the network, not before.
func (e *Engine) Record(n intent.Normalized) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetWindows()

	if wei, isNative := nativeAmount(n); isNative {
		e.state.DailySpentWei.Add(e.state.DailySpentWei, wei)
	}
	e.state.DailyTxCount++
	e.state.HourlyTxCount++
}

// SetPreset swaps the active tier. Running counters and window markers
// survive the swap so a preset change cannot launder a spent limit.
func (e *Engine) SetPreset(name string) error {
	cfg, ok := Preset(name)
	if !ok {
		return clierr.Newf(clierr.CodeUsage, "unknown policy preset %q (want one of %v)", name, PresetNames())
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	blocked := e.cfg.BlockedRecipients
	allowed := e.cfg.AllowedChains
	e.cfg = cfg
	if blocked != nil {
		e.cfg.BlockedRecipients = blocked
	}
	e.cfg.AllowedChains = allowed
	return nil
}

// Config returns the active tier.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Snapshot returns a copy of the running counters after applying any
// due window resets.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetWindows()
	out := e.state
	out.DailySpentWei = new(big.Int).Set(e.state.DailySpentWei)
	return out
}

// ResolveMaxAmount turns a MAX request into a concrete spendable wei
// amount: balance minus the gas estimate scaled by the headroom ratio,
// all in integer math. A non-positive result is a typed error, not a
// zero send.
func (e *Engine) ResolveMaxAmount(balanceWei, gasCostWei *big.Int) (*big.Int, error) {
	num, den := e.cfg.GasHeadroomNum, e.cfg.GasHeadroomDen
	if num <= 0 || den <= 0 {
		num, den = 110, 100
	}
	reserve := new(big.Int).Mul(gasCostWei, big.NewInt(num))
	reserve.Div(reserve, big.NewInt(den))

	spendable := new(big.Int).Sub(balanceWei, reserve)
	if e.cfg.MinBalanceLeftWei != nil {
		spendable.Sub(spendable, e.cfg.MinBalanceLeftWei)
	}
	if spendable.Sign() <= 0 {
		return nil, clierr.Newf(clierr.CodeInsufficientBalanceForMax,
			"balance %s cannot cover gas with headroom (%s reserved)",
			amount.FromBaseUnits(balanceWei, 18), amount.FromBaseUnits(reserve, 18))
	}
	return spendable, nil
}

func (e *Engine) resetWindows() {
	now := e.now()
	day := now.Format("2006-01-02")
	hour := now.Format("2006-01-02-15")

	if e.state.lastDay != day {
		e.state.lastDay = day
		e.state.DailySpentWei = new(big.Int)
		e.state.DailyTxCount = 0
	}
	if e.state.lastHour != hour {
		e.state.lastHour = hour
		e.state.HourlyTxCount = 0
	}
}

// nativeAmount reports the intent's amount when it is denominated in
// the chain's native asset.
func nativeAmount(n intent.Normalized) (*big.Int, bool) {
	if _, hasToken := intent.SourceToken(n); hasToken {
		return nil, false
	}
	return n.Amount(), true
}
