package policy

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Config is one policy tier. Amount limits are denominated in the
// native asset's base units (wei); nil means unlimited, zero counters
// mean unlimited. ERC-20 amounts are in token units and are not
// comparable to wei, so spend limits apply to native-asset intents and
// count limits apply to everything.
type Config struct {
	Preset string

	MaxTxAmountWei    *big.Int
	DailySpendWei     *big.Int
	MaxTxPerHour      int
	MaxTxPerDay       int
	ConfirmAboveWei   *big.Int
	MinBalanceLeftWei *big.Int

	// GasHeadroomNum/Den scale gas estimates before spendable-max math,
	// e.g. 110/100 for 10% headroom.
	GasHeadroomNum int64
	GasHeadroomDen int64

	BlockedRecipients     map[common.Address]bool
	AllowedChains         map[int64]bool
	BlockZeroAddress      bool
	BlockUnverifiedTokens bool
}

// State carries the running counters. Windows reset at local day and
// hour boundaries, never mid-window.
type State struct {
	DailySpentWei *big.Int
	DailyTxCount  int
	HourlyTxCount int

	lastDay  string // YYYY-MM-DD in local time
	lastHour string // YYYY-MM-DD-HH in local time
}

// Decision is the outcome of a policy check that did not reject.
type Decision struct {
	RequiresConfirmation bool
	Reason               string
}

func eth(decimal string) *big.Int {
	r, ok := new(big.Rat).SetString(decimal)
	if !ok {
		panic("bad preset amount: " + decimal)
	}
	r.Mul(r, new(big.Rat).SetInt64(1_000_000_000_000_000_000))
	if !r.IsInt() {
		panic("preset amount is finer than wei: " + decimal)
	}
	return new(big.Int).Set(r.Num())
}

// Presets ordered safe < moderate < advanced. Safe is the default.
var presets = map[string]Config{
	"safe": {
		Preset:                "safe",
		MaxTxAmountWei:        eth("0.5"),
		DailySpendWei:         eth("1"),
		MaxTxPerHour:          5,
		MaxTxPerDay:           20,
		ConfirmAboveWei:       eth("0.1"),
		MinBalanceLeftWei:     eth("0.01"),
		GasHeadroomNum:        110,
		GasHeadroomDen:        100,
		BlockZeroAddress:      true,
		BlockUnverifiedTokens: true,
	},
	"moderate": {
		Preset:            "moderate",
		MaxTxAmountWei:    eth("2"),
		DailySpendWei:     eth("5"),
		MaxTxPerHour:      20,
		MaxTxPerDay:       100,
		ConfirmAboveWei:   eth("0.5"),
		MinBalanceLeftWei: eth("0.001"),
		GasHeadroomNum:    110,
		GasHeadroomDen:    100,
		BlockZeroAddress:  true,
	},
	"advanced": {
		Preset:          "advanced",
		MaxTxPerHour:    100,
		MaxTxPerDay:     500,
		ConfirmAboveWei: eth("5"),
		GasHeadroomNum:  110,
		GasHeadroomDen:  100,
	},
}

// PresetNames in increasing permissiveness.
func PresetNames() []string { return []string{"safe", "moderate", "advanced"} }

// Preset returns a copy of a named tier.
func Preset(name string) (Config, bool) {
	cfg, ok := presets[name]
	if !ok {
		return Config{}, false
	}
	// Blocked/allowed sets are per-deployment, not per-preset; copies
	// start empty so callers can fill them in.
	cfg.BlockedRecipients = map[common.Address]bool{}
	return cfg, true
}
