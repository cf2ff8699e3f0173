package amount

import (
	"math/big"
	"regexp"
	"strings"

	clierr "github.com/ncasillas/txpilot/internal/errors"
)

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// IsMax reports whether the user asked for a balance-aware maximum
// instead of a concrete amount. MAX cannot be normalized without a
// balance lookup, so normalization defers it to the validation stage.
func IsMax(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "max")
}

// ToBaseUnits converts a positive decimal string into the token's
// base-unit integer. "0.01" at 18 decimals becomes 10000000000000000.
func ToBaseUnits(decimal string, decimals int) (*big.Int, error) {
	clean := strings.TrimSpace(decimal)
	if clean == "" {
		return nil, clierr.New(clierr.CodeAmountInvalid, "amount is required")
	}
	if decimals < 0 {
		return nil, clierr.New(clierr.CodeAmountInvalid, "token decimals must be >= 0")
	}
	if !decimalPattern.MatchString(clean) {
		return nil, clierr.Newf(clierr.CodeAmountInvalid, "amount %q must be in decimal form like 1.23", decimal)
	}

	parts := strings.SplitN(clean, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if len(fracPart) > decimals {
		return nil, clierr.Newf(clierr.CodeAmountInvalid, "amount %q has more precision than the token's %d decimals", decimal, decimals)
	}

	fracPart += strings.Repeat("0", decimals-len(fracPart))
	combined := strings.TrimLeft(intPart+fracPart, "0")
	if combined == "" {
		return nil, clierr.Newf(clierr.CodeAmountInvalid, "amount must be positive, got %q", decimal)
	}
	value, ok := new(big.Int).SetString(combined, 10)
	if !ok || value.Sign() <= 0 {
		return nil, clierr.Newf(clierr.CodeAmountInvalid, "invalid decimal amount %q", decimal)
	}
	return value, nil
}

// FromBaseUnits renders a base-unit integer as a trimmed decimal string
// for display in errors and confirmations.
func FromBaseUnits(baseUnits *big.Int, decimals int) string {
	if baseUnits == nil {
		return "0"
	}
	s := new(big.Int).Abs(baseUnits).String()
	neg := baseUnits.Sign() < 0

	if decimals == 0 {
		if neg {
			return "-" + s
		}
		return s
	}
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	intPart := s[:len(s)-decimals]
	fracPart := strings.TrimRight(s[len(s)-decimals:], "0")
	out := intPart
	if fracPart != "" {
		out = intPart + "." + fracPart
	}
	if neg {
		return "-" + out
	}
	return out
}
