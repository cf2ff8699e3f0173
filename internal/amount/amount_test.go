package amount

import (
	"math/big"
	"testing"

	clierr "github.com/ncasillas/txpilot/internal/errors"
)

func TestToBaseUnits(t *testing.T) {
	got, err := ToBaseUnits("0.01", 18)
	if err != nil {
		t.Fatalf("ToBaseUnits(0.01) failed: %v", err)
	}
	want, _ := new(big.Int).SetString("10000000000000000", 10)
	if got.Cmp(want) != 0 {
		t.Fatalf("unexpected base units: %s", got)
	}

	got, err = ToBaseUnits("1.5", 6)
	if err != nil {
		t.Fatalf("ToBaseUnits(1.5, 6) failed: %v", err)
	}
	if got.String() != "1500000" {
		t.Fatalf("unexpected base units: %s", got)
	}
}

func TestToBaseUnitsRejectsBadInput(t *testing.T) {
	cases := []struct {
		name  string
		value string
	}{
		{"empty", ""},
		{"zero", "0"},
		{"zero decimal", "0.000"},
		{"negative", "-1"},
		{"words", "ten"},
		{"too precise", "0.1234567"},
	}
	for _, tc := range cases {
		_, err := ToBaseUnits(tc.value, 6)
		if err == nil {
			t.Fatalf("%s: expected error for %q", tc.name, tc.value)
		}
		if !clierr.Is(err, clierr.CodeAmountInvalid) {
			t.Fatalf("%s: expected AMOUNT_INVALID, got %v", tc.name, err)
		}
	}
}

func TestFromBaseUnits(t *testing.T) {
	v, _ := new(big.Int).SetString("10000000000000000", 10)
	if got := FromBaseUnits(v, 18); got != "0.01" {
		t.Fatalf("unexpected decimal: %s", got)
	}
	if got := FromBaseUnits(big.NewInt(1500000), 6); got != "1.5" {
		t.Fatalf("unexpected decimal: %s", got)
	}
	if got := FromBaseUnits(big.NewInt(42), 0); got != "42" {
		t.Fatalf("unexpected decimal: %s", got)
	}
	if got := FromBaseUnits(nil, 18); got != "0" {
		t.Fatalf("nil should render as 0, got %s", got)
	}
}

func TestIsMax(t *testing.T) {
	if !IsMax("MAX") || !IsMax(" max ") {
		t.Fatal("expected MAX variants to be detected")
	}
	if IsMax("maximum") || IsMax("1.0") {
		t.Fatal("unexpected MAX detection")
	}
}
