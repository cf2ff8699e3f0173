package app

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"

	"github.com/ncasillas/txpilot/internal/amount"
	clierr "github.com/ncasillas/txpilot/internal/errors"
	"github.com/ncasillas/txpilot/internal/pipeline"
)

type errEnvelope struct {
	OK    bool   `json:"ok"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type resultEnvelope struct {
	OK   bool            `json:"ok"`
	Data pipeline.Result `json:"data"`
}

func (s *runtimeState) renderJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (s *runtimeState) renderResult(w io.Writer, result pipeline.Result) error {
	if s.settings.JSON {
		return s.renderJSON(w, resultEnvelope{OK: true, Data: result})
	}

	fmt.Fprintf(w, "status:  %s\n", result.Status)
	if result.PromptID != "" {
		fmt.Fprintf(w, "prompt:  %s\n", result.PromptID)
	}
	switch result.Status {
	case pipeline.StatusSelectionRequired:
		fmt.Fprintln(w, result.Message)
		for _, c := range result.Candidates {
			verified := ""
			if c.Verified {
				verified = " verified"
			}
			fmt.Fprintf(w, "  %-8s chain=%-8d %s (%d decimals)%s\n", c.Symbol, c.ChainID, c.Address, c.Decimals, verified)
		}
		fmt.Fprintln(w, "re-run with --token <address> to pick one")
	case pipeline.StatusConfirmationRequired:
		fmt.Fprintln(w, result.Message)
		fmt.Fprintln(w, "re-run with --yes to approve")
	default:
		if result.TxHash != "" {
			fmt.Fprintf(w, "tx:      %s\n", result.TxHash)
		}
		if result.ExplorerURL != "" {
			fmt.Fprintf(w, "link:    %s\n", result.ExplorerURL)
		}
		if result.GasCostWei != "" {
			fmt.Fprintf(w, "gas:     %s wei\n", result.GasCostWei)
		}
		if result.Message != "" {
			fmt.Fprintln(w, result.Message)
		}
	}
	return nil
}

func (s *runtimeState) renderError(err error) {
	code := clierr.CodeInternal
	if typed, ok := clierr.As(err); ok {
		code = typed.Code
	}
	if s.settings.JSON {
		enc := json.NewEncoder(s.runner.stderr)
		enc.SetIndent("", "  ")
		_ = enc.Encode(errEnvelope{OK: false, Code: string(code), Error: err.Error()})
		return
	}
	fmt.Fprintf(s.runner.stderr, "error (%s): %v\n", code, err)
}

// weiString renders a nil-able wei limit for display; nil is an
// unlimited tier.
func weiString(v *big.Int) string {
	if v == nil {
		return "unlimited"
	}
	return amount.FromBaseUnits(v, 18)
}
