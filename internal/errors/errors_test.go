package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestAsUnwrapsWrappedErrors(t *testing.T) {
	inner := New(CodeChainUnsupported, "unknown chain foo")
	wrapped := fmt.Errorf("normalize intent: %w", inner)

	typed, ok := As(wrapped)
	if !ok {
		t.Fatalf("expected typed error in chain")
	}
	if typed.Code != CodeChainUnsupported {
		t.Fatalf("unexpected code: %s", typed.Code)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(CodeUnavailable, "dial rpc", cause)
	if !stderrors.Is(err, cause) {
		t.Fatalf("expected cause to survive Unwrap")
	}
	if err.Error() != "dial rpc: connection refused" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestExitCodeMapping(t *testing.T) {
	if got := ExitCode(nil); got != 0 {
		t.Fatalf("nil error should exit 0, got %d", got)
	}
	if got := ExitCode(New(CodeUsage, "bad flag")); got != 2 {
		t.Fatalf("usage should exit 2, got %d", got)
	}
	if got := ExitCode(New(CodeAllProvidersFailed, "outage")); got != 12 {
		t.Fatalf("outage should exit 12, got %d", got)
	}
	if got := ExitCode(stderrors.New("plain")); got != 1 {
		t.Fatalf("plain error should exit 1, got %d", got)
	}
}
