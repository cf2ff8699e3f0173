package errors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error code carried by every
// pipeline failure so callers can branch without string matching.
type Code string

const (
	CodeInternal Code = "INTERNAL"
	CodeUsage    Code = "USAGE"

	// Normalization.
	CodeChainUnsupported         Code = "CHAIN_UNSUPPORTED"
	CodeChainMismatch            Code = "CHAIN_MISMATCH"
	CodeTokenNotFound            Code = "TOKEN_NOT_FOUND"
	CodeTokenSelectionRequired   Code = "TOKEN_SELECTION_REQUIRED"
	CodeEnsResolutionFailed      Code = "ENS_RESOLUTION_FAILED"
	CodeAddressInvalid           Code = "ADDRESS_INVALID"
	CodeAmountInvalid            Code = "AMOUNT_INVALID"
	CodeRecipientRequired        Code = "RECIPIENT_REQUIRED"
	CodeMaxAmountNeedsValidation Code = "MAX_AMOUNT_NEEDS_VALIDATION"

	// Idempotency.
	CodeDuplicatePending      Code = "DUPLICATE_PENDING"
	CodeDuplicateCompleted    Code = "DUPLICATE_COMPLETED"
	CodeDuplicateFailedRecent Code = "DUPLICATE_FAILED_RECENT"

	// Policy.
	CodeZeroAddressBlocked        Code = "ZERO_ADDRESS_BLOCKED"
	CodeRecipientBlocked          Code = "RECIPIENT_BLOCKED"
	CodeUnverifiedTokenBlocked    Code = "UNVERIFIED_TOKEN_BLOCKED"
	CodeAmountExceedsLimit        Code = "AMOUNT_EXCEEDS_LIMIT"
	CodeDailyLimitExceeded        Code = "DAILY_LIMIT_EXCEEDED"
	CodeHourlyTxLimitExceeded     Code = "HOURLY_TX_LIMIT_EXCEEDED"
	CodeDailyTxLimitExceeded      Code = "DAILY_TX_LIMIT_EXCEEDED"
	CodeChainNotAllowed           Code = "CHAIN_NOT_ALLOWED"
	CodeInsufficientBalanceForMax Code = "INSUFFICIENT_BALANCE_FOR_MAX"

	// Validation.
	CodeInsufficientFunds        Code = "INSUFFICIENT_FUNDS"
	CodeInsufficientFundsWithGas Code = "INSUFFICIENT_FUNDS_WITH_GAS"
	CodeInsufficientTokenBalance Code = "INSUFFICIENT_TOKEN_BALANCE"
	CodeInsufficientGasFunds     Code = "INSUFFICIENT_GAS_FUNDS"
	CodeGasEstimationFailed      Code = "GAS_ESTIMATION_FAILED"
	CodeBalanceTooLowAfterTx     Code = "BALANCE_TOO_LOW_AFTER_TX"
	CodeSimulationFailed         Code = "SIMULATION_FAILED"

	// Execution.
	CodeUserRejected         Code = "USER_REJECTED"
	CodeNoTransactionHash    Code = "NO_TRANSACTION_HASH"
	CodeExecutionFailed      Code = "EXECUTION_FAILED"
	CodeUnsupportedOperation Code = "UNSUPPORTED_OPERATION"

	// RPC layer.
	CodeAllProvidersFailed Code = "ALL_PROVIDERS_FAILED"
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeUnavailable        Code = "UNAVAILABLE"
	CodeAuth               Code = "AUTH"
)

// Error is a typed pipeline error carrying a stable code and a
// human-displayable message with amounts/addresses already rendered.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	if e, ok := As(err); ok {
		return e.Code == code
	}
	return false
}

// ExitCode maps pipeline errors to process exit codes for the CLI.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if cliErr, ok := As(err); ok {
		switch cliErr.Code {
		case CodeUsage:
			return 2
		case CodeAuth:
			return 10
		case CodeRateLimited:
			return 11
		case CodeUnavailable, CodeAllProvidersFailed:
			return 12
		default:
			return 1
		}
	}
	return 1
}
