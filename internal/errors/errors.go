package errors

import (
	stdErrors "errors"
	"fmt"
	"sync"
)

// Code is the stable classification string attached to every outcome and
// error the engine produces. Callers assert on codes, never on message text.
type Code string

// Severity grades a code for alerting and audit purposes.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Attributes carry the default behaviour of a code.
type Attributes struct {
	Message   string
	Severity  Severity
	Retryable bool
	Alert     bool
	// Skip marks expected, non-error outcomes (empty wallet, dust balance).
	// Skips are counted, never alerted, never logged as failures.
	Skip bool
}

const (
	CodeUnknown             Code = "UNKNOWN"
	CodeConfigError         Code = "CONFIG_ERROR"
	CodeDirectoryError      Code = "DIRECTORY_ERROR"
	CodeInvalidAddress      Code = "INVALID_ADDRESS"
	CodeInsufficientGas     Code = "INSUFFICIENT_GAS"
	CodeNoBalance           Code = "NO_BALANCE"
	CodeBelowThreshold      Code = "BELOW_THRESHOLD"
	CodeSigningRejected     Code = "SIGNING_REJECTED"
	CodeSigningUnavailable  Code = "SIGNING_UNAVAILABLE"
	CodeTransactionFailed   Code = "TRANSACTION_FAILED"
	CodeConfirmationUnknown Code = "CONFIRMATION_UNKNOWN"
)

var (
	registryMu sync.RWMutex
	registry   = map[Code]Attributes{
		CodeUnknown: {
			Message:  "unknown error",
			Severity: SeverityCritical,
			Alert:    true,
		},
		CodeConfigError: {
			Message:  "missing or invalid configuration",
			Severity: SeverityCritical,
			Alert:    true,
		},
		CodeDirectoryError: {
			Message:   "account directory unavailable",
			Severity:  SeverityWarning,
			Retryable: true,
			Alert:     true,
		},
		CodeInvalidAddress: {
			Message:  "malformed address",
			Severity: SeverityInfo,
		},
		CodeInsufficientGas: {
			Message:  "gas balance below reserve",
			Severity: SeverityInfo,
			Skip:     true,
		},
		CodeNoBalance: {
			Message:  "no token balance",
			Severity: SeverityInfo,
			Skip:     true,
		},
		CodeBelowThreshold: {
			Message:  "token balance below sweep threshold",
			Severity: SeverityInfo,
			Skip:     true,
		},
		CodeSigningRejected: {
			Message:  "custody backend rejected the transfer",
			Severity: SeverityWarning,
			Alert:    true,
		},
		CodeSigningUnavailable: {
			Message:   "custody backend unreachable",
			Severity:  SeverityWarning,
			Retryable: true,
			Alert:     true,
		},
		CodeTransactionFailed: {
			Message:  "transaction confirmed with failure status",
			Severity: SeverityWarning,
			Alert:    true,
		},
		CodeConfirmationUnknown: {
			Message:   "confirmation not observed before deadline",
			Severity:  SeverityWarning,
			Retryable: true,
			Alert:     true,
		},
	}
)

// Register lets packages add or override code attributes during init.
func Register(code Code, attr Attributes) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[code] = attr
}

// AttributesOf returns the attributes for a code, falling back to UNKNOWN.
func AttributesOf(code Code) Attributes {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if attr, ok := registry[code]; ok {
		return attr
	}
	return registry[CodeUnknown]
}

// Error is the single error type used across the engine.
type Error struct {
	code     Code
	message  string
	cause    error
	metadata map[string]string
}

// Option configures optional error fields.
type Option func(*Error)

// WithMetadata attaches a key/value pair for audit output.
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string)
		}
		e.metadata[key] = value
	}
}

// New builds an error for the given code. An empty message falls back to the
// registered default.
func New(code Code, message string, opts ...Option) *Error {
	if message == "" {
		message = AttributesOf(code).Message
	}
	e := &Error{code: code, message: message}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Wrap annotates a cause with a code.
func Wrap(code Code, cause error, message string, opts ...Option) *Error {
	e := New(code, message, opts...)
	e.cause = cause
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches errors by code so errors.Is works across wrap layers.
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.code == t.code
}

// Code returns the classification code.
func (e *Error) Code() Code {
	if e == nil {
		return CodeUnknown
	}
	return e.code
}

// Message returns the human readable description.
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Metadata returns a copy of the attached metadata.
func (e *Error) Metadata() map[string]string {
	if e == nil || len(e.metadata) == 0 {
		return nil
	}
	clone := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		clone[k] = v
	}
	return clone
}

// From extracts the typed error from an error chain.
func From(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var target *Error
	if stdErrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf returns the code carried by err, or UNKNOWN.
func CodeOf(err error) Code {
	if e, ok := From(err); ok {
		return e.Code()
	}
	return CodeUnknown
}

// IsSkip reports whether err classifies as an expected skip outcome.
func IsSkip(err error) bool {
	return AttributesOf(CodeOf(err)).Skip
}

// Retryable reports whether err is worth retrying on a later iteration.
func Retryable(err error) bool {
	return AttributesOf(CodeOf(err)).Retryable
}

// ShouldAlert reports whether err warrants an alert dispatch.
func ShouldAlert(err error) bool {
	return AttributesOf(CodeOf(err)).Alert
}

// SeverityOf returns the severity registered for the error's code.
func SeverityOf(err error) Severity {
	return AttributesOf(CodeOf(err)).Severity
}
