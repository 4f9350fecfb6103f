package errors

import "fmt"

// Kind is the outcome taxonomy every engine operation reports through.
type Kind string

const (
	// KindNotFound signals a missing user, gift code or ledger record.
	KindNotFound Kind = "not_found"
	// KindAlreadyDone signals an idempotent re-application of an operation.
	KindAlreadyDone Kind = "already_done"
	// KindPolicyViolation signals a channel/device/limit/disabled-feature gate.
	KindPolicyViolation Kind = "policy_violation"
	// KindInvalidInput signals a malformed amount, address or code.
	KindInvalidInput Kind = "invalid_input"
	// KindConflict signals a lost concurrent race after the retry budget ran out.
	KindConflict Kind = "conflict"
	// KindUnavailable signals an unreachable store or collaborator.
	KindUnavailable Kind = "unavailable"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type AppError struct {
	Kind        Kind
	Message     string
	UserMessage string
	// Reason carries the violated policy (e.g. "channel", "device", "both").
	Reason string
	// Field names the malformed input for KindInvalidInput.
	Field     string
	Severity  Severity
	Retryable bool
	cause     error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func NewNotFound(entity string) *AppError {
	return &AppError{
		Kind:        KindNotFound,
		Message:     fmt.Sprintf("%s not found", entity),
		UserMessage: fmt.Sprintf("%s not found", entity),
		Severity:    SeverityLow,
	}
}

func NewAlreadyDone(msg string) *AppError {
	return &AppError{
		Kind:        KindAlreadyDone,
		Message:     msg,
		UserMessage: msg,
		Severity:    SeverityLow,
	}
}

func NewPolicyViolation(reason, msg string) *AppError {
	return &AppError{
		Kind:        KindPolicyViolation,
		Message:     msg,
		UserMessage: msg,
		Reason:      reason,
		Severity:    SeverityLow,
	}
}

func NewInvalidInput(field, msg string) *AppError {
	return &AppError{
		Kind:        KindInvalidInput,
		Message:     msg,
		UserMessage: msg,
		Field:       field,
		Severity:    SeverityLow,
	}
}

func NewConflict(msg string) *AppError {
	return &AppError{
		Kind:        KindConflict,
		Message:     msg,
		UserMessage: "Please try again",
		Severity:    SeverityMedium,
		Retryable:   true,
	}
}

func NewUnavailable(component string, cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Kind:        KindUnavailable,
		Message:     fmt.Sprintf("%s unavailable: %s", component, underlyingMsg),
		UserMessage: "Service temporarily unavailable, try again later",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}
