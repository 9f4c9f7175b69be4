// Package errors provides standardized error handling for the lifecycle engine.
package errors

import (
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// A category has no policy row; the affected product is skipped and
	// surfaced, never silently disposed.
	ErrCodePolicyNotFound ErrorCode = "POLICY_NOT_FOUND"

	// A mail/SMS transport call failed; the specific notification is marked
	// failed, the batch continues.
	ErrCodeTransportFailure ErrorCode = "TRANSPORT_FAILURE"

	// A referenced customer or product is missing for a notification or
	// purchase row.
	ErrCodeDataIntegrity ErrorCode = "DATA_INTEGRITY_ERROR"

	// Any unexpected failure during a scheduled cycle; logged, the loop
	// continues at the next interval.
	ErrCodeCycleError ErrorCode = "CYCLE_ERROR"

	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeNotFound         ErrorCode = "RESOURCE_NOT_FOUND"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewPolicyNotFoundError creates a non-retryable policy lookup error.
func NewPolicyNotFoundError(category string) *StandardError {
	return &StandardError{
		Code:      ErrCodePolicyNotFound,
		Message:   "No waste policy configured for category",
		Details:   fmt.Sprintf("category: %s", category),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransportFailureError creates a transport delivery error. Marked
// retryable for a future explicit re-run; the scheduled path never retries
// it automatically.
func NewTransportFailureError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransportFailure,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDataIntegrityError creates a non-retryable missing-reference error.
func NewDataIntegrityError(entity string, id interface{}) *StandardError {
	return &StandardError{
		Code:      ErrCodeDataIntegrity,
		Message:   "Referenced record is missing",
		Details:   fmt.Sprintf("%s: %v", entity, id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCycleError wraps any unexpected failure within a scheduled cycle.
func NewCycleError(cycle uint64, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCycleError,
		Message:   "Scheduled cycle failed",
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"cycle": cycle},
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreUnavailableError creates a retryable persistence error.
func NewStoreUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreUnavailable,
		Message:   "Inventory store unreachable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError creates a non-retryable input validation error.
func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError creates a non-retryable missing-resource error.
func NewNotFoundError(resource string, id interface{}) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Details:   fmt.Sprintf("id: %v", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
