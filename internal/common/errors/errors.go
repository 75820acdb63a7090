// Package errors provides standardized error handling for the subscription bot.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed       ErrorCode = "VALIDATION_FAILED"
	ErrCodeDuplicateTransaction   ErrorCode = "DUPLICATE_TRANSACTION"
	ErrCodeNotFound               ErrorCode = "NOT_FOUND"
	ErrCodeExternalServiceFailure ErrorCode = "EXTERNAL_SERVICE_FAILURE"
	ErrCodeStorageFailure         ErrorCode = "STORAGE_FAILURE"
)

// Sentinel errors for errors.Is checks across packages.
var (
	ErrInvalidTransactionRef = errors.New("VALIDATION_FAILED")
	ErrDuplicateTransaction  = errors.New("DUPLICATE_TRANSACTION")
	ErrNotFound              = errors.New("NOT_FOUND")
	ErrExternalService       = errors.New("EXTERNAL_SERVICE_FAILURE")
	ErrStorage               = errors.New("STORAGE_FAILURE")
)

// StandardError represents a structured application error. It unwraps to one
// of the sentinels above so callers can branch with errors.Is.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`

	sentinel error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.sentinel
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError creates a non-retryable malformed-input error.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Transaction reference failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		sentinel:  ErrInvalidTransactionRef,
	}
}

// NewDuplicateTransactionError creates a non-retryable duplicate-reference error.
func NewDuplicateTransactionError(ref string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateTransaction,
		Message:   "Transaction reference already claimed",
		Details:   fmt.Sprintf("transactionRef: %s", ref),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		sentinel:  ErrDuplicateTransaction,
	}
}

// NewNotFoundError creates a non-retryable missing-subscription error.
func NewNotFoundError(userID int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   "No subscription row for user",
		Details:   fmt.Sprintf("userId: %d", userID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		sentinel:  ErrNotFound,
	}
}

// NewExternalServiceError creates a retryable messaging/membership API error.
func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalServiceFailure,
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		sentinel:  ErrExternalService,
	}
}

// NewStorageFailureError creates a retryable database error.
func NewStorageFailureError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorageFailure,
		Message:   "Database operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		sentinel:  ErrStorage,
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// CodeOf extracts the ErrorCode from an error chain, or empty when none.
func CodeOf(err error) ErrorCode {
	var std *StandardError
	if errors.As(err, &std) {
		return std.Code
	}
	return ""
}

// IsUserCorrectable reports whether the error is one the submitting user can
// fix by sending different input (no operator action required).
func IsUserCorrectable(err error) bool {
	return errors.Is(err, ErrInvalidTransactionRef) || errors.Is(err, ErrDuplicateTransaction)
}
