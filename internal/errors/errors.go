// Package errors provides the categorical error types for the Propstake
// ledger core. Every service operation either succeeds or fails with one of
// these sentinels; a failed call leaves all records unchanged.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authorization errors.
var (
	ErrUnauthorized = &AppError{Code: "UNAUTHORIZED", Message: "Caller is not authorized for this operation", StatusCode: http.StatusForbidden}
)

// State machine and uniqueness errors.
var (
	ErrInvalidState  = &AppError{Code: "INVALID_STATE", Message: "Operation not valid for the current status", StatusCode: http.StatusConflict}
	ErrAlreadyExists = &AppError{Code: "ALREADY_EXISTS", Message: "Record already exists", StatusCode: http.StatusConflict}
	ErrNotFound      = &AppError{Code: "NOT_FOUND", Message: "Record not found", StatusCode: http.StatusNotFound}
)

// Input and arithmetic errors.
var (
	ErrValidation        = &AppError{Code: "VALIDATION_ERROR", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrCapacityExceeded  = &AppError{Code: "CAPACITY_EXCEEDED", Message: "Operation would exceed available units", StatusCode: http.StatusBadRequest}
	ErrAmountMismatch    = &AppError{Code: "AMOUNT_MISMATCH", Message: "Payment does not equal the required amount", StatusCode: http.StatusBadRequest}
	ErrDeadlineViolation = &AppError{Code: "DEADLINE_VIOLATION", Message: "Operation violates a time deadline", StatusCode: http.StatusBadRequest}
)

// Governance errors.
var (
	ErrAlreadyVoted = &AppError{Code: "ALREADY_VOTED", Message: "Caller has already voted on this proposal", StatusCode: http.StatusConflict}
)

// Distribution errors.
var (
	ErrNothingToClaim = &AppError{Code: "NOTHING_TO_CLAIM", Message: "No claimable balance", StatusCode: http.StatusBadRequest}
)

// Host collaboration errors.
var (
	ErrPaymentFailed = &AppError{Code: "PAYMENT_FAILED", Message: "Value transfer could not be authorized", StatusCode: http.StatusBadRequest}
	ErrInternal      = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)
