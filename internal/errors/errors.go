// Package errors provides the application error type shared by services
// and handlers. Handlers render Message (and Details) to the user; Internal
// is only ever logged.
package errors

import (
	stderrors "errors"
	"net/http"
)

// AppError is a user-facing error with a stable code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	StatusCode int
	// Details lists every problem found for VALIDATION_FAILED.
	Details []string
	// Remaining is the advisory number of attempts left for RATE_LIMITED.
	Remaining int
	Internal  error
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is matches AppErrors by code so sentinels work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// Wrap creates a copy of sentinel carrying an internal cause.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a copy of sentinel with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Validation returns a VALIDATION_FAILED error listing every problem.
func Validation(details []string) *AppError {
	return &AppError{
		Code:       ErrValidation.Code,
		Message:    ErrValidation.Message,
		StatusCode: ErrValidation.StatusCode,
		Details:    details,
	}
}

// RateLimited returns a RATE_LIMITED error with the remaining attempt count.
func RateLimited(remaining int) *AppError {
	if remaining < 0 {
		remaining = 0
	}
	return &AppError{
		Code:       ErrRateLimited.Code,
		Message:    ErrRateLimited.Message,
		StatusCode: ErrRateLimited.StatusCode,
		Remaining:  remaining,
	}
}

// From converts any error into an AppError. Errors that are not already
// AppErrors become INTERNAL_ERROR with the original kept as Internal.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Wrap(ErrInternalServer, err)
}

// Messages returns the lines to show the user: Details when present,
// otherwise the single Message.
func (e *AppError) Messages() []string {
	if len(e.Details) > 0 {
		return e.Details
	}
	return []string{e.Message}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid username or password", StatusCode: http.StatusUnauthorized}
	ErrAccountDisabled    = &AppError{Code: "ACCOUNT_DISABLED", Message: "Your account has been deactivated", StatusCode: http.StatusForbidden}
	ErrForbidden          = &AppError{Code: "FORBIDDEN", Message: "You do not have permission to access this page.", StatusCode: http.StatusForbidden}
	ErrRateLimited        = &AppError{Code: "RATE_LIMITED", Message: "Too many login attempts. Please try again later.", StatusCode: http.StatusTooManyRequests}
	ErrCSRF               = &AppError{Code: "CSRF_INVALID", Message: "Invalid request. Please try again.", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrValidation     = &AppError{Code: "VALIDATION_FAILED", Message: "Please correct the errors below", StatusCode: http.StatusUnprocessableEntity}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred. Please try again.", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
)

// Violation errors.
var (
	ErrViolationNotFound = &AppError{Code: "VIOLATION_NOT_FOUND", Message: "Violation not found", StatusCode: http.StatusNotFound}
)
