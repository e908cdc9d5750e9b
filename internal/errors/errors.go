// Package errors defines the structured error taxonomy shared across the
// tailoring pipeline. Stage and repository failures are classified into
// codes so the worker can decide between queue-level retry and permanent
// failure without string matching.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeConflict indicates a conflict with existing data (e.g., unique constraint violation).
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeValidation indicates invalid submission input. Never retried.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeMissingInput indicates no resolvable resume source for a job. Terminal.
	ErrCodeMissingInput ErrorCode = "missing_input"
	// ErrCodeProviderOverloaded indicates a generative-text provider reported it is
	// shedding load. Triggers immediate fallback to the secondary provider.
	ErrCodeProviderOverloaded ErrorCode = "provider_overloaded"
	// ErrCodeProviderTransient indicates a retryable provider failure (network, timeout, 5xx).
	ErrCodeProviderTransient ErrorCode = "provider_transient"
	// ErrCodeDeadlineExceeded indicates a stage exceeded its wall-clock budget.
	ErrCodeDeadlineExceeded ErrorCode = "deadline_exceeded"
	// ErrCodeRender indicates document rendering failed.
	ErrCodeRender ErrorCode = "render"
	// ErrCodePersistence indicates a stage-level persistence failure.
	ErrCodePersistence ErrorCode = "persistence"
	// ErrCodeForeignKey indicates a foreign key constraint violation.
	ErrCodeForeignKey ErrorCode = "foreign_key"
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout indicates a database or network timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
)

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: message}
}

// NotFoundf creates a new NotFound error with formatted message.
func NotFoundf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a new Conflict error.
func Conflict(message string) *AppError {
	return &AppError{Code: ErrCodeConflict, Message: message}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

// Validationf creates a new Validation error with formatted message.
func Validationf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
}

// MissingInput creates a new MissingInput error.
func MissingInput(message string) *AppError {
	return &AppError{Code: ErrCodeMissingInput, Message: message}
}

// ProviderOverloaded creates a new ProviderOverloaded error wrapping the provider response.
func ProviderOverloaded(provider string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeProviderOverloaded,
		Message: fmt.Sprintf("provider %s is overloaded", provider),
		Cause:   cause,
	}
}

// TransientProvider creates a new ProviderTransient error wrapping the provider response.
func TransientProvider(provider string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeProviderTransient,
		Message: fmt.Sprintf("transient failure from provider %s", provider),
		Cause:   cause,
	}
}

// DeadlineExceededf creates a new DeadlineExceeded error with formatted message.
func DeadlineExceededf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeDeadlineExceeded, Message: fmt.Sprintf(format, args...)}
}

// Render creates a new Render error.
func Render(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeRender, Message: message, Cause: cause}
}

// Persistence creates a new Persistence error.
func Persistence(message string, cause error) *AppError {
	return &AppError{Code: ErrCodePersistence, Message: message, Cause: cause}
}

// ForeignKey creates a new ForeignKey error.
func ForeignKey(message string) *AppError {
	return &AppError{Code: ErrCodeForeignKey, Message: message}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message}
}

// Internalf creates a new Internal error with formatted message.
func Internalf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool { return isCode(err, ErrCodeNotFound) }

// IsConflict checks if an error is a Conflict error.
func IsConflict(err error) bool { return isCode(err, ErrCodeConflict) }

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool { return isCode(err, ErrCodeValidation) }

// IsMissingInput checks if an error is a MissingInput error.
func IsMissingInput(err error) bool { return isCode(err, ErrCodeMissingInput) }

// IsProviderOverloaded checks if an error carries the overload signature.
func IsProviderOverloaded(err error) bool { return isCode(err, ErrCodeProviderOverloaded) }

// IsTransientProvider checks if an error is a retryable provider failure.
func IsTransientProvider(err error) bool { return isCode(err, ErrCodeProviderTransient) }

// IsDeadlineExceeded checks if an error is a DeadlineExceeded error.
func IsDeadlineExceeded(err error) bool { return isCode(err, ErrCodeDeadlineExceeded) }

// IsRender checks if an error is a Render error.
func IsRender(err error) bool { return isCode(err, ErrCodeRender) }

// IsPersistence checks if an error is a Persistence error.
func IsPersistence(err error) bool { return isCode(err, ErrCodePersistence) }

// IsForeignKey checks if an error is a ForeignKey error.
func IsForeignKey(err error) bool { return isCode(err, ErrCodeForeignKey) }

// IsInternal checks if an error is an Internal error.
func IsInternal(err error) bool { return isCode(err, ErrCodeInternal) }

// IsTimeout checks if an error is a Timeout error.
func IsTimeout(err error) bool { return isCode(err, ErrCodeTimeout) }

// IsCanceled checks if an error is a Canceled error.
func IsCanceled(err error) bool { return isCode(err, ErrCodeCanceled) }

// IsTerminal reports whether an error class must never be retried by the queue.
// Validation and missing-input failures cannot succeed on a fresh attempt, so
// the worker marks the job permanently failed regardless of remaining attempts.
func IsTerminal(err error) bool {
	return IsValidation(err) || IsMissingInput(err)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}
