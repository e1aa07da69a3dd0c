package errors

import (
	stderrors "errors"
	"fmt"
)

// Error codes for the application error taxonomy. Callers branch on these to
// decide whether to surface, retry, or abort.
const (
	CodeValidation         = "VALIDATION"
	CodeStorageBusy        = "STORAGE_BUSY"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeNotFound           = "NOT_FOUND"
)

// AppError is a typed application error carrying a stable code
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewValidation reports a caller mistake (missing or malformed input).
// Never retried automatically; surfaced verbatim to the user.
func NewValidation(message string) *AppError {
	return &AppError{Code: CodeValidation, Message: message}
}

// NewBusy reports engine lock contention. The caller may retry after a short
// delay; the core never auto-retries writes to avoid duplicate side effects.
func NewBusy(message string, cause error) *AppError {
	return &AppError{Code: CodeStorageBusy, Message: message, Cause: cause}
}

// NewUnavailable reports a connection that could not be established after
// bounded retries. Fatal for the current operation.
func NewUnavailable(message string, cause error) *AppError {
	return &AppError{Code: CodeStorageUnavailable, Message: message, Cause: cause}
}

// NewNotFound reports a reference to a row that does not exist
func NewNotFound(message string) *AppError {
	return &AppError{Code: CodeNotFound, Message: message}
}

// Wrap attaches a code and message to an underlying error
func Wrap(err error, code, message string) *AppError {
	return &AppError{Code: code, Message: message, Cause: err}
}

func hasCode(err error, code string) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func IsValidation(err error) bool  { return hasCode(err, CodeValidation) }
func IsBusy(err error) bool        { return hasCode(err, CodeStorageBusy) }
func IsUnavailable(err error) bool { return hasCode(err, CodeStorageUnavailable) }
func IsNotFound(err error) bool    { return hasCode(err, CodeNotFound) }

// GetCode returns the application error code, or UNKNOWN for foreign errors
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}
