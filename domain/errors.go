package domain

import "fmt"

// Error codes used across the analysis engine
const (
	ErrCodeBudgetExhausted = "BUDGET_EXHAUSTED"
	ErrCodeAuthFailed      = "AUTHENTICATION_FAILED"
	ErrCodeForbidden       = "AUTHORIZATION_FAILED"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeUnreachable     = "UNREACHABLE"
	ErrCodeTimeout         = "TIMEOUT"
	ErrCodeAnalyzerFailed  = "ANALYZER_INTERNAL"
	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeUnexpected      = "UNEXPECTED_RESPONSE"
)

// DomainError is the error type carried across layer boundaries
type DomainError struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface
func (e DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e DomainError) Unwrap() error {
	return e.Cause
}

// Is matches errors by code so sentinel-style comparison works with errors.Is
func (e DomainError) Is(target error) bool {
	if other, ok := target.(DomainError); ok {
		return e.Code == other.Code
	}
	return false
}

// NewDomainError creates a DomainError with the given code and message
func NewDomainError(code, message string, cause error) error {
	return DomainError{Code: code, Message: message, Cause: cause}
}

// NewBudgetExhaustedError signals the hard call ceiling has been reached.
// Fatal for the run: no further remote calls are possible.
func NewBudgetExhaustedError(used, max int) error {
	return DomainError{
		Code:    ErrCodeBudgetExhausted,
		Message: fmt.Sprintf("api call budget exhausted (%d/%d)", used, max),
	}
}

// NewAuthFailedError signals an invalid bearer credential (HTTP 401)
func NewAuthFailedError(detail string) error {
	return DomainError{Code: ErrCodeAuthFailed, Message: detail}
}

// NewForbiddenError signals insufficient permissions (HTTP 403)
func NewForbiddenError(detail string) error {
	return DomainError{Code: ErrCodeForbidden, Message: detail}
}

// NewNotFoundError signals a missing endpoint (HTTP 404)
func NewNotFoundError(path string) error {
	return DomainError{Code: ErrCodeNotFound, Message: fmt.Sprintf("endpoint not found: %s", path)}
}

// NewUnreachableError signals a transport-level failure before any response
func NewUnreachableError(detail string, cause error) error {
	return DomainError{Code: ErrCodeUnreachable, Message: detail, Cause: cause}
}

// NewTimeoutError signals a single request exceeding its deadline
func NewTimeoutError(path string, cause error) error {
	return DomainError{Code: ErrCodeTimeout, Message: fmt.Sprintf("request timed out: %s", path), Cause: cause}
}

// NewAnalyzerError wraps an unexpected failure inside an analyzer
func NewAnalyzerError(objective string, cause error) error {
	return DomainError{Code: ErrCodeAnalyzerFailed, Message: fmt.Sprintf("analyzer %q failed", objective), Cause: cause}
}

// NewInvalidInputError signals a malformed request or argument
func NewInvalidInputError(message string, cause error) error {
	return DomainError{Code: ErrCodeInvalidInput, Message: message, Cause: cause}
}

// NewUnexpectedResponseError signals a non-2xx status outside the mapped set
func NewUnexpectedResponseError(status int, path string) error {
	return DomainError{
		Code:    ErrCodeUnexpected,
		Message: fmt.Sprintf("unexpected response %d from %s", status, path),
	}
}

// ValidationError reports a malformed Finding or Recommendation.
// It is a programmer error: construction sites must be fixed, not handled.
type ValidationError struct {
	Kind   string // "finding" or "recommendation"
	ID     string
	Reason string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Kind, e.ID, e.Reason)
}
