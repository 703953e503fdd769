package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Details string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewValidationError creates a VALIDATION_ERROR with a caller-facing message
func NewValidationError(message string) *DomainError {
	return NewDomainError(ErrCodeValidation, message)
}

// NewUpstreamError creates an UPSTREAM_ERROR preserving the upstream
// status/body in Details
func NewUpstreamError(message, details string) *DomainError {
	return &DomainError{
		Code:    ErrCodeUpstream,
		Message: message,
		Details: details,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeUpstream      = "UPSTREAM_ERROR"
	ErrCodeConfiguration = "CONFIGURATION_ERROR"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "Missing required fields: title, content, contentType")
	ErrInvalidContentType   = NewDomainError(ErrCodeValidation, "contentType must be 'markdown' or 'text'")
	ErrContentTooLarge      = NewDomainError(ErrCodeValidation, "Content too large. Maximum size is 1MB")
	ErrMissingQueryText     = NewDomainError(ErrCodeValidation, "Missing queryText")
)

// Not found errors
var (
	ErrDocumentNotFound  = NewDomainError(ErrCodeNotFound, "document not found")
	ErrEmbeddingNotFound = NewDomainError(ErrCodeNotFound, "embedding not found")
)

// Configuration errors
var (
	ErrEmbedServiceUnconfigured = NewDomainError(ErrCodeConfiguration, "embedding service URL not configured")
	ErrCallbackURLUnconfigured  = NewDomainError(ErrCodeConfiguration, "callback base URL not configured")
)
