package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeUnauthenticated     ErrorType = "unauthenticated"
	ErrorTypeForbidden           ErrorType = "forbidden"
	ErrorTypeValidation          ErrorType = "validation"
	ErrorTypeTranscriptionFailed ErrorType = "transcription_failed"
	ErrorTypeTranslationFailed   ErrorType = "translation_failed"
	ErrorTypeSummarizationFailed ErrorType = "summarization_failed"
	ErrorTypeSynthesisFailed     ErrorType = "synthesis_failed"
	ErrorTypeLoggingFailed       ErrorType = "logging_failed"
	ErrorTypeUnexpected          ErrorType = "unexpected"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Sentinels for errors.Is comparisons. Match on Type only.
var (
	ErrUnauthenticated     = NewDomainError(ErrorTypeUnauthenticated, "authentication failed", nil)
	ErrTokenExpired        = NewDomainError(ErrorTypeUnauthenticated, "token expired", nil)
	ErrInvalidToken        = NewDomainError(ErrorTypeUnauthenticated, "invalid token", nil)
	ErrForbidden           = NewDomainError(ErrorTypeForbidden, "admin access required", nil)
	ErrInvalidInput        = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrEmptyQuery          = NewDomainError(ErrorTypeValidation, "query text is required", nil)
	ErrTranscriptionFailed = NewDomainError(ErrorTypeTranscriptionFailed, "transcription failed", nil)
	ErrTranslationFailed   = NewDomainError(ErrorTypeTranslationFailed, "query translation failed", nil)
	ErrStatementRejected   = NewDomainError(ErrorTypeTranslationFailed, "statement rejected by read-only policy", nil)
	ErrSummarizationFailed = NewDomainError(ErrorTypeSummarizationFailed, "summarization failed", nil)
	ErrSynthesisFailed     = NewDomainError(ErrorTypeSynthesisFailed, "speech synthesis failed", nil)
	ErrLoggingFailed       = NewDomainError(ErrorTypeLoggingFailed, "interaction logging failed", nil)
	ErrUnexpected          = NewDomainError(ErrorTypeUnexpected, "unexpected error", nil)
)

// Error type checking helper functions

func isType(err error, errType ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == errType
	}
	return false
}

// IsUnauthenticatedError checks if an error is an authentication failure
func IsUnauthenticatedError(err error) bool {
	return isType(err, ErrorTypeUnauthenticated)
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	return isType(err, ErrorTypeForbidden)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsTranscriptionError checks if an error came from the transcription stage
func IsTranscriptionError(err error) bool {
	return isType(err, ErrorTypeTranscriptionFailed)
}

// IsTranslationError checks if an error came from the translation stage
func IsTranslationError(err error) bool {
	return isType(err, ErrorTypeTranslationFailed)
}

// IsSummarizationError checks if an error came from the summarization stage
func IsSummarizationError(err error) bool {
	return isType(err, ErrorTypeSummarizationFailed)
}

// IsSynthesisError checks if an error came from the synthesis stage
func IsSynthesisError(err error) bool {
	return isType(err, ErrorTypeSynthesisFailed)
}

// IsDegradable reports whether the pipeline answers err with a spoken apology
// instead of failing the request.
func IsDegradable(err error) bool {
	switch GetErrorType(err) {
	case ErrorTypeTranscriptionFailed, ErrorTypeTranslationFailed, ErrorTypeSummarizationFailed:
		return true
	}
	return false
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapUnexpected wraps an error as an unexpected error
func WrapUnexpected(message string, err error) error {
	return NewDomainError(ErrorTypeUnexpected, message, err)
}
