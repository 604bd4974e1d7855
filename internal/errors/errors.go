package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

// Core categories. These values are part of the public contract and never change meaning.
const (
	ErrorTypeInvalidImage         ErrorType = "invalid_image"
	ErrorTypeFeatureExtraction    ErrorType = "feature_extraction_failure"
	ErrorTypeModelLoad            ErrorType = "model_load_failure"
	ErrorTypeModelHashMismatch    ErrorType = "model_hash_mismatch"
	ErrorTypeSchemaMismatch       ErrorType = "schema_mismatch"
	ErrorTypeNumericalInstability ErrorType = "numerical_instability"
)

// Categories used by the HTTP and storage layers around the engine.
const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeInternal   ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Code returns the coded category of the error
func (e *AppError) Code() ErrorType {
	return e.Type
}

// WithDetails returns a copy of the error carrying extra detail text
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

func newError(t ErrorType, status int, message string, cause error) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		StatusCode: status,
		Cause:      cause,
	}
}

// NewInvalidImageError creates an error for a malformed or degenerate image buffer
func NewInvalidImageError(message string, cause error) *AppError {
	return newError(ErrorTypeInvalidImage, http.StatusBadRequest, message, cause)
}

// NewFeatureExtractionError creates an error for a failed required feature module
func NewFeatureExtractionError(message string, cause error) *AppError {
	return newError(ErrorTypeFeatureExtraction, http.StatusUnprocessableEntity, message, cause)
}

// NewModelLoadError creates an error for a missing or corrupt model
func NewModelLoadError(message string, cause error) *AppError {
	return newError(ErrorTypeModelLoad, http.StatusInternalServerError, message, cause)
}

// NewModelHashMismatchError creates an error for a model whose content hash is not the expected one
func NewModelHashMismatchError(message string, cause error) *AppError {
	return newError(ErrorTypeModelHashMismatch, http.StatusInternalServerError, message, cause)
}

// NewSchemaMismatchError creates an error for a feature vector that does not match the model
func NewSchemaMismatchError(message string, cause error) *AppError {
	return newError(ErrorTypeSchemaMismatch, http.StatusUnprocessableEntity, message, cause)
}

// NewNumericalInstabilityError creates an error for a non-finite intermediate value
func NewNumericalInstabilityError(message string, cause error) *AppError {
	return newError(ErrorTypeNumericalInstability, http.StatusUnprocessableEntity, message, cause)
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *AppError {
	return newError(ErrorTypeValidation, http.StatusBadRequest, message, cause)
}

// NewNetworkError creates a new network error
func NewNetworkError(message string, cause error) *AppError {
	return newError(ErrorTypeNetwork, http.StatusBadGateway, message, cause)
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, cause error) *AppError {
	return newError(ErrorTypeTimeout, http.StatusGatewayTimeout, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, message, cause)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, cause error) *AppError {
	return newError(ErrorTypeNotFound, http.StatusNotFound, message, cause)
}

// TypeOf returns the category of the first AppError in the chain, or "" if there is none
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsType checks if the error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	return TypeOf(err) == errorType
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
