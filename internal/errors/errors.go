// Package errors provides a lightweight structured error type (PipelineError)
// for category-based classification across the document correction pipeline.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory represents the category of a pipeline error for classification
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// Document decode/encode errors
	CategoryParse       ErrorCategory = "parse"
	CategoryReconstruct ErrorCategory = "reconstruct"

	// Stage execution errors (model unavailable, external checker unreachable)
	CategoryStage ErrorCategory = "stage"

	// Contract violations: a stage returned a block count/order/ref mismatch.
	// Never caught internally; tolerating it would silently corrupt reconstruction.
	CategoryInvariant ErrorCategory = "invariant"

	// Runtime and infrastructure errors
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryInternal   ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops the run
	SeverityError   ErrorSeverity = "error"   // Error, but recoverable per policy
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
)

// PipelineError is a structured error with category, retryability, and context
type PipelineError struct {
	Category  ErrorCategory `json:"category"`
	Severity  ErrorSeverity `json:"severity"`
	Message   string        `json:"message"`
	Cause     error         `json:"cause,omitempty"`
	Retryable bool          `json:"retryable"`
	Context   ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for PipelineError
type ContextFields map[string]any

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *PipelineError) WithContext(key string, value any) *PipelineError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new PipelineError
func New(category ErrorCategory, severity ErrorSeverity, message string) *PipelineError {
	return &PipelineError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new PipelineError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *PipelineError {
	return &PipelineError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// WrapRetryable creates a new retryable PipelineError that wraps an existing error
func WrapRetryable(err error, category ErrorCategory, severity ErrorSeverity, message string) *PipelineError {
	return &PipelineError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Cause:     err,
		Retryable: true,
	}
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Category == category
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal
// if the error is not a PipelineError
func GetCategory(err error) ErrorCategory {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return CategoryInternal
}
