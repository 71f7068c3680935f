// Package errors provides a lightweight structured error type (VerdocsError)
// for category-based classification across the build pipeline and CLI.
package errors

import (
	"fmt"
)

// ErrorCategory classifies a VerdocsError for exit-code mapping and reporting.
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// Version-control errors (ref resolution, repository access)
	CategoryGit ErrorCategory = "git"

	// Per-ref build pipeline errors
	CategorySnapshot ErrorCategory = "snapshot"
	CategoryCompile  ErrorCategory = "compile"
	CategoryCache    ErrorCategory = "cache"

	// Site post-processing errors
	CategoryAssembly ErrorCategory = "assembly"

	// Runtime and infrastructure errors
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryRuntime    ErrorCategory = "runtime"
	CategoryInternal   ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
)

// VerdocsError is a structured error with category, severity, and context.
type VerdocsError struct {
	Category ErrorCategory `json:"category"`
	Severity ErrorSeverity `json:"severity"`
	Message  string        `json:"message"`
	Cause    error         `json:"cause,omitempty"`
	Context  ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for VerdocsError.
type ContextFields map[string]any

// Error implements the error interface.
func (e *VerdocsError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling.
func (e *VerdocsError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error.
func (e *VerdocsError) WithContext(key string, value any) *VerdocsError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new VerdocsError.
func New(category ErrorCategory, severity ErrorSeverity, message string) *VerdocsError {
	return &VerdocsError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new VerdocsError that wraps an existing error.
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *VerdocsError {
	return &VerdocsError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// WrapError wraps an existing error with SeverityError.
func WrapError(err error, category ErrorCategory, message string) *VerdocsError {
	return Wrap(err, category, SeverityError, message)
}

// IsCategory checks if an error belongs to a specific category.
func IsCategory(err error, category ErrorCategory) bool {
	if ve, ok := err.(*VerdocsError); ok {
		return ve.Category == category
	}
	return false
}

// GetCategory extracts the category from an error, or CategoryInternal if it
// is not a VerdocsError.
func GetCategory(err error) ErrorCategory {
	if ve, ok := err.(*VerdocsError); ok {
		return ve.Category
	}
	return CategoryInternal
}
