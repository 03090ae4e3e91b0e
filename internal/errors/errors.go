// Package errors provides structured error types for stac-table.
// Every error carries a category and a code so callers can tell bad input
// apart from missing data, storage failures and invalid output documents.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by the kind of failure.
type ErrorCategory string

const (
	ErrCategoryInvalidArgument ErrorCategory = "INVALID_ARGUMENT"
	ErrCategoryNotFound        ErrorCategory = "NOT_FOUND"
	ErrCategoryConnection      ErrorCategory = "CONNECTION"
	ErrCategoryValidation      ErrorCategory = "VALIDATION"
	ErrCategoryInternal        ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Invalid argument codes
	CodeMissingOption      = "MISSING_OPTION"
	CodeInvalidOption      = "INVALID_OPTION"
	CodeAmbiguousValue     = "AMBIGUOUS_VALUE"
	CodeUnsupportedType    = "UNSUPPORTED_TYPE"
	CodeUnsupportedCRS     = "UNSUPPORTED_CRS"
	CodeUnsupportedScheme  = "UNSUPPORTED_SCHEME"
	CodeInvalidParquet     = "INVALID_PARQUET"
	CodeInvalidGeometry    = "INVALID_GEOMETRY"
	CodeInvalidDocument    = "INVALID_DOCUMENT"
	CodeMissingGeoMetadata = "MISSING_GEO_METADATA"

	// Not found codes
	CodeNoFragments    = "NO_FRAGMENTS"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"
	CodeColumnNotFound = "COLUMN_NOT_FOUND"
	CodeEmptyColumn    = "EMPTY_COLUMN"

	// Connection codes
	CodeBackendInit = "BACKEND_INIT"
	CodeReadFailed  = "READ_FAILED"
	CodeWriteFailed = "WRITE_FAILED"
	CodeListFailed  = "LIST_FAILED"
	CodeSchemaFetch = "SCHEMA_FETCH"

	// Validation codes
	CodeSchemaInvalid  = "SCHEMA_INVALID"
	CodeDocumentFailed = "DOCUMENT_FAILED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// StacTableError is the structured error type used throughout the module.
type StacTableError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Details  map[string]interface{}
	Cause    error
}

// Error returns a formatted error string.
func (e *StacTableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *StacTableError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
// A target with an empty code matches on category alone.
func (e *StacTableError) Is(target error) bool {
	var t *StacTableError
	if errors.As(target, &t) {
		if t.Code == "" {
			return e.Category == t.Category
		}
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new StacTableError.
func New(category ErrorCategory, code, message string) *StacTableError {
	return &StacTableError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// Wrap creates a new StacTableError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *StacTableError {
	return &StacTableError{
		Category: category,
		Code:     code,
		Message:  message,
		Cause:    cause,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *StacTableError) WithDetails(details map[string]interface{}) *StacTableError {
	cp := *e
	cp.Details = details
	return &cp
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a StacTableError.
func GetCategory(err error) ErrorCategory {
	var se *StacTableError
	if errors.As(err, &se) {
		return se.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a StacTableError.
func GetCode(err error) string {
	var se *StacTableError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// Sentinel category matchers for errors.Is.
var (
	ErrInvalidArgument = &StacTableError{Category: ErrCategoryInvalidArgument}
	ErrNotFound        = &StacTableError{Category: ErrCategoryNotFound}
	ErrConnection      = &StacTableError{Category: ErrCategoryConnection}
	ErrValidation      = &StacTableError{Category: ErrCategoryValidation}
)

func IsInvalidArgument(err error) bool { return GetCategory(err) == ErrCategoryInvalidArgument }
func IsNotFound(err error) bool        { return GetCategory(err) == ErrCategoryNotFound }
func IsConnection(err error) bool      { return GetCategory(err) == ErrCategoryConnection }
func IsValidation(err error) bool      { return GetCategory(err) == ErrCategoryValidation }

// Convenience constructors for common errors.

func NewInvalidArgument(code, message string) *StacTableError {
	return New(ErrCategoryInvalidArgument, code, message)
}

func NewInvalidArgumentf(code, format string, args ...interface{}) *StacTableError {
	return New(ErrCategoryInvalidArgument, code, fmt.Sprintf(format, args...))
}

func NewNotFound(code, message string) *StacTableError {
	return New(ErrCategoryNotFound, code, message)
}

func NewConnectionError(code, message string, cause error) *StacTableError {
	return Wrap(ErrCategoryConnection, code, message, cause)
}

func NewValidationError(code, message string, cause error) *StacTableError {
	return Wrap(ErrCategoryValidation, code, message, cause)
}

func NewInternalError(message string, cause error) *StacTableError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
