// Package errors provides structured error types for the N2 EDM reader.
// All errors include a category, code, message, and retryable flag so that
// callers can branch on failures without matching strings.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by the stage that produced them.
type ErrorCategory string

const (
	ErrCategoryConfig   ErrorCategory = "CONFIG"
	ErrCategoryData     ErrorCategory = "DATA"
	ErrCategoryResource ErrorCategory = "RESOURCE"
	ErrCategoryStorage  ErrorCategory = "STORAGE"
	ErrCategoryCatalog  ErrorCategory = "CATALOG"
	ErrCategoryInternal ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Config codes
	CodeConfigNotFound   = "CONFIG_NOT_FOUND"
	CodeInvalidFilename  = "INVALID_FILENAME"
	CodeConfigParseError = "CONFIG_PARSE_ERROR"
	CodeDatasetInvalid   = "DATASET_INVALID"

	// Data codes
	CodeShortRead        = "SHORT_READ"
	CodeRowCountMismatch = "ROW_COUNT_MISMATCH"
	CodeIntegrityWarning = "INTEGRITY_WARNING"

	// Resource codes
	CodeOutOfMemory = "OUT_OF_MEMORY"

	// Storage codes
	CodeDirectoryScan  = "DIRECTORY_SCAN"
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Catalog codes
	CodeCatalogFailure = "CATALOG_FAILURE"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// Sentinels for errors.Is matching. Only category and code are compared.
var (
	ErrConfigNotFound   = New(ErrCategoryConfig, CodeConfigNotFound, "config not found")
	ErrInvalidFilename  = New(ErrCategoryConfig, CodeInvalidFilename, "invalid filename")
	ErrConfigParse      = New(ErrCategoryConfig, CodeConfigParseError, "config parse error")
	ErrDatasetInvalid   = New(ErrCategoryConfig, CodeDatasetInvalid, "dataset invalid")
	ErrShortRead        = New(ErrCategoryData, CodeShortRead, "short read")
	ErrRowCountMismatch = New(ErrCategoryData, CodeRowCountMismatch, "row count mismatch")
	ErrIntegrity        = New(ErrCategoryData, CodeIntegrityWarning, "integrity warning")
	ErrOutOfMemory      = New(ErrCategoryResource, CodeOutOfMemory, "out of memory")
	ErrDirectoryScan    = New(ErrCategoryStorage, CodeDirectoryScan, "directory scan failed")
	ErrObjectNotFound   = New(ErrCategoryStorage, CodeObjectNotFound, "object not found")
)

// N2Error is the structured error type used throughout the module.
type N2Error struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *N2Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *N2Error) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *N2Error) Is(target error) bool {
	var t *N2Error
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new N2Error.
func New(category ErrorCategory, code, message string) *N2Error {
	return &N2Error{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new N2Error wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *N2Error {
	return &N2Error{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *N2Error) WithDetails(details map[string]interface{}) *N2Error {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var ne *N2Error
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not an N2Error.
func GetCategory(err error) ErrorCategory {
	var ne *N2Error
	if errors.As(err, &ne) {
		return ne.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not an N2Error.
func GetCode(err error) string {
	var ne *N2Error
	if errors.As(err, &ne) {
		return ne.Code
	}
	return ""
}

func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	case category == ErrCategoryCatalog && code == CodeCatalogFailure:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewConfigNotFound(path string, cause error) *N2Error {
	return Wrap(ErrCategoryConfig, CodeConfigNotFound, "config not found: "+path, cause)
}

func NewInvalidFilename(path string) *N2Error {
	return New(ErrCategoryConfig, CodeInvalidFilename, "invalid filename: "+path)
}

func NewConfigParseError(path string, line int, cause error) *N2Error {
	return Wrap(ErrCategoryConfig, CodeConfigParseError, fmt.Sprintf("%s line %d", path, line), cause)
}

// NewDatasetInvalid reports a dataset whose first timestamp could not be
// established. It wraps a CONFIG_NOT_FOUND error so both codes match.
func NewDatasetInvalid(path string) *N2Error {
	return Wrap(ErrCategoryConfig, CodeDatasetInvalid, "no first timestamp: "+path,
		New(ErrCategoryConfig, CodeConfigNotFound, "config unusable: "+path))
}

func NewShortRead(path string, row int, cause error) *N2Error {
	return Wrap(ErrCategoryData, CodeShortRead, fmt.Sprintf("%s row %d", path, row), cause)
}

func NewRowCountMismatch(path string, got, want int) *N2Error {
	return New(ErrCategoryData, CodeRowCountMismatch, fmt.Sprintf("%s: read %d rows, expected %d", path, got, want)).
		WithDetails(map[string]interface{}{"rows": got, "expected": want})
}

func NewIntegrityWarning(path string, row int, got, want uint64) *N2Error {
	return New(ErrCategoryData, CodeIntegrityWarning,
		fmt.Sprintf("%s row %d: EOL 0x%X, expecting 0x%X", path, row, got, want))
}

func NewOutOfMemory(message string, cause error) *N2Error {
	return Wrap(ErrCategoryResource, CodeOutOfMemory, message, cause)
}

func NewStorageError(code, message string, cause error) *N2Error {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewCatalogError(message string, cause error) *N2Error {
	return Wrap(ErrCategoryCatalog, CodeCatalogFailure, message, cause)
}

func NewInternalError(message string, cause error) *N2Error {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
