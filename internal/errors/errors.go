// Package errors provides structured error types for cpkpack.
// Every error carries a category, a code, a message and a retryable flag so
// callers can branch on the failure class without matching strings.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by the layer that raised them.
type ErrorCategory string

const (
	ErrCategoryFormat     ErrorCategory = "FORMAT"
	ErrCategoryArchive    ErrorCategory = "ARCHIVE"
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryCatalog    ErrorCategory = "CATALOG"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Format codes
	CodeTruncated      = "TRUNCATED"
	CodeFormatMismatch = "FORMAT_MISMATCH"

	// Archive codes
	CodeDuplicateKey     = "DUPLICATE_KEY"
	CodeCapacityExceeded = "CAPACITY_EXCEEDED"
	CodeWriterClosed     = "WRITER_CLOSED"

	// Validation codes
	CodeInvalidSchema   = "INVALID_SCHEMA"
	CodeInvalidConfig   = "INVALID_CONFIG"
	CodeInvalidManifest = "INVALID_MANIFEST"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Catalog codes
	CodeArchiveNotFound    = "ARCHIVE_NOT_FOUND"
	CodeCorruptionDetected = "CORRUPTION_DETECTED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// Sentinels for errors.Is matching. Is compares category and code only, so
// any error built with the same pair matches regardless of its message.
var (
	ErrTruncated        = New(ErrCategoryFormat, CodeTruncated, "unexpected end of stream")
	ErrFormatMismatch   = New(ErrCategoryFormat, CodeFormatMismatch, "format mismatch")
	ErrDuplicateKey     = New(ErrCategoryArchive, CodeDuplicateKey, "duplicate key")
	ErrCapacityExceeded = New(ErrCategoryArchive, CodeCapacityExceeded, "capacity exceeded")
	ErrWriterClosed     = New(ErrCategoryArchive, CodeWriterClosed, "writer is closed")
)

// CPKError is the structured error type used throughout the module.
type CPKError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *CPKError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *CPKError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *CPKError) Is(target error) bool {
	var t *CPKError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new CPKError.
func New(category ErrorCategory, code, message string) *CPKError {
	return &CPKError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Newf creates a new CPKError with a formatted message.
func Newf(category ErrorCategory, code, format string, args ...interface{}) *CPKError {
	return New(category, code, fmt.Sprintf(format, args...))
}

// Wrap creates a new CPKError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *CPKError {
	return &CPKError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *CPKError) WithDetails(details map[string]interface{}) *CPKError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var ce *CPKError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a CPKError.
func GetCategory(err error) ErrorCategory {
	var ce *CPKError
	if errors.As(err, &ce) {
		return ce.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a CPKError.
func GetCode(err error) string {
	var ce *CPKError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable. Only object storage
// transfers are; everything in the codec and the writer is deterministic.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewTruncatedError(message string, cause error) *CPKError {
	return Wrap(ErrCategoryFormat, CodeTruncated, message, cause)
}

func NewFormatError(format string, args ...interface{}) *CPKError {
	return Newf(ErrCategoryFormat, CodeFormatMismatch, format, args...)
}

func NewDuplicateKeyError(format string, args ...interface{}) *CPKError {
	return Newf(ErrCategoryArchive, CodeDuplicateKey, format, args...)
}

func NewCapacityError(format string, args ...interface{}) *CPKError {
	return Newf(ErrCategoryArchive, CodeCapacityExceeded, format, args...)
}

func NewValidationError(code, message string) *CPKError {
	return New(ErrCategoryValidation, code, message)
}

func NewStorageError(code, message string, cause error) *CPKError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewCatalogError(code, message string, cause error) *CPKError {
	return Wrap(ErrCategoryCatalog, code, message, cause)
}

func NewInternalError(message string, cause error) *CPKError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
