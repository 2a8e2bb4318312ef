// Package errors provides a structured error system for dropboxfs with
// error codes, categories, and contextual metadata.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode identifies a class of failure that callers can branch on.
type ErrorCode string

const (
	// Configuration errors
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	ErrCodeMissingConfig    ErrorCode = "MISSING_CONFIG"
	ErrCodeConfigLoad       ErrorCode = "CONFIG_LOAD"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Remote storage errors
	ErrCodePathNotFound     ErrorCode = "PATH_NOT_FOUND"
	ErrCodeRevisionConflict ErrorCode = "REVISION_CONFLICT"
	ErrCodeRemoteFailure    ErrorCode = "REMOTE_FAILURE"
	ErrCodeNetworkError     ErrorCode = "NETWORK_ERROR"
	ErrCodeAccessDenied     ErrorCode = "ACCESS_DENIED"
	ErrCodeQuotaExceeded    ErrorCode = "QUOTA_EXCEEDED"

	// Filesystem errors
	ErrCodeMountFailed          ErrorCode = "MOUNT_FAILED"
	ErrCodeUnmountFailed        ErrorCode = "UNMOUNT_FAILED"
	ErrCodeUnsupportedOperation ErrorCode = "UNSUPPORTED_OPERATION"
	ErrCodePathInvalid          ErrorCode = "PATH_INVALID"
	ErrCodeHandleNotFound       ErrorCode = "HANDLE_NOT_FOUND"

	// Authentication errors
	ErrCodeAuthenticationFailed ErrorCode = "AUTHENTICATION_FAILED"
	ErrCodeTokenMissing         ErrorCode = "TOKEN_MISSING"

	// Internal errors
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryStorage       ErrorCategory = "storage"
	CategoryFilesystem    ErrorCategory = "filesystem"
	CategoryAuth          ErrorCategory = "auth"
	CategoryInternal      ErrorCategory = "internal"
)

// Error is a structured error carrying a code, category, and context.
type Error struct {
	Code      ErrorCode         `json:"code"`
	Category  ErrorCategory     `json:"category"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context,omitempty"`
	Cause     error             `json:"-"`
	Timestamp time.Time         `json:"timestamp"`
	Component string            `json:"component,omitempty"`
	Operation string            `json:"operation,omitempty"`
	Path      string            `json:"path,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on error code so sentinel comparison works through wrapping.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// String returns a detailed representation for logging.
func (e *Error) String() string {
	parts := []string{
		fmt.Sprintf("Code=%s", e.Code),
		fmt.Sprintf("Category=%s", e.Category),
		fmt.Sprintf("Message=%q", e.Message),
	}
	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("Path=%s", e.Path))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}
	return fmt.Sprintf("Error{%s}", strings.Join(parts, ", "))
}

// NewError creates a structured error with the category derived from the code.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:      code,
		Category:  GetCategory(code),
		Message:   message,
		Timestamp: time.Now(),
	}
}

// GetCategory determines the category for a code.
func GetCategory(code ErrorCode) ErrorCategory {
	switch code {
	case ErrCodeInvalidConfig, ErrCodeMissingConfig, ErrCodeConfigLoad, ErrCodeConfigValidation:
		return CategoryConfiguration
	case ErrCodePathNotFound, ErrCodeRevisionConflict, ErrCodeRemoteFailure,
		ErrCodeNetworkError, ErrCodeAccessDenied, ErrCodeQuotaExceeded:
		return CategoryStorage
	case ErrCodeMountFailed, ErrCodeUnmountFailed, ErrCodeUnsupportedOperation,
		ErrCodePathInvalid, ErrCodeHandleNotFound:
		return CategoryFilesystem
	case ErrCodeAuthenticationFailed, ErrCodeTokenMissing:
		return CategoryAuth
	default:
		return CategoryInternal
	}
}

// WithContext adds a contextual key/value pair.
func (e *Error) WithContext(key, value string) *Error {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithComponent sets the originating component.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// WithOperation sets the operation that failed.
func (e *Error) WithOperation(operation string) *Error {
	e.Operation = operation
	return e
}

// WithPath sets the remote path the operation was addressing.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithCause sets the underlying cause.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// NotFound builds a PATH_NOT_FOUND error for the given remote path.
func NotFound(path string) *Error {
	return NewError(ErrCodePathNotFound, "path does not exist").WithPath(path)
}

// Conflict builds a REVISION_CONFLICT error for the given remote path.
func Conflict(path string) *Error {
	return NewError(ErrCodeRevisionConflict, "revision precondition failed").WithPath(path)
}

// Unsupported builds an UNSUPPORTED_OPERATION error.
func Unsupported(operation string) *Error {
	return NewError(ErrCodeUnsupportedOperation, "operation not supported by backend").
		WithOperation(operation)
}

// InvalidPath builds a PATH_INVALID error for a path the remote API
// cannot address.
func InvalidPath(path, reason string) *Error {
	return NewError(ErrCodePathInvalid, reason).WithPath(path)
}

// IsNotFound reports whether err carries the PATH_NOT_FOUND code.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodePathNotFound)
}

// IsConflict reports whether err carries the REVISION_CONFLICT code.
func IsConflict(err error) bool {
	return hasCode(err, ErrCodeRevisionConflict)
}

// IsUnsupported reports whether err carries the UNSUPPORTED_OPERATION code.
func IsUnsupported(err error) bool {
	return hasCode(err, ErrCodeUnsupportedOperation)
}

// IsInvalidPath reports whether err carries the PATH_INVALID code.
func IsInvalidPath(err error) bool {
	return hasCode(err, ErrCodePathInvalid)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code == code
	}
	return false
}
