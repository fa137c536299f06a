package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorType represents the broad class of an error
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeConflict      ErrorType = "conflict"
	ErrorTypeInternal      ErrorType = "internal"
	ErrorTypeExternal      ErrorType = "external"
	ErrorTypeTimeout       ErrorType = "timeout"
	ErrorTypeNode          ErrorType = "node"
	ErrorTypeExecution     ErrorType = "execution"
	ErrorTypeDatabase      ErrorType = "database"
	ErrorTypeNetwork       ErrorType = "network"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeCredential    ErrorType = "credential"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Request building
	CodeUnsupportedOperation ErrorCode = "unsupported_operation"
	CodeUnsupportedResource  ErrorCode = "unsupported_resource"
	CodeInvalidPayload       ErrorCode = "invalid_payload"
	CodeParameterResolution  ErrorCode = "parameter_resolution"

	// Dispatch
	CodeTransport ErrorCode = "transport"

	// Validation
	CodeInvalidInput  ErrorCode = "invalid_input"
	CodeMissingField  ErrorCode = "missing_field"
	CodeInvalidFormat ErrorCode = "invalid_format"

	// Resources
	CodeResourceNotFound ErrorCode = "resource_not_found"
	CodeResourceExists   ErrorCode = "resource_exists"

	// Credentials
	CodeInvalidCredentials ErrorCode = "invalid_credentials"
	CodeTokenExpired       ErrorCode = "token_expired"

	// Execution
	CodeNodeExecution     ErrorCode = "node_execution"
	CodeNodeConfiguration ErrorCode = "node_configuration"
	CodeExecutionWaiting  ErrorCode = "execution_waiting"

	// System
	CodeDatabaseQuery   ErrorCode = "database_query"
	CodeExternalService ErrorCode = "external_service"
	CodeTimeout         ErrorCode = "timeout"
	CodeInternal        ErrorCode = "internal_error"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType      `json:"type"`
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	Details    string         `json:"details,omitempty"`
	Cause      error          `json:"-"`
	Context    map[string]any `json:"context,omitempty"`
	StackTrace string         `json:"stack_trace,omitempty"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds a context value to the error
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithCause sets the underlying cause
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails adds additional details
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithStackTrace captures the current stack trace
func (e *AppError) WithStackTrace() *AppError {
	e.StackTrace = captureStackTrace()
	return e
}

// New creates a new AppError
func New(errorType ErrorType, code ErrorCode, message string) *AppError {
	return &AppError{
		Type:    errorType,
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// Newf creates a new AppError with a formatted message
func Newf(errorType ErrorType, code ErrorCode, format string, args ...any) *AppError {
	return New(errorType, code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error. A nil err yields nil.
func Wrap(err error, errorType ErrorType, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Type:    errorType,
		Code:    code,
		Message: message,
		Cause:   err,
		Context: make(map[string]any),
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, errorType ErrorType, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, errorType, code, fmt.Sprintf(format, args...))
}

func Is(err error, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetAppError extracts the first AppError from the error chain
func GetAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.AppError
	}
	return nil
}

// Message returns the human-facing text of err without the code prefix
func Message(err error) string {
	if err == nil {
		return ""
	}
	appErr := GetAppError(err)
	if appErr == nil {
		return err.Error()
	}
	if appErr.Details != "" {
		return appErr.Message + ": " + appErr.Details
	}
	return appErr.Message
}

// IsCode reports whether any AppError in the chain carries code
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		switch e := err.(type) {
		case *AppError:
			if e.Code == code {
				return true
			}
		case *HTTPError:
			if e.Code == code {
				return true
			}
		}
		err = errors.Unwrap(err)
	}
	return false
}

// NewUnsupportedOperationError reports an operation outside the dispatch table
func NewUnsupportedOperationError(operation string) *AppError {
	return Newf(ErrorTypeValidation, CodeUnsupportedOperation, "The operation %q is not supported", operation).
		WithContext("operation", operation)
}

// NewUnsupportedResourceError reports a resource type with no base path
func NewUnsupportedResourceError(resource string) *AppError {
	return Newf(ErrorTypeValidation, CodeUnsupportedResource, "The resource %q is not supported", resource).
		WithContext("resource", resource)
}

// NewInvalidPayloadError reports a payload string that is not valid JSON
func NewInvalidPayloadError(cause error) *AppError {
	err := New(ErrorTypeValidation, CodeInvalidPayload, "Entity data must be valid JSON")
	if cause != nil {
		err.WithCause(cause).WithDetails(cause.Error())
	}
	return err
}

// NewParameterResolutionError reports a parameter the host could not supply
func NewParameterResolutionError(name string, itemIndex int) *AppError {
	return Newf(ErrorTypeNode, CodeParameterResolution, "Could not get parameter %q", name).
		WithContext("parameter", name).
		WithContext("item_index", itemIndex)
}

// NewTransportError wraps a failed remote call
func NewTransportError(cause error, method, path string) *AppError {
	return Wrapf(cause, ErrorTypeNetwork, CodeTransport, "%s %s failed", method, path)
}

// NewValidationError creates a validation error with a simple message
func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, CodeInvalidInput, message)
}

// NewNotFoundError creates a not found error with a simple message
func NewNotFoundError(message string) *AppError {
	return New(ErrorTypeNotFound, CodeResourceNotFound, message)
}

// NewConfigurationError reports invalid configuration
func NewConfigurationError(message string) *AppError {
	return New(ErrorTypeConfiguration, CodeNodeConfiguration, message)
}

// NewCredentialError reports a credential that cannot be used
func NewCredentialError(code ErrorCode, message string) *AppError {
	return New(ErrorTypeCredential, code, message)
}

// DatabaseError creates a database error
func DatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrorTypeDatabase, CodeDatabaseQuery, fmt.Sprintf("database operation %s failed", operation))
}

// InternalError creates an internal error with a stack trace
func InternalError(message string) *AppError {
	return New(ErrorTypeInternal, CodeInternal, message).WithStackTrace()
}

// HTTPError is a transport failure that carries the remote status code
type HTTPError struct {
	*AppError
	StatusCode int    `json:"status_code"`
	Body       string `json:"body,omitempty"`
}

// NewHTTPError creates a new HTTP error
func NewHTTPError(statusCode int, message string) *HTTPError {
	return &HTTPError{
		AppError:   New(ErrorTypeExternal, CodeTransport, message),
		StatusCode: statusCode,
	}
}

func (e *HTTPError) Unwrap() error {
	return e.AppError
}

// HTTPStatus maps the error type to an HTTP status code
func (e *AppError) HTTPStatus() int {
	switch e.Type {
	case ErrorTypeValidation:
		return 400
	case ErrorTypeCredential:
		return 401
	case ErrorTypeNotFound:
		return 404
	case ErrorTypeConflict:
		return 409
	case ErrorTypeTimeout:
		return 408
	case ErrorTypeNetwork, ErrorTypeExternal:
		return 502
	default:
		return 500
	}
}

// IsRetryable reports whether retrying could succeed
func (e *AppError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeTimeout, ErrorTypeNetwork, ErrorTypeExternal:
		return true
	default:
		return false
	}
}

func captureStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var builder strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&builder, "%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return builder.String()
}

// ErrorList collects several errors, e.g. from config validation
type ErrorList struct {
	Errors []*AppError `json:"errors"`
}

func (el *ErrorList) Error() string {
	switch len(el.Errors) {
	case 0:
		return "no errors"
	case 1:
		return el.Errors[0].Error()
	}
	messages := make([]string, 0, len(el.Errors))
	for _, err := range el.Errors {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("multiple errors: [%s]", strings.Join(messages, "; "))
}

// Add appends err if it is not nil
func (el *ErrorList) Add(err *AppError) {
	if err != nil {
		el.Errors = append(el.Errors, err)
	}
}

func (el *ErrorList) HasErrors() bool {
	return len(el.Errors) > 0
}

// ErrOrNil returns the list as an error, or nil when empty
func (el *ErrorList) ErrOrNil() error {
	if el.HasErrors() {
		return el
	}
	return nil
}

func NewErrorList() *ErrorList {
	return &ErrorList{Errors: make([]*AppError, 0)}
}
