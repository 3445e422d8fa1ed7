package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// BindFailed indicates the listener could not be bound to the requested port
	BindFailed ErrorCode = "BIND_FAILED"
	// NotRunning indicates a stop was requested while no listener is running
	NotRunning ErrorCode = "NOT_RUNNING"
	// AlreadyRegistered indicates the context path already has a service
	AlreadyRegistered ErrorCode = "ALREADY_REGISTERED"
	// NotRegistered indicates the context path has no service
	NotRegistered ErrorCode = "NOT_REGISTERED"
	// InvalidContextPath indicates an empty or relative context path
	InvalidContextPath ErrorCode = "INVALID_CONTEXT_PATH"
	// ResponseAlreadySent indicates a second SendResponse on one exchange
	ResponseAlreadySent ErrorCode = "RESPONSE_ALREADY_SENT"
	// ResponseNotSent indicates a body write before SendResponse
	ResponseNotSent ErrorCode = "RESPONSE_NOT_SENT"
	// InvalidStatus indicates a status code outside 200-999
	InvalidStatus ErrorCode = "INVALID_STATUS"
	// InvalidBodyLength indicates a negative declared body length
	InvalidBodyLength ErrorCode = "INVALID_BODY_LENGTH"
	// BodyTooLong indicates more bytes written than declared
	BodyTooLong ErrorCode = "BODY_TOO_LONG"
	// UnknownInstance indicates a manifest or console reference to a missing instance
	UnknownInstance ErrorCode = "UNKNOWN_INSTANCE"
	// UnknownServiceKind indicates a manifest instance with an unsupported kind
	UnknownServiceKind ErrorCode = "UNKNOWN_SERVICE_KIND"
	// InvalidManifest indicates a malformed or inconsistent service manifest
	InvalidManifest ErrorCode = "INVALID_MANIFEST"
	// InvalidConfig indicates a configuration value out of range
	InvalidConfig ErrorCode = "INVALID_CONFIG"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// EndpointError represents an error with a stable code, message and optional cause
type EndpointError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	cause   error       // Underlying error (not exported to JSON)
}

// New creates an EndpointError without a cause
func New(code ErrorCode, message string) *EndpointError {
	return &EndpointError{Code: code, Message: message}
}

// Wrap creates an EndpointError around an underlying error
func Wrap(code ErrorCode, message string, cause error) *EndpointError {
	return &EndpointError{Code: code, Message: message, cause: cause}
}

// Error implements the error interface
func (e *EndpointError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *EndpointError) Unwrap() error {
	return e.cause
}

// Is reports whether target is an EndpointError with the same code.
// This lets package-level sentinels match errors created at call sites.
func (e *EndpointError) Is(target error) bool {
	t, ok := target.(*EndpointError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetails adds details to the error
func (e *EndpointError) WithDetails(details interface{}) *EndpointError {
	e.Details = details
	return e
}

// CodeOf returns the code of the first EndpointError in err's chain,
// or InternalError when there is none.
func CodeOf(err error) ErrorCode {
	var ee *EndpointError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return InternalError
}

// Hints maps error codes to operator-facing suggestions
var Hints = map[ErrorCode]string{
	BindFailed:         "the port may be in use; try `start <port>` with another port",
	NotRunning:         "start the listener with `start [port]`",
	AlreadyRegistered:  "unregister the path first with `unregister <path>`",
	NotRegistered:      "list bound paths with `status`",
	InvalidContextPath: "context paths must start with '/'",
	UnknownInstance:    "list available instances with `instances`",
}

// HintFor returns the suggestion for err's code, if any
func HintFor(err error) string {
	return Hints[CodeOf(err)]
}
