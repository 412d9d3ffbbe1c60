package shared

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

type ErrorKind string

const (
	KindPermissionDenied   ErrorKind = "permission_denied"
	KindDeviceError        ErrorKind = "device_error"
	KindConfigurationError ErrorKind = "configuration_error"
	KindBackendUnavailable ErrorKind = "backend_unavailable"
	KindConnectionRefused  ErrorKind = "connection_refused"
	KindConnectTimeout     ErrorKind = "connect_timeout"
	KindNotConnected       ErrorKind = "not_connected"

	// KindInternal labels failures that carry no taxonomy kind.
	KindInternal ErrorKind = "internal_error"
)

func (k ErrorKind) String() string {
	return string(k)
}

// Retryable reports whether callers may usefully retry the failed
// operation. Backend and connection failures are transient; the rest
// need user action or a code fix.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindBackendUnavailable, KindConnectionRefused, KindConnectTimeout:
		return true
	}
	return false
}

// SessionError pairs a taxonomy kind with a message and an optional
// wrapped cause. It is the error type carried across the orchestrator.
type SessionError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *SessionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *SessionError) Unwrap() error {
	return e.Cause
}

func NewError(kind ErrorKind, message string) *SessionError {
	return &SessionError{Kind: kind, Message: message}
}

func WrapError(kind ErrorKind, message string, cause error) *SessionError {
	return &SessionError{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the taxonomy kind from err, or "" when err carries none.
func KindOf(err error) ErrorKind {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// ErrorRecord is the transient failure snapshot attached to a Session.
// OccurredDuring holds the connection state at the moment of failure.
type ErrorRecord struct {
	Kind           ErrorKind `json:"kind"`
	Message        string    `json:"message"`
	OccurredDuring string    `json:"occurred_during"`
}

func RecordFrom(err error, occurredDuring string) ErrorRecord {
	kind := KindOf(err)
	if kind == "" {
		kind = KindInternal
	}
	return ErrorRecord{
		Kind:           kind,
		Message:        err.Error(),
		OccurredDuring: occurredDuring,
	}
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func NewAPIError(code, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
	}
}

func (e *APIError) WithDetails(details any) *APIError {
	e.Details = details
	return e
}

func (e *APIError) ToHTTP(status int) *echo.HTTPError {
	return echo.NewHTTPError(status, e)
}

func BadRequest(code, message string) *echo.HTTPError {
	return NewAPIError(code, message).ToHTTP(http.StatusBadRequest)
}

func Forbidden(code, message string) *echo.HTTPError {
	return NewAPIError(code, message).ToHTTP(http.StatusForbidden)
}

func NotFound(code, message string) *echo.HTTPError {
	return NewAPIError(code, message).ToHTTP(http.StatusNotFound)
}

func Conflict(code, message string) *echo.HTTPError {
	return NewAPIError(code, message).ToHTTP(http.StatusConflict)
}

func InternalError(code, message string) *echo.HTTPError {
	return NewAPIError(code, message).ToHTTP(http.StatusInternalServerError)
}

func BadGateway(code, message string) *echo.HTTPError {
	return NewAPIError(code, message).ToHTTP(http.StatusBadGateway)
}

func GatewayTimeout(code, message string) *echo.HTTPError {
	return NewAPIError(code, message).ToHTTP(http.StatusGatewayTimeout)
}

// HTTPStatusFor maps a taxonomy kind to the control-surface status code.
func HTTPStatusFor(kind ErrorKind) int {
	switch kind {
	case KindConfigurationError:
		return http.StatusBadRequest
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindNotConnected:
		return http.StatusConflict
	case KindBackendUnavailable, KindConnectionRefused:
		return http.StatusBadGateway
	case KindConnectTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
