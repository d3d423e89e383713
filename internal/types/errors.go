package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Handlers and services use these instead of
// hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationInvalidReading ErrorCode = "validation_invalid_reading"
	ErrCodeValidationMissingField   ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidID      ErrorCode = "validation_invalid_id"
	ErrCodeValidationInvalidTime    ErrorCode = "validation_invalid_scheduled_time"
	ErrCodeValidationInvalidEnum    ErrorCode = "validation_invalid_enum"
	ErrCodeValidationInvalidEvent   ErrorCode = "validation_invalid_event"
	ErrCodeValidationInvalidJSON    ErrorCode = "validation_invalid_json"

	// Auth (401), used only by the transport event webhook.
	ErrCodeAuthSignatureInvalid ErrorCode = "auth_signature_invalid"

	// Routing and delivery. These never reach an HTTP client directly; they
	// are logged and recorded as per-channel outcomes.
	ErrCodeRoutingNoRecipient   ErrorCode = "routing_no_recipient"
	ErrCodeDeliveryFailed       ErrorCode = "delivery_failed"
	ErrCodeDeliveryTimeout      ErrorCode = "delivery_timeout"
	ErrCodeSessionNotConnected  ErrorCode = "session_not_connected"
	ErrCodeSessionInvalidChange ErrorCode = "session_invalid_transition"
	ErrCodeSessionStale         ErrorCode = "session_stale"

	// Not Found (404)
	ErrCodeNotFoundPlot     ErrorCode = "not_found_plot"
	ErrCodeNotFoundAlert    ErrorCode = "not_found_alert"
	ErrCodeNotFoundOperator ErrorCode = "not_found_operator"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB            ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected    ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamEmailProvider ErrorCode = "upstream_email_provider_unavailable"
	ErrCodeUpstreamSMSProvider   ErrorCode = "upstream_sms_provider_unavailable"
	ErrCodeUpstreamTransport     ErrorCode = "upstream_transport_unavailable"
	ErrCodeUpstreamUnavailable   ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited   ErrorCode = "upstream_rate_limited"
	ErrCodeEmailBlocked          ErrorCode = "email_blocked"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case strings.HasPrefix(s, "session_"):
		return http.StatusConflict
	case s == string(ErrCodeEmailBlocked):
		return http.StatusForbidden
	case s == string(ErrCodeUpstreamRateLimited):
		return http.StatusTooManyRequests
	case strings.HasPrefix(s, "upstream_"), strings.HasPrefix(s, "delivery_"):
		return http.StatusBadGateway
	case strings.HasPrefix(s, "routing_"):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the standard application error type. Domain and handler
// errors are expressed as AppError so they format consistently, map to HTTP
// statuses and keep their cause reachable through errors.Is/As.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError carrying structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// CodeOf returns the ErrorCode of the first AppError in err's chain, or the
// empty code when there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
