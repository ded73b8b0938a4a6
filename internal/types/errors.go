package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Handlers should use these instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationInvalidJSON  ErrorCode = "validation_invalid_json"
	ErrCodeValidationInvalidForm  ErrorCode = "validation_invalid_form"
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidValue ErrorCode = "validation_invalid_value"
	ErrCodeValidationInvalidID    ErrorCode = "validation_invalid_id"

	// Semantic validation (422)
	ErrCodeUnprocessable ErrorCode = "unprocessable_entity"

	// Body size (413)
	ErrCodePayloadTooLarge ErrorCode = "payload_too_large"

	// Routing (404/405)
	ErrCodeNotFoundRoute    ErrorCode = "not_found_route"
	ErrCodeNotFoundUser     ErrorCode = "not_found_user"
	ErrCodeNotFoundRecord   ErrorCode = "not_found_record"
	ErrCodeMethodNotAllowed ErrorCode = "method_not_allowed"

	// Conflict (409)
	ErrCodeConflictEmail ErrorCode = "conflict_email_exists"

	// Timeout (503)
	ErrCodeRequestTimeout ErrorCode = "timeout_request"

	// Internal/Upstream (500/503)
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
	ErrCodeStoreUnavailable   ErrorCode = "upstream_store_unavailable"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case c == ErrCodeUnprocessable:
		return http.StatusUnprocessableEntity
	case c == ErrCodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case c == ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict
	case strings.HasPrefix(s, "timeout_"), strings.HasPrefix(s, "upstream_"):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the standard application error type. Domain handlers return it
// (or wrap it) so the error boundary can derive a status and a client-safe
// message from the failure itself.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`

	// Status overrides the code-derived HTTP status when non-zero.
	Status int `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the explicit Status if set, otherwise the status
// corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
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
		Status:  e.Status,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// NewStatusError creates an AppError that carries an explicit HTTP status.
// The code is derived from the status class so logs stay greppable.
func NewStatusError(status int, message string, err error) *AppError {
	code := ErrCodeInternalUnexpected
	switch {
	case status == http.StatusUnprocessableEntity:
		code = ErrCodeUnprocessable
	case status == http.StatusNotFound:
		code = ErrCodeNotFoundRoute
	case status == http.StatusRequestEntityTooLarge:
		code = ErrCodePayloadTooLarge
	case status >= 400 && status < 500:
		code = ErrCodeValidationInvalidValue
	}
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Status:  status,
	}
}
