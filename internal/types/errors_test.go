package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppErrorImplementsError(t *testing.T) {
	var _ error = (*AppError)(nil)
}

// TestAppErrorErrorFormat verifies the "code: message" format.
func TestAppErrorErrorFormat(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeValidationInvalidValue,
		Message: "glucose value must be positive",
	}

	expected := "validation_invalid_value: glucose value must be positive"
	if appErr.Error() != expected {
		t.Errorf("Error() = %q, want %q", appErr.Error(), expected)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	underlying := errors.New("connection refused")
	appErr := NewAppError(ErrCodeInternalDB, "failed to insert reading", underlying)

	if appErr.Unwrap() != underlying {
		t.Errorf("Unwrap() = %v, want %v", appErr.Unwrap(), underlying)
	}
	if !errors.Is(appErr, underlying) {
		t.Error("errors.Is should find the underlying error")
	}
}

func TestAppErrorErrorsAs(t *testing.T) {
	appErr := NewAppError(ErrCodeNotFoundRecord, "record not found", nil)
	wrapped := fmt.Errorf("handler failed: %w", appErr)

	var target *AppError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As should find AppError in the chain")
	}
	if target.Code != ErrCodeNotFoundRecord {
		t.Errorf("Code = %q, want %q", target.Code, ErrCodeNotFoundRecord)
	}
}

func TestErrorCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationInvalidJSON, http.StatusBadRequest},
		{ErrCodeValidationInvalidForm, http.StatusBadRequest},
		{ErrCodeUnprocessable, http.StatusUnprocessableEntity},
		{ErrCodePayloadTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeNotFoundRoute, http.StatusNotFound},
		{ErrCodeNotFoundUser, http.StatusNotFound},
		{ErrCodeMethodNotAllowed, http.StatusMethodNotAllowed},
		{ErrCodeConflictEmail, http.StatusConflict},
		{ErrCodeRequestTimeout, http.StatusServiceUnavailable},
		{ErrCodeStoreUnavailable, http.StatusServiceUnavailable},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrorCode("something_else"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(string(tc.code), func(t *testing.T) {
			if got := tc.code.HTTPStatus(); got != tc.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestAppErrorExplicitStatusOverridesCode(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeInternalUnexpected,
		Message: "insulin dose exceeds configured maximum",
		Status:  http.StatusUnprocessableEntity,
	}
	if got := appErr.HTTPStatus(); got != http.StatusUnprocessableEntity {
		t.Errorf("HTTPStatus() = %d, want 422", got)
	}
}

func TestNewStatusError(t *testing.T) {
	tests := []struct {
		status   int
		wantCode ErrorCode
	}{
		{http.StatusUnprocessableEntity, ErrCodeUnprocessable},
		{http.StatusNotFound, ErrCodeNotFoundRoute},
		{http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge},
		{http.StatusTeapot, ErrCodeValidationInvalidValue},
		{http.StatusBadGateway, ErrCodeInternalUnexpected},
	}

	for _, tc := range tests {
		appErr := NewStatusError(tc.status, "boom", nil)
		if appErr.HTTPStatus() != tc.status {
			t.Errorf("status %d: HTTPStatus() = %d", tc.status, appErr.HTTPStatus())
		}
		if appErr.Code != tc.wantCode {
			t.Errorf("status %d: Code = %q, want %q", tc.status, appErr.Code, tc.wantCode)
		}
		if appErr.Message != "boom" {
			t.Errorf("status %d: Message = %q", tc.status, appErr.Message)
		}
	}
}

func TestAppErrorWithDetails(t *testing.T) {
	original := NewAppErrorWithDetails(
		ErrCodeValidationMissingField,
		"field is required",
		nil,
		map[string]any{"field": "value"},
	)
	original.Status = http.StatusUnprocessableEntity

	enhanced := original.WithDetails(map[string]any{"unit": "mg/dL"})

	if _, ok := original.Details["unit"]; ok {
		t.Error("WithDetails should not mutate the original error")
	}
	if enhanced.Details["field"] != "value" || enhanced.Details["unit"] != "mg/dL" {
		t.Errorf("unexpected merged details: %v", enhanced.Details)
	}
	if enhanced.Status != original.Status {
		t.Errorf("Status should carry over: got %d, want %d", enhanced.Status, original.Status)
	}
}
