package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"glucogate/internal/types"
)

// JSON writes a JSON response with the given status code and data.
// If marshalling fails, it falls back to a 500 ErrorRecord-shaped body.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": msgInternal,
			"path":    r.URL.Path,
			"method":  r.Method,
		})
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// DecodeJSON decodes the already-parsed request body into dst with
// DisallowUnknownFields. The body-parser step has bounded and buffered the
// body, so DecodeJSON never reads from the wire.
//
// It returns a *types.AppError with a validation_ code (400) on:
//   - Missing or non-JSON body
//   - JSON syntax errors and type mismatches
//   - Unknown fields
//   - More than one JSON value
func DecodeJSON(r *http.Request, dst any) error {
	body := types.GetRequestBody(r.Context())
	if body.Empty() {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "request body must not be empty", nil)
	}
	if body.ContentType != "" && !isJSONMediaType(body.ContentType) {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "request body must be application/json", nil)
	}

	dec := json.NewDecoder(bytes.NewReader(body.Raw))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return mapDecodeError(err)
	}
	if dec.More() {
		return types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"request body must contain a single JSON object",
			nil,
		)
	}
	return nil
}

// mapDecodeError translates a json.Decoder error into a structured AppError.
func mapDecodeError(err error) *types.AppError {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "malformed JSON in request body", err)
	}

	var unmarshalTypeErr *json.UnmarshalTypeError
	if errors.As(err, &unmarshalTypeErr) {
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidValue,
			"invalid value for field "+unmarshalTypeErr.Field,
			err,
			map[string]any{
				"field":    unmarshalTypeErr.Field,
				"expected": unmarshalTypeErr.Type.String(),
			},
		)
	}

	if strings.HasPrefix(err.Error(), "json: unknown field") {
		return types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"unknown field in request body: "+strings.TrimPrefix(err.Error(), "json: unknown field "),
			err,
		)
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "malformed JSON in request body", err)
	}

	return types.NewAppError(types.ErrCodeValidationInvalidJSON, "invalid JSON in request body", err)
}
