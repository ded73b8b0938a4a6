package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"glucogate/internal/types"
)

// BodyParserStep reads the request body up to a hard cap, decodes JSON and
// URL-encoded payloads, and attaches the result to the request context. The
// body is buffered so handlers can read r.Body again.
type BodyParserStep struct {
	maxBytes int64
}

// NewBodyParserStep builds the step with the given cap in bytes.
func NewBodyParserStep(maxBytes int64) *BodyParserStep {
	return &BodyParserStep{maxBytes: maxBytes}
}

// Name implements Step.
func (s *BodyParserStep) Name() string { return "body-parser" }

// Handle implements Step. Oversized bodies fail with 413 before any byte
// beyond the cap is read; malformed JSON or form bodies fail with 400.
func (s *BodyParserStep) Handle(w http.ResponseWriter, r *http.Request) Outcome {
	mediaType := parseMediaType(r.Header.Get("Content-Type"))

	if r.ContentLength > s.maxBytes {
		return Fail(s.tooLarge(nil))
	}

	var raw []byte
	if r.Body != nil && r.Body != http.NoBody {
		var err error
		raw, err = io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBytes))
		_ = r.Body.Close()
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return Fail(s.tooLarge(err))
			}
			return Fail(types.NewAppError(types.ErrCodeValidationInvalidValue, "failed to read request body", err))
		}
	}

	body := &types.RequestBody{ContentType: mediaType, Raw: raw}

	if len(raw) > 0 {
		switch {
		case isJSONMediaType(mediaType):
			var v any
			if err := json.Unmarshal(raw, &v); err != nil {
				return Fail(types.NewAppError(types.ErrCodeValidationInvalidJSON, "malformed JSON in request body", err))
			}
			body.JSON = v
		case mediaType == "application/x-www-form-urlencoded":
			form, err := url.ParseQuery(string(raw))
			if err != nil {
				return Fail(types.NewAppError(types.ErrCodeValidationInvalidForm, "malformed form data in request body", err))
			}
			body.Form = form
		}
	}

	next := r.WithContext(types.WithRequestBody(r.Context(), body))
	next.Body = io.NopCloser(bytes.NewReader(raw))
	next.ContentLength = int64(len(raw))
	return Continue(next)
}

func (s *BodyParserStep) tooLarge(err error) *types.AppError {
	return types.NewAppError(
		types.ErrCodePayloadTooLarge,
		fmt.Sprintf("request body must not exceed %d bytes", s.maxBytes),
		err,
	)
}

func parseMediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return mt
}

func isJSONMediaType(mt string) bool {
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
