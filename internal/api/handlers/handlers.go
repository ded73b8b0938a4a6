// Package handlers implements the domain route groups mounted behind the
// gateway: debug introspection, users, and one group per health record kind.
// Every handler returns an error instead of writing failures itself; the
// core error boundary turns that error into the standard error record.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"glucogate/internal/core"
	"glucogate/internal/types"
)

// APIResponse is the success envelope. It mirrors the error record's
// success flag so clients can branch on one field.
type APIResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

func respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	core.JSON(w, r, status, APIResponse{Success: true, Data: data})
}

// pathID reads and validates the {id} URL parameter.
func pathID(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		return "", types.NewAppError(types.ErrCodeValidationInvalidID, "id must be a valid UUID", err)
	}
	return id, nil
}

// queryInt parses an optional integer query parameter within [lo, hi].
func queryInt(r *http.Request, name string, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, types.NewAppError(
			types.ErrCodeValidationInvalidValue,
			name+" must be a number between "+strconv.Itoa(lo)+" and "+strconv.Itoa(hi),
			err,
		)
	}
	return n, nil
}

// queryTime parses an optional RFC 3339 query parameter.
func queryTime(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, types.NewAppError(types.ErrCodeValidationInvalidValue, name+" must be an RFC 3339 timestamp", err)
	}
	return t, nil
}
