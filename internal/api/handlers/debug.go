package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"glucogate/internal/core"
	"glucogate/internal/types"
)

// StoreInspector is the view of the store handle exposed by /api/debug/store.
type StoreInspector interface {
	Ping(ctx context.Context) error
	Closed() bool
	BreakerState() string
}

// DebugHandler serves /api/debug. It exposes what the gateway saw of a
// request and the store handle's condition.
type DebugHandler struct {
	store StoreInspector
}

// NewDebugHandler creates a DebugHandler.
func NewDebugHandler(store StoreInspector) *DebugHandler {
	return &DebugHandler{store: store}
}

// Routes returns the group router. Paths are relative to the mount prefix.
func (h *DebugHandler) Routes(b *core.ErrorBoundary) http.Handler {
	r := chi.NewRouter()
	r.HandleFunc("/echo", b.Handle(h.Echo))
	r.Get("/store", b.Handle(h.Store))
	return r
}

// EchoResponse reports the request as the pipeline delivered it.
type EchoResponse struct {
	Method      string              `json:"method"`
	Path        string              `json:"path"`
	Query       map[string][]string `json:"query,omitempty"`
	RequestID   string              `json:"requestId"`
	ContentType string              `json:"contentType,omitempty"`
	Body        any                 `json:"body,omitempty"`
}

// Echo handles ANY /api/debug/echo.
func (h *DebugHandler) Echo(w http.ResponseWriter, r *http.Request) error {
	resp := EchoResponse{
		Method:    r.Method,
		Path:      r.URL.Path,
		Query:     r.URL.Query(),
		RequestID: types.GetRequestID(r.Context()),
	}
	if body := types.GetRequestBody(r.Context()); !body.Empty() {
		resp.ContentType = body.ContentType
		resp.Body = body.Loggable()
	}
	if len(resp.Query) == 0 {
		resp.Query = nil
	}
	respond(w, r, http.StatusOK, resp)
	return nil
}

// StoreResponse is the body of GET /api/debug/store.
type StoreResponse struct {
	Closed    bool   `json:"closed"`
	Breaker   string `json:"breaker"`
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
}

// Store handles GET /api/debug/store. An unreachable store is reported in the
// body, not as a failure.
func (h *DebugHandler) Store(w http.ResponseWriter, r *http.Request) error {
	start := time.Now()
	err := h.store.Ping(r.Context())
	resp := StoreResponse{
		Closed:    h.store.Closed(),
		Breaker:   h.store.BreakerState(),
		Reachable: err == nil,
		LatencyMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	respond(w, r, http.StatusOK, resp)
	return nil
}
