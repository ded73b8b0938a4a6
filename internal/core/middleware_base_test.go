package core

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"glucogate/internal/types"
)

func TestRequestIDMiddleware_Generates(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Fatal("expected a generated request id in context")
	}
	if rec.Header().Get("X-Request-Id") != seen {
		t.Errorf("response header %q != context id %q", rec.Header().Get("X-Request-Id"), seen)
	}
}

func TestRequestIDMiddleware_Propagates(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "caller-supplied")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "caller-supplied" {
		t.Errorf("request id = %q, want caller-supplied", seen)
	}
}

func TestRequestIDMiddleware_RejectsOversizedID(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", strings.Repeat("a", 200))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if len(seen) > 128 || seen == "" {
		t.Errorf("oversized id was not replaced: len=%d", len(seen))
	}
}

func TestContextTimeoutMiddleware(t *testing.T) {
	var deadline time.Time
	var ok bool
	h := ContextTimeoutMiddleware(50 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !ok {
		t.Fatal("expected a deadline on the request context")
	}
	if time.Until(deadline) > 50*time.Millisecond {
		t.Errorf("deadline too far in the future: %v", deadline)
	}
}

func TestMetricsMiddleware_RecordsMatchedRoute(t *testing.T) {
	metrics := &mockMetricsCollector{}
	srv, _ := newTestServer(t, nil, func(s *Server) {
		s.Metrics = metrics
		r := chi.NewRouter()
		r.Get("/{id}", s.Boundary.Handle(func(w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}))
		if err := s.Routes.Register("/api/glucose", r); err != nil {
			t.Fatal(err)
		}
	})

	serve(srv, httptest.NewRequest(http.MethodGet, "/api/glucose/abc", nil))
	serve(srv, httptest.NewRequest(http.MethodGet, "/api/nothing", nil))

	if len(metrics.calls) != 2 {
		t.Fatalf("expected 2 metric calls, got %d", len(metrics.calls))
	}
	if c := metrics.calls[0]; c.method != "GET" || c.route != "/api/glucose/{id}" || c.status != "204" {
		t.Errorf("first call = %+v", c)
	}
	if c := metrics.calls[1]; c.status != "404" {
		t.Errorf("second call = %+v", c)
	}
}

func TestMetricsMiddleware_NoCollectorPassesThrough(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestAccessLogStep_RedactsSensitiveHeaders(t *testing.T) {
	logger, sink := newTestLogger()
	step := NewAccessLogStep(logger, defaultRedactedHeaders)

	req := httptest.NewRequest(http.MethodGet, "/api/users/1?x=1", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	req.Header.Set("Cookie", "session=abc")
	req.Header.Set("Accept", "application/json")

	if out := step.Handle(httptest.NewRecorder(), req); out.Decision != DecisionContinue {
		t.Fatalf("access log step must never reject, got %s", out.Decision)
	}

	entry := sink.find(t, "request received")
	if entry["url"] != "/api/users/1?x=1" || entry["method"] != "GET" {
		t.Errorf("entry = %v", entry)
	}
	headers, _ := entry["headers"].(map[string]any)
	if headers["Authorization"] != "[REDACTED]" || headers["Cookie"] != "[REDACTED]" {
		t.Errorf("sensitive headers not redacted: %v", headers)
	}
	if headers["Accept"] != "application/json" {
		t.Errorf("Accept header missing: %v", headers)
	}
}

func TestAccessLogStep_CompleteLevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "INFO"},
		{302, "INFO"},
		{404, "WARN"},
		{500, "ERROR"},
	}
	for _, tt := range tests {
		logger, sink := newTestLogger()
		step := NewAccessLogStep(logger, nil)
		step.Complete(httptest.NewRequest(http.MethodGet, "/", nil), tt.status, time.Millisecond)

		entry := sink.find(t, "request completed")
		if entry["level"] != tt.level {
			t.Errorf("status %d logged at %v, want %s", tt.status, entry["level"], tt.level)
		}
	}
}

func TestAccessLogStep_CompleteIncludesBody(t *testing.T) {
	logger, sink := newTestLogger()
	step := NewAccessLogStep(logger, nil)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(types.WithRequestBody(req.Context(), &types.RequestBody{
		Raw:  []byte("name=Ada"),
		Form: map[string][]string{"name": {"Ada"}},
	}))
	step.Complete(req, http.StatusCreated, time.Millisecond)

	entry := sink.find(t, "request completed")
	body, ok := entry["body"].(map[string]any)
	if !ok {
		t.Fatalf("body missing: %v", entry)
	}
	if names, _ := body["name"].([]any); len(names) != 1 || names[0] != "Ada" {
		t.Errorf("body = %v", body)
	}
}

func TestTruncatedBody(t *testing.T) {
	big := &types.RequestBody{Raw: make([]byte, maxLoggedBodyBytes+1)}
	if s, ok := truncatedBody(big).(string); !ok || !strings.HasPrefix(s, "[truncated ") {
		t.Errorf("truncatedBody = %v", truncatedBody(big))
	}
}

func TestResponseCapture(t *testing.T) {
	rec := httptest.NewRecorder()
	rc := captureResponse(rec)
	if rc.Written() || rc.Status() != http.StatusOK {
		t.Fatal("fresh capture should be unwritten with status 200")
	}
	if captureResponse(rc) != rc {
		t.Error("captureResponse must not double-wrap")
	}

	rc.WriteHeader(http.StatusTeapot)
	rc.WriteHeader(http.StatusOK)
	if rc.Status() != http.StatusTeapot || !rc.Written() {
		t.Errorf("status = %d, written = %v", rc.Status(), rc.Written())
	}
	if rc.Unwrap() != rec {
		t.Error("Unwrap should return the wrapped writer")
	}
}
