package core

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"glucogate/internal/types"
)

// defaultRequestTimeout applies when no REQUEST_TIMEOUT is configured.
const defaultRequestTimeout = 30 * time.Second

// maxLoggedBodyBytes caps how much of a request body is copied into logs.
const maxLoggedBodyBytes = 64 << 10

// defaultRedactedHeaders lists header names whose values are masked in request
// logs.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
	"Set-Cookie",
	"Proxy-Authorization",
}

// responseCapture wraps an http.ResponseWriter to observe the status code
// written by downstream handlers.
type responseCapture struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// captureResponse wraps w unless it is already a capture.
func captureResponse(w http.ResponseWriter) *responseCapture {
	if rc, ok := w.(*responseCapture); ok {
		return rc
	}
	return &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}
}

// WriteHeader captures the status code and delegates to the wrapped writer.
func (rc *responseCapture) WriteHeader(code int) {
	if !rc.written {
		rc.statusCode = code
		rc.written = true
	}
	rc.ResponseWriter.WriteHeader(code)
}

// Write records an implicit 200 when WriteHeader was not called.
func (rc *responseCapture) Write(b []byte) (int, error) {
	if !rc.written {
		rc.statusCode = http.StatusOK
		rc.written = true
	}
	return rc.ResponseWriter.Write(b)
}

// Status returns the captured status code (200 if nothing was written).
func (rc *responseCapture) Status() int { return rc.statusCode }

// Written reports whether the status line has been sent.
func (rc *responseCapture) Written() bool { return rc.written }

// Unwrap lets http.ResponseController reach the underlying writer.
func (rc *responseCapture) Unwrap() http.ResponseWriter {
	return rc.ResponseWriter
}

// Recoverer is the last-resort panic handler for middleware that runs outside
// the pipeline. Panics inside the pipeline or handlers are already converted
// by the boundary's Guard with richer request context.
func (s *Server) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Boundary.Guard(captureResponse(w), r, next)
	})
}

// ContextTimeoutMiddleware sets a deadline on the request context. Handlers
// that honor ctx fail with context.DeadlineExceeded, which the boundary maps
// to 503.
func ContextTimeoutMiddleware(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware propagates the caller's X-Request-Id or generates a new
// UUID, stores it in the context, and echoes it on the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}

		ctx := types.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// MetricsMiddleware records request latency and count. With no collector it
// passes through.
func (s *Server) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rc := captureResponse(w)

		next.ServeHTTP(rc, r)

		s.Metrics.RecordRequest(r.Method, routeLabel(r), strconv.Itoa(rc.Status()), time.Since(start))
	})
}

// routeLabel prefers the matched chi pattern to keep metric cardinality low.
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// AccessLogStep is the first pipeline step. It logs every request as soon as
// it arrives, before any parsing can reject it, and logs the outcome once the
// response is written.
type AccessLogStep struct {
	logger    *slog.Logger
	redactSet map[string]struct{}
}

// NewAccessLogStep builds the step. redactedHeaders are matched
// case-insensitively.
func NewAccessLogStep(logger *slog.Logger, redactedHeaders []string) *AccessLogStep {
	redactSet := make(map[string]struct{}, len(redactedHeaders))
	for _, h := range redactedHeaders {
		redactSet[strings.ToLower(h)] = struct{}{}
	}
	return &AccessLogStep{logger: logger, redactSet: redactSet}
}

// Name implements Step.
func (s *AccessLogStep) Name() string { return "access-log" }

// Handle logs the request line and headers. It never rejects.
func (s *AccessLogStep) Handle(_ http.ResponseWriter, r *http.Request) Outcome {
	attrs := []any{
		slog.String("method", r.Method),
		slog.String("url", r.URL.String()),
		slog.String("path", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
	}
	if reqID := types.GetRequestID(r.Context()); reqID != "" {
		attrs = append(attrs, slog.String("request_id", reqID))
	}
	if headers := s.headerAttrs(r.Header); len(headers) > 0 {
		attrs = append(attrs, slog.Group("headers", headers...))
	}
	s.logger.Info("request received", attrs...)
	return Continue(r)
}

// Complete logs status, duration, and the parsed body when one was received.
func (s *AccessLogStep) Complete(r *http.Request, status int, duration time.Duration) {
	attrs := []any{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", duration),
	}
	if reqID := types.GetRequestID(r.Context()); reqID != "" {
		attrs = append(attrs, slog.String("request_id", reqID))
	}
	if body := types.GetRequestBody(r.Context()); !body.Empty() {
		attrs = append(attrs, slog.Any("body", truncatedBody(body)))
	}

	switch {
	case status >= 500:
		s.logger.Error("request completed", attrs...)
	case status >= 400:
		s.logger.Warn("request completed", attrs...)
	default:
		s.logger.Info("request completed", attrs...)
	}
}

func (s *AccessLogStep) headerAttrs(h http.Header) []any {
	attrs := make([]any, 0, len(h))
	for name, values := range h {
		if _, redact := s.redactSet[strings.ToLower(name)]; redact {
			attrs = append(attrs, slog.String(name, "[REDACTED]"))
			continue
		}
		attrs = append(attrs, slog.String(name, strings.Join(values, ", ")))
	}
	return attrs
}

// truncatedBody returns a log-safe view of body.
func truncatedBody(body *types.RequestBody) any {
	if len(body.Raw) > maxLoggedBodyBytes {
		return "[truncated " + strconv.Itoa(len(body.Raw)) + " bytes]"
	}
	return body.Loggable()
}
