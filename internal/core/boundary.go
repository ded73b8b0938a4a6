package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"glucogate/internal/types"
)

const (
	msgNotFound         = "Resource not found"
	msgMethodNotAllowed = "Method not allowed"
	msgInternal         = "Internal server error"
	msgTimeout          = "Request timed out"
)

// ErrorRecord is the single error shape returned to API consumers.
type ErrorRecord struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	Path        string `json:"path"`
	Method      string `json:"method"`
	Timestamp   string `json:"timestamp"`
	Environment string `json:"environment"`
}

// HandlerFunc is the signature domain handler groups implement. Returning a
// non-nil error hands the request to the error boundary; the handler must not
// have written a response in that case.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// statusCarrier is satisfied by any failure that knows its HTTP status,
// including *types.AppError.
type statusCarrier interface {
	HTTPStatus() int
}

// panicError is a recovered panic. The value is kept for logs only.
type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.value) }

// ErrorBoundary normalizes unmatched routes and handler failures into an
// ErrorRecord. It is the only component that writes error responses.
type ErrorBoundary struct {
	logger      *slog.Logger
	environment string
	now         func() time.Time
}

// NewErrorBoundary creates a boundary. now may be nil, in which case
// time.Now is used.
func NewErrorBoundary(logger *slog.Logger, environment string, now func() time.Time) *ErrorBoundary {
	if now == nil {
		now = time.Now
	}
	return &ErrorBoundary{logger: logger, environment: environment, now: now}
}

// NotFound handles the NO_MATCH state.
func (b *ErrorBoundary) NotFound(w http.ResponseWriter, r *http.Request) {
	b.Fail(w, r, types.NewAppError(types.ErrCodeNotFoundRoute, msgNotFound, nil))
}

// MethodNotAllowed handles a path match with no route for the method.
func (b *ErrorBoundary) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	b.Fail(w, r, types.NewAppError(types.ErrCodeMethodNotAllowed, msgMethodNotAllowed, nil))
}

// Handle adapts an error-returning handler to http.HandlerFunc, routing any
// returned error or panic through the boundary.
func (b *ErrorBoundary) Handle(fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.Guard(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := fn(w, r); err != nil {
				b.Fail(w, r, err)
			}
		}))
	}
}

// Guard runs next and converts a panic into a handler failure.
func (b *ErrorBoundary) Guard(w http.ResponseWriter, r *http.Request, next http.Handler) {
	defer func() {
		if rvr := recover(); rvr != nil {
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}
			b.Fail(w, r, &panicError{value: rvr, stack: debug.Stack()})
		}
	}()
	next.ServeHTTP(w, r)
}

// Fail handles the HANDLER_FAILURE state: it logs the failure with full
// context and writes the ErrorRecord.
func (b *ErrorBoundary) Fail(w http.ResponseWriter, r *http.Request, err error) {
	status, message := b.resolve(err)
	b.log(r, err, status)

	if started(w) {
		// A handler wrote part of a response and then failed. The status line
		// is gone, so the record cannot be delivered.
		b.safeLog(func() {
			b.logger.Error("error boundary: response already started",
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", types.GetRequestID(r.Context()),
			)
		})
		return
	}

	JSON(w, r, status, b.Record(r, message))
}

// Record builds the ErrorRecord for r.
func (b *ErrorBoundary) Record(r *http.Request, message string) ErrorRecord {
	return ErrorRecord{
		Success:     false,
		Message:     message,
		Path:        r.URL.Path,
		Method:      r.Method,
		Timestamp:   b.now().UTC().Format(time.RFC3339Nano),
		Environment: b.environment,
	}
}

// resolve derives the status and client-visible message. Carried values win;
// otherwise 500 and a generic message. Recovered panics never expose their
// value.
func (b *ErrorBoundary) resolve(err error) (int, string) {
	status := http.StatusInternalServerError
	message := msgInternal

	if err == nil {
		return status, message
	}

	var pe *panicError
	if errors.As(err, &pe) {
		return status, message
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, msgTimeout
	}

	var sc statusCarrier
	if errors.As(err, &sc) {
		if s := sc.HTTPStatus(); s >= 400 && s <= 599 {
			status = s
		}
	}

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		if appErr.Message != "" {
			message = appErr.Message
		}
		return status, message
	}

	if msg := err.Error(); msg != "" {
		message = msg
	}
	return status, message
}

func (b *ErrorBoundary) log(r *http.Request, err error, status int) {
	b.safeLog(func() {
		attrs := []any{
			slog.Int("status", status),
			slog.String("url", r.URL.String()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		if reqID := types.GetRequestID(r.Context()); reqID != "" {
			attrs = append(attrs, slog.String("request_id", reqID))
		}
		var pe *panicError
		if errors.As(err, &pe) {
			attrs = append(attrs, slog.String("stack", string(pe.stack)))
		}
		if body := types.GetRequestBody(r.Context()); !body.Empty() {
			attrs = append(attrs, slog.Any("body", truncatedBody(body)))
		}

		if status >= http.StatusInternalServerError {
			b.logger.Error("request failed", attrs...)
		} else {
			b.logger.Warn("request failed", attrs...)
		}
	})
}

// safeLog runs fn and swallows any panic so that a broken log handler never
// prevents the error response from being written.
func (b *ErrorBoundary) safeLog(fn func()) {
	defer func() {
		_ = recover()
	}()
	fn()
}

// started reports whether a response has already been written to w.
func started(w http.ResponseWriter) bool {
	if ws, ok := w.(interface{ Written() bool }); ok {
		return ws.Written()
	}
	return false
}
