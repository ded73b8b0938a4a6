package types

import (
	"context"
	"net/url"
)

// Context Keys
type contextKey string

const (
	requestIDKey   contextKey = "request_id"
	requestBodyKey contextKey = "request_body"
)

// RequestBody is the parsed representation of an inbound request body.
// It is attached to the request context by the body-parsing step and is
// read-only for the remainder of the request.
type RequestBody struct {
	// ContentType is the media type without parameters (e.g. "application/json").
	ContentType string
	// Raw holds the bytes read from the wire, bounded by the body size cap.
	Raw []byte
	// JSON holds the decoded value for application/json bodies.
	JSON any
	// Form holds the decoded values for application/x-www-form-urlencoded bodies.
	Form url.Values
}

// Empty reports whether no body bytes were received.
func (b *RequestBody) Empty() bool {
	return b == nil || len(b.Raw) == 0
}

// Loggable returns the most useful representation of the body for logs:
// the decoded JSON value, the form values, or the raw text.
func (b *RequestBody) Loggable() any {
	switch {
	case b.Empty():
		return nil
	case b.JSON != nil:
		return b.JSON
	case b.Form != nil:
		return b.Form
	default:
		return string(b.Raw)
	}
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithRequestBody stores the parsed request body in the context.
func WithRequestBody(ctx context.Context, body *RequestBody) context.Context {
	return context.WithValue(ctx, requestBodyKey, body)
}

// GetRequestBody retrieves the parsed request body from the context.
// Returns nil if the body-parsing step has not run.
func GetRequestBody(ctx context.Context) *RequestBody {
	body, _ := ctx.Value(requestBodyKey).(*RequestBody)
	return body
}
