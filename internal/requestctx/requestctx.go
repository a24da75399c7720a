// Package requestctx carries per-request identifiers through context so
// handlers, services, and logging agree on correlation fields.
package requestctx

import "context"

type requestIDContextKey struct{}

type projectIDContextKey struct{}

type sessionIDContextKey struct{}

// WithRequestID stores a request correlation identifier in context.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// RequestIDFromContext returns the request correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDContextKey{}).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithProjectID stores the authenticated project identifier in context.
func WithProjectID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, projectIDContextKey{}, id)
}

// ProjectIDFromContext returns the authenticated project identifier if present.
func ProjectIDFromContext(ctx context.Context) (int64, bool) {
	if v, ok := ctx.Value(projectIDContextKey{}).(int64); ok {
		return v, true
	}
	return 0, false
}

// WithSessionID stores a capture session identifier in context.
func WithSessionID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionIDContextKey{}, id)
}

// SessionIDFromContext returns the capture session identifier if present.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(sessionIDContextKey{}).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
