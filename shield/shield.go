// Package shield provides reusable HTTP security middleware for the WebMark
// daemon. It consolidates security headers, body limits, and request tracing
// into a single importable package.
//
// Usage:
//
//	r := chi.NewRouter()
//	r.Use(shield.SecurityHeaders(shield.DefaultHeaders()))
//	r.Use(shield.MaxBody(4 << 20))
//	r.Use(shield.TraceID)
//
// Or apply the default stack in one call:
//
//	for _, mw := range shield.DefaultStack() {
//	    r.Use(mw)
//	}
package shield

import (
	"context"
	"net/http"
)

type contextKey string

const (
	// LoggerKey is the context key for the per-request structured logger.
	LoggerKey contextKey = "shield_logger"

	// TraceIDKey is the context key for the per-request trace ID.
	TraceIDKey contextKey = "shield_trace_id"
)

// GetTraceID retrieves the trace ID from the request context.
func GetTraceID(ctx context.Context) string {
	v, _ := ctx.Value(TraceIDKey).(string)
	return v
}

// DefaultStack returns the standard middleware stack for the WebMark API.
// Middleware is ordered: SecurityHeaders → MaxBody → TraceID. The body
// limit is generous (4 MiB) because annotate requests carry whole HTML
// documents.
func DefaultStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		SecurityHeaders(DefaultHeaders()),
		MaxBody(4 << 20),
		TraceID,
	}
}
