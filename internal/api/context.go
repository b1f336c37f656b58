package api

import "context"

// requestIDContextKey matches the key used by the observability package so
// loggers pick up request IDs injected here.
type contextKey string

const requestIDContextKey contextKey = "requestID"

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// RequestIDFromContext retrieves the request ID from the context.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDContextKey).(string); ok {
		return v
	}
	return ""
}

// appendRequestID appends the request_id field when present.
func appendRequestID(ctx context.Context, fields []any) []any {
	if reqID := RequestIDFromContext(ctx); reqID != "" {
		fields = append(fields, "request_id", reqID)
	}
	return fields
}
