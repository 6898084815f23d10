package llm

import "context"

// requestIDKey is the context key for the orchestration request id.
type requestIDKey struct{}

// WithRequestID attaches a request id to the context so the client logs under the same id
// as the orchestration that issued the call.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request id stored by WithRequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
