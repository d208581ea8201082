package logger

import "context"

// ctxKey keeps the request-ID value private to this package.
type ctxKey struct{}

// WithRequestID stores a request ID in the context. The ID follows a
// request from the HTTP layer through services and onto the message
// queue, where it rides in a header.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID returns the context's request ID, or "" when unset.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
