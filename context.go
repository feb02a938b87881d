package sessionkit

import "context"

type requestIDContextKey struct{}

// WithRequestID attaches a correlation ID to ctx. The [HTTPGateway] sends
// it as the X-Request-ID header on every backend call; when absent, the
// gateway mints one per request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}
