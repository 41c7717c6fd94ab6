// Package obscontext carries request-scoped correlation values.
package obscontext

import "context"

type contextKey string

const (
	requestIDKey   contextKey = "request_id"
	identityKeyKey contextKey = "identity_key"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithIdentityKey records the resolved accounting identity for log correlation.
func WithIdentityKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, identityKeyKey, key)
}

func IdentityKeyFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(identityKeyKey).(string); ok {
		return v
	}
	return ""
}
