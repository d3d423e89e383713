package types

import "context"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	operatorKey  contextKey = "operator_id"
)

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithOperatorID tags a context with the operator on whose behalf work runs.
// Provider clients forward it as a header to aid tracing.
func WithOperatorID(ctx context.Context, operatorID int64) context.Context {
	return context.WithValue(ctx, operatorKey, operatorID)
}

// GetOperatorID returns the operator tagged by WithOperatorID.
func GetOperatorID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(operatorKey).(int64)
	return id, ok
}
