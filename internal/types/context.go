package types

import "context"

// Context Keys
type contextKey string

const (
	requestIDKey   contextKey = "request_id"
	userIDKey      contextKey = "user_id"
	adminAccessKey contextKey = "admin_access"
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

// WithUserID stores the resolved per-request user identifier in the context.
// Set by the identity middleware after the trust policy has been applied.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID retrieves the resolved user identifier from the context.
// Returns the identifier and true if present, or empty string and false.
func GetUserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// WithAdminAccess stores a granted AdminAccessResult in the context.
// Only set when access was granted; denied results are never stored.
func WithAdminAccess(ctx context.Context, access AdminAccessResult) context.Context {
	return context.WithValue(ctx, adminAccessKey, access)
}

// GetAdminAccess retrieves the granted AdminAccessResult from the context.
func GetAdminAccess(ctx context.Context) (AdminAccessResult, bool) {
	access, ok := ctx.Value(adminAccessKey).(AdminAccessResult)
	return access, ok && access.Allowed
}
