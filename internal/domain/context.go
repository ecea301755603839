package domain

import "context"

// contextKey is a type for context keys to avoid collisions
type contextKey string

const (
	visitorIDKey contextKey = "visitor_id"
	trackingKey  contextKey = "tracking_params"
)

// WithVisitorID stores the visitor id in the context.
func WithVisitorID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, visitorIDKey, id)
}

// GetVisitorIDFromContext returns the visitor id, or "" when absent.
func GetVisitorIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(visitorIDKey).(string); ok {
		return v
	}
	return ""
}

// WithTrackingParams stores the parsed attribution record in the context.
func WithTrackingParams(ctx context.Context, p TrackingParams) context.Context {
	return context.WithValue(ctx, trackingKey, p)
}

// GetTrackingParamsFromContext returns the attribution record captured by
// the middleware, or the zero value when absent.
func GetTrackingParamsFromContext(ctx context.Context) TrackingParams {
	if v, ok := ctx.Value(trackingKey).(TrackingParams); ok {
		return v
	}
	return TrackingParams{}
}
