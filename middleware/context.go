package middleware

import (
	"context"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/upb/voice-agent/internal/observability"
	"github.com/upb/voice-agent/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	// CallerKey is the context key for the authorized caller
	CallerKey contextKey = "caller"
)

// GetRequestIDFromContext retrieves the request ID set by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimiddleware.GetReqID(ctx)
}

// GetCallerFromContext retrieves the authorized caller from context
func GetCallerFromContext(ctx context.Context) *models.Caller {
	if val := ctx.Value(CallerKey); val != nil {
		if caller, ok := val.(*models.Caller); ok {
			return caller
		}
	}
	return nil
}

// WithCaller adds the caller to the context, including its ID for log enrichment
func WithCaller(ctx context.Context, caller *models.Caller) context.Context {
	ctx = context.WithValue(ctx, CallerKey, caller)
	if caller != nil {
		ctx = observability.ContextWithCallerID(ctx, caller.ID)
	}
	return ctx
}
