package observability

import (
	"context"
	"fmt"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field represents a structured log field.
type Field = zap.Field

type ctxKey string

const callerIDKey ctxKey = "caller_id"

// NewLogger builds a JSON (production) or console (development) logger
func NewLogger(level, format string) (*zap.Logger, error) {
	if level == "" {
		level = "info"
	}
	zapLevel, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch strings.ToLower(format) {
	case "console", "text":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	return cfg.Build()
}

// ContextWithCallerID stores the authenticated caller's ID for log enrichment
func ContextWithCallerID(ctx context.Context, callerID string) context.Context {
	return context.WithValue(ctx, callerIDKey, callerID)
}

// CallerIDFromContext returns the caller ID or ""
func CallerIDFromContext(ctx context.Context) string {
	value, ok := ctx.Value(callerIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

// LoggerFromContext returns base enriched with the request and caller IDs
// present in ctx.
func LoggerFromContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	fields := make([]Field, 0, 2)
	if reqID := chimiddleware.GetReqID(ctx); reqID != "" {
		fields = append(fields, zap.String("request_id", reqID))
	}
	if callerID := CallerIDFromContext(ctx); callerID != "" {
		fields = append(fields, zap.String("caller_id", callerID))
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
