// Package interactions persists completed question/answer exchanges.
package interactions

import (
	"context"
	"fmt"
	"time"

	"github.com/upb/voice-agent/internal/observability"
	"github.com/upb/voice-agent/models"
	"github.com/upb/voice-agent/repositories"
	"github.com/upb/voice-agent/services"
	"go.uber.org/zap"
)

// Logger writes interaction records on a best-effort basis
type Logger struct {
	repo    repositories.InteractionRepository
	budget  time.Duration
	metrics observability.Metrics
	logger  *zap.Logger
}

// NewLogger creates a new interaction logger
func NewLogger(repo repositories.InteractionRepository, budget time.Duration, metrics observability.Metrics, logger *zap.Logger) *Logger {
	if metrics == nil {
		metrics = observability.NopMetrics{}
	}
	return &Logger{
		repo:    repo,
		budget:  budget,
		metrics: metrics,
		logger:  logger,
	}
}

// Record appends rec. Failures, including panics in the store, are logged
// and counted but never reach the caller. It reports whether the write
// succeeded.
func (l *Logger) Record(ctx context.Context, rec *models.InteractionRecord) (ok bool) {
	log := observability.LoggerFromContext(ctx, l.logger)

	defer func() {
		if r := recover(); r != nil {
			l.fail(log, rec, services.WrapError(services.ErrorTypeLoggingFailed, "interaction store panicked", fmt.Errorf("%v", r)))
			ok = false
		}
	}()

	if rec == nil {
		l.fail(log, rec, services.WrapError(services.ErrorTypeLoggingFailed, "nil interaction record", nil))
		return false
	}

	writeCtx := ctx
	if l.budget > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(ctx, l.budget)
		defer cancel()
	}

	if err := l.repo.Insert(writeCtx, rec); err != nil {
		l.fail(log, rec, services.WrapError(services.ErrorTypeLoggingFailed, services.ErrLoggingFailed.Message, err))
		return false
	}

	log.Info("interaction recorded",
		zap.String("interaction_id", rec.ID.String()),
		zap.String("entry_path", string(rec.EntryPath)))
	return true
}

func (l *Logger) fail(log *zap.Logger, rec *models.InteractionRecord, err error) {
	l.metrics.RecordLoggingFailure()
	fields := []zap.Field{zap.Error(err)}
	if rec != nil {
		fields = append(fields,
			zap.String("interaction_id", rec.ID.String()),
			zap.String("entry_path", string(rec.EntryPath)))
	}
	log.Error("failed to record interaction", fields...)
}
