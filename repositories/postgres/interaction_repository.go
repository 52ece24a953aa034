package postgres

import (
	"context"
	"fmt"

	"github.com/upb/voice-agent/models"
	"github.com/upb/voice-agent/repositories"
	"go.uber.org/zap"
)

// InteractionRepository writes interaction records to a writable database
type InteractionRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewInteractionRepository creates a new interaction repository
func NewInteractionRepository(db *DB, logger *zap.Logger) repositories.InteractionRepository {
	return &InteractionRepository{
		db:     db,
		logger: logger,
	}
}

// Insert appends an interaction record
func (r *InteractionRepository) Insert(ctx context.Context, rec *models.InteractionRecord) error {
	query := `
		INSERT INTO voice_agent_logs (
			id, user_id, query, response, sql_result, entry_path, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		rec.ID,
		rec.CallerID,
		rec.Question,
		rec.Answer,
		rec.QueryResult,
		rec.EntryPath,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert interaction record: %w", err)
	}

	r.logger.Debug("interaction record inserted",
		zap.String("id", rec.ID.String()),
		zap.String("entry_path", string(rec.EntryPath)))
	return nil
}
