package supabase

import (
	"context"
	"net/http"

	"github.com/upb/voice-agent/models"
	"github.com/upb/voice-agent/repositories"
	"go.uber.org/zap"
)

// InteractionRepository appends interaction records through PostgREST
type InteractionRepository struct {
	client *Client
	table  string
}

// NewInteractionRepository creates a new interaction repository over the given table
func NewInteractionRepository(client *Client, table string) repositories.InteractionRepository {
	if table == "" {
		table = models.InteractionRecord{}.TableName()
	}
	return &InteractionRepository{client: client, table: table}
}

type interactionRow struct {
	UserID    string `json:"user_id"`
	Query     string `json:"query"`
	Response  string `json:"response"`
	SQLResult string `json:"sql_result"`
	CreatedAt string `json:"created_at"`
}

// Insert appends one record
func (r *InteractionRepository) Insert(ctx context.Context, rec *models.InteractionRecord) error {
	row := interactionRow{
		UserID:    rec.CallerID,
		Query:     rec.Question,
		Response:  rec.Answer,
		SQLResult: rec.QueryResult,
		CreatedAt: rec.CreatedAt.Format("2006-01-02T15:04:05.000000Z07:00"),
	}

	if err := r.client.do(ctx, http.MethodPost, r.table, nil, row, nil); err != nil {
		return err
	}

	r.client.logger.Debug("interaction record inserted",
		zap.String("id", rec.ID.String()),
		zap.String("entry_path", string(rec.EntryPath)))
	return nil
}
