package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/voice-agent/models"
	"go.uber.org/zap"
)

func TestInteractionRepository_Insert(t *testing.T) {
	rec := models.NewInteractionRecord("user-1", "how many tasks are open?", "Twelve tasks are open.",
		&models.QueryResult{Output: "12"}, models.EntryPathVoice)

	t.Run("inserts record", func(t *testing.T) {
		sqlDB, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer sqlDB.Close()

		mock.ExpectExec(`INSERT INTO voice_agent_logs`).
			WithArgs(rec.ID, "user-1", "how many tasks are open?", "Twelve tasks are open.", "12", models.EntryPathVoice, rec.CreatedAt).
			WillReturnResult(sqlmock.NewResult(1, 1))

		repo := NewInteractionRepository(WrapDB(sqlDB, zap.NewNop()), zap.NewNop())
		require.NoError(t, repo.Insert(context.Background(), rec))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps database errors", func(t *testing.T) {
		sqlDB, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer sqlDB.Close()

		mock.ExpectExec(`INSERT INTO voice_agent_logs`).WillReturnError(errors.New("permission denied"))

		repo := NewInteractionRepository(WrapDB(sqlDB, zap.NewNop()), zap.NewNop())
		err = repo.Insert(context.Background(), rec)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to insert interaction record")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDB_HealthCheck(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectPing()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	db := WrapDB(sqlDB, zap.NewNop())
	require.NoError(t, db.HealthCheck(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
