package postgres

import (
	"context"

	"github.com/upb/voice-agent/config"
	"github.com/upb/voice-agent/repositories"
	"go.uber.org/zap"
)

// RepositoryFactory owns the database pools and hands out repositories over them
type RepositoryFactory struct {
	db     *DB
	logDB  *DB // Optional: writable DB for interaction logs
	cfg    *config.Config
	logger *zap.Logger
}

// NewRepositoryFactory opens the query database and, when configured, the log database
func NewRepositoryFactory(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*RepositoryFactory, error) {
	db, err := NewDB(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	f := &RepositoryFactory{db: db, cfg: cfg, logger: logger}

	if cfg.LogDatabase != nil && cfg.Pipeline.InteractionStore == "postgres" {
		logDB, err := NewDB(ctx, *cfg.LogDatabase, logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		f.logDB = logDB
	}

	return f, nil
}

// InitInteractionSchema creates the log table when a log database is configured
func (f *RepositoryFactory) InitInteractionSchema(ctx context.Context) error {
	if f.logDB != nil {
		return f.logDB.InitInteractionSchema(ctx)
	}
	return nil
}

// QueryExecutor returns the read-only executor over the query database
func (f *RepositoryFactory) QueryExecutor() repositories.QueryExecutor {
	return NewQueryExecutor(f.db, f.cfg.Pipeline.StatementTimeout, f.cfg.Pipeline.MaxResultRows, f.logger)
}

// InteractionRepository returns the postgres log repository, or nil when no log database is open
func (f *RepositoryFactory) InteractionRepository() repositories.InteractionRepository {
	if f.logDB == nil {
		return nil
	}
	return NewInteractionRepository(f.logDB, f.logger)
}

// GetDB returns the query database connection
func (f *RepositoryFactory) GetDB() *DB {
	return f.db
}

// Close closes the database connection(s)
func (f *RepositoryFactory) Close() error {
	if f.logDB != nil {
		_ = f.logDB.Close()
	}
	return f.db.Close()
}
