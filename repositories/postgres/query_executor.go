package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/upb/voice-agent/repositories"
	"go.uber.org/zap"
)

const listTablesQuery = `
	SELECT table_name
	FROM information_schema.tables
	WHERE table_schema = 'public' AND table_type IN ('BASE TABLE', 'VIEW')
	ORDER BY table_name
`

// QueryExecutor runs model-generated statements against the read-only database.
// Every statement runs inside a READ ONLY transaction with a statement timeout
// and is rolled back, so nothing it does can persist. Statements are prepared
// before they run: the extended protocol accepts exactly one statement, so a
// smuggled COMMIT cannot end the transaction early.
type QueryExecutor struct {
	db               *DB
	txManager        repositories.TransactionManager
	statementTimeout time.Duration
	maxRows          int
	logger           *zap.Logger
}

// NewQueryExecutor creates a new read-only query executor
func NewQueryExecutor(db *DB, statementTimeout time.Duration, maxRows int, logger *zap.Logger) *QueryExecutor {
	return &QueryExecutor{
		db:               db,
		txManager:        NewTransactionManager(db, logger),
		statementTimeout: statementTimeout,
		maxRows:          maxRows,
		logger:           logger,
	}
}

// QueryReadOnly executes statement and returns at most maxRows rows
func (e *QueryExecutor) QueryReadOnly(ctx context.Context, statement string) (*repositories.Rows, error) {
	var result *repositories.Rows

	err := e.txManager.InReadOnlyTransaction(ctx, func(ctx context.Context, _ repositories.Transaction) error {
		executor := GetExecutor(ctx, e.db)

		if e.statementTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL statement_timeout = %d", e.statementTimeout.Milliseconds())
			if _, err := executor.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to set statement timeout: %w", err)
			}
		}

		stmt, err := executor.PrepareContext(ctx, statement)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		defer stmt.Close()

		rows, err := stmt.QueryContext(ctx)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		defer rows.Close()

		result, err = e.scan(rows)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debug("read-only statement executed",
		zap.Int("rows", len(result.Values)),
		zap.Bool("truncated", result.Truncated))

	return result, nil
}

func (e *QueryExecutor) scan(rows *sql.Rows) (*repositories.Rows, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	result := &repositories.Rows{Columns: columns}
	for rows.Next() {
		if len(result.Values) >= e.maxRows {
			result.Truncated = true
			break
		}

		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Values = append(result.Values, values)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return result, nil
}

// ListTables returns the public tables and views
func (e *QueryExecutor) ListTables(ctx context.Context) ([]string, error) {
	rows, err := e.db.QueryContext(ctx, listTablesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}

	return tables, nil
}
