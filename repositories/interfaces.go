package repositories

import (
	"context"
	"errors"

	"github.com/upb/voice-agent/models"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// TransactionManager manages database transactions
type TransactionManager interface {
	// BeginReadOnly starts a READ ONLY transaction
	BeginReadOnly(ctx context.Context) (Transaction, error)

	// InReadOnlyTransaction executes fn within a READ ONLY transaction
	// that is always rolled back
	InReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// IdentityStore resolves a token subject to its stored profile
type IdentityStore interface {
	// GetUserProfile returns ErrNotFound when no profile exists for userID
	GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error)
}

// InteractionRepository appends interaction records
type InteractionRepository interface {
	Insert(ctx context.Context, record *models.InteractionRecord) error
}

// Rows is the tabular result of a read-only statement
type Rows struct {
	Columns   []string
	Values    [][]interface{}
	Truncated bool
}

// QueryExecutor runs statements that already passed the read-only policy
type QueryExecutor interface {
	// QueryReadOnly runs sql inside a READ ONLY transaction that is always rolled back
	QueryReadOnly(ctx context.Context, sql string) (*Rows, error)

	// ListTables returns the tables visible to the read-only role
	ListTables(ctx context.Context) ([]string, error)
}
