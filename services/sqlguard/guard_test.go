package sqlguard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		wantErr error
		keyword string
	}{
		{name: "simple select", sql: "SELECT count(*) FROM projects WHERE status = 'active'"},
		{name: "trailing semicolon", sql: "SELECT name FROM equipment;"},
		{name: "lowercase cte", sql: "with t as (select * from tasks) select count(*) from t"},
		{name: "parenthesized", sql: "(SELECT 1) UNION (SELECT 2)"},
		{name: "keyword inside literal", sql: "SELECT * FROM tasks WHERE name = 'DROP the tarp; delete later'"},
		{name: "keyword inside comment", sql: "SELECT 1 -- update me\n"},
		{name: "column named updated_at", sql: "SELECT updated_at, created_by FROM inventory"},
		{name: "replace function", sql: "SELECT replace(name, 'a', 'b') FROM inventory"},
		{name: "explain", sql: "EXPLAIN SELECT * FROM projects"},
		{name: "identifier words as columns", sql: "SELECT t.comment, load, description AS comment FROM equipment_logs t"},
		{name: "verb word inside function call", sql: "SELECT coalesce(comment, 'none') FROM tasks"},
		{name: "case expression end", sql: "SELECT CASE WHEN quantity > 0 THEN 'ok' END FROM inventory"},
		{name: "escape string", sql: `SELECT * FROM tasks WHERE name = E'it\'s; done'`},
		{name: "doubled quote", sql: "SELECT * FROM tasks WHERE name = 'it''s; done'"},
		{name: "nested comment", sql: "SELECT 1 /* outer /* inner */ DELETE */"},
		{name: "positional parameter", sql: "SELECT $1::int"},

		{name: "empty", sql: "   ", wantErr: ErrEmptyStatement},
		{name: "only comment", sql: "/* nothing */", wantErr: ErrEmptyStatement},
		{name: "stacked statements", sql: "SELECT 1; DROP TABLE projects", wantErr: ErrMultipleStatements},
		{name: "insert", sql: "INSERT INTO projects(name) VALUES ('x')", wantErr: ErrNotReadOnly, keyword: "INSERT"},
		{name: "update", sql: "update inventory set quantity = 0", wantErr: ErrNotReadOnly, keyword: "UPDATE"},
		{name: "delete", sql: "DELETE FROM tasks", wantErr: ErrNotReadOnly, keyword: "DELETE"},
		{name: "drop", sql: "DROP TABLE equipment", wantErr: ErrNotReadOnly, keyword: "DROP"},
		{name: "writable cte", sql: "WITH d AS (DELETE FROM tasks RETURNING *) SELECT * FROM d", wantErr: ErrNotReadOnly, keyword: "DELETE"},
		{name: "select into", sql: "SELECT * INTO backup FROM projects", wantErr: ErrNotReadOnly, keyword: "INTO"},
		{name: "row lock", sql: "SELECT * FROM equipment FOR UPDATE", wantErr: ErrNotReadOnly, keyword: "UPDATE"},
		{name: "explain analyze", sql: "EXPLAIN ANALYZE DELETE FROM tasks", wantErr: ErrNotReadOnly, keyword: "ANALYZE"},
		{name: "side effect function", sql: "SELECT pg_sleep(10)", wantErr: ErrNotReadOnly, keyword: "pg_sleep"},
		{name: "sequence bump", sql: "SELECT nextval('projects_id_seq')", wantErr: ErrNotReadOnly, keyword: "nextval"},
		{name: "escape string hides a commit", sql: `SELECT E'\''; COMMIT; DELETE FROM projects; SELECT 'x'`, wantErr: ErrMultipleStatements},
		{name: "lowercase escape string", sql: `select e'\\'; rollback`, wantErr: ErrMultipleStatements},
		{name: "backslash in standard string", sql: `SELECT 'a\'; DELETE FROM projects; SELECT '`, wantErr: ErrMalformed},
		{name: "unterminated literal", sql: "SELECT 'open", wantErr: ErrMalformed},
		{name: "unterminated comment", sql: "SELECT 1 /* open", wantErr: ErrMalformed},
		{name: "unterminated dollar quote", sql: "SELECT $q$ body", wantErr: ErrMalformed},
		{name: "commit", sql: "COMMIT", wantErr: ErrNotReadOnly, keyword: "COMMIT"},
		{name: "begin", sql: "begin read write", wantErr: ErrNotReadOnly, keyword: "BEGIN"},
		{name: "rollback", sql: "ROLLBACK", wantErr: ErrNotReadOnly, keyword: "ROLLBACK"},
		{name: "savepoint", sql: "SAVEPOINT s1", wantErr: ErrNotReadOnly, keyword: "SAVEPOINT"},
		{name: "commit in cte body", sql: "WITH c AS (COMMIT) SELECT 1", wantErr: ErrNotReadOnly, keyword: "COMMIT"},
		{name: "set", sql: "SET default_transaction_read_only = off", wantErr: ErrNotReadOnly, keyword: "SET"},
		{name: "share lock", sql: "SELECT * FROM equipment FOR SHARE", wantErr: ErrNotReadOnly, keyword: "FOR SHARE"},
		{name: "qualified side effect function", sql: "SELECT pg_catalog.pg_sleep(1)", wantErr: ErrNotReadOnly, keyword: "pg_sleep"},
		{name: "dollar quoted do block", sql: "DO $$ BEGIN DELETE FROM tasks; END $$", wantErr: ErrNotReadOnly, keyword: "DO"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.sql)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				assert.True(t, IsReadOnly(tt.sql))
				return
			}

			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			var v *Violation
			if assert.True(t, errors.As(err, &v)) {
				assert.Equal(t, tt.keyword, v.Keyword)
			}
			assert.False(t, IsReadOnly(tt.sql))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "SELECT '' FROM t", Normalize("SELECT 'a;b' FROM t;;"))
	assert.Equal(t, `SELECT "" FROM t`, Normalize(`/* x */ SELECT "weird;name" FROM t`))
	assert.Equal(t, "SELECT ''", Normalize("SELECT $tag$ drop $tag$"))
	assert.Equal(t, "SELECT ''; COMMIT", Normalize(`SELECT E'\''; COMMIT;`))
	assert.Equal(t, "SELECT $1", Normalize("SELECT $1"))
}
