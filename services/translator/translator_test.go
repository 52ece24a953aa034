package translator

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/voice-agent/repositories"
	"github.com/upb/voice-agent/repositories/postgres"
	"github.com/upb/voice-agent/services"
	"github.com/upb/voice-agent/services/providers"
	"github.com/upb/voice-agent/services/sqlguard"
	"go.uber.org/zap"
)

type MockChatProvider struct {
	mock.Mock
}

func (m *MockChatProvider) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.ChatResponse), args.Error(1)
}

type MockQueryExecutor struct {
	mock.Mock
}

func (m *MockQueryExecutor) QueryReadOnly(ctx context.Context, sql string) (*repositories.Rows, error) {
	args := m.Called(ctx, sql)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repositories.Rows), args.Error(1)
}

func (m *MockQueryExecutor) ListTables(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func toolCall(id, name, arguments string) *providers.ChatResponse {
	return &providers.ChatResponse{
		FinishReason: "tool_calls",
		Message: providers.Message{
			Role:      "assistant",
			ToolCalls: []providers.ToolCall{{ID: id, Name: name, Arguments: arguments}},
		},
	}
}

func answer(content string) *providers.ChatResponse {
	return &providers.ChatResponse{
		FinishReason: "stop",
		Message:      providers.Message{Role: "assistant", Content: content},
	}
}

func TestDefaultSchema(t *testing.T) {
	schema := DefaultSchema()
	assert.Equal(t, []string{"projects", "tasks", "equipment", "equipment_logs", "user_profiles", "inventory"}, schema.TableNames())

	prompt := schema.Prompt()
	assert.Contains(t, prompt, "- projects: Contains construction projects (id, name, description, status, start_date, end_date)")
	assert.True(t, strings.HasPrefix(prompt, "You are working with a construction management database with the following main tables:"))
	assert.Contains(t, prompt, "- inventory: Contains inventory items (id, name, category, quantity, unit_price)")
	assert.Contains(t, prompt, "Generate safe, read-only SQL queries only.")

	enhanced := EnhanceQuestion("How many projects are active?", schema)
	assert.Equal(t, prompt+"\n\nUser question: How many projects are active?", enhanced)
}

func TestParseSchema(t *testing.T) {
	_, err := ParseSchema([]byte("tables: []"))
	assert.Error(t, err)

	_, err = ParseSchema([]byte("tables:\n  - columns: [id]"))
	assert.Error(t, err)

	_, err = ParseSchema([]byte("tables: ["))
	assert.Error(t, err)
}

func TestTranslator_Translate(t *testing.T) {
	ctx := context.Background()
	schema := DefaultSchema()

	t.Run("explores then answers", func(t *testing.T) {
		chat := new(MockChatProvider)
		exec := new(MockQueryExecutor)

		chat.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req *providers.ChatRequest) bool {
			return len(req.Messages) == 2
		})).Return(toolCall("c1", toolListTables, "{}"), nil).Once()
		chat.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req *providers.ChatRequest) bool {
			return len(req.Messages) == 4
		})).Return(toolCall("c2", toolRunQuery, `{"query":"SELECT count(*) FROM projects WHERE status = 'active'"}`), nil).Once()
		chat.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req *providers.ChatRequest) bool {
			last := req.Messages[len(req.Messages)-1]
			return len(req.Messages) == 6 && last.Role == "tool" && last.ToolCallID == "c2" &&
				last.Content == `{"columns":["count"],"rows":[[3]]}`
		})).Return(answer("There are 3 active projects."), nil).Once()

		exec.On("ListTables", mock.Anything).Return([]string{"projects", "tasks"}, nil).Once()
		exec.On("QueryReadOnly", mock.Anything, "SELECT count(*) FROM projects WHERE status = 'active'").
			Return(&repositories.Rows{Columns: []string{"count"}, Values: [][]interface{}{{3}}}, nil).Once()

		tr := NewTranslator(chat, exec, 0, zap.NewNop())
		result, err := tr.Translate(ctx, "How many projects are active?", schema)

		require.NoError(t, err)
		assert.Equal(t, "There are 3 active projects.", result.Output)
		assert.Equal(t, 3, result.Steps)
		require.Len(t, result.Statements, 1)
		assert.Equal(t, 1, result.Statements[0].RowCount)
		chat.AssertExpectations(t)
		exec.AssertExpectations(t)
	})

	t.Run("sends the schema context and zero temperature", func(t *testing.T) {
		chat := new(MockChatProvider)
		exec := new(MockQueryExecutor)

		chat.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req *providers.ChatRequest) bool {
			return req.Temperature != nil && *req.Temperature == 0 &&
				len(req.Tools) == 3 &&
				req.Messages[1].Content == EnhanceQuestion("list equipment", schema)
		})).Return(answer("```\nExcavator, Crane\n```"), nil).Once()

		result, err := NewTranslator(chat, exec, 5, zap.NewNop()).Translate(ctx, "  list equipment ", schema)
		require.NoError(t, err)
		assert.Equal(t, "Excavator, Crane", result.Output)
		chat.AssertExpectations(t)
	})

	t.Run("describe_table answers from the schema", func(t *testing.T) {
		chat := new(MockChatProvider)
		exec := new(MockQueryExecutor)

		chat.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req *providers.ChatRequest) bool {
			return len(req.Messages) == 2
		})).Return(toolCall("c1", toolDescribeTable, `{"table":"equipment"}`), nil).Once()
		chat.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req *providers.ChatRequest) bool {
			return len(req.Messages) == 4 &&
				req.Messages[3].Content == "equipment(id, name, category, status, condition)"
		})).Return(answer("done"), nil).Once()

		_, err := NewTranslator(chat, exec, 5, zap.NewNop()).Translate(ctx, "q", schema)
		require.NoError(t, err)
		chat.AssertExpectations(t)
		exec.AssertNotCalled(t, "QueryReadOnly", mock.Anything, mock.Anything)
	})

	t.Run("query errors are returned to the model", func(t *testing.T) {
		chat := new(MockChatProvider)
		exec := new(MockQueryExecutor)

		chat.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req *providers.ChatRequest) bool {
			return len(req.Messages) == 2
		})).Return(toolCall("c1", toolRunQuery, `{"query":"SELECT nme FROM projects"}`), nil).Once()
		chat.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req *providers.ChatRequest) bool {
			return len(req.Messages) == 4 && req.Messages[3].Content == `Error: column "nme" does not exist`
		})).Return(answer("I could not find that column."), nil).Once()

		exec.On("QueryReadOnly", mock.Anything, "SELECT nme FROM projects").
			Return(nil, errors.New(`column "nme" does not exist`)).Once()

		result, err := NewTranslator(chat, exec, 5, zap.NewNop()).Translate(ctx, "q", schema)
		require.NoError(t, err)
		require.Len(t, result.Statements, 1)
		assert.NotEmpty(t, result.Statements[0].Error)
		chat.AssertExpectations(t)
	})

	t.Run("connection errors fail translation", func(t *testing.T) {
		chat := new(MockChatProvider)
		exec := new(MockQueryExecutor)

		chat.On("ChatCompletion", mock.Anything, mock.Anything).
			Return(toolCall("c1", toolRunQuery, `{"query":"SELECT 1"}`), nil).Once()
		exec.On("QueryReadOnly", mock.Anything, "SELECT 1").Return(nil, driver.ErrBadConn).Once()

		_, err := NewTranslator(chat, exec, 5, zap.NewNop()).Translate(ctx, "q", schema)
		assert.True(t, services.IsTranslationError(err))
		assert.ErrorIs(t, err, driver.ErrBadConn)
	})

	t.Run("rejected statement never executes", func(t *testing.T) {
		chat := new(MockChatProvider)
		exec := new(MockQueryExecutor)

		chat.On("ChatCompletion", mock.Anything, mock.Anything).
			Return(toolCall("c1", toolRunQuery, `{"query":"DELETE FROM tasks"}`), nil).Once()

		_, err := NewTranslator(chat, exec, 5, zap.NewNop()).Translate(ctx, "remove all tasks", schema)
		require.Error(t, err)
		assert.True(t, services.IsTranslationError(err))
		assert.ErrorIs(t, err, sqlguard.ErrNotReadOnly)
		assert.Equal(t, "DELETE FROM tasks", services.GetErrorDetails(err)["sql"])
		exec.AssertNotCalled(t, "QueryReadOnly", mock.Anything, mock.Anything)
	})

	t.Run("step limit", func(t *testing.T) {
		chat := new(MockChatProvider)
		exec := new(MockQueryExecutor)

		chat.On("ChatCompletion", mock.Anything, mock.Anything).Return(toolCall("c", toolListTables, "{}"), nil)
		exec.On("ListTables", mock.Anything).Return([]string{"projects"}, nil)

		_, err := NewTranslator(chat, exec, 3, zap.NewNop()).Translate(ctx, "loop forever", schema)
		assert.True(t, services.IsTranslationError(err))
		assert.Equal(t, 3, services.GetErrorDetails(err)["max_steps"])
		chat.AssertNumberOfCalls(t, "ChatCompletion", 3)
	})

	t.Run("chat failure", func(t *testing.T) {
		chat := new(MockChatProvider)
		chat.On("ChatCompletion", mock.Anything, mock.Anything).Return(nil, errors.New("boom")).Once()

		_, err := NewTranslator(chat, new(MockQueryExecutor), 5, zap.NewNop()).Translate(ctx, "q", schema)
		assert.True(t, services.IsTranslationError(err))
	})

	t.Run("empty answer", func(t *testing.T) {
		chat := new(MockChatProvider)
		chat.On("ChatCompletion", mock.Anything, mock.Anything).Return(answer("  "), nil).Once()

		_, err := NewTranslator(chat, new(MockQueryExecutor), 5, zap.NewNop()).Translate(ctx, "q", schema)
		assert.True(t, services.IsTranslationError(err))
	})

	t.Run("empty question", func(t *testing.T) {
		chat := new(MockChatProvider)
		_, err := NewTranslator(chat, new(MockQueryExecutor), 5, zap.NewNop()).Translate(ctx, "   ", schema)
		assert.True(t, services.IsTranslationError(err))
		chat.AssertNotCalled(t, "ChatCompletion", mock.Anything, mock.Anything)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		chat := new(MockChatProvider)
		_, err := NewTranslator(chat, new(MockQueryExecutor), 5, zap.NewNop()).Translate(cctx, "q", schema)
		assert.True(t, services.IsTranslationError(err))
		chat.AssertNotCalled(t, "ChatCompletion", mock.Anything, mock.Anything)
	})
}

// A rejected statement must not reach the database at all, not even a BEGIN.
func TestTranslator_RejectedStatementLeavesDatabaseUntouched(t *testing.T) {
	statements := map[string]string{
		"drop":                        "DROP TABLE projects",
		"commit smuggled past escape": `SELECT E'\''; COMMIT; DELETE FROM projects; SELECT 'x'`,
		"delete in cte":               "WITH gone AS (DELETE FROM projects RETURNING id) SELECT count(*) FROM gone",
	}

	for name, statement := range statements {
		t.Run(name, func(t *testing.T) {
			sqlDB, dbMock, err := sqlmock.New()
			require.NoError(t, err)
			defer sqlDB.Close()

			exec := postgres.NewQueryExecutor(postgres.WrapDB(sqlDB, zap.NewNop()), time.Second, 10, zap.NewNop())

			args, err := json.Marshal(map[string]string{"query": statement})
			require.NoError(t, err)

			chat := new(MockChatProvider)
			chat.On("ChatCompletion", mock.Anything, mock.Anything).
				Return(toolCall("c1", toolRunQuery, string(args)), nil).Once()

			result, err := NewTranslator(chat, exec, 5, zap.NewNop()).Translate(context.Background(), "clean up projects", DefaultSchema())
			assert.True(t, services.IsTranslationError(err))
			assert.Nil(t, result)
			assert.NoError(t, dbMock.ExpectationsWereMet())
			chat.AssertExpectations(t)
		})
	}
}

func TestFormatRows(t *testing.T) {
	assert.Equal(t, "[]", FormatRows(nil))
	assert.Equal(t, "[]", FormatRows(&repositories.Rows{Columns: []string{"id"}}))
	assert.Equal(t, `{"columns":["name"],"rows":[["Crane"]],"truncated":true}`,
		FormatRows(&repositories.Rows{Columns: []string{"name"}, Values: [][]interface{}{{"Crane"}}, Truncated: true}))
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, "plain", stripFences(" plain "))
	assert.Equal(t, "SELECT 1", stripFences("```sql\nSELECT 1\n```"))
}
