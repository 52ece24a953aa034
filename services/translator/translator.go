// Package translator answers natural-language questions by letting a chat
// model explore and query the construction database through function tools.
package translator

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/upb/voice-agent/models"
	"github.com/upb/voice-agent/repositories"
	"github.com/upb/voice-agent/services"
	"github.com/upb/voice-agent/services/providers"
	"github.com/upb/voice-agent/services/sqlguard"
	"go.uber.org/zap"
)

const (
	DefaultMaxSteps = 15

	toolListTables    = "list_tables"
	toolDescribeTable = "describe_table"
	toolRunQuery      = "run_query"
)

const systemPrompt = `You are an agent designed to interact with a PostgreSQL database.
Given an input question, create a syntactically correct query to run, look at the results and return the answer.
Unless the user specifies otherwise, limit the query to at most 10 results and only select the relevant columns.
Use list_tables and describe_table before querying a table you have not seen.
If a query fails, rewrite it and try again.
Never issue statements that modify data or schema.`

var tools = []providers.Tool{
	{
		Name:        toolListTables,
		Description: "List the tables available in the database.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{}}`),
	},
	{
		Name:        toolDescribeTable,
		Description: "Return the columns of a table.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"table":{"type":"string","description":"Table name"}},"required":["table"]}`),
	},
	{
		Name:        toolRunQuery,
		Description: "Run a single read-only SQL query and return the rows.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"query":{"type":"string","description":"A single SELECT statement"}},"required":["query"]}`),
	},
}

// Translator turns a question into an answer grounded in query results
type Translator struct {
	chat     providers.ChatProvider
	executor repositories.QueryExecutor
	maxSteps int
	logger   *zap.Logger
}

// NewTranslator creates a new translator
func NewTranslator(chat providers.ChatProvider, executor repositories.QueryExecutor, maxSteps int, logger *zap.Logger) *Translator {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Translator{
		chat:     chat,
		executor: executor,
		maxSteps: maxSteps,
		logger:   logger,
	}
}

// Translate runs the tool loop until the model produces a final answer.
// Statements that fail the read-only policy abort the run without reaching
// the database.
func (t *Translator) Translate(ctx context.Context, question string, schema models.SchemaContext) (*models.QueryResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, services.WrapError(services.ErrorTypeTranslationFailed, "empty question", nil)
	}

	zero := 0.0
	messages := []providers.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: EnhanceQuestion(question, schema)},
	}
	result := &models.QueryResult{}

	for step := 1; step <= t.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, services.WrapError(services.ErrorTypeTranslationFailed, "translation cancelled", err)
		}

		resp, err := t.chat.ChatCompletion(ctx, &providers.ChatRequest{
			Messages:    messages,
			Tools:       tools,
			Temperature: &zero,
		})
		if err != nil {
			return nil, services.WrapError(services.ErrorTypeTranslationFailed, "chat completion failed", err)
		}
		result.Steps = step

		if len(resp.Message.ToolCalls) == 0 {
			output := stripFences(resp.Message.Content)
			if output == "" {
				return nil, services.WrapError(services.ErrorTypeTranslationFailed, "model returned an empty answer", nil)
			}
			result.Output = output
			t.logger.Debug("translation completed",
				zap.Int("steps", step),
				zap.Int("statements", len(result.Statements)))
			return result, nil
		}

		messages = append(messages, providers.Message{
			Role:      "assistant",
			Content:   resp.Message.Content,
			ToolCalls: resp.Message.ToolCalls,
		})

		for _, call := range resp.Message.ToolCalls {
			output, err := t.invoke(ctx, call, schema, result)
			if err != nil {
				return nil, err
			}
			messages = append(messages, providers.Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Content:    output,
			})
		}
	}

	return nil, services.NewDomainError(services.ErrorTypeTranslationFailed, "agent step limit reached", nil).
		WithDetail("max_steps", t.maxSteps)
}

// invoke runs one tool call. Recoverable problems are returned as tool output
// for the model to correct; a non-nil error ends the run.
func (t *Translator) invoke(ctx context.Context, call providers.ToolCall, schema models.SchemaContext, result *models.QueryResult) (string, error) {
	switch call.Name {
	case toolListTables:
		tables, err := t.executor.ListTables(ctx)
		if err != nil {
			if isConnectionError(ctx, err) {
				return "", services.WrapError(services.ErrorTypeTranslationFailed, "database unavailable", err)
			}
			return strings.Join(schema.TableNames(), ", "), nil
		}
		return strings.Join(tables, ", "), nil

	case toolDescribeTable:
		var args struct {
			Table string `json:"table"`
		}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return fmt.Sprintf("Error: invalid arguments: %v", err), nil
		}
		table, ok := schema.Table(args.Table)
		if !ok {
			return fmt.Sprintf("Error: table %q not found. Available tables: %s",
				args.Table, strings.Join(schema.TableNames(), ", ")), nil
		}
		return fmt.Sprintf("%s(%s)", table.Name, strings.Join(table.Columns, ", ")), nil

	case toolRunQuery:
		var args struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return fmt.Sprintf("Error: invalid arguments: %v", err), nil
		}
		return t.runQuery(ctx, args.Query, result)

	default:
		return fmt.Sprintf("Error: unknown tool %q", call.Name), nil
	}
}

func (t *Translator) runQuery(ctx context.Context, query string, result *models.QueryResult) (string, error) {
	if err := sqlguard.Check(query); err != nil {
		t.logger.Warn("statement rejected by read-only policy",
			zap.String("sql", query),
			zap.Error(err))
		result.Statements = append(result.Statements, models.ExecutedStatement{SQL: query, Error: err.Error()})
		return "", services.NewDomainError(services.ErrorTypeTranslationFailed, services.ErrStatementRejected.Message, err).
			WithDetail("sql", query)
	}

	rows, err := t.executor.QueryReadOnly(ctx, query)
	if err != nil {
		result.Statements = append(result.Statements, models.ExecutedStatement{SQL: query, Error: err.Error()})
		if isConnectionError(ctx, err) {
			return "", services.WrapError(services.ErrorTypeTranslationFailed, "database unavailable", err)
		}
		t.logger.Debug("query failed, returning error to model", zap.String("sql", query), zap.Error(err))
		return "Error: " + err.Error(), nil
	}

	result.Statements = append(result.Statements, models.ExecutedStatement{SQL: query, RowCount: len(rows.Values)})
	return FormatRows(rows), nil
}

// EnhanceQuestion prepends the schema context to the question
func EnhanceQuestion(question string, schema models.SchemaContext) string {
	return schema.Prompt() + "\n\nUser question: " + question
}

// FormatRows renders rows as compact JSON for the model
func FormatRows(rows *repositories.Rows) string {
	if rows == nil || len(rows.Values) == 0 {
		return "[]"
	}
	out := struct {
		Columns   []string        `json:"columns"`
		Rows      [][]interface{} `json:"rows"`
		Truncated bool            `json:"truncated,omitempty"`
	}{rows.Columns, rows.Values, rows.Truncated}

	b, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprintf("%v", rows.Values)
	}
	return string(b)
}

func isConnectionError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
