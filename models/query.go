package models

import (
	"fmt"
	"strings"
)

// TableSchema describes one queryable table
type TableSchema struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description,omitempty"`
	Columns     []string `yaml:"columns" json:"columns"`
}

// SchemaContext is the static description of the queryable tables given to
// the language model ahead of every question.
type SchemaContext struct {
	Preamble    string        `yaml:"preamble"`
	Tables      []TableSchema `yaml:"tables"`
	Instruction string        `yaml:"instruction"`
}

// Prompt renders the context the way it is prepended to a question
func (s SchemaContext) Prompt() string {
	var b strings.Builder
	b.WriteString(s.Preamble)
	for _, t := range s.Tables {
		if t.Description != "" {
			fmt.Fprintf(&b, "\n- %s: %s (%s)", t.Name, t.Description, strings.Join(t.Columns, ", "))
			continue
		}
		fmt.Fprintf(&b, "\n- %s (%s)", t.Name, strings.Join(t.Columns, ", "))
	}
	if s.Instruction != "" {
		b.WriteString("\n\n")
		b.WriteString(s.Instruction)
	}
	return b.String()
}

// Table returns the named table schema
func (s SchemaContext) Table(name string) (TableSchema, bool) {
	for _, t := range s.Tables {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return TableSchema{}, false
}

// TableNames returns the names of all tables in declaration order
func (s SchemaContext) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		names = append(names, t.Name)
	}
	return names
}

// ExecutedStatement records one statement the translator ran
type ExecutedStatement struct {
	SQL      string `json:"sql"`
	RowCount int    `json:"row_count"`
	Error    string `json:"error,omitempty"`
}

// QueryResult is the translator's answer to a question
type QueryResult struct {
	Output     string              `json:"output"`
	Statements []ExecutedStatement `json:"statements,omitempty"`
	Steps      int                 `json:"steps"`
}

// String is the stringified form passed to the summarizer and stored in the log
func (r *QueryResult) String() string {
	if r == nil {
		return ""
	}
	return r.Output
}
