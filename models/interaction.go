package models

import (
	"time"

	"github.com/google/uuid"
)

// EntryPath identifies which endpoint produced an interaction
type EntryPath string

const (
	EntryPathVoice EntryPath = "voice"
	EntryPathText  EntryPath = "text"
)

// InteractionRecord is an append-only entry in the interaction log
type InteractionRecord struct {
	ID          uuid.UUID `json:"id" db:"id"`
	CallerID    string    `json:"user_id" db:"user_id"`
	Question    string    `json:"query" db:"query"`
	Answer      string    `json:"response" db:"response"`
	QueryResult string    `json:"sql_result" db:"sql_result"`
	EntryPath   EntryPath `json:"entry_path" db:"entry_path"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the InteractionRecord model
func (InteractionRecord) TableName() string {
	return "voice_agent_logs"
}

// NewInteractionRecord creates a record stamped with the current time
func NewInteractionRecord(callerID, question, answer string, result *QueryResult, path EntryPath) *InteractionRecord {
	return &InteractionRecord{
		ID:          uuid.New(),
		CallerID:    callerID,
		Question:    question,
		Answer:      answer,
		QueryResult: result.String(),
		EntryPath:   path,
		CreatedAt:   time.Now().UTC(),
	}
}
