package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// IngestionRunStatus represents the status of an ingestion run
type IngestionRunStatus string

const (
	RunStatusPending    IngestionRunStatus = "pending"
	RunStatusInProgress IngestionRunStatus = "in_progress"
	RunStatusCompleted  IngestionRunStatus = "completed"
	RunStatusFailed     IngestionRunStatus = "failed"
)

// RunError records why a single case could not be ingested
type RunError struct {
	Citation string `json:"citation"`
	Message  string `json:"message"`
}

// RunErrors represents the per-case failures of a run
type RunErrors []RunError

// Value implements driver.Valuer for JSONB
func (r RunErrors) Value() (driver.Value, error) {
	if r == nil {
		return json.Marshal([]RunError{})
	}
	return json.Marshal([]RunError(r))
}

// Scan implements sql.Scanner for JSONB
func (r *RunErrors) Scan(value interface{}) error {
	if value == nil {
		*r = make(RunErrors, 0)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*r = make(RunErrors, 0)
		return nil
	}

	if len(bytes) == 0 {
		*r = make(RunErrors, 0)
		return nil
	}

	return json.Unmarshal(bytes, (*[]RunError)(r))
}

// IngestionRun tracks one invocation of the ingestion pipeline
type IngestionRun struct {
	ID           uuid.UUID          `json:"id"`
	Source       string             `json:"source"`
	Status       IngestionRunStatus `json:"status"`
	Total        int                `json:"total"`
	Processed    int                `json:"processed"`
	Failed       int                `json:"failed"`
	Warnings     int                `json:"warnings"`
	Errors       RunErrors          `json:"errors"`
	ErrorMessage *string            `json:"error_message,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
	CompletedAt  *time.Time         `json:"completed_at,omitempty"`
}
