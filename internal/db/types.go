package db

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Run status constants
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
)

// ErrStaleCheckpoint is returned when an update would move a checkpoint backwards
var ErrStaleCheckpoint = errors.New("checkpoint update is older than stored value")

// AuditRun is one logical run of a role: every process start that resumes
// from the same checkpoint writes into the same series.
type AuditRun struct {
	ID          uuid.UUID  `json:"id"`
	Role        string     `json:"role"`
	Model       string     `json:"model"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Checkpoint is the active progress marker of a role
type Checkpoint struct {
	Role      string    `json:"role"`
	SeriesID  uuid.UUID `json:"series_id"`
	Done      int       `json:"done"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordInput is one invocation record to persist. Payload is the full JSON record.
type RecordInput struct {
	GlobalIndex        int
	RunID              string
	ScenarioID         string
	Role               string
	PromptStyle        string
	ResponseText       string
	SelectedPersonaIDs []string
	Payload            []byte
}

// RecordSummary is the accounting view of a stored record
type RecordSummary struct {
	GlobalIndex int  `json:"global_index"`
	Failed      bool `json:"failed"`
}
