package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Job tracks one document-analysis request through its lifecycle. The API
// returns a job id on POST /api/v1/analyze; the client polls
// GET /api/v1/analyze/{jobID} until status is completed or failed, then
// retrieves the report from GET /api/v1/analyze/{jobID}/result.
//
// Status is monotonic: pending -> running -> completed|failed. Terminal
// jobs are never transitioned again; CompletedAt is set exactly once at
// the terminal transition.
type Job struct {
	ID           uuid.UUID  `db:"id"            json:"id"`
	UserID       *uuid.UUID `db:"user_id"       json:"user_id,omitempty"`
	Filename     string     `db:"filename"      json:"filename"`
	FilePath     string     `db:"file_path"     json:"-"`
	Query        string     `db:"query"         json:"query"`
	Status       string     `db:"status"        json:"status"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	StartedAt    *time.Time `db:"started_at"    json:"started_at,omitempty"`
	CompletedAt  *time.Time `db:"completed_at"  json:"completed_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"    json:"updated_at"`
}

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Progress maps a job status to the coarse progress indicator surfaced by
// the status endpoint: pending=0, running=50, completed=100, failed=0.
func Progress(status string) int {
	switch status {
	case JobStatusRunning:
		return 50
	case JobStatusCompleted:
		return 100
	default:
		return 0
	}
}
