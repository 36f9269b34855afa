package models

import "time"

const (
	JobStatusProcessing = "processing"
	JobStatusDone       = "done"
	JobStatusError      = "error"
)

// Job tracks one asynchronous profile analysis. The API returns a job_id on
// POST /analysis/start; the client polls GET /analysis/status/{job_id} until
// status is done or error, or until the entry expires.
type Job struct {
	ID        string          `json:"job_id"`
	Status    string          `json:"status"`
	Username  string          `json:"username,omitempty"`
	Result    *AnalysisResult `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// IsTerminal reports whether no further status transition is allowed.
func (j *Job) IsTerminal() bool {
	return IsTerminalStatus(j.Status)
}

// IsTerminalStatus reports whether status is done or error.
func IsTerminalStatus(status string) bool {
	return status == JobStatusDone || status == JobStatusError
}
