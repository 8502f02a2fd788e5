// Package jobs persists analysis jobs in SQLite and runs them on a small
// worker pool. A job moves queued -> running -> succeeded|failed; results and
// errors are stored as JSON alongside the job row so the API layer serves
// them without touching the pipeline.
package jobs

import (
	"time"

	"github.com/pocket-drs/pocketdrs/internal/pipeline"
)

// Job statuses.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Job is one analysis job. Request is always present; Result only for
// succeeded jobs and Error only for failed ones.
type Job struct {
	ID         string
	Status     string
	Progress   int
	Stage      string
	Request    *pipeline.Request
	Result     *pipeline.Result
	Error      *pipeline.APIError
	Warnings   []string
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// Terminal reports whether the job has finished, either way.
func (j *Job) Terminal() bool {
	return j.Status == StatusSucceeded || j.Status == StatusFailed
}
