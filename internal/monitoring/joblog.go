package monitoring

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// JobLogger prefixes every line with the job ID and, when an artifacts
// directory is available, tees the lines into <artifacts>/job.log so a
// failed job carries its own diagnostics.
type JobLogger struct {
	jobID string

	mu   sync.Mutex
	file *os.File

	// progress dedup state
	lastStage string
	lastPct   int
	hasPct    bool
}

// NewJobLogger creates a logger for one job. artifactsDir may be empty, in
// which case lines go only to the package logger.
func NewJobLogger(jobID, artifactsDir string) *JobLogger {
	jl := &JobLogger{jobID: jobID}
	if artifactsDir != "" {
		f, err := os.OpenFile(filepath.Join(artifactsDir, "job.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			Logf("[job %s] could not open job.log: %v", jobID, err)
		} else {
			jl.file = f
		}
	}
	return jl
}

// Printf logs a job-scoped line.
func (jl *JobLogger) Printf(format string, v ...interface{}) {
	line := fmt.Sprintf(format, v...)
	Logf("[job %s] %s", jl.jobID, line)

	jl.mu.Lock()
	defer jl.mu.Unlock()
	if jl.file != nil {
		fmt.Fprintf(jl.file, "%s %s\n", time.Now().UTC().Format(time.RFC3339), line)
	}
}

// Progress logs a progress update, deduplicated to stage changes and pct
// jumps of at least 10 points so long decode loops stay readable.
func (jl *JobLogger) Progress(pct int, stage string) {
	jl.mu.Lock()
	skip := jl.hasPct && stage == jl.lastStage && abs(pct-jl.lastPct) < 10
	if !skip {
		jl.lastStage = stage
		jl.lastPct = pct
		jl.hasPct = true
	}
	jl.mu.Unlock()

	if !skip {
		jl.Printf("progress: %d%% - %s", pct, stage)
	}
}

// Close releases the job.log handle.
func (jl *JobLogger) Close() error {
	jl.mu.Lock()
	defer jl.mu.Unlock()
	if jl.file == nil {
		return nil
	}
	err := jl.file.Close()
	jl.file = nil
	return err
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
