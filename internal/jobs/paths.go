package jobs

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout fixes the on-disk shape of the data directory:
//
//	<root>/jobs.db
//	<root>/jobs/<id>/input.mp4
//	<root>/jobs/<id>/artifacts/
type Layout struct {
	Root string
}

// DBPath is the job database file.
func (l Layout) DBPath() string {
	return filepath.Join(l.Root, "jobs.db")
}

// JobDir is the per-job directory.
func (l Layout) JobDir(id string) string {
	return filepath.Join(l.Root, "jobs", id)
}

// InputPath is the uploaded clip for a job.
func (l Layout) InputPath(id string) string {
	return filepath.Join(l.JobDir(id), "input.mp4")
}

// ArtifactsDir holds a job's generated artifacts (frame grabs, reports,
// job.log).
func (l Layout) ArtifactsDir(id string) string {
	return filepath.Join(l.JobDir(id), "artifacts")
}

// EnsureJobDirs creates the job and artifacts directories.
func (l Layout) EnsureJobDirs(id string) error {
	if err := os.MkdirAll(l.ArtifactsDir(id), 0o755); err != nil {
		return fmt.Errorf("create job dirs for %s: %w", id, err)
	}
	return nil
}
