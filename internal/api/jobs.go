package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pocket-drs/pocketdrs/internal/jobs"
	"github.com/pocket-drs/pocketdrs/internal/monitoring"
	"github.com/pocket-drs/pocketdrs/internal/pipeline"
	"github.com/pocket-drs/pocketdrs/internal/security"
)

// submitResponse acknowledges an accepted job.
type submitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// statusResponse is the polling payload.
type statusResponse struct {
	JobID      string             `json:"job_id"`
	Status     string             `json:"status"`
	Progress   int                `json:"progress"`
	Stage      string             `json:"stage,omitempty"`
	Error      *pipeline.APIError `json:"error,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	StartedAt  *time.Time         `json:"started_at,omitempty"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
}

// resultResponse wraps the analysis result for a succeeded job.
type resultResponse struct {
	JobID    string           `json:"job_id"`
	Status   string           `json:"status"`
	Result   *pipeline.Result `json:"result"`
	Warnings []string         `json:"warnings"`
}

// statusForCode maps a job error code to an HTTP status.
func statusForCode(code string) int {
	switch code {
	case pipeline.CodeInvalidRequest:
		return http.StatusBadRequest
	case pipeline.CodeDecodeFailed, pipeline.CodeCalibrationDegenerate, pipeline.CodeTrackingFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// handleSubmitJob accepts a multipart upload with a "video" file part and a
// "request" JSON part, validates the request, persists the clip and queues
// the job.
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}

	maxBytes := s.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	// The video part streams to disk; only the request JSON stays in memory.
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeError(w, http.StatusBadRequest, pipeline.CodeInvalidRequest, "malformed multipart upload")
		return
	}

	reqJSON := r.FormValue("request")
	if reqJSON == "" {
		writeError(w, http.StatusBadRequest, pipeline.CodeInvalidRequest, "missing request part")
		return
	}
	var req pipeline.Request
	if err := json.Unmarshal([]byte(reqJSON), &req); err != nil {
		writeError(w, http.StatusBadRequest, pipeline.CodeInvalidRequest, "request part is not valid JSON")
		return
	}
	if err := pipeline.ValidateRequest(&req); err != nil {
		apiErr := pipeline.MapError(err)
		writeError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message)
		return
	}

	video, _, err := r.FormFile("video")
	if err != nil {
		writeError(w, http.StatusBadRequest, pipeline.CodeInvalidRequest, "missing video part")
		return
	}
	defer video.Close()

	// Write the clip before inserting the row: workers only see jobs whose
	// input file already exists.
	id := jobs.NewID()
	if err := s.layout.EnsureJobDirs(id); err != nil {
		monitoring.Logf("Error creating job dirs for %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, pipeline.CodeInternal, "internal error")
		return
	}
	if err := saveUpload(video, s.layout.InputPath(id)); err != nil {
		monitoring.Logf("Error saving upload for %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, pipeline.CodeInternal, "internal error")
		return
	}

	job, err := s.store.Create(id, &req)
	if err != nil {
		monitoring.Logf("Error creating job %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, pipeline.CodeInternal, "internal error")
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{JobID: job.ID, Status: job.Status})
}

func saveUpload(src io.Reader, dst string) error {
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(dst)
		return err
	}
	return f.Close()
}

// handleJobSubtree routes /v1/jobs/{id}, /v1/jobs/{id}/result and
// /v1/jobs/{id}/artifacts/{name}.
func (s *Server) handleJobSubtree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/jobs/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "job ID required")
		return
	}

	job, err := s.store.Get(id)
	if errors.Is(err, jobs.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no such job")
		return
	}
	if err != nil {
		monitoring.Logf("Error loading job %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, pipeline.CodeInternal, "internal error")
		return
	}

	switch {
	case sub == "":
		s.writeJobStatus(w, job)
	case sub == "result":
		s.writeJobResult(w, job)
	case strings.HasPrefix(sub, "artifacts/"):
		s.serveArtifact(w, r, job, strings.TrimPrefix(sub, "artifacts/"))
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown job resource")
	}
}

func (s *Server) writeJobStatus(w http.ResponseWriter, job *jobs.Job) {
	writeJSON(w, http.StatusOK, statusResponse{
		JobID:      job.ID,
		Status:     job.Status,
		Progress:   job.Progress,
		Stage:      job.Stage,
		Error:      job.Error,
		CreatedAt:  job.CreatedAt,
		StartedAt:  job.StartedAt,
		FinishedAt: job.FinishedAt,
	})
}

func (s *Server) writeJobResult(w http.ResponseWriter, job *jobs.Job) {
	switch job.Status {
	case jobs.StatusSucceeded:
		writeJSON(w, http.StatusOK, resultResponse{
			JobID:    job.ID,
			Status:   job.Status,
			Result:   job.Result,
			Warnings: job.Warnings,
		})
	case jobs.StatusFailed:
		apiErr := job.Error
		if apiErr == nil {
			apiErr = &pipeline.APIError{Code: pipeline.CodeInternal, Message: "internal error"}
		}
		writeError(w, statusForCode(apiErr.Code), apiErr.Code, apiErr.Message)
	default:
		writeError(w, http.StatusConflict, "JOB_NOT_FINISHED", "job has not finished yet")
	}
}

// serveArtifact streams one file out of a job's artifacts directory. The
// name is confined to that directory; traversal attempts are rejected.
func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request, job *jobs.Job, name string) {
	if name == "" || strings.Contains(name, "/") {
		writeError(w, http.StatusBadRequest, pipeline.CodeInvalidRequest, "invalid artifact name")
		return
	}

	dir := s.layout.ArtifactsDir(job.ID)
	path := filepath.Join(dir, name)
	if err := security.ValidatePathWithinDirectory(path, dir); err != nil {
		writeError(w, http.StatusBadRequest, pipeline.CodeInvalidRequest, "invalid artifact name")
		return
	}
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no such artifact")
		return
	}
	http.ServeFile(w, r, path)
}
