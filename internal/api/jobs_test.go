package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pocket-drs/pocketdrs/internal/jobs"
	"github.com/pocket-drs/pocketdrs/internal/pipeline"
)

func TestSubmitJob(t *testing.T) {
	s, store := testServer(t)

	clip := []byte("not really mp4, but the server does not care")
	body, contentType := multipartBody(t, validRequestJSON(t), clip)
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s; want 202", rec.Code, rec.Body.String())
	}

	var resp submitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.JobID == "" || resp.Status != jobs.StatusQueued {
		t.Errorf("response = %+v; want queued with an ID", resp)
	}

	// The clip landed at the job's input path before the row was inserted.
	data, err := os.ReadFile(s.layout.InputPath(resp.JobID))
	if err != nil {
		t.Fatalf("read saved clip: %v", err)
	}
	if string(data) != string(clip) {
		t.Error("saved clip does not match upload")
	}

	job, err := store.Get(resp.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Request == nil || job.Request.Tracking.Mode != "seeded" {
		t.Errorf("stored request = %+v", job.Request)
	}
}

func TestSubmitJobRejections(t *testing.T) {
	s, _ := testServer(t)

	badSegment := `{"segment":{"start_ms":1000,"end_ms":500},"tracking":{"mode":"auto"}}`
	tests := []struct {
		name    string
		request string
		video   []byte
	}{
		{"missing request part", "", []byte("clip")},
		{"request not JSON", "{nope", []byte("clip")},
		{"invalid segment", badSegment, []byte("clip")},
		{"missing video part", validRequestJSON(t), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tt.request, tt.video)
			req := httptest.NewRequest(http.MethodPost, "/v1/jobs", body)
			req.Header.Set("Content-Type", contentType)

			rec := httptest.NewRecorder()
			s.ServeMux().ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d; want 400", rec.Code)
			}
			if code, _ := decodeError(t, rec); code != pipeline.CodeInvalidRequest {
				t.Errorf("code = %s; want %s", code, pipeline.CodeInvalidRequest)
			}
		})
	}
}

func TestSubmitJobRejectsGet(t *testing.T) {
	s, _ := testServer(t)
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d; want 405", rec.Code)
	}
}

func TestJobStatus(t *testing.T) {
	s, store := testServer(t)
	seed := pipeline.Point2{X: 10, Y: 20}
	job, _ := store.Create(jobs.NewID(), &pipeline.Request{
		Segment:  pipeline.Segment{StartMs: 0, EndMs: 1000},
		Tracking: pipeline.TrackingRequest{Mode: "seeded", SeedPx: &seed},
	})
	store.SetProgress(job.ID, 40, "tracking")

	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/"+job.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}

	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.JobID != job.ID || resp.Status != jobs.StatusQueued {
		t.Errorf("response = %+v", resp)
	}
	if resp.Progress != 40 || resp.Stage != "tracking" {
		t.Errorf("progress = %d/%s; want 40/tracking", resp.Progress, resp.Stage)
	}
}

func TestJobStatusUnknown(t *testing.T) {
	s, _ := testServer(t)
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/no-such-job", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d; want 404", rec.Code)
	}
}

func TestJobResultLifecycle(t *testing.T) {
	s, store := testServer(t)
	job, _ := store.Create(jobs.NewID(), &pipeline.Request{
		Segment:  pipeline.Segment{StartMs: 0, EndMs: 1000},
		Tracking: pipeline.TrackingRequest{Mode: "auto"},
	})

	// Not finished yet.
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/"+job.ID+"/result", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("pending result status = %d; want 409", rec.Code)
	}

	result := &pipeline.Result{ImageSize: pipeline.ImageSize{Width: 640, Height: 480}}
	store.MarkSucceeded(job.ID, result, []string{"decode at 66ms failed"})

	rec = httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/"+job.ID+"/result", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("result status = %d; want 200", rec.Code)
	}
	var resp resultResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Result == nil || resp.Result.ImageSize.Width != 640 {
		t.Errorf("result = %+v", resp.Result)
	}
	if len(resp.Warnings) != 1 {
		t.Errorf("warnings = %v", resp.Warnings)
	}
}

func TestJobResultFailed(t *testing.T) {
	s, store := testServer(t)
	job, _ := store.Create(jobs.NewID(), &pipeline.Request{
		Segment:  pipeline.Segment{StartMs: 0, EndMs: 1000},
		Tracking: pipeline.TrackingRequest{Mode: "auto"},
	})
	store.MarkFailed(job.ID, pipeline.APIError{
		Code: pipeline.CodeTrackingFailed, Message: "no detectable motion",
	})

	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/"+job.ID+"/result", nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d; want 422", rec.Code)
	}
	code, message := decodeError(t, rec)
	if code != pipeline.CodeTrackingFailed || message != "no detectable motion" {
		t.Errorf("error = %s/%s", code, message)
	}
}

func TestArtifactDownload(t *testing.T) {
	s, store := testServer(t)
	job, _ := store.Create(jobs.NewID(), &pipeline.Request{
		Segment:  pipeline.Segment{StartMs: 0, EndMs: 1000},
		Tracking: pipeline.TrackingRequest{Mode: "auto"},
	})
	if err := s.layout.EnsureJobDirs(job.ID); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(s.layout.ArtifactsDir(job.ID), "frame0.jpg")
	if err := os.WriteFile(path, []byte("jpeg bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/"+job.ID+"/artifacts/frame0.jpg", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	if rec.Body.String() != "jpeg bytes" {
		t.Errorf("body = %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/"+job.ID+"/artifacts/missing.png", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing artifact status = %d; want 404", rec.Code)
	}
}

func TestArtifactTraversalRejected(t *testing.T) {
	s, store := testServer(t)
	job, _ := store.Create(jobs.NewID(), &pipeline.Request{
		Segment:  pipeline.Segment{StartMs: 0, EndMs: 1000},
		Tracking: pipeline.TrackingRequest{Mode: "auto"},
	})
	if err := s.layout.EnsureJobDirs(job.ID); err != nil {
		t.Fatal(err)
	}

	// Bypass ServeMux path cleaning to hit the handler with a raw traversal.
	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+job.ID+"/artifacts/x", nil)
	req.URL.Path = "/v1/jobs/" + job.ID + "/artifacts/../input.mp4"
	rec := httptest.NewRecorder()
	s.handleJobSubtree(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("traversal status = %d; want 400", rec.Code)
	}
}
