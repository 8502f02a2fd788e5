package jobs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pocket-drs/pocketdrs/internal/pipeline"
)

// stubRunner scripts the pipeline outcome for worker tests.
type stubRunner struct {
	out      *pipeline.Output
	err      error
	panicMsg string

	gotVideoPath    string
	gotArtifactsDir string
}

func (r *stubRunner) Run(videoPath string, req *pipeline.Request, artifactsDir string, progress pipeline.ProgressFunc) (*pipeline.Output, error) {
	r.gotVideoPath = videoPath
	r.gotArtifactsDir = artifactsDir
	if r.panicMsg != "" {
		panic(r.panicMsg)
	}
	if progress != nil {
		progress(50, "tracking")
		progress(100, "done")
	}
	return r.out, r.err
}

func testPool(t *testing.T, runner JobRunner) (*Pool, *Store) {
	t.Helper()
	s, _ := testStore(t)
	return &Pool{
		Store:  s,
		Layout: Layout{Root: t.TempDir()},
		Runner: runner,
	}, s
}

func TestPool_SuccessfulJob(t *testing.T) {
	runner := &stubRunner{out: &pipeline.Output{
		Result:   &pipeline.Result{ImageSize: pipeline.ImageSize{Width: 640, Height: 480}},
		Warnings: []string{"decode at 66ms failed"},
	}}
	p, s := testPool(t, runner)

	job, _ := s.Create(NewID(), testRequest())
	worked, err := p.ProcessOne()
	if err != nil || !worked {
		t.Fatalf("ProcessOne: worked=%v err=%v", worked, err)
	}

	done, _ := s.Get(job.ID)
	if done.Status != StatusSucceeded {
		t.Fatalf("status = %s; want succeeded", done.Status)
	}
	if done.Result == nil || len(done.Warnings) != 1 {
		t.Errorf("result=%v warnings=%v", done.Result, done.Warnings)
	}

	if runner.gotVideoPath != p.Layout.InputPath(job.ID) {
		t.Errorf("ran with video path %q", runner.gotVideoPath)
	}
	if runner.gotArtifactsDir != p.Layout.ArtifactsDir(job.ID) {
		t.Errorf("ran with artifacts dir %q", runner.gotArtifactsDir)
	}

	// The per-job log landed in the artifacts directory.
	data, err := os.ReadFile(filepath.Join(p.Layout.ArtifactsDir(job.ID), "job.log"))
	if err != nil {
		t.Fatalf("job.log: %v", err)
	}
	if !strings.Contains(string(data), "succeeded with 1 warnings") {
		t.Errorf("job.log missing completion line:\n%s", data)
	}
}

func TestPool_FailedJobRecordsAPICode(t *testing.T) {
	runner := &stubRunner{err: fmt.Errorf("open clip: %w", pipeline.ErrDecodeFailed)}
	p, s := testPool(t, runner)

	job, _ := s.Create(NewID(), testRequest())
	if _, err := p.ProcessOne(); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}

	done, _ := s.Get(job.ID)
	if done.Status != StatusFailed {
		t.Fatalf("status = %s; want failed", done.Status)
	}
	if done.Error == nil || done.Error.Code != pipeline.CodeDecodeFailed {
		t.Errorf("error = %+v; want %s", done.Error, pipeline.CodeDecodeFailed)
	}
}

func TestPool_PanicDoesNotKillWorker(t *testing.T) {
	runner := &stubRunner{panicMsg: "index out of range"}
	p, s := testPool(t, runner)

	job, _ := s.Create(NewID(), testRequest())
	if _, err := p.ProcessOne(); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}

	done, _ := s.Get(job.ID)
	if done.Status != StatusFailed {
		t.Fatalf("status = %s; want failed", done.Status)
	}
	if done.Error == nil || done.Error.Code != pipeline.CodeInternal {
		t.Errorf("error = %+v; want INTERNAL_ERROR", done.Error)
	}
	// The panic text stays out of the client-visible message.
	if done.Error != nil && strings.Contains(done.Error.Message, "index out of range") {
		t.Errorf("panic detail leaked: %q", done.Error.Message)
	}
}

func TestPool_ProgressPersisted(t *testing.T) {
	runner := &stubRunner{out: &pipeline.Output{Result: &pipeline.Result{}}}
	p, s := testPool(t, runner)

	job, _ := s.Create(NewID(), testRequest())
	if _, err := p.ProcessOne(); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}

	done, _ := s.Get(job.ID)
	// MarkSucceeded finalizes at 100/done regardless of the last report.
	if done.Progress != 100 || done.Stage != "done" {
		t.Errorf("final progress = %d/%s", done.Progress, done.Stage)
	}
}

func TestPool_ReportHookRunsAfterSuccess(t *testing.T) {
	runner := &stubRunner{out: &pipeline.Output{Result: &pipeline.Result{}}}
	p, s := testPool(t, runner)

	called := false
	p.Report = func(job *Job, out *pipeline.Output, artifactsDir string) error {
		called = true
		return errors.New("renderer crashed")
	}

	job, _ := s.Create(NewID(), testRequest())
	if _, err := p.ProcessOne(); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if !called {
		t.Fatal("report hook not called")
	}

	// A report failure never fails the job.
	done, _ := s.Get(job.ID)
	if done.Status != StatusSucceeded {
		t.Errorf("status = %s; want succeeded despite report failure", done.Status)
	}
}

func TestPool_ProcessOneEmptyQueue(t *testing.T) {
	p, _ := testPool(t, &stubRunner{})
	worked, err := p.ProcessOne()
	if err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if worked {
		t.Error("claimed work from an empty queue")
	}
}
