package jobs

import (
	"errors"
	"testing"
	"time"

	"github.com/pocket-drs/pocketdrs/internal/pipeline"
	"github.com/pocket-drs/pocketdrs/internal/timeutil"
)

func testStore(t *testing.T) (*Store, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s, err := Open(":memory:", clock)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, clock
}

func testRequest() *pipeline.Request {
	seed := pipeline.Point2{X: 10, Y: 20}
	return &pipeline.Request{
		Segment:  pipeline.Segment{StartMs: 0, EndMs: 1000},
		Tracking: pipeline.TrackingRequest{Mode: "seeded", SeedPx: &seed},
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	s, _ := testStore(t)

	created, err := s.Create(NewID(), testRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("empty job ID")
	}

	got, err := s.Get(created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusQueued || got.Progress != 0 {
		t.Errorf("fresh job = %s/%d; want queued/0", got.Status, got.Progress)
	}
	if got.Request == nil || got.Request.Tracking.Mode != "seeded" {
		t.Errorf("request did not round-trip: %+v", got.Request)
	}
	if got.Request.Tracking.SeedPx == nil || got.Request.Tracking.SeedPx.X != 10 {
		t.Errorf("seed did not round-trip: %+v", got.Request.Tracking.SeedPx)
	}
	if got.Result != nil || got.Error != nil {
		t.Error("fresh job carries a result or error")
	}
}

func TestStore_GetUnknown(t *testing.T) {
	s, _ := testStore(t)
	_, err := s.Get("no-such-job")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v; want ErrNotFound", err)
	}
}

func TestStore_ClaimOrderAndExhaustion(t *testing.T) {
	s, clock := testStore(t)

	first, _ := s.Create(NewID(), testRequest())
	clock.Advance(time.Second)
	second, _ := s.Create(NewID(), testRequest())

	j1, ok, err := s.ClaimNext()
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	if j1.ID != first.ID {
		t.Errorf("claimed %s first; want the older job %s", j1.ID, first.ID)
	}
	if j1.Status != StatusRunning || j1.StartedAt == nil {
		t.Errorf("claimed job = %s, started_at=%v", j1.Status, j1.StartedAt)
	}

	j2, ok, err := s.ClaimNext()
	if err != nil || !ok {
		t.Fatalf("second claim: ok=%v err=%v", ok, err)
	}
	if j2.ID != second.ID {
		t.Errorf("claimed %s; want %s", j2.ID, second.ID)
	}

	if _, ok, _ := s.ClaimNext(); ok {
		t.Error("claimed a job from an empty queue")
	}
}

func TestStore_SucceedLifecycle(t *testing.T) {
	s, _ := testStore(t)
	job, _ := s.Create(NewID(), testRequest())
	s.ClaimNext()

	if err := s.SetProgress(job.ID, 42, "tracking"); err != nil {
		t.Fatalf("SetProgress: %v", err)
	}
	mid, _ := s.Get(job.ID)
	if mid.Progress != 42 || mid.Stage != "tracking" {
		t.Errorf("progress = %d/%s", mid.Progress, mid.Stage)
	}

	result := &pipeline.Result{ImageSize: pipeline.ImageSize{Width: 640, Height: 480}}
	if err := s.MarkSucceeded(job.ID, result, []string{"decode at 66ms failed"}); err != nil {
		t.Fatalf("MarkSucceeded: %v", err)
	}

	done, _ := s.Get(job.ID)
	if done.Status != StatusSucceeded || !done.Terminal() {
		t.Errorf("status = %s", done.Status)
	}
	if done.Progress != 100 || done.Stage != "done" {
		t.Errorf("progress = %d/%s; want 100/done", done.Progress, done.Stage)
	}
	if done.Result == nil || done.Result.ImageSize.Width != 640 {
		t.Errorf("result did not round-trip: %+v", done.Result)
	}
	if len(done.Warnings) != 1 {
		t.Errorf("warnings = %v", done.Warnings)
	}
	if done.FinishedAt == nil {
		t.Error("finished_at not set")
	}
}

func TestStore_FailLifecycle(t *testing.T) {
	s, _ := testStore(t)
	job, _ := s.Create(NewID(), testRequest())
	s.ClaimNext()

	apiErr := pipeline.APIError{Code: pipeline.CodeTrackingFailed, Message: "no detectable motion"}
	if err := s.MarkFailed(job.ID, apiErr); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	done, _ := s.Get(job.ID)
	if done.Status != StatusFailed || !done.Terminal() {
		t.Errorf("status = %s", done.Status)
	}
	if done.Error == nil || done.Error.Code != pipeline.CodeTrackingFailed {
		t.Errorf("error = %+v", done.Error)
	}
	if done.Result != nil {
		t.Error("failed job carries a result")
	}
}

func TestStore_CountByStatus(t *testing.T) {
	s, _ := testStore(t)
	s.Create(NewID(), testRequest())
	s.Create(NewID(), testRequest())
	job, _ := s.Create(NewID(), testRequest())
	s.ClaimNext()
	_ = job

	counts, err := s.CountByStatus()
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[StatusQueued] != 2 || counts[StatusRunning] != 1 {
		t.Errorf("counts = %v; want 2 queued, 1 running", counts)
	}
}

func TestStore_RequeueStale(t *testing.T) {
	s, clock := testStore(t)
	job, _ := s.Create(NewID(), testRequest())
	s.ClaimNext()

	clock.Advance(time.Hour)
	n, err := s.RequeueStale(clock.Now().Add(-30 * time.Minute))
	if err != nil {
		t.Fatalf("RequeueStale: %v", err)
	}
	if n != 1 {
		t.Errorf("requeued %d jobs; want 1", n)
	}

	got, _ := s.Get(job.ID)
	if got.Status != StatusQueued || got.StartedAt != nil {
		t.Errorf("stale job = %s, started_at=%v; want queued/nil", got.Status, got.StartedAt)
	}

	// Fresh running jobs stay running.
	s.ClaimNext()
	n, _ = s.RequeueStale(clock.Now().Add(-30 * time.Minute))
	if n != 0 {
		t.Errorf("requeued %d fresh jobs", n)
	}
}
