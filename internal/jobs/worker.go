package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pocket-drs/pocketdrs/internal/monitoring"
	"github.com/pocket-drs/pocketdrs/internal/pipeline"
	"github.com/pocket-drs/pocketdrs/internal/timeutil"
)

// DefaultWorkers is the pool size when none is configured. Analysis is CPU
// bound and clips are short, so a small pool keeps memory in check.
const DefaultWorkers = 2

// defaultPollInterval is how often an idle worker checks the queue.
const defaultPollInterval = 250 * time.Millisecond

// JobRunner is the slice of the pipeline the pool needs. *pipeline.Runner
// satisfies it; tests substitute stubs.
type JobRunner interface {
	Run(videoPath string, req *pipeline.Request, artifactsDir string, progress pipeline.ProgressFunc) (*pipeline.Output, error)
}

// Pool runs queued jobs through the analysis pipeline.
type Pool struct {
	Store  *Store
	Layout Layout
	Runner JobRunner

	// Workers defaults to DefaultWorkers when zero.
	Workers int
	// PollInterval defaults to defaultPollInterval when zero.
	PollInterval time.Duration
	// Clock defaults to the real clock.
	Clock timeutil.Clock

	// Report, when set, renders result artifacts after a successful run.
	// Report failures are logged, never fatal: the job result is already
	// persisted.
	Report func(job *Job, out *pipeline.Output, artifactsDir string) error
}

// Run blocks until ctx is cancelled, processing queued jobs on the pool.
func (p *Pool) Run(ctx context.Context) {
	workers := p.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	clock := p.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	poll := p.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				job, ok, err := p.Store.ClaimNext()
				if err != nil {
					monitoring.Logf("worker %d: claim failed: %v", worker, err)
				}
				if ok {
					p.process(job)
					continue
				}
				select {
				case <-ctx.Done():
					return
				case <-clock.After(poll):
				}
			}
		}(i)
	}
	wg.Wait()
}

// ProcessOne claims and runs a single job synchronously. Used by the CLI
// tool and by tests; the server uses Run.
func (p *Pool) ProcessOne() (worked bool, err error) {
	job, ok, err := p.Store.ClaimNext()
	if err != nil || !ok {
		return false, err
	}
	p.process(job)
	return true, nil
}

func (p *Pool) process(job *Job) {
	artifactsDir := p.Layout.ArtifactsDir(job.ID)
	if err := p.Layout.EnsureJobDirs(job.ID); err != nil {
		monitoring.Logf("job %s: %v", job.ID, err)
		artifactsDir = ""
	}

	jl := monitoring.NewJobLogger(job.ID, artifactsDir)
	defer jl.Close()

	// A panicking job must not take the worker down with it.
	defer func() {
		if r := recover(); r != nil {
			jl.Printf("panic: %v", r)
			if err := p.Store.MarkFailed(job.ID, pipeline.MapError(fmt.Errorf("panic: %v", r))); err != nil {
				monitoring.Logf("job %s: record panic: %v", job.ID, err)
			}
		}
	}()

	jl.Printf("starting analysis")
	progress := func(pct int, stage string) {
		jl.Progress(pct, stage)
		if err := p.Store.SetProgress(job.ID, pct, stage); err != nil {
			jl.Printf("progress write failed: %v", err)
		}
	}

	out, err := p.Runner.Run(p.Layout.InputPath(job.ID), job.Request, artifactsDir, progress)
	if err != nil {
		apiErr := pipeline.MapError(err)
		jl.Printf("failed: %s: %v", apiErr.Code, err)
		if err := p.Store.MarkFailed(job.ID, apiErr); err != nil {
			monitoring.Logf("job %s: mark failed: %v", job.ID, err)
		}
		return
	}

	if err := p.Store.MarkSucceeded(job.ID, out.Result, out.Warnings); err != nil {
		monitoring.Logf("job %s: mark succeeded: %v", job.ID, err)
		return
	}
	jl.Printf("succeeded with %d warnings", len(out.Warnings))

	if p.Report != nil && artifactsDir != "" {
		if err := p.Report(job, out, artifactsDir); err != nil {
			jl.Printf("report artifacts: %v", err)
		}
	}
}
