// drs-server runs the LBW analysis service: an HTTP API for uploading
// delivery clips plus a worker pool that analyses them.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pocket-drs/pocketdrs/internal/api"
	"github.com/pocket-drs/pocketdrs/internal/config"
	"github.com/pocket-drs/pocketdrs/internal/jobs"
	"github.com/pocket-drs/pocketdrs/internal/monitoring"
	"github.com/pocket-drs/pocketdrs/internal/pipeline"
	"github.com/pocket-drs/pocketdrs/internal/report"
	"github.com/pocket-drs/pocketdrs/internal/version"
	"github.com/pocket-drs/pocketdrs/internal/video"
)

var (
	listen     = flag.String("listen", ":8080", "HTTP listen address")
	dataDir    = flag.String("data-dir", "./data", "Directory for the job database and per-job files")
	workers    = flag.Int("workers", 0, "Worker pool size (0 = default)")
	tuningFile = flag.String("tuning", "", "Optional tuning overrides JSON file")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	monitoring.Logf("drs-server %s (%s)", version.Version, version.GitSHA)

	tuning := config.EmptyTuningConfig()
	if *tuningFile != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*tuningFile)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
	}

	layout := jobs.Layout{Root: *dataDir}
	if err := os.MkdirAll(layout.Root, 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	store, err := jobs.Open(layout.DBPath(), nil)
	if err != nil {
		log.Fatalf("Failed to open job database: %v", err)
	}
	defer store.Close()

	// Jobs left running by a previous process are orphans; retry them.
	if n, err := store.RequeueStale(time.Now()); err != nil {
		log.Printf("Failed to requeue stale jobs: %v", err)
	} else if n > 0 {
		monitoring.Logf("requeued %d stale jobs", n)
	}

	runner := &pipeline.Runner{
		OpenVideo: func(path string) (video.FrameSource, error) {
			return video.OpenClip(path)
		},
		Extractor:     tuning.Extractor(),
		Tracker:       tuning.TrackerConfig(),
		SaveFrameJPEG: video.SaveJPEG,
	}

	pool := &jobs.Pool{
		Store:        store,
		Layout:       layout,
		Runner:       runner,
		Workers:      *workers,
		PollInterval: tuning.GetPollInterval(),
		Report: func(job *jobs.Job, out *pipeline.Output, artifactsDir string) error {
			return report.Generate(job.ID, out, artifactsDir)
		},
	}
	if pool.Workers == 0 {
		pool.Workers = tuning.GetWorkers()
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		pool.Run(ctx)
		log.Print("worker pool stopped")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()

		handler := api.LoggingMiddleware(api.CORSMiddleware(api.NewServer(store, layout).ServeMux()))
		server := &http.Server{
			Addr:    *listen,
			Handler: handler,
		}

		go func() {
			monitoring.Logf("listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
