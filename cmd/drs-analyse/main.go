// drs-analyse runs the analysis pipeline on a single clip without the
// server: useful for tuning work and for debugging disputed rulings.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/pocket-drs/pocketdrs/internal/config"
	"github.com/pocket-drs/pocketdrs/internal/pipeline"
	"github.com/pocket-drs/pocketdrs/internal/report"
	"github.com/pocket-drs/pocketdrs/internal/video"
)

var (
	clipFile    = flag.String("clip", "", "Video clip to analyse (required)")
	requestFile = flag.String("request", "", "Analysis request JSON file (required)")
	outDir      = flag.String("out", "", "Directory for artifacts (default: no artifacts)")
	tuningFile  = flag.String("tuning", "", "Optional tuning overrides JSON file")
)

func main() {
	flag.Parse()

	if *clipFile == "" || *requestFile == "" {
		flag.Usage()
		os.Exit(2)
	}

	data, err := os.ReadFile(*requestFile)
	if err != nil {
		log.Fatalf("Failed to read request file: %v", err)
	}
	var req pipeline.Request
	if err := json.Unmarshal(data, &req); err != nil {
		log.Fatalf("Failed to parse request JSON: %v", err)
	}

	tuning := config.EmptyTuningConfig()
	if *tuningFile != "" {
		tuning, err = config.LoadTuningConfig(*tuningFile)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
	}

	if *outDir != "" {
		if err := os.MkdirAll(*outDir, 0o755); err != nil {
			log.Fatalf("Failed to create output directory: %v", err)
		}
	}

	runner := &pipeline.Runner{
		OpenVideo: func(path string) (video.FrameSource, error) {
			return video.OpenClip(path)
		},
		Extractor:     tuning.Extractor(),
		Tracker:       tuning.TrackerConfig(),
		SaveFrameJPEG: video.SaveJPEG,
	}

	progress := func(pct int, stage string) {
		log.Printf("%3d%% %s", pct, stage)
	}

	out, err := runner.Run(*clipFile, &req, *outDir, progress)
	if err != nil {
		apiErr := pipeline.MapError(err)
		log.Fatalf("Analysis failed [%s]: %v", apiErr.Code, err)
	}

	if *outDir != "" {
		if err := report.Generate("cli", out, *outDir); err != nil {
			log.Printf("Failed to render artifacts: %v", err)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out.Result); err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
	for _, w := range out.Warnings {
		log.Printf("warning: %s", w)
	}
}
