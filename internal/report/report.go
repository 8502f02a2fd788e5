// Package report renders per-job artifacts from a finished analysis: static
// trajectory plots, an interactive HTML chart and a machine-readable debug
// dump. Rendering happens after the result is persisted, so failures here
// never fail the job.
package report

import (
	"fmt"
	"path/filepath"

	"github.com/pocket-drs/pocketdrs/internal/pipeline"
)

// Artifact file names, stable so clients can fetch them by name.
const (
	TrackPlotFile  = "trajectory.png"
	PlanePlotFile  = "plane.png"
	HTMLReportFile = "report.html"
	DebugTrackFile = "debug_track.json"
)

// Generate writes all artifacts for a finished job into dir. Plane-space
// artifacts are skipped when the job ran without calibration.
func Generate(jobID string, out *pipeline.Output, dir string) error {
	res := out.Result
	if res == nil {
		return fmt.Errorf("job %s: no result to render", jobID)
	}

	if err := TrackPlotPNG(res, filepath.Join(dir, TrackPlotFile)); err != nil {
		return fmt.Errorf("job %s: track plot: %w", jobID, err)
	}
	if res.PitchPlane != nil {
		if err := PlanePlotPNG(res, filepath.Join(dir, PlanePlotFile)); err != nil {
			return fmt.Errorf("job %s: plane plot: %w", jobID, err)
		}
	}
	if err := WriteHTMLReport(jobID, res, filepath.Join(dir, HTMLReportFile)); err != nil {
		return fmt.Errorf("job %s: html report: %w", jobID, err)
	}
	if err := WriteDebugTrack(out, filepath.Join(dir, DebugTrackFile)); err != nil {
		return fmt.Errorf("job %s: debug track: %w", jobID, err)
	}
	return nil
}
