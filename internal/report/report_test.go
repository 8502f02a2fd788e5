package report

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pocket-drs/pocketdrs/internal/pipeline"
)

func sampleOutput(withPlane bool) *pipeline.Output {
	res := &pipeline.Result{
		ImageSize: pipeline.ImageSize{Width: 640, Height: 480},
	}
	for i := 0; i < 8; i++ {
		res.Track.Points = append(res.Track.Points, pipeline.TrackPoint{
			TMs:        int64(i * 33),
			XPx:        200,
			YPx:        620 - float64(i)*10,
			Confidence: 0.9,
		})
	}
	res.Events = pipeline.EventsPayload{
		Bounce: pipeline.EventEstimate{Index: 2, Confidence: 0.6},
		Impact: pipeline.EventEstimate{Index: 7, Confidence: 0.5},
	}
	if withPlane {
		plane := &pipeline.PitchPlanePayload{}
		for i := 0; i < 8; i++ {
			plane.PointsM = append(plane.PointsM, pipeline.PlanePoint{
				TMs: int64(i * 33),
				XM:  8 - float64(i),
				YM:  0.05,
			})
		}
		res.PitchPlane = plane
		res.Lbw = &pipeline.LbwPayload{
			LikelyOut: true,
			Decision:  pipeline.DecisionOut,
			Reason:    "projected to hit the stumps",
			Prediction: pipeline.LbwPrediction{
				YAtStumpsM: 0.05, Confidence: 0.8, RSquared: 0.99,
			},
			FitMethod: pipeline.FitWeightedLinear,
		}
	}
	return &pipeline.Output{Result: res, Warnings: []string{"decode at 66ms failed"}}
}

func mustStat(t *testing.T, path string) os.FileInfo {
	t.Helper()
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	return fi
}

func TestGenerateWithCalibration(t *testing.T) {
	dir := t.TempDir()
	if err := Generate("job-1", sampleOutput(true), dir); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	for _, name := range []string{TrackPlotFile, PlanePlotFile, HTMLReportFile, DebugTrackFile} {
		if fi := mustStat(t, filepath.Join(dir, name)); fi.Size() == 0 {
			t.Errorf("%s is empty", name)
		}
	}
}

func TestGenerateWithoutCalibration(t *testing.T) {
	dir := t.TempDir()
	if err := Generate("job-2", sampleOutput(false), dir); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	mustStat(t, filepath.Join(dir, TrackPlotFile))
	if _, err := os.Stat(filepath.Join(dir, PlanePlotFile)); !os.IsNotExist(err) {
		t.Error("plane plot generated without calibration")
	}
}

func TestGenerateNoResult(t *testing.T) {
	if err := Generate("job-3", &pipeline.Output{}, t.TempDir()); err == nil {
		t.Fatal("expected an error for a nil result")
	}
}

func TestWriteDebugTrackRoundTrip(t *testing.T) {
	out := sampleOutput(true)
	path := filepath.Join(t.TempDir(), DebugTrackFile)
	if err := WriteDebugTrack(out, path); err != nil {
		t.Fatalf("WriteDebugTrack: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var dump debugTrack
	if err := json.Unmarshal(data, &dump); err != nil {
		t.Fatalf("debug dump is not valid JSON: %v", err)
	}
	if len(dump.Track) != 8 || len(dump.PlanePoints) != 8 {
		t.Errorf("dump sizes = %d track, %d plane; want 8/8", len(dump.Track), len(dump.PlanePoints))
	}
	if dump.Lbw == nil || dump.Lbw.Decision != pipeline.DecisionOut {
		t.Errorf("lbw = %+v", dump.Lbw)
	}
	if len(dump.Warnings) != 1 {
		t.Errorf("warnings = %v", dump.Warnings)
	}
}

func TestWriteHTMLReportMentionsDecision(t *testing.T) {
	out := sampleOutput(true)
	path := filepath.Join(t.TempDir(), HTMLReportFile)
	if err := WriteHTMLReport("job-4", out.Result, path); err != nil {
		t.Fatalf("WriteHTMLReport: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	html := string(data)
	if !strings.Contains(html, "echarts") {
		t.Error("report does not embed echarts")
	}
	if !strings.Contains(html, "projected to hit the stumps") {
		t.Error("report does not mention the ruling")
	}
}

func TestDeliverySpeed(t *testing.T) {
	out := sampleOutput(true)
	// 7 one-meter steps over 231ms.
	want := 7.0 / 0.231
	if got := deliverySpeedMps(out.Result.PitchPlane.PointsM); math.Abs(got-want) > 1e-9 {
		t.Errorf("deliverySpeedMps = %f; want %f", got, want)
	}

	if got := deliverySpeedMps(nil); got != 0 {
		t.Errorf("deliverySpeedMps(nil) = %f; want 0", got)
	}
	same := []pipeline.PlanePoint{{TMs: 0, XM: 1}, {TMs: 0, XM: 2}}
	if got := deliverySpeedMps(same); got != 0 {
		t.Errorf("deliverySpeedMps with zero elapsed = %f; want 0", got)
	}
}

func TestWriteHTMLReportEmptyTrack(t *testing.T) {
	res := &pipeline.Result{}
	if err := WriteHTMLReport("job-5", res, filepath.Join(t.TempDir(), HTMLReportFile)); err == nil {
		t.Fatal("expected an error for an empty track")
	}
}
