package pipeline

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/pocket-drs/pocketdrs/internal/monitoring"
	"github.com/pocket-drs/pocketdrs/internal/video"
)

// ProgressFunc reports fractional progress at named stages. The orchestrator
// guarantees a monotonically non-decreasing percentage.
type ProgressFunc func(pct int, stage string)

// Named progress stages, in execution order.
const (
	StageDecode      = "decode"
	StageTracking    = "tracking"
	StageCalibration = "calibration"
	StageEvents      = "events"
	StageLbw         = "lbw"
	StageFinalize    = "finalize"
	StageDone        = "done"
)

// Output bundles the result payload with the warnings absorbed on the way.
type Output struct {
	Result   *Result
	Warnings []string
}

// Runner sequences the analysis stages for one job at a time. Collaborators
// are injected so tests can run the whole pipeline on synthetic frames.
type Runner struct {
	// OpenVideo opens the clip; required.
	OpenVideo func(path string) (video.FrameSource, error)
	// Extractor produces raw blob detections; required.
	Extractor video.BlobExtractor
	// Tracker is the tracker tuning; zero value means defaults.
	Tracker TrackerConfig
	// SaveFrameJPEG, when set, writes the first decoded frame as an
	// artifact. Failures are absorbed as warnings.
	SaveFrameJPEG func(f video.Frame, path string) error
	// Logf defaults to monitoring.Logf.
	Logf func(format string, v ...interface{})
}

func (r *Runner) logf(format string, v ...interface{}) {
	if r.Logf != nil {
		r.Logf(format, v...)
		return
	}
	monitoring.Logf(format, v...)
}

// Run executes the full per-clip pipeline and assembles the result payload.
// Stage-local issues with a safe fallback (per-frame decode hiccups, stump
// refinement failure) are absorbed into Output.Warnings; anything that would
// produce a misleading or empty result fails with a typed error from the
// taxonomy in errors.go.
func (r *Runner) Run(videoPath string, req *Request, artifactsDir string, progress ProgressFunc) (*Output, error) {
	report := newProgressReporter(progress)
	warnings := []string{}

	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	cfg := r.Tracker
	if cfg == (TrackerConfig{}) {
		cfg = DefaultTrackerConfig()
	}

	report(1, StageDecode)

	src, err := r.OpenVideo(videoPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	defer src.Close()

	meta := src.Meta()
	if meta.DurationMs > 0 && req.Segment.StartMs >= meta.DurationMs {
		return nil, fmt.Errorf("%w: segment starts at %dms, after clip end %dms", ErrInvalidRequest, req.Segment.StartMs, meta.DurationMs)
	}

	sampleFPS := req.Tracking.SampleFPS
	if sampleFPS <= 0 {
		sampleFPS = DefaultSampleFPS
	}
	maxFrames := req.Tracking.MaxFrames
	if maxFrames <= 0 {
		maxFrames = DefaultMaxFrames
	}
	rotation := 0
	if req.Video != nil {
		rotation = req.Video.RotationDeg
	}

	dtMs := int64(math.Round(1000 / float64(sampleFPS)))
	if dtMs < 1 {
		dtMs = 1
	}
	timesMs := make([]int64, 0, maxFrames)
	for t := req.Segment.StartMs; t <= req.Segment.EndMs && len(timesMs) < maxFrames; t += dtMs {
		timesMs = append(timesMs, t)
	}

	// Decode, substituting the last good frame on per-frame failures. The
	// job fails only when no frame has ever decoded.
	frames := make([]video.Frame, 0, len(timesMs))
	for i, tMs := range timesMs {
		f, err := src.FrameAt(tMs)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("decode at %dms failed: %v", tMs, err))
			if len(frames) == 0 {
				return nil, fmt.Errorf("%w: frame at %dms: %v", ErrDecodeFailed, tMs, err)
			}
			frames = append(frames, frames[len(frames)-1])
		} else {
			frames = append(frames, video.Rotate(f, rotation))
		}

		if i == 0 && r.SaveFrameJPEG != nil && artifactsDir != "" {
			if err := r.SaveFrameJPEG(frames[0], filepath.Join(artifactsDir, "frame0.jpg")); err != nil {
				warnings = append(warnings, fmt.Sprintf("frame0 artifact: %v", err))
			}
		}
		if len(timesMs) > 1 {
			report(5+int(25*float64(i)/float64(len(timesMs)-1)), StageDecode)
		}
	}

	width := frames[0].Width
	height := frames[0].Height

	report(35, StageTracking)

	mode, _ := ParseTrackMode(trackingModeOrDefault(req.Tracking.Mode))
	tracker, err := NewBallTracker(cfg, r.Extractor, mode, req.Tracking.SeedPx)
	if err != nil {
		return nil, err
	}
	track, err := tracker.Track(frames, timesMs)
	if err != nil {
		return nil, err
	}
	if len(track) == 0 {
		return nil, fmt.Errorf("%w: tracking produced no points", ErrTrackingFailed)
	}

	report(60, StageCalibration)

	calPayload := CalibrationPayload{Mode: calibrationModeOrDefault(req.Calibration.Mode)}
	var planePayload *PitchPlanePayload
	var planePts []PlanePoint
	var planeConfs []float64

	if calPayload.Mode == CalibrationTaps {
		h, notes, err := r.calibrate(&req.Calibration, width, height, &warnings)
		if err != nil {
			return nil, err
		}
		score := 0.6
		if len(notes) > 0 {
			score = 0.7
		}
		calPayload.Homography = &HomographyPayload{Matrix: h.Rows()}
		calPayload.Quality = &QualityPayload{Score: score, Notes: notes}

		planePts, planeConfs = MapToPlane(track, h)
		planePayload = &PitchPlanePayload{PointsM: planePts}
	}

	report(75, StageEvents)

	yPx := make([]float64, len(track))
	for i, p := range track {
		yPx[i] = p.YPx
	}
	bounce := EstimateBounce(yPx)
	impact := EstimateImpact(len(track))
	if req.Overrides != nil {
		if req.Overrides.BounceIndex != nil {
			bounce = OverrideEvent(*req.Overrides.BounceIndex)
		}
		if req.Overrides.ImpactIndex != nil {
			impact = OverrideEvent(*req.Overrides.ImpactIndex)
		}
	}
	bounce.Index = ClampIndex(bounce.Index, len(track))
	impact.Index = ClampIndex(impact.Index, len(track))

	var lbwPayload *LbwPayload
	if len(planePts) >= 3 {
		report(85, StageLbw)
		bounceI := ClampIndex(bounce.Index, len(planePts))
		impactI := ClampIndex(impact.Index, len(planePts))
		if impactI <= bounceI {
			impactI = ClampIndex(bounceI+1, len(planePts))
		}
		if impactI > bounceI {
			assessment, err := AssessLBW(planePts, bounceI, impactI, planeConfs)
			if err != nil {
				return nil, fmt.Errorf("lbw assessment: %w", err)
			}
			r.logf("lbw: decision=%s reason=%q y_at_stumps=%.3fm fit=%s r2=%.2f",
				assessment.Decision, assessment.Reason, assessment.YAtStumpsM, assessment.FitMethod, assessment.PredictionRSquared)
			lbwPayload = assessment.ToPayload()
		} else {
			warnings = append(warnings, "lbw skipped: impact does not follow bounce in the plane track")
		}
	}

	report(98, StageFinalize)

	result := &Result{
		Video:       VideoMeta{DurationMs: meta.DurationMs, FPSEst: meta.FPS},
		ImageSize:   ImageSize{Width: width, Height: height},
		Diagnostics: Diagnostics{Warnings: warnings},
		Track:       TrackPayload{Points: track},
		Calibration: calPayload,
		PitchPlane:  planePayload,
		Events:      EventsPayload{Bounce: bounce, Impact: impact},
		Lbw:         lbwPayload,
	}

	report(100, StageDone)
	return &Output{Result: result, Warnings: warnings}, nil
}

// calibrate resolves the tap coordinates (pixel precedence over normalized),
// solves the base homography, and attempts stump-base refinement with an
// explicit fallback to the 4-point solve.
func (r *Runner) calibrate(cal *CalibrationRequest, width, height int, warnings *[]string) (Homography, []string, error) {
	dims := cal.PitchDimensionsM

	var corners []Point2
	switch {
	case len(cal.PitchCornersPx) == 4:
		corners = cal.PitchCornersPx
	case len(cal.PitchCornersNorm) == 4:
		corners = scaleNormPoints(cal.PitchCornersNorm, width, height)
	default:
		return Homography{}, nil, fmt.Errorf("%w: provide calibration.pitch_corners_px or calibration.pitch_corners_norm", ErrInvalidRequest)
	}

	h, err := SolveHomography(corners, dims.Length, dims.Width)
	if err != nil {
		return Homography{}, nil, err
	}

	var stumps []Point2
	switch {
	case len(cal.StumpBasesPx) == 2:
		stumps = cal.StumpBasesPx
	case len(cal.StumpBasesNorm) == 2:
		stumps = scaleNormPoints(cal.StumpBasesNorm, width, height)
	}

	var notes []string
	if stumps != nil {
		refined, ok := RefineWithStumpBases(h, corners, stumps, dims.Length, dims.Width)
		if ok {
			h = refined
			notes = append(notes, "refined homography using both stump bases")
		} else {
			*warnings = append(*warnings, "stump refinement failed; using 4-point homography")
			r.logf("calibration: stump refinement failed, falling back to 4-point solve")
		}
	}
	return h, notes, nil
}

func calibrationModeOrDefault(mode string) string {
	if mode == "" {
		return CalibrationNone
	}
	return mode
}

// newProgressReporter wraps a ProgressFunc with clamping and monotonicity.
func newProgressReporter(fn ProgressFunc) ProgressFunc {
	last := 0
	return func(pct int, stage string) {
		if fn == nil {
			return
		}
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		if pct < last {
			pct = last
		}
		last = pct
		fn(pct, stage)
	}
}
