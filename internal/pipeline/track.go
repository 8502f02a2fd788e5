package pipeline

import (
	"fmt"

	"github.com/pocket-drs/pocketdrs/internal/video"
)

// TrackMode selects the per-frame measurement strategy.
type TrackMode string

const (
	// ModeSeeded tracks from a user-tapped initial ball position using a
	// color signature sampled around the seed.
	ModeSeeded TrackMode = "seeded"
	// ModeAuto discovers the ball from early motion and follows it with
	// gated frame-differencing detections.
	ModeAuto TrackMode = "auto"
)

// ParseTrackMode validates a tracking mode string.
func ParseTrackMode(s string) (TrackMode, error) {
	switch TrackMode(s) {
	case ModeSeeded, ModeAuto:
		return TrackMode(s), nil
	default:
		return "", fmt.Errorf("%w: tracking mode must be %q or %q, got %q", ErrInvalidRequest, ModeSeeded, ModeAuto, s)
	}
}

// TrackerConfig holds the tracker tuning parameters. All distances are in
// pixels. The defaults are empirically chosen; treat changes as behavior
// changes, not refactors.
type TrackerConfig struct {
	SearchRadiusPx       float64 // auto-mode gate radius around the prediction
	SearchWindowHalfPx   int     // seeded-mode color search window half-size
	SignaturePatchHalfPx int     // seed patch half-size for the reference color
	SignatureMaxL1       float64 // L1 color distance bound for a pixel match
	BootstrapFrames      int     // auto-mode frames scanned for initial motion
	AreaCostWeight       float64 // blob-area weight in the auto candidate cost
	MinBlobArea          float64 // plausible ball blob area, lower bound
	MaxBlobArea          float64 // plausible ball blob area, upper bound
	Filter               FilterConfig
}

// DefaultTrackerConfig returns the production tracker tuning.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		SearchRadiusPx:       160.0,
		SearchWindowHalfPx:   48,
		SignaturePatchHalfPx: 4,
		SignatureMaxL1:       90.0,
		BootstrapFrames:      6,
		AreaCostWeight:       -0.15,
		MinBlobArea:          10,
		MaxBlobArea:          2000,
		Filter:               DefaultFilterConfig(),
	}
}

// Heuristic confidence bands. A matched detection scores high, a gap frame
// carried on the prediction scores low. These are heuristics for weighting
// the downstream fit, not probabilities.
const (
	confSignatureMatch = 0.85
	confMotionBase     = 0.75
	confMotionAreaSpan = 0.20
	confSeededGap      = 0.20
	confAutoGap        = 0.25
	confBackfill       = 0.15
	confSeedFrame      = 0.90
)

// minPredictDt floors the per-frame time step at one millisecond.
const minPredictDt = 0.001

// BallTracker converts per-frame raw detections into a smoothed, gap
// tolerant pixel trajectory. Construct one per job.
type BallTracker struct {
	cfg  TrackerConfig
	ext  video.BlobExtractor
	mode TrackMode
	seed *Point2
}

// NewBallTracker validates the mode/seed combination and returns a tracker.
func NewBallTracker(cfg TrackerConfig, ext video.BlobExtractor, mode TrackMode, seed *Point2) (*BallTracker, error) {
	switch mode {
	case ModeSeeded:
		if seed == nil {
			return nil, fmt.Errorf("%w: seed_px is required for seeded tracking", ErrInvalidRequest)
		}
	case ModeAuto:
	default:
		return nil, fmt.Errorf("%w: unsupported tracking mode %q", ErrInvalidRequest, mode)
	}
	return &BallTracker{cfg: cfg, ext: ext, mode: mode, seed: seed}, nil
}

// Track produces exactly one TrackPoint per input frame. Detection gaps
// degrade confidence; they never truncate the output.
//
// A frames/timestamps length mismatch is a contract violation. Auto mode
// fails when fewer than two frames are supplied or no plausible motion is
// found within the bootstrap window.
func (t *BallTracker) Track(frames []video.Frame, timesMs []int64) ([]TrackPoint, error) {
	if len(frames) != len(timesMs) {
		return nil, fmt.Errorf("%w: %d frames but %d timestamps", ErrInvalidRequest, len(frames), len(timesMs))
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no frames to track", ErrTrackingFailed)
	}

	if t.mode == ModeSeeded {
		return t.trackSeeded(frames, timesMs)
	}
	return t.trackAuto(frames, timesMs)
}

func (t *BallTracker) trackSeeded(frames []video.Frame, timesMs []int64) ([]TrackPoint, error) {
	det := newColorSignatureDetector(t.ext, frames[0], t.seed.X, t.seed.Y, t.cfg)
	filter := NewBallFilter(t.cfg.Filter, t.seed.X, t.seed.Y)

	out := make([]TrackPoint, 0, len(frames))
	out = append(out, TrackPoint{TMs: timesMs[0], XPx: filter.X, YPx: filter.Y, Confidence: confSeedFrame})

	for i := 1; i < len(frames); i++ {
		filter.Predict(frameDt(timesMs[i], timesMs[i-1]))
		m, ok := det.measure(frames[i-1], frames[i], filter.X, filter.Y)
		conf := confSeededGap
		if ok {
			filter.Update(m.x, m.y)
			conf = m.conf
		}
		x, y := filter.Position()
		out = append(out, TrackPoint{TMs: timesMs[i], XPx: x, YPx: y, Confidence: conf})
	}
	return out, nil
}

func (t *BallTracker) trackAuto(frames []video.Frame, timesMs []int64) ([]TrackPoint, error) {
	if len(frames) < 2 {
		return nil, fmt.Errorf("%w: auto tracking requires at least 2 frames", ErrTrackingFailed)
	}

	det := newMotionDetector(t.ext, t.cfg)

	// Bootstrap: discover the ball from the first frame pairs.
	initIdx := -1
	var initBlob video.Blob
	limit := t.cfg.BootstrapFrames
	if limit > len(frames)-1 {
		limit = len(frames) - 1
	}
	for i := 1; i <= limit; i++ {
		if b, ok := det.bootstrap(frames[i-1], frames[i]); ok {
			initIdx = i
			initBlob = b
			break
		}
	}
	if initIdx < 0 {
		return nil, fmt.Errorf("%w: no detectable motion in the first %d frames", ErrTrackingFailed, limit)
	}

	filter := NewBallFilter(t.cfg.Filter, initBlob.X, initBlob.Y)

	out := make([]TrackPoint, len(frames))
	// Frames before the bootstrap are backfilled at the discovered position
	// with low confidence, so the output covers every input frame.
	for i := 0; i < initIdx; i++ {
		out[i] = TrackPoint{TMs: timesMs[i], XPx: initBlob.X, YPx: initBlob.Y, Confidence: confBackfill}
	}
	out[initIdx] = TrackPoint{TMs: timesMs[initIdx], XPx: initBlob.X, YPx: initBlob.Y, Confidence: confMotionBase}

	for i := initIdx + 1; i < len(frames); i++ {
		filter.Predict(frameDt(timesMs[i], timesMs[i-1]))
		m, ok := det.measure(frames[i-1], frames[i], filter.X, filter.Y)
		conf := confAutoGap
		if ok {
			filter.Update(m.x, m.y)
			conf = m.conf
		}
		x, y := filter.Position()
		out[i] = TrackPoint{TMs: timesMs[i], XPx: x, YPx: y, Confidence: conf}
	}
	return out, nil
}

// frameDt returns the elapsed seconds between consecutive sample
// timestamps, floored so a duplicate timestamp cannot stall the filter.
func frameDt(tMs, prevMs int64) float64 {
	dt := float64(tMs-prevMs) / 1000.0
	if dt < minPredictDt {
		return minPredictDt
	}
	return dt
}
