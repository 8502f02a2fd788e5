package pipeline

import "fmt"

// ValidateRequest checks the static request contract: everything that can be
// rejected before opening the video. Duration-dependent segment checks
// happen in Run once the clip metadata is known.
func ValidateRequest(req *Request) error {
	if req == nil {
		return fmt.Errorf("%w: empty request", ErrInvalidRequest)
	}
	if req.Segment.StartMs < 0 {
		return fmt.Errorf("%w: segment.start_ms must be >= 0", ErrInvalidRequest)
	}
	if req.Segment.EndMs <= req.Segment.StartMs {
		return fmt.Errorf("%w: segment.end_ms must be > segment.start_ms", ErrInvalidRequest)
	}

	mode, err := ParseTrackMode(trackingModeOrDefault(req.Tracking.Mode))
	if err != nil {
		return err
	}
	if mode == ModeSeeded && req.Tracking.SeedPx == nil {
		return fmt.Errorf("%w: tracking.seed_px is required when tracking.mode=%q", ErrInvalidRequest, ModeSeeded)
	}
	if req.Tracking.SampleFPS < 0 || req.Tracking.SampleFPS > MaxSampleFPS {
		return fmt.Errorf("%w: tracking.sample_fps must be in [1,%d]", ErrInvalidRequest, MaxSampleFPS)
	}
	if req.Tracking.MaxFrames < 0 || req.Tracking.MaxFrames > MaxMaxFrames {
		return fmt.Errorf("%w: tracking.max_frames must be in [1,%d]", ErrInvalidRequest, MaxMaxFrames)
	}

	switch req.Calibration.Mode {
	case CalibrationNone, "":
	case CalibrationTaps:
		if req.Calibration.PitchDimensionsM == nil {
			return fmt.Errorf("%w: calibration.pitch_dimensions_m is required when mode=%q", ErrInvalidRequest, CalibrationTaps)
		}
		if req.Calibration.PitchDimensionsM.Length <= 0 || req.Calibration.PitchDimensionsM.Width <= 0 {
			return fmt.Errorf("%w: calibration.pitch_dimensions_m must be positive", ErrInvalidRequest)
		}
		if len(req.Calibration.PitchCornersPx) != 4 && len(req.Calibration.PitchCornersNorm) != 4 {
			return fmt.Errorf("%w: provide 4 points in calibration.pitch_corners_px or calibration.pitch_corners_norm", ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("%w: calibration.mode must be %q or %q, got %q", ErrInvalidRequest, CalibrationNone, CalibrationTaps, req.Calibration.Mode)
	}

	if req.Overrides != nil {
		if req.Overrides.BounceIndex != nil && *req.Overrides.BounceIndex < 0 {
			return fmt.Errorf("%w: overrides.bounce_index must be >= 0", ErrInvalidRequest)
		}
		if req.Overrides.ImpactIndex != nil && *req.Overrides.ImpactIndex < 0 {
			return fmt.Errorf("%w: overrides.impact_index must be >= 0", ErrInvalidRequest)
		}
	}
	return nil
}

func trackingModeOrDefault(mode string) string {
	if mode == "" {
		return string(ModeSeeded)
	}
	return mode
}

// scalePoints converts normalized [0,1] image coordinates to pixels. Pixel
// inputs pass through scalePointsPx instead; pixel wins when both exist.
func scaleNormPoints(norm []Point2, width, height int) []Point2 {
	out := make([]Point2, len(norm))
	for i, p := range norm {
		out[i] = Point2{X: p.X * float64(width), Y: p.Y * float64(height)}
	}
	return out
}
