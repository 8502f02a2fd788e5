package pipeline

import (
	"errors"
	"fmt"
	"testing"
)

func validRequest() *Request {
	seed := Point2{X: 100, Y: 200}
	return &Request{
		Segment: Segment{StartMs: 0, EndMs: 2000},
		Tracking: TrackingRequest{
			Mode:   string(ModeSeeded),
			SeedPx: &seed,
		},
		Calibration: CalibrationRequest{Mode: CalibrationNone},
	}
}

func TestValidateRequest_OK(t *testing.T) {
	if err := ValidateRequest(validRequest()); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
}

func TestValidateRequest_DefaultsApply(t *testing.T) {
	req := validRequest()
	req.Tracking.Mode = "" // defaults to seeded, so the seed is still required
	if err := ValidateRequest(req); err != nil {
		t.Errorf("blank mode with seed rejected: %v", err)
	}

	req.Tracking.SeedPx = nil
	if err := ValidateRequest(req); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("blank mode without seed: err = %v; want ErrInvalidRequest", err)
	}
}

func TestValidateRequest_Rejections(t *testing.T) {
	neg := -1
	cases := []struct {
		name   string
		mutate func(*Request)
	}{
		{"nil request handled by caller", nil},
		{"negative start", func(r *Request) { r.Segment.StartMs = -5 }},
		{"end before start", func(r *Request) { r.Segment.EndMs = 0 }},
		{"unknown tracking mode", func(r *Request) { r.Tracking.Mode = "psychic" }},
		{"seeded without seed", func(r *Request) { r.Tracking.SeedPx = nil }},
		{"fps above cap", func(r *Request) { r.Tracking.SampleFPS = MaxSampleFPS + 1 }},
		{"max frames above cap", func(r *Request) { r.Tracking.MaxFrames = MaxMaxFrames + 1 }},
		{"unknown calibration mode", func(r *Request) { r.Calibration.Mode = "lidar" }},
		{"taps without dimensions", func(r *Request) {
			r.Calibration.Mode = CalibrationTaps
			r.Calibration.PitchCornersPx = make([]Point2, 4)
		}},
		{"taps with bad dimensions", func(r *Request) {
			r.Calibration.Mode = CalibrationTaps
			r.Calibration.PitchCornersPx = make([]Point2, 4)
			r.Calibration.PitchDimensionsM = &PitchDimensions{Length: 0, Width: 3}
		}},
		{"taps without corners", func(r *Request) {
			r.Calibration.Mode = CalibrationTaps
			r.Calibration.PitchDimensionsM = &PitchDimensions{Length: 20.12, Width: 3.05}
		}},
		{"negative bounce override", func(r *Request) { r.Overrides = &Overrides{BounceIndex: &neg} }},
		{"negative impact override", func(r *Request) { r.Overrides = &Overrides{ImpactIndex: &neg} }},
	}
	for _, c := range cases {
		var req *Request
		if c.mutate != nil {
			req = validRequest()
			c.mutate(req)
		}
		if err := ValidateRequest(req); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("%s: err = %v; want ErrInvalidRequest", c.name, err)
		}
	}
}

func TestValidateRequest_AutoNeedsNoSeed(t *testing.T) {
	req := validRequest()
	req.Tracking.Mode = string(ModeAuto)
	req.Tracking.SeedPx = nil
	if err := ValidateRequest(req); err != nil {
		t.Errorf("auto mode without seed rejected: %v", err)
	}
}

func TestValidateRequest_TapsWithNormalizedCorners(t *testing.T) {
	req := validRequest()
	req.Calibration = CalibrationRequest{
		Mode:             CalibrationTaps,
		PitchCornersNorm: make([]Point2, 4),
		PitchDimensionsM: &PitchDimensions{Length: 20.12, Width: 3.05},
	}
	if err := ValidateRequest(req); err != nil {
		t.Errorf("normalized corners rejected: %v", err)
	}
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{fmt.Errorf("wrap: %w", ErrInvalidRequest), CodeInvalidRequest},
		{fmt.Errorf("wrap: %w", ErrDecodeFailed), CodeDecodeFailed},
		{fmt.Errorf("wrap: %w", ErrCalibrationDegenerate), CodeCalibrationDegenerate},
		{fmt.Errorf("wrap: %w", ErrTrackingFailed), CodeTrackingFailed},
		{errors.New("disk on fire"), CodeInternal},
		{nil, CodeInternal},
	}
	for _, c := range cases {
		got := MapError(c.err)
		if got.Code != c.code {
			t.Errorf("MapError(%v).Code = %q; want %q", c.err, got.Code, c.code)
		}
	}
}

func TestMapError_InternalHidesDetail(t *testing.T) {
	got := MapError(errors.New("sqlite: database is locked"))
	if got.Message != "internal error" {
		t.Errorf("internal message %q leaked the underlying error", got.Message)
	}
}

func TestScaleNormPoints(t *testing.T) {
	out := scaleNormPoints([]Point2{{X: 0.5, Y: 0.25}}, 400, 300)
	if out[0].X != 200 || out[0].Y != 75 {
		t.Errorf("scaled = %+v; want (200, 75)", out[0])
	}
}
