package pipeline

// Wire model shared by the pipeline, the job store, and the HTTP API. Field
// names match the mobile client contract; keep them stable.

// Request is the per-job analysis request.
type Request struct {
	Client      *ClientInfo        `json:"client,omitempty"`
	Video       *VideoInfo         `json:"video,omitempty"`
	Segment     Segment            `json:"segment"`
	Calibration CalibrationRequest `json:"calibration"`
	Tracking    TrackingRequest    `json:"tracking"`
	Overrides   *Overrides         `json:"overrides,omitempty"`
}

// ClientInfo identifies the submitting app; informational only.
type ClientInfo struct {
	Platform   string `json:"platform,omitempty"`
	AppVersion string `json:"app_version,omitempty"`
}

// VideoInfo carries client-side hints about the uploaded clip.
type VideoInfo struct {
	Source      string `json:"source,omitempty"` // "import" or "record"
	RotationDeg int    `json:"rotation_deg,omitempty"`
}

// Segment is the clip window to analyse.
type Segment struct {
	StartMs int64 `json:"start_ms"`
	EndMs   int64 `json:"end_ms"`
}

// PitchDimensions are the real pitch dimensions in meters.
type PitchDimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
}

// Calibration modes.
const (
	CalibrationNone = "none"
	CalibrationTaps = "taps"
)

// CalibrationRequest describes the user-tapped ground-plane correspondences.
// Corner and stump points may be supplied in pixels or normalized [0,1]
// image coordinates; pixel coordinates win when both are present.
type CalibrationRequest struct {
	Mode             string           `json:"mode"`
	PitchCornersPx   []Point2         `json:"pitch_corners_px,omitempty"`
	PitchCornersNorm []Point2         `json:"pitch_corners_norm,omitempty"`
	StumpBasesPx     []Point2         `json:"stump_bases_px,omitempty"`
	StumpBasesNorm   []Point2         `json:"stump_bases_norm,omitempty"`
	PitchDimensionsM *PitchDimensions `json:"pitch_dimensions_m,omitempty"`
}

// TrackingRequest selects the tracking mode and sampling density.
type TrackingRequest struct {
	Mode      string  `json:"mode"`
	SeedPx    *Point2 `json:"seed_px,omitempty"`
	SampleFPS int     `json:"sample_fps,omitempty"`
	MaxFrames int     `json:"max_frames,omitempty"`
}

// Overrides replace the heuristic event estimates with known indices.
type Overrides struct {
	BounceIndex *int `json:"bounce_index,omitempty"`
	ImpactIndex *int `json:"impact_index,omitempty"`
}

// Tracking request defaults and bounds.
const (
	DefaultSampleFPS = 30
	MaxSampleFPS     = 240
	DefaultMaxFrames = 180
	MaxMaxFrames     = 2000
)

// Result is the full analysis payload for a succeeded job.
type Result struct {
	Video       VideoMeta           `json:"video"`
	ImageSize   ImageSize           `json:"image_size"`
	Diagnostics Diagnostics         `json:"diagnostics"`
	Track       TrackPayload        `json:"track"`
	Calibration CalibrationPayload  `json:"calibration"`
	PitchPlane  *PitchPlanePayload  `json:"pitch_plane"`
	Events      EventsPayload       `json:"events"`
	Lbw         *LbwPayload         `json:"lbw"`
}

// VideoMeta reports clip duration and the container's frame-rate estimate.
type VideoMeta struct {
	DurationMs int64   `json:"duration_ms"`
	FPSEst     float64 `json:"fps_est"`
}

// ImageSize is the decoded frame size after rotation.
type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Diagnostics carries non-fatal issues absorbed during the run.
type Diagnostics struct {
	Warnings []string `json:"warnings"`
}

// TrackPayload wraps the pixel track.
type TrackPayload struct {
	Points []TrackPoint `json:"points"`
}

// CalibrationPayload reports the homography and its quality notes.
type CalibrationPayload struct {
	Mode       string             `json:"mode"`
	Homography *HomographyPayload `json:"homography"`
	Quality    *QualityPayload    `json:"quality"`
}

// HomographyPayload is the 3x3 matrix as nested rows.
type HomographyPayload struct {
	Matrix [][]float64 `json:"matrix"`
}

// QualityPayload is a coarse calibration quality indication.
type QualityPayload struct {
	Score float64  `json:"score"`
	Notes []string `json:"notes"`
}

// PitchPlanePayload wraps the ground-plane track.
type PitchPlanePayload struct {
	PointsM []PlanePoint `json:"points_m"`
}

// EventsPayload reports the bounce and impact estimates, post-clamping.
type EventsPayload struct {
	Bounce EventEstimate `json:"bounce"`
	Impact EventEstimate `json:"impact"`
}

// LbwChecks are the three ICC geometric checks.
type LbwChecks struct {
	PitchingInLine bool `json:"pitching_in_line"`
	ImpactInLine   bool `json:"impact_in_line"`
	WicketsHitting bool `json:"wickets_hitting"`
}

// LbwPrediction reports the extrapolated stump-line crossing.
type LbwPrediction struct {
	YAtStumpsM float64 `json:"y_at_stumps_m"`
	Confidence float64 `json:"confidence"`
	RSquared   float64 `json:"r_squared"`
}

// LbwPayload is the wire shape of an Assessment.
type LbwPayload struct {
	LikelyOut  bool          `json:"likely_out"`
	Checks     LbwChecks     `json:"checks"`
	Prediction LbwPrediction `json:"prediction"`
	Decision   Decision      `json:"decision"`
	Reason     string        `json:"reason"`
	FitMethod  string        `json:"fit_method"`
}

// ToPayload converts an Assessment into its wire shape.
func (a *Assessment) ToPayload() *LbwPayload {
	return &LbwPayload{
		LikelyOut: a.LikelyOut,
		Checks: LbwChecks{
			PitchingInLine: a.PitchedInLine,
			ImpactInLine:   a.ImpactInLine,
			WicketsHitting: a.WicketsHitting,
		},
		Prediction: LbwPrediction{
			YAtStumpsM: a.YAtStumpsM,
			Confidence: a.PredictionConfidence,
			RSquared:   a.PredictionRSquared,
		},
		Decision:  a.Decision,
		Reason:    a.Reason,
		FitMethod: a.FitMethod,
	}
}
