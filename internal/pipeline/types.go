// Package pipeline implements the per-clip LBW analysis pipeline: frame
// sampling, pixel-space ball tracking, ground-plane calibration, bounce and
// impact estimation, and the LBW ruling. The package consumes video frames
// and blob detections through the narrow interfaces in internal/video and
// has no dependency on the decoding backend.
package pipeline

// TrackPoint is one smoothed ball position in pixel space, one per sampled
// frame. Points are ordered by TMs ascending.
type TrackPoint struct {
	TMs        int64   `json:"t_ms"`
	XPx        float64 `json:"x_px"`
	YPx        float64 `json:"y_px"`
	Confidence float64 `json:"confidence"`
}

// PlanePoint is a TrackPoint mapped through the pitch homography into
// ground-plane meters. XM runs along the pitch (stumps at x=0), YM is the
// lateral offset from the wicket centre line.
type PlanePoint struct {
	TMs int64   `json:"t_ms"`
	XM  float64 `json:"x_m"`
	YM  float64 `json:"y_m"`
}

// EventEstimate locates a bounce or impact within a track.
// Confidence is heuristic, not probabilistic.
type EventEstimate struct {
	Index      int     `json:"index"`
	Confidence float64 `json:"confidence"`
}

// Point2 is a 2D point in pixel or normalized image coordinates.
type Point2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ClampIndex clamps i into [0, n-1]. A non-positive n clamps to 0.
func ClampIndex(i, n int) int {
	if n <= 0 {
		return 0
	}
	if i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}
