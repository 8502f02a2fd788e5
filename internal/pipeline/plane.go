package pipeline

import "math"

// MapToPlane applies the homography to every tracked pixel point. Points
// whose homogeneous weight vanishes or that map to a non-finite location are
// dropped, not substituted, so the plane sequence may be shorter than the
// pixel track. The returned confidences parallel the returned points.
func MapToPlane(track []TrackPoint, h Homography) (points []PlanePoint, confidences []float64) {
	points = make([]PlanePoint, 0, len(track))
	confidences = make([]float64, 0, len(track))
	for _, p := range track {
		xm, ym, ok := h.Apply(p.XPx, p.YPx)
		if !ok || !isFinite(xm) || !isFinite(ym) {
			continue
		}
		points = append(points, PlanePoint{TMs: p.TMs, XM: xm, YM: ym})
		confidences = append(confidences, p.Confidence)
	}
	return points, confidences
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
