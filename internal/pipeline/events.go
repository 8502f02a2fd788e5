package pipeline

// Bounce/impact heuristics. In image coordinates Y increases downward, so a
// bounce shows up as the first transition from downward to upward motion.
// The confidence constants (0.6, 0.2, 0.1, 0.5) are empirically chosen;
// preserve them unless the product rules change.

// EstimateBounce scans first-differences of the pixel-y sequence for the
// first positive-to-negative sign change starting at index 2. Sequences with
// fewer than 5 points return the last index at low confidence; with no sign
// change, a plausible early index is returned.
func EstimateBounce(yPx []float64) EventEstimate {
	n := len(yPx)
	if n < 5 {
		i := n - 1
		if i < 0 {
			i = 0
		}
		return EventEstimate{Index: i, Confidence: 0.1}
	}

	dy := make([]float64, n-1)
	for i := 1; i < n; i++ {
		dy[i-1] = yPx[i] - yPx[i-1]
	}
	for i := 2; i < len(dy)-1; i++ {
		if dy[i-1] > 0 && dy[i] < 0 {
			return EventEstimate{Index: i, Confidence: 0.6}
		}
	}

	i := n / 3
	if i < 1 {
		i = 1
	}
	return EventEstimate{Index: i, Confidence: 0.2}
}

// EstimateImpact defaults the impact to the final tracked point.
func EstimateImpact(nPoints int) EventEstimate {
	if nPoints <= 0 {
		return EventEstimate{Index: 0, Confidence: 0}
	}
	return EventEstimate{Index: nPoints - 1, Confidence: 0.5}
}

// OverrideEvent replaces a heuristic estimate with a caller-supplied index.
// Overrides bypass the heuristics entirely, so confidence is fixed at 1.
func OverrideEvent(index int) EventEstimate {
	return EventEstimate{Index: index, Confidence: 1.0}
}
