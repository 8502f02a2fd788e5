package pipeline

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Decision is the LBW ruling.
type Decision string

const (
	DecisionOut         Decision = "out"
	DecisionNotOut      Decision = "not_out"
	DecisionUmpiresCall Decision = "umpires_call"
)

// Fit methods recorded on the assessment so the degraded fallback path is
// distinguishable from the primary weighted fit in logs and tests.
const (
	FitWeightedLinear    = "weighted-polyfit-deg1"
	FitWeightedQuadratic = "weighted-polyfit-deg2"
	FitImpactFallback    = "impact-raw-y"
)

// maxFitTailPoints bounds the post-bounce tail used for extrapolation.
const maxFitTailPoints = 12

// minQuadraticPoints is the usable-point count below which the fit stays
// linear.
const minQuadraticPoints = 5

// fallbackConfidence is the fixed prediction confidence when the fit
// degenerates and the impact point's raw y is used instead.
const fallbackConfidence = 0.3

// Assessment is the terminal LBW ruling for a job; computed once, never
// mutated.
type Assessment struct {
	LikelyOut            bool
	PitchedInLine        bool
	ImpactInLine         bool
	WicketsHitting       bool
	YAtStumpsM           float64
	Decision             Decision
	Reason               string
	PredictionConfidence float64
	PredictionRSquared   float64
	FitMethod            string
}

// AssessLBW fits a weighted curve to the post-bounce ground-plane tail,
// extrapolates the lateral offset at the stump line (x=0), and applies the
// ICC-style geometric rules. confidences, when non-nil, must parallel pts
// and weight the fit; nil weights every point equally.
//
// An empty trajectory, out-of-range indices, or an impact not strictly after
// the bounce are contract violations and fail fast.
func AssessLBW(pts []PlanePoint, bounceIdx, impactIdx int, confidences []float64) (*Assessment, error) {
	n := len(pts)
	if n == 0 {
		return nil, fmt.Errorf("lbw: empty ground-plane trajectory")
	}
	if bounceIdx < 0 || bounceIdx >= n {
		return nil, fmt.Errorf("lbw: bounce index %d out of range [0,%d)", bounceIdx, n)
	}
	if impactIdx < 0 || impactIdx >= n {
		return nil, fmt.Errorf("lbw: impact index %d out of range [0,%d)", impactIdx, n)
	}
	if impactIdx <= bounceIdx {
		return nil, fmt.Errorf("lbw: impact index %d must be after bounce index %d", impactIdx, bounceIdx)
	}
	if confidences != nil && len(confidences) != n {
		return nil, fmt.Errorf("lbw: %d confidences for %d points", len(confidences), n)
	}

	pitchY := pts[bounceIdx].YM
	impactY := pts[impactIdx].YM

	yAtStumps, r2, avgConf, method := fitTail(pts, bounceIdx, impactIdx, confidences)

	var predConf float64
	if method == FitImpactFallback {
		yAtStumps = impactY
		r2 = 0
		predConf = fallbackConfidence
	} else {
		predConf = clamp(avgConf*(0.5+0.5*math.Max(0, r2)), 0, 0.99)
	}

	// Leg side sign is inferred from the impact location, the best available
	// proxy without knowing the batter's stance.
	legSign := 1.0
	if impactY < 0 {
		legSign = -1.0
	}

	a := &Assessment{
		PitchedInLine:        pitchY*legSign <= LineThresholdM,
		ImpactInLine:         math.Abs(impactY) <= LineThresholdM,
		YAtStumpsM:           yAtStumps,
		PredictionConfidence: predConf,
		PredictionRSquared:   r2,
		FitMethod:            method,
	}

	dist := math.Abs(yAtStumps)
	a.WicketsHitting = dist <= LineThresholdM

	switch {
	case !a.PitchedInLine:
		a.Decision = DecisionNotOut
		a.Reason = "pitched outside leg stump"
	case !a.ImpactInLine:
		a.Decision = DecisionNotOut
		a.Reason = "impact outside off stump line"
	case dist <= WicketWidthM/2:
		a.Decision = DecisionOut
		a.Reason = "projected to hit the stumps"
	case dist <= LineThresholdM:
		a.Decision = DecisionUmpiresCall
		a.Reason = "projected clipping the stumps"
	default:
		a.Decision = DecisionNotOut
		a.Reason = "projected to miss the stumps"
	}

	a.LikelyOut = a.PitchedInLine && a.ImpactInLine && a.WicketsHitting && a.Decision == DecisionOut
	return a, nil
}

// fitTail fits y = f(x) over the post-bounce tail by weighted least squares
// and evaluates it at the stump line. It reports the fit R², the mean tail
// confidence, and the method used; FitImpactFallback signals a degenerate
// fit that the caller resolves with the impact point's raw y.
func fitTail(pts []PlanePoint, bounceIdx, impactIdx int, confidences []float64) (yAtStumps, r2, avgConf float64, method string) {
	i0 := bounceIdx + 1
	if lo := impactIdx - (maxFitTailPoints - 1); lo > i0 {
		i0 = lo
	}

	xs := make([]float64, 0, impactIdx-i0+1)
	ys := make([]float64, 0, impactIdx-i0+1)
	ws := make([]float64, 0, impactIdx-i0+1)
	for i := i0; i <= impactIdx; i++ {
		w := 1.0
		if confidences != nil {
			w = math.Max(1e-3, confidences[i])
		}
		if !isFinite(pts[i].XM) || !isFinite(pts[i].YM) || !isFinite(w) {
			continue
		}
		xs = append(xs, pts[i].XM)
		ys = append(ys, pts[i].YM)
		ws = append(ws, w)
	}
	if len(xs) < 2 {
		return 0, 0, 0, FitImpactFallback
	}

	avgConf = stat.Mean(ws, nil)

	// Normalize the fit weights to sum to 1.
	var wsum float64
	for _, w := range ws {
		wsum += w
	}
	norm := make([]float64, len(ws))
	for i, w := range ws {
		norm[i] = w / wsum
	}

	degree := 1
	method = FitWeightedLinear
	if len(xs) >= minQuadraticPoints {
		degree = 2
		method = FitWeightedQuadratic
	}

	coeffs, ok := weightedPolyFit(xs, ys, norm, degree)
	if !ok {
		return 0, 0, 0, FitImpactFallback
	}

	est := make([]float64, len(xs))
	for i, x := range xs {
		est[i] = polyEval(coeffs, x)
	}
	r2 = clamp(stat.RSquaredFrom(est, ys, nil), 0, 1)
	if math.IsNaN(r2) {
		r2 = 0
	}

	return polyEval(coeffs, StumpLineXM), r2, avgConf, method
}

// weightedPolyFit solves the weighted normal equations X'WX b = X'Wy for a
// polynomial of the given degree. A near-singular design matrix reports
// ok=false.
func weightedPolyFit(xs, ys, ws []float64, degree int) (coeffs []float64, ok bool) {
	n := len(xs)
	k := degree + 1

	x := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		v := 1.0
		for j := 0; j < k; j++ {
			x.Set(i, j, v)
			v *= xs[i]
		}
	}

	// M = X' W X, b = X' W y.
	m := mat.NewDense(k, k, nil)
	b := mat.NewVecDense(k, nil)
	for i := 0; i < n; i++ {
		for p := 0; p < k; p++ {
			b.SetVec(p, b.AtVec(p)+ws[i]*x.At(i, p)*ys[i])
			for q := 0; q < k; q++ {
				m.Set(p, q, m.At(p, q)+ws[i]*x.At(i, p)*x.At(i, q))
			}
		}
	}

	if math.Abs(mat.Det(m)) < 1e-12 {
		return nil, false
	}

	var beta mat.VecDense
	if err := beta.SolveVec(m, b); err != nil {
		return nil, false
	}

	coeffs = make([]float64, k)
	for j := 0; j < k; j++ {
		coeffs[j] = beta.AtVec(j)
		if !isFinite(coeffs[j]) {
			return nil, false
		}
	}
	return coeffs, true
}

// polyEval evaluates a polynomial with ascending-power coefficients.
func polyEval(coeffs []float64, x float64) float64 {
	v := 0.0
	for i := len(coeffs) - 1; i >= 0; i-- {
		v = v*x + coeffs[i]
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
