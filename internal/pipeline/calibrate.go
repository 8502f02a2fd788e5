package pipeline

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Homography is a 3x3 row-major projective matrix mapping image pixels to
// pitch ground-plane meters, normalized so the bottom-right entry is 1 when
// non-degenerate. Created once per job and immutable thereafter.
type Homography [9]float64

// homographyEps bounds both the homogeneous weight below which a mapped
// point is dropped and the determinant below which a solve is degenerate.
const homographyEps = 1e-9

// Apply maps a pixel coordinate to ground-plane meters. ok is false when the
// homogeneous weight vanishes; callers drop such points.
func (h Homography) Apply(x, y float64) (xm, ym float64, ok bool) {
	w := h[6]*x + h[7]*y + h[8]
	if math.Abs(w) < homographyEps {
		return 0, 0, false
	}
	return (h[0]*x + h[1]*y + h[2]) / w, (h[3]*x + h[4]*y + h[5]) / w, true
}

// Det returns the determinant of the 3x3 matrix.
func (h Homography) Det() float64 {
	return h[0]*(h[4]*h[8]-h[5]*h[7]) -
		h[1]*(h[3]*h[8]-h[5]*h[6]) +
		h[2]*(h[3]*h[7]-h[4]*h[6])
}

// Rows returns the matrix as nested slices for the result payload.
func (h Homography) Rows() [][]float64 {
	return [][]float64{
		{h[0], h[1], h[2]},
		{h[3], h[4], h[5]},
		{h[6], h[7], h[8]},
	}
}

// correspondence pairs an image point with its ground-plane location.
type correspondence struct {
	imX, imY float64
	wX, wY   float64
}

// pitchWorldCorners returns the ground-plane corner targets in the fixed tap
// order: striker-left, striker-right, bowler-right, bowler-left. The striker
// crease is x=0 and y spans the pitch width symmetrically.
func pitchWorldCorners(pitchLengthM, pitchWidthM float64) [4][2]float64 {
	halfW := pitchWidthM / 2
	return [4][2]float64{
		{0, -halfW},
		{0, halfW},
		{pitchLengthM, halfW},
		{pitchLengthM, -halfW},
	}
}

// solveDLT computes the homography from point correspondences via the direct
// linear transform: the least-squares null vector (smallest right singular
// vector) of the stacked 2n x 9 system, reshaped and normalized by H33.
func solveDLT(corr []correspondence) (Homography, error) {
	if len(corr) < 4 {
		return Homography{}, fmt.Errorf("%w: need at least 4 correspondences, got %d", ErrCalibrationDegenerate, len(corr))
	}

	a := mat.NewDense(2*len(corr), 9, nil)
	for i, c := range corr {
		a.SetRow(2*i, []float64{c.imX, c.imY, 1, 0, 0, 0, -c.wX * c.imX, -c.wX * c.imY, -c.wX})
		a.SetRow(2*i+1, []float64{0, 0, 0, c.imX, c.imY, 1, -c.wY * c.imX, -c.wY * c.imY, -c.wY})
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFullV); !ok {
		return Homography{}, fmt.Errorf("%w: SVD did not converge", ErrCalibrationDegenerate)
	}
	var v mat.Dense
	svd.VTo(&v)

	var h Homography
	for i := 0; i < 9; i++ {
		h[i] = v.At(i, 8)
	}

	for _, e := range h {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			return Homography{}, fmt.Errorf("%w: non-finite homography entry", ErrCalibrationDegenerate)
		}
	}
	if math.Abs(h[8]) < homographyEps {
		return Homography{}, fmt.Errorf("%w: vanishing homogeneous scale", ErrCalibrationDegenerate)
	}
	for i := range h {
		h[i] /= h[8]
	}
	if math.Abs(h.Det()) < homographyEps {
		return Homography{}, fmt.Errorf("%w: singular homography (det=%g)", ErrCalibrationDegenerate, h.Det())
	}
	return h, nil
}

// SolveHomography computes the pitch homography from exactly 4 tapped pitch
// corners in the fixed order striker-left, striker-right, bowler-right,
// bowler-left. A degenerate tap configuration fails with
// ErrCalibrationDegenerate.
func SolveHomography(cornersPx []Point2, pitchLengthM, pitchWidthM float64) (Homography, error) {
	if len(cornersPx) != 4 {
		return Homography{}, fmt.Errorf("%w: expected 4 pitch corners, got %d", ErrCalibrationDegenerate, len(cornersPx))
	}
	world := pitchWorldCorners(pitchLengthM, pitchWidthM)
	corr := make([]correspondence, 4)
	for i := range cornersPx {
		corr[i] = correspondence{
			imX: cornersPx[i].X, imY: cornersPx[i].Y,
			wX: world[i][0], wY: world[i][1],
		}
	}
	return solveDLT(corr)
}

// RefineWithStumpBases re-solves the homography using the 4 corners plus two
// tapped stump-base points mapped to (0,0) and (pitchLength,0). The stump
// points are ordered by their projection through the base homography, so
// either tap order yields the same result.
//
// Refinement failure is not fatal: the base homography is returned with
// refined=false, and the caller records the degradation as a quality note.
func RefineWithStumpBases(base Homography, cornersPx []Point2, stumpBasesPx []Point2, pitchLengthM, pitchWidthM float64) (Homography, bool) {
	if len(stumpBasesPx) != 2 {
		return base, false
	}

	x0, _, ok0 := base.Apply(stumpBasesPx[0].X, stumpBasesPx[0].Y)
	x1, _, ok1 := base.Apply(stumpBasesPx[1].X, stumpBasesPx[1].Y)
	striker, bowler := stumpBasesPx[0], stumpBasesPx[1]
	if ok0 && ok1 && x0 > x1 {
		striker, bowler = stumpBasesPx[1], stumpBasesPx[0]
	}

	world := pitchWorldCorners(pitchLengthM, pitchWidthM)
	corr := make([]correspondence, 0, 6)
	for i := range cornersPx {
		corr = append(corr, correspondence{
			imX: cornersPx[i].X, imY: cornersPx[i].Y,
			wX: world[i][0], wY: world[i][1],
		})
	}
	corr = append(corr,
		correspondence{imX: striker.X, imY: striker.Y, wX: 0, wY: 0},
		correspondence{imX: bowler.X, imY: bowler.Y, wX: pitchLengthM, wY: 0},
	)

	refined, err := solveDLT(corr)
	if err != nil {
		return base, false
	}
	return refined, true
}
