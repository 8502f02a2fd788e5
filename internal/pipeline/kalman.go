package pipeline

// BallFilter is a constant-velocity Kalman filter over pixel coordinates
// with state [x, y, vx, vy] and a 4x4 row-major covariance. One filter is
// constructed per job and threaded through the per-frame loop by pointer;
// it is never held in process-wide storage.
type BallFilter struct {
	X, Y, VX, VY float64
	P            [16]float64

	cfg FilterConfig
}

// FilterConfig holds the filter noise parameters, in pixel units.
type FilterConfig struct {
	ProcessNoisePos  float64 // position process noise (sigma², px²)
	ProcessNoiseVel  float64 // velocity process noise (sigma², px²/s²)
	MeasurementNoise float64 // measurement noise (sigma², px²)
	InitPosVariance  float64 // initial position variance (px²)
	InitVelVariance  float64 // initial velocity variance (px²/s²)
}

// DefaultFilterConfig returns noise defaults tuned for handheld phone clips.
// The values are heuristic, not statistically derived.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		ProcessNoisePos:  2.0,
		ProcessNoiseVel:  8.0,
		MeasurementNoise: 4.0,
		InitPosVariance:  25.0,
		InitVelVariance:  400.0,
	}
}

// minDeterminant is the smallest innovation-covariance determinant accepted
// for inversion; below it the update is skipped.
const minDeterminant = 1e-9

// NewBallFilter creates a filter at position (x, y) with zero velocity and
// a diagonal initial covariance from cfg.
func NewBallFilter(cfg FilterConfig, x, y float64) *BallFilter {
	f := &BallFilter{X: x, Y: y, cfg: cfg}
	f.P[0*4+0] = cfg.InitPosVariance
	f.P[1*4+1] = cfg.InitPosVariance
	f.P[2*4+2] = cfg.InitVelVariance
	f.P[3*4+3] = cfg.InitVelVariance
	return f
}

// Predict advances the state by dt seconds under the constant velocity model
// and inflates the covariance by the process noise.
func (f *BallFilter) Predict(dt float64) {
	// x' = F x with F = [1 0 dt 0; 0 1 0 dt; 0 0 1 0; 0 0 0 1]
	f.X += f.VX * dt
	f.Y += f.VY * dt

	// P' = F P F^T + Q, computed directly for the sparse F.
	P := f.P
	var FP [16]float64
	for j := 0; j < 4; j++ {
		FP[0*4+j] = P[0*4+j] + dt*P[2*4+j]
		FP[1*4+j] = P[1*4+j] + dt*P[3*4+j]
		FP[2*4+j] = P[2*4+j]
		FP[3*4+j] = P[3*4+j]
	}
	for i := 0; i < 4; i++ {
		f.P[i*4+0] = FP[i*4+0] + dt*FP[i*4+2]
		f.P[i*4+1] = FP[i*4+1] + dt*FP[i*4+3]
		f.P[i*4+2] = FP[i*4+2]
		f.P[i*4+3] = FP[i*4+3]
	}

	f.P[0*4+0] += f.cfg.ProcessNoisePos
	f.P[1*4+1] += f.cfg.ProcessNoisePos
	f.P[2*4+2] += f.cfg.ProcessNoiseVel
	f.P[3*4+3] += f.cfg.ProcessNoiseVel
}

// Update folds in a position measurement (zx, zy). A singular innovation
// covariance leaves the prediction untouched.
func (f *BallFilter) Update(zx, zy float64) {
	yX := zx - f.X
	yY := zy - f.Y

	// S = H P H^T + R with H extracting position only.
	S00 := f.P[0*4+0] + f.cfg.MeasurementNoise
	S01 := f.P[0*4+1]
	S10 := f.P[1*4+0]
	S11 := f.P[1*4+1] + f.cfg.MeasurementNoise

	det := S00*S11 - S01*S10
	if det < minDeterminant {
		return
	}
	invS00 := S11 / det
	invS01 := -S01 / det
	invS10 := -S10 / det
	invS11 := S00 / det

	// K = P H^T S^-1 (4x2).
	var K [8]float64
	for i := 0; i < 4; i++ {
		K[i*2+0] = f.P[i*4+0]*invS00 + f.P[i*4+1]*invS10
		K[i*2+1] = f.P[i*4+0]*invS01 + f.P[i*4+1]*invS11
	}

	f.X += K[0*2+0]*yX + K[0*2+1]*yY
	f.Y += K[1*2+0]*yX + K[1*2+1]*yY
	f.VX += K[2*2+0]*yX + K[2*2+1]*yY
	f.VY += K[3*2+0]*yX + K[3*2+1]*yY

	// P' = (I - K H) P.
	var IKH [16]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			identity := 0.0
			if i == j {
				identity = 1
			}
			var kh float64
			switch j {
			case 0:
				kh = K[i*2+0]
			case 1:
				kh = K[i*2+1]
			}
			IKH[i*4+j] = identity - kh
		}
	}
	var newP [16]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += IKH[i*4+k] * f.P[k*4+j]
			}
			newP[i*4+j] = sum
		}
	}
	f.P = newP
}

// Position returns the current state position.
func (f *BallFilter) Position() (x, y float64) {
	return f.X, f.Y
}
