package pipeline

// ICC cricket dimensions and physical constants. These are domain constants,
// not tunables; exactly one location governs the physical model.
const (
	// WicketWidthM is the ICC wicket width (9 inches).
	WicketWidthM = 0.2286
	// WicketHeightM is the stump height (28 inches).
	WicketHeightM = 0.71
	// BallRadiusM is the radius of a cricket ball.
	BallRadiusM = 0.036
	// StumpLineXM is the along-pitch coordinate of the striker stumps.
	StumpLineXM = 0.0
	// GravityMps2 is standard gravity.
	GravityMps2 = 9.81

	// DefaultPitchLengthM is crease-to-crease length used when the client
	// does not supply measured dimensions.
	DefaultPitchLengthM = 20.12
	// DefaultPitchWidthM is the full pitch width.
	DefaultPitchWidthM = 3.05
)

// LineThresholdM is the lateral offset beyond which a delivery is outside
// the line of the stumps: wicket half-width plus one ball radius.
const LineThresholdM = WicketWidthM/2 + BallRadiusM
