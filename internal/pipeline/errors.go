package pipeline

import (
	"errors"
)

// Sentinel errors for the pipeline failure taxonomy. Stage code wraps these
// with fmt.Errorf("...: %w", ...) so callers can classify with errors.Is.
var (
	// ErrInvalidRequest marks malformed input surfaced before heavy
	// computation: bad segment bounds, missing seed, missing calibration
	// corners or dimensions, unsupported mode strings.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrDecodeFailed marks a frame source that could not produce any frame.
	// Per-frame decode hiccups are absorbed as warnings; this error means no
	// frame ever succeeded.
	ErrDecodeFailed = errors.New("video decode failed")

	// ErrCalibrationDegenerate marks a singular or non-finite homography
	// solve. Surfaced distinctly so clients can prompt for re-tapping.
	ErrCalibrationDegenerate = errors.New("calibration degenerate")

	// ErrTrackingFailed marks a tracker that could not bootstrap or produced
	// no points. Fatal for the job.
	ErrTrackingFailed = errors.New("tracking failed")
)

// API error codes reported at the job boundary.
const (
	CodeInvalidRequest        = "INVALID_REQUEST"
	CodeDecodeFailed          = "VIDEO_DECODE_FAILED"
	CodeCalibrationDegenerate = "CALIBRATION_DEGENERATE"
	CodeTrackingFailed        = "TRACKING_FAILED"
	CodeInternal              = "INTERNAL_ERROR"
)

// APIError is the stable error shape surfaced to clients.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MapError converts any pipeline error into a stable API error. Unclassified
// errors become INTERNAL_ERROR with a generic message so internals do not
// leak to clients; the full error is expected to be logged at the boundary.
func MapError(err error) APIError {
	if err == nil {
		return APIError{Code: CodeInternal, Message: "unknown error"}
	}
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return APIError{Code: CodeInvalidRequest, Message: err.Error()}
	case errors.Is(err, ErrDecodeFailed):
		return APIError{Code: CodeDecodeFailed, Message: err.Error()}
	case errors.Is(err, ErrCalibrationDegenerate):
		return APIError{Code: CodeCalibrationDegenerate, Message: err.Error()}
	case errors.Is(err, ErrTrackingFailed):
		return APIError{Code: CodeTrackingFailed, Message: err.Error()}
	default:
		return APIError{Code: CodeInternal, Message: "internal error"}
	}
}
