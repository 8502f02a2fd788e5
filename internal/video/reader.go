package video

import (
	"fmt"
	"math"

	"gocv.io/x/gocv"
)

// ClipReader decodes frames from a clip file through OpenCV. It implements
// FrameSource. A ClipReader is not safe for concurrent use; each job opens
// its own.
type ClipReader struct {
	vc   *gocv.VideoCapture
	meta Meta
}

// OpenClip opens a video file for timestamp-addressed decoding.
func OpenClip(path string) (*ClipReader, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open %s: capture not opened", path)
	}

	fps := vc.Get(gocv.VideoCaptureFPS)
	frameCount := int(vc.Get(gocv.VideoCaptureFrameCount))
	var durationMs int64
	if fps > 0 && frameCount > 0 {
		durationMs = int64(math.Round(float64(frameCount) / fps * 1000))
	}

	return &ClipReader{
		vc:   vc,
		meta: Meta{FPS: fps, FrameCount: frameCount, DurationMs: durationMs},
	}, nil
}

// Meta reports the container's frame rate estimate and duration.
func (r *ClipReader) Meta() Meta {
	return r.meta
}

// FrameAt seeks to the given timestamp and decodes one frame. Seeking by
// position in milliseconds is tried first; some containers mis-handle it, so
// a frame-index seek derived from the FPS estimate is the fallback.
func (r *ClipReader) FrameAt(tMs int64) (Frame, error) {
	mat := gocv.NewMat()
	defer mat.Close()

	r.vc.Set(gocv.VideoCapturePosMsec, float64(tMs))
	if r.vc.Read(&mat) && !mat.Empty() {
		return frameFromMat(mat)
	}

	if r.meta.FPS > 0 {
		idx := math.Round(float64(tMs) * r.meta.FPS / 1000)
		if r.meta.FrameCount > 0 && idx >= float64(r.meta.FrameCount) {
			idx = float64(r.meta.FrameCount - 1)
		}
		r.vc.Set(gocv.VideoCapturePosFrames, idx)
		if r.vc.Read(&mat) && !mat.Empty() {
			return frameFromMat(mat)
		}
	}

	return Frame{}, fmt.Errorf("no frame at %dms", tMs)
}

// Close releases the underlying capture.
func (r *ClipReader) Close() error {
	return r.vc.Close()
}

// frameFromMat copies a BGR mat into an owned Frame.
func frameFromMat(m gocv.Mat) (Frame, error) {
	if m.Type() != gocv.MatTypeCV8UC3 {
		conv := gocv.NewMat()
		defer conv.Close()
		m.ConvertTo(&conv, gocv.MatTypeCV8UC3)
		m = conv
	}
	buf := m.ToBytes()
	pix := make([]byte, len(buf))
	copy(pix, buf)
	return Frame{
		Pix:    pix,
		Width:  m.Cols(),
		Height: m.Rows(),
		Stride: m.Cols() * 3,
	}, nil
}

// matFromFrame packs a Frame into a BGR mat. The caller owns the mat.
func matFromFrame(f Frame) (gocv.Mat, error) {
	if f.Empty() {
		return gocv.NewMat(), fmt.Errorf("empty frame")
	}
	if f.Stride == f.Width*3 {
		return gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Pix)
	}
	packed := make([]byte, f.Width*f.Height*3)
	for y := 0; y < f.Height; y++ {
		copy(packed[y*f.Width*3:(y+1)*f.Width*3], f.Pix[y*f.Stride:y*f.Stride+f.Width*3])
	}
	return gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, packed)
}
