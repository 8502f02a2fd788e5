// Package video supplies decoded raster frames and raw blob detections to
// the analysis pipeline. The FrameSource and BlobExtractor interfaces are
// the only surface the pipeline sees; the OpenCV-backed implementations live
// beside them so tests can substitute pure-Go fakes.
package video

import (
	"image"
)

// Meta describes an opened clip.
type Meta struct {
	FPS        float64
	FrameCount int
	DurationMs int64
}

// Frame is a BGR raster frame. Pix holds rows top-to-bottom, Stride bytes
// apart, 3 bytes per pixel in B,G,R order.
type Frame struct {
	Pix    []byte
	Width  int
	Height int
	Stride int
}

// BGRAt returns the blue, green and red components at (x, y). Out-of-bounds
// coordinates return zeros.
func (f Frame) BGRAt(x, y int) (b, g, r uint8) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return 0, 0, 0
	}
	i := y*f.Stride + x*3
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// Empty reports whether the frame holds no pixels.
func (f Frame) Empty() bool {
	return f.Width <= 0 || f.Height <= 0 || len(f.Pix) == 0
}

// Blob is a candidate object centroid produced by the extractor. Area is the
// contour area in pixels for motion detections and zero for color matches.
type Blob struct {
	X    float64
	Y    float64
	Area float64
}

// FrameSource produces frames at requested timestamps.
//
// FrameAt fails with a decode error when the timestamp cannot be resolved to
// a frame; callers decide whether that is recoverable.
type FrameSource interface {
	Meta() Meta
	FrameAt(tMs int64) (Frame, error)
	Close() error
}

// ColorSignature is a reference BGR color built from a patch of pixels,
// matched with a bounded L1 distance.
type ColorSignature struct {
	B, G, R float64
	// MaxL1 is the inclusive L1 distance bound for a pixel to match.
	MaxL1 float64
}

// L1 returns the L1 color distance between the signature and a pixel.
func (s ColorSignature) L1(b, g, r uint8) float64 {
	d := abs(float64(b)-s.B) + abs(float64(g)-s.G) + abs(float64(r)-s.R)
	return d
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// BlobExtractor produces raw detections from frames. Implementations are
// stateless between calls; any temporal state (previous frame) is passed in
// explicitly.
type BlobExtractor interface {
	// DetectMotion returns moving-blob centroids between two consecutive
	// frames, scored by contour area.
	DetectMotion(prev, curr Frame) []Blob

	// ColorMatch returns the centroid of pixels inside window matching the
	// signature, or no blobs when nothing matches.
	ColorMatch(f Frame, sig ColorSignature, window image.Rectangle) []Blob
}

// SampleSignature builds a ColorSignature from the mean BGR of a square
// patch of half-width halfPx centred on (cx, cy), clipped to the frame.
func SampleSignature(f Frame, cx, cy, halfPx int, maxL1 float64) ColorSignature {
	var sb, sg, sr, n float64
	for y := cy - halfPx; y <= cy+halfPx; y++ {
		for x := cx - halfPx; x <= cx+halfPx; x++ {
			if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
				continue
			}
			b, g, r := f.BGRAt(x, y)
			sb += float64(b)
			sg += float64(g)
			sr += float64(r)
			n++
		}
	}
	if n == 0 {
		return ColorSignature{MaxL1: maxL1}
	}
	return ColorSignature{B: sb / n, G: sg / n, R: sr / n, MaxL1: maxL1}
}
