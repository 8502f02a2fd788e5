package pipeline

import (
	"image"
	"math"

	"github.com/pocket-drs/pocketdrs/internal/video"
)

// measurement is a gated per-frame detection fed to the filter.
type measurement struct {
	x, y float64
	// conf is the heuristic detection confidence assigned by the strategy.
	conf float64
}

// detector produces at most one measurement per frame. The two strategies
// are a tagged variant selected once per job by tracking mode; they share no
// state and differ only in how a measurement is produced.
type detector interface {
	// measure inspects the current frame (and, for motion detection, the
	// previous one) near the filter's predicted position.
	measure(prev, curr video.Frame, predX, predY float64) (measurement, bool)
}

// colorSignatureDetector implements seeded tracking: a reference color built
// from a patch around the user's seed on frame 0, matched inside a bounded
// window centred on the predicted position.
type colorSignatureDetector struct {
	ext        video.BlobExtractor
	sig        video.ColorSignature
	windowHalf int
}

func newColorSignatureDetector(ext video.BlobExtractor, first video.Frame, seedX, seedY float64, cfg TrackerConfig) *colorSignatureDetector {
	sig := video.SampleSignature(first, int(math.Round(seedX)), int(math.Round(seedY)), cfg.SignaturePatchHalfPx, cfg.SignatureMaxL1)
	return &colorSignatureDetector{
		ext:        ext,
		sig:        sig,
		windowHalf: cfg.SearchWindowHalfPx,
	}
}

func (d *colorSignatureDetector) measure(_, curr video.Frame, predX, predY float64) (measurement, bool) {
	cx := int(math.Round(predX))
	cy := int(math.Round(predY))
	win := image.Rect(cx-d.windowHalf, cy-d.windowHalf, cx+d.windowHalf+1, cy+d.windowHalf+1)
	blobs := d.ext.ColorMatch(curr, d.sig, win)
	if len(blobs) == 0 {
		return measurement{}, false
	}
	// The extractor returns the matching-pixel centroid; prefer the blob
	// nearest the prediction when it returns several.
	best := blobs[0]
	bestD := sq(best.X-predX) + sq(best.Y-predY)
	for _, b := range blobs[1:] {
		if d2 := sq(b.X-predX) + sq(b.Y-predY); d2 < bestD {
			best, bestD = b, d2
		}
	}
	return measurement{x: best.X, y: best.Y, conf: confSignatureMatch}, true
}

// motionDetector implements auto tracking from frame-differencing blobs,
// gated to a fixed radius around the predicted position. Candidate cost is
// squared distance with a negative area term so larger blobs win ties; the
// -0.15 weight is empirical and preserved for compatibility.
type motionDetector struct {
	ext        video.BlobExtractor
	gateRadius float64
	areaWeight float64
	minArea    float64
	maxArea    float64
}

func newMotionDetector(ext video.BlobExtractor, cfg TrackerConfig) *motionDetector {
	return &motionDetector{
		ext:        ext,
		gateRadius: cfg.SearchRadiusPx,
		areaWeight: cfg.AreaCostWeight,
		minArea:    cfg.MinBlobArea,
		maxArea:    cfg.MaxBlobArea,
	}
}

func (d *motionDetector) measure(prev, curr video.Frame, predX, predY float64) (measurement, bool) {
	blobs := d.ext.DetectMotion(prev, curr)
	gate2 := d.gateRadius * d.gateRadius

	found := false
	var best video.Blob
	bestCost := math.Inf(1)
	for _, b := range blobs {
		if b.Area < d.minArea || b.Area > d.maxArea {
			continue
		}
		dist2 := sq(b.X-predX) + sq(b.Y-predY)
		if dist2 > gate2 {
			continue
		}
		cost := dist2 + d.areaWeight*b.Area
		if cost < bestCost {
			best, bestCost = b, cost
			found = true
		}
	}
	if !found {
		return measurement{}, false
	}
	conf := confMotionBase + confMotionAreaSpan*math.Min(1, best.Area/d.maxArea)
	return measurement{x: best.X, y: best.Y, conf: conf}, true
}

// bootstrap scans the first frame pairs for a plausible moving blob and
// returns it. Used by auto mode to discover the ball.
func (d *motionDetector) bootstrap(prev, curr video.Frame) (video.Blob, bool) {
	var best video.Blob
	found := false
	for _, b := range d.ext.DetectMotion(prev, curr) {
		if b.Area < d.minArea || b.Area > d.maxArea {
			continue
		}
		if !found || b.Area > best.Area {
			best = b
			found = true
		}
	}
	return best, found
}

func sq(v float64) float64 { return v * v }
