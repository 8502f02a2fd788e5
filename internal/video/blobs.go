package video

import (
	"image"

	"gocv.io/x/gocv"
)

// GoCVExtractor produces blob detections with OpenCV. The zero value is not
// usable; construct with NewGoCVExtractor.
type GoCVExtractor struct {
	// DiffThreshold is the binary threshold applied to the blurred
	// frame difference.
	DiffThreshold float32
	// MinBlobArea and MaxBlobArea bound the contour areas kept.
	MinBlobArea float64
	MaxBlobArea float64
}

// NewGoCVExtractor returns an extractor with the tuning that works for
// phone footage of a cricket ball: a low diff threshold and a ball-sized
// area band.
func NewGoCVExtractor() *GoCVExtractor {
	return &GoCVExtractor{
		DiffThreshold: 25,
		MinBlobArea:   10,
		MaxBlobArea:   2000,
	}
}

// DetectMotion diffs two consecutive frames and returns the centroids of the
// moving regions, scored by contour area.
func (e *GoCVExtractor) DetectMotion(prev, curr Frame) []Blob {
	prevMat, err := matFromFrame(prev)
	if err != nil {
		return nil
	}
	defer prevMat.Close()
	currMat, err := matFromFrame(curr)
	if err != nil {
		return nil
	}
	defer currMat.Close()

	prevGray := gocv.NewMat()
	defer prevGray.Close()
	gocv.CvtColor(prevMat, &prevGray, gocv.ColorBGRToGray)
	currGray := gocv.NewMat()
	defer currGray.Close()
	gocv.CvtColor(currMat, &currGray, gocv.ColorBGRToGray)

	gocv.GaussianBlur(prevGray, &prevGray, image.Pt(5, 5), 0, 0, gocv.BorderDefault)
	gocv.GaussianBlur(currGray, &currGray, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(prevGray, currGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, e.DiffThreshold, 255, gocv.ThresholdBinary)

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(3, 3))
	defer kernel.Close()
	gocv.MorphologyEx(thresh, &thresh, gocv.MorphOpen, kernel)

	contours := gocv.FindContours(thresh, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var blobs []Blob
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		area := gocv.ContourArea(c)
		if area < e.MinBlobArea || area > e.MaxBlobArea {
			continue
		}
		cx, cy, ok := contourCentroid(c)
		if !ok {
			continue
		}
		blobs = append(blobs, Blob{X: cx, Y: cy, Area: area})
	}
	return blobs
}

// contourCentroid averages the contour's points.
func contourCentroid(c gocv.PointVector) (x, y float64, ok bool) {
	n := c.Size()
	if n == 0 {
		return 0, 0, false
	}
	var sx, sy float64
	for i := 0; i < n; i++ {
		p := c.At(i)
		sx += float64(p.X)
		sy += float64(p.Y)
	}
	return sx / float64(n), sy / float64(n), true
}

// ColorMatch scans the window for pixels within the signature's L1 bound and
// returns their centroid. The frame is already decoded, so this is a plain
// pixel scan rather than an OpenCV call.
func (e *GoCVExtractor) ColorMatch(f Frame, sig ColorSignature, window image.Rectangle) []Blob {
	return MatchColorWindow(f, sig, window)
}

// MatchColorWindow is the shared color-match implementation: the centroid of
// all pixels inside window whose L1 distance to the signature is within
// bounds, or no blobs when nothing matches.
func MatchColorWindow(f Frame, sig ColorSignature, window image.Rectangle) []Blob {
	bounds := window.Intersect(image.Rect(0, 0, f.Width, f.Height))
	if bounds.Empty() {
		return nil
	}

	var sx, sy, n float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			b, g, r := f.BGRAt(x, y)
			if sig.L1(b, g, r) <= sig.MaxL1 {
				sx += float64(x)
				sy += float64(y)
				n++
			}
		}
	}
	if n == 0 {
		return nil
	}
	return []Blob{{X: sx / n, Y: sy / n, Area: n}}
}
