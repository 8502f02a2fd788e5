package report

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/pocket-drs/pocketdrs/internal/pipeline"
)

var (
	trackColor  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	bounceColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	impactColor = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	stumpColor  = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

// TrackPlotPNG renders the pixel-space ball track. The Y axis is inverted so
// the plot matches image orientation.
func TrackPlotPNG(res *pipeline.Result, path string) error {
	points := res.Track.Points
	if len(points) == 0 {
		return fmt.Errorf("empty track")
	}

	p := plot.New()
	p.Title.Text = "Ball Track (pixels)"
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px)"
	p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}

	pts := make(plotter.XYs, len(points))
	for i, tp := range points {
		pts[i] = plotter.XY{X: tp.XPx, Y: tp.YPx}
	}

	line, scatter, err := plotter.NewLinePoints(pts)
	if err != nil {
		return err
	}
	line.Color = trackColor
	line.Width = vg.Points(1)
	scatter.Color = trackColor
	p.Add(line, scatter)
	p.Legend.Add("track", line)

	addEventMarker(p, points, res.Events.Bounce, "bounce", bounceColor)
	addEventMarker(p, points, res.Events.Impact, "impact", impactColor)

	p.Legend.Top = true
	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save track plot: %w", err)
	}
	return nil
}

func addEventMarker(p *plot.Plot, points []pipeline.TrackPoint, ev pipeline.EventEstimate, label string, c color.Color) {
	if ev.Index < 0 || ev.Index >= len(points) {
		return
	}
	tp := points[ev.Index]
	s, err := plotter.NewScatter(plotter.XYs{{X: tp.XPx, Y: tp.YPx}})
	if err != nil {
		return
	}
	s.Color = c
	s.Radius = vg.Points(4)
	p.Add(s)
	p.Legend.Add(label, s)
}

// PlanePlotPNG renders the ground-plane track with the stump line and the
// in-line band. X runs along the pitch toward the stumps at x=0.
func PlanePlotPNG(res *pipeline.Result, path string) error {
	if res.PitchPlane == nil || len(res.PitchPlane.PointsM) == 0 {
		return fmt.Errorf("no plane track")
	}
	points := res.PitchPlane.PointsM

	p := plot.New()
	p.Title.Text = "Ground Plane Track (meters)"
	p.X.Label.Text = "x along pitch (m)"
	p.Y.Label.Text = "y lateral (m)"

	pts := make(plotter.XYs, len(points))
	minX, maxX := points[0].XM, points[0].XM
	for i, pp := range points {
		pts[i] = plotter.XY{X: pp.XM, Y: pp.YM}
		if pp.XM < minX {
			minX = pp.XM
		}
		if pp.XM > maxX {
			maxX = pp.XM
		}
	}
	// Keep the stump line in frame even when the track ends short of it.
	if minX > pipeline.StumpLineXM {
		minX = pipeline.StumpLineXM
	}

	line, scatter, err := plotter.NewLinePoints(pts)
	if err != nil {
		return err
	}
	line.Color = trackColor
	line.Width = vg.Points(1)
	scatter.Color = trackColor
	p.Add(line, scatter)
	p.Legend.Add("track", line)

	for _, band := range []struct {
		y     float64
		label string
	}{
		{pipeline.LineThresholdM, "line threshold"},
		{-pipeline.LineThresholdM, ""},
	} {
		b, err := plotter.NewLine(plotter.XYs{
			{X: minX, Y: band.y}, {X: maxX, Y: band.y},
		})
		if err != nil {
			return err
		}
		b.Color = stumpColor
		b.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(b)
		if band.label != "" {
			p.Legend.Add(band.label, b)
		}
	}

	if res.Lbw != nil {
		hit, err := plotter.NewScatter(plotter.XYs{
			{X: pipeline.StumpLineXM, Y: res.Lbw.Prediction.YAtStumpsM},
		})
		if err == nil {
			hit.Color = impactColor
			hit.Radius = vg.Points(4)
			p.Add(hit)
			p.Legend.Add("projected crossing", hit)
		}
	}

	p.Legend.Top = true
	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save plane plot: %w", err)
	}
	return nil
}
