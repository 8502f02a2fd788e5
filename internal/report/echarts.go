package report

import (
	"fmt"
	"math"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/pocket-drs/pocketdrs/internal/pipeline"
	"github.com/pocket-drs/pocketdrs/internal/units"
)

// deliverySpeedMps is the mean ground-plane speed over the track: path
// length divided by elapsed time. Zero when the track is too short to tell.
func deliverySpeedMps(points []pipeline.PlanePoint) float64 {
	if len(points) < 2 {
		return 0
	}
	elapsed := float64(points[len(points)-1].TMs-points[0].TMs) / 1000
	if elapsed <= 0 {
		return 0
	}
	var dist float64
	for i := 1; i < len(points); i++ {
		dx := points[i].XM - points[i-1].XM
		dy := points[i].YM - points[i-1].YM
		dist += math.Hypot(dx, dy)
	}
	return dist / elapsed
}

// WriteHTMLReport renders an interactive scatter of the tracked delivery.
// With calibration it charts the ground-plane track; without it, the pixel
// track. Point color encodes time through the delivery.
func WriteHTMLReport(jobID string, res *pipeline.Result, path string) error {
	var (
		data     []opts.ScatterData
		xLabel   string
		yLabel   string
		maxTMs   float64
		subtitle string
	)

	if res.PitchPlane != nil && len(res.PitchPlane.PointsM) > 0 {
		xLabel, yLabel = "x along pitch (m)", "y lateral (m)"
		for _, p := range res.PitchPlane.PointsM {
			data = append(data, opts.ScatterData{Value: []interface{}{p.XM, p.YM, float64(p.TMs)}})
			if float64(p.TMs) > maxTMs {
				maxTMs = float64(p.TMs)
			}
		}
	} else {
		xLabel, yLabel = "x (px)", "y (px)"
		for _, p := range res.Track.Points {
			data = append(data, opts.ScatterData{Value: []interface{}{p.XPx, p.YPx, float64(p.TMs)}})
			if float64(p.TMs) > maxTMs {
				maxTMs = float64(p.TMs)
			}
		}
	}
	if len(data) == 0 {
		return fmt.Errorf("no points to chart")
	}
	if maxTMs == 0 {
		maxTMs = 1
	}

	if res.Lbw != nil {
		subtitle = fmt.Sprintf("decision=%s (%s) y_at_stumps=%.3fm confidence=%.2f",
			res.Lbw.Decision, res.Lbw.Reason,
			res.Lbw.Prediction.YAtStumpsM, res.Lbw.Prediction.Confidence)
	} else {
		subtitle = fmt.Sprintf("job=%s points=%d (no calibration)", jobID, len(data))
	}
	if res.PitchPlane != nil {
		if mps := deliverySpeedMps(res.PitchPlane.PointsM); mps > 0 {
			subtitle += fmt.Sprintf(" speed=%.1f km/h", units.ConvertSpeed(mps, units.KPH))
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Delivery Report", Theme: "dark", Width: "900px", Height: "600px",
		}),
		charts.WithTitleOpts(opts.Title{Title: "Delivery Track", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: xLabel, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: yLabel, NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxTMs),
			Dimension:  "2",
			InRange: &opts.VisualMapInRange{Color: []string{
				"#440154", "#3e4989", "#26828e", "#35b779", "#b5de2b", "#fde725",
			}},
		}),
	)
	scatter.AddSeries("delivery", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create html report: %w", err)
	}
	if err := scatter.Render(f); err != nil {
		f.Close()
		return fmt.Errorf("render chart: %w", err)
	}
	return f.Close()
}
