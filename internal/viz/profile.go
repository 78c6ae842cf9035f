// Package viz renders the filtered elevation profile: an interactive
// ECharts scatter for browsers and a gonum/plot PNG for reports.
package viz

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/riverlab-data/waterline.report/internal/altimetry"
)

// maxChartPoints caps chart payload size; larger datasets are downsampled
// by stride.
const maxChartPoints = 8000

// profileXY extracts (x, y) pairs for charting: x is delta_time when the
// column carries values, the row index otherwise; y is elevation. Rows
// without an elevation are skipped.
func profileXY(d *altimetry.Dataset) ([][2]float64, string) {
	elev := d.Column(altimetry.ColElevation)
	if elev == nil || !elev.Numeric {
		return nil, ""
	}
	dt := d.Column(altimetry.ColDeltaTime)
	xLabel := "point index"
	if dt != nil && dt.Numeric {
		xLabel = "delta_time (s)"
	}

	points := make([][2]float64, 0, len(elev.Floats))
	for i, h := range elev.Floats {
		if math.IsNaN(h) {
			continue
		}
		x := float64(i)
		if dt != nil && dt.Numeric && !math.IsNaN(dt.Floats[i]) {
			x = dt.Floats[i]
		}
		points = append(points, [2]float64{x, h})
	}
	return points, xLabel
}

func downsample(points [][2]float64) [][2]float64 {
	if len(points) <= maxChartPoints {
		return points
	}
	stride := int(math.Ceil(float64(len(points)) / float64(maxChartPoints)))
	out := make([][2]float64, 0, len(points)/stride+1)
	for i := 0; i < len(points); i += stride {
		out = append(out, points[i])
	}
	return out
}

// ProfileHTML writes an interactive scatter of the elevation profile.
func ProfileHTML(w io.Writer, d *altimetry.Dataset, title, subtitle string) error {
	points, xLabel := profileXY(d)
	if len(points) == 0 {
		return fmt.Errorf("viz: no elevation data to chart")
	}
	points = downsample(points)

	data := make([]opts.ScatterData, len(points))
	for i, p := range points {
		data[i] = opts.ScatterData{Value: []interface{}{p[0], p[1]}}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1100px", Height: "550px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: xLabel, NameLocation: "middle", NameGap: 25, Scale: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "elevation (m)", NameLocation: "middle", NameGap: 40, Scale: opts.Bool(true)}),
	)
	scatter.AddSeries("surface", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))

	return scatter.Render(w)
}

// ProfilePNG writes a static scatter of the elevation profile.
func ProfilePNG(w io.Writer, d *altimetry.Dataset, title string) error {
	points, xLabel := profileXY(d)
	if len(points) == 0 {
		return fmt.Errorf("viz: no elevation data to chart")
	}
	points = downsample(points)

	xys := make(plotter.XYs, len(points))
	for i, pt := range points {
		xys[i].X = pt[0]
		xys[i].Y = pt[1]
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = "elevation (m)"

	scatter, err := plotter.NewScatter(xys)
	if err != nil {
		return fmt.Errorf("viz: build scatter: %w", err)
	}
	scatter.Radius = vg.Points(1.5)
	p.Add(scatter, plotter.NewGrid())

	wt, err := p.WriterTo(12*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("viz: render png: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("viz: write png: %w", err)
	}
	return nil
}
