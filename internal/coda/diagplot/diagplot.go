// Package diagplot renders PNG diagnostics for a calibration run: measured
// values against fitted distance curves, and envelopes against their
// synthetic coda.
package diagplot

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/fit"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/model"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/synthetic"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/timeseries"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/timeutil"
)

var (
	measuredColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	fittedColor   = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// curveSamples is the number of points drawn along a fitted curve.
const curveSamples = 200

// PlotCurve draws pairs as points with curve evaluated over their distance
// range, and saves the figure to path.
func PlotCurve(path, title string, kind fit.Kind, pairs []fit.Pair, curve fit.Curve) error {
	if len(pairs) == 0 {
		return fmt.Errorf("plot %s: no measurements", title)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Distance (km)"
	p.Y.Label.Text = yLabel(kind)

	pts := make(plotter.XYs, 0, len(pairs))
	minD, maxD := math.Inf(1), math.Inf(-1)
	for _, pr := range pairs {
		pts = append(pts, plotter.XY{X: pr.Distance, Y: pr.Value})
		minD = math.Min(minD, pr.Distance)
		maxD = math.Max(maxD, pr.Distance)
	}
	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	scatter.Color = measuredColor
	p.Add(scatter)
	p.Legend.Add("measured", scatter)

	if !curve.Failed() {
		line := make(plotter.XYs, curveSamples)
		step := (maxD - minD) / float64(curveSamples-1)
		for i := range line {
			d := minD + float64(i)*step
			line[i] = plotter.XY{X: d, Y: curve.At(d)}
		}
		fitted, err := plotter.NewLine(line)
		if err != nil {
			return err
		}
		fitted.Color = fittedColor
		fitted.Width = vg.Points(1)
		p.Add(fitted)
		p.Legend.Add(fmt.Sprintf("fit %.4g - %.4g/(%.4g + d)", curve.P0, curve.P1, curve.P2), fitted)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	return save(p, path, "curve")
}

// PlotEnvelope draws an observed log10 envelope and, when synth is not nil,
// the synthetic coda aligned on its begin time. The x axis is seconds after
// the observed series begins.
func PlotEnvelope(path, title string, series *timeseries.TimeSeries, synth *model.SyntheticCoda) error {
	if series == nil || series.Len() == 0 {
		return fmt.Errorf("plot %s: empty envelope", title)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "log10 amplitude"

	begin := series.BeginTime()
	obs := make(plotter.XYs, series.Len())
	for i, v := range series.Data() {
		obs[i] = plotter.XY{X: float64(i) / series.SampleRate(), Y: v}
	}
	obsLine, err := plotter.NewLine(obs)
	if err != nil {
		return err
	}
	obsLine.Color = measuredColor
	obsLine.Width = vg.Points(1)
	p.Add(obsLine)
	p.Legend.Add("observed", obsLine)

	if synth != nil && len(synth.Segment) > 0 {
		offset := timeutil.SecondsBetween(begin, synth.BeginTime)
		pts := make(plotter.XYs, 0, len(synth.Segment))
		for i, v := range synth.Segment {
			if v <= synthetic.SingularityValue {
				continue
			}
			pts = append(pts, plotter.XY{X: offset + float64(i)/synth.SampleRate, Y: v})
		}
		if len(pts) > 0 {
			synthLine, err := plotter.NewLine(pts)
			if err != nil {
				return err
			}
			synthLine.Color = fittedColor
			synthLine.Width = vg.Points(1)
			synthLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
			p.Add(synthLine)
			p.Legend.Add("synthetic", synthLine)
		}
	}

	p.Legend.Top = true
	p.Legend.Left = false
	return save(p, path, "envelope")
}

func save(p *plot.Plot, path, what string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create plot dir: %w", err)
	}
	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s plot: %w", what, err)
	}
	return nil
}

func yLabel(kind fit.Kind) string {
	switch kind {
	case fit.KindVelocity:
		return "Group velocity (km/s)"
	case fit.KindBeta:
		return "Beta"
	case fit.KindGamma:
		return "Gamma"
	default:
		return "Value"
	}
}
