package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/calibration"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/diagplot"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/fit"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/model"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/synthetic"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/timeseries"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/monitoring"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/timeutil"
)

// writePlots saves one curve plot per fitted band and kind, and the first
// shape-measured envelope of each band against its fitted synthetic.
func writePlots(dir string, res *calibration.Result, converter timeseries.Converter) error {
	for _, bf := range res.Fits {
		pairs := pairsFor(res, bf.Kind, bf.Band)
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.png", fileBand(bf.Band), bf.Kind))
		title := fmt.Sprintf("%s %s (%s, n=%d)", bf.Band, bf.Kind, bf.Method, bf.Samples)
		if err := diagplot.PlotCurve(path, title, bf.Kind, pairs, bf.Curve); err != nil {
			return err
		}
	}

	seen := make(map[model.FrequencyBand]bool)
	for _, m := range res.Shape {
		band := m.Waveform.Band()
		if seen[band] {
			continue
		}
		seen[band] = true
		p := res.Parameters[band]
		if p == nil {
			continue
		}
		series, err := converter.Convert(m.Waveform)
		if err != nil {
			monitoring.Logf("[codacal] skipping envelope plot: waveform=%s err=%v", m.Waveform.ID, err)
			continue
		}
		n := int((timeutil.SecondsBetween(m.MeasuredTime, series.EndTime())) * series.SampleRate())
		if n <= 0 {
			continue
		}
		synth, err := synthetic.Generator{SampleRate: series.SampleRate()}.Generate(m.Waveform, p, m.Distance, m.MeasuredTime, n)
		if err != nil {
			return err
		}
		// lift the synthetic onto the measured intercept
		for i := range synth.Segment {
			synth.Segment[i] += m.MeasuredIntercept - 1
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_envelope.png", fileBand(band)))
		title := fmt.Sprintf("%s %s %.0f km", band, m.Waveform.Stream.Station.StationName, m.Distance)
		if err := diagplot.PlotEnvelope(path, title, series, synth); err != nil {
			return err
		}
	}
	return nil
}

func pairsFor(res *calibration.Result, kind fit.Kind, band model.FrequencyBand) []fit.Pair {
	var pairs []fit.Pair
	switch kind {
	case fit.KindVelocity:
		for _, m := range res.Velocity {
			if m.Waveform.Band() == band {
				pairs = append(pairs, fit.Pair{Value: m.Velocity, Distance: m.Distance})
			}
		}
	default:
		for _, m := range res.Shape {
			if m.Waveform.Band() != band {
				continue
			}
			v := m.MeasuredGamma
			if kind == fit.KindBeta {
				v = m.MeasuredBeta
			}
			pairs = append(pairs, fit.Pair{Value: v, Distance: m.Distance})
		}
	}
	return pairs
}

func fileBand(b model.FrequencyBand) string {
	return strings.NewReplacer(".", "p", "-", "_").Replace(fmt.Sprintf("%g-%g", b.LowFrequency, b.HighFrequency))
}
