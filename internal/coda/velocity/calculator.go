// Package velocity measures apparent peak group velocities from coda
// envelopes.
package velocity

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/geo"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/model"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/timeseries"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/waveform"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/config"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/monitoring"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/parallel"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/timeutil"
)

// farDistanceKm switches to the regional group-velocity window.
const farDistanceKm = 300.0

// Calculator computes PeakVelocityMeasurements.
type Calculator struct {
	Converter timeseries.Converter
	Window    waveform.Options
	Workers   int
}

// NewCalculator builds a Calculator for log10 envelope input.
func NewCalculator(cfg *config.CalibrationConfig) *Calculator {
	return &Calculator{
		Converter: timeseries.WaveformConverter{},
		Window:    waveform.OptionsFromConfig(cfg),
		Workers:   cfg.GetWorkers(),
	}
}

// GroupVelocityWindow returns the fast and slow group velocities in km/s
// that bound the search for the envelope peak at distance.
func GroupVelocityWindow(distance float64) (fast, slow float64) {
	if distance >= farDistanceKm {
		return 4.7, 2.3
	}
	return 3.9, 1.9
}

// ComputeMaximumVelocity measures every valid waveform in parallel.
// Waveforms that cannot be measured are logged and left out; the result
// keeps input order.
func (c *Calculator) ComputeMaximumVelocity(ctx context.Context, waveforms []*model.Waveform) []model.PeakVelocityMeasurement {
	valid := make([]*model.Waveform, 0, len(waveforms))
	for _, w := range waveforms {
		if waveform.IsValidWaveform(w) {
			valid = append(valid, w)
		}
	}

	results := parallel.Map(ctx, valid, c.Workers, c.Measure)
	for i, r := range results {
		if r.Err != nil && !errors.Is(r.Err, context.Canceled) && !errors.Is(r.Err, context.DeadlineExceeded) {
			monitoring.Logf("[Velocity] dropped waveform: id=%s err=%v", valid[i].ID, r.Err)
		}
	}
	return parallel.Values(results)
}

// Measure locates the envelope peak within the group-velocity window and
// derives velocity, amplitude and SNR against the pre-event noise.
func (c *Calculator) Measure(w *model.Waveform) (model.PeakVelocityMeasurement, error) {
	if !waveform.IsValidWaveform(w) {
		return model.PeakVelocityMeasurement{}, fmt.Errorf("waveform %s is missing event or station", waveformID(w))
	}
	distance := geo.DistanceKm(w.Event.Latitude, w.Event.Longitude, w.Stream.Station.Latitude, w.Stream.Station.Longitude)
	origin := w.Event.OriginTime

	series, err := c.Converter.Convert(w)
	if err != nil {
		return model.PeakVelocityMeasurement{}, err
	}

	noiseWindow, err := c.Window.NoiseWindow(distance, origin, series)
	if err != nil {
		return model.PeakVelocityMeasurement{}, err
	}
	noise := math.Abs(noiseWindow.Mean())

	fast, slow := GroupVelocityWindow(distance)
	if err := series.Cut(timeutil.AddSeconds(origin, distance/fast), timeutil.AddSeconds(origin, distance/slow)); err != nil {
		return model.PeakVelocityMeasurement{}, fmt.Errorf("peak window: %w", err)
	}

	peakTime, amplitude, err := waveform.MaxTime(series, origin)
	if err != nil {
		return model.PeakVelocityMeasurement{}, err
	}
	if peakTime == 0 {
		peakTime = 1
	}

	return model.PeakVelocityMeasurement{
		Waveform:   w,
		Velocity:   distance / peakTime,
		Distance:   distance,
		Time:       peakTime,
		Amplitude:  amplitude,
		Snr:        amplitude - noise,
		NoiseLevel: noise,
	}, nil
}

func waveformID(w *model.Waveform) string {
	if w == nil {
		return "<nil>"
	}
	return w.ID
}
