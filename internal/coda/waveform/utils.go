// Package waveform holds envelope helpers shared by the velocity and shape
// stages: pre-event noise estimation and peak location.
package waveform

import (
	"fmt"
	"time"

	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/model"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/timeseries"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/config"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/timeutil"
)

// Options controls noise-window placement.
type Options struct {
	// NoiseWindowOffset is in seconds.
	NoiseWindowOffset float64
	// GroupVelocityDenominator is the km/s divisor placing the end of the
	// origin-anchored window at distance/denominator after origin.
	GroupVelocityDenominator float64
}

// DefaultOptions returns a 20 s offset and a 10 km/s denominator.
func DefaultOptions() Options {
	return Options{NoiseWindowOffset: 20, GroupVelocityDenominator: 10}
}

// OptionsFromConfig reads the window settings from cfg.
func OptionsFromConfig(cfg *config.CalibrationConfig) Options {
	return Options{
		NoiseWindowOffset:        cfg.GetNoiseWindowOffsetSeconds(),
		GroupVelocityDenominator: cfg.GetGroupVelocityDenominator(),
	}
}

// NoiseWindow cuts two candidate noise windows from copies of series: one
// from NoiseWindowOffset after the series start to its end, and one from
// NoiseWindowOffset before origin to distance/GroupVelocityDenominator
// after it. The window with the larger mean is returned, so noise is never
// underestimated. Either cut failing yields timeseries.ErrWindowMisaligned.
func (o Options) NoiseWindow(distance float64, origin time.Time, series *timeseries.TimeSeries) (*timeseries.TimeSeries, error) {
	afterStart := series.Clone()
	if err := afterStart.CutBefore(timeutil.AddSeconds(afterStart.BeginTime(), o.NoiseWindowOffset)); err != nil {
		return nil, fmt.Errorf("noise window after series start: %w", err)
	}

	aroundOrigin := series.Clone()
	noiseStart := timeutil.AddSeconds(origin, -o.NoiseWindowOffset)
	noiseEnd := timeutil.AddSeconds(origin, distance/o.GroupVelocityDenominator)
	if err := aroundOrigin.Cut(noiseStart, noiseEnd); err != nil {
		return nil, fmt.Errorf("noise window around origin: %w", err)
	}

	if aroundOrigin.Mean() > afterStart.Mean() {
		return aroundOrigin, nil
	}
	return afterStart, nil
}

// NoiseWindow applies DefaultOptions.
func NoiseWindow(distance float64, origin time.Time, series *timeseries.TimeSeries) (*timeseries.TimeSeries, error) {
	return DefaultOptions().NoiseWindow(distance, origin, series)
}

// MaxTime locates the peak of series and returns its time in seconds after
// origin together with the peak amplitude.
func MaxTime(series *timeseries.TimeSeries, origin time.Time) (peakTime, amplitude float64, err error) {
	offset, value, err := series.MaxTime()
	if err != nil {
		return 0, 0, err
	}
	peak := timeutil.AddSeconds(series.BeginTime(), offset)
	return timeutil.SecondsBetween(origin, peak), value, nil
}

// IsValidWaveform reports whether w carries the event, stream and station
// references the calibration stages rely on.
func IsValidWaveform(w *model.Waveform) bool {
	return w.IsValid()
}
