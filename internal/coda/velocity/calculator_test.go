package velocity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/geo"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/model"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/config"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/testutil"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/timeutil"
)

var origin = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// peakedWaveform returns a 1 Hz envelope starting 100 s before origin with
// a flat 0.1 background and a single peak of 3 at peakAfterOrigin seconds.
func peakedWaveform(id string, stationLon float64, peakAfterOrigin int) *model.Waveform {
	seg := make([]float64, 400)
	for i := range seg {
		seg[i] = 0.1
	}
	seg[100+peakAfterOrigin] = 3
	return &model.Waveform{
		ID:            id,
		Event:         &model.Event{EventID: "ev1", OriginTime: origin},
		Stream:        &model.Stream{Station: &model.Station{StationName: "STA", Longitude: stationLon}},
		BeginTime:     timeutil.AddSeconds(origin, -100),
		EndTime:       timeutil.AddSeconds(origin, 299),
		LowFrequency:  1,
		HighFrequency: 2,
		SampleRate:    1,
		Segment:       seg,
	}
}

func TestGroupVelocityWindow(t *testing.T) {
	fast, slow := GroupVelocityWindow(300)
	assert.Equal(t, 4.7, fast)
	assert.Equal(t, 2.3, slow)

	fast, slow = GroupVelocityWindow(299.9)
	assert.Equal(t, 3.9, fast)
	assert.Equal(t, 1.9, slow)
}

func TestMeasure(t *testing.T) {
	c := NewCalculator(config.EmptyCalibrationConfig())
	w := peakedWaveform("w1", 3, 100)
	distance := geo.DistanceKm(0, 0, 0, 3)

	m, err := c.Measure(w)
	require.NoError(t, err)

	// The noise window after the series start still contains the peak and
	// so has the larger mean.
	noise := (0.1*379 + 3) / 380
	assert.Same(t, w, m.Waveform)
	assert.InDelta(t, distance, m.Distance, 1e-9)
	assert.InDelta(t, 100.0, m.Time, 1e-9)
	assert.InDelta(t, distance/100, m.Velocity, 1e-9)
	assert.InDelta(t, 3.0, m.Amplitude, 1e-12)
	assert.InDelta(t, noise, m.NoiseLevel, 1e-9)
	assert.InDelta(t, 3-noise, m.Snr, 1e-9)
}

func TestMeasurePeakAtOriginUsesOneSecond(t *testing.T) {
	c := NewCalculator(config.EmptyCalibrationConfig())
	// About 1.1 km away the peak window spans the origin sample and the next.
	w := peakedWaveform("near", 0.01, 0)
	distance := geo.DistanceKm(0, 0, 0, 0.01)

	m, err := c.Measure(w)
	require.NoError(t, err)

	assert.Equal(t, 1.0, m.Time)
	assert.InDelta(t, distance, m.Velocity, 1e-12)
	assert.InDelta(t, 3.0, m.Amplitude, 1e-12)
}

func TestMeasureNoiseWindowBeforeTraceStart(t *testing.T) {
	logs := testutil.CaptureLogs(t)
	c := NewCalculator(config.EmptyCalibrationConfig())
	// The trace starts 50 s after origin, so [origin-20, origin+d/10] ends
	// before the first sample while the peak window is still recorded.
	late := peakedWaveform("late", 3, 100)
	late.BeginTime = timeutil.AddSeconds(origin, 50)
	late.EndTime = timeutil.AddSeconds(origin, 449)

	_, err := c.Measure(late)
	require.Error(t, err)
	assert.ErrorContains(t, err, "noise window around origin")

	var out []model.PeakVelocityMeasurement
	require.NotPanics(t, func() {
		out = c.ComputeMaximumVelocity(context.Background(), []*model.Waveform{late, peakedWaveform("good", 3, 100)})
	})
	require.Len(t, out, 1)
	assert.Equal(t, "good", out[0].Waveform.ID)
	require.Len(t, *logs, 1)
	assert.Contains(t, (*logs)[0], "[Velocity] dropped waveform")
}

func TestMeasureNilWaveform(t *testing.T) {
	c := NewCalculator(config.EmptyCalibrationConfig())

	var err error
	require.NotPanics(t, func() { _, err = c.Measure(nil) })
	assert.ErrorContains(t, err, "<nil>")
}

func TestComputeMaximumVelocity(t *testing.T) {
	logs := testutil.CaptureLogs(t)
	c := NewCalculator(config.EmptyCalibrationConfig())

	good := peakedWaveform("good", 3, 100)
	invalid := peakedWaveform("no-station", 3, 100)
	invalid.Stream = nil
	// Co-located: the peak window collapses to a point.
	colocated := peakedWaveform("colocated", 0, 10)

	out := c.ComputeMaximumVelocity(context.Background(), []*model.Waveform{good, invalid, colocated})

	require.Len(t, out, 1)
	assert.Same(t, good, out[0].Waveform)
	require.Len(t, *logs, 1)
	assert.Contains(t, (*logs)[0], "[Velocity] dropped waveform")
}

func TestComputeMaximumVelocityEmpty(t *testing.T) {
	c := NewCalculator(config.EmptyCalibrationConfig())
	assert.Empty(t, c.ComputeMaximumVelocity(context.Background(), nil))
}
