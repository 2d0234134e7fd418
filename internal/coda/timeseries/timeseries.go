// Package timeseries implements the evenly sampled envelope series the
// calibration stages cut, resample and fit.
package timeseries

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"

	"github.com/LLNL/coda-calibration-tool-sub005/internal/timeutil"
)

var (
	// ErrWindowMisaligned reports a requested window that does not overlap
	// the recorded extent of the series.
	ErrWindowMisaligned = errors.New("window does not align with series")

	// ErrEmptySeries reports an operation on a series with no samples.
	ErrEmptySeries = errors.New("empty time series")
)

// TimeSeries is an evenly sampled series starting at a fixed time.
// Operations mutate the receiver; use Clone to keep the original.
type TimeSeries struct {
	data       []float64
	sampleRate float64
	begin      time.Time
}

// New returns a series over a copy of data.
func New(data []float64, sampleRate float64, begin time.Time) *TimeSeries {
	return &TimeSeries{
		data:       append([]float64(nil), data...),
		sampleRate: sampleRate,
		begin:      begin,
	}
}

// Clone returns an independent copy of ts.
func (ts *TimeSeries) Clone() *TimeSeries {
	return New(ts.data, ts.sampleRate, ts.begin)
}

// Data returns the samples. The slice is owned by the series.
func (ts *TimeSeries) Data() []float64 { return ts.data }

// SampleRate returns samples per second.
func (ts *TimeSeries) SampleRate() float64 { return ts.sampleRate }

// BeginTime returns the time of the first sample.
func (ts *TimeSeries) BeginTime() time.Time { return ts.begin }

// Len returns the number of samples.
func (ts *TimeSeries) Len() int { return len(ts.data) }

// LengthSeconds returns the time between the first and last sample.
func (ts *TimeSeries) LengthSeconds() float64 {
	if len(ts.data) < 2 || ts.sampleRate <= 0 {
		return 0
	}
	return float64(len(ts.data)-1) / ts.sampleRate
}

// EndTime returns the time of the last sample.
func (ts *TimeSeries) EndTime() time.Time {
	return timeutil.AddSeconds(ts.begin, ts.LengthSeconds())
}

// TimeAt returns the time of sample i.
func (ts *TimeSeries) TimeAt(i int) time.Time {
	return timeutil.AddSeconds(ts.begin, float64(i)/ts.sampleRate)
}

// IndexForTime returns the nearest sample index to t, clamped to the series.
func (ts *TimeSeries) IndexForTime(t time.Time) int {
	idx := int(math.Round(timeutil.SecondsBetween(ts.begin, t) * ts.sampleRate))
	if idx < 0 {
		return 0
	}
	if idx > len(ts.data)-1 {
		return len(ts.data) - 1
	}
	return idx
}

// Cut keeps the samples between start and end inclusive. The window is
// clamped to the series; it is an error for it to be empty or to lie
// entirely outside the recorded extent.
func (ts *TimeSeries) Cut(start, end time.Time) error {
	if len(ts.data) == 0 {
		return ErrEmptySeries
	}
	if !start.Before(end) {
		return fmt.Errorf("%w: start %s is not before end %s", ErrWindowMisaligned, start.Format(time.RFC3339Nano), end.Format(time.RFC3339Nano))
	}
	seriesEnd := ts.EndTime()
	if !start.Before(seriesEnd) {
		return fmt.Errorf("%w: start %s is at or after series end %s", ErrWindowMisaligned, start.Format(time.RFC3339Nano), seriesEnd.Format(time.RFC3339Nano))
	}
	if !end.After(ts.begin) {
		return fmt.Errorf("%w: end %s is at or before series begin %s", ErrWindowMisaligned, end.Format(time.RFC3339Nano), ts.begin.Format(time.RFC3339Nano))
	}

	startIdx := ts.IndexForTime(start)
	endIdx := ts.IndexForTime(end)
	if endIdx < startIdx {
		return fmt.Errorf("%w: window shorter than one sample", ErrWindowMisaligned)
	}
	ts.data = append([]float64(nil), ts.data[startIdx:endIdx+1]...)
	ts.begin = ts.TimeAt(startIdx)
	return nil
}

// CutBefore drops the samples before start.
func (ts *TimeSeries) CutBefore(start time.Time) error {
	return ts.Cut(start, ts.EndTime())
}

// CutAfter drops the samples after end.
func (ts *TimeSeries) CutAfter(end time.Time) error {
	return ts.Cut(ts.begin, end)
}

// Mean returns the arithmetic mean, or NaN for an empty series.
func (ts *TimeSeries) Mean() float64 {
	if len(ts.data) == 0 {
		return math.NaN()
	}
	return stat.Mean(ts.data, nil)
}

// MaxTime returns the offset in seconds from BeginTime of the largest
// sample, and its value. The first maximum wins on ties.
func (ts *TimeSeries) MaxTime() (offset, value float64, err error) {
	if len(ts.data) == 0 {
		return 0, 0, ErrEmptySeries
	}
	idx := floats.MaxIdx(ts.data)
	return float64(idx) / ts.sampleRate, ts.data[idx], nil
}

// Interpolate resamples the series to newRate with piecewise-linear
// interpolation, keeping BeginTime.
func (ts *TimeSeries) Interpolate(newRate float64) error {
	if newRate <= 0 {
		return fmt.Errorf("invalid sample rate %g", newRate)
	}
	if len(ts.data) == 0 {
		return ErrEmptySeries
	}
	if newRate == ts.sampleRate {
		return nil
	}
	if len(ts.data) == 1 {
		ts.sampleRate = newRate
		return nil
	}

	xs := make([]float64, len(ts.data))
	for i := range xs {
		xs[i] = float64(i) / ts.sampleRate
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ts.data); err != nil {
		return fmt.Errorf("interpolate: %w", err)
	}

	length := xs[len(xs)-1]
	n := int(math.Floor(length*newRate+1e-9)) + 1
	out := make([]float64, n)
	for i := range out {
		x := float64(i) / newRate
		if x > length {
			x = length
		}
		out[i] = pl.Predict(x)
	}
	ts.data = out
	ts.sampleRate = newRate
	return nil
}
