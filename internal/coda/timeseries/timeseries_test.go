package timeseries

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/model"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/timeutil"
)

var t0 = time.Date(2019, 7, 6, 3, 19, 53, 0, time.UTC)

func ramp(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func at(s float64) time.Time { return timeutil.AddSeconds(t0, s) }

func TestNewCopiesData(t *testing.T) {
	t.Parallel()

	src := []float64{1, 2, 3}
	ts := New(src, 1, t0)
	src[0] = 99
	assert.Equal(t, []float64{1, 2, 3}, ts.Data())
	assert.Equal(t, 3, ts.Len())
	assert.Equal(t, 2.0, ts.LengthSeconds())
	assert.Equal(t, at(2), ts.EndTime())
}

func TestCut(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		start, end float64
		wantData   []float64
		wantBegin  float64
		wantErr    bool
	}{
		{"inside", 2, 5, []float64{2, 3, 4, 5}, 2, false},
		{"clamped both ends", -10, 100, ramp(10), 0, false},
		{"clamped start", -3, 1, []float64{0, 1}, 0, false},
		{"start after end", 5, 2, nil, 0, true},
		{"start equals end", 3, 3, nil, 0, true},
		{"start past series end", 9, 20, nil, 0, true},
		{"end before series begin", -10, 0, nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := New(ramp(10), 1, t0)
			err := ts.Cut(at(tt.start), at(tt.end))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrWindowMisaligned)
				assert.Equal(t, ramp(10), ts.Data(), "failed cut must not modify the series")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantData, ts.Data())
			assert.Equal(t, at(tt.wantBegin), ts.BeginTime())
		})
	}
}

func TestCutBeforeAndAfter(t *testing.T) {
	t.Parallel()

	ts := New(ramp(20), 2, t0) // 0..9.5 s
	require.NoError(t, ts.CutBefore(at(5)))
	assert.Equal(t, 10.0, ts.Data()[0])
	assert.Equal(t, at(5), ts.BeginTime())

	require.NoError(t, ts.CutAfter(at(7)))
	assert.Equal(t, []float64{10, 11, 12, 13, 14}, ts.Data())

	assert.ErrorIs(t, ts.CutBefore(at(30)), ErrWindowMisaligned)
}

func TestCutEmpty(t *testing.T) {
	t.Parallel()

	ts := New(nil, 1, t0)
	assert.ErrorIs(t, ts.Cut(at(0), at(1)), ErrEmptySeries)
	assert.True(t, math.IsNaN(ts.Mean()))
	_, _, err := ts.MaxTime()
	assert.ErrorIs(t, err, ErrEmptySeries)
}

func TestMeanAndMaxTime(t *testing.T) {
	t.Parallel()

	ts := New([]float64{1, 4, 9, 9, 2}, 2, t0)
	assert.Equal(t, 5.0, ts.Mean())

	offset, value, err := ts.MaxTime()
	require.NoError(t, err)
	assert.Equal(t, 1.0, offset, "first maximum at index 2 of a 2 Hz series")
	assert.Equal(t, 9.0, value)
}

func TestInterpolate(t *testing.T) {
	t.Parallel()

	ts := New(ramp(41), 4, t0) // 10 s at 4 Hz, value = 4*t
	require.NoError(t, ts.Interpolate(1))
	require.Equal(t, 11, ts.Len())
	for i, v := range ts.Data() {
		assert.InDelta(t, float64(4*i), v, 1e-9)
	}
	assert.Equal(t, 1.0, ts.SampleRate())
	assert.Equal(t, t0, ts.BeginTime())

	up := New([]float64{0, 2}, 1, t0)
	require.NoError(t, up.Interpolate(4))
	assert.InDeltaSlice(t, []float64{0, 0.5, 1, 1.5, 2}, up.Data(), 1e-9)

	assert.Error(t, ts.Interpolate(0))
}

func TestIndexForTimeClamps(t *testing.T) {
	t.Parallel()

	ts := New(ramp(10), 1, t0)
	assert.Equal(t, 0, ts.IndexForTime(at(-5)))
	assert.Equal(t, 4, ts.IndexForTime(at(4.2)))
	assert.Equal(t, 9, ts.IndexForTime(at(50)))
}

func TestWaveformConverter(t *testing.T) {
	t.Parallel()

	w := &model.Waveform{ID: "w1", Segment: []float64{1, 2}, SampleRate: 1, BeginTime: t0}
	ts, err := WaveformConverter{}.Convert(w)
	require.NoError(t, err)
	ts.Data()[0] = 5
	assert.Equal(t, 1.0, w.Segment[0], "conversion must copy samples")

	_, err = WaveformConverter{}.Convert(&model.Waveform{ID: "empty", SampleRate: 1})
	assert.ErrorIs(t, err, ErrEmptySeries)
	_, err = WaveformConverter{}.Convert(&model.Waveform{ID: "rate", Segment: []float64{1}})
	assert.Error(t, err)
	_, err = WaveformConverter{}.Convert(nil)
	assert.Error(t, err)
}
