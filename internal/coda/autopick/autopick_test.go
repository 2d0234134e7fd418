package autopick

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/model"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/picker"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/testutil"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/timeutil"
)

var (
	origin = time.Date(2022, 1, 2, 3, 4, 5, 0, time.UTC)
	band   = model.FrequencyBand{LowFrequency: 1, HighFrequency: 2}
)

// offsetPicker ends every coda a fixed number of seconds after its start.
type offsetPicker struct {
	mu       sync.Mutex
	offset   float64
	requests []picker.Request
}

func (p *offsetPicker) EndTime(r picker.Request) float64 {
	p.mu.Lock()
	p.requests = append(p.requests, r)
	p.mu.Unlock()
	return r.StartTimeEpochSeconds + p.offset
}

func testWaveform(id string, picks ...model.WaveformPick) *model.Waveform {
	seg := make([]float64, 400)
	for i := range seg {
		seg[i] = 3 - 0.005*float64(i)
	}
	return &model.Waveform{
		ID:              id,
		Event:           &model.Event{OriginTime: origin},
		Stream:          &model.Stream{Station: &model.Station{StationName: "STA"}},
		BeginTime:       origin,
		EndTime:         timeutil.AddSeconds(origin, 399),
		LowFrequency:    band.LowFrequency,
		HighFrequency:   band.HighFrequency,
		SampleRate:      1,
		Segment:         seg,
		AssociatedPicks: picks,
	}
}

func testParams() model.ParameterMap {
	return model.NewParameterMap(&model.SharedFrequencyBandParameters{
		Band:      band,
		Velocity0: 3, Velocity2: 1,
		Beta0: -0.01, Beta2: 1,
		Gamma0: 1, Gamma2: 1,
		MinSnr:    1,
		MinLength: 20,
		MaxLength: 300,
	})
}

func newTestPicker(offset float64) (*Picker, *offsetPicker) {
	stub := &offsetPicker{offset: offset}
	p := NewPicker(2)
	p.EndTimes = stub
	return p, stub
}

func TestAutoPickAttachesStartAndEnd(t *testing.T) {
	testutil.QuietLogs(t)
	p, stub := newTestPicker(150)
	w := testWaveform("w")

	n := p.AutoPick(context.Background(), []model.PeakVelocityMeasurement{
		{Waveform: w, Distance: 300, Time: 100, NoiseLevel: 0.2},
	}, testParams())

	require.Equal(t, 1, n)
	f, ok := w.PickByType(model.PickF)
	require.True(t, ok)
	assert.Equal(t, 100.0, f.PickTimeSecFromOrigin)
	ap, ok := w.PickByType(model.PickAP)
	require.True(t, ok)
	assert.InDelta(t, 250.0, ap.PickTimeSecFromOrigin, 1e-6)
	assert.Equal(t, PickName, ap.PickName)

	require.Len(t, stub.requests, 1)
	r := stub.requests[0]
	assert.Len(t, r.Subsection, 300)
	assert.Len(t, r.Synthetic, 300)
	assert.Equal(t, 1.5, r.CenterFreq)
	assert.Equal(t, 0.2, r.NoiseAmp)
	assert.Equal(t, 20.0, r.MinLengthSec)
}

func TestAutoPickStartsAtExistingFPick(t *testing.T) {
	testutil.QuietLogs(t)
	p, _ := newTestPicker(100)
	w := testWaveform("w", model.WaveformPick{PickType: model.PickF, PickTimeSecFromOrigin: 120})

	n := p.AutoPick(context.Background(), []model.PeakVelocityMeasurement{{Waveform: w, Distance: 300, Time: 100}}, testParams())

	require.Equal(t, 1, n)
	f, _ := w.PickByType(model.PickF)
	assert.Equal(t, 120.0, f.PickTimeSecFromOrigin)
	ap, _ := w.PickByType(model.PickAP)
	assert.InDelta(t, 220.0, ap.PickTimeSecFromOrigin, 1e-6)
}

// indexPicker ends every coda at a fixed sample index, reported the way
// picker.ConsensusPicker reports it: start + index*SampleRate.
type indexPicker struct {
	index    float64
	requests []picker.Request
}

func (p *indexPicker) EndTime(r picker.Request) float64 {
	p.requests = append(p.requests, r)
	return r.StartTimeEpochSeconds + p.index*r.SampleRate
}

func TestAutoPickResamplesHighRateEnvelopes(t *testing.T) {
	testutil.QuietLogs(t)
	const rate = 20.0
	w := testWaveform("fast")
	w.Segment = make([]float64, 399*int(rate)+1)
	for i := range w.Segment {
		w.Segment[i] = 3 - 0.005*float64(i)/rate
	}
	w.SampleRate = rate

	stub := &indexPicker{index: 150}
	p := NewPicker(1)
	p.EndTimes = stub

	n := p.AutoPick(context.Background(), []model.PeakVelocityMeasurement{
		{Waveform: w, Distance: 300, Time: 100, NoiseLevel: 0.2},
	}, testParams())

	require.Equal(t, 1, n)
	require.Len(t, stub.requests, 1)
	r := stub.requests[0]
	assert.Equal(t, 1.0, r.SampleRate)
	assert.Len(t, r.Subsection, 300)
	assert.Len(t, r.Synthetic, 300)
	assert.InDelta(t, 3-0.005*100, r.Subsection[0], 1e-9)
	assert.InDelta(t, 3-0.005*250, r.Subsection[150], 1e-9)

	ap, ok := w.PickByType(model.PickAP)
	require.True(t, ok)
	assert.InDelta(t, 250.0, ap.PickTimeSecFromOrigin, 1e-6)
}

func TestAutoPickSkips(t *testing.T) {
	testutil.QuietLogs(t)

	t.Run("analyst pick present", func(t *testing.T) {
		p, stub := newTestPicker(150)
		w := testWaveform("w", model.WaveformPick{PickType: model.PickCS, PickTimeSecFromOrigin: 300})
		n := p.AutoPick(context.Background(), []model.PeakVelocityMeasurement{{Waveform: w, Time: 100}}, testParams())
		assert.Zero(t, n)
		assert.Empty(t, stub.requests)
		_, ok := w.PickByType(model.PickAP)
		assert.False(t, ok)
	})

	t.Run("picker finds nothing", func(t *testing.T) {
		p, _ := newTestPicker(picker.BadPick)
		w := testWaveform("w")
		n := p.AutoPick(context.Background(), []model.PeakVelocityMeasurement{{Waveform: w, Time: 100}}, testParams())
		assert.Zero(t, n)
		assert.Empty(t, w.AssociatedPicks)
	})

	t.Run("band without parameters", func(t *testing.T) {
		p, _ := newTestPicker(150)
		w := testWaveform("w")
		n := p.AutoPick(context.Background(), []model.PeakVelocityMeasurement{{Waveform: w, Time: 100}}, model.ParameterMap{})
		assert.Zero(t, n)
	})
}
