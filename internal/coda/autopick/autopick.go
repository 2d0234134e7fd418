// Package autopick attaches automatic coda end picks to waveforms that
// carry no analyst end pick.
package autopick

import (
	"context"
	"errors"
	"fmt"

	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/model"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/picker"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/synthetic"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/timeseries"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/monitoring"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/parallel"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/timeutil"
)

// PickName labels the picks this package creates.
const PickName = "autopick"

// pickerSampleRate is the rate, in Hz, envelopes are resampled to before
// they reach the end-time picker.
const pickerSampleRate = 1.0

// ErrAnalystPicked means the waveform already has a CS or UCS pick.
var ErrAnalystPicked = errors.New("waveform has an analyst end pick")

// ErrNoPick means the picker could not find an end after the coda start.
var ErrNoPick = errors.New("no end pick after coda start")

// Picker computes AP picks with an end-time picker.
type Picker struct {
	EndTimes  picker.EndTimePicker
	Converter timeseries.Converter
	Workers   int
}

// NewPicker returns a Picker using the consensus end-time picker on log10
// envelope input.
func NewPicker(workers int) *Picker {
	return &Picker{
		EndTimes:  picker.ConsensusPicker{},
		Converter: timeseries.WaveformConverter{},
		Workers:   workers,
	}
}

type pick struct {
	waveform *model.Waveform
	start    model.WaveformPick
	end      model.WaveformPick
}

// AutoPick computes picks for all measurements in parallel and then
// attaches them: an F pick at the measured peak when the waveform has none,
// and an AP end pick. Waveforms with a CS or UCS pick keep their analyst
// pick. It returns the number of AP picks attached.
func (p *Picker) AutoPick(ctx context.Context, measurements []model.PeakVelocityMeasurement, params model.ParameterMap) int {
	results := parallel.Map(ctx, measurements, p.Workers, func(m model.PeakVelocityMeasurement) (pick, error) {
		return p.pick(m, params)
	})

	attached := 0
	for i, r := range results {
		if r.Err != nil {
			if !errors.Is(r.Err, ErrAnalystPicked) && !errors.Is(r.Err, context.Canceled) && !errors.Is(r.Err, context.DeadlineExceeded) {
				monitoring.Debugf("[AutoPick] no pick: waveform=%s err=%v", waveformID(measurements[i].Waveform), r.Err)
			}
			continue
		}
		w := r.Value.waveform
		if _, ok := w.PickByType(model.PickF); !ok {
			w.SetPick(r.Value.start)
		}
		w.SetPick(r.Value.end)
		attached++
	}
	monitoring.Logf("[AutoPick] attached end picks: count=%d of=%d skipped=%d", attached, len(measurements), len(parallel.Errors(results)))
	return attached
}

// pick cuts the envelope from the coda start and asks the end-time picker
// for the end, comparing against a synthetic coda for the same geometry.
func (p *Picker) pick(m model.PeakVelocityMeasurement, params model.ParameterMap) (pick, error) {
	w := m.Waveform
	if !w.IsValid() {
		return pick{}, fmt.Errorf("waveform %s is missing event or station", waveformID(w))
	}
	if _, ok := w.PickByType(model.PickCS); ok {
		return pick{}, ErrAnalystPicked
	}
	if _, ok := w.PickByType(model.PickUCS); ok {
		return pick{}, ErrAnalystPicked
	}
	bp := params[w.Band()]
	if bp == nil {
		return pick{}, fmt.Errorf("no parameters for band %s", w.Band())
	}

	startSec := m.Time
	if f, ok := w.PickByType(model.PickF); ok {
		startSec = f.PickTimeSecFromOrigin
	}
	origin := w.Event.OriginTime

	series, err := p.Converter.Convert(w)
	if err != nil {
		return pick{}, err
	}
	if err := series.CutBefore(timeutil.AddSeconds(origin, startSec)); err != nil {
		return pick{}, err
	}
	// The picker reports its end as start + index*SampleRate, which is
	// only seconds at 1 Hz.
	if err := series.Interpolate(pickerSampleRate); err != nil {
		return pick{}, err
	}

	synth, err := synthetic.Generator{SampleRate: pickerSampleRate}.Generate(w, bp, m.Distance, series.BeginTime(), series.Len())
	if err != nil {
		return pick{}, err
	}

	startEpoch := timeutil.EpochSeconds(series.BeginTime())
	end := p.EndTimes.EndTime(picker.Request{
		Subsection:            series.Data(),
		Synthetic:             synth.Segment,
		SampleRate:            pickerSampleRate,
		StartTimeEpochSeconds: startEpoch,
		MinLengthSec:          bp.MinLength,
		MaxLengthSec:          bp.MaxLength,
		MinimumSnr:            bp.MinSnr,
		NoiseAmp:              m.NoiseLevel,
		CenterFreq:            bp.Band.CenterFrequency(),
		Distance:              m.Distance,
	})
	if end <= startEpoch {
		return pick{}, ErrNoPick
	}

	return pick{
		waveform: w,
		start:    model.WaveformPick{PickName: PickName, PickType: model.PickF, PickTimeSecFromOrigin: startSec},
		end:      model.WaveformPick{PickName: PickName, PickType: model.PickAP, PickTimeSecFromOrigin: end - timeutil.EpochSeconds(origin)},
	}, nil
}

func waveformID(w *model.Waveform) string {
	if w == nil {
		return "<nil>"
	}
	return w.ID
}
