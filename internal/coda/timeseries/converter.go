package timeseries

import (
	"fmt"

	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/model"
)

// Converter turns a waveform into a time series the calibration stages can
// cut and fit.
type Converter interface {
	Convert(w *model.Waveform) (*TimeSeries, error)
}

// WaveformConverter treats the waveform segment as an envelope that is
// already in log10 units.
type WaveformConverter struct{}

// Convert copies the waveform samples into a new series.
func (WaveformConverter) Convert(w *model.Waveform) (*TimeSeries, error) {
	if w == nil {
		return nil, fmt.Errorf("convert: nil waveform")
	}
	if len(w.Segment) == 0 {
		return nil, fmt.Errorf("convert waveform %s: %w", w.ID, ErrEmptySeries)
	}
	if w.SampleRate <= 0 {
		return nil, fmt.Errorf("convert waveform %s: invalid sample rate %g", w.ID, w.SampleRate)
	}
	return New(w.Segment, w.SampleRate, w.BeginTime), nil
}

// EnvelopeConverter treats the waveform segment as a raw seismogram and
// derives its log10 envelope: demean, taper, bandpass to the waveform's
// band, Hilbert envelope, smooth, log10.
type EnvelopeConverter struct {
	TaperFraction float64
	SmoothSeconds float64
}

// DefaultEnvelopeConverter returns the converter used for raw input.
func DefaultEnvelopeConverter() EnvelopeConverter {
	return EnvelopeConverter{TaperFraction: 0.05, SmoothSeconds: 5}
}

// Convert runs the envelope pipeline over a copy of the waveform samples.
func (c EnvelopeConverter) Convert(w *model.Waveform) (*TimeSeries, error) {
	ts, err := WaveformConverter{}.Convert(w)
	if err != nil {
		return nil, err
	}
	ts.RemoveMean()
	ts.Taper(c.TaperFraction)
	if w.HighFrequency > w.LowFrequency {
		high := min(w.HighFrequency, ts.SampleRate()/2)
		if high > w.LowFrequency {
			if err := ts.Bandpass(w.LowFrequency, high); err != nil {
				return nil, fmt.Errorf("convert waveform %s: %w", w.ID, err)
			}
		}
	}
	if err := ts.Envelope(); err != nil {
		return nil, fmt.Errorf("convert waveform %s: %w", w.ID, err)
	}
	ts.Smooth(int(c.SmoothSeconds * ts.SampleRate()))
	ts.Log10()
	return ts, nil
}
