package model

import "time"

// PeakVelocityMeasurement is the apparent group velocity derived from the
// time of maximum envelope amplitude. Time is seconds after origin.
// Amplitude, Snr and NoiseLevel are log10 quantities.
type PeakVelocityMeasurement struct {
	Waveform   *Waveform `json:"-"`
	Velocity   float64   `json:"velocity"`
	Distance   float64   `json:"distance"`
	Time       float64   `json:"time"`
	Amplitude  float64   `json:"amplitude"`
	Snr        float64   `json:"snr"`
	NoiseLevel float64   `json:"noise_level"`
}

// ShapeMeasurement is the decay fitted to one waveform's coda.
type ShapeMeasurement struct {
	Waveform          *Waveform `json:"-"`
	Distance          float64   `json:"distance"`
	V0                float64   `json:"v0"`
	V1                float64   `json:"v1"`
	V2                float64   `json:"v2"`
	MeasuredBeta      float64   `json:"measured_beta"`
	MeasuredGamma     float64   `json:"measured_gamma"`
	MeasuredIntercept float64   `json:"measured_intercept"`
	MeasuredError     float64   `json:"measured_error"`
	MeasuredTime      time.Time `json:"measured_time"`
	TimeDifference    float64   `json:"time_difference"`
}

// SyntheticCoda is a model envelope generated for a waveform's geometry.
type SyntheticCoda struct {
	SourceWaveform *Waveform                      `json:"-"`
	Parameters     *SharedFrequencyBandParameters `json:"-"`
	Segment        []float64                      `json:"segment"`
	SampleRate     float64                        `json:"sample_rate"`
	BeginTime      time.Time                      `json:"begin_time"`
	EndTime        time.Time                      `json:"end_time"`
}

// GroupVelocityByBand groups measurements by their waveform's band.
// Measurements without a waveform are dropped.
func GroupVelocityByBand(ms []PeakVelocityMeasurement) map[FrequencyBand][]PeakVelocityMeasurement {
	out := make(map[FrequencyBand][]PeakVelocityMeasurement)
	for _, m := range ms {
		if m.Waveform == nil {
			continue
		}
		b := m.Waveform.Band()
		out[b] = append(out[b], m)
	}
	return out
}

// GroupShapeByBand groups measurements by their waveform's band.
// Measurements without a waveform are dropped.
func GroupShapeByBand(ms []ShapeMeasurement) map[FrequencyBand][]ShapeMeasurement {
	out := make(map[FrequencyBand][]ShapeMeasurement)
	for _, m := range ms {
		if m.Waveform == nil {
			continue
		}
		b := m.Waveform.Band()
		out[b] = append(out[b], m)
	}
	return out
}
