// Package model defines the data contracts shared by the coda calibration
// stages: frequency bands, per-band shared model parameters, waveform
// metadata, picks, and the measurements produced along the pipeline.
package model

import (
	"fmt"
	"sort"
)

// FrequencyBand is an immutable [low, high] interval in Hz. It is comparable
// and used directly as a map key.
type FrequencyBand struct {
	LowFrequency  float64 `json:"low_frequency"`
	HighFrequency float64 `json:"high_frequency"`
}

// CenterFrequency returns the arithmetic centre of the band.
func (b FrequencyBand) CenterFrequency() float64 {
	return (b.LowFrequency + b.HighFrequency) / 2.0
}

func (b FrequencyBand) String() string {
	return fmt.Sprintf("%g-%gHz", b.LowFrequency, b.HighFrequency)
}

// SharedFrequencyBandParameters holds the model coefficients for one band.
// Velocity, beta and gamma each follow p0 - p1/(p2 + distance).
type SharedFrequencyBandParameters struct {
	Band FrequencyBand `json:"band"`

	Velocity0 float64 `json:"velocity0"`
	Velocity1 float64 `json:"velocity1"`
	Velocity2 float64 `json:"velocity2"`
	Beta0     float64 `json:"beta0"`
	Beta1     float64 `json:"beta1"`
	Beta2     float64 `json:"beta2"`
	Gamma0    float64 `json:"gamma0"`
	Gamma1    float64 `json:"gamma1"`
	Gamma2    float64 `json:"gamma2"`

	MinSnr          float64 `json:"min_snr"`
	CodaStartOffset float64 `json:"coda_start_offset"`
	MinLength       float64 `json:"min_length"`
	MaxLength       float64 `json:"max_length"`
	MeasurementTime float64 `json:"measurement_time"`
}

// Clone returns a copy of p.
func (p *SharedFrequencyBandParameters) Clone() *SharedFrequencyBandParameters {
	c := *p
	return &c
}

// ParameterMap maps each band to its parameters. Fit operations update the
// pointed-to records in place and never add or remove keys.
type ParameterMap map[FrequencyBand]*SharedFrequencyBandParameters

// Bands returns the map's bands sorted by low then high frequency.
func (m ParameterMap) Bands() []FrequencyBand {
	bands := make([]FrequencyBand, 0, len(m))
	for b := range m {
		bands = append(bands, b)
	}
	SortBands(bands)
	return bands
}

// Clone returns a deep copy of the map.
func (m ParameterMap) Clone() ParameterMap {
	out := make(ParameterMap, len(m))
	for b, p := range m {
		if p == nil {
			out[b] = nil
			continue
		}
		out[b] = p.Clone()
	}
	return out
}

// List returns the parameter records in band order, skipping nil entries.
func (m ParameterMap) List() []*SharedFrequencyBandParameters {
	out := make([]*SharedFrequencyBandParameters, 0, len(m))
	for _, b := range m.Bands() {
		if p := m[b]; p != nil {
			out = append(out, p)
		}
	}
	return out
}

// NewParameterMap indexes params by their Band field. A later record for
// the same band replaces an earlier one.
func NewParameterMap(params ...*SharedFrequencyBandParameters) ParameterMap {
	m := make(ParameterMap, len(params))
	for _, p := range params {
		if p != nil {
			m[p.Band] = p
		}
	}
	return m
}

// SortBands orders bands by low then high frequency.
func SortBands(bands []FrequencyBand) {
	sort.Slice(bands, func(i, j int) bool {
		if bands[i].LowFrequency != bands[j].LowFrequency {
			return bands[i].LowFrequency < bands[j].LowFrequency
		}
		return bands[i].HighFrequency < bands[j].HighFrequency
	})
}
