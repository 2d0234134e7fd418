// Package scenario builds synthetic calibration datasets from known band
// parameters, so the pipeline can be run and checked without recorded data.
package scenario

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/geo"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/model"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/synthetic"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/timeutil"
)

// Config controls scenario generation.
type Config struct {
	Seed     uint64
	Events   int
	Stations int
	Bands    []model.FrequencyBand

	// SampleRate of envelope waveforms in Hz. Raw seismograms use RawSampleRate.
	SampleRate    float64
	RawSampleRate float64
	// NoiseLevel is the log10 noise floor.
	NoiseLevel float64
	// Jitter is the half-width of uniform log10 noise added to each sample.
	Jitter float64
	// AnalystPicks attaches a CS end pick where the coda meets the noise.
	AnalystPicks bool
	// Raw emits band-limited seismograms instead of log10 envelopes.
	Raw bool

	// Origin is the first event's origin time.
	Origin time.Time
}

// DefaultConfig returns a small two-band scenario with analyst picks.
func DefaultConfig() Config {
	return Config{
		Seed:     1,
		Events:   4,
		Stations: 6,
		Bands: []model.FrequencyBand{
			{LowFrequency: 1, HighFrequency: 2},
			{LowFrequency: 2, HighFrequency: 4},
		},
		SampleRate:    1,
		RawSampleRate: 20,
		NoiseLevel:    -1,
		Jitter:        0.01,
		AnalystPicks:  true,
		Origin:        time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Scenario is a generated dataset and the parameters that produced it.
type Scenario struct {
	Truth     model.ParameterMap
	Events    []*model.Event
	Stations  []*model.Station
	Waveforms []*model.Waveform
}

const (
	preEventSeconds = 100.0
	codaPadSeconds  = 400.0
	minDistanceKm   = 20.0
)

// TruthParameters returns the reference curves for bands. Gamma decreases
// slightly with band index so each band is distinguishable.
func TruthParameters(bands []model.FrequencyBand) model.ParameterMap {
	params := make(model.ParameterMap, len(bands))
	for i, b := range bands {
		params[b] = &model.SharedFrequencyBandParameters{
			Band:      b,
			Velocity0: 3.6, Velocity1: 30, Velocity2: 20,
			Beta0: -0.002, Beta1: 0.1, Beta2: 50.0001,
			Gamma0: 1.0 - 0.1*float64(i), Gamma1: -20, Gamma2: 50,
			MinSnr:    1,
			MinLength: 20,
			MaxLength: 300,
		}
	}
	return params
}

// InitialParameters copies truth with the fitted curves cleared.
func InitialParameters(truth model.ParameterMap) model.ParameterMap {
	out := make(model.ParameterMap, len(truth))
	for b, p := range truth {
		out[b] = &model.SharedFrequencyBandParameters{
			Band:            b,
			MinSnr:          p.MinSnr,
			CodaStartOffset: p.CodaStartOffset,
			MinLength:       p.MinLength,
			MaxLength:       p.MaxLength,
			MeasurementTime: p.MeasurementTime,
		}
	}
	return out
}

// Generate builds events, stations and one waveform per event, station and
// band. The same Config always yields the same scenario.
func Generate(cfg Config) (*Scenario, error) {
	if cfg.Events <= 0 || cfg.Stations <= 0 {
		return nil, fmt.Errorf("scenario needs at least one event and station, got %d and %d", cfg.Events, cfg.Stations)
	}
	if len(cfg.Bands) == 0 {
		return nil, fmt.Errorf("scenario needs at least one band")
	}
	rate := cfg.SampleRate
	if cfg.Raw {
		rate = cfg.RawSampleRate
	}
	if rate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %g", rate)
	}

	var seed [32]byte
	binary.LittleEndian.PutUint64(seed[:], cfg.Seed)
	src := rand.NewChaCha8(seed)
	rng := rand.New(src)

	sc := &Scenario{Truth: TruthParameters(cfg.Bands)}
	for i := 0; i < cfg.Stations; i++ {
		sc.Stations = append(sc.Stations, &model.Station{
			StationName: fmt.Sprintf("S%02d", i),
			NetworkName: "SY",
			Latitude:    30 + rng.Float64()*10,
			Longitude:   -120 + rng.Float64()*10,
		})
	}
	for i := 0; i < cfg.Events; i++ {
		sc.Events = append(sc.Events, &model.Event{
			EventID:    fmt.Sprintf("E%03d", i),
			Latitude:   30 + rng.Float64()*10,
			Longitude:  -120 + rng.Float64()*10,
			OriginTime: cfg.Origin.Add(time.Duration(i) * time.Hour),
		})
	}

	for _, ev := range sc.Events {
		source := 4 + rng.Float64()
		for _, st := range sc.Stations {
			distance := geo.DistanceKm(ev.Latitude, ev.Longitude, st.Latitude, st.Longitude)
			if distance < minDistanceKm {
				continue
			}
			stream := &model.Stream{Station: st, ChannelName: "BHZ", BandName: "B"}
			for _, b := range cfg.Bands {
				w, err := buildWaveform(cfg, rng, src, ev, stream, sc.Truth[b], distance, source, rate)
				if err != nil {
					return nil, err
				}
				sc.Waveforms = append(sc.Waveforms, w)
			}
		}
	}
	return sc, nil
}

func buildWaveform(cfg Config, rng *rand.Rand, src *rand.ChaCha8, ev *model.Event, stream *model.Stream, p *model.SharedFrequencyBandParameters, distance, source, rate float64) (*model.Waveform, error) {
	id, err := uuid.NewRandomFromReader(src)
	if err != nil {
		return nil, err
	}

	travelTime := distance / synthetic.Velocity(p, distance)
	gamma, beta := synthetic.Gamma(p, distance), synthetic.Beta(p, distance)
	n := int((preEventSeconds + travelTime + codaPadSeconds) * rate)
	begin := timeutil.AddSeconds(ev.OriginTime, -preEventSeconds)

	// log10 envelope relative to origin
	envelope := func(tau float64) float64 {
		if tau < travelTime {
			return cfg.NoiseLevel
		}
		coda := source + synthetic.PointAtTime(gamma, beta, tau-travelTime+1) - 1
		return math.Max(coda, cfg.NoiseLevel)
	}

	seg := make([]float64, n)
	for i := range seg {
		tau := float64(i)/rate - preEventSeconds
		seg[i] = envelope(tau) + cfg.Jitter*(2*rng.Float64()-1)
	}
	if cfg.Raw {
		seg = seismogram(seg, rate, p.Band, rng)
	}

	w := &model.Waveform{
		ID:            id.String(),
		Event:         ev,
		Stream:        stream,
		BeginTime:     begin,
		EndTime:       timeutil.AddSeconds(begin, float64(n-1)/rate),
		LowFrequency:  p.Band.LowFrequency,
		HighFrequency: p.Band.HighFrequency,
		SampleRate:    rate,
		Segment:       seg,
	}

	if cfg.AnalystPicks {
		end := travelTime + p.MaxLength
		for t := 1.0; t <= p.MaxLength; t++ {
			if envelope(travelTime+t-1) < cfg.NoiseLevel+p.MinSnr {
				end = travelTime + t - 1
				break
			}
		}
		w.SetPick(model.WaveformPick{PickName: "analyst", PickType: model.PickCS, PickTimeSecFromOrigin: end})
	}
	return w, nil
}

// seismogram modulates a sum of in-band sinusoids by the log10 envelope.
func seismogram(logEnvelope []float64, rate float64, band model.FrequencyBand, rng *rand.Rand) []float64 {
	const tones = 4
	freqs := make([]float64, tones)
	phases := make([]float64, tones)
	for k := range freqs {
		freqs[k] = band.LowFrequency + (band.HighFrequency-band.LowFrequency)*(float64(k)+0.5)/tones
		phases[k] = rng.Float64() * 2 * math.Pi
	}
	out := make([]float64, len(logEnvelope))
	for i, e := range logEnvelope {
		t := float64(i) / rate
		carrier := 0.0
		for k := range freqs {
			carrier += math.Sin(2*math.Pi*freqs[k]*t + phases[k])
		}
		out[i] = math.Pow(10, e) * carrier / tones
	}
	return out
}
