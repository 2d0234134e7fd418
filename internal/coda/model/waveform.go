package model

import "time"

// Event is a seismic source.
type Event struct {
	EventID    string    `json:"event_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	OriginTime time.Time `json:"origin_time"`
}

// Station is a recording site.
type Station struct {
	StationName string  `json:"station_name"`
	NetworkName string  `json:"network_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// Stream identifies a channel recorded at a station.
type Stream struct {
	Station     *Station `json:"station"`
	ChannelName string   `json:"channel_name"`
	BandName    string   `json:"band_name"`
}

// PickType names a timing annotation on a waveform.
type PickType string

// Pick types. F marks the coda start; AP is an automatic end pick; CS and
// UCS are analyst end picks.
const (
	PickF   PickType = "F"
	PickAP  PickType = "AP"
	PickCS  PickType = "CS"
	PickUCS PickType = "UCS"
)

// IsEnd reports whether the pick marks a coda end.
func (t PickType) IsEnd() bool {
	return t == PickAP || t == PickCS || t == PickUCS
}

// WaveformPick is a named time marker relative to the event origin.
type WaveformPick struct {
	PickName              string   `json:"pick_name"`
	PickType              PickType `json:"pick_type"`
	PickTimeSecFromOrigin float64  `json:"pick_time_sec_from_origin"`
}

// Waveform is an envelope segment for one event, stream and frequency band.
// Segment holds log10 envelope samples starting at BeginTime.
type Waveform struct {
	ID              string         `json:"id"`
	Event           *Event         `json:"event"`
	Stream          *Stream        `json:"stream"`
	BeginTime       time.Time      `json:"begin_time"`
	EndTime         time.Time      `json:"end_time"`
	LowFrequency    float64        `json:"low_frequency"`
	HighFrequency   float64        `json:"high_frequency"`
	SampleRate      float64        `json:"sample_rate"`
	Segment         []float64      `json:"segment"`
	AssociatedPicks []WaveformPick `json:"associated_picks,omitempty"`
}

// Band returns the waveform's frequency band.
func (w *Waveform) Band() FrequencyBand {
	return FrequencyBand{LowFrequency: w.LowFrequency, HighFrequency: w.HighFrequency}
}

// IsValid reports whether the event, stream and station references are set.
func (w *Waveform) IsValid() bool {
	return w != nil && w.Event != nil && w.Stream != nil && w.Stream.Station != nil
}

// PickByType returns the first pick of the given type.
func (w *Waveform) PickByType(t PickType) (WaveformPick, bool) {
	for _, p := range w.AssociatedPicks {
		if p.PickType == t {
			return p, true
		}
	}
	return WaveformPick{}, false
}

// EndPick returns the preferred coda end pick: an analyst pick (CS, then
// UCS) over an automatic one.
func (w *Waveform) EndPick() (WaveformPick, bool) {
	for _, t := range []PickType{PickCS, PickUCS, PickAP} {
		if p, ok := w.PickByType(t); ok {
			return p, true
		}
	}
	return WaveformPick{}, false
}

// SetPick replaces any existing pick of the same type, or appends it.
func (w *Waveform) SetPick(p WaveformPick) {
	for i := range w.AssociatedPicks {
		if w.AssociatedPicks[i].PickType == p.PickType {
			w.AssociatedPicks[i] = p
			return
		}
	}
	w.AssociatedPicks = append(w.AssociatedPicks, p)
}
