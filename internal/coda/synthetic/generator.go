package synthetic

import (
	"fmt"
	"time"

	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/model"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/timeutil"
)

// Generator builds synthetic coda envelopes for a waveform's geometry.
type Generator struct {
	// SampleRate of the generated envelope; 1 Hz when zero.
	SampleRate float64
}

// Generate samples the model for n points starting at start, at
// t = (i+1)/rate seconds into the coda.
func (g Generator) Generate(w *model.Waveform, p *model.SharedFrequencyBandParameters, distance float64, start time.Time, n int) (*model.SyntheticCoda, error) {
	if p == nil {
		return nil, fmt.Errorf("synthetic: nil band parameters")
	}
	if n <= 0 {
		return nil, fmt.Errorf("synthetic: non-positive length %d", n)
	}
	rate := g.SampleRate
	if rate <= 0 {
		rate = 1.0
	}

	gamma := Gamma(p, distance)
	beta := Beta(p, distance)
	seg := make([]float64, n)
	for i := range seg {
		seg[i] = PointAtTime(gamma, beta, float64(i+1)/rate)
	}

	return &model.SyntheticCoda{
		SourceWaveform: w,
		Parameters:     p,
		Segment:        seg,
		SampleRate:     rate,
		BeginTime:      start,
		EndTime:        timeutil.AddSeconds(start, float64(n-1)/rate),
	}, nil
}
