// Package picker chooses coda end times by combining an SNR-drop heuristic
// with a comparison against the synthetic coda.
package picker

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// BadPick is returned when no heuristic produced a usable end time.
const BadPick = -100.0

// Request describes one envelope to pick. Subsection and Synthetic are
// log10 amplitudes sampled at SampleRate and aligned sample for sample;
// the walk starts at StartOffset.
type Request struct {
	Subsection            []float64
	Synthetic             []float64
	SampleRate            float64
	StartTimeEpochSeconds float64
	StartOffset           int
	MinLengthSec          float64
	MaxLengthSec          float64
	MinimumSnr            float64
	NoiseAmp              float64
	CenterFreq            float64
	Distance              float64
}

// EndTimePicker picks a coda end time in epoch seconds.
type EndTimePicker interface {
	EndTime(r Request) float64
}

// ConsensusPicker runs the SNR pick for bands centred at or above 1 Hz and
// the synthetic-divergence pick for bands centred at or below 3.5 Hz, then
// reduces the candidates with FilteredGeometricMean.
type ConsensusPicker struct{}

var snrWindowSeconds = []float64{10, 15, 20, 40, 60, 80}

// EndTime returns StartTimeEpochSeconds + pick*SampleRate, where pick is
// the consensus end offset in seconds or BadPick.
func (ConsensusPicker) EndTime(r Request) float64 {
	var endPicks []float64

	if r.SampleRate > 0 && len(r.Subsection) > 0 {
		if r.CenterFreq >= 1.0 {
			snrPicks := make([]float64, 0, len(snrWindowSeconds))
			scale := snrWindowScale(r.CenterFreq)
			for _, w := range snrWindowSeconds {
				snrPicks = append(snrPicks, r.snrPick(w*scale))
			}
			if agg := FilteredGeometricMean(snrPicks, r.MinLengthSec, r.MaxLengthSec); !math.IsNaN(agg) {
				endPicks = append(endPicks, agg)
			}
		}
		if r.CenterFreq <= 3.5 && len(r.Synthetic) > 0 {
			synthPicks := []float64{r.syntheticPick()}
			if agg := FilteredGeometricMean(synthPicks, r.MinLengthSec, r.MaxLengthSec); !math.IsNaN(agg) {
				endPicks = append(endPicks, agg)
			}
		}
	}

	overall := FilteredGeometricMean(endPicks, r.MinLengthSec, r.MaxLengthSec)
	if math.IsNaN(overall) {
		if len(endPicks) > 0 {
			overall = endPicks[0]
		} else {
			overall = BadPick
		}
	}
	return r.StartTimeEpochSeconds + overall*r.SampleRate
}

// FilteredGeometricMean returns the geometric mean of the values above lower,
// each clamped to upper (upper <= 0 disables the clamp). A single value is
// returned unchanged. NaN means nothing survived the filter.
func FilteredGeometricMean(values []float64, lower, upper float64) float64 {
	if len(values) == 1 {
		return values[0]
	}
	kept := make([]float64, 0, len(values))
	for _, v := range values {
		if v > lower {
			if upper > 0 {
				v = math.Min(v, upper)
			}
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return math.NaN()
	}
	return stat.GeometricMean(kept, nil)
}

func snrWindowScale(centerFreq float64) float64 {
	switch {
	case centerFreq < 1.5:
		return 2.5
	case centerFreq < 2.5:
		return 2.0
	case centerFreq < 4.0:
		return 1.5
	default:
		return 1.0
	}
}

// snrPick walks forward from StartOffset and returns the elapsed seconds at
// which the envelope either jumps more than 10% above its 5-sample mean or
// its windowSec mean drops below NoiseAmp + MinimumSnr after MinLengthSec.
// Reaching MaxLengthSec returns MaxLengthSec.
func (r Request) snrPick(windowSec float64) float64 {
	seg := r.Subsection
	start := max(r.StartOffset, 0)
	if start >= len(seg) {
		return BadPick
	}
	threshold := r.NoiseAmp + r.MinimumSnr
	short := newRollingMean(5)
	long := newRollingMean(max(int(windowSec*r.SampleRate), 1))

	for i := start; i < len(seg); i++ {
		elapsed := float64(i-start) / r.SampleRate
		if r.MaxLengthSec > 0 && elapsed >= r.MaxLengthSec {
			return r.MaxLengthSec
		}
		if short.full() {
			m := short.mean()
			if seg[i] > m+0.1*math.Abs(m) {
				return elapsed
			}
		}
		short.push(seg[i])
		long.push(seg[i])
		if elapsed >= r.MinLengthSec && long.full() && long.mean() < threshold {
			return elapsed
		}
	}

	if elapsed := float64(len(seg)-start) / r.SampleRate; elapsed >= r.MinLengthSec {
		return elapsed
	}
	return BadPick
}

type syntheticTier struct {
	window    float64
	overlap   float64
	slopeMax  float64
	offsetMax float64
}

func syntheticTierFor(centerFreq float64) syntheticTier {
	switch {
	case centerFreq <= 0.25:
		return syntheticTier{window: 50, overlap: 30, slopeMax: 1.3, offsetMax: 1.0}
	case centerFreq <= 0.85:
		return syntheticTier{window: 40, overlap: 20, slopeMax: 0.7, offsetMax: 0.8}
	case centerFreq <= 2.0:
		return syntheticTier{window: 30, overlap: 20, slopeMax: 0.4, offsetMax: 0.6}
	default:
		return syntheticTier{window: 20, overlap: 10, slopeMax: 0.5, offsetMax: 0.5}
	}
}

// syntheticPick slides overlapping windows over the observed and synthetic
// envelopes and returns the start, in seconds, of the first window whose
// observed decay flattens away from the synthetic slope or whose mean
// offset from the synthetic drifts away from the first window's offset.
// With no divergence the end of the data is used when it lies within
// [MinLengthSec, MaxLengthSec].
func (r Request) syntheticPick() float64 {
	tier := syntheticTierFor(r.CenterFreq)
	start := max(r.StartOffset, 0)
	n := min(len(r.Subsection), len(r.Synthetic))
	winLen := int(tier.window * r.SampleRate)
	step := max(winLen-int(tier.overlap*r.SampleRate), 1)

	ts := make([]float64, winLen)
	var (
		baseOffset float64
		first      = true
	)
	for ii := start; winLen > 1 && ii+winLen <= n; ii += step {
		for k := range ts {
			ts[k] = float64(ii+k) / r.SampleRate
		}
		obs := r.Subsection[ii : ii+winLen]
		synth := r.Synthetic[ii : ii+winLen]
		_, obsSlope := stat.LinearRegression(ts, obs, nil, false)
		_, synthSlope := stat.LinearRegression(ts, synth, nil, false)

		offset := stat.Mean(obs, nil) - stat.Mean(synth, nil)
		if first {
			baseOffset, first = offset, false
		}
		ratioSlope := math.Abs(synthSlope-obsSlope) / math.Abs(synthSlope)
		drift := math.Abs(offset-baseOffset) / math.Max(math.Abs(baseOffset), 1)

		if (ratioSlope > tier.slopeMax && obsSlope > -0.005) || drift > tier.offsetMax {
			return float64(ii-start) / r.SampleRate
		}
	}

	end := float64(n-start) / r.SampleRate
	if end >= r.MinLengthSec && (r.MaxLengthSec <= 0 || end <= r.MaxLengthSec) {
		return end
	}
	return BadPick
}

type rollingMean struct {
	buf  []float64
	next int
	n    int
	sum  float64
}

func newRollingMean(size int) *rollingMean {
	return &rollingMean{buf: make([]float64, size)}
}

func (r *rollingMean) push(v float64) {
	if r.n == len(r.buf) {
		r.sum -= r.buf[r.next]
	} else {
		r.n++
	}
	r.buf[r.next] = v
	r.sum += v
	r.next = (r.next + 1) % len(r.buf)
}

func (r *rollingMean) full() bool { return r.n == len(r.buf) }

func (r *rollingMean) mean() float64 { return r.sum / float64(r.n) }
