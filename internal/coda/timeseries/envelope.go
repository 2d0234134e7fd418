package timeseries

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/LLNL/coda-calibration-tool-sub005/internal/units"
)

// minEnvelope floors amplitudes before taking log10.
const minEnvelope = 1e-12

// Log10 replaces every sample with its base-10 logarithm. Non-positive
// samples are floored to a tiny positive amplitude first.
func (ts *TimeSeries) Log10() {
	for i, v := range ts.data {
		ts.data[i] = units.Log10Amplitude(math.Max(v, minEnvelope))
	}
}

// RemoveMean subtracts the mean from every sample.
func (ts *TimeSeries) RemoveMean() {
	if len(ts.data) == 0 {
		return
	}
	m := ts.Mean()
	for i := range ts.data {
		ts.data[i] -= m
	}
}

// Smooth applies a centred moving average over width samples. Even widths
// are widened by one; the window shrinks at the edges.
func (ts *TimeSeries) Smooth(width int) {
	if width <= 1 || len(ts.data) == 0 {
		return
	}
	half := width / 2
	prefix := make([]float64, len(ts.data)+1)
	for i, v := range ts.data {
		prefix[i+1] = prefix[i] + v
	}
	out := make([]float64, len(ts.data))
	for i := range ts.data {
		lo := max(0, i-half)
		hi := min(len(ts.data), i+half+1)
		out[i] = (prefix[hi] - prefix[lo]) / float64(hi-lo)
	}
	ts.data = out
}

// Taper applies a cosine (Tukey) taper to fraction of the samples at each
// end.
func (ts *TimeSeries) Taper(fraction float64) {
	n := len(ts.data)
	m := int(float64(n) * fraction)
	if m < 1 || n < 2 {
		return
	}
	if m > n/2 {
		m = n / 2
	}
	for i := 0; i < m; i++ {
		w := 0.5 * (1 - math.Cos(math.Pi*float64(i)/float64(m)))
		ts.data[i] *= w
		ts.data[n-1-i] *= w
	}
}

// Bandpass zeroes spectral content outside [low, high] Hz.
func (ts *TimeSeries) Bandpass(low, high float64) error {
	n := len(ts.data)
	if n == 0 {
		return ErrEmptySeries
	}
	if low < 0 || high <= low {
		return fmt.Errorf("invalid passband %g-%g Hz", low, high)
	}
	fft := fourier.NewFFT(n)
	coeff := fft.Coefficients(nil, ts.data)
	for k := range coeff {
		f := fft.Freq(k) * ts.sampleRate
		if f < low || f > high {
			coeff[k] = 0
		}
	}
	out := fft.Sequence(nil, coeff)
	for i := range out {
		out[i] /= float64(n)
	}
	ts.data = out
	return nil
}

// Envelope replaces the series with the magnitude of its analytic signal
// (Hilbert envelope).
func (ts *TimeSeries) Envelope() error {
	n := len(ts.data)
	if n == 0 {
		return ErrEmptySeries
	}
	seq := make([]complex128, n)
	for i, v := range ts.data {
		seq[i] = complex(v, 0)
	}
	fft := fourier.NewCmplxFFT(n)
	coeff := fft.Coefficients(nil, seq)

	// Keep DC (and Nyquist for even n), double positive frequencies, drop
	// negative ones.
	for k := range coeff {
		switch {
		case k == 0:
		case n%2 == 0 && k == n/2:
		case k < (n+1)/2:
			coeff[k] *= 2
		default:
			coeff[k] = 0
		}
	}
	analytic := fft.Sequence(nil, coeff)
	for i, z := range analytic {
		ts.data[i] = cmplx.Abs(z) / float64(n)
	}
	return nil
}
