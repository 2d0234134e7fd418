package fit

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync/atomic"

	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/model"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/config"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/monitoring"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/parallel"
)

// betaEpsilon replaces exactly-zero beta coefficients.
const betaEpsilon = 0.0001

// betaInterceptScale is applied to the fitted beta intercept before it is
// stored on the band.
const betaInterceptScale = 1.05

// Options tunes curve fitting.
type Options struct {
	// DataPointCutoff is the sample count at which the optimizer is tried
	// before the grid.
	DataPointCutoff int
	Restarts        int
	// MaxEvaluations bounds each optimizer restart.
	MaxEvaluations int
	Workers        int
	// Seed drives restart start points; 0 seeds from the runtime.
	Seed uint64

	Velocity Validity
	Beta     Validity
	Gamma    Validity

	// Grids overrides the default search lattice per kind.
	Grids map[Kind]Grid
}

// DefaultOptions mirrors config.DefaultCalibrationConfig.
func DefaultOptions() Options {
	return OptionsFromConfig(config.EmptyCalibrationConfig())
}

// OptionsFromConfig reads fitting options from cfg.
func OptionsFromConfig(cfg *config.CalibrationConfig) Options {
	distMin := cfg.GetDistMin()
	return Options{
		DataPointCutoff: cfg.GetDataPointCutoff(),
		Restarts:        cfg.GetOptimizerRestarts(),
		MaxEvaluations:  cfg.GetMaxEvaluations(),
		Workers:         cfg.GetWorkers(),
		Seed:            cfg.GetRandomSeed(),
		Velocity: Validity{
			YMin: cfg.GetVelocityYMin(), YMax: cfg.GetVelocityYMax(),
			DistMin: distMin, DistMax: cfg.GetVelocityDistMax(),
		},
		Beta: Validity{
			YMin: cfg.GetBetaYMin(), YMax: cfg.GetBetaYMax(),
			DistMin: distMin, DistMax: cfg.GetBetaDistMax(),
		},
		Gamma: Validity{
			YMin: cfg.GetGammaYMin(), YMax: cfg.GetGammaYMax(),
			DistMin: distMin, DistMax: cfg.GetGammaDistMax(),
		},
	}
}

func (o Options) grid(kind Kind) Grid {
	if g, ok := o.Grids[kind]; ok {
		return g
	}
	return DefaultGrid(kind)
}

func (o Options) validity(kind Kind) Validity {
	switch kind {
	case KindBeta:
		return o.Beta
	case KindGamma:
		return o.Gamma
	default:
		return o.Velocity
	}
}

// Strategy produces a curve from observations.
type Strategy func(pairs []Pair) (Curve, error)

// BandFit records how one band's curve was obtained.
type BandFit struct {
	Band    model.FrequencyBand `json:"band"`
	Kind    Kind                `json:"kind"`
	Curve   Curve               `json:"curve"`
	Method  Method              `json:"method"`
	Samples int                 `json:"samples"`
}

// Fitter fits distance curves. It is safe for concurrent use, though the
// FitAll methods mutate the parameter map they are given.
type Fitter struct {
	opts  Options
	seed  uint64
	calls atomic.Uint64

	// OnFit, when set, is called after each band curve is stored.
	OnFit func(BandFit)
}

// NewFitter returns a Fitter using opts.
func NewFitter(opts Options) *Fitter {
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Fitter{opts: opts, seed: seed}
}

// Options returns the fitter's options.
func (f *Fitter) Options() Options { return f.opts }

func (f *Fitter) rng() *rand.Rand {
	return rand.New(rand.NewPCG(f.seed, f.calls.Add(1)))
}

// OptimizeCodaV fits the velocity curve with CMA-ES restarts. The best
// restart is then compared with a variable-projection refinement and the
// lower objective wins.
func (f *Fitter) OptimizeCodaV(pairs []Pair) (Curve, error) {
	return f.optimize(KindVelocity, pairs)
}

// OptimizeCodaB fits the beta curve with CMA-ES.
func (f *Fitter) OptimizeCodaB(pairs []Pair) (Curve, error) {
	return f.optimize(KindBeta, pairs)
}

// OptimizeCodaG fits the gamma curve with CMA-ES.
func (f *Fitter) OptimizeCodaG(pairs []Pair) (Curve, error) {
	return f.optimize(KindGamma, pairs)
}

// BruteForceCodaV searches the velocity grid.
func (f *Fitter) BruteForceCodaV(pairs []Pair) (Curve, error) {
	return f.BruteForce(KindVelocity, pairs, f.opts.grid(KindVelocity)), nil
}

// BruteForceCodaB searches the beta grid.
func (f *Fitter) BruteForceCodaB(pairs []Pair) (Curve, error) {
	return f.BruteForce(KindBeta, pairs, f.opts.grid(KindBeta)), nil
}

// BruteForceCodaG searches the gamma grid.
func (f *Fitter) BruteForceCodaG(pairs []Pair) (Curve, error) {
	return f.BruteForce(KindGamma, pairs, f.opts.grid(KindGamma)), nil
}

// GridSearchCodaV fits the velocity curve, choosing the strategy by sample
// count and falling back to the grid when the optimizer fails.
func (f *Fitter) GridSearchCodaV(pairs []Pair) (Curve, Method) {
	return f.dispatch(KindVelocity, pairs, f.OptimizeCodaV, f.BruteForceCodaV)
}

// GridSearchCodaB fits the beta curve. Coefficients that come out exactly
// zero are replaced with a small epsilon whichever strategy produced them.
func (f *Fitter) GridSearchCodaB(pairs []Pair) (Curve, Method) {
	c, m := f.dispatch(KindBeta, pairs, f.OptimizeCodaB, f.BruteForceCodaB)
	return nudgeZeroBeta(c), m
}

func nudgeZeroBeta(c Curve) Curve {
	if c.P0 == 0 {
		c.P0 = betaEpsilon
	}
	if c.P1 == 0 {
		c.P1 = betaEpsilon
	}
	if c.P2 == 0 {
		c.P2 = betaEpsilon
	}
	return c
}

// GridSearchCodaG fits the gamma curve.
func (f *Fitter) GridSearchCodaG(pairs []Pair) (Curve, Method) {
	return f.dispatch(KindGamma, pairs, f.OptimizeCodaG, f.BruteForceCodaG)
}

func (f *Fitter) dispatch(kind Kind, pairs []Pair, primary, fallback Strategy) (Curve, Method) {
	if len(pairs) >= f.opts.DataPointCutoff {
		c, err := primary(pairs)
		switch {
		case errors.Is(err, ErrMaxEvaluations):
			monitoring.Debugf("[Fit] %s optimizer hit evaluation limit, using grid: samples=%d", kind, len(pairs))
		case err != nil:
			monitoring.Debugf("[Fit] %s optimizer failed, using grid: %v", kind, err)
		case c.Failed():
			monitoring.Debugf("[Fit] %s optimizer found no valid curve, using grid: samples=%d", kind, len(pairs))
		default:
			return c, MethodOptimizer
		}
	}
	c, _ := fallback(pairs)
	return c, MethodGrid
}

func (f *Fitter) optimize(kind Kind, pairs []Pair) (Curve, error) {
	spec := kindSpecs[kind]
	validity := f.opts.validity(kind)

	objective := func(x []float64) float64 {
		p0, p1, p2 := spec.toCurve(x)
		if !validity.admits(p0, p1, p2, spec.nonIncreasing) {
			return math.MaxFloat64
		}
		return residual(p0, p1, p2, pairs)
	}

	restarts := max(f.opts.Restarts, 1)
	rng := f.rng()
	starts := make([][]float64, restarts)
	for i := range starts {
		x := make([]float64, 3)
		for d := range x {
			x[d] = spec.lower[d] + rng.Float64()*(spec.upper[d]-spec.lower[d])
		}
		if i == 0 && spec.lowerStart {
			x[1], x[2] = spec.lower[1], spec.lower[2]
		}
		starts[i] = x
	}

	run := cmaRun{
		lower:      spec.lower[:],
		upper:      spec.upper[:],
		sigma:      spec.sigma[:],
		population: spec.population,
		maxEvals:   f.opts.MaxEvaluations,
		seed:       rng.Uint64(),
	}
	best, err := run.minimizeRestarts(objective, starts, f.opts.Workers)
	if err != nil {
		return Curve{Objective: FailedObjective}, err
	}
	if refined, ok := refineProfile(spec, pairs, objective); ok && refined.f < best.f {
		best = refined
	}
	if best.f == math.MaxFloat64 {
		return Curve{Objective: FailedObjective}, nil
	}
	p0, p1, p2 := spec.toCurve(best.x)
	return Curve{P0: p0, P1: p1, P2: p2, Objective: best.f}, nil
}

// BruteForce evaluates every point of grid and returns the feasible point
// with the smallest L1 residual. Ties keep the earliest point in grid
// order. When nothing is feasible the result is the zero curve with
// GridBaseObjective. The outer two dimensions are searched in parallel.
func (f *Fitter) BruteForce(kind Kind, pairs []Pair, grid Grid) Curve {
	spec := kindSpecs[kind]
	validity := f.opts.validity(kind)
	n1 := grid[1].Count
	cells := make([]Curve, grid[0].Count*n1)

	_ = parallel.For(context.Background(), len(cells), f.opts.Workers, func(k int) {
		p0, p1 := grid[0].Value(k/n1), grid[1].Value(k%n1)
		best := Curve{Objective: GridBaseObjective}
		for l := 0; l < grid[2].Count; l++ {
			p2 := grid[2].Value(l)
			if !validity.admits(p0, p1, p2, spec.nonIncreasing) {
				continue
			}
			if r := residual(p0, p1, p2, pairs); r < best.Objective {
				best = Curve{P0: p0, P1: p1, P2: p2, Objective: r}
			}
		}
		cells[k] = best
	})

	result := Curve{Objective: GridBaseObjective}
	for _, c := range cells {
		if c.Objective < result.Objective {
			result = c
		}
	}
	return result
}

// FitAllVelocity fits each measured band's velocity curve and stores it on
// the band's parameters. Bands absent from params are skipped and no keys
// are added.
func (f *Fitter) FitAllVelocity(measurements map[model.FrequencyBand][]model.PeakVelocityMeasurement, params model.ParameterMap) (model.ParameterMap, error) {
	if err := checkInputs(measurements == nil, params); err != nil {
		return nil, err
	}
	for _, band := range sortedBands(measurements) {
		pairs := make([]Pair, 0, len(measurements[band]))
		for _, m := range measurements[band] {
			pairs = appendFinite(pairs, m.Velocity, m.Distance)
		}
		f.fitBand(KindVelocity, band, pairs, params, func(p *model.SharedFrequencyBandParameters, c Curve) {
			p.Velocity0, p.Velocity1, p.Velocity2 = c.P0, c.P1, c.P2
		})
	}
	return params, nil
}

// FitAllBeta fits each measured band's beta curve from shape measurements.
// The stored intercept is scaled by 1.05.
func (f *Fitter) FitAllBeta(measurements map[model.FrequencyBand][]model.ShapeMeasurement, params model.ParameterMap) (model.ParameterMap, error) {
	if err := checkInputs(measurements == nil, params); err != nil {
		return nil, err
	}
	for _, band := range sortedBands(measurements) {
		pairs := make([]Pair, 0, len(measurements[band]))
		for _, m := range measurements[band] {
			pairs = appendFinite(pairs, m.MeasuredBeta, m.Distance)
		}
		f.fitBand(KindBeta, band, pairs, params, func(p *model.SharedFrequencyBandParameters, c Curve) {
			p.Beta0, p.Beta1, p.Beta2 = c.P0*betaInterceptScale, c.P1, c.P2
		})
	}
	return params, nil
}

// FitAllGamma fits each measured band's gamma curve from shape measurements.
func (f *Fitter) FitAllGamma(measurements map[model.FrequencyBand][]model.ShapeMeasurement, params model.ParameterMap) (model.ParameterMap, error) {
	if err := checkInputs(measurements == nil, params); err != nil {
		return nil, err
	}
	for _, band := range sortedBands(measurements) {
		pairs := make([]Pair, 0, len(measurements[band]))
		for _, m := range measurements[band] {
			pairs = appendFinite(pairs, m.MeasuredGamma, m.Distance)
		}
		f.fitBand(KindGamma, band, pairs, params, func(p *model.SharedFrequencyBandParameters, c Curve) {
			p.Gamma0, p.Gamma1, p.Gamma2 = c.P0, c.P1, c.P2
		})
	}
	return params, nil
}

func (f *Fitter) fitBand(kind Kind, band model.FrequencyBand, pairs []Pair, params model.ParameterMap, store func(*model.SharedFrequencyBandParameters, Curve)) {
	p, ok := params[band]
	if !ok || p == nil {
		monitoring.Logf("[Fit] no parameters for band, skipping %s fit: band=%s", kind, band)
		return
	}
	if len(pairs) == 0 {
		monitoring.Logf("[Fit] no usable measurements, skipping %s fit: band=%s", kind, band)
		return
	}

	var (
		c      Curve
		method Method
	)
	switch kind {
	case KindVelocity:
		c, method = f.GridSearchCodaV(pairs)
	case KindBeta:
		c, method = f.GridSearchCodaB(pairs)
	default:
		c, method = f.GridSearchCodaG(pairs)
	}
	if c.Objective >= GridBaseObjective {
		monitoring.Logf("[Fit] no valid %s curve, leaving band unchanged: band=%s samples=%d", kind, band, len(pairs))
		return
	}

	store(p, c)
	monitoring.Debugf("[Fit] %s curve fitted: band=%s method=%s samples=%d objective=%g", kind, band, method, len(pairs), c.Objective)
	if f.OnFit != nil {
		f.OnFit(BandFit{Band: band, Kind: kind, Curve: c, Method: method, Samples: len(pairs)})
	}
}

func checkInputs(nilMeasurements bool, params model.ParameterMap) error {
	if nilMeasurements {
		return ErrNilMeasurements
	}
	if len(params) == 0 {
		return ErrNilParameters
	}
	return nil
}

func appendFinite(pairs []Pair, value, distance float64) []Pair {
	if math.IsNaN(value) || math.IsInf(value, 0) || math.IsNaN(distance) {
		return pairs
	}
	return append(pairs, Pair{Value: value, Distance: distance})
}

func sortedBands[T any](m map[model.FrequencyBand][]T) []model.FrequencyBand {
	bands := make([]model.FrequencyBand, 0, len(m))
	for b := range m {
		bands = append(bands, b)
	}
	model.SortBands(bands)
	return bands
}
