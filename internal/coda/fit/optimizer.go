package fit

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/optimize"

	"github.com/LLNL/coda-calibration-tool-sub005/internal/monitoring"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/parallel"
)

// cmaRun describes one boxed CMA-ES minimisation.
type cmaRun struct {
	lower      []float64
	upper      []float64
	sigma      []float64
	population int
	maxEvals   int
	// seed drives the CMA-ES sample stream. Restart i uses PCG(seed, i).
	seed uint64
}

type cmaResult struct {
	x []float64
	f float64
}

const (
	// cmaStallIterations is how many generations may pass without the best
	// value improving before a run is stopped.
	cmaStallIterations = 300
	// cmaMinStep is the per-axis standard deviation, in units of sigma, at
	// which the sampling distribution counts as collapsed.
	cmaMinStep = 1e-9
)

// minimize runs CMA-ES from x0. Sampling happens in coordinates divided by
// sigma, so the initial distribution is the identity. Points outside the
// box are repaired onto it and charged a penalty equal to the excursion in
// those units. The returned point is the best repaired point and its
// unpenalised objective.
func (r cmaRun) minimize(objective func([]float64) float64, x0 []float64) (cmaResult, error) {
	return r.minimizeFrom(objective, x0, rand.NewPCG(r.seed, 0))
}

func (r cmaRun) minimizeFrom(objective func([]float64) float64, x0 []float64, src rand.Source) (cmaResult, error) {
	n := len(x0)
	z0 := make([]float64, n)
	for i, v := range x0 {
		z0[i] = v / r.sigma[i]
	}

	var (
		mu    sync.Mutex
		bestX []float64
		bestF = math.Inf(1)
	)
	fn := func(z []float64) float64 {
		repaired := make([]float64, n)
		penalty := 0.0
		for i, v := range z {
			c := math.Min(math.Max(v*r.sigma[i], r.lower[i]), r.upper[i])
			repaired[i] = c
			penalty += math.Abs(v - c/r.sigma[i])
		}
		f := objective(repaired)

		mu.Lock()
		if f < bestF || bestX == nil {
			bestF = f
			bestX = repaired
		}
		mu.Unlock()

		if f == math.MaxFloat64 {
			return f
		}
		return f + penalty
	}

	settings := &optimize.Settings{
		FuncEvaluations: r.maxEvals,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Relative:   1e-12,
			Iterations: cmaStallIterations,
		},
	}
	method := &optimize.CmaEsChol{
		InitStepSize: 1,
		Population:   r.population,
		StopLogDet:   float64(n) * 2 * math.Log(cmaMinStep),
		Src:          src,
	}

	res, err := optimize.Minimize(optimize.Problem{Func: fn}, z0, settings, method)

	mu.Lock()
	defer mu.Unlock()
	if res != nil && res.Status == optimize.FunctionEvaluationLimit {
		return cmaResult{x: bestX, f: bestF}, ErrMaxEvaluations
	}
	if bestX == nil {
		if err == nil {
			err = errors.New("cma-es: no evaluations")
		}
		return cmaResult{}, err
	}
	if err != nil {
		monitoring.Debugf("[Fit] cma-es stopped early: %v", err)
	}
	return cmaResult{x: bestX, f: bestF}, nil
}

// minimizeRestarts runs one minimisation per start point concurrently and
// keeps the best. Any run exhausting its budget fails the whole call.
func (r cmaRun) minimizeRestarts(objective func([]float64) float64, starts [][]float64, workers int) (cmaResult, error) {
	idx := make([]int, len(starts))
	for i := range idx {
		idx[i] = i
	}
	results := parallel.Map(context.Background(), idx, workers, func(i int) (cmaResult, error) {
		return r.minimizeFrom(objective, starts[i], rand.NewPCG(r.seed, uint64(i)))
	})

	best := cmaResult{f: math.Inf(1)}
	var firstErr error
	for _, res := range results {
		if errors.Is(res.Err, ErrMaxEvaluations) {
			return cmaResult{}, res.Err
		}
		if res.Err != nil {
			if firstErr == nil {
				firstErr = res.Err
			}
			continue
		}
		if res.Value.f < best.f {
			best = res.Value
		}
	}
	if best.x == nil {
		if firstErr == nil {
			firstErr = errors.New("cma-es: no restarts")
		}
		return cmaResult{}, firstErr
	}
	return best, nil
}
