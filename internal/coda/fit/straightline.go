package fit

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// EnvelopeFit is the decay fitted to a single coda envelope.
type EnvelopeFit struct {
	Gamma     float64 `json:"gamma"`
	Beta      float64 `json:"beta"`
	Intercept float64 `json:"intercept"`
	Error     float64 `json:"error"`
}

// ShapeConstraints bounds the optimizer-based envelope fit.
type ShapeConstraints struct {
	MinIntercept float64
	MaxIntercept float64
	MinBeta      float64
	MaxBeta      float64
	MinGamma     float64
	MaxGamma     float64
}

// DefaultShapeConstraints returns the bounds used by the shape stage.
func DefaultShapeConstraints() ShapeConstraints {
	return ShapeConstraints{
		MinIntercept: 0.001,
		MaxIntercept: 20,
		MinBeta:      -4,
		MaxBeta:      -0.0001,
		MinGamma:     0.001,
		MaxGamma:     4,
	}
}

// FitCodaStraightLine sweeps gamma over 0.1..3.0 in 0.1 steps. For each
// gamma the final 70% of the segment, corrected by gamma·log10(t) with
// t = j+1, is regressed against t; the slope is beta. The gamma with the
// smallest summed absolute residual wins and Error is 100·sum/len(segment).
func FitCodaStraightLine(segment []float64) (EnvelopeFit, error) {
	from := int(float64(len(segment)) * 0.3)
	if len(segment)-from < 2 {
		return EnvelopeFit{}, ErrTooFewSamples
	}

	ts := make([]float64, len(segment)-from)
	for k := range ts {
		ts[k] = float64(from + k + 1)
	}
	amps := make([]float64, len(ts))

	var best EnvelopeFit
	bestSum := math.Inf(1)
	for i := 1; i <= 30; i++ {
		gamma := float64(i) * 0.1
		for k, t := range ts {
			amps[k] = segment[from+k] + gamma*math.Log10(t)
		}
		intercept, beta := stat.LinearRegression(ts, amps, nil, false)

		sum := 0.0
		for k, t := range ts {
			sum += math.Abs(amps[k] - (intercept + beta*t))
		}
		if sum < bestSum {
			bestSum = sum
			best = EnvelopeFit{
				Gamma:     gamma,
				Beta:      beta,
				Intercept: intercept,
				Error:     100 * sum / float64(len(segment)),
			}
		}
	}
	return best, nil
}

// FitCodaOptimizer fits intercept - gamma·log10(t) + beta·t to the whole
// segment with CMA-ES, starting from a straight-line regression of the
// envelope. The least-squares solution replaces the CMA-ES point when it
// satisfies the gamma and beta bounds and has the smaller residual. Error
// is the summed absolute residual.
func FitCodaOptimizer(segment []float64, c ShapeConstraints) (EnvelopeFit, error) {
	return fitCodaOptimizer(segment, c, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), 0)
}

// FitCodaOptimizerRand is FitCodaOptimizer drawing any random start from rng.
func FitCodaOptimizerRand(segment []float64, c ShapeConstraints, rng *rand.Rand) (EnvelopeFit, error) {
	return fitCodaOptimizer(segment, c, rng, 0)
}

func fitCodaOptimizer(segment []float64, c ShapeConstraints, rng *rand.Rand, maxEvals int) (EnvelopeFit, error) {
	if len(segment) < 2 {
		return EnvelopeFit{}, ErrTooFewSamples
	}
	ts := make([]float64, len(segment))
	for j := range ts {
		ts[j] = float64(j + 1)
	}

	startIntercept, startBeta := stat.LinearRegression(ts, segment, nil, false)
	switch {
	case math.IsNaN(startIntercept):
		startIntercept = c.MinIntercept + rng.Float64()*(c.MaxIntercept-c.MinIntercept)
		startBeta = c.MinBeta
	case startBeta > c.MaxBeta || startBeta < c.MinBeta:
		startBeta = c.MinBeta
	}

	objective := func(x []float64) float64 {
		intercept, gamma, beta := x[0], x[1], x[2]
		sum := 0.0
		for j, t := range ts {
			sum += math.Abs(segment[j] - (intercept - gamma*math.Log10(t) + beta*t))
		}
		return sum
	}

	if maxEvals <= 0 {
		maxEvals = 1000000
	}
	run := cmaRun{
		lower:      []float64{-math.MaxFloat64, c.MinGamma, c.MinBeta},
		upper:      []float64{math.MaxFloat64, c.MaxGamma, c.MaxBeta},
		sigma:      []float64{0.5, 0.05, 0.05},
		population: 50,
		maxEvals:   maxEvals,
	}
	run.seed = rng.Uint64()
	res, err := run.minimize(objective, []float64{startIntercept, c.MinGamma, startBeta})
	if err != nil {
		return EnvelopeFit{}, err
	}
	if x, ok := leastSquaresDecay(ts, segment); ok &&
		x[1] >= c.MinGamma && x[1] <= c.MaxGamma && x[2] >= c.MinBeta && x[2] <= c.MaxBeta {
		if f := objective(x); f < res.f {
			res = cmaResult{x: x, f: f}
		}
	}
	return EnvelopeFit{
		Intercept: res.x[0],
		Gamma:     res.x[1],
		Beta:      res.x[2],
		Error:     res.f,
	}, nil
}

// leastSquaresDecay solves intercept - gamma·log10(t) + beta·t = y in the
// least-squares sense and returns {intercept, gamma, beta}.
func leastSquaresDecay(ts, ys []float64) ([]float64, bool) {
	if len(ts) < 3 {
		return nil, false
	}
	a := mat.NewDense(len(ts), 3, nil)
	for j, t := range ts {
		a.SetRow(j, []float64{1, -math.Log10(t), t})
	}
	var x mat.VecDense
	if err := x.SolveVec(a, mat.NewVecDense(len(ys), ys)); err != nil {
		return nil, false
	}
	return []float64{x.AtVec(0), x.AtVec(1), x.AtVec(2)}, true
}
