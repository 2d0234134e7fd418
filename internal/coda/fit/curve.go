// Package fit fits the three-parameter distance curves
//
//	y(r) = p0 - p1/(p2 + r)
//
// for velocity, beta and gamma across a population of measurements, and
// fits individual coda envelopes to the synthetic decay model.
//
// Curve fits use a derivative-free CMA-ES optimizer with randomized
// restarts when there are enough samples, and an exhaustive grid search
// otherwise or when the optimizer cannot produce a physically valid curve.
// Both strategies minimise the L1 residual and treat any curve that leaves
// the configured [YMin, YMax] band at the distance extremes as infeasible.
package fit

import (
	"errors"
	"fmt"
	"math"

	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/synthetic"
)

// FailedObjective marks a curve no strategy could fit.
const FailedObjective = -1.0

// GridBaseObjective is the objective reported by a grid search in which
// every grid point was infeasible.
const GridBaseObjective = 9e29

var (
	// ErrMaxEvaluations reports that the optimizer exhausted its budget.
	ErrMaxEvaluations = errors.New("optimizer exceeded maximum evaluations")

	// ErrNilMeasurements reports a missing measurement map.
	ErrNilMeasurements = errors.New("nil measurement map")

	// ErrNilParameters reports a nil or empty band parameter map.
	ErrNilParameters = errors.New("nil or empty band parameter map")

	// ErrTooFewSamples reports an envelope too short to regress.
	ErrTooFewSamples = errors.New("too few samples to fit")
)

// Curve is a fitted distance curve and its L1 objective. Objective is
// FailedObjective when no physically valid curve was found.
type Curve struct {
	P0        float64 `json:"p0"`
	P1        float64 `json:"p1"`
	P2        float64 `json:"p2"`
	Objective float64 `json:"objective"`
}

// At evaluates the curve at distance.
func (c Curve) At(distance float64) float64 {
	return synthetic.DistanceFunction(c.P0, c.P1, c.P2, distance)
}

// Failed reports whether the curve carries the failure sentinel.
func (c Curve) Failed() bool {
	return c.Objective == FailedObjective
}

// Vector returns [p0, p1, p2, objective].
func (c Curve) Vector() [4]float64 {
	return [4]float64{c.P0, c.P1, c.P2, c.Objective}
}

// Pair is one observation of a curve value at a distance in km.
type Pair struct {
	Value    float64
	Distance float64
}

// Method identifies the strategy that produced a curve.
type Method int

const (
	MethodOptimizer Method = iota
	MethodGrid
)

// MarshalText encodes the method name.
func (m Method) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m Method) String() string {
	switch m {
	case MethodOptimizer:
		return "optimizer"
	case MethodGrid:
		return "grid"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// Kind selects one of the three distance curves.
type Kind int

const (
	KindVelocity Kind = iota
	KindBeta
	KindGamma
)

// MarshalText encodes the kind name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k Kind) String() string {
	switch k {
	case KindVelocity:
		return "velocity"
	case KindBeta:
		return "beta"
	case KindGamma:
		return "gamma"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Validity bounds the curve at the ends of the distance domain.
type Validity struct {
	YMin    float64
	YMax    float64
	DistMin float64
	DistMax float64
}

// admits reports whether the curve stays physically sensible: its value at
// DistMin must be at least YMin and at DistMax at most YMax. With
// nonIncreasing set the curve must also not rise over the first km.
func (v Validity) admits(p0, p1, p2 float64, nonIncreasing bool) bool {
	atMin := synthetic.DistanceFunction(p0, p1, p2, v.DistMin)
	atMax := synthetic.DistanceFunction(p0, p1, p2, v.DistMax)
	if atMin < v.YMin || atMax > v.YMax {
		return false
	}
	if nonIncreasing && atMin < synthetic.DistanceFunction(p0, p1, p2, v.DistMin+1.0) {
		return false
	}
	return true
}

// residual returns the summed absolute misfit of the curve to pairs.
func residual(p0, p1, p2 float64, pairs []Pair) float64 {
	sum := 0.0
	for _, pr := range pairs {
		sum += math.Abs(pr.Value - synthetic.DistanceFunction(p0, p1, p2, pr.Distance))
	}
	return sum
}
