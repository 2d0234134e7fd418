package fit

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	profileScanPoints = 200
	profileIterations = 100
)

// invPhi is 1/φ, the golden section ratio.
var invPhi = (math.Sqrt(5) - 1) / 2

// refineProfile polishes a distance curve by variable projection. With p2
// held fixed, p0 - p1/(p2+d) is linear in p0 and p1, so every p2 gets the
// least-squares p0 and p1 and is scored by objective. p2 is scanned on a
// log lattice across the box and the best cell is narrowed by golden
// section search. ok is false when no scanned point lies in the box.
func refineProfile(spec kindSpec, pairs []Pair, objective func([]float64) float64) (res cmaResult, ok bool) {
	lo := math.Min(spec.lower[2]*spec.scale[2], spec.upper[2]*spec.scale[2])
	hi := math.Max(spec.lower[2]*spec.scale[2], spec.upper[2]*spec.scale[2])
	if lo <= 0 || len(pairs) < 2 {
		return cmaResult{}, false
	}

	ys := make([]float64, len(pairs))
	us := make([]float64, len(pairs))
	for i, p := range pairs {
		ys[i] = p.Value
	}

	res = cmaResult{f: math.Inf(1)}
	score := func(p2 float64) float64 {
		for i, p := range pairs {
			us[i] = 1 / (p2 + p.Distance)
		}
		alpha, slope := stat.LinearRegression(us, ys, nil, false)
		x := []float64{alpha / spec.scale[0], -slope / spec.scale[1], p2 / spec.scale[2]}
		for d, v := range x {
			if math.IsNaN(v) || v < spec.lower[d] || v > spec.upper[d] {
				return math.Inf(1)
			}
		}
		f := objective(x)
		if f < res.f {
			res = cmaResult{x: x, f: f}
		}
		return f
	}

	lattice := make([]float64, profileScanPoints)
	floats.LogSpan(lattice, lo, hi)
	scores := make([]float64, len(lattice))
	for i, p2 := range lattice {
		scores[i] = score(p2)
	}
	if res.x == nil {
		return cmaResult{}, false
	}

	i := floats.MinIdx(scores)
	a, b := lattice[max(i-1, 0)], lattice[min(i+1, len(lattice)-1)]
	c, d := b-invPhi*(b-a), a+invPhi*(b-a)
	fc, fd := score(c), score(d)
	for range profileIterations {
		if fc < fd {
			b, d, fd = d, c, fc
			c = b - invPhi*(b-a)
			fc = score(c)
		} else {
			a, c, fc = c, d, fd
			d = a + invPhi*(b-a)
			fd = score(d)
		}
	}
	return res, res.f < math.MaxFloat64
}
