package fit

// Axis is one inclusive grid dimension: Start + i*Step for i in [0, Count).
type Axis struct {
	Start float64
	Step  float64
	Count int
}

// Value returns the i-th grid coordinate.
func (a Axis) Value(i int) float64 {
	return a.Start + float64(i)*a.Step
}

// Grid is the three-dimensional search lattice for one curve kind.
type Grid [3]Axis

// Size is the number of lattice points.
func (g Grid) Size() int {
	return g[0].Count * g[1].Count * g[2].Count
}

// kindSpec holds the fixed search geometry of a curve kind. The optimizer
// works in a scaled space; scale maps an optimizer point onto curve
// parameters.
type kindSpec struct {
	lower      [3]float64
	upper      [3]float64
	scale      [3]float64
	sigma      [3]float64
	population int
	grid       Grid

	// nonIncreasing rejects curves that rise over the first km.
	nonIncreasing bool
	// lowerStart seeds the first restart at the lower corner of p1 and p2.
	lowerStart bool
}

var kindSpecs = map[Kind]kindSpec{
	KindVelocity: {
		lower:      [3]float64{50, 1, 1},
		upper:      [3]float64{600, 5000, 5000},
		scale:      [3]float64{1.0 / 100.0, 1, 1},
		sigma:      [3]float64{1, 75, 100},
		population: 100,
		grid: Grid{
			{Start: 2.5, Step: 0.05, Count: 46},
			{Start: 0, Step: 2, Count: 201},
			{Start: 1, Step: 1, Count: 201},
		},
	},
	KindBeta: {
		lower:      [3]float64{-500, 0.0001, 0.0001},
		upper:      [3]float64{-10, 5, 1500},
		scale:      [3]float64{1.0 / 10000.0, 1, 1},
		sigma:      [3]float64{0.05, 0.5, 750},
		population: 50,
		grid: Grid{
			{Start: 0, Step: -0.0005, Count: 201},
			{Start: 0, Step: 0.02, Count: 201},
			{Start: 0.0001, Step: 1, Count: 501},
		},
	},
	KindGamma: {
		lower:      [3]float64{5, 1, 1},
		upper:      [3]float64{300, 1000, 1000},
		scale:      [3]float64{1.0 / 100.0, -1, 1},
		sigma:      [3]float64{1, 250, 500},
		population: 50,
		grid: Grid{
			{Start: 2.0, Step: -0.1, Count: 21},
			{Start: 0, Step: -1, Count: 101},
			{Start: 1, Step: 1, Count: 101},
		},
		nonIncreasing: true,
		lowerStart:    true,
	},
}

// DefaultGrid returns the exhaustive search lattice used for kind.
func DefaultGrid(kind Kind) Grid {
	return kindSpecs[kind].grid
}

func (s kindSpec) toCurve(x []float64) (p0, p1, p2 float64) {
	return x[0] * s.scale[0], x[1] * s.scale[1], x[2] * s.scale[2]
}
