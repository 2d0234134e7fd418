// Package synthetic evaluates the empirical coda amplitude model
//
//	log10 A(t, r) = 1 - γ(r)·log10(t) + β(r)·t
//
// where γ and β follow the distance function p0 - p1/(p2 + r).
package synthetic

import (
	"math"

	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/model"
)

// SingularityValue is returned for t <= 0 where log10(t) is undefined.
const SingularityValue = -10.0

// PointAtTime returns the log10 synthetic amplitude at t seconds after the
// coda start for decay parameters gamma and beta.
func PointAtTime(gamma, beta, t float64) float64 {
	if t <= 0 {
		return SingularityValue
	}
	return 1.0 - gamma*math.Log10(t) + beta*t
}

// DistanceFunction evaluates p0 - p1/(p2 + distance).
func DistanceFunction(p0, p1, p2, distance float64) float64 {
	return p0 - p1/(p2+distance)
}

// Velocity returns the band's group velocity at distance.
func Velocity(p *model.SharedFrequencyBandParameters, distance float64) float64 {
	return DistanceFunction(p.Velocity0, p.Velocity1, p.Velocity2, distance)
}

// Beta returns the band's beta at distance.
func Beta(p *model.SharedFrequencyBandParameters, distance float64) float64 {
	return DistanceFunction(p.Beta0, p.Beta1, p.Beta2, distance)
}

// Gamma returns the band's gamma at distance.
func Gamma(p *model.SharedFrequencyBandParameters, distance float64) float64 {
	return DistanceFunction(p.Gamma0, p.Gamma1, p.Gamma2, distance)
}

// PointAtTimeAndDistance evaluates the model using the band's beta and
// gamma curves at distance.
func PointAtTimeAndDistance(p *model.SharedFrequencyBandParameters, t, distance float64) float64 {
	return PointAtTime(Gamma(p, distance), Beta(p, distance), t)
}
