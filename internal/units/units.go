// Package units provides shared conversions for distance, velocity and
// amplitude units used by the calibration code.
package units

import "math"

// MetersToKilometers converts metres to kilometres.
func MetersToKilometers(m float64) float64 {
	return m / 1000.0
}

// TravelTimeSeconds returns the time to cover distanceKm at velocityKmPerSec.
// A zero velocity yields zero rather than an infinite travel time.
func TravelTimeSeconds(distanceKm, velocityKmPerSec float64) float64 {
	if velocityKmPerSec == 0 {
		return 0
	}
	return distanceKm / velocityKmPerSec
}

// Log10Amplitude converts a linear amplitude to log10 units. Non-positive
// amplitudes map to -Inf like math.Log10.
func Log10Amplitude(a float64) float64 {
	return math.Log10(a)
}

// DegreesToRadians converts an angle in degrees to radians.
func DegreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
