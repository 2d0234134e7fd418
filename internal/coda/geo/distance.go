// Package geo computes event-station distances on the WGS84 ellipsoid.
package geo

import (
	"math"

	"github.com/LLNL/coda-calibration-tool-sub005/internal/units"
)

// WGS84 ellipsoid constants.
const (
	SemiMajorAxis = 6378137.0
	Flattening    = 1 / 298.257223563
	SemiMinorAxis = SemiMajorAxis * (1 - Flattening)

	meanEarthRadius = 6371008.8
	maxIterations   = 200
	convergence     = 1e-12
)

// DistanceKm returns the geodesic distance in kilometres between two points
// given in degrees, solved with Vincenty's inverse formula. Nearly antipodal
// pairs where the iteration does not converge fall back to the great-circle
// distance on the mean-radius sphere.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	return units.MetersToKilometers(DistanceMeters(lat1, lon1, lat2, lon2))
}

// DistanceMeters is DistanceKm in metres.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}

	L := units.DegreesToRadians(lon2 - lon1)
	U1 := math.Atan((1 - Flattening) * math.Tan(units.DegreesToRadians(lat1)))
	U2 := math.Atan((1 - Flattening) * math.Tan(units.DegreesToRadians(lat2)))
	sinU1, cosU1 := math.Sincos(U1)
	sinU2, cosU2 := math.Sincos(U2)

	lambda := L
	var sinSigma, cosSigma, sigma, cosSqAlpha, cos2SigmaM float64
	converged := false
	for i := 0; i < maxIterations; i++ {
		sinLambda, cosLambda := math.Sincos(lambda)
		sinSigma = math.Sqrt((cosU2*sinLambda)*(cosU2*sinLambda) +
			(cosU1*sinU2-sinU1*cosU2*cosLambda)*(cosU1*sinU2-sinU1*cosU2*cosLambda))
		if sinSigma == 0 {
			return 0
		}
		cosSigma = sinU1*sinU2 + cosU1*cosU2*cosLambda
		sigma = math.Atan2(sinSigma, cosSigma)
		sinAlpha := cosU1 * cosU2 * sinLambda / sinSigma
		cosSqAlpha = 1 - sinAlpha*sinAlpha
		if cosSqAlpha != 0 {
			cos2SigmaM = cosSigma - 2*sinU1*sinU2/cosSqAlpha
		} else {
			// equatorial line
			cos2SigmaM = 0
		}
		C := Flattening / 16 * cosSqAlpha * (4 + Flattening*(4-3*cosSqAlpha))
		prev := lambda
		lambda = L + (1-C)*Flattening*sinAlpha*
			(sigma+C*sinSigma*(cos2SigmaM+C*cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)))
		if math.Abs(lambda-prev) < convergence {
			converged = true
			break
		}
	}
	if !converged {
		return haversineMeters(lat1, lon1, lat2, lon2)
	}

	uSq := cosSqAlpha * (SemiMajorAxis*SemiMajorAxis - SemiMinorAxis*SemiMinorAxis) / (SemiMinorAxis * SemiMinorAxis)
	A := 1 + uSq/16384*(4096+uSq*(-768+uSq*(320-175*uSq)))
	B := uSq / 1024 * (256 + uSq*(-128+uSq*(74-47*uSq)))
	deltaSigma := B * sinSigma * (cos2SigmaM + B/4*(cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)-
		B/6*cos2SigmaM*(-3+4*sinSigma*sinSigma)*(-3+4*cos2SigmaM*cos2SigmaM)))

	return SemiMinorAxis * A * (sigma - deltaSigma)
}

func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := units.DegreesToRadians(lat1)
	phi2 := units.DegreesToRadians(lat2)
	dPhi := phi2 - phi1
	dLambda := units.DegreesToRadians(lon2 - lon1)
	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) + math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * meanEarthRadius * math.Asin(math.Min(1, math.Sqrt(a)))
}
