package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want, tol              float64
	}{
		{"same point", 37.0, -122.0, 37.0, -122.0, 0, 0},
		// One degree of longitude on the equator is a·π/180.
		{"equator one degree", 0, 0, 0, 1, 111.319491, 1e-3},
		// One degree of latitude from the equator (meridian arc).
		{"meridian one degree", 0, 0, 1, 0, 110.574389, 1e-3},
		// Vincenty's published Flinders Peak to Buninyong test line.
		{"flinders to buninyong", -37.95103342, 144.42486789, -37.65282114, 143.92649554, 54.972271, 1e-3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKm(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.want, got, tt.tol)
		})
	}
}

func TestDistanceKm_Symmetric(t *testing.T) {
	t.Parallel()

	ab := DistanceKm(36.0, -117.0, 40.5, -110.25)
	ba := DistanceKm(40.5, -110.25, 36.0, -117.0)
	assert.InDelta(t, ab, ba, 1e-6)
	assert.Greater(t, ab, 700.0)
	assert.Less(t, ab, 900.0)
}

func TestDistanceKm_NearlyAntipodal(t *testing.T) {
	t.Parallel()

	got := DistanceKm(0, 0, 0.5, 179.7)
	assert.InDelta(t, 19970, got, 150)
}
