package units

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetersToKilometers(t *testing.T) {
	assert.Equal(t, 1.5, MetersToKilometers(1500))
}

func TestTravelTimeSeconds(t *testing.T) {
	assert.Equal(t, 100.0, TravelTimeSeconds(350, 3.5))
	assert.Equal(t, 0.0, TravelTimeSeconds(350, 0))
}

func TestLog10AmplitudeAndRadians(t *testing.T) {
	assert.InDelta(t, 2.0, Log10Amplitude(100), 1e-12)
	assert.True(t, math.IsInf(Log10Amplitude(0), -1))
	assert.InDelta(t, math.Pi/2, DegreesToRadians(90), 1e-12)
}
