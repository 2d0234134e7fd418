package testutil

import (
	"errors"
	"testing"

	"github.com/LLNL/coda-calibration-tool-sub005/internal/monitoring"
	"github.com/stretchr/testify/assert"
)

func TestAssertHelpers(t *testing.T) {
	AssertNoError(t, nil)
	AssertError(t, errors.New("boom"))
	AssertWithinFraction(t, "v0", 3.0, 3.05, 0.02)
}

func TestLinspace(t *testing.T) {
	assert.Equal(t, []float64{0, 0.5, 1}, Linspace(0, 1, 3))
	assert.Equal(t, []float64{7}, Linspace(7, 9, 1))
	assert.Nil(t, Linspace(0, 1, 0))
}

func TestCaptureLogs(t *testing.T) {
	lines := CaptureLogs(t)
	monitoring.Logf("[Test] hello %d", 1)
	assert.Equal(t, []string{"[Test] hello %d"}, *lines)
}

func TestQuietLogs(t *testing.T) {
	QuietLogs(t)
	assert.NotPanics(t, func() { monitoring.Logf("muted") })
}
