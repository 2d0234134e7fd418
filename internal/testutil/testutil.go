// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"math"
	"sync"
	"testing"

	"github.com/LLNL/coda-calibration-tool-sub005/internal/monitoring"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertWithinFraction fails the test when got differs from want by more
// than frac*|want|.
func AssertWithinFraction(t *testing.T, name string, want, got, frac float64) {
	t.Helper()
	if math.Abs(got-want) > frac*math.Abs(want) {
		t.Errorf("%s = %g, want %g within %.2f%%", name, got, want, frac*100)
	}
}

// QuietLogs mutes the monitoring loggers for the duration of the test.
func QuietLogs(t *testing.T) {
	t.Helper()
	origLogf, origDebugf := monitoring.Logf, monitoring.Debugf
	monitoring.SetLogger(nil)
	monitoring.SetDebugLogger(nil)
	t.Cleanup(func() {
		monitoring.Logf = origLogf
		monitoring.Debugf = origDebugf
	})
}

// CaptureLogs redirects monitoring.Logf into a slice for the duration of
// the test and returns a pointer to it. Only the format strings are kept.
func CaptureLogs(t *testing.T) *[]string {
	t.Helper()
	var (
		mu    sync.Mutex
		lines []string
	)
	orig := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		mu.Lock()
		lines = append(lines, format)
		mu.Unlock()
	})
	t.Cleanup(func() { monitoring.Logf = orig })
	return &lines
}

// Linspace returns n evenly spaced values from start to stop inclusive.
func Linspace(start, stop float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{start}
	}
	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}
