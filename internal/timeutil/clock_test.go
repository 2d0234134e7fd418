package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	assert.False(t, now.Before(before) || now.After(after), "RealClock.Now() = %v, want between %v and %v", now, before, after)
}

func TestRealClock_Since(t *testing.T) {
	clock := RealClock{}
	past := time.Now().Add(-time.Hour)
	assert.GreaterOrEqual(t, clock.Since(past), time.Hour)
}

func TestMockClock_SetAndAdvance(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	assert.Equal(t, start, clock.Now())

	clock.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), clock.Now())
	assert.Equal(t, 90*time.Second, clock.Since(start))

	later := start.Add(24 * time.Hour)
	clock.Set(later)
	assert.Equal(t, later, clock.Now())
}

func TestEpochSecondsRoundTrip(t *testing.T) {
	ts := time.Date(2017, 6, 12, 3, 4, 5, 250_000_000, time.UTC)

	s := EpochSeconds(ts)
	assert.InDelta(t, float64(ts.Unix())+0.25, s, 1e-6)
	assert.WithinDuration(t, ts, FromEpochSeconds(s), time.Microsecond)
}

func TestEpochSecondsKeepsSubMicrosecondPrecision(t *testing.T) {
	for _, ts := range []time.Time{
		time.Date(2017, 6, 12, 3, 4, 5, 123_456_789, time.UTC),
		time.Date(2024, 1, 31, 23, 59, 59, 999_999_001, time.UTC),
		time.Date(1969, 12, 31, 23, 59, 58, 500_000_000, time.UTC),
	} {
		s := EpochSeconds(ts)
		assert.InDelta(t, float64(ts.Nanosecond())/1e9, s-float64(ts.Unix()), 1e-6, ts.String())
		assert.WithinDuration(t, ts, FromEpochSeconds(s), time.Microsecond, ts.String())
	}
}

func TestAddSecondsAndSecondsBetween(t *testing.T) {
	origin := time.Date(2020, 2, 2, 12, 0, 0, 0, time.UTC)

	shifted := AddSeconds(origin, 12.5)
	assert.Equal(t, origin.Add(12500*time.Millisecond), shifted)
	assert.InDelta(t, 12.5, SecondsBetween(origin, shifted), 1e-9)
	assert.InDelta(t, -12.5, SecondsBetween(shifted, origin), 1e-9)
	assert.Equal(t, -1500*time.Millisecond, Seconds(-1.5))
}
