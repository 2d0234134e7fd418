package timeutil

import (
	"math"
	"time"
)

// EpochSeconds converts t to fractional seconds since the Unix epoch. The
// whole seconds and the nanosecond fraction are converted separately so a
// present-day time keeps sub-microsecond precision.
func EpochSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/float64(time.Second)
}

// FromEpochSeconds converts fractional epoch seconds back to a UTC time.
// Sub-nanosecond precision is rounded away.
func FromEpochSeconds(s float64) time.Time {
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(math.Round(frac*float64(time.Second)))).UTC()
}

// AddSeconds offsets t by a fractional number of seconds.
func AddSeconds(t time.Time, s float64) time.Time {
	return t.Add(Seconds(s))
}

// Seconds converts fractional seconds to a Duration, rounded to the nanosecond.
func Seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

// SecondsBetween returns b - a in fractional seconds.
func SecondsBetween(a, b time.Time) float64 {
	return b.Sub(a).Seconds()
}
