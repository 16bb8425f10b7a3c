package core

import "time"

// DurationMeasurement tracks the elapsed time of one invocation.
// The start reading carries Go's monotonic clock, so Elapsed is unaffected
// by wall-clock adjustments.
type DurationMeasurement struct {
	start time.Time
}

// StartDurationMeasurement starts a new measurement.
func StartDurationMeasurement() DurationMeasurement {
	return DurationMeasurement{start: time.Now()}
}

// StartTime returns the wall-clock start time, stripped of the monotonic
// reading so it compares and serializes as a plain timestamp.
func (d DurationMeasurement) StartTime() time.Time {
	return d.start.Round(0)
}

// Elapsed returns the monotonic time since the measurement started.
func (d DurationMeasurement) Elapsed() time.Duration {
	return time.Since(d.start)
}

// DurationMs returns Elapsed in whole milliseconds.
func (d DurationMeasurement) DurationMs() int64 {
	return d.Elapsed().Milliseconds()
}
