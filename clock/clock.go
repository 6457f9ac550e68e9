// Package clock provides an abstraction for time operations to improve
// testability. Instead of calling time.Now() directly, code can use the
// Clock interface which can be substituted in tests to control
// time-dependent behavior such as completion timestamps.
package clock

import "time"

// Clock is an interface for time operations.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// RealClock implements Clock using the actual system time.
type RealClock struct{}

// Now returns the current time from the system clock.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Fixed returns a Clock that always reports t.
// Intended for tests and deterministic replay.
func Fixed(t time.Time) Clock {
	return fixedClock{t: t}
}

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time {
	return c.t
}

// Ensure implementations satisfy Clock.
var (
	_ Clock = RealClock{}
	_ Clock = fixedClock{}
)
