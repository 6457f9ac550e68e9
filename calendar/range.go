package calendar

import (
	"fmt"
	"time"

	cadenceerrors "github.com/kestrelhq/cadence/errors"
)

// Range is a half-open time interval [Start, End).
// Occurrence queries are always filtered by start date against a Range:
// an occurrence whose start lies inside the range is returned even when
// its end extends past Range.End.
type Range struct {
	Start time.Time
	End   time.Time
}

// NewRange constructs a Range, rejecting intervals whose end precedes
// their start.
func NewRange(start, end time.Time) (Range, error) {
	r := Range{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

// Day returns the range covering the calendar day of t:
// [StartOfDay(t), NextDay(t)).
func Day(t time.Time) Range {
	return Range{Start: StartOfDay(t), End: NextDay(t)}
}

// Validate checks that the range is well-formed.
func (r Range) Validate() error {
	if r.End.Before(r.Start) {
		return fmt.Errorf("%w: [%s, %s)", cadenceerrors.ErrInvalidRange,
			r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
	}
	return nil
}

// Contains reports whether t lies inside the half-open interval.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// IsEmpty reports whether the range covers no time at all.
func (r Range) IsEmpty() bool {
	return !r.Start.Before(r.End)
}

// Clamp intersects r with other, returning the overlapping interval.
// The result may be empty.
func (r Range) Clamp(other Range) Range {
	out := r
	if other.Start.After(out.Start) {
		out.Start = other.Start
	}
	if other.End.Before(out.End) {
		out.End = other.End
	}
	if out.End.Before(out.Start) {
		out.End = out.Start
	}
	return out
}

// String renders the range for log output.
func (r Range) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
}
