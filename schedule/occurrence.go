package schedule

import "time"

// Occurrence is one concrete (start, end) instance derived from a
// Schedule. Occurrences are values: they carry no identity beyond their
// start and end, are ordered by start, and are computed on demand rather
// than persisted.
type Occurrence struct {
	// Start is the occurrence's begin time. Matching against recorded
	// outcomes is always done by this value.
	Start time.Time `json:"start"`

	// End is derived from Start and the schedule's duration policy.
	// It may extend past the end of the range that produced the
	// occurrence; only Start is range-filtered.
	End time.Time `json:"end"`

	// Schedule references the schedule that produced this occurrence.
	Schedule *Schedule `json:"-"`
}

// Duration returns the occurrence's length.
func (o Occurrence) Duration() time.Duration {
	return o.End.Sub(o.Start)
}

// Before orders occurrences by start time.
func (o Occurrence) Before(other Occurrence) bool {
	return o.Start.Before(other.Start)
}

// Equal reports whether two occurrences cover the same instant span.
func (o Occurrence) Equal(other Occurrence) bool {
	return o.Start.Equal(other.Start) && o.End.Equal(other.End)
}
