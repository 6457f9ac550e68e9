// Package schedule wraps a recurrence rule with an occurrence duration
// policy and a start date, and exposes occurrence lookup by date range,
// by single day, by exact start, and "next after" queries.
//
// All operations are pure functions of the schedule's immutable fields:
// no mutation, no I/O, fully deterministic. A "changed" schedule is
// represented by creating a new task version, never by mutating in place.
package schedule

import (
	"fmt"
	"time"

	"github.com/kestrelhq/cadence/calendar"
	cadenceerrors "github.com/kestrelhq/cadence/errors"
	"github.com/kestrelhq/cadence/recurrence"
)

// Policy determines how each occurrence's (start, end) pair is resolved
// from a raw candidate date.
type Policy string

// Duration policies.
const (
	// PolicyAllDay normalizes the start to midnight and ends the
	// occurrence at the last second of the day.
	PolicyAllDay Policy = "all_day"

	// PolicyTillEndOfDay keeps the candidate start and ends the
	// occurrence at the last second of the candidate's day.
	PolicyTillEndOfDay Policy = "till_end_of_day"

	// PolicyFixedDuration keeps the candidate start and ends the
	// occurrence a fixed duration later.
	PolicyFixedDuration Policy = "fixed_duration"
)

// maxScan bounds how many raw candidates a point lookup will examine
// before giving up, so open-ended rules cannot spin forever.
const maxScan = 10000

// Schedule is an immutable occurrence generator: a start date, a duration
// policy, and an optional recurrence rule. Without a rule the schedule
// has exactly one occurrence, at its start date.
type Schedule struct {
	start    time.Time
	policy   Policy
	duration time.Duration
	rule     *recurrence.Rule
}

// New constructs a Schedule. For PolicyAllDay the start date is
// normalized to the start of its day, so any time-of-day on the same day
// produces an identical schedule. PolicyFixedDuration requires a positive
// whole-second duration, matching the second granularity of the stored
// form; the other policies ignore it.
func New(start time.Time, policy Policy, duration time.Duration, rule *recurrence.Rule) (*Schedule, error) {
	if err := calendar.ValidateAnchor(start); err != nil {
		return nil, err
	}
	switch policy {
	case PolicyAllDay:
		start = calendar.StartOfDay(start)
		duration = 0
	case PolicyTillEndOfDay:
		duration = 0
	case PolicyFixedDuration:
		if duration <= 0 {
			return nil, fmt.Errorf("%w: fixed duration %s", cadenceerrors.ErrInvalidDuration, duration)
		}
		if duration%time.Second != 0 {
			return nil, fmt.Errorf("%w: fixed duration %s is not a whole number of seconds",
				cadenceerrors.ErrInvalidDuration, duration)
		}
	default:
		return nil, fmt.Errorf("%w: unknown policy %q", cadenceerrors.ErrInvalidDuration, policy)
	}
	return &Schedule{start: start, policy: policy, duration: duration, rule: rule}, nil
}

// Start returns the schedule's (normalized) start date.
func (s *Schedule) Start() time.Time { return s.start }

// DurationPolicy returns the schedule's duration policy.
func (s *Schedule) DurationPolicy() Policy { return s.policy }

// FixedDuration returns the duration for PolicyFixedDuration schedules,
// and zero otherwise.
func (s *Schedule) FixedDuration() time.Duration { return s.duration }

// Rule returns the schedule's recurrence rule, or nil for one-shot
// schedules.
func (s *Schedule) Rule() *recurrence.Rule { return s.rule }

// Equal reports whether two schedules are definitionally identical.
// Used for no-op detection on task updates.
func (s *Schedule) Equal(other *Schedule) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.start.Equal(other.start) &&
		s.policy == other.policy &&
		s.duration == other.duration &&
		s.rule.Equal(other.rule)
}

// resolve applies the duration policy to a raw candidate date.
func (s *Schedule) resolve(candidate time.Time) Occurrence {
	switch s.policy {
	case PolicyAllDay:
		start := calendar.StartOfDay(candidate)
		return Occurrence{Start: start, End: calendar.EndOfDay(start), Schedule: s}
	case PolicyTillEndOfDay:
		return Occurrence{Start: candidate, End: calendar.EndOfDay(candidate), Schedule: s}
	default:
		return Occurrence{Start: candidate, End: candidate.Add(s.duration), Schedule: s}
	}
}

// OccurrencesIn returns all occurrences whose start falls inside r,
// ordered ascending and duplicate-free. An occurrence's end may extend
// past r.End; only the start is range-filtered.
func (s *Schedule) OccurrencesIn(r calendar.Range) ([]Occurrence, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if s.rule == nil {
		occ := s.resolve(s.start)
		if r.Contains(occ.Start) {
			return []Occurrence{occ}, nil
		}
		return nil, nil
	}

	// All-day resolution shifts starts back to midnight, so a candidate
	// just past r.End can still resolve into the range. Widen the
	// iteration window by a day and filter on the resolved start.
	limit := r
	if s.policy == PolicyAllDay {
		limit.End = calendar.NextDay(r.End)
	}

	it, err := s.rule.Iterate(s.start, &limit)
	if err != nil {
		return nil, err
	}
	var out []Occurrence
	for len(out) < maxScan {
		candidate, ok := it.Next()
		if !ok {
			break
		}
		occ := s.resolve(candidate)
		if !r.Contains(occ.Start) {
			continue
		}
		// Two candidates on the same day resolve to one all-day
		// occurrence; keep the sequence duplicate-free.
		if n := len(out); n > 0 && !occ.Start.After(out[n-1].Start) {
			continue
		}
		out = append(out, occ)
	}
	return out, nil
}

// OccurrencesOn returns the occurrences starting on the calendar day
// of t.
func (s *Schedule) OccurrencesOn(t time.Time) ([]Occurrence, error) {
	return s.OccurrencesIn(calendar.Day(t))
}

// OccurrenceAt returns the occurrence whose resolved start equals start
// exactly. Used to rehydrate an outcome's occurrence from its recorded
// start date. Returns ErrOccurrenceNotFound when the schedule never
// produces that start.
func (s *Schedule) OccurrenceAt(start time.Time) (Occurrence, error) {
	if s.rule == nil {
		occ := s.resolve(s.start)
		if occ.Start.Equal(start) {
			return occ, nil
		}
		return Occurrence{}, fmt.Errorf("%w: no occurrence at %s",
			cadenceerrors.ErrOccurrenceNotFound, start.Format(time.RFC3339))
	}
	it, err := s.rule.Iterate(s.start, nil)
	if err != nil {
		return Occurrence{}, err
	}
	for i := 0; i < maxScan; i++ {
		candidate, ok := it.Next()
		if !ok {
			break
		}
		occ := s.resolve(candidate)
		if occ.Start.Equal(start) {
			return occ, nil
		}
		// Resolved starts are nondecreasing; once past the target the
		// match cannot appear later.
		if occ.Start.After(start) {
			break
		}
	}
	return Occurrence{}, fmt.Errorf("%w: no occurrence at %s",
		cadenceerrors.ErrOccurrenceNotFound, start.Format(time.RFC3339))
}

// NextOccurrence returns the first occurrence whose start is at or after
// from. Returns ErrOccurrenceNotFound when the rule is exhausted first.
func (s *Schedule) NextOccurrence(from time.Time) (Occurrence, error) {
	if s.rule == nil {
		occ := s.resolve(s.start)
		if !occ.Start.Before(from) {
			return occ, nil
		}
		return Occurrence{}, fmt.Errorf("%w: none after %s",
			cadenceerrors.ErrOccurrenceNotFound, from.Format(time.RFC3339))
	}
	it, err := s.rule.Iterate(s.start, nil)
	if err != nil {
		return Occurrence{}, err
	}
	for i := 0; i < maxScan; i++ {
		candidate, ok := it.Next()
		if !ok {
			break
		}
		if occ := s.resolve(candidate); !occ.Start.Before(from) {
			return occ, nil
		}
	}
	return Occurrence{}, fmt.Errorf("%w: none after %s",
		cadenceerrors.ErrOccurrenceNotFound, from.Format(time.RFC3339))
}
