package recurrence

import (
	"time"

	"github.com/kestrelhq/cadence/calendar"
)

// Iterator is a restartable, pull-based cursor over a rule's candidate
// dates. Each call to Next returns the next candidate in strictly
// increasing order; the sequence honors the rule's own end condition and,
// when a limit range was supplied, stops once candidates leave the range.
//
// An Iterator is single-use and not safe for concurrent use. Construct a
// fresh one (Rule.Iterate) to restart the sequence.
type Iterator struct {
	next  func() (time.Time, bool)
	limit *calendar.Range
	last  time.Time
	begun bool
	done  bool
}

// Iterate evaluates the rule from the given anchor, optionally
// intersected with limit. Candidates before limit.Start are skipped but
// still consume the rule's own occurrence count: an "after N occurrences"
// end condition counts from the anchor, never from limit.Start.
//
// A nil limit yields the rule's full (potentially infinite) sequence.
func (r *Rule) Iterate(anchor time.Time, limit *calendar.Range) (*Iterator, error) {
	if err := calendar.ValidateAnchor(anchor); err != nil {
		return nil, err
	}
	if limit != nil {
		if err := limit.Validate(); err != nil {
			return nil, err
		}
	}
	rr, err := r.build(anchor)
	if err != nil {
		return nil, err
	}
	return &Iterator{next: rr.Iterator(), limit: limit}, nil
}

// Next returns the next candidate date. The second return value is false
// once the sequence is exhausted; further calls keep returning false.
func (it *Iterator) Next() (time.Time, bool) {
	for !it.done {
		t, ok := it.next()
		if !ok {
			it.done = true
			break
		}
		// Guard against equal candidates so the sequence stays strictly
		// increasing even for overlapping custom constraints.
		if it.begun && !t.After(it.last) {
			continue
		}
		if it.limit != nil {
			if t.Before(it.limit.Start) {
				it.begun = true
				it.last = t
				continue
			}
			if !t.Before(it.limit.End) {
				it.done = true
				break
			}
		}
		it.begun = true
		it.last = t
		return t, true
	}
	return time.Time{}, false
}

// Collect drains up to max candidates into a slice. A max of zero or less
// collects until the sequence ends; callers must only do that for rules
// with a finite end condition or a limit range.
func (it *Iterator) Collect(max int) []time.Time {
	var out []time.Time
	for {
		if max > 0 && len(out) >= max {
			return out
		}
		t, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, t)
	}
}
