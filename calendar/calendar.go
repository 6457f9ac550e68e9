// Package calendar provides calendar-aware date arithmetic for the
// occurrence engine: start/end-of-day normalization, day stepping, and
// component validation. All helpers are timezone-aware and operate in the
// location of their input time.
//
// This package MUST NOT import any other cadence packages except errors.
package calendar

import (
	"fmt"
	"time"

	cadenceerrors "github.com/kestrelhq/cadence/errors"
)

// maxYear is the largest year the engine will do arithmetic for.
// Matches the RFC 5545 recurrence ceiling.
const maxYear = 9999

// StartOfDay returns t truncated to midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable second of t's day (23:59:59)
// in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}

// NextDay returns midnight of the day after t.
// Uses date components rather than Add(24h) so DST transitions do not
// shift the result off midnight.
func NextDay(t time.Time) time.Time {
	return AddDays(StartOfDay(t), 1)
}

// AddDays adds n calendar days to t, preserving the time of day.
func AddDays(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	return time.Date(y, m, d+n, hh, mm, ss, t.Nanosecond(), t.Location())
}

// SameDay reports whether a and b fall on the same calendar day in a's
// location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Date constructs a time from explicit components, validating that the
// combination is representable. Unlike time.Date, which silently
// normalizes (February 30 becomes March 1 or 2), Date rejects component
// combinations the calendar cannot express.
func Date(year int, month time.Month, day, hour, min, sec int, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if year < 1 || year > maxYear {
		return time.Time{}, fmt.Errorf("%w: year %d", cadenceerrors.ErrCalendar, year)
	}
	t := time.Date(year, month, day, hour, min, sec, 0, loc)
	ny, nm, nd := t.Date()
	if ny != year || nm != month || nd != day {
		return time.Time{}, fmt.Errorf("%w: %04d-%02d-%02d does not exist", cadenceerrors.ErrCalendar, year, month, day)
	}
	return t, nil
}

// ValidateAnchor reports whether t can serve as a recurrence anchor.
// Zero times and out-of-range years fail with ErrCalendar.
func ValidateAnchor(t time.Time) error {
	if t.IsZero() {
		return fmt.Errorf("%w: zero anchor date", cadenceerrors.ErrCalendar)
	}
	if y := t.Year(); y < 1 || y > maxYear {
		return fmt.Errorf("%w: anchor year %d out of range", cadenceerrors.ErrCalendar, y)
	}
	return nil
}
