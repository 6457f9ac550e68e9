// Package recurrence implements the recurrence-rule evaluation engine.
//
// A Rule is an immutable, validated recurrence definition (frequency,
// interval, weekday/day-of-month constraints, end condition). Evaluating a
// rule against an anchor date yields a lazy, strictly increasing,
// duplicate-free sequence of candidate dates via Iterator. Expansion is
// backed by github.com/teambition/rrule-go; rules are never eagerly
// materialized, so indefinite schedules stay cheap.
package recurrence

import (
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	cadenceerrors "github.com/kestrelhq/cadence/errors"
)

// Frequency identifies the base cadence of a rule.
type Frequency string

// Supported frequencies. FrequencyCustom carries a raw RFC 5545 RRULE
// string for shapes the simple fields cannot express.
const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyCustom  Frequency = "custom"
)

// EndKind discriminates the rule's end condition.
type EndKind string

// End condition kinds.
const (
	EndKindNever EndKind = "never"
	EndKindCount EndKind = "count"
	EndKindUntil EndKind = "until"
)

// End is a rule's end condition: never, after a fixed number of
// occurrences counted from the rule's own anchor, or after a date.
type End struct {
	Kind  EndKind
	Count int
	Until time.Time
}

// EndNever returns the open-ended end condition.
func EndNever() End { return End{Kind: EndKindNever} }

// EndAfter returns an end condition that stops after n occurrences.
// The count is always anchored at the rule's own start date, never at a
// query range's lower bound.
func EndAfter(n int) End { return End{Kind: EndKindCount, Count: n} }

// EndUntil returns an end condition that stops at the given date
// (inclusive).
func EndUntil(t time.Time) End { return End{Kind: EndKindUntil, Until: t} }

func (e End) validate() error {
	switch e.Kind {
	case EndKindNever:
		return nil
	case EndKindCount:
		if e.Count < 1 {
			return fmt.Errorf("%w: count %d", cadenceerrors.ErrInvalidEndCondition, e.Count)
		}
		return nil
	case EndKindUntil:
		if e.Until.IsZero() {
			return fmt.Errorf("%w: zero until date", cadenceerrors.ErrInvalidEndCondition)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", cadenceerrors.ErrInvalidEndCondition, e.Kind)
	}
}

// Equal reports whether two end conditions are identical.
func (e End) Equal(other End) bool {
	if e.Kind != other.Kind {
		return false
	}
	switch e.Kind {
	case EndKindCount:
		return e.Count == other.Count
	case EndKindUntil:
		return e.Until.Equal(other.Until)
	default:
		return true
	}
}

// Spec is the construction input for a Rule. All fields except Frequency
// are optional; Interval defaults to 1.
type Spec struct {
	// Frequency is the base cadence (daily, weekly, monthly, custom).
	Frequency Frequency

	// Interval is the positive step between periods (every N days/weeks/
	// months). Zero is treated as 1; negative values are rejected.
	Interval int

	// Weekdays restricts candidates to the given weekdays.
	Weekdays []time.Weekday

	// MonthDays restricts candidates to the given days of the month.
	MonthDays []int

	// End is the rule's end condition. The zero value means never.
	End End

	// RRule carries the raw RRULE text for FrequencyCustom rules.
	// Ignored for other frequencies.
	RRule string
}

// Rule is a validated, immutable recurrence definition.
// Construct with New; the zero value is not usable.
type Rule struct {
	spec Spec
}

// New validates spec and returns a Rule.
//
// Validation failures (interval < 1, unknown frequency, unsatisfiable end
// condition, unparseable custom RRULE) are rejected at construction and
// never silently clamped.
func New(spec Spec) (*Rule, error) {
	if spec.Interval == 0 {
		spec.Interval = 1
	}
	if spec.Interval < 1 {
		return nil, fmt.Errorf("%w: got %d", cadenceerrors.ErrInvalidInterval, spec.Interval)
	}
	if spec.End.Kind == "" {
		spec.End = EndNever()
	}
	if err := spec.End.validate(); err != nil {
		return nil, err
	}

	switch spec.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		for _, d := range spec.MonthDays {
			if d < 1 || d > 31 {
				return nil, fmt.Errorf("%w: month day %d", cadenceerrors.ErrValueOutOfRange, d)
			}
		}
	case FrequencyCustom:
		if spec.RRule == "" {
			return nil, fmt.Errorf("%w: custom frequency requires an rrule string", cadenceerrors.ErrInvalidRule)
		}
		if _, err := rrule.StrToRRule(spec.RRule); err != nil {
			return nil, fmt.Errorf("%w: %q: %s", cadenceerrors.ErrInvalidRule, spec.RRule, err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", cadenceerrors.ErrInvalidFrequency, spec.Frequency)
	}

	// Normalize constraint order so Equal and serialization are stable.
	spec.Weekdays = append([]time.Weekday(nil), spec.Weekdays...)
	sort.Slice(spec.Weekdays, func(i, j int) bool { return spec.Weekdays[i] < spec.Weekdays[j] })
	spec.MonthDays = append([]int(nil), spec.MonthDays...)
	sort.Ints(spec.MonthDays)

	return &Rule{spec: spec}, nil
}

// MustNew is New for rules known valid at compile time. Panics on error;
// intended for tests and fixtures.
func MustNew(spec Spec) *Rule {
	r, err := New(spec)
	if err != nil {
		panic(err)
	}
	return r
}

// Spec returns a copy of the rule's validated definition.
func (r *Rule) Spec() Spec {
	out := r.spec
	out.Weekdays = append([]time.Weekday(nil), r.spec.Weekdays...)
	out.MonthDays = append([]int(nil), r.spec.MonthDays...)
	return out
}

// Frequency returns the rule's base cadence.
func (r *Rule) Frequency() Frequency { return r.spec.Frequency }

// Interval returns the rule's step between periods.
func (r *Rule) Interval() int { return r.spec.Interval }

// End returns the rule's end condition.
func (r *Rule) End() End { return r.spec.End }

// Equal reports whether two rules have identical definitions.
// Nil rules compare equal to each other only.
func (r *Rule) Equal(other *Rule) bool {
	if r == nil || other == nil {
		return r == other
	}
	a, b := r.spec, other.spec
	if a.Frequency != b.Frequency || a.Interval != b.Interval || a.RRule != b.RRule {
		return false
	}
	if !a.End.Equal(b.End) {
		return false
	}
	if len(a.Weekdays) != len(b.Weekdays) || len(a.MonthDays) != len(b.MonthDays) {
		return false
	}
	for i := range a.Weekdays {
		if a.Weekdays[i] != b.Weekdays[i] {
			return false
		}
	}
	for i := range a.MonthDays {
		if a.MonthDays[i] != b.MonthDays[i] {
			return false
		}
	}
	return true
}

// rruleWeekdays maps time.Weekday (Sunday = 0) onto rrule weekday values.
var rruleWeekdays = [7]rrule.Weekday{
	rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA,
}

// build compiles the rule into an rrule evaluator anchored at the given
// date. Anchors the calendar cannot represent fail with ErrCalendar; this
// is fatal to the single query that supplied the anchor, not to the rule.
func (r *Rule) build(anchor time.Time) (*rrule.RRule, error) {
	if r.spec.Frequency == FrequencyCustom {
		rr, err := rrule.StrToRRule(r.spec.RRule)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", cadenceerrors.ErrInvalidRule, err)
		}
		rr.DTStart(anchor)
		return rr, nil
	}

	opt := rrule.ROption{
		Interval: r.spec.Interval,
		Dtstart:  anchor,
	}
	switch r.spec.Frequency {
	case FrequencyDaily:
		opt.Freq = rrule.DAILY
	case FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
	case FrequencyMonthly:
		opt.Freq = rrule.MONTHLY
	}
	for _, wd := range r.spec.Weekdays {
		opt.Byweekday = append(opt.Byweekday, rruleWeekdays[wd])
	}
	opt.Bymonthday = append(opt.Bymonthday, r.spec.MonthDays...)
	switch r.spec.End.Kind {
	case EndKindCount:
		opt.Count = r.spec.End.Count
	case EndKindUntil:
		opt.Until = r.spec.End.Until
	}

	rr, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", cadenceerrors.ErrCalendar, err)
	}
	return rr, nil
}
