package recurrence

import (
	"encoding/json"
	"fmt"
	"time"

	cadenceerrors "github.com/kestrelhq/cadence/errors"
)

// ruleJSON is the persisted wire shape of a Rule. Field names use
// snake_case to match the rest of the stored documents.
type ruleJSON struct {
	Frequency Frequency `json:"frequency"`
	Interval  int       `json:"interval"`
	Weekdays  []int     `json:"weekdays,omitempty"`
	MonthDays []int     `json:"month_days,omitempty"`
	End       endJSON   `json:"end"`
	RRule     string    `json:"rrule,omitempty"`
}

type endJSON struct {
	Type  EndKind    `json:"type"`
	Count int        `json:"count,omitempty"`
	Until *time.Time `json:"until,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r *Rule) MarshalJSON() ([]byte, error) {
	doc := ruleJSON{
		Frequency: r.spec.Frequency,
		Interval:  r.spec.Interval,
		MonthDays: r.spec.MonthDays,
		RRule:     r.spec.RRule,
		End:       endJSON{Type: r.spec.End.Kind},
	}
	for _, wd := range r.spec.Weekdays {
		doc.Weekdays = append(doc.Weekdays, int(wd))
	}
	switch r.spec.End.Kind {
	case EndKindCount:
		doc.End.Count = r.spec.End.Count
	case EndKindUntil:
		u := r.spec.End.Until
		doc.End.Until = &u
	}
	return json.Marshal(doc)
}

// UnmarshalJSON implements json.Unmarshaler. The decoded definition is
// re-validated through New, so a corrupt stored rule surfaces as
// ErrDecoding instead of silently producing an empty schedule.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var doc ruleJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: rule: %s", cadenceerrors.ErrDecoding, err)
	}
	spec := Spec{
		Frequency: doc.Frequency,
		Interval:  doc.Interval,
		MonthDays: doc.MonthDays,
		RRule:     doc.RRule,
	}
	for _, wd := range doc.Weekdays {
		if wd < 0 || wd > 6 {
			return fmt.Errorf("%w: rule: weekday %d", cadenceerrors.ErrDecoding, wd)
		}
		spec.Weekdays = append(spec.Weekdays, time.Weekday(wd))
	}
	switch doc.End.Type {
	case EndKindNever, "":
		spec.End = EndNever()
	case EndKindCount:
		spec.End = EndAfter(doc.End.Count)
	case EndKindUntil:
		if doc.End.Until == nil {
			return fmt.Errorf("%w: rule: until end condition without date", cadenceerrors.ErrDecoding)
		}
		spec.End = EndUntil(*doc.End.Until)
	default:
		return fmt.Errorf("%w: rule: unknown end type %q", cadenceerrors.ErrDecoding, doc.End.Type)
	}
	built, err := New(spec)
	if err != nil {
		return fmt.Errorf("%w: rule: %s", cadenceerrors.ErrDecoding, err)
	}
	*r = *built
	return nil
}
