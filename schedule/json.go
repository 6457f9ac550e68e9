package schedule

import (
	"encoding/json"
	"fmt"
	"time"

	cadenceerrors "github.com/kestrelhq/cadence/errors"
	"github.com/kestrelhq/cadence/recurrence"
)

// scheduleJSON is the persisted wire shape of a Schedule.
type scheduleJSON struct {
	Start           time.Time        `json:"start"`
	Policy          Policy           `json:"policy"`
	DurationSeconds int64            `json:"duration_seconds,omitempty"`
	Rule            *recurrence.Rule `json:"rule,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (s *Schedule) MarshalJSON() ([]byte, error) {
	return json.Marshal(scheduleJSON{
		Start:           s.start,
		Policy:          s.policy,
		DurationSeconds: int64(s.duration / time.Second),
		Rule:            s.rule,
	})
}

// UnmarshalJSON implements json.Unmarshaler. The decoded definition is
// re-validated through New, so a corrupt stored schedule surfaces as
// ErrDecoding rather than an empty schedule.
func (s *Schedule) UnmarshalJSON(data []byte) error {
	var doc scheduleJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: schedule: %s", cadenceerrors.ErrDecoding, err)
	}
	built, err := New(doc.Start, doc.Policy, time.Duration(doc.DurationSeconds)*time.Second, doc.Rule)
	if err != nil {
		return fmt.Errorf("%w: schedule: %s", cadenceerrors.ErrDecoding, err)
	}
	*s = *built
	return nil
}
