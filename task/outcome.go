package task

import (
	"time"

	"github.com/google/uuid"

	"github.com/kestrelhq/cadence/props"
)

// Outcome is a completion record for one occurrence of one task version.
// It references the occurrence by its start date rather than by index, so
// the record survives schedule edits in later versions. Outcomes are
// append-only: created when a user completes an event, immutable
// thereafter, and removed only by cascading chain deletion.
type Outcome struct {
	// ID uniquely identifies the record.
	ID uuid.UUID `json:"id"`

	// ChainID is the task identity the outcome belongs to.
	ChainID string `json:"chain_id"`

	// VersionSeq is the version whose schedule produced the occurrence.
	// Matching during queries is by (ChainID, OccurrenceStart); the
	// sequence number is informational.
	VersionSeq int `json:"version_seq"`

	// OccurrenceStart is the resolved start date of the completed
	// occurrence. At most one outcome may exist per
	// (ChainID, OccurrenceStart).
	OccurrenceStart time.Time `json:"occurrence_start"`

	// CompletedAt is when the completion was recorded.
	CompletedAt time.Time `json:"completed_at"`

	// Props carries extensible typed properties captured at completion
	// (questionnaire answers, notes).
	Props *props.Bag `json:"props,omitempty"`
}

// Clone returns a deep copy of the outcome.
func (o *Outcome) Clone() *Outcome {
	if o == nil {
		return nil
	}
	out := *o
	out.Props = o.Props.Clone()
	return &out
}

// OutcomeKey is the canonical map key for outcome lookup by occurrence
// start: the start instant in UTC nanoseconds. Using an instant rather
// than a formatted string makes lookup independent of the wall-clock
// location the start was recorded in.
func OutcomeKey(start time.Time) int64 {
	return start.UTC().UnixNano()
}

// IndexOutcomes builds a lookup table from occurrence start to outcome.
func IndexOutcomes(outcomes []*Outcome) map[int64]*Outcome {
	idx := make(map[int64]*Outcome, len(outcomes))
	for _, o := range outcomes {
		idx[OutcomeKey(o.OccurrenceStart)] = o
	}
	return idx
}
