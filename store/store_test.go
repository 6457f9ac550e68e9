package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/cadence/recurrence"
	"github.com/kestrelhq/cadence/schedule"
	"github.com/kestrelhq/cadence/task"
)

func at(d, hour int) time.Time {
	return time.Date(2026, 3, d, hour, 0, 0, 0, time.UTC)
}

func testSchedule(t *testing.T, hour int) *schedule.Schedule {
	t.Helper()
	rule := recurrence.MustNew(recurrence.Spec{Frequency: recurrence.FrequencyDaily})
	s, err := schedule.New(at(2, hour), schedule.PolicyFixedDuration, 30*time.Minute, rule)
	require.NoError(t, err)
	return s
}

func testVersion(t *testing.T, chainID string, seq int) *task.Version {
	t.Helper()
	return &task.Version{
		ChainID:       chainID,
		Seq:           seq,
		Title:         "Water plants",
		Schedule:      testSchedule(t, 9),
		EffectiveFrom: at(2, 9),
		CreatedAt:     at(1, 12),
	}
}

func testOutcome(chainID string, start time.Time) *task.Outcome {
	return &task.Outcome{
		ID:              uuid.New(),
		ChainID:         chainID,
		VersionSeq:      1,
		OccurrenceStart: start,
		CompletedAt:     at(3, 10),
	}
}
