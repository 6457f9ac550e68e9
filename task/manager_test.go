package task_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/cadence/clock"
	cadenceerrors "github.com/kestrelhq/cadence/errors"
	"github.com/kestrelhq/cadence/props"
	"github.com/kestrelhq/cadence/recurrence"
	"github.com/kestrelhq/cadence/schedule"
	"github.com/kestrelhq/cadence/store"
	"github.com/kestrelhq/cadence/task"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func at(d, hour int) time.Time {
	return time.Date(2026, 3, d, hour, 0, 0, 0, time.UTC)
}

func dailySchedule(t *testing.T, startDay, hour int) *schedule.Schedule {
	t.Helper()
	rule := recurrence.MustNew(recurrence.Spec{Frequency: recurrence.FrequencyDaily})
	s, err := schedule.New(at(startDay, hour), schedule.PolicyFixedDuration, 30*time.Minute, rule)
	require.NoError(t, err)
	return s
}

func newManager(t *testing.T) *task.Manager {
	t.Helper()
	m, err := task.NewManager(store.NewMemoryStore(), clock.Fixed(testNow), zerolog.Nop())
	require.NoError(t, err)
	return m
}

func createTask(t *testing.T, m *task.Manager, chainID string) *task.Version {
	t.Helper()
	v, err := m.Create(context.Background(), task.NewTask{
		ChainID:  chainID,
		Title:    "Water plants",
		Schedule: dailySchedule(t, 2, 9),
	})
	require.NoError(t, err)
	return v
}

func TestNewManagerRequiresStore(t *testing.T) {
	_, err := task.NewManager(nil, nil, zerolog.Nop())
	require.Error(t, err)
	assert.ErrorIs(t, err, cadenceerrors.ErrEmptyValue)
}

func TestCreate(t *testing.T) {
	m := newManager(t)

	v := createTask(t, m, "chain-plants")
	assert.Equal(t, "chain-plants", v.ChainID)
	assert.Equal(t, 1, v.Seq)
	assert.True(t, at(2, 9).Equal(v.EffectiveFrom), "effective-from defaults to the schedule start")
	assert.True(t, testNow.Equal(v.CreatedAt))
}

func TestCreateGeneratesChainID(t *testing.T) {
	m := newManager(t)

	v, err := m.Create(context.Background(), task.NewTask{
		Title:    "Water plants",
		Schedule: dailySchedule(t, 2, 9),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(v.ChainID, "chain-"))
}

func TestCreateValidation(t *testing.T) {
	m := newManager(t)

	tests := []struct {
		name    string
		in      task.NewTask
		wantErr error
	}{
		{
			name:    "empty title",
			in:      task.NewTask{Schedule: dailySchedule(t, 2, 9)},
			wantErr: cadenceerrors.ErrEmptyValue,
		},
		{
			name:    "missing schedule",
			in:      task.NewTask{Title: "Water plants"},
			wantErr: cadenceerrors.ErrEmptyValue,
		},
		{
			name:    "invalid chain id",
			in:      task.NewTask{ChainID: "bad id!", Title: "Water plants", Schedule: dailySchedule(t, 2, 9)},
			wantErr: cadenceerrors.ErrInvalidChainID,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Create(context.Background(), tt.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreateDuplicateChain(t *testing.T) {
	m := newManager(t)
	createTask(t, m, "chain-plants")

	_, err := m.Create(context.Background(), task.NewTask{
		ChainID:  "chain-plants",
		Title:    "Water plants",
		Schedule: dailySchedule(t, 2, 9),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, cadenceerrors.ErrChainExists)
}

func TestUpdateAppendsVersion(t *testing.T) {
	m := newManager(t)
	createTask(t, m, "chain-plants")

	title := "Water all plants"
	v, err := m.Update(context.Background(), "chain-plants", task.Update{
		Title:         &title,
		EffectiveFrom: at(5, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, v.Seq)
	assert.Equal(t, "Water all plants", v.Title)
	assert.True(t, at(5, 0).Equal(v.EffectiveFrom))

	history, err := m.History(context.Background(), "chain-plants")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestUpdateCarriesFieldsForward(t *testing.T) {
	m := newManager(t)
	_, err := m.Create(context.Background(), task.NewTask{
		ChainID:      "chain-plants",
		Title:        "Water plants",
		Instructions: "use rain water",
		Category:     "garden",
		Schedule:     dailySchedule(t, 2, 9),
	})
	require.NoError(t, err)

	v, err := m.Update(context.Background(), "chain-plants", task.Update{
		Schedule:      dailySchedule(t, 2, 17),
		EffectiveFrom: at(5, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, "Water plants", v.Title)
	assert.Equal(t, "use rain water", v.Instructions)
	assert.Equal(t, "garden", v.Category)
}

func TestUpdateNoOpReturnsCurrentVersion(t *testing.T) {
	m := newManager(t)
	createTask(t, m, "chain-plants")

	sameTitle := "Water plants"
	v, err := m.Update(context.Background(), "chain-plants", task.Update{
		Title:         &sameTitle,
		EffectiveFrom: at(5, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, v.Seq, "a change-free update appends nothing")

	history, err := m.History(context.Background(), "chain-plants")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestUpdateRequiresLaterEffectiveFrom(t *testing.T) {
	m := newManager(t)
	createTask(t, m, "chain-plants")

	title := "New title"
	_, err := m.Update(context.Background(), "chain-plants", task.Update{
		Title:         &title,
		EffectiveFrom: at(2, 9), // Equal to the current version's date.
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, cadenceerrors.ErrValueOutOfRange)

	_, err = m.Update(context.Background(), "chain-plants", task.Update{Title: &title})
	require.Error(t, err)
	assert.ErrorIs(t, err, cadenceerrors.ErrEmptyValue)
}

func TestUpdateRejectsShadowedOutcome(t *testing.T) {
	m := newManager(t)
	createTask(t, m, "chain-plants")

	_, err := m.Complete(context.Background(), "chain-plants", at(3, 9), nil)
	require.NoError(t, err)

	title := "New title"

	// Effective at the completed occurrence's start: rejected.
	_, err = m.Update(context.Background(), "chain-plants", task.Update{
		Title:         &title,
		EffectiveFrom: at(3, 9),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, cadenceerrors.ErrShadowedOutcome)

	// Effective strictly after every recorded outcome: accepted.
	v, err := m.Update(context.Background(), "chain-plants", task.Update{
		Title:         &title,
		EffectiveFrom: at(4, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, v.Seq)
}

func TestUpdateUnknownChain(t *testing.T) {
	m := newManager(t)

	title := "x"
	_, err := m.Update(context.Background(), "chain-missing", task.Update{
		Title:         &title,
		EffectiveFrom: at(5, 0),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, cadenceerrors.ErrChainNotFound)
}

func TestComplete(t *testing.T) {
	m := newManager(t)
	createTask(t, m, "chain-plants")

	notes := props.NewKey[string]("notes", nil)
	o, err := m.Complete(context.Background(), "chain-plants", at(3, 9), func(bag *props.Bag) error {
		return props.Set(bag, notes, "soil was dry")
	})
	require.NoError(t, err)

	assert.Equal(t, "chain-plants", o.ChainID)
	assert.Equal(t, 1, o.VersionSeq)
	assert.True(t, at(3, 9).Equal(o.OccurrenceStart))
	assert.True(t, testNow.Equal(o.CompletedAt))

	got, err := props.Get(o.Props, notes)
	require.NoError(t, err)
	assert.Equal(t, "soil was dry", got)
}

func TestCompleteDuplicateRejected(t *testing.T) {
	m := newManager(t)
	createTask(t, m, "chain-plants")

	_, err := m.Complete(context.Background(), "chain-plants", at(3, 9), nil)
	require.NoError(t, err)

	_, err = m.Complete(context.Background(), "chain-plants", at(3, 9), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, cadenceerrors.ErrAlreadyCompleted)
}

func TestCompleteUnknownOccurrence(t *testing.T) {
	m := newManager(t)
	createTask(t, m, "chain-plants")

	_, err := m.Complete(context.Background(), "chain-plants", at(3, 10), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, cadenceerrors.ErrOccurrenceNotFound)
}

func TestCompleteRoutesToServingVersion(t *testing.T) {
	m := newManager(t)
	createTask(t, m, "chain-plants")

	// Move the occurrence time to the evening starting day 5.
	_, err := m.Update(context.Background(), "chain-plants", task.Update{
		Schedule:      dailySchedule(t, 2, 17),
		EffectiveFrom: at(5, 0),
	})
	require.NoError(t, err)

	before, err := m.Complete(context.Background(), "chain-plants", at(3, 9), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, before.VersionSeq, "occurrence before the boundary belongs to version 1")

	after, err := m.Complete(context.Background(), "chain-plants", at(6, 17), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, after.VersionSeq, "occurrence after the boundary belongs to version 2")

	// The old schedule's slot no longer exists after the boundary.
	_, err = m.Complete(context.Background(), "chain-plants", at(6, 9), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, cadenceerrors.ErrOccurrenceNotFound)
}

func TestCompleteInitErrorAborts(t *testing.T) {
	m := newManager(t)
	createTask(t, m, "chain-plants")

	boom := errors.New("boom")
	_, err := m.Complete(context.Background(), "chain-plants", at(3, 9), func(*props.Bag) error {
		return boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	// Nothing was persisted; the occurrence can still be completed.
	_, err = m.Complete(context.Background(), "chain-plants", at(3, 9), nil)
	require.NoError(t, err)
}

func TestLatestVersion(t *testing.T) {
	m := newManager(t)
	createTask(t, m, "chain-plants")

	title := "New title"
	_, err := m.Update(context.Background(), "chain-plants", task.Update{
		Title:         &title,
		EffectiveFrom: at(5, 0),
	})
	require.NoError(t, err)

	v, err := m.LatestVersion(context.Background(), "chain-plants")
	require.NoError(t, err)
	assert.Equal(t, 2, v.Seq)
}

func TestDeleteCascades(t *testing.T) {
	m := newManager(t)
	createTask(t, m, "chain-plants")

	_, err := m.Complete(context.Background(), "chain-plants", at(3, 9), nil)
	require.NoError(t, err)

	require.NoError(t, m.Delete(context.Background(), "chain-plants"))

	_, err = m.History(context.Background(), "chain-plants")
	assert.ErrorIs(t, err, cadenceerrors.ErrChainNotFound)

	err = m.Delete(context.Background(), "chain-plants")
	assert.ErrorIs(t, err, cadenceerrors.ErrChainNotFound)
}

func TestManagerContextCancellation(t *testing.T) {
	m := newManager(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Create(ctx, task.NewTask{Title: "x", Schedule: dailySchedule(t, 2, 9)})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = m.Update(ctx, "chain-plants", task.Update{EffectiveFrom: at(5, 0)})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = m.Complete(ctx, "chain-plants", at(3, 9), nil)
	assert.ErrorIs(t, err, context.Canceled)
}
