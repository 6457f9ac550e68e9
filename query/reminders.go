package query

import (
	"context"

	"github.com/kestrelhq/cadence/calendar"
	"github.com/kestrelhq/cadence/schedule"
)

// Reminder is a pending occurrence a notification collaborator should
// surface: an occurrence inside the queried range with no recorded
// outcome.
type Reminder struct {
	ChainID    string
	Title      string
	Occurrence schedule.Occurrence
}

// OccurrencesNeedingReminder returns the uncompleted occurrences in r,
// in the same order Events produces them. Completed occurrences are
// filtered out; chain errors propagate the same way as for Events.
func (e *Engine) OccurrencesNeedingReminder(ctx context.Context, r calendar.Range, chainIDs []string) ([]Reminder, []ChainError, error) {
	events, chainErrs, err := e.Events(ctx, r, chainIDs)
	if err != nil {
		return nil, nil, err
	}
	out := make([]Reminder, 0, len(events))
	for _, ev := range events {
		if ev.Completed() {
			continue
		}
		out = append(out, Reminder{
			ChainID:    ev.Task.ChainID,
			Title:      ev.Task.Title,
			Occurrence: ev.Occurrence,
		})
	}
	return out, chainErrs, nil
}
