// Package query implements the read-side reconciliation engine: it
// expands task chains into occurrences for a date range, stitches
// version chains at their effective-from boundaries, matches persisted
// outcomes, and returns ephemeral Events.
//
// Events are read-only projections, reconstructed per query. Completing
// one mutates the outcome store, not the Event; callers re-query to
// observe the update.
package query

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kestrelhq/cadence/calendar"
	"github.com/kestrelhq/cadence/config"
	cadenceerrors "github.com/kestrelhq/cadence/errors"
	"github.com/kestrelhq/cadence/schedule"
	"github.com/kestrelhq/cadence/task"
)

// Event is the ephemeral join of a task version, one of its occurrences,
// and the occurrence's outcome when recorded. Never persisted.
type Event struct {
	Task       *task.Version
	Occurrence schedule.Occurrence
	Outcome    *task.Outcome
}

// Completed reports whether the event's occurrence has an outcome.
func (e Event) Completed() bool {
	return e.Outcome != nil
}

// ChainError reports a single chain's expansion failure in a lenient
// query. The rest of the result is unaffected.
type ChainError struct {
	ChainID string
	Err     error
}

// Error implements the error interface.
func (e ChainError) Error() string {
	return "chain '" + e.ChainID + "': " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e ChainError) Unwrap() error {
	return e.Err
}

// Engine computes Events from a task store. All reads are pure and
// side-effect-free; the engine holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	store task.Store
	cfg   config.Config
	log   zerolog.Logger
}

// New creates an Engine over the given store. The configuration is
// validated once here.
func New(st task.Store, cfg config.Config, log zerolog.Logger) (*Engine, error) {
	if st == nil {
		return nil, cadenceerrors.Wrap(cadenceerrors.ErrEmptyValue, "store")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{store: st, cfg: cfg, log: log}, nil
}

// Events expands every chain's occurrences intersecting r and matches
// them against recorded outcomes.
//
// With lenient strictness, a failing chain contributes a ChainError and
// the remaining chains still produce a partial result. With strict
// strictness the first failing chain fails the whole query.
//
// Results are sorted by occurrence start ascending, tie-broken by chain
// id ascending.
func (e *Engine) Events(ctx context.Context, r calendar.Range, chainIDs []string) ([]Event, []ChainError, error) {
	if err := r.Validate(); err != nil {
		return nil, nil, err
	}

	perChain := make([][]Event, len(chainIDs))
	failures := make([]error, len(chainIDs))

	g, gctx := errgroup.WithContext(ctx)
	for i, chainID := range chainIDs {
		i, chainID := i, chainID
		g.Go(func() error {
			events, err := e.expandChain(gctx, r, chainID)
			if err != nil {
				if e.cfg.Strictness == config.StrictnessStrict {
					return ChainError{ChainID: chainID, Err: err}
				}
				// Lenient: record and keep the other chains going.
				failures[i] = err
				return nil
			}
			perChain[i] = events
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var out []Event
	var chainErrs []ChainError
	for i, events := range perChain {
		if failures[i] != nil {
			chainErrs = append(chainErrs, ChainError{ChainID: chainIDs[i], Err: failures[i]})
			continue
		}
		out = append(out, events...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Occurrence.Start.Equal(out[j].Occurrence.Start) {
			return out[i].Occurrence.Start.Before(out[j].Occurrence.Start)
		}
		return out[i].Task.ChainID < out[j].Task.ChainID
	})

	if len(out) > e.cfg.MaxOccurrencesPerQuery {
		e.log.Warn().
			Int("cap", e.cfg.MaxOccurrencesPerQuery).
			Int("produced", len(out)).
			Str("range", r.String()).
			Msg("query result truncated at occurrence cap")
		out = out[:e.cfg.MaxOccurrencesPerQuery]
	}
	return out, chainErrs, nil
}

// EventsOn returns the events for the calendar day of t.
func (e *Engine) EventsOn(ctx context.Context, t time.Time, chainIDs []string) ([]Event, []ChainError, error) {
	return e.Events(ctx, calendar.Day(t), chainIDs)
}

// segment is one slice of a query range served by a single version.
type segment struct {
	rng     calendar.Range
	version *task.Version
}

// splitRange cuts r at every effective-from boundary inside it. Times
// strictly before a version's effective-from are served by the previous
// version; times at or after it by that version, recursively for chains
// of any length.
func splitRange(r calendar.Range, versions []*task.Version) []segment {
	cuts := []calendar.Range{}
	start := r.Start
	for _, v := range versions[1:] {
		if !v.EffectiveFrom.After(r.Start) {
			continue
		}
		if !v.EffectiveFrom.Before(r.End) {
			break
		}
		cuts = append(cuts, calendar.Range{Start: start, End: v.EffectiveFrom})
		start = v.EffectiveFrom
	}
	cuts = append(cuts, calendar.Range{Start: start, End: r.End})

	out := make([]segment, 0, len(cuts))
	for _, c := range cuts {
		if c.IsEmpty() {
			continue
		}
		out = append(out, segment{rng: c, version: task.VersionAt(versions, c.Start)})
	}
	return out
}

// expandChain produces the chain's events for the range.
func (e *Engine) expandChain(ctx context.Context, r calendar.Range, chainID string) ([]Event, error) {
	versions, err := e.store.Versions(ctx, chainID)
	if err != nil {
		return nil, err
	}
	outcomes, err := e.store.Outcomes(ctx, chainID)
	if err != nil {
		return nil, err
	}
	outcomeIdx := task.IndexOutcomes(outcomes)

	var out []Event
	for _, seg := range splitRange(r, versions) {
		occs, err := seg.version.Schedule.OccurrencesIn(seg.rng)
		if err != nil {
			return nil, cadenceerrors.Wrapf(err, "version %d", seg.version.Seq)
		}
		for _, occ := range occs {
			if e.cfg.Location != nil {
				occ.Start = occ.Start.In(e.cfg.Location)
				occ.End = occ.End.In(e.cfg.Location)
			}
			out = append(out, Event{
				Task:       seg.version,
				Occurrence: occ,
				Outcome:    outcomeIdx[task.OutcomeKey(occ.Start)],
			})
		}
	}
	return out, nil
}
