package task

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kestrelhq/cadence/clock"
	cadenceerrors "github.com/kestrelhq/cadence/errors"
	"github.com/kestrelhq/cadence/props"
	"github.com/kestrelhq/cadence/schedule"
)

// validChainIDRegex matches chain ids that are safe as storage paths and
// keys.
var validChainIDRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// NewChainID generates a fresh chain identifier.
func NewChainID() string {
	return "chain-" + uuid.New().String()[:8]
}

// Manager owns all mutations to task chains. Writes are serialized per
// chain id, so two concurrent updates cannot both pass the
// shadowed-outcome check and race to append the same version; reads go
// straight to the store and may run concurrently with writes.
type Manager struct {
	store Store
	clock clock.Clock
	log   zerolog.Logger

	mu     sync.Mutex
	chains map[string]*sync.Mutex
}

// NewManager creates a Manager over the given store. A nil clk defaults
// to the system clock.
func NewManager(st Store, clk clock.Clock, log zerolog.Logger) (*Manager, error) {
	if st == nil {
		return nil, fmt.Errorf("store %w", cadenceerrors.ErrEmptyValue)
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Manager{
		store:  st,
		clock:  clk,
		log:    log,
		chains: make(map[string]*sync.Mutex),
	}, nil
}

// chainLock returns the mutex serializing writes for one chain id.
func (m *Manager) chainLock(chainID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.chains[chainID]
	if !ok {
		l = &sync.Mutex{}
		m.chains[chainID] = l
	}
	return l
}

// NewTask is the construction input for Create.
type NewTask struct {
	// ChainID is the stable task identity. Generated when empty.
	ChainID string

	// Title is required.
	Title string

	Instructions string
	Category     string

	// Schedule is required.
	Schedule *schedule.Schedule

	// EffectiveFrom defaults to the schedule's start date.
	EffectiveFrom time.Time

	// Props carries initial task properties; nil means none.
	Props *props.Bag
}

// Create starts a new chain with version 1.
func (m *Manager) Create(ctx context.Context, in NewTask) (*Version, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if in.Title == "" {
		return nil, fmt.Errorf("failed to create task: title %w", cadenceerrors.ErrEmptyValue)
	}
	if in.Schedule == nil {
		return nil, fmt.Errorf("failed to create task: schedule %w", cadenceerrors.ErrEmptyValue)
	}
	if in.ChainID == "" {
		in.ChainID = NewChainID()
	}
	if !validChainIDRegex.MatchString(in.ChainID) {
		return nil, fmt.Errorf("%w: %q", cadenceerrors.ErrInvalidChainID, in.ChainID)
	}
	if in.EffectiveFrom.IsZero() {
		in.EffectiveFrom = in.Schedule.Start()
	}

	l := m.chainLock(in.ChainID)
	l.Lock()
	defer l.Unlock()

	v := &Version{
		ChainID:       in.ChainID,
		Seq:           1,
		Title:         in.Title,
		Instructions:  in.Instructions,
		Category:      in.Category,
		Schedule:      in.Schedule,
		EffectiveFrom: in.EffectiveFrom,
		Props:         in.Props,
		CreatedAt:     m.clock.Now().UTC(),
	}
	if err := m.store.SaveVersion(ctx, v); err != nil {
		return nil, cadenceerrors.Wrapf(err, "failed to create task '%s'", in.ChainID)
	}
	m.log.Info().Str("chain_id", in.ChainID).Str("title", in.Title).Msg("task created")
	return v, nil
}

// Update describes a version transition: fields left nil carry forward
// unchanged from the current version.
type Update struct {
	Title        *string
	Instructions *string
	Category     *string
	Schedule     *schedule.Schedule
	Props        *props.Bag

	// EffectiveFrom is the date at which the new version takes over.
	// Required, and must be later than the current version's
	// effective-from date.
	EffectiveFrom time.Time
}

// Update appends a new version to the chain.
//
// If no field actually differs from the current version, the current
// version is returned unchanged (a no-op, not an error). Otherwise every
// recorded outcome must have an occurrence start strictly before the new
// effective-from date; a violation fails with ErrShadowedOutcome, since
// the new schedule would silently reinterpret an already-completed
// occurrence.
func (m *Manager) Update(ctx context.Context, chainID string, upd Update) (*Version, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if upd.EffectiveFrom.IsZero() {
		return nil, fmt.Errorf("failed to update task: effective-from date %w", cadenceerrors.ErrEmptyValue)
	}

	l := m.chainLock(chainID)
	l.Lock()
	defer l.Unlock()

	versions, err := m.store.Versions(ctx, chainID)
	if err != nil {
		return nil, cadenceerrors.Wrapf(err, "failed to update task '%s'", chainID)
	}
	current := Latest(versions)

	next := &Version{
		ChainID:       chainID,
		Seq:           current.Seq + 1,
		Title:         current.Title,
		Instructions:  current.Instructions,
		Category:      current.Category,
		Schedule:      current.Schedule,
		EffectiveFrom: upd.EffectiveFrom,
		Props:         current.Props,
		CreatedAt:     m.clock.Now().UTC(),
	}
	if upd.Title != nil {
		next.Title = *upd.Title
	}
	if upd.Instructions != nil {
		next.Instructions = *upd.Instructions
	}
	if upd.Category != nil {
		next.Category = *upd.Category
	}
	if upd.Schedule != nil {
		next.Schedule = upd.Schedule
	}
	if upd.Props != nil {
		next.Props = upd.Props
	}

	if m.isNoOp(current, next) {
		return current, nil
	}

	if !upd.EffectiveFrom.After(current.EffectiveFrom) {
		return nil, fmt.Errorf("%w: effective-from %s is not after current version's %s",
			cadenceerrors.ErrValueOutOfRange,
			upd.EffectiveFrom.Format(time.RFC3339),
			current.EffectiveFrom.Format(time.RFC3339))
	}

	outcomes, err := m.store.Outcomes(ctx, chainID)
	if err != nil {
		return nil, cadenceerrors.Wrapf(err, "failed to update task '%s'", chainID)
	}
	for _, o := range outcomes {
		if !o.OccurrenceStart.Before(upd.EffectiveFrom) {
			return nil, fmt.Errorf("%w: outcome at %s is not before effective-from %s",
				cadenceerrors.ErrShadowedOutcome,
				o.OccurrenceStart.Format(time.RFC3339),
				upd.EffectiveFrom.Format(time.RFC3339))
		}
	}

	if err := m.store.SaveVersion(ctx, next); err != nil {
		return nil, cadenceerrors.Wrapf(err, "failed to update task '%s'", chainID)
	}
	m.log.Info().
		Str("chain_id", chainID).
		Int("seq", next.Seq).
		Time("effective_from", next.EffectiveFrom).
		Msg("task version appended")
	return next, nil
}

// isNoOp reports whether next changes nothing observable versus current.
// The effective-from date alone does not make a new version.
func (m *Manager) isNoOp(current, next *Version) bool {
	return current.Title == next.Title &&
		current.Instructions == next.Instructions &&
		current.Category == next.Category &&
		current.Schedule.Equal(next.Schedule) &&
		(current.Props == next.Props || current.Props.Equal(next.Props))
}

// Complete records an outcome for the occurrence of the chain starting at
// occStart. The occurrence is routed to the version that serves that
// date and must actually exist on its schedule. Completing an
// already-completed occurrence fails with ErrAlreadyCompleted; outcomes
// are never replaced.
//
// The optional init callback populates the outcome's property bag before
// the record is persisted.
func (m *Manager) Complete(ctx context.Context, chainID string, occStart time.Time, init func(*props.Bag) error) (*Outcome, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	l := m.chainLock(chainID)
	l.Lock()
	defer l.Unlock()

	versions, err := m.store.Versions(ctx, chainID)
	if err != nil {
		return nil, cadenceerrors.Wrapf(err, "failed to complete occurrence for '%s'", chainID)
	}
	v := VersionAt(versions, occStart)

	occ, err := v.Schedule.OccurrenceAt(occStart)
	if err != nil {
		return nil, cadenceerrors.Wrapf(err, "failed to complete occurrence for '%s'", chainID)
	}

	outcomes, err := m.store.Outcomes(ctx, chainID)
	if err != nil {
		return nil, cadenceerrors.Wrapf(err, "failed to complete occurrence for '%s'", chainID)
	}
	if _, exists := IndexOutcomes(outcomes)[OutcomeKey(occ.Start)]; exists {
		return nil, fmt.Errorf("%w: %s at %s",
			cadenceerrors.ErrAlreadyCompleted, chainID, occ.Start.Format(time.RFC3339))
	}

	bag := props.NewBag()
	if init != nil {
		if err := init(bag); err != nil {
			return nil, cadenceerrors.Wrap(err, "failed to initialize outcome properties")
		}
	}

	o := &Outcome{
		ID:              uuid.New(),
		ChainID:         chainID,
		VersionSeq:      v.Seq,
		OccurrenceStart: occ.Start,
		CompletedAt:     m.clock.Now().UTC(),
		Props:           bag,
	}
	if err := m.store.SaveOutcome(ctx, o); err != nil {
		return nil, cadenceerrors.Wrapf(err, "failed to complete occurrence for '%s'", chainID)
	}
	m.log.Info().
		Str("chain_id", chainID).
		Time("occurrence_start", occ.Start).
		Str("outcome_id", o.ID.String()).
		Msg("occurrence completed")
	return o, nil
}

// History returns the chain's version records ordered by sequence number.
func (m *Manager) History(ctx context.Context, chainID string) ([]*Version, error) {
	return m.store.Versions(ctx, chainID)
}

// LatestVersion returns the chain's current version.
func (m *Manager) LatestVersion(ctx context.Context, chainID string) (*Version, error) {
	versions, err := m.store.Versions(ctx, chainID)
	if err != nil {
		return nil, err
	}
	return Latest(versions), nil
}

// Delete removes the chain and, cascading, all of its outcomes.
func (m *Manager) Delete(ctx context.Context, chainID string) error {
	l := m.chainLock(chainID)
	l.Lock()
	defer l.Unlock()

	if err := m.store.DeleteChain(ctx, chainID); err != nil {
		return cadenceerrors.Wrapf(err, "failed to delete task '%s'", chainID)
	}
	m.log.Info().Str("chain_id", chainID).Msg("task chain deleted")
	return nil
}
