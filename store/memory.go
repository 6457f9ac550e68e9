// Package store provides persistence collaborators for the occurrence
// engine: an in-memory store for tests and single-process use, a JSON
// file store with atomic writes and file locking, and a Redis store.
//
// All implementations satisfy task.Store and share its contract:
// version appends are conflict-checked, outcome writes enforce at most
// one record per (chain, occurrence start), and reads return
// point-in-time snapshots.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	cadenceerrors "github.com/kestrelhq/cadence/errors"
	"github.com/kestrelhq/cadence/task"
)

// MemoryStore is a mutex-guarded in-memory task.Store. Reads return deep
// copies, so a caller holding fetched records never observes later
// writes (snapshot-read semantics).
type MemoryStore struct {
	mu       sync.RWMutex
	versions map[string][]*task.Version
	outcomes map[string]map[int64]*task.Outcome
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		versions: make(map[string][]*task.Version),
		outcomes: make(map[string]map[int64]*task.Outcome),
	}
}

// SaveVersion appends a version record to its chain.
func (s *MemoryStore) SaveVersion(ctx context.Context, v *task.Version) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if v == nil || v.ChainID == "" {
		return fmt.Errorf("failed to save version: chain id %w", cadenceerrors.ErrEmptyValue)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.versions[v.ChainID]
	if v.Seq == 1 && len(chain) > 0 {
		return fmt.Errorf("%w: '%s'", cadenceerrors.ErrChainExists, v.ChainID)
	}
	if v.Seq != len(chain)+1 {
		return fmt.Errorf("%w: chain '%s' expects seq %d, got %d",
			cadenceerrors.ErrVersionConflict, v.ChainID, len(chain)+1, v.Seq)
	}
	s.versions[v.ChainID] = append(chain, v.Clone())
	if _, ok := s.outcomes[v.ChainID]; !ok {
		s.outcomes[v.ChainID] = make(map[int64]*task.Outcome)
	}
	return nil
}

// SaveOutcome records a completion, rejecting duplicates per
// (chain, occurrence start).
func (s *MemoryStore) SaveOutcome(ctx context.Context, o *task.Outcome) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if o == nil || o.ChainID == "" {
		return fmt.Errorf("failed to save outcome: chain id %w", cadenceerrors.ErrEmptyValue)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	chain, ok := s.outcomes[o.ChainID]
	if !ok {
		return fmt.Errorf("%w: '%s'", cadenceerrors.ErrChainNotFound, o.ChainID)
	}
	key := task.OutcomeKey(o.OccurrenceStart)
	if _, exists := chain[key]; exists {
		return fmt.Errorf("%w: '%s' at %s",
			cadenceerrors.ErrAlreadyCompleted, o.ChainID, o.OccurrenceStart)
	}
	chain[key] = o.Clone()
	return nil
}

// Versions returns the chain's version records, ordered by sequence.
func (s *MemoryStore) Versions(ctx context.Context, chainID string) ([]*task.Version, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain, ok := s.versions[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", cadenceerrors.ErrChainNotFound, chainID)
	}
	out := make([]*task.Version, len(chain))
	for i, v := range chain {
		out[i] = v.Clone()
	}
	return out, nil
}

// Outcomes returns the chain's recorded outcomes.
func (s *MemoryStore) Outcomes(ctx context.Context, chainID string) ([]*task.Outcome, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain, ok := s.outcomes[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", cadenceerrors.ErrChainNotFound, chainID)
	}
	out := make([]*task.Outcome, 0, len(chain))
	for _, o := range chain {
		out = append(out, o.Clone())
	}
	return out, nil
}

// Chains lists all known chain ids, sorted ascending.
func (s *MemoryStore) Chains(ctx context.Context) ([]string, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.versions))
	for id := range s.versions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// DeleteChain removes the chain's versions and outcomes.
func (s *MemoryStore) DeleteChain(ctx context.Context, chainID string) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.versions[chainID]; !ok {
		return fmt.Errorf("%w: '%s'", cadenceerrors.ErrChainNotFound, chainID)
	}
	delete(s.versions, chainID)
	delete(s.outcomes, chainID)
	return nil
}

// checkCtx returns the context's error if it is already done.
func checkCtx(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// Ensure MemoryStore implements task.Store.
var _ task.Store = (*MemoryStore)(nil)
