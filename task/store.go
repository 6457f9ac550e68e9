package task

import "context"

// Store is the narrow persistence interface the engine reads and writes
// through. The engine never assumes a specific storage engine; it only
// requires atomic single-entity writes and per-chain reads.
//
// Implementations must provide snapshot-read semantics: a fetch returns a
// consistent point-in-time view that is not affected by writes happening
// after the call returns.
type Store interface {
	// SaveVersion appends a version record to its chain. The sequence
	// number must be exactly one past the chain's current highest:
	// seq 1 against an existing chain fails with ErrChainExists, and any
	// other mismatch fails with ErrVersionConflict, which is how two
	// racing updaters are serialized.
	SaveVersion(ctx context.Context, v *Version) error

	// SaveOutcome records a completion. A second outcome for the same
	// (chain, occurrence start) fails with ErrAlreadyCompleted.
	SaveOutcome(ctx context.Context, o *Outcome) error

	// Versions returns a chain's version records ordered by sequence
	// number ascending. Returns ErrChainNotFound for unknown chains.
	Versions(ctx context.Context, chainID string) ([]*Version, error)

	// Outcomes returns a chain's recorded outcomes in no particular
	// order. Returns an empty slice (not an error) for chains without
	// outcomes; ErrChainNotFound for unknown chains.
	Outcomes(ctx context.Context, chainID string) ([]*Outcome, error)

	// Chains lists all known chain ids, sorted ascending.
	Chains(ctx context.Context) ([]string, error)

	// DeleteChain removes a chain's versions and, cascading, its
	// outcomes. Returns ErrChainNotFound for unknown chains.
	DeleteChain(ctx context.Context, chainID string) error
}
