// Package errors provides centralized error handling for cadence.
//
// This package defines sentinel errors used for programmatic error
// categorization throughout the module. All error types can be checked
// using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other cadence packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// These allow callers to check error types with errors.Is().
// All errors use lowercase descriptions per Go conventions.
var (
	// ErrInvalidInterval indicates a recurrence interval below 1.
	// Rejected at rule construction, never silently clamped.
	ErrInvalidInterval = errors.New("interval must be at least 1")

	// ErrInvalidFrequency indicates an unknown recurrence frequency.
	ErrInvalidFrequency = errors.New("invalid frequency")

	// ErrInvalidEndCondition indicates an end condition that cannot be
	// satisfied (negative count, zero until date, or both count and until).
	ErrInvalidEndCondition = errors.New("invalid end condition")

	// ErrInvalidRule indicates a custom recurrence rule string that
	// could not be parsed.
	ErrInvalidRule = errors.New("invalid recurrence rule")

	// ErrInvalidDuration indicates a fixed occurrence duration that is
	// non-positive or not a whole number of seconds.
	ErrInvalidDuration = errors.New("invalid duration")

	// ErrCalendar indicates that calendar arithmetic is impossible for the
	// given inputs (unrepresentable date components, out-of-range years).
	// Local to the single expansion that triggered it, never fatal to the
	// whole engine.
	ErrCalendar = errors.New("calendar arithmetic failed")

	// ErrInvalidRange indicates a date range whose end precedes its start.
	ErrInvalidRange = errors.New("range end precedes start")

	// ErrShadowedOutcome indicates a task update whose effective-from date
	// would reinterpret an occurrence that already has a recorded outcome.
	ErrShadowedOutcome = errors.New("update would shadow a recorded outcome")

	// ErrAlreadyCompleted indicates an attempt to complete an occurrence
	// that already has an outcome. Outcomes are append-only; duplicates
	// are rejected, never replaced.
	ErrAlreadyCompleted = errors.New("occurrence already completed")

	// ErrOccurrenceNotFound indicates that no occurrence of the schedule
	// starts at the requested date.
	ErrOccurrenceNotFound = errors.New("occurrence not found")

	// ErrDecoding indicates a corrupt persisted schedule or property bag.
	// Isolated per task chain; must not abort unrelated chains' queries.
	ErrDecoding = errors.New("decoding failed")

	// ErrChainNotFound indicates the requested task chain does not exist.
	ErrChainNotFound = errors.New("task chain not found")

	// ErrChainExists indicates an attempt to create a task chain that
	// already exists.
	ErrChainExists = errors.New("task chain already exists")

	// ErrVersionConflict indicates two writers raced to append the same
	// version sequence number to a chain. Recoverable by re-reading the
	// chain and retrying.
	ErrVersionConflict = errors.New("version sequence conflict")

	// ErrKeyNotFound indicates a property bag lookup for an absent key.
	ErrKeyNotFound = errors.New("property key not found")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrValueOutOfRange indicates that a value is outside the allowed range.
	ErrValueOutOfRange = errors.New("value out of range")

	// ErrInvalidChainID indicates a chain identifier with characters that
	// are unsafe for storage paths or keys.
	ErrInvalidChainID = errors.New("invalid chain id")

	// ErrLockTimeout indicates a file lock could not be acquired within
	// the timeout period.
	ErrLockTimeout = errors.New("lock acquisition timeout")

	// ErrStoreUnavailable indicates the persistence collaborator could not
	// be reached. Distinguishable from core-logic errors so callers can
	// retry I/O without re-validating business rules.
	ErrStoreUnavailable = errors.New("store unavailable")
)
