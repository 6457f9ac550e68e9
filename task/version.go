// Package task provides the versioned task model and its write-side
// manager.
//
// A task identity is a chain of immutable version records keyed by a
// stable chain id plus a version sequence number; "latest" is the record
// with the highest sequence number. Updating a task appends a new
// version with its own effective-from date. History is never rewritten,
// and an update that would reinterpret an occurrence with a recorded
// outcome is rejected.
package task

import (
	"time"

	"github.com/kestrelhq/cadence/props"
	"github.com/kestrelhq/cadence/schedule"
)

// Version is one immutable record in a task's version chain.
// All JSON field names use snake_case to match the stored documents.
type Version struct {
	// ChainID is the task's stable identity, shared by all versions.
	ChainID string `json:"chain_id"`

	// Seq is the 1-based position of this version in the chain.
	// The highest sequence number for a chain is the latest version.
	Seq int `json:"seq"`

	// Title is the task's display name.
	Title string `json:"title"`

	// Instructions is the free-form guidance shown with each occurrence.
	Instructions string `json:"instructions,omitempty"`

	// Category groups tasks for the caller; opaque to the engine.
	Category string `json:"category,omitempty"`

	// Schedule generates this version's occurrences.
	Schedule *schedule.Schedule `json:"schedule"`

	// EffectiveFrom is the date at which this version supersedes its
	// predecessor: occurrences strictly before it are served by the
	// previous version, occurrences at or after it by this one.
	EffectiveFrom time.Time `json:"effective_from"`

	// Props carries extensible typed properties for the task.
	Props *props.Bag `json:"props,omitempty"`

	// CreatedAt is when this version record was appended.
	CreatedAt time.Time `json:"created_at"`
}

// Latest returns the version with the highest sequence number, or nil
// for an empty chain. Versions must be ordered by Seq ascending, which
// is the order stores return them in.
func Latest(versions []*Version) *Version {
	if len(versions) == 0 {
		return nil
	}
	return versions[len(versions)-1]
}

// VersionAt routes a point in time to the version that serves it:
// the latest version whose EffectiveFrom is at or before t. Times before
// the first version's EffectiveFrom fall back to the first version,
// whose schedule produces nothing before its own start anyway.
// Returns nil for an empty chain.
func VersionAt(versions []*Version, t time.Time) *Version {
	if len(versions) == 0 {
		return nil
	}
	current := versions[0]
	for _, v := range versions[1:] {
		if v.EffectiveFrom.After(t) {
			break
		}
		current = v
	}
	return current
}

// Clone returns a deep copy of the version. The schedule is shared:
// schedules are immutable after construction.
func (v *Version) Clone() *Version {
	if v == nil {
		return nil
	}
	out := *v
	out.Props = v.Props.Clone()
	return &out
}
