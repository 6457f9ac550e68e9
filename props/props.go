// Package props implements the extensible property bag used by tasks and
// outcomes: a mapping from string identifiers to serialized values, read
// and written through typed keys.
//
// A Key pairs a unique string identifier with a value type and a codec,
// so new typed fields can be added without schema migration. Decoded
// values are cached per key identity; the cache is invalidated on write.
package props

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	cadenceerrors "github.com/kestrelhq/cadence/errors"
)

// Key is a typed accessor for one bag entry. The identifier must be
// unique within a bag; the codec defines the entry's wire format.
type Key[T any] struct {
	id    string
	codec Codec
}

// NewKey returns a Key for the given identifier. A nil codec defaults
// to JSON.
func NewKey[T any](id string, codec Codec) Key[T] {
	if codec == nil {
		codec = JSON{}
	}
	return Key[T]{id: id, codec: codec}
}

// ID returns the key's string identifier.
func (k Key[T]) ID() string { return k.id }

// Bag is a string-keyed collection of serialized values. The zero value
// is not usable; construct with NewBag. Bags are safe for concurrent use.
type Bag struct {
	mu      sync.Mutex
	entries map[string][]byte
	cache   map[string]any
}

// NewBag returns an empty property bag.
func NewBag() *Bag {
	return &Bag{
		entries: make(map[string][]byte),
		cache:   make(map[string]any),
	}
}

// Get decodes the entry for k. Returns ErrKeyNotFound when the bag has no
// entry for the key, and ErrDecoding when the stored bytes cannot be
// decoded into the key's value type.
func Get[T any](b *Bag, k Key[T]) (T, error) {
	var zero T
	if k.id == "" {
		return zero, fmt.Errorf("property key id %w", cadenceerrors.ErrEmptyValue)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if cached, ok := b.cache[k.id]; ok {
		if v, ok := cached.(T); ok {
			return v, nil
		}
		// A differently-typed key was used for the same id; fall through
		// and decode again rather than returning a stale value.
	}
	raw, ok := b.entries[k.id]
	if !ok {
		return zero, fmt.Errorf("%w: %q", cadenceerrors.ErrKeyNotFound, k.id)
	}
	var v T
	if err := k.codec.Unmarshal(raw, &v); err != nil {
		return zero, fmt.Errorf("%w: property %q: %s", cadenceerrors.ErrDecoding, k.id, err)
	}
	b.cache[k.id] = v
	return v, nil
}

// Set encodes v under k, replacing any previous entry and refreshing the
// decode cache for the key.
func Set[T any](b *Bag, k Key[T], v T) error {
	if k.id == "" {
		return fmt.Errorf("property key id %w", cadenceerrors.ErrEmptyValue)
	}
	raw, err := k.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode property %q: %w", k.id, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[k.id] = raw
	b.cache[k.id] = v
	return nil
}

// Delete removes the entry for k, if present.
func Delete[T any](b *Bag, k Key[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, k.id)
	delete(b.cache, k.id)
}

// Has reports whether the bag holds an entry for the given identifier.
func (b *Bag) Has(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.entries[id]
	return ok
}

// Len returns the number of entries in the bag.
func (b *Bag) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// IDs returns the sorted identifiers of all entries.
func (b *Bag) IDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.entries))
	for id := range b.entries {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether two bags hold byte-identical entries. This is the
// comparison used for "does this change actually differ" checks on task
// updates; it deliberately ignores the decode caches.
func (b *Bag) Equal(other *Bag) bool {
	if b == nil || other == nil {
		return b == other
	}
	if b == other {
		return true
	}
	// Lock ordering by pointer identity to avoid deadlock when two
	// goroutines compare the same pair in opposite directions.
	first, second := b, other
	if fmt.Sprintf("%p", first) > fmt.Sprintf("%p", second) {
		first, second = second, first
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	if len(b.entries) != len(other.entries) {
		return false
	}
	for id, raw := range b.entries {
		if !bytes.Equal(raw, other.entries[id]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the bag's entries. The decode cache is not
// carried over; the clone re-decodes on first read.
func (b *Bag) Clone() *Bag {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := NewBag()
	for id, raw := range b.entries {
		cp := make([]byte, len(raw))
		copy(cp, raw)
		out.entries[id] = cp
	}
	return out
}
