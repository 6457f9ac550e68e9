package props

import (
	"encoding/json"
	"fmt"

	cadenceerrors "github.com/kestrelhq/cadence/errors"
)

// bagJSON is the persisted shape of a Bag: raw entry bytes keyed by
// identifier. Entry bytes are base64-encoded by encoding/json, which
// keeps non-JSON codecs (YAML) round-trippable.
type bagJSON map[string][]byte

// MarshalJSON implements json.Marshaler.
func (b *Bag) MarshalJSON() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return json.Marshal(bagJSON(b.entries))
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bag) UnmarshalJSON(data []byte) error {
	var doc bagJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: property bag: %s", cadenceerrors.ErrDecoding, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = make(map[string][]byte, len(doc))
	for id, raw := range doc {
		b.entries[id] = raw
	}
	b.cache = make(map[string]any)
	return nil
}
