package props

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Codec defines the serialization strategy carried by a Key. Round-trip
// fidelity is required: Unmarshal(Marshal(v)) must reproduce v for any
// serializable value type.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// JSON encodes values with encoding/json. This is the default codec.
type JSON struct{}

// Marshal implements Codec.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal implements Codec.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name implements Codec.
func (JSON) Name() string { return "json" }

// YAML encodes values with gopkg.in/yaml.v3, for entries that are edited
// by hand or shared with YAML-based tooling.
type YAML struct{}

// Marshal implements Codec.
func (YAML) Marshal(v any) ([]byte, error) { return yaml.Marshal(v) }

// Unmarshal implements Codec.
func (YAML) Unmarshal(data []byte, v any) error { return yaml.Unmarshal(data, v) }

// Name implements Codec.
func (YAML) Name() string { return "yaml" }
