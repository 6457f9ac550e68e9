// Package config provides in-process configuration for the query engine.
// Configuration is constructed in code, not loaded from a file, and is
// validated before use, never silently corrected.
package config

import (
	"fmt"
	"time"

	cadenceerrors "github.com/kestrelhq/cadence/errors"
)

// Strictness controls how the query engine reacts to a chain that fails
// to expand (for example a corrupt stored schedule).
type Strictness string

const (
	// StrictnessLenient collects per-chain errors and returns a partial
	// result for the chains that expanded cleanly.
	StrictnessLenient Strictness = "lenient"

	// StrictnessStrict fails the whole query on the first chain error.
	StrictnessStrict Strictness = "strict"
)

// Default configuration values.
const (
	// DefaultMaxOccurrencesPerQuery caps the total number of events a
	// single query may produce across all chains.
	DefaultMaxOccurrencesPerQuery = 10000
)

// Config holds the query engine's construction-time options.
type Config struct {
	// Strictness selects partial-result versus fail-fast behavior.
	Strictness Strictness

	// MaxOccurrencesPerQuery caps the total events per query.
	MaxOccurrencesPerQuery int

	// Location is the timezone occurrences are reported in. Nil leaves
	// occurrences in the location their schedules were defined in.
	Location *time.Location
}

// Default returns the engine's default configuration: lenient, with the
// default occurrence cap.
func Default() Config {
	return Config{
		Strictness:             StrictnessLenient,
		MaxOccurrencesPerQuery: DefaultMaxOccurrencesPerQuery,
	}
}

// Validate checks the configuration, filling the occurrence cap from the
// default when unset.
func (c *Config) Validate() error {
	switch c.Strictness {
	case StrictnessLenient, StrictnessStrict:
	case "":
		c.Strictness = StrictnessLenient
	default:
		return fmt.Errorf("%w: strictness %q", cadenceerrors.ErrValueOutOfRange, c.Strictness)
	}
	if c.MaxOccurrencesPerQuery == 0 {
		c.MaxOccurrencesPerQuery = DefaultMaxOccurrencesPerQuery
	}
	if c.MaxOccurrencesPerQuery < 1 {
		return fmt.Errorf("%w: max occurrences per query %d",
			cadenceerrors.ErrValueOutOfRange, c.MaxOccurrencesPerQuery)
	}
	return nil
}
