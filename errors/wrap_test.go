package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))

	err := Wrap(ErrChainNotFound, "loading chain")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChainNotFound)
	assert.Contains(t, err.Error(), "loading chain")
}

func TestWrapf(t *testing.T) {
	assert.Nil(t, Wrapf(nil, "chain '%s'", "chain-1"))

	err := Wrapf(ErrVersionConflict, "chain '%s'", "chain-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.Contains(t, err.Error(), "chain-1")
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrInvalidInterval,
		ErrInvalidFrequency,
		ErrInvalidEndCondition,
		ErrInvalidRule,
		ErrInvalidDuration,
		ErrCalendar,
		ErrInvalidRange,
		ErrShadowedOutcome,
		ErrAlreadyCompleted,
		ErrOccurrenceNotFound,
		ErrDecoding,
		ErrChainNotFound,
		ErrChainExists,
		ErrVersionConflict,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.False(t, stderrors.Is(a, b), "%v must not match %v", a, b)
		}
	}
}
