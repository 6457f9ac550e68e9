package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cadenceerrors "github.com/kestrelhq/cadence/errors"
)

func TestNewRange(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	r, err := NewRange(start, end)
	require.NoError(t, err)
	assert.True(t, start.Equal(r.Start))
	assert.True(t, end.Equal(r.End))

	_, err = NewRange(end, start)
	require.Error(t, err)
	assert.ErrorIs(t, err, cadenceerrors.ErrInvalidRange)
}

func TestRangeContainsIsHalfOpen(t *testing.T) {
	r := Range{
		Start: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
	}

	assert.True(t, r.Contains(r.Start), "start is inclusive")
	assert.True(t, r.Contains(time.Date(2026, 3, 2, 23, 59, 59, 0, time.UTC)))
	assert.False(t, r.Contains(r.End), "end is exclusive")
	assert.False(t, r.Contains(r.Start.Add(-time.Second)))
}

func TestRangeIsEmpty(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	assert.True(t, Range{Start: at, End: at}.IsEmpty())
	assert.False(t, Range{Start: at, End: at.Add(time.Second)}.IsEmpty())
}

func TestDay(t *testing.T) {
	r := Day(time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC))

	assert.True(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC).Equal(r.Start))
	assert.True(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC).Equal(r.End))
}

func TestRangeClamp(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name  string
		r     Range
		other Range
		want  Range
	}{
		{
			name:  "overlap",
			r:     Range{Start: day(2), End: day(10)},
			other: Range{Start: day(5), End: day(20)},
			want:  Range{Start: day(5), End: day(10)},
		},
		{
			name:  "contained",
			r:     Range{Start: day(2), End: day(10)},
			other: Range{Start: day(1), End: day(20)},
			want:  Range{Start: day(2), End: day(10)},
		},
		{
			name:  "disjoint collapses to empty",
			r:     Range{Start: day(2), End: day(5)},
			other: Range{Start: day(10), End: day(20)},
			want:  Range{Start: day(10), End: day(10)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.r.Clamp(tt.other)
			assert.True(t, tt.want.Start.Equal(got.Start))
			assert.True(t, tt.want.End.Equal(got.End))
		})
	}
}
