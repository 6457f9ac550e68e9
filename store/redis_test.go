package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cadenceerrors "github.com/kestrelhq/cadence/errors"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s, err := NewRedisStore(client)
	require.NoError(t, err)
	return s
}

func TestNewRedisStoreRequiresClient(t *testing.T) {
	_, err := NewRedisStore(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, cadenceerrors.ErrEmptyValue)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	s := newRedisStore(t)
	ctx := context.Background()

	orig := testVersion(t, "chain-1", 1)
	require.NoError(t, s.SaveVersion(ctx, orig))
	require.NoError(t, s.SaveOutcome(ctx, testOutcome("chain-1", at(3, 9))))

	versions, err := s.Versions(ctx, "chain-1")
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, orig.Title, versions[0].Title)
	require.NotNil(t, versions[0].Schedule)
	assert.True(t, orig.Schedule.Equal(versions[0].Schedule))

	outcomes, err := s.Outcomes(ctx, "chain-1")
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.True(t, at(3, 9).Equal(outcomes[0].OccurrenceStart))
}

func TestRedisStoreVersionOrdering(t *testing.T) {
	s := newRedisStore(t)
	ctx := context.Background()

	for seq := 1; seq <= 12; seq++ {
		require.NoError(t, s.SaveVersion(ctx, testVersion(t, "chain-1", seq)))
	}

	versions, err := s.Versions(ctx, "chain-1")
	require.NoError(t, err)
	require.Len(t, versions, 12)
	for i, v := range versions {
		assert.Equal(t, i+1, v.Seq)
	}
}

func TestRedisStoreVersionConflict(t *testing.T) {
	s := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveVersion(ctx, testVersion(t, "chain-1", 1)))

	err := s.SaveVersion(ctx, testVersion(t, "chain-1", 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, cadenceerrors.ErrChainExists)

	err = s.SaveVersion(ctx, testVersion(t, "chain-1", 3))
	require.Error(t, err)
	assert.ErrorIs(t, err, cadenceerrors.ErrVersionConflict)
}

func TestRedisStoreOutcomeDuplicateRejected(t *testing.T) {
	s := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveVersion(ctx, testVersion(t, "chain-1", 1)))
	require.NoError(t, s.SaveOutcome(ctx, testOutcome("chain-1", at(3, 9))))

	err := s.SaveOutcome(ctx, testOutcome("chain-1", at(3, 9)))
	require.Error(t, err)
	assert.ErrorIs(t, err, cadenceerrors.ErrAlreadyCompleted)
}

func TestRedisStoreOutcomeUnknownChain(t *testing.T) {
	s := newRedisStore(t)

	err := s.SaveOutcome(context.Background(), testOutcome("chain-missing", at(3, 9)))
	require.Error(t, err)
	assert.ErrorIs(t, err, cadenceerrors.ErrChainNotFound)
}

func TestRedisStoreVersionsUnknownChain(t *testing.T) {
	s := newRedisStore(t)

	_, err := s.Versions(context.Background(), "chain-missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, cadenceerrors.ErrChainNotFound)

	_, err = s.Outcomes(context.Background(), "chain-missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, cadenceerrors.ErrChainNotFound)
}

func TestRedisStoreChains(t *testing.T) {
	s := newRedisStore(t)
	ctx := context.Background()

	chains, err := s.Chains(ctx)
	require.NoError(t, err)
	assert.Empty(t, chains)

	require.NoError(t, s.SaveVersion(ctx, testVersion(t, "chain-b", 1)))
	require.NoError(t, s.SaveVersion(ctx, testVersion(t, "chain-a", 1)))

	chains, err = s.Chains(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"chain-a", "chain-b"}, chains)
}

func TestRedisStoreDeleteChainCascades(t *testing.T) {
	s := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveVersion(ctx, testVersion(t, "chain-1", 1)))
	require.NoError(t, s.SaveOutcome(ctx, testOutcome("chain-1", at(3, 9))))

	require.NoError(t, s.DeleteChain(ctx, "chain-1"))

	_, err := s.Versions(ctx, "chain-1")
	assert.ErrorIs(t, err, cadenceerrors.ErrChainNotFound)

	err = s.DeleteChain(ctx, "chain-1")
	assert.ErrorIs(t, err, cadenceerrors.ErrChainNotFound)
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	s, err := NewRedisStore(client)
	require.NoError(t, err)

	mr.Close()

	saveErr := s.SaveVersion(context.Background(), testVersion(t, "chain-1", 1))
	require.Error(t, saveErr)
	assert.ErrorIs(t, saveErr, cadenceerrors.ErrStoreUnavailable)
}
