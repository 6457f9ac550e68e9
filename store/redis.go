package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	cadenceerrors "github.com/kestrelhq/cadence/errors"
	"github.com/kestrelhq/cadence/task"
)

// Redis key layout. Versions and outcomes live in per-chain hashes so a
// chain is always written and deleted as a unit.
const (
	redisChainSetKey    = "cadence:chains"
	redisVersionsKeyFmt = "cadence:chain:%s:versions"
	redisOutcomesKeyFmt = "cadence:chain:%s:outcomes"
)

// RedisStore implements task.Store on Redis. The at-most-one-outcome
// invariant is enforced atomically with HSETNX, so it holds even across
// multiple processes sharing one Redis instance without any client-side
// locking.
type RedisStore struct {
	rdb redis.UniversalClient
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(rdb redis.UniversalClient) (*RedisStore, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client %w", cadenceerrors.ErrEmptyValue)
	}
	return &RedisStore{rdb: rdb}, nil
}

func redisVersionsKey(chainID string) string {
	return fmt.Sprintf(redisVersionsKeyFmt, chainID)
}

func redisOutcomesKey(chainID string) string {
	return fmt.Sprintf(redisOutcomesKeyFmt, chainID)
}

// SaveVersion appends a version record to its chain. HSETNX on the
// sequence field detects two writers racing to append the same version.
func (s *RedisStore) SaveVersion(ctx context.Context, v *task.Version) error {
	if v == nil || v.ChainID == "" {
		return fmt.Errorf("failed to save version: chain id %w", cadenceerrors.ErrEmptyValue)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to save version for '%s': %w", v.ChainID, err)
	}

	key := redisVersionsKey(v.ChainID)
	count, err := s.rdb.HLen(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %s", cadenceerrors.ErrStoreUnavailable, err)
	}
	if v.Seq == 1 && count > 0 {
		return fmt.Errorf("%w: '%s'", cadenceerrors.ErrChainExists, v.ChainID)
	}
	if v.Seq != int(count)+1 {
		return fmt.Errorf("%w: chain '%s' expects seq %d, got %d",
			cadenceerrors.ErrVersionConflict, v.ChainID, count+1, v.Seq)
	}
	set, err := s.rdb.HSetNX(ctx, key, strconv.Itoa(v.Seq), data).Result()
	if err != nil {
		return fmt.Errorf("%w: %s", cadenceerrors.ErrStoreUnavailable, err)
	}
	if !set {
		return fmt.Errorf("%w: chain '%s' seq %d already written",
			cadenceerrors.ErrVersionConflict, v.ChainID, v.Seq)
	}
	if err := s.rdb.SAdd(ctx, redisChainSetKey, v.ChainID).Err(); err != nil {
		return fmt.Errorf("%w: %s", cadenceerrors.ErrStoreUnavailable, err)
	}
	return nil
}

// SaveOutcome records a completion. The outcome field is keyed by the
// occurrence start instant; HSETNX makes the duplicate check and the
// write a single atomic step.
func (s *RedisStore) SaveOutcome(ctx context.Context, o *task.Outcome) error {
	if o == nil || o.ChainID == "" {
		return fmt.Errorf("failed to save outcome: chain id %w", cadenceerrors.ErrEmptyValue)
	}
	exists, err := s.rdb.SIsMember(ctx, redisChainSetKey, o.ChainID).Result()
	if err != nil {
		return fmt.Errorf("%w: %s", cadenceerrors.ErrStoreUnavailable, err)
	}
	if !exists {
		return fmt.Errorf("%w: '%s'", cadenceerrors.ErrChainNotFound, o.ChainID)
	}
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to save outcome for '%s': %w", o.ChainID, err)
	}
	field := strconv.FormatInt(task.OutcomeKey(o.OccurrenceStart), 10)
	set, err := s.rdb.HSetNX(ctx, redisOutcomesKey(o.ChainID), field, data).Result()
	if err != nil {
		return fmt.Errorf("%w: %s", cadenceerrors.ErrStoreUnavailable, err)
	}
	if !set {
		return fmt.Errorf("%w: '%s' at %s",
			cadenceerrors.ErrAlreadyCompleted, o.ChainID, o.OccurrenceStart)
	}
	return nil
}

// Versions returns the chain's version records, ordered by sequence.
func (s *RedisStore) Versions(ctx context.Context, chainID string) ([]*task.Version, error) {
	fields, err := s.rdb.HGetAll(ctx, redisVersionsKey(chainID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", cadenceerrors.ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: '%s'", cadenceerrors.ErrChainNotFound, chainID)
	}
	seqs := make([]int, 0, len(fields))
	for field := range fields {
		seq, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("%w: version field %q of '%s'",
				cadenceerrors.ErrDecoding, field, chainID)
		}
		seqs = append(seqs, seq)
	}
	sort.Ints(seqs)
	out := make([]*task.Version, 0, len(seqs))
	for _, seq := range seqs {
		var v task.Version
		if err := json.Unmarshal([]byte(fields[strconv.Itoa(seq)]), &v); err != nil {
			return nil, fmt.Errorf("%w: version %d of '%s': %s",
				cadenceerrors.ErrDecoding, seq, chainID, err)
		}
		out = append(out, &v)
	}
	return out, nil
}

// Outcomes returns the chain's recorded outcomes.
func (s *RedisStore) Outcomes(ctx context.Context, chainID string) ([]*task.Outcome, error) {
	exists, err := s.rdb.SIsMember(ctx, redisChainSetKey, chainID).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", cadenceerrors.ErrStoreUnavailable, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: '%s'", cadenceerrors.ErrChainNotFound, chainID)
	}
	fields, err := s.rdb.HGetAll(ctx, redisOutcomesKey(chainID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", cadenceerrors.ErrStoreUnavailable, err)
	}
	out := make([]*task.Outcome, 0, len(fields))
	for field, raw := range fields {
		var o task.Outcome
		if err := json.Unmarshal([]byte(raw), &o); err != nil {
			return nil, fmt.Errorf("%w: outcome %s of '%s': %s",
				cadenceerrors.ErrDecoding, field, chainID, err)
		}
		out = append(out, &o)
	}
	return out, nil
}

// Chains lists all known chain ids, sorted ascending.
func (s *RedisStore) Chains(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, redisChainSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", cadenceerrors.ErrStoreUnavailable, err)
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteChain removes the chain's versions and, cascading, its outcomes.
func (s *RedisStore) DeleteChain(ctx context.Context, chainID string) error {
	removed, err := s.rdb.SRem(ctx, redisChainSetKey, chainID).Result()
	if err != nil {
		return fmt.Errorf("%w: %s", cadenceerrors.ErrStoreUnavailable, err)
	}
	if removed == 0 {
		return fmt.Errorf("%w: '%s'", cadenceerrors.ErrChainNotFound, chainID)
	}
	if err := s.rdb.Del(ctx, redisVersionsKey(chainID), redisOutcomesKey(chainID)).Err(); err != nil {
		return fmt.Errorf("%w: %s", cadenceerrors.ErrStoreUnavailable, err)
	}
	return nil
}

// Ensure RedisStore implements task.Store.
var _ task.Store = (*RedisStore)(nil)
