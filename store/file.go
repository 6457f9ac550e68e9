package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"syscall"
	"time"

	cadenceerrors "github.com/kestrelhq/cadence/errors"
	"github.com/kestrelhq/cadence/task"
)

// lockTimeout is the maximum duration to wait for acquiring a chain's
// file lock.
const lockTimeout = 5 * time.Second

// Directory and file permission constants.
const (
	dirPerm  = 0o750
	filePerm = 0o600
)

// chainsDirName is the subdirectory of the cadence home holding chains.
const chainsDirName = "chains"

// validChainDirRegex matches chain ids that are safe as directory names.
var validChainDirRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// FileStore implements task.Store on the local filesystem. Each chain
// owns a directory with its version and outcome documents:
//
//	<home>/chains/<chain-id>/versions/<seq>.json
//	<home>/chains/<chain-id>/outcomes/<start-unixnano>.json
//
// Writes are atomic (write-then-rename) and serialized per chain via an
// exclusive file lock, so a crash never leaves a half-written document
// and two processes cannot append conflicting versions.
type FileStore struct {
	home string // Usually ~/.cadence
}

// NewFileStore creates a FileStore rooted at home. If home is empty, the
// CADENCE_HOME environment variable is used, then ~/.cadence.
func NewFileStore(home string) (*FileStore, error) {
	if home == "" {
		home = os.Getenv("CADENCE_HOME")
	}
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		home = filepath.Join(userHome, ".cadence")
	}
	return &FileStore{home: home}, nil
}

// SaveVersion appends a version record to its chain.
func (s *FileStore) SaveVersion(ctx context.Context, v *task.Version) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if v == nil || v.ChainID == "" {
		return fmt.Errorf("failed to save version: chain id %w", cadenceerrors.ErrEmptyValue)
	}
	if !validChainDirRegex.MatchString(v.ChainID) {
		return fmt.Errorf("%w: %q", cadenceerrors.ErrInvalidChainID, v.ChainID)
	}

	lockFile, err := s.acquireLock(ctx, v.ChainID)
	if err != nil {
		return fmt.Errorf("failed to save version for '%s': %w", v.ChainID, err)
	}
	defer func() { _ = releaseLock(lockFile) }()

	seqs, err := s.versionSeqs(v.ChainID)
	if err != nil {
		return fmt.Errorf("failed to save version for '%s': %w", v.ChainID, err)
	}
	if v.Seq == 1 && len(seqs) > 0 {
		return fmt.Errorf("%w: '%s'", cadenceerrors.ErrChainExists, v.ChainID)
	}
	if v.Seq != len(seqs)+1 {
		return fmt.Errorf("%w: chain '%s' expects seq %d, got %d",
			cadenceerrors.ErrVersionConflict, v.ChainID, len(seqs)+1, v.Seq)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to save version for '%s': %w", v.ChainID, err)
	}
	dir := s.versionsDir(v.ChainID)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create versions directory: %w", err)
	}
	if err := os.MkdirAll(s.outcomesDir(v.ChainID), dirPerm); err != nil {
		return fmt.Errorf("failed to create outcomes directory: %w", err)
	}
	path := filepath.Join(dir, strconv.Itoa(v.Seq)+".json")
	if err := atomicWrite(path, data); err != nil {
		return fmt.Errorf("failed to save version for '%s': %w", v.ChainID, err)
	}
	return nil
}

// SaveOutcome records a completion, rejecting duplicates per
// (chain, occurrence start).
func (s *FileStore) SaveOutcome(ctx context.Context, o *task.Outcome) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if o == nil || o.ChainID == "" {
		return fmt.Errorf("failed to save outcome: chain id %w", cadenceerrors.ErrEmptyValue)
	}
	if _, err := os.Stat(s.chainDir(o.ChainID)); os.IsNotExist(err) {
		return fmt.Errorf("%w: '%s'", cadenceerrors.ErrChainNotFound, o.ChainID)
	}

	lockFile, err := s.acquireLock(ctx, o.ChainID)
	if err != nil {
		return fmt.Errorf("failed to save outcome for '%s': %w", o.ChainID, err)
	}
	defer func() { _ = releaseLock(lockFile) }()

	path := filepath.Join(s.outcomesDir(o.ChainID),
		strconv.FormatInt(task.OutcomeKey(o.OccurrenceStart), 10)+".json")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: '%s' at %s",
			cadenceerrors.ErrAlreadyCompleted, o.ChainID, o.OccurrenceStart)
	}

	data, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to save outcome for '%s': %w", o.ChainID, err)
	}
	if err := os.MkdirAll(s.outcomesDir(o.ChainID), dirPerm); err != nil {
		return fmt.Errorf("failed to create outcomes directory: %w", err)
	}
	if err := atomicWrite(path, data); err != nil {
		return fmt.Errorf("failed to save outcome for '%s': %w", o.ChainID, err)
	}
	return nil
}

// Versions returns the chain's version records, ordered by sequence.
func (s *FileStore) Versions(ctx context.Context, chainID string) ([]*task.Version, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	if _, err := os.Stat(s.chainDir(chainID)); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: '%s'", cadenceerrors.ErrChainNotFound, chainID)
	}

	lockFile, err := s.acquireLock(ctx, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to read versions for '%s': %w", chainID, err)
	}
	defer func() { _ = releaseLock(lockFile) }()

	seqs, err := s.versionSeqs(chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to read versions for '%s': %w", chainID, err)
	}
	out := make([]*task.Version, 0, len(seqs))
	for _, seq := range seqs {
		path := filepath.Join(s.versionsDir(chainID), strconv.Itoa(seq)+".json")
		data, err := os.ReadFile(path) //#nosec G304 -- path is validated and constructed from trusted base
		if err != nil {
			return nil, fmt.Errorf("failed to read version %d of '%s': %w", seq, chainID, err)
		}
		var v task.Version
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("%w: version %d of '%s': %s",
				cadenceerrors.ErrDecoding, seq, chainID, err)
		}
		out = append(out, &v)
	}
	return out, nil
}

// Outcomes returns the chain's recorded outcomes.
func (s *FileStore) Outcomes(ctx context.Context, chainID string) ([]*task.Outcome, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	if _, err := os.Stat(s.chainDir(chainID)); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: '%s'", cadenceerrors.ErrChainNotFound, chainID)
	}

	lockFile, err := s.acquireLock(ctx, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to read outcomes for '%s': %w", chainID, err)
	}
	defer func() { _ = releaseLock(lockFile) }()

	dir := s.outcomesDir(chainID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*task.Outcome{}, nil
		}
		return nil, fmt.Errorf("failed to read outcomes for '%s': %w", chainID, err)
	}
	out := make([]*task.Outcome, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name())) //#nosec G304 -- path is constructed internally
		if err != nil {
			return nil, fmt.Errorf("failed to read outcome '%s' of '%s': %w", entry.Name(), chainID, err)
		}
		var o task.Outcome
		if err := json.Unmarshal(data, &o); err != nil {
			return nil, fmt.Errorf("%w: outcome '%s' of '%s': %s",
				cadenceerrors.ErrDecoding, entry.Name(), chainID, err)
		}
		out = append(out, &o)
	}
	return out, nil
}

// Chains lists all known chain ids, sorted ascending.
func (s *FileStore) Chains(ctx context.Context) ([]string, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.home, chainsDirName))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list chains: %w", err)
	}
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() && validChainDirRegex.MatchString(entry.Name()) {
			out = append(out, entry.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// DeleteChain removes the chain directory, cascading to its outcomes.
func (s *FileStore) DeleteChain(ctx context.Context, chainID string) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if !validChainDirRegex.MatchString(chainID) {
		return fmt.Errorf("%w: %q", cadenceerrors.ErrInvalidChainID, chainID)
	}
	dir := s.chainDir(chainID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("%w: '%s'", cadenceerrors.ErrChainNotFound, chainID)
	}
	// The lock file lives inside the chain directory; take and release
	// the lock before removal.
	lockFile, err := s.acquireLock(ctx, chainID)
	if err != nil {
		return fmt.Errorf("failed to delete chain '%s': %w", chainID, err)
	}
	_ = releaseLock(lockFile)

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete chain '%s': %w", chainID, err)
	}
	return nil
}

// Path helpers.

func (s *FileStore) chainDir(chainID string) string {
	return filepath.Join(s.home, chainsDirName, chainID)
}

func (s *FileStore) versionsDir(chainID string) string {
	return filepath.Join(s.chainDir(chainID), "versions")
}

func (s *FileStore) outcomesDir(chainID string) string {
	return filepath.Join(s.chainDir(chainID), "outcomes")
}

func (s *FileStore) lockFilePath(chainID string) string {
	return filepath.Join(s.chainDir(chainID), ".lock")
}

// versionSeqs returns the chain's stored sequence numbers, sorted
// ascending. Missing directories yield an empty slice.
func (s *FileStore) versionSeqs(chainID string) ([]int, error) {
	entries, err := os.ReadDir(s.versionsDir(chainID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	seqs := make([]int, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		seq, err := strconv.Atoi(name[:len(name)-len(".json")])
		if err != nil {
			continue
		}
		seqs = append(seqs, seq)
	}
	sort.Ints(seqs)
	return seqs, nil
}

// acquireLock acquires an exclusive file lock for the chain. It respects
// context cancellation during the retry loop.
func (s *FileStore) acquireLock(ctx context.Context, chainID string) (*os.File, error) {
	if err := os.MkdirAll(s.chainDir(chainID), dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	f, err := os.OpenFile(s.lockFilePath(chainID), os.O_CREATE|os.O_RDWR, filePerm) //#nosec G302,G304 -- lock file needs write access, path is constructed from validated id
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	deadline := time.Now().Add(lockTimeout)
	for {
		select {
		case <-ctx.Done():
			_ = f.Close()
			return nil, ctx.Err()
		default:
		}

		err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			return f, nil
		}
		if time.Now().After(deadline) {
			_ = f.Close()
			return nil, fmt.Errorf("failed to acquire lock: %w", cadenceerrors.ErrLockTimeout)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// releaseLock releases a file lock.
func releaseLock(f *os.File) error {
	if f == nil {
		return nil
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_UN); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return f.Close()
}

// atomicWrite writes data to a file atomically using write-then-rename.
func atomicWrite(path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm) //#nosec G304 -- path is constructed internally
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

// Ensure FileStore implements task.Store.
var _ task.Store = (*FileStore)(nil)
