// Package run provides persistence and identity for pipeline runs.
// Run state lives in per-run JSON files; completed runs are additionally
// appended to a JSONL history log that the history command reads.
package run

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mrz1836/gleaner/internal/constants"
	"github.com/mrz1836/gleaner/internal/ctxutil"
	"github.com/mrz1836/gleaner/internal/domain"
	gleanererrors "github.com/mrz1836/gleaner/internal/errors"
	"github.com/mrz1836/gleaner/internal/flock"
)

// CurrentSchemaVersion is the current version of the run schema.
const CurrentSchemaVersion = 1

// LockTimeout is the maximum duration to wait for acquiring the store lock.
const LockTimeout = 5 * time.Second

// Directory and file permission constants.
const (
	dirPerm  = 0o750
	filePerm = 0o600
)

// validIDRegex matches valid run IDs.
var validIDRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// NewID generates a new unique run identifier.
func NewID() string {
	return "run-" + uuid.NewString()
}

// Store defines the interface for run persistence operations.
type Store interface {
	// Create persists a new run.
	Create(ctx context.Context, r *domain.Run) error

	// Update persists changes to an existing run. When the run has reached
	// a terminal status it is also appended to the history log.
	// Returns ErrRunNotFound if not found.
	Update(ctx context.Context, r *domain.Run) error

	// Get retrieves a run by ID. Returns ErrRunNotFound if not found.
	Get(ctx context.Context, id string) (*domain.Run, error)

	// List returns all runs, most recent first.
	List(ctx context.Context) ([]*domain.Run, error)

	// Latest returns the most recently started run.
	// Returns ErrRunNotFound when no runs exist.
	Latest(ctx context.Context) (*domain.Run, error)

	// History returns up to limit completed runs from the history log,
	// most recent first. limit <= 0 means all.
	History(ctx context.Context, limit int) ([]*domain.Run, error)
}

// FileStore implements Store using the local filesystem.
type FileStore struct {
	baseDir string // The runs directory, e.g. ~/.gleaner/runs
}

// NewFileStore creates a new FileStore rooted at baseDir.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("run store base directory: %w", gleanererrors.ErrEmptyValue)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// Create persists a new run.
func (s *FileStore) Create(ctx context.Context, r *domain.Run) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	if err := validateID(r.ID); err != nil {
		return fmt.Errorf("failed to create run '%s': %w", r.ID, err)
	}

	if err := os.MkdirAll(s.baseDir, dirPerm); err != nil {
		return fmt.Errorf("failed to create runs directory: %w", err)
	}

	r.SchemaVersion = CurrentSchemaVersion

	lockFile, err := s.acquireLock(ctx)
	if err != nil {
		return fmt.Errorf("failed to create run '%s': %w", r.ID, err)
	}
	defer func() { _ = releaseLock(lockFile) }()

	return s.writeRun(r)
}

// Update persists changes to an existing run.
func (s *FileStore) Update(ctx context.Context, r *domain.Run) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	if err := validateID(r.ID); err != nil {
		return fmt.Errorf("failed to update run '%s': %w", r.ID, err)
	}

	if _, err := os.Stat(s.runFilePath(r.ID)); os.IsNotExist(err) {
		return fmt.Errorf("failed to update run '%s': %w", r.ID, gleanererrors.ErrRunNotFound)
	}

	lockFile, err := s.acquireLock(ctx)
	if err != nil {
		return fmt.Errorf("failed to update run '%s': %w", r.ID, err)
	}
	defer func() { _ = releaseLock(lockFile) }()

	if err := s.writeRun(r); err != nil {
		return err
	}

	// Terminal runs go into the append-only history log exactly once
	if r.Status.IsTerminal() {
		if err := s.appendHistory(r); err != nil {
			return fmt.Errorf("failed to record run '%s' in history: %w", r.ID, err)
		}
	}

	return nil
}

// Get retrieves a run by ID.
func (s *FileStore) Get(ctx context.Context, id string) (*domain.Run, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	if err := validateID(id); err != nil {
		return nil, fmt.Errorf("failed to read run '%s': %w", id, err)
	}

	data, err := os.ReadFile(s.runFilePath(id)) //#nosec G304 -- path is validated and constructed from trusted base
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read run '%s': %w", id, gleanererrors.ErrRunNotFound)
		}
		return nil, fmt.Errorf("failed to read run '%s': %w", id, err)
	}

	var r domain.Run
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("run '%s' has corrupted state file: %w", id, err)
	}

	return &r, nil
}

// List returns all runs, most recent first.
func (s *FileStore) List(ctx context.Context) ([]*domain.Run, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	if _, err := os.Stat(s.baseDir); os.IsNotExist(err) {
		return []*domain.Run{}, nil
	}

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]*domain.Run, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		if err := ctxutil.Canceled(ctx); err != nil {
			return nil, err
		}

		id := entry.Name()[:len(entry.Name())-len(".json")]
		r, getErr := s.Get(ctx, id)
		if getErr != nil {
			// Skip files that are not valid run state
			continue
		}
		runs = append(runs, r)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	return runs, nil
}

// Latest returns the most recently started run.
func (s *FileStore) Latest(ctx context.Context) (*domain.Run, error) {
	runs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("no runs recorded: %w", gleanererrors.ErrRunNotFound)
	}
	return runs[0], nil
}

// History returns up to limit completed runs, most recent first.
func (s *FileStore) History(ctx context.Context, limit int) ([]*domain.Run, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	f, err := os.Open(s.historyFilePath()) //#nosec G304 -- path is constructed from trusted base
	if err != nil {
		if os.IsNotExist(err) {
			return []*domain.Run{}, nil
		}
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}
	defer func() { _ = f.Close() }()

	var runs []*domain.Run
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var r domain.Run
		if err := json.Unmarshal(line, &r); err != nil {
			// A torn line at the tail must not hide the rest of the history
			continue
		}
		runs = append(runs, &r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read run history: %w", err)
	}

	// The log appends in completion order; reverse for most recent first
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}

	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}

	return runs, nil
}

// writeRun persists the run state file atomically. Caller holds the lock.
func (s *FileStore) writeRun(r *domain.Run) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run '%s': %w", r.ID, err)
	}
	if err := atomicWrite(s.runFilePath(r.ID), data, filePerm); err != nil {
		return fmt.Errorf("failed to write run '%s': %w", r.ID, err)
	}
	return nil
}

// appendHistory appends the run as one JSONL line. Caller holds the lock.
// Re-appending on repeated terminal updates is prevented by checking the
// last recorded entry for this run ID.
func (s *FileStore) appendHistory(r *domain.Run) error {
	recorded, err := s.historyContains(r.ID)
	if err != nil {
		return err
	}
	if recorded {
		return nil
	}

	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode history entry: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(s.historyFilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePerm) //#nosec G304 -- path is constructed from trusted base
	if err != nil {
		return fmt.Errorf("failed to open run history: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("failed to append run history: %w", err)
	}
	return f.Sync()
}

// historyContains reports whether the history log already has the run.
func (s *FileStore) historyContains(id string) (bool, error) {
	f, err := os.Open(s.historyFilePath()) //#nosec G304 -- path is constructed from trusted base
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to open run history: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var entry struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(scanner.Bytes(), &entry) == nil && entry.ID == id {
			return true, nil
		}
	}
	return false, scanner.Err()
}

// runFilePath returns the path to a run's JSON file.
func (s *FileStore) runFilePath(id string) string {
	return filepath.Join(s.baseDir, id+".json")
}

// historyFilePath returns the path to the history log.
func (s *FileStore) historyFilePath() string {
	return filepath.Join(s.baseDir, constants.RunHistoryFileName)
}

// lockFilePath returns the path to the store lock file.
func (s *FileStore) lockFilePath() string {
	return filepath.Join(s.baseDir, "store.lock")
}

// validateID checks if a run ID is valid.
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("run id cannot be empty: %w", gleanererrors.ErrEmptyValue)
	}
	if len(id) > 255 {
		return fmt.Errorf("run id too long (max 255 characters): %w", gleanererrors.ErrValueOutOfRange)
	}
	if !validIDRegex.MatchString(id) {
		return fmt.Errorf("run id contains invalid characters: %w", gleanererrors.ErrValueOutOfRange)
	}
	return nil
}

// acquireLock acquires the exclusive store lock.
// It respects context cancellation during the lock acquisition retry loop.
func (s *FileStore) acquireLock(ctx context.Context) (*os.File, error) {
	if err := os.MkdirAll(s.baseDir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	f, err := os.OpenFile(s.lockFilePath(), os.O_CREATE|os.O_RDWR, filePerm) //#nosec G302,G304 -- lock file needs write access, path is constructed from trusted base
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	deadline := time.Now().Add(LockTimeout)
	for {
		select {
		case <-ctx.Done():
			_ = f.Close()
			return nil, ctx.Err()
		default:
		}

		if lockErr := flock.Exclusive(f.Fd()); lockErr == nil {
			return f, nil
		}

		if time.Now().After(deadline) {
			_ = f.Close()
			return nil, fmt.Errorf("failed to acquire lock: %w", gleanererrors.ErrLockTimeout)
		}

		time.Sleep(50 * time.Millisecond)
	}
}

// releaseLock releases the store lock.
func releaseLock(f *os.File) error {
	if f == nil {
		return nil
	}

	if err := flock.Unlock(f.Fd()); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to release lock: %w", err)
	}

	return f.Close()
}

// atomicWrite writes data to a file atomically using write-then-rename.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm) //#nosec G304 -- path is constructed internally
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
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}
