// Package workspace provides workspace isolation and persistence for GLEANER.
// This file implements the storage layer for workspace state files,
// with atomic writes and file locking for data integrity.
package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/mrz1836/gleaner/internal/ctxutil"
	"github.com/mrz1836/gleaner/internal/domain"
	gleanererrors "github.com/mrz1836/gleaner/internal/errors"
	"github.com/mrz1836/gleaner/internal/flock"
)

// CurrentSchemaVersion is the current version of the workspace schema.
// This enables forward-compatible schema migrations.
const CurrentSchemaVersion = 1

// LockTimeout is the maximum duration to wait for acquiring a file lock.
const LockTimeout = 5 * time.Second

// Directory and file permission constants.
const (
	dirPerm  = 0o750 // Secure directory permissions
	filePerm = 0o600 // Secure file permissions
)

// workspaceFileName is the state file name inside each workspace directory.
const workspaceFileName = "workspace.json"

// validNameRegex matches valid workspace names (alphanumeric, dash, underscore).
var validNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// Store defines the interface for workspace persistence operations.
type Store interface {
	// Create persists a new workspace. Returns ErrWorkspaceCollision if a
	// workspace with the same name already exists.
	Create(ctx context.Context, ws *domain.Workspace) error

	// Get retrieves a workspace by name. Returns ErrWorkspaceNotFound if not found.
	Get(ctx context.Context, name string) (*domain.Workspace, error)

	// Update persists changes to an existing workspace. Returns ErrWorkspaceNotFound if not found.
	Update(ctx context.Context, ws *domain.Workspace) error

	// List returns all workspaces. Returns empty slice if none exist.
	List(ctx context.Context) ([]*domain.Workspace, error)

	// Delete removes a workspace and its data. Returns ErrWorkspaceNotFound if not found.
	Delete(ctx context.Context, name string) error

	// Exists returns true if a workspace with the given name exists.
	Exists(ctx context.Context, name string) (bool, error)
}

// FileStore implements Store using the local filesystem.
type FileStore struct {
	baseDir string // The workspaces directory, e.g. ~/.gleaner/workspaces
}

// NewFileStore creates a new FileStore rooted at baseDir.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("workspace store base directory: %w", gleanererrors.ErrEmptyValue)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// Create persists a new workspace.
func (s *FileStore) Create(ctx context.Context, ws *domain.Workspace) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	if err := validateName(ws.Name); err != nil {
		return fmt.Errorf("failed to create workspace '%s': %w", ws.Name, err)
	}

	wsPath := s.workspacePath(ws.Name)
	wsFile := s.workspaceFilePath(ws.Name)

	// A surviving state file means a prior run never cleaned up. This must
	// surface to the operator, never be silently overwritten.
	if _, err := os.Stat(wsFile); err == nil {
		return fmt.Errorf("failed to create workspace '%s': %w", ws.Name, gleanererrors.ErrWorkspaceCollision)
	}

	if err := os.MkdirAll(wsPath, dirPerm); err != nil {
		return fmt.Errorf("failed to create workspace directory '%s': %w", ws.Name, err)
	}

	ws.SchemaVersion = CurrentSchemaVersion

	lockFile, err := s.acquireLock(ctx, ws.Name)
	if err != nil {
		_ = os.RemoveAll(wsPath)
		return fmt.Errorf("failed to create workspace '%s': %w", ws.Name, err)
	}
	defer func() { _ = s.releaseLock(lockFile) }()

	data, err := json.MarshalIndent(ws, "", "  ")
	if err != nil {
		_ = os.RemoveAll(wsPath)
		return fmt.Errorf("failed to create workspace '%s': %w", ws.Name, err)
	}

	if err := atomicWrite(wsFile, data, filePerm); err != nil {
		_ = os.RemoveAll(wsPath)
		return fmt.Errorf("failed to create workspace '%s': %w", ws.Name, err)
	}

	return nil
}

// Get retrieves a workspace by name.
func (s *FileStore) Get(ctx context.Context, name string) (*domain.Workspace, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	if err := validateName(name); err != nil {
		return nil, fmt.Errorf("failed to read workspace '%s': %w", name, err)
	}

	wsPath := s.workspacePath(name)
	if _, err := os.Stat(wsPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read workspace '%s': %w", name, gleanererrors.ErrWorkspaceNotFound)
	}

	lockFile, err := s.acquireLock(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace '%s': %w", name, err)
	}
	defer func() { _ = s.releaseLock(lockFile) }()

	wsFile := s.workspaceFilePath(name)
	data, err := os.ReadFile(wsFile) //#nosec G304 -- path is validated and constructed from trusted base
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read workspace '%s': %w", name, gleanererrors.ErrWorkspaceNotFound)
		}
		return nil, fmt.Errorf("failed to read workspace '%s': %w", name, err)
	}

	var ws domain.Workspace
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("workspace '%s' has corrupted state file: %w. Consider deleting %s/", name, gleanererrors.ErrWorkspaceCorrupted, wsPath)
	}

	return &ws, nil
}

// Update persists changes to an existing workspace.
func (s *FileStore) Update(ctx context.Context, ws *domain.Workspace) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	if err := validateName(ws.Name); err != nil {
		return fmt.Errorf("failed to update workspace '%s': %w", ws.Name, err)
	}

	wsPath := s.workspacePath(ws.Name)
	if _, err := os.Stat(wsPath); os.IsNotExist(err) {
		return fmt.Errorf("failed to update workspace '%s': %w", ws.Name, gleanererrors.ErrWorkspaceNotFound)
	}

	lockFile, err := s.acquireLock(ctx, ws.Name)
	if err != nil {
		return fmt.Errorf("failed to update workspace '%s': %w", ws.Name, err)
	}
	defer func() { _ = s.releaseLock(lockFile) }()

	ws.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(ws, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to update workspace '%s': %w", ws.Name, err)
	}

	wsFile := s.workspaceFilePath(ws.Name)
	if err := atomicWrite(wsFile, data, filePerm); err != nil {
		return fmt.Errorf("failed to update workspace '%s': %w", ws.Name, err)
	}

	return nil
}

// List returns all workspaces.
func (s *FileStore) List(ctx context.Context) ([]*domain.Workspace, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	if _, err := os.Stat(s.baseDir); os.IsNotExist(err) {
		return []*domain.Workspace{}, nil
	}

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}

	workspaces := make([]*domain.Workspace, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		if err := ctxutil.Canceled(ctx); err != nil {
			return nil, err
		}

		ws, err := s.Get(ctx, entry.Name())
		if err != nil {
			// Skip directories without a valid workspace.json
			continue
		}

		workspaces = append(workspaces, ws)
	}

	return workspaces, nil
}

// Delete removes a workspace and its data.
func (s *FileStore) Delete(ctx context.Context, name string) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	if err := validateName(name); err != nil {
		return fmt.Errorf("failed to delete workspace '%s': %w", name, err)
	}

	wsPath := s.workspacePath(name)
	if _, err := os.Stat(wsPath); os.IsNotExist(err) {
		return fmt.Errorf("failed to delete workspace '%s': %w", name, gleanererrors.ErrWorkspaceNotFound)
	}

	if err := os.RemoveAll(wsPath); err != nil {
		return fmt.Errorf("failed to delete workspace '%s': %w", name, err)
	}

	return nil
}

// Exists returns true if a workspace with the given name exists.
func (s *FileStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return false, err
	}

	if err := validateName(name); err != nil {
		return false, fmt.Errorf("failed to check workspace '%s': %w", name, err)
	}

	if _, err := os.Stat(s.workspaceFilePath(name)); os.IsNotExist(err) {
		return false, nil
	}
	return true, nil
}

// workspacePath returns the path to a specific workspace directory.
func (s *FileStore) workspacePath(name string) string {
	return filepath.Join(s.baseDir, name)
}

// workspaceFilePath returns the path to a workspace's JSON file.
func (s *FileStore) workspaceFilePath(name string) string {
	return filepath.Join(s.workspacePath(name), workspaceFileName)
}

// lockFilePath returns the path to a workspace's lock file.
func (s *FileStore) lockFilePath(name string) string {
	return filepath.Join(s.workspacePath(name), workspaceFileName+".lock")
}

// validateName checks if a workspace name is valid.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("workspace name cannot be empty: %w", gleanererrors.ErrEmptyValue)
	}
	if len(name) > 255 {
		return fmt.Errorf("workspace name too long (max 255 characters): %w", gleanererrors.ErrValueOutOfRange)
	}
	if !validNameRegex.MatchString(name) {
		return fmt.Errorf("workspace name contains invalid characters (use alphanumeric, dash, underscore): %w", gleanererrors.ErrValueOutOfRange)
	}
	// Check for path traversal attempts
	if strings.Contains(name, "..") || strings.Contains(name, "/") || strings.Contains(name, "\\") {
		return fmt.Errorf("workspace name contains invalid path characters: %w", gleanererrors.ErrValueOutOfRange)
	}
	return nil
}

// acquireLock acquires an exclusive file lock for the workspace.
// It respects context cancellation during the lock acquisition retry loop.
func (s *FileStore) acquireLock(ctx context.Context, name string) (*os.File, error) {
	lockPath := s.lockFilePath(name)

	wsPath := s.workspacePath(name)
	if err := os.MkdirAll(wsPath, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, filePerm) //#nosec G302,G304 -- lock file needs write access, path is constructed from validated name
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

		err := flock.Exclusive(f.Fd())
		if err == nil {
			return f, nil
		}

		if time.Now().After(deadline) {
			_ = f.Close()
			return nil, fmt.Errorf("failed to acquire lock: %w", gleanererrors.ErrLockTimeout)
		}

		time.Sleep(50 * time.Millisecond)
	}
}

// releaseLock releases a file lock.
func (s *FileStore) releaseLock(f *os.File) error {
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

	// Ensure data is persisted before rename
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
