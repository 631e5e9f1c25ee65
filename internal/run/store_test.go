package run

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/gleaner/internal/constants"
	"github.com/mrz1836/gleaner/internal/domain"
	gleanererrors "github.com/mrz1836/gleaner/internal/errors"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()

	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func newTestRun(id string, started time.Time) *domain.Run {
	return &domain.Run{
		ID:        id,
		Trigger:   constants.TriggerKindManual,
		Status:    constants.RunStatusRunning,
		StartedAt: started,
	}
}

func TestNewID(t *testing.T) {
	t.Parallel()

	id := NewID()
	assert.True(t, strings.HasPrefix(id, "run-"))
	assert.NotEqual(t, id, NewID())
	require.NoError(t, validateID(id))
}

func TestStoreCreateAndGet(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	r := newTestRun("run-a", time.Now().UTC())
	require.NoError(t, store.Create(ctx, r))
	assert.Equal(t, CurrentSchemaVersion, r.SchemaVersion)

	got, err := store.Get(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, constants.RunStatusRunning, got.Status)
}

func TestStoreGetNotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	_, err := store.Get(context.Background(), "run-missing")
	require.ErrorIs(t, err, gleanererrors.ErrRunNotFound)
}

func TestStoreUpdateNotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	err := store.Update(context.Background(), newTestRun("run-missing", time.Now()))
	require.ErrorIs(t, err, gleanererrors.ErrRunNotFound)
}

func TestStoreListMostRecentFirst(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.Create(ctx, newTestRun("run-old", base)))
	require.NoError(t, store.Create(ctx, newTestRun("run-new", base.Add(time.Hour))))

	runs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-new", runs[0].ID)
	assert.Equal(t, "run-old", runs[1].ID)

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-new", latest.ID)
}

func TestStoreLatestEmpty(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	_, err := store.Latest(context.Background())
	require.ErrorIs(t, err, gleanererrors.ErrRunNotFound)
}

func TestStoreHistoryRecordsTerminalRunsOnce(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	r := newTestRun("run-a", base)
	require.NoError(t, store.Create(ctx, r))

	// Running updates do not touch the history log
	require.NoError(t, store.Update(ctx, r))
	history, err := store.History(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, history)

	ended := base.Add(time.Minute)
	r.Status = constants.RunStatusSucceeded
	r.EndedAt = &ended
	require.NoError(t, store.Update(ctx, r))

	// A second terminal update must not duplicate the entry
	require.NoError(t, store.Update(ctx, r))

	history, err = store.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "run-a", history[0].ID)
	assert.Equal(t, constants.RunStatusSucceeded, history[0].Status)
}

func TestStoreHistoryLimitAndOrder(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"run-1", "run-2", "run-3"} {
		r := newTestRun(id, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, store.Create(ctx, r))
		ended := r.StartedAt.Add(time.Minute)
		r.Status = constants.RunStatusFailed
		r.EndedAt = &ended
		require.NoError(t, store.Update(ctx, r))
	}

	history, err := store.History(ctx, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "run-3", history[0].ID)
	assert.Equal(t, "run-2", history[1].ID)
}

func TestValidateIDRejectsTraversal(t *testing.T) {
	t.Parallel()

	require.Error(t, validateID(""))
	require.Error(t, validateID("../escape"))
	require.Error(t, validateID("a/b"))
	require.NoError(t, validateID("run-123_ok"))
}
