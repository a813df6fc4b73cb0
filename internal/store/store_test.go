// File: internal/store/store_test.go
package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/engager-cli/api/schemas"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engager-test.db")
	s, err := NewSQLiteStore(path, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestSaveAndLoadSessionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	state := schemas.NewSessionState(5)
	state.Status = schemas.StatusRunning
	state.RecordSuccess("111")
	state.RecordFailure("222")

	require.NoError(t, s.SaveSession(ctx, state))

	loaded, err := s.LoadLatestSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, state.ID, loaded.ID)
	assert.Equal(t, schemas.StatusRunning, loaded.Status)
	assert.Equal(t, 2, loaded.Processed)
	assert.Equal(t, 1, loaded.Success)
	assert.Equal(t, 1, loaded.Failed)
	assert.ElementsMatch(t, []string{"111", "222"}, loaded.ProcessedIDs)
	assert.True(t, loaded.Consistent())
}

func TestSaveSessionUpsertsSameID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	state := schemas.NewSessionState(3)
	state.Status = schemas.StatusRunning
	require.NoError(t, s.SaveSession(ctx, state))

	state.RecordSuccess("1")
	require.NoError(t, s.SaveSession(ctx, state))

	loaded, err := s.LoadLatestSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Success)

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM session_state`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestLoadLatestSessionOrdersByUpdateTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// A whole-second timestamp and a fractional one inside the same
	// second; lexicographic ordering would put the older record first.
	base := time.Date(2026, 8, 30, 10, 0, 5, 0, time.UTC)

	older := schemas.NewSessionState(3)
	older.Status = schemas.StatusRunning
	older.UpdatedAt = base
	require.NoError(t, s.SaveSession(ctx, older))

	newer := schemas.NewSessionState(3)
	newer.Status = schemas.StatusRunning
	newer.UpdatedAt = base.Add(500 * time.Millisecond)
	require.NoError(t, s.SaveSession(ctx, newer))

	loaded, err := s.LoadLatestSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, loaded.ID)
}

func TestLoadLatestSessionEmpty(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadLatestSession(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSaveSessionRejectsInconsistentCounters(t *testing.T) {
	s := newTestStore(t)
	state := schemas.NewSessionState(3)
	state.Processed = 2
	state.Success = 0
	state.Failed = 1
	assert.Error(t, s.SaveSession(context.Background(), state))
}

func TestActivityLogAppendAndQuery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	state := schemas.NewSessionState(2)
	require.NoError(t, s.SaveSession(ctx, state))

	require.NoError(t, s.AppendActivity(ctx, schemas.NewActivityEvent(state.ID, "", schemas.EventSessionStarted, "")))
	require.NoError(t, s.AppendActivity(ctx, schemas.NewActivityEvent(state.ID, "42", schemas.EventItemSuccess, "replied")))
	require.NoError(t, s.AppendActivity(ctx, schemas.NewActivityEvent("other-session", "9", schemas.EventItemFailure, "")))

	events, err := s.RecentActivity(ctx, state.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	// Newest first.
	assert.Equal(t, schemas.EventItemSuccess, events[0].Kind)
	assert.Equal(t, "42", events[0].ItemID)
	assert.Equal(t, schemas.EventSessionStarted, events[1].Kind)
}

func TestStoreReopensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engager-reopen.db")
	ctx := context.Background()

	first, err := NewSQLiteStore(path, zap.NewNop())
	require.NoError(t, err)
	state := schemas.NewSessionState(4)
	state.Status = schemas.StatusRunning
	require.NoError(t, first.SaveSession(ctx, state))
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(path, zap.NewNop())
	require.NoError(t, err)
	defer second.Close()

	loaded, err := second.LoadLatestSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, state.ID, loaded.ID)
}
