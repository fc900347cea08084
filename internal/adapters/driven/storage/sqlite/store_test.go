package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/hublink/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	return store
}

func phaseEvent(id, session string, from, to domain.Phase, at time.Time) domain.SessionEvent {
	return domain.SessionEvent{
		ID:        id,
		SessionID: session,
		Type:      domain.EventPhaseChange,
		FromPhase: from,
		ToPhase:   to,
		CreatedAt: at,
	}
}

// ==================== Store Creation and Initialization Tests ====================

func TestNewStore_ErrorHandling(t *testing.T) {
	_, err := NewStore("/invalid\x00path")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "creating data directory")
}

func TestNewStore_Success(t *testing.T) {
	tempDir := t.TempDir()

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	defer store.Close()

	dbPath := filepath.Join(tempDir, dbFileName)
	assert.Equal(t, dbPath, store.Path())
	assert.FileExists(t, dbPath)
	assert.NoError(t, store.db.Ping())

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestNewStore_DefaultDirectory(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	store, err := NewStore("")
	require.NoError(t, err)
	defer store.Close()

	assert.Contains(t, store.Path(), filepath.Join(".hublink", "data", dbFileName))
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.EventStore().Record(ctx,
		phaseEvent("e1", "s1", domain.PhaseIdle, domain.PhaseAuthenticating, time.Now())))
	require.NoError(t, store.Close())

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	events, err := reopened.EventStore().List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestMigrate_AppliesPendingOnce(t *testing.T) {
	store := setupTestStore(t)
	fsys := fstest.MapFS{
		"002_extra.up.sql":   {Data: []byte("CREATE TABLE extra (id TEXT PRIMARY KEY);")},
		"002_extra.down.sql": {Data: []byte("DROP TABLE extra;")},
		"README.md":          {Data: []byte("not a migration")},
	}

	require.NoError(t, store.migrate(fsys))
	require.NoError(t, store.migrate(fsys), "second run skips applied versions")

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestMigrate_FailureRollsBack(t *testing.T) {
	store := setupTestStore(t)
	fsys := fstest.MapFS{
		"002_broken.up.sql": {Data: []byte("CREATE TABLE nope (")},
	}

	err := store.migrate(fsys)
	assert.ErrorContains(t, err, "002_broken.up.sql")

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

// ==================== Event Store Tests ====================

func TestEventStore_RecordAndList(t *testing.T) {
	events := setupTestStore(t).EventStore()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, events.Record(ctx, domain.SessionEvent{
		ID:        "e1",
		SessionID: "s1",
		Type:      domain.EventPhaseChange,
		FromPhase: domain.PhaseConnecting,
		ToPhase:   domain.PhaseTerminated,
		Terminal:  domain.TerminalForbidden,
		CreatedAt: at,
	}))
	require.NoError(t, events.Record(ctx, domain.SessionEvent{
		ID:        "e2",
		SessionID: "s1",
		Type:      domain.EventNotice,
		Notice:    domain.NoticeDenied,
		Message:   "access denied",
		CreatedAt: at,
	}))

	got, err := events.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "e2", got[0].ID, "same timestamp falls back to insertion order")
	assert.Equal(t, domain.NoticeDenied, got[0].Notice)
	assert.Equal(t, "access denied", got[0].Message)
	assert.Equal(t, domain.TerminalNone, got[0].Terminal)

	assert.Equal(t, domain.EventPhaseChange, got[1].Type)
	assert.Equal(t, domain.PhaseConnecting, got[1].FromPhase)
	assert.Equal(t, domain.PhaseTerminated, got[1].ToPhase)
	assert.Equal(t, domain.TerminalForbidden, got[1].Terminal)
	assert.True(t, at.Equal(got[1].CreatedAt))
}

func TestEventStore_ListLimit(t *testing.T) {
	events := setupTestStore(t).EventStore()
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 5; i++ {
		require.NoError(t, events.Record(ctx, phaseEvent(fmt.Sprintf("e%d", i), "s1",
			domain.PhaseIdle, domain.PhaseAuthenticating, base.Add(time.Duration(i)*time.Second))))
	}

	got, err := events.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e4", got[0].ID)
	assert.Equal(t, "e3", got[1].ID)
}

func TestEventStore_ListSession(t *testing.T) {
	events := setupTestStore(t).EventStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, events.Record(ctx, phaseEvent("a1", "a", domain.PhaseIdle, domain.PhaseAuthenticating, now)))
	require.NoError(t, events.Record(ctx, phaseEvent("b1", "b", domain.PhaseIdle, domain.PhaseAuthenticating, now)))
	require.NoError(t, events.Record(ctx, phaseEvent("a2", "a", domain.PhaseAuthenticating, domain.PhaseConnecting, now)))

	got, err := events.ListSession(ctx, "a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a1", got[0].ID)
	assert.Equal(t, "a2", got[1].ID)

	none, err := events.ListSession(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEventStore_RecordValidation(t *testing.T) {
	events := setupTestStore(t).EventStore()
	ctx := context.Background()

	assert.ErrorIs(t, events.Record(ctx, domain.SessionEvent{SessionID: "s"}), domain.ErrInvalidInput)
	assert.ErrorIs(t, events.Record(ctx, domain.SessionEvent{ID: "e"}), domain.ErrInvalidInput)

	require.NoError(t, events.Record(ctx, domain.SessionEvent{ID: "e", SessionID: "s", Type: domain.EventNotice}))
	assert.Error(t, events.Record(ctx, domain.SessionEvent{ID: "e", SessionID: "s", Type: domain.EventNotice}),
		"duplicate id")

	got, err := events.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].CreatedAt.IsZero(), "missing timestamp is filled in")
}

func TestStore_FilePermissions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	store, err := NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}
