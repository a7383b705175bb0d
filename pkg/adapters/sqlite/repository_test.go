package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/mindful/pkg/adapters/sqlite"
	"github.com/aretw0/mindful/pkg/core"
)

func openRepo(t *testing.T, path string, cfg sqlite.Config) *sqlite.Repository {
	t.Helper()
	cfg.Path = path
	repo := sqlite.NewRepository(cfg)
	require.NoError(t, repo.Initialize(context.Background()))
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := openRepo(t, filepath.Join(t.TempDir(), "slots.db"), sqlite.Config{})

	_, ok, err := repo.Get(ctx, "journal_alice")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Set(ctx, "journal_alice", []byte(`[]`)))
	require.NoError(t, repo.Set(ctx, "journal_alice", []byte(`[{"text":"hi"}]`)))

	data, ok, err := repo.Get(ctx, "journal_alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `[{"text":"hi"}]`, string(data))

	require.NoError(t, repo.Remove(ctx, "journal_alice"))
	require.NoError(t, repo.Remove(ctx, "journal_alice"))
	_, ok, err = repo.Get(ctx, "journal_alice")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, repo.Set(ctx, "", []byte(`1`)), core.ErrInvalidKey)
}

func TestRepository_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slots.db")
	first := openRepo(t, path, sqlite.Config{})
	require.NoError(t, first.Set(context.Background(), "mood_alice", []byte(`[]`)))
	require.NoError(t, first.Close())

	second := openRepo(t, path, sqlite.Config{})
	_, ok, err := second.Get(context.Background(), "mood_alice")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRepository_KeysAndQuota(t *testing.T) {
	ctx := context.Background()
	repo := openRepo(t, filepath.Join(t.TempDir(), "slots.db"), sqlite.Config{MaxBytes: 8})

	require.NoError(t, repo.Set(ctx, "tasks_alice", []byte(`[1]`)))
	require.NoError(t, repo.Set(ctx, "tasks_bob", []byte(`[2]`)))

	keys, err := repo.Keys(ctx, "*_alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"tasks_alice"}, keys)

	err = repo.Set(ctx, "habits_alice", []byte(`[1,2,3]`))
	assert.ErrorIs(t, err, core.ErrQuotaExceeded)
	assert.True(t, core.IsRecoverable(&core.StorageError{Op: "write", Key: "habits_alice", Err: err}))
}

func TestRepository_WatchSeesOtherHandles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "slots.db")
	a := openRepo(t, path, sqlite.Config{PollInterval: 20 * time.Millisecond})
	b := openRepo(t, path, sqlite.Config{PollInterval: 20 * time.Millisecond})

	events, err := b.Watch(ctx, "notes_*")
	require.NoError(t, err)

	require.NoError(t, b.Set(ctx, "notes_bob", []byte(`["own"]`)))
	require.NoError(t, a.Set(ctx, "notes_alice", []byte(`["x"]`)))

	select {
	case e := <-events:
		assert.Equal(t, "notes_alice", e.Key, "own writes are not reported")
		assert.Equal(t, core.EventCreate, e.Type)
		assert.Equal(t, `["x"]`, string(e.Value))
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for event")
	}

	require.NoError(t, a.Remove(ctx, "notes_alice"))
	select {
	case e := <-events:
		assert.Equal(t, "notes_alice", e.Key)
		assert.True(t, e.Removed)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for removal")
	}

	cancel()
	require.Eventually(t, func() bool {
		_, ok := <-events
		return !ok
	}, 3*time.Second, 10*time.Millisecond)
}

func TestRepository_NotInitialized(t *testing.T) {
	repo := sqlite.NewRepository(sqlite.Config{Path: filepath.Join(t.TempDir(), "x.db")})
	_, _, err := repo.Get(context.Background(), "a")
	assert.Error(t, err)
}
