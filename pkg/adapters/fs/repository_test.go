package fs_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/mindful/pkg/adapters/fs"
	"github.com/aretw0/mindful/pkg/core"
)

func newRepo(t *testing.T, cfg fs.Config) *fs.Repository {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = t.TempDir()
	}
	repo := fs.NewRepository(cfg)
	require.NoError(t, repo.Initialize(context.Background()))
	return repo
}

func TestRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, fs.Config{})

	_, ok, err := repo.Get(ctx, "tasks_alice")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Set(ctx, "tasks_alice", []byte(`[{"title":"a"}]`)))

	data, ok, err := repo.Get(ctx, "tasks_alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `[{"title":"a"}]`, string(data))

	_, err = os.Stat(filepath.Join(repo.Path, "tasks_alice.json"))
	assert.NoError(t, err, "slot should be stored as <key>.json")

	require.NoError(t, repo.Remove(ctx, "tasks_alice"))
	_, ok, err = repo.Get(ctx, "tasks_alice")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, repo.Remove(ctx, "tasks_alice"), "removing a missing slot is not an error")
}

func TestRepository_InvalidKeys(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, fs.Config{})

	for _, key := range []string{"", "../escape", ".mindful", `a\b`} {
		err := repo.Set(ctx, key, []byte(`1`))
		assert.ErrorIs(t, err, core.ErrInvalidKey, key)
	}
}

func TestRepository_Keys(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, fs.Config{})

	for _, key := range []string{"tasks_alice", "tasks_bob", "habits_alice"} {
		require.NoError(t, repo.Set(ctx, key, []byte(`[]`)))
	}
	// Foreign files are not slots.
	require.NoError(t, os.WriteFile(filepath.Join(repo.Path, "README.md"), []byte("x"), 0644))

	keys, err := repo.Keys(ctx, "tasks_*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"tasks_alice", "tasks_bob"}, keys)

	keys, err = repo.Keys(ctx, "")
	require.NoError(t, err)
	assert.Len(t, keys, 3)

	_, err = repo.Keys(ctx, "[")
	assert.Error(t, err)
}

func TestRepository_Quota(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, fs.Config{MaxBytes: 10})

	require.NoError(t, repo.Set(ctx, "a", []byte(`12345`)))
	// Overwriting a slot only counts its new size.
	require.NoError(t, repo.Set(ctx, "a", []byte(`1234567`)))

	err := repo.Set(ctx, "b", []byte(`12345`))
	assert.ErrorIs(t, err, core.ErrQuotaExceeded)

	_, ok, _ := repo.Get(ctx, "b")
	assert.False(t, ok, "rejected write must not reach disk")
}

func TestRepository_QuotaConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	const limit = 40
	dir := t.TempDir()
	repo := newRepo(t, fs.Config{Path: dir, MaxBytes: limit})

	value := []byte(`0123456789`)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.Set(ctx, fmt.Sprintf("slot%d", i), value)
			if err != nil {
				assert.ErrorIs(t, err, core.ErrQuotaExceeded)
			}
		}(i)
	}
	wg.Wait()

	keys, err := repo.Keys(ctx, "*")
	require.NoError(t, err)
	assert.Len(t, keys, limit/len(value))

	var total int64
	for _, key := range keys {
		info, err := os.Stat(filepath.Join(dir, key+fs.SlotExt))
		require.NoError(t, err)
		total += info.Size()
	}
	assert.LessOrEqual(t, total, int64(limit))
}

func TestRepository_ReadOnly(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mood_alice.json"), []byte(`[]`), 0644))

	repo := newRepo(t, fs.Config{Path: dir, ReadOnly: true})

	data, ok, err := repo.Get(ctx, "mood_alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[]`, string(data))

	assert.ErrorIs(t, repo.Set(ctx, "mood_alice", []byte(`[1]`)), core.ErrReadOnly)
	assert.ErrorIs(t, repo.Remove(ctx, "mood_alice"), core.ErrReadOnly)

	_, err = os.Stat(filepath.Join(dir, ".mindful", "index.json"))
	assert.True(t, os.IsNotExist(err), "read-only repositories never write the index")
}

func TestRepository_MustExist(t *testing.T) {
	repo := fs.NewRepository(fs.Config{Path: filepath.Join(t.TempDir(), "missing"), MustExist: true})
	assert.Error(t, repo.Initialize(context.Background()))
}

func TestRepository_Reconcile(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, fs.Config{})

	require.NoError(t, repo.Set(ctx, "notes_alice", []byte(`[]`)))
	events, err := repo.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, events, "own writes are already known")

	// Changes made behind the repository's back.
	require.NoError(t, os.WriteFile(filepath.Join(repo.Path, "notes_alice.json"), []byte(`["x"]`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(repo.Path, "notes_bob.json"), []byte(`[]`), 0644))

	events, err = repo.Reconcile(ctx)
	require.NoError(t, err)
	byKey := map[string]core.Event{}
	for _, e := range events {
		byKey[e.Key] = e
	}
	require.Len(t, byKey, 2)
	assert.Equal(t, core.EventModify, byKey["notes_alice"].Type)
	assert.Equal(t, `["x"]`, string(byKey["notes_alice"].Value))
	assert.Equal(t, core.EventCreate, byKey["notes_bob"].Type)

	require.NoError(t, os.Remove(filepath.Join(repo.Path, "notes_bob.json")))
	events, err = repo.Reconcile(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, core.EventDelete, events[0].Type)
	assert.True(t, events[0].Removed)

	state := repo.State().(fs.RepositoryState)
	assert.Equal(t, 1, state.IndexSize)
	assert.NotNil(t, state.LastReconcile)
	assert.Equal(t, "repository", repo.ComponentType())
}
