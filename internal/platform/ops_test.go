package platform

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/mindful/pkg/adapters/fs"
	"github.com/aretw0/mindful/pkg/adapters/memory"
	"github.com/aretw0/mindful/pkg/adapters/sqlite"
	"github.com/aretw0/mindful/pkg/core"
)

func TestResolvePath(t *testing.T) {
	assert.Equal(t, "/data/app", ResolvePath("/data/app", false))
	assert.Equal(t, ".", ResolvePath("", false))

	sandboxed := ResolvePath("/data/app", true)
	assert.Equal(t, filepath.Join(os.TempDir(), "mindful-dev", "app"), sandboxed)

	inTemp := filepath.Join(os.TempDir(), "already", "here")
	assert.Equal(t, inTemp, ResolvePath(inTemp, true), "paths under the temp dir are trusted")

	assert.Equal(t, filepath.Join(os.TempDir(), "mindful-dev", "default"), ResolvePath("", true))
}

func TestIsDevRun(t *testing.T) {
	assert.True(t, IsDevRun(), "test binaries are dev runs")
}

func TestInit_Adapters(t *testing.T) {
	ctx := context.Background()

	t.Run("FS", func(t *testing.T) {
		dir := t.TempDir()
		storage, err := Init(dir, WithAdapter("fs"))
		require.NoError(t, err)
		assert.IsType(t, &fs.Repository{}, storage)

		require.NoError(t, storage.Set(ctx, "tasks_u1", []byte(`[]`)))
		assert.FileExists(t, filepath.Join(dir, "tasks_u1.json"))
	})

	t.Run("SQLite", func(t *testing.T) {
		dir := t.TempDir()
		storage, err := Init(dir, WithAdapter("sqlite"))
		require.NoError(t, err)
		repo, ok := storage.(*sqlite.Repository)
		require.True(t, ok)
		t.Cleanup(func() { _ = repo.Close() })

		assert.FileExists(t, filepath.Join(dir, "mindful.db"))
	})

	t.Run("Memory", func(t *testing.T) {
		storage, err := Init("", WithAdapter("memory"), WithMaxBytes(4))
		require.NoError(t, err)
		assert.IsType(t, &memory.Handle{}, storage)

		err = storage.Set(ctx, "notes_u1", []byte(`"too long"`))
		assert.ErrorIs(t, err, core.ErrQuotaExceeded)
	})

	t.Run("Injected Storage", func(t *testing.T) {
		handle := memory.NewOrigin().Handle("injected")
		storage, err := Init("ignored", WithStorage(handle), WithAdapter("bogus"))
		require.NoError(t, err)
		assert.Same(t, handle, storage)
	})

	t.Run("Unknown Adapter", func(t *testing.T) {
		_, err := Init(t.TempDir(), WithAdapter("bogus"))
		assert.ErrorContains(t, err, "unknown adapter")
	})
}

func TestInit_ReadOnly(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mood_u1.json"), []byte(`[]`), 0644))

	storage, err := Init(dir, WithReadOnly(true))
	require.NoError(t, err)

	data, ok, err := storage.Get(context.Background(), "mood_u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `[]`, string(data))

	assert.ErrorIs(t, storage.Set(context.Background(), "mood_u1", []byte(`[1]`)), core.ErrReadOnly)
}

func TestInit_DevSafetyRedirects(t *testing.T) {
	// A path outside the temp dir is re-rooted while running under go test.
	target := filepath.Join(string(os.PathSeparator), "definitely-not-writable", "mindful-safety-check")
	storage, err := Init(target)
	require.NoError(t, err)

	repo, ok := storage.(*fs.Repository)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(os.TempDir(), "mindful-dev", "mindful-safety-check"), repo.Path)
	t.Cleanup(func() { _ = os.RemoveAll(repo.Path) })
}

func TestNew_Service(t *testing.T) {
	svc, err := New(t.TempDir(), WithEventBuffer(8))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, svc.Set(ctx, "habits_u1", []byte(`[]`)))
	keys, err := svc.Keys(ctx, "habits_*")
	require.NoError(t, err)
	assert.Equal(t, []string{"habits_u1"}, keys)
}
