package fs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	t.Run("Creates And Overwrites", func(t *testing.T) {
		dir := t.TempDir()
		filename := filepath.Join(dir, "tasks_alice.json")

		require.NoError(t, writeFileAtomic(filename, []byte(`[]`), 0644))
		require.NoError(t, writeFileAtomic(filename, []byte(`[{"id":"1"}]`), 0644))

		got, err := os.ReadFile(filename)
		require.NoError(t, err)
		assert.Equal(t, `[{"id":"1"}]`, string(got))
	})

	t.Run("Leaves No Temp Files", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, writeFileAtomic(filepath.Join(dir, "a.json"), []byte(`1`), 0644))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		for _, e := range entries {
			assert.False(t, strings.HasPrefix(e.Name(), TempFilePrefix), "leftover %s", e.Name())
		}
	})

	t.Run("Fails If Directory Missing", func(t *testing.T) {
		dir := t.TempDir()
		err := writeFileAtomic(filepath.Join(dir, "missing", "a.json"), []byte(`1`), 0644)
		assert.Error(t, err)
	})
}

func TestKeyFromName(t *testing.T) {
	cases := map[string]struct {
		key string
		ok  bool
	}{
		"tasks_alice.json":          {"tasks_alice", true},
		"mood.json":                 {"mood", true},
		".hidden.json":              {"", false},
		TempFilePrefix + "123.json": {"", false},
		"notes_alice.txt":           {"", false},
		"index":                     {"", false},
	}
	for name, want := range cases {
		key, ok := keyFromName(name)
		assert.Equal(t, want.ok, ok, name)
		assert.Equal(t, want.key, key, name)
	}
}
