package fs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// indexEntry is what the last reconciliation saw for one slot.
type indexEntry struct {
	Size         int64     `json:"size"`
	Checksum     string    `json:"checksum"`
	LastModified time.Time `json:"lastModified"`
}

// index is the persisted snapshot used to detect changes the watcher missed
// (event overflow, restarts).
type index struct {
	Path string // {root}/{systemDir}/index.json

	mu      sync.RWMutex
	Version int                    `json:"version"`
	Entries map[string]*indexEntry `json:"entries"` // keyed by slot key
	dirty   bool
}

func newIndex(root, systemDir string) *index {
	return &index{
		Path:    filepath.Join(root, systemDir, "index.json"),
		Version: 1,
		Entries: make(map[string]*indexEntry),
	}
}

// Load reads the index from disk. A missing or corrupted file yields an empty index.
func (x *index) Load() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	data, err := os.ReadFile(x.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read index: %w", err)
	}

	var snapshot struct {
		Version int                    `json:"version"`
		Entries map[string]*indexEntry `json:"entries"`
	}
	if err := json.Unmarshal(data, &snapshot); err != nil || snapshot.Entries == nil {
		x.Entries = make(map[string]*indexEntry)
		x.dirty = true
		return nil
	}

	x.Version = snapshot.Version
	x.Entries = snapshot.Entries
	x.dirty = false
	return nil
}

// Save persists the index if it changed since the last load or save.
func (x *index) Save() error {
	x.mu.RLock()
	if !x.dirty {
		x.mu.RUnlock()
		return nil
	}
	data, err := json.MarshalIndent(struct {
		Version int                    `json:"version"`
		Entries map[string]*indexEntry `json:"entries"`
	}{x.Version, x.Entries}, "", "  ")
	x.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(x.Path), 0755); err != nil {
		return err
	}
	if err := writeFileAtomic(x.Path, data, 0644); err != nil {
		return err
	}

	x.mu.Lock()
	x.dirty = false
	x.mu.Unlock()
	return nil
}

// Get returns the entry for key.
func (x *index) Get(key string) (*indexEntry, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	e, ok := x.Entries[key]
	return e, ok
}

// Set records the entry for key.
func (x *index) Set(key string, e *indexEntry) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.Entries[key] = e
	x.dirty = true
}

// Keys returns the indexed keys.
func (x *index) Keys() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	keys := make([]string, 0, len(x.Entries))
	for key := range x.Entries {
		keys = append(keys, key)
	}
	return keys
}

// Len returns the number of entries.
func (x *index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.Entries)
}

// Delete removes the entry for key.
func (x *index) Delete(key string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.Entries[key]; ok {
		delete(x.Entries, key)
		x.dirty = true
	}
}

// restore puts back an entry captured with Get after a failed operation.
func (x *index) restore(key string, e *indexEntry, had bool) {
	if had {
		x.Set(key, e)
		return
	}
	x.Delete(key)
}
