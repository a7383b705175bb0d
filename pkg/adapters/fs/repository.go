// Package fs implements slot storage on the local filesystem.
//
// Each slot is one file, "<root>/<key>.json", holding the raw slot content.
// Writes are atomic (temp file + rename), so a reader in another process sees
// either the previous or the new content, never a torn write. Other processes
// opening the same root are kept in sync through Watch.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/mindful/pkg/core"
)

// SlotExt is the file extension of slot files.
const SlotExt = ".json"

// Repository implements core.Storage, core.Enumerable and core.Watchable on a directory.
type Repository struct {
	Path   string
	config Config
	index  *index

	mu            sync.RWMutex
	readOnly      bool
	watcherActive bool
	lastReconcile *time.Time

	// stateMu serializes index updates with the writes they describe.
	stateMu sync.Mutex
}

// Config holds the configuration for the filesystem repository.
type Config struct {
	Path         string
	MustExist    bool
	ReadOnly     bool
	Logger       *slog.Logger
	SystemDir    string        // e.g. ".mindful"
	MaxBytes     int64         // total size limit of all slots; 0 means unlimited
	Debounce     time.Duration // coalescing window for watch events; 0 means 50ms
	ErrorHandler func(error)   // receives watcher runtime errors
}

// NewRepository creates a new filesystem-backed repository.
func NewRepository(config Config) *Repository {
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.SystemDir == "" {
		config.SystemDir = ".mindful"
	}
	if config.Debounce <= 0 {
		config.Debounce = 50 * time.Millisecond
	}
	return &Repository{
		Path:     config.Path,
		config:   config,
		index:    newIndex(config.Path, config.SystemDir),
		readOnly: config.ReadOnly,
	}
}

// Initialize creates the root directory (unless MustExist or read-only) and
// loads the reconciliation index.
func (r *Repository) Initialize(ctx context.Context) error {
	if r.config.MustExist || r.readOnly {
		info, err := os.Stat(r.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("storage path does not exist: %s", r.Path)
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("storage path is not a directory: %s", r.Path)
		}
	} else {
		if err := os.MkdirAll(r.Path, 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	if err := r.index.Load(); err != nil {
		r.config.Logger.Warn("failed to load index, starting fresh", "error", err)
	}

	// Baseline the index so that later reconciliations only report new changes.
	if _, err := r.Reconcile(ctx); err != nil {
		return fmt.Errorf("failed to scan storage: %w", err)
	}
	return nil
}

func (r *Repository) slotPath(key string) string {
	return filepath.Join(r.Path, key+SlotExt)
}

// Get reads a slot.
func (r *Repository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := core.ValidateKey(key); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(r.slotPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read slot %s: %w", key, err)
	}
	return data, true, nil
}

// Set writes a slot atomically.
//
// Workflow:
//  1. Reject writes in read-only mode.
//  2. Under stateMu, check the quota against the current size of all slots.
//  3. Record the new state in the index so our own watcher does not echo it back.
//  4. Write to a temp file and rename it over the slot.
func (r *Repository) Set(ctx context.Context, key string, value []byte) error {
	if r.isReadOnly() {
		return core.ErrReadOnly
	}
	if err := core.ValidateKey(key); err != nil {
		return err
	}

	r.stateMu.Lock()
	defer r.stateMu.Unlock()

	// Checked under stateMu so concurrent writers see each other's slots.
	if r.config.MaxBytes > 0 {
		used, err := r.usage(key)
		if err != nil {
			return fmt.Errorf("failed to compute usage: %w", err)
		}
		if total := used + int64(len(value)); total > r.config.MaxBytes {
			return fmt.Errorf("%w: %d bytes over limit of %d", core.ErrQuotaExceeded, total-r.config.MaxBytes, r.config.MaxBytes)
		}
	}

	prev, had := r.index.Get(key)
	r.index.Set(key, &indexEntry{
		Size:         int64(len(value)),
		Checksum:     checksum(value),
		LastModified: time.Now(),
	})
	if err := writeFileAtomic(r.slotPath(key), value, 0644); err != nil {
		r.index.restore(key, prev, had)
		return fmt.Errorf("failed to write slot %s: %w", key, err)
	}

	r.config.Logger.Debug("slot written", "key", key, "bytes", len(value))
	return nil
}

// Remove deletes a slot. Missing slots are ignored.
func (r *Repository) Remove(ctx context.Context, key string) error {
	if r.isReadOnly() {
		return core.ErrReadOnly
	}
	if err := core.ValidateKey(key); err != nil {
		return err
	}

	r.stateMu.Lock()
	defer r.stateMu.Unlock()

	prev, had := r.index.Get(key)
	r.index.Delete(key)
	if err := os.Remove(r.slotPath(key)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		r.index.restore(key, prev, had)
		return fmt.Errorf("failed to remove slot %s: %w", key, err)
	}

	r.config.Logger.Debug("slot removed", "key", key)
	return nil
}

// Keys lists the slots whose key matches pattern.
func (r *Repository) Keys(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}

	entries, err := os.ReadDir(r.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to list storage: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		key, ok := keyFromName(entry.Name())
		if !ok || entry.IsDir() {
			continue
		}
		if match, _ := doublestar.Match(pattern, key); match {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// usage returns the total size of all slots except exclude.
func (r *Repository) usage(exclude string) (int64, error) {
	entries, err := os.ReadDir(r.Path)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, entry := range entries {
		key, ok := keyFromName(entry.Name())
		if !ok || entry.IsDir() || key == exclude {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // removed concurrently
		}
		total += info.Size()
	}
	return total, nil
}

// keyFromName maps a file name to a slot key, skipping temp and hidden files.
func keyFromName(name string) (string, bool) {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, TempFilePrefix) {
		return "", false
	}
	if filepath.Ext(name) != SlotExt {
		return "", false
	}
	key := strings.TrimSuffix(name, SlotExt)
	if core.ValidateKey(key) != nil {
		return "", false
	}
	return key, true
}

func (r *Repository) isReadOnly() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.readOnly
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// observe compares the current state of key with the last state this handle
// wrote or reported, records the new state, and reports whether it changed.
// Writes made through this repository are therefore never reported back to it.
func (r *Repository) observe(key string, data []byte, exists bool) (core.EventType, bool) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()

	prev, had := r.index.Get(key)
	if !exists {
		if !had {
			return "", false
		}
		r.index.Delete(key)
		return core.EventDelete, true
	}

	sum := checksum(data)
	if had && prev.Checksum == sum {
		return "", false
	}
	r.index.Set(key, &indexEntry{
		Size:         int64(len(data)),
		Checksum:     sum,
		LastModified: time.Now(),
	})
	if had {
		return core.EventModify, true
	}
	return core.EventCreate, true
}

// readSlot is Get without validation, used by the watcher on resolved keys.
func (r *Repository) readSlot(key string) ([]byte, bool) {
	data, err := os.ReadFile(r.slotPath(key))
	if err != nil {
		return nil, false
	}
	return data, true
}

var (
	_ core.Storage    = (*Repository)(nil)
	_ core.Enumerable = (*Repository)(nil)
	_ core.Watchable  = (*Repository)(nil)
)
