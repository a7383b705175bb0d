// Package sqlite implements slot storage in a SQLite database.
//
// Every process opening the same database file sees the same slots. Changes
// made by other handles are discovered by polling, since SQLite has no
// cross-process change notification.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/mindful/pkg/core"

	_ "modernc.org/sqlite"
)

// Config holds the configuration for the SQLite repository.
type Config struct {
	Path         string
	Logger       *slog.Logger
	MaxBytes     int64         // total size limit of all slots; 0 means unlimited
	PollInterval time.Duration // how often Watch looks for foreign changes; 0 means 250ms
}

// Repository implements core.Storage, core.Enumerable and core.Watchable on SQLite.
type Repository struct {
	config Config
	db     *sql.DB

	// mu guards the per-watch snapshots. Our own writes are applied to every
	// snapshot so polling never reports them back.
	mu        sync.Mutex
	snapshots map[*snapshot]struct{}
}

type snapshot struct {
	pattern string
	values  map[string][]byte
}

// NewRepository creates a repository. Initialize opens the database.
func NewRepository(config Config) *Repository {
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 250 * time.Millisecond
	}
	return &Repository{
		config:    config,
		snapshots: make(map[*snapshot]struct{}),
	}
}

// Initialize opens the database and applies migrations.
func (r *Repository) Initialize(ctx context.Context) error {
	if r.db != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.config.Path), 0755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(r.config.Path))
	if err != nil {
		return fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn(r.config.Path)); err != nil {
		db.Close()
		return fmt.Errorf("run migrations: %w", err)
	}

	r.db = db
	r.config.Logger.Debug("sqlite storage ready", "path", r.config.Path)
	return nil
}

// dsn enables WAL and a busy timeout on every pooled connection, and takes the
// write lock when a transaction begins so concurrent writers queue instead of
// failing on lock upgrade.
func dsn(path string) string {
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

// Close closes the database.
func (r *Repository) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func (r *Repository) ready() error {
	if r.db == nil {
		return errors.New("sqlite repository not initialized")
	}
	return nil
}

// Get reads a slot.
func (r *Repository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := core.ValidateKey(key); err != nil {
		return nil, false, err
	}
	if err := r.ready(); err != nil {
		return nil, false, err
	}

	var value []byte
	err := r.db.QueryRowContext(ctx, "SELECT value FROM slots WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read slot %s: %w", key, err)
	}
	return value, true, nil
}

// Set writes a slot.
func (r *Repository) Set(ctx context.Context, key string, value []byte) error {
	if err := core.ValidateKey(key); err != nil {
		return err
	}
	if err := r.ready(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if r.config.MaxBytes > 0 {
		var used int64
		err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(SUM(LENGTH(value)), 0) FROM slots WHERE key != ?", key).Scan(&used)
		if err != nil {
			return fmt.Errorf("compute usage: %w", err)
		}
		if total := used + int64(len(value)); total > r.config.MaxBytes {
			return fmt.Errorf("%w: %d bytes over limit of %d", core.ErrQuotaExceeded, total-r.config.MaxBytes, r.config.MaxBytes)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO slots (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("write slot %s: %w", key, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit slot %s: %w", key, err)
	}
	for s := range r.snapshots {
		s.values[key] = bytes.Clone(value)
	}
	return nil
}

// Remove deletes a slot. Missing slots are ignored.
func (r *Repository) Remove(ctx context.Context, key string) error {
	if err := core.ValidateKey(key); err != nil {
		return err
	}
	if err := r.ready(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.db.ExecContext(ctx, "DELETE FROM slots WHERE key = ?", key); err != nil {
		return fmt.Errorf("remove slot %s: %w", key, err)
	}
	for s := range r.snapshots {
		delete(s.values, key)
	}
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
	if err := r.ready(); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, "SELECT key FROM slots ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan slot key: %w", err)
		}
		if match, _ := doublestar.Match(pattern, key); match {
			keys = append(keys, key)
		}
	}
	return keys, rows.Err()
}

// load reads every slot matching pattern.
func (r *Repository) load(ctx context.Context, pattern string) (map[string][]byte, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT key, value FROM slots")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[string][]byte)
	for rows.Next() {
		var (
			key   string
			value []byte
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		if match, _ := doublestar.Match(pattern, key); match {
			values[key] = value
		}
	}
	return values, rows.Err()
}

// Watch polls the database and reports slots changed by other handles.
// The channel is closed when ctx is cancelled.
func (r *Repository) Watch(ctx context.Context, pattern string) (<-chan core.Event, error) {
	if pattern == "" {
		pattern = "*"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}
	if err := r.ready(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	initial, err := r.load(ctx, pattern)
	if err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("load slots: %w", err)
	}
	snap := &snapshot{pattern: pattern, values: initial}
	r.snapshots[snap] = struct{}{}
	r.mu.Unlock()

	out := make(chan core.Event)
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer func() {
			r.mu.Lock()
			delete(r.snapshots, snap)
			r.mu.Unlock()
			close(out)
		}()

		ticker := time.NewTicker(r.config.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}

			events, err := r.poll(ctx, snap)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.config.Logger.Warn("failed to poll slots", "error", err)
				continue
			}
			for _, e := range events {
				select {
				case out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		r.config.Logger.Error("sqlite watcher failed", "error", err)
	}))

	return out, nil
}

// poll diffs the current table against snap and advances it.
func (r *Repository) poll(ctx context.Context, snap *snapshot) ([]core.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.load(ctx, snap.pattern)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	var events []core.Event
	for key, value := range current {
		prev, ok := snap.values[key]
		switch {
		case !ok:
			events = append(events, core.Event{Type: core.EventCreate, Key: key, Value: value, Timestamp: now})
		case !bytes.Equal(prev, value):
			events = append(events, core.Event{Type: core.EventModify, Key: key, Value: value, Timestamp: now})
		}
	}
	for key := range snap.values {
		if _, ok := current[key]; !ok {
			events = append(events, core.Event{Type: core.EventDelete, Key: key, Removed: true, Timestamp: now})
		}
	}
	snap.values = current
	return events, nil
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "sqlite"
}

var (
	_ core.Storage    = (*Repository)(nil)
	_ core.Enumerable = (*Repository)(nil)
	_ core.Watchable  = (*Repository)(nil)
)
