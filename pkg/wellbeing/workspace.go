package wellbeing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/aretw0/mindful/pkg/core"
	"github.com/aretw0/mindful/pkg/scoped"
	"github.com/aretw0/mindful/pkg/session"
)

// Base keys of the feature stores.
const (
	KeyTasks        = "tasks"
	KeyHabits       = "habits"
	KeyTransactions = "transactions"
	KeyJournal      = "journal"
	KeyNotes        = "notes"
	KeyMood         = "mood"
	KeyOwnedItems   = "owned_items"
)

// BaseKeys lists every base key used by a Workspace.
var BaseKeys = []string{KeyTasks, KeyHabits, KeyTransactions, KeyJournal, KeyNotes, KeyMood, KeyOwnedItems}

// Workspace holds one scoped store per feature, all following the owner of
// a session provider.
type Workspace struct {
	Tasks        *scoped.Store[[]Task]
	Habits       *scoped.Store[[]Habit]
	Transactions *scoped.Store[[]Transaction]
	Journal      *scoped.Store[[]JournalEntry]
	Notes        *scoped.Store[[]QuickNote]
	Mood         *scoped.Store[[]MoodRecord]
	OwnedItems   *scoped.Store[OwnedItems]

	logger *slog.Logger
	unbind func()
}

// WorkspaceOption configures Open.
type WorkspaceOption func(*workspaceOptions)

type workspaceOptions struct {
	logger *slog.Logger
	sync   bool
	bind   []session.BindOption
}

// WithWorkspaceLogger sets the logger of the workspace and its stores.
func WithWorkspaceLogger(logger *slog.Logger) WorkspaceOption {
	return func(o *workspaceOptions) {
		o.logger = logger
	}
}

// WithSync starts cross-handle synchronization on every store.
func WithSync(enabled bool) WorkspaceOption {
	return func(o *workspaceOptions) {
		o.sync = enabled
	}
}

// WithBindOptions passes options to session.Bind, e.g. session.WithPruneOnSignOut.
func WithBindOptions(opts ...session.BindOption) WorkspaceOption {
	return func(o *workspaceOptions) {
		o.bind = append(o.bind, opts...)
	}
}

// Open hydrates every feature store for the provider's current owner and
// keeps them bound to it.
func Open(ctx context.Context, storage core.Storage, provider session.Provider, opts ...WorkspaceOption) (*Workspace, error) {
	o := &workspaceOptions{sync: true}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	owner := provider.CurrentOwner()
	storeOpts := []scoped.Option{scoped.WithLogger(o.logger)}
	w := &Workspace{logger: o.logger}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		w.Tasks, err = scoped.New(gctx, storage, KeyTasks, []Task{}, owner, storeOpts...)
		return err
	})
	g.Go(func() (err error) {
		w.Habits, err = scoped.New(gctx, storage, KeyHabits, []Habit{}, owner, storeOpts...)
		return err
	})
	g.Go(func() (err error) {
		w.Transactions, err = scoped.New(gctx, storage, KeyTransactions, []Transaction{}, owner, storeOpts...)
		return err
	})
	g.Go(func() (err error) {
		w.Journal, err = scoped.New(gctx, storage, KeyJournal, []JournalEntry{}, owner, storeOpts...)
		return err
	})
	g.Go(func() (err error) {
		w.Notes, err = scoped.New(gctx, storage, KeyNotes, []QuickNote{}, owner, storeOpts...)
		return err
	})
	g.Go(func() (err error) {
		w.Mood, err = scoped.New(gctx, storage, KeyMood, []MoodRecord{}, owner, storeOpts...)
		return err
	})
	g.Go(func() (err error) {
		w.OwnedItems, err = scoped.New(gctx, storage, KeyOwnedItems, OwnedItems{}, owner, storeOpts...)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("open workspace: %w", err)
	}

	if o.sync {
		for _, s := range w.lifecycles() {
			if err := s.Start(ctx); err != nil {
				_ = w.Close()
				return nil, fmt.Errorf("start sync: %w", err)
			}
		}
	}

	w.unbind = session.Bind(ctx, provider, w.rekeyers(), append([]session.BindOption{session.WithBindLogger(o.logger)}, o.bind...)...)
	o.logger.Debug("workspace opened", "owner", owner, "sync", o.sync)
	return w, nil
}

type startCloser interface {
	Start(ctx context.Context) error
	Close() error
}

func (w *Workspace) lifecycles() []startCloser {
	return []startCloser{w.Tasks, w.Habits, w.Transactions, w.Journal, w.Notes, w.Mood, w.OwnedItems}
}

func (w *Workspace) rekeyers() []session.Rekeyer {
	return []session.Rekeyer{w.Tasks, w.Habits, w.Transactions, w.Journal, w.Notes, w.Mood, w.OwnedItems}
}

// Owner returns the owner the stores are keyed to.
func (w *Workspace) Owner() string {
	return w.Tasks.Owner()
}

// Close stops following the session and stops synchronization.
func (w *Workspace) Close() error {
	if w.unbind != nil {
		w.unbind()
	}
	var errs []error
	for _, s := range w.lifecycles() {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
