package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// Rekeyer is anything that follows the current owner, typically a scoped.Store.
type Rekeyer interface {
	SetOwner(ctx context.Context, owner string) error
}

// Pruner removes every slot of an owner. core.Service implements it.
type Pruner interface {
	PruneOwner(ctx context.Context, owner string) ([]string, error)
}

// BindOption configures Bind.
type BindOption func(*binder)

// WithBindLogger sets the logger used to report re-keying failures.
func WithBindLogger(logger *slog.Logger) BindOption {
	return func(b *binder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithPruneOnSignOut removes the slots of the previous owner when the session
// ends. Without it, data of signed-out owners stays in storage.
func WithPruneOnSignOut(p Pruner) BindOption {
	return func(b *binder) {
		b.pruner = p
	}
}

type binder struct {
	ctx     context.Context
	targets []Rekeyer
	logger  *slog.Logger
	pruner  Pruner

	mu    sync.Mutex
	owner string
}

// Bind re-keys targets to the provider's current owner now and after every
// owner change. Failures are logged; a target that failed to re-key keeps
// working on its previous key. The returned function stops following.
func Bind(ctx context.Context, p Provider, targets []Rekeyer, opts ...BindOption) (unbind func()) {
	b := &binder{
		ctx:     ctx,
		targets: targets,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}

	// Subscribe before reading the owner so that a change in between is
	// either seen here or delivered to onChange.
	unsubscribe := p.Subscribe(b.onChange)

	b.mu.Lock()
	b.owner = p.CurrentOwner()
	b.rekey(b.owner)
	b.mu.Unlock()

	return unsubscribe
}

func (b *binder) onChange(owner string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev := b.owner
	if owner == prev {
		return // token refresh
	}
	b.owner = owner
	b.logger.Info("owner changed", "from", prev, "to", owner)
	b.rekey(owner)

	if owner == "" && prev != "" && b.pruner != nil {
		removed, err := b.pruner.PruneOwner(b.ctx, prev)
		if err != nil {
			b.logger.Error("failed to prune signed-out owner", "owner", prev, "error", err)
			return
		}
		b.logger.Info("pruned signed-out owner", "owner", prev, "slots", len(removed))
	}
}

func (b *binder) rekey(owner string) {
	for _, t := range b.targets {
		if err := t.SetOwner(b.ctx, owner); err != nil {
			b.logger.Error("failed to re-key store", "owner", owner, "error", err)
		}
	}
}
