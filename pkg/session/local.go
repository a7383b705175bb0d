package session

import (
	"context"
	"sync"
)

// Local is an in-process provider. It is used by the CLI, where the owner is
// given on the command line, and by tests.
type Local struct {
	mu    sync.RWMutex
	owner string
	subs  subscribers
}

// NewLocal returns a provider signed in as owner, or signed out when owner is "".
func NewLocal(owner string) *Local {
	return &Local{owner: owner}
}

// CurrentOwner implements Provider.
func (l *Local) CurrentOwner() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.owner
}

// Subscribe implements Provider.
func (l *Local) Subscribe(fn func(owner string)) (unsubscribe func()) {
	return l.subs.add(fn)
}

// SignIn switches to owner and notifies subscribers.
func (l *Local) SignIn(owner string) {
	l.mu.Lock()
	l.owner = owner
	l.mu.Unlock()
	l.subs.notify(owner)
}

// SignOut implements Provider.
func (l *Local) SignOut(ctx context.Context) error {
	l.SignIn("")
	return nil
}

var _ Provider = (*Local)(nil)
