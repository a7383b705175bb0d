// Package session tells the rest of the application who the current owner is.
//
// A Provider exposes the owner identifier of the authenticated user, "" when
// nobody is signed in, and notifies subscribers whenever it changes. Bind
// connects a provider to the scoped stores that must follow it.
package session

import (
	"context"
	"sync"
)

// Provider is the source of the current owner.
type Provider interface {
	// CurrentOwner returns the owner identifier, or "" when signed out.
	CurrentOwner() string
	// Subscribe calls fn with the owner after every sign-in, sign-out and
	// token refresh. The returned function removes the subscription.
	Subscribe(fn func(owner string)) (unsubscribe func())
	// SignOut ends the session. It does not touch any stored data.
	SignOut(ctx context.Context) error
}

// subscribers is the notification list shared by providers.
type subscribers struct {
	mu   sync.Mutex
	fns  map[int]func(string)
	next int
}

func (s *subscribers) add(fn func(string)) func() {
	s.mu.Lock()
	if s.fns == nil {
		s.fns = make(map[int]func(string))
	}
	id := s.next
	s.next++
	s.fns[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fns, id)
			s.mu.Unlock()
		})
	}
}

func (s *subscribers) notify(owner string) {
	s.mu.Lock()
	fns := make([]func(string), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(owner)
	}
}

func (s *subscribers) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fns)
}
