package scoped

import "github.com/aretw0/introspection"

// StoreState exposes internal state for observability.
type StoreState struct {
	Base        string `json:"base"`
	Key         string `json:"key,omitempty"`
	Owner       string `json:"owner,omitempty"`
	Phase       string `json:"phase"`
	Syncing     bool   `json:"syncing"`
	Subscribers int    `json:"subscribers"`
	Bytes       int    `json:"bytes"`
}

// State implements introspection.Introspectable.
func (s *Store[T]) State() any {
	s.mu.RLock()
	state := StoreState{
		Base:  s.base,
		Key:   s.key,
		Owner: s.owner,
		Phase: s.phase.String(),
		Bytes: len(s.encoded),
	}
	s.mu.RUnlock()

	s.runMu.Lock()
	state.Syncing = s.cancel != nil
	s.runMu.Unlock()

	s.subMu.Lock()
	state.Subscribers = len(s.subs)
	s.subMu.Unlock()

	return state
}

// ComponentType implements introspection.Component.
func (s *Store[T]) ComponentType() string {
	return "scoped-store"
}

var _ introspection.Introspectable = (*Store[any])(nil)
var _ introspection.Component = (*Store[any])(nil)
