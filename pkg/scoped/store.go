package scoped

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/aretw0/mindful/pkg/core"
)

// Phase is the state of a Store.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseHydrated
	PhaseEphemeral
)

func (p Phase) String() string {
	switch p {
	case PhaseHydrated:
		return "hydrated"
	case PhaseEphemeral:
		return "ephemeral"
	default:
		return "uninitialized"
	}
}

// Store keeps a value of type T in sync with the slot of the current owner.
type Store[T any] struct {
	storage core.Storage
	base    string
	initial T
	codec   Codec
	logger  *slog.Logger
	sync    bool

	// opMu orders mutations (Set, SetOwner, ApplyEvent) in call order.
	opMu sync.Mutex

	mu      sync.RWMutex
	phase   Phase
	owner   string
	key     string
	value   T
	encoded []byte // codec output for value; nil when it could not be encoded

	subMu   sync.Mutex
	subs    map[int]func(T)
	nextSub int

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a store for base key and owner and hydrates it synchronously.
// An empty owner yields an ephemeral store holding initial.
func New[T any](ctx context.Context, storage core.Storage, base string, initial T, owner string, opts ...Option) (*Store[T], error) {
	if storage == nil {
		return nil, errors.New("storage cannot be nil")
	}
	if err := core.ValidateKey(base); err != nil {
		return nil, fmt.Errorf("invalid base key: %w", err)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Store[T]{
		storage: storage,
		base:    base,
		initial: initial,
		codec:   o.codec,
		logger:  o.logger.With("store", base),
		sync:    o.sync,
		phase:   PhaseUninitialized,
		subs:    make(map[int]func(T)),
	}

	key, err := s.resolve(owner)
	if err != nil {
		return nil, err
	}
	value, encoded := s.hydrate(ctx, key)

	s.owner = owner
	s.key = key
	s.value = value
	s.encoded = encoded
	s.phase = phaseFor(key)

	return s, nil
}

func phaseFor(key string) Phase {
	if key == "" {
		return PhaseEphemeral
	}
	return PhaseHydrated
}

func (s *Store[T]) resolve(owner string) (string, error) {
	if owner == "" {
		return "", nil
	}
	if err := core.ValidateOwner(owner); err != nil {
		return "", err
	}
	key := core.SlotKey(s.base, owner)
	if err := core.ValidateKey(key); err != nil {
		return "", fmt.Errorf("invalid owner %q: %w", owner, err)
	}
	return key, nil
}

// hydrate reads key and returns the stored value, or the initial value when the
// slot is missing, unreadable or malformed. Failures are logged, never returned.
func (s *Store[T]) hydrate(ctx context.Context, key string) (T, []byte) {
	if key == "" {
		return s.initialValue()
	}

	data, ok, err := s.storage.Get(ctx, key)
	if err != nil {
		s.logger.Warn("failed to read slot", "key", key, "error", err)
		return s.initialValue()
	}
	if !ok {
		return s.initialValue()
	}

	var v T
	if err := s.codec.Unmarshal(data, &v); err != nil {
		s.logger.Warn("failed to parse slot", "key", key, "error", err)
		return s.initialValue()
	}
	return v, bytes.Clone(data)
}

func (s *Store[T]) initialValue() (T, []byte) {
	data, err := s.codec.Marshal(s.initial)
	if err != nil {
		return s.initial, nil
	}
	return s.clone(s.initial, data), data
}

// clone decodes data into a fresh T so callers never share memory with the store.
func (s *Store[T]) clone(v T, data []byte) T {
	if data == nil {
		return v
	}
	var out T
	if err := s.codec.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// Value returns a copy of the current in-memory value.
func (s *Store[T]) Value() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clone(s.value, s.encoded)
}

// Key returns the effective slot key, or "" when the store is ephemeral.
func (s *Store[T]) Key() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}

// Owner returns the current owner, or "" when there is none.
func (s *Store[T]) Owner() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owner
}

// Phase returns the current phase.
func (s *Store[T]) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Base returns the base key.
func (s *Store[T]) Base() string {
	return s.base
}

// Set replaces the value and writes it through to the current slot.
//
// The in-memory value is always updated. If the write fails the returned
// *core.StorageError tells the caller that the update will not survive a
// restart; see core.IsRecoverable.
func (s *Store[T]) Set(ctx context.Context, v T) error {
	s.opMu.Lock()
	changed, err := s.setLocked(ctx, v)
	s.opMu.Unlock()

	if changed {
		s.notify()
	}
	return err
}

// Update applies fn to a copy of the current value and stores the result.
func (s *Store[T]) Update(ctx context.Context, fn func(prev T) T) error {
	s.opMu.Lock()
	next := fn(s.Value())
	changed, err := s.setLocked(ctx, next)
	s.opMu.Unlock()

	if changed {
		s.notify()
	}
	return err
}

func (s *Store[T]) setLocked(ctx context.Context, v T) (bool, error) {
	data, encErr := s.codec.Marshal(v)
	if encErr != nil {
		data = nil
	}

	s.mu.Lock()
	changed := data == nil || !bytes.Equal(data, s.encoded)
	s.value = v
	s.encoded = data
	key := s.key
	s.mu.Unlock()

	if key == "" {
		return changed, nil
	}

	if encErr != nil {
		s.logger.Error("failed to serialize value", "key", key, "error", encErr)
		return changed, &core.StorageError{
			Op:  "serialize",
			Key: key,
			Err: fmt.Errorf("%w: %v", core.ErrSerialization, encErr),
		}
	}

	if err := s.storage.Set(ctx, key, data); err != nil {
		s.logger.Error("failed to write slot", "key", key, "error", err)
		return changed, &core.StorageError{Op: "write", Key: key, Err: err}
	}
	return changed, nil
}

// SetOwner re-keys the store. The slot of the new owner is read and replaces
// the in-memory value, or the initial value is used when the slot is missing
// or the owner is empty. Subscribers are only notified when the value differs.
func (s *Store[T]) SetOwner(ctx context.Context, owner string) error {
	s.opMu.Lock()

	key, err := s.resolve(owner)
	if err != nil {
		s.opMu.Unlock()
		return err
	}
	value, encoded := s.hydrate(ctx, key)

	s.mu.Lock()
	prevKey := s.key
	changed := encoded == nil || !bytes.Equal(encoded, s.encoded)
	s.owner = owner
	s.key = key
	s.value = value
	s.encoded = encoded
	s.phase = phaseFor(key)
	phase := s.phase
	s.mu.Unlock()

	s.opMu.Unlock()

	s.logger.Debug("store re-keyed", "from", prevKey, "to", key, "phase", phase)
	if changed {
		s.notify()
	}
	return nil
}

// Reload re-reads the current slot.
func (s *Store[T]) Reload(ctx context.Context) error {
	return s.SetOwner(ctx, s.Owner())
}

// ApplyEvent adopts a change made to the current slot by another handle.
// Events for other keys are ignored. A removal resets the value to the
// initial one; new content is adopted when it differs from the current value.
func (s *Store[T]) ApplyEvent(e core.Event) {
	s.opMu.Lock()
	changed := s.applyLocked(e)
	s.opMu.Unlock()

	if changed {
		s.notify()
	}
}

func (s *Store[T]) applyLocked(e core.Event) bool {
	s.mu.RLock()
	key := s.key
	current := s.encoded
	s.mu.RUnlock()

	if key == "" || e.Key != key {
		return false
	}

	var (
		value   T
		encoded []byte
	)
	switch {
	case e.Removed || e.Type == core.EventDelete:
		value, encoded = s.initialValue()
		if encoded != nil && bytes.Equal(encoded, current) {
			return false
		}
	case e.Value == nil:
		return false
	case bytes.Equal(e.Value, current):
		return false
	default:
		if err := s.codec.Unmarshal(e.Value, &value); err != nil {
			s.logger.Warn("failed to parse synced value", "key", key, "origin", e.Origin, "error", err)
			return false
		}
		encoded = bytes.Clone(e.Value)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key != key {
		return false
	}
	s.value = value
	s.encoded = encoded
	s.logger.Debug("adopted external change", "key", key, "origin", e.Origin, "removed", e.Removed)
	return true
}

// Subscribe registers fn to be called with every new value.
// The returned function removes the subscription.
func (s *Store[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store[T]) notify() {
	s.subMu.Lock()
	fns := make([]func(T), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(s.Value())
	}
}

// Start subscribes to changes made by other handles on the same storage.
// It is a no-op when sync is disabled or the storage cannot be watched.
func (s *Store[T]) Start(ctx context.Context) error {
	if !s.sync {
		return nil
	}
	w, ok := s.storage.(core.Watchable)
	if !ok {
		s.logger.Debug("storage is not watchable, cross-handle sync disabled")
		return nil
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.cancel != nil {
		return errors.New("store already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	events, err := w.Watch(runCtx, watchPattern(s.base))
	if err != nil {
		cancel()
		return fmt.Errorf("failed to watch storage: %w", err)
	}

	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		for {
			select {
			case <-runCtx.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				s.ApplyEvent(e)
			}
		}
	}()
	return nil
}

// Close stops synchronization and waits for the event pump to exit.
func (s *Store[T]) Close() error {
	s.runMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.runMu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func watchPattern(base string) string {
	if strings.ContainsAny(base, `*?[]{}\`) {
		return "*"
	}
	return base + "_*"
}
