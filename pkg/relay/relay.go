// Package relay mirrors slot changes between hosts.
//
// A relay Storage wraps the local storage of one host. Local writes go through
// to the wrapped storage and are published; changes published by other hosts
// are applied to the wrapped storage and reported to Watch, exactly like a
// write made by another handle on the same machine.
package relay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/mindful/pkg/core"
)

const remoteBuffer = 64

// Option configures a Storage.
type Option func(*Storage)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Storage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Storage is a core.Storage that keeps the slots of several hosts in sync.
type Storage struct {
	inner     core.Storage
	transport Transport
	host      string
	logger    *slog.Logger

	mu     sync.Mutex
	subs   map[int]*subscription
	nextID int
}

type subscription struct {
	pattern string
	remote  chan core.Event
	done    <-chan struct{}
}

// New wraps inner. host identifies this host; messages carrying it are ignored.
func New(inner core.Storage, transport Transport, host string, opts ...Option) *Storage {
	s := &Storage{
		inner:     inner,
		transport: transport,
		host:      host,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		subs:      make(map[int]*subscription),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("host", host)
	return s
}

// Host returns the host identifier.
func (s *Storage) Host() string {
	return s.host
}

// Initialize initializes the wrapped storage.
func (s *Storage) Initialize(ctx context.Context) error {
	return s.inner.Initialize(ctx)
}

// Get reads from the wrapped storage.
func (s *Storage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.inner.Get(ctx, key)
}

// Set writes locally, then publishes the change. A failed publish is logged;
// the local write stands.
func (s *Storage) Set(ctx context.Context, key string, value []byte) error {
	if err := s.inner.Set(ctx, key, value); err != nil {
		return err
	}
	s.publish(ctx, &Message{Origin: s.host, Key: key, Value: value, Timestamp: time.Now()})
	return nil
}

// Remove removes locally, then publishes the change.
func (s *Storage) Remove(ctx context.Context, key string) error {
	if err := s.inner.Remove(ctx, key); err != nil {
		return err
	}
	s.publish(ctx, &Message{Origin: s.host, Key: key, Removed: true, Timestamp: time.Now()})
	return nil
}

func (s *Storage) publish(ctx context.Context, msg *Message) {
	if err := s.transport.Publish(ctx, msg); err != nil {
		s.logger.Warn("failed to publish slot change", "key", msg.Key, "error", err)
	}
}

// Keys lists keys of the wrapped storage.
func (s *Storage) Keys(ctx context.Context, pattern string) ([]string, error) {
	e, ok := s.inner.(core.Enumerable)
	if !ok {
		return nil, core.ErrNotEnumerable
	}
	return e.Keys(ctx, pattern)
}

// Run consumes changes from other hosts until ctx is cancelled.
func (s *Storage) Run(ctx context.Context) error {
	s.logger.Info("relay started")
	defer s.logger.Info("relay stopped")
	return s.transport.Consume(ctx, func(msg *Message) error {
		return s.apply(ctx, msg)
	})
}

// apply writes a remote change to the wrapped storage and reports it.
func (s *Storage) apply(ctx context.Context, msg *Message) error {
	if msg.Origin == s.host {
		return nil
	}
	if err := core.ValidateKey(msg.Key); err != nil {
		return err
	}

	var err error
	if msg.Removed {
		err = s.inner.Remove(ctx, msg.Key)
	} else {
		err = s.inner.Set(ctx, msg.Key, msg.Value)
	}
	if err != nil {
		return fmt.Errorf("apply remote change to %s: %w", msg.Key, err)
	}

	e := core.Event{
		Type:      core.EventModify,
		Key:       msg.Key,
		Value:     msg.Value,
		Removed:   msg.Removed,
		Origin:    msg.Origin,
		Timestamp: msg.Timestamp.Unix(),
	}
	if msg.Removed {
		e.Type = core.EventDelete
		e.Value = nil
	}
	s.logger.Debug("applied remote change", "key", msg.Key, "origin", msg.Origin, "removed", msg.Removed)
	s.deliver(e)
	return nil
}

func (s *Storage) deliver(e core.Event) {
	s.mu.Lock()
	subs := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		if ok, _ := doublestar.Match(sub.pattern, e.Key); !ok {
			continue
		}
		select {
		case sub.remote <- e:
		case <-sub.done:
		}
	}
}

// Watch reports changes from other hosts and, when the wrapped storage is
// watchable, from other local handles.
func (s *Storage) Watch(ctx context.Context, pattern string) (<-chan core.Event, error) {
	if pattern == "" {
		pattern = "*"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}

	var local <-chan core.Event
	if w, ok := s.inner.(core.Watchable); ok {
		ch, err := w.Watch(ctx, pattern)
		if err != nil {
			return nil, err
		}
		local = ch
	}

	sub := &subscription{
		pattern: pattern,
		remote:  make(chan core.Event, remoteBuffer),
		done:    ctx.Done(),
	}
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	s.mu.Unlock()

	out := make(chan core.Event)
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(out)
		}()
		for {
			var e core.Event
			select {
			case <-ctx.Done():
				return nil
			case e = <-sub.remote:
			case ev, ok := <-local:
				if !ok {
					local = nil // keep serving remote changes
					continue
				}
				e = ev
			}
			select {
			case out <- e:
			case <-ctx.Done():
				return nil
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		s.logger.Error("relay watch failed", "error", err)
	}))

	return out, nil
}

var (
	_ core.Storage    = (*Storage)(nil)
	_ core.Watchable  = (*Storage)(nil)
	_ core.Enumerable = (*Storage)(nil)
)
