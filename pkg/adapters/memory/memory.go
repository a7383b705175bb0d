// Package memory provides an in-process slot storage.
//
// An Origin plays the role of the browser's per-origin storage area: it owns
// the slots, and every Handle opened on it behaves like one tab. Writes made
// through a handle are reported to the watchers of every other handle, never
// to its own.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/mindful/pkg/core"
)

const subscriptionBuffer = 256

// Origin is a shared slot area.
type Origin struct {
	mu       sync.RWMutex
	slots    map[string][]byte
	used     int64
	maxBytes int64
	handles  map[*Handle]struct{}
}

// OriginOption configures an Origin.
type OriginOption func(*Origin)

// WithQuota limits the total number of bytes stored across all slots.
func WithQuota(maxBytes int64) OriginOption {
	return func(o *Origin) {
		o.maxBytes = maxBytes
	}
}

// NewOrigin creates an empty slot area.
func NewOrigin(opts ...OriginOption) *Origin {
	o := &Origin{
		slots:   make(map[string][]byte),
		handles: make(map[*Handle]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Handle opens a new named handle on the origin.
func (o *Origin) Handle(name string) *Handle {
	h := &Handle{
		origin: o,
		name:   name,
		subs:   make(map[int]*subscription),
	}
	o.mu.Lock()
	o.handles[h] = struct{}{}
	o.mu.Unlock()
	return h
}

// Len returns the number of slots.
func (o *Origin) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.slots)
}

func (o *Origin) broadcast(from *Handle, e core.Event) {
	o.mu.RLock()
	targets := make([]*Handle, 0, len(o.handles))
	for h := range o.handles {
		if h != from {
			targets = append(targets, h)
		}
	}
	o.mu.RUnlock()

	for _, h := range targets {
		h.deliver(e)
	}
}

type subscription struct {
	pattern string
	ch      chan core.Event
	done    <-chan struct{}
}

// Handle is one view on an Origin. It implements core.Storage,
// core.Enumerable and core.Watchable.
type Handle struct {
	origin *Origin
	name   string

	mu     sync.Mutex
	subs   map[int]*subscription
	nextID int
}

// Name returns the handle name.
func (h *Handle) Name() string {
	return h.name
}

// Initialize implements core.Storage.
func (h *Handle) Initialize(ctx context.Context) error {
	return nil
}

// Get implements core.Storage.
func (h *Handle) Get(ctx context.Context, key string) ([]byte, bool, error) {
	h.origin.mu.RLock()
	defer h.origin.mu.RUnlock()

	v, ok := h.origin.slots[key]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

// Set implements core.Storage.
func (h *Handle) Set(ctx context.Context, key string, value []byte) error {
	o := h.origin
	o.mu.Lock()
	prev, existed := o.slots[key]
	if existed && bytes.Equal(prev, value) {
		o.mu.Unlock()
		return nil
	}
	used := o.used - int64(len(prev)) + int64(len(value))
	if o.maxBytes > 0 && used > o.maxBytes {
		o.mu.Unlock()
		return fmt.Errorf("%w: %d bytes over limit of %d", core.ErrQuotaExceeded, used-o.maxBytes, o.maxBytes)
	}
	o.slots[key] = bytes.Clone(value)
	o.used = used
	o.mu.Unlock()

	eType := core.EventModify
	if !existed {
		eType = core.EventCreate
	}
	o.broadcast(h, core.Event{
		Type:      eType,
		Key:       key,
		Value:     bytes.Clone(value),
		Origin:    h.name,
		Timestamp: time.Now().Unix(),
	})
	return nil
}

// Remove implements core.Storage.
func (h *Handle) Remove(ctx context.Context, key string) error {
	o := h.origin
	o.mu.Lock()
	prev, existed := o.slots[key]
	if !existed {
		o.mu.Unlock()
		return nil
	}
	delete(o.slots, key)
	o.used -= int64(len(prev))
	o.mu.Unlock()

	o.broadcast(h, core.Event{
		Type:      core.EventDelete,
		Key:       key,
		Removed:   true,
		Origin:    h.name,
		Timestamp: time.Now().Unix(),
	})
	return nil
}

// Keys implements core.Enumerable.
func (h *Handle) Keys(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}

	h.origin.mu.RLock()
	defer h.origin.mu.RUnlock()

	keys := make([]string, 0, len(h.origin.slots))
	for k := range h.origin.slots {
		if ok, _ := doublestar.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Watch implements core.Watchable.
func (h *Handle) Watch(ctx context.Context, pattern string) (<-chan core.Event, error) {
	if pattern == "" {
		pattern = "*"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}

	sub := &subscription{
		pattern: pattern,
		ch:      make(chan core.Event, subscriptionBuffer),
		done:    ctx.Done(),
	}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = sub
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		close(sub.ch)
		h.mu.Unlock()
	}()

	return sub.ch, nil
}

func (h *Handle) deliver(e core.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs {
		if ok, _ := doublestar.Match(sub.pattern, e.Key); !ok {
			continue
		}
		select {
		case sub.ch <- e:
		case <-sub.done:
		}
	}
}

// ComponentType implements introspection.Component.
func (h *Handle) ComponentType() string {
	return "memory"
}

var (
	_ core.Storage    = (*Handle)(nil)
	_ core.Enumerable = (*Handle)(nil)
	_ core.Watchable  = (*Handle)(nil)
)
