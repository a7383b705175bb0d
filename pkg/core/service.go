package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/lifecycle"
)

const defaultEventBuffer = 100

// Service handles the business rules around slot storage.
type Service struct {
	repo            Storage
	logger          *slog.Logger
	eventBufferSize int

	mu       sync.RWMutex
	watchers int
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger used by the service.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEventBuffer sets the size of the per-watch event buffer.
// Zero or negative values keep the default (100).
func WithEventBuffer(size int) ServiceOption {
	return func(s *Service) {
		if size > 0 {
			s.eventBufferSize = size
		}
	}
}

// NewService creates a new Service.
func NewService(repo Storage, opts ...ServiceOption) *Service {
	s := &Service{
		repo:            repo,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		eventBufferSize: defaultEventBuffer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Storage returns the underlying storage port.
func (s *Service) Storage() Storage {
	return s.repo
}

// Get reads a slot.
func (s *Service) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ValidateKey(key); err != nil {
		return nil, false, err
	}
	return s.repo.Get(ctx, key)
}

// Set writes a slot.
func (s *Service) Set(ctx context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	return s.repo.Set(ctx, key, value)
}

// Remove deletes a slot.
func (s *Service) Remove(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	return s.repo.Remove(ctx, key)
}

// Keys lists the slots matching pattern, sorted.
func (s *Service) Keys(ctx context.Context, pattern string) ([]string, error) {
	e, ok := s.repo.(Enumerable)
	if !ok {
		return nil, ErrNotEnumerable
	}
	keys, err := e.Keys(ctx, pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// PruneOwner removes every slot belonging to owner and returns the removed keys.
// Slots are never pruned implicitly; callers decide when abandoned data goes away.
func (s *Service) PruneOwner(ctx context.Context, owner string) ([]string, error) {
	if err := ValidateOwner(owner); err != nil {
		return nil, err
	}
	keys, err := s.Keys(ctx, "*")
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, key := range keys {
		if !BelongsTo(key, owner) {
			continue
		}
		if err := s.repo.Remove(ctx, key); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", key, err)
		}
		removed = append(removed, key)
	}
	s.logger.Info("pruned owner slots", "owner", owner, "count", len(removed))
	return removed, nil
}

// Watch observes changes in the storage if supported.
// Events are buffered so that a slow consumer does not stall the adapter.
func (s *Service) Watch(ctx context.Context, pattern string) (<-chan Event, error) {
	w, ok := s.repo.(Watchable)
	if !ok {
		return nil, ErrNotWatchable
	}

	upstream, err := w.Watch(ctx, pattern)
	if err != nil {
		return nil, err
	}

	out := make(chan Event, s.eventBufferSize)
	s.mu.Lock()
	s.watchers++
	s.mu.Unlock()

	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer func() {
			s.mu.Lock()
			s.watchers--
			s.mu.Unlock()
			close(out)
		}()
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-upstream:
				if !ok {
					return nil
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		s.logger.Error("event broker failed", "error", err)
	}))

	return out, nil
}
