// Package lifecycle exposes slot change events as a lifecycle.Source, so a
// lifecycle-managed application can react to changes made by other handles.
package lifecycle

import (
	"context"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/mindful/pkg/core"
)

type slotSource struct {
	events <-chan core.Event
	out    chan lifecycle.Event
}

// NewSource creates a lifecycle.Source that emits slot events.
func NewSource(events <-chan core.Event) lifecycle.Source {
	return &slotSource{
		events: events,
		out:    make(chan lifecycle.Event),
	}
}

// WatchSource watches pattern on svc and returns the events as a lifecycle.Source.
func WatchSource(ctx context.Context, svc *core.Service, pattern string) (lifecycle.Source, error) {
	events, err := svc.Watch(ctx, pattern)
	if err != nil {
		return nil, err
	}
	return NewSource(events), nil
}

func (s *slotSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *slotSource) Start(ctx context.Context) error {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-s.events:
				if !ok {
					return nil
				}
				// core.Event implements lifecycle.Event.
				select {
				case s.out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}
