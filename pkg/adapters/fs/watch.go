package fs

import (
	"context"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/mindful/pkg/core"
)

// Watch reports changes to slots matching pattern made by anyone other than
// this repository: other processes, other repositories on the same directory,
// or manual edits. The channel is closed when ctx is cancelled.
func (r *Repository) Watch(ctx context.Context, pattern string) (<-chan core.Event, error) {
	if pattern == "" {
		pattern = "*"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}

	events := make(chan core.Event)
	w := newWatchWorker(r, pattern, events)
	w.onExit = func() { close(events) }

	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return events, nil
}
