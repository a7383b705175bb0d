package fs

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aretw0/mindful/pkg/core"
)

// Reconcile compares the slots on disk with the index and returns an event for
// every slot created, modified or removed since the last time this repository
// looked. It is used to baseline the index and to recover from lost watch events.
func (r *Repository) Reconcile(ctx context.Context) ([]core.Event, error) {
	entries, err := os.ReadDir(r.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to list storage: %w", err)
	}

	var events []core.Event
	now := time.Now().Unix()
	seen := make(map[string]bool)

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key, ok := keyFromName(entry.Name())
		if !ok || entry.IsDir() {
			continue
		}
		data, ok := r.readSlot(key)
		if !ok {
			continue // removed while scanning
		}
		seen[key] = true
		if eType, changed := r.observe(key, data, true); changed {
			events = append(events, core.Event{
				Type:      eType,
				Key:       key,
				Value:     data,
				Timestamp: now,
			})
		}
	}

	for _, key := range r.index.Keys() {
		if seen[key] {
			continue
		}
		if _, changed := r.observe(key, nil, false); changed {
			events = append(events, core.Event{
				Type:      core.EventDelete,
				Key:       key,
				Removed:   true,
				Timestamp: now,
			})
		}
	}

	if !r.isReadOnly() {
		if err := r.index.Save(); err != nil {
			r.config.Logger.Warn("failed to save index", "error", err)
		}
	}
	r.recordReconcile()

	r.config.Logger.Debug("reconciled storage", "changes", len(events))
	return events, nil
}
