package fs

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/supervisor"
	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/mindful/pkg/core"
)

// A restarted watch worker keeps its slot pattern and still ignores writes
// made through its own repository.
func TestWatchWorker_RestartKeepsSlotFiltering(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	repo := NewRepository(Config{Path: dir, SystemDir: ".mindful", Debounce: 20 * time.Millisecond})
	require.NoError(t, repo.Initialize(ctx))
	other := NewRepository(Config{Path: dir, SystemDir: ".other"})
	require.NoError(t, other.Initialize(ctx))

	events := make(chan core.Event, 16)
	created := make(chan *watchWorker, 4)

	spec := supervisor.Spec{
		Name: "fs-watcher",
		Type: string(worker.TypeGoroutine),
		Factory: func() (worker.Worker, error) {
			w := newWatchWorker(repo, "settings_*", events)
			created <- w
			return w, nil
		},
		Backoff: supervisor.Backoff{
			InitialInterval: 10 * time.Millisecond,
			MaxInterval:     50 * time.Millisecond,
			Multiplier:      1,
			ResetDuration:   50 * time.Millisecond,
			MaxRestarts:     2,
			MaxDuration:     200 * time.Millisecond,
		},
		RestartPolicy: supervisor.RestartOnFailure,
	}

	sup := supervisor.New("slot-watcher", supervisor.StrategyOneForOne, spec)
	require.NoError(t, sup.Start(ctx))
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer stopCancel()
		assert.NoError(t, sup.Stop(stopCtx))
	}()

	first := waitForWorker(t, created, "first")
	waitForWatcherInit(t, first)
	_ = first.watcher.Close()

	second := waitForWorker(t, created, "second")
	require.NotSame(t, first, second, "supervisor must restart with a new worker")
	waitForWatcherInit(t, second)
	waitForWatcher(t, repo, true)
	assert.Equal(t, "settings_*", second.State().Metadata["pattern"])

	require.NoError(t, repo.Set(ctx, "settings_u1", []byte(`{"theme":"own"}`)))
	require.NoError(t, other.Set(ctx, "notes_u1", []byte(`["elsewhere"]`)))
	require.NoError(t, other.Set(ctx, "settings_u2", []byte(`{"theme":"remote"}`)))

	select {
	case e := <-events:
		assert.Equal(t, "settings_u2", e.Key, "only foreign writes to matching slots are reported")
		assert.Equal(t, core.EventCreate, e.Type)
		assert.JSONEq(t, `{"theme":"remote"}`, string(e.Value))
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for foreign slot write")
	}

	select {
	case e := <-events:
		t.Fatalf("unexpected event %s", e)
	case <-time.After(200 * time.Millisecond):
	}
}

func waitForWorker(t *testing.T, ch <-chan *watchWorker, label string) *watchWorker {
	t.Helper()

	select {
	case w := <-ch:
		return w
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for %s worker", label)
		return nil
	}
}

func waitForWatcherInit(t *testing.T, w *watchWorker) {
	t.Helper()
	require.Eventually(t, func() bool { return w.watcher != nil },
		2*time.Second, 10*time.Millisecond, "watcher never initialized")
}

func waitForWatcher(t *testing.T, repo *Repository, expected bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		state, ok := repo.State().(RepositoryState)
		return ok && state.WatcherActive == expected
	}, 2*time.Second, 10*time.Millisecond, "watcher state never became %v", expected)
}
