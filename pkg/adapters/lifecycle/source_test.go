package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/mindful/pkg/adapters/memory"
	slotlifecycle "github.com/aretw0/mindful/pkg/adapters/lifecycle"
	"github.com/aretw0/mindful/pkg/core"
)

func TestSource_BridgesEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	origin := memory.NewOrigin()
	writer := origin.Handle("writer")
	svc := core.NewService(origin.Handle("reader"))

	src, err := slotlifecycle.WatchSource(ctx, svc, "tasks_*")
	require.NoError(t, err)
	require.NoError(t, src.Start(ctx))

	require.NoError(t, writer.Set(ctx, "tasks_alice", []byte(`[]`)))

	select {
	case e := <-src.Events():
		assert.Equal(t, "CREATE tasks_alice", e.String())
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-src.Events():
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
