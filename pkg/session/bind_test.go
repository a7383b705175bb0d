package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/mindful/pkg/adapters/memory"
	"github.com/aretw0/mindful/pkg/core"
	"github.com/aretw0/mindful/pkg/scoped"
	"github.com/aretw0/mindful/pkg/session"
)

type failingRekeyer struct{ calls int }

func (f *failingRekeyer) SetOwner(ctx context.Context, owner string) error {
	f.calls++
	return errors.New("boom")
}

func TestBind_RekeysStores(t *testing.T) {
	ctx := context.Background()
	storage := memory.NewOrigin().Handle("app")
	require.NoError(t, storage.Set(ctx, "habits_alice", []byte(`["run"]`)))
	require.NoError(t, storage.Set(ctx, "habits_bob", []byte(`["swim"]`)))

	provider := session.NewLocal("alice")
	habits, err := scoped.New(ctx, storage, "habits", []string{}, "")
	require.NoError(t, err)

	failing := &failingRekeyer{}
	unbind := session.Bind(ctx, provider, []session.Rekeyer{habits, failing})
	assert.Equal(t, []string{"run"}, habits.Value(), "bound to the current owner immediately")

	provider.SignIn("bob")
	assert.Equal(t, []string{"swim"}, habits.Value())
	assert.Equal(t, "habits_bob", habits.Key())

	require.NoError(t, provider.SignOut(ctx))
	assert.Equal(t, scoped.PhaseEphemeral, habits.Phase())
	assert.Equal(t, []string{}, habits.Value())

	_, ok, _ := storage.Get(ctx, "habits_bob")
	assert.True(t, ok, "sign-out keeps data by default")
	assert.Equal(t, 3, failing.calls, "failures do not stop re-keying")

	unbind()
	provider.SignIn("alice")
	assert.Equal(t, scoped.PhaseEphemeral, habits.Phase())
}

func TestBind_RefreshDoesNotRekey(t *testing.T) {
	ctx := context.Background()
	provider := session.NewLocal("alice")
	counter := &failingRekeyer{}

	session.Bind(ctx, provider, []session.Rekeyer{counter})
	provider.SignIn("alice")
	assert.Equal(t, 1, counter.calls)
}

func TestBind_PruneOnSignOut(t *testing.T) {
	ctx := context.Background()
	storage := memory.NewOrigin().Handle("app")
	svc := core.NewService(storage)
	require.NoError(t, storage.Set(ctx, "tasks_alice", []byte(`[]`)))
	require.NoError(t, storage.Set(ctx, "notes_alice", []byte(`[]`)))
	require.NoError(t, storage.Set(ctx, "tasks_bob", []byte(`[]`)))

	provider := session.NewLocal("alice")
	session.Bind(ctx, provider, nil, session.WithPruneOnSignOut(svc))
	require.NoError(t, provider.SignOut(ctx))

	keys, err := svc.Keys(ctx, "*")
	require.NoError(t, err)
	assert.Equal(t, []string{"tasks_bob"}, keys)
}

// switchingProvider signs in another owner while Bind is subscribing.
type switchingProvider struct {
	*session.Local
	next string
}

func (p *switchingProvider) Subscribe(fn func(owner string)) func() {
	p.SignIn(p.next)
	return p.Local.Subscribe(fn)
}

func TestBind_OwnerChangeDuringSubscribe(t *testing.T) {
	ctx := context.Background()
	storage := memory.NewOrigin().Handle("app")
	require.NoError(t, storage.Set(ctx, "vault_u1", []byte(`["u1 secret"]`)))
	require.NoError(t, storage.Set(ctx, "vault_u2", []byte(`["u2 note"]`)))

	provider := &switchingProvider{Local: session.NewLocal("u1"), next: "u2"}
	vault, err := scoped.New(ctx, storage, "vault", []string{}, "")
	require.NoError(t, err)

	session.Bind(ctx, provider, []session.Rekeyer{vault})

	assert.Equal(t, "u2", provider.CurrentOwner())
	assert.Equal(t, "vault_u2", vault.Key())
	assert.Equal(t, []string{"u2 note"}, vault.Value())
}
