package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRPCThenEventsMergesIntoOnePlugin(t *testing.T) {
	r := NewRegistry()
	r.RegisterRPC("alpha")
	r.RegisterEvents("alpha")

	list := r.List()
	require.Len(t, list, 1)
	assert.Equal(t, "alpha", list[0].Name)
	assert.True(t, list[0].HasRPC)
	assert.True(t, list[0].HasEvents)
}

func TestRemoveDropsPluginFromRoster(t *testing.T) {
	r := NewRegistry()
	r.RegisterRPC("alpha")
	r.Remove("alpha")

	assert.Empty(t, r.List())
}

func TestSubscribeReceivesUpsertAndRemoveUpdates(t *testing.T) {
	r := NewRegistry()
	updates, cancel := r.Subscribe()
	defer cancel()

	r.RegisterRPC("beta")
	select {
	case u := <-updates:
		assert.Equal(t, "upsert", u.Kind)
		require.NotNil(t, u.Plugin)
		assert.Equal(t, "beta", u.Plugin.Name)
	case <-time.After(time.Second):
		t.Fatal("expected an upsert update")
	}

	r.Remove("beta")
	select {
	case u := <-updates:
		assert.Equal(t, "remove", u.Kind)
		assert.Equal(t, "beta", u.Name)
	case <-time.After(time.Second):
		t.Fatal("expected a remove update")
	}
}

func TestRemoveOfUnknownPluginIsNoop(t *testing.T) {
	r := NewRegistry()
	updates, cancel := r.Subscribe()
	defer cancel()

	r.Remove("never-existed")

	select {
	case u := <-updates:
		t.Fatalf("unexpected update for a plugin that never registered: %+v", u)
	case <-time.After(50 * time.Millisecond):
	}
}
