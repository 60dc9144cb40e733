package instanceid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newrelic/agent-control/internal/kvstore"
)

func TestStore_ReusesIDWhenIdentifiersUnchanged(t *testing.T) {
	ctx := context.Background()
	store := NewStore(kvstore.NewDirectory(t.TempDir()))
	idents := Identifiers{Hostname: "h1", MachineID: "m1"}

	first, err := store.Get(ctx, "agent-1", idents)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := store.Get(ctx, "agent-1", idents)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestStore_MintsNewIDWhenIdentifiersChange(t *testing.T) {
	ctx := context.Background()
	store := NewStore(kvstore.NewDirectory(t.TempDir()))

	first, err := store.Get(ctx, "agent-1", Identifiers{Hostname: "h1", MachineID: "m1"})
	require.NoError(t, err)

	second, err := store.Get(ctx, "agent-1", Identifiers{Hostname: "h2", MachineID: "m1"})
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestStore_DeserializationErrorTreatedAsAbsence(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewDirectory(t.TempDir())
	require.NoError(t, kv.Set(ctx, kvstore.NamespaceFleet, "agent-1", kvstore.KeyInstanceID, []byte("not-json")))

	store := NewStore(kv)
	id, err := store.Get(ctx, "agent-1", Identifiers{Hostname: "h1"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}
