package kvstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectory_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	d := NewDirectory(t.TempDir())

	_, ok, err := d.Get(ctx, NamespaceFleet, "agent-1", KeyRemoteConfig)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, d.Set(ctx, NamespaceFleet, "agent-1", KeyRemoteConfig, []byte("body: hi")))

	v, ok, err := d.Get(ctx, NamespaceFleet, "agent-1", KeyRemoteConfig)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "body: hi", string(v))

	require.NoError(t, d.Delete(ctx, NamespaceFleet, "agent-1", KeyRemoteConfig))

	_, ok, err = d.Get(ctx, NamespaceFleet, "agent-1", KeyRemoteConfig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDirectory_NamespacesIsolated(t *testing.T) {
	ctx := context.Background()
	d := NewDirectory(t.TempDir())

	require.NoError(t, d.Set(ctx, NamespaceLocal, "agent-1", KeyLocalConfig, []byte("a")))
	require.NoError(t, d.Set(ctx, NamespaceFleet, "agent-1", KeyLocalConfig, []byte("b")))

	v, _, err := d.Get(ctx, NamespaceLocal, "agent-1", KeyLocalConfig)
	require.NoError(t, err)
	assert.Equal(t, "a", string(v))

	v, _, err = d.Get(ctx, NamespaceFleet, "agent-1", KeyLocalConfig)
	require.NoError(t, err)
	assert.Equal(t, "b", string(v))
}
