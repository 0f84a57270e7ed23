package kvstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "guest_id_0a1b2c3d")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "guest_id_0a1b2c3d", "id-1"))
	v, ok, err := s.Get(ctx, "guest_id_0a1b2c3d")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "id-1", v)

	require.NoError(t, s.Set(ctx, "guest_id_0a1b2c3d", "id-2"))
	v, _, err = s.Get(ctx, "guest_id_0a1b2c3d")
	require.NoError(t, err)
	assert.Equal(t, "id-2", v)

	require.NoError(t, s.Remove(ctx, "guest_id_0a1b2c3d"))
	_, ok, err = s.Get(ctx, "guest_id_0a1b2c3d")
	require.NoError(t, err)
	assert.False(t, ok)

	// removing a missing key is not an error
	require.NoError(t, s.Remove(ctx, "never-set"))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestBadgerStore_InMemory(t *testing.T) {
	s, err := OpenBadger(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}

func TestBadgerStore_Persists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenBadger(BadgerConfig{Path: dir})
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "guest_id_deadbeef", "persisted"))
	require.NoError(t, s.Close())

	reopened, err := OpenBadger(BadgerConfig{Path: dir})
	require.NoError(t, err)
	defer reopened.Close()

	v, ok, err := reopened.Get(ctx, "guest_id_deadbeef")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "persisted", v)
}

func TestOpenBadger_RequiresPath(t *testing.T) {
	_, err := OpenBadger(BadgerConfig{})
	assert.Error(t, err)
}
