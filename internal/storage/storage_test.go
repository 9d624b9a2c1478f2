package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	// Nothing saved yet.
	data, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, store.Save(ctx, []byte(`{"operations":[]}`)))
	data, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"operations":[]}`, string(data))

	// Overwrite replaces the previous snapshot.
	require.NoError(t, store.Save(ctx, []byte(`updated`)))
	data, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, `updated`, string(data))
}

func TestMemoryStore_CopiesData(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	in := []byte("snapshot")
	require.NoError(t, store.Save(ctx, in))
	in[0] = 'X'

	out, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "snapshot", string(out))

	out[0] = 'Y'
	again, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "snapshot", string(again))
}

func TestSQLStore_SQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "queue.db")

	store, err := NewSQLStore(DriverSQLite, path, "snapshots", "default")
	require.NoError(t, err)
	defer store.Close()

	data, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, data, "absent snapshot loads as nil")

	require.NoError(t, store.Save(ctx, []byte(`{"isEnabled":true}`)))
	data, err = store.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"isEnabled":true}`, string(data))

	require.NoError(t, store.Save(ctx, []byte(`{"isEnabled":false}`)))
	data, err = store.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"isEnabled":false}`, string(data))
}

func TestSQLStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "queue.db")

	store, err := NewSQLStore(DriverSQLite, path, "snapshots", "default")
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, []byte(`persisted`)))
	require.NoError(t, store.Close())

	reopened, err := NewSQLStore(DriverSQLite, path, "snapshots", "default")
	require.NoError(t, err)
	defer reopened.Close()

	data, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, `persisted`, string(data))
}

func TestSQLStore_NamesAreIsolated(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "queue.db")

	first, err := NewSQLStore(DriverSQLite, path, "snapshots", "tenant-a")
	require.NoError(t, err)
	defer first.Close()
	require.NoError(t, first.Save(ctx, []byte(`a`)))

	second, err := NewSQLStore(DriverSQLite, path, "snapshots", "tenant-b")
	require.NoError(t, err)
	defer second.Close()

	data, err := second.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, second.Save(ctx, []byte(`b`)))
	data, err = first.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, `a`, string(data))
}

func TestNewSnapshotStore_UnknownType(t *testing.T) {
	_, err := NewSnapshotStore(Config{Type: "punchcard"})
	assert.Error(t, err)
}

func TestNewSnapshotStore_Memory(t *testing.T) {
	store, err := NewSnapshotStore(Config{Type: TypeMemory})
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &MemoryStore{}, store)
}
