package redis

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/alkem-io/server-sub004/lifecycle"
	"github.com/alkem-io/server-sub004/lifecycle/lifecycletest"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewFromClient(client, opts...), mr
}

func TestStorageContract(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	lifecycletest.RunStorageContract(t, store)
}

func TestEngineContract(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	lifecycletest.RunEngineContract(t, store)
}

func TestPrefix(t *testing.T) {
	t.Parallel()

	store, mr := newTestStore(t, WithPrefix("tenant-a:"))

	rec := lifecycletest.NewRecord(lifecycle.KindInvitation, "invited")
	require.NoError(t, store.Insert(t.Context(), rec))

	assert.True(t, mr.Exists("tenant-a:"+rec.ID))
	assert.Equal(t, "invited", mr.HGet("tenant-a:"+rec.ID, fieldState))
	assert.Equal(t, "0", mr.HGet("tenant-a:"+rec.ID, fieldVersion))
}

func TestMalformedRecord(t *testing.T) {
	t.Parallel()

	store, mr := newTestStore(t)

	mr.HSet(defaultPrefix+"broken", fieldKind, lifecycle.KindEntity, fieldState, "notStarted", fieldVersion, "x")

	_, err := store.Get(t.Context(), "broken")
	require.ErrorIs(t, err, errMalformedRecord)
}

func TestConnect(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	store, err := Connect(t.Context(), Config{URL: "redis://" + mr.Addr() + "/0"})
	require.NoError(t, err)

	defer store.Close()

	rec := lifecycletest.NewRecord(lifecycle.KindEntity, "notStarted")
	require.NoError(t, store.Insert(t.Context(), rec))

	updated, err := store.CompareAndSwap(t.Context(), rec.ID, 0, "abandoned", rec.CreatedAt.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), updated.Version)

	_, err = Connect(t.Context(), Config{URL: "not a url"})
	require.Error(t, err)
}

func TestCloseClientOwnership(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	require.NoError(t, store.Close())
	require.NoError(t, store.client.Ping(t.Context()).Err(), "borrowed client must stay open")

	mr := miniredis.RunT(t)

	owned, err := Connect(t.Context(), Config{URL: "redis://" + mr.Addr() + "/0"})
	require.NoError(t, err)
	require.NoError(t, owned.Close())
	require.ErrorIs(t, owned.client.Ping(t.Context()).Err(), backend.ErrClosed)
}
