package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alkem-io/server-sub004/lifecycle"
	"github.com/alkem-io/server-sub004/lifecycle/lifecycletest"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(t.Context(), Config{Path: filepath.Join(t.TempDir(), "lifecycle.db")}, slogt.New(t))
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestStorageContract(t *testing.T) {
	t.Parallel()

	lifecycletest.RunStorageContract(t, openTestStore(t))
}

func TestEngineContract(t *testing.T) {
	t.Parallel()

	lifecycletest.RunEngineContract(t, openTestStore(t))
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{Path: "  "}, nil)
	require.Error(t, err)
}

func TestReopenKeepsRecords(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "lifecycle.db")

	first, err := Open(t.Context(), Config{Path: path}, nil)
	require.NoError(t, err)

	rec := lifecycletest.NewRecord(lifecycle.KindEntity, "notStarted")
	require.NoError(t, first.Insert(t.Context(), rec))

	_, err = first.CompareAndSwap(t.Context(), rec.ID, 0, "beingRefined", rec.CreatedAt)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// Migrations are idempotent on a second open.
	second, err := Open(t.Context(), Config{Path: path}, nil)
	require.NoError(t, err)

	defer second.Close()

	loaded, err := second.Get(t.Context(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "beingRefined", loaded.CurrentState)
	assert.Equal(t, uint64(1), loaded.Version)
}

func TestCountByKind(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	for _, kind := range []string{lifecycle.KindEntity, lifecycle.KindEntity, lifecycle.KindInvitation} {
		require.NoError(t, store.Insert(t.Context(), lifecycletest.NewRecord(kind, "x")))
	}

	counts, err := store.CountByKind(t.Context())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{lifecycle.KindEntity: 2, lifecycle.KindInvitation: 1}, counts)
}
