// Package lifecycletest provides reusable test suites for lifecycle.Storage implementations.
package lifecycletest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alkem-io/server-sub004/lifecycle"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewRecord returns a fresh version-0 record with a unique id.
// Timestamps are truncated to milliseconds, the coarsest precision any adapter stores.
func NewRecord(kind, state string) lifecycle.Record {
	now := time.Now().UTC().Truncate(time.Millisecond)

	return lifecycle.Record{
		ID:           "contract-" + uuid.NewString(),
		TemplateKind: kind,
		CurrentState: state,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// RunStorageContract verifies that storage honors the lifecycle.Storage contract.
func RunStorageContract(t *testing.T, storage lifecycle.Storage) {
	t.Helper()

	ctx := context.Background()

	t.Run("Insert and Get", func(t *testing.T) {
		rec := NewRecord(lifecycle.KindEntity, "notStarted")

		require.NoError(t, storage.Insert(ctx, rec))

		loaded, err := storage.Get(ctx, rec.ID)
		require.NoError(t, err)
		assertRecordEqual(t, rec, loaded)
	})

	t.Run("Get missing", func(t *testing.T) {
		_, err := storage.Get(ctx, "missing-"+uuid.NewString())
		require.ErrorIs(t, err, lifecycle.ErrRecordNotFound)
	})

	t.Run("Insert duplicate", func(t *testing.T) {
		rec := NewRecord(lifecycle.KindApplication, "new")
		require.NoError(t, storage.Insert(ctx, rec))

		dup := rec
		dup.CurrentState = "approved"

		err := storage.Insert(ctx, dup)
		require.ErrorIs(t, err, lifecycle.ErrRecordExists)

		loaded, err := storage.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, "new", loaded.CurrentState)
	})

	t.Run("CompareAndSwap applies", func(t *testing.T) {
		rec := NewRecord(lifecycle.KindEntity, "notStarted")
		require.NoError(t, storage.Insert(ctx, rec))

		at := rec.CreatedAt.Add(time.Second)

		updated, err := storage.CompareAndSwap(ctx, rec.ID, 0, "beingRefined", at)
		require.NoError(t, err)
		assert.Equal(t, "beingRefined", updated.CurrentState)
		assert.Equal(t, uint64(1), updated.Version)
		assert.Equal(t, rec.TemplateKind, updated.TemplateKind)
		assert.True(t, rec.CreatedAt.Equal(updated.CreatedAt), "created at preserved")
		assert.True(t, at.Equal(updated.UpdatedAt), "updated at %v, want %v", updated.UpdatedAt, at)

		loaded, err := storage.Get(ctx, rec.ID)
		require.NoError(t, err)
		assertRecordEqual(t, updated, loaded)

		updated, err = storage.CompareAndSwap(ctx, rec.ID, 1, "inProgress", at.Add(time.Second))
		require.NoError(t, err)
		assert.Equal(t, uint64(2), updated.Version)
	})

	t.Run("CompareAndSwap stale version", func(t *testing.T) {
		rec := NewRecord(lifecycle.KindEntity, "notStarted")
		require.NoError(t, storage.Insert(ctx, rec))

		_, err := storage.CompareAndSwap(ctx, rec.ID, 0, "abandoned", time.Now())
		require.NoError(t, err)

		for _, stale := range []uint64{0, 2, 7} {
			_, err = storage.CompareAndSwap(ctx, rec.ID, stale, "beingRefined", time.Now())
			require.ErrorIs(t, err, lifecycle.ErrConcurrentModification, "expected version %d", stale)
		}

		loaded, err := storage.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, "abandoned", loaded.CurrentState)
		assert.Equal(t, uint64(1), loaded.Version)
	})

	t.Run("CompareAndSwap missing", func(t *testing.T) {
		_, err := storage.CompareAndSwap(ctx, "missing-"+uuid.NewString(), 0, "x", time.Now())
		require.ErrorIs(t, err, lifecycle.ErrRecordNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		rec := NewRecord(lifecycle.KindInvitation, "invited")
		require.NoError(t, storage.Insert(ctx, rec))

		require.NoError(t, storage.Delete(ctx, rec.ID))

		_, err := storage.Get(ctx, rec.ID)
		require.ErrorIs(t, err, lifecycle.ErrRecordNotFound)

		err = storage.Delete(ctx, rec.ID)
		require.ErrorIs(t, err, lifecycle.ErrRecordNotFound)

		require.NoError(t, storage.Insert(ctx, rec), "id reusable after delete")
	})

	t.Run("Records are independent", func(t *testing.T) {
		a := NewRecord(lifecycle.KindWhiteboardCheckout, "available")
		b := NewRecord(lifecycle.KindWhiteboardCheckout, "available")

		require.NoError(t, storage.Insert(ctx, a))
		require.NoError(t, storage.Insert(ctx, b))

		_, err := storage.CompareAndSwap(ctx, a.ID, 0, "checkedOut", time.Now())
		require.NoError(t, err)

		loaded, err := storage.Get(ctx, b.ID)
		require.NoError(t, err)
		assertRecordEqual(t, b, loaded)
	})

	t.Run("Concurrent CompareAndSwap has one winner", func(t *testing.T) {
		rec := NewRecord(lifecycle.KindWhiteboardCheckout, "available")
		require.NoError(t, storage.Insert(ctx, rec))

		const n = 16

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			wins      int
			conflicts int
		)

		for range n {
			wg.Go(func() {
				_, err := storage.CompareAndSwap(ctx, rec.ID, 0, "checkedOut", time.Now())

				mu.Lock()
				defer mu.Unlock()

				switch {
				case err == nil:
					wins++
				case errors.Is(err, lifecycle.ErrConcurrentModification):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			})
		}

		wg.Wait()

		assert.Equal(t, 1, wins)
		assert.Equal(t, n-1, conflicts)

		loaded, err := storage.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), loaded.Version)
	})
}

func assertRecordEqual(t *testing.T, want, got lifecycle.Record) {
	t.Helper()

	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.TemplateKind, got.TemplateKind)
	assert.Equal(t, want.CurrentState, got.CurrentState)
	assert.Equal(t, want.Version, got.Version)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created at %v, want %v", got.CreatedAt, want.CreatedAt)
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt), "updated at %v, want %v", got.UpdatedAt, want.UpdatedAt)
}
