package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchBatch(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(t, WithBatchWorkers(4))
	ctx := t.Context()

	var cmds []Command

	for range 6 {
		created, err := engine.Create(ctx, KindInvitation)
		require.NoError(t, err)

		cmds = append(cmds, Command{ID: created.Record.ID, Event: "ACCEPT"})
	}

	cmds = append(cmds,
		Command{ID: cmds[0].ID, Event: "REJECT"},
		Command{ID: "missing", Event: "ACCEPT"},
	)

	results := engine.DispatchBatch(ctx, cmds)
	require.Len(t, results, len(cmds))

	for i, res := range results {
		assert.Equal(t, cmds[i], res.Command)
	}

	// The first record receives ACCEPT and REJECT concurrently: exactly one of them wins.
	firstWins := 0

	for _, i := range []int{0, 6} {
		if results[i].Err == nil {
			firstWins++
		} else {
			require.ErrorIs(t, results[i].Err, ErrIllegalTransition)
		}
	}

	assert.Equal(t, 1, firstWins)

	for i := 1; i < 6; i++ {
		require.NoError(t, results[i].Err)
		assert.Equal(t, "accepted", results[i].Snapshot.Record.CurrentState)
		assert.Empty(t, results[i].Snapshot.NextEvents)
	}

	require.ErrorIs(t, results[7].Err, ErrRecordNotFound)
}

func TestDispatchBatch_Empty(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(t)

	assert.Empty(t, engine.DispatchBatch(t.Context(), nil))
}

func TestDispatchBatch_Canceled(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(t)

	created, err := engine.Create(t.Context(), KindEntity)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	results := engine.DispatchBatch(ctx, []Command{
		{ID: created.Record.ID, Event: "REFINE"},
		{ID: created.Record.ID, Event: "ABANDONED"},
	})

	for _, res := range results {
		require.ErrorIs(t, res.Err, context.Canceled)
	}

	snap, err := engine.Describe(t.Context(), created.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Record, snap.Record)
}
