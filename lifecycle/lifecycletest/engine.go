package lifecycletest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alkem-io/server-sub004/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewEngine returns an engine over the built-in templates and storage, with a short retry delay.
func NewEngine(t *testing.T, storage lifecycle.Storage, opts ...lifecycle.Option) *lifecycle.Engine {
	t.Helper()

	reg, err := lifecycle.NewBuiltinRegistry()
	require.NoError(t, err)

	opts = append([]lifecycle.Option{lifecycle.WithRetryBaseDelay(time.Millisecond)}, opts...)

	return lifecycle.NewEngine(reg, storage, opts...)
}

// Step is one dispatch in a scenario together with its expected outcome.
// WantLegal holds the next events on success, or the legal events of the rejected state.
type Step struct {
	Event     string
	WantState string
	WantLegal []string
	Illegal   bool
}

// RunScenario creates a record of kind and applies steps in order.
func RunScenario(t *testing.T, engine *lifecycle.Engine, kind string, steps ...Step) lifecycle.Snapshot {
	t.Helper()

	ctx := context.Background()

	snap, err := engine.Create(ctx, kind)
	require.NoError(t, err)

	for i, step := range steps {
		next, err := engine.Dispatch(ctx, snap.Record.ID, step.Event)

		if step.Illegal {
			var illegal *lifecycle.IllegalTransitionError
			require.ErrorAs(t, err, &illegal, "step %d (%s)", i, step.Event)
			assert.Equal(t, step.WantLegal, illegal.LegalEvents, "step %d (%s)", i, step.Event)

			continue
		}

		require.NoError(t, err, "step %d (%s)", i, step.Event)
		assert.Equal(t, step.WantState, next.Record.CurrentState, "step %d (%s)", i, step.Event)
		assert.Equal(t, step.WantLegal, next.NextEvents, "step %d (%s)", i, step.Event)
		assert.Equal(t, snap.Record.Version+1, next.Record.Version, "step %d (%s)", i, step.Event)

		snap = next
	}

	described, err := engine.Describe(ctx, snap.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.Record.CurrentState, described.Record.CurrentState)
	assert.Equal(t, snap.Record.Version, described.Record.Version)
	assert.Equal(t, snap.NextEvents, described.NextEvents)

	return snap
}

// RunEngineContract drives the engine end to end over storage with the reference scenarios.
func RunEngineContract(t *testing.T, storage lifecycle.Storage) {
	t.Helper()

	engine := NewEngine(t, storage)

	t.Run("Entity happy path", func(t *testing.T) {
		RunScenario(t, engine, lifecycle.KindEntity,
			Step{Event: "ARCHIVE", Illegal: true, WantLegal: []string{"REFINE", "ABANDONED"}},
			Step{Event: "REFINE", WantState: "beingRefined", WantLegal: []string{"ACTIVE", "ABANDONED"}},
			Step{Event: "ACTIVE", WantState: "inProgress", WantLegal: []string{"COMPLETED", "ABANDONED"}},
			Step{Event: "COMPLETED", WantState: "complete", WantLegal: []string{"ARCHIVE", "ABANDONED"}},
			Step{Event: "ARCHIVE", WantState: "archived", WantLegal: []string{}},
			Step{Event: "REOPEN", Illegal: true, WantLegal: []string{}},
		)
	})

	t.Run("Entity abandon and reopen", func(t *testing.T) {
		RunScenario(t, engine, lifecycle.KindEntity,
			Step{Event: "ABANDONED", WantState: "abandoned", WantLegal: []string{"REOPEN", "ARCHIVE"}},
			Step{Event: "REOPEN", WantState: "inProgress", WantLegal: []string{"COMPLETED", "ABANDONED"}},
			Step{Event: "COMPLETED", WantState: "complete", WantLegal: []string{"ARCHIVE", "ABANDONED"}},
			Step{Event: "ARCHIVE", WantState: "archived", WantLegal: []string{}},
		)
	})

	t.Run("Application reopen", func(t *testing.T) {
		RunScenario(t, engine, lifecycle.KindApplication,
			Step{Event: "REJECT", WantState: "rejected", WantLegal: []string{"REOPEN", "ARCHIVE"}},
			Step{Event: "REOPEN", WantState: "new", WantLegal: []string{"APPROVE", "REJECT"}},
			Step{Event: "APPROVE", WantState: "approved", WantLegal: []string{}},
		)
	})

	t.Run("Concurrent dispatch has one winner", func(t *testing.T) {
		ctx := context.Background()

		created, err := engine.Create(ctx, lifecycle.KindEntity)
		require.NoError(t, err)

		const n = 8

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			success int
		)

		for range n {
			wg.Go(func() {
				_, err := engine.Dispatch(ctx, created.Record.ID, "ABANDONED")
				if err != nil && !errors.Is(err, lifecycle.ErrIllegalTransition) {
					t.Errorf("unexpected error: %v", err)

					return
				}

				if err == nil {
					mu.Lock()
					success++
					mu.Unlock()
				}
			})
		}

		wg.Wait()

		assert.Equal(t, 1, success)

		snap, err := engine.Describe(ctx, created.Record.ID)
		require.NoError(t, err)
		assert.Equal(t, "abandoned", snap.Record.CurrentState)
		assert.Equal(t, uint64(1), snap.Record.Version)
	})
}
