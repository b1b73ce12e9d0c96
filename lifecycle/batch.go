package lifecycle

import (
	"context"

	"github.com/alitto/pond/v2"
)

// Command is one event to dispatch against one lifecycle.
type Command struct {
	ID    string `json:"id"`
	Event string `json:"event"`
}

// BatchResult is the outcome of one Command.
type BatchResult struct {
	Command  Command
	Snapshot Snapshot
	Err      error
}

// DispatchBatch dispatches commands concurrently on a bounded worker pool.
// Results are index-aligned with cmds. Commands for the same id still serialize
// through compare-and-swap, so their relative order is not guaranteed.
func (e *Engine) DispatchBatch(ctx context.Context, cmds []Command) []BatchResult {
	results := make([]BatchResult, len(cmds))
	if len(cmds) == 0 {
		return results
	}

	pool := pond.NewPool(min(e.batchWorkers, len(cmds)))
	defer pool.StopAndWait()

	group := pool.NewGroup()

	for i, cmd := range cmds {
		group.Submit(func() {
			snap, err := e.Dispatch(ctx, cmd.ID, cmd.Event)
			results[i] = BatchResult{Command: cmd, Snapshot: snap, Err: err}
		})
	}

	_ = group.Wait() // tasks report through results

	return results
}
