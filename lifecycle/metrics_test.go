package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDispatchMetrics uses a dedicated template kind so counts are unaffected by other tests.
//
//nolint:paralleltest // Test reads global Prometheus metric state
func TestDispatchMetrics(t *testing.T) {
	const kind = "metrics-probe"

	reg := NewRegistry()
	reg.MustRegister(MustTemplate(Definition{
		Kind:         kind,
		InitialState: "draft",
		States:       []string{"draft", "published"},
		Transitions:  []TransitionDefinition{{From: "draft", Event: "PUBLISH", To: "published"}},
	}))

	engine := NewEngine(reg, NewMemoryStorage())
	ctx := context.Background()

	created, err := engine.Create(ctx, kind)
	require.NoError(t, err)

	_, err = engine.Dispatch(ctx, created.Record.ID, "PUBLISH")
	require.NoError(t, err)

	_, err = engine.Dispatch(ctx, created.Record.ID, "PUBLISH")
	require.ErrorIs(t, err, ErrIllegalTransition)

	assert.InDelta(t, 1, testutil.ToFloat64(createdTotal.WithLabelValues(kind)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(dispatchTotal.WithLabelValues(kind, "PUBLISH", outcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(dispatchTotal.WithLabelValues(kind, "PUBLISH", outcomeIllegal)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(transitionTotal.WithLabelValues(kind, "draft", "published")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(conflictTotal.WithLabelValues(kind)), 0)
	assert.Positive(t, testutil.CollectAndCount(dispatchDuration))
}

func TestOutcomeOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, outcomeSuccess},
		{&IllegalTransitionError{Event: "X"}, outcomeIllegal},
		{WrapRecordError("id", ErrConcurrentModification), outcomeConflict},
		{WrapRecordError("id", ErrRecordNotFound), outcomeNotFound},
		{context.Canceled, outcomeCanceled},
		{context.DeadlineExceeded, outcomeCanceled},
		{errors.New("boom"), outcomeError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, outcomeOf(tt.err), "%v", tt.err)
	}
}

func TestSanitization(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "unknown", sanitizeKind(""))
	assert.Equal(t, KindEntity, sanitizeKind(KindEntity))

	entity, err := NewBuiltinRegistry()
	require.NoError(t, err)

	tmpl, err := entity.Lookup(KindEntity)
	require.NoError(t, err)

	assert.Equal(t, "REFINE", eventLabel(tmpl, "REFINE"))
	assert.Equal(t, "unknown", eventLabel(tmpl, "APPROVE"))
	assert.Equal(t, "unknown", eventLabel(tmpl, ""))
	assert.Equal(t, "unknown", eventLabel(nil, "REFINE"))
}

// Caller-chosen event names must not mint new dispatch series.
//
//nolint:paralleltest // Test reads global Prometheus metric state
func TestDispatchMetrics_UndeclaredEventsShareOneSeries(t *testing.T) {
	const kind = "metrics-cardinality"

	reg := NewRegistry()
	reg.MustRegister(MustTemplate(Definition{
		Kind:         kind,
		InitialState: "draft",
		States:       []string{"draft", "published"},
		Transitions:  []TransitionDefinition{{From: "draft", Event: "PUBLISH", To: "published"}},
	}))

	engine := NewEngine(reg, NewMemoryStorage())
	ctx := t.Context()

	created, err := engine.Create(ctx, kind)
	require.NoError(t, err)

	before := testutil.CollectAndCount(dispatchTotal)

	for i := range 50 {
		_, err := engine.Dispatch(ctx, created.Record.ID, fmt.Sprintf("junk-%d", i))
		require.ErrorIs(t, err, ErrIllegalTransition)
	}

	assert.Equal(t, before+1, testutil.CollectAndCount(dispatchTotal))
	assert.InDelta(t, 50, testutil.ToFloat64(dispatchTotal.WithLabelValues(kind, "unknown", outcomeIllegal)), 0)

	before = testutil.CollectAndCount(dispatchTotal)

	for i := range 50 {
		_, err := engine.Dispatch(ctx, fmt.Sprintf("missing-%d", i), fmt.Sprintf("junk-%d", i))
		require.ErrorIs(t, err, ErrRecordNotFound)
	}

	assert.LessOrEqual(t, testutil.CollectAndCount(dispatchTotal), before+1)
}
