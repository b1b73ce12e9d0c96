package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/alkem-io/server-sub004/retry"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// DefaultMaxAttempts bounds how often Dispatch re-reads a record after losing a compare-and-swap.
	DefaultMaxAttempts = 3
	// DefaultRetryBaseDelay is the first pause between conflicting attempts.
	DefaultRetryBaseDelay = 5 * time.Millisecond
	// DefaultBatchWorkers is the worker count DispatchBatch uses when none is configured.
	DefaultBatchWorkers = 8

	maxRetryDelay = 100 * time.Millisecond
)

// Engine is the lifecycle façade: it creates records, dispatches events against them
// and answers what can happen next. It holds no mutable state of its own and is safe
// for concurrent use.
type Engine struct {
	registry     *Registry
	records      *RecordStore
	retrier      *retry.Runner
	logger       Logger
	batchWorkers int
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	maxAttempts  int
	baseDelay    time.Duration
	batchWorkers int
	logger       Logger
	storeOpts    []RecordStoreOption
}

// WithMaxAttempts sets how many times Dispatch tries before surfacing ErrConcurrentModification.
func WithMaxAttempts(n int) Option {
	return func(o *engineOptions) {
		o.maxAttempts = n
	}
}

// WithRetryBaseDelay sets the initial backoff between conflicting attempts.
func WithRetryBaseDelay(d time.Duration) Option {
	return func(o *engineOptions) {
		o.baseDelay = d
	}
}

// WithBatchWorkers sets the DispatchBatch concurrency.
func WithBatchWorkers(n int) Option {
	return func(o *engineOptions) {
		o.batchWorkers = n
	}
}

// WithLogger installs a logging hook. Without one the engine is silent.
func WithLogger(l Logger) Option {
	return func(o *engineOptions) {
		o.logger = l
	}
}

// WithRecordStoreOptions forwards options to the underlying RecordStore.
func WithRecordStoreOptions(opts ...RecordStoreOption) Option {
	return func(o *engineOptions) {
		o.storeOpts = append(o.storeOpts, opts...)
	}
}

// NewEngine creates an engine over registry and storage. The registry is frozen.
func NewEngine(registry *Registry, storage Storage, opts ...Option) *Engine {
	o := engineOptions{
		maxAttempts:  DefaultMaxAttempts,
		baseDelay:    DefaultRetryBaseDelay,
		batchWorkers: DefaultBatchWorkers,
	}

	for _, opt := range opts {
		opt(&o)
	}

	if o.maxAttempts < 1 {
		o.maxAttempts = 1
	}

	if o.batchWorkers < 1 {
		o.batchWorkers = 1
	}

	registry.Freeze()

	e := &Engine{
		registry:     registry,
		records:      NewRecordStore(registry, storage, o.storeOpts...),
		logger:       o.logger,
		batchWorkers: o.batchWorkers,
	}

	e.retrier = retry.NewRunner(
		retry.WithAttempts(retry.Attempts(o.maxAttempts)), //nolint:gosec // checked positive above
		retry.WithBackoff(retry.ExpBackoff{Base: o.baseDelay, Max: maxRetryDelay, Factor: 2}),
		retry.WithJitter(retry.EqualJitter),
		retry.WithRetryIf(func(err error) bool {
			return errors.Is(err, ErrConcurrentModification)
		}),
	)

	return e
}

// Create starts a new lifecycle of kind at the template's initial state.
func (e *Engine) Create(ctx context.Context, kind string) (snap Snapshot, err error) {
	ctx, span := startSpan(ctx, "lifecycle.create", attribute.String("lifecycle.template_kind", kind))
	defer func() { endSpan(span, err) }()

	rec, err := e.records.Create(ctx, kind)
	if err != nil {
		return Snapshot{}, err
	}

	tmpl, err := e.records.Template(rec)
	if err != nil {
		return Snapshot{}, err
	}

	recordAttributes(span, rec)
	createdTotal.WithLabelValues(rec.TemplateKind).Inc()

	if e.logger != nil {
		e.logger.RecordCreated(ctx, rec)
	}

	return Snapshot{Record: rec, NextEvents: tmpl.Events(rec.CurrentState)}, nil
}

// Dispatch fires event against the lifecycle id.
//
// Illegal events come back as *IllegalTransitionError without touching storage.
// Lost compare-and-swap races are retried from a fresh read up to the configured
// bound, after which ErrConcurrentModification is returned. Cancellation returns
// ctx.Err(); every storage write is all-or-nothing, so no partial update remains.
func (e *Engine) Dispatch(ctx context.Context, id, event string) (snap Snapshot, err error) {
	start := time.Now()
	kind := ""

	var tmpl *Template

	ctx, span := startSpan(ctx, "lifecycle.dispatch",
		attribute.String("lifecycle.id", id),
		attribute.String("lifecycle.event", event),
	)

	defer func() {
		outcome := outcomeOf(err)
		dispatchTotal.WithLabelValues(sanitizeKind(kind), eventLabel(tmpl, event), outcome).Inc()
		dispatchDuration.WithLabelValues(sanitizeKind(kind), outcome).Observe(time.Since(start).Seconds())
		endSpan(span, err)
	}()

	snap, err = retry.Value(ctx, e.retrier, func(ctx context.Context) (Snapshot, error) {
		rec, err := e.records.Load(ctx, id)
		if err != nil {
			return Snapshot{}, retry.Abort(err)
		}

		kind = rec.TemplateKind

		tmpl, err = e.records.Template(rec)
		if err != nil {
			return Snapshot{}, retry.Abort(err)
		}

		next, legal, err := Resolve(tmpl, rec.CurrentState, event)
		if err != nil {
			if !errors.Is(err, ErrIllegalTransition) {
				err = WrapRecordError(id, err)
			}

			if e.logger != nil {
				e.logger.TransitionRejected(ctx, rec, event, err)
			}

			return Snapshot{}, retry.Abort(err)
		}

		updated, err := e.records.swap(ctx, id, rec.Version, next)
		if errors.Is(err, ErrConcurrentModification) {
			conflictTotal.WithLabelValues(rec.TemplateKind).Inc()

			if e.logger != nil {
				e.logger.Conflict(ctx, rec, event, retry.Attempt(ctx))
			}

			return Snapshot{}, err
		}

		if err != nil {
			return Snapshot{}, err
		}

		transitionTotal.WithLabelValues(rec.TemplateKind, rec.CurrentState, updated.CurrentState).Inc()

		if e.logger != nil {
			e.logger.Transitioned(ctx, rec, updated, event)
		}

		return Snapshot{Record: updated, NextEvents: legal}, nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	recordAttributes(span, snap.Record)

	return snap, nil
}

// Describe returns the current record and the events legal from its state. It never writes.
func (e *Engine) Describe(ctx context.Context, id string) (snap Snapshot, err error) {
	ctx, span := startSpan(ctx, "lifecycle.describe", attribute.String("lifecycle.id", id))
	defer func() { endSpan(span, err) }()

	rec, err := e.records.Load(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}

	tmpl, err := e.records.Template(rec)
	if err != nil {
		return Snapshot{}, err
	}

	events, err := LegalEvents(tmpl, rec.CurrentState)
	if err != nil {
		return Snapshot{}, WrapRecordError(id, err)
	}

	recordAttributes(span, rec)

	return Snapshot{Record: rec, NextEvents: events}, nil
}

// Delete removes the lifecycle. The owning entity calls it when it is destroyed.
func (e *Engine) Delete(ctx context.Context, id string) (err error) {
	ctx, span := startSpan(ctx, "lifecycle.delete", attribute.String("lifecycle.id", id))
	defer func() { endSpan(span, err) }()

	err = e.records.Delete(ctx, id)
	if err != nil {
		return err
	}

	if e.logger != nil {
		e.logger.RecordDeleted(ctx, id)
	}

	return nil
}

// Template returns the template registered under kind.
func (e *Engine) Template(kind string) (*Template, error) {
	return e.registry.Lookup(kind)
}

// Kinds returns the registered template kinds in natural order.
func (e *Engine) Kinds() []string {
	return e.registry.Kinds()
}
