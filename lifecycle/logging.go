package lifecycle

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Logger receives engine events. The engine logs nothing unless one is installed with WithLogger.
type Logger interface {
	RecordCreated(ctx context.Context, rec Record)
	Transitioned(ctx context.Context, from, to Record, event string)
	TransitionRejected(ctx context.Context, rec Record, event string, err error)
	Conflict(ctx context.Context, rec Record, event string, attempt uint)
	RecordDeleted(ctx context.Context, id string)
}

// DefaultLogger implements Logger using slog.
type DefaultLogger struct {
	logger *slog.Logger
}

var _ Logger = (*DefaultLogger)(nil)

// NewDefaultLogger creates a Logger writing to l, or to slog.Default() when l is nil.
func NewDefaultLogger(l *slog.Logger) *DefaultLogger {
	if l == nil {
		l = slog.Default()
	}

	return &DefaultLogger{logger: l}
}

func (l *DefaultLogger) RecordCreated(ctx context.Context, rec Record) {
	l.logger.InfoContext(ctx, "Lifecycle created", withTrace(ctx,
		"lifecycle_id", rec.ID,
		"template_kind", rec.TemplateKind,
		"state", rec.CurrentState,
	)...)
}

func (l *DefaultLogger) Transitioned(ctx context.Context, from, to Record, event string) {
	l.logger.InfoContext(ctx, "Lifecycle transitioned", withTrace(ctx,
		"lifecycle_id", to.ID,
		"template_kind", to.TemplateKind,
		"event", event,
		"from_state", from.CurrentState,
		"to_state", to.CurrentState,
		"version", to.Version,
	)...)
}

func (l *DefaultLogger) TransitionRejected(ctx context.Context, rec Record, event string, err error) {
	l.logger.WarnContext(ctx, "Lifecycle event rejected", withTrace(ctx,
		"lifecycle_id", rec.ID,
		"template_kind", rec.TemplateKind,
		"event", event,
		"state", rec.CurrentState,
		"error", err.Error(),
	)...)
}

func (l *DefaultLogger) Conflict(ctx context.Context, rec Record, event string, attempt uint) {
	l.logger.DebugContext(ctx, "Lifecycle update conflicted", withTrace(ctx,
		"lifecycle_id", rec.ID,
		"template_kind", rec.TemplateKind,
		"event", event,
		"expected_version", rec.Version,
		"attempt", attempt,
	)...)
}

func (l *DefaultLogger) RecordDeleted(ctx context.Context, id string) {
	l.logger.InfoContext(ctx, "Lifecycle deleted", withTrace(ctx, "lifecycle_id", id)...)
}

func withTrace(ctx context.Context, fields ...any) []any {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.IsValid() {
		return fields
	}

	return append(fields,
		"trace_id", spanCtx.TraceID().String(),
		"span_id", spanCtx.SpanID().String(),
	)
}
