package lifecycle

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "lifecycle"

// startSpan opens a span on the global tracer, configured by the telemetry package.
// The caller is responsible for calling endSpan.
//
//nolint:spancheck // Span lifecycle managed by caller
func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))

	return ctx, span
}

// endSpan records the result on span and ends it.
// Rejected events are expected traffic and do not mark the span as failed.
func endSpan(span trace.Span, err error) {
	defer span.End()

	span.SetAttributes(attribute.String("lifecycle.outcome", outcomeOf(err)))

	if err == nil {
		span.SetStatus(codes.Ok, "")

		return
	}

	var illegal *IllegalTransitionError
	if errors.As(err, &illegal) {
		span.SetAttributes(
			attribute.String("lifecycle.current_state", illegal.CurrentState),
			attribute.StringSlice("lifecycle.legal_events", illegal.LegalEvents),
		)

		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func recordAttributes(span trace.Span, rec Record) {
	span.SetAttributes(
		attribute.String("lifecycle.template_kind", rec.TemplateKind),
		attribute.String("lifecycle.state", rec.CurrentState),
		attribute.Int64("lifecycle.version", int64(rec.Version)), //nolint:gosec // versions never approach MaxInt64
	)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
