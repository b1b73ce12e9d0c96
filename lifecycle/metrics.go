package lifecycle

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	outcomeSuccess  = "success"
	outcomeIllegal  = "illegal"
	outcomeConflict = "conflict"
	outcomeNotFound = "not_found"
	outcomeCanceled = "canceled"
	outcomeError    = "error"
)

var (
	// dispatchTotal counts Dispatch calls by template kind, event and outcome.
	dispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycle_dispatch_total",
		Help: "Total number of lifecycle event dispatches by template kind, event and outcome",
	}, []string{"template_kind", "event", "outcome"})

	// transitionTotal counts applied transitions.
	transitionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycle_transitions_total",
		Help: "Total number of applied lifecycle transitions by template kind, from_state and to_state",
	}, []string{"template_kind", "from_state", "to_state"})

	// conflictTotal counts lost compare-and-swap races, including the final one when attempts run out.
	conflictTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycle_conflicts_total",
		Help: "Total number of lifecycle compare-and-swap conflicts by template kind",
	}, []string{"template_kind"})

	// createdTotal counts created records.
	createdTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycle_records_created_total",
		Help: "Total number of lifecycle records created by template kind",
	}, []string{"template_kind"})

	// dispatchDuration tracks end-to-end Dispatch latency, retries included.
	dispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lifecycle_dispatch_duration_seconds",
		Help:    "Duration of lifecycle event dispatch by template kind and outcome",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"template_kind", "outcome"})
)

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, ErrIllegalTransition):
		return outcomeIllegal
	case errors.Is(err, ErrConcurrentModification):
		return outcomeConflict
	case errors.Is(err, ErrRecordNotFound):
		return outcomeNotFound
	case isContextErr(err):
		return outcomeCanceled
	default:
		return outcomeError
	}
}

const unknownLabel = "unknown"

func sanitizeKind(kind string) string {
	if kind == "" {
		return unknownLabel
	}

	return kind
}

// eventLabel keeps dispatch series bounded: only events declared by tmpl are used as label values.
func eventLabel(tmpl *Template, event string) string {
	if tmpl == nil || !tmpl.HasEvent(event) {
		return unknownLabel
	}

	return event
}
