package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

// Registry errors.
var (
	// ErrDuplicateTemplateKind indicates that a template with the same kind is already registered.
	ErrDuplicateTemplateKind = errors.New("duplicate template kind")
	// ErrInvalidTemplate indicates that a template definition is structurally invalid.
	ErrInvalidTemplate = errors.New("invalid template")
	// ErrUnknownTemplateKind indicates that no template is registered under the requested kind.
	ErrUnknownTemplateKind = errors.New("unknown template kind")
	// ErrRegistryFrozen indicates that the registry no longer accepts registrations.
	ErrRegistryFrozen = errors.New("registry is frozen")
)

// Record errors.
var (
	// ErrRecordNotFound indicates that no lifecycle record exists for the given id.
	ErrRecordNotFound = errors.New("lifecycle record not found")
	// ErrRecordExists indicates that a lifecycle record with the same id already exists.
	ErrRecordExists = errors.New("lifecycle record already exists")
	// ErrConcurrentModification indicates that the stored version no longer matches the expected one.
	ErrConcurrentModification = errors.New("concurrent modification")
	// ErrUnknownState indicates that a state is not part of the governing template.
	ErrUnknownState = errors.New("unknown state")
)

// ErrIllegalTransition is matched by every *IllegalTransitionError.
var ErrIllegalTransition = errors.New("illegal transition")

// Template definition errors, all wrapped together with ErrInvalidTemplate.
var (
	ErrKindRequired           = errors.New("template kind is required")
	ErrInitialStateRequired   = errors.New("initial state is required")
	ErrStateRequired          = errors.New("at least one state is required")
	ErrStateNameRequired      = errors.New("state name is required")
	ErrEventNameRequired      = errors.New("event name is required")
	ErrDuplicateStateName     = errors.New("duplicate state name")
	ErrInitialStateNotFound   = errors.New("initial state does not exist")
	ErrTransitionFromNotFound = errors.New("transition from state does not exist")
	ErrTransitionToNotFound   = errors.New("transition to state does not exist")
	// ErrAmbiguousTransition indicates that a (state, event) pair maps to more than one next state.
	ErrAmbiguousTransition = errors.New("ambiguous transition")
	// ErrTerminalStateMismatch indicates that declared terminal states differ from the derived ones.
	ErrTerminalStateMismatch = errors.New("declared terminal states do not match transitions")
)

// IllegalTransitionError is returned when an event is not accepted from the current state.
// LegalEvents lists what the state does accept, in template-declaration order.
type IllegalTransitionError struct {
	CurrentState string
	Event        string
	LegalEvents  []string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf(
		"Unable to update state: provided event (%s) not in valid set of next events: [%s]",
		e.Event, strings.Join(e.LegalEvents, ", "),
	)
}

// Is reports whether target is ErrIllegalTransition.
func (e *IllegalTransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}

// TemplateError wraps an error with template context.
type TemplateError struct {
	Kind string
	Err  error
}

func (e *TemplateError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("template: %v", e.Err)
	}

	return fmt.Sprintf("template %s: %v", e.Kind, e.Err)
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

// RecordError wraps an error with the id of the lifecycle record involved.
type RecordError struct {
	ID  string
	Err error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("lifecycle %s: %v", e.ID, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// WrapTemplateError wraps an error with template context.
func WrapTemplateError(kind string, err error) error {
	if err == nil {
		return nil
	}

	return &TemplateError{
		Kind: kind,
		Err:  err,
	}
}

// WrapRecordError wraps an error with record context.
func WrapRecordError(id string, err error) error {
	if err == nil {
		return nil
	}

	return &RecordError{
		ID:  id,
		Err: err,
	}
}

// invalid marks err as a template definition failure.
func invalid(err error, detail string) error {
	return fmt.Errorf("%w: %w: %s", ErrInvalidTemplate, err, detail)
}
