package lifecycle

import "fmt"

// Resolve computes the outcome of firing event from currentState.
//
// On success it returns the next state and the events legal from that next state.
// When the template has no entry for (currentState, event) it returns an
// *IllegalTransitionError listing the events legal from currentState.
// Resolve performs no I/O and never mutates t.
func Resolve(t *Template, currentState, event string) (string, []string, error) {
	if !t.HasState(currentState) {
		return "", nil, WrapTemplateError(t.Kind(), unknownState(currentState))
	}

	next, ok := t.Next(currentState, event)
	if !ok {
		return "", nil, &IllegalTransitionError{
			CurrentState: currentState,
			Event:        event,
			LegalEvents:  t.Events(currentState),
		}
	}

	return next, t.Events(next), nil
}

// LegalEvents enumerates the events accepted from state without attempting a transition.
func LegalEvents(t *Template, state string) ([]string, error) {
	if !t.HasState(state) {
		return nil, WrapTemplateError(t.Kind(), unknownState(state))
	}

	return t.Events(state), nil
}

func unknownState(state string) error {
	return fmt.Errorf("%w: %s", ErrUnknownState, state)
}
