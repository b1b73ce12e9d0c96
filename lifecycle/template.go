package lifecycle

import "slices"

type transitionKey struct {
	state string
	event string
}

// Template is an immutable machine template: states, events and the transition table for one entity kind.
// A *Template can only be obtained through NewTemplate, Builder.Build or the Load functions,
// so every instance satisfies the template invariants.
type Template struct {
	def      Definition
	states   map[string]struct{}
	next     map[transitionKey]string
	events   map[string][]string
	declared map[string]struct{}
	terminal map[string]struct{}
}

// NewTemplate validates def and builds a template from a private copy of it.
func NewTemplate(def Definition) (*Template, error) {
	err := def.Validate()
	if err != nil {
		return nil, WrapTemplateError(def.Kind, err)
	}

	t := &Template{
		def:      def.clone(),
		states:   make(map[string]struct{}, len(def.States)),
		next:     make(map[transitionKey]string, len(def.Transitions)),
		events:   make(map[string][]string, len(def.States)),
		declared: make(map[string]struct{}),
		terminal: make(map[string]struct{}),
	}

	for _, state := range def.States {
		t.states[state] = struct{}{}
	}

	for _, tr := range def.Transitions {
		t.next[transitionKey{state: tr.From, event: tr.Event}] = tr.To
		t.events[tr.From] = append(t.events[tr.From], tr.Event)
		t.declared[tr.Event] = struct{}{}
	}

	for _, state := range def.DerivedTerminalStates() {
		t.terminal[state] = struct{}{}
	}

	if len(t.def.TerminalStates) == 0 {
		t.def.TerminalStates = def.DerivedTerminalStates()
	}

	return t, nil
}

// MustTemplate is like NewTemplate but panics on an invalid definition.
// Intended for package-level template variables.
func MustTemplate(def Definition) *Template {
	t, err := NewTemplate(def)
	if err != nil {
		panic(err)
	}

	return t
}

// Kind returns the template kind.
func (t *Template) Kind() string { return t.def.Kind }

// InitialState returns the state new records start in.
func (t *Template) InitialState() string { return t.def.InitialState }

// States returns the states in declaration order.
func (t *Template) States() []string { return slices.Clone(t.def.States) }

// TerminalStates returns the states without outgoing transitions, in declaration order.
func (t *Template) TerminalStates() []string { return slices.Clone(t.def.TerminalStates) }

// HasState reports whether state belongs to the template.
func (t *Template) HasState(state string) bool {
	_, ok := t.states[state]

	return ok
}

// IsTerminal reports whether state has no outgoing transitions.
func (t *Template) IsTerminal(state string) bool {
	_, ok := t.terminal[state]

	return ok
}

// Next returns the state reached by firing event from state.
func (t *Template) Next(state, event string) (string, bool) {
	to, ok := t.next[transitionKey{state: state, event: event}]

	return to, ok
}

// Events returns the events accepted from state in declaration order.
// The result is never nil.
func (t *Template) Events(state string) []string {
	events := t.events[state]
	if len(events) == 0 {
		return []string{}
	}

	return slices.Clone(events)
}

// HasEvent reports whether any transition of the template is triggered by event.
func (t *Template) HasEvent(event string) bool {
	_, ok := t.declared[event]

	return ok
}

// Definition returns a copy of the definition the template was built from.
func (t *Template) Definition() Definition {
	return t.def.clone()
}
