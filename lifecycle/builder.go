package lifecycle

// Builder provides a fluent API for constructing templates in code.
type Builder struct {
	def Definition
}

// NewBuilder creates a template builder for kind.
func NewBuilder(kind string) *Builder {
	return &Builder{
		def: Definition{
			Kind:        kind,
			States:      []string{},
			Transitions: []TransitionDefinition{},
		},
	}
}

// WithInitialState sets the initial state.
func (b *Builder) WithInitialState(state string) *Builder {
	b.def.InitialState = state

	return b
}

// WithTerminalStates declares the terminal states. Optional; they are derived when omitted.
func (b *Builder) WithTerminalStates(states ...string) *Builder {
	b.def.TerminalStates = states

	return b
}

// AddStates appends states in declaration order.
func (b *Builder) AddStates(states ...string) *Builder {
	b.def.States = append(b.def.States, states...)

	return b
}

// AddTransition maps (from, event) to to.
func (b *Builder) AddTransition(from, event, to string) *Builder {
	b.def.Transitions = append(b.def.Transitions, TransitionDefinition{
		From:  from,
		Event: event,
		To:    to,
	})

	return b
}

// Build validates the accumulated definition and returns the template.
func (b *Builder) Build() (*Template, error) {
	return NewTemplate(b.def)
}
