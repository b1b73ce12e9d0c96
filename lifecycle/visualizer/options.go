package visualizer

// Options configures the diagram.
type Options struct {
	// Direction is "TB" (top to bottom) or "LR" (left to right).
	Direction string

	// Highlight marks states, typically a record's current state.
	Highlight []string

	// Fenced wraps the diagram in a ```mermaid code block.
	Fenced bool
}

// DefaultOptions returns top-to-bottom, unfenced output.
func DefaultOptions() Options {
	return Options{Direction: "TB"}
}

// WithDirection sets the diagram direction.
func (o Options) WithDirection(direction string) Options {
	o.Direction = direction

	return o
}

// WithHighlight sets the states to highlight.
func (o Options) WithHighlight(states ...string) Options {
	o.Highlight = states

	return o
}

// WithFenced enables or disables the markdown fence.
func (o Options) WithFenced(fenced bool) Options {
	o.Fenced = fenced

	return o
}
