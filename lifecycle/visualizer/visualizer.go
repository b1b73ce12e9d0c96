// Package visualizer renders lifecycle templates as Mermaid state diagrams.
package visualizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alkem-io/server-sub004/lifecycle"
)

var (
	ErrTemplateNil      = errors.New("template cannot be nil")
	ErrUnknownHighlight = errors.New("highlighted state is not in the template")
	ErrInvalidDirection = errors.New("direction must be TB or LR")
)

// Mermaid renders t as a stateDiagram-v2. Transitions are labelled with their
// event and appear in declaration order.
func Mermaid(t *lifecycle.Template, opts Options) (string, error) {
	if t == nil {
		return "", ErrTemplateNil
	}

	direction := opts.Direction
	if direction == "" {
		direction = "TB"
	}

	if direction != "TB" && direction != "LR" {
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, direction)
	}

	for _, state := range opts.Highlight {
		if !t.HasState(state) {
			return "", fmt.Errorf("%w: %q", ErrUnknownHighlight, state)
		}
	}

	def := t.Definition()

	var sb strings.Builder

	if opts.Fenced {
		sb.WriteString("```mermaid\n")
	}

	sb.WriteString("stateDiagram-v2\n")
	fmt.Fprintf(&sb, "    direction %s\n", direction)
	fmt.Fprintf(&sb, "    %%%% %s\n", def.Kind)
	fmt.Fprintf(&sb, "    [*] --> %s\n", def.InitialState)

	for _, tr := range def.Transitions {
		fmt.Fprintf(&sb, "    %s --> %s: %s\n", tr.From, tr.To, tr.Event)
	}

	for _, state := range def.TerminalStates {
		fmt.Fprintf(&sb, "    %s --> [*]\n", state)
	}

	highlighted := make(map[string]bool, len(opts.Highlight))
	for _, state := range opts.Highlight {
		highlighted[state] = true
	}

	sb.WriteString("\n")
	sb.WriteString("    classDef terminal fill:#c8e6c9,stroke:#2e7d32,stroke-width:2px\n")
	sb.WriteString("    classDef current fill:#fff9c4,stroke:#f57f17,stroke-width:3px\n")

	for _, state := range def.States {
		switch {
		case highlighted[state]:
			fmt.Fprintf(&sb, "    class %s current\n", state)
		case t.IsTerminal(state):
			fmt.Fprintf(&sb, "    class %s terminal\n", state)
		}
	}

	if opts.Fenced {
		sb.WriteString("```\n")
	}

	return sb.String(), nil
}

// MermaidFromFile loads a template file and renders it.
func MermaidFromFile(path string, opts Options) (string, error) {
	t, err := lifecycle.LoadTemplate(path)
	if err != nil {
		return "", fmt.Errorf("failed to load template: %w", err)
	}

	return Mermaid(t, opts)
}
