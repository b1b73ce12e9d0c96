package lifecycle

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Definition is the serializable form of a machine template.
type Definition struct {
	Kind           string                 `json:"kind"                     yaml:"kind"`
	InitialState   string                 `json:"initialState"             yaml:"initialState"`
	TerminalStates []string               `json:"terminalStates,omitempty" yaml:"terminalStates,omitempty"`
	States         []string               `json:"states"                   yaml:"states"`
	Transitions    []TransitionDefinition `json:"transitions"              yaml:"transitions"`
}

// TransitionDefinition maps (From, Event) to To.
type TransitionDefinition struct {
	From  string `json:"from"  yaml:"from"`
	Event string `json:"event" yaml:"event"`
	To    string `json:"to"    yaml:"to"`
}

// LoadDefinition reads a template definition from a YAML file.
func LoadDefinition(filePath string) (*Definition, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec // caller-provided template path
	if err != nil {
		return nil, fmt.Errorf("failed to read template file: %w", err)
	}

	return ParseDefinition(data)
}

// ParseDefinition decodes YAML bytes without validating the result.
// Linting tools want to inspect broken definitions, so validation is left to Validate.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition

	err := yaml.Unmarshal(data, &def)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &def, nil
}

// LoadTemplate reads, validates and builds a template from a YAML file.
func LoadTemplate(filePath string) (*Template, error) {
	def, err := LoadDefinition(filePath)
	if err != nil {
		return nil, err
	}

	return NewTemplate(*def)
}

// LoadTemplateFromBytes validates and builds a template from YAML bytes.
func LoadTemplateFromBytes(data []byte) (*Template, error) {
	def, err := ParseDefinition(data)
	if err != nil {
		return nil, err
	}

	return NewTemplate(*def)
}

// LoadTemplateFromFS loads a template from a filesystem such as embed.FS.
func LoadTemplateFromFS(fsys fs.FS, filePath string) (*Template, error) {
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read template from FS: %w", err)
	}

	return LoadTemplateFromBytes(data)
}

// LoadTemplatesFromFS loads every *.yaml file directly under dir, in lexical file order.
func LoadTemplatesFromFS(fsys fs.FS, dir string) ([]*Template, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	templates := make([]*Template, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		tmpl, err := LoadTemplateFromFS(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}

		templates = append(templates, tmpl)
	}

	return templates, nil
}

// Validate checks the structural invariants every template must satisfy.
// Errors match ErrInvalidTemplate and the specific cause.
func (d *Definition) Validate() error {
	if d.Kind == "" {
		return invalid(ErrKindRequired, "kind")
	}

	if d.InitialState == "" {
		return invalid(ErrInitialStateRequired, d.Kind)
	}

	if len(d.States) == 0 {
		return invalid(ErrStateRequired, d.Kind)
	}

	known := make(map[string]bool, len(d.States))

	for _, state := range d.States {
		if state == "" {
			return invalid(ErrStateNameRequired, d.Kind)
		}

		if known[state] {
			return invalid(ErrDuplicateStateName, state)
		}

		known[state] = true
	}

	if !known[d.InitialState] {
		return invalid(ErrInitialStateNotFound, d.InitialState)
	}

	seen := make(map[transitionKey]bool, len(d.Transitions))

	for i, tr := range d.Transitions {
		if !known[tr.From] {
			return invalid(ErrTransitionFromNotFound, fmt.Sprintf("transition %d: %q", i, tr.From))
		}

		if !known[tr.To] {
			return invalid(ErrTransitionToNotFound, fmt.Sprintf("transition %d: %q", i, tr.To))
		}

		if tr.Event == "" {
			return invalid(ErrEventNameRequired, fmt.Sprintf("transition %d", i))
		}

		key := transitionKey{state: tr.From, event: tr.Event}
		if seen[key] {
			return invalid(ErrAmbiguousTransition, fmt.Sprintf("(%s, %s)", tr.From, tr.Event))
		}

		seen[key] = true
	}

	if len(d.TerminalStates) > 0 {
		derived := d.DerivedTerminalStates()
		declared := slices.Clone(d.TerminalStates)

		slices.Sort(derived)
		slices.Sort(declared)

		if !slices.Equal(derived, declared) {
			return invalid(ErrTerminalStateMismatch,
				fmt.Sprintf("declared %v, derived %v", d.TerminalStates, d.DerivedTerminalStates()))
		}
	}

	return nil
}

// DerivedTerminalStates returns the states without outgoing transitions, in declaration order.
func (d *Definition) DerivedTerminalStates() []string {
	hasOutgoing := make(map[string]bool, len(d.States))
	for _, tr := range d.Transitions {
		hasOutgoing[tr.From] = true
	}

	terminal := make([]string, 0)

	for _, state := range d.States {
		if !hasOutgoing[state] {
			terminal = append(terminal, state)
		}
	}

	return terminal
}

// ReachableStates returns the set of states reachable from the initial state.
func (d *Definition) ReachableStates() map[string]bool {
	reachable := map[string]bool{d.InitialState: true}

	queue := []string{d.InitialState}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, tr := range d.Transitions {
			if tr.From == current && !reachable[tr.To] {
				reachable[tr.To] = true
				queue = append(queue, tr.To)
			}
		}
	}

	return reachable
}

func (d *Definition) clone() Definition {
	return Definition{
		Kind:           d.Kind,
		InitialState:   d.InitialState,
		TerminalStates: slices.Clone(d.TerminalStates),
		States:         slices.Clone(d.States),
		Transitions:    slices.Clone(d.Transitions),
	}
}
