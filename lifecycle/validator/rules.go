package validator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/alkem-io/server-sub004/lifecycle"
)

// Issue codes.
const (
	CodeLoadFailed          = "LOAD_FAILED"
	CodeInvalidTemplate     = "INVALID_TEMPLATE"
	CodeUnreachableState    = "UNREACHABLE_STATE"
	CodeUndeclaredTerminals = "UNDECLARED_TERMINALS"
	CodeNoTerminalPath      = "NO_TERMINAL_PATH"
	CodeStateNaming         = "STATE_NAMING"
	CodeEventNaming         = "EVENT_NAMING"
	CodeKindNaming          = "KIND_NAMING"
)

// RuleResult holds what one rule found.
type RuleResult struct {
	Errors   []Issue
	Warnings []Issue
}

// Rule checks a definition for one kind of problem.
type Rule interface {
	Name() string
	Check(def *lifecycle.Definition) RuleResult
}

// DefaultRules returns the standard rule set.
func DefaultRules() []Rule {
	return []Rule{
		structureRule{},
		unreachableStateRule{},
		undeclaredTerminalsRule{},
		terminalPathRule{},
		namingRule{},
	}
}

// structureRule surfaces the invariants template construction enforces.
type structureRule struct{}

func (structureRule) Name() string { return "Structure" }

func (structureRule) Check(def *lifecycle.Definition) RuleResult {
	if err := def.Validate(); err != nil {
		return RuleResult{Errors: []Issue{{
			Code:    CodeInvalidTemplate,
			Message: err.Error(),
		}}}
	}

	return RuleResult{}
}

type unreachableStateRule struct{}

func (unreachableStateRule) Name() string { return "UnreachableState" }

func (unreachableStateRule) Check(def *lifecycle.Definition) RuleResult {
	var result RuleResult

	if def.InitialState == "" {
		return result
	}

	reachable := def.ReachableStates()

	for _, state := range def.States {
		if !reachable[state] {
			result.Errors = append(result.Errors, Issue{
				Code:     CodeUnreachableState,
				Message:  fmt.Sprintf("state %q cannot be reached from initial state %q", state, def.InitialState),
				Location: Location{State: state},
				Fix:      fmt.Sprintf("add a transition into %q or remove it", state),
			})
		}
	}

	return result
}

// undeclaredTerminalsRule warns when terminalStates is omitted but the graph has some.
type undeclaredTerminalsRule struct{}

func (undeclaredTerminalsRule) Name() string { return "UndeclaredTerminals" }

func (undeclaredTerminalsRule) Check(def *lifecycle.Definition) RuleResult {
	derived := def.DerivedTerminalStates()
	if len(def.TerminalStates) > 0 || len(derived) == 0 {
		return RuleResult{}
	}

	return RuleResult{Warnings: []Issue{{
		Code:    CodeUndeclaredTerminals,
		Message: fmt.Sprintf("terminalStates is not declared; derived terminal states are %v", derived),
		Fix:     "terminalStates: [" + strings.Join(derived, ", ") + "]",
	}}}
}

// terminalPathRule warns about states that can never reach a terminal state
// in templates that have terminal states.
type terminalPathRule struct{}

func (terminalPathRule) Name() string { return "TerminalPath" }

func (terminalPathRule) Check(def *lifecycle.Definition) RuleResult {
	terminals := def.DerivedTerminalStates()
	if len(terminals) == 0 {
		return RuleResult{}
	}

	// Walk edges backwards from every terminal state.
	reverse := make(map[string][]string)
	for _, tr := range def.Transitions {
		reverse[tr.To] = append(reverse[tr.To], tr.From)
	}

	canFinish := make(map[string]bool, len(def.States))
	queue := append([]string(nil), terminals...)

	for _, t := range terminals {
		canFinish[t] = true
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, prev := range reverse[current] {
			if !canFinish[prev] {
				canFinish[prev] = true
				queue = append(queue, prev)
			}
		}
	}

	var result RuleResult

	for _, state := range def.States {
		if !canFinish[state] {
			result.Warnings = append(result.Warnings, Issue{
				Code:     CodeNoTerminalPath,
				Message:  fmt.Sprintf("state %q can never reach a terminal state %v", state, terminals),
				Location: Location{State: state},
			})
		}
	}

	return result
}

var (
	kindPattern  = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)
	eventPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]*(_[A-Z0-9]+)*$`)
)

// namingRule enforces kebab-case kinds, lowerCamelCase states and UPPER_SNAKE_CASE events.
type namingRule struct{}

func (namingRule) Name() string { return "Naming" }

func (namingRule) Check(def *lifecycle.Definition) RuleResult {
	var result RuleResult

	if def.Kind != "" && !kindPattern.MatchString(def.Kind) {
		result.Warnings = append(result.Warnings, Issue{
			Code:    CodeKindNaming,
			Message: fmt.Sprintf("kind %q should be kebab-case", def.Kind),
		})
	}

	for _, state := range def.States {
		if state != "" && !isLowerCamel(state) {
			result.Warnings = append(result.Warnings, Issue{
				Code:     CodeStateNaming,
				Message:  fmt.Sprintf("state %q should be lowerCamelCase (suggested: %q)", state, toLowerCamel(state)),
				Location: Location{State: state},
			})
		}
	}

	seen := make(map[string]bool)

	for i, tr := range def.Transitions {
		if tr.Event == "" || seen[tr.Event] || eventPattern.MatchString(tr.Event) {
			continue
		}

		seen[tr.Event] = true

		result.Warnings = append(result.Warnings, Issue{
			Code:     CodeEventNaming,
			Message:  fmt.Sprintf("event %q should be UPPER_SNAKE_CASE (suggested: %q)", tr.Event, toUpperSnake(tr.Event)),
			Location: Location{State: tr.From, Transition: i + 1},
		})
	}

	return result
}

func isLowerCamel(s string) bool {
	for i, r := range s {
		switch {
		case i == 0 && !unicode.IsLower(r):
			return false
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			return false
		}
	}

	return true
}

func toLowerCamel(s string) string {
	var sb strings.Builder

	upperNext := false

	for _, r := range s {
		switch {
		case r == '_' || r == '-' || r == ' ':
			upperNext = sb.Len() > 0
		case sb.Len() == 0:
			sb.WriteRune(unicode.ToLower(r))
		case upperNext:
			sb.WriteRune(unicode.ToUpper(r))

			upperNext = false
		default:
			sb.WriteRune(r)
		}
	}

	return sb.String()
}

func toUpperSnake(s string) string {
	var sb strings.Builder

	prevLower := false

	for _, r := range s {
		switch {
		case r == '-' || r == ' ' || r == '_':
			sb.WriteRune('_')

			prevLower = false
		case unicode.IsUpper(r) && prevLower:
			sb.WriteRune('_')
			sb.WriteRune(r)

			prevLower = false
		default:
			sb.WriteRune(unicode.ToUpper(r))

			prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
		}
	}

	return sb.String()
}
