// Package validator lints lifecycle template definitions beyond the
// structural checks that template construction enforces.
package validator

import (
	"fmt"
	"strings"

	"github.com/alkem-io/server-sub004/lifecycle"
)

// Result contains the findings for one template definition.
type Result struct {
	Valid       bool
	Errors      []Issue
	Warnings    []Issue
	Suggestions []Suggestion
}

// Issue is a single finding. Fix is empty when there is no obvious remedy.
type Issue struct {
	Code     string
	Message  string
	Location Location
	Fix      string
}

// Suggestion is an optional improvement.
type Suggestion struct {
	Message string
	Example string
}

// Location identifies where an issue occurred.
type Location struct {
	File       string
	State      string
	Transition int // 1-based index into transitions, 0 when not applicable
}

// Validate runs the default rules over def.
func Validate(def *lifecycle.Definition) Result {
	return ValidateWithRules(def, DefaultRules())
}

// ValidateStrict runs the default rules and reports warnings as errors.
func ValidateStrict(def *lifecycle.Definition) Result {
	return strict(ValidateWithRules(def, DefaultRules()))
}

// ValidateFile loads a definition from a YAML file and validates it.
// A file that cannot be read or parsed yields both a failed Result and the error.
func ValidateFile(path string, strictMode bool) (Result, error) {
	def, err := lifecycle.LoadDefinition(path)
	if err != nil {
		return Result{
			Errors: []Issue{{
				Code:     CodeLoadFailed,
				Message:  fmt.Sprintf("Failed to load template: %v", err),
				Location: Location{File: path},
			}},
		}, err
	}

	result := Validate(def)
	if strictMode {
		result = strict(result)
	}

	for i := range result.Errors {
		result.Errors[i].Location.File = path
	}

	for i := range result.Warnings {
		result.Warnings[i].Location.File = path
	}

	return result, nil
}

// ValidateWithRules runs rules in order and collects their findings.
func ValidateWithRules(def *lifecycle.Definition, rules []Rule) Result {
	var result Result

	for _, rule := range rules {
		ruleResult := rule.Check(def)
		result.Errors = append(result.Errors, ruleResult.Errors...)
		result.Warnings = append(result.Warnings, ruleResult.Warnings...)
	}

	result.Valid = len(result.Errors) == 0
	result.Suggestions = suggestions(def)

	return result
}

func strict(result Result) Result {
	result.Errors = append(result.Errors, result.Warnings...)
	result.Warnings = nil
	result.Valid = len(result.Errors) == 0

	return result
}

func suggestions(def *lifecycle.Definition) []Suggestion {
	var out []Suggestion

	if len(def.DerivedTerminalStates()) == 0 && len(def.States) > 0 {
		out = append(out, Suggestion{
			Message: "Template has no terminal state, so records never finish. Fine for check-in/check-out style machines.",
		})
	}

	if len(def.TerminalStates) == 0 && len(def.DerivedTerminalStates()) > 0 {
		out = append(out, Suggestion{
			Message: "Declare terminal states so they are checked when the template loads",
			Example: "terminalStates: [" + strings.Join(def.DerivedTerminalStates(), ", ") + "]",
		})
	}

	return out
}

// HasErrors returns true if the result has any errors.
func (r Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if the result has any warnings.
func (r Result) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// String returns a plain-text report.
func (r Result) String() string {
	var sb strings.Builder

	if r.Valid {
		sb.WriteString("template is valid\n")
	} else {
		fmt.Fprintf(&sb, "template has %d error(s)\n", len(r.Errors))
	}

	for _, issue := range r.Errors {
		writeIssue(&sb, issue)
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintf(&sb, "%d warning(s):\n", len(r.Warnings))

		for _, issue := range r.Warnings {
			writeIssue(&sb, issue)
		}
	}

	for _, s := range r.Suggestions {
		fmt.Fprintf(&sb, "suggestion: %s\n", s.Message)

		if s.Example != "" {
			fmt.Fprintf(&sb, "    %s\n", s.Example)
		}
	}

	return sb.String()
}

func writeIssue(sb *strings.Builder, issue Issue) {
	fmt.Fprintf(sb, "  [%s] %s", issue.Code, issue.Message)

	if issue.Location.State != "" {
		fmt.Fprintf(sb, " (state: %s)", issue.Location.State)
	}

	if issue.Location.Transition > 0 {
		fmt.Fprintf(sb, " (transition #%d)", issue.Location.Transition)
	}

	sb.WriteString("\n")

	if issue.Fix != "" {
		fmt.Fprintf(sb, "    fix: %s\n", issue.Fix)
	}
}
