package main

import (
	"fmt"
	"strings"

	"github.com/alkem-io/server-sub004/lifecycle"
	"github.com/spf13/cobra"
)

type templateSummary struct {
	Kind           string   `json:"kind"`
	InitialState   string   `json:"initialState"`
	States         []string `json:"states"`
	TerminalStates []string `json:"terminalStates"`
	Transitions    int      `json:"transitions"`
}

func summarize(t *lifecycle.Template) templateSummary {
	return templateSummary{
		Kind:           t.Kind(),
		InitialState:   t.InitialState(),
		States:         t.States(),
		TerminalStates: t.TerminalStates(),
		Transitions:    len(t.Definition().Transitions),
	}
}

func (a *app) templatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List registered template kinds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kinds := a.registry.Kinds()
			summaries := make([]templateSummary, 0, len(kinds))

			for _, kind := range kinds {
				t, err := a.registry.Lookup(kind)
				if err != nil {
					return err
				}

				summaries = append(summaries, summarize(t))
			}

			out := cmd.OutOrStdout()

			if a.jsonOut {
				return writeJSON(out, summaries)
			}

			for _, s := range summaries {
				terminals := a.styles.muted.Render("none")
				if len(s.TerminalStates) > 0 {
					terminals = a.styles.terminal.Render(strings.Join(s.TerminalStates, ", "))
				}

				fmt.Fprintf(out, "%s\n", a.styles.state.Render(s.Kind))
				fmt.Fprintf(out, "  %s %s\n", a.styles.label.Render("initial"), s.InitialState)
				fmt.Fprintf(out, "  %s %s\n", a.styles.label.Render("states"), strings.Join(s.States, ", "))
				fmt.Fprintf(out, "  %s %s\n", a.styles.label.Render("terminal"), terminals)
				fmt.Fprintf(out, "  %s %d\n", a.styles.label.Render("edges"), s.Transitions)
			}

			return nil
		},
	}
}
