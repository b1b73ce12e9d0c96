package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alkem-io/server-sub004/lifecycle"
	"github.com/alkem-io/server-sub004/lifecycle/visualizer"
	"github.com/spf13/cobra"
)

func (a *app) diagramCmd() *cobra.Command {
	var (
		highlight []string
		record    string
		direction string
		fenced    bool
	)

	cmd := &cobra.Command{
		Use:   "diagram <kind|template.yaml>",
		Short: "Render a template as a Mermaid state diagram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.resolveTemplate(args[0])
			if err != nil {
				return err
			}

			if record != "" {
				engine, err := a.lifecycleEngine(cmd.Context())
				if err != nil {
					return err
				}

				snap, err := engine.Describe(cmd.Context(), record)
				if err != nil {
					return err
				}

				if snap.Record.TemplateKind != t.Kind() {
					return fmt.Errorf("record %s is a %s, not a %s", record, snap.Record.TemplateKind, t.Kind())
				}

				highlight = append(highlight, snap.Record.CurrentState)
			}

			out, err := visualizer.Mermaid(t, visualizer.DefaultOptions().
				WithDirection(direction).
				WithHighlight(highlight...).
				WithFenced(fenced))
			if err != nil {
				return err
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), out)

			return err
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&highlight, "highlight", nil, "states to highlight")
	flags.StringVar(&record, "record", "", "highlight the current state of this lifecycle record")
	flags.StringVar(&direction, "direction", "TB", "diagram direction (TB or LR)")
	flags.BoolVar(&fenced, "fenced", false, "wrap the diagram in a ```mermaid block")

	return cmd
}

// resolveTemplate treats arg as a file when it names one, otherwise as a registered kind.
func (a *app) resolveTemplate(arg string) (*lifecycle.Template, error) {
	ext := filepath.Ext(arg)
	if ext == ".yaml" || ext == ".yml" {
		return lifecycle.LoadTemplate(arg)
	}

	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		return lifecycle.LoadTemplate(arg)
	}

	return a.registry.Lookup(arg)
}
