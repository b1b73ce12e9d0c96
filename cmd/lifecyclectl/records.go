package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alkem-io/server-sub004/lifecycle"
	"github.com/alkem-io/server-sub004/logger"
	"github.com/spf13/cobra"
)

func (a *app) createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <kind>",
		Short: "Create a lifecycle record at the template's initial state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.lifecycleEngine(cmd.Context())
			if err != nil {
				return err
			}

			snap, err := engine.Create(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return a.printSnapshot(cmd.OutOrStdout(), snap)
		},
	}
}

func (a *app) dispatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch <id> <event>",
		Short: "Fire an event against a lifecycle record",
		Args:  cobra.ExactArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logger.With(cmd.Context(), "lifecycle_id", args[0], "event", args[1])

			engine, err := a.lifecycleEngine(ctx)
			if err != nil {
				return err
			}

			snap, err := engine.Dispatch(ctx, args[0], args[1])
			if err != nil {
				return logger.AnnotateError(err, "lifecycle_id", args[0], "event", args[1])
			}

			return a.printSnapshot(cmd.OutOrStdout(), snap)
		},
	}
}

func (a *app) describeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <id>",
		Short: "Show a lifecycle record and the events it accepts next",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.lifecycleEngine(cmd.Context())
			if err != nil {
				return err
			}

			snap, err := engine.Describe(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return a.printSnapshot(cmd.OutOrStdout(), snap)
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete lifecycle records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.lifecycleEngine(cmd.Context())
			if err != nil {
				return err
			}

			for _, id := range args {
				if err := engine.Delete(cmd.Context(), id); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			}

			return nil
		},
	}
}

func (a *app) printSnapshot(out io.Writer, snap lifecycle.Snapshot) error {
	if a.jsonOut {
		return writeJSON(out, snap)
	}

	rec := snap.Record

	state := a.styles.state.Render(rec.CurrentState)
	if snap.Terminal() {
		state = a.styles.terminal.Render(rec.CurrentState) + " " + a.styles.muted.Render("(terminal)")
	}

	next := a.styles.muted.Render("none")
	if len(snap.NextEvents) > 0 {
		events := make([]string, len(snap.NextEvents))
		for i, e := range snap.NextEvents {
			events[i] = a.styles.event.Render(e)
		}

		next = strings.Join(events, ", ")
	}

	fmt.Fprintf(out, "%s %s\n", a.styles.label.Render("id"), rec.ID)
	fmt.Fprintf(out, "%s %s\n", a.styles.label.Render("kind"), rec.TemplateKind)
	fmt.Fprintf(out, "%s %s\n", a.styles.label.Render("state"), state)
	fmt.Fprintf(out, "%s %d\n", a.styles.label.Render("version"), rec.Version)
	fmt.Fprintf(out, "%s %s\n", a.styles.label.Render("updated"), rec.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "%s %s\n", a.styles.label.Render("next"), next)

	return nil
}
