package main

import (
	"errors"
	"fmt"

	"github.com/alkem-io/server-sub004/lifecycle/validator"
	"github.com/spf13/cobra"
)

var errValidationFailed = errors.New("validation failed")

func (a *app) validateCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate <template.yaml>...",
		Short: "Lint template files",
		Long: `Checks each template file for structural errors, unreachable states, states
that can never finish, undeclared terminal states and naming conventions.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0

			for _, path := range args {
				result, err := validator.ValidateFile(path, strict)
				if err != nil || !result.Valid {
					failed++
				}

				if a.jsonOut {
					if err := writeJSON(out, struct {
						File   string           `json:"file"`
						Result validator.Result `json:"result"`
					}{path, result}); err != nil {
						return err
					}

					continue
				}

				status := a.styles.success.Render("ok")
				if !result.Valid {
					status = a.styles.failure.Render("FAIL")
				} else if result.HasWarnings() {
					status = a.styles.warning.Render("warn")
				}

				fmt.Fprintf(out, "%s %s\n", status, path)
				fmt.Fprint(out, result.String())
			}

			if failed > 0 {
				return fmt.Errorf("%w: %d of %d file(s)", errValidationFailed, failed, len(args))
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "treat warnings as errors")

	return cmd
}
