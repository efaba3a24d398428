package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"modrelay/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, database, Telegram, and ntfy reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			failed := preflight.Failed(results)
			if ctx.JSONMode() {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				r := newReport(cmd.OutOrStdout())
				r.section("Preflight")
				for _, result := range results {
					kind := statusOK
					if !result.Passed {
						kind = statusError
					}
					r.line(result.Name, kind, "%s", result.Detail)
				}
				r.writeTo(cmd.OutOrStdout())
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d of %d checks failed", len(failed), len(results))
			}
			return nil
		},
	}
}
