package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"modrelay/internal/daemon"
	"modrelay/internal/logging"
	"modrelay/internal/submissions"
)

func newPruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Apply change log and log file retention now",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result daemon.PruneResult
			err := ctx.callAPI(cmd.Context(), http.MethodPost, "/api/prune", &result)
			if errors.Is(err, errDaemonUnreachable) {
				result, err = pruneOffline(cmd, ctx)
			}
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d change log rows and %d log files\n", result.ChangesRemoved, result.LogsRemoved)
			return nil
		},
	}
}

func pruneOffline(cmd *cobra.Command, ctx *commandContext) (daemon.PruneResult, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return daemon.PruneResult{}, err
	}
	result := daemon.PruneResult{At: time.Now()}
	err = ctx.withStore(func(store *submissions.Store) error {
		retention := cfg.ChangeRetention()
		if retention <= 0 {
			return nil
		}
		removed, err := store.PruneChanges(cmd.Context(), time.Now().Add(-retention))
		result.ChangesRemoved = removed
		return err
	})
	if err != nil {
		return result, err
	}
	result.LogsRemoved = logging.PruneLogs(logging.NewNop(), cfg.Paths.LogDir, "modrelay-*.log", cfg.Logging.RetentionDays)
	return result, nil
}
