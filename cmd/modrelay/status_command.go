package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"modrelay/internal/daemon"
	"modrelay/internal/submissions"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, feed, and submission status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status daemon.Status
			err := ctx.callAPI(cmd.Context(), http.MethodGet, "/api/status", &status)
			if err != nil && !errors.Is(err, errDaemonUnreachable) {
				return err
			}
			if err != nil {
				status, err = offlineStatus(cmd, ctx)
				if err != nil {
					return err
				}
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, status)
			}
			printStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
}

// offlineStatus reads submission counts straight from the store when the
// daemon is not reachable.
func offlineStatus(cmd *cobra.Command, ctx *commandContext) (daemon.Status, error) {
	var status daemon.Status
	err := ctx.withStore(func(store *submissions.Store) error {
		stats, err := store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		pending, err := store.PendingNotifications(cmd.Context())
		if err != nil {
			return err
		}
		status.DatabasePath = store.Path()
		status.Submissions = stats
		status.PendingNotifications = pending
		return nil
	})
	return status, err
}

func printStatus(out io.Writer, status daemon.Status) {
	r := newReport(out)
	r.section("Daemon")
	if status.Running {
		uptime := ""
		if !status.StartedAt.IsZero() {
			uptime = fmt.Sprintf(", up %s", time.Since(status.StartedAt).Round(time.Second))
		}
		r.line("Daemon", statusOK, "pid %d%s", status.PID, uptime)
	} else {
		r.line("Daemon", statusWarn, "not running")
	}
	if status.DatabasePath != "" {
		r.line("Database", statusInfo, "%s", status.DatabasePath)
	}

	if status.Running {
		r.section("Change feed")
		feedStatus := status.Relay.Feed
		switch {
		case feedStatus.Connected:
			r.line("Feed", statusOK, "connected, cursor %d", feedStatus.Cursor)
		case feedStatus.LastError != "":
			r.line("Feed", statusError, "%s", feedStatus.LastError)
		default:
			r.line("Feed", statusWarn, "connecting")
		}
		if status.Relay.FeedFailures > 0 {
			r.line("Failures", statusWarn, "%d consecutive", status.Relay.FeedFailures)
		}
		r.line("Sessions", statusInfo, "%d", feedStatus.Sessions)
		r.line("Dispatch queue", statusInfo, "%d pending, %d queued total", status.Relay.QueueDepth, status.Relay.JobsQueued)
		if status.Relay.Unexpected > 0 {
			r.line("Unexpected events", statusWarn, "%d", status.Relay.Unexpected)
		}
		if status.IntakeEnabled {
			r.line("Intake", statusInfo, "enabled, offset %d", status.IntakeOffset)
		} else {
			r.line("Intake", statusInfo, "disabled")
		}
	}

	r.section("Submissions")
	for _, s := range submissions.AllStatuses() {
		r.line(titleCase(string(s)), statusInfo, "%d", status.Submissions[s])
	}
	kind := statusOK
	if status.PendingNotifications > 0 {
		kind = statusWarn
	}
	r.line("Awaiting notice", kind, "%d", status.PendingNotifications)
	if status.Error != "" {
		r.line("Error", statusError, "%s", status.Error)
	}
	r.writeTo(out)
}

func titleCase(value string) string {
	if value == "" {
		return value
	}
	return strings.ToUpper(value[:1]) + value[1:]
}
