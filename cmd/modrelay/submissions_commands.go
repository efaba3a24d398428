package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"modrelay/internal/services"
	"modrelay/internal/submissions"
)

func newSubmissionsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "submissions",
		Aliases: []string{"sub"},
		Short:   "Inspect and review submissions",
	}

	cmd.AddCommand(newSubmissionsListCommand(ctx))
	cmd.AddCommand(newSubmissionsShowCommand(ctx))
	cmd.AddCommand(newSubmissionsSubmitCommand(ctx))
	cmd.AddCommand(newSubmissionsReviewCommand(ctx, "approve", submissions.StatusApproved))
	cmd.AddCommand(newSubmissionsReviewCommand(ctx, "reject", submissions.StatusRejected))
	cmd.AddCommand(newSubmissionsCorrectCommand(ctx))
	cmd.AddCommand(newSubmissionsDeleteCommand(ctx))

	return cmd
}

func newSubmissionsListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var submitter string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List submissions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := submissions.ListFilter{SubmittedBy: strings.TrimSpace(submitter), Limit: limit}
			for _, raw := range statuses {
				status, ok := submissions.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q", raw)
				}
				filter.Statuses = append(filter.Statuses, status)
			}
			return ctx.withStore(func(store *submissions.Store) error {
				items, err := store.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"submissions": items})
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No submissions")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(submissionColumns, buildSubmissionRows(items)))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (pending, approved, rejected)")
	cmd.Flags().StringVar(&submitter, "submitter", "", "Filter by submitter chat id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum rows to show (0 for all)")
	return cmd
}

func newSubmissionsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *submissions.Store) error {
				sub, err := store.GetByID(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if sub == nil {
					return fmt.Errorf("submission %s not found", args[0])
				}
				return printSubmission(cmd, ctx, sub)
			})
		},
	}
}

func newSubmissionsSubmitCommand(ctx *commandContext) *cobra.Command {
	var chatID string
	cmd := &cobra.Command{
		Use:   "submit <content>",
		Short: "Record a submission on behalf of a chat user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *submissions.Store) error {
				sub, err := store.Submit(cmd.Context(), args[0], chatID)
				if err != nil {
					return err
				}
				return printSubmission(cmd, ctx, sub)
			})
		},
	}
	cmd.Flags().StringVar(&chatID, "chat", "", "Submitter chat id (required)")
	_ = cmd.MarkFlagRequired("chat")
	return cmd
}

func newSubmissionsReviewCommand(ctx *commandContext, use string, status submissions.Status) *cobra.Command {
	var moderator string
	cmd := &cobra.Command{
		Use:   use + " <id>",
		Short: fmt.Sprintf("Mark a pending submission %s", status),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *submissions.Store) error {
				sub, err := store.Review(cmd.Context(), strings.TrimSpace(args[0]), status, moderatorOrDefault(moderator))
				if err != nil {
					return reviewError(err, sub)
				}
				return printSubmission(cmd, ctx, sub)
			})
		},
	}
	cmd.Flags().StringVarP(&moderator, "moderator", "m", "", "Moderator name recorded on the submission (default $USER)")
	return cmd
}

func newSubmissionsCorrectCommand(ctx *commandContext) *cobra.Command {
	var moderator string
	cmd := &cobra.Command{
		Use:   "correct <id> <approved|rejected>",
		Short: "Change the decision on an already reviewed submission without notifying again",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, ok := submissions.ParseStatus(args[1])
			if !ok || !status.IsTerminal() {
				return fmt.Errorf("status must be approved or rejected, got %q", args[1])
			}
			return ctx.withStore(func(store *submissions.Store) error {
				sub, err := store.Correct(cmd.Context(), strings.TrimSpace(args[0]), status, moderatorOrDefault(moderator))
				if err != nil {
					return reviewError(err, sub)
				}
				return printSubmission(cmd, ctx, sub)
			})
		},
	}
	cmd.Flags().StringVarP(&moderator, "moderator", "m", "", "Moderator name recorded on the submission (default $USER)")
	return cmd
}

func newSubmissionsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withStore(func(store *submissions.Store) error {
				if err := store.Delete(cmd.Context(), id); err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"deleted": id})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Submission %s deleted\n", id)
				return nil
			})
		},
	}
}

func moderatorOrDefault(value string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return defaultModerator()
}

func reviewError(err error, current *submissions.Submission) error {
	if errors.Is(err, services.ErrConflict) && current != nil {
		return fmt.Errorf("submission %s is already %s", current.ID, current.Status)
	}
	return err
}
