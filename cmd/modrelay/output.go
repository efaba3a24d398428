package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"modrelay/internal/submissions"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSubmission(cmd *cobra.Command, ctx *commandContext, sub *submissions.Submission) error {
	if ctx.JSONMode() {
		return writeJSON(cmd, sub)
	}
	out := cmd.OutOrStdout()
	writeField(out, "ID", sub.ID)
	writeField(out, "Content", sub.Content)
	writeField(out, "Submitted by", sub.SubmittedBy)
	writeField(out, "Status", string(sub.Status))
	writeField(out, "Submitted", formatTimestamp(sub.SubmittedAt))
	if sub.ReviewedAt != nil {
		writeField(out, "Reviewed", fmt.Sprintf("%s by %s", formatTimestamp(*sub.ReviewedAt), sub.ReviewedBy))
	}
	notified := "no"
	if sub.NotifiedAt != nil {
		notified = formatTimestamp(*sub.NotifiedAt)
	}
	writeField(out, "Notified", notified)
	return nil
}

func writeField(out io.Writer, label, value string) {
	fmt.Fprintf(out, "%-14s %s\n", label+":", value)
}

var submissionColumns = []column{
	{header: "ID"},
	{header: "Content", maxWidth: 40},
	{header: "Submitted By", align: alignRight},
	{header: "Status"},
	{header: "Submitted"},
	{header: "Notified"},
}

func buildSubmissionRows(items []*submissions.Submission) [][]string {
	rows := make([][]string, 0, len(items))
	for _, sub := range items {
		notified := "-"
		if sub.NotifiedAt != nil {
			notified = formatTimestamp(*sub.NotifiedAt)
		}
		rows = append(rows, []string{
			sub.ID,
			sub.Content,
			sub.SubmittedBy,
			string(sub.Status),
			formatTimestamp(sub.SubmittedAt),
			notified,
		})
	}
	return rows
}

func formatTimestamp(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.Local().Format("2006-01-02 15:04")
}
