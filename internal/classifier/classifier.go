// Package classifier decides which change events become status notifications.
//
// Classify is a pure function of its input. Only a modified event whose
// submission is approved or rejected, and whose notification marker is unset,
// yields a job; added events (snapshot replays after a reconnect) and removed
// events never do. Feeding the same event any number of times yields the same
// result.
package classifier

import (
	"fmt"

	"modrelay/internal/notifications"
	"modrelay/internal/submissions"
)

const (
	approvedTemplate = "🎉 Congratulations! Your submission for \"%s\" has been approved."
	rejectedTemplate = "😞 Unfortunately, your submission for \"%s\" has been rejected."
)

// Decision names why an event did or did not produce a job.
type Decision string

const (
	DecisionNotify          Decision = "notify"
	DecisionReplay          Decision = "ignored_added"
	DecisionRemoved         Decision = "ignored_removed"
	DecisionPending         Decision = "ignored_pending"
	DecisionAlreadyNotified Decision = "ignored_already_notified"
	DecisionUnexpected      Decision = "unexpected"
)

// Result is the outcome of classifying one event. Job is nil unless
// Decision is DecisionNotify.
type Result struct {
	Job      *notifications.Job
	Decision Decision
	Reason   string
}

// Classify maps a change event to at most one notification job.
func Classify(event submissions.ChangeEvent) Result {
	sub := event.Submission
	switch event.Type {
	case submissions.ChangeAdded:
		return Result{Decision: DecisionReplay, Reason: "added events are snapshot replays"}
	case submissions.ChangeRemoved:
		return Result{Decision: DecisionRemoved, Reason: "submission was deleted"}
	case submissions.ChangeModified:
	default:
		return Result{Decision: DecisionUnexpected, Reason: fmt.Sprintf("unknown change type %q", event.Type)}
	}

	switch sub.Status {
	case submissions.StatusApproved, submissions.StatusRejected:
	case submissions.StatusPending:
		return Result{Decision: DecisionPending, Reason: "submission is still pending"}
	default:
		return Result{Decision: DecisionUnexpected, Reason: fmt.Sprintf("unknown status %q", sub.Status)}
	}

	if sub.Notified() {
		return Result{Decision: DecisionAlreadyNotified, Reason: "notification marker already set"}
	}

	body, _ := RenderBody(sub.Status, sub.Content)
	return Result{
		Job: &notifications.Job{
			Recipient:    sub.SubmittedBy,
			Body:         body,
			SubmissionID: sub.ID,
			Status:       sub.Status,
		},
		Decision: DecisionNotify,
	}
}

// RenderBody returns the message text for a terminal status. It reports
// false for statuses without a template.
func RenderBody(status submissions.Status, content string) (string, bool) {
	switch status {
	case submissions.StatusApproved:
		return fmt.Sprintf(approvedTemplate, content), true
	case submissions.StatusRejected:
		return fmt.Sprintf(rejectedTemplate, content), true
	default:
		return "", false
	}
}
