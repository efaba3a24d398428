package classifier_test

import (
	"strings"
	"testing"
	"time"

	"modrelay/internal/classifier"
	"modrelay/internal/submissions"
)

func event(changeType submissions.ChangeType, status submissions.Status) submissions.ChangeEvent {
	return submissions.ChangeEvent{
		Type: changeType,
		Submission: submissions.Submission{
			ID:          "s1",
			Content:     "alice@gmail.com",
			SubmittedBy: "u1",
			Status:      status,
		},
	}
}

func TestAddedAndRemovedNeverProduceJobs(t *testing.T) {
	statuses := []submissions.Status{
		submissions.StatusPending,
		submissions.StatusApproved,
		submissions.StatusRejected,
		submissions.Status("archived"),
	}
	for _, changeType := range []submissions.ChangeType{submissions.ChangeAdded, submissions.ChangeRemoved} {
		for _, status := range statuses {
			ev := event(changeType, status)
			ev.Replay = changeType == submissions.ChangeAdded
			for i := 0; i < 5; i++ {
				if result := classifier.Classify(ev); result.Job != nil {
					t.Fatalf("%s/%s produced a job on feed %d: %#v", changeType, status, i, result.Job)
				}
			}
		}
	}
}

func TestModifiedTerminalProducesOneJob(t *testing.T) {
	cases := []struct {
		status submissions.Status
		phrase string
	}{
		{submissions.StatusApproved, "has been approved"},
		{submissions.StatusRejected, "has been rejected"},
	}
	bodies := map[string]bool{}
	for _, tc := range cases {
		result := classifier.Classify(event(submissions.ChangeModified, tc.status))
		if result.Decision != classifier.DecisionNotify || result.Job == nil {
			t.Fatalf("%s: expected a job, got %#v", tc.status, result)
		}
		job := result.Job
		if job.Recipient != "u1" || job.SubmissionID != "s1" || job.Status != tc.status {
			t.Fatalf("%s: unexpected job %#v", tc.status, job)
		}
		if !strings.Contains(job.Body, "alice@gmail.com") || !strings.Contains(job.Body, tc.phrase) {
			t.Fatalf("%s: unexpected body %q", tc.status, job.Body)
		}
		bodies[job.Body] = true
	}
	if len(bodies) != 2 {
		t.Fatal("approved and rejected bodies must differ")
	}
}

func TestTemplatesMatchBotWording(t *testing.T) {
	approved, ok := classifier.RenderBody(submissions.StatusApproved, "a@gmail.com")
	if !ok || approved != `🎉 Congratulations! Your submission for "a@gmail.com" has been approved.` {
		t.Fatalf("unexpected approved body %q", approved)
	}
	rejected, ok := classifier.RenderBody(submissions.StatusRejected, "a@gmail.com")
	if !ok || rejected != `😞 Unfortunately, your submission for "a@gmail.com" has been rejected.` {
		t.Fatalf("unexpected rejected body %q", rejected)
	}
	if _, ok := classifier.RenderBody(submissions.StatusPending, "a@gmail.com"); ok {
		t.Fatal("pending has no template")
	}
}

func TestUnknownStatusIsUnexpectedWithoutJob(t *testing.T) {
	result := classifier.Classify(event(submissions.ChangeModified, submissions.Status("escalated")))
	if result.Job != nil {
		t.Fatalf("unexpected job %#v", result.Job)
	}
	if result.Decision != classifier.DecisionUnexpected || !strings.Contains(result.Reason, "escalated") {
		t.Fatalf("unexpected result %#v", result)
	}
}

func TestUnknownChangeTypeIsUnexpected(t *testing.T) {
	result := classifier.Classify(event(submissions.ChangeType("renamed"), submissions.StatusApproved))
	if result.Job != nil || result.Decision != classifier.DecisionUnexpected {
		t.Fatalf("unexpected result %#v", result)
	}
}

func TestModifiedPendingIsIgnored(t *testing.T) {
	result := classifier.Classify(event(submissions.ChangeModified, submissions.StatusPending))
	if result.Job != nil || result.Decision != classifier.DecisionPending {
		t.Fatalf("unexpected result %#v", result)
	}
}

func TestNotifiedSubmissionIsNotNotifiedAgain(t *testing.T) {
	ev := event(submissions.ChangeModified, submissions.StatusRejected)
	notified := time.Now()
	ev.Submission.NotifiedAt = &notified
	result := classifier.Classify(ev)
	if result.Job != nil || result.Decision != classifier.DecisionAlreadyNotified {
		t.Fatalf("corrections after notification must not produce jobs: %#v", result)
	}
}
