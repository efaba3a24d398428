package main

import (
	"strings"
	"testing"

	"modrelay/internal/submissions"
)

func TestSubmissionsReviewLifecycle(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, env.configPath, "--json", "submissions", "submit", "alice@gmail.com", "--chat", "42")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	sub := decodeOutput[submissions.Submission](t, out)
	if sub.Status != submissions.StatusPending || sub.SubmittedBy != "42" {
		t.Fatalf("unexpected submission %+v", sub)
	}

	out, err = runCLI(t, env.configPath, "submissions", "approve", sub.ID, "--moderator", "mod1")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	requireContains(t, out, "approved")
	requireContains(t, out, "by mod1")

	if _, err := runCLI(t, env.configPath, "submissions", "reject", sub.ID); err == nil || !strings.Contains(err.Error(), "already approved") {
		t.Fatalf("expected conflict on second review, got %v", err)
	}

	out, err = runCLI(t, env.configPath, "--json", "submissions", "correct", sub.ID, "rejected")
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	if corrected := decodeOutput[submissions.Submission](t, out); corrected.Status != submissions.StatusRejected {
		t.Fatalf("expected rejected after correction, got %s", corrected.Status)
	}

	out, err = runCLI(t, env.configPath, "submissions", "show", sub.ID)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "alice@gmail.com")
	requireContains(t, out, "Notified:")

	if _, err := runCLI(t, env.configPath, "submissions", "delete", sub.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := runCLI(t, env.configPath, "submissions", "show", sub.ID); err == nil {
		t.Fatal("expected show to fail after delete")
	}
}

func TestSubmissionsListFiltersAndRendersTable(t *testing.T) {
	env := setupCLITestEnv(t)
	for _, args := range [][]string{
		{"submissions", "submit", "a@gmail.com", "--chat", "1"},
		{"submissions", "submit", "b@gmail.com", "--chat", "2"},
	} {
		if _, err := runCLI(t, env.configPath, args...); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	out, err := runCLI(t, env.configPath, "submissions", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "Submitted By")
	requireContains(t, out, "a@gmail.com")
	requireContains(t, out, "b@gmail.com")

	out, err = runCLI(t, env.configPath, "--json", "submissions", "list", "--submitter", "2")
	if err != nil {
		t.Fatalf("list json: %v", err)
	}
	resp := decodeOutput[struct {
		Submissions []submissions.Submission `json:"submissions"`
	}](t, out)
	if len(resp.Submissions) != 1 || resp.Submissions[0].Content != "b@gmail.com" {
		t.Fatalf("unexpected filtered list %+v", resp.Submissions)
	}

	out, err = runCLI(t, env.configPath, "submissions", "list", "--status", "approved")
	if err != nil {
		t.Fatalf("list approved: %v", err)
	}
	requireContains(t, out, "No submissions")

	if _, err := runCLI(t, env.configPath, "submissions", "list", "--status", "archived"); err == nil {
		t.Fatal("expected unknown status to fail")
	}
}

func TestSubmissionsCorrectRequiresTerminalStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := runCLI(t, env.configPath, "submissions", "correct", "any-id", "pending"); err == nil {
		t.Fatal("expected pending to be rejected as a correction target")
	}
}
