package testsupport

import (
	"context"
	"testing"

	"modrelay/internal/config"
	"modrelay/internal/submissions"
)

// MustOpenStore opens a submissions.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *submissions.Store {
	t.Helper()

	store, err := submissions.Open(cfg)
	if err != nil {
		t.Fatalf("submissions.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustSubmit creates a pending submission for tests using the provided store.
func MustSubmit(t testing.TB, store *submissions.Store, content, submittedBy string) *submissions.Submission {
	t.Helper()

	sub, err := store.Submit(context.Background(), content, submittedBy)
	if err != nil {
		t.Fatalf("store.Submit: %v", err)
	}
	return sub
}

// MustReview moves a submission to a terminal status.
func MustReview(t testing.TB, store *submissions.Store, id string, status submissions.Status) *submissions.Submission {
	t.Helper()

	sub, err := store.Review(context.Background(), id, status, "tester")
	if err != nil {
		t.Fatalf("store.Review: %v", err)
	}
	return sub
}
