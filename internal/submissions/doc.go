// Package submissions persists moderation submissions in SQLite and exposes
// the change log the relay watches.
//
// The Store owns the single database handle. Every insert, status change,
// and delete is captured by triggers into the submission_changes table; the
// change feed reads that table through Snapshot and ChangesSince rather than
// diffing rows itself. Status transitions are monotonic: Review moves a
// pending submission to a terminal status, Correct swaps one terminal status
// for the other, and nothing returns a submission to pending.
//
// The notified_at column is the notification marker. ClaimNotification sets
// it at most once, which is what keeps duplicate change events from turning
// into duplicate messages.
//
// The schema version lives in SQLite's user_version header. Schema changes
// bump schemaVersion in schema.go; operators clear the database to adopt
// the new schema.
package submissions
