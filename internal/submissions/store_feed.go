package submissions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ChangeBatch is one page of the change log.
type ChangeBatch struct {
	Events []ChangeEvent
	// Cursor is the highest sequence read, including rows the predicate
	// filtered out. Pass it to the next ChangesSince call.
	Cursor int64
	// More reports that the page was full and further rows may be waiting.
	More bool
}

// Snapshot returns every submission matching the feed predicate together
// with the change log position the snapshot reflects. Both are read inside
// one transaction.
func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var snap Snapshot
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM submission_changes`).Scan(&snap.Cursor); err != nil {
		return Snapshot{}, fmt.Errorf("read change cursor: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE status != ? ORDER BY submitted_at, id`,
		StatusPending,
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot submissions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return Snapshot{}, fmt.Errorf("scan snapshot row: %w", err)
		}
		snap.Submissions = append(snap.Submissions, *sub)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, err
	}
	if err := tx.Commit(); err != nil {
		return Snapshot{}, fmt.Errorf("commit snapshot tx: %w", err)
	}
	return snap, nil
}

// ChangesSince reads up to limit change log rows after cursor. Within the
// page only the latest change per submission is kept, and changes for
// submissions outside the feed predicate (status != pending) are dropped.
// The notification marker always reflects the live row.
func (s *Store) ChangesSince(ctx context.Context, cursor int64, limit int) (ChangeBatch, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT c.seq, c.change_type, c.submission_id, c.content, c.submitted_by,
                c.status, c.submitted_at, c.reviewed_at, c.reviewed_by,
                COALESCE(s.notified_at, c.notified_at)
         FROM submission_changes c
         LEFT JOIN submissions s ON s.id = c.submission_id
         WHERE c.seq > ?
         ORDER BY c.seq
         LIMIT ?`,
		cursor,
		limit,
	)
	if err != nil {
		return ChangeBatch{}, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	batch := ChangeBatch{Cursor: cursor}
	var (
		read   int
		latest = make(map[string]int)
		events []ChangeEvent
	)
	for rows.Next() {
		event, err := scanChange(rows)
		if err != nil {
			return ChangeBatch{}, fmt.Errorf("scan change: %w", err)
		}
		read++
		batch.Cursor = event.Seq
		if idx, ok := latest[event.Submission.ID]; ok {
			events[idx].Seq = -1
		}
		latest[event.Submission.ID] = len(events)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return ChangeBatch{}, err
	}

	for _, event := range events {
		if event.Seq < 0 || event.Submission.Status == StatusPending {
			continue
		}
		batch.Events = append(batch.Events, event)
	}
	batch.More = read == limit
	return batch, nil
}

func scanChange(scanner rowScanner) (ChangeEvent, error) {
	var (
		seq          int64
		changeType   string
		id           string
		content      sql.NullString
		submittedBy  sql.NullString
		status       sql.NullString
		submittedRaw sql.NullString
		reviewedRaw  sql.NullString
		reviewedBy   sql.NullString
		notifiedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&seq,
		&changeType,
		&id,
		&content,
		&submittedBy,
		&status,
		&submittedRaw,
		&reviewedRaw,
		&reviewedBy,
		&notifiedRaw,
	); err != nil {
		return ChangeEvent{}, err
	}
	sub := Submission{
		ID:          id,
		Content:     content.String,
		SubmittedBy: submittedBy.String,
		Status:      Status(status.String),
		ReviewedBy:  reviewedBy.String,
		ReviewedAt:  parseNullTime(reviewedRaw),
		NotifiedAt:  parseNullTime(notifiedRaw),
	}
	if submitted, err := parseTimeString(submittedRaw.String); err == nil {
		sub.SubmittedAt = submitted
	}
	return ChangeEvent{Type: ChangeType(changeType), Submission: sub, Seq: seq}, nil
}

// LoadCursor returns the saved change log position for a named consumer.
func (s *Store) LoadCursor(ctx context.Context, name string) (int64, bool, error) {
	var seq int64
	err := s.db.QueryRowContext(ensureContext(ctx), `SELECT seq FROM feed_cursors WHERE name = ?`, name).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load feed cursor: %w", err)
	}
	return seq, true, nil
}

// SaveCursor records the change log position for a named consumer.
func (s *Store) SaveCursor(ctx context.Context, name string, seq int64) error {
	_, err := s.execWithRetry(ctx,
		`INSERT INTO feed_cursors (name, seq, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(name) DO UPDATE SET seq = excluded.seq, updated_at = excluded.updated_at`,
		name,
		seq,
		formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("save feed cursor: %w", err)
	}
	return nil
}
