package submissions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"modrelay/internal/services"
)

// Submit stores a new pending submission.
func (s *Store) Submit(ctx context.Context, content, submittedBy string) (*Submission, error) {
	content = strings.TrimSpace(content)
	submittedBy = strings.TrimSpace(submittedBy)
	if content == "" {
		return nil, services.Wrap(services.ErrValidation, "submissions", "submit", "content is required", nil)
	}
	if submittedBy == "" {
		return nil, services.Wrap(services.ErrValidation, "submissions", "submit", "submitter is required", nil)
	}

	id := uuid.NewString()
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO submissions (id, content, submitted_by, status, submitted_at)
         VALUES (?, ?, ?, ?, ?)`,
		id,
		content,
		submittedBy,
		StatusPending,
		formatTime(s.now()),
	); err != nil {
		return nil, fmt.Errorf("insert submission: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a submission by identifier. It returns nil when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Submission, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

// List returns submissions newest first, narrowed by the filter.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions`
	var (
		clauses []string
		args    []any
	)
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	if by := strings.TrimSpace(filter.SubmittedBy); by != "" {
		clauses = append(clauses, "submitted_by = ?")
		args = append(args, by)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY submitted_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var out []*Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// Review moves a pending submission to a terminal status. Reviewing a
// submission that already left pending fails with services.ErrConflict.
func (s *Store) Review(ctx context.Context, id string, status Status, moderator string) (*Submission, error) {
	if !status.IsTerminal() {
		return nil, services.Wrap(services.ErrValidation, "submissions", "review",
			fmt.Sprintf("status %q is not a review outcome", status), nil)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE submissions
         SET status = ?, reviewed_at = ?, reviewed_by = ?
         WHERE id = ? AND status = ?`,
		status,
		formatTime(s.now()),
		nullableString(strings.TrimSpace(moderator)),
		id,
		StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("review submission: %w", err)
	}
	return s.afterTransition(ctx, res, id, "review")
}

// Correct swaps the terminal status of an already reviewed submission. The
// notification marker is left untouched so the submitter is not messaged again.
func (s *Store) Correct(ctx context.Context, id string, status Status, moderator string) (*Submission, error) {
	if !status.IsTerminal() {
		return nil, services.Wrap(services.ErrValidation, "submissions", "correct",
			fmt.Sprintf("status %q is not a review outcome", status), nil)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE submissions
         SET status = ?, reviewed_at = ?, reviewed_by = ?
         WHERE id = ? AND status IN (?, ?) AND status != ?`,
		status,
		formatTime(s.now()),
		nullableString(strings.TrimSpace(moderator)),
		id,
		StatusApproved,
		StatusRejected,
		status,
	)
	if err != nil {
		return nil, fmt.Errorf("correct submission: %w", err)
	}
	return s.afterTransition(ctx, res, id, "correct")
}

func (s *Store) afterTransition(ctx context.Context, res sql.Result, id, operation string) (*Submission, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%s rows affected: %w", operation, err)
	}
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, services.Wrap(services.ErrNotFound, "submissions", operation,
			fmt.Sprintf("submission %s does not exist", id), nil)
	}
	if affected == 0 {
		return current, services.Wrap(services.ErrConflict, "submissions", operation,
			fmt.Sprintf("submission %s is %s", id, current.Status), nil)
	}
	return current, nil
}

// Delete removes a submission. The change feed reports it as removed.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM submissions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete submission: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "submissions", "delete",
			fmt.Sprintf("submission %s does not exist", id), nil)
	}
	return nil
}

// ClaimNotification sets the notification marker if it is still unset. It
// reports false when another delivery already claimed the submission or the
// submission is not in a terminal status.
func (s *Store) ClaimNotification(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE submissions
         SET notified_at = ?
         WHERE id = ? AND notified_at IS NULL AND status IN (?, ?)`,
		formatTime(s.now()),
		id,
		StatusApproved,
		StatusRejected,
	)
	if err != nil {
		return false, fmt.Errorf("claim notification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim rows affected: %w", err)
	}
	return affected == 1, nil
}

// RegisterUser records a chat user. It reports true when the user is new;
// existing users get their profile fields refreshed.
func (s *Store) RegisterUser(ctx context.Context, user User) (bool, error) {
	chatID := strings.TrimSpace(user.ChatID)
	if chatID == "" {
		return false, services.Wrap(services.ErrValidation, "submissions", "register user", "chat id is required", nil)
	}
	existing, err := s.GetUser(ctx, chatID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		_, err := s.execWithRetry(ctx,
			`UPDATE users SET username = ?, first_name = ? WHERE chat_id = ?`,
			nullableString(user.Username),
			nullableString(user.FirstName),
			chatID,
		)
		if err != nil {
			return false, fmt.Errorf("update user: %w", err)
		}
		return false, nil
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO users (chat_id, username, first_name, registered_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(chat_id) DO NOTHING`,
		chatID,
		nullableString(user.Username),
		nullableString(user.FirstName),
		formatTime(s.now()),
	)
	if err != nil {
		return false, fmt.Errorf("insert user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert user rows affected: %w", err)
	}
	return affected == 1, nil
}

// GetUser fetches a registered user. It returns nil when absent.
func (s *Store) GetUser(ctx context.Context, chatID string) (*User, error) {
	var (
		user          User
		username      sql.NullString
		firstName     sql.NullString
		registeredRaw string
	)
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT chat_id, username, first_name, registered_at FROM users WHERE chat_id = ?`,
		chatID,
	).Scan(&user.ChatID, &username, &firstName, &registeredRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	user.Username = username.String
	user.FirstName = firstName.String
	if registered, err := parseTimeString(registeredRaw); err == nil {
		user.RegisteredAt = registered
	}
	return &user, nil
}

// UserStats counts a user's submissions by status.
func (s *Store) UserStats(ctx context.Context, chatID string) (UserStats, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT status, COUNT(1) FROM submissions WHERE submitted_by = ? GROUP BY status`,
		chatID,
	)
	if err != nil {
		return UserStats{}, fmt.Errorf("user stats: %w", err)
	}
	defer rows.Close()

	var stats UserStats
	for rows.Next() {
		var (
			status Status
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return UserStats{}, err
		}
		switch status {
		case StatusPending:
			stats.Pending = count
		case StatusApproved:
			stats.Approved = count
		case StatusRejected:
			stats.Rejected = count
		}
	}
	return stats, rows.Err()
}
