package submissions

import (
	"database/sql"
	"errors"
	"time"
)

const submissionColumns = "id, content, submitted_by, status, submitted_at, reviewed_at, reviewed_by, notified_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(scanner rowScanner) (*Submission, error) {
	var (
		id           string
		content      string
		submittedBy  string
		statusStr    string
		submittedRaw string
		reviewedRaw  sql.NullString
		reviewedBy   sql.NullString
		notifiedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&content,
		&submittedBy,
		&statusStr,
		&submittedRaw,
		&reviewedRaw,
		&reviewedBy,
		&notifiedRaw,
	); err != nil {
		return nil, err
	}

	sub := &Submission{
		ID:          id,
		Content:     content,
		SubmittedBy: submittedBy,
		Status:      Status(statusStr),
		ReviewedBy:  reviewedBy.String,
	}
	if submitted, err := parseTimeString(submittedRaw); err == nil {
		sub.SubmittedAt = submitted
	}
	sub.ReviewedAt = parseNullTime(reviewedRaw)
	sub.NotifiedAt = parseNullTime(notifiedRaw)
	return sub, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseNullTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	parsed, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &parsed
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
