package submissions

import (
	"strings"
	"time"
)

// Status represents the review state of a submission.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

var allStatuses = []Status{
	StatusPending,
	StatusApproved,
	StatusRejected,
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether the status ends the review lifecycle.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Submission is a user-provided item awaiting or past moderator review.
type Submission struct {
	ID          string     `json:"id"`
	Content     string     `json:"content"`
	SubmittedBy string     `json:"submitted_by"`
	Status      Status     `json:"status"`
	SubmittedAt time.Time  `json:"submitted_at"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy  string     `json:"reviewed_by,omitempty"`
	NotifiedAt  *time.Time `json:"notified_at,omitempty"`
}

// Notified reports whether the notification marker has been claimed.
func (s Submission) Notified() bool {
	return s.NotifiedAt != nil
}

// ChangeType names the kind of change the feed observed.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// ChangeEvent is one observed change to a submission matching the feed
// predicate (status != pending).
type ChangeEvent struct {
	Type       ChangeType
	Submission Submission
	// Seq is the change log sequence; zero for snapshot replay events.
	Seq    int64
	Replay bool
}

// Snapshot is the consistent view a feed session starts from.
type Snapshot struct {
	Cursor      int64
	Submissions []Submission
}

// ListFilter narrows List results.
type ListFilter struct {
	Statuses    []Status
	SubmittedBy string
	Limit       int
}

// User is a chat user known to the intake bot.
type User struct {
	ChatID       string    `json:"chat_id"`
	Username     string    `json:"username,omitempty"`
	FirstName    string    `json:"first_name,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

// UserStats summarizes one user's submissions by status.
type UserStats struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// Total returns the number of submissions across all statuses.
func (s UserStats) Total() int {
	return s.Pending + s.Approved + s.Rejected
}

// DatabaseHealth describes the database state for diagnostics.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TablesPresent    []string
	MissingTables    []string
	TotalSubmissions int
	ChangeLogRows    int
	LatestSeq        int64
	IntegrityCheck   bool
	Error            string
}
