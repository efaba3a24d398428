package notifications

import (
	"context"

	"modrelay/internal/submissions"
)

// Job is one message for one recipient.
type Job struct {
	Recipient     string
	Body          string
	SubmissionID  string
	Status        submissions.Status
	CorrelationID string
}

// Channel is the outbound messaging transport.
type Channel interface {
	Send(ctx context.Context, recipient, body string) error
}

// ChannelFunc adapts a function to the Channel interface.
type ChannelFunc func(ctx context.Context, recipient, body string) error

// Send calls f.
func (f ChannelFunc) Send(ctx context.Context, recipient, body string) error {
	return f(ctx, recipient, body)
}

// Marker records that a submission's notification has been attempted.
// ClaimNotification must be atomic and report false when the marker was
// already set.
type Marker interface {
	ClaimNotification(ctx context.Context, submissionID string) (bool, error)
}

// Outcome is the result of one delivery attempt.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeFailed    Outcome = "failed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeAbandoned Outcome = "abandoned"
)
