package logging

import (
	"context"
	"log/slog"
	"strings"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldSubmissionID is the standardized key for submission identifiers.
	FieldSubmissionID = "submission_id"
	// FieldRecipient is the standardized key for chat recipients of a notification.
	FieldRecipient = "recipient"
	// FieldChangeType is the standardized key for change feed event types.
	FieldChangeType = "change_type"
	// FieldSessionID is the standardized key for change feed session identifiers.
	FieldSessionID = "session_id"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType names the machine-readable event a log line records.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
)

type contextKey string

const (
	submissionIDKey  contextKey = "submission_id"
	sessionIDKey     contextKey = "session_id"
	correlationIDKey contextKey = "correlation_id"
)

// WithSubmissionID stores a submission identifier on the context for log enrichment.
func WithSubmissionID(ctx context.Context, id string) context.Context {
	return withValue(ctx, submissionIDKey, id)
}

// WithSessionID stores a feed session identifier on the context.
func WithSessionID(ctx context.Context, id string) context.Context {
	return withValue(ctx, sessionIDKey, id)
}

// WithCorrelationID stores a correlation identifier on the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return withValue(ctx, correlationIDKey, id)
}

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFromContext(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, ok := ctx.Value(key).(string)
	return value, ok && value != ""
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := stringFromContext(ctx, submissionIDKey); ok {
		fields = append(fields, slog.String(FieldSubmissionID, id))
	}
	if id, ok := stringFromContext(ctx, sessionIDKey); ok {
		fields = append(fields, slog.String(FieldSessionID, id))
	}
	if id, ok := stringFromContext(ctx, correlationIDKey); ok {
		fields = append(fields, slog.String(FieldCorrelationID, id))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
