package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"modrelay/internal/config"
	"modrelay/internal/submissions"
)

const userAgent = "modrelay/0.1.0"

// Service defines the moderator alert surface.
type Service interface {
	NotifySubmissionReceived(ctx context.Context, sub submissions.Submission) error
	NotifyFeedFailure(ctx context.Context, err error, attempt int) error
	NotifyFeedRecovered(ctx context.Context, downtime time.Duration) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds an alert service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := cfg.NotificationRequestTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:       topic,
		client:         &http.Client{Timeout: timeout},
		newSubmissions: cfg.Notifications.NewSubmissions,
		feedErrors:     cfg.Notifications.FeedErrors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint       string
	client         *http.Client
	newSubmissions bool
	feedErrors     bool
}

func (n *ntfyService) NotifySubmissionReceived(ctx context.Context, sub submissions.Submission) error {
	if !n.newSubmissions {
		return nil
	}
	data := payload{
		title:   "modrelay - Review Needed",
		message: fmt.Sprintf("📥 New submission awaiting review: %s\nFrom: %s\nID: %s", strings.TrimSpace(sub.Content), sub.SubmittedBy, sub.ID),
		tags:    []string{"modrelay", "submission", "pending"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyFeedFailure(ctx context.Context, err error, attempt int) error {
	if !n.feedErrors {
		return nil
	}
	detail := "unknown"
	if err != nil {
		detail = strings.TrimSpace(err.Error())
	}
	data := payload{
		title:    "modrelay - Feed Interrupted",
		message:  fmt.Sprintf("⚠️ Change feed session failed (attempt %d): %s\nStatus notifications are paused until it reconnects.", attempt, detail),
		tags:     []string{"modrelay", "feed", "error"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyFeedRecovered(ctx context.Context, downtime time.Duration) error {
	if !n.feedErrors {
		return nil
	}
	downtime = downtime.Round(time.Second)
	if downtime < 0 {
		downtime = 0
	}
	data := payload{
		title:   "modrelay - Feed Recovered",
		message: fmt.Sprintf("✅ Change feed reconnected after %s", downtime),
		tags:    []string{"modrelay", "feed", "recovered"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "modrelay - Error",
		message:  builder.String(),
		tags:     []string{"modrelay", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "modrelay - Test",
		message:  "🧪 Moderator alert test",
		tags:     []string{"modrelay", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifySubmissionReceived(context.Context, submissions.Submission) error { return nil }
func (noopService) NotifyFeedFailure(context.Context, error, int) error                  { return nil }
func (noopService) NotifyFeedRecovered(context.Context, time.Duration) error             { return nil }
func (noopService) NotifyError(context.Context, error, string) error                     { return nil }
func (noopService) TestNotification(context.Context) error                              { return nil }
