package relay

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"modrelay/internal/classifier"
	"modrelay/internal/config"
	"modrelay/internal/feed"
	"modrelay/internal/logging"
	"modrelay/internal/metrics"
	"modrelay/internal/notifications"
	"modrelay/internal/submissions"
)

// Store is the submission store surface the relay needs.
type Store interface {
	feed.Source
	feed.Checkpoint
	notifications.Marker
}

// Dependencies are the collaborators a Relay is built from. Store and
// Channel are required.
type Dependencies struct {
	Store   Store
	Source  feed.Source
	Channel notifications.Channel
	Alerts  notifications.Service
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Status summarizes the relay for health reporting.
type Status struct {
	Running      bool        `json:"running"`
	Feed         feed.Status `json:"feed"`
	QueueDepth   int         `json:"queue_depth"`
	JobsQueued   int64       `json:"jobs_queued"`
	Unexpected   int64       `json:"unexpected_events"`
	RemovedSeen  int64       `json:"removed_events"`
	FeedFailures int         `json:"consecutive_feed_failures"`
}

// Relay runs the notification pipeline.
type Relay struct {
	adapter    *feed.Adapter
	dispatcher *notifications.Dispatcher
	alerts     notifications.Service
	metrics    *metrics.Metrics
	logger     *slog.Logger
	workers    int
	queueSize  int

	mu           sync.Mutex
	pool         *notifications.Pool
	running      bool
	jobsQueued   int64
	unexpected   int64
	removed      int64
	failures     int
	failingSince time.Time
}

// New builds a relay from configuration and dependencies.
func New(cfg *config.Config, deps Dependencies) (*Relay, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if deps.Store == nil {
		return nil, errors.New("relay requires a submission store")
	}
	if deps.Channel == nil {
		return nil, errors.New("relay requires an outbound channel")
	}
	alerts := deps.Alerts
	if alerts == nil {
		alerts = notifications.NewService(nil)
	}
	source := deps.Source
	if source == nil {
		source = deps.Store
	}

	r := &Relay{
		alerts:    alerts,
		metrics:   deps.Metrics,
		logger:    logging.NewComponentLogger(deps.Logger, "relay"),
		workers:   cfg.Notifications.Workers,
		queueSize: cfg.Notifications.QueueSize,
	}
	r.dispatcher = notifications.NewDispatcher(deps.Channel, notifications.DispatcherOptions{
		Marker:   deps.Store,
		Observer: r.observeDelivery,
		Logger:   deps.Logger,
	})
	retry, maxRetry := cfg.FeedRetryInterval()
	r.adapter = feed.New(source, feed.Options{
		PollInterval:     cfg.FeedPollInterval(),
		BatchSize:        cfg.Feed.BatchSize,
		RetryInterval:    retry,
		MaxRetryInterval: maxRetry,
		Checkpoint:       deps.Store,
		Observer:         r,
		Logger:           deps.Logger,
	})
	return r, nil
}

// Run processes the feed until ctx is cancelled. Jobs still queued at
// shutdown are abandoned.
func (r *Relay) Run(ctx context.Context) error {
	pool := notifications.StartPool(ctx, r.dispatcher, r.workers, r.queueSize)
	r.mu.Lock()
	r.pool = pool
	r.running = true
	r.mu.Unlock()

	r.logger.Info("relay started",
		logging.Int("workers", r.workers),
		logging.Int("queue_size", r.queueSize),
		logging.String(logging.FieldEventType, "relay_started"),
	)

	err := r.adapter.Run(ctx, r)
	pool.Close()

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
	r.logger.Info("relay stopped", logging.String(logging.FieldEventType, "relay_stopped"))

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// HandleEvent classifies one change event and queues the resulting job.
func (r *Relay) HandleEvent(ctx context.Context, event submissions.ChangeEvent) error {
	r.metrics.ObserveFeedEvent(string(event.Type), event.Replay)
	if event.Seq > 0 {
		r.metrics.SetCursor(event.Seq)
	}

	ctx = logging.WithSubmissionID(ctx, event.Submission.ID)
	logger := logging.WithContext(ctx, r.logger).With(
		logging.String(logging.FieldChangeType, string(event.Type)),
		logging.String("status", string(event.Submission.Status)),
	)

	result := classifier.Classify(event)
	r.metrics.ObserveDecision(string(result.Decision))

	switch result.Decision {
	case classifier.DecisionNotify:
	case classifier.DecisionUnexpected:
		r.mu.Lock()
		r.unexpected++
		r.mu.Unlock()
		logging.WarnWithContext(logger, "unexpected change event; no notification sent", "classifier_unexpected",
			logging.String("reason", result.Reason),
			logging.String(logging.FieldErrorHint, "check what wrote this status to the submissions table"),
			logging.String(logging.FieldImpact, "submitter receives no status update"),
		)
		return nil
	case classifier.DecisionRemoved:
		r.mu.Lock()
		r.removed++
		r.mu.Unlock()
		logger.Debug("submission removed; ignored", logging.String(logging.FieldEventType, "submission_removed"))
		return nil
	default:
		logger.Debug("change event ignored",
			logging.String("decision", string(result.Decision)),
			logging.Bool("replay", event.Replay),
		)
		return nil
	}

	job := *result.Job
	job.CorrelationID = uuid.NewString()

	r.mu.Lock()
	pool := r.pool
	r.mu.Unlock()
	if pool == nil {
		return errors.New("relay is not running")
	}
	if err := pool.Enqueue(ctx, job); err != nil {
		return err
	}
	r.metrics.SetQueueDepth(pool.Pending())

	r.mu.Lock()
	r.jobsQueued++
	r.mu.Unlock()
	logger.Info("notification queued",
		logging.String(logging.FieldRecipient, job.Recipient),
		logging.String(logging.FieldCorrelationID, job.CorrelationID),
		logging.String(logging.FieldEventType, "notification_queued"),
	)
	return nil
}

func (r *Relay) observeDelivery(job notifications.Job, outcome notifications.Outcome, elapsed time.Duration) {
	r.metrics.ObserveDelivery(string(outcome), string(job.Status), elapsed)
	r.mu.Lock()
	pool := r.pool
	r.mu.Unlock()
	if pool != nil {
		r.metrics.SetQueueDepth(pool.Pending())
	}
}

// SessionStarted implements feed.SessionObserver.
func (r *Relay) SessionStarted(_ context.Context, info feed.SessionInfo) {
	r.metrics.SessionStarted(info.Cursor)
}

// SessionHealthy implements feed.SessionObserver. A failing feed counts as
// recovered only once a session has polled successfully.
func (r *Relay) SessionHealthy(ctx context.Context, _ feed.SessionInfo) {
	r.mu.Lock()
	failures, since := r.failures, r.failingSince
	r.failures = 0
	r.failingSince = time.Time{}
	r.mu.Unlock()

	if failures > 0 {
		r.logger.Info("change feed recovered",
			logging.Int("failed_sessions", failures),
			logging.Duration("downtime", time.Since(since)),
			logging.String(logging.FieldEventType, "feed_recovered"),
		)
		r.alertAsync(ctx, "feed recovery", func(alertCtx context.Context) error {
			return r.alerts.NotifyFeedRecovered(alertCtx, time.Since(since))
		})
	}
}

// SessionEnded implements feed.SessionObserver.
func (r *Relay) SessionEnded(ctx context.Context, info feed.SessionInfo, err error) {
	failed := err != nil && ctx.Err() == nil
	r.metrics.SessionEnded(failed)
	if !failed {
		return
	}

	r.mu.Lock()
	r.failures++
	failures := r.failures
	if failures == 1 {
		r.failingSince = time.Now()
	}
	r.mu.Unlock()

	if failures == 1 {
		r.alertAsync(ctx, "feed failure", func(alertCtx context.Context) error {
			return r.alerts.NotifyFeedFailure(alertCtx, err, info.Attempt)
		})
	}
}

func (r *Relay) alertAsync(ctx context.Context, label string, send func(context.Context) error) {
	alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	go func() {
		defer cancel()
		if err := send(alertCtx); err != nil {
			logging.WarnWithContext(r.logger, "moderator alert failed", "alert_failed",
				logging.String("alert", label),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
				logging.String(logging.FieldImpact, "moderators were not alerted"),
			)
		}
	}()
}

// Status returns the current relay state.
func (r *Relay) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := Status{
		Running:      r.running,
		Feed:         r.adapter.Status(),
		JobsQueued:   r.jobsQueued,
		Unexpected:   r.unexpected,
		RemovedSeen:  r.removed,
		FeedFailures: r.failures,
	}
	if r.pool != nil {
		status.QueueDepth = r.pool.Pending()
	}
	return status
}
