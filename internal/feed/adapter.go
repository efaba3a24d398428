package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"modrelay/internal/logging"
	"modrelay/internal/submissions"
)

// Source is the store surface the adapter reads.
type Source interface {
	Snapshot(ctx context.Context) (submissions.Snapshot, error)
	ChangesSince(ctx context.Context, cursor int64, limit int) (submissions.ChangeBatch, error)
}

// Checkpoint persists the change log cursor between process runs.
type Checkpoint interface {
	LoadCursor(ctx context.Context, name string) (int64, bool, error)
	SaveCursor(ctx context.Context, name string, seq int64) error
}

// Handler consumes events. Returning an error ends the session without
// advancing the cursor past the failed event.
type Handler interface {
	HandleEvent(ctx context.Context, event submissions.ChangeEvent) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, event submissions.ChangeEvent) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event submissions.ChangeEvent) error {
	return f(ctx, event)
}

// SessionInfo describes one subscription session.
type SessionInfo struct {
	ID       string
	Attempt  int
	Started  time.Time
	Replayed int
	Cursor   int64
}

// SessionObserver is notified at session boundaries. SessionHealthy fires
// once per session, after its first successful poll.
type SessionObserver interface {
	SessionStarted(ctx context.Context, info SessionInfo)
	SessionHealthy(ctx context.Context, info SessionInfo)
	SessionEnded(ctx context.Context, info SessionInfo, err error)
}

// Options configures an Adapter.
type Options struct {
	Name             string
	PollInterval     time.Duration
	BatchSize        int
	RetryInterval    time.Duration
	MaxRetryInterval time.Duration
	Checkpoint       Checkpoint
	Observer         SessionObserver
	Logger           *slog.Logger
}

// Status is a point-in-time view of the adapter for health reporting.
type Status struct {
	Connected   bool      `json:"connected"`
	SessionID   string    `json:"session_id,omitempty"`
	Sessions    int       `json:"sessions"`
	Cursor      int64     `json:"cursor"`
	LastEventAt time.Time `json:"last_event_at,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

// Adapter watches a Source and pushes change events to a Handler.
type Adapter struct {
	source Source
	opts   Options
	logger *slog.Logger

	mu        sync.Mutex
	cursor    int64
	hasCursor bool
	status    Status
}

const (
	defaultName             = "relay"
	defaultPollInterval     = time.Second
	defaultBatchSize        = 200
	defaultRetryInterval    = 5 * time.Second
	defaultMaxRetryInterval = time.Minute
)

// New constructs an adapter over source.
func New(source Source, opts Options) *Adapter {
	if opts.Name == "" {
		opts.Name = defaultName
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaultRetryInterval
	}
	if opts.MaxRetryInterval < opts.RetryInterval {
		opts.MaxRetryInterval = max(opts.RetryInterval, defaultMaxRetryInterval)
	}
	return &Adapter{
		source: source,
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "feed"),
	}
}

// Status returns the current adapter state.
func (a *Adapter) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Run opens sessions until ctx is cancelled and then returns ctx.Err().
func (a *Adapter) Run(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.New("feed handler is nil")
	}
	delay := a.opts.RetryInterval
	attempt := 0
	for {
		attempt++
		healthy, err := a.session(ctx, handler, attempt)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if healthy {
			delay = a.opts.RetryInterval
			attempt = 1
		}
		logging.WarnWithContext(a.logger, "change feed session ended; reconnecting", "feed_session_failed",
			logging.Error(err),
			logging.Int("attempt", attempt),
			logging.Duration("retry_in", delay),
			logging.String(logging.FieldErrorHint, "check the submissions database is reachable"),
			logging.String(logging.FieldImpact, "status notifications are delayed until the feed reconnects"),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, a.opts.MaxRetryInterval)
	}
}

// session runs one subscription. healthy reports whether the session got
// past its snapshot and completed at least one poll.
func (a *Adapter) session(ctx context.Context, handler Handler, attempt int) (healthy bool, err error) {
	info := SessionInfo{ID: uuid.NewString(), Attempt: attempt, Started: time.Now()}
	ctx = logging.WithSessionID(ctx, info.ID)
	logger := logging.WithContext(ctx, a.logger)

	defer func() {
		a.mu.Lock()
		a.status.Connected = false
		if err != nil && ctx.Err() == nil {
			a.status.LastError = err.Error()
		}
		a.mu.Unlock()
		if a.opts.Observer != nil {
			a.opts.Observer.SessionEnded(ctx, info, err)
		}
	}()

	snap, err := a.source.Snapshot(ctx)
	if err != nil {
		return false, fmt.Errorf("snapshot: %w", err)
	}
	cursor, err := a.startCursor(ctx, snap.Cursor)
	if err != nil {
		return false, err
	}
	info.Cursor = cursor
	info.Replayed = len(snap.Submissions)

	a.mu.Lock()
	a.status.Connected = true
	a.status.SessionID = info.ID
	a.status.Sessions++
	a.status.Cursor = cursor
	a.mu.Unlock()

	logger.Info("change feed session started",
		logging.Int("attempt", attempt),
		logging.Int("replayed", info.Replayed),
		logging.Int64("cursor", cursor),
		logging.String(logging.FieldEventType, "feed_session_started"),
	)
	if a.opts.Observer != nil {
		a.opts.Observer.SessionStarted(ctx, info)
	}

	for _, sub := range snap.Submissions {
		event := submissions.ChangeEvent{Type: submissions.ChangeAdded, Submission: sub, Replay: true}
		if err := handler.HandleEvent(ctx, event); err != nil {
			return false, fmt.Errorf("handle replay of %s: %w", sub.ID, err)
		}
	}

	for {
		batch, err := a.source.ChangesSince(ctx, cursor, a.opts.BatchSize)
		if err != nil {
			return healthy, fmt.Errorf("poll changes after %d: %w", cursor, err)
		}
		for _, event := range batch.Events {
			if err := handler.HandleEvent(ctx, event); err != nil {
				a.advance(ctx, event.Seq-1)
				return healthy, fmt.Errorf("handle change %d: %w", event.Seq, err)
			}
		}
		if batch.Cursor != cursor {
			cursor = batch.Cursor
			a.advance(ctx, cursor)
		}
		if len(batch.Events) > 0 {
			a.mu.Lock()
			a.status.LastEventAt = time.Now()
			a.mu.Unlock()
		}
		if !healthy {
			healthy = true
			if a.opts.Observer != nil {
				a.opts.Observer.SessionHealthy(ctx, info)
			}
		}
		if batch.More {
			if ctx.Err() != nil {
				return healthy, ctx.Err()
			}
			continue
		}
		select {
		case <-ctx.Done():
			return healthy, ctx.Err()
		case <-time.After(a.opts.PollInterval):
		}
	}
}

// startCursor picks where polling resumes: the cursor kept from an earlier
// session, then a saved checkpoint, then the snapshot position.
func (a *Adapter) startCursor(ctx context.Context, snapshotCursor int64) (int64, error) {
	a.mu.Lock()
	cursor, ok := a.cursor, a.hasCursor
	a.mu.Unlock()
	if ok {
		return cursor, nil
	}
	if a.opts.Checkpoint != nil {
		saved, found, err := a.opts.Checkpoint.LoadCursor(ctx, a.opts.Name)
		if err != nil {
			return 0, fmt.Errorf("load checkpoint: %w", err)
		}
		if found && saved <= snapshotCursor {
			a.setCursor(saved)
			return saved, nil
		}
	}
	a.advance(ctx, snapshotCursor)
	return snapshotCursor, nil
}

func (a *Adapter) setCursor(cursor int64) {
	a.mu.Lock()
	a.cursor = cursor
	a.hasCursor = true
	a.status.Cursor = cursor
	a.mu.Unlock()
}

func (a *Adapter) advance(ctx context.Context, cursor int64) {
	if cursor < 0 {
		cursor = 0
	}
	a.setCursor(cursor)
	if a.opts.Checkpoint == nil {
		return
	}
	// Saved with a detached context so a cancelled session still records progress.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := a.opts.Checkpoint.SaveCursor(saveCtx, a.opts.Name, cursor); err != nil {
		logging.WarnWithContext(a.logger, "feed checkpoint save failed", "feed_checkpoint_failed",
			logging.Error(err),
			logging.Int64("cursor", cursor),
			logging.String(logging.FieldImpact, "a restart may replay or skip recent changes"),
		)
	}
}
