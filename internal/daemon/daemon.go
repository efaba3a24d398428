package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"modrelay/internal/config"
	"modrelay/internal/intake"
	"modrelay/internal/logging"
	"modrelay/internal/metrics"
	"modrelay/internal/notifications"
	"modrelay/internal/relay"
	"modrelay/internal/submissions"
	"modrelay/internal/telegram"
)

const (
	maintenanceInterval = time.Minute
	pruneInterval       = time.Hour
)

// Dependencies are optional collaborators. Zero values are built from config.
type Dependencies struct {
	Channel notifications.Channel
	Bot     intake.Bot
	Alerts  notifications.Service
	Metrics *metrics.Metrics
	LogPath string
}

// Daemon runs the relay, the intake poller, and maintenance, and enforces
// single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *submissions.Store
	relay   *relay.Relay
	intake  *intake.Poller
	alerts  notifications.Service
	metrics *metrics.Metrics
	logPath string

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	mu        sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startedAt time.Time
	lastPrune PruneResult
}

// Status represents daemon runtime information.
type Status struct {
	Running              bool                       `json:"running"`
	PID                  int                        `json:"pid"`
	StartedAt            time.Time                  `json:"started_at,omitempty"`
	DatabasePath         string                     `json:"database_path"`
	LockFilePath         string                     `json:"lock_path"`
	Relay                relay.Status               `json:"relay"`
	Submissions          map[submissions.Status]int `json:"submissions"`
	PendingNotifications int                        `json:"pending_notifications"`
	IntakeEnabled        bool                       `json:"intake_enabled"`
	IntakeOffset         int64                      `json:"intake_offset,omitempty"`
	LastPrune            PruneResult                `json:"last_prune"`
	Error                string                     `json:"error,omitempty"`
}

// PruneResult reports one retention pass.
type PruneResult struct {
	At             time.Time `json:"at,omitempty"`
	ChangesRemoved int64     `json:"changes_removed"`
	LogsRemoved    int       `json:"logs_removed"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *submissions.Store, logger *slog.Logger, deps Dependencies) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and submission store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	var client *telegram.Client
	if deps.Channel == nil || (deps.Bot == nil && cfg.Telegram.IntakeEnabled) {
		client = telegram.NewFromConfig(cfg)
	}
	channel := deps.Channel
	if channel == nil {
		channel = client
	}
	alerts := deps.Alerts
	if alerts == nil {
		alerts = notifications.NewService(cfg)
	}

	r, err := relay.New(cfg, relay.Dependencies{
		Store:   store,
		Channel: channel,
		Alerts:  alerts,
		Metrics: deps.Metrics,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create relay: %w", err)
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		relay:    r,
		alerts:   alerts,
		metrics:  deps.Metrics,
		logPath:  deps.LogPath,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}

	if cfg.Telegram.IntakeEnabled {
		bot := deps.Bot
		if bot == nil {
			bot = client
		}
		retry, _ := cfg.FeedRetryInterval()
		d.intake = intake.New(bot, store, intake.Options{
			PollTimeout:   cfg.TelegramPollTimeout(),
			RetryInterval: retry,
			Alerts:        alerts,
			Metrics:       deps.Metrics,
			Logger:        logger,
		})
	}
	return d, nil
}

// Start acquires the daemon lock and launches the background loops.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another modrelay daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.cancel = cancel
	d.startedAt = time.Now()
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.relay.Run(runCtx); err != nil {
			logging.ErrorWithContext(d.logger, "relay stopped with error", "relay_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "restart the daemon; check the submissions database"),
			)
			if alertErr := d.alerts.NotifyError(context.WithoutCancel(runCtx), err, "relay"); alertErr != nil {
				d.logger.Debug("relay error alert failed", logging.Error(alertErr))
			}
		}
	}()

	if d.intake != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			_ = d.intake.Run(runCtx)
		}()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.maintain(runCtx)
	}()

	d.running.Store(true)
	d.logger.Info("modrelay daemon started",
		logging.String("lock", d.lockPath),
		logging.Bool("intake_enabled", d.intake != nil),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	d.wg.Wait()

	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
			logging.String(logging.FieldImpact, "next start may report another instance"),
		)
	}
	d.running.Store(false)
	d.logger.Info("modrelay daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Store exposes the submission store for the API layer.
func (d *Daemon) Store() *submissions.Store {
	return d.store
}

// Metrics returns the daemon metrics registry, which may be nil.
func (d *Daemon) Metrics() *metrics.Metrics {
	return d.metrics
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	d.mu.Lock()
	started := d.startedAt
	lastPrune := d.lastPrune
	d.mu.Unlock()

	status := Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		DatabasePath:  d.store.Path(),
		LockFilePath:  d.lockPath,
		Relay:         d.relay.Status(),
		IntakeEnabled: d.intake != nil,
		LastPrune:     lastPrune,
	}
	if status.Running {
		status.StartedAt = started
	}
	if d.intake != nil {
		status.IntakeOffset = d.intake.Offset()
	}

	var errs []string
	stats, err := d.store.Stats(ctx)
	if err != nil {
		errs = append(errs, err.Error())
	}
	status.Submissions = stats
	pending, err := d.store.PendingNotifications(ctx)
	if err != nil {
		errs = append(errs, err.Error())
	}
	status.PendingNotifications = pending
	status.Error = strings.Join(errs, "; ")
	return status
}

// Review applies a moderator decision. Pending submissions are reviewed;
// terminal ones are only changed when correct is set.
func (d *Daemon) Review(ctx context.Context, id string, status submissions.Status, moderator string, correct bool) (*submissions.Submission, error) {
	var (
		sub *submissions.Submission
		err error
	)
	if correct {
		sub, err = d.store.Correct(ctx, id, status, moderator)
	} else {
		sub, err = d.store.Review(ctx, id, status, moderator)
	}
	if err != nil {
		return sub, err
	}
	logging.WithContext(logging.WithSubmissionID(ctx, id), d.logger).Info("submission reviewed",
		logging.String("status", string(status)),
		logging.String("moderator", moderator),
		logging.Bool("correction", correct),
		logging.String(logging.FieldEventType, "submission_reviewed"),
	)
	return sub, nil
}

// TestNotification sends a test alert through the configured ntfy topic.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.alerts.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Prune applies change log and log file retention once.
func (d *Daemon) Prune(ctx context.Context) (PruneResult, error) {
	result := PruneResult{At: time.Now()}
	if retention := d.cfg.ChangeRetention(); retention > 0 {
		removed, err := d.store.PruneChanges(ctx, time.Now().Add(-retention))
		if err != nil {
			return result, err
		}
		result.ChangesRemoved = removed
	}
	keep := []string{}
	if d.logPath != "" {
		keep = append(keep, d.logPath)
	}
	result.LogsRemoved = logging.PruneLogs(d.logger, d.cfg.Paths.LogDir, "modrelay-*.log", d.cfg.Logging.RetentionDays, keep...)

	d.mu.Lock()
	d.lastPrune = result
	d.mu.Unlock()
	if result.ChangesRemoved > 0 || result.LogsRemoved > 0 {
		d.logger.Info("retention pass complete",
			logging.Int64("changes_removed", result.ChangesRemoved),
			logging.Int("logs_removed", result.LogsRemoved),
			logging.String(logging.FieldEventType, "retention_pruned"),
		)
	}
	return result, nil
}

func (d *Daemon) maintain(ctx context.Context) {
	d.runMaintenance(ctx, true)
	lastPrune := time.Now()
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune := time.Since(lastPrune) >= pruneInterval
			if prune {
				lastPrune = time.Now()
			}
			d.runMaintenance(ctx, prune)
		}
	}
}

func (d *Daemon) runMaintenance(ctx context.Context, prune bool) {
	if prune {
		if _, err := d.Prune(ctx); err != nil && ctx.Err() == nil {
			logging.WarnWithContext(d.logger, "retention pass failed", "retention_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the submissions database"),
				logging.String(logging.FieldImpact, "change log keeps growing until the next pass"),
			)
		}
	}
	d.refreshGauges(ctx)
}

func (d *Daemon) refreshGauges(ctx context.Context) {
	if d.metrics == nil {
		return
	}
	stats, err := d.store.Stats(ctx)
	if err != nil {
		return
	}
	counts := make(map[string]int, len(stats))
	for _, status := range submissions.AllStatuses() {
		counts[string(status)] = stats[status]
	}
	d.metrics.SetSubmissionCounts(counts)
}
