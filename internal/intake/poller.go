package intake

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"modrelay/internal/logging"
	"modrelay/internal/metrics"
	"modrelay/internal/notifications"
	"modrelay/internal/submissions"
	"modrelay/internal/telegram"
)

// Bot is the Telegram surface the poller uses.
type Bot interface {
	GetUpdates(ctx context.Context, offset int64, pollTimeout time.Duration) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID, text string) (*telegram.Message, error)
}

// Store is the submission store surface the poller uses.
type Store interface {
	Submit(ctx context.Context, content, submittedBy string) (*submissions.Submission, error)
	RegisterUser(ctx context.Context, user submissions.User) (bool, error)
	GetUser(ctx context.Context, chatID string) (*submissions.User, error)
	UserStats(ctx context.Context, chatID string) (submissions.UserStats, error)
}

// Result labels how an update was handled.
type Result string

const (
	ResultSubmitted  Result = "submitted"
	ResultRegistered Result = "registered"
	ResultReturning  Result = "returning"
	ResultHistory    Result = "history"
	ResultIgnored    Result = "ignored"
	ResultFailed     Result = "failed"
)

// Options configures a Poller.
type Options struct {
	PollTimeout   time.Duration
	RetryInterval time.Duration
	Alerts        notifications.Service
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

// Poller long-polls the Bot API for incoming messages.
type Poller struct {
	bot    Bot
	store  Store
	opts   Options
	logger *slog.Logger

	mu     sync.Mutex
	offset int64
}

// New constructs a poller.
func New(bot Bot, store Store, opts Options) *Poller {
	if opts.PollTimeout < 0 {
		opts.PollTimeout = 0
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 5 * time.Second
	}
	if opts.Alerts == nil {
		opts.Alerts = notifications.NewService(nil)
	}
	return &Poller{
		bot:    bot,
		store:  store,
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "intake"),
	}
}

// Offset returns the next update id the poller will request.
func (p *Poller) Offset() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offset
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("intake polling started",
		logging.Duration("poll_timeout", p.opts.PollTimeout),
		logging.String(logging.FieldEventType, "intake_started"),
	)
	delay := p.opts.RetryInterval
	for {
		updates, err := p.bot.GetUpdates(ctx, p.Offset(), p.opts.PollTimeout)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			logging.WarnWithContext(p.logger, "telegram getUpdates failed; retrying", "intake_poll_failed",
				logging.Error(err),
				logging.Duration("retry_in", delay),
				logging.String(logging.FieldErrorHint, "check telegram.bot_token and network access to the Bot API"),
				logging.String(logging.FieldImpact, "new submissions are not accepted until polling resumes"),
			)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			delay = min(delay*2, time.Minute)
			continue
		}
		delay = p.opts.RetryInterval

		for _, update := range updates {
			p.HandleUpdate(ctx, update)
			p.mu.Lock()
			if update.UpdateID >= p.offset {
				p.offset = update.UpdateID + 1
			}
			p.mu.Unlock()
		}
	}
}

// HandleUpdate processes one update and returns how it was handled.
// Failures are logged and answered; they never stop polling.
func (p *Poller) HandleUpdate(ctx context.Context, update telegram.Update) Result {
	result := p.handle(ctx, update)
	p.opts.Metrics.ObserveIntake(string(result))
	return result
}

func (p *Poller) handle(ctx context.Context, update telegram.Update) Result {
	msg := update.Message
	if msg == nil || msg.Text == "" {
		return ResultIgnored
	}
	chatID := msg.Chat.IDString()
	sender := chatID
	if msg.From != nil {
		if msg.From.IsBot {
			return ResultIgnored
		}
		sender = strconv.FormatInt(msg.From.ID, 10)
	}
	logger := p.logger.With(logging.String(logging.FieldRecipient, chatID))

	switch command(msg.Text) {
	case "/start":
		return p.handleStart(ctx, logger, chatID, sender, msg.From)
	case "/history":
		return p.handleHistory(ctx, logger, chatID, sender)
	case "":
	default:
		return ResultIgnored
	}

	address, ok := NormalizeAddress(msg.Text)
	if !ok {
		return ResultIgnored
	}
	sub, err := p.store.Submit(ctx, address, sender)
	if err != nil {
		logging.ErrorWithContext(logger, "store submission failed", "intake_submit_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the submissions database"),
		)
		p.reply(ctx, logger, chatID, submitFailure)
		return ResultFailed
	}
	logging.WithContext(logging.WithSubmissionID(ctx, sub.ID), logger).Info("submission received",
		logging.String(logging.FieldEventType, "submission_received"),
	)
	p.reply(ctx, logger, chatID, receivedMessage(address))
	if err := p.opts.Alerts.NotifySubmissionReceived(ctx, *sub); err != nil {
		logging.WarnWithContext(logger, "moderator alert failed", "alert_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "moderators were not told about the new submission"),
		)
	}
	return ResultSubmitted
}

func (p *Poller) handleStart(ctx context.Context, logger *slog.Logger, chatID, sender string, from *telegram.User) Result {
	user := submissions.User{ChatID: sender}
	if from != nil {
		user.Username = from.Username
		user.FirstName = from.FirstName
	}
	created, err := p.store.RegisterUser(ctx, user)
	if err != nil {
		logging.ErrorWithContext(logger, "register user failed", "intake_register_failed", logging.Error(err))
		return ResultFailed
	}
	if !created {
		p.reply(ctx, logger, chatID, welcomeBack)
		return ResultReturning
	}
	logger.Info("user registered", logging.String(logging.FieldEventType, "user_registered"))
	p.reply(ctx, logger, chatID, welcomeNew)
	return ResultRegistered
}

func (p *Poller) handleHistory(ctx context.Context, logger *slog.Logger, chatID, sender string) Result {
	user, err := p.store.GetUser(ctx, sender)
	if err != nil {
		logging.ErrorWithContext(logger, "load user failed", "intake_history_failed", logging.Error(err))
		return ResultFailed
	}
	if user == nil {
		p.reply(ctx, logger, chatID, noAccount)
		return ResultHistory
	}
	stats, err := p.store.UserStats(ctx, sender)
	if err != nil {
		logging.ErrorWithContext(logger, "load user stats failed", "intake_history_failed", logging.Error(err))
		return ResultFailed
	}
	p.reply(ctx, logger, chatID, historyMessage(stats))
	return ResultHistory
}

func (p *Poller) reply(ctx context.Context, logger *slog.Logger, chatID, text string) {
	if _, err := p.bot.SendMessage(ctx, chatID, text); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logging.WarnWithContext(logger, "telegram reply failed", "intake_reply_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the user may have blocked the bot"),
			logging.String(logging.FieldImpact, "user did not receive the reply"),
		)
	}
}
