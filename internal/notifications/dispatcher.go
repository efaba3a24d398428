package notifications

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"modrelay/internal/logging"
	"modrelay/internal/services"
	"modrelay/internal/telegram"
)

// Observer receives every delivery outcome.
type Observer func(job Job, outcome Outcome, elapsed time.Duration)

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	Marker   Marker
	Observer Observer
	Logger   *slog.Logger
}

// Dispatcher delivers jobs over a Channel.
type Dispatcher struct {
	channel  Channel
	marker   Marker
	observer Observer
	logger   *slog.Logger
}

// NewDispatcher returns a dispatcher sending through channel.
func NewDispatcher(channel Channel, opts DispatcherOptions) *Dispatcher {
	return &Dispatcher{
		channel:  channel,
		marker:   opts.Marker,
		observer: opts.Observer,
		logger:   logging.NewComponentLogger(opts.Logger, "dispatcher"),
	}
}

// Deliver attempts job exactly once. Errors never escape; the outcome
// reports what happened.
func (d *Dispatcher) Deliver(ctx context.Context, job Job) Outcome {
	start := time.Now()
	outcome := d.deliver(ctx, job)
	if d.observer != nil {
		d.observer(job, outcome, time.Since(start))
	}
	return outcome
}

func (d *Dispatcher) deliver(ctx context.Context, job Job) Outcome {
	ctx = logging.WithSubmissionID(ctx, job.SubmissionID)
	ctx = logging.WithCorrelationID(ctx, job.CorrelationID)
	logger := logging.WithContext(ctx, d.logger).With(logging.String(logging.FieldRecipient, job.Recipient))

	if ctx.Err() != nil {
		logger.Debug("delivery abandoned at shutdown", logging.String(logging.FieldEventType, "delivery_abandoned"))
		return OutcomeAbandoned
	}

	if d.marker != nil {
		claimed, err := d.marker.ClaimNotification(ctx, job.SubmissionID)
		if err != nil {
			logging.WarnWithContext(logger, "notification marker claim failed; delivery skipped", "marker_claim_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the submissions database is writable"),
				logging.String(logging.FieldImpact, "submitter was not told about the review outcome"),
			)
			return OutcomeSkipped
		}
		if !claimed {
			logger.Debug("notification already claimed; duplicate skipped",
				logging.String(logging.FieldEventType, "delivery_duplicate"),
			)
			return OutcomeDuplicate
		}
	}

	if err := d.channel.Send(ctx, job.Recipient, job.Body); err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			logger.Debug("delivery abandoned at shutdown", logging.String(logging.FieldEventType, "delivery_abandoned"))
			return OutcomeAbandoned
		}
		logging.WarnWithContext(logger, "notification delivery failed", "delivery_failed",
			logging.Error(err),
			logging.String("status", string(job.Status)),
			logging.String(logging.FieldErrorHint, deliveryHint(err)),
			logging.String(logging.FieldImpact, "submitter was not told about the review outcome"),
		)
		return OutcomeFailed
	}

	logger.Info("notification delivered",
		logging.String("status", string(job.Status)),
		logging.String(logging.FieldEventType, "delivery_succeeded"),
	)
	return OutcomeDelivered
}

func deliveryHint(err error) string {
	switch {
	case errors.Is(err, telegram.ErrRecipientUnreachable):
		return "recipient blocked the bot or the chat no longer exists"
	case errors.Is(err, telegram.ErrRateLimited):
		return "lower telegram.send_rate_per_second"
	case errors.Is(err, services.ErrConfiguration):
		return "check telegram.bot_token"
	case errors.Is(err, services.ErrTransient):
		return "Telegram or the network was unavailable; the message is not retried"
	default:
		return "check logs for details"
	}
}
