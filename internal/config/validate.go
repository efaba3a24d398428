package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTelegram(); err != nil {
		return err
	}
	if err := c.validateFeed(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// RequireBotToken reports a configuration error when no bot token is available.
// Offline commands (listing, reviewing) do not need it; the daemon does.
func (c *Config) RequireBotToken() error {
	if c.Telegram.BotToken != "" {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	return fmt.Errorf("telegram.bot_token is required. Set TELEGRAM_BOT_TOKEN env var or edit %s (create with 'modrelay config init')", defaultPath)
}

func (c *Config) validateTelegram() error {
	parsed, err := url.Parse(c.Telegram.APIURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("telegram.api_url must be an absolute URL, got %q", c.Telegram.APIURL)
	}
	if c.Telegram.SendRatePerSecond <= 0 {
		return errors.New("telegram.send_rate_per_second must be positive")
	}
	if c.Telegram.PollTimeout < 0 {
		return errors.New("telegram.poll_timeout must not be negative")
	}
	return ensurePositiveMap(map[string]int{
		"telegram.request_timeout": c.Telegram.RequestTimeout,
	})
}

func (c *Config) validateFeed() error {
	if err := ensurePositiveMap(map[string]int{
		"feed.poll_interval_ms":       c.Feed.PollIntervalMillis,
		"feed.batch_size":             c.Feed.BatchSize,
		"feed.retry_interval":         c.Feed.RetryInterval,
		"feed.max_retry_interval":     c.Feed.MaxRetryInterval,
		"feed.change_retention_hours": c.Feed.ChangeRetentionHours,
	}); err != nil {
		return err
	}
	if c.Feed.MaxRetryInterval < c.Feed.RetryInterval {
		return errors.New("feed.max_retry_interval must be at least feed.retry_interval")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if err := ensurePositiveMap(map[string]int{
		"notifications.workers":         c.Notifications.Workers,
		"notifications.queue_size":      c.Notifications.QueueSize,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if topic := c.Notifications.NtfyTopic; topic != "" {
		if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
			return fmt.Errorf("notifications.ntfy_topic must be a full URL, got %q", topic)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
