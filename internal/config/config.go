package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Telegram contains configuration for the Bot API client and the intake poller.
type Telegram struct {
	BotToken          string  `toml:"bot_token"`
	BotUsername       string  `toml:"bot_username"`
	APIURL            string  `toml:"api_url"`
	RequestTimeout    int     `toml:"request_timeout"`
	SendRatePerSecond float64 `toml:"send_rate_per_second"`
	PollTimeout       int     `toml:"poll_timeout"`
	IntakeEnabled     bool    `toml:"intake_enabled"`
}

// Feed contains configuration for the submission change feed.
type Feed struct {
	PollIntervalMillis   int `toml:"poll_interval_ms"`
	BatchSize            int `toml:"batch_size"`
	RetryInterval        int `toml:"retry_interval"`
	MaxRetryInterval     int `toml:"max_retry_interval"`
	ChangeRetentionHours int `toml:"change_retention_hours"`
}

// Notifications contains configuration for status delivery and moderator alerts.
type Notifications struct {
	Workers        int    `toml:"workers"`
	QueueSize      int    `toml:"queue_size"`
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	NewSubmissions bool   `toml:"new_submissions"`
	FeedErrors     bool   `toml:"feed_errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for modrelay.
//
// Configuration sections by subsystem:
//   - Paths: database/log directories and the moderator API bind address
//   - Telegram: bot credentials, send throttle, and intake long polling
//   - Feed: change feed polling cadence and reconnect backoff
//   - Notifications: dispatcher pool sizing and ntfy moderator alerts
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Telegram      Telegram      `toml:"telegram"`
	Feed          Feed          `toml:"feed"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("modrelay.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the submissions database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "submissions.db")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "modrelay.lock")
}

// FeedPollInterval returns the change feed polling cadence.
func (c *Config) FeedPollInterval() time.Duration {
	return time.Duration(c.Feed.PollIntervalMillis) * time.Millisecond
}

// FeedRetryInterval returns the initial and maximum reconnect delays.
func (c *Config) FeedRetryInterval() (time.Duration, time.Duration) {
	return time.Duration(c.Feed.RetryInterval) * time.Second, time.Duration(c.Feed.MaxRetryInterval) * time.Second
}

// ChangeRetention returns how long change-log rows are kept before pruning.
func (c *Config) ChangeRetention() time.Duration {
	return time.Duration(c.Feed.ChangeRetentionHours) * time.Hour
}

// TelegramRequestTimeout returns the per-request timeout for Bot API calls,
// excluding the long-poll wait.
func (c *Config) TelegramRequestTimeout() time.Duration {
	return time.Duration(c.Telegram.RequestTimeout) * time.Second
}

// TelegramPollTimeout returns how long getUpdates may hold a connection open.
func (c *Config) TelegramPollTimeout() time.Duration {
	return time.Duration(c.Telegram.PollTimeout) * time.Second
}

// NotificationRequestTimeout returns the ntfy request timeout.
func (c *Config) NotificationRequestTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
