package testsupport

import (
	"path/filepath"
	"testing"

	"modrelay/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Telegram.BotToken = "123456:test-token"
	cfgVal.Telegram.IntakeEnabled = false
	cfgVal.Feed.PollIntervalMillis = 10
	cfgVal.Feed.RetryInterval = 1
	cfgVal.Feed.MaxRetryInterval = 1
	cfgVal.Notifications.NewSubmissions = false
	cfgVal.Notifications.FeedErrors = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithTelegramAPI points the Bot API client at a test server.
func WithTelegramAPI(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Telegram.APIURL = url
	}
}

// WithNtfyTopic enables ntfy moderator alerts against the given topic URL.
func WithNtfyTopic(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = url
		b.cfg.Notifications.NewSubmissions = true
		b.cfg.Notifications.FeedErrors = true
	}
}

// WithAPIToken requires bearer authentication on the moderator API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
