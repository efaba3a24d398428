package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"modrelay/internal/config"
)

func TestLoadDefaultConfigExpandsPathsAndReadsEnv(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("TELEGRAM_BOT_TOKEN", " 123:abc ")
	t.Setenv("MODRELAY_API_TOKEN", "")
	t.Setenv("NTFY_TOPIC", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if want := filepath.Join(tempHome, ".config", "modrelay", "config.toml"); resolved != want {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, want)
	}

	wantData := filepath.Join(tempHome, ".local", "share", "modrelay")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "submissions.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Telegram.BotToken != "123:abc" {
		t.Fatalf("expected trimmed bot token from env, got %q", cfg.Telegram.BotToken)
	}
	if cfg.Telegram.APIURL != "https://api.telegram.org" {
		t.Fatalf("unexpected api url: %q", cfg.Telegram.APIURL)
	}
	if !cfg.Telegram.IntakeEnabled {
		t.Fatal("expected intake enabled by default")
	}
	if cfg.FeedPollInterval().Seconds() != 1 {
		t.Fatalf("unexpected poll interval: %s", cfg.FeedPollInterval())
	}
	initial, max := cfg.FeedRetryInterval()
	if initial.Seconds() != 5 || max.Seconds() != 60 {
		t.Fatalf("unexpected retry intervals: %s %s", initial, max)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "modrelay.toml")

	type payload struct {
		Telegram struct {
			BotToken    string `toml:"bot_token"`
			BotUsername string `toml:"bot_username"`
			APIURL      string `toml:"api_url"`
		} `toml:"telegram"`
		Feed struct {
			PollIntervalMillis int `toml:"poll_interval_ms"`
		} `toml:"feed"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.Telegram.BotToken = "file-token"
	custom.Telegram.BotUsername = "@relay_bot"
	custom.Telegram.APIURL = "https://bot.example.com/"
	custom.Feed.PollIntervalMillis = 250
	custom.Logging.Format = "JSON"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Telegram.BotToken != "file-token" {
		t.Fatalf("expected file token to win over env, got %q", cfg.Telegram.BotToken)
	}
	if cfg.Telegram.BotUsername != "relay_bot" {
		t.Fatalf("expected bot username without @, got %q", cfg.Telegram.BotUsername)
	}
	if cfg.Telegram.APIURL != "https://bot.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Telegram.APIURL)
	}
	if cfg.Feed.PollIntervalMillis != 250 {
		t.Fatalf("expected poll interval 250, got %d", cfg.Feed.PollIntervalMillis)
	}
	if cfg.Feed.BatchSize != config.Default().Feed.BatchSize {
		t.Fatalf("expected default batch size, got %d", cfg.Feed.BatchSize)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected normalized log format, got %q", cfg.Logging.Format)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "modrelay.toml")
	if err := os.WriteFile(configPath, []byte("[feed]\npoll_interval = 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown key to fail parsing")
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "TELEGRAM_BOT_TOKEN") {
		t.Fatalf("sample config missing bot token hint: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.DataDir, "modrelay") {
		t.Fatalf("expected data dir to contain modrelay, got %q", cfg.Paths.DataDir)
	}
	if cfg.Feed.BatchSize != config.Default().Feed.BatchSize {
		t.Fatalf("sample batch size drifted from defaults: %d", cfg.Feed.BatchSize)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero poll interval", func(c *config.Config) { c.Feed.PollIntervalMillis = 0 }},
		{"zero batch", func(c *config.Config) { c.Feed.BatchSize = 0 }},
		{"max retry below initial", func(c *config.Config) { c.Feed.MaxRetryInterval = 1 }},
		{"no workers", func(c *config.Config) { c.Notifications.Workers = 0 }},
		{"bare ntfy topic", func(c *config.Config) { c.Notifications.NtfyTopic = "relay-alerts" }},
		{"send rate", func(c *config.Config) { c.Telegram.SendRatePerSecond = 0 }},
		{"relative api url", func(c *config.Config) { c.Telegram.APIURL = "api.telegram.org" }},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }},
		{"log level", func(c *config.Config) { c.Logging.Level = "trace" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestRequireBotToken(t *testing.T) {
	cfg := config.Default()
	if err := cfg.RequireBotToken(); err == nil || !strings.Contains(err.Error(), "TELEGRAM_BOT_TOKEN") {
		t.Fatalf("expected bot token error, got %v", err)
	}
	cfg.Telegram.BotToken = "123:abc"
	if err := cfg.RequireBotToken(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
