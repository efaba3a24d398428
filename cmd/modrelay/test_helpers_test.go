package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"modrelay/internal/config"
	"modrelay/internal/daemon"
	"modrelay/internal/submissions"
	"modrelay/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	homeDir := filepath.Join(testsupport.BaseDir(cfg), "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("MODRELAY_API_TOKEN", "")
	t.Setenv("NTFY_TOPIC", "")
	t.Setenv("BOT_USERNAME", "")

	// Port 1 refuses connections, so commands see the daemon as stopped.
	cfg.Paths.APIBind = "127.0.0.1:1"

	env := &cliTestEnv{
		cfg:        cfg,
		configPath: filepath.Join(testsupport.BaseDir(cfg), "modrelay.toml"),
	}
	env.writeConfig(t)
	return env
}

func (e *cliTestEnv) writeConfig(t *testing.T) {
	t.Helper()
	content, err := toml.Marshal(e.cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(e.configPath, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// startDaemon runs a daemon with a recording channel and points the config
// at its API listener.
func (e *cliTestEnv) startDaemon(t *testing.T) (*daemon.Daemon, *recordingChannel) {
	t.Helper()
	store, err := submissions.Open(e.cfg)
	if err != nil {
		t.Fatalf("submissions.Open: %v", err)
	}
	channel := &recordingChannel{}
	d, err := daemon.New(e.cfg, store, nil, daemon.Dependencies{Channel: channel})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon start: %v", err)
	}
	e.cfg.Paths.APIBind = "127.0.0.1:0"
	srv := daemon.NewAPIServer(e.cfg, d, nil)
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("api start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		srv.Stop()
		d.Close()
	})

	e.cfg.Paths.APIBind = srv.Addr()
	e.writeConfig(t)
	return d, channel
}

type recordingChannel struct {
	mu     sync.Mutex
	bodies map[string][]string
}

func (c *recordingChannel) Send(_ context.Context, recipient, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bodies == nil {
		c.bodies = make(map[string][]string)
	}
	c.bodies[recipient] = append(c.bodies[recipient], body)
	return nil
}

func (c *recordingChannel) count(recipient string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bodies[recipient])
}

func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func decodeOutput[T any](t *testing.T, output string) T {
	t.Helper()
	var out T
	if err := json.Unmarshal([]byte(output), &out); err != nil {
		t.Fatalf("decode output %q: %v", output, err)
	}
	return out
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
