package daemonrun

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"modrelay/internal/testsupport"
)

func TestEnsureCurrentLogPointer(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "modrelay-a.log")
	second := filepath.Join(dir, "modrelay-b.log")
	for _, path := range []string{first, second} {
		if err := os.WriteFile(path, []byte(filepath.Base(path)), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("first pointer: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("second pointer: %v", err)
	}
	content, err := os.ReadFile(filepath.Join(dir, "modrelay.log"))
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if string(content) != "modrelay-b.log" {
		t.Fatalf("pointer should follow the latest log, got %q", content)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modrelay.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(content)) == "" {
		t.Fatal("expected pid in file")
	}
}

func TestRunRequiresBotToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Telegram.BotToken = ""
	if err := Run(context.Background(), cfg, Options{}); err == nil {
		t.Fatal("expected error without bot token")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	cfg.Telegram.APIURL = "http://127.0.0.1:1"
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Run(ctx, cfg, Options{LogLevel: "error"}); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.DataDir, "modrelay.pid")); !os.IsNotExist(err) {
		t.Fatal("expected pid file removed on shutdown")
	}
}
