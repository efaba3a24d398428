package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"modrelay/internal/config"
	"modrelay/internal/logging"
)

func tempLogPath(t *testing.T) (string, func() string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "relay.log")
	read := func() string {
		content, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("read log file: %v", err)
		}
		return string(content)
	}
	return logPath, read
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	logPath := filepath.Join(t.TempDir(), "logs", "modrelay.log")

	logger, err := logging.NewFromConfig(&cfg, logPath)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("relay started", logging.String("session_id", "abc"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "relay started") || !strings.Contains(string(content), "session_id=abc") {
		t.Fatalf("unexpected log content %q", content)
	}
}

func TestConsoleLoggerFormatsComponentAndQuotes(t *testing.T) {
	logPath, read := tempLogPath(t)
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "dispatcher").Warn("delivery failed",
		logging.String(logging.FieldRecipient, "u1"),
		logging.String("reason", "bot was blocked"),
	)
	logger.Debug("hidden debug line")

	content := read()
	if !strings.Contains(content, "WARN dispatcher: delivery failed") {
		t.Fatalf("expected component prefix, got %q", content)
	}
	if !strings.Contains(content, `reason="bot was blocked"`) {
		t.Fatalf("expected quoted value, got %q", content)
	}
	if strings.Contains(content, "hidden debug line") {
		t.Fatalf("debug line should be filtered at info level: %q", content)
	}
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information at info level, got %q", content)
	}
	if strings.Contains(content, "\x1b[") {
		t.Fatalf("file output must not be colourised: %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath, read := tempLogPath(t)
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("with caller")
	if content := read(); !strings.Contains(content, "logger_test.go:") {
		t.Fatalf("expected caller information, got %q", content)
	}
}

func TestJSONLoggerUsesShortKeys(t *testing.T) {
	logPath, read := tempLogPath(t)
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := logging.WithSubmissionID(context.Background(), "s1")
	ctx = logging.WithCorrelationID(ctx, "c1")
	logging.WithContext(ctx, logger).Info("job queued")

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(read())), &entry); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if entry["level"] != "info" || entry["msg"] != "job queued" {
		t.Fatalf("unexpected entry %#v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key, got %#v", entry)
	}
	if entry[logging.FieldSubmissionID] != "s1" || entry[logging.FieldCorrelationID] != "c1" {
		t.Fatalf("expected context fields, got %#v", entry)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath, read := tempLogPath(t)
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "feed session ended", "feed_session_failed")

	content := read()
	for _, want := range []string{"event_type=feed_session_failed", "error_hint=", "impact="} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in %q", want, content)
		}
	}
}

func TestPruneLogsRemovesOnlyExpiredFiles(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "modrelay-old.log")
	current := filepath.Join(dir, "modrelay-current.log")
	fresh := filepath.Join(dir, "modrelay-fresh.log")
	other := filepath.Join(dir, "notes.txt")
	for _, path := range []string{old, current, fresh, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	stale := time.Now().AddDate(0, 0, -10)
	for _, path := range []string{old, current, other} {
		if err := os.Chtimes(path, stale, stale); err != nil {
			t.Fatalf("chtimes %s: %v", path, err)
		}
	}

	removed := logging.PruneLogs(logging.NewNop(), dir, "modrelay-*.log", 5, current)
	if removed != 1 {
		t.Fatalf("expected 1 file removed, got %d", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected %s removed", old)
	}
	for _, path := range []string{current, fresh, other} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s kept: %v", path, err)
		}
	}
	if logging.PruneLogs(nil, dir, "*", 0) != 0 {
		t.Fatal("retention of 0 days must disable pruning")
	}
}
