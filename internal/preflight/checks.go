package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"modrelay/internal/config"
	"modrelay/internal/services"
	"modrelay/internal/submissions"
	"modrelay/internal/telegram"
)

// CheckTelegram verifies that the bot token is accepted by the Bot API.
// It uses a 10-second timeout and a single attempt.
func CheckTelegram(ctx context.Context, cfg *config.Config) Result {
	const name = "Telegram Bot API"

	if strings.TrimSpace(cfg.Telegram.BotToken) == "" {
		return Result{Name: name, Detail: "bot token missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	me, err := telegram.NewFromConfig(cfg).GetMe(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: summarizeTelegramError(err)}
	}
	detail := "authenticated"
	if me.Username != "" {
		detail = fmt.Sprintf("authenticated as @%s", me.Username)
	}
	if want := strings.TrimPrefix(strings.TrimSpace(cfg.Telegram.BotUsername), "@"); want != "" && !strings.EqualFold(want, me.Username) {
		return Result{Name: name, Detail: fmt.Sprintf("token belongs to @%s, expected @%s", me.Username, want)}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckNtfy verifies that the ntfy server answers for the configured topic.
func CheckNtfy(ctx context.Context, topic string) Result {
	const name = "ntfy"

	topic = strings.TrimRight(strings.TrimSpace(topic), "/")
	if topic == "" {
		return Result{Name: name, Detail: "missing topic"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, topic+"/json?poll=1&since=none", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%v)", err)}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%v)", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return Result{Name: name, Passed: true, Detail: "Reachable"}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Result{Name: name, Detail: "topic requires authentication"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%d)", resp.StatusCode)}
	}
}

// CheckDatabase opens the submissions database and runs its health check.
// A database that does not exist yet passes; the daemon creates it.
func CheckDatabase(ctx context.Context, path string) Result {
	const name = "Submissions database"

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (not created yet)", path)}
	}

	store, err := submissions.OpenPath(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	defer store.Close()

	health, err := store.CheckHealth(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if len(health.MissingTables) > 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (missing tables: %s)", path, strings.Join(health.MissingTables, ", "))}
	}
	if !health.IntegrityCheck {
		return Result{Name: name, Detail: fmt.Sprintf("%s (integrity check failed)", path)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (schema v%d, %d submissions, change seq %d)",
		path, health.SchemaVersion, health.TotalSubmissions, health.LatestSeq)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// summarizeTelegramError produces a human-readable summary for Bot API check failures.
func summarizeTelegramError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (Bot API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (Bot API unreachable)"
	}
	if errors.Is(err, services.ErrConfiguration) {
		return "bot token rejected (401 Unauthorized)"
	}
	return err.Error()
}
