package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"modrelay/internal/config"
	"modrelay/internal/daemon"
	"modrelay/internal/logging"
	"modrelay/internal/metrics"
	"modrelay/internal/preflight"
	"modrelay/internal/submissions"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the modrelay daemon and blocks until SIGINT, SIGTERM, or
// cmdCtx cancellation.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.RequireBotToken(); err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("modrelay-%s.log", runID))

	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update modrelay.log link: %v\n", err)
	}

	pidPath := filepath.Join(cfg.Paths.DataDir, "modrelay.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	logPreflight(signalCtx, logger, cfg)

	store, err := submissions.Open(cfg)
	if err != nil {
		logger.Error("open submissions store", logging.Error(err))
		return err
	}

	d, err := daemon.New(cfg, store, logger, daemon.Dependencies{
		Metrics: metrics.New(),
		LogPath: logPath,
	})
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	apiServer := daemon.NewAPIServer(cfg, d, logger)
	if err := apiServer.Start(signalCtx); err != nil {
		logging.WarnWithContext(logger, "api server start failed", "api_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.api_bind is free"),
			logging.String(logging.FieldImpact, "moderator API and /metrics are unavailable"),
		)
	}
	defer apiServer.Stop()

	<-signalCtx.Done()
	logger.Info("modrelay daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// logPreflight records failing checks. None of them stop the daemon: the
// feed and intake loops retry on their own.
func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	results := preflight.RunAll(checkCtx, cfg)
	for _, failed := range preflight.Failed(results) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
			logging.String(logging.FieldErrorHint, "run modrelay doctor for details"),
			logging.String(logging.FieldImpact, "the daemon starts anyway and keeps retrying"),
		)
	}
	logger.Info("preflight complete",
		logging.Int("checks", len(results)),
		logging.Int("failed", len(preflight.Failed(results))),
		logging.String(logging.FieldEventType, "preflight_complete"),
	)
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "modrelay.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
