package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"modrelay/internal/config"
	"modrelay/internal/submissions"
)

var errDaemonUnreachable = errors.New("daemon API unreachable")

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	httpClient *http.Client
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) JSONMode() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// withStore opens the submission database for the duration of fn. SQLite
// allows this alongside a running daemon; the daemon picks up changes made
// here through the change log.
func (c *commandContext) withStore(fn func(*submissions.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := submissions.Open(cfg)
	if err != nil {
		return fmt.Errorf("open submissions store: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func (c *commandContext) apiBaseURL() (string, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return "", errors.New("paths.api_bind is empty; the daemon API is disabled")
	}
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return "", fmt.Errorf("parse paths.api_bind %q: %w", bind, err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port), nil
}

// callAPI sends a request to the daemon API and decodes a JSON reply into out.
func (c *commandContext) callAPI(ctx context.Context, method, path string, out any) error {
	base, err := c.apiBaseURL()
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, base+path, nil)
	if err != nil {
		return err
	}
	if token := strings.TrimSpace(c.config.Paths.APIToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return fmt.Errorf("%w at %s; start it with `modrelay run`", errDaemonUnreachable, base)
		}
		return fmt.Errorf("%w: %v", errDaemonUnreachable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read api response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon api: %s", apiErr.Error)
		}
		return fmt.Errorf("daemon api: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode api response: %w", err)
	}
	return nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func defaultModerator() string {
	if name := strings.TrimSpace(os.Getenv("USER")); name != "" {
		return name
	}
	return "cli"
}
