package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"modrelay/internal/config"
	"modrelay/internal/services"
)

const (
	defaultAPIURL   = "https://api.telegram.org"
	userAgent       = "modrelay/0.1.0"
	maxMessageRunes = 4096
	maxResponseSize = 4 << 20
)

// Options configures a Client.
type Options struct {
	Token          string
	APIURL         string
	RequestTimeout time.Duration
	SendRate       float64
	HTTPClient     *http.Client
}

// Client calls the Telegram Bot API.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	http    *http.Client
	limiter *rate.Limiter

	mu           sync.Mutex
	blockedUntil time.Time
}

// New builds a Client from explicit options.
func New(opts Options) *Client {
	apiURL := strings.TrimRight(strings.TrimSpace(opts.APIURL), "/")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	limit := rate.Inf
	burst := 1
	if opts.SendRate > 0 {
		limit = rate.Limit(opts.SendRate)
		burst = max(1, int(opts.SendRate))
	}
	return &Client{
		baseURL: apiURL,
		token:   strings.TrimSpace(opts.Token),
		timeout: timeout,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// NewFromConfig builds a Client from the [telegram] configuration section.
func NewFromConfig(cfg *config.Config) *Client {
	return New(Options{
		Token:          cfg.Telegram.BotToken,
		APIURL:         cfg.Telegram.APIURL,
		RequestTimeout: cfg.TelegramRequestTimeout(),
		SendRate:       cfg.Telegram.SendRatePerSecond,
	})
}

// Send delivers body to the chat identified by recipient.
func (c *Client) Send(ctx context.Context, recipient, body string) error {
	_, err := c.SendMessage(ctx, recipient, body)
	return err
}

// SendMessage calls sendMessage. Bodies longer than the Bot API limit are truncated.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) (*Message, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return nil, services.Wrap(services.ErrValidation, "telegram", "sendMessage", "chat id is required", nil)
	}
	if strings.TrimSpace(text) == "" {
		return nil, services.Wrap(services.ErrValidation, "telegram", "sendMessage", "message text is required", nil)
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	var msg Message
	req := sendMessageRequest{ChatID: chatID, Text: truncateRunes(text, maxMessageRunes), DisableWebPagePreview: true}
	if err := c.call(ctx, "sendMessage", req, &msg, c.timeout); err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetMe returns the bot account the token belongs to.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var user User
	if err := c.call(ctx, "getMe", struct{}{}, &user, c.timeout); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUpdates long-polls for new messages. The request deadline is extended
// by the poll timeout so the server can hold the connection open.
func (c *Client) GetUpdates(ctx context.Context, offset int64, pollTimeout time.Duration) ([]Update, error) {
	seconds := int(pollTimeout / time.Second)
	if seconds < 0 {
		seconds = 0
	}
	var updates []Update
	req := getUpdatesRequest{Offset: offset, Timeout: seconds, AllowedUpdates: []string{"message"}}
	if err := c.call(ctx, "getUpdates", req, &updates, c.timeout+pollTimeout); err != nil {
		return nil, err
	}
	return updates, nil
}

func (c *Client) wait(ctx context.Context) error {
	c.mu.Lock()
	until := c.blockedUntil
	c.mu.Unlock()
	if delay := time.Until(until); delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return c.limiter.Wait(ctx)
}

func (c *Client) backOff(retryAfter time.Duration) {
	if retryAfter <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if until := time.Now().Add(retryAfter); until.After(c.blockedUntil) {
		c.blockedUntil = until
	}
}

func (c *Client) call(ctx context.Context, method string, params any, result any, timeout time.Duration) error {
	if c.token == "" {
		return services.Wrap(services.ErrConfiguration, "telegram", method, "bot token is not configured", nil)
	}
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := c.baseURL + "/bot" + c.token + "/" + method
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.Wrap(services.ErrTransient, "telegram", method, "request failed", redactToken(err, c.token))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return services.Wrap(services.ErrTransient, "telegram", method, "read response", err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{Method: method, StatusCode: resp.StatusCode, Description: strings.TrimSpace(string(raw))}
		}
		return services.Wrap(services.ErrExternal, "telegram", method, "decode response", err)
	}
	if !envelope.OK || resp.StatusCode >= 300 {
		apiErr := &APIError{Method: method, StatusCode: envelope.ErrorCode, Description: envelope.Description}
		if apiErr.StatusCode == 0 {
			apiErr.StatusCode = resp.StatusCode
		}
		if envelope.Parameters != nil && envelope.Parameters.RetryAfter > 0 {
			apiErr.RetryAfter = time.Duration(envelope.Parameters.RetryAfter) * time.Second
			c.backOff(apiErr.RetryAfter)
		}
		return apiErr
	}
	if result == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return services.Wrap(services.ErrExternal, "telegram", method, "decode result", err)
	}
	return nil
}

// redactToken keeps the bot token out of transport errors, which embed the URL.
func redactToken(err error, token string) error {
	if err == nil || token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), token, "<redacted>"))
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "…"
}
