package telegram

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"modrelay/internal/services"
)

var (
	// ErrRecipientUnreachable covers blocked bots, deleted accounts, and unknown chats.
	ErrRecipientUnreachable = errors.New("telegram recipient unreachable")
	// ErrRateLimited reports a 429 reply from the Bot API.
	ErrRateLimited = errors.New("telegram rate limited")
)

// APIError is a failed Bot API call.
type APIError struct {
	Method      string
	StatusCode  int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	desc := strings.TrimSpace(e.Description)
	if desc == "" {
		desc = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.StatusCode, desc)
}

// Unwrap exposes the classification markers so callers can use errors.Is.
func (e *APIError) Unwrap() []error {
	switch {
	case e.unreachable():
		return []error{ErrRecipientUnreachable, services.ErrExternal}
	case e.StatusCode == http.StatusTooManyRequests:
		return []error{ErrRateLimited, services.ErrTransient}
	case e.StatusCode == http.StatusUnauthorized:
		return []error{services.ErrConfiguration}
	case e.StatusCode >= 500:
		return []error{services.ErrTransient}
	default:
		return []error{services.ErrExternal}
	}
}

func (e *APIError) unreachable() bool {
	if e.StatusCode == http.StatusForbidden {
		return true
	}
	if e.StatusCode != http.StatusBadRequest {
		return false
	}
	desc := strings.ToLower(e.Description)
	for _, fragment := range []string{"chat not found", "user not found", "peer_id_invalid", "user is deactivated"} {
		if strings.Contains(desc, fragment) {
			return true
		}
	}
	return false
}
