// Package telegram is a small Telegram Bot API client.
//
// It covers the three methods the relay needs: sendMessage for status
// notifications, getUpdates for intake long polling, and getMe for
// preflight checks. Outbound calls share one token bucket
// (golang.org/x/time/rate) and honour retry_after hints from 429 replies.
// API failures surface as *APIError values that match
// ErrRecipientUnreachable or ErrRateLimited with errors.Is.
package telegram
