package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"modrelay/internal/testsupport"
)

func TestTestNotifySendsTelegramMessage(t *testing.T) {
	var (
		mu    sync.Mutex
		chats []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			http.NotFound(w, r)
			return
		}
		var req struct {
			ChatID string `json:"chat_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		chats = append(chats, req.ChatID)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"chat":{"id":5,"type":"private"},"date":0}}`))
	}))
	defer server.Close()

	env := setupCLITestEnv(t, testsupport.WithTelegramAPI(server.URL))
	out, err := runCLI(t, env.configPath, "test-notify", "--chat", "5")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "chat 5")

	mu.Lock()
	defer mu.Unlock()
	if len(chats) != 1 || chats[0] != "5" {
		t.Fatalf("unexpected sendMessage calls %v", chats)
	}
}

func TestTestNotifyPostsToNtfy(t *testing.T) {
	var hits int
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	env := setupCLITestEnv(t, testsupport.WithNtfyTopic(server.URL+"/alerts"))
	out, err := runCLI(t, env.configPath, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	mu.Lock()
	defer mu.Unlock()
	if hits != 1 {
		t.Fatalf("expected one ntfy post, got %d", hits)
	}
}

func TestTestNotifyWithoutTopicFails(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := runCLI(t, env.configPath, "test-notify"); err == nil {
		t.Fatal("expected error without ntfy topic or chat")
	}
}
