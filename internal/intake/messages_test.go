package intake

import (
	"strings"
	"testing"

	"modrelay/internal/submissions"
)

func TestNormalizeAddress(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"alice@gmail.com", "alice@gmail.com", true},
		{"  first.last-1_x@gmail.com \n", "first.last-1_x@gmail.com", true},
		{"Alice@gmail.com", "Alice@gmail.com", true},
		{"alice@GMAIL.com", "alice@GMAIL.com", false},
		{"alice@yahoo.com", "alice@yahoo.com", false},
		{"alice+tag@gmail.com", "alice+tag@gmail.com", false},
		{"/start alice@gmail.com", "/start alice@gmail.com", false},
		{"café@gmail.com", "café@gmail.com", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := NormalizeAddress(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("NormalizeAddress(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestNormalizeAddressComposesCombiningMarks(t *testing.T) {
	decomposed := "cafe\u0301@gmail.com"
	got, ok := NormalizeAddress(decomposed)
	if ok {
		t.Fatal("non-ASCII local part must be rejected")
	}
	if got != "caf\u00e9@gmail.com" {
		t.Fatalf("expected NFC form, got %q", got)
	}
}

func TestCommandParsing(t *testing.T) {
	cases := map[string]string{
		"/start":             "/start",
		"/START":             "/start",
		"/history@relay_bot": "/history",
		"/start ref123":      "/start",
		"alice@gmail.com":    "",
		"  /history  ":       "/history",
	}
	for in, want := range cases {
		if got := command(in); got != want {
			t.Errorf("command(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHistoryMessageGroupsDigits(t *testing.T) {
	msg := historyMessage(submissions.UserStats{Approved: 1234, Rejected: 2, Pending: 0})
	for _, want := range []string{"Approved Submissions: 1,234", "Rejected Submissions: 2", "Pending Submissions: 0", "Total: 1,236"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in %q", want, msg)
		}
	}
}
