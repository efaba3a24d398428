package intake

import (
	"regexp"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/unicode/norm"

	"modrelay/internal/submissions"
)

const (
	welcomeNew    = "Welcome to the bot! You can now submit your Gmail addresses."
	welcomeBack   = "Welcome back!"
	noAccount     = "You don't have an account yet. Use /start to begin."
	submitFailure = "⚠️ We could not record your submission right now. Please try again later."
)

var gmailPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+@gmail\.com$`)

var printer = message.NewPrinter(language.English)

// NormalizeAddress trims and NFC-normalizes text and reports whether the
// result is an accepted Gmail address.
func NormalizeAddress(text string) (string, bool) {
	normalized := norm.NFC.String(strings.TrimSpace(text))
	if normalized == "" || strings.HasPrefix(normalized, "/") {
		return normalized, false
	}
	return normalized, gmailPattern.MatchString(normalized)
}

func receivedMessage(address string) string {
	return "✅ Your submission for (" + address + ") has been received and is awaiting review."
}

func historyMessage(stats submissions.UserStats) string {
	return printer.Sprintf("📊 Your History 📊\n\n✅ Approved Submissions: %d\n❌ Rejected Submissions: %d\n⏳ Pending Submissions: %d\n📬 Total: %d",
		stats.Approved, stats.Rejected, stats.Pending, stats.Total())
}

// command extracts the bot command from text, dropping any @botname suffix
// and arguments. It returns "" when text is not a command.
func command(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	name := strings.Fields(text)[0]
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name)
}
