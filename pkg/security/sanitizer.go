package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MaxMessageLength caps message content in runes
const MaxMessageLength = 4000

var htmlPolicy = bluemonday.StrictPolicy()

// NormalizeMessage removes NUL bytes and surrounding whitespace. The text is otherwise kept
// exactly as sent; it is plain text and escaped by the JSON encoder on the way out.
func NormalizeMessage(input string) string {
	return strings.TrimSpace(strings.ReplaceAll(input, "\x00", ""))
}

// MessageTooLong reports whether normalized content exceeds MaxMessageLength
func MessageTooLong(content string) bool {
	return utf8.RuneCountInString(content) > MaxMessageLength
}

// SanitizeDisplayName strips markup from a provider-supplied name. Names are interpolated
// into notification text, so they never carry tags.
func SanitizeDisplayName(name string) string {
	name = html.UnescapeString(htmlPolicy.Sanitize(strings.ReplaceAll(name, "\x00", "")))
	return strings.Join(strings.Fields(name), " ")
}

// NormalizeQuery lowercases and trims a user-supplied search prefix. LIKE escaping is left to
// the store.
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}
