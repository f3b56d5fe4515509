// Package stringutils holds small text helpers shared across ember packages.
package stringutils

import (
	"regexp"
	"strings"
)

var reThink = regexp.MustCompile(`(?s)<think>.*?</think>`)

// invisibleReplacer removes zero-width and joiner characters that silently
// break JSON parsing when models echo them back.
var invisibleReplacer = strings.NewReplacer(
	"\uFEFF", "", // byte order mark
	"\u200B", "", // zero-width space
	"\u200C", "", // zero-width non-joiner
	"\u200D", "", // zero-width joiner
	"\u2060", "", // word joiner
)

// Truncate shortens a string to at most n runes, adding "..." if it was
// truncated. Rune-based so multibyte text is never split mid-character.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// TruncateHard shortens a string to at most n runes with no marker.
func TruncateHard(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// StripThink removes <think>…</think> blocks that some models embed.
func StripThink(s string) string {
	return reThink.ReplaceAllString(s, "")
}

// StripInvisible removes BOM, zero-width and word-joiner characters.
// Must run before any JSON parse attempt on model output.
func StripInvisible(s string) string {
	return invisibleReplacer.Replace(s)
}

// StringOrDefault returns s if it's not empty, or def if s is empty.
func StringOrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
