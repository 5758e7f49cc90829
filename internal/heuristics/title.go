package heuristics

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// MaxTitleLen is the cap, in characters, on every resolved title.
const MaxTitleLen = 300

// CleanTitle HTML-unescapes s, collapses whitespace and truncates it to
// MaxTitleLen characters.
func CleanTitle(s string) string {
	// Entities are sometimes double-encoded (&amp;amp;).
	for i := 0; i < 2 && strings.Contains(s, "&"); i++ {
		s = html.UnescapeString(s)
	}
	return Truncate(CollapseSpace(s), MaxTitleLen)
}

// CollapseSpace replaces every run of whitespace with a single space and
// trims the ends.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to at most n characters without splitting a rune.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n]))
}
