package tgui

import "unicode/utf8"

// Len counts runes.
func Len(s string) int { return utf8.RuneCountInString(s) }

// TruncRunes returns s truncated to at most n runes, ending in "…" when cut.
func TruncRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	rs := []rune(s)
	if n == 1 {
		return "…"
	}
	return string(rs[:n-1]) + "…"
}
