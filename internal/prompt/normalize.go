package prompt

import (
	"regexp"
	"strings"
)

var rolePrefix = regexp.MustCompile(`(?i)^(BOT|ASSISTANT|AI|SYSTEM):\s*`)

// Normalize strips a leading role label and one pair of surrounding quotes
// from a model reply. It runs to a fixed point so Normalize(Normalize(x))
// equals Normalize(x).
func Normalize(raw string) string {
	out := strings.TrimSpace(raw)
	for {
		next := normalizeOnce(out)
		if next == out {
			return out
		}
		out = next
	}
}

func normalizeOnce(s string) string {
	s = rolePrefix.ReplaceAllString(s, "")
	s = stripQuotes(s)
	return strings.TrimSpace(s)
}

func stripQuotes(s string) string {
	if len(s) < 2 {
		return s
	}
	first, last := s[0], s[len(s)-1]
	if (first == '"' || first == '\'') && first == last {
		return s[1 : len(s)-1]
	}
	return s
}
