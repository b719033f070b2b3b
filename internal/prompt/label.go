package prompt

import (
	"strings"
	"unicode/utf8"
)

const (
	labelMaxWords = 8
	labelMaxRunes = 60
)

// SessionLabel derives a short summary label for a session from its first
// prompt.
func SessionLabel(prompt string) string {
	words := strings.Fields(prompt)
	cut := false
	if len(words) > labelMaxWords {
		words = words[:labelMaxWords]
		cut = true
	}
	label := strings.Join(words, " ")

	if utf8.RuneCountInString(label) > labelMaxRunes {
		runes := []rune(label)
		label = strings.TrimSpace(string(runes[:labelMaxRunes]))
		cut = true
	}
	if cut {
		label += "…"
	}
	return label
}
