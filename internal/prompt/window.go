// Package prompt assembles outbound prompts from conversation history and
// cleans up the replies that come back.
package prompt

import (
	"sort"
	"strings"

	"chatrelay-backend/internal/models"
)

// DefaultWindowSize is how many prior exchanges are replayed to the model.
const DefaultWindowSize = 5

// BuildContext renders the last size exchanges of history, oldest first,
// followed by the new prompt. History may arrive in any order.
func BuildContext(newPrompt string, history []models.Exchange, size int) string {
	window := lastN(history, size)

	var b strings.Builder
	for _, e := range window {
		b.WriteString("User: ")
		b.WriteString(e.Prompt)
		b.WriteString("\nAI: ")
		b.WriteString(e.Response)
		b.WriteString("\n\n")
	}
	b.WriteString("User: ")
	b.WriteString(newPrompt)

	return b.String()
}

func lastN(history []models.Exchange, size int) []models.Exchange {
	if size <= 0 || len(history) == 0 {
		return nil
	}

	sorted := make([]models.Exchange, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	if len(sorted) > size {
		sorted = sorted[len(sorted)-size:]
	}
	return sorted
}
