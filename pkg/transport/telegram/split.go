package telegram

import "strings"

// splitMessage cuts text into chunks of at most limit runes. A chunk ends at
// the last newline inside the window when there is one; that newline is
// dropped.
func splitMessage(text string, limit int) []string {
	if limit <= 0 {
		return []string{text}
	}

	runes := []rune(text)
	var chunks []string
	for len(runes) > limit {
		cut := limit
		next := limit
		if idx := lastNewline(runes[:limit]); idx > 0 {
			cut = idx
			next = idx + 1
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[next:]
	}
	if len(runes) > 0 || len(chunks) == 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

func lastNewline(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == '\n' {
			return i
		}
	}
	return -1
}

// truncate shortens s to n runes, appending "..." when it was cut.
func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
