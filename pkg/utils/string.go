package utils

import "strings"

// Truncate shortens s to at most maxLen runes, ending in "..." when cut.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// ChunkLines splits text into pieces of at most limit runes, breaking
// between lines where possible. A single line longer than limit is cut.
func ChunkLines(text string, limit int) []string {
	if limit <= 0 || len([]rune(text)) <= limit {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	var (
		chunks []string
		cur    strings.Builder
		size   int
	)
	flush := func() {
		if size > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			size = 0
		}
	}

	for _, line := range strings.Split(text, "\n") {
		runes := []rune(line)
		for len(runes) > limit {
			flush()
			chunks = append(chunks, string(runes[:limit]))
			runes = runes[limit:]
		}
		need := len(runes)
		if size > 0 {
			need++
		}
		if size+need > limit {
			flush()
			need = len(runes)
		}
		if size > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(string(runes))
		size += need
	}
	flush()
	return chunks
}
