package pipeline

import "strings"

// BuildContextQuery prepends the last maxPrevious queries to current so
// follow-up questions retrieve documents relevant to the whole conversation.
func BuildContextQuery(current string, previous []string, maxPrevious int) string {
	if maxPrevious < 0 {
		maxPrevious = 0
	}
	if len(previous) > maxPrevious {
		previous = previous[len(previous)-maxPrevious:]
	}
	parts := make([]string, 0, len(previous)+1)
	for _, q := range previous {
		if q = strings.TrimSpace(q); q != "" {
			parts = append(parts, q)
		}
	}
	parts = append(parts, strings.TrimSpace(current))
	return strings.TrimSpace(strings.Join(parts, " "))
}
