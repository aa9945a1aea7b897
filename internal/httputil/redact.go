package httputil

import "regexp"

var redactPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)([?&]key=)[^&\s'"\n]+`), "${1}<redacted>"},
	{regexp.MustCompile(`(?i)(Bearer\s+)\S+`), "${1}<redacted>"},
	{regexp.MustCompile(`(?i)(api[_-]?key['"]?\s*[:=]\s*['"]?)[^'"\s,}]+`), "${1}<redacted>"},
}

// Redact strips credentials from provider error text before it is logged,
// persisted or returned to a client.
func Redact(text string) string {
	for _, p := range redactPatterns {
		text = p.re.ReplaceAllString(text, p.repl)
	}
	return text
}
