// Package contents turns raw extracted markdown into the page text served
// by GET /contents.
package contents

import (
	"regexp"
	"strings"

	"github.com/young1lin/flux/internal/models"
)

const (
	titleLimit    = 200
	fallbackLimit = 80
	wikiMarker    = "From Wikipedia, the free encyclopedia"
)

var (
	contentsHeading = regexp.MustCompile(`^##\s+Contents?\s*$`)
	h1Pattern       = regexp.MustCompile(`^#\s+(.+)$`)
	h2Pattern       = regexp.MustCompile(`^##\s+(.+)$`)
)

// sidebar labels that precede the article body on wiki-style pages
var chromeLabels = map[string]bool{
	"Tools":             true,
	"Actions":           true,
	"General":           true,
	"Print/export":      true,
	"In other projects": true,
	"Appearance":        true,
}

// Page builds the /contents entry for one URL. A nil raw means the
// extractor returned nothing for it.
func Page(url string, raw *string) models.PageContent {
	if raw == nil {
		return models.PageContent{URL: url}
	}
	cleaned := Clean(*raw, url)
	return models.PageContent{
		URL:       url,
		Title:     ExtractTitle(*raw),
		Content:   cleaned,
		WordCount: WordCount(cleaned),
		Success:   true,
	}
}

// Clean strips the navigation that precedes the main body: skip links,
// tables of contents, language links and sidebar labels. Wikipedia pages
// start at the "From Wikipedia" line.
func Clean(raw, url string) string {
	isWiki := strings.Contains(url, "wikipedia.org")
	pastChrome := false
	out := make([]string, 0, 64)

	for _, line := range strings.Split(raw, "\n") {
		s := strings.TrimSpace(line)
		if s == "" {
			if len(out) > 0 {
				out = append(out, "")
			}
			continue
		}

		if isWiki {
			if strings.Contains(s, wikiMarker) {
				pastChrome = true
			}
			if pastChrome {
				out = append(out, s)
			}
			continue
		}

		if !pastChrome && isChrome(s) {
			continue
		}
		pastChrome = true
		out = append(out, s)
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}

func isChrome(s string) bool {
	switch {
	case strings.HasPrefix(s, "["):
		return true
	case contentsHeading.MatchString(s):
		return true
	case chromeLabels[s]:
		return true
	}
	if !strings.HasPrefix(s, "* [") {
		return false
	}
	if strings.Contains(s, "](#") {
		return true
	}
	if strings.Contains(s, "wikipedia.org") && strings.Contains(s, "/wiki/") {
		return true
	}
	return strings.Contains(s, "Edit") || strings.Contains(s, "Read") || strings.Contains(s, "Talk")
}

// ExtractTitle prefers an H1, then the first substantial line, then the
// first H2 seen, then the start of the content.
func ExtractTitle(raw string) string {
	if raw == "" {
		return ""
	}

	h2 := ""
	for _, line := range strings.Split(raw, "\n") {
		s := strings.TrimSpace(line)
		if s == "" {
			continue
		}
		if m := h1Pattern.FindStringSubmatch(s); m != nil {
			if t := strings.TrimSpace(m[1]); len([]rune(t)) > 2 {
				return truncate(t, titleLimit)
			}
		}
		if contentsHeading.MatchString(s) {
			continue
		}
		if m := h2Pattern.FindStringSubmatch(s); m != nil && h2 == "" {
			h2 = truncate(strings.TrimSpace(m[1]), titleLimit)
		}
		if strings.HasPrefix(s, "[") {
			continue
		}
		if strings.HasPrefix(s, "* [") && (strings.Contains(s, "](#") || strings.Contains(s, "](http")) {
			continue
		}
		if len([]rune(s)) < 4 {
			continue
		}
		return truncate(s, titleLimit)
	}

	if h2 != "" {
		return h2
	}
	return strings.TrimSpace(truncate(raw, fallbackLimit))
}

// WordCount counts whitespace-separated words
func WordCount(text string) int {
	return len(strings.Fields(text))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
