package research

import (
	"fmt"
	"strings"

	"github.com/mikeboe/deep-researcher/pkg/search"
)

// DeduplicateAndFormatSources turns one search response into the single text
// blob appended to the state for this loop. Results are unique by URL,
// first-seen order. Raw page content, when present and requested, is
// truncated to maxCharsPerSource.
func DeduplicateAndFormatSources(resp *search.Response, maxCharsPerSource int, includeRaw bool) string {
	var b strings.Builder
	b.WriteString("Sources:\n\n")

	seen := make(map[string]bool)
	for _, r := range resp.Results {
		if r.URL == "" || seen[r.URL] {
			continue
		}
		seen[r.URL] = true

		fmt.Fprintf(&b, "Source: %s\n===\n", r.Title)
		fmt.Fprintf(&b, "URL: %s\n===\n", r.URL)
		fmt.Fprintf(&b, "Most relevant content from source: %s\n===\n", r.Content)
		if includeRaw {
			raw := r.RawContent
			if raw == "" {
				raw = r.Content
			}
			if len(raw) > maxCharsPerSource {
				raw = raw[:maxCharsPerSource] + "... [truncated]"
			}
			fmt.Fprintf(&b, "Full source content limited to %d chars: %s\n\n", maxCharsPerSource, raw)
		}
	}
	return strings.TrimSpace(b.String())
}

// DeduplicateSources flattens the gathered source list for the final report.
// An item that starts with a URL scheme is treated as atomic; anything else
// is split into lines and each non-empty, not-yet-seen line is kept. Order of
// first appearance is preserved in both cases.
func DeduplicateSources(sources []string) []string {
	seen := make(map[string]bool)
	var unique []string

	for _, source := range sources {
		if strings.HasPrefix(source, "http") {
			if !seen[source] {
				seen[source] = true
				unique = append(unique, source)
			}
			continue
		}
		for _, line := range strings.Split(source, "\n") {
			if strings.TrimSpace(line) == "" || seen[line] {
				continue
			}
			seen[line] = true
			unique = append(unique, line)
		}
	}
	return unique
}

// StripThinkingTokens removes <think>...</think> blocks that reasoning
// models emit before their answer.
func StripThinkingTokens(s string) string {
	for {
		start := strings.Index(s, "<think>")
		if start < 0 {
			break
		}
		end := strings.Index(s, "</think>")
		if end < 0 || end < start {
			break
		}
		s = s[:start] + s[end+len("</think>"):]
	}
	return strings.TrimSpace(s)
}
