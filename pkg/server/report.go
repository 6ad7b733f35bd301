package server

import (
	"fmt"
	"regexp"
	"strings"
)

var markdownHeading = regexp.MustCompile(`(?m)^#{1,6}\s*`)

// RenderReport produces the downloadable document for a completed job.
// format is "markdown" or "text"; markdown is the native format of the
// report, text strips the heading markers.
func RenderReport(topic, report, format string) (content, contentType, ext string, err error) {
	switch format {
	case "", "markdown":
		content = fmt.Sprintf("# Research: %s\n\n%s\n", topic, report)
		return content, "text/markdown; charset=utf-8", "md", nil
	case "text":
		plain := markdownHeading.ReplaceAllString(report, "")
		content = fmt.Sprintf("Research: %s\n\n%s\n", topic, strings.TrimSpace(plain))
		return content, "text/plain; charset=utf-8", "txt", nil
	default:
		return "", "", "", fmt.Errorf("unsupported format: %s", format)
	}
}
