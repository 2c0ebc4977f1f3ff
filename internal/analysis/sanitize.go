package analysis

import (
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("```[A-Za-z0-9_+-]*")

// Sanitize strips markdown code fences from a raw model response and narrows
// it to the span between the first '{' and the last '}'. When no such span
// exists the de-fenced, trimmed text is returned unchanged. It never parses.
func Sanitize(raw string) string {
	text := strings.TrimSpace(fenceRe.ReplaceAllString(raw, ""))

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < 0 || end < start {
		return text
	}
	return text[start : end+1]
}
