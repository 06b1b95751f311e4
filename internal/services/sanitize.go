package services

import (
	"html"
	"slices"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var textPolicy = bluemonday.StrictPolicy()

// sanitizeText strips markup from user supplied text. The policy output is
// HTML-escaped; it is unescaped again because the text is stored and served
// as JSON, not embedded in a page.
func sanitizeText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

func oneOf(value string, allowed []string) bool {
	return slices.Contains(allowed, value)
}

func normalizeTags(values []string, allowed []string) ([]string, error) {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		if !oneOf(value, allowed) {
			return nil, invalidf("invalid value %q", value)
		}
		if !slices.Contains(out, value) {
			out = append(out, value)
		}
	}
	return out, nil
}
