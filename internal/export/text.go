package export

import (
	"html"
	"strings"
)

// TextToHTML converts plain manuscript text to paragraph markup. Blank lines
// separate paragraphs; everything is escaped before wrapping.
func TextToHTML(content string) string {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	blocks := strings.Split(normalized, "\n\n")

	var sb strings.Builder
	for _, block := range blocks {
		trimmed := strings.TrimSpace(block)
		if trimmed == "" {
			continue
		}
		escaped := html.EscapeString(trimmed)
		// Single newlines inside a paragraph become soft breaks.
		escaped = strings.ReplaceAll(escaped, "\n", "<br>\n")
		sb.WriteString("<p>")
		sb.WriteString(escaped)
		sb.WriteString("</p>\n")
	}
	return sb.String()
}
