package ingest

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// htmlTagPattern matches common HTML tags to detect if a string contains HTML.
var htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|strong|em|a|ul|ol|li|h[1-6]|blockquote|sub|sup)[\s>/]`)

// containsHTML checks if a string appears to contain HTML markup.
func containsHTML(s string) bool {
	return htmlTagPattern.MatchString(strings.ToLower(s))
}

// htmlToMarkdown converts HTML content to Markdown. Abstracts and author
// biographies arrive HTML-tagged from several sources; stored values are
// markdown. If the input doesn't contain HTML, it's returned unchanged.
func htmlToMarkdown(s string) string {
	if s == "" || !containsHTML(s) {
		return s
	}

	markdown, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		// If conversion fails, keep the original string
		return s
	}

	return strings.TrimSpace(markdown)
}
