package simpleblog

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer cleans user-supplied post text before it is stored.
type Sanitizer interface {
	SanitizeTitle(title string) string
	SanitizeContent(content string) string
}

type policySanitizer struct {
	strict  *bluemonday.Policy
	content *bluemonday.Policy
}

// NewSanitizer returns a sanitizer that keeps titles as plain text and applies a
// user-generated-content allow list to post bodies that carry markup.
// Policies are safe for concurrent use.
func NewSanitizer() Sanitizer {
	content := bluemonday.UGCPolicy()
	content.RequireNoReferrerOnLinks(true)
	content.AddTargetBlankToFullyQualifiedLinks(true)

	return &policySanitizer{
		strict:  bluemonday.StrictPolicy(),
		content: content,
	}
}

// SanitizeTitle drops every tag and returns the remaining text unescaped.
func (s *policySanitizer) SanitizeTitle(title string) string {
	return strings.TrimSpace(html.UnescapeString(s.strict.Sanitize(title)))
}

// SanitizeContent stores plain text verbatim. Anything the HTML tokenizer reads
// as markup or an entity goes through the UGC policy.
func (s *policySanitizer) SanitizeContent(content string) string {
	content = strings.TrimSpace(content)
	if s.isPlainText(content) {
		return content
	}
	return strings.TrimSpace(s.content.Sanitize(content))
}

// isPlainText reports whether text holds no tags, comments or entities, so it
// reads the same as text and as HTML.
func (s *policySanitizer) isPlainText(text string) bool {
	return html.UnescapeString(s.strict.Sanitize(text)) == text
}
