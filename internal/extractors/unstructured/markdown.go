package unstructured

import (
	"regexp"
	"strings"
)

// Pre-compiled expressions for markdown stripping.
var (
	mdCodeFence    = regexp.MustCompile("(?s)```[^\n]*\n(.*?)```")
	mdInlineCode   = regexp.MustCompile("`([^`]+)`")
	mdImage        = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	mdLink         = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	mdHeading      = regexp.MustCompile(`(?m)^#{1,6}[ \t]+`)
	mdEmphasis     = regexp.MustCompile(`(\*\*|__|\*|_)([^*_\n]+)(\*\*|__|\*|_)`)
	mdBlockquote   = regexp.MustCompile(`(?m)^>[ \t]?`)
	mdRule         = regexp.MustCompile(`(?m)^[ \t]*([-*_][ \t]*){3,}$`)
	mdListMarker   = regexp.MustCompile(`(?m)^[ \t]*[-*+][ \t]+`)
	mdNumberedList = regexp.MustCompile(`(?m)^[ \t]*\d+\.[ \t]+`)
)

// stripMarkdown reduces markdown to its text, keeping code block contents
// and link text. Paragraph breaks are preserved.
func stripMarkdown(content string) string {
	content = mdCodeFence.ReplaceAllString(content, "$1")
	content = mdInlineCode.ReplaceAllString(content, "$1")
	content = mdImage.ReplaceAllString(content, "")
	content = mdLink.ReplaceAllString(content, "$1")
	content = mdRule.ReplaceAllString(content, "")
	content = mdHeading.ReplaceAllString(content, "")
	content = mdEmphasis.ReplaceAllString(content, "$2")
	content = mdBlockquote.ReplaceAllString(content, "")
	content = mdListMarker.ReplaceAllString(content, "")
	content = mdNumberedList.ReplaceAllString(content, "")
	return strings.TrimSpace(content)
}
