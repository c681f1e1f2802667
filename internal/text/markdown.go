package text

import (
	"regexp"
	"strings"
)

// Markdown constructs that must not reach a synthesis backend. Applied line by
// line so fenced code blocks can be tracked.
var (
	mdHeading    = regexp.MustCompile(`^\s{0,3}#{1,6}\s+`)
	mdBullet     = regexp.MustCompile(`^\s*([-*+]|\d+[.)])\s+`)
	mdBlockquote = regexp.MustCompile(`^\s*>\s?`)
	mdImage      = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	mdLink       = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	mdEmphasis   = regexp.MustCompile(`(\*{1,3}|_{1,3})([^*_]+)(\*{1,3}|_{1,3})`)
	mdInlineCode = regexp.MustCompile("`([^`]*)`")
	mdRule       = regexp.MustCompile(`^\s*([-*_]\s*){3,}$`)
	mdTableRow   = regexp.MustCompile(`^\s*\|.*\|\s*$`)
)

// CleanMarkdown strips markdown scaffolding from model output, keeping the
// prose. Fenced code blocks and tables are dropped entirely; links keep their
// label text.
func CleanMarkdown(s string) string {
	if s == "" {
		return s
	}

	var out []string
	inFence := false
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if mdRule.MatchString(line) || mdTableRow.MatchString(line) {
			continue
		}
		line = mdHeading.ReplaceAllString(line, "")
		line = mdBullet.ReplaceAllString(line, "")
		line = mdBlockquote.ReplaceAllString(line, "")
		line = mdImage.ReplaceAllString(line, "")
		line = mdLink.ReplaceAllString(line, "$1")
		line = mdEmphasis.ReplaceAllString(line, "$2")
		line = mdInlineCode.ReplaceAllString(line, "$1")
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
