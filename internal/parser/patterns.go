package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// headingPattern is a numbering idiom that marks a heading at a fixed depth.
type headingPattern struct {
	re    *regexp.Regexp
	depth int
}

// Ordered most specific first; the first match wins.
var headingPatterns = []headingPattern{
	{regexp.MustCompile(`^第\s*[0-9０-９一二三四五六七八九十百]+\s*章`), 0},
	{regexp.MustCompile(`^第\s*[0-9０-９一二三四五六七八九十百]+\s*節`), 1},
	{regexp.MustCompile(`^(?i:chapter)\s+([0-9]+|[IVXLC]+)\b`), 0},
	{regexp.MustCompile(`^(?i:section)\s+[0-9]+(\.[0-9]+)*\b`), 1},
	{regexp.MustCompile(`^[0-9]+\.[0-9]+\.[0-9]+\.?\s+\S`), 3},
	{regexp.MustCompile(`^[0-9]+\.[0-9]+\.?\s+\S`), 2},
	{regexp.MustCompile(`^[0-9]+\.\s+\p{L}`), 1},
	{regexp.MustCompile(`^(定理|補題|命題|定義|系|Theorem|Lemma|Proposition|Definition|Corollary)\s*[0-9０-９.]*`), 3},
}

// dotlessNumberRe is "3 Integration". Prose often starts the same way, so it
// counts only when the line is also set in a heading font.
var dotlessNumberRe = regexp.MustCompile(`^[0-9]+\s+\p{L}`)

const dotlessNumberDepth = 1

// maxHeadingRunes bounds heading length; longer lines are prose.
const maxHeadingRunes = 80

// matchHeadingPattern returns the depth implied by a numbering idiom.
func matchHeadingPattern(line string) (int, bool) {
	line = strings.TrimSpace(line)
	if line == "" || utf8.RuneCountInString(line) > maxHeadingRunes {
		return 0, false
	}
	if strings.ContainsAny(line, "=<>") || strings.HasSuffix(line, "。") || (strings.HasSuffix(line, ".") && strings.Count(line, " ") > 8) {
		return 0, false
	}
	for _, p := range headingPatterns {
		if p.re.MatchString(line) {
			return p.depth, true
		}
	}
	return 0, false
}
