package parser

import (
	"regexp"
	"strings"

	"github.com/dgallion1/mathreel/internal/doctree"
)

type span struct {
	math    bool
	display bool
	env     string
	text    string
}

var mathEnvironments = map[string]bool{
	"equation": true, "equation*": true, "align": true, "align*": true,
	"gather": true, "gather*": true, "multline": true, "multline*": true,
	"eqnarray": true, "eqnarray*": true, "displaymath": true, "math": true,
}

var envBeginRe = regexp.MustCompile(`^\\begin\{([a-zA-Z]+\*?)\}`)

// splitMath separates math spans from surrounding text. Recognised delimiters are
// $$..$$, \[..\], $..$, \(..\) and the display math environments. Unterminated
// delimiters are kept as text; \$ is a literal dollar sign.
func splitMath(s string) []span {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var spans []span
	var text strings.Builder

	flushText := func() {
		if text.Len() > 0 {
			spans = append(spans, span{text: text.String()})
			text.Reset()
		}
	}
	emit := func(raw string, display bool, env string) {
		flushText()
		spans = append(spans, span{math: true, display: display, env: env, text: strings.TrimSpace(raw)})
	}

	for i := 0; i < len(s); {
		rest := s[i:]
		switch {
		case strings.HasPrefix(rest, `\$`):
			text.WriteByte('$')
			i += 2
			continue
		case strings.HasPrefix(rest, "$$"):
			if end := strings.Index(rest[2:], "$$"); end >= 0 {
				emit(rest[2:2+end], true, "")
				i += 2 + end + 2
				continue
			}
		case rest[0] == '$':
			if end := closingDollar(rest[1:]); end > 0 {
				emit(rest[1:1+end], false, "")
				i += 1 + end + 1
				continue
			}
		case strings.HasPrefix(rest, `\[`):
			if end := strings.Index(rest[2:], `\]`); end >= 0 {
				emit(rest[2:2+end], true, "")
				i += 2 + end + 2
				continue
			}
		case strings.HasPrefix(rest, `\(`):
			if end := strings.Index(rest[2:], `\)`); end >= 0 {
				emit(rest[2:2+end], false, "")
				i += 2 + end + 2
				continue
			}
		case strings.HasPrefix(rest, `\begin{`):
			if m := envBeginRe.FindStringSubmatch(rest); m != nil && mathEnvironments[m[1]] {
				endTag := `\end{` + m[1] + `}`
				if end := strings.Index(rest, endTag); end >= 0 {
					emit(rest[len(m[0]):end], true, m[1])
					i += end + len(endTag)
					continue
				}
			}
		}
		text.WriteByte(s[i])
		i++
	}
	flushText()
	return spans
}

// closingDollar finds the end of an inline $..$ span: the next unescaped $ that is not
// the start of $$. Returns -1 when absent or when the span would be empty.
func closingDollar(s string) int {
	for j := 0; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '$':
			if j == 0 {
				return -1
			}
			return j
		case '\n':
			if j+1 < len(s) && s[j+1] == '\n' {
				return -1 // inline math never spans paragraphs
			}
		}
	}
	return -1
}

// classify converts text into content blocks, parsing math spans eagerly.
func classify(s string, clean func(string) string) []doctree.ContentBlock {
	var blocks []doctree.ContentBlock
	for _, sp := range splitMath(s) {
		if sp.math {
			switch {
			case sp.text == "":
			case sp.env != "":
				blocks = append(blocks, doctree.EnvMathBlock(sp.text, sp.env))
			default:
				blocks = append(blocks, doctree.MathBlock(sp.text, sp.display))
			}
			continue
		}
		t := sp.text
		if clean != nil {
			t = clean(t)
		}
		for _, para := range paragraphs(t) {
			blocks = append(blocks, doctree.TextBlock(para))
		}
	}
	return blocks
}

// paragraphs splits on blank lines and collapses whitespace inside each paragraph.
func paragraphs(s string) []string {
	var out []string
	for _, p := range strings.Split(s, "\n\n") {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
