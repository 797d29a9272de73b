package parser

import (
	"regexp"
	"strings"

	"github.com/dgallion1/mathreel/internal/doctree"
)

// LaTeXExtractor derives structure from sectioning commands.
type LaTeXExtractor struct{}

// sectionDepth maps sectioning commands to their nominal depth. Anything else,
// including \part and custom commands, is not a heading.
var sectionDepth = map[string]int{
	"chapter":       0,
	"section":       1,
	"subsection":    2,
	"subsubsection": 3,
	"paragraph":     4,
	"subparagraph":  5,
}

var (
	sectionRe  = regexp.MustCompile(`\\(chapter|section|subsection|subsubsection|paragraph|subparagraph)\*?\s*(?:\[[^\]]*\])?\s*\{`)
	figureRe   = regexp.MustCompile(`(?s)\\begin\{figure\*?\}(.*?)\\end\{figure\*?\}|\\includegraphics\s*(?:\[[^\]]*\])?\s*\{([^}]*)\}`)
	graphicsRe = regexp.MustCompile(`\\includegraphics\s*(?:\[[^\]]*\])?\s*\{([^}]*)\}`)
	abstractRe = regexp.MustCompile(`(?s)\\begin\{abstract\}(.*?)\\end\{abstract\}`)
)

func (e *LaTeXExtractor) Extract(doc *doctree.Document) (*doctree.ChapterNode, error) {
	src := stripComments(doc.Text())

	title := doc.Title()
	if t, ok := commandArg(src, "title"); ok && strings.TrimSpace(t) != "" {
		title = cleanLaTeX(t)
	}
	b := newTreeBuilder(title)

	body := src
	if i := strings.Index(body, `\begin{document}`); i >= 0 {
		body = body[i+len(`\begin{document}`):]
	}
	if i := strings.Index(body, `\end{document}`); i >= 0 {
		body = body[:i]
	}

	if m := abstractRe.FindStringSubmatchIndex(body); m != nil {
		b.text(body[m[2]:m[3]], cleanLaTeX)
		body = body[:m[0]] + body[m[1]:]
	}

	last := 0
	for _, m := range sectionRe.FindAllStringSubmatchIndex(body, -1) {
		if m[0] < last {
			continue
		}
		e.content(body[last:m[0]], b)
		heading, end := balancedBraces(body, m[1]-1)
		b.heading(cleanLaTeX(heading), sectionDepth[body[m[2]:m[3]]])
		last = end
	}
	e.content(body[last:], b)
	return b.finish(), nil
}

// content emits figures in place and classifies the text between them.
func (e *LaTeXExtractor) content(s string, b *treeBuilder) {
	last := 0
	for _, m := range figureRe.FindAllStringSubmatchIndex(s, -1) {
		b.text(s[last:m[0]], cleanLaTeX)
		if m[2] >= 0 {
			env := s[m[2]:m[3]]
			ref := ""
			if g := graphicsRe.FindStringSubmatch(env); g != nil {
				ref = g[1]
			}
			caption, _ := commandArg(env, "caption")
			b.figure(ref, cleanLaTeX(caption))
		} else {
			b.figure(s[m[4]:m[5]], "")
		}
		last = m[1]
	}
	b.text(s[last:], cleanLaTeX)
}

// stripComments removes % comments while keeping escaped \%.
func stripComments(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		for j := 0; j < len(line); j++ {
			if line[j] == '\\' {
				j++
				continue
			}
			if line[j] == '%' {
				lines[i] = line[:j]
				break
			}
		}
	}
	return strings.Join(lines, "\n")
}

// commandArg returns the braced argument of the first \name{...} in s.
func commandArg(s, name string) (string, bool) {
	re := regexp.MustCompile(`\\` + regexp.QuoteMeta(name) + `\*?\s*(?:\[[^\]]*\])?\s*\{`)
	m := re.FindStringIndex(s)
	if m == nil {
		return "", false
	}
	arg, _ := balancedBraces(s, m[1]-1)
	return arg, true
}

// balancedBraces reads the group opening at s[open] == '{' and returns its contents
// and the index just past the closing brace.
func balancedBraces(s string, open int) (string, int) {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[open+1 : i], i + 1
			}
		}
	}
	return s[open+1:], len(s)
}

var (
	dropWithArgRe = regexp.MustCompile(`\\(label|ref|eqref|cite|citep|citet|pageref|bibliographystyle|bibliography|part|vspace|hspace|usepackage|documentclass)\*?\s*(?:\[[^\]]*\])?\s*\{[^{}]*\}`)
	keepArgRe     = regexp.MustCompile(`\\(textbf|textit|emph|underline|texttt|textrm|textsf|mbox|text)\s*\{([^{}]*)\}`)
	envMarkerRe   = regexp.MustCompile(`\\(begin|end)\s*\{[^}]*\}(\[[^\]]*\])?`)
	commandRe     = regexp.MustCompile(`\\[a-zA-Z]+\*?`)
	escapeRe      = regexp.MustCompile(`\\([%&#_$])`)
)

// cleanLaTeX reduces TeX markup in prose to readable text.
func cleanLaTeX(s string) string {
	s = dropWithArgRe.ReplaceAllString(s, "")
	for keepArgRe.MatchString(s) {
		s = keepArgRe.ReplaceAllString(s, "$2")
	}
	s = envMarkerRe.ReplaceAllString(s, "\n\n")
	s = strings.ReplaceAll(s, `\item`, "\n")
	s = strings.ReplaceAll(s, `\\`, "\n")
	s = escapeRe.ReplaceAllString(s, "$1")
	s = commandRe.ReplaceAllString(s, "")
	s = strings.NewReplacer("{", "", "}", "", "~", " ", "``", "\"", "''", "\"").Replace(s)
	return strings.TrimSpace(s)
}
