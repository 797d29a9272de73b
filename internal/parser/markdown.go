package parser

import (
	"regexp"
	"strings"

	"github.com/dgallion1/mathreel/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownExtractor handles Markdown using goldmark for block structure. Leaf block
// content is read from the raw source lines so TeX inside math spans is not touched by
// Markdown escaping or emphasis rules.
type MarkdownExtractor struct{}

func (e *MarkdownExtractor) Extract(doc *doctree.Document) (*doctree.ChapterNode, error) {
	src := doc.Raw()
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(src))

	b := newTreeBuilder(doc.Title())
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			b.heading(headingTitle(h, src), h.Level)
			continue
		}
		collectMarkdown(n, src, b)
	}
	return b.finish(), nil
}

func collectMarkdown(n ast.Node, src []byte, b *treeBuilder) {
	switch node := n.(type) {
	case *ast.Heading:
		// Headings nested in containers (e.g. list items) are read as text.
		b.text(rawLines(node, src), cleanMarkdown)
	case *ast.FencedCodeBlock:
		body := rawLines(node, src)
		switch strings.ToLower(string(node.Language(src))) {
		case "math", "latex", "tex":
			if strings.TrimSpace(body) != "" {
				b.add(doctree.MathBlock(strings.TrimSpace(body), true))
			}
		default:
			if strings.TrimSpace(body) != "" {
				b.add(doctree.TextBlock(body))
			}
		}
	case *ast.CodeBlock:
		if body := rawLines(node, src); strings.TrimSpace(body) != "" {
			b.add(doctree.TextBlock(body))
		}
	case *ast.HTMLBlock:
		raw := rawLines(node, src)
		if node.HasClosure() {
			raw += "\n" + string(node.ClosureLine.Value(src))
		}
		walkHTMLFragment(raw, b)
	case *ast.ThematicBreak:
	case *ast.Paragraph, *ast.TextBlock:
		markdownText(rawLines(node, src), b)
	default:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			collectMarkdown(c, src, b)
		}
	}
}

var mdImageRe = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)

// markdownText emits figures for image syntax and classifies the remaining text.
func markdownText(s string, b *treeBuilder) {
	last := 0
	for _, m := range mdImageRe.FindAllStringSubmatchIndex(s, -1) {
		b.text(s[last:m[0]], cleanMarkdown)
		b.figure(s[m[4]:m[5]], s[m[2]:m[3]])
		last = m[1]
	}
	b.text(s[last:], cleanMarkdown)
}

func rawLines(n ast.Node, src []byte) string {
	lines := n.Lines()
	parts := make([]string, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		parts = append(parts, strings.TrimRight(string(seg.Value(src)), "\r\n"))
	}
	return strings.Join(parts, "\n")
}

func headingTitle(h *ast.Heading, src []byte) string {
	title := strings.TrimSpace(rawLines(h, src))
	title = strings.TrimSpace(strings.TrimRight(title, "#"))
	return cleanMarkdown(title)
}

var (
	mdLinkRe     = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	mdStrongRe   = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	mdEmRe       = regexp.MustCompile(`\*([^*\s][^*]*)\*`)
	mdCodeSpanRe = regexp.MustCompile("`([^`]*)`")
)

// cleanMarkdown strips inline markup that should not be narrated.
func cleanMarkdown(s string) string {
	s = mdLinkRe.ReplaceAllString(s, "$1")
	s = mdStrongRe.ReplaceAllString(s, "$1")
	s = mdEmRe.ReplaceAllString(s, "$1")
	s = mdCodeSpanRe.ReplaceAllString(s, "$1")
	return s
}
