package parser

import (
	"testing"

	"github.com/dgallion1/mathreel/internal/doctree"
)

func extractMarkdown(t *testing.T, input string) *doctree.ChapterNode {
	t.Helper()
	doc := doctree.NewDocument(doctree.FormatMarkdown, "notes.md", []byte(input), input, nil)
	root, err := (&MarkdownExtractor{}).Extract(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return root
}

func TestMarkdownExtractor_DerivativeDocument(t *testing.T) {
	input := "# Title\n\n## Sub\n\nThe derivative is defined as a limit.\n\n$$f'(x) = \\lim_{h \\to 0} \\frac{f(x+h)-f(x)}{h}$$\n"
	root := extractMarkdown(t, input)

	if root.Depth != doctree.RootDepth {
		t.Errorf("expected root depth %d, got %d", doctree.RootDepth, root.Depth)
	}
	if root.Title != "notes" {
		t.Errorf("expected root title %q, got %q", "notes", root.Title)
	}
	if h := root.Height(); h != 2 {
		t.Fatalf("expected height 2, got %d", h)
	}

	title := root.Children[0]
	if title.Title != "Title" || title.Depth != 1 {
		t.Errorf("unexpected chapter %q depth %d", title.Title, title.Depth)
	}
	sub := title.Children[0]
	if sub.Title != "Sub" || sub.Depth != 2 {
		t.Errorf("unexpected section %q depth %d", sub.Title, sub.Depth)
	}
	if len(sub.Blocks) != 2 {
		t.Fatalf("expected 2 blocks in Sub, got %d", len(sub.Blocks))
	}
	if sub.Blocks[0].Kind != doctree.BlockText {
		t.Errorf("expected first block text, got %s", sub.Blocks[0].Kind)
	}

	maths := root.MathBlocks()
	if len(maths) != 1 {
		t.Fatalf("expected 1 math expression, got %d", len(maths))
	}
	want := `f'(x) = \lim_{h \to 0} \frac{f(x+h)-f(x)}{h}`
	if maths[0].Raw != want {
		t.Errorf("expected raw %q, got %q", want, maths[0].Raw)
	}
	if !maths[0].Display {
		t.Error("expected display math")
	}
	if maths[0].AST == nil {
		t.Error("expected parsed AST")
	}
}

func TestMarkdownExtractor_HeadingHierarchy(t *testing.T) {
	input := `# Title

Intro text.

## Section A

Section A content.

### Subsection A1

Subsection A1 content.

## Section B

Section B content.
`
	root := extractMarkdown(t, input)
	if len(root.Children) != 1 {
		t.Fatalf("expected 1 top-level child, got %d", len(root.Children))
	}
	h1 := root.Children[0]
	if len(h1.Children) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(h1.Children))
	}
	if h1.Children[0].Children[0].Title != "Subsection A1" {
		t.Errorf("expected %q, got %q", "Subsection A1", h1.Children[0].Children[0].Title)
	}
	if h1.Children[1].Title != "Section B" {
		t.Errorf("expected %q, got %q", "Section B", h1.Children[1].Title)
	}
	if got := h1.Blocks[0].Text; got != "Intro text." {
		t.Errorf("expected intro text, got %q", got)
	}
}

func TestMarkdownExtractor_SkippedLevelKeepsLiteralDepth(t *testing.T) {
	root := extractMarkdown(t, "# A\n\n### Deep\n\ntext\n\n## B\n")
	a := root.Children[0]
	if len(a.Children) != 2 {
		t.Fatalf("expected 2 children under A, got %d", len(a.Children))
	}
	if a.Children[0].Depth != 3 {
		t.Errorf("expected literal depth 3, got %d", a.Children[0].Depth)
	}
	if a.Children[1].Title != "B" {
		t.Errorf("expected B as sibling of Deep, got %q", a.Children[1].Title)
	}
}

func TestMarkdownExtractor_NoHeadings(t *testing.T) {
	root := extractMarkdown(t, "Just a paragraph with $x^2$ inline.\n")
	if len(root.Children) != 0 {
		t.Fatalf("expected no children, got %d", len(root.Children))
	}
	if len(root.Blocks) != 3 {
		t.Fatalf("expected text, math, text blocks, got %d", len(root.Blocks))
	}
	if root.Blocks[1].Kind != doctree.BlockMath || root.Blocks[1].Math.Display {
		t.Errorf("expected inline math block, got %+v", root.Blocks[1])
	}
}

func TestMarkdownExtractor_FencedMathAndImages(t *testing.T) {
	input := "# Figures\n\n![Unit circle](img/circle.png)\n\n```math\n\\int_0^1 x \\, dx\n```\n\n```go\nfmt.Println(1)\n```\n"
	root := extractMarkdown(t, input)
	ch := root.Children[0]
	if len(ch.Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(ch.Blocks))
	}
	if fig := ch.Blocks[0].Figure; fig == nil || fig.Ref != "img/circle.png" || fig.Caption != "Unit circle" {
		t.Errorf("unexpected figure %+v", ch.Blocks[0])
	}
	if ch.Blocks[1].Kind != doctree.BlockMath || !ch.Blocks[1].Math.Display {
		t.Errorf("expected display math, got %+v", ch.Blocks[1])
	}
	if ch.Blocks[2].Kind != doctree.BlockText {
		t.Errorf("expected code as text, got %s", ch.Blocks[2].Kind)
	}
}

func TestMarkdownExtractor_StripsInlineMarkup(t *testing.T) {
	root := extractMarkdown(t, "See **bold** and [link](http://x) and `code`.\n")
	if got := root.Blocks[0].Text; got != "See bold and link and code." {
		t.Errorf("expected cleaned text, got %q", got)
	}
}
