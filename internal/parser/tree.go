package parser

import (
	"strings"

	"github.com/dgallion1/mathreel/internal/doctree"
)

// treeBuilder assembles a ChapterNode tree from a stream of headings and content.
// Skipped heading levels are not synthesized: a heading attaches under the nearest
// open node with a smaller depth and keeps its literal depth.
type treeBuilder struct {
	root  *doctree.ChapterNode
	stack []*doctree.ChapterNode
}

func newTreeBuilder(title string) *treeBuilder {
	root := doctree.NewRoot(title)
	return &treeBuilder{root: root, stack: []*doctree.ChapterNode{root}}
}

func (b *treeBuilder) top() *doctree.ChapterNode {
	return b.stack[len(b.stack)-1]
}

func (b *treeBuilder) heading(title string, depth int) {
	title = strings.TrimSpace(title)
	if depth <= doctree.RootDepth {
		depth = doctree.RootDepth + 1
	}
	node := &doctree.ChapterNode{Title: title, Depth: depth}

	// Pop until the top is a proper ancestor.
	for len(b.stack) > 1 && b.top().Depth >= depth {
		b.stack = b.stack[:len(b.stack)-1]
	}
	parent := b.top()
	parent.Children = append(parent.Children, node)
	b.stack = append(b.stack, node)
}

func (b *treeBuilder) add(blocks ...doctree.ContentBlock) {
	top := b.top()
	top.Blocks = append(top.Blocks, blocks...)
}

// text classifies s into math and text blocks. clean, when set, post-processes the
// plain text segments.
func (b *treeBuilder) text(s string, clean func(string) string) {
	b.add(classify(s, clean)...)
}

func (b *treeBuilder) figure(ref, caption string) {
	b.add(doctree.FigureBlock(strings.TrimSpace(ref), strings.TrimSpace(caption)))
}

func (b *treeBuilder) finish() *doctree.ChapterNode {
	return b.root
}
