package doctree

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dgallion1/mathreel/internal/latexmath"
)

// Format is the declared source format of a document.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatLaTeX    Format = "latex"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatDOCX     Format = "docx"
)

// UnsupportedFormatError is returned at ingestion for formats no extractor handles.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported document format: %q", e.Format)
}

// ParseFormat normalises a format tag or common alias.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pdf":
		return FormatPDF, nil
	case "latex", "tex":
		return FormatLaTeX, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	case "docx":
		return FormatDOCX, nil
	}
	return "", &UnsupportedFormatError{Format: s}
}

// FormatFromFilename infers the format from a file extension.
func FormatFromFilename(name string) (Format, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return "", &UnsupportedFormatError{Format: name}
	}
	return ParseFormat(ext)
}

// LayoutLine is one visual line of a laid-out document.
type LayoutLine struct {
	Text     string  `json:"text"`
	FontSize float64 `json:"font_size"`
	Page     int     `json:"page"`
}

// Layout carries optional typographic metadata for PDF sources.
type Layout struct {
	Title string       `json:"title,omitempty"` // document info /Title
	Lines []LayoutLine `json:"lines"`
}

// Document is an ingested source document. It is immutable once constructed.
type Document struct {
	name   string
	format Format
	raw    []byte
	text   string
	layout *Layout
}

// NewDocument copies raw and layout so later changes by the caller are not observed.
func NewDocument(format Format, name string, raw []byte, text string, layout *Layout) *Document {
	d := &Document{
		name:   name,
		format: format,
		raw:    append([]byte(nil), raw...),
		text:   text,
	}
	if layout != nil {
		d.layout = &Layout{Title: layout.Title, Lines: append([]LayoutLine(nil), layout.Lines...)}
	}
	return d
}

func (d *Document) Name() string   { return d.name }
func (d *Document) Format() Format { return d.format }
func (d *Document) Text() string   { return d.text }

// Raw returns a copy of the original bytes.
func (d *Document) Raw() []byte { return append([]byte(nil), d.raw...) }

// Layout returns the layout metadata, or nil when none was available.
func (d *Document) Layout() *Layout { return d.layout }

// Title prefers embedded metadata and otherwise derives a title from the document name.
func (d *Document) Title() string {
	if d.layout != nil {
		if t := strings.TrimSpace(d.layout.Title); t != "" {
			return t
		}
	}
	base := filepath.Base(d.name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// RootDepth is the depth of the synthetic root node. Detected headings carry their
// literal level, which is always greater.
const RootDepth = -1

// ChapterNode is one section of the document tree.
type ChapterNode struct {
	Title    string         `json:"title"`
	Depth    int            `json:"depth"`
	Blocks   []ContentBlock `json:"blocks,omitempty"`
	Children []*ChapterNode `json:"children,omitempty"`
}

// NewRoot returns an empty synthetic root.
func NewRoot(title string) *ChapterNode {
	return &ChapterNode{Title: title, Depth: RootDepth}
}

// IsEmpty reports whether the node carries neither content nor children.
func (n *ChapterNode) IsEmpty() bool {
	return len(n.Blocks) == 0 && len(n.Children) == 0
}

// Walk visits n and its descendants in document order. The path holds the titles of
// the visited node's proper ancestors, root excluded.
func (n *ChapterNode) Walk(fn func(node *ChapterNode, path []string)) {
	n.walk(nil, true, fn)
}

func (n *ChapterNode) walk(path []string, root bool, fn func(*ChapterNode, []string)) {
	fn(n, path)
	var childPath []string
	if !root {
		childPath = append(append([]string(nil), path...), n.Title)
	}
	for _, c := range n.Children {
		c.walk(childPath, false, fn)
	}
}

// Count returns the number of nodes in the subtree, n included.
func (n *ChapterNode) Count() int {
	total := 0
	n.Walk(func(*ChapterNode, []string) { total++ })
	return total
}

// Height is the number of edges on the longest root-to-leaf path.
func (n *ChapterNode) Height() int {
	h := 0
	for _, c := range n.Children {
		if ch := c.Height() + 1; ch > h {
			h = ch
		}
	}
	return h
}

// MathBlocks returns every math expression in the subtree in document order.
func (n *ChapterNode) MathBlocks() []*MathExpression {
	var out []*MathExpression
	n.Walk(func(node *ChapterNode, _ []string) {
		for _, b := range node.Blocks {
			if b.Math != nil {
				out = append(out, b.Math)
			}
		}
	})
	return out
}

// BlockKind tags a ContentBlock variant.
type BlockKind string

const (
	BlockText   BlockKind = "text"
	BlockMath   BlockKind = "math"
	BlockFigure BlockKind = "figure"
)

// ContentBlock is one unit of section content. Exactly one of Text, Math, Figure is
// meaningful, selected by Kind.
type ContentBlock struct {
	Kind   BlockKind       `json:"kind"`
	Text   string          `json:"text,omitempty"`
	Math   *MathExpression `json:"math,omitempty"`
	Figure *Figure         `json:"figure,omitempty"`
}

func TextBlock(s string) ContentBlock { return ContentBlock{Kind: BlockText, Text: s} }

func FigureBlock(ref, caption string) ContentBlock {
	return ContentBlock{Kind: BlockFigure, Figure: &Figure{Ref: ref, Caption: caption}}
}

// MathBlock parses raw eagerly; unparsable input keeps Raw and leaves AST nil.
func MathBlock(raw string, display bool) ContentBlock {
	m := &MathExpression{Raw: raw, Display: display}
	if ast, err := latexmath.Parse(raw); err == nil {
		m.AST = ast
	}
	return ContentBlock{Kind: BlockMath, Math: m}
}

// EnvMathBlock is a display block that came from a named math environment such as
// align. Raw holds the environment body only.
func EnvMathBlock(raw, env string) ContentBlock {
	b := MathBlock(raw, true)
	b.Math.Env = env
	return b
}

// ErrAlreadyNarrated is returned when narration is assigned twice.
var ErrAlreadyNarrated = errors.New("math expression already narrated")

// MathExpression is a formula with its verbatim source and, once set, its narration.
type MathExpression struct {
	Raw     string         `json:"raw"`
	Display bool           `json:"display"`
	Env     string         `json:"env,omitempty"` // source environment, e.g. "align*"
	AST     latexmath.Node `json:"-"`

	narration string
	narrated  bool
}

// SetNarration records the narration. It may be called only once.
func (m *MathExpression) SetNarration(s string) error {
	if m.narrated {
		return ErrAlreadyNarrated
	}
	m.narration = s
	m.narrated = true
	return nil
}

// Narration returns the narration and whether it has been set.
func (m *MathExpression) Narration() (string, bool) {
	return m.narration, m.narrated
}

// Figure references an image or figure in the source.
type Figure struct {
	Ref     string `json:"ref"`
	Caption string `json:"caption,omitempty"`
}
