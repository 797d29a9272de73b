// Package slideplan turns a narrated chapter tree into an ordered list of slides.
package slideplan

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgallion1/mathreel/internal/doctree"
)

// Config controls slide planning.
type Config struct {
	MaxSlideTokens  int    // Split a node across slides above this size.
	ContinuedMarker string // Appended to the titles of follow-on slides.
	TemplateID      string // Passed through to the slide renderer.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxSlideTokens:  400,
		ContinuedMarker: " (continued)",
		TemplateID:      "default",
	}
}

// ErrEmptyDocument matches any EmptyDocumentError via errors.Is.
var ErrEmptyDocument = errors.New("document has no content")

// EmptyDocumentError is returned when the tree has nothing to present.
type EmptyDocumentError struct {
	Title string
}

func (e *EmptyDocumentError) Error() string {
	return fmt.Sprintf("document %q has no content", e.Title)
}

func (e *EmptyDocumentError) Is(target error) bool { return target == ErrEmptyDocument }

// Slide is one slide of the plan.
type Slide struct {
	Index       int                    `json:"index"`
	Title       string                 `json:"title"`
	Blocks      []doctree.ContentBlock `json:"blocks,omitempty"`
	Narration   string                 `json:"narration"`
	ChapterPath []string               `json:"chapter_path,omitempty"`
	Depth       int                    `json:"depth"`
	Continued   bool                   `json:"continued,omitempty"`
}

// SlidePlan is the ordered slide list for one document. It is not modified after Build.
type SlidePlan struct {
	Title      string  `json:"title"`
	TemplateID string  `json:"template_id"`
	Slides     []Slide `json:"slides"`
}

// Build walks the tree in pre-order and emits one slide per node, the root included
// as the title slide. Oversized nodes are split across several slides.
func Build(root *doctree.ChapterNode, cfg Config) (*SlidePlan, error) {
	if root == nil {
		return nil, &EmptyDocumentError{}
	}
	if root.IsEmpty() {
		return nil, &EmptyDocumentError{Title: root.Title}
	}
	def := DefaultConfig()
	if cfg.MaxSlideTokens <= 0 {
		cfg.MaxSlideTokens = def.MaxSlideTokens
	}
	if cfg.ContinuedMarker == "" {
		cfg.ContinuedMarker = def.ContinuedMarker
	}

	plan := &SlidePlan{Title: root.Title, TemplateID: cfg.TemplateID}
	root.Walk(func(node *doctree.ChapterNode, path []string) {
		var chapterPath []string
		if node != root {
			chapterPath = append(append([]string(nil), path...), node.Title)
		}
		for i, blocks := range paginate(node.Blocks, cfg.MaxSlideTokens) {
			title := node.Title
			if i > 0 {
				title += cfg.ContinuedMarker
			}
			plan.Slides = append(plan.Slides, Slide{
				Index:       len(plan.Slides),
				Title:       title,
				Blocks:      blocks,
				Narration:   Narration(blocks),
				ChapterPath: chapterPath,
				Depth:       node.Depth,
				Continued:   i > 0,
			})
		}
	})
	return plan, nil
}

// Narration concatenates block narrations: text verbatim with whitespace collapsed,
// math by its assigned narration. Figures and unnarrated math say nothing.
func Narration(blocks []doctree.ContentBlock) string {
	var parts []string
	for _, b := range blocks {
		if s := blockNarration(b); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func blockNarration(b doctree.ContentBlock) string {
	switch b.Kind {
	case doctree.BlockText:
		return strings.Join(strings.Fields(b.Text), " ")
	case doctree.BlockMath:
		if b.Math == nil {
			return ""
		}
		s, _ := b.Math.Narration()
		return s
	}
	return ""
}

func blockTokens(b doctree.ContentBlock) int {
	switch b.Kind {
	case doctree.BlockText:
		return EstimateTokens(b.Text)
	case doctree.BlockMath:
		if b.Math == nil {
			return 0
		}
		if s, ok := b.Math.Narration(); ok {
			return EstimateTokens(s)
		}
		return EstimateTokens(b.Math.Raw)
	case doctree.BlockFigure:
		if b.Figure == nil {
			return 1
		}
		return 1 + EstimateTokens(b.Figure.Caption)
	}
	return 0
}

// paginate packs blocks into pages of at most maxTokens, keeping block order. It always
// returns at least one page so every node gets a slide.
func paginate(blocks []doctree.ContentBlock, maxTokens int) [][]doctree.ContentBlock {
	var pages [][]doctree.ContentBlock
	var cur []doctree.ContentBlock
	curTokens := 0

	push := func(b doctree.ContentBlock, tokens int) {
		if curTokens+tokens > maxTokens && len(cur) > 0 {
			pages = append(pages, cur)
			cur = nil
			curTokens = 0
		}
		cur = append(cur, b)
		curTokens += tokens
	}

	for _, b := range blocks {
		tokens := blockTokens(b)
		if b.Kind == doctree.BlockText && tokens > maxTokens {
			for _, part := range splitText(b.Text, maxTokens) {
				push(doctree.TextBlock(part), EstimateTokens(part))
			}
			continue
		}
		push(b, tokens)
	}
	if len(cur) > 0 || len(pages) == 0 {
		pages = append(pages, cur)
	}
	return pages
}
