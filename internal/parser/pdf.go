package parser

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/mathreel/internal/doctree"
)

// PDFExtractor infers structure from numbering idioms and, when layout metadata is
// available, from relative font sizes. A numbering idiom decides the depth whenever
// both signals fire. With neither signal the root holds the whole document.
type PDFExtractor struct{}

const (
	headingSizeRatio = 1.15
	maxFontBuckets   = 4
)

func (e *PDFExtractor) Extract(doc *doctree.Document) (*doctree.ChapterNode, error) {
	lines := pdfLines(doc)
	body := bodyFontSize(lines)
	buckets := fontBuckets(lines, body)

	b := newTreeBuilder(doc.Title())
	var para []string
	page := 0
	flush := func() {
		if len(para) > 0 {
			b.text(strings.Join(para, "\n"), nil)
			para = para[:0]
		}
	}

	for _, ln := range lines {
		text := strings.TrimSpace(ln.Text)
		if ln.Page != page {
			flush()
			page = ln.Page
		}
		if text == "" {
			flush()
			continue
		}
		if depth, ok := headingDepth(text, ln.FontSize, body, buckets); ok {
			flush()
			b.heading(text, depth)
			continue
		}
		para = append(para, text)
	}
	flush()
	return b.finish(), nil
}

// pdfLines prefers layout metadata and falls back to the extracted text, where form
// feeds separate pages.
func pdfLines(doc *doctree.Document) []doctree.LayoutLine {
	if l := doc.Layout(); l != nil && len(l.Lines) > 0 {
		return l.Lines
	}
	var lines []doctree.LayoutLine
	for i, pageText := range strings.Split(doc.Text(), "\f") {
		for _, t := range strings.Split(pageText, "\n") {
			lines = append(lines, doctree.LayoutLine{Text: t, Page: i + 1})
		}
	}
	return lines
}

func headingDepth(text string, size, body float64, buckets []float64) (int, bool) {
	if depth, ok := matchHeadingPattern(text); ok {
		return depth, true
	}
	if !isFontHeading(text, size, body) {
		return 0, false
	}
	if dotlessNumberRe.MatchString(text) {
		return dotlessNumberDepth, true
	}
	r := roundSize(size)
	for i, s := range buckets {
		if r == s {
			return i, true
		}
	}
	// Sizes beyond the bucket limit nest under the smallest bucket.
	return len(buckets), len(buckets) > 0
}

func isFontHeading(text string, size, body float64) bool {
	return size > 0 && body > 0 && size >= body*headingSizeRatio &&
		utf8.RuneCountInString(text) <= maxHeadingRunes
}

// bodyFontSize is the size carrying the most characters.
func bodyFontSize(lines []doctree.LayoutLine) float64 {
	weight := map[float64]int{}
	for _, ln := range lines {
		if ln.FontSize > 0 {
			weight[roundSize(ln.FontSize)] += utf8.RuneCountInString(ln.Text)
		}
	}
	best, bestN := 0.0, -1
	for size, n := range weight {
		if n > bestN || (n == bestN && size < best) {
			best, bestN = size, n
		}
	}
	return best
}

// fontBuckets lists distinct heading sizes, largest first; index is depth.
func fontBuckets(lines []doctree.LayoutLine, body float64) []float64 {
	seen := map[float64]bool{}
	var sizes []float64
	for _, ln := range lines {
		if !isFontHeading(strings.TrimSpace(ln.Text), ln.FontSize, body) {
			continue
		}
		if r := roundSize(ln.FontSize); !seen[r] {
			seen[r] = true
			sizes = append(sizes, r)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(sizes)))
	if len(sizes) > maxFontBuckets {
		sizes = sizes[:maxFontBuckets]
	}
	return sizes
}

// roundSize buckets sizes to half points to absorb font noise.
func roundSize(s float64) float64 {
	return math.Round(s*2) / 2
}
