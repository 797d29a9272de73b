package parser

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/dgallion1/mathreel/internal/doctree"
	"github.com/fumiama/go-docx"
	pdflib "github.com/ledongthuc/pdf"
)

// Ingester turns raw uploads into Documents, extracting plain text and, for PDFs,
// per-line font sizes.
type Ingester struct {
	FallbackPdftotext bool
	PdftotextPath     string
}

// Ingest builds a Document. Layout supplied by the caller takes precedence over
// layout read from the PDF itself.
func (g *Ingester) Ingest(ctx context.Context, format doctree.Format, name string, raw []byte, layout *doctree.Layout) (*doctree.Document, error) {
	switch format {
	case doctree.FormatMarkdown, doctree.FormatLaTeX, doctree.FormatHTML:
		return doctree.NewDocument(format, name, raw, string(raw), layout), nil
	case doctree.FormatDOCX:
		text, err := docxText(raw)
		if err != nil {
			return nil, err
		}
		return doctree.NewDocument(format, name, raw, text, layout), nil
	case doctree.FormatPDF:
		text, extracted, err := g.pdfText(ctx, raw)
		if err != nil {
			return nil, err
		}
		switch {
		case layout == nil:
			layout = extracted
		case layout.Title == "" && extracted != nil:
			merged := *layout
			merged.Title = extracted.Title
			layout = &merged
		}
		return doctree.NewDocument(format, name, raw, text, layout), nil
	}
	return nil, &doctree.UnsupportedFormatError{Format: string(format)}
}

func (g *Ingester) pdfText(ctx context.Context, raw []byte) (string, *doctree.Layout, error) {
	// ledongthuc/pdf and pdftotext both want a file on disk.
	tmp, err := os.CreateTemp("", "mathreel-pdf-*.pdf")
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	layout, err := extractPDFLayout(tmpPath)
	if err == nil && len(layout.Lines) > 0 {
		return layoutText(layout), layout, nil
	}
	if !g.FallbackPdftotext {
		if err == nil {
			err = fmt.Errorf("no text layer")
		}
		return "", nil, fmt.Errorf("extract pdf text: %w", err)
	}
	text, ferr := g.pdftotext(ctx, tmpPath)
	if ferr != nil {
		return "", nil, fmt.Errorf("extract pdf text: %w", ferr)
	}
	if err == nil && layout.Title != "" {
		return text, &doctree.Layout{Title: layout.Title}, nil
	}
	return text, nil, nil
}

// extractPDFLayout groups positioned glyph runs into visual lines per page.
func extractPDFLayout(path string) (layout *doctree.Layout, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	layout = &doctree.Layout{Title: infoTitle(reader.Trailer())}
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		layout.Lines = append(layout.Lines, groupLines(page.Content().Text, i)...)
	}
	return layout, nil
}

// infoTitle reads /Title from the trailer's Info dictionary.
func infoTitle(trailer pdflib.Value) string {
	return strings.TrimSpace(trailer.Key("Info").Key("Title").Text())
}

const sameLineTolerance = 2.0

func groupLines(texts []pdflib.Text, page int) []doctree.LayoutLine {
	if len(texts) == 0 {
		return nil
	}
	sorted := append([]pdflib.Text(nil), texts...)
	// PDF y grows upward: top of page first, then left to right.
	sort.SliceStable(sorted, func(i, j int) bool {
		if math.Abs(sorted[i].Y-sorted[j].Y) > sameLineTolerance {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var lines []doctree.LayoutLine
	var cur strings.Builder
	curY, curSize, prevEnd := sorted[0].Y, 0.0, math.Inf(-1)
	flush := func() {
		if t := strings.TrimSpace(cur.String()); t != "" {
			lines = append(lines, doctree.LayoutLine{Text: t, FontSize: curSize, Page: page})
		}
		cur.Reset()
		curSize = 0
		prevEnd = math.Inf(-1)
	}
	for _, t := range sorted {
		if math.Abs(t.Y-curY) > sameLineTolerance {
			flush()
			curY = t.Y
		}
		if cur.Len() > 0 && t.X-prevEnd > t.FontSize*0.25 {
			cur.WriteByte(' ')
		}
		cur.WriteString(t.S)
		prevEnd = t.X + t.W
		if t.FontSize > curSize {
			curSize = t.FontSize
		}
	}
	flush()
	return lines
}

func layoutText(l *doctree.Layout) string {
	var buf strings.Builder
	page := 0
	for _, ln := range l.Lines {
		if page != 0 && ln.Page != page {
			buf.WriteString("\f") // Form feed as page separator.
		} else if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		page = ln.Page
		buf.WriteString(ln.Text)
	}
	return buf.String()
}

func (g *Ingester) pdftotext(ctx context.Context, path string) (string, error) {
	bin := g.PdftotextPath
	if bin == "" {
		bin = "pdftotext"
	}
	out, err := exec.CommandContext(ctx, bin, "-layout", path, "-").Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}

// parseDOCX loads a .docx from memory; go-docx needs a ReaderAt and size.
func parseDOCX(raw []byte) (*docx.Docx, error) {
	doc, err := docx.Parse(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}
	return doc, nil
}

func docxText(raw []byte) (string, error) {
	doc, err := parseDOCX(raw)
	if err != nil {
		return "", err
	}
	var parts []string
	for _, item := range doc.Document.Body.Items {
		if para, ok := item.(*docx.Paragraph); ok {
			if t := docxParagraphText(para); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, "\n\n"), nil
}
