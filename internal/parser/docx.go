package parser

import (
	"strings"

	"github.com/dgallion1/mathreel/internal/doctree"
	"github.com/fumiama/go-docx"
)

// DOCXExtractor derives structure from Word heading styles. Paragraph text is
// classified like any other prose, so inline $...$ math survives.
type DOCXExtractor struct{}

func (e *DOCXExtractor) Extract(doc *doctree.Document) (*doctree.ChapterNode, error) {
	d, err := parseDOCX(doc.Raw())
	if err != nil {
		return nil, err
	}

	b := newTreeBuilder(doc.Title())
	var para []string
	flush := func() {
		if len(para) > 0 {
			b.text(strings.Join(para, "\n\n"), nil)
			para = para[:0]
		}
	}

	for _, item := range d.Document.Body.Items {
		p, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := docxParagraphText(p)
		if text == "" {
			continue
		}
		if level := docxHeadingLevel(p); level > 0 {
			flush()
			b.heading(text, level)
			continue
		}
		if style := docxStyle(p); strings.EqualFold(style, "Title") {
			b.root.Title = text
			continue
		}
		para = append(para, text)
	}
	flush()
	return b.finish(), nil
}

func docxStyle(para *docx.Paragraph) string {
	if para.Properties == nil || para.Properties.Style == nil {
		return ""
	}
	return para.Properties.Style.Val
}

func docxHeadingLevel(para *docx.Paragraph) int {
	style := strings.ToLower(strings.ReplaceAll(docxStyle(para), " ", ""))
	if !strings.HasPrefix(style, "heading") {
		return 0
	}
	switch strings.TrimPrefix(style, "heading") {
	case "1":
		return 1
	case "2":
		return 2
	case "3":
		return 3
	case "4":
		return 4
	case "5":
		return 5
	case "6":
		return 6
	}
	return 0
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
