package parser

import (
	"fmt"

	"github.com/dgallion1/mathreel/internal/doctree"
)

// Extractor derives the chapter tree of a document.
type Extractor interface {
	Extract(doc *doctree.Document) (*doctree.ChapterNode, error)
}

// StructureNotFoundError documents the case where no heading signal exists. Extractors
// never return it: such documents degrade to a single root chapter holding all content.
type StructureNotFoundError struct {
	Format doctree.Format
}

func (e *StructureNotFoundError) Error() string {
	return fmt.Sprintf("no chapter structure found in %s document", e.Format)
}

// ForFormat returns the extractor for a document format.
func ForFormat(f doctree.Format) (Extractor, error) {
	switch f {
	case doctree.FormatMarkdown:
		return &MarkdownExtractor{}, nil
	case doctree.FormatLaTeX:
		return &LaTeXExtractor{}, nil
	case doctree.FormatPDF:
		return &PDFExtractor{}, nil
	case doctree.FormatHTML:
		return &HTMLExtractor{}, nil
	case doctree.FormatDOCX:
		return &DOCXExtractor{}, nil
	default:
		return nil, &doctree.UnsupportedFormatError{Format: string(f)}
	}
}

// Extract runs the extractor matching the document's format.
func Extract(doc *doctree.Document) (*doctree.ChapterNode, error) {
	e, err := ForFormat(doc.Format())
	if err != nil {
		return nil, err
	}
	return e.Extract(doc)
}
