package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/mathreel/internal/doctree"
	"github.com/dgallion1/mathreel/internal/mathspeech"
)

func TestPrintOutline(t *testing.T) {
	root := doctree.NewRoot("Calculus")
	ch := &doctree.ChapterNode{Title: "Limits", Depth: 1, Blocks: []doctree.ContentBlock{
		doctree.TextBlock("intro"),
		doctree.MathBlock(`x^2`, true),
	}}
	ch.Children = []*doctree.ChapterNode{{Title: "Epsilon", Depth: 2}}
	root.Children = []*doctree.ChapterNode{ch}

	var buf bytes.Buffer
	printOutline(&buf, root)
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), buf.String())
	}
	if lines[0] != "Calculus" {
		t.Errorf("expected root line %q, got %q", "Calculus", lines[0])
	}
	if lines[1] != "  Limits  [text 1, math 1, figures 0]" {
		t.Errorf("unexpected chapter line %q", lines[1])
	}
	if lines[2] != "    Epsilon" {
		t.Errorf("unexpected section line %q", lines[2])
	}
}

func TestNarrate_SkipsBlankLines(t *testing.T) {
	var buf bytes.Buffer
	narrate(&buf, mathspeech.ForLanguage("en-US"), []string{`\frac{a}{b}`, "  ", `x^2`})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			t.Errorf("expected non-empty narration, got %q", l)
		}
	}
}

func TestLoadTree_Markdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	if err := os.WriteFile(path, []byte("# One\n\ntext\n\n# Two\n\nmore\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	root, err := loadTree(context.Background(), path, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(root.Children) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(root.Children))
	}
	if root.Children[1].Title != "Two" {
		t.Errorf("expected %q, got %q", "Two", root.Children[1].Title)
	}
}

func TestResolveFormat(t *testing.T) {
	f, err := resolveFormat("paper.tex", "")
	if err != nil || f != doctree.FormatLaTeX {
		t.Errorf("expected latex, got %q (%v)", f, err)
	}
	f, err = resolveFormat("paper.txt", "md")
	if err != nil || f != doctree.FormatMarkdown {
		t.Errorf("expected markdown override, got %q (%v)", f, err)
	}
	if _, err := resolveFormat("paper.pptx", ""); err == nil {
		t.Error("expected error for unsupported extension")
	}
}
