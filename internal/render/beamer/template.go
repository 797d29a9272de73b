// Package beamer renders a slide plan to a Beamer PDF and one PNG per slide.
package beamer

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"unicode"

	"github.com/dgallion1/mathreel/internal/doctree"
	"github.com/dgallion1/mathreel/internal/slideplan"
)

// DefaultTemplate is used for empty or unknown template ids.
const DefaultTemplate = "default"

var themes = map[string]string{
	"academic": "Madrid",
	"modern":   "metropolis",
}

// Theme resolves a template id to a Beamer theme. "default" and unknown ids map to
// the academic theme.
func Theme(templateID string) string {
	if t, ok := themes[templateID]; ok {
		return t
	}
	return themes["academic"]
}

// Templates lists the known template ids.
func Templates() []string {
	return []string{"academic", "modern", DefaultTemplate}
}

// LaTeX braces clash with the default {{ }} delimiters.
var docTemplate = template.Must(template.New("beamer").Delims("<<", ">>").Parse(`\documentclass[aspectratio=169]{beamer}
\usetheme{<<.Theme>>}
\usepackage[utf8]{inputenc}
\usepackage{amsmath,amssymb}
\usepackage{graphicx}
<<- if .CJK>>
\usepackage{CJKutf8}
<<- end>>
\title{<<.Title>>}
\date{}
\begin{document}
<<- if .CJK>>
\begin{CJK}{UTF8}{min}
<<- end>>
<<range .Frames>>
\begin{frame}<<if .Title>>{<<.Title>>}<<end>>
<<- if .TitlePage>>
\titlepage
<<- end>>
<<.Body>>
\end{frame}
<<- end>>
<<if .CJK>>
\end{CJK}
<<- end>>
\end{document}
`))

type frame struct {
	Title     string
	TitlePage bool
	Body      string
}

type document struct {
	Theme  string
	Title  string
	CJK    bool
	Frames []frame
}

// Generate produces the Beamer source for plan: one frame per slide, the first being
// the title page. Figures whose file exists under assetDir are embedded; others are
// shown by caption.
func Generate(plan *slideplan.SlidePlan, assetDir string) ([]byte, error) {
	doc := document{
		Theme: Theme(plan.TemplateID),
		Title: Escape(plan.Title),
		CJK:   hasCJK(plan),
	}
	for i, s := range plan.Slides {
		f := frame{Body: frameBody(s.Blocks, assetDir)}
		if i == 0 && s.Depth == doctree.RootDepth && !s.Continued {
			f.TitlePage = true
		} else {
			f.Title = Escape(s.Title)
		}
		doc.Frames = append(doc.Frames, f)
	}

	var buf bytes.Buffer
	if err := docTemplate.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("execute beamer template: %w", err)
	}
	return buf.Bytes(), nil
}

func frameBody(blocks []doctree.ContentBlock, assetDir string) string {
	var parts []string
	for _, b := range blocks {
		switch b.Kind {
		case doctree.BlockText:
			parts = append(parts, Escape(b.Text))
		case doctree.BlockMath:
			if b.Math == nil {
				continue
			}
			if b.Math.Display {
				parts = append(parts, displayMath(b.Math))
			} else {
				parts = append(parts, `$`+b.Math.Raw+`$`)
			}
		case doctree.BlockFigure:
			if b.Figure != nil {
				parts = append(parts, figure(b.Figure, assetDir))
			}
		}
	}
	return strings.Join(parts, "\n\n")
}

// alignedEnvs hold & and \\, which are illegal inside \[..\]. They are re-emitted
// unnumbered.
var alignedEnvs = map[string]bool{"align": true, "gather": true, "multline": true, "eqnarray": true}

func displayMath(m *doctree.MathExpression) string {
	if base := strings.TrimSuffix(m.Env, "*"); alignedEnvs[base] {
		env := base + "*"
		return `\begin{` + env + `}` + m.Raw + `\end{` + env + `}`
	}
	return `\[` + m.Raw + `\]`
}

func figure(f *doctree.Figure, assetDir string) string {
	caption := Escape(f.Caption)
	if assetDir != "" && f.Ref != "" && !strings.Contains(f.Ref, "..") {
		path := filepath.Join(assetDir, f.Ref)
		if _, err := os.Stat(path); err == nil {
			out := `\begin{center}\includegraphics[height=0.6\textheight]{` + filepath.ToSlash(path) + `}`
			if caption != "" {
				out += `\\ \small ` + caption
			}
			return out + `\end{center}`
		}
	}
	if caption == "" {
		caption = Escape(f.Ref)
	}
	return `\begin{center}\fbox{\small ` + caption + `}\end{center}`
}

var texEscaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`&`, `\&`,
	`%`, `\%`,
	`$`, `\$`,
	`#`, `\#`,
	`_`, `\_`,
	`{`, `\{`,
	`}`, `\}`,
	`~`, `\textasciitilde{}`,
	`^`, `\textasciicircum{}`,
)

// Escape makes s safe as LaTeX text.
func Escape(s string) string {
	return texEscaper.Replace(s)
}

func hasCJK(plan *slideplan.SlidePlan) bool {
	check := func(s string) bool {
		for _, r := range s {
			if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) {
				return true
			}
		}
		return false
	}
	if check(plan.Title) {
		return true
	}
	for _, s := range plan.Slides {
		if check(s.Title) {
			return true
		}
		for _, b := range s.Blocks {
			if b.Kind == doctree.BlockText && check(b.Text) {
				return true
			}
		}
	}
	return false
}
