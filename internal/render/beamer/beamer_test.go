package beamer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/mathreel/internal/doctree"
	"github.com/dgallion1/mathreel/internal/render"
	"github.com/dgallion1/mathreel/internal/slideplan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlan(templateID string) *slideplan.SlidePlan {
	return &slideplan.SlidePlan{
		Title:      "Calculus & Co",
		TemplateID: templateID,
		Slides: []slideplan.Slide{
			{Index: 0, Title: "Calculus & Co", Depth: doctree.RootDepth},
			{Index: 1, Title: "Limits_1", Depth: 1, Blocks: []doctree.ContentBlock{
				doctree.TextBlock("Costs 5% of $10"),
				doctree.MathBlock(`\frac{1}{2}`, true),
				doctree.MathBlock(`x^2`, false),
				doctree.FigureBlock("missing.png", "A plot"),
			}},
		},
	}
}

func TestGenerate(t *testing.T) {
	tex, err := Generate(testPlan("modern"), "")
	require.NoError(t, err)
	src := string(tex)

	assert.Contains(t, src, `\usetheme{metropolis}`)
	assert.Contains(t, src, `\title{Calculus \& Co}`)
	assert.Equal(t, 2, strings.Count(src, `\begin{frame}`))
	assert.Contains(t, src, `\titlepage`)
	assert.Contains(t, src, `\begin{frame}{Limits\_1}`)
	assert.Contains(t, src, `Costs 5\% of \$10`)
	assert.Contains(t, src, `\[\frac{1}{2}\]`)
	assert.Contains(t, src, `$x^2$`)
	assert.Contains(t, src, `\fbox{\small A plot}`)
	assert.NotContains(t, src, "CJK")
}

func TestGenerate_AlignmentEnvironments(t *testing.T) {
	plan := &slideplan.SlidePlan{Title: "Systems", Slides: []slideplan.Slide{
		{Title: "Systems", Depth: doctree.RootDepth, Blocks: []doctree.ContentBlock{
			doctree.EnvMathBlock(`a &= b \\ c &= d`, "align"),
			doctree.EnvMathBlock(`x \\ y`, "gather*"),
			doctree.EnvMathBlock(`e=mc^2`, "equation"),
		}},
	}}
	tex, err := Generate(plan, "")
	require.NoError(t, err)
	src := string(tex)

	assert.Contains(t, src, `\begin{align*}a &= b \\ c &= d\end{align*}`)
	assert.Contains(t, src, `\begin{gather*}x \\ y\end{gather*}`)
	assert.Contains(t, src, `\[e=mc^2\]`)
	assert.NotContains(t, src, `\[a &= b`)
}

func TestGenerate_CJKAndEmbeddedFigure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plot.png"), []byte("png"), 0o644))

	plan := &slideplan.SlidePlan{Title: "微分", Slides: []slideplan.Slide{
		{Title: "微分", Depth: doctree.RootDepth, Blocks: []doctree.ContentBlock{
			doctree.FigureBlock("plot.png", ""),
		}},
	}}
	tex, err := Generate(plan, dir)
	require.NoError(t, err)
	src := string(tex)
	assert.Contains(t, src, `\usepackage{CJKutf8}`)
	assert.Contains(t, src, `\begin{CJK}{UTF8}{min}`)
	assert.Contains(t, src, `\includegraphics`)
	assert.Contains(t, src, `\usetheme{Madrid}`)
}

func TestTheme(t *testing.T) {
	assert.Equal(t, "Madrid", Theme("academic"))
	assert.Equal(t, "metropolis", Theme("modern"))
	assert.Equal(t, "Madrid", Theme("default"))
	assert.Equal(t, "Madrid", Theme("no-such-template"))
}

func TestEscape(t *testing.T) {
	assert.Equal(t, `a\_b \{c\} \textbackslash{}d \textasciitilde{}`, Escape(`a_b {c} \d ~`))
}

type fakeCompiler struct {
	err   error
	calls int
	src   Source
}

func (f *fakeCompiler) Compile(ctx context.Context, src Source) (string, error) {
	f.calls++
	f.src = src
	if f.err != nil {
		return "", f.err
	}
	return filepath.Join(src.Dir, src.Name+".pdf"), nil
}

type fakeRasterizer struct{ n int }

func (f *fakeRasterizer) Rasterize(ctx context.Context, pdfPath, outDir string) ([]string, error) {
	var out []string
	for i := 0; i < f.n; i++ {
		out = append(out, filepath.Join(outDir, "slide-"+string(rune('1'+i))+".png"))
	}
	return out, nil
}

func TestRenderer_Success(t *testing.T) {
	comp := &fakeCompiler{}
	r := &Renderer{
		Compiler:   comp,
		Rasterizer: &fakeRasterizer{n: 2},
		CountPages: func(string) (int, error) { return 2, nil },
	}
	var progress []float64
	out, err := r.Render(context.Background(), Input{Plan: testPlan("academic"), WorkDir: "/work"}, func(f float64) {
		progress = append(progress, f)
	})
	require.NoError(t, err)
	assert.Equal(t, "/work/slides.pdf", out.PDFPath)
	assert.Len(t, out.Images, 2)
	assert.Equal(t, "slides", comp.src.Name)
	assert.Equal(t, []float64{0.1, 0.6, 0.7, 1}, progress)
}

func TestRenderer_PageCountMismatchIsFatal(t *testing.T) {
	r := &Renderer{
		Compiler:   &fakeCompiler{},
		Rasterizer: &fakeRasterizer{n: 3},
		CountPages: func(string) (int, error) { return 3, nil },
	}
	_, err := r.Render(context.Background(), Input{Plan: testPlan(""), WorkDir: t.TempDir()}, nil)
	require.Error(t, err)
	assert.False(t, render.IsTransient(err))
	assert.Contains(t, err.Error(), "compiled 3 pages for 2 slides")
}

func TestRenderer_PropagatesCompilerKind(t *testing.T) {
	r := &Renderer{
		Compiler:   &fakeCompiler{err: render.NewTransient("beamer.compile", errors.New("timeout"))},
		Rasterizer: &fakeRasterizer{},
	}
	_, err := r.Render(context.Background(), Input{Plan: testPlan(""), WorkDir: t.TempDir()}, nil)
	assert.True(t, render.IsTransient(err))
}

func TestRenderer_InvalidPDFIsFatal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "slides.pdf"), []byte("not a pdf"), 0o644))
	r := &Renderer{Compiler: &fakeCompiler{}, Rasterizer: &fakeRasterizer{n: 2}}
	_, err := r.Render(context.Background(), Input{Plan: testPlan(""), WorkDir: dir}, nil)
	require.Error(t, err)
	assert.False(t, render.IsTransient(err))
}

func TestRenderer_EmptyPlan(t *testing.T) {
	r := &Renderer{}
	_, err := r.Render(context.Background(), Input{Plan: &slideplan.SlidePlan{}}, nil)
	assert.Error(t, err)
}

func TestPDFLaTeX_MissingBinaryIsFatal(t *testing.T) {
	p := &PDFLaTeX{Path: filepath.Join(t.TempDir(), "no-such-pdflatex")}
	_, err := p.Compile(context.Background(), Source{Dir: t.TempDir(), Name: "x", TeX: []byte("x")})
	require.Error(t, err)
	var ae *render.AdapterError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, render.Fatal, ae.Kind)
	assert.Contains(t, err.Error(), "not found")
}

func TestLatexErrors(t *testing.T) {
	log := []byte("This is pdfTeX\n! Undefined control sequence.\nl.12 \\foo\n! Emergency stop.\n")
	assert.Equal(t, "Undefined control sequence.; Emergency stop.", latexErrors(log))
}
