package beamer

import (
	"context"
	"path/filepath"

	"github.com/dgallion1/mathreel/internal/render"
	"github.com/dgallion1/mathreel/internal/slideplan"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Input is one slide rendering request.
type Input struct {
	Plan     *slideplan.SlidePlan
	WorkDir  string // receives slides.tex, slides.pdf and the PNGs
	AssetDir string // where figure references are resolved; optional
}

// Output lists the rendered artifacts.
type Output struct {
	PDFPath string
	Images  []string // one per slide, in slide order
}

// Renderer is the slide adapter: Beamer source, PDF compile, page-count check,
// rasterization.
type Renderer struct {
	Compiler   Compiler
	Rasterizer Rasterizer

	// CountPages defaults to pdfcpu's page counter.
	CountPages func(pdfPath string) (int, error)
}

var _ render.Adapter[Input, Output] = (*Renderer)(nil)

func (r *Renderer) Render(ctx context.Context, in Input, report render.ProgressFunc) (Output, error) {
	const op = "beamer.render"
	if in.Plan == nil || len(in.Plan.Slides) == 0 {
		return Output{}, render.Fatalf(op, "empty slide plan")
	}

	tex, err := Generate(in.Plan, in.AssetDir)
	if err != nil {
		return Output{}, render.NewFatal(op, err)
	}
	render.Report(report, 0.1)

	pdfPath, err := r.Compiler.Compile(ctx, Source{Dir: in.WorkDir, Name: "slides", TeX: tex})
	if err != nil {
		return Output{}, err
	}
	render.Report(report, 0.6)

	count := r.CountPages
	if count == nil {
		count = api.PageCountFile
	}
	pages, err := count(pdfPath)
	if err != nil {
		return Output{}, render.NewFatal("beamer.validate", err)
	}
	if pages != len(in.Plan.Slides) {
		return Output{}, render.Fatalf("beamer.validate", "compiled %d pages for %d slides", pages, len(in.Plan.Slides))
	}
	render.Report(report, 0.7)

	images, err := r.Rasterizer.Rasterize(ctx, pdfPath, filepath.Join(in.WorkDir, "png"))
	if err != nil {
		return Output{}, err
	}
	if len(images) != pages {
		return Output{}, render.Fatalf("beamer.rasterize", "rasterized %d images for %d pages", len(images), pages)
	}
	render.Report(report, 1)
	return Output{PDFPath: pdfPath, Images: images}, nil
}
