package beamer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dgallion1/mathreel/internal/render"
)

// Rasterizer converts each PDF page to an image.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath, outDir string) ([]string, error)
}

// PDFToPPM rasterizes with poppler's pdftoppm.
type PDFToPPM struct {
	Path string
	DPI  int
}

func (p *PDFToPPM) Rasterize(ctx context.Context, pdfPath, outDir string) ([]string, error) {
	const op = "beamer.rasterize"
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, render.NewFatal(op, fmt.Errorf("create output dir: %w", err))
	}
	bin := p.Path
	if bin == "" {
		bin = "pdftoppm"
	}
	dpi := p.DPI
	if dpi <= 0 {
		dpi = 150
	}

	prefix := filepath.Join(outDir, "slide")
	cmd := exec.CommandContext(ctx, bin, "-png", "-r", strconv.Itoa(dpi), pdfPath, prefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, render.ExecError(ctx, op, bin, err, strings.TrimSpace(string(out)))
	}

	// pdftoppm pads page numbers to the width of the page count, so lexical order
	// is page order.
	images, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, render.NewFatal(op, err)
	}
	sort.Strings(images)
	return images, nil
}
