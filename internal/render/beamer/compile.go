package beamer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dgallion1/mathreel/internal/render"
)

// Source is a Beamer document ready to compile inside Dir.
type Source struct {
	Dir  string
	Name string // base name without extension
	TeX  []byte
}

// Compiler turns Beamer source into a PDF.
type Compiler interface {
	Compile(ctx context.Context, src Source) (pdfPath string, err error)
}

// PDFLaTeX compiles with the pdflatex binary.
type PDFLaTeX struct {
	Path string // defaults to "pdflatex" on PATH
}

func (p *PDFLaTeX) Compile(ctx context.Context, src Source) (string, error) {
	const op = "beamer.compile"
	if err := os.MkdirAll(src.Dir, 0o755); err != nil {
		return "", render.NewFatal(op, fmt.Errorf("create work dir: %w", err))
	}
	texPath := filepath.Join(src.Dir, src.Name+".tex")
	if err := os.WriteFile(texPath, src.TeX, 0o644); err != nil {
		return "", render.NewFatal(op, fmt.Errorf("write source: %w", err))
	}

	bin := p.Path
	if bin == "" {
		bin = "pdflatex"
	}
	cmd := exec.CommandContext(ctx, bin,
		"-interaction=nonstopmode",
		"-halt-on-error",
		"-output-directory", src.Dir,
		texPath,
	)
	cmd.Dir = src.Dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", render.ExecError(ctx, op, bin, err, latexErrors(out))
	}

	pdfPath := filepath.Join(src.Dir, src.Name+".pdf")
	if _, err := os.Stat(pdfPath); err != nil {
		return "", render.Fatalf(op, "pdflatex produced no output: %v", err)
	}
	return pdfPath, nil
}

// latexErrors extracts the "! ..." error lines from a TeX log.
func latexErrors(log []byte) string {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(log))
	for sc.Scan() {
		if line := sc.Text(); strings.HasPrefix(line, "! ") {
			lines = append(lines, strings.TrimPrefix(line, "! "))
		}
	}
	return strings.Join(lines, "; ")
}
