package parser

import (
	"testing"

	"github.com/dgallion1/mathreel/internal/doctree"
)

const calculusTeX = `\documentclass{article}
\title{Calculus \textbf{Notes}}
\begin{document}
\maketitle
\begin{abstract}
A short abstract.
\end{abstract}
\section{Limits}
We define % the rest is a comment
$\lim_{x \to 0} x = 0$.
\subsection{Derivatives}
\begin{equation}
f'(x) = 2x
\end{equation}
\begin{figure}
\includegraphics[width=3cm]{plot.png}
\caption{A plot}
\end{figure}
\section*{Integrals}
Costs 100\% effort.
\end{document}
`

func TestLaTeXExtractor(t *testing.T) {
	doc := doctree.NewDocument(doctree.FormatLaTeX, "calc.tex", []byte(calculusTeX), calculusTeX, nil)
	root, err := (&LaTeXExtractor{}).Extract(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if root.Title != "Calculus Notes" {
		t.Errorf("expected title %q, got %q", "Calculus Notes", root.Title)
	}
	if len(root.Blocks) != 1 || root.Blocks[0].Text != "A short abstract." {
		t.Errorf("expected abstract block on root, got %+v", root.Blocks)
	}
	if len(root.Children) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(root.Children))
	}

	limits := root.Children[0]
	if limits.Title != "Limits" || limits.Depth != 1 {
		t.Errorf("unexpected section %q depth %d", limits.Title, limits.Depth)
	}
	if len(limits.Blocks) != 3 {
		t.Fatalf("expected text, math, text in Limits, got %+v", limits.Blocks)
	}
	if limits.Blocks[0].Text != "We define" {
		t.Errorf("expected comment stripped, got %q", limits.Blocks[0].Text)
	}

	deriv := limits.Children[0]
	if deriv.Depth != 2 {
		t.Errorf("expected subsection depth 2, got %d", deriv.Depth)
	}
	if len(deriv.Blocks) != 2 {
		t.Fatalf("expected equation and figure, got %+v", deriv.Blocks)
	}
	if m := deriv.Blocks[0].Math; m == nil || !m.Display || m.Raw != "f'(x) = 2x" {
		t.Errorf("unexpected equation block %+v", deriv.Blocks[0])
	}
	if f := deriv.Blocks[1].Figure; f == nil || f.Ref != "plot.png" || f.Caption != "A plot" {
		t.Errorf("unexpected figure block %+v", deriv.Blocks[1])
	}

	integrals := root.Children[1]
	if integrals.Title != "Integrals" {
		t.Errorf("expected starred section title, got %q", integrals.Title)
	}
	if got := integrals.Blocks[0].Text; got != "Costs 100% effort." {
		t.Errorf("expected escaped percent kept, got %q", got)
	}
}

func TestLaTeXExtractor_NoSections(t *testing.T) {
	src := "Only text and $a+b$."
	doc := doctree.NewDocument(doctree.FormatLaTeX, "plain.tex", []byte(src), src, nil)
	root, err := (&LaTeXExtractor{}).Extract(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if root.Title != "plain" {
		t.Errorf("expected filename title, got %q", root.Title)
	}
	if len(root.Children) != 0 || len(root.Blocks) != 3 {
		t.Errorf("expected content on root only, got %d children %d blocks", len(root.Children), len(root.Blocks))
	}
}

func TestBalancedBraces(t *testing.T) {
	s := `{a {b} \} c}rest`
	got, end := balancedBraces(s, 0)
	if got != `a {b} \} c` {
		t.Errorf("expected inner text, got %q", got)
	}
	if s[end:] != "rest" {
		t.Errorf("expected end before rest, got %q", s[end:])
	}
}

func TestCleanLaTeX(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`\emph{very} important`, "very important"},
		{`see \ref{eq:1} above`, "see  above"},
		{`\textbf{\emph{nested}}`, "nested"},
		{`a~b`, "a b"},
	}
	for _, tt := range tests {
		if got := cleanLaTeX(tt.in); got != tt.want {
			t.Errorf("cleanLaTeX(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
