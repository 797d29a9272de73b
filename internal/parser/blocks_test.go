package parser

import (
	"testing"

	"github.com/dgallion1/mathreel/internal/doctree"
)

func TestSplitMath(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []span
	}{
		{"plain", "no math here", []span{{text: "no math here"}}},
		{"inline", "a $x$ b", []span{{text: "a "}, {math: true, text: "x"}, {text: " b"}}},
		{"display dollars", "$$ y $$", []span{{math: true, display: true, text: "y"}}},
		{"brackets", `\[z\]`, []span{{math: true, display: true, text: "z"}}},
		{"parens", `\(w\)`, []span{{math: true, text: "w"}}},
		{"environment", `\begin{equation}e=mc^2\end{equation}`, []span{{math: true, display: true, env: "equation", text: "e=mc^2"}}},
		{"align", `\begin{align*}a &= b \\ c &= d\end{align*}`, []span{{math: true, display: true, env: "align*", text: `a &= b \\ c &= d`}}},
		{"escaped dollar", `costs \$5`, []span{{text: "costs $5"}}},
		{"unterminated", "price $5", []span{{text: "price $5"}}},
		{"crlf", "a\r\n$x$", []span{{text: "a\n"}, {math: true, text: "x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitMath(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d spans, got %d: %+v", len(tt.want), len(got), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("span %d: expected %+v, got %+v", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestClassify_KeepsMathEnvironment(t *testing.T) {
	blocks := classify(`Sum: \begin{align}a &= b \\ c &= d\end{align} done`, nil)
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(blocks))
	}
	m := blocks[1].Math
	if m == nil || !m.Display {
		t.Fatalf("expected display math, got %+v", blocks[1])
	}
	if m.Env != "align" {
		t.Errorf("expected env %q, got %q", "align", m.Env)
	}
	if m.Raw != `a &= b \\ c &= d` {
		t.Errorf("expected body only, got %q", m.Raw)
	}
}

func TestClosingDollar_DoesNotCrossParagraphs(t *testing.T) {
	if got := closingDollar("a\n\nb$"); got != -1 {
		t.Errorf("expected -1, got %d", got)
	}
	if got := closingDollar("$"); got != -1 {
		t.Errorf("expected -1 for empty span, got %d", got)
	}
}

func TestClassify_Paragraphs(t *testing.T) {
	blocks := classify("first   line\nwraps\n\nsecond", nil)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if blocks[0].Text != "first line wraps" {
		t.Errorf("expected collapsed whitespace, got %q", blocks[0].Text)
	}
}

func TestClassify_UnparsableMathKeepsRaw(t *testing.T) {
	blocks := classify(`$\frac{1}{$`, nil)
	if len(blocks) != 1 || blocks[0].Kind != doctree.BlockMath {
		t.Fatalf("expected one math block, got %+v", blocks)
	}
	if blocks[0].Math.AST != nil {
		t.Error("expected nil AST for unparsable math")
	}
	if blocks[0].Math.Raw != `\frac{1}{` {
		t.Errorf("expected raw kept, got %q", blocks[0].Math.Raw)
	}
}

func TestTreeBuilder_PopsToProperAncestor(t *testing.T) {
	b := newTreeBuilder("doc")
	b.heading("Ch1", 0)
	b.heading("S1", 1)
	b.heading("S1.1", 2)
	b.heading("S2", 1)
	b.heading("Ch2", 0)
	root := b.finish()

	if len(root.Children) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(root.Children))
	}
	ch1 := root.Children[0]
	if len(ch1.Children) != 2 || ch1.Children[1].Title != "S2" {
		t.Errorf("expected S1 and S2 under Ch1, got %+v", ch1.Children)
	}
	if root.Height() != 3 {
		t.Errorf("expected height 3, got %d", root.Height())
	}
}

func TestForFormat_Unsupported(t *testing.T) {
	_, err := ForFormat(doctree.Format("rtf"))
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := err.(*doctree.UnsupportedFormatError); !ok {
		t.Errorf("expected UnsupportedFormatError, got %T", err)
	}
}
