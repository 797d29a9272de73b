// Package mathspeech turns TeX math into speakable narration.
package mathspeech

import (
	"fmt"
	"strings"

	"github.com/dgallion1/mathreel/internal/doctree"
	"github.com/dgallion1/mathreel/internal/latexmath"
)

// Narrator converts math expressions using a fixed phrasebook. It holds no mutable
// state, so one Narrator may be shared across goroutines.
type Narrator struct {
	book *Phrasebook
}

func New(book *Phrasebook) *Narrator {
	if book == nil {
		book = Japanese
	}
	return &Narrator{book: book}
}

// ForLanguage returns a narrator for a BCP 47 language code.
func ForLanguage(lang string) *Narrator {
	return New(For(lang))
}

// Narrate returns narration for an expression. It never fails: expressions without an
// AST are spelled out token by token.
func (n *Narrator) Narrate(expr *doctree.MathExpression) string {
	if expr == nil {
		return n.book.Formula
	}
	if expr.AST != nil {
		if s := normalize(n.node(expr.AST)); s != "" {
			return s
		}
	}
	return n.Fallback(expr.Raw)
}

// NarrateNode narrates a bare AST node.
func (n *Narrator) NarrateNode(node latexmath.Node) string {
	s := normalize(n.node(node))
	if s == "" {
		return n.book.Formula
	}
	return s
}

// NarrateTree assigns narration to every math block under root that has none yet.
func (n *Narrator) NarrateTree(root *doctree.ChapterNode) int {
	count := 0
	for _, m := range root.MathBlocks() {
		if _, done := m.Narration(); done {
			continue
		}
		if err := m.SetNarration(n.Narrate(m)); err == nil {
			count++
		}
	}
	return count
}

func (n *Narrator) node(node latexmath.Node) string {
	b := n.book
	switch v := node.(type) {
	case nil:
		return ""
	case *latexmath.Seq:
		parts := make([]string, 0, len(v.Items))
		for _, it := range v.Items {
			parts = append(parts, n.node(it))
		}
		return strings.Join(parts, " ")
	case *latexmath.Number:
		return v.Value
	case *latexmath.Ident:
		if v.Greek {
			if w, ok := b.Greek[v.Name]; ok {
				return w
			}
		}
		return v.Name
	case *latexmath.Symbol:
		return n.word(v.Name)
	case *latexmath.Text:
		return v.Value
	case *latexmath.Frac:
		return fmt.Sprintf(b.Frac, n.node(v.Num), n.node(v.Den))
	case *latexmath.Sqrt:
		if v.Index != nil {
			return fmt.Sprintf(b.Root, n.node(v.Radicand), n.node(v.Index))
		}
		return fmt.Sprintf(b.Sqrt, n.node(v.Radicand))
	case *latexmath.Script:
		s := n.node(v.Base)
		if v.Sub != nil {
			s = fmt.Sprintf(b.Subscript, s, n.node(v.Sub))
		}
		if v.Sup != nil {
			s = fmt.Sprintf(b.Power, s, n.node(v.Sup))
		}
		return s
	case *latexmath.Prime:
		s := n.node(v.Base)
		for range v.Count {
			s = fmt.Sprintf(b.Prime, s)
		}
		return s
	case *latexmath.Apply:
		args := n.node(v.Args)
		if !atomic(v.Args) {
			args = fmt.Sprintf(b.Group, args)
		}
		return fmt.Sprintf(b.Apply, n.node(v.Fn), args)
	case *latexmath.Func:
		name := v.Name
		if w, ok := b.Functions[v.Name]; ok {
			name = w
		}
		if v.Sub != nil {
			name = fmt.Sprintf(b.Subscript, name, n.node(v.Sub))
		}
		if v.Sup != nil {
			name = fmt.Sprintf(b.FuncPower, name, n.node(v.Sup))
		}
		if v.Arg == nil {
			return name
		}
		return name + " " + n.node(v.Arg)
	case *latexmath.Group:
		inner := n.node(v.Inner)
		if v.Open == "|" || v.Open == "lvert" {
			return fmt.Sprintf(b.Abs, inner)
		}
		return fmt.Sprintf(b.Group, inner)
	case *latexmath.Accent:
		if tmpl, ok := b.Accents[v.Kind]; ok {
			return fmt.Sprintf(tmpl, n.node(v.Base))
		}
		return n.node(v.Base)
	case *latexmath.Relation:
		left, right := n.node(v.Left), n.node(v.Right)
		if v.Op == "to" {
			return fmt.Sprintf(b.Approaches, left, right)
		}
		op, ok := b.Relations[v.Op]
		if !ok {
			op = spell(v.Op)
		}
		return fmt.Sprintf(b.Relation, left, op, right)
	case *latexmath.BigOp:
		return n.bigOp(v)
	}
	return ""
}

// bigOp narrates lower bound, then upper bound, then body.
func (n *Narrator) bigOp(v *latexmath.BigOp) string {
	b := n.book
	word, ok := b.Operators[v.Op]
	if !ok {
		word = v.Op
	}
	lower, upper, body := n.node(v.Lower), n.node(v.Upper), n.node(v.Body)
	switch {
	case isLimitFamily(v.Op) && v.Lower != nil:
		return fmt.Sprintf(b.LimitLower, lower, upper, body, word)
	case v.Lower != nil && v.Upper != nil:
		return fmt.Sprintf(b.BoundsBoth, lower, upper, body, word)
	case v.Lower != nil:
		return fmt.Sprintf(b.BoundsLower, lower, upper, body, word)
	case v.Upper != nil:
		return fmt.Sprintf(b.BoundsBoth, "", upper, body, word)
	}
	return fmt.Sprintf(b.BoundsNone, lower, upper, body, word)
}

// atomic reports whether an argument reads unambiguously without group words.
func atomic(node latexmath.Node) bool {
	switch v := node.(type) {
	case *latexmath.Number, *latexmath.Ident, *latexmath.Text:
		return true
	case *latexmath.Seq:
		return len(v.Items) == 1 && atomic(v.Items[0])
	}
	return false
}

func isLimitFamily(op string) bool {
	switch op {
	case "lim", "limsup", "liminf", "max", "min", "sup", "inf":
		return true
	}
	return false
}

func (n *Narrator) word(name string) string {
	b := n.book
	if w, ok := b.Symbols[name]; ok {
		return w
	}
	if w, ok := b.Relations[name]; ok {
		return w
	}
	if w, ok := b.Greek[name]; ok {
		return w
	}
	return spell(name)
}

// spell separates the runes of an unknown name so TTS reads them one by one.
func spell(s string) string {
	rs := []rune(s)
	parts := make([]string, 0, len(rs))
	for _, r := range rs {
		parts = append(parts, string(r))
	}
	return strings.Join(parts, " ")
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
