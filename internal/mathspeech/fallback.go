package mathspeech

import (
	"strings"

	"github.com/dgallion1/mathreel/internal/latexmath"
)

// Fallback narrates raw TeX token by token. Known commands and symbols come from the
// phrasebook; anything else is spelled out literally. The result is never empty.
func (n *Narrator) Fallback(raw string) string {
	b := n.book
	var words []string
	for _, t := range latexmath.Tokenize(raw) {
		switch t.Kind {
		case latexmath.TokOpenBrace, latexmath.TokCloseBrace:
			continue
		case latexmath.TokSup:
			words = append(words, b.Sup)
		case latexmath.TokSub:
			words = append(words, b.Sub)
		case latexmath.TokPrime:
			words = append(words, n.word("prime"))
		case latexmath.TokLetter, latexmath.TokNumber:
			words = append(words, t.Text)
		case latexmath.TokSymbol:
			switch t.Text {
			case "&", `\`, "$":
				continue
			}
			words = append(words, n.word(t.Text))
		case latexmath.TokCommand:
			if w, ok := n.commandWord(t.Text); ok {
				words = append(words, w)
			}
		}
	}
	if s := normalize(strings.Join(words, " ")); s != "" {
		return s
	}
	return b.Formula
}

// commandWord looks a command up in every phrasebook table. Structural commands
// (spacing, fonts, environment markers) produce no word.
func (n *Narrator) commandWord(name string) (string, bool) {
	b := n.book
	for _, table := range []map[string]string{b.Greek, b.Symbols, b.Relations, b.Functions, b.Operators} {
		if w, ok := table[name]; ok {
			return w, true
		}
	}
	switch name {
	case "frac", "dfrac", "tfrac":
		return fallbackWords[b.Language]["frac"], true
	case "sqrt":
		return fallbackWords[b.Language]["sqrt"], true
	case "to":
		return fallbackWords[b.Language]["to"], true
	case "left", "right", "begin", "end", "\\", ",", ";", ":", "!", "quad", "qquad",
		"limits", "nolimits", "displaystyle", "textstyle", "label", "nonumber", "notag",
		"mathbf", "mathrm", "mathit", "mathcal", "mathbb", "mathsf", "mathfrak", "boldsymbol",
		"text", "textrm", "mbox", "operatorname":
		return "", false
	}
	if strings.TrimSpace(name) == "" {
		return "", false
	}
	return spell(name), true
}

var fallbackWords = map[string]map[string]string{
	"ja": {"frac": "分数", "sqrt": "ルート", "to": "近づく"},
	"en": {"frac": "fraction", "sqrt": "square root", "to": "approaches"},
}
