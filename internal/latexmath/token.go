package latexmath

import (
	"strings"
	"unicode"
)

// TokenKind classifies a lexical unit of TeX math.
type TokenKind int

const (
	TokCommand TokenKind = iota // \name or \<char>
	TokLetter
	TokNumber
	TokSymbol
	TokOpenBrace
	TokCloseBrace
	TokSup
	TokSub
	TokPrime
)

// Token is one lexical unit. For commands Text holds the name without the backslash.
type Token struct {
	Kind TokenKind
	Text string
	Pos  int // rune offset in the source
}

func (t Token) is(kind TokenKind, text string) bool {
	return t.Kind == kind && t.Text == text
}

// Tokenize splits TeX math source into tokens. It never fails; anything it does not
// recognise becomes a TokSymbol holding the raw rune.
func Tokenize(src string) []Token {
	rs := []rune(src)
	var toks []Token
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '\\':
			if i+1 >= len(rs) {
				toks = append(toks, Token{Kind: TokSymbol, Text: `\`, Pos: i})
				i++
				continue
			}
			j := i + 1
			for j < len(rs) && isASCIILetter(rs[j]) {
				j++
			}
			if j == i+1 {
				// Control symbol such as \{ \, or \\.
				toks = append(toks, Token{Kind: TokCommand, Text: string(rs[i+1]), Pos: i})
				i += 2
				continue
			}
			toks = append(toks, Token{Kind: TokCommand, Text: string(rs[i+1 : j]), Pos: i})
			i = j
		case r == '{':
			toks = append(toks, Token{Kind: TokOpenBrace, Text: "{", Pos: i})
			i++
		case r == '}':
			toks = append(toks, Token{Kind: TokCloseBrace, Text: "}", Pos: i})
			i++
		case r == '^':
			toks = append(toks, Token{Kind: TokSup, Text: "^", Pos: i})
			i++
		case r == '_':
			toks = append(toks, Token{Kind: TokSub, Text: "_", Pos: i})
			i++
		case r == '\'':
			toks = append(toks, Token{Kind: TokPrime, Text: "'", Pos: i})
			i++
		case unicode.IsDigit(r):
			j := i
			for j < len(rs) && (unicode.IsDigit(rs[j]) || (rs[j] == '.' && j+1 < len(rs) && unicode.IsDigit(rs[j+1]))) {
				j++
			}
			toks = append(toks, Token{Kind: TokNumber, Text: string(rs[i:j]), Pos: i})
			i = j
		case unicode.IsLetter(r):
			toks = append(toks, Token{Kind: TokLetter, Text: string(r), Pos: i})
			i++
		default:
			toks = append(toks, Token{Kind: TokSymbol, Text: string(r), Pos: i})
			i++
		}
	}
	return toks
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// String renders tokens back to a compact TeX form, mostly for error messages.
func String(toks []Token) string {
	var b strings.Builder
	for _, t := range toks {
		if t.Kind == TokCommand {
			b.WriteByte('\\')
		}
		b.WriteString(t.Text)
	}
	return b.String()
}
