package latexmath

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmpty is returned for expressions with no tokens.
var ErrEmpty = errors.New("empty math expression")

// SyntaxError describes why an expression could not be parsed into an AST.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("math syntax error at %d: %s", e.Pos, e.Msg)
}

type closer int

const (
	closeNone closer = iota
	closeBrace
	closeParen
	closeBracket
	closeRight
)

type parser struct {
	src  []rune
	toks []Token
	pos  int
}

// Parse builds an AST for a TeX math expression (without its delimiters).
// Alignment markup, environments and unbalanced groups are reported as errors.
func Parse(src string) (Node, error) {
	toks := Tokenize(src)
	if len(toks) == 0 {
		return nil, ErrEmpty
	}
	p := &parser{src: []rune(src), toks: toks}
	n, err := p.parseExpr(closeNone)
	if err != nil {
		return nil, err
	}
	if !p.eof() {
		return nil, p.errorf("unexpected %q", p.cur().Text)
	}
	return n, nil
}

func (p *parser) eof() bool { return p.pos >= len(p.toks) }

func (p *parser) cur() Token {
	if p.eof() {
		return Token{Kind: TokSymbol, Text: "", Pos: len(p.src)}
	}
	return p.toks[p.pos]
}

func (p *parser) advance() Token {
	t := p.cur()
	p.pos++
	return t
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Pos: p.cur().Pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpacing() {
	for !p.eof() {
		t := p.cur()
		if t.Kind != TokCommand || !(spacingCommands[t.Text] || t.Text == "displaystyle" || t.Text == "textstyle") {
			return
		}
		p.pos++
	}
}

// relationAt reports whether the current token starts a relation and returns its name.
func (p *parser) relationAt() (string, int, bool) {
	t := p.cur()
	switch {
	case p.eof():
		return "", 0, false
	case t.Kind == TokSymbol && asciiRelations[t.Text]:
		return t.Text, 1, true
	case t.Kind == TokCommand && RelationCommands[t.Text]:
		return t.Text, 1, true
	case t.Kind == TokCommand && t.Text == "not" && p.pos+1 < len(p.toks):
		next := p.toks[p.pos+1]
		switch {
		case next.Kind == TokSymbol && next.Text == "=":
			return "ne", 2, true
		case next.Kind == TokCommand && next.Text == "in":
			return "notin", 2, true
		case next.Kind == TokCommand && RelationCommands[next.Text]:
			return "not" + next.Text, 2, true
		}
	}
	return "", 0, false
}

func (p *parser) atStop(c closer) bool {
	if p.eof() {
		return true
	}
	t := p.cur()
	if t.Kind == TokCloseBrace {
		return true
	}
	if _, _, ok := p.relationAt(); ok {
		return true
	}
	switch c {
	case closeParen:
		return t.is(TokSymbol, ")")
	case closeBracket:
		return t.is(TokSymbol, "]")
	case closeRight:
		return t.is(TokCommand, "right")
	}
	return false
}

func (p *parser) parseExpr(c closer) (Node, error) {
	left, err := p.parseSeq(c)
	if err != nil {
		return nil, err
	}
	for {
		op, width, ok := p.relationAt()
		if !ok {
			return left, nil
		}
		p.pos += width
		right, err := p.parseSeq(c)
		if err != nil {
			return nil, err
		}
		left = &Relation{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseSeq(c closer) (Node, error) {
	var items []Node
	for {
		p.skipSpacing()
		if p.atStop(c) {
			break
		}
		t := p.cur()
		if t.is(TokSymbol, "&") || t.is(TokCommand, `\`) {
			return nil, p.errorf("alignment markup is not supported")
		}
		item, err := p.parsePostfix(c)
		if err != nil {
			return nil, err
		}
		if op, ok := item.(*BigOp); ok && op.Body == nil {
			body, err := p.parseSeq(c)
			if err != nil {
				return nil, err
			}
			if !isEmpty(body) {
				op.Body = body
			}
			items = append(items, op)
			break
		}
		items = append(items, item)
	}
	if len(items) == 1 {
		return items[0], nil
	}
	return &Seq{Items: items}, nil
}

func (p *parser) parsePostfix(c closer) (Node, error) {
	base, err := p.parseAtom(c)
	if err != nil {
		return nil, err
	}
	switch base.(type) {
	case *BigOp, *Func:
		// Scripts were consumed while parsing the operator.
		return base, nil
	}

	var sub, sup Node
	primes := 0
	for !p.eof() {
		t := p.cur()
		switch t.Kind {
		case TokPrime:
			p.pos++
			primes++
			continue
		case TokSup:
			if sup != nil {
				return nil, p.errorf("double superscript")
			}
			p.pos++
			if sup, err = p.parseArg(); err != nil {
				return nil, err
			}
			continue
		case TokSub:
			if sub != nil {
				return nil, p.errorf("double subscript")
			}
			p.pos++
			if sub, err = p.parseArg(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}

	n := base
	if primes > 0 {
		n = &Prime{Base: n, Count: primes}
	}
	if sub != nil || sup != nil {
		n = &Script{Base: n, Sub: sub, Sup: sup}
	}

	if sup == nil && isApplicable(base) && p.cur().is(TokSymbol, "(") {
		args, err := p.parseGroup("(", ")", closeParen)
		if err != nil {
			return nil, err
		}
		n = &Apply{Fn: n, Args: args.(*Group).Inner}
	}
	return n, nil
}

// isApplicable reports whether a base followed by "(" reads as function application.
func isApplicable(n Node) bool {
	id, ok := n.(*Ident)
	return ok && !id.Greek && len(id.Name) == 1 && strings.ContainsAny(id.Name, "fghFGHpquvwPQ")
}

func (p *parser) parseAtom(c closer) (Node, error) {
	p.skipSpacing()
	if p.eof() {
		return nil, p.errorf("unexpected end of expression")
	}
	t := p.cur()
	switch t.Kind {
	case TokNumber:
		p.pos++
		return &Number{Value: t.Text}, nil
	case TokLetter:
		p.pos++
		return &Ident{Name: t.Text}, nil
	case TokOpenBrace:
		p.pos++
		inner, err := p.parseExpr(closeBrace)
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokCloseBrace, "}"); err != nil {
			return nil, err
		}
		return inner, nil
	case TokCloseBrace:
		return nil, p.errorf("unbalanced }")
	case TokSup, TokSub:
		return nil, p.errorf("script %q without a base", t.Text)
	case TokPrime:
		p.pos++
		return &Symbol{Name: "prime"}, nil
	case TokSymbol:
		switch t.Text {
		case "(":
			return p.parseGroup("(", ")", closeParen)
		case "[":
			return p.parseGroup("[", "]", closeBracket)
		case `\`:
			return nil, p.errorf("dangling backslash")
		case "$":
			return nil, p.errorf("math delimiter $ inside math")
		}
		p.pos++
		return &Symbol{Name: t.Text}, nil
	}
	return p.parseCommand(c)
}

func (p *parser) parseCommand(c closer) (Node, error) {
	t := p.advance()
	name := t.Text
	switch {
	case name == "frac" || name == "dfrac" || name == "tfrac" || name == "cfrac":
		num, err := p.parseArg()
		if err != nil {
			return nil, err
		}
		den, err := p.parseArg()
		if err != nil {
			return nil, err
		}
		return &Frac{Num: num, Den: den}, nil
	case name == "binom":
		n, err := p.parseArg()
		if err != nil {
			return nil, err
		}
		k, err := p.parseArg()
		if err != nil {
			return nil, err
		}
		return &Apply{Fn: &Symbol{Name: "binom"}, Args: &Seq{Items: []Node{n, k}}}, nil
	case name == "sqrt":
		var index Node
		if p.cur().is(TokSymbol, "[") {
			g, err := p.parseGroup("[", "]", closeBracket)
			if err != nil {
				return nil, err
			}
			index = g.(*Group).Inner
		}
		rad, err := p.parseArg()
		if err != nil {
			return nil, err
		}
		return &Sqrt{Index: index, Radicand: rad}, nil
	case name == "left":
		return p.parseLeftRight()
	case name == "right":
		return nil, p.errorf(`\right without \left`)
	case name == "begin" || name == "end":
		return nil, p.errorf("environments are not supported")
	case GreekLetters[name]:
		return &Ident{Name: name, Greek: true}, nil
	case BigOperators[name]:
		op := &BigOp{Op: name}
		if err := p.parseScripts(&op.Lower, &op.Upper); err != nil {
			return nil, err
		}
		return op, nil
	case Functions[name]:
		fn := &Func{Name: name}
		if err := p.parseScripts(&fn.Sub, &fn.Sup); err != nil {
			return nil, err
		}
		p.skipSpacing()
		if p.cur().is(TokSymbol, "(") {
			g, err := p.parseGroup("(", ")", closeParen)
			if err != nil {
				return nil, err
			}
			fn.Arg = g.(*Group).Inner
		} else if !p.atStop(c) {
			arg, err := p.parsePostfix(c)
			if err != nil {
				return nil, err
			}
			fn.Arg = arg
		}
		return fn, nil
	case Accents[name]:
		base, err := p.parseArg()
		if err != nil {
			return nil, err
		}
		return &Accent{Kind: name, Base: base}, nil
	case fontCommands[name]:
		return p.parseArg()
	case textCommands[name]:
		return p.parseText()
	}
	return &Symbol{Name: name}, nil
}

// parseScripts reads any mix of _ and ^ following an operator.
func (p *parser) parseScripts(sub, sup *Node) error {
	for !p.eof() {
		p.skipSpacing()
		var err error
		switch p.cur().Kind {
		case TokSub:
			if *sub != nil {
				return p.errorf("double subscript")
			}
			p.pos++
			*sub, err = p.parseArg()
		case TokSup:
			if *sup != nil {
				return p.errorf("double superscript")
			}
			p.pos++
			*sup, err = p.parseArg()
		default:
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// parseArg reads a braced group or a single atom.
func (p *parser) parseArg() (Node, error) {
	p.skipSpacing()
	if p.eof() {
		return nil, p.errorf("missing argument")
	}
	if p.cur().Kind == TokOpenBrace {
		p.pos++
		inner, err := p.parseExpr(closeBrace)
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokCloseBrace, "}"); err != nil {
			return nil, err
		}
		return inner, nil
	}
	return p.parseAtom(closeNone)
}

func (p *parser) parseGroup(open, close string, c closer) (Node, error) {
	p.pos++ // opening delimiter
	inner, err := p.parseExpr(c)
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokSymbol, close); err != nil {
		return nil, err
	}
	return &Group{Open: open, Close: close, Inner: inner}, nil
}

func (p *parser) parseLeftRight() (Node, error) {
	if p.eof() {
		return nil, p.errorf(`missing delimiter after \left`)
	}
	open := delimiterText(p.advance())
	inner, err := p.parseExpr(closeRight)
	if err != nil {
		return nil, err
	}
	if !p.cur().is(TokCommand, "right") {
		return nil, p.errorf(`\left without \right`)
	}
	p.pos++
	if p.eof() {
		return nil, p.errorf(`missing delimiter after \right`)
	}
	closeDelim := delimiterText(p.advance())
	return &Group{Open: open, Close: closeDelim, Inner: inner}, nil
}

func delimiterText(t Token) string {
	if t.Kind == TokCommand {
		switch t.Text {
		case "{", "}", "|":
			return t.Text
		case "langle", "rangle", "lfloor", "rfloor", "lceil", "rceil", "lvert", "rvert", "lVert", "rVert":
			return t.Text
		}
		return `\` + t.Text
	}
	return t.Text
}

// parseText captures the raw source of a \text{...} argument, keeping spaces.
func (p *parser) parseText() (Node, error) {
	if p.cur().Kind != TokOpenBrace {
		return nil, p.errorf("missing text argument")
	}
	start := p.advance().Pos + 1
	depth := 1
	for !p.eof() {
		t := p.advance()
		switch t.Kind {
		case TokOpenBrace:
			depth++
		case TokCloseBrace:
			depth--
			if depth == 0 {
				return &Text{Value: strings.TrimSpace(string(p.src[start:t.Pos]))}, nil
			}
		}
	}
	return nil, p.errorf("unbalanced text argument")
}

func (p *parser) expect(kind TokenKind, text string) error {
	if p.eof() || !p.cur().is(kind, text) {
		return p.errorf("expected %q", text)
	}
	p.pos++
	return nil
}

func isEmpty(n Node) bool {
	s, ok := n.(*Seq)
	return ok && len(s.Items) == 0
}
