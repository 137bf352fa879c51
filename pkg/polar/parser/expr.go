package parser

import (
	"github.com/polar-vm/polarvm/pkg/polar/lexer"
	"github.com/polar-vm/polarvm/pkg/polar/perr"
	"github.com/polar-vm/polarvm/pkg/polar/term"
)

// Operator precedence, tightest first (spec §6): print/debug(11) >
// new/cut/forall(10) > .(9) > in/matches(8) > */ /mod/rem(7) > +/-(6) >
// comparisons(5) > =/:=(4) > not(3) > and(2) > or(1). Recursive descent
// walks loosest to tightest, each level delegating to the next-tighter one
// for its operands.

// parseOr is the entry point for a full expression (body, inline query,
// argument, etc).
func (p *Parser) parseOr() (term.Term, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	args := []term.Term{left}
	start := left.Span()
	for p.cur().Kind == lexer.KindOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		args = append(args, right)
	}
	if len(args) == 1 {
		return left, nil
	}
	return term.NewExpressionAt(term.OpOr, p.span(start), args...), nil
}

func (p *Parser) parseAnd() (term.Term, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	args := []term.Term{left}
	start := left.Span()
	for p.cur().Kind == lexer.KindAnd {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		args = append(args, right)
	}
	if len(args) == 1 {
		return left, nil
	}
	return term.NewExpressionAt(term.OpAnd, p.span(start), args...), nil
}

func (p *Parser) parseNot() (term.Term, error) {
	if p.cur().Kind == lexer.KindNot {
		start := p.cur().Span
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return term.NewExpressionAt(term.OpNot, p.span(start), operand), nil
	}
	return p.parseAssign()
}

func (p *Parser) parseAssign() (term.Term, error) {
	left, err := p.parseCompare()
	if err != nil {
		return nil, err
	}
	start := left.Span()
	for p.cur().Kind == lexer.KindUnify || p.cur().Kind == lexer.KindAssign {
		op := term.OpUnify
		if p.cur().Kind == lexer.KindAssign {
			op = term.OpAssign
		}
		p.advance()
		right, err := p.parseCompare()
		if err != nil {
			return nil, err
		}
		left = term.NewExpressionAt(op, p.span(start), left, right)
	}
	return left, nil
}

var compareOps = map[lexer.Kind]term.Operator{
	lexer.KindEq:  term.OpEq,
	lexer.KindNeq: term.OpNeq,
	lexer.KindLt:  term.OpLt,
	lexer.KindLeq: term.OpLeq,
	lexer.KindGt:  term.OpGt,
	lexer.KindGeq: term.OpGeq,
}

func (p *Parser) parseCompare() (term.Term, error) {
	left, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	start := left.Span()
	for {
		op, ok := compareOps[p.cur().Kind]
		if !ok {
			break
		}
		p.advance()
		right, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		left = term.NewExpressionAt(op, p.span(start), left, right)
	}
	return left, nil
}

func (p *Parser) parseAdd() (term.Term, error) {
	left, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	start := left.Span()
	for p.cur().Kind == lexer.KindAdd || p.cur().Kind == lexer.KindSub {
		op := term.OpAdd
		if p.cur().Kind == lexer.KindSub {
			op = term.OpSub
		}
		p.advance()
		right, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		left = term.NewExpressionAt(op, p.span(start), left, right)
	}
	return left, nil
}

var mulOps = map[lexer.Kind]term.Operator{
	lexer.KindStar: term.OpMul,
	lexer.KindDiv:  term.OpDiv,
	lexer.KindMod:  term.OpMod,
	lexer.KindRem:  term.OpRem,
}

func (p *Parser) parseMul() (term.Term, error) {
	left, err := p.parseInMatches()
	if err != nil {
		return nil, err
	}
	start := left.Span()
	for {
		op, ok := mulOps[p.cur().Kind]
		if !ok {
			break
		}
		p.advance()
		right, err := p.parseInMatches()
		if err != nil {
			return nil, err
		}
		left = term.NewExpressionAt(op, p.span(start), left, right)
	}
	return left, nil
}

func (p *Parser) parseInMatches() (term.Term, error) {
	left, err := p.parseDot()
	if err != nil {
		return nil, err
	}
	start := left.Span()
	for p.cur().Kind == lexer.KindIn || p.cur().Kind == lexer.KindMatches {
		isMatches := p.cur().Kind == lexer.KindMatches
		p.advance()
		var right term.Term
		var err error
		if isMatches {
			right, err = p.parseSpecializerOperand()
		} else {
			right, err = p.parseDot()
		}
		if err != nil {
			return nil, err
		}
		op := term.OpIn
		if isMatches {
			op = term.OpIsa
		}
		left = term.NewExpressionAt(op, p.span(start), left, right)
	}
	return left, nil
}

func (p *Parser) parseDot() (term.Term, error) {
	left, err := p.parsePrefixKeyword()
	if err != nil {
		return nil, err
	}
	start := left.Span()
	for p.cur().Kind == lexer.KindDot {
		p.advance()
		field, err := p.parseDotField()
		if err != nil {
			return nil, err
		}
		left = term.NewExpressionAt(term.OpDot, p.span(start), left, field)
	}
	return left, nil
}

// parseDotField reads a field/method name. Reserved words are legal here
// (spec §6: "Reserved words usable as keys or method names in a . context
// but not as free identifiers").
func (p *Parser) parseDotField() (term.Term, error) {
	t := p.cur()
	if t.Kind != lexer.KindSymbol && t.Text == "" {
		return nil, p.unexpected("a field or method name")
	}
	name := t.Text
	span := t.Span
	p.advance()
	if p.cur().Kind == lexer.KindLParen {
		args, kwargs, err := p.parseCallArgs()
		if err != nil {
			return nil, err
		}
		return term.NewCallAt(name, args, kwargs, p.span(span)), nil
	}
	return term.NewStringAt(name, span), nil
}

// parsePrefixKeyword handles new/cut/forall (precedence 10).
func (p *Parser) parsePrefixKeyword() (term.Term, error) {
	switch p.cur().Kind {
	case lexer.KindNew:
		start := p.cur().Span
		p.advance()
		name, err := p.expect(lexer.KindSymbol, "a class name")
		if err != nil {
			return nil, err
		}
		args, kwargs, err := p.parseCallArgs()
		if err != nil {
			return nil, err
		}
		call := term.NewCallAt(name.Text, args, kwargs, p.span(start))
		return term.NewExpressionAt(term.OpNew, p.span(start), call), nil
	case lexer.KindCut:
		start := p.cur().Span
		p.advance()
		return term.NewExpressionAt(term.OpCut, p.span(start)), nil
	case lexer.KindForall:
		start := p.cur().Span
		p.advance()
		if _, err := p.expect(lexer.KindLParen, "'('"); err != nil {
			return nil, err
		}
		cond, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.KindComma, "','"); err != nil {
			return nil, err
		}
		action, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.KindRParen, "')'"); err != nil {
			return nil, err
		}
		return term.NewExpressionAt(term.OpForall, p.span(start), cond, action), nil
	default:
		return p.parsePrintDebug()
	}
}

// parsePrintDebug handles print/debug (precedence 11).
func (p *Parser) parsePrintDebug() (term.Term, error) {
	switch p.cur().Kind {
	case lexer.KindPrint:
		start := p.cur().Span
		p.advance()
		args, _, err := p.parseCallArgs()
		if err != nil {
			return nil, err
		}
		return term.NewExpressionAt(term.OpPrint, p.span(start), args...), nil
	case lexer.KindDebug:
		start := p.cur().Span
		p.advance()
		var args []term.Term
		if p.cur().Kind == lexer.KindLParen {
			var err error
			args, _, err = p.parseCallArgs()
			if err != nil {
				return nil, err
			}
		}
		return term.NewExpressionAt(term.OpDebug, p.span(start), args...), nil
	default:
		return p.primary()
	}
}

func (p *Parser) primary() (term.Term, error) {
	t := p.cur()
	switch t.Kind {
	case lexer.KindInteger:
		p.advance()
		return term.NewIntAt(t.IntVal, t.Span), nil
	case lexer.KindFloat:
		p.advance()
		return term.NewFloatAt(t.FloatVal, t.Span), nil
	case lexer.KindBoolean:
		p.advance()
		return term.NewBoolAt(t.BoolVal, t.Span), nil
	case lexer.KindString:
		p.advance()
		return term.NewStringAt(t.Text, t.Span), nil
	case lexer.KindSub:
		p.advance()
		operand, err := p.primary()
		if err != nil {
			return nil, err
		}
		if n, ok := operand.(*term.Number); ok {
			if i, isInt := n.Int(); isInt {
				return term.NewIntAt(-i, p.span(t.Span)), nil
			}
			return term.NewFloatAt(-n.Float(), p.span(t.Span)), nil
		}
		return term.NewExpressionAt(term.OpSub, p.span(t.Span), term.NewIntAt(0, t.Span), operand), nil
	case lexer.KindLParen:
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.KindRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	case lexer.KindLBracket:
		return p.parseList()
	case lexer.KindLBrace:
		d, err := p.parseDict()
		if err != nil {
			return nil, err
		}
		return d, nil
	case lexer.KindSymbol:
		return p.parseSymbolPrimary()
	default:
		return nil, p.unexpected("a term")
	}
}

func (p *Parser) parseSymbolPrimary() (term.Term, error) {
	t := p.advance()
	if t.Text == "_" {
		if p.cur().Kind == lexer.KindLParen || p.cur().Kind == lexer.KindLBrace {
			return nil, perr.Parse(perr.KindWrongValueType, t.Span, "the anonymous variable _ cannot be called or used as a pattern tag")
		}
		return p.freshAnonVar(t.Span), nil
	}
	switch p.cur().Kind {
	case lexer.KindLParen:
		args, kwargs, err := p.parseCallArgs()
		if err != nil {
			return nil, err
		}
		return term.NewCallAt(t.Text, args, kwargs, p.span(t.Span)), nil
	case lexer.KindLBrace:
		fields, err := p.parseDict()
		if err != nil {
			return nil, err
		}
		return term.NewPatternAt(t.Text, fields.(*term.Dict), p.span(t.Span)), nil
	default:
		return term.NewVariableAt(term.Symbol(t.Text), t.Span), nil
	}
}

// parseCallArgs parses "(" positional args, then "key: value" kwargs ")".
func (p *Parser) parseCallArgs() ([]term.Term, map[string]term.Term, error) {
	if _, err := p.expect(lexer.KindLParen, "'('"); err != nil {
		return nil, nil, err
	}
	var args []term.Term
	var kwargs map[string]term.Term
	for p.cur().Kind != lexer.KindRParen {
		if isIdentLike(p.cur().Kind) && p.peekIsColon() {
			key := p.advance().Text
			p.advance() // ':'
			val, err := p.parseOr()
			if err != nil {
				return nil, nil, err
			}
			if kwargs == nil {
				kwargs = make(map[string]term.Term)
			}
			kwargs[key] = val
		} else {
			arg, err := p.parseOr()
			if err != nil {
				return nil, nil, err
			}
			args = append(args, arg)
		}
		if p.cur().Kind == lexer.KindComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.KindRParen, "')'"); err != nil {
		return nil, nil, err
	}
	return args, kwargs, nil
}

func isIdentLike(k lexer.Kind) bool {
	return k == lexer.KindSymbol
}

func (p *Parser) peekIsColon() bool {
	if p.pos+1 >= len(p.toks) {
		return false
	}
	return p.toks[p.pos+1].Kind == lexer.KindColon
}

func (p *Parser) parseList() (term.Term, error) {
	start := p.cur().Span
	p.advance() // '['
	var items []term.Term
	var rest *term.RestVariable
	for p.cur().Kind != lexer.KindRBracket {
		if p.cur().Kind == lexer.KindStar {
			p.advance()
			name, err := p.expect(lexer.KindSymbol, "a rest-variable name")
			if err != nil {
				return nil, err
			}
			rest = term.NewRestVariableAt(term.Symbol(name.Text), name.Span)
			break
		}
		item, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.cur().Kind == lexer.KindComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.KindRBracket, "']'"); err != nil {
		return nil, err
	}
	return term.NewListAt(items, rest, p.span(start)), nil
}

func (p *Parser) parseDict() (term.Term, error) {
	start := p.cur().Span
	p.advance() // '{'
	fields := make(map[string]term.Term)
	for p.cur().Kind != lexer.KindRBrace {
		keyTok := p.cur()
		if keyTok.Kind != lexer.KindSymbol && keyTok.Kind != lexer.KindString {
			return nil, p.unexpected("a dictionary key")
		}
		p.advance()
		key := keyTok.Text
		if _, err := p.expect(lexer.KindColon, "':'"); err != nil {
			return nil, err
		}
		val, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, dup := fields[key]; dup {
			return nil, perr.DuplicateKey(key, keyTok.Span)
		}
		fields[key] = val
		if p.cur().Kind == lexer.KindComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.KindRBrace, "'}'"); err != nil {
		return nil, err
	}
	return term.NewDictAt(fields, p.span(start)), nil
}

// parseSpecializerOperand parses a pattern or bare value used as a rule
// parameter specializer or the right-hand side of `matches` (spec §3
// Pattern, §6).
func (p *Parser) parseSpecializerOperand() (term.Term, error) {
	switch p.cur().Kind {
	case lexer.KindLBrace:
		d, err := p.parseDict()
		if err != nil {
			return nil, err
		}
		return term.NewPattern("", d.(*term.Dict)), nil
	case lexer.KindSymbol:
		t := p.advance()
		if p.cur().Kind == lexer.KindLBrace {
			d, err := p.parseDict()
			if err != nil {
				return nil, err
			}
			return term.NewPatternAt(t.Text, d.(*term.Dict), p.span(t.Span)), nil
		}
		return term.NewPatternAt(t.Text, term.NewDict(map[string]term.Term{}), p.span(t.Span)), nil
	default:
		// An exact-value specializer, e.g. `x: 1`: isa falls back to unify.
		return p.parseDot()
	}
}
