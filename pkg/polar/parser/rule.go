package parser

import (
	"github.com/polar-vm/polarvm/pkg/polar/kb"
	"github.com/polar-vm/polarvm/pkg/polar/lexer"
	"github.com/polar-vm/polarvm/pkg/polar/term"
)

// parseRule parses `head(params) if body;` or `head(params);` (empty body
// means `true`, i.e. the empty conjunction).
func (p *Parser) parseRule() (*kb.Rule, error) {
	nameTok, err := p.expect(lexer.KindSymbol, "a rule name")
	if err != nil {
		return nil, err
	}
	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	var body term.Term
	if p.cur().Kind == lexer.KindIf {
		p.advance()
		body, err = p.parseOr()
		if err != nil {
			return nil, err
		}
	} else {
		body = term.And()
	}
	if _, err := p.expect(lexer.KindSemiColon, "';'"); err != nil {
		return nil, err
	}
	return &kb.Rule{
		Name:   nameTok.Text,
		Params: params,
		Body:   body,
		Span:   p.span(nameTok.Span),
	}, nil
}

func (p *Parser) parseParams() ([]kb.Parameter, error) {
	if _, err := p.expect(lexer.KindLParen, "'('"); err != nil {
		return nil, err
	}
	var params []kb.Parameter
	for p.cur().Kind != lexer.KindRParen {
		var name term.Symbol
		var specializer term.Term
		if p.cur().Kind == lexer.KindSymbol && p.cur().Text == "_" {
			v := p.freshAnonVar(p.cur().Span)
			p.advance()
			name = v.Name
		} else if p.cur().Kind != lexer.KindSymbol {
			// A literal parameter such as "reader" becomes an exact-value
			// specializer on a fresh anonymous variable.
			name = p.freshAnonVar(p.cur().Span).Name
			lit, err := p.parseDot()
			if err != nil {
				return nil, err
			}
			specializer = lit
		} else {
			nameTok, err := p.expect(lexer.KindSymbol, "a parameter name")
			if err != nil {
				return nil, err
			}
			name = term.Symbol(nameTok.Text)
		}
		if p.cur().Kind == lexer.KindColon {
			p.advance()
			var err error
			specializer, err = p.parseSpecializerOperand()
			if err != nil {
				return nil, err
			}
		}
		params = append(params, kb.Parameter{Variable: name, Specializer: specializer})
		if p.cur().Kind == lexer.KindComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.KindRParen, "')'"); err != nil {
		return nil, err
	}
	return params, nil
}
