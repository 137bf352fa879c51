// Package parser turns a token stream into rule ASTs and term trees. Parse
// errors always carry a source span (spec §6–7).
package parser

import (
	"fmt"

	"github.com/polar-vm/polarvm/pkg/polar/kb"
	"github.com/polar-vm/polarvm/pkg/polar/lexer"
	"github.com/polar-vm/polarvm/pkg/polar/perr"
	"github.com/polar-vm/polarvm/pkg/polar/term"
)

// ResourceBlock is the raw, mostly-unprocessed shape of an `actor`/
// `resource` declaration. The sugar package desugars it into ordinary
// rules; the core parser only extracts its syntactic pieces (spec §6
// "Resource-block sugar").
type ResourceBlock struct {
	Kind      string // "actor" or "resource"
	Name      string
	Roles     []string
	Permissions []string
	Relations map[string]string // relation name -> related resource type name
	Shorthand []ShorthandRule
	Span      term.Span
}

// ShorthandRule is one `"r" if "p";` or `"r" if "p" on "rel";` line inside
// a resource block.
type ShorthandRule struct {
	Rule       string
	Permission string
	Relation   string // "" if the "on" clause was omitted
}

// Result is everything one call to Parse extracted from one source.
type Result struct {
	Rules          []*kb.Rule
	Queries        []term.Term
	ResourceBlocks []ResourceBlock
}

// GensymFunc mints a fresh integer id, backed by the KB's monotonic
// counter, so anonymous variables (`_`) are unique across the whole KB
// rather than just within one source.
type GensymFunc func() int64

// Parser turns one source's tokens into a Result.
type Parser struct {
	toks     []lexer.Token
	pos      int
	sourceID int
	gensym   GensymFunc
}

// Parse lexes and parses src, stamping sourceID on every span.
func Parse(src string, sourceID int, gensym GensymFunc) (*Result, error) {
	toks, err := lexer.All(src, sourceID)
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks, sourceID: sourceID, gensym: gensym}
	return p.parseProgram()
}

func (p *Parser) cur() lexer.Token  { return p.toks[p.pos] }
func (p *Parser) atEOF() bool       { return p.cur().Kind == lexer.KindEOF }
func (p *Parser) advance() lexer.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) expect(k lexer.Kind, what string) (lexer.Token, error) {
	if p.cur().Kind != k {
		return lexer.Token{}, p.unexpected(what)
	}
	return p.advance(), nil
}

func (p *Parser) unexpected(what string) error {
	t := p.cur()
	if t.Kind == lexer.KindEOF {
		return perr.UnrecognizedEOF(t.Span)
	}
	if what == "" {
		return perr.UnrecognizedToken(t.Text, t.Span)
	}
	return perr.Parse(perr.KindUnrecognizedToken, t.Span, "expected %s but found '%s'", what, t.Text)
}

func (p *Parser) span(start term.Span) term.Span {
	return term.Span{SourceID: p.sourceID, Left: start.Left, Right: p.toks[max(0, p.pos-1)].Span.Right}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (p *Parser) parseProgram() (*Result, error) {
	res := &Result{}
	agg := perr.NewAggregator()
	for !p.atEOF() {
		switch p.cur().Kind {
		case lexer.KindQuery:
			q, err := p.parseInlineQuery()
			if err != nil {
				agg.Add(err)
				p.skipToSemicolon()
				continue
			}
			res.Queries = append(res.Queries, q)
		case lexer.KindActor, lexer.KindResource:
			rb, err := p.parseResourceBlock()
			if err != nil {
				agg.Add(err)
				p.skipToBrace()
				continue
			}
			res.ResourceBlocks = append(res.ResourceBlocks, *rb)
		default:
			r, err := p.parseRule()
			if err != nil {
				agg.Add(err)
				p.skipToSemicolon()
				continue
			}
			res.Rules = append(res.Rules, r)
		}
	}
	if err := agg.Err(); err != nil {
		return res, err
	}
	return res, nil
}

func (p *Parser) skipToSemicolon() {
	for !p.atEOF() && p.cur().Kind != lexer.KindSemiColon {
		p.advance()
	}
	if !p.atEOF() {
		p.advance()
	}
}

func (p *Parser) skipToBrace() {
	depth := 0
	for !p.atEOF() {
		switch p.cur().Kind {
		case lexer.KindLBrace:
			depth++
		case lexer.KindRBrace:
			depth--
			if depth <= 0 {
				p.advance()
				return
			}
		}
		p.advance()
	}
}

func (p *Parser) parseInlineQuery() (term.Term, error) {
	p.advance() // ?=
	t, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.KindSemiColon, "';'"); err != nil {
		return nil, err
	}
	return t, nil
}

func (p *Parser) freshAnonVar(start term.Span) *term.Variable {
	id := int64(0)
	if p.gensym != nil {
		id = p.gensym()
	}
	return term.NewVariableAt(term.Symbol(fmt.Sprintf("_anon_%d", id)), start)
}
