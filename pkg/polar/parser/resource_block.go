package parser

import (
	"github.com/polar-vm/polarvm/pkg/polar/lexer"
	"github.com/polar-vm/polarvm/pkg/polar/perr"
)

// parseResourceBlock parses `actor Name { ... }` / `resource Name { ...
// }`. Only the syntactic shell is handled here; the sugar package owns the
// desugaring into has_role/has_permission/has_relation rules (spec §6:
// "the core consumes only the desugared rules").
func (p *Parser) parseResourceBlock() (*ResourceBlock, error) {
	kindTok := p.advance() // actor | resource
	nameTok, err := p.expect(lexer.KindSymbol, "a resource type name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.KindLBrace, "'{'"); err != nil {
		return nil, err
	}
	rb := &ResourceBlock{
		Kind:      kindTok.Text,
		Name:      nameTok.Text,
		Relations: make(map[string]string),
		Span:      kindTok.Span,
	}
	seenRoles, seenPerms, seenRels := false, false, false
	for p.cur().Kind != lexer.KindRBrace {
		switch p.cur().Kind {
		case lexer.KindRoles:
			if seenRoles {
				return nil, perr.Validation(perr.KindDuplicateResourceBlockDeclaration, "duplicate roles declaration in %s", rb.Name)
			}
			seenRoles = true
			p.advance()
			if _, err := p.expect(lexer.KindUnify, "'='"); err != nil {
				return nil, err
			}
			names, err := p.parseStringList()
			if err != nil {
				return nil, err
			}
			rb.Roles = names
			if _, err := p.expect(lexer.KindSemiColon, "';'"); err != nil {
				return nil, err
			}
		case lexer.KindPermissions:
			if seenPerms {
				return nil, perr.Validation(perr.KindDuplicateResourceBlockDeclaration, "duplicate permissions declaration in %s", rb.Name)
			}
			seenPerms = true
			p.advance()
			if _, err := p.expect(lexer.KindUnify, "'='"); err != nil {
				return nil, err
			}
			names, err := p.parseStringList()
			if err != nil {
				return nil, err
			}
			rb.Permissions = names
			if _, err := p.expect(lexer.KindSemiColon, "';'"); err != nil {
				return nil, err
			}
		case lexer.KindRelations:
			if seenRels {
				return nil, perr.Validation(perr.KindDuplicateResourceBlockDeclaration, "duplicate relations declaration in %s", rb.Name)
			}
			seenRels = true
			p.advance()
			if _, err := p.expect(lexer.KindUnify, "'='"); err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.KindLBrace, "'{'"); err != nil {
				return nil, err
			}
			for p.cur().Kind != lexer.KindRBrace {
				k, err := p.expect(lexer.KindSymbol, "a relation name")
				if err != nil {
					return nil, err
				}
				if _, err := p.expect(lexer.KindColon, "':'"); err != nil {
					return nil, err
				}
				v, err := p.expect(lexer.KindSymbol, "a related resource type")
				if err != nil {
					return nil, err
				}
				rb.Relations[k.Text] = v.Text
				if p.cur().Kind == lexer.KindComma {
					p.advance()
					continue
				}
				break
			}
			if _, err := p.expect(lexer.KindRBrace, "'}'"); err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.KindSemiColon, "';'"); err != nil {
				return nil, err
			}
		case lexer.KindString:
			shorthand, err := p.parseShorthandRule()
			if err != nil {
				return nil, err
			}
			rb.Shorthand = append(rb.Shorthand, *shorthand)
		default:
			return nil, p.unexpected("roles, permissions, relations, or a shorthand rule")
		}
	}
	if _, err := p.expect(lexer.KindRBrace, "'}'"); err != nil {
		return nil, err
	}
	rb.Span = p.span(rb.Span)
	return rb, nil
}

func (p *Parser) parseStringList() ([]string, error) {
	if _, err := p.expect(lexer.KindLBracket, "'['"); err != nil {
		return nil, err
	}
	var names []string
	for p.cur().Kind != lexer.KindRBracket {
		s, err := p.expect(lexer.KindString, "a quoted name")
		if err != nil {
			return nil, err
		}
		names = append(names, s.Text)
		if p.cur().Kind == lexer.KindComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.KindRBracket, "']'"); err != nil {
		return nil, err
	}
	return names, nil
}

// parseShorthandRule parses `"r" if "p";` or `"r" if "p" on "rel";`.
func (p *Parser) parseShorthandRule() (*ShorthandRule, error) {
	ruleTok, err := p.expect(lexer.KindString, "a quoted role or permission")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.KindIf, "'if'"); err != nil {
		return nil, err
	}
	permTok, err := p.expect(lexer.KindString, "a quoted permission or role")
	if err != nil {
		return nil, err
	}
	sh := &ShorthandRule{Rule: ruleTok.Text, Permission: permTok.Text}
	if p.cur().Kind == lexer.KindOn {
		p.advance()
		relTok, err := p.expect(lexer.KindString, "a quoted relation name")
		if err != nil {
			return nil, err
		}
		sh.Relation = relTok.Text
	}
	if _, err := p.expect(lexer.KindSemiColon, "';'"); err != nil {
		return nil, err
	}
	return sh, nil
}
