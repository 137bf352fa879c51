// Package lexer turns policy source text into a token stream. Parse errors
// raised here always carry a source span, per spec §6/§7.
package lexer

import "github.com/polar-vm/polarvm/pkg/polar/term"

// Kind tags a lexical token.
type Kind int

const (
	KindEOF Kind = iota
	KindInteger
	KindFloat
	KindString
	KindBoolean
	KindSymbol

	// Punctuation
	KindLParen
	KindRParen
	KindLBracket
	KindRBracket
	KindLBrace
	KindRBrace
	KindComma
	KindColon
	KindSemiColon
	KindDot
	KindStar
	KindPipe
	KindQuery // ?=

	// Operators (also symbols lexically, but reserved)
	KindAdd
	KindSub
	KindMul
	KindDiv
	KindMod
	KindRem
	KindEq
	KindNeq
	KindLt
	KindLeq
	KindGt
	KindGeq
	KindUnify
	KindAssign

	// Keywords
	KindIf
	KindAnd
	KindOr
	KindNot
	KindIn
	KindMatches
	KindCut
	KindDebug
	KindPrint
	KindNew
	KindForall
	KindType
	KindActor
	KindResource
	KindPermissions
	KindRoles
	KindRelations
	KindOn
)

// Keywords maps reserved words to their token kind. Reserved words may
// still be used as dict/method keys in a dot context; the parser, not the
// lexer, enforces that restriction (spec §6).
var Keywords = map[string]Kind{
	"if":          KindIf,
	"and":         KindAnd,
	"or":          KindOr,
	"not":         KindNot,
	"in":          KindIn,
	"matches":     KindMatches,
	"cut":         KindCut,
	"debug":       KindDebug,
	"print":       KindPrint,
	"new":         KindNew,
	"forall":      KindForall,
	"mod":         KindMod,
	"rem":         KindRem,
	"type":        KindType,
	"actor":       KindActor,
	"resource":    KindResource,
	"permissions": KindPermissions,
	"roles":       KindRoles,
	"relations":   KindRelations,
	"on":          KindOn,
	"true":        KindBoolean,
	"false":       KindBoolean,
}

// Token is one lexeme with its source span.
type Token struct {
	Kind Kind
	Text string
	Span term.Span

	IntVal   int64
	FloatVal float64
	BoolVal  bool
}
