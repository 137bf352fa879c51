// Package kb implements the knowledge base: the registry of rules indexed
// by name, generic-rule grouping, registered external class
// names, source map, and id counter described in spec §3–4.1.
package kb

import (
	"github.com/polar-vm/polarvm/pkg/polar/term"
)

// Parameter is one formal parameter of a Rule: a variable name plus an
// optional specializer restricting which arguments apply. Specializer is
// usually a *term.Pattern (an isa check against a registered class), but
// may be any other term for an exact-value specializer (e.g. a rule head
// parameter that must unify with the literal string "reader"), or nil for
// an unconstrained parameter.
type Parameter struct {
	Variable    term.Symbol
	Specializer term.Term
}

// Rule is (name, parameters[], body). Rules are immutable once parsed;
// removing a rule means clearing the KB and reloading (spec §3
// Lifecycles).
type Rule struct {
	ID       int64
	Name     string
	Params   []Parameter
	Body     term.Term // *term.Expression(OpAnd, ...) for an empty body
	LoadSeq  int       // monotonic across Load calls; breaks insertion-order ties
	Span     term.Span
}

// GenericRule is every Rule sharing a Name, in the insertion order used to
// break specificity ties (spec §5, §9 open question 3).
type GenericRule struct {
	Name  string
	Rules []*Rule
}

// Arity returns -1 if Rules is empty (callers should not construct an
// empty GenericRule, but Arity is defensive), else the parameter count of
// the first rule. Rules of differing arity under one name are accepted
// (see KnowledgeBase.AddRule); Arity reports only the first one's.
func (g *GenericRule) Arity() int {
	if len(g.Rules) == 0 {
		return -1
	}
	return len(g.Rules[0].Params)
}
