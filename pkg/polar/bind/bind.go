// Package bind implements the binding manager: the append-only variable
// binding stack, its bsp (binding-stack-pointer) snapshot/restore used for
// backtracking, and the additive-only follower managers used to invert
// negation-as-failure sub-queries. Grounded on
// original_source/polar-core/src/bindings.rs, simplified as noted below.
//
// Simplification: the original distinguishes a variable-to-variable
// "Cycle" binding state from a general "Partial" (constrained) state as a
// performance optimization — cycles extend cheaply, partials pay for a
// full grounding pass. This package folds Cycle into Partial everywhere:
// variable_state_at_point's walk-and-detect-revisit loop already proves a
// var-var chain is logically a cycle without separate bookkeeping, and
// add_constraint's grounding pass is correct (if pricier) for both. See
// DESIGN.md.
package bind

import (
	"fmt"

	"github.com/polar-vm/polarvm/pkg/polar/perr"
	"github.com/polar-vm/polarvm/pkg/polar/term"
)

// Binding is one (variable, value-or-constraint) entry on the stack.
type Binding struct {
	Var term.Symbol
	Val term.Term
}

// StateKind tags a VariableState.
type StateKind int

const (
	Unbound StateKind = iota
	Bound
	Partial
)

// VariableState reports what a binding manager currently knows about a
// variable: nothing, a ground value, or a residual constraint expression.
type VariableState struct {
	Kind  StateKind
	Value term.Term // set when Kind == Bound
	Expr  *term.Expression // set when Kind == Partial
}

// FollowerID identifies a follower binding manager added with AddFollower.
type FollowerID int

// Bsp is an opaque snapshot of a binding manager's state (and its
// followers', recursively), usable with Backtrack to undo everything
// bound since the snapshot was taken.
type Bsp struct {
	Index     int
	Followers map[FollowerID]Bsp
}

// CallVarToken is unforgeable proof that a variable was minted as an
// external-call placeholder, the only case where unsafe_rebind is legal
// (spec §9 open question 2: "expose unsafe_rebind only through a narrow
// token type"). Its only field is unexported, so NewCallVarToken is the
// one way to obtain one.
type CallVarToken struct {
	_ struct{}
}

// NewCallVarToken returns a token for a caller that has just minted a
// fresh placeholder variable for an external call result, before anything
// else can observe or bind that variable. The vm package does not call it.
func NewCallVarToken() CallVarToken { return CallVarToken{} }

// Manager maintains variable bindings and constraints for one query. The
// zero value is ready to use.
type Manager struct {
	bindings       []Binding
	followers      map[FollowerID]*Manager
	nextFollowerID FollowerID
}

// New returns an empty Manager.
func New() *Manager { return &Manager{} }

func (m *Manager) addBinding(v term.Symbol, val term.Term) {
	m.bindings = append(m.bindings, Binding{Var: v, Val: val})
	for _, f := range m.followers {
		f.addBinding(v, val)
	}
}

// BindResult is returned by Bind when a partial's grounding produces a new
// term the caller (the VM) must re-evaluate as a goal to confirm the
// partial's other constraints still hold under the fresh binding.
type BindResult struct {
	Requery term.Term // nil unless a partial was grounded
}

// Bind associates var with val. Binding an unbound variable to another
// unbound variable links them (variable_state_at_point's cycle-detecting
// walk treats the pair as logically equivalent from then on). Rebinding
// an already-Bound variable is an IncompatibleBindings error — the only
// exception is UnsafeRebind, gated behind CallVarToken.
func (m *Manager) Bind(v term.Symbol, val term.Term) (*BindResult, error) {
	if sym, ok := term.AsVariable(val); ok {
		return m.bindVariables(v, sym)
	}
	switch st := m.VariableState(v); st.Kind {
	case Partial:
		return m.partialBind(v, st.Expr, val)
	case Bound:
		return nil, perr.IncompatibleBindings(fmt.Sprintf("cannot rebind %s", v))
	default:
		m.addBinding(v, val)
		return nil, nil
	}
}

// UnsafeRebind rebinds var to val regardless of its current state,
// bypassing the single-assignment invariant. Legal only when the caller
// holds a CallVarToken proving var was minted as a call placeholder —
// "the only current usage is for replacing default values with call ids"
// (bindings.rs).
func (m *Manager) UnsafeRebind(_ CallVarToken, v term.Symbol, val term.Term) {
	m.addBinding(v, val)
}

func (m *Manager) bindVariables(left, right term.Symbol) (*BindResult, error) {
	if left == right {
		return nil, nil
	}
	lst, rst := m.VariableState(left), m.VariableState(right)

	switch {
	case lst.Kind == Unbound && rst.Kind == Unbound:
		m.addBinding(left, term.NewVariable(right))
		m.addBinding(right, term.NewVariable(left))
		return nil, nil

	case lst.Kind == Unbound && rst.Kind == Bound:
		m.addBinding(left, rst.Value)
		return nil, nil
	case rst.Kind == Unbound && lst.Kind == Bound:
		m.addBinding(right, lst.Value)
		return nil, nil

	case lst.Kind == Bound && rst.Kind == Bound:
		if lst.Value.Equal(rst.Value) {
			return nil, nil
		}
		return nil, perr.IncompatibleBindings(fmt.Sprintf("%s and %s are both bound to different values", left, right))

	default:
		// At least one side is Partial (or a cycle, folded into Partial):
		// record a unification constraint between the two variables and
		// let add_constraint's grounding pass reconcile it with whatever
		// each side already knows.
		return nil, m.AddConstraint(term.NewExpression(term.OpUnify, term.NewVariable(left), term.NewVariable(right)))
	}
}

// partialBind substitutes val for var inside var's existing partial
// expression and records the binding. The caller (the VM) must re-query
// the returned Requery term as a new goal: grounding a partial can turn a
// constraint like `var > 5` into `7 > 5`, which still needs evaluating.
//
// partial is nil when v's Partial state came from a variable-to-variable
// cycle rather than a recorded constraint expression (the Cycle-into-
// Partial folding documented at the top of this file) — there is nothing
// to substitute into, so this just grounds v like an ordinary bind.
func (m *Manager) partialBind(v term.Symbol, partial *term.Expression, val term.Term) (*BindResult, error) {
	if partial == nil {
		m.addBinding(v, val)
		return nil, nil
	}
	grounded := substitute(partial, v, val)
	m.addBinding(v, val)
	return &BindResult{Requery: grounded}, nil
}

// substitute replaces every occurrence of variable v with val inside t,
// the Go-idiomatic equivalent of bindings.rs's Operation::ground: a
// recursive term fold rather than a visitor-pattern Folder trait.
func substitute(t term.Term, v term.Symbol, val term.Term) term.Term {
	switch n := t.(type) {
	case *term.Variable:
		if n.Name == v {
			return val
		}
		return n
	case *term.RestVariable:
		if n.Name == v {
			return val
		}
		return n
	case *term.List:
		items := make([]term.Term, len(n.Items))
		for i, it := range n.Items {
			items[i] = substitute(it, v, val)
		}
		var rest *term.RestVariable
		if n.Rest != nil {
			if r, ok := substitute(n.Rest, v, val).(*term.RestVariable); ok {
				rest = r
			}
		}
		return term.NewListAt(items, rest, n.Span())
	case *term.Dict:
		fields := make(map[string]term.Term, len(n.Fields))
		for k, fv := range n.Fields {
			fields[k] = substitute(fv, v, val)
		}
		return term.NewDictAt(fields, n.Span())
	case *term.Call:
		args := make([]term.Term, len(n.Args))
		for i, a := range n.Args {
			args[i] = substitute(a, v, val)
		}
		var kwargs map[string]term.Term
		if n.Kwargs != nil {
			kwargs = make(map[string]term.Term, len(n.Kwargs))
			for k, a := range n.Kwargs {
				kwargs[k] = substitute(a, v, val)
			}
		}
		return term.NewCallAt(n.Name, args, kwargs, n.Span())
	case *term.Expression:
		args := make([]term.Term, len(n.Args))
		for i, a := range n.Args {
			args[i] = substitute(a, v, val)
		}
		return term.NewExpressionAt(n.Op, n.Span(), args...)
	default:
		return t
	}
}
