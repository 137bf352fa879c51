package vm

import (
	"context"
	"sort"

	"github.com/polar-vm/polarvm/pkg/polar/bind"
	"github.com/polar-vm/polarvm/pkg/polar/event"
	"github.com/polar-vm/polarvm/pkg/polar/perr"
	"github.com/polar-vm/polarvm/pkg/polar/term"
)

// queryNegation implements `not body`: runs body to its first solution (if
// any) on a nested sub-machine sharing this machine's knowledge base and
// binding manager. Negation never leaks body's bindings themselves (spec
// §5 "Negation") — but a successful body isn't always outright failure
// either: whatever body bound along the way is captured through a
// follower attached to the parent binding manager, inverted into a
// disequality, and folded back onto the parent as a residual constraint.
// `not x = 1` against an unbound x therefore succeeds once, with `x !=
// 1`, rather than failing outright (spec §4.2.5, scenario S5). Only when
// body succeeds without binding any of its own variables — there is
// nothing to invert — does negation fall back to plain ground failure.
//
// Grounded on original_source/polar-core/src/vm.rs's Not arm of
// query_for_operation: run a sub-VM over body, then either AddConstraints
// (success) or Backtrack (failure), using the follower mechanism
// bindings.rs calls add_follower/remove_follower to collect exactly the
// bindings the sub-VM made. The original's Inverter — the piece that
// turns those bindings into the negated constraint — was not present in
// the retrieved source, so the inversion itself is this port's own
// construction: one captured binding inverts to a single `!=`; more than
// one inverts to a disjunction of `!=`s, since negating the conjunction
// that made every one of them hold at once is "at least one must differ"
// (De Morgan's law). See DESIGN.md.
func (m *Machine) queryNegation(body term.Term) (event.Event, error) {
	bsp := m.binds.Bsp()
	savedCallID := m.nextCallID

	follower := bind.New()
	followerID := m.binds.AddFollower(follower)

	sub := &Machine{
		kb:         m.kb,
		binds:      m.binds,
		goals:      []goal{gQuery{Term: body}},
		cfg:        m.cfg,
		nextCallID: m.nextCallID,
		deadline:   m.deadline,
	}

	ev, err := sub.run(context.Background())

	m.binds.RemoveFollower(followerID)
	captured := follower.BindingsAfter(true, bind.Bsp{})

	m.binds.Backtrack(bsp)
	m.nextCallID = savedCallID

	if err != nil {
		return nil, err
	}

	switch ev.(type) {
	case event.Done:
		return nil, nil

	case event.Result:
		constraint := invertBindings(body, captured)
		if constraint == nil {
			// body held unconditionally — nothing to invert, so the
			// negation is a plain failed goal (backtrack), not a runtime
			// error.
			return nil, perr.IncompatibleBindings("negation failed: its body has a solution")
		}
		return nil, m.binds.AddConstraint(constraint)

	default:
		return nil, perr.UnsupportedAt(body.Span(), "negated bodies cannot suspend for host input")
	}
}

// invertBindings builds the constraint that must hold for body to NOT
// have succeeded, restricted to the variables body itself mentions (a
// nested rule call's internally renamed parameters also show up in
// captured, bound during the same sub-query, but they are never visible
// to the caller and must not leak into the residual). Returns nil if body
// succeeded without binding any of its own variables — nothing to invert,
// so the caller should treat it as plain negation failure.
func invertBindings(body term.Term, captured map[string]interface{}) *term.Expression {
	wanted := make(map[term.Symbol]bool)
	for _, v := range termVariables(body) {
		wanted[v] = true
	}

	var names []string
	for name := range captured {
		if wanted[term.Symbol(name)] {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)

	neqs := make([]term.Term, len(names))
	for i, name := range names {
		neqs[i] = term.NewExpression(term.OpNeq, term.NewVariable(term.Symbol(name)), captured[name].(term.Term))
	}
	if len(neqs) == 1 {
		return neqs[0].(*term.Expression)
	}
	return term.NewExpression(term.OpOr, neqs...)
}
