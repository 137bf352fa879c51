package vm

import (
	"github.com/polar-vm/polarvm/pkg/polar/event"
	"github.com/polar-vm/polarvm/pkg/polar/perr"
	"github.com/polar-vm/polarvm/pkg/polar/term"
)

// evalArgsThenApply evaluates a two-operand comparison/unification
// expression. If either operand is itself a host-dependent expression
// (`.field`/`.method()`, `new Foo()`), it suspends for the host's answer
// and re-queries the same expression with that operand replaced by the
// answer, rather than trying to make unify/compare themselves suspend-
// aware.
func (m *Machine) evalArgsThenApply(e *term.Expression) (event.Event, error) {
	for i, a := range e.Args {
		d := m.binds.DeepDeref(a)
		if hostExpr, ok := asHostExpr(d); ok {
			idx := i
			return m.suspendHostExpr(hostExpr, func(value term.Term) goal {
				args := append([]term.Term{}, e.Args...)
				args[idx] = value
				return gQuery{Term: term.NewExpressionAt(e.Op, e.Span(), args...)}
			})
		}
	}
	return nil, m.applyOperator(e)
}

func (m *Machine) applyOperator(e *term.Expression) error {
	switch e.Op {
	case term.OpUnify, term.OpAssign:
		return m.unify(e.Args[0], e.Args[1])
	case term.OpEq:
		eq, err := m.termsEqual(e.Args[0], e.Args[1])
		if err != nil {
			return err
		}
		if !eq {
			// Not matching is a failed goal, not a runtime error: the
			// resolver backtracks past it like any other failed
			// unification (spec §7).
			return perr.IncompatibleBindings("equality check does not hold")
		}
		return nil
	case term.OpNeq:
		eq, err := m.termsEqual(e.Args[0], e.Args[1])
		if err != nil {
			return err
		}
		if eq {
			return perr.IncompatibleBindings("inequality check does not hold")
		}
		return nil
	case term.OpLt, term.OpLeq, term.OpGt, term.OpGeq:
		_, err := m.compare(e)
		return err
	default:
		return perr.UnsupportedAt(e.Span(), "unsupported operator "+e.Op.String())
	}
}

// asHostExpr reports whether t is an expression only the host can
// resolve (a field/method lookup, or instance construction).
func asHostExpr(t term.Term) (*term.Expression, bool) {
	e, ok := t.(*term.Expression)
	if !ok {
		return nil, false
	}
	if e.Op == term.OpDot || e.Op == term.OpNew {
		return e, true
	}
	return nil, false
}

func (m *Machine) suspendHostExpr(e *term.Expression, cont func(term.Term) goal) (event.Event, error) {
	if e.Op == term.OpNew {
		return m.newThenContinue(e, cont)
	}
	return m.dotThenContinue(e, cont)
}

// dotThenContinue resolves `object.field` or `object.method(args)`,
// answering locally when object already derefs to a Dict (a field
// lookup needs no host round trip), and otherwise suspending with an
// ExternalCall event. cont receives the resolved value and produces the
// next goal to run.
func (m *Machine) dotThenContinue(e *term.Expression, cont func(term.Term) goal) (event.Event, error) {
	obj := m.binds.DeepDeref(e.Args[0])
	fieldTerm := e.Args[1]

	if dict, ok := obj.(*term.Dict); ok {
		if name, ok := fieldTerm.(*term.String); ok {
			val, found := dict.Fields[name.Text]
			if !found {
				// A missing field on a dict literal is a failed lookup,
				// not an application error: backtrack past it like any
				// other unification miss (original_source/vm.rs's
				// lookup: Value::String branch just backtracks).
				return nil, perr.IncompatibleBindings("no field " + name.Text + " on " + dict.String())
			}
			m.goals = append(m.goals, cont(val))
			return nil, nil
		}
	}

	callID := m.mintCallID()
	var attr string
	var args []term.Term
	var kwargs map[string]term.Term
	switch f := fieldTerm.(type) {
	case *term.String:
		attr = f.Text
	case *term.Call:
		attr = f.Name
		args = make([]term.Term, len(f.Args))
		for i, a := range f.Args {
			args[i] = m.binds.DeepDeref(a)
		}
		kwargs = f.Kwargs
	default:
		return nil, perr.UnsupportedAt(e.Span(), "dot right-hand side must be a field name or method call")
	}

	m.resume = func(reply term.Term, ok bool) error {
		if !ok {
			return perr.Application("external call to " + attr + " did not produce a value")
		}
		m.goals = append(m.goals, cont(reply))
		return nil
	}
	return event.ExternalCall{CallID: callID, Instance: obj, Attribute: attr, Args: args, Kwargs: kwargs}, nil
}

// newThenContinue constructs a fresh instance id locally (ids are always
// minted by the engine, never the host — spec §3) and asks the host to
// run the constructor call against it.
func (m *Machine) newThenContinue(e *term.Expression, cont func(term.Term) goal) (event.Event, error) {
	call, ok := e.Args[0].(*term.Call)
	if !ok {
		return nil, perr.UnsupportedAt(e.Span(), "new requires a constructor call")
	}
	instanceID := m.kb.Gensym()
	instance := term.NewExternalInstance(instanceID)
	m.resume = func(reply term.Term, ok bool) error {
		if !ok {
			return perr.Application("construction of " + call.Name + " failed")
		}
		m.goals = append(m.goals, cont(instance))
		return nil
	}
	return event.MakeExternal{InstanceID: instanceID, Constructor: call}, nil
}
