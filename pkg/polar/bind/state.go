package bind

import (
	"github.com/polar-vm/polarvm/pkg/polar/term"
)

// valueAt returns the most recent binding of v recorded strictly before
// index, mirroring bindings.rs's BindingStack lookup bounded by a bsp.
func (m *Manager) valueAt(v term.Symbol, index int) (term.Term, bool) {
	for i := index - 1; i >= 0; i-- {
		if m.bindings[i].Var == v {
			return m.bindings[i].Val, true
		}
	}
	return nil, false
}

// VariableState reports what is currently known about v.
func (m *Manager) VariableState(v term.Symbol) VariableState {
	return m.VariableStateAt(v, m.Bsp())
}

// VariableStateAt reports what was known about v at a past snapshot,
// walking variable-to-variable chains and detecting a chain back to the
// original query variable as a (folded-into-Partial) cycle.
func (m *Manager) VariableStateAt(v term.Symbol, at Bsp) VariableState {
	index := at.Index
	next := v
	for {
		val, ok := m.valueAt(next, index)
		if !ok {
			return VariableState{Kind: Unbound}
		}
		if expr, ok := val.(*term.Expression); ok {
			return VariableState{Kind: Partial, Expr: expr}
		}
		if sym, ok := term.AsVariable(val); ok {
			if sym == v {
				return VariableState{Kind: Partial}
			}
			next = sym
			continue
		}
		return VariableState{Kind: Bound, Value: val}
	}
}

// GetConstraints returns v's constraints as a standalone expression: the
// empty conjunction if unbound, a single unification if bound, or the
// stored partial expression itself.
func (m *Manager) GetConstraints(v term.Symbol) *term.Expression {
	switch st := m.VariableState(v); st.Kind {
	case Bound:
		return term.And(term.NewExpression(term.OpUnify, term.NewVariable(v), st.Value))
	case Partial:
		if st.Expr != nil {
			return st.Expr
		}
		return term.And()
	default:
		return term.And()
	}
}

// AddConstraint folds a new constraint expression into whatever is
// already known about its variables, grounding any operand that is
// already Bound (bindings.rs's add_constraint: "replace any bound
// variables with their values; apply the new constraint to every
// remaining variable").
func (m *Manager) AddConstraint(c *term.Expression) error {
	for _, f := range m.followers {
		if err := f.AddConstraint(c); err != nil {
			return err
		}
	}

	op := term.And(c)
	for _, v := range variablesIn(op) {
		if st := m.VariableState(v); st.Kind == Partial && st.Expr != nil {
			op = mergeConstraints(st.Expr, op)
		}
	}

	vars := variablesIn(op)
	remaining := make(map[term.Symbol]bool, len(vars))
	for _, v := range vars {
		remaining[v] = true
	}
	for _, v := range vars {
		if st := m.VariableState(v); st.Kind == Bound {
			delete(remaining, v)
			if grounded, ok := substitute(op, v, st.Value).(*term.Expression); ok {
				op = grounded
			}
		}
	}

	for v := range remaining {
		m.addBinding(v, op)
	}
	return nil
}

// mergeConstraints concatenates two conjunctions' operands, following
// Operation::merge_constraints's flatten-and-append behavior.
func mergeConstraints(a, b *term.Expression) *term.Expression {
	args := append(append([]term.Term{}, a.Args...), b.Args...)
	return term.NewExpression(term.OpAnd, args...)
}

// variablesIn collects the distinct variables referenced anywhere in t, in
// first-seen order.
func variablesIn(t term.Term) []term.Symbol {
	seen := map[term.Symbol]bool{}
	var out []term.Symbol
	var walk func(term.Term)
	walk = func(t term.Term) {
		if t == nil {
			return
		}
		switch n := t.(type) {
		case *term.Variable:
			if !seen[n.Name] {
				seen[n.Name] = true
				out = append(out, n.Name)
			}
		case *term.RestVariable:
			if !seen[n.Name] {
				seen[n.Name] = true
				out = append(out, n.Name)
			}
		case *term.List:
			for _, it := range n.Items {
				walk(it)
			}
			if n.Rest != nil {
				walk(n.Rest)
			}
		case *term.Dict:
			for _, k := range n.Keys() {
				walk(n.Fields[k])
			}
		case *term.Call:
			for _, a := range n.Args {
				walk(a)
			}
			for _, a := range n.Kwargs {
				walk(a)
			}
		case *term.Expression:
			for _, a := range n.Args {
				walk(a)
			}
		}
	}
	walk(t)
	return out
}

// DeepDeref fully dereferences every variable occurrence in t, following
// chains to a ground value or leaving an unresolved variable/partial in
// place. Cycle-safe: a variable already being expanded on the current
// path is left as-is rather than recursed into again.
func (m *Manager) DeepDeref(t term.Term) term.Term {
	return m.deepDeref(t, map[term.Symbol]bool{})
}

func (m *Manager) deepDeref(t term.Term, seen map[term.Symbol]bool) term.Term {
	if t == nil {
		return nil
	}
	switch n := t.(type) {
	case *term.Expression:
		return n
	case *term.Variable:
		return m.derefVar(n.Name, t, seen)
	case *term.RestVariable:
		return m.derefVar(n.Name, t, seen)
	case *term.List:
		items := make([]term.Term, 0, len(n.Items)+1)
		for _, it := range n.Items {
			items = append(items, m.deepDeref(it, seen))
		}
		if n.Rest != nil {
			restVal := m.deepDeref(n.Rest, seen)
			if restList, ok := restVal.(*term.List); ok {
				items = append(items, restList.Items...)
				return term.NewListAt(items, restList.Rest, n.Span())
			}
			return term.NewListAt(items, n.Rest, n.Span())
		}
		return term.NewListAt(items, nil, n.Span())
	case *term.Dict:
		fields := make(map[string]term.Term, len(n.Fields))
		for k, v := range n.Fields {
			fields[k] = m.deepDeref(v, seen)
		}
		return term.NewDictAt(fields, n.Span())
	case *term.Call:
		args := make([]term.Term, len(n.Args))
		for i, a := range n.Args {
			args[i] = m.deepDeref(a, seen)
		}
		return term.NewCallAt(n.Name, args, n.Kwargs, n.Span())
	default:
		return t
	}
}

func (m *Manager) derefVar(name term.Symbol, orig term.Term, seen map[term.Symbol]bool) term.Term {
	if seen[name] {
		return orig
	}
	val, ok := m.valueAt(name, m.Bsp().Index)
	if !ok {
		return orig
	}
	seen[name] = true
	defer delete(seen, name)
	return m.deepDeref(val, seen)
}
