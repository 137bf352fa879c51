package vm

import (
	"github.com/polar-vm/polarvm/pkg/polar/bind"
	"github.com/polar-vm/polarvm/pkg/polar/term"
)

// termVariables collects the distinct variables referenced anywhere in t,
// in first-seen order. A vm-local twin of bind's unexported variablesIn,
// needed here for negation's residual-constraint scoping and the cut/
// partial-evaluation guard below.
func termVariables(t term.Term) []term.Symbol {
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

// queryContainsPartial reports whether any variable the binding manager
// knows of is currently left Partial, or any goal still pending on the
// stack references such a variable.
// Grounded on original_source/polar-core/src/vm.rs's
// query_contains_partial, which the VM recomputes before a Cut goal
// decides whether to truncate choice points or raise Unsupported (spec
// §4.2.6: cut inside a residual/partial-evaluation context is a runtime
// error, not a silent commit to one branch of a still-symbolic result).
func (m *Machine) queryContainsPartial() bool {
	for name := range m.binds.BindingsAfter(false, bind.Bsp{}) {
		if m.binds.VariableState(term.Symbol(name)).Kind == bind.Partial {
			return true
		}
	}
	for _, g := range m.goals {
		gq, ok := g.(gQuery)
		if !ok {
			continue
		}
		for _, v := range termVariables(gq.Term) {
			if m.binds.VariableState(v).Kind == bind.Partial {
				return true
			}
		}
	}
	return false
}
