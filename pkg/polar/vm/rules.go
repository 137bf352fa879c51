package vm

import (
	"sort"
	"strconv"

	"github.com/polar-vm/polarvm/pkg/polar/kb"
	"github.com/polar-vm/polarvm/pkg/polar/term"
)

// applicableRules returns the rules of g whose arity matches argc, ordered
// most-specific first (spec §5 rule resolution). First-argument indexing
// happens implicitly: a rule whose first parameter is a class-pattern
// specializer will simply fail its isa check quickly during the unify
// goal this package builds, rather than being screened out ahead of time
// — see DESIGN.md for why a cheaper index table was not worth building
// for this implementation's scale.
func applicableRules(base *kb.KnowledgeBase, g *kb.GenericRule, argc int) []*kb.Rule {
	var out []*kb.Rule
	for _, r := range g.Rules {
		if len(r.Params) == argc {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return moreSpecific(base, out[i], out[j])
	})
	return out
}

// moreSpecific reports whether a should be tried before b: comparing
// parameter specializers left to right, a class pattern beats no
// specializer, and a subclass specializer beats its ancestor's. Rules
// that tie on every parameter keep their relative LoadSeq/insertion
// order (spec §9 open question 3), which sort.SliceStable preserves.
func moreSpecific(base *kb.KnowledgeBase, a, b *kb.Rule) bool {
	for i := range a.Params {
		sa, sb := a.Params[i].Specializer, b.Params[i].Specializer
		pa, aIsPattern := sa.(*term.Pattern)
		pb, bIsPattern := sb.(*term.Pattern)

		if aIsPattern && !bIsPattern {
			return true
		}
		if !aIsPattern && bIsPattern {
			return false
		}
		if aIsPattern && bIsPattern && pa.Tag != pb.Tag {
			aci, aok := base.Class(pa.Tag)
			bci, bok := base.Class(pb.Tag)
			if aok && bok {
				if base.IsSubclass(aci.ID, bci.ID) {
					return true
				}
				if base.IsSubclass(bci.ID, aci.ID) {
					return false
				}
			}
			// Unrelated classes at this position: no ordering signal,
			// move on to the next parameter.
			continue
		}
	}
	return false
}

// renameRule returns a copy of r with every parameter and body variable
// replaced by a fresh gensym'd name, so each invocation of a rule gets
// its own variables even when the rule recurses (spec §3, "renaming").
func renameRule(base *kb.KnowledgeBase, r *kb.Rule) *kb.Rule {
	mapping := map[term.Symbol]term.Symbol{}
	params := make([]kb.Parameter, len(r.Params))
	for i, p := range r.Params {
		fresh := freshName(base, mapping, p.Variable)
		params[i] = kb.Parameter{
			Variable:    fresh,
			Specializer: renameTerm(p.Specializer, base, mapping),
		}
	}
	body := renameTerm(r.Body, base, mapping)
	return &kb.Rule{ID: r.ID, Name: r.Name, Params: params, Body: body, LoadSeq: r.LoadSeq, Span: r.Span}
}

func freshName(base *kb.KnowledgeBase, mapping map[term.Symbol]term.Symbol, name term.Symbol) term.Symbol {
	if fresh, ok := mapping[name]; ok {
		return fresh
	}
	fresh := term.Symbol(string(name) + "_" + strconv.FormatInt(base.Gensym(), 10))
	mapping[name] = fresh
	return fresh
}

func renameTerm(t term.Term, base *kb.KnowledgeBase, mapping map[term.Symbol]term.Symbol) term.Term {
	if t == nil {
		return nil
	}
	switch n := t.(type) {
	case *term.Variable:
		return term.NewVariableAt(freshName(base, mapping, n.Name), n.Span())
	case *term.RestVariable:
		return term.NewRestVariableAt(freshName(base, mapping, n.Name), n.Span())
	case *term.List:
		items := make([]term.Term, len(n.Items))
		for i, it := range n.Items {
			items[i] = renameTerm(it, base, mapping)
		}
		var rest *term.RestVariable
		if n.Rest != nil {
			rest = renameTerm(n.Rest, base, mapping).(*term.RestVariable)
		}
		return term.NewListAt(items, rest, n.Span())
	case *term.Dict:
		fields := make(map[string]term.Term, len(n.Fields))
		for k, v := range n.Fields {
			fields[k] = renameTerm(v, base, mapping)
		}
		return term.NewDictAt(fields, n.Span())
	case *term.Pattern:
		return term.NewPatternAt(n.Tag, renameTerm(n.Fields, base, mapping).(*term.Dict), n.Span())
	case *term.Call:
		args := make([]term.Term, len(n.Args))
		for i, a := range n.Args {
			args[i] = renameTerm(a, base, mapping)
		}
		var kwargs map[string]term.Term
		if n.Kwargs != nil {
			kwargs = make(map[string]term.Term, len(n.Kwargs))
			for k, a := range n.Kwargs {
				kwargs[k] = renameTerm(a, base, mapping)
			}
		}
		return term.NewCallAt(n.Name, args, kwargs, n.Span())
	case *term.Expression:
		args := make([]term.Term, len(n.Args))
		for i, a := range n.Args {
			args[i] = renameTerm(a, base, mapping)
		}
		return term.NewExpressionAt(n.Op, n.Span(), args...)
	default:
		return t
	}
}
