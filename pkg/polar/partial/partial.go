// Package partial implements the residual-expression simplifier described
// in spec §4.3: once a query leaves a top-level variable unbound but
// constrained, its accumulated residual (bind.Manager.GetConstraints) is
// normalised before being handed back to the host as part of an
// event.Result. Grounded on
// original_source/polar-core/src/partial/partial.rs's Operation helpers
// (ground, merge_constraints, constraints/variables), reshaped as a
// standalone five-pass pipeline instead of a Folder/Visitor pair since Go
// has no trait-object folder idiom to mirror.
package partial

import (
	"sort"

	"github.com/polar-vm/polarvm/pkg/polar/bind"
	"github.com/polar-vm/polarvm/pkg/polar/perr"
	"github.com/polar-vm/polarvm/pkg/polar/term"
)

// ThisVar is the synthetic anchor variable substituted for a top-level
// query variable inside its own simplified residual, so the expression
// reads as "this is true of the bound value of the variable" (spec §4.3
// step 5) rather than naming the variable itself.
const ThisVar term.Symbol = "_this"

// ClassHierarchy is the subset of *kb.KnowledgeBase the isa-compatibility
// pass needs: looking up a registered tag and asking whether one class
// descends from another.
type ClassHierarchy interface {
	Class(name string) (ID int64, ok bool)
	IsSubclass(descendant, ancestor int64) bool
}

// kbAdapter lets *kb.KnowledgeBase (whose Class returns a *ClassInfo, not
// an int64) satisfy ClassHierarchy without this package importing kb and
// creating an import cycle (kb does not, and should not, depend on
// partial).
type kbAdapter struct {
	class      func(name string) (int64, bool)
	isSubclass func(descendant, ancestor int64) bool
}

func (a kbAdapter) Class(name string) (int64, bool)         { return a.class(name) }
func (a kbAdapter) IsSubclass(descendant, ancestor int64) bool { return a.isSubclass(descendant, ancestor) }

// NewClassHierarchy adapts the two *kb.KnowledgeBase methods this package
// needs into a ClassHierarchy, so callers don't have to hand-write the
// adapter themselves.
func NewClassHierarchy(class func(name string) (int64, bool), isSubclass func(descendant, ancestor int64) bool) ClassHierarchy {
	return kbAdapter{class: class, isSubclass: isSubclass}
}

// Simplify normalises the residual constraint expression for one top-level
// query variable into canonical form: ground substitution, cycle
// contraction, de-duplication, isa-compatibility checking, and finally
// _this-substitution. The simplifier is idempotent and order-independent
// (running it again on its own output is a no-op beyond re-sorting
// already-deduplicated conjuncts).
func Simplify(binds *bind.Manager, classes ClassHierarchy, v term.Symbol, residual *term.Expression) (*term.Expression, error) {
	grounded := groundSubstitute(binds, residual)

	contracted := contractCycles(grounded, v)

	deduped := dedupe(contracted)

	if err := checkIsaCompatibility(classes, deduped); err != nil {
		return nil, err
	}

	anchored := substituteThis(deduped, v)
	return anchored, nil
}

// groundSubstitute replaces every variable reference in t that the
// binding manager now knows to be Bound with its ground value, following
// chains transitively. Unlike bind.Manager.DeepDeref (which leaves nested
// *term.Expression values untouched, since goal evaluation must not
// destructively rewrite residuals mid-query), this recurses into
// expression operands: simplification runs only once the query is
// finished producing this particular answer, so there is nothing left to
// preserve structure for.
func groundSubstitute(binds *bind.Manager, t term.Term) term.Term {
	switch n := t.(type) {
	case *term.Variable:
		return groundVar(binds, n.Name, t, map[term.Symbol]bool{})
	case *term.RestVariable:
		return groundVar(binds, n.Name, t, map[term.Symbol]bool{})
	case *term.List:
		items := make([]term.Term, len(n.Items))
		for i, it := range n.Items {
			items[i] = groundSubstitute(binds, it)
		}
		var rest *term.RestVariable
		if n.Rest != nil {
			if r, ok := groundSubstitute(binds, n.Rest).(*term.RestVariable); ok {
				rest = r
			}
		}
		return term.NewListAt(items, rest, n.Span())
	case *term.Dict:
		fields := make(map[string]term.Term, len(n.Fields))
		for k, fv := range n.Fields {
			fields[k] = groundSubstitute(binds, fv)
		}
		return term.NewDictAt(fields, n.Span())
	case *term.Call:
		args := make([]term.Term, len(n.Args))
		for i, a := range n.Args {
			args[i] = groundSubstitute(binds, a)
		}
		return term.NewCallAt(n.Name, args, n.Kwargs, n.Span())
	case *term.Expression:
		args := make([]term.Term, len(n.Args))
		for i, a := range n.Args {
			args[i] = groundSubstitute(binds, a)
		}
		return term.NewExpressionAt(n.Op, n.Span(), args...)
	default:
		return t
	}
}

func groundVar(binds *bind.Manager, name term.Symbol, orig term.Term, seen map[term.Symbol]bool) term.Term {
	if seen[name] {
		return orig
	}
	st := binds.VariableState(name)
	switch st.Kind {
	case bind.Bound:
		seen[name] = true
		return groundSubstitute(binds, st.Value)
	default:
		return orig
	}
}

// contractCycles collapses chains of bare variable-to-variable equalities
// (x = y, y = z, ...) down to one representative per chain, dropping
// conjuncts that become trivial (a variable equated with itself) once
// contracted and rewriting every other reference to a chain member as a
// reference to its representative. v is never contracted away: it is the
// anchor the whole residual is about, so it always survives as its own
// representative.
func contractCycles(t term.Term, v term.Symbol) term.Term {
	e, ok := t.(*term.Expression)
	if !ok || e.Op != term.OpAnd {
		return t
	}

	reps := map[term.Symbol]term.Symbol{}
	find := func(s term.Symbol) term.Symbol {
		for {
			r, ok := reps[s]
			if !ok || r == s {
				return s
			}
			s = r
		}
	}
	union := func(a, b term.Symbol) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		// Keep v as the representative of its own chain, so downstream
		// substitution always anchors on the query variable itself.
		if rb == v {
			reps[ra] = rb
			return
		}
		reps[rb] = ra
	}

	for _, arg := range e.Args {
		ce, ok := arg.(*term.Expression)
		if !ok || (ce.Op != term.OpUnify && ce.Op != term.OpEq) || len(ce.Args) != 2 {
			continue
		}
		ls, lok := term.AsVariable(ce.Args[0])
		rs, rok := term.AsVariable(ce.Args[1])
		if lok && rok {
			union(ls, rs)
		}
	}

	if len(reps) == 0 {
		return t
	}

	var rewrite func(term.Term) term.Term
	rewrite = func(n term.Term) term.Term {
		switch x := n.(type) {
		case *term.Variable:
			return term.NewVariableAt(find(x.Name), x.Span())
		case *term.List:
			items := make([]term.Term, len(x.Items))
			for i, it := range x.Items {
				items[i] = rewrite(it)
			}
			return term.NewListAt(items, x.Rest, x.Span())
		case *term.Dict:
			fields := make(map[string]term.Term, len(x.Fields))
			for k, fv := range x.Fields {
				fields[k] = rewrite(fv)
			}
			return term.NewDictAt(fields, x.Span())
		case *term.Call:
			args := make([]term.Term, len(x.Args))
			for i, a := range x.Args {
				args[i] = rewrite(a)
			}
			return term.NewCallAt(x.Name, args, x.Kwargs, x.Span())
		case *term.Expression:
			args := make([]term.Term, len(x.Args))
			for i, a := range x.Args {
				args[i] = rewrite(a)
			}
			return term.NewExpressionAt(x.Op, x.Span(), args...)
		default:
			return n
		}
	}

	var out []term.Term
	for _, arg := range e.Args {
		rewritten := rewrite(arg)
		if ce, ok := rewritten.(*term.Expression); ok && (ce.Op == term.OpUnify || ce.Op == term.OpEq) && len(ce.Args) == 2 {
			if ls, lok := term.AsVariable(ce.Args[0]); lok {
				if rs, rok := term.AsVariable(ce.Args[1]); rok && ls == rs {
					continue // x = x once contracted: drop it.
				}
			}
		}
		out = append(out, rewritten)
	}
	return term.NewExpressionAt(term.OpAnd, e.Span(), out...)
}

// dedupe drops conjuncts that are syntactically equal to an earlier one
// under symmetric-operator normalisation: commutative ops (=, ==, !=,
// and, or — term.Operator.Commutative) compare equal under argument swap.
func dedupe(t term.Term) term.Term {
	e, ok := t.(*term.Expression)
	if !ok || e.Op != term.OpAnd {
		return t
	}
	var out []term.Term
	seen := make([]string, 0, len(e.Args))
	for _, arg := range e.Args {
		key := normalizedKey(arg)
		dup := false
		for _, s := range seen {
			if s == key {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		seen = append(seen, key)
		out = append(out, arg)
	}
	return term.NewExpressionAt(term.OpAnd, e.Span(), out...)
}

// normalizedKey renders t as a string with commutative operators' operands
// sorted, so `a = b` and `b = a` produce the same key.
func normalizedKey(t term.Term) string {
	e, ok := t.(*term.Expression)
	if !ok {
		return t.String()
	}
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = normalizedKey(a)
	}
	if e.Op.Commutative() {
		sort.Strings(parts)
	}
	out := e.Op.String()
	for _, p := range parts {
		out += "(" + p + ")"
	}
	return out
}

// checkIsaCompatibility fails the whole residual when two isa conjuncts on
// the same operand carry tags with no subclass relationship between them
// in either direction (spec §4.3 step 4: "incompatible tags" means neither
// is an ancestor of the other, so no runtime value could ever satisfy
// both).
func checkIsaCompatibility(classes ClassHierarchy, t term.Term) error {
	e, ok := t.(*term.Expression)
	if !ok || e.Op != term.OpAnd {
		return nil
	}
	tagsByOperand := map[string][]string{}
	for _, arg := range e.Args {
		ce, ok := arg.(*term.Expression)
		if !ok || ce.Op != term.OpIsa || len(ce.Args) != 2 {
			continue
		}
		pat, ok := ce.Args[1].(*term.Pattern)
		if !ok || pat.Tag == "" {
			continue
		}
		key := ce.Args[0].String()
		tagsByOperand[key] = append(tagsByOperand[key], pat.Tag)
	}
	for _, tags := range tagsByOperand {
		for i := 0; i < len(tags); i++ {
			for j := i + 1; j < len(tags); j++ {
				if !compatibleTags(classes, tags[i], tags[j]) {
					return perr.IncompatibleBindings("incompatible isa constraints: " + tags[i] + " and " + tags[j])
				}
			}
		}
	}
	return nil
}

func compatibleTags(classes ClassHierarchy, a, b string) bool {
	if a == b {
		return true
	}
	if classes == nil {
		return true
	}
	aID, aOK := classes.Class(a)
	bID, bOK := classes.Class(b)
	if !aOK || !bOK {
		return true
	}
	return classes.IsSubclass(aID, bID) || classes.IsSubclass(bID, aID)
}

// substituteThis replaces every reference to v with the synthetic _this
// anchor throughout t (spec §4.3 step 5).
func substituteThis(t term.Term, v term.Symbol) *term.Expression {
	var rewrite func(term.Term) term.Term
	rewrite = func(n term.Term) term.Term {
		switch x := n.(type) {
		case *term.Variable:
			if x.Name == v {
				return term.NewVariableAt(ThisVar, x.Span())
			}
			return x
		case *term.List:
			items := make([]term.Term, len(x.Items))
			for i, it := range x.Items {
				items[i] = rewrite(it)
			}
			return term.NewListAt(items, x.Rest, x.Span())
		case *term.Dict:
			fields := make(map[string]term.Term, len(x.Fields))
			for k, fv := range x.Fields {
				fields[k] = rewrite(fv)
			}
			return term.NewDictAt(fields, x.Span())
		case *term.Call:
			args := make([]term.Term, len(x.Args))
			for i, a := range x.Args {
				args[i] = rewrite(a)
			}
			return term.NewCallAt(x.Name, args, x.Kwargs, x.Span())
		case *term.Expression:
			args := make([]term.Term, len(x.Args))
			for i, a := range x.Args {
				args[i] = rewrite(a)
			}
			return term.NewExpressionAt(x.Op, x.Span(), args...)
		default:
			return n
		}
	}
	out := rewrite(t)
	if e, ok := out.(*term.Expression); ok {
		return e
	}
	return term.And(out)
}
