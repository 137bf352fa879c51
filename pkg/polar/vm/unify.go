package vm

import (
	"math"

	"github.com/polar-vm/polarvm/pkg/polar/event"
	"github.com/polar-vm/polarvm/pkg/polar/perr"
	"github.com/polar-vm/polarvm/pkg/polar/term"
)

// unify makes a and b equal, binding unbound variables, recursing into
// lists/dicts structurally, and failing if two ground values differ.
func (m *Machine) unify(a, b term.Term) error {
	a = m.binds.DeepDeref(a)
	b = m.binds.DeepDeref(b)

	if av, ok := term.AsVariable(a); ok {
		_, err := m.binds.Bind(av, b)
		return err
	}
	if bv, ok := term.AsVariable(b); ok {
		_, err := m.binds.Bind(bv, a)
		return err
	}

	switch av := a.(type) {
	case *term.List:
		bv, ok := b.(*term.List)
		if !ok {
			return perr.IncompatibleBindings("cannot unify a list with a non-list")
		}
		return m.unifyLists(av, bv)
	case *term.Dict:
		bv, ok := b.(*term.Dict)
		if !ok {
			return perr.IncompatibleBindings("cannot unify a dict with a non-dict")
		}
		for k, av2 := range av.Fields {
			bv2, ok := bv.Fields[k]
			if !ok {
				return perr.IncompatibleBindings("dict missing key " + k)
			}
			if err := m.unify(av2, bv2); err != nil {
				return err
			}
		}
		for k := range bv.Fields {
			if _, ok := av.Fields[k]; !ok {
				return perr.IncompatibleBindings("dict missing key " + k)
			}
		}
		return nil
	default:
		if a.Equal(b) {
			return nil
		}
		return perr.IncompatibleBindings("cannot unify " + a.String() + " with " + b.String())
	}
}

func (m *Machine) unifyLists(a, b *term.List) error {
	if a.Rest == nil && b.Rest == nil {
		if len(a.Items) != len(b.Items) {
			return perr.IncompatibleBindings("lists differ in length")
		}
		for i := range a.Items {
			if err := m.unify(a.Items[i], b.Items[i]); err != nil {
				return err
			}
		}
		return nil
	}
	// One side has a rest-variable: unify the fixed prefix, then bind the
	// rest-variable to whatever items remain on the other side.
	short, long, rest := a, b, b.Rest
	if a.Rest != nil {
		short, long, rest = b, a, a.Rest
	}
	if len(short.Items) > len(long.Items) {
		return perr.IncompatibleBindings("rest-variable pattern longer than the list it matches")
	}
	for i, it := range short.Items {
		if err := m.unify(it, long.Items[i]); err != nil {
			return err
		}
	}
	tail := term.NewList(append([]term.Term{}, long.Items[len(short.Items):]...))
	_, err := m.binds.Bind(rest.Name, tail)
	return err
}

// termsEqual evaluates any arithmetic subexpressions in a and b, then
// reports whether the resulting values are equal (`==`/`!=`).
func (m *Machine) termsEqual(a, b term.Term) (bool, error) {
	av, err := m.evalValue(a)
	if err != nil {
		return false, err
	}
	bv, err := m.evalValue(b)
	if err != nil {
		return false, err
	}
	return av.Equal(bv), nil
}

// evalValue dereferences t and, if it is an arithmetic expression,
// evaluates it to a Number; everything else is returned as-is.
func (m *Machine) evalValue(t term.Term) (term.Term, error) {
	t = m.binds.DeepDeref(t)
	e, ok := t.(*term.Expression)
	if !ok {
		return t, nil
	}
	switch e.Op {
	case term.OpAdd, term.OpSub, term.OpMul, term.OpDiv, term.OpMod, term.OpRem:
		return m.evalArith(e)
	default:
		return t, nil
	}
}

func (m *Machine) evalArith(e *term.Expression) (term.Term, error) {
	left, err := m.evalValue(e.Args[0])
	if err != nil {
		return nil, err
	}
	right, err := m.evalValue(e.Args[1])
	if err != nil {
		return nil, err
	}
	ln, ok := left.(*term.Number)
	if !ok {
		return nil, perr.TypeErrorAt(e.Span(), "left operand of "+e.Op.String()+" is not a number", "")
	}
	rn, ok := right.(*term.Number)
	if !ok {
		return nil, perr.TypeErrorAt(e.Span(), "right operand of "+e.Op.String()+" is not a number", "")
	}

	if !ln.IsFloat() && !rn.IsFloat() {
		li, _ := ln.Int()
		ri, _ := rn.Int()
		switch e.Op {
		case term.OpAdd:
			return term.NewIntAt(li+ri, e.Span()), nil
		case term.OpSub:
			return term.NewIntAt(li-ri, e.Span()), nil
		case term.OpMul:
			return term.NewIntAt(li*ri, e.Span()), nil
		case term.OpMod:
			if ri == 0 {
				return nil, perr.ArithmeticErrorAt(e.Span(), "modulo by zero")
			}
			r := li % ri
			if (r < 0 && ri > 0) || (r > 0 && ri < 0) {
				r += ri
			}
			return term.NewIntAt(r, e.Span()), nil
		case term.OpRem:
			if ri == 0 {
				return nil, perr.ArithmeticErrorAt(e.Span(), "remainder by zero")
			}
			return term.NewIntAt(li%ri, e.Span()), nil
		case term.OpDiv:
			if ri == 0 {
				return nil, perr.ArithmeticErrorAt(e.Span(), "division by zero")
			}
			if li%ri == 0 {
				return term.NewIntAt(li/ri, e.Span()), nil
			}
			return term.NewFloatAt(float64(li)/float64(ri), e.Span()), nil
		}
	}

	lf, rf := ln.Float(), rn.Float()
	switch e.Op {
	case term.OpAdd:
		return term.NewFloatAt(lf+rf, e.Span()), nil
	case term.OpSub:
		return term.NewFloatAt(lf-rf, e.Span()), nil
	case term.OpMul:
		return term.NewFloatAt(lf*rf, e.Span()), nil
	case term.OpDiv:
		return term.NewFloatAt(lf/rf, e.Span()), nil
	case term.OpMod:
		return term.NewFloatAt(math.Mod(math.Mod(lf, rf)+rf, rf), e.Span()), nil
	case term.OpRem:
		return term.NewFloatAt(math.Mod(lf, rf), e.Span()), nil
	}
	return nil, perr.UnsupportedAt(e.Span(), "unsupported arithmetic operator "+e.Op.String())
}

func (m *Machine) compare(e *term.Expression) (event.Event, error) {
	left, err := m.evalValue(e.Args[0])
	if err != nil {
		return nil, err
	}
	right, err := m.evalValue(e.Args[1])
	if err != nil {
		return nil, err
	}
	ok, err := compareOrdered(e.Op, left, right)
	if err != nil {
		return nil, err
	}
	if !ok {
		// An ordinary false comparison is a failed goal, not a runtime
		// error: the resolver should backtrack past it exactly like a
		// failed unify, not halt the whole query (spec §7).
		return nil, perr.IncompatibleBindings("comparison " + e.Op.String() + " does not hold")
	}
	return nil, nil
}

func compareOrdered(op term.Operator, left, right term.Term) (bool, error) {
	ln, lok := left.(*term.Number)
	rn, rok := right.(*term.Number)
	if lok && rok {
		lf, rf := ln.Float(), rn.Float()
		if !ln.IsFloat() {
			li, _ := ln.Int()
			lf = float64(li)
		}
		if !rn.IsFloat() {
			ri, _ := rn.Int()
			rf = float64(ri)
		}
		return applyOrder(op, lf, rf), nil
	}
	ls, lok := left.(*term.String)
	rs, rok := right.(*term.String)
	if lok && rok {
		return applyOrderStr(op, ls.Text, rs.Text), nil
	}
	return false, perr.TypeErrorAt(term.Span{}, "cannot compare "+left.String()+" and "+right.String(), "")
}

func applyOrder(op term.Operator, l, r float64) bool {
	switch op {
	case term.OpLt:
		return l < r
	case term.OpLeq:
		return l <= r
	case term.OpGt:
		return l > r
	case term.OpGeq:
		return l >= r
	}
	return false
}

func applyOrderStr(op term.Operator, l, r string) bool {
	switch op {
	case term.OpLt:
		return l < r
	case term.OpLeq:
		return l <= r
	case term.OpGt:
		return l > r
	case term.OpGeq:
		return l >= r
	}
	return false
}
