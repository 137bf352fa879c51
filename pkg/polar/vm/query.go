package vm

import (
	"fmt"

	"github.com/polar-vm/polarvm/pkg/polar/event"
	"github.com/polar-vm/polarvm/pkg/polar/perr"
	"github.com/polar-vm/polarvm/pkg/polar/term"
)

// queryTerm evaluates t as a goal: Expressions dispatch on their
// Operator, Calls look up and try matching rules, everything else (a
// bound or literal value in "truthy" position) succeeds iff it derefs to
// anything other than the boolean false.
func (m *Machine) queryTerm(t term.Term) (event.Event, error) {
	t = m.binds.DeepDeref(t)
	switch v := t.(type) {
	case *term.Expression:
		return m.queryExpression(v)
	case *term.Call:
		return m.queryCall(v)
	case *term.Boolean:
		if !v.Val {
			// Querying a literal false is a failed goal, not an
			// application error: it backtracks like any other failed
			// condition (original_source/vm.rs's query: Boolean(false)
			// arm just backtracks).
			return nil, perr.IncompatibleBindings("false is not a satisfiable condition")
		}
		return nil, nil
	default:
		return nil, nil
	}
}

func (m *Machine) queryExpression(e *term.Expression) (event.Event, error) {
	switch e.Op {
	case term.OpAnd:
		conjuncts := make([]goal, len(e.Args))
		for i, a := range e.Args {
			conjuncts[i] = gQuery{Term: a}
		}
		m.pushGoals(conjuncts)
		return nil, nil

	case term.OpOr:
		alts := make([][]goal, len(e.Args))
		for i, a := range e.Args {
			alts[i] = []goal{gQuery{Term: a}}
		}
		m.pushChoice(alts)
		return nil, nil

	case term.OpNot:
		return m.queryNegation(e.Args[0])

	case term.OpCut:
		if m.queryContainsPartial() {
			return nil, perr.UnsupportedAt(e.Span(), "cannot use cut with partial evaluation")
		}
		m.goals = append(m.goals, gCut{ChoiceIndex: m.currentRuleChoiceIndex})
		return nil, nil

	case term.OpUnify, term.OpAssign, term.OpEq, term.OpNeq, term.OpLt, term.OpLeq, term.OpGt, term.OpGeq:
		return m.evalArgsThenApply(e)

	case term.OpAdd, term.OpSub, term.OpMul, term.OpDiv, term.OpMod, term.OpRem:
		return nil, perr.UnsupportedAt(e.Span(), "arithmetic operators are only valid as value expressions, not as standalone goals")

	case term.OpIsa:
		return m.isa(e.Args[0], e.Args[1])

	case term.OpIn:
		return m.in(e.Args[0], e.Args[1])

	case term.OpDot:
		return m.dotThenContinue(e, func(result term.Term) goal {
			return gQuery{Term: result}
		})

	case term.OpNew:
		return m.newThenContinue(e, func(result term.Term) goal {
			return gQuery{Term: term.NewBool(true)}
		})

	case term.OpForall:
		// forall(cond, action) == not (cond and not action): there is no
		// solution of cond that fails action.
		return m.queryNegation(term.And(e.Args[0], term.NewExpression(term.OpNot, e.Args[1])))

	case term.OpPrint:
		vals := make([]string, len(e.Args))
		for i, a := range e.Args {
			vals[i] = m.binds.DeepDeref(a).String()
		}
		fmt.Println(vals)
		return nil, nil

	case term.OpDebug:
		msg := ""
		if len(e.Args) > 0 {
			msg = m.binds.DeepDeref(e.Args[0]).String()
		}
		return event.Debug{CallID: m.mintCallID(), Message: msg}, nil

	default:
		return nil, perr.UnsupportedAt(e.Span(), "unsupported operator "+e.Op.String())
	}
}
