package vm

import (
	"github.com/polar-vm/polarvm/pkg/polar/event"
	"github.com/polar-vm/polarvm/pkg/polar/kb"
	"github.com/polar-vm/polarvm/pkg/polar/perr"
	"github.com/polar-vm/polarvm/pkg/polar/term"
)

// queryCall resolves an unresolved rule invocation: look up every rule
// sharing c's name and arity, most specific first, and try each as an
// alternative — unifying call arguments against fresh-renamed parameters,
// checking any specializers via isa, then running the rule's body.
// Exhausting every alternative without success is an ordinary failure
// (triggers backtracking), not an error: that's how "no such rule
// applies" and "this rule applied but its body failed" both surface.
func (m *Machine) queryCall(c *term.Call) (event.Event, error) {
	generic, ok := m.kb.Rule(c.Name)
	if !ok {
		return nil, perr.QueryForUndefinedRule(c.Name)
	}

	args := make([]term.Term, len(c.Args))
	for i, a := range c.Args {
		args[i] = m.binds.DeepDeref(a)
	}

	candidates := applicableRules(m.kb, generic, len(args))
	if len(candidates) == 0 {
		return nil, perr.QueryForUndefinedRule(c.Name)
	}

	barrierIndex := len(m.choice)
	prevBarrier := m.currentRuleChoiceIndex
	savedCallID := m.nextCallID

	alternatives := make([][]goal, len(candidates))
	for i, r := range candidates {
		alternatives[i] = ruleBodyGoals(m.kb, r, args, barrierIndex, prevBarrier, savedCallID)
	}
	m.pushChoice(alternatives)
	return nil, nil
}

// ruleBodyGoals builds the goal sequence for trying one candidate rule: a
// fresh renaming, argument unification, specializer isa checks, the cut
// barrier bracketing its body, and restoring the caller's call-id counter
// once it (and anything it called) finishes.
func ruleBodyGoals(base *kb.KnowledgeBase, r *kb.Rule, args []term.Term, barrierIndex, prevBarrier int, savedCallID int64) []goal {
	renamed := renameRule(base, r)

	goals := []goal{gEnterCutBarrier{New: barrierIndex, Prev: prevBarrier}}
	for i, p := range renamed.Params {
		goals = append(goals, gQuery{Term: term.NewExpression(term.OpUnify, term.NewVariable(p.Variable), args[i])})
		if p.Specializer != nil {
			goals = append(goals, gQuery{Term: term.NewExpression(term.OpIsa, term.NewVariable(p.Variable), p.Specializer)})
		}
	}
	goals = append(goals, gQuery{Term: renamed.Body})
	goals = append(goals, gExitCutBarrier{Prev: prevBarrier})
	goals = append(goals, gPopCallID{Prev: savedCallID})
	return goals
}
