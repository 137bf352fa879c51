package vm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polar-vm/polarvm/pkg/polar/event"
	"github.com/polar-vm/polarvm/pkg/polar/kb"
	"github.com/polar-vm/polarvm/pkg/polar/perr"
	"github.com/polar-vm/polarvm/pkg/polar/term"
)

func newKB(t *testing.T) *kb.KnowledgeBase {
	t.Helper()
	return kb.New(nil)
}

func run(t *testing.T, base *kb.KnowledgeBase, query term.Term) *Machine {
	t.Helper()
	return New(base, query, DefaultConfig())
}

func TestQueryBareTrueSucceeds(t *testing.T) {
	base := newKB(t)
	m := run(t, base, term.NewBool(true))
	ev, err := m.Next(context.Background())
	require.NoError(t, err)
	_, ok := ev.(event.Result)
	require.True(t, ok)
}

func TestQueryBareFalseFails(t *testing.T) {
	base := newKB(t)
	m := run(t, base, term.NewBool(false))
	ev, err := m.Next(context.Background())
	require.NoError(t, err)
	_, ok := ev.(event.Done)
	require.True(t, ok)
}

func TestQueryUnifyBindsVariable(t *testing.T) {
	base := newKB(t)
	query := term.NewExpression(term.OpUnify, term.NewVariable("x"), term.NewInt(5))
	m := run(t, base, query)
	ev, err := m.Next(context.Background())
	require.NoError(t, err)
	res, ok := ev.(event.Result)
	require.True(t, ok)
	require.True(t, res.Bindings["x"].Equal(term.NewInt(5)))
}

func TestQueryConjunctionRequiresBoth(t *testing.T) {
	base := newKB(t)
	query := term.And(
		term.NewExpression(term.OpUnify, term.NewVariable("x"), term.NewInt(1)),
		term.NewExpression(term.OpEq, term.NewVariable("x"), term.NewInt(1)),
	)
	m := run(t, base, query)
	ev, err := m.Next(context.Background())
	require.NoError(t, err)
	_, ok := ev.(event.Result)
	require.True(t, ok)
}

func TestQueryConjunctionFailsOnMismatch(t *testing.T) {
	base := newKB(t)
	query := term.And(
		term.NewExpression(term.OpUnify, term.NewVariable("x"), term.NewInt(1)),
		term.NewExpression(term.OpEq, term.NewVariable("x"), term.NewInt(2)),
	)
	m := run(t, base, query)
	ev, err := m.Next(context.Background())
	require.NoError(t, err)
	_, ok := ev.(event.Done)
	require.True(t, ok)
}

func TestQueryDisjunctionOffersEachAlternative(t *testing.T) {
	base := newKB(t)
	query := term.NewExpression(term.OpOr,
		term.NewExpression(term.OpUnify, term.NewVariable("x"), term.NewInt(1)),
		term.NewExpression(term.OpUnify, term.NewVariable("x"), term.NewInt(2)),
	)
	m := run(t, base, query)

	ev, err := m.Next(context.Background())
	require.NoError(t, err)
	res, ok := ev.(event.Result)
	require.True(t, ok)
	require.True(t, res.Bindings["x"].Equal(term.NewInt(1)))

	ev, err = m.Next(context.Background())
	require.NoError(t, err)
	res, ok = ev.(event.Result)
	require.True(t, ok)
	require.True(t, res.Bindings["x"].Equal(term.NewInt(2)))

	ev, err = m.Next(context.Background())
	require.NoError(t, err)
	_, ok = ev.(event.Done)
	require.True(t, ok)
}

func TestQueryComparisonOperators(t *testing.T) {
	base := newKB(t)
	query := term.NewExpression(term.OpLt, term.NewInt(1), term.NewInt(2))
	m := run(t, base, query)
	ev, err := m.Next(context.Background())
	require.NoError(t, err)
	_, ok := ev.(event.Result)
	require.True(t, ok)
}

func TestQueryNegationSucceedsWhenBodyFails(t *testing.T) {
	base := newKB(t)
	query := term.NewExpression(term.OpNot, term.NewBool(false))
	m := run(t, base, query)
	ev, err := m.Next(context.Background())
	require.NoError(t, err)
	_, ok := ev.(event.Result)
	require.True(t, ok)
}

func TestQueryNegationFailsWhenBodySucceeds(t *testing.T) {
	base := newKB(t)
	query := term.NewExpression(term.OpNot, term.NewBool(true))
	m := run(t, base, query)
	ev, err := m.Next(context.Background())
	require.NoError(t, err)
	_, ok := ev.(event.Done)
	require.True(t, ok)
}

func TestQueryInOverListBacktracks(t *testing.T) {
	base := newKB(t)
	list := term.NewList([]term.Term{term.NewInt(1), term.NewInt(2), term.NewInt(3)})
	query := term.NewExpression(term.OpIn, term.NewVariable("x"), list)
	m := run(t, base, query)

	var got []int64
	for {
		ev, err := m.Next(context.Background())
		require.NoError(t, err)
		res, ok := ev.(event.Result)
		if !ok {
			break
		}
		i, _ := res.Bindings["x"].(*term.Number).Int()
		got = append(got, i)
	}
	require.Equal(t, []int64{1, 2, 3}, got)
}

func TestQueryDotFieldAccessOnDict(t *testing.T) {
	base := newKB(t)
	dict := term.NewDict(map[string]term.Term{"name": term.NewString("alice")})
	dot := term.NewExpression(term.OpDot, dict, term.NewString("name"))
	query := term.NewExpression(term.OpEq, dot, term.NewString("alice"))
	m := run(t, base, query)
	ev, err := m.Next(context.Background())
	require.NoError(t, err)
	_, ok := ev.(event.Result)
	require.True(t, ok)
}

func TestQueryDotOnExternalInstanceSuspendsAndResumes(t *testing.T) {
	base := newKB(t)
	inst := term.NewExternalInstance(1)
	dot := term.NewExpression(term.OpDot, inst, term.NewString("name"))
	query := term.NewExpression(term.OpEq, dot, term.NewString("bob"))
	m := run(t, base, query)

	ev, err := m.Next(context.Background())
	require.NoError(t, err)
	call, ok := ev.(event.ExternalCall)
	require.True(t, ok)
	require.Equal(t, "name", call.Attribute)

	ev, err = m.Resume(context.Background(), term.NewString("bob"), true)
	require.NoError(t, err)
	_, ok = ev.(event.Result)
	require.True(t, ok)
}

func TestQueryCallDispatchesToMatchingRule(t *testing.T) {
	base := newKB(t)
	base.AddRule(&kb.Rule{
		Name:   "greet",
		Params: []kb.Parameter{{Variable: "who"}},
		Body:   term.And(),
	})

	query := term.NewCall("greet", []term.Term{term.NewString("world")}, nil)
	m := run(t, base, query)
	ev, err := m.Next(context.Background())
	require.NoError(t, err)
	_, ok := ev.(event.Result)
	require.True(t, ok)
}

func TestQueryCallTriesEveryRuleOnBacktrack(t *testing.T) {
	base := newKB(t)
	base.AddRule(&kb.Rule{
		Name:    "pick",
		Params:  []kb.Parameter{{Variable: "x", Specializer: term.NewInt(1)}},
		Body:    term.And(),
		LoadSeq: 1,
	})
	base.AddRule(&kb.Rule{
		Name:    "pick",
		Params:  []kb.Parameter{{Variable: "x", Specializer: term.NewInt(2)}},
		Body:    term.And(),
		LoadSeq: 1,
	})

	query := term.NewCall("pick", []term.Term{term.NewVariable("y")}, nil)
	m := run(t, base, query)

	ev, err := m.Next(context.Background())
	require.NoError(t, err)
	res, ok := ev.(event.Result)
	require.True(t, ok)
	require.True(t, res.Bindings["y"].Equal(term.NewInt(1)))

	ev, err = m.Next(context.Background())
	require.NoError(t, err)
	res, ok = ev.(event.Result)
	require.True(t, ok)
	require.True(t, res.Bindings["y"].Equal(term.NewInt(2)))

	ev, err = m.Next(context.Background())
	require.NoError(t, err)
	_, ok = ev.(event.Done)
	require.True(t, ok)
}

func TestQueryCallUndefinedRuleErrors(t *testing.T) {
	base := newKB(t)
	query := term.NewCall("nope", nil, nil)
	m := run(t, base, query)
	_, err := m.Next(context.Background())
	require.Error(t, err)
}

func TestIsaChecksRegisteredClass(t *testing.T) {
	base := newKB(t)
	animal, err := base.RegisterClass("Animal", nil)
	require.NoError(t, err)
	_, err = base.RegisterClass("Dog", []int64{animal.ID})
	require.NoError(t, err)

	inst := term.NewExternalInstance(1)
	dci, _ := base.Class("Dog")
	inst.ClassID = dci.ID

	query := term.NewExpression(term.OpIsa, inst, term.NewPattern("Animal", term.NewDict(nil)))
	m := run(t, base, query)
	ev, err := m.Next(context.Background())
	require.NoError(t, err)
	_, ok := ev.(event.Result)
	require.True(t, ok)
}

func TestIsaFailsForUnrelatedClass(t *testing.T) {
	base := newKB(t)
	_, err := base.RegisterClass("Animal", nil)
	require.NoError(t, err)
	cat, err := base.RegisterClass("Cat", nil)
	require.NoError(t, err)

	inst := term.NewExternalInstance(1)
	inst.ClassID = cat.ID

	query := term.NewExpression(term.OpIsa, inst, term.NewPattern("Animal", term.NewDict(nil)))
	m := run(t, base, query)
	ev, err := m.Next(context.Background())
	require.NoError(t, err)
	_, ok := ev.(event.Done)
	require.True(t, ok)
}

func TestQueryNegationOfUnboundUnifyYieldsDisequalityResidual(t *testing.T) {
	base := newKB(t)
	query := term.NewExpression(term.OpNot,
		term.NewExpression(term.OpUnify, term.NewVariable("x"), term.NewInt(1)),
	)
	m := run(t, base, query)
	ev, err := m.Next(context.Background())
	require.NoError(t, err)
	res, ok := ev.(event.Result)
	require.True(t, ok)

	residual, ok := res.Bindings["x"].(*term.Expression)
	require.True(t, ok, "expected a residual constraint, got %T", res.Bindings["x"])
	require.Equal(t, term.OpAnd, residual.Op)
	require.Len(t, residual.Args, 1)

	neq, ok := residual.Args[0].(*term.Expression)
	require.True(t, ok)
	require.Equal(t, term.OpNeq, neq.Op)
	v, ok := neq.Args[0].(*term.Variable)
	require.True(t, ok)
	require.Equal(t, term.Symbol("_this"), v.Name)
	require.True(t, neq.Args[1].Equal(term.NewInt(1)))

	ev, err = m.Next(context.Background())
	require.NoError(t, err)
	_, ok = ev.(event.Done)
	require.True(t, ok, "not x = 1 has exactly one solution")
}

func TestQueryCutUnderPartialEvaluationIsUnsupported(t *testing.T) {
	base := newKB(t)
	query := term.And(
		term.NewExpression(term.OpIsa, term.NewVariable("x"), term.NewPattern("Widget", term.NewDict(nil))),
		term.NewExpression(term.OpCut),
	)
	m := run(t, base, query)
	_, err := m.Next(context.Background())
	require.Error(t, err)
	polarErr, ok := err.(*perr.PolarError)
	require.True(t, ok)
	require.Equal(t, perr.KindUnsupported, polarErr.Kind)
}
