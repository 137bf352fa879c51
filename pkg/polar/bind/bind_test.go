package bind

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polar-vm/polarvm/pkg/polar/term"
)

func TestBindUnboundToValue(t *testing.T) {
	m := New()
	_, err := m.Bind("x", term.NewInt(1))
	require.NoError(t, err)

	st := m.VariableState("x")
	require.Equal(t, Bound, st.Kind)
	require.True(t, st.Value.Equal(term.NewInt(1)))
}

func TestRebindIsIncompatible(t *testing.T) {
	m := New()
	_, err := m.Bind("x", term.NewInt(1))
	require.NoError(t, err)

	_, err = m.Bind("x", term.NewInt(2))
	require.Error(t, err)
}

func TestBindTwoUnboundVariablesFormsChain(t *testing.T) {
	m := New()
	_, err := m.Bind("x", term.NewVariable("y"))
	require.NoError(t, err)

	require.Equal(t, Partial, m.VariableState("x").Kind)
	require.Equal(t, Partial, m.VariableState("y").Kind)

	_, err = m.Bind("y", term.NewInt(42))
	require.NoError(t, err)

	xState := m.VariableState("x")
	require.Equal(t, Bound, xState.Kind)
	require.True(t, xState.Value.Equal(term.NewInt(42)))
}

func TestBacktrackUndoesBindings(t *testing.T) {
	m := New()
	bsp := m.Bsp()

	_, err := m.Bind("x", term.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, Bound, m.VariableState("x").Kind)

	m.Backtrack(bsp)
	require.Equal(t, Unbound, m.VariableState("x").Kind)
}

func TestFollowerMirrorsBindings(t *testing.T) {
	m := New()
	follower := New()
	m.AddFollower(follower)

	_, err := m.Bind("x", term.NewInt(7))
	require.NoError(t, err)

	st := follower.VariableState("x")
	require.Equal(t, Bound, st.Kind)
	require.True(t, st.Value.Equal(term.NewInt(7)))
}

func TestRemoveFollowerStopsMirroring(t *testing.T) {
	m := New()
	follower := New()
	id := m.AddFollower(follower)
	m.RemoveFollower(id)

	_, err := m.Bind("x", term.NewInt(9))
	require.NoError(t, err)

	require.Equal(t, Unbound, follower.VariableState("x").Kind)
}

func TestDeepDerefFollowsChain(t *testing.T) {
	m := New()
	_, err := m.Bind("x", term.NewVariable("y"))
	require.NoError(t, err)
	_, err = m.Bind("y", term.NewInt(3))
	require.NoError(t, err)

	deref := m.DeepDeref(term.NewVariable("x"))
	require.True(t, deref.Equal(term.NewInt(3)))
}

func TestDeepDerefThroughList(t *testing.T) {
	m := New()
	_, err := m.Bind("x", term.NewInt(5))
	require.NoError(t, err)

	list := term.NewList([]term.Term{term.NewVariable("x"), term.NewInt(6)})
	deref := m.DeepDeref(list)

	derefList, ok := deref.(*term.List)
	require.True(t, ok)
	require.True(t, derefList.Items[0].Equal(term.NewInt(5)))
	require.True(t, derefList.Items[1].Equal(term.NewInt(6)))
}

func TestAddConstraintGroundsBoundVariable(t *testing.T) {
	m := New()
	_, err := m.Bind("x", term.NewInt(5))
	require.NoError(t, err)

	c := term.NewExpression(term.OpGt, term.NewVariable("x"), term.NewInt(1))
	require.NoError(t, m.AddConstraint(c))
}

func TestUnsafeRebindBypassesBoundCheck(t *testing.T) {
	m := New()
	_, err := m.Bind("call1", term.NewInt(-1))
	require.NoError(t, err)

	tok := NewCallVarToken()
	m.UnsafeRebind(tok, "call1", term.NewInt(42))

	st := m.VariableState("call1")
	require.Equal(t, Bound, st.Kind)
	require.True(t, st.Value.Equal(term.NewInt(42)))
}

func TestGetConstraintsOnUnboundIsEmptyConjunction(t *testing.T) {
	m := New()
	c := m.GetConstraints("x")
	require.True(t, term.IsEmptyConjunction(c))
}
