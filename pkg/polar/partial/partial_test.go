package partial

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/polar-vm/polarvm/pkg/polar/bind"
	"github.com/polar-vm/polarvm/pkg/polar/term"
)

func greaterThan(v term.Symbol, n int64) *term.Expression {
	return term.NewExpression(term.OpGt, term.NewVariable(v), term.NewInt(n))
}

// termComparer lets cmp.Diff walk term.Term trees using the term
// package's own notion of equality (term.Term.Equal) instead of
// reflect.DeepEqual, which would otherwise trip over every node's
// unexported span field.
var termComparer = cmp.Comparer(func(a, b term.Term) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
})

func requireTermEqual(t *testing.T, want, got term.Term) {
	t.Helper()
	if diff := cmp.Diff(want, got, termComparer); diff != "" {
		t.Fatalf("term mismatch (-want +got):\n%s", diff)
	}
}

func TestSimplifyGroundsTransitivelyBoundVariable(t *testing.T) {
	m := bind.New()
	_, err := m.Bind("y", term.NewInt(5))
	require.NoError(t, err)

	residual := term.And(term.NewExpression(term.OpUnify, term.NewVariable("x"), term.NewVariable("y")))
	out, err := Simplify(m, nil, "x", residual)
	require.NoError(t, err)

	want := term.And(term.NewExpression(term.OpUnify, term.NewVariable(ThisVar), term.NewInt(5)))
	requireTermEqual(t, want, out)
}

func TestSimplifySubstitutesThis(t *testing.T) {
	m := bind.New()
	residual := term.And(greaterThan("x", 0))
	out, err := Simplify(m, nil, "x", residual)
	require.NoError(t, err)

	require.Len(t, out.Args, 1)
	gt := out.Args[0].(*term.Expression)
	require.True(t, gt.Args[0].Equal(term.NewVariable(ThisVar)))
}

func TestSimplifyDedupesSymmetricConjuncts(t *testing.T) {
	m := bind.New()
	residual := term.And(
		greaterThan("x", 0),
		term.NewExpression(term.OpEq, term.NewInt(1), term.NewVariable("x")),
		term.NewExpression(term.OpEq, term.NewVariable("x"), term.NewInt(1)),
	)
	out, err := Simplify(m, nil, "x", residual)
	require.NoError(t, err)
	require.Len(t, out.Args, 2)
}

func TestSimplifyContractsVariableCycle(t *testing.T) {
	m := bind.New()
	residual := term.And(
		term.NewExpression(term.OpUnify, term.NewVariable("x"), term.NewVariable("y")),
		greaterThan("y", 3),
	)
	out, err := Simplify(m, nil, "x", residual)
	require.NoError(t, err)

	// The x = y conjunct contracts away (both sides now name the same
	// representative); only the grounded-to-_this comparison survives.
	require.Len(t, out.Args, 1)
	gt := out.Args[0].(*term.Expression)
	require.True(t, gt.Args[0].Equal(term.NewVariable(ThisVar)))
	require.True(t, gt.Args[1].Equal(term.NewInt(3)))
}

func TestSimplifyIsaCompatibilityFailsUnrelatedTags(t *testing.T) {
	m := bind.New()
	animalID, userID := int64(1), int64(2)
	classes := NewClassHierarchy(
		func(name string) (int64, bool) {
			switch name {
			case "Animal":
				return animalID, true
			case "User":
				return userID, true
			}
			return 0, false
		},
		func(descendant, ancestor int64) bool { return descendant == ancestor },
	)

	residual := term.And(
		term.NewExpression(term.OpIsa, term.NewVariable("x"), term.NewPattern("Animal", term.NewDict(nil))),
		term.NewExpression(term.OpIsa, term.NewVariable("x"), term.NewPattern("User", term.NewDict(nil))),
	)
	_, err := Simplify(m, classes, "x", residual)
	require.Error(t, err)
}

func TestSimplifyIsaCompatibilityAllowsSubclass(t *testing.T) {
	m := bind.New()
	animalID, dogID := int64(1), int64(2)
	classes := NewClassHierarchy(
		func(name string) (int64, bool) {
			switch name {
			case "Animal":
				return animalID, true
			case "Dog":
				return dogID, true
			}
			return 0, false
		},
		func(descendant, ancestor int64) bool {
			return descendant == ancestor || (descendant == dogID && ancestor == animalID)
		},
	)

	residual := term.And(
		term.NewExpression(term.OpIsa, term.NewVariable("x"), term.NewPattern("Animal", term.NewDict(nil))),
		term.NewExpression(term.OpIsa, term.NewVariable("x"), term.NewPattern("Dog", term.NewDict(nil))),
	)
	out, err := Simplify(m, classes, "x", residual)
	require.NoError(t, err)
	require.Len(t, out.Args, 2)
}

func TestSimplifyIsIdempotent(t *testing.T) {
	m := bind.New()
	residual := term.And(greaterThan("x", 0), greaterThan("x", 0))
	first, err := Simplify(m, nil, "x", residual)
	require.NoError(t, err)
	require.Len(t, first.Args, 1)

	second, err := Simplify(m, nil, ThisVar, first)
	require.NoError(t, err)
	requireTermEqual(t, first, second)
}
