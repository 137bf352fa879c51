package term

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNumberEqualDistinguishesIntAndFloat(t *testing.T) {
	require.True(t, NewInt(1).Equal(NewInt(1)))
	require.False(t, NewInt(1).Equal(NewFloat(1.0)), "int and float never compare equal under Equal")
	require.True(t, NewFloat(1.5).Equal(NewFloat(1.5)))
}

func TestNumberEqualTreatsNaNAsEqualToItself(t *testing.T) {
	nan := NewFloat(math.NaN())
	require.True(t, nan.Equal(NewFloat(math.NaN())), "Equal uses bit-pattern equality, not IEEE ==")
}

func TestNumberStringFormatsSpecialFloats(t *testing.T) {
	require.Equal(t, "nan", NewFloat(math.NaN()).String())
	require.Equal(t, "inf", NewFloat(math.Inf(1)).String())
	require.Equal(t, "-inf", NewFloat(math.Inf(-1)).String())
	require.Equal(t, "3", NewInt(3).String())
	require.Equal(t, "2.5", NewFloat(2.5).String())
}

func TestNumberIntReportsFloatness(t *testing.T) {
	i, ok := NewInt(7).Int()
	require.True(t, ok)
	require.EqualValues(t, 7, i)

	_, ok = NewFloat(7).Int()
	require.False(t, ok)
	require.Equal(t, 7.0, NewFloat(7).Float())
}

func TestStringEqualAndQuoting(t *testing.T) {
	require.True(t, NewString("a").Equal(NewString("a")))
	require.False(t, NewString("a").Equal(NewString("b")))
	require.Equal(t, `"a"`, NewString("a").String())
}

func TestListEqualComparesItemsAndRest(t *testing.T) {
	a := NewListAt([]Term{NewInt(1), NewInt(2)}, NewRestVariable("rest"), Span{})
	b := NewListAt([]Term{NewInt(1), NewInt(2)}, NewRestVariable("rest"), Span{})
	require.True(t, a.Equal(b))

	c := NewList([]Term{NewInt(1), NewInt(2)})
	require.False(t, a.Equal(c), "rest-ness must match")

	d := NewList([]Term{NewInt(1), NewInt(3)})
	require.False(t, NewList([]Term{NewInt(1), NewInt(2)}).Equal(d))
}

func TestListString(t *testing.T) {
	l := NewListAt([]Term{NewInt(1), NewInt(2)}, NewRestVariable("rest"), Span{})
	require.Equal(t, "[1, 2, *rest]", l.String())
}

func TestDictEqualIgnoresFieldOrder(t *testing.T) {
	a := NewDict(map[string]Term{"a": NewInt(1), "b": NewInt(2)})
	b := NewDict(map[string]Term{"b": NewInt(2), "a": NewInt(1)})
	require.True(t, a.Equal(b))

	c := NewDict(map[string]Term{"a": NewInt(1)})
	require.False(t, a.Equal(c))
}

func TestDictStringSortsKeys(t *testing.T) {
	d := NewDict(map[string]Term{"z": NewInt(1), "a": NewInt(2)})
	require.Equal(t, "{a: 2, z: 1}", d.String())
}

func TestPatternIsInstanceAndString(t *testing.T) {
	bare := NewPattern("", NewDict(map[string]Term{"a": NewInt(1)}))
	require.False(t, bare.IsInstance())
	require.Equal(t, "{a: 1}", bare.String())

	tagged := NewPattern("User", NewDict(nil))
	require.True(t, tagged.IsInstance())
	require.Equal(t, "User{}", tagged.String())
}

func TestCallEqualComparesNameArgsAndKwargs(t *testing.T) {
	a := NewCall("f", []Term{NewInt(1)}, map[string]Term{"k": NewInt(2)})
	b := NewCall("f", []Term{NewInt(1)}, map[string]Term{"k": NewInt(2)})
	require.True(t, a.Equal(b))

	c := NewCall("g", []Term{NewInt(1)}, nil)
	require.False(t, a.Equal(c))
}

func TestVariableAndRestVariableAreNeverEqualToEachOther(t *testing.T) {
	v := NewVariable("x")
	r := NewRestVariable("x")
	require.False(t, Term(v).Equal(r))
	require.False(t, Term(r).Equal(v))
}

func TestAsVariableRecoversSymbolFromBoth(t *testing.T) {
	name, ok := AsVariable(NewVariable("x"))
	require.True(t, ok)
	require.Equal(t, Symbol("x"), name)

	name, ok = AsVariable(NewRestVariable("rest"))
	require.True(t, ok)
	require.Equal(t, Symbol("rest"), name)

	_, ok = AsVariable(NewInt(1))
	require.False(t, ok)
}

func TestExternalInstanceEqualComparesOnlyInstanceID(t *testing.T) {
	a := NewExternalInstance(1)
	a.Repr = "User{1}"
	b := NewExternalInstance(1)
	require.True(t, a.Equal(b), "Equal never looks at Repr/ClassRepr")

	c := NewExternalInstance(2)
	require.False(t, a.Equal(c))
}

func TestExpressionEqualIsCommutativeForCommutativeOps(t *testing.T) {
	a := NewExpression(OpUnify, NewVariable("x"), NewInt(1))
	b := NewExpression(OpUnify, NewInt(1), NewVariable("x"))
	require.True(t, a.Equal(b))

	gt1 := NewExpression(OpGt, NewVariable("x"), NewInt(1))
	gt2 := NewExpression(OpGt, NewInt(1), NewVariable("x"))
	require.False(t, gt1.Equal(gt2), "> is not commutative")
}

func TestOperatorCommutative(t *testing.T) {
	require.True(t, OpUnify.Commutative())
	require.True(t, OpEq.Commutative())
	require.True(t, OpAnd.Commutative())
	require.False(t, OpGt.Commutative())
	require.False(t, OpDot.Commutative())
}

func TestIsEmptyConjunctionRecognizesOnlyBareAnd(t *testing.T) {
	require.True(t, IsEmptyConjunction(And()))
	require.False(t, IsEmptyConjunction(And(NewInt(1))))
	require.False(t, IsEmptyConjunction(NewExpression(OpOr)))
}
