package kb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polar-vm/polarvm/pkg/polar/perr"
)

func TestGensymIsMonotonicallyIncreasing(t *testing.T) {
	base := New(nil)
	a := base.Gensym()
	b := base.Gensym()
	require.Less(t, a, b)
}

func TestAddSourceAppendsAndNeverReuses(t *testing.T) {
	base := New(nil)
	id0 := base.AddSource("allow(x) if x;")
	id1 := base.AddSource("f(x) if x;")
	require.NotEqual(t, id0, id1)

	text, ok := base.Source(id0)
	require.True(t, ok)
	require.Equal(t, "allow(x) if x;", text)

	_, ok = base.Source(999)
	require.False(t, ok)
}

func TestBeginLoadIncrementsPerCall(t *testing.T) {
	base := New(nil)
	first := base.BeginLoad()
	second := base.BeginLoad()
	require.Equal(t, first+1, second)
}

func TestAddRuleGroupsByNameAndPreservesInsertionOrder(t *testing.T) {
	base := New(nil)
	r1 := &Rule{Name: "f", Params: []Parameter{{Variable: "x"}}}
	r2 := &Rule{Name: "f", Params: []Parameter{{Variable: "x"}}}
	base.AddRule(r1)
	base.AddRule(r2)

	g, ok := base.Rule("f")
	require.True(t, ok)
	require.Equal(t, 1, g.Arity())
	require.Same(t, r1, g.Rules[0])
	require.Same(t, r2, g.Rules[1])
}

func TestRuleLookupMissReturnsFalse(t *testing.T) {
	base := New(nil)
	_, ok := base.Rule("nope")
	require.False(t, ok)
}

func TestClearEmptiesRulesButKeepsClassesAndCounter(t *testing.T) {
	base := New(nil)
	base.AddRule(&Rule{Name: "f"})
	_, err := base.RegisterClass("User", nil)
	require.NoError(t, err)
	idBeforeClear := base.Gensym()

	base.Clear()

	_, ok := base.Rule("f")
	require.False(t, ok)
	_, ok = base.Class("User")
	require.True(t, ok)
	require.Greater(t, base.Gensym(), idBeforeClear)
}

func TestRegisterClassBuildsMROWithSelfFirst(t *testing.T) {
	base := New(nil)
	animal, err := base.RegisterClass("Animal", nil)
	require.NoError(t, err)

	dog, err := base.RegisterClass("Dog", []int64{animal.ID})
	require.NoError(t, err)
	require.Equal(t, []int64{dog.ID, animal.ID}, dog.MRO)

	require.True(t, base.IsSubclass(dog.ID, animal.ID))
	require.False(t, base.IsSubclass(animal.ID, dog.ID))
}

func TestRegisterClassRejectsDuplicateName(t *testing.T) {
	base := New(nil)
	_, err := base.RegisterClass("User", nil)
	require.NoError(t, err)

	_, err = base.RegisterClass("User", nil)
	require.Error(t, err)
	polarErr, ok := err.(*perr.PolarError)
	require.True(t, ok, "expected *perr.PolarError, got %T", err)
	require.Equal(t, perr.KindInvalidRegistration, polarErr.Kind)
}

func TestClassByIDLooksUpRegisteredClass(t *testing.T) {
	base := New(nil)
	user, err := base.RegisterClass("User", nil)
	require.NoError(t, err)

	ci, ok := base.ClassByID(user.ID)
	require.True(t, ok)
	require.Equal(t, "User", ci.Name)

	_, ok = base.ClassByID(999999)
	require.False(t, ok)
}

func TestRegisteredClassNamesReflectsRegistrations(t *testing.T) {
	base := New(nil)
	_, err := base.RegisterClass("User", nil)
	require.NoError(t, err)
	_, err = base.RegisterClass("Repo", nil)
	require.NoError(t, err)

	names := base.RegisteredClassNames()
	require.True(t, names.Contains("User"))
	require.True(t, names.Contains("Repo"))
	require.False(t, names.Contains("Ghost"))
	require.Equal(t, 2, names.Size())
}
