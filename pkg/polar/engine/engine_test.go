package engine

import (
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"

	"github.com/polar-vm/polarvm/pkg/polar/perr"
)

func TestLoadRegistersRulesAndReturnsInlineQueries(t *testing.T) {
	e := New(nil)
	queries, err := e.Load(`
		allow(actor, "read", resource) if actor = resource;
		?= allow(1, "read", 1);
	`, "policy.polar")
	require.NoError(t, err)
	require.Len(t, queries, 1)

	rule, ok := e.KB.Rule("allow")
	require.True(t, ok)
	require.Equal(t, 1, len(rule.Rules))
}

func TestLoadRejectsSingletonVariable(t *testing.T) {
	e := New(nil)
	_, err := e.Load(`f(x, y) if x = 1;`, "policy.polar")
	require.Error(t, err)
	require.Equal(t, perr.KindSingletonVariable, firstKind(t, err))
}

func TestLoadRejectsUnregisteredSpecializerClass(t *testing.T) {
	e := New(nil)
	_, err := e.Load(`f(x: Unregistered) if x = x;`, "policy.polar")
	require.Error(t, err)
	require.Equal(t, perr.KindUnregisteredClass, firstKind(t, err))
}

func TestLoadAcceptsRegisteredSpecializerClass(t *testing.T) {
	e := New(nil)
	_, err := e.RegisterClass("User", nil)
	require.NoError(t, err)

	_, err = e.Load(`f(x: User) if x = x;`, "policy.polar")
	require.NoError(t, err)
}

func TestLoadRejectsCallToUndefinedRule(t *testing.T) {
	e := New(nil)
	_, err := e.Load(`f(x) if undefined_rule(x);`, "policy.polar")
	require.Error(t, err)
	require.Equal(t, perr.KindUndefinedRuleCall, firstKind(t, err))
}

// firstKind unwraps the *multierror.Error every validation failure comes
// back as (even a single failure goes through perr.Aggregator) and returns
// its first error's Kind.
func firstKind(t *testing.T, err error) perr.Kind {
	t.Helper()
	merr, ok := err.(*multierror.Error)
	require.True(t, ok, "expected *multierror.Error, got %T", err)
	require.NotEmpty(t, merr.Errors)
	polarErr, ok := merr.Errors[0].(*perr.PolarError)
	require.True(t, ok, "expected *perr.PolarError, got %T", merr.Errors[0])
	return polarErr.Kind
}

func TestLoadAggregatesMultipleErrors(t *testing.T) {
	e := New(nil)
	_, err := e.Load(`
		f(x, y) if x = 1;
		g(a: Missing) if a = a;
	`, "policy.polar")
	require.Error(t, err)

	merr, ok := err.(*multierror.Error)
	require.True(t, ok, "expected *multierror.Error, got %T", err)
	require.GreaterOrEqual(t, len(merr.Errors), 2)
}

func TestLoadIsAtomicAcrossValidationFailure(t *testing.T) {
	e := New(nil)
	_, err := e.Load(`bad(x, y) if x = 1;`, "policy.polar")
	require.Error(t, err)

	_, ok := e.KB.Rule("bad")
	require.False(t, ok, "a rule that failed validation must not be registered")
}

func TestLoadPropagatesParseErrorWithFilename(t *testing.T) {
	e := New(nil)
	_, err := e.Load(`f(x) if `, "broken.polar")
	require.Error(t, err)
	require.Contains(t, err.Error(), "broken.polar")
}

func TestClearEmptiesRulesButKeepsClasses(t *testing.T) {
	e := New(nil)
	_, err := e.RegisterClass("User", nil)
	require.NoError(t, err)
	_, err = e.Load(`f(x) if x = x;`, "policy.polar")
	require.NoError(t, err)

	e.Clear()

	_, ok := e.KB.Rule("f")
	require.False(t, ok)
	_, ok = e.KB.Class("User")
	require.True(t, ok, "Clear must keep registered classes (spec lifecycle)")
}
