package vm

import (
	"github.com/polar-vm/polarvm/pkg/polar/bind"
	"github.com/polar-vm/polarvm/pkg/polar/event"
	"github.com/polar-vm/polarvm/pkg/polar/perr"
	"github.com/polar-vm/polarvm/pkg/polar/term"
)

// isa checks whether left matches the pattern/value right, per spec §3's
// Pattern semantics: a class-tagged pattern checks the class relationship
// (locally, via the KB's registered MRO table — see DESIGN.md on why this
// implementation never needs ExternalIsa/ExternalIsSubclass in the
// default path) and then recurses field-by-field; a bare dict pattern
// only checks fields; anything else falls back to unify.
func (m *Machine) isa(left, right term.Term) (event.Event, error) {
	left = m.binds.DeepDeref(left)

	pat, ok := right.(*term.Pattern)
	if !ok {
		return nil, m.unify(left, right)
	}

	if v, ok := term.AsVariable(left); ok {
		if st := m.binds.VariableState(v); st.Kind != bind.Bound {
			// left is unbound or partial: record the isa check itself as
			// a residual constraint rather than failing (spec §4.3
			// partial evaluation).
			return nil, m.binds.AddConstraint(term.NewExpression(term.OpIsa, left, right))
		}
	}

	if pat.Tag != "" {
		if err := m.checkClassTag(left, pat.Tag); err != nil {
			return nil, err
		}
	}

	if pat.Fields == nil || len(pat.Fields.Fields) == 0 {
		return nil, nil
	}
	return nil, m.isaFields(left, pat.Fields)
}

// checkClassTag reports whether left is an instance of (or subclass-
// instance of) the class named tag. ExternalInstances carry their own
// ClassID, resolved against the KB's MRO table; dicts and patterns are
// never tagged unless their own Tag equals tag.
func (m *Machine) checkClassTag(left term.Term, tag string) error {
	ci, registered := m.kb.Class(tag)
	if !registered {
		return perr.Application("isa check against unregistered class " + tag)
	}

	switch v := left.(type) {
	case *term.ExternalInstance:
		if v.ClassID == 0 {
			return perr.Application("external instance has no registered class")
		}
		if m.kb.IsSubclass(v.ClassID, ci.ID) {
			return nil
		}
		return perr.IncompatibleBindings(v.String() + " does not match class " + tag)
	case *term.Pattern:
		if v.Tag == tag {
			return nil
		}
		if vci, ok := m.kb.Class(v.Tag); ok && m.kb.IsSubclass(vci.ID, ci.ID) {
			return nil
		}
		return perr.IncompatibleBindings(v.String() + " does not match class " + tag)
	default:
		return perr.IncompatibleBindings(left.String() + " is not an instance of " + tag)
	}
}

// isaFields checks that left has (at least) every field pat declares,
// each itself matching isa-wise — a bare dict pattern's fields are
// matched structurally, a class pattern's fields are additional
// constraints beyond the class check.
func (m *Machine) isaFields(left term.Term, pat *term.Dict) error {
	dict, ok := left.(*term.Dict)
	if !ok {
		if inst, ok := left.(*term.ExternalInstance); ok {
			// Host objects resolve their own field values via Dot/
			// ExternalCall; isaFields on one without first projecting
			// through Dot is a query-author error, not a VM bug.
			return perr.Application("cannot check dict-shaped pattern fields directly against external instance " + inst.String())
		}
		return perr.IncompatibleBindings("pattern expects a dictionary")
	}
	for k, want := range pat.Fields {
		got, present := dict.Fields[k]
		if !present {
			return perr.IncompatibleBindings("missing field " + k)
		}
		if wantPat, ok := want.(*term.Pattern); ok {
			if _, err := m.isa(got, wantPat); err != nil {
				return err
			}
			continue
		}
		if err := m.unify(got, want); err != nil {
			return err
		}
	}
	return nil
}
