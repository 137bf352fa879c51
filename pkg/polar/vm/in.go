package vm

import (
	"github.com/polar-vm/polarvm/pkg/polar/event"
	"github.com/polar-vm/polarvm/pkg/polar/perr"
	"github.com/polar-vm/polarvm/pkg/polar/term"
)

// in implements `item in collection`: a choice point offering one
// unification attempt per element. For a literal List this is entirely
// local; for an external (host) collection, it asks the host for every
// item up front in a single ExternalCall rather than the original's
// iterative NextExternal protocol — one round trip instead of N,
// documented as a deliberate simplification in DESIGN.md since this
// implementation has no use for lazily-produced infinite iterables.
func (m *Machine) in(item, collection term.Term) (event.Event, error) {
	collection = m.binds.DeepDeref(collection)

	switch c := collection.(type) {
	case *term.List:
		return m.inList(item, c.Items)
	case *term.ExternalInstance:
		callID := m.mintCallID()
		m.resume = func(reply term.Term, ok bool) error {
			if !ok {
				return perr.Application("external iterable produced no items")
			}
			list, ok := reply.(*term.List)
			if !ok {
				return perr.Application("external call answering 'in' must reply with a list of items")
			}
			_, err := m.inList(item, list.Items)
			return err
		}
		return event.ExternalCall{CallID: callID, Instance: collection, Attribute: "__iter_all__"}, nil
	default:
		return nil, perr.TypeErrorAt(term.Span{}, "right operand of 'in' must be a list or external iterable", "")
	}
}

func (m *Machine) inList(item term.Term, items []term.Term) (event.Event, error) {
	if len(items) == 0 {
		// pushChoice over zero alternatives pushes nothing, which would
		// otherwise read as vacuous success; an empty choice must instead
		// fail the goal outright (original_source/vm.rs's choose() over
		// an empty iterator backtracks immediately).
		return nil, perr.IncompatibleBindings("'in' over an empty list never succeeds")
	}
	alts := make([][]goal, len(items))
	for i, it := range items {
		alts[i] = []goal{gQuery{Term: term.NewExpression(term.OpUnify, item, it)}}
	}
	m.pushChoice(alts)
	return nil, nil
}
