// Package event defines the suspend/resume protocol between the VM and
// its host: every time a query needs something only the host can answer
// (construct an instance, call a method, check a class relationship), the
// VM yields an Event instead of blocking, and the host replies through
// the matching vm.Machine.Resume* call carrying the same CallID. Grounded
// on original_source/polar-core/src/vm.rs's Goal variants that cross the
// host boundary (LookupExternal, IsaExternal, MakeExternal, NextExternal)
// plus the top-level QueryEvent the original's `external.rs`/`query.rs`
// expose to embedders.
package event

import "github.com/polar-vm/polarvm/pkg/polar/term"

// Event is the VM's request for host action, or a terminal report of
// query progress.
type Event interface {
	isEvent()
}

// Result is one solution: the set of variable bindings that made the
// query succeed. The VM can yield many Results for one query before Done.
type Result struct {
	Bindings map[string]term.Term
}

// Done reports that the query has no more solutions to offer.
type Done struct{}

// MakeExternal asks the host to construct InstanceID by calling
// Constructor (a term.Call), and to associate the resulting host object
// with InstanceID for future ExternalCall/ExternalIsa events.
type MakeExternal struct {
	InstanceID  int64
	Constructor term.Term
}

// ExternalCall asks the host to invoke Attribute (a field lookup if Args
// is nil, else a method call) on Instance, and report the result via
// Resume with this CallID. A nil result (property doesn't exist, or the
// method returned nothing applicable) tells the VM to backtrack this
// call.
type ExternalCall struct {
	CallID    int64
	Instance  term.Term
	Attribute string
	Args      []term.Term
	Kwargs    map[string]term.Term
}

// NextExternal asks the host for the next item of an external iterator
// previously returned from an ExternalCall, or for `nil` once exhausted.
type NextExternal struct {
	CallID   int64
	Iterable term.Term
}

// ExternalIsa asks whether Instance is an instance of ClassTag (or a
// subclass of it).
type ExternalIsa struct {
	CallID   int64
	Instance term.Term
	ClassTag string
}

// ExternalIsSubclass asks whether LeftTag is RightTag or a subclass of
// it. The vm package answers subclass questions from the KB's registered
// MRO table and does not emit this event.
type ExternalIsSubclass struct {
	CallID         int64
	LeftTag        string
	RightTag       string
}

// ExternalIsSubSpecializer asks which of two specializers is more
// specific for a given argument instance. The vm package does not emit
// this event: when sorting rules, classes the KB's MRO table can't order
// give no ordering at that parameter.
type ExternalIsSubSpecializer struct {
	CallID     int64
	InstanceID int64
	LeftTag    string
	RightTag   string
}

// ExternalOp asks the host to evaluate a comparison operator between two
// external instances (e.g. `<` on a host-defined ordering).
type ExternalOp struct {
	CallID int64
	Op     term.Operator
	Left   term.Term
	Right  term.Term
}

// Debug surfaces a `debug(...)` expression's message to the host for
// interactive inspection; the host's Resume reply is the REPL command
// (or "" to just continue).
type Debug struct {
	CallID  int64
	Message string
}

func (Result) isEvent()                   {}
func (Done) isEvent()                     {}
func (MakeExternal) isEvent()             {}
func (ExternalCall) isEvent()             {}
func (NextExternal) isEvent()             {}
func (ExternalIsa) isEvent()              {}
func (ExternalIsSubclass) isEvent()       {}
func (ExternalIsSubSpecializer) isEvent() {}
func (ExternalOp) isEvent()               {}
func (Debug) isEvent()                    {}
