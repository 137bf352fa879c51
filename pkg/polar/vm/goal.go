package vm

import "github.com/polar-vm/polarvm/pkg/polar/term"

// goal is one step of work on the machine's goal stack. Grounded on
// original_source/polar-core/src/vm.rs's Goal enum, trimmed to the
// variants this implementation needs: filtering/sorting applicable rules
// is resolved synchronously against the KB's local MRO table inside
// queryCall (see call.go and rules.go) rather than kept as separate restartable
// goals, and negation-as-failure runs its sub-query on a nested Machine
// rather than threading inverter goals through the main stack (see
// DESIGN.md).
type goal interface {
	isGoal()
}

// gQuery evaluates Term as a (sub-)query.
type gQuery struct{ Term term.Term }

// gPopCallID restores the machine's "current call id" counter after a
// rule body finishes, so goals after a call see the right id for any
// further external calls they make.
type gPopCallID struct{ Prev int64 }

// gCut discards choice points back to ChoiceIndex; `cut` is scoped to the
// rule invocation active when it was evaluated.
type gCut struct{ ChoiceIndex int }

// gEnterCutBarrier marks where the active rule invocation's `cut` should
// truncate the choice stack to, saving the caller's barrier to restore
// once this invocation's body finishes (gExitCutBarrier).
type gEnterCutBarrier struct{ New, Prev int }

// gExitCutBarrier restores the enclosing invocation's cut barrier.
type gExitCutBarrier struct{ Prev int }

func (gQuery) isGoal()           {}
func (gPopCallID) isGoal()       {}
func (gCut) isGoal()             {}
func (gEnterCutBarrier) isGoal() {}
func (gExitCutBarrier) isGoal()  {}
