// Package vm implements the resolution VM: an explicit goal stack and
// choice-point stack driving SLD resolution over a knowledge base, with
// first-argument indexing, rule-specificity ordering, cut, negation-as-
// failure, and a suspend/resume protocol (package event) for anything
// only the host can answer. Grounded on
// original_source/polar-core/src/vm.rs for the resolution algorithm and
// on gitrdm-gokando's pkg/minikanren/search.go for the Go idiom: an
// explicit frame stack with trail snapshot/undo rather than recursion, so
// backtracking is a loop, not a call stack (gokando's DFSSearch.Search).
package vm

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/polar-vm/polarvm/pkg/polar/bind"
	"github.com/polar-vm/polarvm/pkg/polar/event"
	"github.com/polar-vm/polarvm/pkg/polar/kb"
	"github.com/polar-vm/polarvm/pkg/polar/partial"
	"github.com/polar-vm/polarvm/pkg/polar/perr"
	"github.com/polar-vm/polarvm/pkg/polar/term"
)

// Config tunes one machine's resource limits, mirroring the original's
// VmConfig: a maximum combined goal/choice stack depth and a per-query
// wall-clock deadline, both enforced as RuntimeErrors rather than letting
// a runaway policy hang the host or exhaust memory.
type Config struct {
	MaxStackSize int
	QueryTimeout time.Duration
	Logger       hclog.Logger
}

// DefaultConfig matches the original's defaults: a generous but bounded
// stack, and a timeout long enough for pathological-but-legitimate
// queries without leaving a hung request forever.
func DefaultConfig() Config {
	return Config{
		MaxStackSize: 10_000,
		QueryTimeout: 30 * time.Second,
		Logger:       hclog.NewNullLogger(),
	}
}

type choicePoint struct {
	Alternatives [][]goal // remaining alternative continuations, most-specific first
	Goals        []goal   // goal stack to restore before trying the next alternative
	Bsp          bind.Bsp
	CallID       int64
}

// pendingResume is the continuation captured when the machine yields a
// host-request Event; Resume feeds the host's reply back through it.
type pendingResume func(reply term.Term, ok bool) error

// Machine runs one query against a knowledge base. A Machine is single-
// use: build a fresh one per query via New.
type Machine struct {
	kb     *kb.KnowledgeBase
	binds  *bind.Manager
	goals  []goal
	choice []choicePoint
	cfg    Config

	nextCallID  int64
	resume      pendingResume
	deadline    time.Time
	resultReady bool

	// currentRuleChoiceIndex is where `cut` inside the active rule body
	// should truncate the choice stack back to; 0 (no rule active) cuts
	// everything, matching a bare top-level `cut`.
	currentRuleChoiceIndex int
}

// New builds a machine ready to run query against base.
func New(base *kb.KnowledgeBase, query term.Term, cfg Config) *Machine {
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	m := &Machine{
		kb:    base,
		binds: bind.New(),
		goals: []goal{gQuery{Term: query}},
		cfg:   cfg,
	}
	if cfg.QueryTimeout > 0 {
		m.deadline = time.Now().Add(cfg.QueryTimeout)
	}
	return m
}

// Binds exposes the machine's binding manager, primarily for tests that
// need to inspect state mid-query.
func (m *Machine) Binds() *bind.Manager { return m.binds }

func (m *Machine) mintCallID() int64 {
	m.nextCallID++
	return m.nextCallID
}

// Next drives the machine forward until it has a Result to report, runs
// out of solutions (Done), or needs the host to answer a suspended
// request (any other Event). Calling Next again after a Result
// backtracks into the search for the next solution — there is nothing to
// answer, just "give me the next one".
func (m *Machine) Next(ctx context.Context) (event.Event, error) {
	if m.resume != nil {
		if err := m.resume(nil, false); err != nil {
			return nil, err
		}
		m.resume = nil
	}
	if m.resultReady {
		m.resultReady = false
		if !m.backtrack() {
			return event.Done{}, nil
		}
	}
	return m.run(ctx)
}

// Resume answers the host-request event most recently returned by Next.
// reply carries whatever the host computed (nil if ok is false, meaning
// "this didn't work, backtrack").
func (m *Machine) Resume(ctx context.Context, reply term.Term, ok bool) (event.Event, error) {
	if m.resume == nil {
		return nil, perr.InvalidState("Resume called with no pending host request")
	}
	fn := m.resume
	m.resume = nil
	if err := fn(reply, ok); err != nil {
		if !m.backtrack() {
			return event.Done{}, nil
		}
	}
	return m.run(ctx)
}

func (m *Machine) run(ctx context.Context) (event.Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !m.deadline.IsZero() && time.Now().After(m.deadline) {
			return nil, perr.QueryTimeout(time.Since(m.deadline.Add(-m.cfg.QueryTimeout)).Milliseconds())
		}
		if len(m.goals)+len(m.choice) > m.cfg.MaxStackSize {
			return nil, perr.StackOverflow(m.cfg.MaxStackSize)
		}

		if len(m.goals) == 0 {
			bindings, err := m.buildResultBindings()
			if err != nil {
				if !m.backtrack() {
					return event.Done{}, nil
				}
				continue
			}
			m.resultReady = true
			return event.Result{Bindings: bindings}, nil
		}

		g := m.goals[len(m.goals)-1]
		m.goals = m.goals[:len(m.goals)-1]

		ev, err := m.step(g)
		if err != nil {
			if !perr.IsGoalFailure(err) {
				return nil, err
			}
			if !m.backtrack() {
				return event.Done{}, nil
			}
			continue
		}
		if ev != nil {
			return ev, nil
		}
	}
}

// step executes one goal, pushing whatever follow-up goals it produces. A
// non-nil Event means the machine is suspending for host input. A non-nil
// error is either an ordinary failed goal (perr.IsGoalFailure: the caller
// should backtrack) or a genuine runtime error that must propagate out of
// run() uncaught (spec §7).
func (m *Machine) step(g goal) (event.Event, error) {
	switch gv := g.(type) {
	case gPopCallID:
		m.nextCallID = gv.Prev
		return nil, nil
	case gCut:
		if gv.ChoiceIndex < len(m.choice) {
			m.choice = m.choice[:gv.ChoiceIndex]
		}
		return nil, nil
	case gEnterCutBarrier:
		m.currentRuleChoiceIndex = gv.New
		return nil, nil
	case gExitCutBarrier:
		m.currentRuleChoiceIndex = gv.Prev
		return nil, nil
	case gQuery:
		return m.queryTerm(gv.Term)
	default:
		return nil, perr.InvalidState("unknown goal type")
	}
}

// pushChoice records a choice point offering the given alternative
// continuations (each a goal stack to try, most-specific first), with
// the first alternative taken immediately by pushing it onto the live
// goal stack.
func (m *Machine) pushChoice(alternatives [][]goal) {
	if len(alternatives) == 0 {
		return
	}
	first := alternatives[0]
	rest := alternatives[1:]
	if len(rest) > 0 {
		m.choice = append(m.choice, choicePoint{
			Alternatives: rest,
			Goals:        append([]goal{}, m.goals...),
			Bsp:          m.binds.Bsp(),
			CallID:       m.nextCallID,
		})
	}
	m.pushGoals(first)
}

func (m *Machine) pushGoals(gs []goal) {
	for i := len(gs) - 1; i >= 0; i-- {
		m.goals = append(m.goals, gs[i])
	}
}

// backtrack pops the most recent choice point and resumes its next
// alternative, restoring bindings to that choice point's bsp first. It
// reports false once there are no more choice points to try.
func (m *Machine) backtrack() bool {
	for len(m.choice) > 0 {
		cp := &m.choice[len(m.choice)-1]
		m.binds.Backtrack(cp.Bsp)
		m.nextCallID = cp.CallID
		if len(cp.Alternatives) == 0 {
			m.choice = m.choice[:len(m.choice)-1]
			continue
		}
		next := cp.Alternatives[0]
		cp.Alternatives = cp.Alternatives[1:]
		m.goals = append([]goal{}, cp.Goals...)
		if len(cp.Alternatives) == 0 {
			m.choice = m.choice[:len(m.choice)-1]
		}
		m.pushGoals(next)
		return true
	}
	return false
}

// buildResultBindings reports every top-level variable's current value:
// a ground term as-is, or — for a variable left Partial (constrained but
// never bound to a ground value) — its residual expression run through
// the simplifier (package partial), so the host sees a canonical "this is
// true of the bound value of the variable" constraint rather than a raw,
// possibly still-cyclic internal representation. An incompatible-isa
// residual (partial.Simplify's "fail the whole residual" case, spec
// §4.3 step 4) fails this answer outright so the caller backtracks to the
// next one instead of reporting it.
func (m *Machine) buildResultBindings() (map[string]term.Term, error) {
	raw := m.binds.BindingsAfter(false, bind.Bsp{})
	classes := partial.NewClassHierarchy(
		func(name string) (int64, bool) {
			ci, ok := m.kb.Class(name)
			if !ok {
				return 0, false
			}
			return ci.ID, true
		},
		m.kb.IsSubclass,
	)

	out := make(map[string]term.Term, len(raw))
	for k, v := range raw {
		sym := term.Symbol(k)
		if st := m.binds.VariableState(sym); st.Kind == bind.Partial {
			simplified, err := partial.Simplify(m.binds, classes, sym, m.binds.GetConstraints(sym))
			if err != nil {
				return nil, err
			}
			out[k] = simplified
			continue
		}
		out[k] = v.(term.Term)
	}
	return out, nil
}
