// Package engine is the top-level façade: it wires the lexer, parser,
// resource-block sugar, and knowledge base together behind a single
// Load/RegisterClass/Clear surface, the way oso's `Polar` struct (and this repo's
// teacher, gokando's top-level search driver) hide their internal stages
// behind one entry point.
package engine

import (
	"github.com/hashicorp/go-hclog"

	"github.com/polar-vm/polarvm/pkg/polar/kb"
)

// Engine owns one knowledge base and the logger used while loading into
// it.
type Engine struct {
	KB  *kb.KnowledgeBase
	log hclog.Logger
}

// New builds an Engine with a fresh, empty knowledge base. logger may be
// nil.
func New(logger hclog.Logger) *Engine {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Engine{KB: kb.New(logger), log: logger.Named("engine")}
}

// RegisterClass exposes kb.RegisterClass on the engine for callers that
// never need the KB directly.
func (e *Engine) RegisterClass(name string, mro []int64) (*kb.ClassInfo, error) {
	return e.KB.RegisterClass(name, mro)
}

// Clear empties the rule table, keeping registered classes and the id
// counter intact (spec §3 Lifecycles).
func (e *Engine) Clear() { e.KB.Clear() }
