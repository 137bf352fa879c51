package kb

import (
	"sync/atomic"

	"github.com/hashicorp/go-hclog"
	goset "github.com/hashicorp/go-set/v3"

	"github.com/polar-vm/polarvm/pkg/polar/perr"
)

// ClassInfo is what the KB remembers about a registered external class
// name without ever needing a host round-trip: its id and its MRO
// (method-resolution order — itself first, then ancestors, most specific
// first). The MRO lets first-argument indexing and simple subclass checks
// avoid an ExternalIsSubclass event in the common case.
type ClassInfo struct {
	Name string
	ID   int64
	MRO  []int64 // class ids, self first, most specific to least specific
}

// KnowledgeBase is the read-only-during-query registry described in
// spec §3–4.1: a name -> GenericRule map, registered class names with their
// MRO, a monotonically increasing id counter for gensym/call-ids/instance-
// ids, and an append-only source map keyed by the source id stamped on
// every parsed term.
type KnowledgeBase struct {
	rules   map[string]*GenericRule
	classes map[string]*ClassInfo
	classByID map[int64]*ClassInfo
	sources map[int]string

	nextID   int64 // monotonic counter: gensym, call-ids, instance-ids
	loadSeq  int   // incremented once per Load call
	nextSrc  int

	log hclog.Logger
}

// New builds an empty knowledge base. logger may be nil, in which case a
// discarding logger is used (tests construct KBs freely without wanting
// log noise).
func New(logger hclog.Logger) *KnowledgeBase {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &KnowledgeBase{
		rules:     make(map[string]*GenericRule),
		classes:   make(map[string]*ClassInfo),
		classByID: make(map[int64]*ClassInfo),
		sources:   make(map[int]string),
		log:       logger.Named("kb"),
	}
}

// Gensym returns a fresh monotonically increasing id, used to mint fresh
// variable names during rule renaming, call-ids, and instance-ids, per
// spec §3.
func (kb *KnowledgeBase) Gensym() int64 {
	return atomic.AddInt64(&kb.nextID, 1)
}

// AddSource registers source text and returns its source id, stamped onto
// every term.Span the parser produces for that text. The source map is
// append-only: ids are never reused or removed.
func (kb *KnowledgeBase) AddSource(text string) int {
	id := kb.nextSrc
	kb.nextSrc++
	kb.sources[id] = text
	return id
}

// Source implements perr.SourceMap.
func (kb *KnowledgeBase) Source(id int) (string, bool) {
	text, ok := kb.sources[id]
	return text, ok
}

// BeginLoad returns the load sequence number for a new Load call; rules
// parsed under the same BeginLoad call share it, and callers compare
// (LoadSeq, index-within-call) to resolve tie-break order across multiple
// Load calls, per spec §9 open question 3: "insertion order within a
// single load call is preserved; order between load calls is the call
// order".
func (kb *KnowledgeBase) BeginLoad() int {
	kb.loadSeq++
	return kb.loadSeq
}

// AddRule inserts rule into its GenericRule, creating the group if this is
// the first rule with that name. Rules of differing arity under the same
// name are accepted here (a permissive design choice mirroring the
// original's behavior: a rule call is filtered to applicable candidates at
// query time regardless of arity) but applicableRules in the VM will simply
// never find the mismatched ones applicable.
func (kb *KnowledgeBase) AddRule(r *Rule) {
	g, ok := kb.rules[r.Name]
	if !ok {
		g = &GenericRule{Name: r.Name}
		kb.rules[r.Name] = g
	}
	g.Rules = append(g.Rules, r)
}

// Rule looks up the generic rule registered under name.
func (kb *KnowledgeBase) Rule(name string) (*GenericRule, bool) {
	g, ok := kb.rules[name]
	return g, ok
}

// Clear empties the rule table; per spec §3 Lifecycles, removing rules
// means clearing the KB and reloading. Registered classes, the id
// counter, and the source map are untouched — classes and the counter are
// process-scoped, and the source map is append-only by design.
func (kb *KnowledgeBase) Clear() {
	kb.rules = make(map[string]*GenericRule)
}

// RegisterClass records a host class name and its MRO (ancestor class ids,
// itself first). Re-registering the same name is an InvalidRegistration
// runtime error: the MRO is load-bearing for specificity sort and must not
// change under a running KB.
func (kb *KnowledgeBase) RegisterClass(name string, mro []int64) (*ClassInfo, error) {
	if _, exists := kb.classes[name]; exists {
		return nil, perr.Runtime(perr.KindInvalidRegistration, "class %s is already registered", name)
	}
	id := kb.Gensym()
	mroWithSelf := append([]int64{id}, mro...)
	ci := &ClassInfo{Name: name, ID: id, MRO: mroWithSelf}
	kb.classes[name] = ci
	kb.classByID[id] = ci
	kb.log.Debug("registered class", "name", name, "id", id)
	return ci, nil
}

// Class looks up a registered class by name.
func (kb *KnowledgeBase) Class(name string) (*ClassInfo, bool) {
	ci, ok := kb.classes[name]
	return ci, ok
}

// ClassByID looks up a registered class by id.
func (kb *KnowledgeBase) ClassByID(id int64) (*ClassInfo, bool) {
	ci, ok := kb.classByID[id]
	return ci, ok
}

// IsSubclass reports whether descendant's MRO contains ancestor's id,
// letting the VM decide many subclass relationships without an
// ExternalIsSubclass event, per spec §3: "MRO table ... used to decide
// subclass relationships without host round-trips when possible".
func (kb *KnowledgeBase) IsSubclass(descendant, ancestor int64) bool {
	ci, ok := kb.classByID[descendant]
	if !ok {
		return false
	}
	for _, id := range ci.MRO {
		if id == ancestor {
			return true
		}
	}
	return false
}

// RegisteredClassNames returns the set of known external class names, used
// by validation to flag `UnregisteredClass` when a policy names a class
// the host never registered.
func (kb *KnowledgeBase) RegisteredClassNames() *goset.Set[string] {
	names := goset.New[string](len(kb.classes))
	for name := range kb.classes {
		names.Insert(name)
	}
	return names
}

// Logger returns the KB's namespaced logger, shared with the VM so engine
// diagnostics are threaded through one hclog sink (spec's VmConfig design
// note, §9).
func (kb *KnowledgeBase) Logger() hclog.Logger { return kb.log }
