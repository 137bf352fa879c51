package engine

import (
	"strings"

	"github.com/polar-vm/polarvm/pkg/polar/kb"
	"github.com/polar-vm/polarvm/pkg/polar/parser"
	"github.com/polar-vm/polarvm/pkg/polar/perr"
	"github.com/polar-vm/polarvm/pkg/polar/sugar"
	"github.com/polar-vm/polarvm/pkg/polar/term"
)

// Load parses source, desugars any resource blocks, validates the result,
// and registers the result with the knowledge base only when everything
// passes validation. All rules (and the rules resource blocks desugar to) share one
// LoadSeq, so cross-source tie-breaking follows call order (spec §9 open
// question 3). Inline queries (`?= ...;`) are returned rather than run:
// running them is the caller's choice, per spec §4 Operations.
//
// Load is atomic across validation: if any rule or resource block in
// source fails validation, nothing from this call is registered.
func (e *Engine) Load(source string, filename string) ([]term.Term, error) {
	srcID := e.KB.AddSource(source)
	res, err := parser.Parse(source, srcID, e.KB.Gensym)
	if err != nil {
		return nil, wrapFileLoading(filename, err)
	}

	loadSeq := e.KB.BeginLoad()
	agg := perr.NewAggregator()

	allRules := append([]*kb.Rule{}, res.Rules...)
	for i := range allRules {
		allRules[i].LoadSeq = loadSeq
	}
	for _, rb := range res.ResourceBlocks {
		desugared, err := sugar.Desugar(rb, loadSeq, e.KB.Gensym)
		if err != nil {
			agg.Add(err)
			continue
		}
		allRules = append(allRules, desugared...)
	}

	registeredClasses := e.KB.RegisteredClassNames()
	ruleNames := make(map[string]bool, len(allRules))
	for _, r := range allRules {
		ruleNames[r.Name] = true
	}
	// Built-in predicates produced or consumed only by resource-block
	// sugar are always callable even if the policy never defines them
	// itself (e.g. a host-provided has_relation/3).
	for _, builtin := range []string{"has_role", "has_permission", "has_relation"} {
		ruleNames[builtin] = true
	}

	for _, r := range allRules {
		if err := validateRule(r, registeredClasses); err != nil {
			agg.Add(err)
		}
	}
	for _, r := range allRules {
		checkUndefinedCalls(r.Body, ruleNames, agg)
	}

	if err := agg.Err(); err != nil {
		return nil, err
	}

	for _, r := range allRules {
		r.ID = e.KB.Gensym()
		e.KB.AddRule(r)
	}
	e.log.Debug("loaded source", "file", filename, "rules", len(allRules), "queries", len(res.Queries))
	return res.Queries, nil
}

func wrapFileLoading(filename string, cause error) error {
	if filename == "" {
		return cause
	}
	return perr.FileLoading(filename + ": " + cause.Error())
}

// validateRule checks singleton variables and unregistered specializer
// classes (spec §4.2 "Rule validity").
func validateRule(r *kb.Rule, registered interface{ Contains(string) bool }) error {
	counts := map[term.Symbol]int{}
	countVars(r.Body, counts)
	for _, p := range r.Params {
		if p.Variable != "" {
			counts[p.Variable]++
		}
		if p.Specializer != nil {
			countVars(p.Specializer, counts)
		}
	}

	agg := perr.NewAggregator()
	for name, n := range counts {
		if n == 1 && !isWildcard(name) {
			agg.Add(perr.SingletonVariable(string(name), r.Span))
		}
	}
	for _, p := range r.Params {
		if pat, ok := p.Specializer.(*term.Pattern); ok && pat.Tag != "" {
			if !registered.Contains(pat.Tag) {
				agg.Add(perr.UnregisteredClass(pat.Tag, r.Span))
			}
		}
	}
	return agg.Err()
}

func isWildcard(name term.Symbol) bool {
	return strings.HasPrefix(string(name), "_")
}

func countVars(t term.Term, counts map[term.Symbol]int) {
	if t == nil {
		return
	}
	switch v := t.(type) {
	case *term.Variable:
		counts[v.Name]++
	case *term.RestVariable:
		counts[v.Name]++
	case *term.List:
		for _, item := range v.Items {
			countVars(item, counts)
		}
		if v.Rest != nil {
			countVars(v.Rest, counts)
		}
	case *term.Dict:
		for _, k := range v.Keys() {
			countVars(v.Fields[k], counts)
		}
	case *term.Pattern:
		if v.Fields != nil {
			countVars(v.Fields, counts)
		}
	case *term.Call:
		for _, a := range v.Args {
			countVars(a, counts)
		}
		for _, a := range v.Kwargs {
			countVars(a, counts)
		}
	case *term.Expression:
		for _, a := range v.Args {
			countVars(a, counts)
		}
	}
}

// checkUndefinedCalls walks body looking for term.Call nodes whose name
// isn't a known rule and isn't a dot/method-style call (those resolve
// against a host instance at query time, not a KB rule).
func checkUndefinedCalls(body term.Term, ruleNames map[string]bool, agg *perr.Aggregator) {
	if body == nil {
		return
	}
	switch v := body.(type) {
	case *term.Expression:
		if v.Op == term.OpDot {
			// The right-hand side of `.` is a field/method name resolved
			// against a host instance, never a KB rule; only recurse into
			// the left-hand operand.
			if len(v.Args) > 0 {
				checkUndefinedCalls(v.Args[0], ruleNames, agg)
			}
			return
		}
		for _, a := range v.Args {
			checkUndefinedCalls(a, ruleNames, agg)
		}
	case *term.Call:
		if !ruleNames[v.Name] {
			agg.Add(perr.UndefinedRuleCall(v.Name, v.Span()))
		}
		for _, a := range v.Args {
			checkUndefinedCalls(a, ruleNames, agg)
		}
		for _, a := range v.Kwargs {
			checkUndefinedCalls(a, ruleNames, agg)
		}
	case *term.List:
		for _, item := range v.Items {
			checkUndefinedCalls(item, ruleNames, agg)
		}
	case *term.Dict:
		for _, k := range v.Keys() {
			checkUndefinedCalls(v.Fields[k], ruleNames, agg)
		}
	}
}
