// Package sugar desugars `actor`/`resource` blocks into ordinary
// has_role/3 and has_permission/3 rules (a relation shorthand's body calls
// has_relation/3; relation declarations produce no rules), so the core VM
// never needs to know resource blocks exist (spec §6 "Resource-block
// sugar"). Grounded on original_source/polar-core/src/resource_block.rs,
// simplified to the common role-implies-permission / relation-crosses-
// resource shapes that file's tests exercise.
package sugar

import (
	"fmt"

	"github.com/polar-vm/polarvm/pkg/polar/kb"
	"github.com/polar-vm/polarvm/pkg/polar/parser"
	"github.com/polar-vm/polarvm/pkg/polar/perr"
	"github.com/polar-vm/polarvm/pkg/polar/term"
)

// Desugar turns one parsed resource block into the rules it implies. The
// caller is responsible for feeding the result into the knowledge base via
// kb.AddRule, tagged with the same LoadSeq as the rest of that Load call.
func Desugar(rb parser.ResourceBlock, loadSeq int, gensym func() int64) ([]*kb.Rule, error) {
	roles := stringSet(rb.Roles)
	perms := stringSet(rb.Permissions)

	var rules []*kb.Rule
	for _, sh := range rb.Shorthand {
		if sh.Relation != "" {
			if _, declared := rb.Relations[sh.Relation]; !declared {
				return nil, perr.Validation(perr.KindResourceBlock, "relation %q used on %q is not declared in %s's relations", sh.Relation, sh.Rule, rb.Name)
			}
		}
		r, err := desugarShorthand(rb, sh, roles, perms, loadSeq, gensym)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	// relations = { name: Type, ... } is validation metadata consumed by
	// Load's class-reference checks, not a source of its own rules: the
	// has_relation/3 facts come from the host or from an explicit rule the
	// policy author writes, never from the declaration alone.
	return rules, nil
}

func stringSet(xs []string) map[string]bool {
	m := make(map[string]bool, len(xs))
	for _, x := range xs {
		m[x] = true
	}
	return m
}

// predicateFor reports which rule name ("has_role" or "has_permission") a
// declared name belongs to within this block.
func predicateFor(name string, roles, perms map[string]bool) (string, error) {
	switch {
	case roles[name]:
		return "has_role", nil
	case perms[name]:
		return "has_permission", nil
	default:
		return "", perr.Validation(perr.KindResourceBlock, "%q is neither a declared role nor a declared permission", name)
	}
}

// desugarShorthand turns `"r" if "p";` or `"r" if "p" on "rel";` into one
// rule: has_X(actor, "r", resource: T{}) if has_Y(actor, "p", resource);
// or, with a relation, has_X(actor, "r", resource: T{}) if
// has_relation(related, "rel", resource) and has_Y(actor, "p", related);
func desugarShorthand(rb parser.ResourceBlock, sh parser.ShorthandRule, roles, perms map[string]bool, loadSeq int, gensym func() int64) (*kb.Rule, error) {
	headPred, err := predicateFor(sh.Rule, roles, perms)
	if err != nil {
		return nil, err
	}
	bodyPred, err := predicateFor(sh.Permission, roles, perms)
	if err != nil {
		return nil, err
	}

	actor := term.NewVariable(anon(gensym, "actor"))
	nameParam := term.NewVariable(anon(gensym, "name"))
	resource := term.NewVariable(anon(gensym, "resource"))

	params := []kb.Parameter{
		{Variable: actor.Name},
		{Variable: nameParam.Name, Specializer: term.NewString(sh.Rule)},
		{Variable: resource.Name, Specializer: term.NewPattern(rb.Name, term.NewDict(nil))},
	}
	permLit := term.NewString(sh.Permission)

	var body term.Term
	if sh.Relation == "" {
		body = term.NewCall(bodyPred, []term.Term{actor, permLit, resource}, nil)
	} else {
		related := term.NewVariable(anon(gensym, "related"))
		relLit := term.NewString(sh.Relation)
		hasRelation := term.NewCall("has_relation", []term.Term{related, relLit, resource}, nil)
		hasBody := term.NewCall(bodyPred, []term.Term{actor, permLit, related}, nil)
		body = term.And(hasRelation, hasBody)
	}

	return &kb.Rule{
		Name:    headPred,
		Params:  params,
		Body:    body,
		LoadSeq: loadSeq,
	}, nil
}

func anon(gensym func() int64, base string) term.Symbol {
	id := int64(0)
	if gensym != nil {
		id = gensym()
	}
	return term.Symbol(fmt.Sprintf("_%s_%d", base, id))
}
