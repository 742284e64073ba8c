package xsd

import (
	"fmt"
	"sort"

	"golang.org/x/text/cases"
)

// attributeRule checks instance attributes against the attribute uses and
// attribute wildcard of the element's type.
type attributeRule struct{ baseRule }

func newAttributeRule() *attributeRule {
	return &attributeRule{baseRule{name: "attributes", category: RuleAttribute, priority: 10, features: []string{FeatureAttributes}}}
}

func (r *attributeRule) Validate(node *XMLElement, decl *Element, ctx *RuleContext) {
	if decl == nil {
		return
	}
	ec := ctx.Effective(node)
	if ec == nil {
		ec = &EffectiveContent{Kind: ContentSimple}
	}

	present := make(map[QName]bool)
	for _, attr := range node.Attributes() {
		name := attr.Name()
		if name.Namespace == XSINamespace {
			continue
		}
		present[name] = true

		use, declared := ec.Attribute(name)
		switch {
		case declared && use.Use == ProhibitedUse:
			ctx.Error(attr, CodeProhibitedAttribute,
				fmt.Sprintf("Attribute '%s' is prohibited on element '%s'", name, decl.Name),
				WithContextValue("attribute", name.Clark()),
				WithSuggestion(fmt.Sprintf("Remove attribute '%s'", name.Local)))
		case declared:
			r.value(attr, use, ctx)
		case ec.AnyAttribute != nil:
			r.wildcard(attr, ec.AnyAttribute, ctx)
		default:
			r.undeclared(attr, ec, ctx)
		}
	}

	for _, use := range ec.Attributes {
		if use.Use != RequiredUse || present[use.QName()] {
			continue
		}
		ctx.Error(node, CodeRequiredAttributeMissing,
			fmt.Sprintf("Required attribute '%s' is missing on element '%s'", use.QName(), decl.Name),
			WithContextValue("attribute", use.QName().Clark()),
			WithSuggestion(fmt.Sprintf("Add attribute '%s'", use.QName().Local)))
	}
}

func (r *attributeRule) value(attr *XMLAttribute, use *Attribute, ctx *RuleContext) {
	st := use.ResolvedType()
	at := WithContextValue("attribute", attr.Name().Clark())
	if ctx.Config.FeatureEnabled(FeatureTypes) {
		for _, v := range ctx.values().check(attr.Value(), st) {
			ctx.violation(attr, v, at)
		}
	}
	if !ctx.Config.FeatureEnabled(FeatureFixedValues) {
		return
	}
	if fixed, ok := use.FixedValue(); ok && !ctx.values().fixedMatches(attr.Value(), fixed, st) {
		ctx.violation(attr, fixedMismatch("Attribute", attr.Name(), attr.Value(), fixed), at)
	}
}

func (r *attributeRule) wildcard(attr *XMLAttribute, w *Wildcard, ctx *RuleContext) {
	name := attr.Name()
	if !ctx.Config.FeatureEnabled(FeatureWildcards) {
		return
	}
	if !w.Allows(name.Namespace) {
		ctx.Error(attr, CodeWildcardNamespace, wildcardNamespaceMessage("Attribute", name, w),
			WithContextValue("attribute", name.Clark()),
			WithContextValue("namespace_constraint", w.Namespace))
		return
	}
	global := ctx.Repository.lookupAttribute(name)
	switch processWildcard(w, global != nil, ctx.Config.StrictMode) {
	case wildcardValidate:
		r.value(attr, global, ctx)
	case wildcardUndeclared:
		ctx.Error(attr, CodeUnexpectedAttribute,
			fmt.Sprintf("No declaration found for attribute '%s' admitted by a strict wildcard", name.Clark()),
			WithContextValue("attribute", name.Clark()))
	}
}

func (r *attributeRule) undeclared(attr *XMLAttribute, ec *EffectiveContent, ctx *RuleContext) {
	name := attr.Name()
	for _, use := range ec.Attributes {
		q := use.QName()
		if q.Local == name.Local && q.Namespace != name.Namespace && use.Use != ProhibitedUse {
			ctx.Error(attr, CodeNamespaceMismatch,
				fmt.Sprintf("Attribute '%s' has namespace '%s', expected '%s'", name.Local, name.Namespace, q.Namespace),
				WithContextValue("attribute", name.Clark()),
				WithContextValue("expected_namespace", q.Namespace))
			return
		}
	}

	opts := []FindingOption{WithContextValue("attribute", name.Clark())}
	if s := similarAttributes(name.Local, ec.Attributes, ctx.Config); len(s) > 0 {
		opts = append(opts, WithSuggestion("Did you mean: "+joinQuoted(s)+"?"))
	}
	ctx.Error(attr, CodeUnexpectedAttribute,
		fmt.Sprintf("Attribute '%s' is not allowed on element '%s'", name, attr.Owner().Name()), opts...)
}

// similarAttributes returns declared attribute names resembling local.
func similarAttributes(local string, uses []*Attribute, cfg *Configuration) []string {
	fold := cases.Fold()
	target := fold.String(local)
	type scored struct {
		name  string
		score float64
	}
	var candidates []scored
	for _, use := range uses {
		if use.Use == ProhibitedUse {
			continue
		}
		n := use.QName().Local
		if s := similarity(target, fold.String(n)); s >= cfg.FuzzyThreshold {
			candidates = append(candidates, scored{n, s})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	out := make([]string, 0, len(candidates))
	for i, c := range candidates {
		if cfg.MaxSuggestions > 0 && i >= cfg.MaxSuggestions {
			break
		}
		out = append(out, c.name)
	}
	return out
}

func joinQuoted(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += "'" + n + "'"
	}
	return out
}

// simpleValueRule validates the text of elements with a simple type or
// simple content, and their fixed value constraints.
type simpleValueRule struct{ baseRule }

func newSimpleValueRule() *simpleValueRule {
	return &simpleValueRule{baseRule{name: "simple_value", category: RuleType, priority: 10}}
}

func (r *simpleValueRule) Validate(node *XMLElement, decl *Element, ctx *RuleContext) {
	if decl == nil || ctx.Nilled(node) || len(node.Children()) > 0 {
		return
	}
	var (
		st     *SimpleType
		facets *facetSet
	)
	switch t := ctx.Type(node).(type) {
	case *SimpleType:
		st = t
	case *ComplexType:
		ec := t.Effective()
		if ec == nil || ec.Kind != ContentSimple {
			return
		}
		st, facets = ec.SimpleType, ec.facets
	default:
		return
	}

	value, fromInstance := elementValue(node, decl)
	at := WithContextValue("element", decl.Name.Clark())
	if ctx.Config.FeatureEnabled(FeatureTypes) {
		for _, v := range ctx.values().checkWithFacets(value, st, facets) {
			ctx.violation(node, v, at)
		}
	}
	if ctx.Config.FeatureEnabled(FeatureFixedValues) && decl.HasFixed && fromInstance &&
		!ctx.values().fixedMatches(value, decl.Fixed, st) {
		ctx.violation(node, fixedMismatch("Element", decl.Name, value, decl.Fixed), at)
	}
}
