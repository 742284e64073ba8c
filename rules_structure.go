package xsd

import (
	"fmt"
	"strings"
)

// declarationRule checks the declaration an element was paired with:
// abstract declarations, unresolved types and unknown xsi:type values.
type declarationRule struct{ baseRule }

func newDeclarationRule() *declarationRule {
	return &declarationRule{baseRule{name: "element_declaration", category: RuleStructure, priority: 10}}
}

func (r *declarationRule) Validate(node *XMLElement, decl *Element, ctx *RuleContext) {
	if decl == nil {
		return
	}
	st := ctx.state(node)
	if decl.Abstract && !ctx.hasConcreteXSIType(node) {
		opts := []FindingOption{WithContextValue("element", decl.Name.Clark())}
		if members := ctx.Repository.SubstitutionMembers(decl.Name); len(members) > 0 {
			names := make([]string, 0, len(members))
			for _, m := range members {
				if !m.Abstract {
					names = append(names, m.Name.Local)
				}
			}
			if len(names) > 0 {
				opts = append(opts, WithSuggestion("Use one of: "+strings.Join(names, ", ")))
			}
		}
		ctx.Error(node, CodeAbstractElement,
			fmt.Sprintf("Element '%s' is abstract and cannot appear in an instance", decl.Name.Clark()), opts...)
	}
	if !decl.TypeRef.IsZero() && decl.ResolvedType() == nil && !decl.IsReference() {
		ctx.Lenient(node, CodeTypeNotFound,
			fmt.Sprintf("Type '%s' of element '%s' is not defined", decl.TypeRef, decl.Name),
			typeSuggestion(ctx.Repository, decl.TypeRef.Local)...)
	}
	if st.xsiType != "" {
		_, local := splitPrefixed(strings.TrimSpace(st.xsiType))
		ctx.Lenient(node, CodeTypeNotFound,
			fmt.Sprintf("Type '%s' named by xsi:type is not defined", st.xsiType),
			typeSuggestion(ctx.Repository, local)...)
	}
}

func (c *RuleContext) hasConcreteXSIType(node *XMLElement) bool {
	st := c.state(node)
	if _, ok := node.XSIAttribute("type"); !ok || st.xsiType != "" {
		return false
	}
	ct, ok := st.typ.(*ComplexType)
	return !ok || !ct.Abstract
}

func typeSuggestion(repo *Repository, local string) []FindingOption {
	if s := repo.suggest(local); len(s) > 0 {
		return []FindingOption{WithSuggestion("Did you mean: " + strings.Join(s, ", ") + "?")}
	}
	return nil
}

// nillableRule checks xsi:nil against the declaration.
type nillableRule struct{ baseRule }

func newNillableRule() *nillableRule {
	return &nillableRule{baseRule{name: "nillable", category: RuleStructure, priority: 20, features: []string{FeatureNillable}}}
}

func (r *nillableRule) Validate(node *XMLElement, decl *Element, ctx *RuleContext) {
	st := ctx.state(node)
	if decl == nil || !st.xsiNil {
		return
	}
	if !decl.Nillable {
		ctx.Error(node, CodeNilNotAllowed,
			fmt.Sprintf("Element '%s' is not nillable but has xsi:nil=\"true\"", decl.Name.Clark()),
			WithSuggestion("Remove xsi:nil or declare the element nillable"))
		return
	}
	if len(node.Children()) > 0 || node.HasText() {
		ctx.Error(node, CodeNilContentNotEmpty,
			fmt.Sprintf("Element '%s' has xsi:nil=\"true\" but is not empty", decl.Name.Clark()))
	}
}

// mixedContentRule checks text and element children against the content
// kind of the element's type.
type mixedContentRule struct{ baseRule }

func newMixedContentRule() *mixedContentRule {
	return &mixedContentRule{baseRule{name: "mixed_content", category: RuleStructure, priority: 30}}
}

func (r *mixedContentRule) Validate(node *XMLElement, decl *Element, ctx *RuleContext) {
	if decl == nil || ctx.Nilled(node) {
		return
	}
	kind := ContentSimple
	if ec := ctx.Effective(node); ec != nil {
		kind = ec.Kind
	}
	switch kind {
	case ContentSimple:
		if n := len(node.Children()); n > 0 {
			ctx.Error(node, CodeElementChildrenNotAllow,
				fmt.Sprintf("Element '%s' has simple content and cannot contain child elements", decl.Name.Clark()),
				WithContextValue("child_count", n))
		}
	case ContentElementOnly, ContentEmpty:
		if node.HasText() {
			ctx.Error(node, CodeTextNotAllowed,
				fmt.Sprintf("Element '%s' cannot contain text content", decl.Name.Clark()),
				WithContextValue("content_kind", kind.String()),
				WithContextValue("text", truncate(strings.TrimSpace(node.Text()), 40)))
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// wildcardElementRule reports elements a strict wildcard admitted without
// a global declaration to validate them against.
type wildcardElementRule struct{ baseRule }

func newWildcardElementRule() *wildcardElementRule {
	return &wildcardElementRule{baseRule{name: "wildcard_element", category: RuleStructure, priority: 40, features: []string{FeatureWildcards}}}
}

func (r *wildcardElementRule) Validate(node *XMLElement, _ *Element, ctx *RuleContext) {
	st := ctx.state(node)
	if !st.undeclared {
		return
	}
	ctx.Error(node, CodeElementNotAllowed,
		fmt.Sprintf("No declaration found for element '%s' admitted by a strict wildcard", node.Name().Clark()),
		WithContextValue("element", node.Name().Clark()),
		WithContextValue("process_contents", string(st.wildcard.Mode())))
}

// contentModelRule reports the structural findings of content matching.
type contentModelRule struct{ baseRule }

func newContentModelRule() *contentModelRule {
	return &contentModelRule{baseRule{name: "content_model", category: RuleContentModel, priority: 10, features: []string{FeatureContentModel}}}
}

func (r *contentModelRule) Validate(node *XMLElement, _ *Element, ctx *RuleContext) {
	reportMatch(node, RuleContentModel, ctx)
}

// occurrenceRule reports minOccurs and maxOccurs violations.
type occurrenceRule struct{ baseRule }

func newOccurrenceRule() *occurrenceRule {
	return &occurrenceRule{baseRule{name: "occurrence", category: RuleOccurrence, priority: 10, features: []string{FeatureOccurrence}}}
}

func (r *occurrenceRule) Validate(node *XMLElement, _ *Element, ctx *RuleContext) {
	reportMatch(node, RuleOccurrence, ctx)
}

func reportMatch(node *XMLElement, category RuleCategory, ctx *RuleContext) {
	st := ctx.state(node)
	if st == nil || st.match == nil {
		return
	}
	for _, f := range st.match.findings {
		if f.category == category {
			ctx.Error(f.at, f.code, f.message, f.opts...)
		}
	}
}
