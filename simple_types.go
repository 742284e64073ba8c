package xsd

import (
	"fmt"
	"strings"
)

// maxDerivationDepth bounds walks along simple type derivation chains so
// that a circular restriction cannot loop forever.
const maxDerivationDepth = 64

// valueChecker validates lexical values through the simple type cascade:
// whitespace normalization, the base type, then the facets of each
// restriction level. A failing base short-circuits the facets above it.
type valueChecker struct {
	repo   *Repository
	facets bool
	strict bool
}

func newValueChecker(repo *Repository, facets, strict bool) *valueChecker {
	return &valueChecker{repo: repo, facets: facets, strict: strict}
}

// ValidateSimpleValue checks value against st with every facet enabled.
func (r *Repository) ValidateSimpleValue(value string, st *SimpleType) []FacetViolation {
	return newValueChecker(r, true, false).check(value, st)
}

func (vc *valueChecker) check(value string, st *SimpleType) []FacetViolation {
	return vc.checkDepth(value, st, 0)
}

// checkWithFacets validates value against st and then against extra
// facets layered on top of it, as simple content restrictions do.
func (vc *valueChecker) checkWithFacets(value string, st *SimpleType, extra *facetSet) []FacetViolation {
	if out := vc.check(value, st); len(out) > 0 || extra == nil || len(extra.facets) == 0 {
		return out
	}
	if !vc.facets {
		return nil
	}
	ws := vc.whiteSpace(st)
	if mode, ok := whiteSpaceFacet(extra.facets); ok {
		ws = mode
	}
	return vc.applyFacets(value, extra, vc.target(st), ws)
}

func (vc *valueChecker) checkDepth(value string, st *SimpleType, depth int) []FacetViolation {
	if st == nil || depth > maxDerivationDepth {
		return nil
	}
	switch {
	case st.Builtin:
		return vc.checkBuiltin(value, st.Name.Local)
	case st.List != nil:
		return vc.checkList(value, st, depth)
	case st.Union != nil:
		return vc.checkUnion(value, st, depth)
	case st.Restriction != nil:
		base := st.Restriction.BaseType()
		if out := vc.checkDepth(value, base, depth+1); len(out) > 0 {
			return out
		}
		if !vc.facets {
			return nil
		}
		return vc.applyFacets(value, st.Restriction.facetSet(vc.repo.patterns), vc.target(st), vc.whiteSpace(st))
	}
	return nil
}

func (vc *valueChecker) checkBuiltin(value, local string) []FacetViolation {
	bt := vc.repo.builtins.Lookup(local)
	normalized := NormalizeWhiteSpace(value, bt.WhiteSpace)
	if err := bt.Validate(normalized); err != nil {
		return []FacetViolation{{
			Code:     CodeInvalidValue,
			Severity: SeverityError,
			Message:  bt.ErrorMessage(normalized),
			Context:  map[string]any{"type": bt.Name, "value": normalized},
		}}
	}
	return nil
}

func (vc *valueChecker) checkList(value string, st *SimpleType, depth int) []FacetViolation {
	item := st.List.Item()
	for i, it := range strings.Fields(value) {
		out := vc.checkDepth(it, item, depth+1)
		if len(out) == 0 {
			continue
		}
		first := out[0]
		first.Message = fmt.Sprintf("List item %d: %s", i+1, first.Message)
		first.Context = withContext(first.Context, "item_index", i+1)
		return []FacetViolation{first}
	}
	return nil
}

func (vc *valueChecker) checkUnion(value string, st *SimpleType, depth int) []FacetViolation {
	members := st.Union.Members()
	if len(members) == 0 {
		return nil
	}
	names := make([]string, 0, len(members))
	for _, m := range members {
		if len(vc.checkDepth(value, m, depth+1)) == 0 {
			return nil
		}
		names = append(names, memberLabel(m))
	}
	return []FacetViolation{{
		Code:       CodeUnionNoMemberMatched,
		Severity:   SeverityError,
		Message:    fmt.Sprintf("Value '%s' does not match any member type of the union", value),
		Context:    map[string]any{"member_types": names},
		Suggestion: "Expected a value of type " + strings.Join(names, " or "),
	}}
}

func memberLabel(st *SimpleType) string {
	if st.Name.IsZero() {
		return "(anonymous)"
	}
	return st.Name.Local
}

// applyFacets runs the facets of one restriction level on the normalized value.
func (vc *valueChecker) applyFacets(value string, set *facetSet, target FacetTarget, ws WhiteSpaceMode) []FacetViolation {
	normalized := NormalizeWhiteSpace(value, ws)
	var out []FacetViolation
	for _, p := range set.problems {
		if vc.strict {
			p.Severity = SeverityError
		}
		out = append(out, p)
	}
	for _, v := range set.validators {
		violation := v.Validate(normalized, target)
		if violation == nil {
			continue
		}
		if violation.Severity == "" {
			violation.Severity = SeverityError
		}
		out = append(out, *violation)
	}
	return out
}

// target describes the value space facets of st operate on.
func (vc *valueChecker) target(st *SimpleType) FacetTarget {
	for depth := 0; st != nil && depth <= maxDerivationDepth; depth++ {
		switch {
		case st.Builtin:
			bt := vc.repo.builtins.Lookup(st.Name.Local)
			return FacetTarget{Builtin: bt, List: bt.List}
		case st.List != nil:
			return FacetTarget{List: true}
		case st.Union != nil:
			return FacetTarget{}
		case st.Restriction != nil:
			st = st.Restriction.BaseType()
		default:
			return FacetTarget{}
		}
	}
	return FacetTarget{}
}

// whiteSpace returns the whitespace mode in force for st: the nearest
// whiteSpace facet, collapse for lists, or the built-in default.
func (vc *valueChecker) whiteSpace(st *SimpleType) WhiteSpaceMode {
	for depth := 0; st != nil && depth <= maxDerivationDepth; depth++ {
		switch {
		case st.Builtin:
			return vc.repo.builtins.Lookup(st.Name.Local).WhiteSpace
		case st.List != nil:
			return WhiteSpaceCollapse
		case st.Union != nil:
			return WhiteSpacePreserve
		case st.Restriction != nil:
			if mode, ok := whiteSpaceFacet(st.Restriction.Facets); ok {
				return mode
			}
			st = st.Restriction.BaseType()
		default:
			return WhiteSpacePreserve
		}
	}
	return WhiteSpacePreserve
}

// normalize applies the whitespace mode of st to value.
func (vc *valueChecker) normalize(value string, st *SimpleType) string {
	return NormalizeWhiteSpace(value, vc.whiteSpace(st))
}

func withContext(ctx map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(ctx)+1)
	for k, v := range ctx {
		out[k] = v
	}
	out[key] = value
	return out
}
