package xsd

import (
	"fmt"
	"strings"
)

// keyRule evaluates xs:key constraints: every selected node needs a value
// for every field, and values must be distinct.
type keyRule struct{ baseRule }

func newKeyRule() *keyRule {
	return &keyRule{baseRule{name: "key", category: RuleIdentity, priority: 10, features: []string{FeatureIdentityConstraints}}}
}

func (r *keyRule) Validate(node *XMLElement, decl *Element, ctx *RuleContext) {
	for _, ic := range constraintsOf(decl, KeyConstraint) {
		rows, ok := evaluateConstraint(node, ic, ctx)
		if !ok {
			continue
		}
		tbl := ctx.job.identity.table(ic)
		for _, row := range rows {
			if len(row.missing) > 0 {
				ctx.Error(row.at, CodeKeyFieldMissing,
					fmt.Sprintf("Key '%s' field '%s' has no value", ic.Name.Local, row.missing[0]),
					WithContextValue("constraint", ic.Name.Local),
					WithContextValue("fields", row.missing))
				continue
			}
			if first, added := tbl.add(row.values, row.at); !added {
				ctx.Error(row.at, CodeDuplicateKey,
					fmt.Sprintf("Duplicate key value '%s' for key '%s'", row.values, ic.Name.Local),
					WithContextValue("constraint", ic.Name.Local),
					WithContextValue("value", row.values.String()),
					WithContextValue("first_occurrence", first.Path()))
			}
		}
	}
}

// uniqueRule evaluates xs:unique constraints. Nodes with a missing field
// take no part: they are neither recorded nor compared.
type uniqueRule struct{ baseRule }

func newUniqueRule() *uniqueRule {
	return &uniqueRule{baseRule{name: "unique", category: RuleIdentity, priority: 20, features: []string{FeatureIdentityConstraints}}}
}

func (r *uniqueRule) Validate(node *XMLElement, decl *Element, ctx *RuleContext) {
	for _, ic := range constraintsOf(decl, UniqueConstraint) {
		rows, ok := evaluateConstraint(node, ic, ctx)
		if !ok {
			continue
		}
		tbl := ctx.job.identity.table(ic)
		for _, row := range rows {
			if len(row.missing) > 0 {
				continue
			}
			if first, added := tbl.add(row.values, row.at); !added {
				ctx.Error(row.at, CodeUniqueViolation,
					fmt.Sprintf("Duplicate value '%s' for unique constraint '%s'", row.values, ic.Name.Local),
					WithContextValue("constraint", ic.Name.Local),
					WithContextValue("value", row.values.String()),
					WithContextValue("first_occurrence", first.Path()))
			}
		}
	}
}

// keyrefRule checks xs:keyref values against the table of the key or
// unique constraint they refer to. It runs after both of those rules.
type keyrefRule struct{ baseRule }

func newKeyrefRule() *keyrefRule {
	return &keyrefRule{baseRule{name: "keyref", category: RuleIdentity, priority: 30, features: []string{FeatureIdentityConstraints}}}
}

func (r *keyrefRule) Validate(node *XMLElement, decl *Element, ctx *RuleContext) {
	for _, ic := range constraintsOf(decl, KeyRefConstraint) {
		referenced, declared := ctx.Repository.LookupConstraint(ic.Refer)
		if !declared || referenced.Category == KeyRefConstraint {
			ctx.Error(node, CodeKeyNotFound,
				fmt.Sprintf("Keyref '%s' refers to unknown key '%s'", ic.Name.Local, ic.Refer.Local),
				WithContextValue("constraint", ic.Name.Local),
				WithContextValue("refer", ic.Refer.Clark()))
			continue
		}
		rows, ok := evaluateConstraint(node, ic, ctx)
		if !ok {
			continue
		}
		tbl := ctx.job.identity.table(referenced)
		for _, row := range rows {
			if len(row.missing) > 0 || tbl.has(row.values) {
				continue
			}
			available := tbl.available()
			msg := fmt.Sprintf("Keyref '%s' value '%s' does not match any %s '%s'",
				ic.Name.Local, row.values, referenced.Category, referenced.Name.Local)
			opts := []FindingOption{
				WithContextValue("constraint", ic.Name.Local),
				WithContextValue("refer", referenced.Name.Local),
				WithContextValue("value", row.values.String()),
				WithContextValue("available_values", available),
			}
			if len(available) > 0 {
				msg += ". Available values: " + strings.Join(available, ", ")
				opts = append(opts, WithSuggestion("Use one of: "+strings.Join(available, ", ")))
			}
			ctx.Error(row.at, CodeKeyrefViolation, msg, opts...)
		}
	}
}

func constraintsOf(decl *Element, category ConstraintCategory) []*IdentityConstraint {
	if decl == nil {
		return nil
	}
	var out []*IdentityConstraint
	for _, ic := range decl.Constraints {
		if ic.Category == category {
			out = append(out, ic)
		}
	}
	return out
}

func evaluateConstraint(node *XMLElement, ic *IdentityConstraint, ctx *RuleContext) ([]constraintRow, bool) {
	rows, err := ctx.job.identity.rows(node, ic)
	if err != nil {
		ctx.job.identity.reportInvalid(ctx, node, ic, err)
		return nil, false
	}
	return rows, true
}

// idKind classifies simple types derived from ID, IDREF and IDREFS.
type idKind int

const (
	notID idKind = iota
	kindID
	kindIDRef
	kindIDRefs
)

func idKindOf(st *SimpleType) idKind {
	for depth := 0; st != nil && depth <= maxDerivationDepth; depth++ {
		switch {
		case st.Builtin:
			switch st.Name.Local {
			case "ID":
				return kindID
			case "IDREF":
				return kindIDRef
			case "IDREFS":
				return kindIDRefs
			}
			return notID
		case st.List != nil:
			if idKindOf(st.List.Item()) == kindIDRef {
				return kindIDRefs
			}
			return notID
		case st.Restriction != nil:
			st = st.Restriction.BaseType()
		default:
			return notID
		}
	}
	return notID
}

// idTable tracks ID values of one document.
type idTable struct {
	ids map[string]Locatable
}

func newIDTable() *idTable { return &idTable{ids: make(map[string]Locatable)} }

// idValue is an ID-typed value found on an element or attribute.
type idValue struct {
	at    Locatable
	kind  idKind
	value string
}

// idValues returns the ID, IDREF and IDREFS values carried by node.
func idValues(node *XMLElement, ctx *RuleContext) []idValue {
	var out []idValue
	if ec := ctx.Effective(node); ec != nil {
		for _, attr := range node.Attributes() {
			if use, ok := ec.Attribute(attr.Name()); ok {
				if kind := idKindOf(use.ResolvedType()); kind != notID {
					out = append(out, idValue{at: attr, kind: kind, value: attr.Value()})
				}
			}
		}
		if ec.Kind == ContentSimple {
			if kind := idKindOf(ec.SimpleType); kind != notID {
				out = append(out, idValue{at: node, kind: kind, value: node.Text()})
			}
		}
	} else if st, ok := ctx.Type(node).(*SimpleType); ok {
		if kind := idKindOf(st); kind != notID {
			out = append(out, idValue{at: node, kind: kind, value: node.Text()})
		}
	}
	return out
}

// idRule records ID values and reports duplicates.
type idRule struct{ baseRule }

func newIDRule() *idRule {
	return &idRule{baseRule{name: "id", category: RuleIdentity, priority: 40, features: []string{FeatureIDReferences}}}
}

func (r *idRule) Validate(node *XMLElement, decl *Element, ctx *RuleContext) {
	if decl == nil {
		return
	}
	for _, v := range idValues(node, ctx) {
		if v.kind != kindID {
			continue
		}
		id := strings.TrimSpace(v.value)
		if id == "" {
			continue
		}
		if first, dup := ctx.job.ids.ids[id]; dup {
			ctx.Error(v.at, CodeDuplicateID,
				fmt.Sprintf("Duplicate ID value '%s'", id),
				WithContextValue("value", id),
				WithContextValue("first_occurrence", first.Path()))
			continue
		}
		ctx.job.ids.ids[id] = v.at
	}
}

// idRefRule reports IDREF values naming no ID in the document. It runs
// after idRule has seen the whole document.
type idRefRule struct{ baseRule }

func newIDRefRule() *idRefRule {
	return &idRefRule{baseRule{name: "idref", category: RuleIdentity, priority: 50, features: []string{FeatureIDReferences}}}
}

func (r *idRefRule) Validate(node *XMLElement, decl *Element, ctx *RuleContext) {
	if decl == nil {
		return
	}
	for _, v := range idValues(node, ctx) {
		if v.kind == kindID {
			continue
		}
		for _, ref := range strings.Fields(v.value) {
			if _, ok := ctx.job.ids.ids[ref]; !ok {
				ctx.Error(v.at, CodeIDRefNotFound,
					fmt.Sprintf("IDREF value '%s' does not match any ID in the document", ref),
					WithContextValue("value", ref))
			}
		}
	}
}
