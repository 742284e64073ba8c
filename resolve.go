package xsd

import (
	"fmt"
	"strings"
)

// linker binds every named reference in the parsed schemas to its
// definition. It runs once, inside Repository.Resolve.
type linker struct {
	repo         *Repository
	schema       *Schema
	issues       []SchemaIssue
	complexTypes []*ComplexType
}

func (l *linker) run() {
	for _, schema := range l.repo.schemas {
		l.schema = schema
		for _, st := range schema.SimpleTypes {
			l.simpleType(st)
		}
		for _, ct := range schema.ComplexTypes {
			l.complexType(ct)
		}
		for _, el := range schema.Elements {
			l.element(el)
		}
		for _, attr := range schema.Attributes {
			l.attribute(attr)
		}
		for _, g := range schema.Groups {
			if g.Model != nil {
				l.modelGroup(g.Model)
			}
		}
		for _, ag := range schema.AttributeGroups {
			for _, attr := range ag.Attributes {
				l.attribute(attr)
			}
		}
	}
	l.inheritSubstitutionTypes()
}

func (l *linker) unresolved(kind string, name QName, referrer string) {
	msg := fmt.Sprintf("%s '%s' referenced by %s not found", kind, name, referrer)
	if suggestions := l.repo.suggest(name.Local); len(suggestions) > 0 {
		msg += ". Did you mean: " + strings.Join(suggestions, ", ") + "?"
	}
	l.issues = append(l.issues, SchemaIssue{
		Code:     CodeTypeNotFound,
		Severity: SeverityWarning,
		Location: l.schema.Location,
		Message:  msg,
	})
}

func (l *linker) element(el *Element) {
	if el.IsReference() {
		el.target = l.repo.lookupElement(el.Ref)
		if el.target == nil {
			l.unresolved("element", el.Ref, "an element reference")
		}
		return
	}

	switch {
	case el.Inline != nil:
		el.resolvedType = el.Inline
		switch t := el.Inline.(type) {
		case *ComplexType:
			l.complexType(t)
		case *SimpleType:
			l.simpleType(t)
		}
	case !el.TypeRef.IsZero():
		el.resolvedType = l.repo.lookupType(el.TypeRef)
		if el.resolvedType == nil {
			l.unresolved("type", el.TypeRef, "element '"+el.Name.String()+"'")
		}
	case !el.SubstitutionGroup.IsZero():
		// typed from the head in inheritSubstitutionTypes
	default:
		el.resolvedType = l.repo.anyType
	}
}

// inheritSubstitutionTypes gives untyped substitution group members the
// type of their head, following chains of heads.
func (l *linker) inheritSubstitutionTypes() {
	for _, schema := range l.repo.schemas {
		for _, el := range schema.Elements {
			if el.resolvedType != nil || el.SubstitutionGroup.IsZero() {
				continue
			}
			head := l.repo.lookupElement(el.SubstitutionGroup)
			for depth := 0; head != nil && head.resolvedType == nil && !head.SubstitutionGroup.IsZero() && depth < 32; depth++ {
				head = l.repo.lookupElement(head.SubstitutionGroup)
			}
			if head != nil && head.resolvedType != nil {
				el.resolvedType = head.resolvedType
			} else {
				el.resolvedType = l.repo.anyType
			}
		}
	}
}

func (l *linker) complexType(ct *ComplexType) {
	l.complexTypes = append(l.complexTypes, ct)
	for _, attr := range ct.Attributes {
		l.attribute(attr)
	}

	switch content := ct.Content.(type) {
	case *ModelGroup:
		l.modelGroup(content)
	case *SimpleContent:
		content.baseType = l.repo.lookupType(content.Base)
		if content.baseType == nil {
			l.unresolved("base type", content.Base, "simple content of "+typeLabel(ct.Name))
		}
		for _, attr := range content.Attributes {
			l.attribute(attr)
		}
	case *ComplexContent:
		content.baseType = l.repo.lookupType(content.Base)
		if content.baseType == nil {
			l.unresolved("base type", content.Base, "complex content of "+typeLabel(ct.Name))
		}
		if content.Particle != nil {
			l.modelGroup(content.Particle)
		}
		for _, attr := range content.Attributes {
			l.attribute(attr)
		}
	}
}

func (l *linker) modelGroup(mg *ModelGroup) {
	for _, p := range mg.Particles {
		switch particle := p.(type) {
		case *Element:
			l.element(particle)
		case *Group:
			if !particle.Ref.IsZero() {
				particle.target = l.repo.lookupGroup(particle.Ref)
				if particle.target == nil {
					l.unresolved("group", particle.Ref, "a group reference")
				}
			}
		case *ModelGroup:
			l.modelGroup(particle)
		case *Wildcard:
		}
	}
}

func (l *linker) simpleType(st *SimpleType) {
	switch {
	case st.Restriction != nil:
		r := st.Restriction
		r.compiled = newFacetSet(r.Facets, l.repo.patterns)
		if r.Inline != nil {
			l.simpleType(r.Inline)
			return
		}
		r.baseType = l.lookupSimple(r.Base, "restriction of "+typeLabel(st.Name))
	case st.List != nil:
		if st.List.Inline != nil {
			l.simpleType(st.List.Inline)
			return
		}
		st.List.itemType = l.lookupSimple(st.List.ItemType, "list "+typeLabel(st.Name))
	case st.Union != nil:
		st.Union.members = nil
		for _, name := range st.Union.MemberTypes {
			if member := l.lookupSimple(name, "union "+typeLabel(st.Name)); member != nil {
				st.Union.members = append(st.Union.members, member)
			}
		}
		for _, inline := range st.Union.Inline {
			l.simpleType(inline)
			st.Union.members = append(st.Union.members, inline)
		}
	}
}

func (l *linker) lookupSimple(name QName, referrer string) *SimpleType {
	if name.IsZero() {
		return nil
	}
	if st, ok := l.repo.lookupType(name).(*SimpleType); ok {
		return st
	}
	l.unresolved("simple type", name, referrer)
	return nil
}

func (l *linker) attribute(attr *Attribute) {
	switch {
	case !attr.Ref.IsZero():
		attr.target = l.repo.lookupAttribute(attr.Ref)
		if attr.target == nil {
			l.unresolved("attribute", attr.Ref, "an attribute reference")
		}
	case attr.Inline != nil:
		l.simpleType(attr.Inline)
	case !attr.TypeRef.IsZero():
		attr.resolvedType = l.lookupSimple(attr.TypeRef, "attribute '"+attr.Name.String()+"'")
	default:
		attr.resolvedType = l.repo.builtinType("anySimpleType")
	}
}

func typeLabel(name QName) string {
	if name.IsZero() {
		return "an anonymous type"
	}
	return "type '" + name.String() + "'"
}
