package xsd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agentflare-ai/go-xmldom"
)

var knownFacets = map[string]FacetKind{
	"length":         FacetLength,
	"minLength":      FacetMinLength,
	"maxLength":      FacetMaxLength,
	"pattern":        FacetPattern,
	"enumeration":    FacetEnumeration,
	"minInclusive":   FacetMinInclusive,
	"maxInclusive":   FacetMaxInclusive,
	"minExclusive":   FacetMinExclusive,
	"maxExclusive":   FacetMaxExclusive,
	"totalDigits":    FacetTotalDigits,
	"fractionDigits": FacetFractionDigits,
	"whiteSpace":     FacetWhiteSpace,
}

// schemaParser turns one xs:schema document into a Schema
type schemaParser struct {
	schema *Schema
	issues []SchemaIssue
}

// ParseSchema parses an XSD schema from an XML document. location is
// recorded on the schema and on every issue found while parsing.
func ParseSchema(doc xmldom.Document, location string) (*Schema, []SchemaIssue, error) {
	if doc == nil {
		return nil, nil, fmt.Errorf("nil document")
	}

	root := doc.DocumentElement()
	if root == nil {
		return nil, nil, fmt.Errorf("no root element")
	}

	if string(root.NamespaceURI()) != XSDNamespace || string(root.LocalName()) != "schema" {
		return nil, nil, fmt.Errorf("not an XSD schema document: root is %s",
			QName{Namespace: string(root.NamespaceURI()), Local: string(root.LocalName())})
	}

	p := &schemaParser{
		schema: &Schema{
			TargetNamespace:        string(root.GetAttribute("targetNamespace")),
			Location:               location,
			Namespaces:             namespaceDeclarations(root),
			ElementFormQualified:   string(root.GetAttribute("elementFormDefault")) == "qualified",
			AttributeFormQualified: string(root.GetAttribute("attributeFormDefault")) == "qualified",
		},
	}

	for _, child := range xsdChildren(root) {
		switch string(child.LocalName()) {
		case "element":
			if el := p.parseElement(child, true); el != nil {
				p.schema.Elements = append(p.schema.Elements, el)
			}
		case "attribute":
			if attr := p.parseAttribute(child, true); attr != nil {
				p.schema.Attributes = append(p.schema.Attributes, attr)
			}
		case "simpleType":
			if st := p.parseSimpleType(child); st != nil {
				p.schema.SimpleTypes = append(p.schema.SimpleTypes, st)
			}
		case "complexType":
			if ct := p.parseComplexType(child); ct != nil {
				p.schema.ComplexTypes = append(p.schema.ComplexTypes, ct)
			}
		case "group":
			if g := p.parseGroupDefinition(child); g != nil {
				p.schema.Groups = append(p.schema.Groups, g)
			}
		case "attributeGroup":
			if ag := p.parseAttributeGroup(child); ag != nil {
				p.schema.AttributeGroups = append(p.schema.AttributeGroups, ag)
			}
		case "import":
			p.schema.Imports = append(p.schema.Imports, Import{
				Namespace:      string(child.GetAttribute("namespace")),
				SchemaLocation: string(child.GetAttribute("schemaLocation")),
			})
		case "include", "redefine":
			if loc := string(child.GetAttribute("schemaLocation")); loc != "" {
				p.schema.Includes = append(p.schema.Includes, loc)
			}
		}
	}

	p.issues = append(p.issues, checkSchemaDocument(root, location)...)
	return p.schema, p.issues, nil
}

// namespaceDeclaration reports whether attr declares a namespace and for
// which prefix. The decoder stores xmlns:p as an attribute named p in the
// "xmlns" namespace and xmlns="..." as an attribute named xmlns.
func namespaceDeclaration(attr xmldom.Node) (string, bool) {
	name := string(attr.NodeName())
	switch space := string(attr.NamespaceURI()); {
	case name == "xmlns":
		return "", true
	case space == "xmlns" || space == xmlnsNamespace:
		return string(attr.LocalName()), true
	case strings.HasPrefix(name, "xmlns:"):
		return name[len("xmlns:"):], true
	}
	return "", false
}

// namespaceDeclarations collects the xmlns declarations of an element
func namespaceDeclarations(elem xmldom.Element) map[string]string {
	ns := make(map[string]string)
	attrs := elem.Attributes()
	if attrs == nil {
		return ns
	}
	for i := uint(0); i < attrs.Length(); i++ {
		attr := attrs.Item(i)
		if attr == nil {
			continue
		}
		if prefix, ok := namespaceDeclaration(attr); ok {
			ns[prefix] = string(attr.NodeValue())
		}
	}
	return ns
}

// inScopeNamespaces collects the declarations visible at elem; inner
// declarations shadow outer ones.
func inScopeNamespaces(elem xmldom.Element) map[string]string {
	out := make(map[string]string)
	for cur := elem; cur != nil; cur = parentElement(cur) {
		for prefix, uri := range namespaceDeclarations(cur) {
			if _, shadowed := out[prefix]; !shadowed {
				out[prefix] = uri
			}
		}
	}
	return out
}

// lookupNamespace resolves prefix against the declarations in scope at
// elem, innermost first. The xml prefix is always bound.
func lookupNamespace(elem xmldom.Element, prefix string) (string, bool) {
	for cur := elem; cur != nil; cur = parentElement(cur) {
		attrs := cur.Attributes()
		if attrs == nil {
			continue
		}
		for i := uint(0); i < attrs.Length(); i++ {
			attr := attrs.Item(i)
			if attr == nil {
				continue
			}
			if p, ok := namespaceDeclaration(attr); ok && p == prefix {
				return string(attr.NodeValue()), true
			}
		}
	}
	if prefix == "xml" {
		return xmlNamespace, true
	}
	return "", false
}

func parentElement(elem xmldom.Element) xmldom.Element {
	parent, ok := elem.ParentNode().(xmldom.Element)
	if !ok {
		return nil
	}
	return parent
}

// xsdChildren returns the child elements in the XSD namespace, skipping annotations
func xsdChildren(elem xmldom.Element) []xmldom.Element {
	var out []xmldom.Element
	children := elem.Children()
	for i := uint(0); i < children.Length(); i++ {
		child := children.Item(i)
		if child == nil || string(child.NamespaceURI()) != XSDNamespace {
			continue
		}
		if string(child.LocalName()) == "annotation" {
			continue
		}
		out = append(out, child)
	}
	return out
}

// resolveQName resolves a prefixed name against the declarations in scope
// at elem. An unprefixed name without a default namespace belongs to the
// target namespace. An undeclared prefix is reported and the name is kept
// whole so that it never binds.
func (p *schemaParser) resolveQName(elem xmldom.Element, name string) QName {
	name = strings.TrimSpace(name)
	if name == "" {
		return QName{}
	}

	prefix, local := splitPrefixed(name)
	if elem != nil {
		if uri, ok := lookupNamespace(elem, prefix); ok {
			return QName{Namespace: uri, Local: local}
		}
	}
	if uri, ok := p.schema.Namespaces[prefix]; ok {
		return QName{Namespace: uri, Local: local}
	}
	if prefix == "" {
		return QName{Namespace: p.schema.TargetNamespace, Local: local}
	}

	line := 0
	if elem != nil {
		line, _, _ = elem.Position()
	}
	p.issues = append(p.issues, SchemaIssue{
		Code:     CodeSchemaInvalid,
		Severity: SeverityError,
		Location: p.schema.Location,
		Line:     line,
		Message:  fmt.Sprintf("undeclared namespace prefix '%s' in '%s'", prefix, name),
	})
	return QName{Local: name}
}

// parseOccurs parses minOccurs/maxOccurs attributes
func parseOccurs(elem xmldom.Element) Occurs {
	o := DefaultOccurs
	if v := strings.TrimSpace(string(elem.GetAttribute("minOccurs"))); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			o.Min = n
		}
	}
	if v := strings.TrimSpace(string(elem.GetAttribute("maxOccurs"))); v != "" {
		if v == "unbounded" {
			o.Max = Unbounded
		} else if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			o.Max = n
		}
	}
	return o
}

func (p *schemaParser) parseElement(elem xmldom.Element, global bool) *Element {
	el := &Element{
		Occurs:   DefaultOccurs,
		Global:   global,
		Nillable: string(elem.GetAttribute("nillable")) == "true",
		Abstract: string(elem.GetAttribute("abstract")) == "true",
		Default:  string(elem.GetAttribute("default")),
		Schema:   p.schema,
	}
	if !global {
		el.Occurs = parseOccurs(elem)
	}
	if elem.HasAttribute("fixed") {
		el.Fixed = string(elem.GetAttribute("fixed"))
		el.HasFixed = true
	}

	if ref := string(elem.GetAttribute("ref")); ref != "" {
		el.Ref = p.resolveQName(elem, ref)
		return el
	}

	name := string(elem.GetAttribute("name"))
	if name == "" {
		return nil
	}
	el.Name = QName{Local: name}
	form := string(elem.GetAttribute("form"))
	if global || form == "qualified" || (form == "" && p.schema.ElementFormQualified) {
		el.Name.Namespace = p.schema.TargetNamespace
	}

	if typeName := string(elem.GetAttribute("type")); typeName != "" {
		el.TypeRef = p.resolveQName(elem, typeName)
	}
	if sg := string(elem.GetAttribute("substitutionGroup")); sg != "" {
		el.SubstitutionGroup = p.resolveQName(elem, sg)
	}

	for _, child := range xsdChildren(elem) {
		switch string(child.LocalName()) {
		case "simpleType":
			el.Inline = p.parseSimpleType(child)
		case "complexType":
			el.Inline = p.parseComplexType(child)
		case "key":
			el.Constraints = append(el.Constraints, p.parseIdentityConstraint(child, KeyConstraint))
		case "keyref":
			el.Constraints = append(el.Constraints, p.parseIdentityConstraint(child, KeyRefConstraint))
		case "unique":
			el.Constraints = append(el.Constraints, p.parseIdentityConstraint(child, UniqueConstraint))
		}
	}

	return el
}

func (p *schemaParser) parseAttribute(elem xmldom.Element, global bool) *Attribute {
	attr := &Attribute{
		Use:     OptionalUse,
		Default: string(elem.GetAttribute("default")),
		Global:  global,
		Schema:  p.schema,
	}
	if use := string(elem.GetAttribute("use")); use != "" {
		attr.Use = AttributeUse(use)
	}
	if elem.HasAttribute("fixed") {
		attr.Fixed = string(elem.GetAttribute("fixed"))
		attr.HasFixed = true
	}

	if ref := string(elem.GetAttribute("ref")); ref != "" {
		attr.Ref = p.resolveQName(elem, ref)
		return attr
	}

	name := string(elem.GetAttribute("name"))
	if name == "" {
		return nil
	}
	attr.Name = QName{Local: name}
	form := string(elem.GetAttribute("form"))
	if global || form == "qualified" || (form == "" && p.schema.AttributeFormQualified) {
		attr.Name.Namespace = p.schema.TargetNamespace
	}

	if typeName := string(elem.GetAttribute("type")); typeName != "" {
		attr.TypeRef = p.resolveQName(elem, typeName)
	}
	for _, child := range xsdChildren(elem) {
		if string(child.LocalName()) == "simpleType" {
			attr.Inline = p.parseSimpleType(child)
		}
	}

	return attr
}

func (p *schemaParser) parseSimpleType(elem xmldom.Element) *SimpleType {
	st := &SimpleType{Schema: p.schema}
	if name := string(elem.GetAttribute("name")); name != "" {
		st.Name = QName{Namespace: p.schema.TargetNamespace, Local: name}
	}

	for _, child := range xsdChildren(elem) {
		switch string(child.LocalName()) {
		case "restriction":
			st.Restriction = p.parseSimpleRestriction(child)
		case "list":
			list := &List{}
			if itemType := string(child.GetAttribute("itemType")); itemType != "" {
				list.ItemType = p.resolveQName(child, itemType)
			}
			for _, c := range xsdChildren(child) {
				if string(c.LocalName()) == "simpleType" {
					list.Inline = p.parseSimpleType(c)
				}
			}
			st.List = list
		case "union":
			union := &Union{}
			for _, member := range strings.Fields(string(child.GetAttribute("memberTypes"))) {
				union.MemberTypes = append(union.MemberTypes, p.resolveQName(child, member))
			}
			for _, c := range xsdChildren(child) {
				if string(c.LocalName()) == "simpleType" {
					union.Inline = append(union.Inline, p.parseSimpleType(c))
				}
			}
			st.Union = union
		}
	}

	return st
}

func (p *schemaParser) parseSimpleRestriction(elem xmldom.Element) *SimpleRestriction {
	r := &SimpleRestriction{}
	if base := string(elem.GetAttribute("base")); base != "" {
		r.Base = p.resolveQName(elem, base)
	}
	for _, child := range xsdChildren(elem) {
		if string(child.LocalName()) == "simpleType" {
			r.Inline = p.parseSimpleType(child)
			continue
		}
		if facet, ok := p.parseFacet(child); ok {
			r.Facets = append(r.Facets, facet)
		}
	}
	return r
}

// parseFacet parses one facet child; non-facet children that are not
// otherwise understood are recorded as unknown facets.
func (p *schemaParser) parseFacet(elem xmldom.Element) (Facet, bool) {
	name := string(elem.LocalName())
	kind, ok := knownFacets[name]
	if !ok {
		switch name {
		case "attribute", "attributeGroup", "anyAttribute", "sequence", "choice", "all", "group", "simpleType":
			return Facet{}, false
		}
		p.issues = append(p.issues, SchemaIssue{
			Code:     CodeUnknownFacet,
			Severity: SeverityWarning,
			Location: p.schema.Location,
			Message:  fmt.Sprintf("unknown facet '%s' ignored", name),
		})
		return Facet{}, false
	}
	return Facet{Kind: kind, Value: string(elem.GetAttribute("value"))}, true
}

func (p *schemaParser) parseComplexType(elem xmldom.Element) *ComplexType {
	ct := &ComplexType{
		Mixed:    string(elem.GetAttribute("mixed")) == "true",
		Abstract: string(elem.GetAttribute("abstract")) == "true",
		Content:  EmptyContent{},
		Schema:   p.schema,
	}
	if name := string(elem.GetAttribute("name")); name != "" {
		ct.Name = QName{Namespace: p.schema.TargetNamespace, Local: name}
	}

	for _, child := range xsdChildren(elem) {
		switch string(child.LocalName()) {
		case "simpleContent":
			ct.Content = p.parseSimpleContent(child)
		case "complexContent":
			cc := p.parseComplexContent(child)
			if cc.Mixed {
				ct.Mixed = true
			}
			ct.Content = cc
		case "sequence", "choice", "all":
			ct.Content = p.parseModelGroup(child)
		case "group":
			if g := p.parseGroupRef(child); g != nil {
				ct.Content = &ModelGroup{Compositor: Sequence, Occurs: DefaultOccurs, Particles: []Particle{g}}
			}
		case "attribute":
			if attr := p.parseAttribute(child, false); attr != nil {
				ct.Attributes = append(ct.Attributes, attr)
			}
		case "attributeGroup":
			if ref := string(child.GetAttribute("ref")); ref != "" {
				ct.AttributeGroups = append(ct.AttributeGroups, p.resolveQName(child, ref))
			}
		case "anyAttribute":
			ct.AnyAttribute = p.parseWildcard(child)
		}
	}

	return ct
}

func (p *schemaParser) parseSimpleContent(elem xmldom.Element) *SimpleContent {
	sc := &SimpleContent{}
	for _, child := range xsdChildren(elem) {
		switch string(child.LocalName()) {
		case "extension":
			sc.Derivation = DerivationExtension
		case "restriction":
			sc.Derivation = DerivationRestriction
		default:
			continue
		}
		sc.Base = p.resolveQName(child, string(child.GetAttribute("base")))
		for _, c := range xsdChildren(child) {
			switch string(c.LocalName()) {
			case "attribute":
				if attr := p.parseAttribute(c, false); attr != nil {
					sc.Attributes = append(sc.Attributes, attr)
				}
			case "attributeGroup":
				if ref := string(c.GetAttribute("ref")); ref != "" {
					sc.AttributeGroups = append(sc.AttributeGroups, p.resolveQName(c, ref))
				}
			case "anyAttribute":
				sc.AnyAttribute = p.parseWildcard(c)
			default:
				if facet, ok := p.parseFacet(c); ok {
					sc.Facets = append(sc.Facets, facet)
				}
			}
		}
	}
	return sc
}

func (p *schemaParser) parseComplexContent(elem xmldom.Element) *ComplexContent {
	cc := &ComplexContent{Mixed: string(elem.GetAttribute("mixed")) == "true"}
	for _, child := range xsdChildren(elem) {
		switch string(child.LocalName()) {
		case "extension":
			cc.Derivation = DerivationExtension
		case "restriction":
			cc.Derivation = DerivationRestriction
		default:
			continue
		}
		cc.Base = p.resolveQName(child, string(child.GetAttribute("base")))
		for _, c := range xsdChildren(child) {
			switch string(c.LocalName()) {
			case "sequence", "choice", "all":
				cc.Particle = p.parseModelGroup(c)
			case "group":
				if g := p.parseGroupRef(c); g != nil {
					cc.Particle = &ModelGroup{Compositor: Sequence, Occurs: DefaultOccurs, Particles: []Particle{g}}
				}
			case "attribute":
				if attr := p.parseAttribute(c, false); attr != nil {
					cc.Attributes = append(cc.Attributes, attr)
				}
			case "attributeGroup":
				if ref := string(c.GetAttribute("ref")); ref != "" {
					cc.AttributeGroups = append(cc.AttributeGroups, p.resolveQName(c, ref))
				}
			case "anyAttribute":
				cc.AnyAttribute = p.parseWildcard(c)
			}
		}
	}
	return cc
}

func (p *schemaParser) parseModelGroup(elem xmldom.Element) *ModelGroup {
	mg := &ModelGroup{Occurs: parseOccurs(elem)}
	switch string(elem.LocalName()) {
	case "choice":
		mg.Compositor = Choice
	case "all":
		mg.Compositor = All
	default:
		mg.Compositor = Sequence
	}

	for _, child := range xsdChildren(elem) {
		switch string(child.LocalName()) {
		case "element":
			if el := p.parseElement(child, false); el != nil {
				mg.Particles = append(mg.Particles, el)
			}
		case "group":
			if g := p.parseGroupRef(child); g != nil {
				mg.Particles = append(mg.Particles, g)
			}
		case "sequence", "choice", "all":
			mg.Particles = append(mg.Particles, p.parseModelGroup(child))
		case "any":
			w := p.parseWildcard(child)
			w.Occurs = parseOccurs(child)
			mg.Particles = append(mg.Particles, w)
		}
	}

	return mg
}

func (p *schemaParser) parseGroupRef(elem xmldom.Element) *Group {
	ref := string(elem.GetAttribute("ref"))
	if ref == "" {
		return nil
	}
	return &Group{Ref: p.resolveQName(elem, ref), Occurs: parseOccurs(elem), Schema: p.schema}
}

func (p *schemaParser) parseGroupDefinition(elem xmldom.Element) *Group {
	name := string(elem.GetAttribute("name"))
	if name == "" {
		return nil
	}
	g := &Group{
		Name:   QName{Namespace: p.schema.TargetNamespace, Local: name},
		Occurs: DefaultOccurs,
		Schema: p.schema,
	}
	for _, child := range xsdChildren(elem) {
		switch string(child.LocalName()) {
		case "sequence", "choice", "all":
			g.Model = p.parseModelGroup(child)
		}
	}
	return g
}

func (p *schemaParser) parseAttributeGroup(elem xmldom.Element) *AttributeGroup {
	name := string(elem.GetAttribute("name"))
	if name == "" {
		return nil
	}
	ag := &AttributeGroup{
		Name:   QName{Namespace: p.schema.TargetNamespace, Local: name},
		Schema: p.schema,
	}
	for _, child := range xsdChildren(elem) {
		switch string(child.LocalName()) {
		case "attribute":
			if attr := p.parseAttribute(child, false); attr != nil {
				ag.Attributes = append(ag.Attributes, attr)
			}
		case "attributeGroup":
			if ref := string(child.GetAttribute("ref")); ref != "" {
				ag.AttributeGroups = append(ag.AttributeGroups, p.resolveQName(child, ref))
			}
		case "anyAttribute":
			ag.AnyAttribute = p.parseWildcard(child)
		}
	}
	return ag
}

func (p *schemaParser) parseWildcard(elem xmldom.Element) *Wildcard {
	w := &Wildcard{
		Namespace:       string(elem.GetAttribute("namespace")),
		ProcessContents: ProcessContentsMode(elem.GetAttribute("processContents")),
		Occurs:          DefaultOccurs,
		TargetNamespace: p.schema.TargetNamespace,
	}
	if w.Namespace == "" {
		w.Namespace = "##any"
	}
	if w.ProcessContents == "" {
		w.ProcessContents = StrictProcess
	}
	return w
}

func (p *schemaParser) parseIdentityConstraint(elem xmldom.Element, category ConstraintCategory) *IdentityConstraint {
	ic := &IdentityConstraint{
		Name:       QName{Namespace: p.schema.TargetNamespace, Local: string(elem.GetAttribute("name"))},
		Category:   category,
		Namespaces: inScopeNamespaces(elem),
	}
	if category == KeyRefConstraint {
		if refer := string(elem.GetAttribute("refer")); refer != "" {
			ic.Refer = p.resolveQName(elem, refer)
		}
	}

	for _, child := range xsdChildren(elem) {
		switch string(child.LocalName()) {
		case "selector":
			ic.Selector = string(child.GetAttribute("xpath"))
		case "field":
			ic.Fields = append(ic.Fields, string(child.GetAttribute("xpath")))
		}
	}
	return ic
}
