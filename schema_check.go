package xsd

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/agentflare-ai/go-xmldom"
)

// SchemaIssue is a problem found in a schema document while loading it.
// Error-severity issues mark constructs the validator cannot honor
// faithfully; warnings are tolerated.
type SchemaIssue struct {
	Code     string   `json:"code" yaml:"code"`
	Severity Severity `json:"severity" yaml:"severity"`
	Location string   `json:"location" yaml:"location"`
	Line     int      `json:"line,omitempty" yaml:"line,omitempty"`
	Message  string   `json:"message" yaml:"message"`
}

func (i SchemaIssue) String() string {
	if i.Line > 0 {
		return fmt.Sprintf("%s:%d: %s: %s", i.Location, i.Line, i.Severity, i.Message)
	}
	return fmt.Sprintf("%s: %s: %s", i.Location, i.Severity, i.Message)
}

var ncNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9._\-]*$`)

// isValidNCName checks if a string is a valid NCName (non-colonized name)
func isValidNCName(s string) bool {
	return s != "" && ncNamePattern.MatchString(s)
}

// schemaChecker walks the raw schema tree looking for constructs that
// violate XSD 1.0 structure rules.
type schemaChecker struct {
	location string
	issues   []SchemaIssue
	ids      map[string]bool
}

// checkSchemaDocument runs the structural sanity checks over a schema root.
func checkSchemaDocument(root xmldom.Element, location string) []SchemaIssue {
	sc := &schemaChecker{location: location, ids: make(map[string]bool)}
	sc.walk(root, true)
	return sc.issues
}

func (sc *schemaChecker) walk(elem xmldom.Element, topLevel bool) {
	if elem == nil {
		return
	}

	if string(elem.NamespaceURI()) == XSDNamespace {
		sc.checkID(elem)
		switch string(elem.LocalName()) {
		case "simpleType":
			sc.checkSimpleType(elem, topLevel)
		case "element":
			sc.checkElementDecl(elem, topLevel)
		case "attribute":
			sc.checkAttributeDecl(elem)
		case "all":
			sc.checkOccurrences(elem)
			sc.checkAll(elem)
		case "sequence", "choice", "any", "group":
			sc.checkOccurrences(elem)
		case "key", "unique", "keyref":
			sc.checkIdentityConstraint(elem)
		case "list":
			sc.checkList(elem)
		case "union":
			if elem.GetAttribute("memberTypes") == "" && len(xsdChildren(elem)) == 0 {
				sc.errorAt(elem, "union must have either 'memberTypes' attribute or inline simpleType elements")
			}
		case "enumeration", "pattern", "length", "minLength", "maxLength",
			"minInclusive", "maxInclusive", "minExclusive", "maxExclusive",
			"totalDigits", "fractionDigits", "whiteSpace":
			if !elem.HasAttribute("value") {
				sc.errorAt(elem, fmt.Sprintf("%s facet must have 'value' attribute", elem.LocalName()))
			}
		}
		if name := string(elem.LocalName()); name == "any" || name == "anyAttribute" {
			switch pc := string(elem.GetAttribute("processContents")); pc {
			case "", "strict", "lax", "skip":
			default:
				sc.errorAt(elem, fmt.Sprintf("invalid processContents value '%s': must be 'strict', 'lax', or 'skip'", pc))
			}
		}
	}

	isSchema := string(elem.LocalName()) == "schema"
	children := elem.Children()
	for i := uint(0); i < children.Length(); i++ {
		sc.walk(children.Item(i), isSchema)
	}
}

func (sc *schemaChecker) checkID(elem xmldom.Element) {
	if !elem.HasAttribute("id") {
		return
	}
	id := string(elem.GetAttribute("id"))
	if !isValidNCName(id) {
		sc.errorAt(elem, fmt.Sprintf("invalid id value '%s': must be a valid NCName", id))
		return
	}
	if sc.ids[id] {
		sc.errorAt(elem, fmt.Sprintf("duplicate id value '%s'", id))
	}
	sc.ids[id] = true
}

func (sc *schemaChecker) checkSimpleType(elem xmldom.Element, topLevel bool) {
	name := string(elem.GetAttribute("name"))
	switch {
	case topLevel && name == "":
		sc.errorAt(elem, "global simpleType must have a name attribute")
	case topLevel && !isValidNCName(name):
		sc.errorAt(elem, fmt.Sprintf("invalid simpleType name '%s': must be a valid NCName", name))
	case !topLevel && name != "":
		sc.warnAt(elem, "local simpleType must not have a name attribute")
	}

	count := 0
	for _, child := range xsdChildren(elem) {
		switch string(child.LocalName()) {
		case "restriction", "list", "union":
			count++
		}
	}
	if count != 1 {
		sc.errorAt(elem, "simpleType must have exactly one of: restriction, list, or union")
	}
}

func (sc *schemaChecker) checkElementDecl(elem xmldom.Element, topLevel bool) {
	name := string(elem.GetAttribute("name"))
	ref := string(elem.GetAttribute("ref"))
	if name != "" && ref != "" {
		sc.errorAt(elem, "element cannot have both 'name' and 'ref' attributes")
	}
	if topLevel && name == "" {
		sc.errorAt(elem, "global element must have a name attribute")
	}
	if name != "" && !isValidNCName(name) {
		sc.errorAt(elem, fmt.Sprintf("invalid element name '%s': must be a valid NCName", name))
	}
	if elem.HasAttribute("default") && elem.HasAttribute("fixed") {
		sc.errorAt(elem, "element cannot have both 'default' and 'fixed' attributes")
	}
	if elem.HasAttribute("type") {
		for _, child := range xsdChildren(elem) {
			if ln := string(child.LocalName()); ln == "simpleType" || ln == "complexType" {
				sc.errorAt(elem, "element cannot have both 'type' attribute and inline type definition")
			}
		}
	}
	if !topLevel {
		sc.checkOccurrences(elem)
	}
}

func (sc *schemaChecker) checkAttributeDecl(elem xmldom.Element) {
	name := string(elem.GetAttribute("name"))
	if name != "" && elem.GetAttribute("ref") != "" {
		sc.errorAt(elem, "attribute cannot have both 'name' and 'ref' attributes")
	}
	if name != "" && !isValidNCName(name) {
		sc.errorAt(elem, fmt.Sprintf("invalid attribute name '%s': must be a valid NCName", name))
	}
	switch use := AttributeUse(elem.GetAttribute("use")); use {
	case "", OptionalUse, RequiredUse, ProhibitedUse:
	default:
		sc.errorAt(elem, fmt.Sprintf("invalid use value '%s': must be 'optional', 'required', or 'prohibited'", use))
	}
	if elem.HasAttribute("default") && elem.HasAttribute("fixed") {
		sc.errorAt(elem, "attribute cannot have both 'default' and 'fixed' attributes")
	}
}

// checkOccurrences enforces minOccurs <= maxOccurs when bounded
func (sc *schemaChecker) checkOccurrences(elem xmldom.Element) {
	minVal, maxVal := 1, 1
	if v := strings.TrimSpace(string(elem.GetAttribute("minOccurs"))); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			sc.errorAt(elem, fmt.Sprintf("invalid minOccurs value '%s': must be non-negative integer", v))
			return
		}
		minVal = n
	}
	if v := strings.TrimSpace(string(elem.GetAttribute("maxOccurs"))); v != "" {
		if v == "unbounded" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			sc.errorAt(elem, fmt.Sprintf("invalid maxOccurs value '%s': must be non-negative integer or 'unbounded'", v))
			return
		}
		maxVal = n
	}
	if minVal > maxVal {
		sc.errorAt(elem, fmt.Sprintf("minOccurs (%d) cannot be greater than maxOccurs (%d)", minVal, maxVal))
	}
}

func (sc *schemaChecker) checkAll(elem xmldom.Element) {
	if v := string(elem.GetAttribute("maxOccurs")); v != "" && v != "1" {
		sc.errorAt(elem, "xs:all maxOccurs must be 1")
	}
	for _, child := range xsdChildren(elem) {
		if string(child.LocalName()) != "element" {
			continue
		}
		if v := string(child.GetAttribute("maxOccurs")); v != "" && v != "0" && v != "1" {
			sc.errorAt(child, "elements within xs:all must have maxOccurs of 0 or 1")
		}
	}
}

func (sc *schemaChecker) checkIdentityConstraint(elem xmldom.Element) {
	kind := string(elem.LocalName())
	if name := string(elem.GetAttribute("name")); !isValidNCName(name) {
		sc.errorAt(elem, fmt.Sprintf("%s must have a valid 'name' attribute", kind))
	}
	if kind == "keyref" && elem.GetAttribute("refer") == "" {
		sc.errorAt(elem, "keyref must have 'refer' attribute")
	}

	selectors, fields := 0, 0
	for _, child := range xsdChildren(elem) {
		switch string(child.LocalName()) {
		case "selector":
			selectors++
		case "field":
			fields++
		default:
			continue
		}
		if child.GetAttribute("xpath") == "" {
			sc.errorAt(child, fmt.Sprintf("%s must have 'xpath' attribute", child.LocalName()))
		}
	}
	if selectors != 1 {
		sc.errorAt(elem, fmt.Sprintf("%s must have a selector child element", kind))
	}
	if fields == 0 {
		sc.errorAt(elem, fmt.Sprintf("%s must have at least one field child element", kind))
	}
}

func (sc *schemaChecker) checkList(elem xmldom.Element) {
	hasItemType := elem.GetAttribute("itemType") != ""
	hasInline := false
	for _, child := range xsdChildren(elem) {
		if string(child.LocalName()) == "simpleType" {
			hasInline = true
		}
	}
	switch {
	case !hasItemType && !hasInline:
		sc.errorAt(elem, "list must have either 'itemType' attribute or inline simpleType element")
	case hasItemType && hasInline:
		sc.errorAt(elem, "list cannot have both 'itemType' attribute and inline simpleType element")
	}
}

func (sc *schemaChecker) errorAt(elem xmldom.Element, msg string) {
	sc.add(elem, SeverityError, msg)
}

func (sc *schemaChecker) warnAt(elem xmldom.Element, msg string) {
	sc.add(elem, SeverityWarning, msg)
}

func (sc *schemaChecker) add(elem xmldom.Element, sev Severity, msg string) {
	label := fmt.Sprintf("<%s", elem.LocalName())
	if name := elem.GetAttribute("name"); name != "" {
		label += fmt.Sprintf(" name='%s'", name)
	} else if ref := elem.GetAttribute("ref"); ref != "" {
		label += fmt.Sprintf(" ref='%s'", ref)
	}
	label += ">"

	line, _, _ := elem.Position()
	sc.issues = append(sc.issues, SchemaIssue{
		Code:     CodeSchemaInvalid,
		Severity: sev,
		Location: sc.location,
		Line:     line,
		Message:  fmt.Sprintf("%s: %s", label, msg),
	})
}
