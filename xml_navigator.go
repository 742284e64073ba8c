package xsd

import (
	"fmt"
	"strings"

	"github.com/agentflare-ai/go-xmldom"
)

const (
	textNode  = 3
	cdataNode = 4
)

// XMLNavigator wraps a parsed instance document for one validation run.
type XMLNavigator struct {
	doc  xmldom.Document
	root *XMLElement
}

// NewXMLNavigator wraps doc. The navigator owns no schema state.
func NewXMLNavigator(doc xmldom.Document) *XMLNavigator {
	nav := &XMLNavigator{doc: doc}
	if doc != nil {
		if root := doc.DocumentElement(); root != nil {
			nav.root = newXMLElement(root, nil, "/"+string(root.LocalName()))
		}
	}
	return nav
}

// Root returns the document element, or nil for an empty document.
func (n *XMLNavigator) Root() *XMLElement { return n.root }

// XMLElement is an element of the instance document together with the
// XPath that led to it.
type XMLElement struct {
	raw      xmldom.Element
	parent   *XMLElement
	path     string
	children []*XMLElement
	loaded   bool
}

func newXMLElement(raw xmldom.Element, parent *XMLElement, path string) *XMLElement {
	return &XMLElement{raw: raw, parent: parent, path: path}
}

// Raw returns the underlying DOM element.
func (e *XMLElement) Raw() xmldom.Element { return e.raw }

// Parent returns the parent element, nil for the root.
func (e *XMLElement) Parent() *XMLElement { return e.parent }

// Path returns the XPath of the element, e.g. /order/item[2].
func (e *XMLElement) Path() string { return e.path }

// Line returns the 1-based line of the start tag, 0 when unknown.
func (e *XMLElement) Line() int {
	line, _, _ := e.raw.Position()
	return line
}

func (e *XMLElement) LocalName() string { return string(e.raw.LocalName()) }
func (e *XMLElement) Namespace() string { return string(e.raw.NamespaceURI()) }

// Name returns the expanded name of the element.
func (e *XMLElement) Name() QName {
	return QName{Namespace: e.Namespace(), Local: e.LocalName()}
}

// Children returns the child elements in document order. Siblings sharing
// a name get a positional predicate in their path.
func (e *XMLElement) Children() []*XMLElement {
	if e.loaded {
		return e.children
	}
	e.loaded = true

	var raws []xmldom.Element
	counts := make(map[string]int)
	list := e.raw.Children()
	for i := uint(0); i < list.Length(); i++ {
		if child := list.Item(i); child != nil {
			raws = append(raws, child)
			counts[string(child.LocalName())]++
		}
	}

	seen := make(map[string]int)
	for _, child := range raws {
		local := string(child.LocalName())
		seen[local]++
		path := e.path + "/" + local
		if counts[local] > 1 {
			path = fmt.Sprintf("%s[%d]", path, seen[local])
		}
		e.children = append(e.children, newXMLElement(child, e, path))
	}
	return e.children
}

// Text returns the concatenated direct text and CDATA children.
func (e *XMLElement) Text() string {
	var content strings.Builder
	nodes := e.raw.ChildNodes()
	for i := uint(0); i < nodes.Length(); i++ {
		node := nodes.Item(i)
		if node == nil {
			continue
		}
		if t := node.NodeType(); t == textNode || t == cdataNode {
			content.WriteString(string(node.NodeValue()))
		}
	}
	return content.String()
}

// HasText reports whether the element has non-whitespace direct text.
func (e *XMLElement) HasText() bool {
	return strings.TrimSpace(e.Text()) != ""
}

// Attributes returns the attributes of the element, namespace
// declarations excluded.
func (e *XMLElement) Attributes() []*XMLAttribute {
	var out []*XMLAttribute
	attrs := e.raw.Attributes()
	for i := uint(0); i < attrs.Length(); i++ {
		attr := attrs.Item(i)
		if attr == nil {
			continue
		}
		if _, decl := namespaceDeclaration(attr); decl {
			continue
		}
		ns := string(attr.NamespaceURI())
		local := string(attr.LocalName())
		nodeName := string(attr.NodeName())
		if local == "" {
			_, local = splitPrefixed(nodeName)
		}
		out = append(out, &XMLAttribute{
			owner:    e,
			name:     QName{Namespace: ns, Local: local},
			nodeName: nodeName,
			value:    string(attr.NodeValue()),
		})
	}
	return out
}

// Attribute looks up an attribute by expanded name.
func (e *XMLElement) Attribute(name QName) (*XMLAttribute, bool) {
	for _, attr := range e.Attributes() {
		if attr.name == name {
			return attr, true
		}
	}
	return nil, false
}

// XSIAttribute returns the value of an xsi: attribute such as type or nil.
func (e *XMLElement) XSIAttribute(local string) (string, bool) {
	if attr, ok := e.Attribute(QName{Namespace: XSINamespace, Local: local}); ok {
		return attr.value, true
	}
	return "", false
}

// LookupNamespace resolves a prefix against the xmlns declarations in
// scope. The empty prefix yields the default namespace, which is absent
// when nothing declares it.
func (e *XMLElement) LookupNamespace(prefix string) (string, bool) {
	if uri, ok := lookupNamespace(e.raw, prefix); ok {
		return uri, true
	}
	return "", prefix == ""
}

// ResolveQName resolves a prefixed QName value written in the instance.
func (e *XMLElement) ResolveQName(value string) (QName, bool) {
	prefix, local := splitPrefixed(strings.TrimSpace(value))
	ns, ok := e.LookupNamespace(prefix)
	if !ok || local == "" {
		return QName{}, false
	}
	return QName{Namespace: ns, Local: local}, true
}

// XMLAttribute is one attribute of an XMLElement.
type XMLAttribute struct {
	owner    *XMLElement
	name     QName
	nodeName string
	value    string
}

func (a *XMLAttribute) Name() QName        { return a.name }
func (a *XMLAttribute) Value() string      { return a.value }
func (a *XMLAttribute) Owner() *XMLElement { return a.owner }
func (a *XMLAttribute) Path() string       { return a.owner.path + "/@" + a.name.Local }

// Line returns the attribute's line, falling back to its element's.
func (a *XMLAttribute) Line() int {
	if node := a.owner.raw.GetAttributeNode(xmldom.DOMString(a.nodeName)); node != nil {
		if line, _, _ := node.Position(); line > 0 {
			return line
		}
	}
	return a.owner.Line()
}
