package xsd

import (
	"fmt"
	"strings"
)

// xpathStep is one location step of the identity-constraint XPath subset.
type xpathStep struct {
	self      bool
	attribute bool
	wildcard  bool // * or prefix:*
	prefixed  bool
	name      QName
}

// xpathPath is one branch of a union.
type xpathPath struct {
	descendant bool // leading .// or //
	steps      []xpathStep
}

// xpathExpr is a compiled selector or field expression. It supports the
// restricted XPath of XML Schema identity constraints: child and attribute
// steps, ".", "*", "prefix:*", a leading ".//" and "|" unions.
type xpathExpr struct {
	source string
	paths  []xpathPath
}

func compileXPath(expr string, namespaces map[string]string) (*xpathExpr, error) {
	x := &xpathExpr{source: expr}
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("empty XPath expression")
	}
	for _, branch := range strings.Split(expr, "|") {
		branch = strings.TrimSpace(branch)
		var p xpathPath
		switch {
		case strings.HasPrefix(branch, ".//"):
			p.descendant = true
			branch = branch[3:]
		case strings.HasPrefix(branch, "//"):
			p.descendant = true
			branch = branch[2:]
		case strings.HasPrefix(branch, "/"):
			branch = branch[1:]
		}
		if branch == "" {
			return nil, fmt.Errorf("incomplete XPath expression %q", expr)
		}
		for _, raw := range strings.Split(branch, "/") {
			step, err := compileStep(strings.TrimSpace(raw), namespaces)
			if err != nil {
				return nil, fmt.Errorf("XPath %q: %w", expr, err)
			}
			p.steps = append(p.steps, step)
		}
		for i, step := range p.steps {
			if step.attribute && i != len(p.steps)-1 {
				return nil, fmt.Errorf("XPath %q: attribute step must be last", expr)
			}
		}
		x.paths = append(x.paths, p)
	}
	return x, nil
}

func compileStep(raw string, namespaces map[string]string) (xpathStep, error) {
	var step xpathStep
	switch {
	case raw == "." || raw == "self::node()":
		step.self = true
		return step, nil
	case strings.HasPrefix(raw, "@"):
		step.attribute = true
		raw = raw[1:]
	case strings.HasPrefix(raw, "attribute::"):
		step.attribute = true
		raw = strings.TrimPrefix(raw, "attribute::")
	case strings.HasPrefix(raw, "child::"):
		raw = strings.TrimPrefix(raw, "child::")
	}
	if raw == "" {
		return step, fmt.Errorf("empty step")
	}
	if raw == "*" {
		step.wildcard = true
		return step, nil
	}

	prefix, local := splitPrefixed(raw)
	if prefix != "" {
		uri, ok := namespaces[prefix]
		if !ok {
			return step, fmt.Errorf("undeclared prefix %q", prefix)
		}
		step.prefixed = true
		step.name = QName{Namespace: uri, Local: local}
		step.wildcard = local == "*"
		return step, nil
	}
	if !isValidNCName(local) {
		return step, fmt.Errorf("invalid name test %q", raw)
	}
	step.name = QName{Local: local}
	return step, nil
}

// matches tests a name against the step. An unprefixed attribute test
// matches only attributes in no namespace; an unprefixed element test
// compares local names, so unqualified selectors still reach children of
// a target namespace.
func (s xpathStep) matches(name QName) bool {
	switch {
	case s.wildcard && s.prefixed:
		return name.Namespace == s.name.Namespace
	case s.wildcard:
		return true
	case s.prefixed, s.attribute:
		return name == s.name
	}
	return name.Local == s.name.Local
}

// selectElements returns the elements the expression selects from ctx, in
// document order per branch and without duplicates.
func (x *xpathExpr) selectElements(ctx *XMLElement) []*XMLElement {
	seen := make(map[*XMLElement]bool)
	var out []*XMLElement
	for _, p := range x.paths {
		elems, _ := p.evaluate(ctx)
		for _, e := range elems {
			if !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	return out
}

// values returns the whitespace-collapsed values of the nodes the
// expression selects from ctx: attribute values or element text.
func (x *xpathExpr) values(ctx *XMLElement) []string {
	var out []string
	for _, p := range x.paths {
		elems, attrs := p.evaluate(ctx)
		for _, a := range attrs {
			out = append(out, NormalizeWhiteSpace(a.Value(), WhiteSpaceCollapse))
		}
		for _, e := range elems {
			out = append(out, NormalizeWhiteSpace(e.Text(), WhiteSpaceCollapse))
		}
	}
	return out
}

func (p xpathPath) evaluate(ctx *XMLElement) ([]*XMLElement, []*XMLAttribute) {
	current := []*XMLElement{ctx}
	if p.descendant {
		current = descendantsOrSelf(ctx, nil)
	}
	for _, step := range p.steps {
		switch {
		case step.self:
			continue
		case step.attribute:
			var attrs []*XMLAttribute
			for _, e := range current {
				for _, a := range e.Attributes() {
					if step.matches(a.Name()) {
						attrs = append(attrs, a)
					}
				}
			}
			return nil, attrs
		default:
			var next []*XMLElement
			for _, e := range current {
				for _, child := range e.Children() {
					if step.matches(child.Name()) {
						next = append(next, child)
					}
				}
			}
			current = next
		}
	}
	return current, nil
}

func descendantsOrSelf(e *XMLElement, out []*XMLElement) []*XMLElement {
	out = append(out, e)
	for _, child := range e.Children() {
		out = descendantsOrSelf(child, out)
	}
	return out
}
