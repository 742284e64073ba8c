package xsd

import (
	"fmt"
	"strings"
)

// keyTuple is the field values of one selected node. Tuples compare by
// their quoted form, so field values containing separators cannot collide.
type keyTuple []string

func (t keyTuple) id() string { return fmt.Sprintf("%q", []string(t)) }

func (t keyTuple) String() string {
	if len(t) == 1 {
		return t[0]
	}
	return "(" + strings.Join(t, ", ") + ")"
}

// identityTable records the tuples a key or unique constraint produced.
type identityTable struct {
	constraint *IdentityConstraint
	seen       map[string]*XMLElement
	order      []keyTuple
}

func (t *identityTable) add(tuple keyTuple, at *XMLElement) (*XMLElement, bool) {
	id := tuple.id()
	if first, dup := t.seen[id]; dup {
		return first, false
	}
	t.seen[id] = at
	t.order = append(t.order, tuple)
	return nil, true
}

func (t *identityTable) has(tuple keyTuple) bool {
	_, ok := t.seen[tuple.id()]
	return ok
}

func (t *identityTable) available() []string {
	out := make([]string, len(t.order))
	for i, tuple := range t.order {
		out[i] = tuple.String()
	}
	return out
}

// compiledConstraint holds the parsed XPath expressions of a constraint.
type compiledConstraint struct {
	selector *xpathExpr
	fields   []*xpathExpr
	err      error
}

// constraintRow is one node selected by a constraint with its field values.
type constraintRow struct {
	at      *XMLElement
	values  keyTuple
	missing []string // field expressions that selected nothing
}

// identityTables is the identity-constraint state of one validation job.
// Tables are keyed by constraint name and span the whole document.
type identityTables struct {
	tables   map[QName]*identityTable
	compiled map[*IdentityConstraint]*compiledConstraint
	reported map[*IdentityConstraint]bool
}

func newIdentityTables() *identityTables {
	return &identityTables{
		tables:   make(map[QName]*identityTable),
		compiled: make(map[*IdentityConstraint]*compiledConstraint),
		reported: make(map[*IdentityConstraint]bool),
	}
}

func (t *identityTables) table(ic *IdentityConstraint) *identityTable {
	tbl, ok := t.tables[ic.Name]
	if !ok {
		tbl = &identityTable{constraint: ic, seen: make(map[string]*XMLElement)}
		t.tables[ic.Name] = tbl
	}
	return tbl
}

func (t *identityTables) compile(ic *IdentityConstraint) *compiledConstraint {
	if c, ok := t.compiled[ic]; ok {
		return c
	}
	c := &compiledConstraint{}
	c.selector, c.err = compileXPath(ic.Selector, ic.Namespaces)
	for _, f := range ic.Fields {
		if c.err != nil {
			break
		}
		var field *xpathExpr
		field, c.err = compileXPath(f, ic.Namespaces)
		c.fields = append(c.fields, field)
	}
	if c.err == nil && len(c.fields) == 0 {
		c.err = fmt.Errorf("constraint has no fields")
	}
	t.compiled[ic] = c
	return c
}

// rows evaluates ic in the scope of node.
func (t *identityTables) rows(node *XMLElement, ic *IdentityConstraint) ([]constraintRow, error) {
	c := t.compile(ic)
	if c.err != nil {
		return nil, c.err
	}
	var out []constraintRow
	for _, target := range c.selector.selectElements(node) {
		row := constraintRow{at: target, values: make(keyTuple, 0, len(c.fields))}
		for _, field := range c.fields {
			values := field.values(target)
			if len(values) == 0 {
				row.missing = append(row.missing, field.source)
				row.values = append(row.values, "")
				continue
			}
			row.values = append(row.values, values[0])
		}
		out = append(out, row)
	}
	return out, nil
}

// reportInvalid reports an uncompilable constraint once per job.
func (t *identityTables) reportInvalid(ctx *RuleContext, node *XMLElement, ic *IdentityConstraint, err error) {
	if t.reported[ic] {
		return
	}
	t.reported[ic] = true
	ctx.Lenient(node, CodeSchemaInvalid,
		fmt.Sprintf("Identity constraint '%s' cannot be evaluated: %v", ic.Name.Local, err),
		WithContextValue("constraint", ic.Name.Clark()))
}

// collectIdentityConstraints indexes every identity constraint declared
// on any element, global or local, by name.
func collectIdentityConstraints(schemas []*Schema) map[QName]*IdentityConstraint {
	out := make(map[QName]*IdentityConstraint)
	seenTypes := make(map[*ComplexType]bool)
	seenGroups := make(map[*ModelGroup]bool)

	var element func(el *Element)
	var complexType func(ct *ComplexType)
	var modelGroup func(mg *ModelGroup)

	element = func(el *Element) {
		for _, ic := range el.Constraints {
			if _, dup := out[ic.Name]; !dup {
				out[ic.Name] = ic
			}
		}
		if ct, ok := el.Inline.(*ComplexType); ok {
			complexType(ct)
		}
	}
	complexType = func(ct *ComplexType) {
		if seenTypes[ct] {
			return
		}
		seenTypes[ct] = true
		switch content := ct.Content.(type) {
		case *ModelGroup:
			modelGroup(content)
		case *ComplexContent:
			if content.Particle != nil {
				modelGroup(content.Particle)
			}
		}
	}
	modelGroup = func(mg *ModelGroup) {
		if seenGroups[mg] {
			return
		}
		seenGroups[mg] = true
		for _, p := range mg.Particles {
			switch particle := p.(type) {
			case *Element:
				element(particle)
			case *ModelGroup:
				modelGroup(particle)
			case *Group:
				if particle.Model != nil {
					modelGroup(particle.Model)
				}
			}
		}
	}

	for _, schema := range schemas {
		for _, el := range schema.Elements {
			element(el)
		}
		for _, ct := range schema.ComplexTypes {
			complexType(ct)
		}
		for _, g := range schema.Groups {
			if g.Model != nil {
				modelGroup(g.Model)
			}
		}
	}
	return out
}
