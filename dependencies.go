package xsd

// DependencyNode describes one component in a dependency graph.
type DependencyNode struct {
	Resolved     bool                      `json:"resolved" yaml:"resolved"`
	Namespace    string                    `json:"namespace" yaml:"namespace"`
	LocalName    string                    `json:"local_name" yaml:"local_name"`
	TypeCategory TypeCategory              `json:"type_category,omitempty" yaml:"type_category,omitempty"`
	SchemaFile   string                    `json:"schema_file,omitempty" yaml:"schema_file,omitempty"`
	Dependencies map[string]DependencyNode `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// Dependencies returns the components qname refers to, up to depth hops,
// keyed by Clark name. Edges are type references, derivation bases, list
// item and union member types, group and attribute group references.
// Built-in XSD types are left out.
func (r *Repository) Dependencies(qname string, depth int) (map[string]DependencyNode, error) {
	res, err := r.FindType(qname)
	if err != nil {
		return nil, err
	}
	if !res.Resolved {
		return nil, res.Err(qname)
	}
	visited := map[string]bool{res.Name.Clark(): true}
	return r.dependencyTree(res.Definition, depth, visited), nil
}

func (r *Repository) dependencyTree(def Node, depth int, visited map[string]bool) map[string]DependencyNode {
	out := make(map[string]DependencyNode)
	if depth <= 0 {
		return out
	}
	for _, ref := range references(def) {
		key := ref.Name.Clark()
		if _, done := out[key]; done {
			continue
		}
		entry, ok := r.lookupReference(ref)
		node := DependencyNode{Namespace: ref.Name.Namespace, LocalName: ref.Name.Local}
		if ok {
			node.Resolved = true
			node.TypeCategory = entry.Category
			node.SchemaFile = entry.SchemaFile
			if !visited[key] {
				visited[key] = true
				node.Dependencies = r.dependencyTree(entry.Definition, depth-1, visited)
				delete(visited, key)
			}
		}
		out[key] = node
	}
	return out
}

// lookupReference finds ref in the symbol spaces its use site allows.
func (r *Repository) lookupReference(ref reference) (*TypeIndexEntry, bool) {
	for _, category := range ref.Categories {
		if entry, ok := r.index.Get(ref.Name, category); ok {
			return entry, true
		}
	}
	return nil, false
}

// Dependents returns the indexed components that refer directly to qname.
func (r *Repository) Dependents(qname string) (map[string]DependencyNode, error) {
	res, err := r.FindType(qname)
	if err != nil {
		return nil, err
	}
	if !res.Resolved {
		return nil, res.Err(qname)
	}
	out := make(map[string]DependencyNode)
	for _, entry := range r.index.Entries(nil, "") {
		if entry.Name == res.Name && entry.Category == res.Category {
			continue
		}
		for _, ref := range references(entry.Definition) {
			if ref.Name == res.Name && ref.allows(res.Category) {
				out[entry.Name.Clark()] = DependencyNode{
					Resolved:     true,
					Namespace:    entry.Namespace,
					LocalName:    entry.Name.Local,
					TypeCategory: entry.Category,
					SchemaFile:   entry.SchemaFile,
				}
				break
			}
		}
	}
	return out, nil
}

// reference is a name used at one site together with the index
// categories that site may resolve to.
type reference struct {
	Name       QName
	Categories []TypeCategory
}

func (ref reference) allows(category TypeCategory) bool {
	for _, c := range ref.Categories {
		if c == category {
			return true
		}
	}
	return false
}

var (
	typeRef           = []TypeCategory{CategoryComplexType, CategorySimpleType}
	simpleTypeRef     = []TypeCategory{CategorySimpleType}
	elementRef        = []TypeCategory{CategoryElement}
	attributeRef      = []TypeCategory{CategoryAttribute}
	groupRef          = []TypeCategory{CategoryGroup}
	attributeGroupRef = []TypeCategory{CategoryAttributeGroup}
)

// references collects the names a component refers to, once per symbol
// space, in declaration order.
func references(def Node) []reference {
	c := &refCollector{seen: make(map[refKey]bool)}
	c.node(def)
	return c.out
}

type refKey struct {
	name  QName
	space TypeCategory
}

type refCollector struct {
	seen map[refKey]bool
	out  []reference
}

func (c *refCollector) add(name QName, categories []TypeCategory) {
	key := refKey{name, categories[0]}
	if name.IsZero() || name.Namespace == XSDNamespace || c.seen[key] {
		return
	}
	c.seen[key] = true
	c.out = append(c.out, reference{Name: name, Categories: categories})
}

func (c *refCollector) node(n Node) {
	switch def := n.(type) {
	case *Element:
		c.element(def)
	case *ComplexType:
		c.complexType(def)
	case *SimpleType:
		c.simpleType(def)
	case *Attribute:
		c.attribute(def)
	case *Group:
		c.add(def.Ref, groupRef)
		if def.Model != nil {
			c.modelGroup(def.Model)
		}
	case *AttributeGroup:
		for _, a := range def.Attributes {
			c.attribute(a)
		}
		for _, g := range def.AttributeGroups {
			c.add(g, attributeGroupRef)
		}
	case *ModelGroup:
		c.modelGroup(def)
	case *Wildcard, *IdentityConstraint:
	}
}

func (c *refCollector) element(el *Element) {
	c.add(el.Ref, elementRef)
	c.add(el.TypeRef, typeRef)
	c.add(el.SubstitutionGroup, elementRef)
	if el.Inline != nil {
		c.node(el.Inline)
	}
}

func (c *refCollector) attribute(a *Attribute) {
	c.add(a.Ref, attributeRef)
	c.add(a.TypeRef, simpleTypeRef)
	if a.Inline != nil {
		c.simpleType(a.Inline)
	}
}

func (c *refCollector) complexType(ct *ComplexType) {
	switch content := ct.Content.(type) {
	case *ModelGroup:
		c.modelGroup(content)
	case *SimpleContent:
		c.add(content.Base, typeRef)
		for _, a := range content.Attributes {
			c.attribute(a)
		}
		for _, g := range content.AttributeGroups {
			c.add(g, attributeGroupRef)
		}
	case *ComplexContent:
		c.add(content.Base, typeRef)
		if content.Particle != nil {
			c.modelGroup(content.Particle)
		}
		for _, a := range content.Attributes {
			c.attribute(a)
		}
		for _, g := range content.AttributeGroups {
			c.add(g, attributeGroupRef)
		}
	case EmptyContent:
	}
	for _, a := range ct.Attributes {
		c.attribute(a)
	}
	for _, g := range ct.AttributeGroups {
		c.add(g, attributeGroupRef)
	}
}

func (c *refCollector) simpleType(st *SimpleType) {
	switch {
	case st.Restriction != nil:
		c.add(st.Restriction.Base, simpleTypeRef)
		if st.Restriction.Inline != nil {
			c.simpleType(st.Restriction.Inline)
		}
	case st.List != nil:
		c.add(st.List.ItemType, simpleTypeRef)
		if st.List.Inline != nil {
			c.simpleType(st.List.Inline)
		}
	case st.Union != nil:
		for _, m := range st.Union.MemberTypes {
			c.add(m, simpleTypeRef)
		}
		for _, inline := range st.Union.Inline {
			c.simpleType(inline)
		}
	}
}

func (c *refCollector) modelGroup(mg *ModelGroup) {
	for _, p := range mg.Particles {
		c.node(p)
	}
}
