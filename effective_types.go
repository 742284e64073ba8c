package xsd

// ContentKind classifies what an element of a complex type may contain
type ContentKind int

const (
	ContentEmpty ContentKind = iota
	ContentSimple
	ContentElementOnly
	ContentMixed
)

func (k ContentKind) String() string {
	switch k {
	case ContentSimple:
		return "simple"
	case ContentElementOnly:
		return "element-only"
	case ContentMixed:
		return "mixed"
	default:
		return "empty"
	}
}

// EffectiveContent is a complex type with its derivation chain and
// attribute groups flattened.
type EffectiveContent struct {
	Kind ContentKind
	// Particle is the content model; nil for empty and simple content.
	Particle *ModelGroup
	// SimpleType and Facets describe simple content. Facets are ordered
	// from the base outwards and all apply.
	SimpleType *SimpleType
	Facets     []Facet
	// Attributes holds one use per attribute name, derived uses replacing
	// inherited ones. Prohibited uses are kept so they can be reported.
	Attributes   []*Attribute
	AnyAttribute *Wildcard

	facets *facetSet
}

// Attribute returns the use declared for name.
func (ec *EffectiveContent) Attribute(name QName) (*Attribute, bool) {
	for _, a := range ec.Attributes {
		if a.QName() == name {
			return a, true
		}
	}
	return nil, false
}

// effectiveBuilder flattens complex types once the repository is linked.
type effectiveBuilder struct {
	repo     *Repository
	visiting map[*ComplexType]bool
	issues   []SchemaIssue
}

func (b *effectiveBuilder) build(ct *ComplexType) *EffectiveContent {
	if ct.effective != nil {
		return ct.effective
	}
	if b.visiting[ct] {
		b.issues = append(b.issues, SchemaIssue{
			Code:     CodeSchemaInvalid,
			Severity: SeverityError,
			Location: schemaLocation(ct.Schema),
			Message:  "circular derivation of complex type " + ct.Name.String(),
		})
		return &EffectiveContent{Kind: ContentEmpty}
	}
	b.visiting[ct] = true
	defer delete(b.visiting, ct)

	own, wildcard := b.expandAttributes(ct.Attributes, ct.AttributeGroups, ct.AnyAttribute)
	ec := &EffectiveContent{}

	switch content := ct.Content.(type) {
	case *ModelGroup:
		ec.Particle = content
		ec.Attributes = own
		ec.AnyAttribute = wildcard
	case *SimpleContent:
		b.simpleContent(ec, content, own, wildcard)
		ec.facets = newFacetSet(ec.Facets, b.repo.patterns)
	case *ComplexContent:
		b.complexContent(ec, ct, content, own, wildcard)
	default:
		ec.Attributes = own
		ec.AnyAttribute = wildcard
	}

	if ec.Kind != ContentSimple {
		mixed := ct.Mixed || ec.Kind == ContentMixed
		switch {
		case mixed:
			ec.Kind = ContentMixed
		case ec.Particle == nil:
			ec.Kind = ContentEmpty
		default:
			ec.Kind = ContentElementOnly
		}
	}

	ct.effective = ec
	return ec
}

func (b *effectiveBuilder) simpleContent(ec *EffectiveContent, sc *SimpleContent, own []*Attribute, wildcard *Wildcard) {
	ec.Kind = ContentSimple
	var inherited []*Attribute
	switch base := sc.BaseType().(type) {
	case *SimpleType:
		ec.SimpleType = base
	case *ComplexType:
		be := b.build(base)
		ec.SimpleType = be.SimpleType
		ec.Facets = append(ec.Facets, be.Facets...)
		inherited = be.Attributes
		if wildcard == nil {
			wildcard = be.AnyAttribute
		}
	}
	if ec.SimpleType == nil {
		ec.SimpleType = b.repo.builtinType("anySimpleType")
	}
	if sc.Derivation == DerivationRestriction {
		ec.Facets = append(ec.Facets, sc.Facets...)
	}
	scOwn, scWildcard := b.expandAttributes(sc.Attributes, sc.AttributeGroups, sc.AnyAttribute)
	if scWildcard != nil {
		wildcard = scWildcard
	}
	ec.Attributes = mergeAttributeUses(mergeAttributeUses(inherited, scOwn), own)
	ec.AnyAttribute = wildcard
}

func (b *effectiveBuilder) complexContent(ec *EffectiveContent, ct *ComplexType, cc *ComplexContent, own []*Attribute, wildcard *Wildcard) {
	ccOwn, ccWildcard := b.expandAttributes(cc.Attributes, cc.AttributeGroups, cc.AnyAttribute)
	if ccWildcard != nil {
		wildcard = ccWildcard
	}
	own = mergeAttributeUses(ccOwn, own)

	var base *EffectiveContent
	switch bt := cc.BaseType().(type) {
	case *ComplexType:
		base = b.build(bt)
	case *SimpleType:
		// complexContent over a simple type is malformed; treat as simple content
		ec.Kind = ContentSimple
		ec.SimpleType = bt
		ec.Attributes = own
		ec.AnyAttribute = wildcard
		return
	default:
		base = &EffectiveContent{Kind: ContentEmpty}
	}

	if cc.Derivation == DerivationExtension {
		switch {
		case base.Particle != nil && cc.Particle != nil:
			ec.Particle = &ModelGroup{
				Compositor: Sequence,
				Occurs:     DefaultOccurs,
				Particles:  []Particle{base.Particle, cc.Particle},
			}
		case cc.Particle != nil:
			ec.Particle = cc.Particle
		default:
			ec.Particle = base.Particle
		}
		if base.Kind == ContentMixed {
			ec.Kind = ContentMixed
		}
	} else {
		ec.Particle = cc.Particle
	}
	if cc.Mixed || ct.Mixed {
		ec.Kind = ContentMixed
	}

	ec.Attributes = mergeAttributeUses(base.Attributes, own)
	ec.AnyAttribute = wildcard
	if ec.AnyAttribute == nil && cc.Derivation == DerivationExtension {
		ec.AnyAttribute = base.AnyAttribute
	}
}

// expandAttributes resolves attribute group references into a flat list of
// uses, returning the first attribute wildcard found.
func (b *effectiveBuilder) expandAttributes(attrs []*Attribute, groups []QName, wildcard *Wildcard) ([]*Attribute, *Wildcard) {
	out := append([]*Attribute(nil), attrs...)
	seen := make(map[string]bool)
	var walk func(names []QName)
	walk = func(names []QName) {
		for _, name := range names {
			if seen[name.Clark()] {
				continue
			}
			seen[name.Clark()] = true
			ag := b.repo.lookupAttributeGroup(name)
			if ag == nil {
				continue
			}
			out = mergeAttributeUses(out, ag.Attributes)
			if wildcard == nil {
				wildcard = ag.AnyAttribute
			}
			walk(ag.AttributeGroups)
		}
	}
	walk(groups)
	return out, wildcard
}

// mergeAttributeUses overlays derived uses on inherited ones by name.
func mergeAttributeUses(inherited, derived []*Attribute) []*Attribute {
	out := make([]*Attribute, 0, len(inherited)+len(derived))
	index := make(map[QName]int)
	for _, a := range inherited {
		index[a.QName()] = len(out)
		out = append(out, a)
	}
	for _, a := range derived {
		if i, ok := index[a.QName()]; ok {
			out[i] = a
			continue
		}
		index[a.QName()] = len(out)
		out = append(out, a)
	}
	return out
}

func schemaLocation(s *Schema) string {
	if s == nil {
		return ""
	}
	return s.Location
}
