package xsd

import "strconv"

// NodeKind identifies a schema component. The set of kinds is closed;
// every switch over a Node is expected to handle all of them.
type NodeKind int

const (
	KindSimpleType NodeKind = iota
	KindComplexType
	KindElement
	KindGroup
	KindChoice
	KindSequence
	KindAll
	KindAttribute
	KindAttributeGroup
	KindKey
	KindKeyref
	KindUnique
	KindAny
)

var nodeKindNames = [...]string{
	KindSimpleType:     "simple_type",
	KindComplexType:    "complex_type",
	KindElement:        "element",
	KindGroup:          "group",
	KindChoice:         "choice",
	KindSequence:       "sequence",
	KindAll:            "all",
	KindAttribute:      "attribute",
	KindAttributeGroup: "attribute_group",
	KindKey:            "key",
	KindKeyref:         "keyref",
	KindUnique:         "unique",
	KindAny:            "any",
}

func (k NodeKind) String() string {
	if int(k) >= 0 && int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return "unknown"
}

// Node is implemented by every schema component.
type Node interface {
	Kind() NodeKind
	schemaNode()
}

// Unbounded is the MaxOccurs value for maxOccurs="unbounded"
const Unbounded = -1

// Occurs holds the occurrence bounds of a particle
type Occurs struct {
	Min int
	Max int // Unbounded for no upper limit
}

// DefaultOccurs is minOccurs=1 maxOccurs=1
var DefaultOccurs = Occurs{Min: 1, Max: 1}

// Bounded reports whether the particle has an upper limit.
func (o Occurs) Bounded() bool { return o.Max != Unbounded }

// Exceeded reports whether n occurrences are more than allowed.
func (o Occurs) Exceeded(n int) bool { return o.Bounded() && n > o.Max }

// MaxString renders the upper bound the way it is written in a schema.
func (o Occurs) MaxString() string {
	if !o.Bounded() {
		return "unbounded"
	}
	return strconv.Itoa(o.Max)
}

// Particle is a content-model unit with occurrence bounds: an element,
// a group reference, a model group or a wildcard.
type Particle interface {
	Node
	Occurrence() Occurs
}

// TypeDefinition is a simple or complex type.
type TypeDefinition interface {
	Node
	TypeName() QName
	typeDefinition()
}

// Schema is one parsed schema document
type Schema struct {
	TargetNamespace        string
	Location               string
	Namespaces             map[string]string // prefix -> URI declared on xs:schema
	ElementFormQualified   bool
	AttributeFormQualified bool

	ComplexTypes    []*ComplexType
	SimpleTypes     []*SimpleType
	Elements        []*Element
	Attributes      []*Attribute
	Groups          []*Group
	AttributeGroups []*AttributeGroup

	Imports  []Import
	Includes []string
}

// Import represents an xs:import
type Import struct {
	Namespace      string
	SchemaLocation string
}

// Element is an element declaration or an element reference (Ref set).
type Element struct {
	Name              QName
	Ref               QName
	TypeRef           QName          // type="..." attribute
	Inline            TypeDefinition // anonymous type
	Occurs            Occurs
	Global            bool
	Nillable          bool
	Abstract          bool
	Default           string
	Fixed             string
	HasFixed          bool
	SubstitutionGroup QName
	Constraints       []*IdentityConstraint
	Schema            *Schema

	resolvedType TypeDefinition
	target       *Element
}

func (*Element) Kind() NodeKind { return KindElement }
func (*Element) schemaNode() {}
func (e *Element) Occurrence() Occurs { return e.Occurs }
func (e *Element) IsReference() bool  { return !e.Ref.IsZero() }
func (e *Element) ResolvedType() TypeDefinition {
	if e.target != nil {
		return e.target.ResolvedType()
	}
	return e.resolvedType
}

// Declaration returns the declaration this particle stands for: the
// referenced global element for references, the element itself otherwise.
func (e *Element) Declaration() *Element {
	if e.target != nil {
		return e.target
	}
	return e
}

// QName returns the name instances of this particle must carry.
func (e *Element) QName() QName {
	if e.IsReference() {
		return e.Ref
	}
	return e.Name
}

// Variety is the variety of a simple type
type Variety int

const (
	AtomicVariety Variety = iota
	ListVariety
	UnionVariety
)

// SimpleType represents an XSD simple type. Exactly one of Restriction,
// List and Union is set for user types; built-ins carry none of them.
type SimpleType struct {
	Name        QName
	Builtin     bool
	Restriction *SimpleRestriction
	List        *List
	Union       *Union
	Schema      *Schema
}

func (*SimpleType) Kind() NodeKind { return KindSimpleType }
func (*SimpleType) schemaNode() {}
func (*SimpleType) typeDefinition() {}
func (st *SimpleType) TypeName() QName { return st.Name }

// Variety reports which of restriction, list or union this type uses.
func (st *SimpleType) Variety() Variety {
	switch {
	case st.List != nil:
		return ListVariety
	case st.Union != nil:
		return UnionVariety
	default:
		return AtomicVariety
	}
}

// SimpleRestriction restricts a base simple type with facets
type SimpleRestriction struct {
	Base   QName
	Inline *SimpleType
	Facets []Facet

	baseType *SimpleType
	compiled *facetSet
}

// facetSet returns the validators compiled at resolve time. Restrictions
// built outside a repository are compiled on each call.
func (r *SimpleRestriction) facetSet(cache *PatternCache) *facetSet {
	if r.compiled != nil {
		return r.compiled
	}
	return newFacetSet(r.Facets, cache)
}

// BaseType returns the resolved base type.
func (r *SimpleRestriction) BaseType() *SimpleType {
	if r.Inline != nil {
		return r.Inline
	}
	return r.baseType
}

// List represents a list type
type List struct {
	ItemType QName
	Inline   *SimpleType

	itemType *SimpleType
}

// Item returns the resolved item type.
func (l *List) Item() *SimpleType {
	if l.Inline != nil {
		return l.Inline
	}
	return l.itemType
}

// Union represents a union type
type Union struct {
	MemberTypes []QName
	Inline      []*SimpleType

	members []*SimpleType
}

// Members returns the resolved member types in declaration order.
func (u *Union) Members() []*SimpleType {
	return u.members
}

// FacetKind names a constraining facet
type FacetKind string

const (
	FacetLength         FacetKind = "length"
	FacetMinLength      FacetKind = "minLength"
	FacetMaxLength      FacetKind = "maxLength"
	FacetPattern        FacetKind = "pattern"
	FacetEnumeration    FacetKind = "enumeration"
	FacetMinInclusive   FacetKind = "minInclusive"
	FacetMaxInclusive   FacetKind = "maxInclusive"
	FacetMinExclusive   FacetKind = "minExclusive"
	FacetMaxExclusive   FacetKind = "maxExclusive"
	FacetTotalDigits    FacetKind = "totalDigits"
	FacetFractionDigits FacetKind = "fractionDigits"
	FacetWhiteSpace     FacetKind = "whiteSpace"
)

// Facet is a facet kind with its literal value
type Facet struct {
	Kind  FacetKind
	Value string
}

// ComplexType represents an XSD complex type
type ComplexType struct {
	Name            QName
	Abstract        bool
	Mixed           bool
	Content         ContentModel
	Attributes      []*Attribute
	AttributeGroups []QName
	AnyAttribute    *Wildcard
	Schema          *Schema

	effective *EffectiveContent
}

func (*ComplexType) Kind() NodeKind { return KindComplexType }
func (*ComplexType) schemaNode() {}
func (*ComplexType) typeDefinition() {}
func (ct *ComplexType) TypeName() QName { return ct.Name }

// Effective returns the content model with the derivation chain and
// attribute groups applied. It is computed by Repository.Resolve.
func (ct *ComplexType) Effective() *EffectiveContent { return ct.effective }

// ContentModel is the content of a complex type: a *ModelGroup, a
// *SimpleContent, a *ComplexContent or EmptyContent.
type ContentModel interface {
	contentModel()
}

// EmptyContent marks a complex type without element or text content
type EmptyContent struct{}

func (EmptyContent) contentModel() {}

// Derivation is extension or restriction
type Derivation int

const (
	DerivationExtension Derivation = iota
	DerivationRestriction
)

func (d Derivation) String() string {
	if d == DerivationRestriction {
		return "restriction"
	}
	return "extension"
}

// SimpleContent represents simple content in a complex type
type SimpleContent struct {
	Derivation      Derivation
	Base            QName
	Facets          []Facet
	Attributes      []*Attribute
	AttributeGroups []QName
	AnyAttribute    *Wildcard

	baseType TypeDefinition
}

func (*SimpleContent) contentModel() {}

// BaseType returns the resolved base type, nil if unresolved.
func (sc *SimpleContent) BaseType() TypeDefinition { return sc.baseType }

// ComplexContent represents complex content derived from a base type
type ComplexContent struct {
	Derivation      Derivation
	Base            QName
	Mixed           bool
	Particle        *ModelGroup // nil when the derivation adds no particles
	Attributes      []*Attribute
	AttributeGroups []QName
	AnyAttribute    *Wildcard

	baseType TypeDefinition
}

func (*ComplexContent) contentModel() {}

// BaseType returns the resolved base type, nil if unresolved.
func (cc *ComplexContent) BaseType() TypeDefinition { return cc.baseType }

// Compositor is sequence, choice or all
type Compositor int

const (
	Sequence Compositor = iota
	Choice
	All
)

func (c Compositor) String() string {
	switch c {
	case Choice:
		return "choice"
	case All:
		return "all"
	default:
		return "sequence"
	}
}

// ModelGroup is a sequence, choice or all particle
type ModelGroup struct {
	Compositor Compositor
	Occurs     Occurs
	Particles  []Particle
}

func (mg *ModelGroup) Kind() NodeKind {
	switch mg.Compositor {
	case Choice:
		return KindChoice
	case All:
		return KindAll
	default:
		return KindSequence
	}
}
func (*ModelGroup) schemaNode() {}
func (*ModelGroup) contentModel() {}
func (mg *ModelGroup) Occurrence() Occurs { return mg.Occurs }

// Group is a named model group definition, or a reference to one when Ref is set.
type Group struct {
	Name   QName
	Ref    QName
	Occurs Occurs
	Model  *ModelGroup
	Schema *Schema

	target *Group
}

func (*Group) Kind() NodeKind { return KindGroup }
func (*Group) schemaNode() {}
func (g *Group) Occurrence() Occurs { return g.Occurs }

// ModelGroup returns the model group of the definition, following references.
func (g *Group) ModelGroup() *ModelGroup {
	if g.target != nil {
		return g.target.Model
	}
	return g.Model
}

// Wildcard is xs:any or xs:anyAttribute
type Wildcard struct {
	Namespace       string
	ProcessContents ProcessContentsMode
	Occurs          Occurs
	TargetNamespace string
}

func (*Wildcard) Kind() NodeKind { return KindAny }
func (*Wildcard) schemaNode() {}
func (w *Wildcard) Occurrence() Occurs { return w.Occurs }

// AttributeUse represents attribute use
type AttributeUse string

const (
	OptionalUse   AttributeUse = "optional"
	RequiredUse   AttributeUse = "required"
	ProhibitedUse AttributeUse = "prohibited"
)

// Attribute is an attribute declaration or reference
type Attribute struct {
	Name     QName
	Ref      QName
	TypeRef  QName
	Inline   *SimpleType
	Use      AttributeUse
	Default  string
	Fixed    string
	HasFixed bool
	Global   bool
	Schema   *Schema

	resolvedType *SimpleType
	target       *Attribute
}

func (*Attribute) Kind() NodeKind { return KindAttribute }
func (*Attribute) schemaNode() {}

// QName returns the name instance attributes must carry.
func (a *Attribute) QName() QName {
	if !a.Ref.IsZero() {
		return a.Ref
	}
	return a.Name
}

// ResolvedType returns the attribute's simple type, following references.
func (a *Attribute) ResolvedType() *SimpleType {
	if a.Inline != nil {
		return a.Inline
	}
	if a.resolvedType != nil {
		return a.resolvedType
	}
	if a.target != nil {
		return a.target.ResolvedType()
	}
	return nil
}

// FixedValue returns the fixed value from the use or the referenced declaration.
func (a *Attribute) FixedValue() (string, bool) {
	if a.HasFixed {
		return a.Fixed, true
	}
	if a.target != nil && a.target.HasFixed {
		return a.target.Fixed, true
	}
	return "", false
}

// AttributeGroup is a named attribute group definition
type AttributeGroup struct {
	Name            QName
	Attributes      []*Attribute
	AttributeGroups []QName
	AnyAttribute    *Wildcard
	Schema          *Schema
}

func (*AttributeGroup) Kind() NodeKind { return KindAttributeGroup }
func (*AttributeGroup) schemaNode() {}

// ConstraintCategory is key, keyref or unique
type ConstraintCategory string

const (
	KeyConstraint    ConstraintCategory = "key"
	KeyRefConstraint ConstraintCategory = "keyref"
	UniqueConstraint ConstraintCategory = "unique"
)

// IdentityConstraint represents xs:key, xs:keyref or xs:unique
type IdentityConstraint struct {
	Name       QName
	Category   ConstraintCategory
	Selector   string
	Fields     []string
	Refer      QName             // keyref only
	Namespaces map[string]string // prefixes in scope for the XPath expressions
}

func (ic *IdentityConstraint) Kind() NodeKind {
	switch ic.Category {
	case KeyRefConstraint:
		return KindKeyref
	case UniqueConstraint:
		return KindUnique
	default:
		return KindKey
	}
}
func (*IdentityConstraint) schemaNode() {}
