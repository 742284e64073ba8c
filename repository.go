package xsd

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Defaults for type-name suggestions.
const (
	DefaultFuzzyThreshold = 0.6
	DefaultMaxSuggestions = 5
)

// Repository aggregates parsed schema files and resolves references
// across them. Build it once with AddSchemaFile/Parse/Resolve; after
// Resolve it is read-only and may be shared by concurrent validations.
type Repository struct {
	logger *slog.Logger
	loader *SchemaLoader

	sources []string

	schemas    []*Schema
	issues     []SchemaIssue
	index      *TypeIndex
	namespaces *NamespaceRegistry

	builtins     *BuiltinTypes
	builtinNodes map[string]*SimpleType
	anyType      *ComplexType
	patterns     *PatternCache

	substitutions map[QName][]*Element
	constraints   map[QName]*IdentityConstraint

	fuzzyThreshold float64
	maxSuggestions int

	parsed   bool
	resolved bool
}

// RepositoryOption configures a Repository
type RepositoryOption func(*Repository)

// WithLogger sets the logger used while loading and resolving.
func WithLogger(logger *slog.Logger) RepositoryOption {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithFuzzyThreshold sets the minimum similarity for type suggestions.
func WithFuzzyThreshold(threshold float64) RepositoryOption {
	return func(r *Repository) { r.fuzzyThreshold = threshold }
}

// WithMaxSuggestions bounds the number of type suggestions.
func WithMaxSuggestions(n int) RepositoryOption {
	return func(r *Repository) { r.maxSuggestions = n }
}

// WithBaseDir resolves relative schema paths against dir.
func WithBaseDir(dir string) RepositoryOption {
	return func(r *Repository) { r.loader.BaseDir = dir }
}

// WithRemoteSchemas allows http(s) schema locations.
func WithRemoteSchemas(allow bool) RepositoryOption {
	return func(r *Repository) { r.loader.AllowRemote = allow }
}

// WithPatternCacheSize bounds the compiled pattern cache.
func WithPatternCacheSize(n int) RepositoryOption {
	return func(r *Repository) { r.patterns = NewPatternCache(n) }
}

// NewRepository creates an empty repository.
func NewRepository(opts ...RepositoryOption) *Repository {
	r := &Repository{
		logger:         slog.Default(),
		fuzzyThreshold: DefaultFuzzyThreshold,
		maxSuggestions: DefaultMaxSuggestions,
		builtins:       NewBuiltinTypes(),
		builtinNodes:   make(map[string]*SimpleType),
		patterns:       NewPatternCache(DefaultPatternCacheSize),
	}
	r.loader = NewSchemaLoader("", r.logger)
	for _, opt := range opts {
		opt(r)
	}
	r.loader.logger = r.logger
	r.initBuiltins()
	return r
}

func (r *Repository) initBuiltins() {
	for name := range r.builtins.types {
		r.builtinNodes[name] = &SimpleType{Name: QName{Namespace: XSDNamespace, Local: name}, Builtin: true}
	}
	r.anyType = &ComplexType{
		Name:  QName{Namespace: XSDNamespace, Local: "anyType"},
		Mixed: true,
		Content: &ModelGroup{
			Compositor: Sequence,
			Occurs:     DefaultOccurs,
			Particles: []Particle{&Wildcard{
				Namespace:       "##any",
				ProcessContents: LaxProcess,
				Occurs:          Occurs{Min: 0, Max: Unbounded},
			}},
		},
		AnyAttribute: &Wildcard{Namespace: "##any", ProcessContents: LaxProcess},
	}
}

// AddSchemaFile queues a schema file for Parse.
func (r *Repository) AddSchemaFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: empty schema path", ErrInvalidInput)
	}
	r.sources = append(r.sources, path)
	r.parsed, r.resolved = false, false
	return nil
}

// AddSchemaBytes queues an in-memory schema document. name acts as its
// location: relative imports and includes resolve against it.
func (r *Repository) AddSchemaBytes(name string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty schema %s", ErrInvalidInput, name)
	}
	abs, err := r.loader.AddMemory(name, data)
	if err != nil {
		return &SchemaParseError{Path: name, Cause: err}
	}
	r.sources = append(r.sources, abs)
	r.parsed, r.resolved = false, false
	return nil
}

// Parse parses every queued schema and everything they import or include.
func (r *Repository) Parse() error {
	memory := r.loader.memory
	baseDir, allowRemote := r.loader.BaseDir, r.loader.AllowRemote
	r.loader = NewSchemaLoader(baseDir, r.logger)
	r.loader.AllowRemote = allowRemote
	r.loader.memory = memory

	for _, source := range r.sources {
		if _, err := r.loader.Load(source); err != nil {
			return err
		}
	}
	r.schemas = r.loader.Schemas()
	r.issues = append([]SchemaIssue(nil), r.loader.Issues()...)
	r.parsed = true
	r.resolved = false
	return nil
}

// Resolve builds the type index and namespace registry and binds every
// reference. It must follow Parse.
func (r *Repository) Resolve() error {
	if !r.parsed {
		return ErrNotParsed
	}

	r.index = NewTypeIndex()
	r.namespaces = NewNamespaceRegistry(r.logger)
	r.namespaces.Register("xs", XSDNamespace, "builtin")
	r.namespaces.Register("xsi", XSINamespace, "builtin")
	r.substitutions = make(map[QName][]*Element)

	for _, schema := range r.schemas {
		for prefix, uri := range schema.Namespaces {
			if prefix == "" {
				continue
			}
			r.namespaces.Register(prefix, uri, schema.Location)
		}
		r.indexSchema(schema)
	}

	l := &linker{repo: r}
	l.run()
	r.issues = append(r.issues, l.issues...)

	eb := &effectiveBuilder{repo: r, visiting: make(map[*ComplexType]bool)}
	eb.build(r.anyType)
	for _, ct := range l.complexTypes {
		eb.build(ct)
	}
	r.issues = append(r.issues, eb.issues...)

	for _, schema := range r.schemas {
		for _, el := range schema.Elements {
			if !el.SubstitutionGroup.IsZero() {
				r.substitutions[el.SubstitutionGroup] = append(r.substitutions[el.SubstitutionGroup], el)
			}
		}
	}

	r.constraints = collectIdentityConstraints(r.schemas)

	r.resolved = true
	r.logger.Info("schema repository resolved",
		"schemas", len(r.schemas), "types", r.index.Len(), "issues", len(r.issues))
	return nil
}

func (r *Repository) indexSchema(schema *Schema) {
	add := func(name QName, category TypeCategory, def Node) {
		if name.Local == "" {
			return
		}
		entry := &TypeIndexEntry{
			Name:       name,
			Category:   category,
			Definition: def,
			Namespace:  name.Namespace,
			SchemaFile: schema.Location,
		}
		if !r.index.Add(entry) {
			r.issues = append(r.issues, SchemaIssue{
				Code:     CodeSchemaInvalid,
				Severity: SeverityWarning,
				Location: schema.Location,
				Message:  fmt.Sprintf("duplicate %s '%s' ignored", category, name),
			})
		}
	}
	for _, ct := range schema.ComplexTypes {
		add(ct.Name, CategoryComplexType, ct)
	}
	for _, st := range schema.SimpleTypes {
		add(st.Name, CategorySimpleType, st)
	}
	for _, el := range schema.Elements {
		add(el.Name, CategoryElement, el)
	}
	for _, attr := range schema.Attributes {
		add(attr.Name, CategoryAttribute, attr)
	}
	for _, g := range schema.Groups {
		add(g.Name, CategoryGroup, g)
	}
	for _, ag := range schema.AttributeGroups {
		add(ag.Name, CategoryAttributeGroup, ag)
	}
}

// Parsed reports whether Parse has completed.
func (r *Repository) Parsed() bool { return r.parsed }

// Resolved reports whether Resolve has completed.
func (r *Repository) Resolved() bool { return r.resolved }

// Schemas returns the parsed schemas in load order.
func (r *Repository) Schemas() []*Schema { return r.schemas }

// Issues returns the problems found while loading and resolving.
func (r *Repository) Issues() []SchemaIssue { return r.issues }

// ImportCycles returns the import/include cycles met during Parse.
func (r *Repository) ImportCycles() [][]string { return r.loader.Cycles() }

// Namespaces returns the namespace registry built by Resolve.
func (r *Repository) Namespaces() *NamespaceRegistry { return r.namespaces }

// Index returns the type index built by Resolve.
func (r *Repository) Index() *TypeIndex { return r.index }

// Builtins returns the built-in datatype table.
func (r *Repository) Builtins() *BuiltinTypes { return r.builtins }

// Patterns returns the compiled pattern cache shared by validations.
func (r *Repository) Patterns() *PatternCache { return r.patterns }

// GlobalElements returns every top-level element declaration.
func (r *Repository) GlobalElements() []*Element {
	var out []*Element
	for _, schema := range r.schemas {
		out = append(out, schema.Elements...)
	}
	return out
}

func (r *Repository) builtinType(local string) *SimpleType {
	return r.builtinNodes[local]
}

// lookupType finds a type definition; built-ins live in the XSD namespace.
// Names in no namespace fall back to the built-ins as well.
func (r *Repository) lookupType(name QName) TypeDefinition {
	if name.IsZero() {
		return nil
	}
	if name.Namespace == XSDNamespace || name.Namespace == "" {
		if name.Namespace == XSDNamespace || r.index == nil || !r.hasType(name) {
			if name.Local == "anyType" {
				return r.anyType
			}
			if st, ok := r.builtinNodes[name.Local]; ok {
				return st
			}
		}
	}
	if r.index == nil {
		return nil
	}
	if entry, ok := r.index.Get(name, CategoryComplexType); ok {
		return entry.Definition.(*ComplexType)
	}
	if entry, ok := r.index.Get(name, CategorySimpleType); ok {
		return entry.Definition.(*SimpleType)
	}
	return nil
}

func (r *Repository) hasType(name QName) bool {
	_, ok := r.index.Get(name, CategoryComplexType)
	if !ok {
		_, ok = r.index.Get(name, CategorySimpleType)
	}
	return ok
}

func (r *Repository) lookupElement(name QName) *Element {
	if r.index == nil {
		return nil
	}
	if entry, ok := r.index.Get(name, CategoryElement); ok {
		return entry.Definition.(*Element)
	}
	return nil
}

func (r *Repository) lookupAttribute(name QName) *Attribute {
	if r.index == nil {
		return nil
	}
	if entry, ok := r.index.Get(name, CategoryAttribute); ok {
		return entry.Definition.(*Attribute)
	}
	return nil
}

func (r *Repository) lookupGroup(name QName) *Group {
	if r.index == nil {
		return nil
	}
	if entry, ok := r.index.Get(name, CategoryGroup); ok {
		return entry.Definition.(*Group)
	}
	return nil
}

func (r *Repository) lookupAttributeGroup(name QName) *AttributeGroup {
	if r.index == nil {
		return nil
	}
	if entry, ok := r.index.Get(name, CategoryAttributeGroup); ok {
		return entry.Definition.(*AttributeGroup)
	}
	return nil
}

// LookupElement returns the global element declaration for name.
func (r *Repository) LookupElement(name QName) (*Element, bool) {
	el := r.lookupElement(name)
	return el, el != nil
}

// LookupType returns the type definition for name, including built-ins.
func (r *Repository) LookupType(name QName) (TypeDefinition, bool) {
	t := r.lookupType(name)
	return t, t != nil
}

// LookupConstraint returns the key, keyref or unique constraint called name.
func (r *Repository) LookupConstraint(name QName) (*IdentityConstraint, bool) {
	ic, ok := r.constraints[name]
	return ic, ok
}

// SubstitutionMembers returns the elements that may substitute for head,
// transitively, in declaration order.
func (r *Repository) SubstitutionMembers(head QName) []*Element {
	var out []*Element
	seen := map[QName]bool{head: true}
	queue := []QName{head}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, member := range r.substitutions[cur] {
			if seen[member.Name] {
				continue
			}
			seen[member.Name] = true
			out = append(out, member)
			queue = append(queue, member.Name)
		}
	}
	return out
}

// suggest returns Clark names similar to local.
func (r *Repository) suggest(local string) []string {
	if r.index == nil {
		return nil
	}
	var out []string
	for _, s := range r.index.Suggest(local, r.fuzzyThreshold, r.maxSuggestions) {
		out = append(out, s.Name.Local)
	}
	return out
}

// TypeResolution is the answer to FindType.
type TypeResolution struct {
	Resolved     bool
	Name         QName
	Category     TypeCategory
	Definition   Node
	SchemaFile   string
	ErrorMessage string
	Suggestions  []Suggestion
}

// Err returns a *TypeNotFoundError for unresolved lookups, nil otherwise.
func (tr TypeResolution) Err(query string) error {
	if tr.Resolved {
		return nil
	}
	names := make([]string, 0, len(tr.Suggestions))
	for _, s := range tr.Suggestions {
		names = append(names, s.Name.Local)
	}
	return &TypeNotFoundError{QName: query, Suggestions: names}
}

// FindType looks up a top-level component by "prefix:Local", Clark
// notation or a bare local name. Prefixes resolve through the namespace
// registry. Unresolved lookups carry fuzzy suggestions.
func (r *Repository) FindType(qname string) (TypeResolution, error) {
	if !r.resolved {
		return TypeResolution{}, ErrNotResolved
	}
	qname = strings.TrimSpace(qname)
	if qname == "" {
		return TypeResolution{}, fmt.Errorf("%w: empty type name", ErrInvalidInput)
	}

	for _, name := range r.candidateNames(qname) {
		if name.Namespace == XSDNamespace {
			if def := r.lookupType(name); def != nil {
				return TypeResolution{Resolved: true, Name: name, Category: builtinCategory(def), Definition: def}, nil
			}
			continue
		}
		if entry, ok := r.index.Lookup(name); ok {
			return TypeResolution{
				Resolved:   true,
				Name:       entry.Name,
				Category:   entry.Category,
				Definition: entry.Definition,
				SchemaFile: entry.SchemaFile,
			}, nil
		}
	}

	_, local := splitPrefixed(qname)
	if strings.HasPrefix(qname, "{") {
		if q, ok := ParseClark(qname); ok {
			local = q.Local
		}
	}
	suggestions := r.index.Suggest(local, r.fuzzyThreshold, r.maxSuggestions)
	res := TypeResolution{Suggestions: suggestions}
	res.ErrorMessage = res.Err(qname).Error()
	return res, nil
}

func builtinCategory(def TypeDefinition) TypeCategory {
	if _, ok := def.(*ComplexType); ok {
		return CategoryComplexType
	}
	return CategorySimpleType
}

// candidateNames expands a query into the qualified names it may denote.
func (r *Repository) candidateNames(query string) []QName {
	if strings.HasPrefix(query, "{") {
		if q, ok := ParseClark(query); ok {
			return []QName{q}
		}
		return nil
	}
	prefix, local := splitPrefixed(query)
	if prefix != "" {
		uri, ok := r.namespaces.URI(prefix)
		if !ok {
			return nil
		}
		return []QName{{Namespace: uri, Local: local}}
	}

	// A bare name matches the no-namespace component first, then the
	// first target namespace that declares it.
	out := []QName{{Local: local}}
	seen := map[string]bool{"": true}
	for _, schema := range r.schemas {
		if seen[schema.TargetNamespace] {
			continue
		}
		seen[schema.TargetNamespace] = true
		out = append(out, QName{Namespace: schema.TargetNamespace, Local: local})
	}
	return out
}

// TypeExists reports whether FindType would resolve qname.
func (r *Repository) TypeExists(qname string) bool {
	res, err := r.FindType(qname)
	return err == nil && res.Resolved
}

// TypeNameFilter narrows AllTypeNames.
type TypeNameFilter func(*TypeIndexEntry) bool

// InNamespace keeps entries of one target namespace.
func InNamespace(ns string) TypeNameFilter {
	return func(e *TypeIndexEntry) bool { return e.Namespace == ns }
}

// OfCategory keeps entries of one category.
func OfCategory(category TypeCategory) TypeNameFilter {
	return func(e *TypeIndexEntry) bool { return e.Category == category }
}

// AllTypeNames returns the sorted Clark names of the indexed components
// that pass every filter.
func (r *Repository) AllTypeNames(filters ...TypeNameFilter) ([]string, error) {
	if !r.resolved {
		return nil, ErrNotResolved
	}
	seen := make(map[string]bool)
	var out []string
	for _, entry := range r.index.Entries(nil, "") {
		keep := true
		for _, f := range filters {
			if !f(entry) {
				keep = false
				break
			}
		}
		key := entry.Name.Clark()
		if keep && !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out, nil
}
