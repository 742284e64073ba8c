package xsd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nsPeople = "urn:people"

var nsPeopleSchema = `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"
    xmlns:ns="urn:people" targetNamespace="urn:people" elementFormDefault="qualified">
  <xs:element name="person" type="ns:PersonType"/>
  <xs:complexType name="PersonType">
    <xs:sequence>
      <xs:element name="name" type="ns:NameType"/>
      <xs:element name="address" type="ns:AddressType" minOccurs="0"/>
    </xs:sequence>
    <xs:attributeGroup ref="ns:Audit"/>
  </xs:complexType>
  <xs:complexType name="AddressType">
    <xs:group ref="ns:AddressParts"/>
  </xs:complexType>
  <xs:group name="AddressParts">
    <xs:sequence>
      <xs:element name="street" type="xs:string"/>
      <xs:element name="zip" type="ns:ZipCode"/>
    </xs:sequence>
  </xs:group>
  <xs:simpleType name="NameType">
    <xs:restriction base="xs:string"><xs:minLength value="1"/></xs:restriction>
  </xs:simpleType>
  <xs:simpleType name="ZipCode">
    <xs:restriction base="xs:string"><xs:pattern value="\d{5}"/></xs:restriction>
  </xs:simpleType>
  <xs:attributeGroup name="Audit">
    <xs:attribute name="created" type="xs:date"/>
  </xs:attributeGroup>
</xs:schema>`

func TestRepositoryLifecycle(t *testing.T) {
	repo := NewRepository(WithLogger(discardLogger()))

	assert.ErrorIs(t, repo.Resolve(), ErrNotParsed)
	_, err := repo.FindType("ns:PersonType")
	assert.ErrorIs(t, err, ErrNotResolved)
	_, err = repo.AllTypeNames()
	assert.ErrorIs(t, err, ErrNotResolved)

	assert.ErrorIs(t, repo.AddSchemaBytes("empty.xsd", nil), ErrInvalidInput)
	assert.ErrorIs(t, repo.AddSchemaFile("  "), ErrInvalidInput)

	require.NoError(t, repo.AddSchemaBytes("people.xsd", []byte(nsPeopleSchema)))
	require.NoError(t, repo.Parse())
	assert.True(t, repo.Parsed())
	assert.False(t, repo.Resolved())
	require.NoError(t, repo.Resolve())
	assert.True(t, repo.Resolved())
	assert.Empty(t, repo.Issues())
}

func TestRepositoryParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		schema string
	}{
		{name: "malformed", schema: `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"><xs:element`},
		{name: "not a schema", schema: `<root/>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewRepository(WithLogger(discardLogger()), WithBaseDir(t.TempDir()))
			require.NoError(t, repo.AddSchemaBytes("bad.xsd", []byte(tt.schema)))
			err := repo.Parse()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSchemaParse)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		repo := NewRepository(WithLogger(discardLogger()))
		require.NoError(t, repo.AddSchemaFile(t.TempDir()+"/nope.xsd"))
		assert.ErrorIs(t, repo.Parse(), ErrSchemaParse)
	})
}

func TestFindType(t *testing.T) {
	repo := newTestRepository(t, nsPeopleSchema)

	tests := []struct {
		query    string
		name     QName
		category TypeCategory
	}{
		{"ns:PersonType", QName{nsPeople, "PersonType"}, CategoryComplexType},
		{"{urn:people}AddressType", QName{nsPeople, "AddressType"}, CategoryComplexType},
		{"ZipCode", QName{nsPeople, "ZipCode"}, CategorySimpleType},
		{"ns:person", QName{nsPeople, "person"}, CategoryElement},
		{"ns:AddressParts", QName{nsPeople, "AddressParts"}, CategoryGroup},
		{"ns:Audit", QName{nsPeople, "Audit"}, CategoryAttributeGroup},
		{"xs:string", QName{XSDNamespace, "string"}, CategorySimpleType},
		{"xs:anyType", QName{XSDNamespace, "anyType"}, CategoryComplexType},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			res, err := repo.FindType(tt.query)
			require.NoError(t, err)
			assert.True(t, res.Resolved, res.ErrorMessage)
			assert.Equal(t, tt.name, res.Name)
			assert.Equal(t, tt.category, res.Category)
			assert.NotNil(t, res.Definition)
			assert.True(t, repo.TypeExists(tt.query))
		})
	}
}

func TestFindTypeSuggestions(t *testing.T) {
	repo := newTestRepository(t, nsPeopleSchema)

	res, err := repo.FindType("ns:PersonTypo")
	require.NoError(t, err)
	assert.False(t, res.Resolved)
	require.NotEmpty(t, res.Suggestions)
	assert.Equal(t, "PersonType", res.Suggestions[0].Name.Local)
	assert.GreaterOrEqual(t, res.Suggestions[0].Similarity, 0.6)
	assert.Contains(t, res.ErrorMessage, "Did you mean: PersonType")

	lookupErr := res.Err("ns:PersonTypo")
	assert.ErrorIs(t, lookupErr, ErrTypeNotFound)

	res, err = repo.FindType("unknown:PersonType")
	require.NoError(t, err)
	assert.False(t, res.Resolved, "unknown prefixes do not resolve")

	_, err = repo.FindType(" ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.False(t, repo.TypeExists("Nothing"))
}

func TestEveryTopLevelComponentResolves(t *testing.T) {
	repo := newTestRepository(t, nsPeopleSchema, peopleSchema)

	names, err := repo.AllTypeNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	for _, name := range names {
		assert.True(t, repo.TypeExists(name), name)
	}

	for _, schema := range repo.Schemas() {
		for _, ct := range schema.ComplexTypes {
			assert.True(t, repo.TypeExists(ct.Name.Clark()), ct.Name.Clark())
		}
		for _, st := range schema.SimpleTypes {
			assert.True(t, repo.TypeExists(st.Name.Clark()), st.Name.Clark())
		}
		for _, el := range schema.Elements {
			assert.True(t, repo.TypeExists(el.Name.Clark()), el.Name.Clark())
		}
	}
}

func TestAllTypeNamesFilters(t *testing.T) {
	repo := newTestRepository(t, nsPeopleSchema, peopleSchema)

	simple, err := repo.AllTypeNames(OfCategory(CategorySimpleType))
	require.NoError(t, err)
	assert.Equal(t, []string{"{urn:people}NameType", "{urn:people}ZipCode"}, simple)

	local, err := repo.AllTypeNames(InNamespace(""))
	require.NoError(t, err)
	assert.Equal(t, []string{"{}PersonType", "{}people"}, local)

	both, err := repo.AllTypeNames(InNamespace(nsPeople), OfCategory(CategoryElement))
	require.NoError(t, err)
	assert.Equal(t, []string{"{urn:people}person"}, both)
}

func TestDependencies(t *testing.T) {
	repo := newTestRepository(t, nsPeopleSchema)

	deps, err := repo.Dependencies("ns:PersonType", 3)
	require.NoError(t, err)
	require.Contains(t, deps, "{urn:people}NameType")
	require.Contains(t, deps, "{urn:people}AddressType")
	require.Contains(t, deps, "{urn:people}Audit")
	assert.NotContains(t, deps, "{http://www.w3.org/2001/XMLSchema}date")

	address := deps["{urn:people}AddressType"]
	assert.True(t, address.Resolved)
	assert.Equal(t, CategoryComplexType, address.TypeCategory)
	require.Contains(t, address.Dependencies, "{urn:people}AddressParts")
	assert.Contains(t, address.Dependencies["{urn:people}AddressParts"].Dependencies, "{urn:people}ZipCode")

	shallow, err := repo.Dependencies("ns:PersonType", 1)
	require.NoError(t, err)
	assert.Empty(t, shallow["{urn:people}AddressType"].Dependencies)

	_, err = repo.Dependencies("ns:Nope", 1)
	assert.ErrorIs(t, err, ErrTypeNotFound)

	dependents, err := repo.Dependents("ns:ZipCode")
	require.NoError(t, err)
	assert.Equal(t, []string{"{urn:people}AddressParts"}, keys(dependents))
}

func keys(m map[string]DependencyNode) []string {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestNamespaceRegistry(t *testing.T) {
	reg := NewNamespaceRegistry(discardLogger())

	assert.True(t, reg.Register("a", "urn:a", "one.xsd"))
	assert.True(t, reg.Register("a", "urn:a", "two.xsd"), "rebinding the same URI is fine")
	assert.True(t, reg.Register("alt", "urn:a", "two.xsd"))
	assert.False(t, reg.Register("a", "urn:other", "three.xsd"))

	uri, ok := reg.URI("a")
	assert.True(t, ok)
	assert.Equal(t, "urn:a", uri)
	prefix, ok := reg.Prefix("urn:a")
	assert.True(t, ok)
	assert.Equal(t, "a", prefix, "the first prefix of a URI wins")
	assert.Equal(t, []string{"a", "alt"}, reg.Prefixes())

	conflicts := reg.Conflicts()
	require.Len(t, conflicts, 1)
	assert.Equal(t, NamespaceConflict{Prefix: "a", Existing: "urn:a", Rejected: "urn:other", Source: "three.xsd"}, conflicts[0])
}

func TestRepositoryNamespaceConflicts(t *testing.T) {
	other := `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema" xmlns:ns="urn:other" targetNamespace="urn:other">
  <xs:simpleType name="Code"><xs:restriction base="xs:token"/></xs:simpleType>
</xs:schema>`
	repo := newTestRepository(t, nsPeopleSchema, other)

	conflicts := repo.Namespaces().Conflicts()
	require.Len(t, conflicts, 1)
	assert.Equal(t, "ns", conflicts[0].Prefix)
	assert.Equal(t, nsPeople, conflicts[0].Existing)

	res, err := repo.FindType("{urn:other}Code")
	require.NoError(t, err)
	assert.True(t, res.Resolved, "Clark names bypass prefix conflicts")
}

func TestTypeIndex(t *testing.T) {
	idx := NewTypeIndex()
	name := QName{Namespace: "urn:x", Local: "Item"}

	assert.True(t, idx.Add(&TypeIndexEntry{Name: name, Category: CategoryElement, Namespace: "urn:x"}))
	assert.True(t, idx.Add(&TypeIndexEntry{Name: name, Category: CategoryComplexType, Namespace: "urn:x"}))
	assert.False(t, idx.Add(&TypeIndexEntry{Name: name, Category: CategoryElement, Namespace: "urn:x"}))
	assert.Equal(t, 2, idx.Len())

	entry, ok := idx.Lookup(name)
	require.True(t, ok)
	assert.Equal(t, CategoryComplexType, entry.Category, "types take precedence over elements")

	ns := "urn:x"
	assert.Len(t, idx.Entries(&ns, CategoryElement), 1)
	other := "urn:y"
	assert.Empty(t, idx.Entries(&other, ""))

	suggestions := idx.Suggest("item", 0.6, 5)
	require.Len(t, suggestions, 1)
	assert.Equal(t, 1.0, suggestions[0].Similarity, "suggestions ignore case")
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 1},
		{"abc", "abc", 1},
		{"abc", "", 0},
		{"PersonType", "PersonTypo", 0.9},
		{"kitten", "sitting", 1 - 3.0/7},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			assert.InDelta(t, tt.want, similarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestFindTypeByPrefixedName(t *testing.T) {
	repo := newTestRepository(t, nsPeopleSchema)

	names, err := repo.AllTypeNames(InNamespace(nsPeople))
	require.NotEmpty(t, names)
	require.NoError(t, err)
	for _, clark := range names {
		name, ok := ParseClark(clark)
		require.True(t, ok, clark)
		for _, query := range []string{"ns:" + name.Local, name.Local} {
			res, err := repo.FindType(query)
			require.NoError(t, err)
			assert.True(t, res.Resolved, query)
			assert.Equal(t, name, res.Name, query)
		}
	}

	res, err := repo.FindType("other:PersonType")
	require.NoError(t, err)
	assert.False(t, res.Resolved)
}

func TestDependenciesKeepSymbolSpaces(t *testing.T) {
	schema := `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"
    xmlns:ns="urn:people" targetNamespace="urn:people" elementFormDefault="qualified">
  <xs:complexType name="Person">
    <xs:sequence><xs:element name="name" type="xs:string"/></xs:sequence>
  </xs:complexType>
  <xs:element name="Person" type="ns:Person"/>
  <xs:complexType name="Team">
    <xs:sequence><xs:element ref="ns:Person" maxOccurs="unbounded"/></xs:sequence>
  </xs:complexType>
  <xs:complexType name="Badge">
    <xs:sequence><xs:element name="owner" type="ns:Person"/></xs:sequence>
  </xs:complexType>
</xs:schema>`
	repo := newTestRepository(t, schema)

	deps, err := repo.Dependencies("ns:Team", 2)
	require.NoError(t, err)
	require.Contains(t, deps, "{urn:people}Person")
	person := deps["{urn:people}Person"]
	assert.Equal(t, CategoryElement, person.TypeCategory)
	assert.Contains(t, person.Dependencies, "{urn:people}Person", "the element refers on to its type")
	assert.Equal(t, CategoryComplexType, person.Dependencies["{urn:people}Person"].TypeCategory)

	deps, err = repo.Dependencies("ns:Badge", 1)
	require.NoError(t, err)
	assert.Equal(t, CategoryComplexType, deps["{urn:people}Person"].TypeCategory)

	dependents, err := repo.Dependents("{urn:people}Person")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"{urn:people}Person", "{urn:people}Badge"}, keys(dependents))
}
