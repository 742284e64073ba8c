package xsd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const addrSchema = `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema" targetNamespace="urn:addr">
  <xs:simpleType name="Zip">
    <xs:restriction base="xs:string"><xs:pattern value="\d{5}"/></xs:restriction>
  </xs:simpleType>
</xs:schema>`

const orderSchema = `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema" xmlns:a="urn:addr"
    targetNamespace="urn:order" elementFormDefault="qualified">
  <xs:import namespace="urn:addr" schemaLocation="addr.xsd"/>
  <xs:simpleType name="Zip">
    <xs:restriction base="xs:string"/>
  </xs:simpleType>
  <xs:element name="zip" type="a:Zip"/>
</xs:schema>`

func newNamedRepository(t *testing.T, docs map[string]string, order ...string) *Repository {
	t.Helper()
	repo := NewRepository(WithLogger(discardLogger()), WithBaseDir(t.TempDir()))
	for _, name := range order {
		require.NoError(t, repo.AddSchemaBytes(name, []byte(docs[name])))
	}
	require.NoError(t, repo.Parse())
	require.NoError(t, repo.Resolve())
	return repo
}

func TestImportedTypeReference(t *testing.T) {
	repo := newNamedRepository(t, map[string]string{
		"order.xsd": orderSchema,
		"addr.xsd":  addrSchema,
	}, "order.xsd", "addr.xsd")
	assert.Empty(t, repo.Issues())

	decl, ok := repo.LookupElement(QName{Namespace: "urn:order", Local: "zip"})
	require.True(t, ok)
	assert.Equal(t, QName{Namespace: "urn:addr", Local: "Zip"}, decl.TypeRef)
	require.NotNil(t, decl.ResolvedType())
	assert.Equal(t, QName{Namespace: "urn:addr", Local: "Zip"}, decl.ResolvedType().TypeName())

	v, err := NewValidator(repo, nil, WithValidatorLogger(discardLogger()))
	require.NoError(t, err)

	tests := []struct {
		xml   string
		codes []string
	}{
		{xml: `<zip xmlns="urn:order">12345</zip>`},
		{xml: `<zip xmlns="urn:order">abc</zip>`, codes: []string{CodePatternMismatch}},
		{xml: `<o:zip xmlns:o="urn:order">1234</o:zip>`, codes: []string{CodePatternMismatch}},
	}
	for _, tt := range tests {
		t.Run(tt.xml, func(t *testing.T) {
			res := validate(t, v, tt.xml)
			assert.Equal(t, tt.codes, codes(res), messages(res))
		})
	}
}

func TestSchemaPrefixesFollowScope(t *testing.T) {
	repo := newTestRepository(t, `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"
    xmlns:p="urn:outer" targetNamespace="urn:outer">
  <xs:simpleType name="Code"><xs:restriction base="xs:token"/></xs:simpleType>
  <xs:element name="outer" type="p:Code"/>
  <xs:element name="inner" xmlns:p="urn:inner" type="p:Code"/>
</xs:schema>`)

	outer, ok := repo.LookupElement(QName{Namespace: "urn:outer", Local: "outer"})
	require.True(t, ok)
	assert.Equal(t, QName{Namespace: "urn:outer", Local: "Code"}, outer.TypeRef)

	inner, ok := repo.LookupElement(QName{Namespace: "urn:outer", Local: "inner"})
	require.True(t, ok)
	assert.Equal(t, QName{Namespace: "urn:inner", Local: "Code"}, inner.TypeRef)
	assert.Nil(t, inner.ResolvedType())
}

func TestUndeclaredSchemaPrefix(t *testing.T) {
	repo := newTestRepository(t, `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"
    xmlns:o="urn:order" targetNamespace="urn:order">
  <xs:simpleType name="Zip"><xs:restriction base="xs:string"/></xs:simpleType>
  <xs:element name="zip" type="b:Zip"/>
</xs:schema>`)

	var texts []string
	var unresolved int
	for _, issue := range repo.Issues() {
		texts = append(texts, issue.Message)
		if issue.Code == CodeTypeNotFound {
			unresolved++
		}
	}
	assert.Contains(t, texts, "undeclared namespace prefix 'b' in 'b:Zip'")
	assert.Equal(t, 1, unresolved, "the reference must not fall back to the target namespace")

	decl, ok := repo.LookupElement(QName{Namespace: "urn:order", Local: "zip"})
	require.True(t, ok)
	assert.Nil(t, decl.ResolvedType())
}

func TestRegistryCollectsSchemaPrefixes(t *testing.T) {
	repo := newTestRepository(t, orderSchema)

	uri, ok := repo.Namespaces().URI("a")
	require.True(t, ok)
	assert.Equal(t, "urn:addr", uri)

	res, err := repo.FindType("xs:token")
	require.NoError(t, err)
	assert.True(t, res.Resolved)
}

var taggedSchema = `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"
    xmlns:t="urn:t" targetNamespace="urn:t" elementFormDefault="qualified">
  <xs:element name="list">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="item" minOccurs="0" maxOccurs="unbounded">
          <xs:complexType><xs:attribute name="id" type="xs:string"/></xs:complexType>
        </xs:element>
        <xs:element name="link" minOccurs="0" maxOccurs="unbounded">
          <xs:complexType><xs:attribute name="to" type="xs:string"/></xs:complexType>
        </xs:element>
      </xs:sequence>
    </xs:complexType>
    <xs:key name="itemKey">
      <xs:selector xpath="t:item"/>
      <xs:field xpath="@id"/>
    </xs:key>
    <xs:keyref name="linkTarget" refer="t:itemKey">
      <xs:selector xpath="./t:link"/>
      <xs:field xpath="@to"/>
    </xs:keyref>
  </xs:element>
</xs:schema>`

func TestPrefixedIdentityPaths(t *testing.T) {
	v := newTestValidator(t, nil, taggedSchema)

	ic, ok := v.Repository().LookupConstraint(QName{Namespace: "urn:t", Local: "itemKey"})
	require.True(t, ok)
	assert.Equal(t, "urn:t", ic.Namespaces["t"])
	ref, ok := v.Repository().LookupConstraint(QName{Namespace: "urn:t", Local: "linkTarget"})
	require.True(t, ok)
	assert.Equal(t, QName{Namespace: "urn:t", Local: "itemKey"}, ref.Refer)

	tests := []struct {
		name  string
		body  string
		codes []string
	}{
		{name: "distinct", body: `<item id="1"/><item id="2"/><link to="2"/>`},
		{name: "duplicate", body: `<item id="1"/><item id="1"/>`, codes: []string{CodeDuplicateKey}},
		{name: "dangling", body: `<item id="1"/><link to="9"/>`, codes: []string{CodeKeyrefViolation}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := validate(t, v, `<list xmlns="urn:t">`+tt.body+`</list>`)
			assert.Equal(t, tt.codes, codes(res), messages(res))
		})
	}
}

func TestPrefixedXSIType(t *testing.T) {
	v := newTestValidator(t, nil, `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"
    xmlns:t="urn:t" targetNamespace="urn:t" elementFormDefault="qualified">
  <xs:complexType name="Base">
    <xs:sequence><xs:element name="a" type="xs:string"/></xs:sequence>
  </xs:complexType>
  <xs:complexType name="Derived">
    <xs:complexContent>
      <xs:extension base="t:Base">
        <xs:sequence><xs:element name="b" type="xs:string"/></xs:sequence>
      </xs:extension>
    </xs:complexContent>
  </xs:complexType>
  <xs:element name="thing" type="t:Base"/>
</xs:schema>`)

	const xsi = `xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"`
	tests := []struct {
		name     string
		xml      string
		notFound int
	}{
		{name: "prefixed", xml: `<t:thing xmlns:t="urn:t" ` + xsi + ` xsi:type="t:Derived"><t:a>x</t:a><t:b>y</t:b></t:thing>`},
		{name: "default namespace", xml: `<thing xmlns="urn:t" ` + xsi + ` xsi:type="Derived"><a>x</a><b>y</b></thing>`},
		{name: "second prefix", xml: `<q:thing xmlns:q="urn:t" xmlns:d="urn:t" ` + xsi + ` xsi:type="d:Derived"><q:a>x</q:a><q:b>y</q:b></q:thing>`},
		{name: "unknown type", xml: `<t:thing xmlns:t="urn:t" ` + xsi + ` xsi:type="t:Missing"><t:a>x</t:a></t:thing>`, notFound: 1},
		{name: "undeclared prefix", xml: `<t:thing xmlns:t="urn:t" ` + xsi + ` xsi:type="z:Derived"><t:a>x</t:a></t:thing>`, notFound: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := validate(t, v, tt.xml)
			assert.Empty(t, codes(res), messages(res))
			assert.Len(t, res.WithCode(CodeTypeNotFound), tt.notFound, messages(res))
		})
	}
}
