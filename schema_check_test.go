package xsd

import (
	"strings"
	"testing"

	"github.com/agentflare-ai/go-xmldom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkSchema(t *testing.T, body string) []SchemaIssue {
	t.Helper()
	doc, err := xmldom.Decode(strings.NewReader(wrap(body)))
	require.NoError(t, err)
	return checkSchemaDocument(doc.DocumentElement(), "test.xsd")
}

func TestSchemaCheck(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		message  string
		severity Severity
	}{
		{
			name:    "occurs bounds",
			body:    `<xs:complexType name="T"><xs:sequence><xs:element name="a" minOccurs="3" maxOccurs="2"/></xs:sequence></xs:complexType>`,
			message: "<element name='a'>: minOccurs (3) cannot be greater than maxOccurs (2)",
		},
		{
			name:    "bad minOccurs",
			body:    `<xs:complexType name="T"><xs:sequence minOccurs="-1"/></xs:complexType>`,
			message: "invalid minOccurs value '-1'",
		},
		{
			name:    "unnamed global element",
			body:    `<xs:element type="xs:string"/>`,
			message: "global element must have a name attribute",
		},
		{
			name:    "type and inline type",
			body:    `<xs:element name="e" type="xs:string"><xs:simpleType><xs:restriction base="xs:string"/></xs:simpleType></xs:element>`,
			message: "element cannot have both 'type' attribute and inline type definition",
		},
		{
			name:    "default and fixed",
			body:    `<xs:attribute name="a" default="1" fixed="1"/>`,
			message: "attribute cannot have both 'default' and 'fixed' attributes",
		},
		{
			name:    "bad use",
			body:    `<xs:complexType name="T"><xs:attribute name="a" use="always"/></xs:complexType>`,
			message: "invalid use value 'always'",
		},
		{
			name:    "keyref without refer",
			body:    `<xs:element name="e"><xs:keyref name="k"><xs:selector xpath="a"/><xs:field xpath="@b"/></xs:keyref></xs:element>`,
			message: "keyref must have 'refer' attribute",
		},
		{
			name:    "constraint without field",
			body:    `<xs:element name="e"><xs:key name="k"><xs:selector xpath="a"/></xs:key></xs:element>`,
			message: "key must have at least one field child element",
		},
		{
			name:    "list with both item types",
			body:    `<xs:simpleType name="L"><xs:list itemType="xs:int"><xs:simpleType><xs:restriction base="xs:int"/></xs:simpleType></xs:list></xs:simpleType>`,
			message: "list cannot have both 'itemType' attribute and inline simpleType element",
		},
		{
			name:    "empty union",
			body:    `<xs:simpleType name="U"><xs:union/></xs:simpleType>`,
			message: "union must have either 'memberTypes' attribute or inline simpleType elements",
		},
		{
			name:    "facet without value",
			body:    `<xs:simpleType name="S"><xs:restriction base="xs:string"><xs:maxLength/></xs:restriction></xs:simpleType>`,
			message: "maxLength facet must have 'value' attribute",
		},
		{
			name:    "all with repeating element",
			body:    `<xs:complexType name="T"><xs:all><xs:element name="a" maxOccurs="2"/></xs:all></xs:complexType>`,
			message: "elements within xs:all must have maxOccurs of 0 or 1",
		},
		{
			name:    "bad processContents",
			body:    `<xs:complexType name="T"><xs:sequence><xs:any processContents="loose"/></xs:sequence></xs:complexType>`,
			message: "invalid processContents value 'loose'",
		},
		{
			name:    "duplicate id",
			body:    `<xs:element name="a" id="x" type="xs:string"/><xs:element name="b" id="x" type="xs:string"/>`,
			message: "duplicate id value 'x'",
		},
		{
			name:     "named local simpleType",
			body:     `<xs:element name="e"><xs:simpleType name="Inner"><xs:restriction base="xs:string"/></xs:simpleType></xs:element>`,
			message:  "local simpleType must not have a name attribute",
			severity: SeverityWarning,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := checkSchema(t, tt.body)
			require.Len(t, issues, 1, "%v", issues)
			want := tt.severity
			if want == "" {
				want = SeverityError
			}
			assert.Equal(t, want, issues[0].Severity)
			assert.Equal(t, CodeSchemaInvalid, issues[0].Code)
			assert.Equal(t, "test.xsd", issues[0].Location)
			assert.Contains(t, issues[0].Message, tt.message)
		})
	}
}

func TestSchemaCheckClean(t *testing.T) {
	assert.Empty(t, checkSchema(t, `
  <xs:element name="doc">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="a" type="xs:string" minOccurs="0" maxOccurs="unbounded"/>
        <xs:any namespace="##other" processContents="lax" minOccurs="0"/>
      </xs:sequence>
      <xs:attribute name="id" type="xs:ID" use="required"/>
    </xs:complexType>
    <xs:key name="k"><xs:selector xpath="a"/><xs:field xpath="."/></xs:key>
  </xs:element>`))
}

func TestSchemaIssueString(t *testing.T) {
	issue := SchemaIssue{Severity: SeverityError, Location: "a.xsd", Line: 4, Message: "bad"}
	assert.Equal(t, "a.xsd:4: error: bad", issue.String())
	issue.Line = 0
	assert.Equal(t, "a.xsd: error: bad", issue.String())
}

func TestIsValidNCName(t *testing.T) {
	for _, ok := range []string{"a", "_a", "a.b-c", "A1"} {
		assert.True(t, isValidNCName(ok), ok)
	}
	for _, bad := range []string{"", "1a", "a:b", "a b", "-a"} {
		assert.False(t, isValidNCName(bad), bad)
	}
}
