package xsd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nillableSchema = wrap(`
  <xs:element name="doc">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="note" type="xs:int" nillable="true"/>
        <xs:element name="title" type="xs:string" minOccurs="0"/>
        <xs:element name="item" type="Item" minOccurs="0"/>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
  <xs:complexType name="Item">
    <xs:sequence>
      <xs:element name="label" type="xs:string"/>
    </xs:sequence>
  </xs:complexType>
  <xs:complexType name="Labelled">
    <xs:complexContent>
      <xs:extension base="Item">
        <xs:attribute name="lang" type="xs:language"/>
      </xs:extension>
    </xs:complexContent>
  </xs:complexType>`)

const xsiDecl = ` xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"`

func TestNillable(t *testing.T) {
	v := newTestValidator(t, nil, nillableSchema)

	tests := []struct {
		name  string
		body  string
		codes []string
	}{
		{name: "nilled and empty", body: `<note xsi:nil="true"/>`},
		{name: "nil false", body: `<note xsi:nil="false">4</note>`},
		{name: "nilled with content", body: `<note xsi:nil="1">4</note>`, codes: []string{CodeNilContentNotEmpty}},
		{name: "not nillable", body: `<note>1</note><title xsi:nil="true"/>`, codes: []string{CodeNilNotAllowed}},
		{name: "empty int without nil", body: `<note/>`, codes: []string{CodeInvalidValue}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := validate(t, v, `<doc`+xsiDecl+`>`+tt.body+`</doc>`)
			assert.Equal(t, tt.codes, codes(res), messages(res))
		})
	}
}

func TestNillableFeatureOff(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.Features[FeatureNillable] = false
	v := newTestValidator(t, cfg, nillableSchema)

	res := validate(t, v, `<doc`+xsiDecl+`><note>1</note><title xsi:nil="true"/></doc>`)
	assert.True(t, res.Valid(), messages(res))
}

func TestXSIType(t *testing.T) {
	v := newTestValidator(t, nil, nillableSchema)

	t.Run("derived type", func(t *testing.T) {
		res := validate(t, v, `<doc`+xsiDecl+`><note>1</note><item xsi:type="Labelled" lang="en"><label>a</label></item></doc>`)
		assert.True(t, res.Valid(), messages(res))
	})

	t.Run("attribute needs the derived type", func(t *testing.T) {
		res := validate(t, v, `<doc><note>1</note><item lang="en"><label>a</label></item></doc>`)
		assert.Equal(t, []string{CodeUnexpectedAttribute}, codes(res))
	})

	t.Run("unknown type", func(t *testing.T) {
		res := validate(t, v, `<doc`+xsiDecl+`><note>1</note><item xsi:type="Labeled"><label>a</label></item></doc>`)
		assert.True(t, res.Valid())
		require.Len(t, res.Warnings(), 1)
		assert.Equal(t, CodeTypeNotFound, res.Warnings()[0].Code)
		assert.Contains(t, res.Warnings()[0].Suggestion, "Labelled")
	})

	t.Run("unknown type in strict mode", func(t *testing.T) {
		strict := newTestValidator(t, strictConfig(), nillableSchema)
		res := validate(t, strict, `<doc`+xsiDecl+`><note>1</note><item xsi:type="Labeled"><label>a</label></item></doc>`)
		assert.Equal(t, []string{CodeTypeNotFound}, codes(res))
	})
}

func TestMixedContentFindingContext(t *testing.T) {
	v := newTestValidator(t, nil, nillableSchema)
	res := validate(t, v, `<doc><note>1</note><item>  some loose text <label>a</label></item></doc>`)

	found := res.WithCode(CodeTextNotAllowed)
	require.Len(t, found, 1)
	assert.Equal(t, "/doc/item", found[0].Location)
	assert.Equal(t, "some loose text", found[0].Context["text"])
	assert.Equal(t, "Element '{}item' cannot contain text content", found[0].Message)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))
	assert.Equal(t, "äöü...", truncate("äöüß", 3))
}
