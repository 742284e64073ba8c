package xsd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQName(t *testing.T) {
	local := QName{Local: "item"}
	qualified := QName{Namespace: "urn:a", Local: "item"}

	assert.Equal(t, "item", local.String())
	assert.Equal(t, "{}item", local.Clark())
	assert.Equal(t, "{urn:a}item", qualified.String())
	assert.Equal(t, "{urn:a}item", qualified.Clark())
	assert.True(t, QName{}.IsZero())
	assert.False(t, local.IsZero())
}

func TestParseClark(t *testing.T) {
	tests := []struct {
		in   string
		want QName
		ok   bool
	}{
		{in: "item", want: QName{Local: "item"}, ok: true},
		{in: "{urn:a}item", want: QName{Namespace: "urn:a", Local: "item"}, ok: true},
		{in: "{}item", want: QName{Local: "item"}, ok: true},
		{in: "{urn:a}", ok: false},
		{in: "{urn:a", ok: false},
		{in: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseClark(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestSplitPrefixed(t *testing.T) {
	p, l := splitPrefixed("xs:string")
	assert.Equal(t, "xs", p)
	assert.Equal(t, "string", l)

	p, l = splitPrefixed("string")
	assert.Empty(t, p)
	assert.Equal(t, "string", l)
}
