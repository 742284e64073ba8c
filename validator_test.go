package xsd

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var peopleSchema = wrap(`
  <xs:element name="people">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="person" type="PersonType" maxOccurs="unbounded"/>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
  <xs:complexType name="PersonType">
    <xs:sequence>
      <xs:element name="name" type="xs:string"/>
      <xs:element name="age" type="xs:int" minOccurs="0"/>
    </xs:sequence>
    <xs:attribute name="id" type="xs:string" use="required"/>
    <xs:attribute name="status" type="xs:string"/>
  </xs:complexType>`)

func TestValidatorPeople(t *testing.T) {
	v := newTestValidator(t, nil, peopleSchema)

	tests := []struct {
		name  string
		xml   string
		codes []string
		msg   string
	}{
		{
			name: "valid",
			xml:  `<people><person id="1"><name>Ada</name><age>36</age></person><person id="2"><name>Alan</name></person></people>`,
		},
		{
			name:  "undeclared child",
			xml:   `<people><person id="1"><name>Ada</name><nickname/></person></people>`,
			codes: []string{CodeElementNotAllowed},
			msg:   "Element '{}nickname' is not allowed here",
		},
		{
			name:  "missing required child",
			xml:   `<people><person id="1"><age>3</age></person></people>`,
			codes: []string{CodeElementNotAllowed},
			msg:   "Expected element '{}name' is missing",
		},
		{
			name:  "invalid int",
			xml:   `<people><person id="1"><name>Ada</name><age>old</age></person></people>`,
			codes: []string{CodeInvalidValue},
		},
		{
			name:  "missing required attribute",
			xml:   `<people><person><name>Ada</name></person></people>`,
			codes: []string{CodeRequiredAttributeMissing},
			msg:   "Required attribute 'id' is missing",
		},
		{
			name:  "undeclared attribute",
			xml:   `<people><person id="1" color="red"><name>Ada</name></person></people>`,
			codes: []string{CodeUnexpectedAttribute},
			msg:   "Attribute 'color' is not allowed",
		},
		{
			name:  "text in element-only content",
			xml:   `<people>stray<person id="1"><name>Ada</name></person></people>`,
			codes: []string{CodeTextNotAllowed},
		},
		{
			name:  "children in simple content",
			xml:   `<people><person id="1"><name><b/></name></person></people>`,
			codes: []string{CodeElementChildrenNotAllow},
		},
		{
			name:  "undeclared root",
			xml:   `<persons/>`,
			codes: []string{CodeElementNotAllowed},
			msg:   "Element '{}persons' is not declared as a global element",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := validate(t, v, tt.xml)
			assert.Equal(t, tt.codes, codes(res), messages(res))
			assert.Equal(t, len(tt.codes) == 0, res.Valid())
			if tt.msg != "" {
				assert.Contains(t, messages(res), tt.msg)
			}
		})
	}
}

func TestValidatorAttributeSuggestion(t *testing.T) {
	v := newTestValidator(t, nil, peopleSchema)
	res := validate(t, v, `<people><person idd="1"><name>Ada</name></person></people>`)

	found := res.WithCode(CodeUnexpectedAttribute)
	require.Len(t, found, 1)
	assert.Equal(t, "Did you mean: 'id'?", found[0].Suggestion)
	assert.Equal(t, "/people/person/@idd", found[0].Location)
	assert.True(t, res.HasCode(CodeRequiredAttributeMissing))
}

func TestValidatorUndeclaredRootSuggestion(t *testing.T) {
	v := newTestValidator(t, nil, peopleSchema)
	res := validate(t, v, `<peeple/>`)

	require.Len(t, res.Errors(), 1)
	assert.Contains(t, res.Errors()[0].Suggestion, "people")
}

func TestValidatorInput(t *testing.T) {
	v := newTestValidator(t, nil, peopleSchema)

	t.Run("empty", func(t *testing.T) {
		res, err := v.Validate("  \n ")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidInput))
		require.NotNil(t, res)
		assert.False(t, res.Valid())
		assert.Equal(t, []string{CodeInvalidInput}, codes(res))
	})

	t.Run("malformed", func(t *testing.T) {
		res := validate(t, v, `<people><person></people>`)
		assert.Equal(t, []string{CodeXMLParseError}, codes(res))
		assert.True(t, strings.HasPrefix(res.Errors()[0].Message, "Malformed XML"))
	})

	t.Run("nil reader", func(t *testing.T) {
		_, err := v.ValidateReader(nil)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("reader", func(t *testing.T) {
		res, err := v.ValidateReader(strings.NewReader(`<people><person id="1"><name>Ada</name></person></people>`))
		require.NoError(t, err)
		assert.True(t, res.Valid())
	})
}

func TestNewValidatorErrors(t *testing.T) {
	_, err := NewValidator(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	repo := NewRepository(WithLogger(discardLogger()))
	_, err = NewValidator(repo, nil)
	assert.ErrorIs(t, err, ErrNotResolved)

	_, err = NewValidatorFromFiles(nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestValidatorDeterministic(t *testing.T) {
	v := newTestValidator(t, nil, peopleSchema)
	doc := `<people><person color="x"><nick/><age>x</age></person><person id="2"/></people>`

	first := validate(t, v, doc)
	second := validate(t, v, doc)
	assert.False(t, first.Valid())
	assert.True(t, first.Equal(second))
}

func TestValidatorConcurrent(t *testing.T) {
	v := newTestValidator(t, nil, peopleSchema)
	docs := []string{
		`<people><person id="1"><name>Ada</name></person></people>`,
		`<people><person><name>Ada</name><age>x</age></person></people>`,
	}
	want := make([]*ValidationResult, len(docs))
	for i, doc := range docs {
		want[i] = validate(t, v, doc)
	}

	var wg sync.WaitGroup
	results := make([]*ValidationResult, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = v.Validate(docs[i%len(docs)])
		}(i)
	}
	wg.Wait()
	for i, res := range results {
		require.NotNil(t, res)
		assert.True(t, want[i%len(docs)].Equal(res))
	}
}

func TestValidatorStopOnFirstError(t *testing.T) {
	doc := `<people><person color="x"><age>x</age></person><person/></people>`

	all := validate(t, newTestValidator(t, nil, peopleSchema), doc)
	assert.Greater(t, len(all.Errors()), 1)

	cfg := DefaultConfiguration()
	cfg.StopOnFirstError = true
	one := validate(t, newTestValidator(t, cfg, peopleSchema), doc)
	require.Len(t, one.Errors(), 1)
	assert.Equal(t, all.Errors()[0], one.Errors()[0])
}

func TestValidatorConfigurationGates(t *testing.T) {
	doc := `<people><person><name>Ada</name><age>old</age></person></people>`

	tests := []struct {
		name   string
		mutate func(*Configuration)
		codes  []string
	}{
		{
			name:   "defaults",
			mutate: func(*Configuration) {},
			codes:  []string{CodeRequiredAttributeMissing, CodeInvalidValue},
		},
		{
			name:   "attribute category off",
			mutate: func(c *Configuration) { c.Categories[RuleAttribute] = false },
			codes:  []string{CodeInvalidValue},
		},
		{
			name:   "types feature off",
			mutate: func(c *Configuration) { c.Features[FeatureTypes] = false },
			codes:  []string{CodeRequiredAttributeMissing},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfiguration()
			tt.mutate(cfg)
			res := validate(t, newTestValidator(t, cfg, peopleSchema), doc)
			assert.Equal(t, tt.codes, codes(res), messages(res))
		})
	}
}

func TestValidatorRootElement(t *testing.T) {
	schema := `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema" targetNamespace="urn:a" xmlns="urn:a">
  <xs:element name="doc" type="xs:string"/>
  <xs:element name="note" type="xs:string"/>
</xs:schema>`
	repo := newTestRepository(t, schema)

	tests := []struct {
		name string
		root QName
		xml  string
		code string
	}{
		{name: "match", root: QName{Namespace: "urn:a", Local: "doc"}, xml: `<doc xmlns="urn:a"/>`},
		{name: "other name", root: QName{Namespace: "urn:a", Local: "doc"}, xml: `<note xmlns="urn:a"/>`, code: CodeElementNameMismatch},
		{name: "other namespace", root: QName{Namespace: "urn:b", Local: "doc"}, xml: `<doc xmlns="urn:a"/>`, code: CodeNamespaceMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewValidator(repo, nil, WithRootElement(tt.root), WithValidatorLogger(discardLogger()))
			require.NoError(t, err)
			res := validate(t, v, tt.xml)
			if tt.code == "" {
				assert.True(t, res.Valid(), messages(res))
				return
			}
			assert.Equal(t, []string{tt.code}, codes(res))
		})
	}
}

func TestValidatorExtraRules(t *testing.T) {
	audit := NewRule("audit_status", RuleAttribute, 100, func(node *XMLElement, decl *Element, ctx *RuleContext) {
		if decl == nil || decl.Name.Local != "person" {
			return
		}
		if attr, ok := node.Attribute(QName{Local: "status"}); ok && attr.Value() == "retired" {
			ctx.Warning(attr, "retired_person", "Person is retired")
		}
	})

	repo := newTestRepository(t, peopleSchema)
	v, err := NewValidator(repo, nil, WithExtraRules(audit), WithValidatorLogger(discardLogger()))
	require.NoError(t, err)
	assert.Equal(t, len(DefaultRules())+1, v.Registry().Len())

	res := validate(t, v, `<people><person id="1" status="retired"><name>Ada</name></person></people>`)
	assert.True(t, res.Valid())
	require.Len(t, res.Warnings(), 1)
	assert.Equal(t, "retired_person", res.Warnings()[0].Code)

	_, err = NewValidator(repo, nil, WithExtraRules(newKeyRule()))
	assert.ErrorIs(t, err, ErrInvalidInput, "duplicate rule names are rejected")
}

func TestValidatorOnlyCustomRules(t *testing.T) {
	calls := 0
	counter := NewRule("count", RuleStructure, 1, func(*XMLElement, *Element, *RuleContext) { calls++ })

	v, err := NewValidator(newTestRepository(t, peopleSchema), nil, WithRules(counter), WithValidatorLogger(discardLogger()))
	require.NoError(t, err)
	res := validate(t, v, `<people><person><age>x</age></person></people>`)
	assert.True(t, res.Valid())
	assert.Equal(t, 3, calls)
}

func TestValidatorStrictMode(t *testing.T) {
	schema := wrap(`<xs:element name="doc" type="MissingType"/>`)

	lenient := validate(t, newTestValidator(t, nil, schema), `<doc/>`)
	assert.True(t, lenient.Valid())
	require.Len(t, lenient.Warnings(), 1)
	assert.Equal(t, CodeTypeNotFound, lenient.Warnings()[0].Code)

	strict := validate(t, newTestValidator(t, strictConfig(), schema), `<doc/>`)
	assert.Equal(t, []string{CodeTypeNotFound}, codes(strict))
}

func TestValidatorResultMap(t *testing.T) {
	v := newTestValidator(t, nil, peopleSchema)
	res := validate(t, v, `<people><person><name>Ada</name></person></people>`)

	m := res.Map()
	assert.Equal(t, false, m["valid"])
	errs, ok := m["errors"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeRequiredAttributeMissing, errs[0]["code"])
	assert.Equal(t, "/people/person", errs[0]["location"])
	assert.Equal(t, 1, res.ExitCode())
}
