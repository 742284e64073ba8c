package xsd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(*XMLElement, *Element, *RuleContext) {}

func ruleNames(rules []Rule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.Name()
	}
	return out
}

func TestRuleRegistryRegister(t *testing.T) {
	reg, err := NewRuleRegistry()
	require.NoError(t, err)

	require.NoError(t, reg.Register(NewRule("a", RuleType, 1, noop)))
	assert.Equal(t, 1, reg.Len())
	assert.NotNil(t, reg.Lookup("a"))
	assert.Nil(t, reg.Lookup("b"))

	tests := []struct {
		name string
		rule Rule
	}{
		{name: "nil", rule: nil},
		{name: "unknown category", rule: NewRule("b", RuleCategory("style"), 1, noop)},
		{name: "duplicate", rule: NewRule("a", RuleStructure, 1, noop)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, reg.Register(tt.rule), ErrInvalidInput)
		})
	}
	assert.Equal(t, 1, reg.Len())

	assert.True(t, reg.Unregister("a"))
	assert.False(t, reg.Unregister("a"))
	assert.Equal(t, 0, reg.Len())

	_, err = NewRuleRegistry(NewRule("x", RuleType, 1, noop), NewRule("x", RuleType, 2, noop))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRuleRegistryOrdering(t *testing.T) {
	reg, err := NewRuleRegistry(
		NewRule("type-late", RuleType, 20, noop),
		NewRule("identity", RuleIdentity, 1, noop),
		NewRule("type-early", RuleType, 10, noop),
		NewRule("structure", RuleStructure, 99, noop),
		NewRule("type-tie", RuleType, 10, noop),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"structure", "type-early", "type-tie", "type-late", "identity"},
		ruleNames(reg.ApplicableRules(DefaultConfiguration())))
	assert.Equal(t, []string{"type-early", "type-tie", "type-late"}, ruleNames(reg.RulesForCategory(RuleType)))
	assert.Empty(t, reg.RulesForCategory(RuleAttribute))
}

func TestRuleRegistryApplicableRules(t *testing.T) {
	reg, err := NewRuleRegistry(DefaultRules()...)
	require.NoError(t, err)
	all := reg.ApplicableRules(DefaultConfiguration())
	assert.Len(t, all, len(DefaultRules()))

	cfg := DefaultConfiguration()
	cfg.Categories[RuleIdentity] = false
	cfg.Features[FeatureWildcards] = false
	names := ruleNames(reg.ApplicableRules(cfg))
	assert.NotContains(t, names, "key")
	assert.NotContains(t, names, "idref")
	assert.NotContains(t, names, "wildcard_element")
	assert.Contains(t, names, "attributes")

	gated := NewRule("gated", RuleType, 1, noop, FeatureFacets, FeatureTypes)
	cfg = DefaultConfiguration()
	assert.True(t, gated.Enabled(cfg))
	cfg.Features[FeatureTypes] = false
	assert.False(t, gated.Enabled(cfg))
}

func TestRuleCategoryValid(t *testing.T) {
	for _, c := range ruleCategories {
		assert.True(t, c.Valid())
	}
	assert.False(t, RuleCategory("").Valid())
	assert.False(t, RuleCategory("Structure").Valid())
}
