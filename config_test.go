package xsd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfiguration(t *testing.T) {
	cfg := DefaultConfiguration()

	assert.False(t, cfg.StrictMode)
	assert.False(t, cfg.StopOnFirstError)
	assert.Equal(t, DefaultFuzzyThreshold, cfg.FuzzyThreshold)
	assert.Equal(t, DefaultMaxSuggestions, cfg.MaxSuggestions)
	for _, f := range knownFeatures {
		assert.True(t, cfg.FeatureEnabled(f), f)
	}
	for _, c := range ruleCategories {
		assert.True(t, cfg.CategoryEnabled(c), string(c))
	}
	assert.True(t, cfg.FeatureEnabled("not_a_feature"))

	var none *Configuration
	assert.True(t, none.FeatureEnabled(FeatureTypes))
	assert.True(t, none.CategoryEnabled(RuleType))
}

func TestParseConfiguration(t *testing.T) {
	cfg, err := ParseConfiguration([]byte(`
validation:
  strict_mode: true
  stop_on_first_error: true
  features:
    facets: false
    wildcards: false
  categories:
    identity: false
repository:
  fuzzy_threshold: 0.8
  max_suggestions: 2
`))
	require.NoError(t, err)

	assert.True(t, cfg.StrictMode)
	assert.True(t, cfg.StopOnFirstError)
	assert.False(t, cfg.FeatureEnabled(FeatureFacets))
	assert.False(t, cfg.FeatureEnabled(FeatureWildcards))
	assert.True(t, cfg.FeatureEnabled(FeatureTypes))
	assert.False(t, cfg.CategoryEnabled(RuleIdentity))
	assert.True(t, cfg.CategoryEnabled(RuleStructure))
	assert.Equal(t, 0.8, cfg.FuzzyThreshold)
	assert.Equal(t, 2, cfg.MaxSuggestions)
}

func TestParseConfigurationEmpty(t *testing.T) {
	cfg, err := ParseConfiguration(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfiguration(), cfg)

	cfg, err = ParseConfiguration([]byte("validation:\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfiguration(), cfg)
}

func TestParseConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		key  string
	}{
		{name: "unknown section", yaml: "output: {}", key: "output"},
		{name: "section not a mapping", yaml: "validation: 3", key: "validation"},
		{name: "unknown key", yaml: "validation: {verbose: true}", key: "validation.verbose"},
		{name: "not a boolean", yaml: "validation: {strict_mode: yes please}", key: "validation.strict_mode"},
		{name: "unknown feature", yaml: "validation: {features: {colors: true}}", key: "validation.features.colors"},
		{name: "feature not a boolean", yaml: "validation: {features: {facets: 1}}", key: "validation.features.facets"},
		{name: "unknown category", yaml: "validation: {categories: {style: false}}", key: "validation.categories.style"},
		{name: "threshold range", yaml: "repository: {fuzzy_threshold: 1.5}", key: "repository.fuzzy_threshold"},
		{name: "threshold type", yaml: "repository: {fuzzy_threshold: high}", key: "repository.fuzzy_threshold"},
		{name: "negative suggestions", yaml: "repository: {max_suggestions: -1}", key: "repository.max_suggestions"},
		{name: "fractional suggestions", yaml: "repository: {max_suggestions: 2.5}", key: "repository.max_suggestions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfiguration([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfig)
			var cerr *ConfigError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, tt.key, cerr.Key)
		})
	}

	_, err := ParseConfiguration([]byte("validation: [unclosed"))
	assert.ErrorIs(t, err, ErrConfig)
}

func TestLoadConfiguration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xsdcheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte("validation:\n  strict_mode: true\n"), 0o644))

	cfg, err := LoadConfiguration(path)
	require.NoError(t, err)
	assert.True(t, cfg.StrictMode)

	_, err = LoadConfiguration(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, ErrConfig)
}

func TestConfigurationClone(t *testing.T) {
	cfg := DefaultConfiguration()
	clone := cfg.Clone()
	clone.Features[FeatureFacets] = false
	clone.Categories[RuleType] = false
	clone.StrictMode = true

	assert.True(t, cfg.FeatureEnabled(FeatureFacets))
	assert.True(t, cfg.CategoryEnabled(RuleType))
	assert.False(t, cfg.StrictMode)
}

func TestConfigurationMapRoundTrip(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.StrictMode = true
	cfg.Features[FeatureNillable] = false
	cfg.MaxSuggestions = 3

	m := cfg.Map()
	validation := m["validation"].(map[string]any)
	assert.Equal(t, true, validation["strict_mode"])
	assert.Equal(t, false, validation["features"].(map[string]any)[FeatureNillable])

	back, err := ConfigurationFromMap(m)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}
