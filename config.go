package xsd

import (
	"fmt"
	"os"
	"sort"

	"go.yaml.in/yaml/v4"
)

// Feature names accepted under validation.features.
const (
	FeatureContentModel        = "content_model"
	FeatureOccurrence          = "occurrence"
	FeatureAttributes          = "attributes"
	FeatureTypes               = "types"
	FeatureFacets              = "facets"
	FeatureIdentityConstraints = "identity_constraints"
	FeatureIDReferences        = "id_references"
	FeatureSubstitutionGroups  = "substitution_groups"
	FeatureWildcards           = "wildcards"
	FeatureFixedValues         = "fixed_values"
	FeatureNillable            = "nillable"
)

var knownFeatures = []string{
	FeatureContentModel,
	FeatureOccurrence,
	FeatureAttributes,
	FeatureTypes,
	FeatureFacets,
	FeatureIdentityConstraints,
	FeatureIDReferences,
	FeatureSubstitutionGroups,
	FeatureWildcards,
	FeatureFixedValues,
	FeatureNillable,
}

// Configuration controls which checks a Validator runs. The zero value
// is not useful; start from DefaultConfiguration.
type Configuration struct {
	StrictMode       bool
	StopOnFirstError bool
	Features         map[string]bool
	Categories       map[RuleCategory]bool

	FuzzyThreshold float64
	MaxSuggestions int
}

// DefaultConfiguration enables every feature and category.
func DefaultConfiguration() *Configuration {
	cfg := &Configuration{
		Features:       make(map[string]bool, len(knownFeatures)),
		Categories:     make(map[RuleCategory]bool, len(ruleCategories)),
		FuzzyThreshold: DefaultFuzzyThreshold,
		MaxSuggestions: DefaultMaxSuggestions,
	}
	for _, f := range knownFeatures {
		cfg.Features[f] = true
	}
	for _, c := range ruleCategories {
		cfg.Categories[c] = true
	}
	return cfg
}

// FeatureEnabled reports whether a feature is on. Unknown names are on.
func (c *Configuration) FeatureEnabled(name string) bool {
	if c == nil {
		return true
	}
	enabled, ok := c.Features[name]
	return !ok || enabled
}

// CategoryEnabled reports whether rules of a category run.
func (c *Configuration) CategoryEnabled(category RuleCategory) bool {
	if c == nil {
		return true
	}
	enabled, ok := c.Categories[category]
	return !ok || enabled
}

// Clone returns a deep copy.
func (c *Configuration) Clone() *Configuration {
	out := *c
	out.Features = make(map[string]bool, len(c.Features))
	for k, v := range c.Features {
		out.Features[k] = v
	}
	out.Categories = make(map[RuleCategory]bool, len(c.Categories))
	for k, v := range c.Categories {
		out.Categories[k] = v
	}
	return &out
}

// Map renders the configuration as the nested map it is read from.
func (c *Configuration) Map() map[string]any {
	features := make(map[string]any, len(c.Features))
	for k, v := range c.Features {
		features[k] = v
	}
	categories := make(map[string]any, len(c.Categories))
	for k, v := range c.Categories {
		categories[string(k)] = v
	}
	return map[string]any{
		"validation": map[string]any{
			"strict_mode":         c.StrictMode,
			"stop_on_first_error": c.StopOnFirstError,
			"features":            features,
			"categories":          categories,
		},
		"repository": map[string]any{
			"fuzzy_threshold": c.FuzzyThreshold,
			"max_suggestions": c.MaxSuggestions,
		},
	}
}

// LoadConfiguration reads a YAML configuration file.
func LoadConfiguration(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Key: path, Message: err.Error()}
	}
	return ParseConfiguration(data)
}

// ParseConfiguration decodes YAML on top of the defaults.
func ParseConfiguration(data []byte) (*Configuration, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	return ConfigurationFromMap(raw)
}

// ConfigurationFromMap applies a nested map on top of the defaults.
// Unknown keys and wrongly typed values are rejected.
func ConfigurationFromMap(raw map[string]any) (*Configuration, error) {
	cfg := DefaultConfiguration()
	for _, key := range sortedKeys(raw) {
		section, err := asMap(key, raw[key])
		if err != nil {
			return nil, err
		}
		switch key {
		case "validation":
			err = cfg.applyValidation(section)
		case "repository":
			err = cfg.applyRepository(section)
		default:
			err = &ConfigError{Key: key, Message: "unknown section"}
		}
		if err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (c *Configuration) applyValidation(section map[string]any) error {
	for _, key := range sortedKeys(section) {
		path := "validation." + key
		value := section[key]
		switch key {
		case "strict_mode":
			b, err := asBool(path, value)
			if err != nil {
				return err
			}
			c.StrictMode = b
		case "stop_on_first_error":
			b, err := asBool(path, value)
			if err != nil {
				return err
			}
			c.StopOnFirstError = b
		case "features":
			flags, err := asMap(path, value)
			if err != nil {
				return err
			}
			for _, name := range sortedKeys(flags) {
				if !isKnownFeature(name) {
					return &ConfigError{Key: path + "." + name, Message: "unknown feature"}
				}
				b, err := asBool(path+"."+name, flags[name])
				if err != nil {
					return err
				}
				c.Features[name] = b
			}
		case "categories":
			flags, err := asMap(path, value)
			if err != nil {
				return err
			}
			for _, name := range sortedKeys(flags) {
				category := RuleCategory(name)
				if !category.Valid() {
					return &ConfigError{Key: path + "." + name, Message: "unknown rule category"}
				}
				b, err := asBool(path+"."+name, flags[name])
				if err != nil {
					return err
				}
				c.Categories[category] = b
			}
		default:
			return &ConfigError{Key: path, Message: "unknown key"}
		}
	}
	return nil
}

func (c *Configuration) applyRepository(section map[string]any) error {
	for _, key := range sortedKeys(section) {
		path := "repository." + key
		switch key {
		case "fuzzy_threshold":
			f, ok := asFloat(section[key])
			if !ok || f < 0 || f > 1 {
				return &ConfigError{Key: path, Message: "must be a number between 0 and 1"}
			}
			c.FuzzyThreshold = f
		case "max_suggestions":
			n, ok := section[key].(int)
			if !ok || n < 0 {
				return &ConfigError{Key: path, Message: "must be a non-negative integer"}
			}
			c.MaxSuggestions = n
		default:
			return &ConfigError{Key: path, Message: "unknown key"}
		}
	}
	return nil
}

func isKnownFeature(name string) bool {
	for _, f := range knownFeatures {
		if f == name {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func asMap(key string, v any) (map[string]any, error) {
	switch m := v.(type) {
	case map[string]any:
		return m, nil
	case nil:
		return map[string]any{}, nil
	}
	return nil, &ConfigError{Key: key, Message: fmt.Sprintf("expected a mapping, got %T", v)}
}

func asBool(key string, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, &ConfigError{Key: key, Message: fmt.Sprintf("expected a boolean, got %T", v)}
	}
	return b, nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
