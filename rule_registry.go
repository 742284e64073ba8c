package xsd

import (
	"fmt"
	"sort"
)

// RuleRegistry holds the rules of one Validator. It is filled at
// construction time and read by every job; it has no global instance.
type RuleRegistry struct {
	rules []Rule
}

// NewRuleRegistry creates a registry holding rules.
func NewRuleRegistry(rules ...Rule) (*RuleRegistry, error) {
	r := &RuleRegistry{}
	for _, rule := range rules {
		if err := r.Register(rule); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a rule. Names are unique and categories must be known.
func (r *RuleRegistry) Register(rule Rule) error {
	if rule == nil {
		return fmt.Errorf("%w: nil rule", ErrInvalidInput)
	}
	if !rule.Category().Valid() {
		return fmt.Errorf("%w: rule %s has unknown category %q", ErrInvalidInput, rule.Name(), rule.Category())
	}
	if r.Lookup(rule.Name()) != nil {
		return fmt.Errorf("%w: rule %s already registered", ErrInvalidInput, rule.Name())
	}
	r.rules = append(r.rules, rule)
	return nil
}

// Unregister removes the rule called name and reports whether it existed.
func (r *RuleRegistry) Unregister(name string) bool {
	for i, rule := range r.rules {
		if rule.Name() == name {
			r.rules = append(r.rules[:i:i], r.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Lookup returns the rule called name, or nil.
func (r *RuleRegistry) Lookup(name string) Rule {
	for _, rule := range r.rules {
		if rule.Name() == name {
			return rule
		}
	}
	return nil
}

// Len returns the number of registered rules.
func (r *RuleRegistry) Len() int { return len(r.rules) }

// RulesForCategory returns the rules of one category by priority.
func (r *RuleRegistry) RulesForCategory(category RuleCategory) []Rule {
	var out []Rule
	for _, rule := range r.rules {
		if rule.Category() == category {
			out = append(out, rule)
		}
	}
	sortRules(out)
	return out
}

// ApplicableRules returns the rules cfg enables, ordered by category and
// then priority. Rules with equal priority keep registration order.
func (r *RuleRegistry) ApplicableRules(cfg *Configuration) []Rule {
	var out []Rule
	for _, rule := range r.rules {
		if cfg.CategoryEnabled(rule.Category()) && rule.Enabled(cfg) {
			out = append(out, rule)
		}
	}
	sortRules(out)
	return out
}

func sortRules(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		ri, rj := categoryRank(rules[i].Category()), categoryRank(rules[j].Category())
		if ri != rj {
			return ri < rj
		}
		return rules[i].Priority() < rules[j].Priority()
	})
}
