package xsd

// RuleCategory groups rules; each validation phase runs a fixed set of
// categories.
type RuleCategory string

const (
	RuleStructure    RuleCategory = "structure"
	RuleContentModel RuleCategory = "content_model"
	RuleOccurrence   RuleCategory = "occurrence"
	RuleAttribute    RuleCategory = "attribute"
	RuleType         RuleCategory = "type"
	RuleIdentity     RuleCategory = "identity"
)

// ruleCategories is the order categories run in within a phase.
var ruleCategories = []RuleCategory{
	RuleStructure,
	RuleContentModel,
	RuleOccurrence,
	RuleAttribute,
	RuleType,
	RuleIdentity,
}

// Valid reports whether c is a known category.
func (c RuleCategory) Valid() bool {
	return categoryRank(c) >= 0
}

func categoryRank(c RuleCategory) int {
	for i, known := range ruleCategories {
		if known == c {
			return i
		}
	}
	return -1
}

// Rule is one composable check. Validate is called with an instance
// element and the declaration it was paired with; findings go to ctx.
// Rules report expected failures and never panic or return errors.
type Rule interface {
	Name() string
	Category() RuleCategory
	// Priority orders rules within a category; lower runs first.
	Priority() int
	Enabled(cfg *Configuration) bool
	Validate(node *XMLElement, decl *Element, ctx *RuleContext)
}

// baseRule carries the descriptive half of a Rule.
type baseRule struct {
	name     string
	category RuleCategory
	priority int
	features []string
}

func (r baseRule) Name() string           { return r.name }
func (r baseRule) Category() RuleCategory { return r.category }
func (r baseRule) Priority() int          { return r.priority }

func (r baseRule) Enabled(cfg *Configuration) bool {
	for _, f := range r.features {
		if !cfg.FeatureEnabled(f) {
			return false
		}
	}
	return true
}

// RuleFunc adapts a function into a Rule.
type RuleFunc struct {
	baseRule
	fn func(node *XMLElement, decl *Element, ctx *RuleContext)
}

// NewRule creates a rule from fn. The rule is enabled while every named
// feature is.
func NewRule(name string, category RuleCategory, priority int, fn func(*XMLElement, *Element, *RuleContext), features ...string) *RuleFunc {
	return &RuleFunc{
		baseRule: baseRule{name: name, category: category, priority: priority, features: features},
		fn:       fn,
	}
}

func (r *RuleFunc) Validate(node *XMLElement, decl *Element, ctx *RuleContext) {
	r.fn(node, decl, ctx)
}

// RuleContext is what a rule sees of the running job: the collector it
// reports to, the repository, the configuration and what earlier phases
// learned about each element.
type RuleContext struct {
	*ResultCollector
	Repository *Repository
	Config     *Configuration

	job *ValidationJob
}

// Type returns the type governing node, after xsi:type.
func (c *RuleContext) Type(node *XMLElement) TypeDefinition {
	if st := c.job.states[node]; st != nil {
		return st.typ
	}
	return nil
}

// Effective returns the flattened content of node's complex type, nil for
// simple types.
func (c *RuleContext) Effective(node *XMLElement) *EffectiveContent {
	if ct, ok := c.Type(node).(*ComplexType); ok {
		return ct.Effective()
	}
	return nil
}

// Nilled reports whether node carries xsi:nil="true".
func (c *RuleContext) Nilled(node *XMLElement) bool {
	st := c.job.states[node]
	return st != nil && st.nilled
}

func (c *RuleContext) state(node *XMLElement) *nodeState { return c.job.states[node] }

func (c *RuleContext) values() *valueChecker { return c.job.values }

// Lenient reports a finding that is an error in strict mode and a
// warning otherwise.
func (c *RuleContext) Lenient(at Locatable, code, message string, opts ...FindingOption) {
	if c.Config.StrictMode {
		c.Error(at, code, message, opts...)
		return
	}
	c.Warning(at, code, message, opts...)
}

// violation reports a facet or value violation found at node.
func (c *RuleContext) violation(at Locatable, v FacetViolation, extra ...FindingOption) {
	opts := make([]FindingOption, 0, len(v.Context)+len(extra)+1)
	for k, val := range v.Context {
		opts = append(opts, WithContextValue(k, val))
	}
	if v.Suggestion != "" {
		opts = append(opts, WithSuggestion(v.Suggestion))
	}
	opts = append(opts, extra...)
	switch v.Severity {
	case SeverityWarning:
		c.Warning(at, v.Code, v.Message, opts...)
	case SeverityInfo:
		c.Info(at, v.Code, v.Message, opts...)
	default:
		c.Error(at, v.Code, v.Message, opts...)
	}
}

// DefaultRules returns a fresh list of the built-in rules.
func DefaultRules() []Rule {
	return []Rule{
		newDeclarationRule(),
		newNillableRule(),
		newMixedContentRule(),
		newWildcardElementRule(),
		newContentModelRule(),
		newOccurrenceRule(),
		newAttributeRule(),
		newSimpleValueRule(),
		newKeyRule(),
		newUniqueRule(),
		newKeyrefRule(),
		newIDRule(),
		newIDRefRule(),
	}
}
