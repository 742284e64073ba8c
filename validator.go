package xsd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/agentflare-ai/go-xmldom"
)

// Validator validates XML documents against a resolved Repository. It is
// safe for concurrent use: every call runs its own ValidationJob.
type Validator struct {
	repo     *Repository
	config   *Configuration
	registry *RuleRegistry
	logger   *slog.Logger
	root     QName
	extra    []Rule
	rules    []Rule
}

// ValidatorOption configures a Validator
type ValidatorOption func(*Validator)

// WithValidatorLogger sets the logger used by validation jobs.
func WithValidatorLogger(logger *slog.Logger) ValidatorOption {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithRules replaces the built-in rules.
func WithRules(rules ...Rule) ValidatorOption {
	return func(v *Validator) { v.rules = rules }
}

// WithExtraRules adds rules next to the built-in ones.
func WithExtraRules(rules ...Rule) ValidatorOption {
	return func(v *Validator) { v.extra = append(v.extra, rules...) }
}

// WithRootElement requires the document element to be name.
func WithRootElement(name QName) ValidatorOption {
	return func(v *Validator) { v.root = name }
}

// NewValidator creates a validator over a resolved repository. A nil
// configuration means DefaultConfiguration.
func NewValidator(repo *Repository, cfg *Configuration, opts ...ValidatorOption) (*Validator, error) {
	if repo == nil {
		return nil, fmt.Errorf("%w: nil repository", ErrInvalidInput)
	}
	if !repo.Resolved() {
		return nil, ErrNotResolved
	}
	if cfg == nil {
		cfg = DefaultConfiguration()
	}
	v := &Validator{
		repo:   repo,
		config: cfg.Clone(),
		logger: repo.logger,
		rules:  DefaultRules(),
	}
	for _, opt := range opts {
		opt(v)
	}
	registry, err := NewRuleRegistry(append(v.rules, v.extra...)...)
	if err != nil {
		return nil, err
	}
	v.registry = registry
	return v, nil
}

// NewValidatorFromFiles parses and resolves the schema files and returns a
// validator over them.
func NewValidatorFromFiles(cfg *Configuration, paths ...string) (*Validator, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no schema files", ErrInvalidInput)
	}
	if cfg == nil {
		cfg = DefaultConfiguration()
	}
	repo := NewRepository(
		WithFuzzyThreshold(cfg.FuzzyThreshold),
		WithMaxSuggestions(cfg.MaxSuggestions),
	)
	for _, path := range paths {
		if err := repo.AddSchemaFile(path); err != nil {
			return nil, err
		}
	}
	if err := repo.Parse(); err != nil {
		return nil, err
	}
	if err := repo.Resolve(); err != nil {
		return nil, err
	}
	return NewValidator(repo, cfg)
}

// Repository returns the repository the validator reads.
func (v *Validator) Repository() *Repository { return v.repo }

// Config returns a copy of the validator's configuration.
func (v *Validator) Config() *Configuration { return v.config.Clone() }

// Registry returns the validator's rule registry.
func (v *Validator) Registry() *RuleRegistry { return v.registry }

func (v *Validator) newJob() *ValidationJob {
	return newValidationJob(v.repo, v.config, v.registry.ApplicableRules(v.config), v.logger, v.root)
}

// Validate validates an XML document held in a string. Empty input yields
// an invalid result carrying an invalid_input finding together with an
// error wrapping ErrInvalidInput.
func (v *Validator) Validate(xml string) (*ValidationResult, error) {
	return v.ValidateBytes([]byte(xml))
}

// ValidateBytes validates an XML document.
func (v *Validator) ValidateBytes(content []byte) (*ValidationResult, error) {
	result := v.newJob().Run(content)
	if len(strings.TrimSpace(string(content))) == 0 {
		return result, fmt.Errorf("%w: XML content is empty", ErrInvalidInput)
	}
	return result, nil
}

// ValidateReader reads r to the end and validates it.
func (v *Validator) ValidateReader(r io.Reader) (*ValidationResult, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil reader", ErrInvalidInput)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read XML: %w", err)
	}
	return v.ValidateBytes(content)
}

// ValidateDocument validates an already parsed document.
func (v *Validator) ValidateDocument(doc xmldom.Document) (*ValidationResult, error) {
	if doc == nil || doc.DocumentElement() == nil {
		return nil, fmt.Errorf("%w: document has no root element", ErrInvalidInput)
	}
	return v.newJob().RunDocument(doc), nil
}
