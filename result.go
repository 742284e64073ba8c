package xsd

import "slices"

// Locatable is anything a finding can point at.
type Locatable interface {
	Path() string
	Line() int
}

// FindingOption decorates a finding before it is collected.
type FindingOption func(*ValidationError)

// WithContextValue adds one key to the finding's context map.
func WithContextValue(key string, value any) FindingOption {
	return func(e *ValidationError) {
		if e.Context == nil {
			e.Context = make(map[string]any)
		}
		e.Context[key] = value
	}
}

// WithSuggestion sets the finding's suggestion.
func WithSuggestion(s string) FindingOption {
	return func(e *ValidationError) { e.Suggestion = s }
}

// ResultCollector accumulates findings for one validation job, in the
// order they are reported.
type ResultCollector struct {
	findings         []ValidationError
	stopOnFirstError bool
	halted           bool
}

// NewResultCollector creates an empty collector. With stopOnFirstError the
// collector halts after the first error-severity finding.
func NewResultCollector(stopOnFirstError bool) *ResultCollector {
	return &ResultCollector{stopOnFirstError: stopOnFirstError}
}

// Add appends a finding. Findings reported after a halt are dropped.
func (c *ResultCollector) Add(e ValidationError) {
	if c.halted {
		return
	}
	c.findings = append(c.findings, e)
	if e.IsError() && c.stopOnFirstError {
		c.halted = true
	}
}

// Error reports an error-severity finding at node.
func (c *ResultCollector) Error(at Locatable, code, message string, opts ...FindingOption) {
	c.report(SeverityError, at, code, message, opts)
}

// Warning reports a warning at node.
func (c *ResultCollector) Warning(at Locatable, code, message string, opts ...FindingOption) {
	c.report(SeverityWarning, at, code, message, opts)
}

// Info reports an informational finding at node.
func (c *ResultCollector) Info(at Locatable, code, message string, opts ...FindingOption) {
	c.report(SeverityInfo, at, code, message, opts)
}

func (c *ResultCollector) report(sev Severity, at Locatable, code, message string, opts []FindingOption) {
	e := ValidationError{Code: code, Message: message, Severity: sev, Location: "/"}
	if at != nil {
		e.Location = at.Path()
		e.LineNumber = at.Line()
	}
	for _, opt := range opts {
		opt(&e)
	}
	c.Add(e)
}

// Halted reports whether stop_on_first_error has fired.
func (c *ResultCollector) Halted() bool { return c.halted }

// HasErrors reports whether any error-severity finding was collected.
func (c *ResultCollector) HasErrors() bool {
	return slices.ContainsFunc(c.findings, ValidationError.IsError)
}

// Len returns the number of collected findings.
func (c *ResultCollector) Len() int { return len(c.findings) }

// Result freezes the collected findings into a ValidationResult.
func (c *ResultCollector) Result() *ValidationResult {
	return &ValidationResult{Findings: slices.Clone(c.findings)}
}

// ValidationResult is the outcome of validating one document.
type ValidationResult struct {
	Findings []ValidationError `json:"errors" yaml:"errors"`
}

// Valid reports whether no error-severity finding was collected.
func (r *ValidationResult) Valid() bool {
	return !slices.ContainsFunc(r.Findings, ValidationError.IsError)
}

// Errors returns the error-severity findings.
func (r *ValidationResult) Errors() []ValidationError { return r.bySeverity(SeverityError) }

// Warnings returns the warnings.
func (r *ValidationResult) Warnings() []ValidationError { return r.bySeverity(SeverityWarning) }

// Infos returns the informational findings.
func (r *ValidationResult) Infos() []ValidationError { return r.bySeverity(SeverityInfo) }

func (r *ValidationResult) bySeverity(sev Severity) []ValidationError {
	var out []ValidationError
	for _, e := range r.Findings {
		if e.Severity == sev {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of findings with the given severity.
func (r *ValidationResult) Count(sev Severity) int { return len(r.bySeverity(sev)) }

// HasCode reports whether any finding carries code.
func (r *ValidationResult) HasCode(code string) bool {
	return slices.ContainsFunc(r.Findings, func(e ValidationError) bool { return e.Code == code })
}

// WithCode returns the findings carrying code.
func (r *ValidationResult) WithCode(code string) []ValidationError {
	var out []ValidationError
	for _, e := range r.Findings {
		if e.Code == code {
			out = append(out, e)
		}
	}
	return out
}

// Equal compares two results finding by finding.
func (r *ValidationResult) Equal(other *ValidationResult) bool {
	return slices.EqualFunc(r.Findings, other.Findings, ValidationError.Equal)
}

// Map returns the serialized shape of the result.
func (r *ValidationResult) Map() map[string]any {
	errs := make([]map[string]any, 0, len(r.Findings))
	for _, e := range r.Findings {
		errs = append(errs, e.Map())
	}
	return map[string]any{
		"valid":  r.Valid(),
		"errors": errs,
	}
}

// ExitCode returns the process exit code for the result: 0 valid, 1 invalid.
func (r *ValidationResult) ExitCode() int {
	if r.Valid() {
		return 0
	}
	return 1
}
