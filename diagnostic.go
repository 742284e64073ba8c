package xsd

import (
	"fmt"
	"maps"
	"reflect"
)

// Severity represents the severity level of a finding
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityError, SeverityWarning, SeverityInfo:
		return true
	}
	return false
}

// ValidationError is one finding produced while validating a document.
// Values are never modified after they are collected.
type ValidationError struct {
	Code       string         `json:"code" yaml:"code"`
	Message    string         `json:"message" yaml:"message"`
	Severity   Severity       `json:"severity" yaml:"severity"`
	Location   string         `json:"location" yaml:"location"`
	LineNumber int            `json:"line_number,omitempty" yaml:"line_number,omitempty"`
	Context    map[string]any `json:"context,omitempty" yaml:"context,omitempty"`
	Suggestion string         `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
}

// Error lets a ValidationError be used where an error is expected.
func (e ValidationError) Error() string {
	if e.LineNumber > 0 {
		return fmt.Sprintf("%s:%d: [%s] %s", e.Location, e.LineNumber, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: [%s] %s", e.Location, e.Code, e.Message)
}

// IsError reports whether the finding invalidates a document.
func (e ValidationError) IsError() bool { return e.Severity == SeverityError }

// Equal compares two findings field by field.
func (e ValidationError) Equal(other ValidationError) bool {
	return e.Code == other.Code &&
		e.Message == other.Message &&
		e.Severity == other.Severity &&
		e.Location == other.Location &&
		e.LineNumber == other.LineNumber &&
		e.Suggestion == other.Suggestion &&
		reflect.DeepEqual(e.Context, other.Context)
}

// Map returns the serialized shape consumed by formatters: absent optional
// fields are omitted.
func (e ValidationError) Map() map[string]any {
	m := map[string]any{
		"code":     e.Code,
		"message":  e.Message,
		"severity": string(e.Severity),
		"location": e.Location,
	}
	if e.LineNumber > 0 {
		m["line_number"] = e.LineNumber
	}
	if len(e.Context) > 0 {
		m["context"] = maps.Clone(e.Context)
	}
	if e.Suggestion != "" {
		m["suggestion"] = e.Suggestion
	}
	return m
}
