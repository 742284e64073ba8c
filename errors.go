package xsd

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrInvalidInput indicates nil or empty XML content.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotParsed indicates Resolve was called before Parse.
	ErrNotParsed = errors.New("repository not parsed")

	// ErrNotResolved indicates the repository was queried before Resolve.
	ErrNotResolved = errors.New("repository not resolved")

	// ErrSchemaParse indicates a schema file could not be read or parsed.
	ErrSchemaParse = errors.New("schema parse error")

	// ErrConfig indicates an invalid configuration.
	ErrConfig = errors.New("configuration error")

	// ErrTypeNotFound indicates a type lookup failed.
	ErrTypeNotFound = errors.New("type not found")
)

// Finding codes reported in ValidationError.Code.
const (
	// structural
	CodeElementNotAllowed        = "element_not_allowed"
	CodeElementNameMismatch      = "element_name_mismatch"
	CodeNamespaceMismatch        = "namespace_mismatch"
	CodeUnexpectedAttribute      = "unexpected_attribute"
	CodeRequiredAttributeMissing = "required_attribute_missing"
	CodeProhibitedAttribute      = "prohibited_attribute"
	CodeChoiceAmbiguous          = "choice_ambiguous"
	CodeChoiceNotSatisfied       = "choice_not_satisfied"
	CodeAbstractElement          = "abstract_element"
	CodeTextNotAllowed           = "text_not_allowed"
	CodeElementChildrenNotAllow  = "element_children_not_allowed"
	CodeNilNotAllowed            = "nil_not_allowed"
	CodeNilContentNotEmpty       = "nil_content_not_empty"
	CodeWildcardNamespace        = "wildcard_namespace_mismatch"

	// occurrence
	CodeMinOccurs = "min_occurs_violation"
	CodeMaxOccurs = "max_occurs_violation"

	// type and facet
	CodeInvalidValue         = "invalid_value"
	CodePatternMismatch      = "pattern_mismatch"
	CodeInvalidPattern       = "invalid_pattern"
	CodeLengthMismatch       = "length_mismatch"
	CodeMinLength            = "min_length_violation"
	CodeMaxLength            = "max_length_violation"
	CodeEnumeration          = "enumeration_violation"
	CodeMinInclusive         = "min_inclusive_violation"
	CodeMaxInclusive         = "max_inclusive_violation"
	CodeMinExclusive         = "min_exclusive_violation"
	CodeMaxExclusive         = "max_exclusive_violation"
	CodeTotalDigits          = "total_digits_violation"
	CodeFractionDigits       = "fraction_digits_violation"
	CodeFixedValueMismatch   = "fixed_value_mismatch"
	CodeUnionNoMemberMatched = "union_no_member_matched"
	CodeTypeNotFound         = "type_not_found"

	// identity
	CodeKeyFieldMissing = "key_field_missing"
	CodeDuplicateKey    = "duplicate_key"
	CodeUniqueViolation = "unique_violation"
	CodeKeyrefViolation = "keyref_violation"
	CodeKeyNotFound     = "key_not_found"
	CodeDuplicateID     = "duplicate_id"
	CodeIDRefNotFound   = "idref_not_found"

	// input and configuration
	CodeInvalidInput  = "invalid_input"
	CodeXMLParseError = "xml_parse_error"
	CodeUnknownFacet  = "unknown_facet"
	CodeSchemaInvalid = "schema_invalid"
)

// SchemaParseError represents a failure to read or parse a schema file.
type SchemaParseError struct {
	// Path is the schema location
	Path string
	// Cause is the underlying error
	Cause error
}

// Error returns a human-readable error message.
func (e *SchemaParseError) Error() string {
	msg := "schema parse error"
	if e.Path != "" {
		msg += " in " + e.Path
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *SchemaParseError) Unwrap() error { return e.Cause }

// Is reports whether target matches this error type.
func (e *SchemaParseError) Is(target error) bool { return target == ErrSchemaParse }

// ConfigError represents an invalid configuration key or value.
type ConfigError struct {
	// Key is the dotted configuration key, e.g. "validation.strict_mode"
	Key string
	// Message describes the problem
	Message string
}

// Error returns a human-readable error message.
func (e *ConfigError) Error() string {
	if e.Key == "" {
		return "configuration error: " + e.Message
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Key, e.Message)
}

// Is reports whether target matches this error type.
func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// TypeNotFoundError is returned when a type cannot be resolved.
type TypeNotFoundError struct {
	QName       string
	Suggestions []string
}

// Error returns a human-readable error message.
func (e *TypeNotFoundError) Error() string {
	msg := fmt.Sprintf("type '%s' not found", e.QName)
	if len(e.Suggestions) > 0 {
		msg += ". Did you mean: " + strings.Join(e.Suggestions, ", ") + "?"
	}
	return msg
}

// Is reports whether target matches this error type.
func (e *TypeNotFoundError) Is(target error) bool { return target == ErrTypeNotFound }
