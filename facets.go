package xsd

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// FacetViolation is a value rejected by one facet
type FacetViolation struct {
	Code       string
	Message    string
	Severity   Severity
	Context    map[string]any
	Suggestion string
}

// FacetTarget describes the value space the facets of one type apply to.
type FacetTarget struct {
	// Builtin is the built-in ancestor of the type, nil for lists and unions.
	Builtin *BuiltinType
	// List makes length facets count whitespace-separated items.
	List bool
}

// FacetValidator validates a value against a facet constraint
type FacetValidator interface {
	Kind() FacetKind
	Validate(value string, target FacetTarget) *FacetViolation
}

// LengthFacet requires an exact length
type LengthFacet struct{ Value int }

// MinLengthFacet is an inclusive lower length bound
type MinLengthFacet struct{ Value int }

// MaxLengthFacet is an inclusive upper length bound
type MaxLengthFacet struct{ Value int }

func (*LengthFacet) Kind() FacetKind    { return FacetLength }
func (*MinLengthFacet) Kind() FacetKind { return FacetMinLength }
func (*MaxLengthFacet) Kind() FacetKind { return FacetMaxLength }

func (f *LengthFacet) Validate(value string, target FacetTarget) *FacetViolation {
	n := valueLength(value, target)
	if n == f.Value {
		return nil
	}
	return &FacetViolation{
		Code:    CodeLengthMismatch,
		Message: fmt.Sprintf("Value '%s' has length %d, but must be exactly %d", value, n, f.Value),
		Context: map[string]any{"actual_length": n, "expected_length": f.Value},
	}
}

func (f *MinLengthFacet) Validate(value string, target FacetTarget) *FacetViolation {
	n := valueLength(value, target)
	if n >= f.Value {
		return nil
	}
	return &FacetViolation{
		Code:    CodeMinLength,
		Message: fmt.Sprintf("Value '%s' has length %d, but must be at least %d", value, n, f.Value),
		Context: map[string]any{"actual_length": n, "min_length": f.Value},
	}
}

func (f *MaxLengthFacet) Validate(value string, target FacetTarget) *FacetViolation {
	n := valueLength(value, target)
	if n <= f.Value {
		return nil
	}
	return &FacetViolation{
		Code:    CodeMaxLength,
		Message: fmt.Sprintf("Value '%s' has length %d, but must be at most %d", value, n, f.Value),
		Context: map[string]any{"actual_length": n, "max_length": f.Value},
	}
}

// valueLength measures a value the way length facets count it: list items,
// octets for binary types, characters otherwise.
func valueLength(value string, target FacetTarget) int {
	if target.List || (target.Builtin != nil && target.Builtin.List) {
		return len(strings.Fields(value))
	}
	if target.Builtin != nil {
		switch target.Builtin.Name {
		case "hexBinary":
			return len(value) / 2
		case "base64Binary":
			compact := strings.Join(strings.Fields(value), "")
			return len(compact)*3/4 - strings.Count(compact, "=")
		}
	}
	return len([]rune(value))
}

// PatternFacet requires a full match of an XSD regular expression
type PatternFacet struct {
	Pattern string
	cache   *PatternCache
}

func (*PatternFacet) Kind() FacetKind { return FacetPattern }

func (f *PatternFacet) Validate(value string, _ FacetTarget) *FacetViolation {
	re, err := f.cache.Compile(f.Pattern)
	if err != nil {
		return &FacetViolation{
			Code:     CodeInvalidPattern,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("Pattern '%s' cannot be compiled and was skipped: %v", f.Pattern, err),
			Context:  map[string]any{"pattern": f.Pattern},
		}
	}
	if re.MatchString(value) {
		return nil
	}
	return &FacetViolation{
		Code:    CodePatternMismatch,
		Message: fmt.Sprintf("Value '%s' does not match pattern '%s'", value, f.Pattern),
		Context: map[string]any{"pattern": f.Pattern},
	}
}

// EnumerationFacet holds every enumeration value of one restriction
type EnumerationFacet struct{ Values []string }

func (*EnumerationFacet) Kind() FacetKind { return FacetEnumeration }

func (f *EnumerationFacet) Validate(value string, target FacetTarget) *FacetViolation {
	for _, allowed := range f.Values {
		if value == allowed {
			return nil
		}
		// numeric enumerations compare by value: 1.0 equals 1
		if target.Builtin != nil && target.Builtin.Numeric() {
			if c, ok := compareValues(value, allowed, target.Builtin); ok && c == 0 {
				return nil
			}
		}
	}
	return &FacetViolation{
		Code:       CodeEnumeration,
		Message:    fmt.Sprintf("Value '%s' is not one of the allowed values", value),
		Context:    map[string]any{"allowed_values": append([]string(nil), f.Values...)},
		Suggestion: "Allowed values: " + strings.Join(f.Values, ", "),
	}
}

// RangeFacet is one of the four bound facets
type RangeFacet struct {
	kind  FacetKind
	Limit string
}

func (f *RangeFacet) Kind() FacetKind { return f.kind }

func (f *RangeFacet) Validate(value string, target FacetTarget) *FacetViolation {
	c, ok := compareValues(value, f.Limit, target.Builtin)
	var op, code string
	switch f.kind {
	case FacetMinInclusive:
		op, code = ">=", CodeMinInclusive
		ok = ok && c >= 0
	case FacetMaxInclusive:
		op, code = "<=", CodeMaxInclusive
		ok = ok && c <= 0
	case FacetMinExclusive:
		op, code = ">", CodeMinExclusive
		ok = ok && c > 0
	default:
		op, code = "<", CodeMaxExclusive
		ok = ok && c < 0
	}
	if ok {
		return nil
	}
	return &FacetViolation{
		Code:    code,
		Message: fmt.Sprintf("Value '%s' must be %s %s", value, op, f.Limit),
		Context: map[string]any{"limit": f.Limit, "facet": string(f.kind)},
	}
}

// TotalDigitsFacet bounds the number of significant digits
type TotalDigitsFacet struct{ Value int }

// FractionDigitsFacet bounds the number of digits after the decimal point
type FractionDigitsFacet struct{ Value int }

func (*TotalDigitsFacet) Kind() FacetKind    { return FacetTotalDigits }
func (*FractionDigitsFacet) Kind() FacetKind { return FacetFractionDigits }

func (f *TotalDigitsFacet) Validate(value string, _ FacetTarget) *FacetViolation {
	intPart, frac := splitDecimal(value)
	digits := strings.TrimLeft(intPart, "0") + frac
	if strings.TrimLeft(intPart, "0") == "" {
		digits = strings.TrimLeft(frac, "0")
	}
	n := len(digits)
	if n <= f.Value {
		return nil
	}
	return &FacetViolation{
		Code:    CodeTotalDigits,
		Message: fmt.Sprintf("Value '%s' has %d total digits, but at most %d are allowed", value, n, f.Value),
		Context: map[string]any{"actual_digits": n, "total_digits": f.Value},
	}
}

func (f *FractionDigitsFacet) Validate(value string, _ FacetTarget) *FacetViolation {
	_, frac := splitDecimal(value)
	n := len(frac)
	if n <= f.Value {
		return nil
	}
	return &FacetViolation{
		Code:    CodeFractionDigits,
		Message: fmt.Sprintf("Value '%s' has %d fraction digits, but at most %d are allowed", value, n, f.Value),
		Context: map[string]any{"actual_digits": n, "fraction_digits": f.Value},
	}
}

// splitDecimal returns the integer digits and the fraction digits of a
// decimal lexical value, without sign and with trailing fraction zeros removed.
func splitDecimal(value string) (string, string) {
	value = strings.TrimLeft(value, "+-")
	intPart, frac, _ := strings.Cut(value, ".")
	return intPart, strings.TrimRight(frac, "0")
}

// NormalizeWhiteSpace normalizes whitespace according to the facet value
func NormalizeWhiteSpace(value string, mode WhiteSpaceMode) string {
	switch mode {
	case WhiteSpaceReplace:
		return strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(value)
	case WhiteSpaceCollapse:
		return strings.Join(strings.Fields(value), " ")
	default:
		return value
	}
}

// facetSet is the compiled form of the facets of one restriction level.
type facetSet struct {
	facets     []Facet
	validators []FacetValidator
	problems   []FacetViolation
}

func newFacetSet(facets []Facet, cache *PatternCache) *facetSet {
	validators, problems := compileFacets(facets, cache)
	return &facetSet{facets: facets, validators: validators, problems: problems}
}

// compileFacets turns the facets of one restriction into validators.
// Enumeration values are merged into a single validator; each pattern is
// kept separate and all of them must match. Malformed numeric facet values
// are returned as warnings.
func compileFacets(facets []Facet, cache *PatternCache) ([]FacetValidator, []FacetViolation) {
	var (
		out      []FacetValidator
		enum     *EnumerationFacet
		problems []FacetViolation
	)
	for _, f := range facets {
		switch f.Kind {
		case FacetEnumeration:
			if enum == nil {
				enum = &EnumerationFacet{}
				out = append(out, enum)
			}
			enum.Values = append(enum.Values, f.Value)
		case FacetPattern:
			out = append(out, &PatternFacet{Pattern: f.Value, cache: cache})
		case FacetMinInclusive, FacetMaxInclusive, FacetMinExclusive, FacetMaxExclusive:
			out = append(out, &RangeFacet{kind: f.Kind, Limit: strings.TrimSpace(f.Value)})
		case FacetLength, FacetMinLength, FacetMaxLength, FacetTotalDigits, FacetFractionDigits:
			n, err := strconv.Atoi(strings.TrimSpace(f.Value))
			if err != nil || n < 0 {
				problems = append(problems, FacetViolation{
					Code:     CodeUnknownFacet,
					Severity: SeverityWarning,
					Message:  fmt.Sprintf("Facet %s has invalid value '%s' and was skipped", f.Kind, f.Value),
				})
				continue
			}
			switch f.Kind {
			case FacetLength:
				out = append(out, &LengthFacet{Value: n})
			case FacetMinLength:
				out = append(out, &MinLengthFacet{Value: n})
			case FacetMaxLength:
				out = append(out, &MaxLengthFacet{Value: n})
			case FacetTotalDigits:
				out = append(out, &TotalDigitsFacet{Value: n})
			default:
				out = append(out, &FractionDigitsFacet{Value: n})
			}
		}
	}
	return out, problems
}

// whiteSpaceFacet returns the whiteSpace facet of a restriction, if any.
func whiteSpaceFacet(facets []Facet) (WhiteSpaceMode, bool) {
	for _, f := range facets {
		if f.Kind == FacetWhiteSpace {
			return WhiteSpaceMode(strings.TrimSpace(f.Value)), true
		}
	}
	return "", false
}

// compareValues orders two lexical values of the given built-in type.
// The second result is false when the values are not comparable.
func compareValues(v1, v2 string, builtin *BuiltinType) (int, bool) {
	space := spaceDecimal
	if builtin != nil && builtin.space != spaceString && builtin.space != spaceOther {
		space = builtin.space
	}

	switch space {
	case spaceFloat:
		f1, err1 := strconv.ParseFloat(v1, 64)
		f2, err2 := strconv.ParseFloat(v2, 64)
		if err1 != nil || err2 != nil || math.IsNaN(f1) || math.IsNaN(f2) {
			return 0, false
		}
		switch {
		case f1 < f2:
			return -1, true
		case f1 > f2:
			return 1, true
		}
		return 0, true
	case spaceDateTime, spaceDate, spaceTime:
		t1, ok1 := parseTemporal(v1, space)
		t2, ok2 := parseTemporal(v2, space)
		if !ok1 || !ok2 {
			return strings.Compare(v1, v2), true
		}
		return t1.Compare(t2), true
	default:
		r1, ok1 := new(big.Rat).SetString(strings.TrimPrefix(v1, "+"))
		r2, ok2 := new(big.Rat).SetString(strings.TrimPrefix(v2, "+"))
		if !ok1 || !ok2 {
			if builtin == nil || builtin.Numeric() {
				return 0, false
			}
			return strings.Compare(v1, v2), true
		}
		return r1.Cmp(r2), true
	}
}

var temporalLayouts = map[valueSpace][]string{
	spaceDateTime: {"2006-01-02T15:04:05.999999999Z07:00", "2006-01-02T15:04:05.999999999"},
	spaceDate:     {"2006-01-02Z07:00", "2006-01-02"},
	spaceTime:     {"15:04:05.999999999Z07:00", "15:04:05.999999999"},
}

func parseTemporal(value string, space valueSpace) (time.Time, bool) {
	for _, layout := range temporalLayouts[space] {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
