package xsd

import "fmt"

// fixedMatches compares an instance value with a fixed value constraint.
// Both sides are whitespace-normalized for st and, for atomic types with
// an ordered value space, compared by value so "1.0" equals "1".
func (vc *valueChecker) fixedMatches(value, fixed string, st *SimpleType) bool {
	if st == nil {
		return value == fixed
	}
	v, f := vc.normalize(value, st), vc.normalize(fixed, st)
	if v == f {
		return true
	}
	target := vc.target(st)
	if target.List || target.Builtin == nil || !target.Builtin.Numeric() {
		return false
	}
	cmp, ok := compareValues(v, f, target.Builtin)
	return ok && cmp == 0
}

// fixedMismatch builds the finding for a value that differs from its
// fixed constraint. kind is "Element" or "Attribute".
func fixedMismatch(kind string, name QName, value, fixed string) FacetViolation {
	return FacetViolation{
		Code:       CodeFixedValueMismatch,
		Severity:   SeverityError,
		Message:    fmt.Sprintf("%s '%s' must have fixed value '%s' but has '%s'", kind, name, fixed, value),
		Context:    map[string]any{"expected_value": fixed, "actual_value": value},
		Suggestion: fmt.Sprintf("Use the fixed value '%s'", fixed),
	}
}

// elementValue returns the value an element's simple content stands for:
// its text, or the declared default or fixed value when it has none.
func elementValue(elem *XMLElement, decl *Element) (string, bool) {
	if elem.HasText() {
		return elem.Text(), true
	}
	switch {
	case decl.HasFixed:
		return decl.Fixed, false
	case decl.Default != "":
		return decl.Default, false
	}
	return elem.Text(), true
}
