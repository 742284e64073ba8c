package xsd

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// WhiteSpaceMode is the whiteSpace facet value
type WhiteSpaceMode string

const (
	WhiteSpacePreserve WhiteSpaceMode = "preserve"
	WhiteSpaceReplace  WhiteSpaceMode = "replace"
	WhiteSpaceCollapse WhiteSpaceMode = "collapse"
)

// valueSpace groups built-ins whose values can be ordered
type valueSpace int

const (
	spaceString valueSpace = iota
	spaceDecimal
	spaceFloat
	spaceDateTime
	spaceDate
	spaceTime
	spaceOther
)

// BuiltinType validates the lexical space of one built-in XSD datatype.
type BuiltinType struct {
	Name       string
	WhiteSpace WhiteSpaceMode
	// List is set for IDREFS, ENTITIES and NMTOKENS.
	List  bool
	space valueSpace
	check func(value string) error
}

// Validate checks value, already whitespace-normalized, against the type.
func (b *BuiltinType) Validate(value string) error {
	if b.check == nil {
		return nil
	}
	return b.check(value)
}

// Valid reports whether value is in the lexical space of the type.
func (b *BuiltinType) Valid(value string) bool { return b.Validate(value) == nil }

// ErrorMessage describes why value is not valid, or "" when it is.
func (b *BuiltinType) ErrorMessage(value string) string {
	if err := b.Validate(value); err != nil {
		return fmt.Sprintf("Value '%s' is not a valid %s: %v", value, b.Name, err)
	}
	return ""
}

// Numeric reports whether range facets compare the type numerically.
func (b *BuiltinType) Numeric() bool { return b.space == spaceDecimal || b.space == spaceFloat }

// BuiltinTypes is the table of built-in datatypes. It is built once per
// repository and never mutated afterwards.
type BuiltinTypes struct {
	types    map[string]*BuiltinType
	fallback *BuiltinType
}

// NewBuiltinTypes builds the built-in datatype table.
func NewBuiltinTypes() *BuiltinTypes {
	bt := &BuiltinTypes{types: make(map[string]*BuiltinType)}
	add := func(name string, space valueSpace, check func(string) error) {
		bt.types[name] = &BuiltinType{Name: name, WhiteSpace: WhiteSpaceCollapse, space: space, check: check}
	}

	// Primitive types
	add("anySimpleType", spaceString, nil)
	add("string", spaceString, nil)
	add("boolean", spaceOther, validateBoolean)
	add("decimal", spaceDecimal, validateDecimal)
	add("float", spaceFloat, validateFloat)
	add("double", spaceFloat, validateFloat)
	add("duration", spaceOther, validateDuration)
	add("dateTime", spaceDateTime, validateDateTime)
	add("time", spaceTime, validateTime)
	add("date", spaceDate, validateDate)
	add("gYearMonth", spaceString, matchMonth(gYearMonthPattern, 1))
	add("gYear", spaceString, matchPattern(gYearPattern, "gYear"))
	add("gMonthDay", spaceString, validateGMonthDay)
	add("gDay", spaceString, validateGDay)
	add("gMonth", spaceString, matchMonth(gMonthPattern, 1))
	add("hexBinary", spaceOther, validateHexBinary)
	add("base64Binary", spaceOther, validateBase64Binary)
	add("anyURI", spaceString, validateAnyURI)
	add("QName", spaceOther, validateQName)
	add("NOTATION", spaceOther, validateQName)

	// Derived string types
	add("normalizedString", spaceString, validateNormalizedString)
	add("token", spaceString, validateToken)
	add("language", spaceString, matchPattern(languagePattern, "language"))
	add("Name", spaceString, validateName)
	add("NCName", spaceString, validateNCName)
	add("ID", spaceString, validateNCName)
	add("IDREF", spaceString, validateNCName)
	add("ENTITY", spaceString, validateNCName)
	add("NMTOKEN", spaceString, validateNMTOKEN)
	add("IDREFS", spaceString, listOf(validateNCName))
	add("ENTITIES", spaceString, listOf(validateNCName))
	add("NMTOKENS", spaceString, listOf(validateNMTOKEN))

	// Derived numeric types
	add("integer", spaceDecimal, integerRange("", ""))
	add("nonPositiveInteger", spaceDecimal, integerRange("", "0"))
	add("negativeInteger", spaceDecimal, integerRange("", "-1"))
	add("nonNegativeInteger", spaceDecimal, integerRange("0", ""))
	add("positiveInteger", spaceDecimal, integerRange("1", ""))
	add("long", spaceDecimal, integerRange("-9223372036854775808", "9223372036854775807"))
	add("int", spaceDecimal, integerRange("-2147483648", "2147483647"))
	add("short", spaceDecimal, integerRange("-32768", "32767"))
	add("byte", spaceDecimal, integerRange("-128", "127"))
	add("unsignedLong", spaceDecimal, integerRange("0", "18446744073709551615"))
	add("unsignedInt", spaceDecimal, integerRange("0", "4294967295"))
	add("unsignedShort", spaceDecimal, integerRange("0", "65535"))
	add("unsignedByte", spaceDecimal, integerRange("0", "255"))

	bt.types["string"].WhiteSpace = WhiteSpacePreserve
	bt.types["anySimpleType"].WhiteSpace = WhiteSpacePreserve
	bt.types["normalizedString"].WhiteSpace = WhiteSpaceReplace
	for _, name := range []string{"IDREFS", "ENTITIES", "NMTOKENS"} {
		bt.types[name].List = true
	}

	bt.fallback = &BuiltinType{Name: "string", WhiteSpace: WhiteSpacePreserve, space: spaceString}
	return bt
}

// Lookup returns the built-in named local; unknown names fall back to a
// permissive string validator.
func (bt *BuiltinTypes) Lookup(local string) *BuiltinType {
	if t, ok := bt.types[local]; ok {
		return t
	}
	return bt.fallback
}

// Has reports whether local names a built-in datatype.
func (bt *BuiltinTypes) Has(local string) bool {
	_, ok := bt.types[local]
	return ok
}

// Len returns the number of registered built-ins.
func (bt *BuiltinTypes) Len() int { return len(bt.types) }

var (
	decimalPattern    = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)
	floatPattern      = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)
	durationPattern   = regexp.MustCompile(`^-?P(\d+Y)?(\d+M)?(\d+D)?(T(\d+H)?(\d+M)?(\d+(\.\d+)?S)?)?$`)
	timePattern       = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2})(\.\d+)?(Z|[+-]\d{2}:\d{2})?$`)
	datePattern       = regexp.MustCompile(`^(-?\d{4,})-(\d{2})-(\d{2})(Z|[+-]\d{2}:\d{2})?$`)
	dateTimePattern   = regexp.MustCompile(`^(-?\d{4,}-\d{2}-\d{2})T(\d{2}:\d{2}:\d{2}(\.\d+)?)(Z|[+-]\d{2}:\d{2})?$`)
	gYearMonthPattern = regexp.MustCompile(`^-?\d{4,}-(\d{2})(Z|[+-]\d{2}:\d{2})?$`)
	gYearPattern      = regexp.MustCompile(`^-?\d{4,}(Z|[+-]\d{2}:\d{2})?$`)
	gMonthDayPattern  = regexp.MustCompile(`^--(\d{2})-(\d{2})(Z|[+-]\d{2}:\d{2})?$`)
	gDayPattern       = regexp.MustCompile(`^---(\d{2})(Z|[+-]\d{2}:\d{2})?$`)
	gMonthPattern     = regexp.MustCompile(`^--(\d{2})(Z|[+-]\d{2}:\d{2})?$`)
	languagePattern   = regexp.MustCompile(`^[a-zA-Z]{1,8}(-[a-zA-Z0-9]{1,8})*$`)
)

func matchPattern(re *regexp.Regexp, name string) func(string) error {
	return func(value string) error {
		if !re.MatchString(value) {
			return fmt.Errorf("invalid %s value", name)
		}
		return nil
	}
}

// matchMonth checks a pattern whose submatch group holds a month number.
func matchMonth(re *regexp.Regexp, group int) func(string) error {
	return func(value string) error {
		m := re.FindStringSubmatch(value)
		if m == nil {
			return fmt.Errorf("invalid lexical form")
		}
		if month, _ := strconv.Atoi(m[group]); month < 1 || month > 12 {
			return fmt.Errorf("month %d out of range", month)
		}
		return nil
	}
}

func listOf(item func(string) error) func(string) error {
	return func(value string) error {
		items := strings.Fields(value)
		if len(items) == 0 {
			return fmt.Errorf("list must not be empty")
		}
		for _, it := range items {
			if err := item(it); err != nil {
				return err
			}
		}
		return nil
	}
}

func validateBoolean(value string) error {
	switch value {
	case "true", "false", "1", "0":
		return nil
	}
	return fmt.Errorf("expected true, false, 1 or 0")
}

func validateDecimal(value string) error {
	if !decimalPattern.MatchString(value) {
		return fmt.Errorf("invalid decimal value")
	}
	return nil
}

func validateFloat(value string) error {
	switch value {
	case "INF", "+INF", "-INF", "NaN":
		return nil
	}
	if !floatPattern.MatchString(value) {
		return fmt.Errorf("invalid floating point value")
	}
	return nil
}

func validateDuration(value string) error {
	if !durationPattern.MatchString(value) {
		return fmt.Errorf("invalid duration value")
	}
	if strings.HasSuffix(value, "P") || strings.HasSuffix(value, "T") {
		return fmt.Errorf("duration must have at least one component")
	}
	return nil
}

func validateDate(value string) error {
	m := datePattern.FindStringSubmatch(value)
	if m == nil {
		return fmt.Errorf("invalid date value")
	}
	if strings.HasPrefix(m[1], "-") || len(m[1]) > 4 {
		// years outside 0001-9999 only get a range check on month and day
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return fmt.Errorf("invalid date value")
		}
		return nil
	}
	if _, err := time.Parse("2006-01-02", m[1]+"-"+m[2]+"-"+m[3]); err != nil {
		return fmt.Errorf("invalid date value")
	}
	return nil
}

func validateTime(value string) error {
	m := timePattern.FindStringSubmatch(value)
	if m == nil {
		return fmt.Errorf("invalid time value")
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	second, _ := strconv.Atoi(m[3])
	if hour == 24 && minute == 0 && second == 0 {
		return nil
	}
	if hour > 23 || minute > 59 || second > 59 {
		return fmt.Errorf("time component out of range")
	}
	return nil
}

func validateDateTime(value string) error {
	m := dateTimePattern.FindStringSubmatch(value)
	if m == nil {
		return fmt.Errorf("invalid dateTime value")
	}
	if err := validateDate(m[1]); err != nil {
		return err
	}
	return validateTime(m[2])
}

func validateGMonthDay(value string) error {
	m := gMonthDayPattern.FindStringSubmatch(value)
	if m == nil {
		return fmt.Errorf("invalid gMonthDay value")
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return fmt.Errorf("invalid gMonthDay value")
	}
	return nil
}

func validateGDay(value string) error {
	m := gDayPattern.FindStringSubmatch(value)
	if m == nil {
		return fmt.Errorf("invalid gDay value")
	}
	if day, _ := strconv.Atoi(m[1]); day < 1 || day > 31 {
		return fmt.Errorf("day %d out of range", day)
	}
	return nil
}

func validateHexBinary(value string) error {
	if len(value)%2 != 0 {
		return fmt.Errorf("hexBinary must have an even number of digits")
	}
	if _, err := hex.DecodeString(value); err != nil {
		return fmt.Errorf("invalid hexBinary value")
	}
	return nil
}

func validateBase64Binary(value string) error {
	compact := strings.Join(strings.Fields(value), "")
	if _, err := base64.StdEncoding.DecodeString(compact); err != nil {
		return fmt.Errorf("invalid base64Binary value")
	}
	return nil
}

func validateAnyURI(value string) error {
	if _, err := url.Parse(value); err != nil {
		return fmt.Errorf("invalid URI reference")
	}
	return nil
}

func validateQName(value string) error {
	prefix, local := splitPrefixed(value)
	if strings.Contains(local, ":") {
		return fmt.Errorf("too many colons")
	}
	if prefix != "" {
		if err := validateNCName(prefix); err != nil {
			return err
		}
	}
	return validateNCName(local)
}

func validateNormalizedString(value string) error {
	if strings.ContainsAny(value, "\r\n\t") {
		return fmt.Errorf("normalizedString cannot contain CR, LF, or TAB")
	}
	return nil
}

func validateToken(value string) error {
	if err := validateNormalizedString(value); err != nil {
		return err
	}
	if strings.HasPrefix(value, " ") || strings.HasSuffix(value, " ") || strings.Contains(value, "  ") {
		return fmt.Errorf("token cannot have leading, trailing or repeated spaces")
	}
	return nil
}

func isNameChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-' || r == '_' || r == ':'
}

func validateName(value string) error {
	if value == "" {
		return fmt.Errorf("name cannot be empty")
	}
	for i, r := range value {
		if i == 0 && !unicode.IsLetter(r) && r != '_' && r != ':' {
			return fmt.Errorf("name must start with a letter, underscore, or colon")
		}
		if !isNameChar(r) {
			return fmt.Errorf("invalid character %q in name", r)
		}
	}
	return nil
}

func validateNCName(value string) error {
	if strings.Contains(value, ":") {
		return fmt.Errorf("NCName cannot contain colons")
	}
	return validateName(value)
}

func validateNMTOKEN(value string) error {
	if value == "" {
		return fmt.Errorf("NMTOKEN cannot be empty")
	}
	for _, r := range value {
		if !isNameChar(r) {
			return fmt.Errorf("invalid character %q in NMTOKEN", r)
		}
	}
	return nil
}

// integerRange validates an integer with optional inclusive bounds.
func integerRange(lo, hi string) func(string) error {
	var minVal, maxVal *big.Int
	if lo != "" {
		minVal, _ = new(big.Int).SetString(lo, 10)
	}
	if hi != "" {
		maxVal, _ = new(big.Int).SetString(hi, 10)
	}
	return func(value string) error {
		v, ok := new(big.Int).SetString(strings.TrimPrefix(value, "+"), 10)
		if !ok || strings.HasPrefix(value, "+-") {
			return fmt.Errorf("invalid integer value")
		}
		if minVal != nil && v.Cmp(minVal) < 0 {
			return fmt.Errorf("value must be >= %s", lo)
		}
		if maxVal != nil && v.Cmp(maxVal) > 0 {
			return fmt.Errorf("value must be <= %s", hi)
		}
		return nil
	}
}
