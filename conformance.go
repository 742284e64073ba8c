package xsd

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// W3CTestSet is a test set metadata file of the W3C XML Schema test suite.
type W3CTestSet struct {
	XMLName     xml.Name       `xml:"testSet"`
	Contributor string         `xml:"contributor,attr"`
	Name        string         `xml:"name,attr"`
	TestGroups  []W3CTestGroup `xml:"testGroup"`
}

// W3CTestGroup is one schema test with the instance tests validated
// against it.
type W3CTestGroup struct {
	Name          string            `xml:"name,attr"`
	Documentation string            `xml:"annotation>documentation"`
	SchemaTest    *W3CSchemaTest    `xml:"schemaTest"`
	InstanceTests []W3CInstanceTest `xml:"instanceTest"`
}

// W3CSchemaTest asserts whether a set of schema documents is valid.
type W3CSchemaTest struct {
	Name            string      `xml:"name,attr"`
	SchemaDocuments []W3CDocRef `xml:"schemaDocument"`
	Expected        W3CExpected `xml:"expected"`
}

// W3CInstanceTest asserts whether an instance is valid against the schema
// of its group.
type W3CInstanceTest struct {
	Name             string      `xml:"name,attr"`
	InstanceDocument W3CDocRef   `xml:"instanceDocument"`
	Expected         W3CExpected `xml:"expected"`
}

// W3CDocRef references a document relative to the metadata file.
type W3CDocRef struct {
	Href string `xml:"http://www.w3.org/1999/xlink href,attr"`
}

// W3CExpected holds the expected validity: valid, invalid or notKnown.
type W3CExpected struct {
	Validity string `xml:"validity,attr"`
}

// Outcomes of a conformance test.
const (
	OutcomeValid   = "valid"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// ConformanceResult is the outcome of one conformance test.
type ConformanceResult struct {
	TestSet      string   `json:"test_set" yaml:"test_set"`
	TestGroup    string   `json:"test_group" yaml:"test_group"`
	TestName     string   `json:"test_name" yaml:"test_name"`
	TestType     string   `json:"test_type" yaml:"test_type"` // schema or instance
	Expected     string   `json:"expected" yaml:"expected"`
	Actual       string   `json:"actual" yaml:"actual"`
	Passed       bool     `json:"passed" yaml:"passed"`
	Codes        []string `json:"codes,omitempty" yaml:"codes,omitempty"`
	Detail       string   `json:"detail,omitempty" yaml:"detail,omitempty"`
	SchemaPath   string   `json:"schema_path,omitempty" yaml:"schema_path,omitempty"`
	InstancePath string   `json:"instance_path,omitempty" yaml:"instance_path,omitempty"`
}

// Skipped reports whether the test has no usable expectation.
func (r ConformanceResult) Skipped() bool { return r.Expected != OutcomeValid && r.Expected != OutcomeInvalid }

// ConformanceRunner runs W3C test set metadata files through a Repository
// and Validator built with Config.
type ConformanceRunner struct {
	SuiteDir string
	Config   *Configuration
	Logger   *slog.Logger
	Results  []ConformanceResult
}

// NewConformanceRunner creates a runner over the suite rooted at dir.
func NewConformanceRunner(dir string, cfg *Configuration) *ConformanceRunner {
	if cfg == nil {
		cfg = DefaultConfiguration()
	}
	return &ConformanceRunner{SuiteDir: dir, Config: cfg, Logger: slog.Default()}
}

// LoadTestSet decodes a test set metadata file.
func LoadTestSet(path string) (*W3CTestSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read test metadata: %w", err)
	}
	var set W3CTestSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse test metadata %s: %w", path, err)
	}
	return &set, nil
}

// RunMetadataFile runs every group of one metadata file.
func (r *ConformanceRunner) RunMetadataFile(path string) error {
	set, err := LoadTestSet(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	for _, group := range set.TestGroups {
		r.runGroup(set.Name, group, dir)
	}
	return nil
}

// RunAll runs every metadata file under SuiteDir matching pattern. A file
// that cannot be decoded is logged and skipped.
func (r *ConformanceRunner) RunAll(pattern string) error {
	files, err := filepath.Glob(filepath.Join(r.SuiteDir, pattern))
	if err != nil {
		return fmt.Errorf("failed to find test files: %w", err)
	}
	r.Logger.Info("running conformance tests", "files", len(files), "pattern", pattern)
	for _, file := range files {
		if err := r.RunMetadataFile(file); err != nil {
			r.Logger.Warn("skipping test metadata", "file", file, "error", err)
		}
	}
	return nil
}

func (r *ConformanceRunner) runGroup(set string, group W3CTestGroup, dir string) {
	if group.SchemaTest == nil {
		return
	}
	st := group.SchemaTest
	var paths []string
	for _, doc := range st.SchemaDocuments {
		paths = append(paths, filepath.Join(dir, filepath.FromSlash(doc.Href)))
	}
	schemaPath := strings.Join(paths, ",")

	repo, codes, loadErr := r.loadRepository(paths)
	result := ConformanceResult{
		TestSet:    set,
		TestGroup:  group.Name,
		TestName:   st.Name,
		TestType:   "schema",
		Expected:   st.Expected.Validity,
		Codes:      codes,
		SchemaPath: schemaPath,
	}
	switch {
	case loadErr != nil:
		result.Actual = OutcomeInvalid
		result.Detail = loadErr.Error()
	case len(codes) > 0:
		result.Actual = OutcomeInvalid
	default:
		result.Actual = OutcomeValid
	}
	result.Passed = result.Expected == result.Actual
	r.Results = append(r.Results, result)

	for _, it := range group.InstanceTests {
		r.Results = append(r.Results, r.runInstance(set, group.Name, it, dir, repo, schemaPath))
	}
}

// loadRepository parses and resolves the schema documents. Error-severity
// schema issues make the schema invalid; their codes are returned.
func (r *ConformanceRunner) loadRepository(paths []string) (*Repository, []string, error) {
	repo := NewRepository(
		WithLogger(r.Logger),
		WithFuzzyThreshold(r.Config.FuzzyThreshold),
		WithMaxSuggestions(r.Config.MaxSuggestions),
	)
	for _, p := range paths {
		if err := repo.AddSchemaFile(p); err != nil {
			return nil, nil, err
		}
	}
	if err := repo.Parse(); err != nil {
		return nil, nil, err
	}
	if err := repo.Resolve(); err != nil {
		return nil, nil, err
	}
	var codes []string
	for _, issue := range repo.Issues() {
		if issue.Severity == SeverityError {
			codes = append(codes, issue.Code)
		}
	}
	return repo, codes, nil
}

func (r *ConformanceRunner) runInstance(set, group string, test W3CInstanceTest, dir string, repo *Repository, schemaPath string) ConformanceResult {
	result := ConformanceResult{
		TestSet:      set,
		TestGroup:    group,
		TestName:     test.Name,
		TestType:     "instance",
		Expected:     test.Expected.Validity,
		SchemaPath:   schemaPath,
		InstancePath: filepath.Join(dir, filepath.FromSlash(test.InstanceDocument.Href)),
	}
	fail := func(err error) ConformanceResult {
		result.Actual = OutcomeError
		result.Detail = err.Error()
		return result
	}
	if repo == nil {
		return fail(fmt.Errorf("schema for group %s did not load", group))
	}
	v, err := NewValidator(repo, r.Config, WithValidatorLogger(r.Logger))
	if err != nil {
		return fail(err)
	}
	content, err := os.ReadFile(result.InstancePath)
	if err != nil {
		return fail(fmt.Errorf("failed to read instance: %w", err))
	}
	res, err := v.ValidateBytes(content)
	if err != nil {
		return fail(err)
	}
	for _, e := range res.Errors() {
		result.Codes = append(result.Codes, e.Code)
	}
	result.Actual = OutcomeValid
	if !res.Valid() {
		result.Actual = OutcomeInvalid
		result.Detail = res.Errors()[0].Error()
	}
	result.Passed = result.Expected == result.Actual
	return result
}

// Summary returns pass counts per test type.
func (r *ConformanceRunner) Summary() ConformanceSummary {
	var s ConformanceSummary
	for _, res := range r.Results {
		if res.Skipped() {
			s.Skipped++
			continue
		}
		s.Total++
		if res.Actual == OutcomeError {
			s.Errors++
		}
		if res.TestType == "schema" {
			s.SchemaTests++
		} else {
			s.InstanceTests++
		}
		if !res.Passed {
			continue
		}
		s.Passed++
		if res.TestType == "schema" {
			s.SchemaPassed++
		} else {
			s.InstancePassed++
		}
	}
	return s
}

// ConformanceSummary aggregates conformance results.
type ConformanceSummary struct {
	Total, Passed, Errors, Skipped int
	SchemaTests, SchemaPassed      int
	InstanceTests, InstancePassed  int
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100 / float64(total)
}

// Report renders the summary and up to limit failed tests.
func (r *ConformanceRunner) Report(limit int) string {
	s := r.Summary()
	var b strings.Builder
	b.WriteString("XML Schema Conformance Results\n")
	b.WriteString("==============================\n\n")
	fmt.Fprintf(&b, "Total Tests:     %d\n", s.Total)
	fmt.Fprintf(&b, "Passed:          %d (%.1f%%)\n", s.Passed, percent(s.Passed, s.Total))
	fmt.Fprintf(&b, "Failed:          %d (%.1f%%)\n", s.Total-s.Passed, percent(s.Total-s.Passed, s.Total))
	fmt.Fprintf(&b, "Errors:          %d\n", s.Errors)
	fmt.Fprintf(&b, "Skipped:         %d\n\n", s.Skipped)
	fmt.Fprintf(&b, "Schema Tests:    %d (passed: %d, %.1f%%)\n", s.SchemaTests, s.SchemaPassed, percent(s.SchemaPassed, s.SchemaTests))
	fmt.Fprintf(&b, "Instance Tests:  %d (passed: %d, %.1f%%)\n", s.InstanceTests, s.InstancePassed, percent(s.InstancePassed, s.InstanceTests))

	shown := 0
	for _, res := range r.Results {
		if res.Passed || res.Skipped() {
			continue
		}
		if shown == 0 {
			fmt.Fprintf(&b, "\nFailed Tests (first %d):\n", limit)
		}
		if shown >= limit {
			break
		}
		shown++
		fmt.Fprintf(&b, "%s/%s/%s: expected=%s, actual=%s\n", res.TestSet, res.TestGroup, res.TestName, res.Expected, res.Actual)
	}
	return b.String()
}

// FailureCategory groups failed conformance tests.
type FailureCategory struct {
	Name     string
	Count    int
	Examples []ConformanceResult
}

const maxFailureExamples = 5

// AnalyzeFailures groups failed tests by the rule category of the finding
// they produced. A test that produced no finding, such as an invalid
// instance reported valid, is grouped by the keywords of its group name.
func AnalyzeFailures(results []ConformanceResult) []*FailureCategory {
	byName := make(map[string]*FailureCategory)
	for _, res := range results {
		if res.Passed || res.Skipped() {
			continue
		}
		name := failureCategory(res)
		cat, ok := byName[name]
		if !ok {
			cat = &FailureCategory{Name: name}
			byName[name] = cat
		}
		cat.Count++
		if len(cat.Examples) < maxFailureExamples {
			cat.Examples = append(cat.Examples, res)
		}
	}
	out := make([]*FailureCategory, 0, len(byName))
	for _, cat := range byName {
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

var codeCategories = map[string]RuleCategory{
	CodeElementNotAllowed:        RuleStructure,
	CodeAbstractElement:          RuleStructure,
	CodeTextNotAllowed:           RuleStructure,
	CodeElementChildrenNotAllow:  RuleStructure,
	CodeNilNotAllowed:            RuleStructure,
	CodeNilContentNotEmpty:       RuleStructure,
	CodeWildcardNamespace:        RuleStructure,
	CodeChoiceAmbiguous:          RuleContentModel,
	CodeChoiceNotSatisfied:       RuleContentModel,
	CodeMinOccurs:                RuleOccurrence,
	CodeMaxOccurs:                RuleOccurrence,
	CodeUnexpectedAttribute:      RuleAttribute,
	CodeRequiredAttributeMissing: RuleAttribute,
	CodeProhibitedAttribute:      RuleAttribute,
	CodeKeyFieldMissing:          RuleIdentity,
	CodeDuplicateKey:             RuleIdentity,
	CodeUniqueViolation:          RuleIdentity,
	CodeKeyrefViolation:          RuleIdentity,
	CodeKeyNotFound:              RuleIdentity,
	CodeDuplicateID:              RuleIdentity,
	CodeIDRefNotFound:            RuleIdentity,
}

var groupKeywords = []struct {
	category string
	words    []string
}{
	{string(RuleIdentity), []string{"identity", "keyref", "unique", "key", "idref"}},
	{string(RuleType), []string{"pattern", "length", "enum", "facet", "whitespace", "digit", "datatype", "decimal", "date", "list", "union"}},
	{string(RuleAttribute), []string{"attribute", "attr"}},
	{string(RuleContentModel), []string{"sequence", "choice", "all", "group", "particle"}},
	{string(RuleOccurrence), []string{"occurs", "occurrence"}},
	{string(RuleStructure), []string{"wildcard", "any", "substitution", "abstract", "nil", "mixed", "namespace"}},
	{"schema", []string{"import", "include", "redefine", "schema"}},
}

func failureCategory(res ConformanceResult) string {
	if res.Actual == OutcomeError {
		return OutcomeError
	}
	if len(res.Codes) > 0 {
		if cat, ok := codeCategories[res.Codes[0]]; ok {
			return string(cat)
		}
		if res.TestType == "schema" {
			return "schema"
		}
		return string(RuleType)
	}
	name := strings.ToLower(res.TestGroup + "/" + res.TestName)
	for _, g := range groupKeywords {
		for _, w := range g.words {
			if strings.Contains(name, w) {
				return g.category
			}
		}
	}
	return "other"
}

// FailureReport renders the output of AnalyzeFailures.
func FailureReport(categories []*FailureCategory) string {
	total := 0
	for _, cat := range categories {
		total += cat.Count
	}
	var b strings.Builder
	b.WriteString("Conformance Failure Analysis\n")
	b.WriteString("============================\n\n")
	fmt.Fprintf(&b, "Total Failures: %d\n\n", total)
	for _, cat := range categories {
		fmt.Fprintf(&b, "%s: %d failures (%.1f%%)\n", cat.Name, cat.Count, percent(cat.Count, total))
		for i, ex := range cat.Examples {
			if i >= 3 {
				break
			}
			fmt.Fprintf(&b, "  - %s/%s (expected: %s, got: %s)", ex.TestGroup, ex.TestName, ex.Expected, ex.Actual)
			if len(ex.Codes) > 0 {
				fmt.Fprintf(&b, " [%s]", strings.Join(ex.Codes, ", "))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}
