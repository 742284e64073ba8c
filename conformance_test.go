package xsd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const suiteMetadata = `<?xml version="1.0"?>
<testSet xmlns="http://www.w3.org/XML/2004/xml-schema-test-suite/"
    xmlns:xlink="http://www.w3.org/1999/xlink" contributor="tests" name="demo">
  <testGroup name="people">
    <annotation><documentation>People documents</documentation></annotation>
    <schemaTest name="people-schema">
      <schemaDocument xlink:href="s/people.xsd"/>
      <expected validity="valid"/>
    </schemaTest>
    <instanceTest name="ok">
      <instanceDocument xlink:href="s/ok.xml"/>
      <expected validity="valid"/>
    </instanceTest>
    <instanceTest name="bad">
      <instanceDocument xlink:href="s/bad.xml"/>
      <expected validity="invalid"/>
    </instanceTest>
    <instanceTest name="wrongly-valid">
      <instanceDocument xlink:href="s/ok.xml"/>
      <expected validity="invalid"/>
    </instanceTest>
    <instanceTest name="unknown">
      <instanceDocument xlink:href="s/ok.xml"/>
      <expected validity="notKnown"/>
    </instanceTest>
    <instanceTest name="missing">
      <instanceDocument xlink:href="s/none.xml"/>
      <expected validity="valid"/>
    </instanceTest>
  </testGroup>
  <testGroup name="brokenSchema">
    <schemaTest name="broken">
      <schemaDocument xlink:href="s/broken.xsd"/>
      <expected validity="invalid"/>
    </schemaTest>
    <instanceTest name="orphan">
      <instanceDocument xlink:href="s/ok.xml"/>
      <expected validity="valid"/>
    </instanceTest>
  </testGroup>
</testSet>`

func writeSuite(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"demo.testSet": suiteMetadata,
		"junk.testSet": "<testSet",
		"s/people.xsd": peopleSchema,
		"s/ok.xml":     `<people><person id="1"><name>Ada</name></person></people>`,
		"s/bad.xml":    `<people><person><name>Ada</name></person></people>`,
		"s/broken.xsd": `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">`,
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func runSuite(t *testing.T) *ConformanceRunner {
	t.Helper()
	r := NewConformanceRunner(writeSuite(t), nil)
	r.Logger = discardLogger()
	require.NoError(t, r.RunAll("*.testSet"))
	return r
}

func TestLoadTestSet(t *testing.T) {
	dir := writeSuite(t)

	set, err := LoadTestSet(filepath.Join(dir, "demo.testSet"))
	require.NoError(t, err)
	assert.Equal(t, "demo", set.Name)
	assert.Equal(t, "tests", set.Contributor)
	require.Len(t, set.TestGroups, 2)

	group := set.TestGroups[0]
	assert.Equal(t, "People documents", group.Documentation)
	require.NotNil(t, group.SchemaTest)
	assert.Equal(t, "s/people.xsd", group.SchemaTest.SchemaDocuments[0].Href)
	assert.Equal(t, "valid", group.SchemaTest.Expected.Validity)
	require.Len(t, group.InstanceTests, 5)
	assert.Equal(t, "s/bad.xml", group.InstanceTests[1].InstanceDocument.Href)

	_, err = LoadTestSet(filepath.Join(dir, "junk.testSet"))
	assert.Error(t, err)
	_, err = LoadTestSet(filepath.Join(dir, "absent.testSet"))
	assert.Error(t, err)
}

func TestConformanceRunner(t *testing.T) {
	r := runSuite(t)

	type outcome struct {
		name, actual string
		passed       bool
	}
	var got []outcome
	for _, res := range r.Results {
		got = append(got, outcome{res.TestName, res.Actual, res.Passed})
	}
	assert.Equal(t, []outcome{
		{"people-schema", OutcomeValid, true},
		{"ok", OutcomeValid, true},
		{"bad", OutcomeInvalid, true},
		{"wrongly-valid", OutcomeValid, false},
		{"unknown", OutcomeValid, false},
		{"missing", OutcomeError, false},
		{"broken", OutcomeInvalid, true},
		{"orphan", OutcomeError, false},
	}, got)

	bad := r.Results[2]
	assert.Equal(t, "instance", bad.TestType)
	assert.Equal(t, []string{CodeRequiredAttributeMissing}, bad.Codes)
	assert.Equal(t, filepath.Join(r.SuiteDir, "s", "bad.xml"), bad.InstancePath)
	assert.NotEmpty(t, bad.Detail)
	assert.True(t, r.Results[4].Skipped())

	assert.Equal(t, ConformanceSummary{
		Total: 7, Passed: 4, Errors: 2, Skipped: 1,
		SchemaTests: 2, SchemaPassed: 2,
		InstanceTests: 5, InstancePassed: 2,
	}, r.Summary())
}

func TestConformanceReport(t *testing.T) {
	r := runSuite(t)
	report := r.Report(1)

	assert.Contains(t, report, "Total Tests:     7\n")
	assert.Contains(t, report, "Passed:          4 (57.1%)\n")
	assert.Contains(t, report, "Skipped:         1\n")
	assert.Contains(t, report, "Failed Tests (first 1):\n")
	assert.Contains(t, report, "demo/people/wrongly-valid: expected=invalid, actual=valid\n")
	assert.NotContains(t, report, "demo/people/missing")
}

func TestAnalyzeFailures(t *testing.T) {
	r := runSuite(t)
	categories := AnalyzeFailures(r.Results)

	require.Len(t, categories, 2)
	assert.Equal(t, OutcomeError, categories[0].Name)
	assert.Equal(t, 2, categories[0].Count)
	assert.Equal(t, "other", categories[1].Name)
	assert.Equal(t, "wrongly-valid", categories[1].Examples[0].TestName)

	report := FailureReport(categories)
	assert.Contains(t, report, "Total Failures: 3\n")
	assert.Contains(t, report, "error: 2 failures (66.7%)\n")
	assert.Contains(t, report, "  - brokenSchema/orphan (expected: valid, got: error)\n")
}

func TestFailureCategory(t *testing.T) {
	tests := []struct {
		name string
		res  ConformanceResult
		want string
	}{
		{name: "error outcome", res: ConformanceResult{Actual: OutcomeError, Codes: []string{CodeDuplicateKey}}, want: OutcomeError},
		{name: "identity code", res: ConformanceResult{Actual: OutcomeInvalid, Codes: []string{CodeDuplicateKey}}, want: string(RuleIdentity)},
		{name: "occurrence code", res: ConformanceResult{Actual: OutcomeInvalid, Codes: []string{CodeMaxOccurs}}, want: string(RuleOccurrence)},
		{name: "value code", res: ConformanceResult{Actual: OutcomeInvalid, TestType: "instance", Codes: []string{CodePatternMismatch}}, want: string(RuleType)},
		{name: "schema code", res: ConformanceResult{Actual: OutcomeInvalid, TestType: "schema", Codes: []string{CodeSchemaInvalid}}, want: "schema"},
		{name: "group keyword", res: ConformanceResult{Actual: OutcomeValid, TestGroup: "attrUse001"}, want: string(RuleAttribute)},
		{name: "facet keyword", res: ConformanceResult{Actual: OutcomeValid, TestGroup: "maxLength002"}, want: string(RuleType)},
		{name: "wildcard keyword", res: ConformanceResult{Actual: OutcomeValid, TestGroup: "wildZ", TestName: "anyElt"}, want: string(RuleStructure)},
		{name: "no keyword", res: ConformanceResult{Actual: OutcomeValid, TestGroup: "misc"}, want: "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, failureCategory(tt.res))
		})
	}
}
