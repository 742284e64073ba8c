package xsd

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRepository parses and resolves in-memory schemas named
// schema0.xsd, schema1.xsd and so on.
func newTestRepository(t *testing.T, schemas ...string) *Repository {
	t.Helper()
	repo := NewRepository(WithLogger(discardLogger()), WithBaseDir(t.TempDir()))
	for i, s := range schemas {
		require.NoError(t, repo.AddSchemaBytes(schemaName(i), []byte(s)))
	}
	require.NoError(t, repo.Parse())
	require.NoError(t, repo.Resolve())
	return repo
}

func schemaName(i int) string {
	return "schema" + string(rune('0'+i)) + ".xsd"
}

func newTestValidator(t *testing.T, cfg *Configuration, schemas ...string) *Validator {
	t.Helper()
	v, err := NewValidator(newTestRepository(t, schemas...), cfg, WithValidatorLogger(discardLogger()))
	require.NoError(t, err)
	return v
}

func validate(t *testing.T, v *Validator, doc string) *ValidationResult {
	t.Helper()
	res, err := v.Validate(doc)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

// codes returns the codes of the error findings in order.
func codes(res *ValidationResult) []string {
	var out []string
	for _, e := range res.Errors() {
		out = append(out, e.Code)
	}
	return out
}

func messages(res *ValidationResult) string {
	var out []string
	for _, f := range res.Findings {
		out = append(out, f.Error())
	}
	return strings.Join(out, "\n")
}

func strictConfig() *Configuration {
	cfg := DefaultConfiguration()
	cfg.StrictMode = true
	return cfg
}

// wrap places body inside a no-namespace schema document.
func wrap(body string) string {
	return `<?xml version="1.0"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">` + body + `</xs:schema>`
}
