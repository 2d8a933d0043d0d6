package testfixtures

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/auditview/auditview/pkg/audit"
	"github.com/auditview/auditview/pkg/report"
)

// Fixture names.
const (
	Scenario = "scenario.json"
	Mixed    = "mixed.json"
	Clean    = "clean.json"
	ENOLOCK  = "enolock.json"
)

// Dir returns the absolute path of the fixture directory, independent of
// the calling test's working directory.
func Dir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "audit", "testdata")
}

// Path returns the absolute path of a fixture.
func Path(name string) string {
	return filepath.Join(Dir(), name)
}

// Raw returns a fixture's bytes.
func Raw(t testing.TB, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(Path(name))
	require.NoError(t, err)
	return data
}

// Report decodes a fixture.
func Report(t testing.TB, name string) *audit.Report {
	t.Helper()
	r, err := audit.Parse(Raw(t, name))
	require.NoError(t, err)
	return r
}

// Vulnerabilities decodes a fixture and returns its records in report
// order.
func Vulnerabilities(t testing.TB, name string) []audit.Vulnerability {
	t.Helper()
	return audit.Normalize(Report(t, name), audit.DefaultOrder)
}

// Document assembles a fixture with the default templates. app may be nil.
func Document(t testing.TB, name string, app *report.AppMeta) *report.Document {
	t.Helper()
	a, err := report.NewAssembler()
	require.NoError(t, err)
	doc, err := a.Assemble(Report(t, name), app)
	require.NoError(t, err)
	return doc
}

// App is the package.json metadata the tests pair with Scenario.
func App() *report.AppMeta {
	return &report.AppMeta{Name: "storefront", Version: "2.7.1", Description: "Shop front"}
}
