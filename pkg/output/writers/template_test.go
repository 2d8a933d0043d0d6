package writers

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditview/auditview/pkg/jsonutil"
	"github.com/auditview/auditview/pkg/report"
	"github.com/auditview/auditview/pkg/templateresolver"
)

func renderTemplate(t *testing.T, cfg TemplateConfig, fixture string) string {
	t.Helper()
	w, err := NewTemplateWriter(cfg)
	require.NoError(t, err)
	return render(t, w, loadDoc(t, fixture, &report.AppMeta{Name: "storefront", Version: "2.7.1"}))
}

func TestTemplateWriter_Summary(t *testing.T) {
	t.Parallel()

	out := renderTemplate(t, TemplateConfig{}, "scenario.json")
	assert.True(t, strings.HasPrefix(out, "NPM Audit Report - storefront\n"))
	assert.Contains(t, out, "Application: storefront 2.7.1")
	assert.Contains(t, out, "Vulnerabilities: 2 in 2 packages")
	assert.Contains(t, out, "Prototype Pollution")
	assert.Contains(t, out, "depends on minimist")

	clean := renderTemplate(t, TemplateConfig{Template: "summary"}, "clean.json")
	assert.Contains(t, clean, "Great! No vulnerabilities found.")
	assert.NotContains(t, clean, "Packages:")
}

func TestTemplateWriter_JUnit(t *testing.T) {
	t.Parallel()

	type testsuites struct {
		Failures int `xml:"failures,attr"`
		Suites   []struct {
			Cases []struct {
				Name    string    `xml:"name,attr"`
				Failure *struct{} `xml:"failure"`
			} `xml:"testcase"`
		} `xml:"testsuite"`
	}

	for _, fixture := range []string{"scenario.json", "mixed.json", "clean.json"} {
		t.Run(fixture, func(t *testing.T) {
			t.Parallel()
			doc := loadDoc(t, fixture, nil)
			w, err := NewTemplateWriter(TemplateConfig{Template: "junit"})
			require.NoError(t, err)
			assert.Equal(t, ".xml", w.Extension())

			var got testsuites
			require.NoError(t, xml.Unmarshal([]byte(render(t, w, doc)), &got))
			assert.Equal(t, doc.Counts.Listed, got.Failures)
			require.Len(t, got.Suites, 1)

			failures := 0
			for _, c := range got.Suites[0].Cases {
				if c.Failure != nil {
					failures++
				}
			}
			assert.Equal(t, doc.Counts.Listed, failures)
		})
	}
}

func TestTemplateWriter_Slack(t *testing.T) {
	t.Parallel()

	for _, fixture := range []string{"scenario.json", "clean.json"} {
		out := renderTemplate(t, TemplateConfig{Template: "slack"}, fixture)
		assert.True(t, jsonutil.Valid([]byte(out)), "%s: %s", fixture, out)
	}
}

func TestTemplateWriter_GitHubAnnotations(t *testing.T) {
	t.Parallel()

	out := renderTemplate(t, TemplateConfig{Template: "github-annotations"}, "scenario.json")
	assert.Contains(t, out, "::error title=minimist (Critical)::Prototype Pollution (fix: No)")
	assert.Contains(t, out, "::error title=lodash (High)::Depends on vulnerable versions of minimist (fix: Yes)")

	mixed := renderTemplate(t, TemplateConfig{Template: "github-annotations"}, "mixed.json")
	assert.Contains(t, mixed, "::warning title=alpha-moderate (Moderate)::ReDoS (fix: Breaking)")
}

func TestTemplateWriter_Inline(t *testing.T) {
	t.Parallel()

	cfg := TemplateConfig{
		Inline:    `{{ range .Vulnerabilities }}{{ severityEmoji .Severity }} {{ .Name | upper }}|{{ escapeCSV .Range }}{{ "\n" }}{{ end }}`,
		Extension: ".csv",
	}
	w, err := NewTemplateWriter(cfg)
	require.NoError(t, err)
	assert.Equal(t, "inline", w.Source())
	assert.Equal(t, ".csv", w.Extension())

	out := render(t, w, loadDoc(t, "scenario.json", nil))
	assert.Equal(t, "\U0001F534 MINIMIST|<1.2.6\n\U0001F7E0 LODASH|<=4.17.20\n", out)
}

func TestTemplateWriter_FromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "names.xml.tmpl")
	require.NoError(t, os.WriteFile(path, []byte(`<n>{{ escapeXML "a<b" }}</n>`), 0o600))

	w, err := NewTemplateWriter(TemplateConfig{Template: path})
	require.NoError(t, err)
	assert.Equal(t, ".xml", w.Extension())
	assert.Equal(t, "disk:"+path, w.Source())
	assert.Equal(t, "<n>a&lt;b</n>", render(t, w, loadDoc(t, "clean.json", nil)))
}

func TestTemplateWriter_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewTemplateWriter(TemplateConfig{Inline: "{{ .Title "})
	assert.Error(t, err)

	_, err = NewTemplateWriter(TemplateConfig{Template: "does-not-exist"})
	assert.ErrorIs(t, err, templateresolver.ErrNotFound)

	w, err := NewTemplateWriter(TemplateConfig{Inline: "{{ .NoSuchField }}"})
	require.NoError(t, err)
	err = w.Write(t.Context(), &strings.Builder{}, loadDoc(t, "clean.json", nil))
	assert.Error(t, err)
}

func TestTemplateExtension(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"junit":               ".xml",
		"slack":               ".json",
		"summary":             ".txt",
		"github-annotations":  ".txt",
		"/tmp/report.md.tmpl": ".md",
		"custom.html":         ".html",
	}
	for name, want := range tests {
		assert.Equal(t, want, templateExtension(name), name)
	}
}
