package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditview/auditview/pkg/output/exitcode"
	"github.com/auditview/auditview/pkg/output/testfixtures"
	"github.com/auditview/auditview/pkg/report"
)

// The commands toggle ui's global silent and color state, so these tests
// do not run in parallel.

type result struct {
	code   exitcode.Code
	stdout string
	stderr string
}

func runCLI(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, env{
		stdin:  strings.NewReader(stdin),
		stdout: &stdout,
		stderr: &stderr,
	})
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func fixturePath(name string) string {
	return testfixtures.Path(name)
}

func readFixture(t *testing.T, name string) string {
	t.Helper()
	return string(testfixtures.Raw(t, name))
}

func TestRun_Usage(t *testing.T) {
	res := runCLI(t, "")
	assert.Equal(t, exitcode.UserError, res.code)
	assert.Contains(t, res.stderr, "COMMANDS")

	res = runCLI(t, "", "help")
	assert.Equal(t, exitcode.Success, res.code)
	for _, cmd := range []string{"report", "check", "serve", "mcp", "version"} {
		assert.Contains(t, res.stdout, cmd)
	}

	res = runCLI(t, "", "frobnicate")
	assert.Equal(t, exitcode.UserError, res.code)
	assert.Contains(t, res.stderr, `unknown command "frobnicate"`)
}

func TestRun_Version(t *testing.T) {
	res := runCLI(t, "", "version")
	assert.Equal(t, exitcode.Success, res.code)
	assert.Contains(t, res.stdout, "auditview")
}

func TestReport_MarkdownToStdout(t *testing.T) {
	res := runCLI(t, readFixture(t, "scenario.json"), "report", "-format", "markdown", "-app-name", "storefront", "-q")
	require.Equal(t, exitcode.Success, res.code, res.stderr)
	assert.Contains(t, res.stdout, "NPM Audit Report - storefront")
	assert.Less(t, strings.Index(res.stdout, "minimist"), strings.Index(res.stdout, "lodash"))
}

func TestReport_HTMLFileWithManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"),
		[]byte(`{"name":"storefront","version":"2.7.1","description":"Shop front"}`), 0o644))
	out := filepath.Join(dir, "reports", "npm-audit.html")

	res := runCLI(t, "", "report", "-i", fixturePath("scenario.json"), "-manifest", dir, "-o", out)
	require.Equal(t, exitcode.Success, res.code, res.stderr)

	page, err := os.ReadFile(out)
	require.NoError(t, err)
	html := string(page)
	assert.Contains(t, html, "<title>NPM Audit Report - storefront</title>")
	assert.Contains(t, html, "Shop front")
	assert.Contains(t, res.stderr, "report written")
	assert.Contains(t, res.stderr, "Prototype Pollution")
}

func TestReport_FormatFromExtension(t *testing.T) {
	out := filepath.Join(t.TempDir(), "audit.json")
	res := runCLI(t, readFixture(t, "scenario.json"), "report", "-o", out, "-q")
	require.Equal(t, exitcode.Success, res.code, res.stderr)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.NotEmpty(t, doc["id"])
}

func TestReport_ErrorPage(t *testing.T) {
	out := filepath.Join(t.TempDir(), "npm-audit.html")
	res := runCLI(t, readFixture(t, "enolock.json"), "report", "-o", out)
	assert.Equal(t, exitcode.UserError, res.code)
	assert.Contains(t, res.stderr, "ENOLOCK")

	page, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(page), "NPM Audit Report Failed")
}

func TestReport_ErrorPageForNpmWarning(t *testing.T) {
	out := filepath.Join(t.TempDir(), "npm-audit.html")
	warning := "npm WARN config global `--global`, `--local` are deprecated. Use `--location=global` instead.\n"
	res := runCLI(t, warning, "report", "-o", out)
	assert.Equal(t, exitcode.UserError, res.code)

	page, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(page), "npm-windows-upgrade --npm-version latest")
}

func TestReport_WithPolicy(t *testing.T) {
	res := runCLI(t, readFixture(t, "scenario.json"), "report", "-format", "csv", "-policy", "standard")
	assert.Equal(t, exitcode.PolicyFailed, res.code)
	assert.Contains(t, res.stdout, "minimist")
	assert.Contains(t, res.stderr, "standard: failed")
}

func TestReport_Errors(t *testing.T) {
	scenario := readFixture(t, "scenario.json")
	tests := []struct {
		name   string
		stdin  string
		args   []string
		want   exitcode.Code
		stderr string
	}{
		{"empty input", "", []string{"report"}, exitcode.UserError, "empty input"},
		{"not json", "found 0 vulnerabilities", []string{"report"}, exitcode.UserError, "invalid json"},
		{"missing file", "", []string{"report", "-i", "does-not-exist.json"}, exitcode.UserError, "cannot read audit input"},
		{"unknown format", scenario, []string{"report", "-format", "docx"}, exitcode.UserError, "docx"},
		{"bad sort", scenario, []string{"report", "-sort", "name"}, exitcode.UserError, "invalid"},
		{"unknown policy", scenario, []string{"report", "-policy", "lenient"}, exitcode.UserError, "lenient"},
		{"bad flag", scenario, []string{"report", "-frobnicate"}, exitcode.UserError, "frobnicate"},
		{"stray argument", scenario, []string{"report", "extra"}, exitcode.UserError, "unexpected arguments"},
		{"bad min severity", scenario, []string{"report", "-min-severity", "severe"}, exitcode.UserError, "severe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, tt.stdin, tt.args...)
			assert.Equal(t, tt.want, res.code)
			assert.Contains(t, res.stderr, tt.stderr)
		})
	}
}

func TestReport_Help(t *testing.T) {
	res := runCLI(t, "", "report", "-h")
	assert.Equal(t, exitcode.Success, res.code)
	assert.Contains(t, res.stderr, "Usage: auditview report")
}

func TestCheck(t *testing.T) {
	scenario := readFixture(t, "scenario.json")
	tests := []struct {
		policy string
		want   exitcode.Code
	}{
		{"permissive", exitcode.Success},
		{"standard", exitcode.PolicyFailed},
		{"strict", exitcode.PolicyFailed},
	}
	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			res := runCLI(t, scenario, "check", "-policy", tt.policy, "-json")
			assert.Equal(t, tt.want, res.code, res.stderr)

			var verdict checkResult
			require.NoError(t, json.Unmarshal([]byte(res.stdout), &verdict))
			assert.Equal(t, tt.policy, verdict.Policy)
			assert.Equal(t, tt.want == exitcode.Success, verdict.Pass)
			assert.Equal(t, 2, verdict.Packages)
			assert.Equal(t, "critical", verdict.Highest)
			assert.NotNil(t, verdict.Failures)
		})
	}
}

func TestCheck_Clean(t *testing.T) {
	res := runCLI(t, readFixture(t, "clean.json"), "check", "-policy", "strict")
	assert.Equal(t, exitcode.Success, res.code, res.stderr)
	assert.Contains(t, res.stdout, "No vulnerabilities found")
	assert.Contains(t, res.stdout, "strict: passed")
}

func TestCheck_Project(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"),
		[]byte(`{"name":"storefront","version":"2.7.1"}`), 0o644))

	res := runCLI(t, readFixture(t, "scenario.json"), "check", "-project", dir, "-policy", "permissive")
	assert.Equal(t, exitcode.UserError, res.code)
	assert.Contains(t, res.stderr, "npm install")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "package-lock.json"), []byte(`{}`), 0o644))
	res = runCLI(t, readFixture(t, "scenario.json"), "check", "-project", dir, "-policy", "permissive")
	assert.Equal(t, exitcode.Success, res.code, res.stderr)
	assert.Contains(t, res.stdout, "storefront 2.7.1")
}

func TestCheck_Baseline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.json")
	scenario := readFixture(t, "scenario.json")

	res := runCLI(t, readFixture(t, "clean.json"), "check", "-policy", "", "-save-baseline", path, "-q")
	require.Equal(t, exitcode.Success, res.code, res.stderr)
	require.FileExists(t, path)

	res = runCLI(t, scenario, "check", "-policy", "", "-baseline", path)
	assert.Equal(t, exitcode.PolicyFailed, res.code)
	assert.Contains(t, res.stdout, "baseline: failed")
	assert.Contains(t, res.stdout, "new critical vulnerability in minimist")

	res = runCLI(t, scenario, "check", "-policy", "", "-save-baseline", path, "-q")
	require.Equal(t, exitcode.Success, res.code, res.stderr)

	res = runCLI(t, scenario, "check", "-policy", "permissive", "-baseline", path, "-json")
	assert.Equal(t, exitcode.Success, res.code, res.stderr)
	var verdict checkResult
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &verdict))
	assert.True(t, verdict.Pass)
	require.NotNil(t, verdict.Baseline)
	assert.Len(t, verdict.Baseline.Unchanged, 2)
	assert.Equal(t, "No new vulnerabilities, 2 unchanged", verdict.Baseline.Summary)

	res = runCLI(t, scenario, "check", "-policy", "", "-baseline", filepath.Join(t.TempDir(), "none.json"))
	assert.Equal(t, exitcode.UserError, res.code)
	assert.Contains(t, res.stderr, "baseline file not found")

	res = runCLI(t, scenario, "check", "-policy", "")
	assert.Equal(t, exitcode.UserError, res.code)
	assert.Contains(t, res.stderr, "nothing to check")
}

func TestResolveFormat(t *testing.T) {
	t.Parallel()

	tc := report.DefaultTemplateConfig()
	markdownDefault := report.DefaultTemplateConfig()
	markdownDefault.Export.DefaultFormat = "markdown"

	tests := []struct {
		name string
		flag string
		out  string
		tc   *report.TemplateConfig
		want string
	}{
		{"flag wins", "JSON", "report.html", tc, "json"},
		{"html extension", "", "out/report.htm", tc, "html"},
		{"markdown extension", "", "REPORT.MD", tc, "markdown"},
		{"pdf extension", "", "report.pdf", tc, "pdf"},
		{"csv extension", "", "report.csv", tc, "csv"},
		{"config default", "", "", markdownDefault, "markdown"},
		{"unknown extension", "", "report.txt", tc, "html"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, resolveFormat(tt.flag, tt.out, tt.tc))
		})
	}
}

func TestNewLogger_QuietWins(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := newLogger(&buf, true, true)
	logger.Info("hidden")
	logger.Debug("hidden")
	logger.Error("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
