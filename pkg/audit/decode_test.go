package audit

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditview/auditview/pkg/finding"
	"github.com/auditview/auditview/pkg/jsonutil"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func parseFixture(t *testing.T, name string) *Report {
	t.Helper()
	r, err := Parse(loadFixture(t, name))
	require.NoError(t, err)
	return r
}

func names(list []Vulnerability) []string {
	out := make([]string, len(list))
	for i, v := range list {
		out[i] = v.Name
	}
	return out
}

func TestParseScenario(t *testing.T) {
	t.Parallel()

	r := parseFixture(t, "scenario.json")
	assert.Equal(t, 2, r.AuditReportVersion)
	require.Len(t, r.Vulnerabilities, 2)
	assert.Equal(t, []string{"lodash", "minimist"}, names(r.Vulnerabilities))

	lodash := r.Vulnerabilities[0]
	assert.Equal(t, finding.High, lodash.Severity)
	assert.True(t, lodash.IsDirect)
	assert.Equal(t, FixAuto, lodash.FixAvailable.Kind)
	require.True(t, lodash.Via.Sequence)
	require.Len(t, lodash.Via.Entries, 1)
	assert.Equal(t, ViaEntry{Kind: ViaTransitive, Package: "minimist"}, lodash.Via.Entries[0])

	minimist := r.Vulnerabilities[1]
	assert.Equal(t, FixNone, minimist.FixAvailable.Kind)
	require.Len(t, minimist.Via.Entries, 1)
	adv := minimist.Via.Entries[0].Advisory
	require.NotNil(t, adv)
	assert.Equal(t, "Prototype Pollution", adv.Title)
	assert.Equal(t, []string{"CWE-1321"}, adv.CWE)
	assert.InDelta(t, 9.8, adv.Score(), 1e-9)
	assert.Equal(t, "<1.2.6", adv.Range)

	assert.Equal(t, 1, r.Metadata.Vulnerabilities.Critical)
	assert.Equal(t, 44, r.Metadata.Dependencies.Total)
}

func TestParseKeepsDocumentOrder(t *testing.T) {
	t.Parallel()

	r := parseFixture(t, "mixed.json")
	assert.Equal(t,
		[]string{"zeta-info", "alpha-moderate", "mid-low", "beta-high", "gamma-moderate"},
		names(r.Vulnerabilities))
}

func TestParseDegradesMalformedFields(t *testing.T) {
	t.Parallel()

	r := parseFixture(t, "mixed.json")
	byName := make(map[string]Vulnerability)
	for _, v := range r.Vulnerabilities {
		byName[v.Name] = v
	}

	zeta := byName["zeta-info"]
	assert.Equal(t, FixUnknown, zeta.FixAvailable.Kind, "string fixAvailable")
	assert.False(t, zeta.Via.Sequence, "string via")
	assert.Equal(t, "*", zeta.Range)

	alpha := byName["alpha-moderate"]
	require.Len(t, alpha.Via.Entries, 4)
	assert.Equal(t, ViaAdvisory, alpha.Via.Entries[0].Kind)
	assert.Equal(t, ViaAdvisory, alpha.Via.Entries[1].Kind)
	assert.Equal(t, ViaMalformed, alpha.Via.Entries[2].Kind, "number entry")
	assert.Equal(t, ViaMalformed, alpha.Via.Entries[3].Kind, "title of wrong type")
	assert.Equal(t, FixAvailable{Kind: FixUpgrade, Name: "alpha-moderate", Version: "3.0.0", IsSemVerMajor: true}, alpha.FixAvailable)
	assert.Zero(t, alpha.Via.Entries[0].Advisory.Score())

	beta := byName["beta-high"]
	assert.False(t, beta.IsDirect, "non-boolean isDirect degrades to false")
	assert.Equal(t, FixUnknown, beta.FixAvailable.Kind, "absent fixAvailable")
	assert.True(t, beta.Via.Sequence)
	assert.Zero(t, beta.Via.Len())
	assert.Equal(t, finding.High, beta.Severity)
}

func TestParseEmptyMapping(t *testing.T) {
	t.Parallel()

	r := parseFixture(t, "clean.json")
	assert.NotNil(t, r.Vulnerabilities)
	assert.Empty(t, r.Vulnerabilities)
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty input", ``, ErrInvalidJSON},
		{"array root", `[]`, ErrInvalidJSON},
		{"truncated", `{"vulnerabilities": {`, ErrInvalidJSON},
		{"no vulnerabilities", `{"metadata": {}}`, ErrMissingVulnerabilities},
		{"null vulnerabilities", `{"vulnerabilities": null, "metadata": {}}`, ErrMissingVulnerabilities},
		{"array vulnerabilities", `{"vulnerabilities": [], "metadata": {}}`, ErrMissingVulnerabilities},
		{"no metadata", `{"vulnerabilities": {}}`, ErrMissingMetadata},
		{"string metadata", `{"vulnerabilities": {}, "metadata": "x"}`, ErrMissingMetadata},
		{"bad counters", `{"vulnerabilities": {}, "metadata": {"vulnerabilities": {"high": "two"}}}`, ErrMissingMetadata},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.input))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseToolError(t *testing.T) {
	t.Parallel()

	_, err := Parse(loadFixture(t, "enolock.json"))
	require.ErrorIs(t, err, ErrAuditFailed)

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "ENOLOCK", toolErr.Code)
	assert.Contains(t, err.Error(), "requires an existing lockfile")
}

func TestParseKeepsPlainTextExcerpt(t *testing.T) {
	t.Parallel()

	warning := "npm WARN config global `--global`, `--local` are deprecated. Use `--location=global` instead.\n"
	_, err := Parse([]byte(warning))
	require.ErrorIs(t, err, ErrInvalidJSON)

	var syntaxErr *SyntaxError
	require.True(t, errors.As(err, &syntaxErr))
	assert.Equal(t, strings.TrimSpace(warning), syntaxErr.Excerpt)
	assert.Contains(t, err.Error(), "npm WARN config global")

	_, err = Parse([]byte(strings.Repeat("x", 4*maxExcerpt)))
	require.True(t, errors.As(err, &syntaxErr))
	assert.Len(t, syntaxErr.Excerpt, maxExcerpt)

	_, err = Parse(nil)
	assert.EqualError(t, err, ErrInvalidJSON.Error())
}

func TestParseReaderLimit(t *testing.T) {
	t.Parallel()

	data := loadFixture(t, "scenario.json")

	_, err := ParseReader(bytes.NewReader(data), WithMaxBytes(16))
	assert.ErrorIs(t, err, ErrTooLarge)

	r, err := ParseReader(bytes.NewReader(data), WithMaxBytes(int64(len(data))))
	require.NoError(t, err)
	assert.Len(t, r.Vulnerabilities, 2)
}

func TestParseLogsAnomalies(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := Parse(loadFixture(t, "mixed.json"), WithLogger(logger))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "package=zeta-info")
	assert.Contains(t, out, "malformed via entry")
	assert.Contains(t, out, "field=isDirect")
	assert.Equal(t, 2, strings.Count(out, "fixAvailable is neither boolean"))
}

func TestVariantsMarshalBackToNpmShape(t *testing.T) {
	t.Parallel()

	r := parseFixture(t, "mixed.json")
	data, err := jsonutil.Marshal(r.Vulnerabilities[1])
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"fixAvailable":{"name":"alpha-moderate","version":"3.0.0","isSemVerMajor":true}`)
	assert.Contains(t, s, `null,null]`)

	data, err = jsonutil.Marshal(r.Vulnerabilities[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"fixAvailable":null`)
	assert.Contains(t, string(data), `"via":null`)
}
