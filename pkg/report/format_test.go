package report

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/auditview/auditview/pkg/audit"
	"github.com/auditview/auditview/pkg/finding"
)

func TestCWEs(t *testing.T) {
	t.Parallel()

	got := CWEs([]string{"CWE-1321", "CWE-400", " ", "79"})
	assert.Equal(t, []CWE{
		{ID: "1321", URL: "https://cwe.mitre.org/data/definitions/1321.html"},
		{ID: "400", URL: "https://cwe.mitre.org/data/definitions/400.html"},
		{ID: "79", URL: "https://cwe.mitre.org/data/definitions/79.html"},
	}, got)
	assert.Equal(t, "CWE-1321", got[0].Label())

	assert.Empty(t, CWEs(nil))
	assert.Empty(t, CWEs([]string{}))
}

func TestAdvisoryID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "GHSA-xvch-5gv4-984h", AdvisoryID("https://github.com/advisories/GHSA-xvch-5gv4-984h"))
	assert.Equal(t, "https://x", AdvisoryID("https://x"))
	assert.Equal(t, "", AdvisoryID(""))
}

func TestFormatScore(t *testing.T) {
	t.Parallel()

	tests := map[float64]string{
		9.8:  "9.8",
		10:   "10",
		5.30: "5.3",
		0:    "",
		-1:   "",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatScore(in), "FormatScore(%v)", in)
	}
}

func TestBadge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		fix  audit.FixAvailable
		want FixBadge
	}{
		{audit.FixAvailable{Kind: audit.FixAuto}, FixBadge{"Yes", "fix-green"}},
		{audit.FixAvailable{Kind: audit.FixNone}, FixBadge{"No", "fix-red"}},
		{audit.FixAvailable{Kind: audit.FixUpgrade, Name: "a", Version: "2.0.0"}, FixBadge{"Breaking", "fix-yellow"}},
		{audit.FixAvailable{}, FixBadge{"Unknown", "fix-grey"}},
	}
	for _, tt := range tests {
		t.Run(tt.fix.Kind.String(), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Badge(tt.fix))
		})
	}
}

func TestDetail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "fix available via `npm audit fix`", Detail(audit.FixAvailable{Kind: audit.FixAuto}).Summary)
	assert.Equal(t, "No fix available", Detail(audit.FixAvailable{Kind: audit.FixNone}).Summary)

	d := Detail(audit.FixAvailable{Kind: audit.FixUpgrade, Name: "mocha", Version: "10.2.0", IsSemVerMajor: true})
	assert.Equal(t, "fix available via `npm audit fix --force`", d.Summary)
	assert.Equal(t, "mocha@10.2.0", d.Install)
	assert.True(t, d.Breaking)

	assert.Empty(t, Detail(audit.FixAvailable{}).Install)
}

func TestAdvisoryCount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "-", AdvisoryCount(audit.Via{}))
	assert.Equal(t, "0", AdvisoryCount(audit.Via{Sequence: true}))
	assert.Equal(t, "2", AdvisoryCount(audit.Via{Sequence: true, Entries: make([]audit.ViaEntry, 2)}))
}

func TestAnchorIsInjective(t *testing.T) {
	t.Parallel()

	names := []string{"@babel/core", "babel/core", "@babel-core", "babel-core", "lodash", "lodash.merge"}
	seen := make(map[string]string)
	for _, n := range names {
		a := Anchor(n)
		if prev, ok := seen[a]; ok {
			t.Errorf("Anchor(%q) == Anchor(%q) == %q", n, prev, a)
		}
		seen[a] = n
	}
	assert.Equal(t, "pkg-lodash", Anchor("lodash"))
}

func TestSeverityClass(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "critical", SeverityClass(finding.Critical))
	assert.Equal(t, "unknown", SeverityClass(""))
	assert.Equal(t, "unknown", SeverityClass("urgent"))
}
