package report

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/auditview/auditview/pkg/audit"
	"github.com/auditview/auditview/pkg/finding"
)

// Public reference locations linked from the report.
const (
	NpmPackageBase   = "https://www.npmjs.com/package/"
	CWEDefinitionURL = "https://cwe.mitre.org/data/definitions/%s.html"
	GHSABase         = "https://github.com/advisories/"
)

// Legend texts shown as footnotes under the detail view.
const (
	ScoreLegend = "This score calculates overall vulnerability severity from 0 to 10 and is based on the Common Vulnerability Scoring System (CVSS)."
	CWELegend   = "The Common Weakness Enumeration (CWE) is a list of weaknesses in software that can lead to security issues."
	GHSALegend  = "GHSA is the GitHub Security Advisories database. GHSA ID is the identifier of the advisory for any given vulnerability."
)

// CWESeparator joins CWE links.
const CWESeparator = " | "

// CWE is one formatted weakness reference.
type CWE struct {
	ID  string // numeric part, "1321"
	URL string
}

// Label returns "CWE-<id>".
func (c CWE) Label() string {
	return "CWE-" + c.ID
}

// CWEs strips the "CWE-" prefix from each identifier and pairs it with its
// definition page. Blank identifiers are skipped; nil input yields nil.
func CWEs(ids []string) []CWE {
	var out []CWE
	for _, raw := range ids {
		id := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "CWE-"))
		if id == "" {
			continue
		}
		out = append(out, CWE{ID: id, URL: fmt.Sprintf(CWEDefinitionURL, url.PathEscape(id))})
	}
	return out
}

// AdvisoryID shortens a GitHub advisory URL to its GHSA identifier. Other
// URLs are returned unchanged.
func AdvisoryID(advisoryURL string) string {
	return strings.TrimPrefix(advisoryURL, GHSABase)
}

// FormatScore renders a CVSS score without trailing zeros ("9.8", "10").
// It returns "" for scores that should not be shown.
func FormatScore(score float64) string {
	if score <= 0 {
		return ""
	}
	return strconv.FormatFloat(score, 'f', -1, 64)
}

// NpmURL returns the registry page of a package.
func NpmURL(name string) string {
	return NpmPackageBase + name
}

// Anchor returns the in-page id for a package. It is injective over
// package names, so scoped names like "@babel/core" cannot collide with
// their unscoped look-alikes.
func Anchor(name string) string {
	return "pkg-" + url.PathEscape(name)
}

// SeverityClass returns the CSS class suffix for a severity, "unknown" for
// labels outside the scale.
func SeverityClass(s finding.Severity) string {
	if !s.IsValid() {
		return "unknown"
	}
	return string(s)
}

// FixBadge is the summary-table rendering of fixAvailable.
type FixBadge struct {
	Label string // Yes, No, Breaking, Unknown
	Class string // fix-green, fix-red, fix-yellow, fix-grey
}

// Badge classifies fixAvailable for the summary table.
func Badge(f audit.FixAvailable) FixBadge {
	switch {
	case audit.IsBooleanFix(f) && f.Kind == audit.FixAuto:
		return FixBadge{Label: "Yes", Class: "fix-green"}
	case audit.IsBooleanFix(f):
		return FixBadge{Label: "No", Class: "fix-red"}
	case audit.IsObjectFix(f):
		return FixBadge{Label: "Breaking", Class: "fix-yellow"}
	}
	return FixBadge{Label: "Unknown", Class: "fix-grey"}
}

// FixDetail is the detail-view rendering of fixAvailable.
type FixDetail struct {
	Summary  string // "fix available via `npm audit fix`"
	Install  string // "name@version", upgrades only
	Breaking bool
}

// Detail describes how to apply the fix.
func Detail(f audit.FixAvailable) FixDetail {
	switch f.Kind {
	case audit.FixAuto:
		return FixDetail{Summary: "fix available via `npm audit fix`"}
	case audit.FixNone:
		return FixDetail{Summary: "No fix available"}
	case audit.FixUpgrade:
		d := FixDetail{Summary: "fix available via `npm audit fix --force`", Breaking: f.IsSemVerMajor}
		if f.Name != "" {
			d.Install = f.Name + "@" + f.Version
		}
		return d
	}
	return FixDetail{Summary: "Fix availability unknown"}
}

// AdvisoryCount is the summary "Issues" cell: the via length, or "-" when
// via was not a list.
func AdvisoryCount(v audit.Via) string {
	if !v.Sequence {
		return "-"
	}
	return strconv.Itoa(v.Len())
}
