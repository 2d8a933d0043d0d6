package ui

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/auditview/auditview/pkg/audit"
	"github.com/auditview/auditview/pkg/finding"
	"github.com/auditview/auditview/pkg/output/policy"
	"github.com/auditview/auditview/pkg/report"
)

// MaxSummaryRows caps the package table; the rest is counted.
const MaxSummaryRows = 20

const barWidth = 20

// PrintSummary writes the console summary of a document: severity bars,
// fix counts and a table of the most severe packages.
func PrintSummary(w io.Writer, doc *report.Document) {
	if IsSilent() {
		return
	}
	fmt.Fprintln(w, TitleStyle.Render(doc.Title))
	if doc.App != nil && doc.App.Version != "" {
		fmt.Fprintln(w, SubtitleStyle.Render(doc.App.Name+" "+doc.App.Version))
	}

	c := doc.Counts
	fmt.Fprintln(w)
	stat(w, "Vulnerabilities", fmt.Sprintf("%d in %d packages", c.TotalVulnerabilities, c.Listed))
	stat(w, "Direct / indirect", fmt.Sprintf("%d / %d", c.Direct, c.Indirect))
	stat(w, "Dependencies", strconv.Itoa(c.TotalDependencies))

	if doc.Clean {
		fmt.Fprintln(w)
		fmt.Fprintln(w, PassStyle.Render(SanitizeString("✔ ")+"Great! No vulnerabilities found."))
		return
	}

	fmt.Fprintln(w, SectionStyle.Render("Severity"))
	fmt.Fprint(w, severityBars(c.Severity))

	fmt.Fprintln(w, SectionStyle.Render("Fixes"))
	stat(w, "npm audit fix", strconv.Itoa(c.AutoFix))
	stat(w, "npm audit fix --force", fmt.Sprintf("%d (%d breaking)", c.ObjectFix, c.Breaking))
	stat(w, "No fix", strconv.Itoa(c.NoFix))
	if c.AnomalousFix > 0 {
		stat(w, "Fix unknown", strconv.Itoa(c.AnomalousFix))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, packageTable(doc.Vulnerabilities))
	if more := len(doc.Vulnerabilities) - MaxSummaryRows; more > 0 {
		fmt.Fprintln(w, MutedStyle.Render(fmt.Sprintf("... and %d more", more)))
	}
}

func stat(w io.Writer, label, value string) {
	fmt.Fprintln(w, "  "+StatLabelStyle.Render(label)+StatValueStyle.Render(value))
}

// severityBars renders one bar per non-zero severity, scaled to the total.
func severityBars(chart audit.Chart) string {
	full, empty := barGlyphs()
	var b strings.Builder
	for _, s := range chart.Slices {
		if s.Value == 0 {
			continue
		}
		filled := 0
		if chart.Total > 0 {
			filled = s.Value * barWidth / chart.Total
		}
		if filled == 0 {
			filled = 1
		}
		sev := finding.Severity(s.Key)
		bar := SeverityStyle(sev).Render(strings.Repeat(full, filled)) +
			MutedStyle.Render(strings.Repeat(empty, barWidth-filled))
		fmt.Fprintf(&b, "  %-9s %s %d\n", s.Label, bar, s.Value)
	}
	return b.String()
}

// packageTable lists up to MaxSummaryRows packages in document order.
func packageTable(list []audit.Vulnerability) string {
	if len(list) > MaxSummaryRows {
		list = list[:MaxSummaryRows]
	}
	rows := make([][]string, 0, len(list))
	sevs := make([]finding.Severity, 0, len(list))
	for _, v := range list {
		rows = append(rows, []string{
			v.Name,
			v.Severity.Label(),
			report.AdvisoryCount(v.Via),
			issueText(v),
			report.Badge(v.FixAvailable).Label,
		})
		sevs = append(sevs, v.Severity)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(MutedStyle).
		Headers("Package", "Severity", "Issues", "Vulnerability", "Fix").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return base.Bold(true)
			}
			if col == 1 && row >= 0 && row < len(sevs) {
				return base.Inherit(SeverityStyle(sevs[row]))
			}
			return base
		})
	return t.String()
}

// issueText is the first advisory title, or the packages this one depends
// on, truncated for the terminal.
func issueText(v audit.Vulnerability) string {
	if advs := audit.UniqueAdvisories(v); len(advs) > 0 {
		text := advs[0].Title
		if len(advs) > 1 {
			text += fmt.Sprintf(" (+%d)", len(advs)-1)
		}
		return truncate(text, 48)
	}
	if deps := audit.UniqueTransitive(v); len(deps) > 0 {
		return truncate("via "+strings.Join(deps, ", "), 48)
	}
	return "-"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// PrintGate writes the policy verdict and its failures.
func PrintGate(w io.Writer, res policy.Result) {
	if IsSilent() {
		return
	}
	name := res.PolicyName
	if name == "" {
		name = "policy"
	}
	if res.Pass {
		fmt.Fprintln(w, PassStyle.Render(SanitizeString("✔ ")+name+": passed"))
	} else {
		fmt.Fprintln(w, FailStyle.Render(SanitizeString("✘ ")+name+": failed"))
		for _, f := range res.Failures {
			fmt.Fprintln(w, "  - "+f)
		}
	}
	if res.Summary.Ignored > 0 {
		fmt.Fprintln(w, MutedStyle.Render(fmt.Sprintf("  %d packages ignored by policy", res.Summary.Ignored)))
	}
}
