package writers

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/auditview/auditview/pkg/audit"
	"github.com/auditview/auditview/pkg/defaults"
	"github.com/auditview/auditview/pkg/finding"
	"github.com/auditview/auditview/pkg/report"
)

// Compile-time interface check.
var _ Writer = (*MarkdownWriter)(nil)

// MarkdownConfig configures the Markdown report writer.
type MarkdownConfig struct {
	// Title overrides the document title.
	Title string

	// Flavor sets the Markdown flavor: "github", "gitlab", or "standard" (default: "github")
	Flavor string

	// NoEmojis drops severity emojis from tables and bars.
	NoEmojis bool

	// MaxTitleLen truncates advisory titles in the summary table (default: 80)
	MaxTitleLen int
}

// MarkdownWriter writes the report as GitHub-flavored Markdown, suitable for
// pull request comments and job summaries.
type MarkdownWriter struct {
	config MarkdownConfig
}

// NewMarkdownWriter creates a Markdown writer.
func NewMarkdownWriter(config MarkdownConfig) *MarkdownWriter {
	if config.Flavor == "" {
		config.Flavor = "github"
	}
	if config.MaxTitleLen == 0 {
		config.MaxTitleLen = 80
	}
	return &MarkdownWriter{config: config}
}

func (mw *MarkdownWriter) Write(_ context.Context, w io.Writer, doc *report.Document) error {
	var sb strings.Builder
	mw.renderMarkdown(&sb, doc)
	_, err := io.WriteString(w, sb.String())
	return err
}

func (mw *MarkdownWriter) Format() string      { return "markdown" }
func (mw *MarkdownWriter) ContentType() string { return defaults.ContentTypeMarkdown }
func (mw *MarkdownWriter) Extension() string   { return ".md" }

// severityEmoji returns the circle emoji for a severity level.
func severityEmoji(s finding.Severity) string {
	switch s {
	case finding.Critical:
		return "\U0001F534"
	case finding.High:
		return "\U0001F7E0"
	case finding.Moderate:
		return "\U0001F7E1"
	case finding.Low:
		return "\U0001F7E2"
	case finding.Info:
		return "\U0001F535"
	}
	return "⚪"
}

func (mw *MarkdownWriter) severityCell(s finding.Severity) string {
	label := s.Label()
	if label == "" {
		label = "Unknown"
	}
	if mw.config.NoEmojis {
		return label
	}
	return severityEmoji(s) + " " + label
}

func (mw *MarkdownWriter) supportsCollapsible() bool {
	return mw.config.Flavor == "github" || mw.config.Flavor == "gitlab"
}

func (mw *MarkdownWriter) renderMarkdown(sb *strings.Builder, doc *report.Document) {
	title := doc.Title
	if mw.config.Title != "" {
		title = mw.config.Title
	}
	fmt.Fprintf(sb, "# %s\n\n", title)

	if doc.App != nil {
		renderAppHeader(sb, doc.App)
	}

	mw.renderSummary(sb, doc)

	if doc.Clean {
		sb.WriteString("**Great! No vulnerabilities found.**\n\n")
		mw.renderFooter(sb, doc)
		return
	}

	mw.renderTable(sb, doc.Vulnerabilities)
	mw.renderDetails(sb, doc.Vulnerabilities)

	sb.WriteString("---\n\n")
	for _, fn := range doc.Footnotes {
		fmt.Fprintf(sb, "- **%s**: %s\n", fn.Term, fn.Text)
	}
	sb.WriteString("\n")
	mw.renderFooter(sb, doc)
}

func renderAppHeader(sb *strings.Builder, app *report.AppMeta) {
	sb.WriteString("| Application | Version | Dependencies |\n")
	sb.WriteString("|-------------|---------|--------------|\n")
	fmt.Fprintf(sb, "| %s | %s | %d |\n\n", escapeCell(app.Name), escapeCell(app.Version), app.TotalDependencies)
	if app.Description != "" {
		fmt.Fprintf(sb, "> %s\n\n", strings.ReplaceAll(app.Description, "\n", " "))
	}
}

func (mw *MarkdownWriter) renderSummary(sb *strings.Builder, doc *report.Document) {
	c := doc.Counts
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	fmt.Fprintf(sb, "| Vulnerabilities | %d |\n", c.TotalVulnerabilities)
	fmt.Fprintf(sb, "| Vulnerable packages | %d |\n", c.Listed)
	fmt.Fprintf(sb, "| Direct / indirect | %d / %d |\n", c.Direct, c.Indirect)
	fmt.Fprintf(sb, "| Fixable with `npm audit fix` | %d |\n", c.AutoFix)
	fmt.Fprintf(sb, "| Needs `--force` | %d (%d breaking) |\n", c.ObjectFix, c.Breaking)
	fmt.Fprintf(sb, "| No fix | %d |\n", c.NoFix)
	if c.AnomalousFix > 0 {
		fmt.Fprintf(sb, "| Fix unknown | %d |\n", c.AnomalousFix)
	}
	fmt.Fprintf(sb, "| Dependencies | %d (%d used) |\n\n", c.TotalDependencies, c.PackagesUsed)

	sb.WriteString(mw.renderSeverityBar(c.Severity))
	sb.WriteString("\n")
}

// renderSeverityBar draws the vulnerability chart as text bars.
func (mw *MarkdownWriter) renderSeverityBar(chart audit.Chart) string {
	if chart.Total == 0 {
		return "*No findings*\n"
	}

	sb := &strings.Builder{}
	sb.WriteString("```\n")
	const maxBarLen = 20
	for _, s := range chart.Slices {
		if s.Value == 0 {
			continue
		}
		pct := float64(s.Value) / float64(chart.Total) * 100
		barLen := int(float64(s.Value) / float64(chart.Total) * maxBarLen)
		if barLen == 0 {
			barLen = 1
		}
		barLen = min(barLen, maxBarLen)
		bar := strings.Repeat("█", barLen) + strings.Repeat("░", maxBarLen-barLen)
		emoji := ""
		if !mw.config.NoEmojis {
			emoji = severityEmoji(finding.Severity(s.Key)) + " "
		}
		fmt.Fprintf(sb, "%s%-8s %s %d (%.0f%%)\n", emoji, finding.Severity(s.Key).Label(), bar, s.Value, pct)
	}
	sb.WriteString("```\n")
	return sb.String()
}

func (mw *MarkdownWriter) renderTable(sb *strings.Builder, list []audit.Vulnerability) {
	listed := make(map[string]bool, len(list))
	for _, v := range list {
		listed[v.Name] = true
	}

	sb.WriteString("## Vulnerabilities\n\n")
	sb.WriteString("| Package | Severity | Issues | Vulnerability | Fix Available |\n")
	sb.WriteString("|---------|----------|--------|---------------|---------------|\n")
	for _, v := range list {
		fmt.Fprintf(sb, "| [%s](#%s) | %s | %s | %s | %s |\n",
			escapeCell(v.Name),
			report.Anchor(v.Name),
			mw.severityCell(v.Severity),
			report.AdvisoryCount(v.Via),
			mw.vulnerabilityCell(v, listed),
			report.Badge(v.FixAvailable).Label,
		)
	}
	sb.WriteString("\n")
}

func (mw *MarkdownWriter) vulnerabilityCell(v audit.Vulnerability, listed map[string]bool) string {
	var parts []string
	if advs := audit.UniqueAdvisories(v); len(advs) > 0 {
		lead := escapeCell(truncateString(advs[0].Title, mw.config.MaxTitleLen))
		if advs[0].URL != "" {
			lead = fmt.Sprintf("[%s](%s)", lead, advs[0].URL)
		}
		if more := len(advs) - 1; more > 0 {
			lead += fmt.Sprintf(" and %d more", more)
		}
		parts = append(parts, lead)
	}
	if names := audit.UniqueTransitive(v); len(names) > 0 {
		refs := make([]string, len(names))
		for i, name := range names {
			refs[i] = mdRef(name, listed[name])
		}
		parts = append(parts, "Depends on vulnerable versions of "+strings.Join(refs, ", "))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "<br>")
}

func (mw *MarkdownWriter) renderDetails(sb *strings.Builder, list []audit.Vulnerability) {
	listed := make(map[string]bool, len(list))
	for _, v := range list {
		listed[v.Name] = true
	}

	sb.WriteString("## Details\n\n")
	for _, v := range list {
		fmt.Fprintf(sb, "### <a id=\"%s\"></a>%s\n\n", report.Anchor(v.Name), v.Name)
		fmt.Fprintf(sb, "**Severity:** %s &middot; **Range:** `%s` &middot; [npm](%s)\n\n",
			mw.severityCell(v.Severity), v.Range, report.NpmURL(v.Name))

		fix := report.Detail(v.FixAvailable)
		fmt.Fprintf(sb, "**Fix:** %s\n", fix.Summary)
		if fix.Install != "" {
			fmt.Fprintf(sb, "Will install **%s**", fix.Install)
			if fix.Breaking {
				sb.WriteString(", which is a breaking change")
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")

		if !v.Via.Sequence {
			sb.WriteString("*Advisory details unavailable*\n\n")
			continue
		}
		if mw.supportsCollapsible() && v.Via.Len() > 3 {
			fmt.Fprintf(sb, "<details>\n<summary>%d entries</summary>\n\n", v.Via.Len())
			mw.renderVia(sb, v, listed)
			sb.WriteString("</details>\n\n")
			continue
		}
		mw.renderVia(sb, v, listed)
	}
}

func (mw *MarkdownWriter) renderVia(sb *strings.Builder, v audit.Vulnerability, listed map[string]bool) {
	for _, e := range v.Via.Entries {
		switch {
		case audit.IsTransitiveName(e):
			fmt.Fprintf(sb, "- Depends on vulnerable versions of %s\n", mdRef(e.Package, listed[e.Package]))
		case audit.IsAdvisory(e):
			a := e.Advisory
			line := fmt.Sprintf("- %s **%s**", mw.severityCell(a.Severity), a.Title)
			if score := report.FormatScore(a.Score()); score != "" {
				line += " (score " + score + ")"
			}
			if a.Range != "" {
				line += fmt.Sprintf(" `%s`", a.Range)
			}
			if cwes := report.CWEs(a.CWE); len(cwes) > 0 {
				links := make([]string, len(cwes))
				for i, c := range cwes {
					links[i] = fmt.Sprintf("[%s](%s)", c.Label(), c.URL)
				}
				line += " " + strings.Join(links, report.CWESeparator)
			}
			if a.URL != "" {
				line += fmt.Sprintf(" [%s](%s)", report.AdvisoryID(a.URL), a.URL)
			}
			sb.WriteString(line + "\n")
		default:
			sb.WriteString("- Advisory details unavailable\n")
		}
	}
	sb.WriteString("\n")
}

func (mw *MarkdownWriter) renderFooter(sb *strings.Builder, doc *report.Document) {
	fmt.Fprintf(sb, "*Generated by %s %s*\n", doc.ToolName, doc.ToolVersion)
}

// mdRef links a package to its detail anchor, or renders it as inline code
// when the package is not listed.
func mdRef(name string, linked bool) string {
	if !linked {
		return "`" + name + "`"
	}
	return fmt.Sprintf("[%s](#%s)", escapeCell(name), report.Anchor(name))
}

// escapeCell keeps text from breaking a table row.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if maxLen <= 0 || len(runes) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
