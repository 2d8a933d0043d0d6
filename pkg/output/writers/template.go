package writers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/auditview/auditview/pkg/audit"
	"github.com/auditview/auditview/pkg/finding"
	"github.com/auditview/auditview/pkg/report"
	"github.com/auditview/auditview/pkg/templateresolver"
)

// Compile-time interface check.
var _ Writer = (*TemplateWriter)(nil)

// DefaultTemplate is the built-in output template used when none is named.
const DefaultTemplate = "summary"

// TemplateConfig configures the template writer.
type TemplateConfig struct {
	// Template is a file path or the short name of a bundled template
	// ("summary", "slack", "junit", "github-annotations").
	Template string

	// Inline is a template string; it wins over Template.
	Inline string

	// Extension names the output file type (default: from Template, else ".txt").
	Extension string
}

// TemplateWriter renders the document through a text/template with Sprig
// and auditview helpers. The template sees the *report.Document as dot.
type TemplateWriter struct {
	tmpl   *template.Template
	source string
	ext    string
}

// NewTemplateWriter parses the template immediately and returns an error
// if it is invalid or cannot be found.
func NewTemplateWriter(config TemplateConfig) (*TemplateWriter, error) {
	text := config.Inline
	source := "inline"
	name := config.Template
	if text == "" {
		if name == "" {
			name = DefaultTemplate
		}
		data, src, err := templateresolver.ReadFile(name, templateresolver.KindOutputFormat)
		if err != nil {
			return nil, err
		}
		text, source = string(data), src
	}

	tmpl, err := template.New("output").Funcs(templateFuncs()).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", source, err)
	}

	ext := config.Extension
	if ext == "" {
		ext = templateExtension(name)
	}
	return &TemplateWriter{tmpl: tmpl, source: source, ext: ext}, nil
}

// templateExtension guesses the output type from names like
// "junit.xml.tmpl" or the bundled short names.
func templateExtension(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), ".tmpl")
	if ext := filepath.Ext(base); ext != "" {
		return ext
	}
	switch base {
	case "junit":
		return ".xml"
	case "slack":
		return ".json"
	}
	return ".txt"
}

func (tw *TemplateWriter) Write(_ context.Context, w io.Writer, doc *report.Document) error {
	var buf bytes.Buffer
	if err := tw.tmpl.Execute(&buf, doc); err != nil {
		return fmt.Errorf("failed to execute template %s: %w", tw.source, err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Source reports where the template was loaded from.
func (tw *TemplateWriter) Source() string { return tw.source }

func (tw *TemplateWriter) Format() string      { return "template" }
func (tw *TemplateWriter) ContentType() string { return "text/plain; charset=utf-8" }
func (tw *TemplateWriter) Extension() string   { return tw.ext }

// templateFuncs layers auditview helpers over Sprig's text functions.
func templateFuncs() template.FuncMap {
	funcs := sprig.TxtFuncMap()
	funcs["severityEmoji"] = func(v any) string { return severityEmoji(toSeverity(v)) }
	funcs["severityLabel"] = func(v any) string { return severityText(toSeverity(v)) }
	funcs["severityRank"] = func(v any) int { return toSeverity(v).Rank() }
	funcs["fixLabel"] = func(f audit.FixAvailable) string { return report.Badge(f).Label }
	funcs["fixDetail"] = func(f audit.FixAvailable) report.FixDetail { return report.Detail(f) }
	funcs["advisories"] = audit.UniqueAdvisories
	funcs["dependsOn"] = audit.UniqueTransitive
	funcs["issues"] = report.AdvisoryCount
	funcs["advisoryID"] = report.AdvisoryID
	funcs["npmURL"] = report.NpmURL
	funcs["anchor"] = report.Anchor
	funcs["score"] = func(a *audit.Advisory) string { return report.FormatScore(a.Score()) }
	funcs["cwes"] = report.CWEs
	funcs["escapeCSV"] = func(s string) string {
		s = sanitizeForCSV(s)
		if strings.ContainsAny(s, ",\"\n\r") {
			return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
		}
		return s
	}
	funcs["escapeXML"] = xmlEscaper.Replace
	return funcs
}

// toSeverity accepts both record severities and chart slice keys.
func toSeverity(v any) finding.Severity {
	switch s := v.(type) {
	case finding.Severity:
		return s
	case string:
		return finding.Severity(s)
	}
	return ""
}

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")
