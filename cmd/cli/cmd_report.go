package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/auditview/auditview/pkg/defaults"
	"github.com/auditview/auditview/pkg/output"
	"github.com/auditview/auditview/pkg/output/events"
	"github.com/auditview/auditview/pkg/output/exitcode"
	"github.com/auditview/auditview/pkg/output/printpdf"
	"github.com/auditview/auditview/pkg/output/writers"
	"github.com/auditview/auditview/pkg/report"
	"github.com/auditview/auditview/pkg/ui"
)

var errInput = fmt.Errorf("%w: cannot read audit input", exitcode.ErrUsage)

// reportFlags are the report-only flags.
type reportFlags struct {
	Output   string
	Format   string
	Policy   string
	Template string
	PageSize string
	Pretty   bool
	Summary  bool
	Browser  string
}

// runReport renders an audit document and optionally gates it.
func runReport(ctx context.Context, args []string, e env) exitcode.Code {
	fs := newFlagSet("report", "Render `npm audit --json` output as a report.", e.stderr)
	var (
		cf CommonFlags
		hf HookFlags
		rf reportFlags
	)
	cf.Register(fs, true)
	hf.Register(fs, true)
	fs.StringVar(&rf.Output, "o", "", "Output file (default: stdout)")
	fs.StringVar(&rf.Format, "format", "", "Output format: "+strings.Join(report.Formats, ", ")+" (default: from -config, else inferred from -o)")
	fs.StringVar(&rf.Policy, "policy", "", "Also gate the audit: permissive, standard, strict or a YAML path")
	fs.StringVar(&rf.Template, "template", "", "Output template for -format template: summary, junit, slack, github-annotations or a .tmpl path")
	fs.StringVar(&rf.PageSize, "page-size", "A4", "PDF page size: A4 or Letter")
	fs.BoolVar(&rf.Pretty, "pretty", true, "Indent JSON output")
	fs.BoolVar(&rf.Summary, "summary", true, "Print a console summary to stderr when writing to a file")
	fs.StringVar(&rf.Browser, "browser", "", "Chrome/Chromium executable for -format browser-pdf (default: auto-detect)")

	m := exitcode.New()
	ok, err := parseFlags(fs, args)
	if !ok {
		m.RecordError(err)
		return finish(e, m)
	}

	logger := cf.Apply(e.stderr)
	cfg := outputConfig(&cf, &hf, logger)
	cfg.PageSize = rf.PageSize
	cfg.Pretty = rf.Pretty

	tc, err := output.LoadReportConfig(cfg)
	if err != nil {
		m.RecordError(err)
		return finish(e, m)
	}
	format := resolveFormat(rf.Format, rf.Output, tc)
	cfg.Template = rf.Template

	d, err := output.BuildDispatcher(cfg)
	if err != nil {
		m.RecordError(err)
		return finish(e, m)
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Warn("closing hooks", slog.String("error", err.Error()))
		}
	}()

	var printer writers.HTMLPrinter
	if format == "browser-pdf" {
		opts := []printpdf.Option{printpdf.WithLogger(logger), printpdf.WithTimeout(defaults.PrintTimeout)}
		if rf.Browser != "" {
			opts = append(opts, printpdf.WithExecPath(rf.Browser))
		}
		printer = printpdf.New(opts...)
	}

	p, err := output.NewPipeline(tc, output.WriterConfig(cfg, tc, printer),
		output.WithDispatcher(d),
		output.WithSource(events.SourceCLI),
		output.WithLogger(logger),
	)
	if err != nil {
		m.RecordError(err)
		return finish(e, m)
	}

	data, err := cf.ReadInput(e.stdin)
	if err != nil {
		m.RecordError(err)
		return finish(e, m)
	}
	man, err := cf.LoadManifest()
	if err != nil {
		m.RecordError(err)
		return finish(e, m)
	}

	doc, err := p.Assemble(ctx, output.Input{Audit: data, Manifest: man})
	if err != nil {
		m.RecordError(err)
		if format == "html" && rf.Output != "" {
			writeErrorPage(p, rf.Output, err, logger)
		}
		return finish(e, m)
	}

	var buf bytes.Buffer
	w, err := p.Write(ctx, &buf, doc, format)
	if err != nil {
		m.RecordError(err)
		return finish(e, m)
	}
	if err := writeOutput(rf.Output, buf.Bytes(), e); err != nil {
		m.RecordError(err)
		return finish(e, m)
	}
	if rf.Output != "" {
		logger.Info("report written",
			slog.String("path", rf.Output),
			slog.String("format", w.Format()),
			slog.String("report_id", doc.ID))
		if rf.Summary && !ui.IsSilent() {
			ui.PrintSummary(e.stderr, doc)
		}
	}

	if rf.Policy != "" {
		pol, err := output.LoadPolicy(rf.Policy)
		if err != nil {
			m.RecordError(err)
			return finish(e, m)
		}
		res, err := p.Gate(ctx, doc, pol)
		if err != nil {
			m.RecordError(err)
			return finish(e, m)
		}
		if !ui.IsSilent() {
			ui.PrintGate(e.stderr, res)
		}
		m.RecordPolicy(res)
	}
	return finish(e, m)
}

// resolveFormat picks -format, then the -o extension, then the config's
// default format.
func resolveFormat(flagValue, outPath string, tc *report.TemplateConfig) string {
	if flagValue != "" {
		return strings.ToLower(flagValue)
	}
	switch strings.ToLower(filepath.Ext(outPath)) {
	case ".html", ".htm":
		return "html"
	case ".json":
		return "json"
	case ".md", ".markdown":
		return "markdown"
	case ".csv":
		return "csv"
	case ".pdf":
		return "pdf"
	}
	if tc.Export.DefaultFormat != "" {
		return tc.Export.DefaultFormat
	}
	return "html"
}

// writeOutput writes to path, or stdout when path is empty. Files are
// written whole so a failed render never leaves a truncated report.
func writeOutput(path string, data []byte, e env) error {
	if path == "" {
		_, err := e.stdout.Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// writeErrorPage leaves the failure page where the report would have been.
func writeErrorPage(p *output.Pipeline, path string, cause error, logger *slog.Logger) {
	page, err := p.ErrorPage(cause)
	if err != nil {
		logger.Error("rendering error page", slog.String("error", err.Error()))
		return
	}
	if err := os.WriteFile(path, page, 0o644); err != nil {
		logger.Error("writing error page", slog.String("path", path), slog.String("error", err.Error()))
	}
}
