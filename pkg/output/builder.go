// Package output wires report writers and event hooks from command-line
// settings and runs the decode, assemble, write pipeline shared by the CLI,
// the HTTP server and the MCP server.
package output

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/auditview/auditview/pkg/defaults"
	"github.com/auditview/auditview/pkg/finding"
	"github.com/auditview/auditview/pkg/output/dispatcher"
	"github.com/auditview/auditview/pkg/output/hooks"
	"github.com/auditview/auditview/pkg/output/writers"
	"github.com/auditview/auditview/pkg/report"
	"github.com/auditview/auditview/pkg/templateresolver"
)

// Config configures writers and hooks based on CLI flags.
type Config struct {
	// ReportConfig is a report-config short name or path. Empty selects
	// the bundled default.
	ReportConfig string

	// Title and AppName override the report config's branding.
	Title   string
	AppName string

	// SortBy overrides the report config's sort mode ("severity" or "direct").
	SortBy string

	// Template names the output template (or its path) for the "template"
	// format. Empty selects the bundled summary.
	Template string

	// PageSize is "A4" or "Letter" for the native PDF writer.
	PageSize string

	// Pretty indents JSON output.
	Pretty bool

	// Hooks
	WebhookURL          string
	WebhookOnlyFailures bool
	SlackWebhook        string
	SlackChannel        string
	MinSeverity         string
	MetricsAddr         string
	OTelEndpoint        string
	OTelInsecure        bool

	// Async delivers hook events in goroutines.
	Async bool

	Logger *slog.Logger
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// LoadReportConfig resolves cfg.ReportConfig, applies the flag overrides
// and validates the result.
func LoadReportConfig(cfg Config) (*report.TemplateConfig, error) {
	tc := report.DefaultTemplateConfig()
	if cfg.ReportConfig != "" {
		data, source, err := templateresolver.ReadFile(cfg.ReportConfig, templateresolver.KindReportConfig)
		if err != nil {
			return nil, err
		}
		override, err := report.ParseTemplateConfig(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
		tc = report.MergeConfig(tc, override)
	}
	if cfg.Title != "" {
		tc.Branding.Title = cfg.Title
	}
	if cfg.AppName != "" {
		tc.Branding.AppName = cfg.AppName
	}
	if cfg.SortBy != "" {
		tc.Layout.SortBy = strings.ToLower(cfg.SortBy)
	}
	if err := report.ValidateConfig(tc); err != nil {
		return nil, err
	}
	return tc, nil
}

// WriterConfig builds the per-format writer settings. printer may be nil,
// which leaves "browser-pdf" unavailable.
func WriterConfig(cfg Config, tc *report.TemplateConfig, printer writers.HTMLPrinter) writers.Config {
	return writers.Config{
		HTML: tc,
		JSON: writers.JSONConfig{Pretty: cfg.Pretty},
		// The assembled title already carries -title and the app suffix.
		Markdown: writers.MarkdownConfig{},
		CSV:      writers.CSVOptions{},
		PDF: writers.PDFConfig{
			PageSize: cfg.PageSize,
			Author:   defaults.ToolName,
		},
		Template: writers.TemplateConfig{Template: cfg.Template},
		Printer:  printer,
	}
}

// BuildDispatcher creates a dispatcher with the hooks the config enables.
// The log hook is always registered. The caller is responsible for calling
// Close() on the dispatcher when done.
func BuildDispatcher(cfg Config) (*dispatcher.Dispatcher, error) {
	logger := cfg.logger()
	d := dispatcher.New(dispatcher.Config{Async: cfg.Async, Logger: logger})
	d.RegisterHook(hooks.NewLogHook(logger))

	minSeverity := finding.Severity(strings.ToLower(cfg.MinSeverity))
	if minSeverity != "" && !minSeverity.IsValid() {
		return nil, fmt.Errorf("%w: unknown severity %q", report.ErrInvalidConfig, cfg.MinSeverity)
	}

	// Generic webhook
	if cfg.WebhookURL != "" {
		d.RegisterHook(hooks.NewWebhookHook(cfg.WebhookURL, hooks.WebhookOptions{
			OnlyFailures: cfg.WebhookOnlyFailures,
			MinSeverity:  minSeverity,
			Logger:       logger,
		}))
	}

	// Slack
	if cfg.SlackWebhook != "" {
		d.RegisterHook(hooks.NewSlackHook(cfg.SlackWebhook, hooks.SlackOptions{
			Channel:     cfg.SlackChannel,
			MinSeverity: minSeverity,
			Logger:      logger,
		}))
	}

	// Prometheus metrics
	if cfg.MetricsAddr != "" {
		hook, err := hooks.NewPrometheusHook(hooks.PrometheusOptions{
			Addr:   cfg.MetricsAddr,
			Logger: logger,
		})
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("failed to create Prometheus hook: %w", err)
		}
		d.RegisterHook(hook)
	}

	// OpenTelemetry
	if cfg.OTelEndpoint != "" {
		hook, err := hooks.NewOTelHook(hooks.OTelOptions{
			Endpoint:    cfg.OTelEndpoint,
			ServiceName: defaults.ToolName,
			Insecure:    cfg.OTelInsecure,
		})
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("failed to create OpenTelemetry hook: %w", err)
		}
		d.RegisterHook(hook)
	}

	return d, nil
}
