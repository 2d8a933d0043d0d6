package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/auditview/auditview/pkg/defaults"
	"github.com/auditview/auditview/pkg/manifest"
	"github.com/auditview/auditview/pkg/output"
	"github.com/auditview/auditview/pkg/ui"
)

// CommonFlags holds flags shared by report, check and serve.
// Use Register to bind these flags to a flag.FlagSet.
type CommonFlags struct {
	Input        string
	ReportConfig string
	Title        string
	AppName      string
	SortBy       string
	Manifest     string
	Verbose      bool
	Quiet        bool
	NoColor      bool
}

// Register binds common flags to the given FlagSet. withInput is false for
// serve, which reads audits from request bodies.
func (cf *CommonFlags) Register(fs *flag.FlagSet, withInput bool) {
	if withInput {
		fs.StringVar(&cf.Input, "i", "-", "Audit JSON file ('-' reads stdin)")
		fs.StringVar(&cf.Input, "input", "-", "Audit JSON file (alias)")
		fs.StringVar(&cf.Manifest, "manifest", "", "package.json or project directory for the report header")
	}
	fs.StringVar(&cf.ReportConfig, "config", "", "Report config: built-in name (default, dark, minimal) or YAML path")
	fs.StringVar(&cf.Title, "title", "", "Report title (overrides the config)")
	fs.StringVar(&cf.AppName, "app-name", "", "Application name (overrides package.json)")
	fs.StringVar(&cf.SortBy, "sort", "", "Sort order: severity or direct")
	fs.BoolVar(&cf.Verbose, "verbose", false, "Debug logging")
	fs.BoolVar(&cf.Verbose, "v", false, "Debug logging (alias)")
	fs.BoolVar(&cf.Quiet, "quiet", false, "Only print errors")
	fs.BoolVar(&cf.Quiet, "q", false, "Only print errors (alias)")
	fs.BoolVar(&cf.NoColor, "no-color", os.Getenv("NO_COLOR") != "", "Disable colored output")
}

// Apply configures the console for the parsed flags and returns the logger.
func (cf *CommonFlags) Apply(stderr io.Writer) *slog.Logger {
	ui.SetNoColor(cf.NoColor || !ui.IsTerminal(stderr))
	ui.SetSilent(cf.Quiet)
	return newLogger(stderr, cf.Verbose, cf.Quiet)
}

// LoadManifest reads -manifest. Without the flag the header comes from
// -app-name alone.
func (cf *CommonFlags) LoadManifest() (*manifest.Manifest, error) {
	if cf.Manifest == "" {
		return nil, nil
	}
	return manifest.Load(cf.Manifest)
}

// ReadInput reads the audit document from -i or stdin. One byte past the
// limit is kept so the decoder reports the document as too large.
func (cf *CommonFlags) ReadInput(stdin io.Reader) ([]byte, error) {
	var r io.Reader = stdin
	if cf.Input != "" && cf.Input != "-" {
		f, err := os.Open(cf.Input)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInput, err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(io.LimitReader(r, defaults.MaxAuditBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInput, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty input; pipe `npm audit --json` or pass -i", errInput)
	}
	return data, nil
}

// HookFlags holds the event hook flags shared by every command.
type HookFlags struct {
	Webhook             string
	WebhookOnlyFailures bool
	SlackWebhook        string
	SlackChannel        string
	MinSeverity         string
	MetricsAddr         string
	OTelEndpoint        string
	OTelInsecure        bool
}

// Register binds hook flags. withMetricsAddr is false for serve, which
// mounts /metrics on its own listener.
func (hf *HookFlags) Register(fs *flag.FlagSet, withMetricsAddr bool) {
	fs.StringVar(&hf.Webhook, "webhook", "", "POST report and gate events as JSON to this URL")
	fs.BoolVar(&hf.WebhookOnlyFailures, "webhook-only-failures", false, "Only send failed gates and errors to -webhook")
	fs.StringVar(&hf.SlackWebhook, "slack-webhook", "", "Slack incoming webhook URL")
	fs.StringVar(&hf.SlackChannel, "slack-channel", "", "Slack channel override")
	fs.StringVar(&hf.MinSeverity, "min-severity", "", "Only notify when the highest severity is at least this")
	if withMetricsAddr {
		fs.StringVar(&hf.MetricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address (e.g. "+defaults.MetricsAddr+")")
	}
	fs.StringVar(&hf.OTelEndpoint, "otel-endpoint", "", "OTLP gRPC collector for traces (e.g. "+defaults.OTelEndpoint+")")
	fs.BoolVar(&hf.OTelInsecure, "otel-insecure", false, "Disable TLS to the OTLP collector")
}

// outputConfig merges the flag groups into the output builder config.
func outputConfig(cf *CommonFlags, hf *HookFlags, logger *slog.Logger) output.Config {
	return output.Config{
		ReportConfig:        cf.ReportConfig,
		Title:               cf.Title,
		AppName:             cf.AppName,
		SortBy:              cf.SortBy,
		WebhookURL:          hf.Webhook,
		WebhookOnlyFailures: hf.WebhookOnlyFailures,
		SlackWebhook:        hf.SlackWebhook,
		SlackChannel:        hf.SlackChannel,
		MinSeverity:         hf.MinSeverity,
		MetricsAddr:         hf.MetricsAddr,
		OTelEndpoint:        hf.OTelEndpoint,
		OTelInsecure:        hf.OTelInsecure,
		Logger:              logger,
	}
}

// newLogger writes text logs to stderr. -quiet wins over -verbose.
func newLogger(w io.Writer, verbose, quiet bool) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case quiet:
		level = slog.LevelError
	case verbose:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newFlagSet returns a FlagSet that reports errors instead of exiting.
func newFlagSet(name, summary string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s %s [flags]\n\n%s\n\nFlags:\n", defaults.ToolName, name, summary)
		fs.PrintDefaults()
	}
	return fs
}

// parseFlags parses args. flag.ErrHelp is reported as ok=false with a
// Success code so `-h` exits 0.
func parseFlags(fs *flag.FlagSet, args []string) (ok bool, err error) {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return false, nil
		}
		return false, usageError(err)
	}
	if fs.NArg() > 0 {
		return false, usageError(fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " ")))
	}
	return true, nil
}
