package main

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/auditview/auditview/pkg/defaults"
	"github.com/auditview/auditview/pkg/output"
	"github.com/auditview/auditview/pkg/output/events"
	"github.com/auditview/auditview/pkg/output/exitcode"
	"github.com/auditview/auditview/pkg/output/hooks"
	"github.com/auditview/auditview/pkg/output/printpdf"
	"github.com/auditview/auditview/pkg/output/writers"
	"github.com/auditview/auditview/pkg/server"
	"github.com/auditview/auditview/pkg/ui"
)

// runServe starts the HTTP report server and blocks until ctx is done.
func runServe(ctx context.Context, args []string, e env) exitcode.Code {
	fs := newFlagSet("serve", "Serve reports over HTTP. POST raw `npm audit --json` to /v1/reports or /v1/summary.", e.stderr)
	var (
		cf         CommonFlags
		hf         HookFlags
		addr       string
		pol        string
		rps        float64
		burst      int
		maxBody    int64
		noMetrics  bool
		browserPDF bool
	)
	cf.Register(fs, false)
	hf.Register(fs, false)
	fs.StringVar(&addr, "addr", defaults.ServeAddr, "Listen address")
	fs.StringVar(&pol, "policy", "", "Default gate policy for requests without ?policy=")
	fs.Float64Var(&rps, "rate", defaults.RateLimitPerSecond, "Sustained requests per second across all clients")
	fs.IntVar(&burst, "burst", defaults.RateLimitBurst, "Request burst size")
	fs.Int64Var(&maxBody, "max-body", defaults.MaxAuditBytes, "Maximum request body in bytes")
	fs.BoolVar(&noMetrics, "no-metrics", false, "Do not expose /metrics")
	fs.BoolVar(&browserPDF, "browser-pdf", false, "Enable ?format=browser-pdf (needs Chrome; the report config must allow it)")

	m := exitcode.New()
	ok, err := parseFlags(fs, args)
	if !ok {
		m.RecordError(err)
		return finish(e, m)
	}

	logger := cf.Apply(e.stderr)
	cfg := outputConfig(&cf, &hf, logger)
	cfg.Async = true

	tc, err := output.LoadReportConfig(cfg)
	if err != nil {
		m.RecordError(err)
		return finish(e, m)
	}
	if pol != "" {
		// Fail at startup rather than on every request.
		if _, err := output.LoadPolicy(pol); err != nil {
			m.RecordError(err)
			return finish(e, m)
		}
	}

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

	srvCfg := server.Config{
		Addr:         addr,
		Policy:       pol,
		RateLimit:    rate.Limit(rps),
		Burst:        burst,
		MaxBodyBytes: maxBody,
		Logger:       logger,
	}
	if !noMetrics {
		prom, err := hooks.NewPrometheusHook(hooks.PrometheusOptions{Logger: logger})
		if err != nil {
			m.RecordError(fmt.Errorf("metrics: %w", err))
			return finish(e, m)
		}
		d.RegisterHook(prom)
		srvCfg.Metrics = prom.Handler()
	}

	var printer writers.HTMLPrinter
	if browserPDF {
		printer = printpdf.New(printpdf.WithLogger(logger), printpdf.WithTimeout(defaults.PrintTimeout))
	}
	p, err := output.NewPipeline(tc, output.WriterConfig(cfg, tc, printer),
		output.WithDispatcher(d),
		output.WithSource(events.SourceHTTP),
		output.WithMaxBytes(maxBody),
		output.WithLogger(logger),
	)
	if err != nil {
		m.RecordError(err)
		return finish(e, m)
	}
	srvCfg.Pipeline = p

	srv, err := server.New(srvCfg)
	if err != nil {
		m.RecordError(err)
		return finish(e, m)
	}

	ui.PrintBanner(e.stderr)
	fmt.Fprintf(e.stderr, "%s listening on http://%s\n", ui.UserAgent(), srv.Addr())
	if err := srv.ListenAndServe(ctx); err != nil {
		m.RecordError(err)
	}
	return finish(e, m)
}
