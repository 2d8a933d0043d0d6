package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/auditview/auditview/pkg/defaults"
	"github.com/auditview/auditview/pkg/mcpserver"
	"github.com/auditview/auditview/pkg/output"
	"github.com/auditview/auditview/pkg/output/events"
	"github.com/auditview/auditview/pkg/output/exitcode"
	"github.com/auditview/auditview/pkg/ui"
)

// mcpHTTPAddrEnv overrides --http in containers.
const mcpHTTPAddrEnv = "AUDITVIEW_MCP_HTTP_ADDR"

// runMCP starts the MCP (Model Context Protocol) server.
// Supports two transport modes:
//   - --stdio (default): For IDE integrations
//   - --http <addr>:     For remote/Docker deployments with session management
func runMCP(ctx context.Context, args []string, e env) exitcode.Code {
	fs := newFlagSet("mcp", "Start an MCP server so AI assistants can render and gate npm audits.\n\n"+
		"Transports:\n"+
		"  --stdio          Stdio transport for IDE integration (default)\n"+
		"  --http <addr>    Streamable HTTP transport for remote/Docker\n\n"+
		"Environment variables:\n"+
		"  "+mcpHTTPAddrEnv+"   HTTP listen address (same as --http)", e.stderr)
	var (
		cf       CommonFlags
		hf       HookFlags
		stdio    bool
		httpAddr string
	)
	cf.Register(fs, false)
	hf.Register(fs, true)
	fs.BoolVar(&stdio, "stdio", true, "Use stdio transport (default, for IDE integration)")
	fs.StringVar(&httpAddr, "http", "", "HTTP address to listen on (e.g. :8090). Disables stdio.")

	m := exitcode.New()
	ok, err := parseFlags(fs, args)
	if !ok {
		m.RecordError(err)
		return finish(e, m)
	}

	// stdout carries the protocol; everything human goes to stderr.
	logger := cf.Apply(e.stderr)
	cfg := outputConfig(&cf, &hf, logger)

	if httpAddr == "" {
		httpAddr = os.Getenv(mcpHTTPAddrEnv)
	}

	tc, err := output.LoadReportConfig(cfg)
	if err != nil {
		m.RecordError(err)
		return finish(e, m)
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

	p, err := output.NewPipeline(tc, output.WriterConfig(cfg, tc, nil),
		output.WithDispatcher(d),
		output.WithSource(events.SourceMCP),
		output.WithLogger(logger),
	)
	if err != nil {
		m.RecordError(err)
		return finish(e, m)
	}
	srv, err := mcpserver.New(&mcpserver.Config{Pipeline: p, Logger: logger})
	if err != nil {
		m.RecordError(err)
		return finish(e, m)
	}

	switch {
	case httpAddr != "":
		m.RecordError(serveMCPHTTP(ctx, srv, httpAddr, e, logger))
	case stdio:
		if err := srv.RunStdio(ctx); err != nil && !errors.Is(err, context.Canceled) {
			m.RecordError(err)
		}
	default:
		m.RecordError(fmt.Errorf("%w: no transport selected; use --stdio or --http <addr>", exitcode.ErrUsage))
	}
	return finish(e, m)
}

func serveMCPHTTP(ctx context.Context, srv *mcpserver.Server, addr string, e env, logger *slog.Logger) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.HTTPHandler(),
		ReadHeaderTimeout: defaults.ReadHeaderTimeout,
		ReadTimeout:       30 * time.Second,
		// WriteTimeout stays 0: streamable HTTP keeps SSE responses open.
		IdleTimeout:    30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaults.ShutdownTimeout)
		defer cancel()
		fmt.Fprintf(e.stderr, "%s shutting down gracefully…\n", ui.UserAgent())
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("mcp shutdown", slog.String("error", err.Error()))
		}
	}()

	fmt.Fprintf(e.stderr, "%s MCP server listening on %s (HTTP transport)\n", ui.UserAgent(), addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
