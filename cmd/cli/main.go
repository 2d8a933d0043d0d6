package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/auditview/auditview/pkg/defaults"
	"github.com/auditview/auditview/pkg/output/exitcode"
	"github.com/auditview/auditview/pkg/ui"
)

// env carries the process streams so commands can run under test.
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func main() {
	setupConsole()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], env{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr})
	cancel()
	os.Exit(int(code))
}

// run dispatches a subcommand and returns its exit code.
func run(ctx context.Context, args []string, e env) exitcode.Code {
	if len(args) == 0 {
		printUsage(e.stderr)
		return exitcode.UserError
	}

	switch args[0] {
	case "report", "render":
		return runReport(ctx, args[1:], e)
	case "check", "gate":
		return runCheck(ctx, args[1:], e)
	case "serve", "server":
		return runServe(ctx, args[1:], e)
	case "mcp":
		return runMCP(ctx, args[1:], e)
	case "-v", "--version", "version":
		ui.PrintVersion(e.stdout)
		return exitcode.Success
	case "-h", "--help", "help":
		printUsage(e.stdout)
		return exitcode.Success
	}

	fmt.Fprintf(e.stderr, "error: unknown command %q\n\n", args[0])
	printUsage(e.stderr)
	return exitcode.UserError
}

func printUsage(w io.Writer) {
	ui.PrintBanner(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.SectionStyle.Render("USAGE"))
	fmt.Fprintf(w, "  %s <command> [flags]\n", defaults.ToolName)
	fmt.Fprintln(w)

	fmt.Fprintln(w, ui.SectionStyle.Render("COMMANDS"))
	commands := []struct{ name, desc string }{
		{"report ", "Render `npm audit --json` output as HTML, JSON, Markdown, CSV or PDF"},
		{"check  ", "Gate an audit against a policy; exit code 1 when it fails"},
		{"serve  ", "Serve reports over HTTP (POST /v1/reports, /v1/summary)"},
		{"mcp    ", "Run the MCP server for AI assistants (stdio or HTTP)"},
		{"version", "Print version information"},
	}
	for _, c := range commands {
		fmt.Fprintf(w, "  %s  %s\n", ui.StatValueStyle.Render(c.name), c.desc)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, ui.SectionStyle.Render("EXAMPLES"))
	for _, ex := range []string{
		"npm audit --json | auditview report -o npm-audit.html",
		"auditview report -i audit.json -format markdown -manifest .",
		"npm audit --json | auditview check -policy strict",
		"npm audit --json | auditview check -policy \"\" -baseline .auditview-baseline.json",
		"auditview serve -addr :8089 -policy standard",
		"auditview mcp --http :8090",
	} {
		fmt.Fprintf(w, "  %s\n", ex)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, ui.SectionStyle.Render("EXIT CODES"))
	for _, c := range []exitcode.Code{exitcode.Success, exitcode.PolicyFailed, exitcode.UserError, exitcode.Internal} {
		fmt.Fprintf(w, "  %d  %s\n", c, exitcode.Description(c))
	}
	fmt.Fprintf(w, "\nRun '%s <command> -h' for command flags.\n", defaults.ToolName)
}

// finish reports the outcome recorded in m and returns its code.
func finish(e env, m *exitcode.Manager) exitcode.Code {
	code, reason := m.ExitCode()
	if code != exitcode.Success {
		fmt.Fprintf(e.stderr, "%s: %s (exit %d, %s)\n", defaults.ToolName, reason, code, exitcode.CodeString(code))
	}
	return code
}

// usageError wraps a flag parsing failure so it maps to UserError.
func usageError(err error) error {
	if errors.Is(err, exitcode.ErrUsage) {
		return err
	}
	return fmt.Errorf("%w: %v", exitcode.ErrUsage, err)
}
