package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/auditview/auditview/pkg/defaults"
	"github.com/auditview/auditview/pkg/jsonutil"
	"github.com/auditview/auditview/pkg/output"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// Config holds MCP server configuration.
type Config struct {
	// Pipeline renders every tool call. Required.
	Pipeline *output.Pipeline

	// Logger receives transport and handler failures (default: slog.Default()).
	Logger *slog.Logger
}

// ---------------------------------------------------------------------------
// Server
// ---------------------------------------------------------------------------

// Server wraps the MCP server with auditview functionality.
type Server struct {
	mcp      *mcp.Server
	pipeline *output.Pipeline
	logger   *slog.Logger
}

// MCPServer returns the underlying MCP server for direct access (e.g., testing).
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

// New creates a new MCP server with all tools, resources, and prompts registered.
func New(cfg *Config) (*Server, error) {
	if cfg == nil || cfg.Pipeline == nil {
		return nil, errors.New("mcpserver: pipeline is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{pipeline: cfg.Pipeline, logger: logger}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    defaults.ToolName,
			Title:   "auditview npm audit reports",
			Version: defaults.Version,
		},
		&mcp.ServerOptions{
			Instructions: serverInstructions,
		},
	)

	s.registerTools()
	s.registerResources()
	s.registerPrompts()
	return s, nil
}

// RunStdio runs the MCP server over stdio transport.
// This is the primary mode for IDE integrations.
func (s *Server) RunStdio(ctx context.Context) error {
	s.logger.Debug("mcp stdio transport started")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler returns an http.Handler for the streamable HTTP transport
// with a /health endpoint.
//
// The handler mounts:
//   - /health → liveness probe (GET only)
//   - /mcp    → streamable HTTP transport
//   - /       → streamable HTTP transport (default mount)
func (s *Server) HTTPHandler() http.Handler {
	streamable := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return s.mcp },
		&mcp.StreamableHTTPOptions{Stateless: false},
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	mux.Handle("/mcp", streamable)
	mux.Handle("/", streamable)

	return s.recoveryMiddleware(securityHeaders(mux))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", defaults.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","service":"auditview-mcp"}`))
}

// recoveryMiddleware catches panics in HTTP handlers and returns a 500
// instead of killing the connection.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic in MCP HTTP handler",
					slog.Any("panic", err),
					slog.String("stack", string(debug.Stack())))
				w.Header().Set("Content-Type", defaults.ContentTypeJSON)
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"internal server error"}`))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// ---------------------------------------------------------------------------
// Helpers: result builders
// ---------------------------------------------------------------------------

// textResult creates a CallToolResult with a single text content block.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// jsonResult marshals v to indented JSON and wraps it in a CallToolResult.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := jsonutil.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return textResult(string(data)), nil
}

// errorResult creates an IsError CallToolResult so the model can see the
// error and self-correct rather than raising a protocol-level exception.
func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

func boolPtr(b bool) *bool { return &b }

// parseArgs unmarshals the raw JSON arguments from a tool call into dst.
func parseArgs(req *mcp.CallToolRequest, dst any) error {
	if len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := jsonutil.Unmarshal(req.Params.Arguments, dst); err != nil {
		return fmt.Errorf("parsing tool arguments: %w", err)
	}
	return nil
}

// toolNames lists every registered tool; the version resource and the
// instructions both reference it.
var toolNames = []string{"render_audit_report", "summarize_audit", "list_templates"}

var serverInstructions = `You are operating auditview, which turns the JSON output of ` + "`npm audit --json`" + ` into readable vulnerability reports and CI gate verdicts.

## TOOLS

| User intent | Tool |
|---|---|
| "How bad is this audit?" | summarize_audit |
| "Give me a report I can share" | render_audit_report |
| "Which policies can I gate with?" | list_templates |

## WORKFLOW

1. Ask the user for the output of ` + "`npm audit --json`" + ` if you do not have it. Pass it verbatim as the 'audit' argument.
2. Call summarize_audit first. It is small and tells you the severity breakdown, the fix situation and, with a policy, whether the build would pass.
3. Call render_audit_report with format "markdown" to show findings in chat, or "html" when the user wants a standalone page.
4. Explain fixes: "auto" fixes apply with ` + "`npm audit fix`" + `; "upgrade" fixes need ` + "`npm audit fix --force`" + ` and are breaking when marked so.

Tools: ` + strings.Join(toolNames, ", ") + `.`
