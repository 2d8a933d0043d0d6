// Command mcp-smoke starts `auditview mcp --http` from the repository and
// drives it through a real streamable HTTP client session: tool discovery,
// resources, prompts and every tool with positive and negative inputs.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// scenario is a named check that runs against a live MCP session.
type scenario struct {
	name string
	fn   func(ctx context.Context, s *mcp.ClientSession, audit string) error
}

func main() {
	var (
		port      = flag.Int("port", 18090, "MCP HTTP port")
		auditFile = flag.String("audit", "pkg/audit/testdata/scenario.json", "npm audit JSON used by tool scenarios (relative to the repo root)")
		timeout   = flag.Duration("timeout", 90*time.Second, "Overall timeout")
		runOnly   = flag.String("scenario", "", "Run only this named scenario")
	)
	flag.Parse()
	log.SetFlags(0)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	root, err := findRepoRoot()
	if err != nil {
		log.Fatalf("FATAL repo_root: %v", err)
	}
	audit, err := os.ReadFile(filepath.Join(root, *auditFile))
	if err != nil {
		log.Fatalf("FATAL read_audit: %v", err)
	}

	serverCmd, err := startServer(ctx, root, *port)
	if err != nil {
		log.Fatalf("FATAL start_server: %v", err)
	}
	defer stopServer(serverCmd)

	if err := waitForHealth(ctx, *port); err != nil {
		log.Fatalf("FATAL health_check: %v", err)
	}
	fmt.Println("server: healthy")

	client := mcp.NewClient(&mcp.Implementation{Name: "mcp-smoke", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, &mcp.StreamableClientTransport{
		Endpoint: fmt.Sprintf("http://127.0.0.1:%d/mcp", *port),
	}, nil)
	if err != nil {
		log.Fatalf("FATAL connect: %v", err)
	}
	defer session.Close()

	passed, failed := 0, 0
	for _, sc := range allScenarios() {
		if *runOnly != "" && sc.name != *runOnly {
			continue
		}
		if err := sc.fn(ctx, session, string(audit)); err != nil {
			failed++
			fmt.Printf("FAIL  %s: %v\n", sc.name, err)
			continue
		}
		passed++
		fmt.Printf("PASS  %s\n", sc.name)
	}

	fmt.Printf("\n--- %d passed, %d failed ---\n", passed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// allScenarios returns every smoke scenario in execution order.
func allScenarios() []scenario {
	return []scenario{
		{"tool_discovery", scenarioToolDiscovery},
		{"resource_exploration", scenarioResources},
		{"prompt_catalog", scenarioPrompts},
		{"summarize", scenarioSummarize},
		{"render_formats", scenarioRenderFormats},
		{"error_handling", scenarioErrorHandling},
	}
}

// ---------------------------------------------------------------------------
// tool_discovery: every tool exists, is described and is read-only.
// ---------------------------------------------------------------------------

func scenarioToolDiscovery(ctx context.Context, s *mcp.ClientSession, _ string) error {
	tools, err := s.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		return fmt.Errorf("ListTools: %w", err)
	}

	expected := []string{"render_audit_report", "summarize_audit", "list_templates"}
	if len(tools.Tools) != len(expected) {
		return fmt.Errorf("tool count mismatch: want %d, got %d", len(expected), len(tools.Tools))
	}
	have := make(map[string]*mcp.Tool, len(tools.Tools))
	for _, t := range tools.Tools {
		have[t.Name] = t
	}
	for _, name := range expected {
		t, ok := have[name]
		if !ok {
			return fmt.Errorf("missing tool %q", name)
		}
		if t.Description == "" || t.InputSchema == nil {
			return fmt.Errorf("tool %q lacks a description or input schema", name)
		}
		if t.Annotations == nil || !t.Annotations.ReadOnlyHint {
			return fmt.Errorf("tool %q is not annotated read-only", name)
		}
	}

	// NEGATIVE: calling a nonexistent tool must fail.
	res, err := callToolRaw(ctx, s, "nonexistent_tool", map[string]any{})
	if err == nil && !res.IsError {
		return fmt.Errorf("NEG nonexistent tool: expected error, got success")
	}
	return nil
}

// ---------------------------------------------------------------------------
// resource_exploration: version and policy resources.
// ---------------------------------------------------------------------------

func scenarioResources(ctx context.Context, s *mcp.ClientSession, _ string) error {
	res, err := s.ReadResource(ctx, &mcp.ReadResourceParams{URI: "auditview://version"})
	if err != nil {
		return fmt.Errorf("ReadResource(version): %w", err)
	}
	var info map[string]any
	if err := json.Unmarshal([]byte(resourceText(res)), &info); err != nil {
		return fmt.Errorf("parse version: %w", err)
	}
	for _, field := range []string{"name", "version", "formats", "tools"} {
		if _, ok := info[field]; !ok {
			return fmt.Errorf("version resource missing %q", field)
		}
	}

	for _, name := range []string{"permissive", "standard", "strict"} {
		uri := "auditview://policies/" + name
		res, err := s.ReadResource(ctx, &mcp.ReadResourceParams{URI: uri})
		if err != nil {
			return fmt.Errorf("ReadResource(%s): %w", uri, err)
		}
		if !strings.Contains(resourceText(res), "name: "+name) {
			return fmt.Errorf("%s: policy YAML does not name itself", uri)
		}
	}

	// NEGATIVE: unknown policy.
	if _, err := s.ReadResource(ctx, &mcp.ReadResourceParams{URI: "auditview://policies/zzz"}); err == nil {
		return fmt.Errorf("NEG unknown policy: expected error, got nil")
	}
	return nil
}

// ---------------------------------------------------------------------------
// prompt_catalog: triage prompt substitutes its arguments.
// ---------------------------------------------------------------------------

func scenarioPrompts(ctx context.Context, s *mcp.ClientSession, _ string) error {
	res, err := s.GetPrompt(ctx, &mcp.GetPromptParams{
		Name:      "triage_audit",
		Arguments: map[string]string{"policy": "strict", "app_name": "smoke-app"},
	})
	if err != nil {
		return fmt.Errorf("GetPrompt(triage_audit): %w", err)
	}
	blob, _ := json.Marshal(res)
	for _, want := range []string{"strict", "smoke-app"} {
		if !strings.Contains(string(blob), want) {
			return fmt.Errorf("triage_audit: %q not substituted", want)
		}
	}

	// NEGATIVE: nonexistent prompt.
	if _, err := s.GetPrompt(ctx, &mcp.GetPromptParams{Name: "nonexistent_prompt"}); err == nil {
		return fmt.Errorf("NEG nonexistent prompt: expected error, got nil")
	}
	return nil
}

// ---------------------------------------------------------------------------
// summarize: counts and gate verdicts for each built-in policy.
// ---------------------------------------------------------------------------

func scenarioSummarize(ctx context.Context, s *mcp.ClientSession, audit string) error {
	sum, err := callToolJSON(ctx, s, "summarize_audit", map[string]any{"audit": audit})
	if err != nil {
		return err
	}
	if pkgs, _ := sum["packages"].(float64); pkgs == 0 {
		return fmt.Errorf("summarize_audit: packages is 0")
	}
	if _, ok := sum["gate"]; ok {
		return fmt.Errorf("summarize_audit: gate present without a policy")
	}

	for _, pol := range []string{"permissive", "standard", "strict"} {
		sum, err := callToolJSON(ctx, s, "summarize_audit", map[string]any{"audit": audit, "policy": pol})
		if err != nil {
			return fmt.Errorf("summarize_audit(%s): %w", pol, err)
		}
		gate, ok := sum["gate"].(map[string]any)
		if !ok {
			return fmt.Errorf("summarize_audit(%s): missing gate", pol)
		}
		if gate["policy"] != pol {
			return fmt.Errorf("summarize_audit(%s): gate names %v", pol, gate["policy"])
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// render_formats: every chat format renders, and renders identically twice.
// ---------------------------------------------------------------------------

func scenarioRenderFormats(ctx context.Context, s *mcp.ClientSession, audit string) error {
	markers := map[string]string{
		"markdown": "# ",
		"html":     "<!DOCTYPE html>",
		"json":     `"vulnerabilities"`,
		"csv":      "package,severity",
	}
	for format, marker := range markers {
		args := map[string]any{"audit": audit, "format": format}
		first, err := callToolText(ctx, s, "render_audit_report", args)
		if err != nil {
			return fmt.Errorf("render(%s): %w", format, err)
		}
		if !strings.Contains(first, marker) {
			return fmt.Errorf("render(%s): missing %q in %s", format, marker, truncate(first, 120))
		}
		second, err := callToolText(ctx, s, "render_audit_report", args)
		if err != nil {
			return fmt.Errorf("render(%s) again: %w", format, err)
		}
		if first != second {
			return fmt.Errorf("render(%s): output differs between identical calls", format)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// error_handling: bad inputs come back as IsError results, not protocol errors.
// ---------------------------------------------------------------------------

func scenarioErrorHandling(ctx context.Context, s *mcp.ClientSession, audit string) error {
	cases := []struct {
		desc string
		tool string
		args map[string]any
	}{
		{"missing audit", "render_audit_report", map[string]any{}},
		{"text audit", "summarize_audit", map[string]any{"audit": "found 3 vulnerabilities"}},
		{"npm error payload", "summarize_audit", map[string]any{"audit": `{"error":{"code":"ENOLOCK","summary":"no lockfile"}}`}},
		{"pdf format", "render_audit_report", map[string]any{"audit": audit, "format": "pdf"}},
		{"unknown policy", "summarize_audit", map[string]any{"audit": audit, "policy": "zzz"}},
		{"unknown template kind", "list_templates", map[string]any{"kind": "themes"}},
	}
	for _, c := range cases {
		if err := requireToolError(ctx, s, c.tool, c.args, c.desc); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func requireToolError(ctx context.Context, s *mcp.ClientSession, name string, args map[string]any, desc string) error {
	res, err := callToolRaw(ctx, s, name, args)
	if err != nil {
		return fmt.Errorf("NEG %s: protocol error %v, want IsError result", desc, err)
	}
	if !res.IsError {
		return fmt.Errorf("NEG %s: expected IsError, got success: %s", desc, truncate(extractText(res), 120))
	}
	return nil
}

func callToolText(ctx context.Context, s *mcp.ClientSession, name string, args map[string]any) (string, error) {
	res, err := callToolRaw(ctx, s, name, args)
	if err != nil {
		return "", fmt.Errorf("CallTool(%s): %w", name, err)
	}
	if res.IsError {
		return "", fmt.Errorf("CallTool(%s): %s", name, truncate(extractText(res), 200))
	}
	return extractText(res), nil
}

func callToolJSON(ctx context.Context, s *mcp.ClientSession, name string, args map[string]any) (map[string]any, error) {
	text, err := callToolText(ctx, s, name, args)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("%s: parse JSON: %w", name, err)
	}
	return out, nil
}

func callToolRaw(ctx context.Context, s *mcp.ClientSession, name string, args map[string]any) (*mcp.CallToolResult, error) {
	return s.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
}

// extractText returns the first text block.
func extractText(result *mcp.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func resourceText(res *mcp.ReadResourceResult) string {
	if res == nil || len(res.Contents) == 0 {
		return ""
	}
	return res.Contents[0].Text
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func startServer(ctx context.Context, root string, port int) (*exec.Cmd, error) {
	cmd := exec.CommandContext(ctx, "go", "run", "./cmd/cli", "mcp", "--http", fmt.Sprintf("127.0.0.1:%d", port))
	cmd.Dir = root
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func stopServer(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
	_, _ = cmd.Process.Wait()
}

func findRepoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
		if err == nil && strings.Contains(string(data), "module github.com/auditview/auditview") {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("repo root not found walking up from %s", dir)
		}
		dir = parent
	}
}

func waitForHealth(ctx context.Context, port int) error {
	client := &http.Client{Timeout: 2 * time.Second}
	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)

	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
