package mcpserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/auditview/auditview/pkg/audit"
	"github.com/auditview/auditview/pkg/finding"
	"github.com/auditview/auditview/pkg/manifest"
	"github.com/auditview/auditview/pkg/output"
	"github.com/auditview/auditview/pkg/output/policy"
	"github.com/auditview/auditview/pkg/report"
	"github.com/auditview/auditview/pkg/templateresolver"
)

// chatFormats are the formats a tool can return as text. PDF is binary and
// is left to the CLI and HTTP server.
var chatFormats = []string{"markdown", "html", "json", "csv"}

func (s *Server) registerTools() {
	s.addRenderTool()
	s.addSummarizeTool()
	s.addListTemplatesTool()
}

// auditArgs are shared by every tool that reads an audit.
type auditArgs struct {
	Audit   string `json:"audit"`
	Policy  string `json:"policy"`
	AppName string `json:"app_name"`
}

var auditProperties = map[string]any{
	"audit": map[string]any{
		"type":        "string",
		"description": "The complete stdout of `npm audit --json`, verbatim.",
	},
	"policy": map[string]any{
		"type":        "string",
		"description": "Optional gate policy: a built-in name (permissive, standard, strict) or a path to a policy YAML file.",
	},
	"app_name": map[string]any{
		"type":        "string",
		"description": "Optional application name shown in the report title.",
	},
}

func withProperties(extra map[string]any) map[string]any {
	props := make(map[string]any, len(auditProperties)+len(extra))
	for k, v := range auditProperties {
		props[k] = v
	}
	for k, v := range extra {
		props[k] = v
	}
	return props
}

// assemble decodes the audit and, when a policy was named, gates it.
func (s *Server) assemble(ctx context.Context, args auditArgs) (*report.Document, *policy.Result, error) {
	if strings.TrimSpace(args.Audit) == "" {
		return nil, nil, errors.New("audit is required: pass the output of `npm audit --json`")
	}

	in := output.Input{Audit: []byte(args.Audit)}
	if args.AppName != "" {
		in.Manifest = &manifest.Manifest{Name: args.AppName}
	}
	doc, err := s.pipeline.Assemble(ctx, in)
	if err != nil {
		return nil, nil, describeAuditError(err)
	}
	if args.Policy == "" {
		return doc, nil, nil
	}

	pol, err := output.LoadPolicy(args.Policy)
	if err != nil {
		return nil, nil, err
	}
	res, err := s.pipeline.Gate(ctx, doc, pol)
	if err != nil {
		return nil, nil, err
	}
	return doc, &res, nil
}

// describeAuditError adds a hint the model can act on.
func describeAuditError(err error) error {
	switch {
	case errors.Is(err, audit.ErrAuditFailed):
		return fmt.Errorf("%w. npm itself failed; fix the project (e.g. run `npm install` to create a lockfile) and re-run the audit", err)
	case errors.Is(err, audit.ErrInvalidJSON):
		return fmt.Errorf("%w. Pass the raw output of `npm audit --json`, not the human-readable report", err)
	}
	return err
}

// ---------------------------------------------------------------------------
// render_audit_report
// ---------------------------------------------------------------------------

func (s *Server) addRenderTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "render_audit_report",
			Title: "Render Audit Report",
			Description: `Render npm audit JSON as a vulnerability report.

Formats: markdown (default, best for chat), html (standalone page), json (normalized document), csv (one row per package).
When 'policy' is set, the gate verdict is appended as a second content block.`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": withProperties(map[string]any{
					"format": map[string]any{
						"type":        "string",
						"enum":        chatFormats,
						"default":     "markdown",
						"description": "Output format.",
					},
				}),
				"required": []string{"audit"},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:    true,
				IdempotentHint:  true,
				OpenWorldHint:   boolPtr(false),
				DestructiveHint: boolPtr(false),
			},
		},
		s.handleRender,
	)
}

type renderArgs struct {
	auditArgs
	Format string `json:"format"`
}

func (s *Server) handleRender(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args renderArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(err.Error()), nil
	}
	format := strings.ToLower(args.Format)
	if format == "" {
		format = "markdown"
	}
	if !isChatFormat(format) {
		return errorResult(fmt.Sprintf("unsupported format %q: use one of %s", args.Format, strings.Join(chatFormats, ", "))), nil
	}

	doc, gate, err := s.assemble(ctx, args.auditArgs)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	var buf bytes.Buffer
	if _, err := s.pipeline.Write(ctx, &buf, doc, format); err != nil {
		s.logger.Error("mcp render failed", "report_id", doc.ID, "format", format, "error", err)
		return errorResult(fmt.Sprintf("rendering %s report: %v", format, err)), nil
	}

	result := textResult(buf.String())
	if gate != nil {
		verdict, err := jsonResult(newGateSummary(*gate))
		if err != nil {
			return nil, err
		}
		result.Content = append(result.Content, verdict.Content...)
	}
	return result, nil
}

func isChatFormat(f string) bool {
	for _, c := range chatFormats {
		if c == f {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// summarize_audit
// ---------------------------------------------------------------------------

func (s *Server) addSummarizeTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "summarize_audit",
			Title: "Summarize Audit",
			Description: `Summarize npm audit JSON: severity breakdown, direct vs transitive packages, fix availability, and the most severe packages.

Call this before render_audit_report. With 'policy' set, the result includes the CI gate verdict and its exit code.`,
			InputSchema: map[string]any{
				"type":       "object",
				"properties": withProperties(nil),
				"required":   []string{"audit"},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:    true,
				IdempotentHint:  true,
				OpenWorldHint:   boolPtr(false),
				DestructiveHint: boolPtr(false),
			},
		},
		s.handleSummarize,
	)
}

// auditSummary is the summarize_audit payload.
type auditSummary struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Clean           bool             `json:"clean"`
	Highest         finding.Severity `json:"highestSeverity,omitempty"`
	Severities      map[string]int   `json:"severities"`
	Packages        int              `json:"packages"`
	Direct          int              `json:"direct"`
	Transitive      int              `json:"transitive"`
	AutoFix         int              `json:"autoFix"`
	NoFix           int              `json:"noFix"`
	Upgrades        int              `json:"upgrades"`
	Breaking        int              `json:"breaking"`
	TotalAdvisories int              `json:"totalVulnerabilities"`
	Dependencies    int              `json:"totalDependencies"`
	Top             []packageSummary `json:"top,omitempty"`
	Gate            *gateSummary     `json:"gate,omitempty"`
	NextSteps       []string         `json:"next_steps"`
}

type packageSummary struct {
	Name     string           `json:"name"`
	Severity finding.Severity `json:"severity"`
	Direct   bool             `json:"direct"`
	Fix      string           `json:"fix"`
}

type gateSummary struct {
	Policy   string   `json:"policy"`
	Pass     bool     `json:"pass"`
	ExitCode int      `json:"exit_code"`
	Failures []string `json:"failures,omitempty"`
	Ignored  int      `json:"ignored"`
}

func newGateSummary(r policy.Result) *gateSummary {
	return &gateSummary{
		Policy:   r.PolicyName,
		Pass:     r.Pass,
		ExitCode: r.ExitCode,
		Failures: r.Failures,
		Ignored:  r.Summary.Ignored,
	}
}

// topPackages caps the package list in summaries to keep responses small.
const topPackages = 10

func (s *Server) handleSummarize(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args auditArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(err.Error()), nil
	}
	doc, gate, err := s.assemble(ctx, args)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(buildSummary(doc, gate))
}

func buildSummary(doc *report.Document, gate *policy.Result) auditSummary {
	c := doc.Counts
	sum := auditSummary{
		ID:              doc.ID,
		Title:           doc.Title,
		Clean:           doc.Clean,
		Highest:         c.Highest(),
		Severities:      make(map[string]int, len(c.Severity.Slices)),
		Packages:        c.Listed,
		Direct:          c.Direct,
		Transitive:      c.Indirect,
		AutoFix:         c.AutoFix,
		NoFix:           c.NoFix,
		Upgrades:        c.ObjectFix,
		Breaking:        c.Breaking,
		TotalAdvisories: c.TotalVulnerabilities,
		Dependencies:    c.TotalDependencies,
	}
	for _, sl := range c.Severity.Slices {
		sum.Severities[sl.Key] = sl.Value
	}
	for i, v := range doc.Vulnerabilities {
		if i == topPackages {
			break
		}
		sum.Top = append(sum.Top, packageSummary{
			Name:     v.Name,
			Severity: v.Severity,
			Direct:   v.IsDirect,
			Fix:      v.FixAvailable.Kind.String(),
		})
	}
	if gate != nil {
		sum.Gate = newGateSummary(*gate)
	}
	sum.NextSteps = nextSteps(sum)
	return sum
}

func nextSteps(s auditSummary) []string {
	if s.Clean {
		return []string{"No vulnerabilities found. Nothing to do."}
	}
	var steps []string
	if s.AutoFix > 0 {
		steps = append(steps, fmt.Sprintf("Run `npm audit fix` to resolve %d package(s) without breaking changes.", s.AutoFix))
	}
	if s.Breaking > 0 {
		steps = append(steps, fmt.Sprintf("%d upgrade(s) cross a major version; review them before `npm audit fix --force`.", s.Breaking))
	}
	if s.NoFix > 0 {
		steps = append(steps, fmt.Sprintf("%d package(s) have no fix; consider replacing them or adding a policy ignore with a reason.", s.NoFix))
	}
	if s.Gate != nil && !s.Gate.Pass {
		steps = append(steps, fmt.Sprintf("The %s policy fails this build (exit code %d).", s.Gate.Policy, s.Gate.ExitCode))
	}
	steps = append(steps, "Call render_audit_report for the full per-package breakdown.")
	return steps
}

// ---------------------------------------------------------------------------
// list_templates
// ---------------------------------------------------------------------------

func (s *Server) addListTemplatesTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:        "list_templates",
			Title:       "List Templates",
			Description: "List built-in gate policies, report configs and output templates. Pass a policy name to the 'policy' argument of the other tools.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"kind": map[string]any{
						"type":        "string",
						"enum":        kindNames(),
						"description": "Restrict the listing to one category. Omit for all.",
					},
				},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:    true,
				IdempotentHint:  true,
				OpenWorldHint:   boolPtr(false),
				DestructiveHint: boolPtr(false),
			},
		},
		s.handleListTemplates,
	)
}

func kindNames() []string {
	names := make([]string, len(templateresolver.Kinds))
	for i, k := range templateresolver.Kinds {
		names[i] = string(k)
	}
	return names
}

func (s *Server) handleListTemplates(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Kind string `json:"kind"`
	}
	if err := parseArgs(req, &args); err != nil {
		return errorResult(err.Error()), nil
	}

	kinds := templateresolver.Kinds
	if args.Kind != "" {
		kinds = []templateresolver.Kind{templateresolver.Kind(args.Kind)}
	}
	out := make(map[string][]templateresolver.TemplateInfo, len(kinds))
	for _, k := range kinds {
		infos, err := templateresolver.ListCategory(k)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		out[string(k)] = infos
	}
	return jsonResult(out)
}
