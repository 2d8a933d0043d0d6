package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerPrompts() {
	s.addTriagePrompt()
}

// ═══════════════════════════════════════════════════════════════════════════
// triage_audit: summarize, gate, then plan fixes
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addTriagePrompt() {
	s.mcp.AddPrompt(
		&mcp.Prompt{
			Name:        "triage_audit",
			Description: "Triage an npm audit: summarize it, check it against a gate policy and produce a prioritized fix plan.",
			Arguments: []*mcp.PromptArgument{
				{Name: "policy", Description: "Gate policy to check against: permissive, standard (default) or strict", Required: false},
				{Name: "app_name", Description: "Application name for the report title", Required: false},
			},
		},
		func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			pol := req.Params.Arguments["policy"]
			if pol == "" {
				pol = "standard"
			}
			app := req.Params.Arguments["app_name"]
			appArg := ""
			if app != "" {
				appArg = fmt.Sprintf(" and app_name %q", app)
			}

			return &mcp.GetPromptResult{
				Description: fmt.Sprintf("Triage npm audit against the %s policy", pol),
				Messages: []*mcp.PromptMessage{
					{
						Role: "user",
						Content: &mcp.TextContent{
							Text: fmt.Sprintf(`Triage the npm audit results for this project.

## Step 1: Collect
If I have not pasted it yet, ask me for the output of `+"`npm audit --json`"+`.

## Step 2: Summarize
Call summarize_audit with the audit, policy %q%s.
Report the highest severity, the direct vs transitive split and whether the gate passes.

## Step 3: Read the policy
Read auditview://policies/%s and explain which thresholds the audit breaks.

## Step 4: Plan
Call render_audit_report with format "markdown" and build a fix plan:
1. Packages fixed by `+"`npm audit fix`"+` (safe, do first)
2. Upgrades that cross a major version (list the target version and what may break)
3. Packages with no fix (suggest replacements or a documented policy ignore)

Keep the plan short. Lead with whatever makes the %s gate fail.`,
								pol, appArg, pol, pol),
						},
					},
				},
			}, nil
		},
	)
}
