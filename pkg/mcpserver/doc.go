// Package mcpserver exposes auditview as a Model Context Protocol (MCP)
// server, so AI assistants can turn `npm audit --json` output into reports
// and gate verdicts inside a conversation.
//
// # Capabilities
//
//   - Tools:     render_audit_report, summarize_audit, list_templates
//   - Resources: auditview://version, auditview://policies/{name}
//   - Prompts:   triage_audit
//
// Every tool is read-only and idempotent: the same audit always renders the
// same report with the same report ID.
//
// # Transports
//
//   - stdio: communicates over stdin/stdout (default). Used by IDE integrations.
//   - HTTP:  streamable HTTP. Used for remote/Docker deployments.
//
// # Usage
//
//	srv, err := mcpserver.New(&mcpserver.Config{Pipeline: p})
//	err = srv.RunStdio(ctx)
package mcpserver
