// Package defaults provides canonical default values for auditview.
// This is the single source of truth for runtime configuration defaults.
//
// Usage:
//
//	srv := server.New(server.Config{Addr: defaults.ServeAddr})
//	w.Header().Set("Content-Type", defaults.ContentTypeHTML)
//
// Do not hardcode limits such as `MaxBody: 1 << 20` anywhere.
// Reference the appropriate constant from this package instead.
package defaults

import "time"

// Version is the current auditview version
const Version = "1.3.0"

// ToolName is the name used in banners, MCP implementation info and user agents.
const ToolName = "auditview"

// ============================================================================
// INPUT LIMITS
// ============================================================================
//
// Audit documents for large monorepos reach a few megabytes.
// ============================================================================

const (
	// MaxAuditBytes caps the size of an audit document read from disk,
	// stdin or an HTTP body (16 MiB)
	MaxAuditBytes = 16 * 1024 * 1024

	// MaxManifestBytes caps the size of a package.json (1 MiB)
	MaxManifestBytes = 1 * 1024 * 1024
)

// ============================================================================
// CONTENT TYPES
// ============================================================================

const (
	// ContentTypeJSON is for JSON request/response bodies
	ContentTypeJSON = "application/json"

	// ContentTypeHTML is for rendered reports
	ContentTypeHTML = "text/html; charset=utf-8"

	// ContentTypeMarkdown is for Markdown reports
	ContentTypeMarkdown = "text/markdown; charset=utf-8"

	// ContentTypeCSV is for CSV exports
	ContentTypeCSV = "text/csv; charset=utf-8"

	// ContentTypePDF is for PDF exports
	ContentTypePDF = "application/pdf"
)

// ============================================================================
// SERVER SETTINGS
// ============================================================================

const (
	// ServeAddr is the default listen address for `auditview serve`
	ServeAddr = "127.0.0.1:8089"

	// MetricsAddr is the default listen address for the Prometheus endpoint
	MetricsAddr = ":9090"

	// ReadHeaderTimeout bounds slow-loris style header reads
	ReadHeaderTimeout = 5 * time.Second

	// WriteTimeout bounds report rendering plus transfer
	WriteTimeout = 30 * time.Second

	// ShutdownTimeout is the grace period for in-flight requests
	ShutdownTimeout = 10 * time.Second

	// RateLimitPerSecond is the sustained request rate per server
	RateLimitPerSecond = 20

	// RateLimitBurst is the token bucket size
	RateLimitBurst = 40
)

// ============================================================================
// PDF SETTINGS
// ============================================================================

const (
	// PrintTimeout bounds a headless browser print of one report
	PrintTimeout = 60 * time.Second
)

// ============================================================================
// TEMPLATE DIRECTORIES
// ============================================================================
//
// On-disk overrides for the bundled templates. Missing directories fall
// back to the copies embedded in the binary.
// ============================================================================

const (
	// TemplateDir is the root of on-disk templates
	TemplateDir = "./templates"

	// PolicyDir holds CI gate policies
	PolicyDir = TemplateDir + "/policies"

	// ReportConfigDir holds HTML report configurations
	ReportConfigDir = TemplateDir + "/report-configs"

	// OutputTemplateDir holds text/template output formats
	OutputTemplateDir = TemplateDir + "/output"

	// TemplateDirEnv overrides TemplateDir
	TemplateDirEnv = "AUDITVIEW_TEMPLATE_DIR"
)

// ============================================================================
// HOOK SETTINGS
// ============================================================================

const (
	// HookTimeout bounds one webhook delivery or collector connection
	HookTimeout = 10 * time.Second

	// HookShutdown is the grace period for flushing hooks on exit
	HookShutdown = 5 * time.Second

	// HookRetries is the number of webhook delivery attempts
	HookRetries = 3

	// OTelEndpoint is the default OTLP gRPC collector address
	OTelEndpoint = "localhost:4317"
)
