// Package report renders a parsed npm audit into an HTML report.
//
// The package is organized by logical concern across multiple files:
//
// # Formatting (format.go)
//
// Badge, Detail, CWEs, AdvisoryID, FormatScore, Anchor. Small pure helpers
// that turn classified fields into display values. The Markdown, CSV and
// PDF writers reuse them so every format words things the same way.
//
// # Sections (sections.go, templates/sections.html)
//
// Renderer builds the two report sections from a normalized list: the
// summary table and the per-package detail view. Every transitive name
// links to its own detail block; names with no block in the report render
// as plain text.
//
// # Document Assembly (document.go, app.go)
//
// Assembler runs normalize, aggregate and render and returns a Document:
// the immutable view-model for one report. Application metadata is
// optional and its absence only drops the header block.
//
// # Pages (page.go, templates/page.html, templates/error.html)
//
// HTMLGenerator renders a Document into a standalone page with Chart.js
// doughnuts, and renders the failure page shown when npm could not audit.
//
// # Template Configuration (template_config.go)
//
// TemplateConfig, BrandingConfig, LayoutConfig, SectionConfig.
// Section visibility, ordering and styling via YAML configuration files.
package report
