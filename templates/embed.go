// Package templates embeds all bundled template files for distribution.
//
// This ensures templates are available regardless of installation method.
// The CLI falls back to these embedded templates when no on-disk templates
// directory exists.
//
// Usage:
//
//	data, _ := templates.FS.ReadFile("policies/strict.yaml")
package templates

import "embed"

// FS contains all bundled template files (gate policies, HTML report
// configs and text/template output formats). Subdirectory structure
// matches the on-disk templates/ layout minus this Go file.
//
//go:embed policies/*.yaml output/*.tmpl report-configs/*.yaml
var FS embed.FS
