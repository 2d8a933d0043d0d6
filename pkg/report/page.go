package report

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"strings"
)

// GenericFailure is shown when the audit could not produce a report.
const GenericFailure = "Something went wrong, please try again after sometime."

// npmGlobalWarning is the prefix npm 7/8 on Windows prints in place of JSON
// when a deprecated global config flag is set.
const npmGlobalWarning = "npm WARN config global `--global`"

// WindowsNpmFix are the remediation steps shown for npmGlobalWarning.
var WindowsNpmFix = []string{
	"Set-ExecutionPolicy Unrestricted -Scope CurrentUser -Force",
	"npm install --global --production npm-windows-upgrade",
	"npm-windows-upgrade --npm-version latest",
	"Set-ExecutionPolicy RemoteSigned -Scope CurrentUser -Force",
}

type pageData struct {
	Doc        *Document
	Config     *TemplateConfig
	DefaultCSS template.CSS
	CustomCSS  template.CSS
}

type errorData struct {
	Title      string
	Message    string
	Cause      string
	Steps      []string
	DefaultCSS template.CSS
}

// HTMLGenerator renders a Document into a standalone HTML page.
type HTMLGenerator struct {
	page   *template.Template
	errors *template.Template
	config *TemplateConfig
	css    template.CSS
}

// NewHTMLGenerator parses the page templates. A nil config selects
// DefaultTemplateConfig.
func NewHTMLGenerator(cfg *TemplateConfig) (*HTMLGenerator, error) {
	if cfg == nil {
		cfg = DefaultTemplateConfig()
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	page, err := template.ParseFS(templateFS, "templates/page.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}
	errs, err := template.ParseFS(templateFS, "templates/error.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse error template: %w", err)
	}
	css, err := templateFS.ReadFile("templates/report.css")
	if err != nil {
		return nil, fmt.Errorf("failed to read stylesheet: %w", err)
	}
	return &HTMLGenerator{page: page, errors: errs, config: cfg, css: template.CSS(css)}, nil
}

// Config returns the configuration the generator renders with.
func (g *HTMLGenerator) Config() *TemplateConfig {
	return g.config
}

// Generate renders the full report page.
func (g *HTMLGenerator) Generate(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	data := pageData{
		Doc:        doc,
		Config:     g.config,
		DefaultCSS: g.css,
		CustomCSS:  template.CSS(g.config.Styling.CustomCSS),
	}
	if err := g.page.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.Bytes(), nil
}

// GenerateToFile writes the report page to a file.
func (g *HTMLGenerator) GenerateToFile(doc *Document, path string) error {
	html, err := g.Generate(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, html, 0o644)
}

// GenerateError renders the failure page shown in place of a report. cause
// is the raw failure text from npm or the decoder and may be empty.
func (g *HTMLGenerator) GenerateError(title, cause string) ([]byte, error) {
	if title == "" {
		title = g.config.Branding.Title
	}
	data := errorData{
		Title:      title,
		Message:    GenericFailure,
		Cause:      strings.TrimSpace(cause),
		DefaultCSS: g.css,
	}
	if NeedsWindowsNpmFix(cause) {
		data.Steps = WindowsNpmFix
	}
	var buf bytes.Buffer
	if err := g.errors.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute error template: %w", err)
	}
	return buf.Bytes(), nil
}

// NeedsWindowsNpmFix reports whether a failure is the known npm global
// config warning.
func NeedsWindowsNpmFix(cause string) bool {
	return strings.Contains(cause, npmGlobalWarning)
}
