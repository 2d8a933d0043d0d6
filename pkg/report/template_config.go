package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/auditview/auditview/pkg/audit"
)

// ErrInvalidConfig wraps every template configuration failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// ChartJSURL is the Chart.js build the page loads by default.
const ChartJSURL = "https://cdn.jsdelivr.net/npm/chart.js@4.2.1/dist/chart.umd.min.js"

// TemplateConfig defines customizable report settings. It is loaded from
// YAML so teams can keep one file per repository or per pipeline.
type TemplateConfig struct {
	// Name is the configuration identifier (e.g., "default", "minimal")
	Name string `yaml:"name" json:"name"`

	// Version is the config version for compatibility
	Version string `yaml:"version" json:"version"`

	Branding BrandingConfig `yaml:"branding" json:"branding"`
	Layout   LayoutConfig   `yaml:"layout" json:"layout"`
	Sections SectionConfig  `yaml:"sections" json:"sections"`
	Styling  StylingConfig  `yaml:"styling" json:"styling"`
	Charts   ChartsConfig   `yaml:"charts" json:"charts"`
	Export   ExportConfig   `yaml:"export" json:"export"`
}

// BrandingConfig holds page identity settings.
type BrandingConfig struct {
	// Title heads the page; the application name is appended
	Title string `yaml:"title" json:"title"`

	// AppName overrides the name read from package.json
	AppName string `yaml:"app_name" json:"app_name"`

	// FooterText appears at the bottom of the page
	FooterText string `yaml:"footer_text" json:"footer_text"`

	// ShowPoweredBy shows "Generated by auditview" if true
	ShowPoweredBy bool `yaml:"show_powered_by" json:"show_powered_by"`
}

// LayoutConfig controls ordering and theme.
type LayoutConfig struct {
	// Theme can be "light", "dark", or "auto" (follows system)
	Theme string `yaml:"theme" json:"theme"`

	// SortBy can be "severity" or "direct"
	SortBy string `yaml:"sort_by" json:"sort_by"`

	// DirectFirst puts direct dependencies first when SortBy is "direct"
	DirectFirst bool `yaml:"direct_first" json:"direct_first"`
}

// SectionConfig enables or disables report sections.
type SectionConfig struct {
	Header    bool `yaml:"header" json:"header"`
	Charts    bool `yaml:"charts" json:"charts"`
	Summary   bool `yaml:"summary" json:"summary"`
	Details   bool `yaml:"details" json:"details"`
	Footnotes bool `yaml:"footnotes" json:"footnotes"`
}

// StylingConfig points the page at an external stylesheet. Without one the
// bundled stylesheet is inlined.
type StylingConfig struct {
	StylesheetURL string `yaml:"stylesheet_url" json:"stylesheet_url"`
	CustomCSS     string `yaml:"custom_css" json:"custom_css"`
}

// ChartsConfig customizes chart rendering.
type ChartsConfig struct {
	// ChartJSURL is the script URL for Chart.js
	ChartJSURL string `yaml:"chartjs_url" json:"chartjs_url"`

	// AnimationDuration in milliseconds (0 disables)
	AnimationDuration int `yaml:"animation_duration" json:"animation_duration"`
}

// ExportConfig sets default export behavior.
type ExportConfig struct {
	// DefaultFormat is used when -format is not given
	DefaultFormat string `yaml:"default_format" json:"default_format"`

	// AllowedFormats restricts the formats the server will produce
	AllowedFormats []string `yaml:"allowed_formats" json:"allowed_formats"`
}

// Formats lists every output format auditview can produce.
var Formats = []string{"html", "json", "markdown", "csv", "pdf", "browser-pdf", "template"}

// DefaultTemplateConfig returns the default configuration.
func DefaultTemplateConfig() *TemplateConfig {
	return &TemplateConfig{
		Name:    "default",
		Version: "1.0",
		Branding: BrandingConfig{
			Title:         DefaultTitle,
			ShowPoweredBy: true,
		},
		Layout: LayoutConfig{
			Theme:  "light",
			SortBy: string(audit.SortSeverity),
		},
		Sections: SectionConfig{
			Header:    true,
			Charts:    true,
			Summary:   true,
			Details:   true,
			Footnotes: true,
		},
		Charts: ChartsConfig{
			ChartJSURL:        ChartJSURL,
			AnimationDuration: 400,
		},
		Export: ExportConfig{
			DefaultFormat:  "html",
			AllowedFormats: []string{"html", "json", "markdown", "csv", "pdf"},
		},
	}
}

// MinimalTemplateConfig returns a configuration without charts or
// footnotes, suited to mail and PDF output.
func MinimalTemplateConfig() *TemplateConfig {
	cfg := DefaultTemplateConfig()
	cfg.Name = "minimal"
	cfg.Sections.Charts = false
	cfg.Sections.Footnotes = false
	cfg.Branding.ShowPoweredBy = false
	cfg.Charts.AnimationDuration = 0
	return cfg
}

// LoadTemplateConfig loads a template configuration from a YAML file.
// Keys missing from the file keep their default values.
func LoadTemplateConfig(path string) (*TemplateConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseTemplateConfig(data)
}

// ParseTemplateConfig decodes YAML over DefaultTemplateConfig.
func ParseTemplateConfig(data []byte) (*TemplateConfig, error) {
	cfg := DefaultTemplateConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// SaveTemplateConfig writes a template configuration to a YAML file.
func SaveTemplateConfig(cfg *TemplateConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// MergeConfig merges a partial config into base. Non-empty strings and
// slices in override win. Sections come from override unconditionally:
// LoadTemplateConfig decodes over the defaults, so every section flag in a
// loaded override is already either explicit or default.
func MergeConfig(base, override *TemplateConfig) *TemplateConfig {
	if override == nil {
		return base
	}

	if override.Name != "" {
		base.Name = override.Name
	}
	if override.Version != "" {
		base.Version = override.Version
	}

	if override.Branding.Title != "" {
		base.Branding.Title = override.Branding.Title
	}
	if override.Branding.AppName != "" {
		base.Branding.AppName = override.Branding.AppName
	}
	if override.Branding.FooterText != "" {
		base.Branding.FooterText = override.Branding.FooterText
	}

	if override.Layout.Theme != "" {
		base.Layout.Theme = override.Layout.Theme
	}
	if override.Layout.SortBy != "" {
		base.Layout.SortBy = override.Layout.SortBy
		base.Layout.DirectFirst = override.Layout.DirectFirst
	}

	base.Sections = override.Sections

	if override.Styling.StylesheetURL != "" {
		base.Styling.StylesheetURL = override.Styling.StylesheetURL
	}
	if override.Styling.CustomCSS != "" {
		base.Styling.CustomCSS = override.Styling.CustomCSS
	}

	if override.Charts.ChartJSURL != "" {
		base.Charts.ChartJSURL = override.Charts.ChartJSURL
	}
	if override.Charts.AnimationDuration != 0 {
		base.Charts.AnimationDuration = override.Charts.AnimationDuration
	}

	if override.Export.DefaultFormat != "" {
		base.Export.DefaultFormat = override.Export.DefaultFormat
	}
	if len(override.Export.AllowedFormats) > 0 {
		base.Export.AllowedFormats = override.Export.AllowedFormats
	}
	return base
}

// Order returns the sort order the configuration selects. It assumes the
// config passed ValidateConfig.
func (c *TemplateConfig) Order() audit.Order {
	key, err := audit.ParseSortKey(c.Layout.SortBy)
	if err != nil {
		key = audit.SortSeverity
	}
	return audit.Order{Key: key, Descending: c.Layout.DirectFirst}
}

// ValidateConfig checks configuration for errors and returns descriptive
// validation errors instead of silently correcting values.
func ValidateConfig(cfg *TemplateConfig) error {
	var errs []string

	switch cfg.Layout.Theme {
	case "light", "dark", "auto":
	default:
		errs = append(errs, fmt.Sprintf("invalid theme %q: must be light, dark, or auto", cfg.Layout.Theme))
	}

	if _, err := audit.ParseSortKey(cfg.Layout.SortBy); err != nil {
		errs = append(errs, fmt.Sprintf("invalid sort_by %q: must be severity or direct", cfg.Layout.SortBy))
	}

	if cfg.Charts.AnimationDuration < 0 {
		errs = append(errs, fmt.Sprintf("invalid animation_duration %d: must not be negative", cfg.Charts.AnimationDuration))
	}

	if cfg.Sections.Charts && cfg.Charts.ChartJSURL == "" {
		errs = append(errs, "charts are enabled but chartjs_url is empty")
	}

	if cfg.Export.DefaultFormat != "" && !slices.Contains(Formats, cfg.Export.DefaultFormat) {
		errs = append(errs, fmt.Sprintf("invalid default_format %q: must be one of %s", cfg.Export.DefaultFormat, strings.Join(Formats, ", ")))
	}
	for _, f := range cfg.Export.AllowedFormats {
		if !slices.Contains(Formats, f) {
			errs = append(errs, fmt.Sprintf("invalid allowed format %q", f))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: template config validation: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}
