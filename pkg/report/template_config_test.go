package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditview/auditview/pkg/audit"
)

func TestDefaultTemplateConfigIsValid(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateConfig(DefaultTemplateConfig()))
	require.NoError(t, ValidateConfig(MinimalTemplateConfig()))
	assert.Equal(t, audit.DefaultOrder, DefaultTemplateConfig().Order())
}

func TestParseTemplateConfigKeepsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := ParseTemplateConfig([]byte(`
name: ci
layout:
  sort_by: direct
  direct_first: true
sections:
  charts: false
`))
	require.NoError(t, err)
	assert.Equal(t, "ci", cfg.Name)
	assert.Equal(t, audit.Order{Key: audit.SortDirect, Descending: true}, cfg.Order())
	assert.False(t, cfg.Sections.Charts)
	assert.True(t, cfg.Sections.Summary, "unset keys keep defaults")
	assert.Equal(t, ChartJSURL, cfg.Charts.ChartJSURL)
	assert.Equal(t, DefaultTitle, cfg.Branding.Title)
}

func TestParseTemplateConfigInvalidYAML(t *testing.T) {
	t.Parallel()

	_, err := ParseTemplateConfig([]byte("layout: [unterminated"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSaveAndLoadTemplateConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "report.yaml")
	cfg := MinimalTemplateConfig()
	cfg.Branding.FooterText = "Platform team"
	require.NoError(t, SaveTemplateConfig(cfg, path))

	_, err := os.Stat(path)
	require.NoError(t, err)

	loaded, err := LoadTemplateConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestMergeConfig(t *testing.T) {
	t.Parallel()

	base := DefaultTemplateConfig()
	override := &TemplateConfig{
		Branding: BrandingConfig{Title: "Dependency Audit", AppName: "web"},
		Layout:   LayoutConfig{SortBy: "direct", DirectFirst: true},
		Sections: SectionConfig{Summary: true, Details: true},
		Export:   ExportConfig{AllowedFormats: []string{"html"}},
	}
	merged := MergeConfig(base, override)

	assert.Equal(t, "Dependency Audit", merged.Branding.Title)
	assert.Equal(t, "web", merged.Branding.AppName)
	assert.Equal(t, "light", merged.Layout.Theme, "empty override keeps base")
	assert.True(t, merged.Layout.DirectFirst)
	assert.False(t, merged.Sections.Charts)
	assert.Equal(t, []string{"html"}, merged.Export.AllowedFormats)
	assert.Equal(t, ChartJSURL, merged.Charts.ChartJSURL)

	assert.Same(t, base, MergeConfig(base, nil))
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*TemplateConfig)
		want   string
	}{
		{"theme", func(c *TemplateConfig) { c.Layout.Theme = "neon" }, "invalid theme"},
		{"sort", func(c *TemplateConfig) { c.Layout.SortBy = "name" }, "invalid sort_by"},
		{"animation", func(c *TemplateConfig) { c.Charts.AnimationDuration = -1 }, "animation_duration"},
		{"chartjs", func(c *TemplateConfig) { c.Charts.ChartJSURL = "" }, "chartjs_url"},
		{"format", func(c *TemplateConfig) { c.Export.DefaultFormat = "docx" }, "invalid default_format"},
		{"allowed", func(c *TemplateConfig) { c.Export.AllowedFormats = []string{"xml"} }, "invalid allowed format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultTemplateConfig()
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Contains(t, err.Error(), "template config validation")
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
