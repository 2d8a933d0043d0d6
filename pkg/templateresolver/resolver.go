// Package templateresolver resolves template references to file paths or embedded content.
//
// It implements a resolution chain: explicit path → on-disk defaults directory →
// AUDITVIEW_TEMPLATE_DIR env var → embedded FS fallback.
// Policies, report configs and output templates are therefore always
// available, however auditview was installed.
//
// Usage:
//
//	result, err := templateresolver.Resolve("strict", templateresolver.KindPolicy)
//	if err != nil { ... }
//	defer result.Content.Close()
//	data, _ := io.ReadAll(result.Content)
package templateresolver

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/auditview/auditview/pkg/defaults"
	"github.com/auditview/auditview/templates"
)

// ErrNotFound is returned when no source in the chain has the template.
var ErrNotFound = errors.New("templateresolver: template not found")

// containsTraversal reports whether a template reference attempts directory traversal.
func containsTraversal(value string) bool {
	for _, part := range strings.FieldsFunc(value, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return true
		}
	}
	return false
}

// Kind identifies the template category for resolution.
type Kind string

const (
	// KindPolicy resolves CI gate policies from policies/.
	KindPolicy Kind = "policies"

	// KindReportConfig resolves HTML report configs from report-configs/.
	KindReportConfig Kind = "report-configs"

	// KindOutputFormat resolves Go text/template files from output/.
	KindOutputFormat Kind = "output"
)

// Kinds lists every category in display order.
var Kinds = []Kind{KindPolicy, KindReportConfig, KindOutputFormat}

// extensions maps each Kind to its expected file extension.
var extensions = map[Kind]string{
	KindPolicy:       ".yaml",
	KindReportConfig: ".yaml",
	KindOutputFormat: ".tmpl",
}

// diskDirs maps each Kind to its on-disk directory from defaults.
var diskDirs = map[Kind]string{
	KindPolicy:       defaults.PolicyDir,
	KindReportConfig: defaults.ReportConfigDir,
	KindOutputFormat: defaults.OutputTemplateDir,
}

// Result holds a resolved template's content and metadata.
type Result struct {
	// Source describes where the template was found (e.g. "embedded:policies/strict.yaml", "disk:/path").
	Source string

	// Content is a ReadCloser for the template data. Caller must close it.
	Content io.ReadCloser
}

// validKind reports whether kind is a recognized template category.
func validKind(kind Kind) bool {
	_, ok := extensions[kind]
	return ok
}

// locateResult describes where a template was found during resolution.
type locateResult struct {
	source   string // e.g. "disk:/path", "env:/path", "embedded:rel"
	diskPath string // non-empty for disk/env sources
	rel      string // relative path in embedded FS
}

func locate(value string, kind Kind) (*locateResult, error) {
	if value == "" {
		return nil, fmt.Errorf("templateresolver: empty template reference")
	}
	if !validKind(kind) {
		return nil, fmt.Errorf("templateresolver: unknown kind %q", kind)
	}

	// Anything that looks like a path is taken as one.
	if strings.ContainsAny(value, "/\\") {
		return &locateResult{source: "disk:" + value, diskPath: value}, nil
	}
	if containsTraversal(value) {
		return nil, fmt.Errorf("templateresolver: path traversal not allowed: %q", value)
	}

	name := value
	if ext := extensions[kind]; !strings.HasSuffix(name, ext) {
		name += ext
	}
	rel := string(kind) + "/" + name

	// 1. On-disk directory from defaults
	diskPath := filepath.Join(diskDirs[kind], name)
	if _, err := os.Stat(diskPath); err == nil {
		return &locateResult{source: "disk:" + diskPath, diskPath: diskPath, rel: rel}, nil
	}

	// 2. AUDITVIEW_TEMPLATE_DIR
	if envDir := os.Getenv(defaults.TemplateDirEnv); envDir != "" {
		envPath := filepath.Join(envDir, string(kind), name)
		if _, err := os.Stat(envPath); err == nil {
			return &locateResult{source: "env:" + envPath, diskPath: envPath, rel: rel}, nil
		}
	}

	// 3. Embedded FS
	if f, err := templates.FS.Open(rel); err == nil {
		f.Close()
		return &locateResult{source: "embedded:" + rel, rel: rel}, nil
	}

	return nil, fmt.Errorf("%w: %q (kind=%s): tried disk, env, embedded", ErrNotFound, value, kind)
}

// Resolve resolves a template reference to its content.
//
// The value parameter can be:
//   - A filesystem path (contains / or \) → read from disk
//   - A short name (e.g. "strict") → look up via resolution chain
//   - A filename with extension (e.g. "strict.yaml") → same resolution chain
func Resolve(value string, kind Kind) (*Result, error) {
	loc, err := locate(value, kind)
	if err != nil {
		return nil, err
	}

	if loc.diskPath != "" {
		f, openErr := os.Open(loc.diskPath)
		if openErr != nil {
			return nil, fmt.Errorf("templateresolver: opening %q: %w", loc.diskPath, openErr)
		}
		return &Result{Source: loc.source, Content: f}, nil
	}

	data, openErr := templates.FS.Open(loc.rel)
	if openErr != nil {
		return nil, fmt.Errorf("templateresolver: opening embedded %q: %w", loc.rel, openErr)
	}
	return &Result{Source: loc.source, Content: data}, nil
}

// ReadFile resolves a template and returns its bytes along with its source.
func ReadFile(value string, kind Kind) ([]byte, string, error) {
	res, err := Resolve(value, kind)
	if err != nil {
		return nil, "", err
	}
	defer res.Content.Close()
	data, err := io.ReadAll(res.Content)
	if err != nil {
		return nil, "", fmt.Errorf("templateresolver: reading %s: %w", res.Source, err)
	}
	return data, res.Source, nil
}

// TemplateInfo holds metadata about a single template.
type TemplateInfo struct {
	// Name is the short name (e.g. "strict", "summary").
	Name string `json:"name"`

	// Path is the relative path within the embedded FS (e.g. "policies/strict.yaml").
	Path string `json:"path"`

	// Kind is the template category.
	Kind Kind `json:"kind"`
}

// ListCategory returns metadata for all templates in a category from the embedded FS.
func ListCategory(kind Kind) ([]TemplateInfo, error) {
	if !validKind(kind) {
		return nil, fmt.Errorf("templateresolver: unknown kind %q", kind)
	}

	infos := make([]TemplateInfo, 0)
	err := fs.WalkDir(templates.FS, string(kind), func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		infos = append(infos, TemplateInfo{
			Name: strings.TrimSuffix(base, filepath.Ext(base)),
			Path: path,
			Kind: kind,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("templateresolver: listing %s: %w", kind, err)
	}
	return infos, nil
}
