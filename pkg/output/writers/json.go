package writers

import (
	"context"
	"io"
	"strings"

	"github.com/auditview/auditview/pkg/defaults"
	"github.com/auditview/auditview/pkg/jsonutil"
	"github.com/auditview/auditview/pkg/report"
)

// Compile-time interface check.
var _ Writer = (*JSONWriter)(nil)

// JSONConfig configures the JSON writer.
type JSONConfig struct {
	// Pretty enables indented output.
	Pretty bool

	// IndentSize sets the number of spaces per level (default 2).
	IndentSize int

	// SummaryOnly drops the vulnerability list and keeps counts and charts.
	SummaryOnly bool
}

// JSONWriter writes the document as one JSON object. Fix and via fields
// keep npm's wire shapes.
type JSONWriter struct {
	cfg JSONConfig
}

// NewJSONWriter creates a JSON writer.
func NewJSONWriter(cfg JSONConfig) *JSONWriter {
	if cfg.IndentSize == 0 {
		cfg.IndentSize = 2
	}
	return &JSONWriter{cfg: cfg}
}

func (jw *JSONWriter) Write(_ context.Context, w io.Writer, doc *report.Document) error {
	out := doc
	if jw.cfg.SummaryOnly {
		trimmed := *doc
		trimmed.Vulnerabilities = nil
		out = &trimmed
	}
	enc := jsonutil.NewStreamEncoder(w)
	if jw.cfg.Pretty {
		enc.SetIndent("", strings.Repeat(" ", jw.cfg.IndentSize))
	}
	return enc.Encode(out)
}

func (jw *JSONWriter) Format() string      { return "json" }
func (jw *JSONWriter) ContentType() string { return defaults.ContentTypeJSON }
func (jw *JSONWriter) Extension() string   { return ".json" }
