package writers

import (
	"context"
	"io"

	"github.com/auditview/auditview/pkg/defaults"
	"github.com/auditview/auditview/pkg/report"
)

// Compile-time interface check.
var _ Writer = (*HTMLWriter)(nil)

// HTMLWriter writes the standalone report page.
type HTMLWriter struct {
	gen *report.HTMLGenerator
}

// NewHTMLWriter validates cfg and builds the page generator. A nil cfg
// selects report.DefaultTemplateConfig.
func NewHTMLWriter(cfg *report.TemplateConfig) (*HTMLWriter, error) {
	gen, err := report.NewHTMLGenerator(cfg)
	if err != nil {
		return nil, err
	}
	return &HTMLWriter{gen: gen}, nil
}

func (hw *HTMLWriter) Write(_ context.Context, w io.Writer, doc *report.Document) error {
	page, err := hw.gen.Generate(doc)
	if err != nil {
		return err
	}
	_, err = w.Write(page)
	return err
}

func (hw *HTMLWriter) Format() string      { return "html" }
func (hw *HTMLWriter) ContentType() string { return defaults.ContentTypeHTML }
func (hw *HTMLWriter) Extension() string   { return ".html" }
