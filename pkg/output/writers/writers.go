// Package writers renders assembled report documents into output formats.
package writers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/auditview/auditview/pkg/report"
)

// ErrUnknownFormat is returned by New for format names it does not know.
var ErrUnknownFormat = errors.New("writers: unknown format")

// Writer renders one document. Implementations are stateless between calls
// and safe for concurrent use.
type Writer interface {
	Write(ctx context.Context, w io.Writer, doc *report.Document) error
	Format() string
	ContentType() string
	Extension() string
}

// Config carries the per-format settings New passes on. Zero values select
// each writer's defaults.
type Config struct {
	HTML     *report.TemplateConfig
	JSON     JSONConfig
	Markdown MarkdownConfig
	CSV      CSVOptions
	PDF      PDFConfig
	Template TemplateConfig

	// Printer is required for "browser-pdf".
	Printer HTMLPrinter
}

// New returns the writer for a format name as listed in report.Formats.
func New(format string, cfg Config) (Writer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "html", "":
		return NewHTMLWriter(cfg.HTML)
	case "json":
		return NewJSONWriter(cfg.JSON), nil
	case "markdown", "md":
		return NewMarkdownWriter(cfg.Markdown), nil
	case "csv":
		return NewCSVWriter(cfg.CSV), nil
	case "pdf":
		return NewPDFWriter(cfg.PDF), nil
	case "browser-pdf":
		if cfg.Printer == nil {
			return nil, fmt.Errorf("writers: browser-pdf needs a printer")
		}
		return NewBrowserPDFWriter(cfg.HTML, cfg.Printer)
	case "template":
		return NewTemplateWriter(cfg.Template)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}
