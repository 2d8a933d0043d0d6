package writers

import (
	"context"
	"io"

	"github.com/auditview/auditview/pkg/defaults"
	"github.com/auditview/auditview/pkg/report"
)

// Compile-time interface check.
var _ Writer = (*BrowserPDFWriter)(nil)

// HTMLPrinter turns a rendered page into PDF bytes. printpdf.Printer
// implements it.
type HTMLPrinter interface {
	Print(ctx context.Context, html []byte) ([]byte, error)
}

// BrowserPDFWriter renders the HTML page and prints it in a browser, so
// the PDF keeps the charts the native writer cannot draw.
type BrowserPDFWriter struct {
	gen     *report.HTMLGenerator
	printer HTMLPrinter
}

// NewBrowserPDFWriter creates a browser PDF writer. Chart animation is
// turned off so the print captures the final frame.
func NewBrowserPDFWriter(cfg *report.TemplateConfig, printer HTMLPrinter) (*BrowserPDFWriter, error) {
	if cfg == nil {
		cfg = report.DefaultTemplateConfig()
	}
	printCfg := *cfg
	printCfg.Charts.AnimationDuration = 0
	gen, err := report.NewHTMLGenerator(&printCfg)
	if err != nil {
		return nil, err
	}
	return &BrowserPDFWriter{gen: gen, printer: printer}, nil
}

func (bw *BrowserPDFWriter) Write(ctx context.Context, w io.Writer, doc *report.Document) error {
	page, err := bw.gen.Generate(doc)
	if err != nil {
		return err
	}
	pdf, err := bw.printer.Print(ctx, page)
	if err != nil {
		return err
	}
	_, err = w.Write(pdf)
	return err
}

func (bw *BrowserPDFWriter) Format() string      { return "browser-pdf" }
func (bw *BrowserPDFWriter) ContentType() string { return defaults.ContentTypePDF }
func (bw *BrowserPDFWriter) Extension() string   { return ".pdf" }
