package writers

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	gofpdf "github.com/go-pdf/fpdf"

	"github.com/auditview/auditview/pkg/audit"
	"github.com/auditview/auditview/pkg/defaults"
	"github.com/auditview/auditview/pkg/finding"
	"github.com/auditview/auditview/pkg/report"
)

// Compile-time interface check.
var _ Writer = (*PDFWriter)(nil)

// PDFConfig configures the native PDF writer.
type PDFConfig struct {
	// PageSize is "A4" or "Letter" (default: "A4").
	PageSize string

	// Author is written to the document properties.
	Author string
}

// PDFWriter lays the report out directly with fpdf. It needs no browser,
// so it has no charts; severity and dependency breakdowns are tables.
type PDFWriter struct {
	config     PDFConfig
	noCompress bool
}

// NewPDFWriter creates a PDF writer.
func NewPDFWriter(config PDFConfig) *PDFWriter {
	if config.PageSize == "" {
		config.PageSize = "A4"
	}
	return &PDFWriter{config: config}
}

func (pw *PDFWriter) Format() string      { return "pdf" }
func (pw *PDFWriter) ContentType() string { return defaults.ContentTypePDF }
func (pw *PDFWriter) Extension() string   { return ".pdf" }

// pdfDoc bundles the fpdf instance with per-document state.
type pdfDoc struct {
	pdf   *gofpdf.Fpdf
	tr    func(string) string
	links map[string]int
}

func (pw *PDFWriter) Write(_ context.Context, w io.Writer, doc *report.Document) error {
	pdf := gofpdf.New("P", "mm", pw.config.PageSize, "")
	pdf.SetCompression(!pw.noCompress)
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator(doc.ToolName+" "+doc.ToolVersion, true)
	if pw.config.Author != "" {
		pdf.SetAuthor(pw.config.Author, true)
	}
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")

	d := &pdfDoc{
		pdf:   pdf,
		tr:    pdf.UnicodeTranslatorFromDescriptor(""),
		links: make(map[string]int, len(doc.Vulnerabilities)),
	}
	for _, v := range doc.Vulnerabilities {
		d.links[v.Name] = pdf.AddLink()
	}

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(140, 140, 140)
		pdf.CellFormat(0, 6, d.tr(fmt.Sprintf("%s %s", doc.ToolName, doc.ToolVersion)), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	pdf.AddPage()
	d.addTitle(doc)
	d.addOverview(doc.Counts)
	d.addBreakdown("Vulnerabilities by severity", doc.Counts.Severity)
	d.addBreakdown("Dependencies", doc.Counts.Dependencies)

	if doc.Clean {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "B", 14)
		pdf.SetTextColor(22, 163, 74)
		pdf.CellFormat(0, 10, "Great! No vulnerabilities found.", "", 1, "C", false, 0, "")
	} else {
		pdf.AddPage()
		d.addSummaryTable(doc.Vulnerabilities)
		pdf.AddPage()
		d.addDetails(doc.Vulnerabilities)
		d.addFootnotes(doc.Footnotes)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to lay out PDF: %w", err)
	}
	return pdf.Output(w)
}

func (d *pdfDoc) heading(text string) {
	d.pdf.SetFont("Helvetica", "B", 14)
	d.pdf.SetTextColor(30, 41, 59)
	d.pdf.CellFormat(0, 10, d.tr(text), "", 1, "L", false, 0, "")
	d.pdf.Ln(1)
}

func (d *pdfDoc) addTitle(doc *report.Document) {
	pdf := d.pdf
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(30, 41, 59)
	pdf.MultiCell(0, 10, d.tr(doc.Title), "", "L", false)
	pdf.Ln(2)

	if doc.App != nil {
		pdf.SetFont("Helvetica", "", 11)
		pdf.SetTextColor(80, 80, 80)
		line := doc.App.Name
		if doc.App.Version != "" {
			line += " " + doc.App.Version
		}
		pdf.CellFormat(0, 6, d.tr(line), "", 1, "L", false, 0, "")
		if doc.App.Description != "" {
			pdf.SetFont("Helvetica", "I", 10)
			pdf.MultiCell(0, 5, d.tr(doc.App.Description), "", "L", false)
		}
	}
	pdf.Ln(6)
}

func (d *pdfDoc) addOverview(c audit.Counts) {
	d.heading("Overview")
	rows := [][2]string{
		{"Vulnerabilities", strconv.Itoa(c.TotalVulnerabilities)},
		{"Vulnerable packages", strconv.Itoa(c.Listed)},
		{"Direct / indirect", fmt.Sprintf("%d / %d", c.Direct, c.Indirect)},
		{"Fixable with npm audit fix", strconv.Itoa(c.AutoFix)},
		{"Needs --force", fmt.Sprintf("%d (%d breaking)", c.ObjectFix, c.Breaking)},
		{"No fix", strconv.Itoa(c.NoFix)},
		{"Fix unknown", strconv.Itoa(c.AnomalousFix)},
		{"Dependencies", fmt.Sprintf("%d (%d used)", c.TotalDependencies, c.PackagesUsed)},
	}
	d.pdf.SetFont("Helvetica", "", 10)
	for i, r := range rows {
		if i%2 == 0 {
			d.pdf.SetFillColor(245, 247, 250)
		} else {
			d.pdf.SetFillColor(255, 255, 255)
		}
		d.pdf.SetTextColor(60, 60, 60)
		d.pdf.CellFormat(80, 7, r[0], "1", 0, "L", true, 0, "")
		d.pdf.CellFormat(50, 7, r[1], "1", 1, "R", true, 0, "")
	}
	d.pdf.Ln(6)
}

func (d *pdfDoc) addBreakdown(title string, chart audit.Chart) {
	d.heading(fmt.Sprintf("%s (%d)", title, chart.Total))
	pdf := d.pdf
	pdf.SetFont("Helvetica", "", 10)
	for _, s := range chart.Slices {
		r, g, b := hexRGB(s.Color)
		pdf.SetFillColor(r, g, b)
		pdf.CellFormat(6, 7, "", "1", 0, "C", true, 0, "")
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(54, 7, " "+s.Label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, strconv.Itoa(s.Value), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(6)
}

func (d *pdfDoc) addSummaryTable(list []audit.Vulnerability) {
	d.heading("Vulnerable packages")
	pdf := d.pdf

	widths := []float64{60, 28, 18, 54, 26}
	headers := []string{"Package", "Severity", "Issues", "Depends on", "Fix"}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(30, 41, 59)
	pdf.SetTextColor(255, 255, 255)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, v := range list {
		pdf.SetTextColor(37, 99, 235)
		pdf.CellFormat(widths[0], 7, d.tr(truncateString(v.Name, 34)), "1", 0, "L", false, d.links[v.Name], "")

		r, g, b := hexRGB(v.Severity.Color())
		pdf.SetTextColor(r, g, b)
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(widths[1], 7, severityText(v.Severity), "1", 0, "C", false, 0, "")

		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(widths[2], 7, report.AdvisoryCount(v.Via), "1", 0, "C", false, 0, "")
		deps := strings.Join(audit.UniqueTransitive(v), ", ")
		pdf.CellFormat(widths[3], 7, d.tr(truncateString(deps, 32)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[4], 7, report.Badge(v.FixAvailable).Label, "1", 1, "C", false, 0, "")
	}
}

func (d *pdfDoc) addDetails(list []audit.Vulnerability) {
	d.heading("Details")
	pdf := d.pdf
	for _, v := range list {
		pdf.SetLink(d.links[v.Name], -1, -1)
		pdf.SetFont("Helvetica", "B", 12)
		r, g, b := hexRGB(v.Severity.Color())
		pdf.SetTextColor(r, g, b)
		pdf.CellFormat(0, 8, d.tr(v.Name), "", 0, "L", false, 0, report.NpmURL(v.Name))
		pdf.CellFormat(0, 8, severityText(v.Severity), "", 1, "R", false, 0, "")

		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(80, 80, 80)
		pdf.CellFormat(0, 5, d.tr("Range: "+v.Range), "", 1, "L", false, 0, "")
		fix := report.Detail(v.FixAvailable)
		line := "Fix: " + strings.ReplaceAll(fix.Summary, "`", "")
		if fix.Install != "" {
			line += "; will install " + fix.Install
			if fix.Breaking {
				line += ", which is a breaking change"
			}
		}
		pdf.MultiCell(0, 5, d.tr(line), "", "L", false)

		if !v.Via.Sequence {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.CellFormat(0, 5, "Advisory details unavailable", "", 1, "L", false, 0, "")
		}
		for _, e := range v.Via.Entries {
			d.addViaEntry(e)
		}
		pdf.Ln(4)
	}
}

func (d *pdfDoc) addViaEntry(e audit.ViaEntry) {
	pdf := d.pdf
	pdf.SetX(pdf.GetX() + 4)
	switch {
	case audit.IsTransitiveName(e):
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(60, 5, "Depends on vulnerable versions of", "", 0, "L", false, 0, "")
		link, ok := d.links[e.Package]
		if ok {
			pdf.SetTextColor(37, 99, 235)
		}
		pdf.CellFormat(0, 5, d.tr(e.Package), "", 1, "L", false, link, "")
	case audit.IsAdvisory(e):
		a := e.Advisory
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetTextColor(60, 60, 60)
		pdf.MultiCell(0, 5, d.tr(fmt.Sprintf("[%s] %s", severityText(a.Severity), a.Title)), "", "L", false)
		var meta []string
		if score := report.FormatScore(a.Score()); score != "" {
			meta = append(meta, "Score "+score)
		}
		if a.Range != "" {
			meta = append(meta, a.Range)
		}
		for _, c := range report.CWEs(a.CWE) {
			meta = append(meta, c.Label())
		}
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetX(pdf.GetX() + 4)
		if len(meta) > 0 {
			pdf.CellFormat(0, 4, d.tr(strings.Join(meta, report.CWESeparator)), "", 1, "L", false, 0, "")
		}
		if a.URL != "" {
			pdf.SetX(pdf.GetX() + 4)
			pdf.SetTextColor(37, 99, 235)
			pdf.CellFormat(0, 4, d.tr(report.AdvisoryID(a.URL)), "", 1, "L", false, 0, a.URL)
		}
	default:
		pdf.SetFont("Helvetica", "I", 9)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 5, "Advisory details unavailable", "", 1, "L", false, 0, "")
	}
}

func (d *pdfDoc) addFootnotes(notes []report.Footnote) {
	pdf := d.pdf
	pdf.Ln(4)
	pdf.SetTextColor(100, 100, 100)
	for _, n := range notes {
		pdf.SetFont("Helvetica", "B", 8)
		pdf.CellFormat(14, 4, n.Term, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 8)
		pdf.MultiCell(0, 4, d.tr(n.Text), "", "L", false)
	}
}

func severityText(s finding.Severity) string {
	if l := s.Label(); l != "" {
		return l
	}
	return "Unknown"
}

// hexRGB parses "#rrggbb", falling back to grey.
func hexRGB(hex string) (int, int, int) {
	v, err := strconv.ParseUint(strings.TrimPrefix(hex, "#"), 16, 32)
	if err != nil || len(strings.TrimPrefix(hex, "#")) != 6 {
		return 122, 121, 121
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}
