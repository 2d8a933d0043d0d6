package writers

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/auditview/auditview/pkg/audit"
	"github.com/auditview/auditview/pkg/defaults"
	"github.com/auditview/auditview/pkg/report"
)

// Compile-time interface check.
var _ Writer = (*CSVWriter)(nil)

// UTF-8 BOM for Excel compatibility.
const utf8BOM = "\xEF\xBB\xBF"

// CSVOptions configures the CSV writer behavior.
type CSVOptions struct {
	// OmitHeader drops the header row.
	OmitHeader bool

	// Delimiter sets the field delimiter character.
	// Default is comma when zero value.
	Delimiter rune

	// ExcelCompatible adds UTF-8 BOM for Excel compatibility.
	ExcelCompatible bool

	// KeepFormulas disables CSV injection protection. By default cells
	// starting with = + - @ TAB CR are prefixed with a quote.
	KeepFormulas bool

	// TruncateAt limits field length (0 = no limit).
	TruncateAt int
}

// csvColumns is one row per advisory; transitive and malformed via
// entries produce a row with the advisory columns empty.
var csvColumns = []string{
	"package",
	"severity",
	"range",
	"direct",
	"fix",
	"fix_install",
	"breaking",
	"via_kind",
	"via_package",
	"advisory_title",
	"advisory_severity",
	"advisory_range",
	"cvss_score",
	"cwe",
	"advisory_url",
}

// CSVWriter writes one row per via entry, so spreadsheets and databases
// can filter advisories directly. Packages whose via is not a list get a
// single row with via_kind "malformed".
type CSVWriter struct {
	opts CSVOptions
}

// NewCSVWriter creates a CSV writer.
func NewCSVWriter(opts CSVOptions) *CSVWriter {
	return &CSVWriter{opts: opts}
}

func (cw *CSVWriter) Write(_ context.Context, w io.Writer, doc *report.Document) error {
	if cw.opts.ExcelCompatible {
		if _, err := io.WriteString(w, utf8BOM); err != nil {
			return err
		}
	}

	out := csv.NewWriter(w)
	if cw.opts.Delimiter != 0 {
		out.Comma = cw.opts.Delimiter
	}
	if !cw.opts.OmitHeader {
		if err := out.Write(csvColumns); err != nil {
			return err
		}
	}
	for _, v := range doc.Vulnerabilities {
		for _, row := range cw.rows(v) {
			if err := out.Write(row); err != nil {
				return err
			}
		}
	}
	out.Flush()
	return out.Error()
}

func (cw *CSVWriter) rows(v audit.Vulnerability) [][]string {
	fix := report.Detail(v.FixAvailable)
	base := []string{
		v.Name,
		string(v.Severity),
		v.Range,
		strconv.FormatBool(v.IsDirect),
		v.FixAvailable.Kind.String(),
		fix.Install,
		strconv.FormatBool(fix.Breaking),
	}

	if !v.Via.Sequence || v.Via.Len() == 0 {
		kind := "malformed"
		if v.Via.Sequence {
			kind = "none"
		}
		return [][]string{cw.row(base, kind, "", nil)}
	}

	rows := make([][]string, 0, v.Via.Len())
	for _, e := range v.Via.Entries {
		switch {
		case audit.IsTransitiveName(e):
			rows = append(rows, cw.row(base, "transitive", e.Package, nil))
		case audit.IsAdvisory(e):
			rows = append(rows, cw.row(base, "advisory", e.Advisory.Name, e.Advisory))
		default:
			rows = append(rows, cw.row(base, "malformed", "", nil))
		}
	}
	return rows
}

func (cw *CSVWriter) row(base []string, kind, pkg string, a *audit.Advisory) []string {
	row := make([]string, 0, len(csvColumns))
	row = append(row, base...)
	row = append(row, kind, pkg)
	if a != nil {
		cwes := report.CWEs(a.CWE)
		labels := make([]string, len(cwes))
		for i, c := range cwes {
			labels[i] = c.Label()
		}
		row = append(row,
			a.Title,
			string(a.Severity),
			a.Range,
			report.FormatScore(a.Score()),
			strings.Join(labels, ";"),
			a.URL,
		)
	} else {
		row = append(row, "", "", "", "", "", "")
	}
	for i := range row {
		row[i] = cw.cell(row[i])
	}
	return row
}

func (cw *CSVWriter) cell(s string) string {
	if !cw.opts.KeepFormulas {
		s = sanitizeForCSV(s)
	}
	return truncateField(s, cw.opts.TruncateAt)
}

func (cw *CSVWriter) Format() string      { return "csv" }
func (cw *CSVWriter) ContentType() string { return defaults.ContentTypeCSV }
func (cw *CSVWriter) Extension() string   { return ".csv" }

// sanitizeForCSV prevents formula injection. Version ranges such as
// "<=1.2.3" are left alone; only the spreadsheet trigger characters are
// escaped.
func sanitizeForCSV(s string) string {
	if len(s) == 0 {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}

// truncateField truncates a field to the specified length.
func truncateField(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen > 3 {
		return string(runes[:maxLen-3]) + "..."
	}
	return string(runes[:maxLen])
}
