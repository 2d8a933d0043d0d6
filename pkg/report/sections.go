package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/auditview/auditview/pkg/audit"
	"github.com/auditview/auditview/pkg/finding"
)

//go:embed templates/*.html templates/*.css
var templateFS embed.FS

// Via item kinds as the templates see them.
const (
	itemTransitive = "transitive"
	itemAdvisory   = "advisory"
	itemMalformed  = "malformed"
)

// xref is a cross-reference to another record of the same report. Linked
// is false when the target is not in the list; the name then renders as
// plain text.
type xref struct {
	Name   string
	Href   template.URL
	Linked bool
}

type summaryRow struct {
	Name           string
	Href           template.URL
	Severity       finding.Severity
	Issues         string
	Lead           *audit.Advisory
	MoreAdvisories int
	DependsOn      []xref
	Fix            FixBadge
}

type detailBlock struct {
	Name     string
	Anchor   string
	NpmURL   string
	Range    string
	Severity finding.Severity
	Fix      FixDetail
	Sequence bool
	Items    []viaItem
}

type viaItem struct {
	Kind       string
	Severity   finding.Severity
	Ref        xref
	Title      string
	Range      string
	Score      string
	CWEs       []CWE
	URL        string
	AdvisoryID string
}

// Renderer builds the summary table and detail view fragments. It holds
// only parsed templates and is safe for concurrent use.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the section templates.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("sections").Funcs(sectionFuncs()).ParseFS(templateFS, "templates/sections.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse section templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

func sectionFuncs() template.FuncMap {
	return template.FuncMap{
		"severityLabel": func(s finding.Severity) string { return s.Label() },
		"severityClass": SeverityClass,
		"cweSeparator":  func() string { return CWESeparator },
	}
}

// Summary renders one table row per record. An empty list renders nothing.
func (r *Renderer) Summary(list []audit.Vulnerability) (template.HTML, error) {
	if len(list) == 0 {
		return "", nil
	}
	index := indexNames(list)
	rows := make([]summaryRow, 0, len(list))
	for _, v := range list {
		row := summaryRow{
			Name:     v.Name,
			Href:     href(v.Name),
			Severity: v.Severity,
			Issues:   AdvisoryCount(v.Via),
			Fix:      Badge(v.FixAvailable),
		}
		if advs := audit.UniqueAdvisories(v); len(advs) > 0 {
			row.Lead = advs[0]
			row.MoreAdvisories = len(advs) - 1
		}
		for _, name := range audit.UniqueTransitive(v) {
			row.DependsOn = append(row.DependsOn, index.ref(name))
		}
		rows = append(rows, row)
	}
	return r.execute("summary", rows)
}

// Details renders one block per record, in list order, each with the
// anchor the summary links to.
func (r *Renderer) Details(list []audit.Vulnerability) (template.HTML, error) {
	if len(list) == 0 {
		return "", nil
	}
	index := indexNames(list)
	blocks := make([]detailBlock, 0, len(list))
	for _, v := range list {
		b := detailBlock{
			Name:     v.Name,
			Anchor:   Anchor(v.Name),
			NpmURL:   NpmURL(v.Name),
			Range:    v.Range,
			Severity: v.Severity,
			Fix:      Detail(v.FixAvailable),
			Sequence: v.Via.Sequence,
		}
		for _, e := range v.Via.Entries {
			b.Items = append(b.Items, index.item(v, e))
		}
		blocks = append(blocks, b)
	}
	return r.execute("detail", blocks)
}

func (r *Renderer) execute(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute %s template: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

type nameIndex map[string]finding.Severity

func indexNames(list []audit.Vulnerability) nameIndex {
	idx := make(nameIndex, len(list))
	for _, v := range list {
		idx[v.Name] = v.Severity
	}
	return idx
}

func (idx nameIndex) ref(name string) xref {
	_, ok := idx[name]
	return xref{Name: name, Href: href(name), Linked: ok}
}

func (idx nameIndex) item(v audit.Vulnerability, e audit.ViaEntry) viaItem {
	switch {
	case audit.IsTransitiveName(e):
		return viaItem{Kind: itemTransitive, Severity: v.Severity, Ref: idx.ref(e.Package)}
	case audit.IsAdvisory(e):
		a := e.Advisory
		return viaItem{
			Kind:       itemAdvisory,
			Severity:   a.Severity,
			Title:      a.Title,
			Range:      a.Range,
			Score:      FormatScore(a.Score()),
			CWEs:       CWEs(a.CWE),
			URL:        a.URL,
			AdvisoryID: AdvisoryID(a.URL),
		}
	}
	return viaItem{Kind: itemMalformed}
}

func href(name string) template.URL {
	return template.URL("#" + Anchor(name))
}
