package report

import (
	"fmt"
	"html/template"
	"log/slog"

	"github.com/auditview/auditview/pkg/audit"
	"github.com/auditview/auditview/pkg/defaults"
)

// DefaultTitle heads every report page.
const DefaultTitle = "NPM Audit Report"

// AppMeta describes the audited project. It comes from package.json and the
// audit's dependency counters and is optional.
type AppMeta struct {
	Name              string `json:"name"`
	Version           string `json:"version"`
	Description       string `json:"description"`
	TotalDependencies int    `json:"totalDependencies"`
}

// ChartView is one doughnut chart ready for Chart.js.
type ChartView struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Labels []string `json:"labels"`
	Values []int    `json:"values"`
	Colors []string `json:"colors"`
}

// Footnote is one legend entry under the detail view.
type Footnote struct {
	Term string `json:"term"`
	Text string `json:"text"`
}

// Document is the complete view-model of one report. It is built fresh by
// Assemble and not modified afterwards.
type Document struct {
	// ID is set by callers that hand documents out over the network.
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	ToolName    string `json:"tool"`
	ToolVersion string `json:"toolVersion"`

	// App is nil when no application metadata was available; the header
	// block is then omitted.
	App *AppMeta `json:"app,omitempty"`

	Order  audit.Order  `json:"order"`
	Counts audit.Counts `json:"counts"`

	VulnerabilityChart ChartView `json:"vulnerabilityChart"`
	DependencyChart    ChartView `json:"dependencyChart"`

	// Clean selects the "no vulnerabilities found" branch in place of the
	// charts and tables. It is decided by the listed records, not by the
	// metadata counters, so a report never hides packages it was given.
	Clean bool `json:"clean"`

	Vulnerabilities []audit.Vulnerability `json:"vulnerabilities"`

	Summary   template.HTML `json:"-"`
	Details   template.HTML `json:"-"`
	Footnotes []Footnote    `json:"footnotes"`
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithOrder sets the sort order. Defaults to audit.DefaultOrder.
func WithOrder(o audit.Order) AssemblerOption {
	return func(a *Assembler) { a.order = o }
}

// WithTitle overrides DefaultTitle.
func WithTitle(title string) AssemblerOption {
	return func(a *Assembler) { a.title = title }
}

// WithAssemblerLogger sets the logger. Defaults to slog.Default().
func WithAssemblerLogger(l *slog.Logger) AssemblerOption {
	return func(a *Assembler) { a.logger = l }
}

// Assembler turns a parsed audit into a Document.
type Assembler struct {
	renderer *Renderer
	order    audit.Order
	title    string
	logger   *slog.Logger
}

// NewAssembler creates an Assembler with its own Renderer.
func NewAssembler(opts ...AssemblerOption) (*Assembler, error) {
	r, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	a := &Assembler{
		renderer: r,
		order:    audit.DefaultOrder,
		title:    DefaultTitle,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a, nil
}

// Assemble normalizes, aggregates and renders one report. app may be nil.
func (a *Assembler) Assemble(r *audit.Report, app *AppMeta) (*Document, error) {
	if r == nil {
		return nil, audit.ErrMissingVulnerabilities
	}
	list := audit.Normalize(r, a.order)
	counts := audit.Aggregate(list, r.Metadata)

	summary, err := a.renderer.Summary(list)
	if err != nil {
		return nil, err
	}
	details, err := a.renderer.Details(list)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Title:       a.title,
		ToolName:    defaults.ToolName,
		ToolVersion: defaults.Version,
		Order:       a.order,
		Counts:      counts,
		VulnerabilityChart: ChartView{
			ID:     "vulnerability-chart",
			Title:  fmt.Sprintf("Vulnerabilities (%d)", counts.TotalVulnerabilities),
			Labels: counts.Severity.Labels(),
			Values: counts.Severity.Values(),
			Colors: counts.Severity.Colors(),
		},
		DependencyChart: ChartView{
			ID:     "dependency-chart",
			Title:  fmt.Sprintf("Dependencies (%d)", counts.TotalDependencies),
			Labels: counts.Dependencies.Labels(),
			Values: counts.Dependencies.Values(),
			Colors: counts.Dependencies.Colors(),
		},
		Clean:           len(list) == 0,
		Vulnerabilities: list,
		Summary:         summary,
		Details:         details,
		Footnotes: []Footnote{
			{Term: "Score", Text: ScoreLegend},
			{Term: "CWE", Text: CWELegend},
			{Term: "GHSA", Text: GHSALegend},
		},
	}
	if app != nil {
		meta := *app
		doc.App = &meta
		if meta.Name != "" {
			doc.Title = a.title + " - " + meta.Name
		}
	}

	a.logger.Debug("assembled report",
		slog.Int("listed", counts.Listed),
		slog.Int("total_vulnerabilities", counts.TotalVulnerabilities),
		slog.Int("anomalous_fix", counts.AnomalousFix),
		slog.Bool("clean", doc.Clean))
	return doc, nil
}
