package output

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/auditview/auditview/pkg/audit"
	"github.com/auditview/auditview/pkg/defaults"
	"github.com/auditview/auditview/pkg/manifest"
	"github.com/auditview/auditview/pkg/output/dispatcher"
	"github.com/auditview/auditview/pkg/output/events"
	"github.com/auditview/auditview/pkg/output/policy"
	"github.com/auditview/auditview/pkg/output/writers"
	"github.com/auditview/auditview/pkg/report"
	"github.com/auditview/auditview/pkg/templateresolver"
)

// Stages reported in error events.
const (
	StageDecode   = "decode"
	StageAssemble = "assemble"
	StageWrite    = "write"
	StagePolicy   = "policy"
)

// reportNamespace scopes content-derived report IDs.
var reportNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/auditview/auditview/reports"))

// ReportID derives a UUIDv5 from the raw audit, so the same audit always
// yields the same ID and identical renders share an ETag.
func ReportID(auditJSON []byte) string {
	return uuid.NewSHA1(reportNamespace, auditJSON).String()
}

// Pipeline turns raw npm audit output into documents, renders them and
// emits an event for every outcome. It is safe for concurrent use.
type Pipeline struct {
	assembler  *report.Assembler
	config     *report.TemplateConfig
	writers    writers.Config
	dispatcher *dispatcher.Dispatcher
	source     events.Source
	maxBytes   int64
	logger     *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithDispatcher sends pipeline events to d. Without it events are dropped.
func WithDispatcher(d *dispatcher.Dispatcher) PipelineOption {
	return func(p *Pipeline) { p.dispatcher = d }
}

// WithSource tags events with the surface that produced them.
func WithSource(src events.Source) PipelineOption {
	return func(p *Pipeline) { p.source = src }
}

// WithMaxBytes caps the accepted audit size (default: defaults.MaxAuditBytes).
func WithMaxBytes(n int64) PipelineOption {
	return func(p *Pipeline) { p.maxBytes = n }
}

// WithLogger sets the logger passed to the decoder and assembler.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline builds a pipeline for one report configuration. tc nil
// selects report.DefaultTemplateConfig.
func NewPipeline(tc *report.TemplateConfig, wc writers.Config, opts ...PipelineOption) (*Pipeline, error) {
	if tc == nil {
		tc = report.DefaultTemplateConfig()
	}
	p := &Pipeline{
		config:   tc,
		source:   events.SourceCLI,
		maxBytes: defaults.MaxAuditBytes,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if wc.HTML == nil {
		wc.HTML = tc
	}
	p.writers = wc

	a, err := report.NewAssembler(
		report.WithOrder(tc.Order()),
		report.WithTitle(tc.Branding.Title),
		report.WithAssemblerLogger(p.logger),
	)
	if err != nil {
		return nil, err
	}
	p.assembler = a
	return p, nil
}

// Config returns the report configuration the pipeline renders with.
func (p *Pipeline) Config() *report.TemplateConfig { return p.config }

// Input is one audit to turn into a document.
type Input struct {
	// Audit is the raw `npm audit --json` output.
	Audit []byte

	// Manifest supplies the header block. It may be nil.
	Manifest *manifest.Manifest
}

// Assemble decodes in.Audit and builds the document, stamping it with a
// report ID derived from its content. Failures are dispatched as error events.
func (p *Pipeline) Assemble(ctx context.Context, in Input) (*report.Document, error) {
	id := ReportID(in.Audit)

	r, err := audit.ParseReader(bytes.NewReader(in.Audit), audit.WithLogger(p.logger), audit.WithMaxBytes(p.maxBytes))
	if err != nil {
		p.fail(ctx, id, StageDecode, err)
		return nil, err
	}

	m := in.Manifest
	if m == nil && p.config.Branding.AppName != "" {
		m = &manifest.Manifest{}
	}
	doc, err := p.assembler.Assemble(r, report.AppMetaFrom(m, p.config.Branding.AppName))
	if err != nil {
		p.fail(ctx, id, StageAssemble, err)
		return nil, err
	}
	doc.ID = id
	return doc, nil
}

// Writer returns the writer for a format name.
func (p *Pipeline) Writer(format string) (writers.Writer, error) {
	return writers.New(format, p.writers)
}

// Write renders doc in the given format and dispatches a report event with
// the byte count and render duration.
func (p *Pipeline) Write(ctx context.Context, w io.Writer, doc *report.Document, format string) (writers.Writer, error) {
	start := time.Now()
	wr, err := p.Writer(format)
	if err != nil {
		p.fail(ctx, doc.ID, StageWrite, err)
		return nil, err
	}

	cw := &countingWriter{w: w}
	if err := wr.Write(ctx, cw, doc); err != nil {
		p.fail(ctx, doc.ID, StageWrite, err)
		return nil, err
	}

	ev := events.NewReport(p.source, doc.ID, wr.Format(), doc.Counts).Since(start)
	ev.Bytes = cw.n
	if doc.App != nil {
		ev.App = doc.App.Name
	}
	_ = p.dispatcher.Dispatch(ctx, ev)
	return wr, nil
}

// Gate evaluates pol against doc and dispatches the verdict.
func (p *Pipeline) Gate(ctx context.Context, doc *report.Document, pol *policy.Policy) (policy.Result, error) {
	res, err := pol.Evaluate(ctx, doc.Vulnerabilities)
	if err != nil {
		p.fail(ctx, doc.ID, StagePolicy, err)
		return res, err
	}
	_ = p.dispatcher.Dispatch(ctx, events.NewGate(p.source, doc.ID, res.PolicyName, res.Pass, res.ExitCode, res.Failures))
	return res, nil
}

// ErrorPage renders the HTML failure page for cause.
func (p *Pipeline) ErrorPage(cause error) ([]byte, error) {
	g, err := report.NewHTMLGenerator(p.config)
	if err != nil {
		return nil, err
	}
	text := ""
	if cause != nil {
		text = cause.Error()
	}
	return g.GenerateError(p.config.Branding.Title+" Failed", text)
}

func (p *Pipeline) fail(ctx context.Context, id, stage string, err error) {
	_ = p.dispatcher.Dispatch(ctx, events.NewError(p.source, id, stage, err))
}

// LoadPolicy resolves a policy short name ("strict") or path and parses it.
func LoadPolicy(ref string) (*policy.Policy, error) {
	data, source, err := templateresolver.ReadFile(ref, templateresolver.KindPolicy)
	if err != nil {
		if errors.Is(err, templateresolver.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", policy.ErrPolicyNotFound, ref)
		}
		return nil, err
	}
	p, err := policy.ParsePolicy(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	if p.Name == "" {
		p.Name = ref
	}
	return p, nil
}

type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	c.n += n
	return n, err
}
