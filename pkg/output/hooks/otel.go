package hooks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/auditview/auditview/pkg/defaults"
	"github.com/auditview/auditview/pkg/output/dispatcher"
	"github.com/auditview/auditview/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*OTelHook)(nil)

// OTelHook exports one span per event to an OpenTelemetry collector. Report
// spans are back-dated by the event's duration so they cover the decode and
// render work that produced the event.
type OTelHook struct {
	opts           OTelOptions
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer

	mu     sync.Mutex
	closed bool
}

// OTelOptions configures the OpenTelemetry hook behavior.
type OTelOptions struct {
	// Endpoint is the OTLP gRPC endpoint (default: "localhost:4317").
	Endpoint string

	// ServiceName is the service name for traces (default: "auditview").
	ServiceName string

	// Insecure uses insecure connection (no TLS).
	Insecure bool

	// Headers contains additional headers for the OTLP exporter.
	Headers map[string]string

	// ShutdownTimeout is the timeout for graceful shutdown (default: 5s).
	ShutdownTimeout time.Duration

	// ConnectionTimeout is the timeout for establishing connection (default: 10s).
	ConnectionTimeout time.Duration
}

func (o *OTelOptions) applyDefaults() {
	if o.ServiceName == "" {
		o.ServiceName = defaults.ToolName
	}
	if o.Endpoint == "" {
		o.Endpoint = defaults.OTelEndpoint
	}
	if o.ShutdownTimeout == 0 {
		o.ShutdownTimeout = defaults.HookShutdown
	}
	if o.ConnectionTimeout == 0 {
		o.ConnectionTimeout = defaults.HookTimeout
	}
}

// NewOTelHook creates a hook exporting over OTLP gRPC. The exporter
// connects lazily, so an absent collector never blocks report generation.
func NewOTelHook(opts OTelOptions) (*OTelHook, error) {
	opts.applyDefaults()

	grpcOpts := []grpc.DialOption{}
	if opts.Insecure {
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	exporterOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(opts.Endpoint),
		otlptracegrpc.WithDialOption(grpcOpts...),
		otlptracegrpc.WithTimeout(opts.ConnectionTimeout),
	}
	if opts.Insecure {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
	}
	if len(opts.Headers) > 0 {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithHeaders(opts.Headers))
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectionTimeout)
	defer cancel()

	exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("otel: create exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(newResource(opts.ServiceName)),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	return NewOTelHookWithProvider(tp, opts), nil
}

// NewOTelHookWithProvider wraps an existing tracer provider. Close shuts it
// down.
func NewOTelHookWithProvider(tp *sdktrace.TracerProvider, opts OTelOptions) *OTelHook {
	opts.applyDefaults()
	return &OTelHook{
		opts:           opts,
		tracerProvider: tp,
		tracer:         tp.Tracer(defaults.ToolName + "/report"),
	}
}

// newResource avoids merging with resource.Default to prevent schema conflicts.
func newResource(serviceName string) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(defaults.Version),
		attribute.String("service.component", "report"),
	)
}

// OnEvent records the event as a span.
func (h *OTelHook) OnEvent(ctx context.Context, event events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	switch e := event.(type) {
	case *events.ReportEvent:
		h.handleReport(ctx, e)
	case *events.GateEvent:
		h.handleGate(ctx, e)
	case *events.ErrorEvent:
		h.handleError(ctx, e)
	}
	return nil
}

func (h *OTelHook) handleReport(ctx context.Context, e *events.ReportEvent) {
	end := e.Timestamp()
	start := end.Add(-time.Duration(e.DurationMs * float64(time.Millisecond)))

	_, span := h.tracer.Start(ctx, "auditview.report",
		trace.WithTimestamp(start),
		trace.WithAttributes(
			attribute.String("report_id", e.Report),
			attribute.String("source", string(e.Source)),
			attribute.String("format", e.Format),
			attribute.String("app", e.App),
			attribute.Int("packages", e.Counts.Listed),
			attribute.Int("vulnerabilities.total", e.Counts.TotalVulnerabilities),
			attribute.Int("dependencies.total", e.Counts.TotalDependencies),
			attribute.Int("fix.auto", e.Counts.AutoFix),
			attribute.Int("fix.none", e.Counts.NoFix),
			attribute.Int("fix.upgrade", e.Counts.ObjectFix),
			attribute.Int("fix.breaking", e.Counts.Breaking),
			attribute.Int("bytes", e.Bytes),
		),
	)
	for _, s := range e.Counts.Severity.Slices {
		span.SetAttributes(attribute.Int("vulnerabilities."+s.Key, s.Value))
	}
	span.SetStatus(codes.Ok, "")
	span.End(trace.WithTimestamp(end))
}

func (h *OTelHook) handleGate(ctx context.Context, e *events.GateEvent) {
	_, span := h.tracer.Start(ctx, "auditview.gate",
		trace.WithTimestamp(e.Timestamp()),
		trace.WithAttributes(
			attribute.String("report_id", e.Report),
			attribute.String("policy", e.Policy),
			attribute.Bool("pass", e.Pass),
			attribute.Int("exit_code", e.ExitCode),
			attribute.StringSlice("failures", e.Failures),
		),
	)
	if e.Pass {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, "policy failed")
	}
	span.End(trace.WithTimestamp(e.Timestamp()))
}

func (h *OTelHook) handleError(ctx context.Context, e *events.ErrorEvent) {
	_, span := h.tracer.Start(ctx, "auditview.error",
		trace.WithTimestamp(e.Timestamp()),
		trace.WithAttributes(
			attribute.String("report_id", e.Report),
			attribute.String("source", string(e.Source)),
			attribute.String("stage", e.Stage),
		),
	)
	span.SetStatus(codes.Error, e.Message)
	span.End(trace.WithTimestamp(e.Timestamp()))
}

// EventTypes returns the event types this hook handles.
func (h *OTelHook) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventTypeReport,
		events.EventTypeGate,
		events.EventTypeError,
	}
}

// Close shuts down the tracer provider and flushes any pending telemetry.
func (h *OTelHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	if h.tracerProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), h.opts.ShutdownTimeout)
		defer cancel()

		if err := h.tracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("otel: shutdown tracer provider: %w", err)
		}
	}
	return nil
}

// Endpoint returns the OTLP endpoint being used.
func (h *OTelHook) Endpoint() string { return h.opts.Endpoint }

// ServiceName returns the service name being used.
func (h *OTelHook) ServiceName() string { return h.opts.ServiceName }
