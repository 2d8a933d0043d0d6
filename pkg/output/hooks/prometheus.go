package hooks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/auditview/auditview/pkg/defaults"
	"github.com/auditview/auditview/pkg/output/dispatcher"
	"github.com/auditview/auditview/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*PrometheusHook)(nil)

// PrometheusHook records report metrics in its own registry. The registry
// is served either by Handler (mounted on the report server) or by a
// dedicated metrics server when Addr is set.
type PrometheusHook struct {
	server   *http.Server
	registry *prometheus.Registry
	opts     PrometheusOptions
	logger   *slog.Logger

	// Counters
	reportsTotal         *prometheus.CounterVec
	vulnerabilitiesTotal *prometheus.CounterVec
	errorsTotal          *prometheus.CounterVec
	gateTotal            *prometheus.CounterVec

	// Gauges
	lastVulnerable *prometheus.GaugeVec

	// Histograms
	renderSeconds *prometheus.HistogramVec
	reportBytes   *prometheus.HistogramVec

	mu     sync.Mutex
	closed bool
}

// PrometheusOptions configures the Prometheus hook behavior.
type PrometheusOptions struct {
	// Addr starts a dedicated metrics server when non-empty (e.g. ":9090").
	Addr string

	// Path for the metrics endpoint (default: "/metrics").
	Path string

	// Logger for server errors (default: slog.Default()).
	Logger *slog.Logger
}

// NewPrometheusHook creates the hook and, when opts.Addr is set, starts the
// metrics server. The server runs until Close is called.
func NewPrometheusHook(opts PrometheusOptions) (*PrometheusHook, error) {
	if opts.Path == "" {
		opts.Path = "/metrics"
	}

	// Custom registry, never the global one.
	hook := &PrometheusHook{
		registry: prometheus.NewRegistry(),
		opts:     opts,
		logger:   orDefault(opts.Logger),
	}

	if err := hook.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	if opts.Addr != "" {
		hook.startServer()
	}
	return hook, nil
}

func (h *PrometheusHook) initMetrics() error {
	h.reportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditview_reports_total",
			Help: "Total number of reports rendered",
		},
		[]string{"source", "format"},
	)

	h.vulnerabilitiesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditview_vulnerabilities_total",
			Help: "Vulnerabilities seen across rendered reports, by severity",
		},
		[]string{"severity"},
	)

	h.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditview_errors_total",
			Help: "Audits that could not be turned into a report",
		},
		[]string{"source", "stage"},
	)

	h.gateTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditview_gate_evaluations_total",
			Help: "Policy gate evaluations by result",
		},
		[]string{"policy", "result"},
	)

	h.lastVulnerable = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "auditview_last_report_packages",
			Help: "Vulnerable packages listed in the most recent report",
		},
		[]string{"source"},
	)

	h.renderSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auditview_render_duration_seconds",
			Help:    "Time from decode to written report",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"format"},
	)

	h.reportBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auditview_report_bytes",
			Help:    "Size of rendered reports",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		},
		[]string{"format"},
	)

	collectors := []prometheus.Collector{
		h.reportsTotal,
		h.vulnerabilitiesTotal,
		h.errorsTotal,
		h.gateTotal,
		h.lastVulnerable,
		h.renderSeconds,
		h.reportBytes,
	}
	for _, c := range collectors {
		if err := h.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Handler serves the hook's registry in the Prometheus exposition format.
func (h *PrometheusHook) Handler() http.Handler {
	return promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (h *PrometheusHook) Registry() *prometheus.Registry { return h.registry }

func (h *PrometheusHook) startServer() {
	mux := http.NewServeMux()
	mux.Handle(h.opts.Path, h.Handler())

	h.server = &http.Server{
		Addr:              h.opts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: defaults.ReadHeaderTimeout,
		WriteTimeout:      defaults.WriteTimeout,
	}

	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("metrics server failed", slog.String("addr", h.opts.Addr), slog.String("error", err.Error()))
		}
	}()
}

// OnEvent updates the metrics for one event.
func (h *PrometheusHook) OnEvent(_ context.Context, event events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	switch e := event.(type) {
	case *events.ReportEvent:
		h.reportsTotal.WithLabelValues(string(e.Source), e.Format).Inc()
		for _, s := range e.Counts.Severity.Slices {
			if s.Value > 0 {
				h.vulnerabilitiesTotal.WithLabelValues(s.Key).Add(float64(s.Value))
			}
		}
		h.lastVulnerable.WithLabelValues(string(e.Source)).Set(float64(e.Counts.Listed))
		if e.DurationMs > 0 {
			h.renderSeconds.WithLabelValues(e.Format).Observe(e.DurationMs / 1000.0)
		}
		h.reportBytes.WithLabelValues(e.Format).Observe(float64(e.Bytes))
	case *events.GateEvent:
		result := "pass"
		if !e.Pass {
			result = "fail"
		}
		h.gateTotal.WithLabelValues(e.Policy, result).Inc()
	case *events.ErrorEvent:
		h.errorsTotal.WithLabelValues(string(e.Source), e.Stage).Inc()
	}
	return nil
}

// EventTypes returns the event types this hook handles.
func (h *PrometheusHook) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventTypeReport,
		events.EventTypeGate,
		events.EventTypeError,
	}
}

// Close shuts down the metrics server, if one was started.
func (h *PrometheusHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	if h.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), defaults.HookShutdown)
		defer cancel()
		return h.server.Shutdown(ctx)
	}
	return nil
}

// MetricsAddr returns the address where the dedicated server serves
// metrics, or "" when none was started.
func (h *PrometheusHook) MetricsAddr() string {
	if h.opts.Addr == "" {
		return ""
	}
	return "http://" + h.opts.Addr + h.opts.Path
}
