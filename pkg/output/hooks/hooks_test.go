package hooks

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/auditview/auditview/pkg/audit"
	"github.com/auditview/auditview/pkg/finding"
	"github.com/auditview/auditview/pkg/jsonutil"
	"github.com/auditview/auditview/pkg/output/events"
)

// countsWith builds Counts through Aggregate so the severity chart is filled.
func countsWith(sc audit.SeverityCounts, listed int) audit.Counts {
	c := audit.Aggregate(nil, audit.Metadata{Vulnerabilities: sc})
	c.Listed = listed
	return c
}

func vulnerableReport() *events.ReportEvent {
	e := events.NewReport(events.SourceHTTP, "r1", "html", countsWith(audit.SeverityCounts{Critical: 1, High: 2}, 2))
	e.App = "storefront"
	e.Bytes = 4096
	e.DurationMs = 12.5
	return e
}

func cleanReport() *events.ReportEvent {
	return events.NewReport(events.SourceCLI, "r2", "json", countsWith(audit.SeverityCounts{}, 0))
}

func failedGate() *events.GateEvent {
	return events.NewGate(events.SourceCLI, "r1", "strict", false, 1, []string{"critical: 1 > 0", "high: 2 > 0"})
}

// =============================================================================
// LogHook
// =============================================================================

func TestLogHook(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := NewLogHook(slog.New(slog.NewTextHandler(&buf, nil)))
	ctx := context.Background()

	require.NoError(t, h.OnEvent(ctx, vulnerableReport()))
	require.NoError(t, h.OnEvent(ctx, failedGate()))
	require.NoError(t, h.OnEvent(ctx, events.NewError(events.SourceMCP, "r3", "decode", io.ErrUnexpectedEOF)))

	out := buf.String()
	assert.Contains(t, out, `msg="report rendered"`)
	assert.Contains(t, out, "packages=2")
	assert.Contains(t, out, "policy=strict pass=false failures=2")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "stage=decode")
	assert.Nil(t, h.EventTypes())
	assert.NotNil(t, NewLogHook(nil).logger)
}

// =============================================================================
// PrometheusHook
// =============================================================================

func TestPrometheusHook(t *testing.T) {
	t.Parallel()

	h, err := NewPrometheusHook(PrometheusOptions{})
	require.NoError(t, err)
	defer h.Close()
	assert.Empty(t, h.MetricsAddr())

	ctx := context.Background()
	require.NoError(t, h.OnEvent(ctx, vulnerableReport()))
	require.NoError(t, h.OnEvent(ctx, vulnerableReport()))
	require.NoError(t, h.OnEvent(ctx, failedGate()))
	require.NoError(t, h.OnEvent(ctx, events.NewError(events.SourceHTTP, "", "decode", io.EOF)))

	assert.Equal(t, 2.0, testutil.ToFloat64(h.reportsTotal.WithLabelValues("http", "html")))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.vulnerabilitiesTotal.WithLabelValues("critical")))
	assert.Equal(t, 4.0, testutil.ToFloat64(h.vulnerabilitiesTotal.WithLabelValues("high")))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.lastVulnerable.WithLabelValues("http")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.gateTotal.WithLabelValues("strict", "fail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.errorsTotal.WithLabelValues("http", "decode")))

	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "auditview_render_duration_seconds_bucket")
	assert.Contains(t, rec.Body.String(), `auditview_reports_total{format="html",source="http"} 2`)
}

func TestPrometheusHook_Closed(t *testing.T) {
	t.Parallel()

	h, err := NewPrometheusHook(PrometheusOptions{})
	require.NoError(t, err)
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	require.NoError(t, h.OnEvent(context.Background(), vulnerableReport()))
	assert.Zero(t, testutil.CollectAndCount(h.reportsTotal))
}

func TestPrometheusHook_IsolatedRegistries(t *testing.T) {
	t.Parallel()

	// Two hooks in one process must not collide on metric registration.
	a, err := NewPrometheusHook(PrometheusOptions{})
	require.NoError(t, err)
	b, err := NewPrometheusHook(PrometheusOptions{})
	require.NoError(t, err)
	assert.NotSame(t, a.Registry(), b.Registry())
}

// =============================================================================
// OTelHook
// =============================================================================

func newRecordedOTel(t *testing.T) (*OTelHook, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	h := NewOTelHookWithProvider(tp, OTelOptions{ShutdownTimeout: time.Second})
	return h, rec
}

func attr(span sdktrace.ReadOnlySpan, key string) attribute.Value {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value
		}
	}
	return attribute.Value{}
}

func TestOTelHook_ReportSpan(t *testing.T) {
	t.Parallel()

	h, rec := newRecordedOTel(t)
	e := vulnerableReport()
	require.NoError(t, h.OnEvent(context.Background(), e))
	require.NoError(t, h.Close())

	spans := rec.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "auditview.report", span.Name())
	assert.Equal(t, "r1", attr(span, "report_id").AsString())
	assert.Equal(t, "storefront", attr(span, "app").AsString())
	assert.Equal(t, int64(1), attr(span, "vulnerabilities.critical").AsInt64())
	assert.Equal(t, int64(2), attr(span, "vulnerabilities.high").AsInt64())
	assert.True(t, e.Timestamp().Equal(span.EndTime()))
	assert.Equal(t, 12500*time.Microsecond, span.EndTime().Sub(span.StartTime()))
}

func TestOTelHook_GateAndError(t *testing.T) {
	t.Parallel()

	h, rec := newRecordedOTel(t)
	ctx := context.Background()
	require.NoError(t, h.OnEvent(ctx, failedGate()))
	require.NoError(t, h.OnEvent(ctx, events.NewGate(events.SourceCLI, "r1", "standard", true, 0, nil)))
	require.NoError(t, h.OnEvent(ctx, events.NewError(events.SourceHTTP, "", "decode", io.EOF)))

	spans := rec.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, []string{"critical: 1 > 0", "high: 2 > 0"}, attr(spans[0], "failures").AsStringSlice())
	assert.Equal(t, codes.Ok, spans[1].Status().Code)
	assert.Equal(t, "auditview.error", spans[2].Name())
	assert.Equal(t, "EOF", spans[2].Status().Description)

	require.NoError(t, h.Close())
	require.NoError(t, h.OnEvent(ctx, failedGate()))
	assert.Len(t, rec.Ended(), 3, "closed hook drops events")
}

func TestOTelHook_Defaults(t *testing.T) {
	t.Parallel()

	h, _ := newRecordedOTel(t)
	defer h.Close()
	assert.Equal(t, "auditview", h.ServiceName())
	assert.Equal(t, "localhost:4317", h.Endpoint())
}

// =============================================================================
// WebhookHook
// =============================================================================

type capture struct {
	mu      sync.Mutex
	bodies  [][]byte
	headers []http.Header
	status  []int
	calls   atomic.Int32
}

func (c *capture) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(c.calls.Add(1)) - 1
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.bodies = append(c.bodies, body)
		c.headers = append(c.headers, r.Header.Clone())
		status := http.StatusOK
		if n < len(c.status) {
			status = c.status[n]
		}
		c.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebhookHook_Delivers(t *testing.T) {
	t.Parallel()

	c := &capture{}
	srv := c.server(t)
	h := NewWebhookHook(srv.URL, WebhookOptions{Headers: map[string]string{"Authorization": "Bearer x"}})

	require.NoError(t, h.OnEvent(context.Background(), vulnerableReport()))
	require.Len(t, c.bodies, 1)

	var got map[string]any
	require.NoError(t, jsonutil.Unmarshal(c.bodies[0], &got))
	assert.Equal(t, "report", got["type"])
	assert.Equal(t, "r1", got["report_id"])
	assert.Equal(t, "report", c.headers[0].Get("X-Auditview-Event"))
	assert.Equal(t, "Bearer x", c.headers[0].Get("Authorization"))
	assert.True(t, strings.HasPrefix(c.headers[0].Get("User-Agent"), "auditview/"))
}

func TestWebhookHook_Retries(t *testing.T) {
	t.Parallel()

	t.Run("5xx then success", func(t *testing.T) {
		t.Parallel()
		c := &capture{status: []int{502, 503}}
		h := NewWebhookHook(c.server(t).URL, WebhookOptions{RetryBase: time.Millisecond})
		require.NoError(t, h.OnEvent(context.Background(), failedGate()))
		assert.Equal(t, int32(3), c.calls.Load())
	})

	t.Run("4xx is not retried", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		c := &capture{status: []int{400}}
		h := NewWebhookHook(c.server(t).URL, WebhookOptions{
			RetryBase: time.Millisecond,
			Logger:    slog.New(slog.NewTextHandler(&buf, nil)),
		})
		require.NoError(t, h.OnEvent(context.Background(), failedGate()), "delivery errors are logged, not returned")
		assert.Equal(t, int32(1), c.calls.Load())
		assert.Contains(t, buf.String(), "client error: 400")
	})
}

func TestWebhookHook_Filters(t *testing.T) {
	t.Parallel()

	passed := events.NewGate(events.SourceCLI, "r1", "standard", true, 0, nil)
	tests := []struct {
		name  string
		opts  WebhookOptions
		event events.Event
		sent  bool
	}{
		{"report by default", WebhookOptions{}, vulnerableReport(), true},
		{"clean report by default", WebhookOptions{}, cleanReport(), true},
		{"only failures drops reports", WebhookOptions{OnlyFailures: true}, vulnerableReport(), false},
		{"only failures drops passed gates", WebhookOptions{OnlyFailures: true}, passed, false},
		{"only failures keeps failed gates", WebhookOptions{OnlyFailures: true}, failedGate(), true},
		{"only failures keeps errors", WebhookOptions{OnlyFailures: true}, events.NewError(events.SourceCLI, "", "write", io.EOF), true},
		{"min severity met", WebhookOptions{MinSeverity: finding.High}, vulnerableReport(), true},
		{"min severity drops clean", WebhookOptions{MinSeverity: finding.Info}, cleanReport(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := &capture{}
			h := NewWebhookHook(c.server(t).URL, tt.opts)
			require.NoError(t, h.OnEvent(context.Background(), tt.event))
			assert.Equal(t, tt.sent, c.calls.Load() == 1)
		})
	}
}

func TestMeetsMinSeverity(t *testing.T) {
	t.Parallel()

	assert.True(t, meetsMinSeverity("", ""))
	assert.True(t, meetsMinSeverity(finding.Low, ""))
	assert.False(t, meetsMinSeverity("", finding.Info))
	assert.True(t, meetsMinSeverity(finding.Critical, finding.High))
	assert.True(t, meetsMinSeverity(finding.High, finding.High))
	assert.False(t, meetsMinSeverity(finding.Moderate, finding.High))
}

// =============================================================================
// SlackHook
// =============================================================================

func TestSlackHook(t *testing.T) {
	t.Parallel()

	c := &capture{}
	h := NewSlackHook(c.server(t).URL, SlackOptions{Channel: "#security"})
	ctx := context.Background()

	require.NoError(t, h.OnEvent(ctx, vulnerableReport()))
	require.NoError(t, h.OnEvent(ctx, events.NewGate(events.SourceCLI, "r1", "standard", true, 0, nil)))
	require.NoError(t, h.OnEvent(ctx, failedGate()))
	require.Len(t, c.bodies, 2, "passed gates are not posted")

	report := string(c.bodies[0])
	assert.True(t, jsonutil.Valid(c.bodies[0]))
	assert.Contains(t, report, `"channel":"#security"`)
	assert.Contains(t, report, `"username":"auditview"`)
	assert.Contains(t, report, "npm audit report: storefront")
	assert.Contains(t, report, "*Critical:*\\n1")
	assert.Contains(t, report, "need `--force`")

	gate := string(c.bodies[1])
	assert.Contains(t, gate, "Policy strict failed")
	assert.Contains(t, gate, "critical: 1 > 0")
}

func TestSlackHook_Filters(t *testing.T) {
	t.Parallel()

	c := &capture{}
	h := NewSlackHook(c.server(t).URL, SlackOptions{OnlyVulnerable: true, MinSeverity: finding.Critical})
	ctx := context.Background()

	require.NoError(t, h.OnEvent(ctx, cleanReport()))
	high := events.NewReport(events.SourceCLI, "r", "html", countsWith(audit.SeverityCounts{High: 1}, 1))
	require.NoError(t, h.OnEvent(ctx, high))
	assert.Zero(t, c.calls.Load())

	require.NoError(t, h.OnEvent(ctx, vulnerableReport()))
	assert.Equal(t, int32(1), c.calls.Load())
}

func TestBuildGateBlocks_Truncates(t *testing.T) {
	t.Parallel()

	failures := make([]string, 8)
	for i := range failures {
		failures[i] = "rule"
	}
	blocks := buildGateBlocks(events.NewGate(events.SourceCLI, "", "strict", false, 1, failures))
	require.Len(t, blocks, 2)
	assert.Equal(t, 5, strings.Count(blocks[1].Text.Text, "• rule"))
	assert.Contains(t, blocks[1].Text.Text, "_and 3 more_")
}

func TestBuildReportBlocks_Clean(t *testing.T) {
	t.Parallel()

	blocks := buildReportBlocks(cleanReport())
	require.Len(t, blocks, 2)
	assert.Equal(t, "npm audit report", blocks[0].Text.Text)
	assert.Contains(t, blocks[1].Text.Text, "No vulnerabilities found.")
}
