// Package hooks provides event hooks for integrations. Hooks observe the
// report pipeline through the dispatcher: structured logs, Prometheus
// metrics, OpenTelemetry traces, generic webhooks and Slack messages.
package hooks

import (
	"context"
	"log/slog"

	"github.com/auditview/auditview/pkg/output/dispatcher"
	"github.com/auditview/auditview/pkg/output/events"
)

// orDefault returns l if non-nil, otherwise slog.Default().
func orDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

// Compile-time interface check.
var _ dispatcher.Hook = (*LogHook)(nil)

// LogHook writes one structured log line per event.
type LogHook struct {
	logger *slog.Logger
}

// NewLogHook creates a log hook. A nil logger uses slog.Default().
func NewLogHook(logger *slog.Logger) *LogHook {
	return &LogHook{logger: orDefault(logger)}
}

// OnEvent logs the event. Errors are logged at Warn, everything else at Info.
func (h *LogHook) OnEvent(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case *events.ReportEvent:
		h.logger.InfoContext(ctx, "report rendered",
			slog.String("report_id", e.Report),
			slog.String("source", string(e.Source)),
			slog.String("format", e.Format),
			slog.Int("packages", e.Counts.Listed),
			slog.Int("vulnerabilities", e.Counts.TotalVulnerabilities),
			slog.Int("bytes", e.Bytes),
			slog.Float64("duration_ms", e.DurationMs))
	case *events.GateEvent:
		h.logger.InfoContext(ctx, "policy evaluated",
			slog.String("report_id", e.Report),
			slog.String("policy", e.Policy),
			slog.Bool("pass", e.Pass),
			slog.Int("failures", len(e.Failures)))
	case *events.ErrorEvent:
		h.logger.WarnContext(ctx, "report failed",
			slog.String("report_id", e.Report),
			slog.String("source", string(e.Source)),
			slog.String("stage", e.Stage),
			slog.String("error", e.Message))
	}
	return nil
}

// EventTypes returns nil to receive all events.
func (h *LogHook) EventTypes() []events.EventType { return nil }
