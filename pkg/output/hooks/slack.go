package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/auditview/auditview/pkg/defaults"
	"github.com/auditview/auditview/pkg/finding"
	"github.com/auditview/auditview/pkg/jsonutil"
	"github.com/auditview/auditview/pkg/output/dispatcher"
	"github.com/auditview/auditview/pkg/output/events"
	"github.com/auditview/auditview/pkg/retry"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*SlackHook)(nil)

// SlackHook posts Block Kit messages to a Slack incoming webhook: a
// severity summary for every report and an alert for failed gates.
type SlackHook struct {
	webhookURL string
	client     *http.Client
	opts       SlackOptions
	logger     *slog.Logger
}

// SlackOptions configures the Slack hook behavior.
type SlackOptions struct {
	// Channel override (uses webhook default if empty).
	Channel string

	// Username for bot (default: "auditview").
	Username string

	// IconEmoji for bot avatar (default: ":package:").
	IconEmoji string

	// MinSeverity skips reports whose most severe finding is below it.
	MinSeverity finding.Severity

	// OnlyVulnerable skips clean reports.
	OnlyVulnerable bool

	// Timeout for HTTP requests (default: 10s).
	Timeout time.Duration

	// Logger for structured logging (default: slog.Default()).
	Logger *slog.Logger
}

// NewSlackHook creates a new Slack hook that sends messages to the given webhook URL.
func NewSlackHook(webhookURL string, opts SlackOptions) *SlackHook {
	if opts.Username == "" {
		opts.Username = defaults.ToolName
	}
	if opts.IconEmoji == "" {
		opts.IconEmoji = ":package:"
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaults.HookTimeout
	}
	return &SlackHook{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: opts.Timeout},
		opts:       opts,
		logger:     orDefault(opts.Logger),
	}
}

// OnEvent sends a message for report and failed gate events.
func (h *SlackHook) OnEvent(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case *events.ReportEvent:
		highest := e.Counts.Highest()
		if h.opts.OnlyVulnerable && highest == "" {
			return nil
		}
		if !meetsMinSeverity(highest, h.opts.MinSeverity) {
			return nil
		}
		h.send(ctx, h.message(buildReportBlocks(e)))
	case *events.GateEvent:
		if !e.Pass {
			h.send(ctx, h.message(buildGateBlocks(e)))
		}
	}
	return nil
}

// EventTypes returns the event types this hook handles.
func (h *SlackHook) EventTypes() []events.EventType {
	return []events.EventType{events.EventTypeReport, events.EventTypeGate}
}

func (h *SlackHook) message(blocks []slackBlock) slackBlockMessage {
	return slackBlockMessage{
		Username:  h.opts.Username,
		IconEmoji: h.opts.IconEmoji,
		Channel:   h.opts.Channel,
		Blocks:    blocks,
	}
}

// buildReportBlocks builds the header, severity fields and fix context.
func buildReportBlocks(e *events.ReportEvent) []slackBlock {
	title := "npm audit report"
	if e.App != "" {
		title += ": " + e.App
	}
	blocks := []slackBlock{{
		Type: "header",
		Text: &slackText{Type: "plain_text", Text: title},
	}}

	if e.Counts.Listed == 0 {
		return append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: ":white_check_mark: No vulnerabilities found."},
		})
	}

	fields := make([]*slackText, 0, len(e.Counts.Severity.Slices))
	for _, s := range e.Counts.Severity.Slices {
		fields = append(fields, &slackText{Type: "mrkdwn", Text: fmt.Sprintf("*%s:*\n%d", s.Label, s.Value)})
	}
	blocks = append(blocks,
		slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: fmt.Sprintf("*%d* vulnerabilities in *%d* packages", e.Counts.TotalVulnerabilities, e.Counts.Listed)},
		},
		slackBlock{Type: "section", Fields: fields},
		slackBlock{Type: "divider"},
		slackBlock{
			Type: "context",
			Elements: []*slackText{{Type: "mrkdwn", Text: fmt.Sprintf(
				"%d fixable with `npm audit fix`, %d need `--force` (%d breaking), %d without fix",
				e.Counts.AutoFix, e.Counts.ObjectFix, e.Counts.Breaking, e.Counts.NoFix)}},
		},
	)
	return blocks
}

// buildGateBlocks lists up to five policy failures.
func buildGateBlocks(e *events.GateEvent) []slackBlock {
	const maxFailures = 5
	lines := e.Failures
	more := 0
	if len(lines) > maxFailures {
		more = len(lines) - maxFailures
		lines = lines[:maxFailures]
	}
	var b strings.Builder
	for _, f := range lines {
		b.WriteString("• " + f + "\n")
	}
	if more > 0 {
		fmt.Fprintf(&b, "_and %d more_\n", more)
	}

	return []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: "Policy " + e.Policy + " failed"}},
		{Type: "section", Text: &slackText{Type: "mrkdwn", Text: b.String()}},
	}
}

// send posts the message once. Failures are logged only.
func (h *SlackHook) send(ctx context.Context, payload slackBlockMessage) {
	body, err := jsonutil.Marshal(payload)
	if err != nil {
		h.logger.Warn("slack: failed to marshal message", slog.String("error", err.Error()))
		return
	}
	if err := postWithRetry(ctx, h.client, h.webhookURL, body, nil, retry.Config{Attempts: 1}); err != nil {
		h.logger.Warn("slack: failed to send message", slog.String("error", err.Error()))
	}
}

// Slack message types for JSON serialization.

type slackBlockMessage struct {
	Username  string       `json:"username,omitempty"`
	IconEmoji string       `json:"icon_emoji,omitempty"`
	Channel   string       `json:"channel,omitempty"`
	Blocks    []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string       `json:"type"`
	Text     *slackText   `json:"text,omitempty"`
	Fields   []*slackText `json:"fields,omitempty"`
	Elements []*slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
