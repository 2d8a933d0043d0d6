package hooks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/auditview/auditview/pkg/defaults"
	"github.com/auditview/auditview/pkg/finding"
	"github.com/auditview/auditview/pkg/jsonutil"
	"github.com/auditview/auditview/pkg/output/dispatcher"
	"github.com/auditview/auditview/pkg/output/events"
	"github.com/auditview/auditview/pkg/retry"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*WebhookHook)(nil)

// WebhookHook posts events as JSON to an HTTP endpoint. It retries 5xx
// responses with exponential backoff and gives up on 4xx.
type WebhookHook struct {
	endpoint string
	client   *http.Client
	opts     WebhookOptions
	logger   *slog.Logger
}

// WebhookOptions configures the webhook hook behavior.
type WebhookOptions struct {
	// Headers to include in requests.
	Headers map[string]string

	// Timeout for HTTP requests (default: 10s).
	Timeout time.Duration

	// RetryCount is the number of attempts (default: 3).
	RetryCount int

	// RetryBase is the first backoff delay (default: 1s).
	RetryBase time.Duration

	// OnlyFailures sends failed gates and errors only.
	OnlyFailures bool

	// MinSeverity skips report events whose most severe finding is below
	// this level. Clean reports are skipped too when it is set.
	MinSeverity finding.Severity

	// Logger for delivery failures (default: slog.Default()).
	Logger *slog.Logger
}

// NewWebhookHook creates a webhook hook. It is safe for concurrent use.
func NewWebhookHook(endpoint string, opts WebhookOptions) *WebhookHook {
	if opts.Timeout == 0 {
		opts.Timeout = defaults.HookTimeout
	}
	if opts.RetryCount == 0 {
		opts.RetryCount = defaults.HookRetries
	}
	if opts.RetryBase == 0 {
		opts.RetryBase = time.Second
	}
	return &WebhookHook{
		endpoint: endpoint,
		client:   &http.Client{Timeout: opts.Timeout},
		opts:     opts,
		logger:   orDefault(opts.Logger),
	}
}

// OnEvent sends the event. Delivery failures are logged and never
// returned, so a dead endpoint cannot fail a report.
func (h *WebhookHook) OnEvent(ctx context.Context, event events.Event) error {
	if !h.wants(event) {
		return nil
	}

	body, err := jsonutil.Marshal(event)
	if err != nil {
		h.logger.Warn("webhook: failed to marshal event", slog.String("error", err.Error()))
		return nil
	}

	cfg := retry.Delivery(h.opts.RetryBase)
	cfg.Attempts = h.opts.RetryCount
	if err := postWithRetry(ctx, h.client, h.endpoint, body, h.headers(event), cfg); err != nil {
		h.logger.Warn("webhook: delivery failed",
			slog.String("endpoint", h.endpoint),
			slog.String("event", string(event.EventType())),
			slog.String("error", err.Error()))
	}
	return nil
}

// EventTypes returns nil to receive all event types; filtering happens in
// OnEvent.
func (h *WebhookHook) EventTypes() []events.EventType { return nil }

func (h *WebhookHook) wants(event events.Event) bool {
	switch e := event.(type) {
	case *events.ReportEvent:
		if h.opts.OnlyFailures {
			return false
		}
		return meetsMinSeverity(e.Counts.Highest(), h.opts.MinSeverity)
	case *events.GateEvent:
		return !h.opts.OnlyFailures || !e.Pass
	}
	return true
}

func (h *WebhookHook) headers(event events.Event) map[string]string {
	out := map[string]string{"X-Auditview-Event": string(event.EventType())}
	for k, v := range h.opts.Headers {
		out[k] = v
	}
	return out
}

// meetsMinSeverity reports whether highest is at least minimum. An empty
// minimum accepts everything; an empty highest (clean report) only passes
// an empty minimum.
func meetsMinSeverity(highest, minimum finding.Severity) bool {
	if minimum == "" {
		return true
	}
	if highest == "" {
		return false
	}
	return highest.Rank() <= minimum.Rank()
}

// postWithRetry posts body as JSON. Transport errors and 5xx responses are
// retried per cfg; any other non-2xx status stops immediately.
func postWithRetry(ctx context.Context, client *http.Client, endpoint string, body []byte, headers map[string]string, cfg retry.Config) error {
	return retry.Do(ctx, cfg, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return retry.Stop(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", defaults.ContentTypeJSON)
		req.Header.Set("User-Agent", defaults.ToolName+"/"+defaults.Version)
		for key, value := range headers {
			req.Header.Set(key, value)
		}

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 500:
			return fmt.Errorf("server error: %d", resp.StatusCode)
		default:
			return retry.Stop(fmt.Errorf("client error: %d", resp.StatusCode))
		}
	})
}
