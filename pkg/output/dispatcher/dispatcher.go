// Package dispatcher routes report events to registered hooks. Hooks handle
// integrations (logs, metrics, traces, webhooks) and never influence the
// report itself: a failing hook is logged and the remaining hooks still run.
package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/auditview/auditview/pkg/output/events"
)

// Hook is the interface for event hooks.
type Hook interface {
	// OnEvent is called for each matching event.
	OnEvent(ctx context.Context, event events.Event) error

	// EventTypes returns the event types this hook handles.
	// Return nil or empty slice to receive all events.
	EventTypes() []events.EventType
}

// Closer is implemented by hooks that hold resources.
type Closer interface {
	Close() error
}

// Dispatcher routes events to hooks. It is safe for concurrent use; the
// HTTP and MCP servers share one instance across requests.
type Dispatcher struct {
	hooks  []Hook
	mu     sync.RWMutex
	async  bool
	wg     sync.WaitGroup
	closed bool
	logger *slog.Logger
}

// Config configures the dispatcher behavior.
type Config struct {
	// Async runs hooks in goroutines. Close waits for them.
	Async bool

	// Logger receives hook failures (default: slog.Default()).
	Logger *slog.Logger
}

// New creates a new event dispatcher with the given configuration.
func New(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		hooks:  make([]Hook, 0),
		async:  cfg.Async,
		logger: logger,
	}
}

// RegisterHook adds a hook to the dispatcher.
func (d *Dispatcher) RegisterHook(h Hook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, h)
}

// Len reports how many hooks are registered.
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.hooks)
}

// Dispatch sends an event to all hooks that handle its type. It returns
// nil even if individual hooks fail. A nil Dispatcher drops the event.
func (d *Dispatcher) Dispatch(ctx context.Context, event events.Event) error {
	if d == nil {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil
	}

	for _, h := range d.hooks {
		if !hookSupportsEvent(h, event.EventType()) {
			continue
		}
		if d.async {
			d.wg.Add(1)
			go func(hook Hook) {
				defer d.wg.Done()
				d.call(context.WithoutCancel(ctx), hook, event)
			}(h)
			continue
		}
		d.call(ctx, h, event)
	}
	return nil
}

func (d *Dispatcher) call(ctx context.Context, h Hook, event events.Event) {
	if err := h.OnEvent(ctx, event); err != nil {
		d.logger.Warn("hook failed",
			slog.String("event", string(event.EventType())),
			slog.String("report_id", event.ReportID()),
			slog.String("error", err.Error()))
	}
}

// hookSupportsEvent checks if a hook handles the given event type.
func hookSupportsEvent(h Hook, eventType events.EventType) bool {
	types := h.EventTypes()
	if len(types) == 0 {
		return true
	}
	for _, et := range types {
		if et == eventType {
			return true
		}
	}
	return false
}

// Close waits for in-flight async hooks and closes every hook that
// implements Closer. After Close, Dispatch drops events.
func (d *Dispatcher) Close() error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	hooks := d.hooks
	d.mu.Unlock()

	d.wg.Wait()

	var errs []error
	for _, h := range hooks {
		if c, ok := h.(Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
