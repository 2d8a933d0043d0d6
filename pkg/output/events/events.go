// Package events defines the events auditview emits while turning audits
// into reports. All events are designed for JSON serialization so hooks can
// forward them to CI systems and collectors unchanged.
//
// BaseEvent is embedded in every concrete event type.
package events

import (
	"time"

	"github.com/auditview/auditview/pkg/audit"
)

// EventType represents the type of output event.
type EventType string

const (
	// EventTypeReport indicates a report was rendered.
	EventTypeReport EventType = "report"
	// EventTypeGate indicates a policy gate was evaluated.
	EventTypeGate EventType = "gate"
	// EventTypeError indicates a request failed.
	EventTypeError EventType = "error"
)

// Source names the surface that produced an event.
type Source string

const (
	SourceCLI  Source = "cli"
	SourceHTTP Source = "http"
	SourceMCP  Source = "mcp"
)

// Event is the base interface for all events.
type Event interface {
	EventType() EventType
	Timestamp() time.Time
	ReportID() string
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	Type   EventType `json:"type"`
	Time   time.Time `json:"timestamp"`
	Report string    `json:"report_id,omitempty"`
	Source Source    `json:"source"`
}

// EventType returns the type of this event.
func (e BaseEvent) EventType() EventType { return e.Type }

// Timestamp returns when this event occurred.
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// ReportID returns the identifier of the report the event belongs to.
func (e BaseEvent) ReportID() string { return e.Report }

// ReportEvent is emitted after a document was assembled and written.
type ReportEvent struct {
	BaseEvent
	Format     string       `json:"format"`
	App        string       `json:"app,omitempty"`
	Counts     audit.Counts `json:"counts"`
	Bytes      int          `json:"bytes"`
	DurationMs float64      `json:"duration_ms"`
}

// NewReport builds a ReportEvent stamped with the current time.
func NewReport(src Source, id, format string, counts audit.Counts) *ReportEvent {
	return &ReportEvent{
		BaseEvent: BaseEvent{Type: EventTypeReport, Time: time.Now(), Report: id, Source: src},
		Format:    format,
		Counts:    counts,
	}
}

// Since sets DurationMs from start and returns e for chaining.
func (e *ReportEvent) Since(start time.Time) *ReportEvent {
	e.DurationMs = float64(time.Since(start).Microseconds()) / 1000.0
	return e
}

// GateEvent is emitted after a policy was evaluated against a report.
type GateEvent struct {
	BaseEvent
	Policy   string   `json:"policy"`
	Pass     bool     `json:"pass"`
	ExitCode int      `json:"exit_code"`
	Failures []string `json:"failures"`
}

// NewGate builds a GateEvent stamped with the current time.
func NewGate(src Source, id, policy string, pass bool, exitCode int, failures []string) *GateEvent {
	return &GateEvent{
		BaseEvent: BaseEvent{Type: EventTypeGate, Time: time.Now(), Report: id, Source: src},
		Policy:    policy,
		Pass:      pass,
		ExitCode:  exitCode,
		Failures:  failures,
	}
}

// ErrorEvent is emitted when an audit could not be turned into a report.
type ErrorEvent struct {
	BaseEvent
	// Stage is where the failure happened: "decode", "assemble", "write" or "policy".
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// NewError builds an ErrorEvent stamped with the current time.
func NewError(src Source, id, stage string, err error) *ErrorEvent {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &ErrorEvent{
		BaseEvent: BaseEvent{Type: EventTypeError, Time: time.Now(), Report: id, Source: src},
		Stage:     stage,
		Message:   msg,
	}
}
