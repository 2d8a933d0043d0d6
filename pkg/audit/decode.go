package audit

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/auditview/auditview/pkg/defaults"
	"github.com/auditview/auditview/pkg/jsonutil"
)

// Option configures Parse.
type Option func(*decoder)

// WithLogger sets the logger for shape anomalies. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *decoder) { d.logger = l }
}

// WithMaxBytes overrides defaults.MaxAuditBytes for ParseReader.
func WithMaxBytes(n int64) Option {
	return func(d *decoder) { d.maxBytes = n }
}

type decoder struct {
	logger   *slog.Logger
	maxBytes int64
}

func newDecoder(opts []Option) *decoder {
	d := &decoder{maxBytes: defaults.MaxAuditBytes}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// ParseReader reads one audit document from r and parses it.
func ParseReader(r io.Reader, opts ...Option) (*Report, error) {
	d := newDecoder(opts)
	data, err := io.ReadAll(io.LimitReader(r, d.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("audit: read: %w", err)
	}
	if int64(len(data)) > d.maxBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, d.maxBytes)
	}
	return d.parse(data)
}

// Parse decodes an npm audit document. The vulnerability list keeps the
// member order of the "vulnerabilities" object.
func Parse(data []byte, opts ...Option) (*Report, error) {
	return newDecoder(opts).parse(data)
}

func (d *decoder) parse(data []byte) (*Report, error) {
	if jsonutil.Kind(data) != '{' {
		return nil, newSyntaxError(data)
	}

	var (
		vulnsRaw jsontext.Value
		metaRaw  jsontext.Value
		toolErr  *ToolError
		report   = &Report{Vulnerabilities: []Vulnerability{}}
	)
	err := jsonutil.ForEachMember(data, func(name string, value jsontext.Value) error {
		switch name {
		case "vulnerabilities":
			vulnsRaw = value
		case "metadata":
			metaRaw = value
		case "auditReportVersion":
			_ = jsonutil.Unmarshal(value, &report.AuditReportVersion)
		case "error":
			toolErr = new(ToolError)
			if err := jsonutil.Unmarshal(value, toolErr); err != nil {
				toolErr.Summary = string(value)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if toolErr != nil {
		return nil, toolErr
	}

	if vulnsRaw.Kind() != '{' {
		return nil, ErrMissingVulnerabilities
	}
	if metaRaw.Kind() != '{' {
		return nil, ErrMissingMetadata
	}
	if err := jsonutil.Unmarshal(metaRaw, &report.Metadata); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingMetadata, err)
	}

	err = jsonutil.ForEachMember(vulnsRaw, func(key string, value jsontext.Value) error {
		report.Vulnerabilities = append(report.Vulnerabilities, d.record(key, value))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return report, nil
}

// record decodes one vulnerability member field by field so a bad field
// only blanks itself.
func (d *decoder) record(key string, value jsontext.Value) Vulnerability {
	v := Vulnerability{Name: key}
	if value.Kind() != '{' {
		d.logger.Debug("vulnerability record is not an object", slog.String("package", key))
		return v
	}
	_ = jsonutil.ForEachMember(value, func(field string, raw jsontext.Value) error {
		var target any
		switch field {
		case "name":
			target = &v.Name
		case "severity":
			target = &v.Severity
		case "range":
			target = &v.Range
		case "isDirect":
			target = &v.IsDirect
		case "fixAvailable":
			target = &v.FixAvailable
		case "via":
			target = &v.Via
		case "effects":
			target = &v.Effects
		case "nodes":
			target = &v.Nodes
		default:
			return nil
		}
		if err := jsonutil.Unmarshal(raw, target); err != nil {
			d.logger.Debug("ignoring malformed field",
				slog.String("package", key),
				slog.String("field", field),
				slog.String("error", err.Error()))
		}
		return nil
	})
	if v.Name == "" {
		v.Name = key
	}
	d.logAnomalies(v)
	return v
}

func (d *decoder) logAnomalies(v Vulnerability) {
	if !v.Severity.IsValid() {
		d.logger.Debug("unknown severity", slog.String("package", v.Name), slog.String("severity", string(v.Severity)))
	}
	if IsAnomalousFix(v.FixAvailable) {
		d.logger.Debug("fixAvailable is neither boolean nor an upgrade object", slog.String("package", v.Name))
	}
	if !v.Via.Sequence {
		d.logger.Debug("via is not a list", slog.String("package", v.Name))
	}
	for i, e := range v.Via.Entries {
		if e.Kind == ViaMalformed {
			d.logger.Debug("malformed via entry", slog.String("package", v.Name), slog.Int("index", i))
		}
	}
}
