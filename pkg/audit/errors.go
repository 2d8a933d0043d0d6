package audit

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for unusable audit documents.
// Callers should use errors.Is() to check for these.
var (
	// ErrInvalidJSON indicates the input is not a JSON object.
	ErrInvalidJSON = errors.New("audit: invalid json")

	// ErrMissingVulnerabilities indicates the "vulnerabilities" member is
	// absent or is not an object.
	ErrMissingVulnerabilities = errors.New("audit: missing vulnerabilities")

	// ErrMissingMetadata indicates the "metadata" member is absent or does
	// not hold the severity and dependency counters.
	ErrMissingMetadata = errors.New("audit: missing metadata")

	// ErrAuditFailed indicates npm reported an error instead of a report,
	// for example ENOLOCK when no lockfile exists.
	ErrAuditFailed = errors.New("audit: npm reported an error")

	// ErrTooLarge indicates the input exceeds the configured size limit.
	ErrTooLarge = errors.New("audit: input too large")
)

// ToolError carries the error object npm prints with --json when the audit
// itself cannot run.
type ToolError struct {
	Code    string `json:"code"`
	Summary string `json:"summary"`
	Detail  string `json:"detail"`
}

func (e *ToolError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s: %s", ErrAuditFailed, e.Summary)
	}
	return fmt.Sprintf("%s: %s: %s", ErrAuditFailed, e.Code, e.Summary)
}

// Is makes errors.Is(err, ErrAuditFailed) match a *ToolError.
func (e *ToolError) Is(target error) bool {
	return target == ErrAuditFailed
}

// maxExcerpt bounds how much of a non-JSON input a SyntaxError keeps.
const maxExcerpt = 512

// SyntaxError is returned when the input is not a JSON object at all. npm
// sometimes prints plain-text warnings in place of --json output, so the
// start of the input is kept for callers that recognise known failures.
type SyntaxError struct {
	Excerpt string
}

func newSyntaxError(data []byte) *SyntaxError {
	text := strings.TrimSpace(string(data[:min(len(data), maxExcerpt)]))
	return &SyntaxError{Excerpt: strings.ToValidUTF8(text, "")}
}

func (e *SyntaxError) Error() string {
	if e.Excerpt == "" {
		return ErrInvalidJSON.Error()
	}
	return fmt.Sprintf("%s: %s", ErrInvalidJSON, e.Excerpt)
}

// Is makes errors.Is(err, ErrInvalidJSON) match a *SyntaxError.
func (e *SyntaxError) Is(target error) bool {
	return target == ErrInvalidJSON
}
