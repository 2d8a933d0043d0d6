// Package exitcode provides semantic exit codes for CI/CD integration.
// Exit codes communicate the outcome of `auditview check` and `auditview
// report` to automation pipelines.
//
// Exit codes:
//   - 0: Success (report written, gate passed)
//   - 1: Policy failed
//   - 2: User error (bad input, flags, policy or config)
//   - 4: Internal error
package exitcode

import (
	"errors"
	"fmt"
	"sync"

	"github.com/auditview/auditview/pkg/audit"
	"github.com/auditview/auditview/pkg/defaults"
	"github.com/auditview/auditview/pkg/manifest"
	"github.com/auditview/auditview/pkg/output/baseline"
	"github.com/auditview/auditview/pkg/output/policy"
	"github.com/auditview/auditview/pkg/output/writers"
	"github.com/auditview/auditview/pkg/report"
	"github.com/auditview/auditview/pkg/templateresolver"
)

// Code represents a semantic exit code for CI/CD pipelines.
type Code int

const (
	// Success indicates the command completed and any gate passed.
	Success Code = defaults.ExitSuccess
	// PolicyFailed indicates the gate policy rejected the audit.
	PolicyFailed Code = defaults.ExitPolicyFailed
	// UserError indicates invalid input or configuration.
	UserError Code = defaults.ExitUserError
	// Internal indicates a failure that is not the user's to fix.
	Internal Code = defaults.ExitInternalError
)

// codeStrings maps exit codes to machine-readable names.
var codeStrings = map[Code]string{
	Success:      "success",
	PolicyFailed: "policy_failed",
	UserError:    "user_error",
	Internal:     "internal_error",
}

// codeDescriptions provides detailed descriptions for exit codes.
var codeDescriptions = map[Code]string{
	Success:      "Completed successfully",
	PolicyFailed: "The audit violates the gate policy",
	UserError:    "Invalid input, flags, policy or configuration",
	Internal:     "Internal error",
}

// userErrors are the sentinels that map to UserError.
var userErrors = []error{
	audit.ErrInvalidJSON,
	audit.ErrMissingVulnerabilities,
	audit.ErrMissingMetadata,
	audit.ErrAuditFailed,
	audit.ErrTooLarge,
	manifest.ErrNotFound,
	manifest.ErrLockfileNotFound,
	manifest.ErrInvalid,
	policy.ErrPolicyNotFound,
	policy.ErrInvalidPolicy,
	baseline.ErrBaselineNotFound,
	baseline.ErrInvalidBaseline,
	report.ErrInvalidConfig,
	templateresolver.ErrNotFound,
	writers.ErrUnknownFormat,
	ErrUsage,
}

// ErrUsage marks command-line misuse.
var ErrUsage = errors.New("usage error")

// FromError classifies an error. nil is Success.
func FromError(err error) Code {
	if err == nil {
		return Success
	}
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return UserError
		}
	}
	return Internal
}

// Manager collects the outcome of one command and determines the exit
// code. It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	err      error
	failures []string
}

// New creates a new exit code manager.
func New() *Manager {
	return &Manager{}
}

// RecordError keeps the first error; later ones are dropped.
func (m *Manager) RecordError(err error) {
	if err == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err == nil {
		m.err = err
	}
}

// RecordPolicy records a gate evaluation.
func (m *Manager) RecordPolicy(res policy.Result) {
	if res.Pass {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, res.Failures...)
}

// ExitCode returns the appropriate exit code. Errors take priority over
// policy failures. The returned string provides a human-readable reason.
func (m *Manager) ExitCode() (Code, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		code := FromError(m.err)
		return code, fmt.Sprintf("%s: %v", codeDescriptions[code], m.err)
	}
	if len(m.failures) > 0 {
		return PolicyFailed, fmt.Sprintf("%s (%d failures)", codeDescriptions[PolicyFailed], len(m.failures))
	}
	return Success, codeDescriptions[Success]
}

// CodeString returns the machine-readable name of an exit code.
func CodeString(code Code) string {
	if s, ok := codeStrings[code]; ok {
		return s
	}
	return fmt.Sprintf("unknown_code_%d", code)
}

// Description returns the human-readable description of an exit code.
func Description(code Code) string {
	if s, ok := codeDescriptions[code]; ok {
		return s
	}
	return "Unknown exit code"
}
