package policy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"gopkg.in/yaml.v3"

	"github.com/auditview/auditview/pkg/audit"
	"github.com/auditview/auditview/pkg/defaults"
	"github.com/auditview/auditview/pkg/finding"
	"github.com/auditview/auditview/pkg/report"
)

// ErrPolicyNotFound is returned when a policy file does not exist.
var ErrPolicyNotFound = errors.New("policy: not found")

// ErrInvalidPolicy is returned when a policy file is malformed.
var ErrInvalidPolicy = errors.New("policy: invalid policy")

// safeModules are the only Tengo stdlib modules available to fail_if.
var safeModules = stdlib.GetModuleMap("math")

// expressionVars are the names bound for fail_if, all integers.
var expressionVars = []string{
	"critical", "high", "moderate", "low", "info", "total",
	"packages", "direct", "indirect",
	"auto_fix", "no_fix", "upgrade", "breaking", "unknown_fix",
}

const resultVar = "__fail__"

// Policy represents a parsed gate policy.
type Policy struct {
	Version string     `yaml:"version"`
	Name    string     `yaml:"name"`
	FailOn  FailOn     `yaml:"fail_on"`
	FailIf  string     `yaml:"fail_if"`
	Ignore  IgnoreSpec `yaml:"ignore"`

	// compiled is the fail_if expression; nil when FailIf is empty.
	compiled *tengo.Compiled
}

// FailOn defines conditions that fail the gate.
type FailOn struct {
	Severity SeverityThresholds `yaml:"severity"`

	// Breaking fails on any upgrade that crosses a major version.
	Breaking bool `yaml:"breaking"`

	// NoFix fails when more than this many packages have no fix.
	NoFix *int `yaml:"no_fix"`

	// DirectOnly restricts the thresholds to direct dependencies.
	DirectOnly bool `yaml:"direct_only"`
}

// SeverityThresholds defines maximum allowed vulnerable packages by
// severity. Nil means no threshold; N means fail if count > N.
type SeverityThresholds struct {
	Total    *int `yaml:"total"`
	Critical *int `yaml:"critical"`
	High     *int `yaml:"high"`
	Moderate *int `yaml:"moderate"`
	Low      *int `yaml:"low"`
	Info     *int `yaml:"info"`
}

func (t SeverityThresholds) of(s finding.Severity) *int {
	switch s {
	case finding.Critical:
		return t.Critical
	case finding.High:
		return t.High
	case finding.Moderate:
		return t.Moderate
	case finding.Low:
		return t.Low
	case finding.Info:
		return t.Info
	}
	return nil
}

// IgnoreSpec lists accepted risks.
type IgnoreSpec struct {
	// Packages are dropped entirely.
	Packages []string `yaml:"packages"`

	// Advisories match a GHSA id or a full advisory URL. A package whose
	// every advisory is ignored and that has no transitive cause is dropped.
	Advisories []string `yaml:"advisories"`
}

// Summary holds the gate metrics after ignore rules.
type Summary struct {
	BySeverity map[finding.Severity]int
	Total      int
	Direct     int
	Indirect   int
	AutoFix    int
	NoFix      int
	Upgrade    int
	Breaking   int
	UnknownFix int

	// Ignored counts packages dropped by ignore rules.
	Ignored int
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	// Pass is true if the policy passed (no failures).
	Pass bool

	// Failures contains human-readable failure messages.
	Failures []string

	// ExitCode is defaults.ExitSuccess or defaults.ExitPolicyFailed.
	ExitCode int

	// PolicyName is the name of the evaluated policy.
	PolicyName string

	Summary Summary
}

// LoadPolicy loads and parses a policy file from the given path.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPolicyNotFound, path)
		}
		return nil, fmt.Errorf("reading policy file: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy parses policy YAML and compiles fail_if.
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	if p.Version == "" {
		p.Version = "1.0"
	}
	for i, id := range p.Ignore.Advisories {
		p.Ignore.Advisories[i] = strings.ToUpper(report.AdvisoryID(strings.TrimSpace(id)))
	}
	if strings.TrimSpace(p.FailIf) != "" {
		compiled, err := compileExpression(p.FailIf)
		if err != nil {
			return nil, fmt.Errorf("%w: fail_if: %v", ErrInvalidPolicy, err)
		}
		p.compiled = compiled
	}
	return &p, nil
}

func compileExpression(expr string) (*tengo.Compiled, error) {
	script := tengo.NewScript([]byte(fmt.Sprintf("%s := (%s)\n", resultVar, expr)))
	script.SetImports(safeModules)
	script.SetMaxAllocs(100_000)
	for _, name := range expressionVars {
		_ = script.Add(name, 0)
	}
	return script.Compile()
}

// Evaluate runs the gate over a normalized list. It is safe for concurrent
// use; fail_if runs on a clone of the compiled script.
func (p *Policy) Evaluate(ctx context.Context, list []audit.Vulnerability) (Result, error) {
	result := Result{
		Pass:       true,
		Failures:   make([]string, 0),
		ExitCode:   defaults.ExitSuccess,
		PolicyName: p.Name,
		Summary:    p.Summarize(list),
	}
	s := result.Summary

	p.checkSeverity(&result, s)

	if p.FailOn.Breaking && s.Breaking > 0 {
		result.Failures = append(result.Failures,
			fmt.Sprintf("breaking upgrades required (%d packages)", s.Breaking))
	}
	if p.FailOn.NoFix != nil && s.NoFix > *p.FailOn.NoFix {
		result.Failures = append(result.Failures,
			fmt.Sprintf("packages without a fix (%d) exceeds threshold (%d)", s.NoFix, *p.FailOn.NoFix))
	}

	if p.compiled != nil {
		fail, err := p.runExpression(ctx, s)
		if err != nil {
			return result, err
		}
		if fail {
			result.Failures = append(result.Failures, fmt.Sprintf("fail_if matched: %s", strings.TrimSpace(p.FailIf)))
		}
	}

	if len(result.Failures) > 0 {
		result.Pass = false
		result.ExitCode = defaults.ExitPolicyFailed
	}
	return result, nil
}

func (p *Policy) checkSeverity(result *Result, s Summary) {
	th := p.FailOn.Severity
	if th.Total != nil && s.Total > *th.Total {
		result.Failures = append(result.Failures,
			fmt.Sprintf("vulnerable packages (%d) exceeds threshold (%d)", s.Total, *th.Total))
	}
	for _, sev := range finding.Ordered() {
		limit := th.of(sev)
		if limit == nil {
			continue
		}
		if n := s.BySeverity[sev]; n > *limit {
			result.Failures = append(result.Failures,
				fmt.Sprintf("%s severity packages (%d) exceeds threshold (%d)", sev, n, *limit))
		}
	}
}

func (p *Policy) runExpression(ctx context.Context, s Summary) (bool, error) {
	c := p.compiled.Clone()
	values := map[string]int{
		"critical":    s.BySeverity[finding.Critical],
		"high":        s.BySeverity[finding.High],
		"moderate":    s.BySeverity[finding.Moderate],
		"low":         s.BySeverity[finding.Low],
		"info":        s.BySeverity[finding.Info],
		"total":       s.Total,
		"packages":    s.Total,
		"direct":      s.Direct,
		"indirect":    s.Indirect,
		"auto_fix":    s.AutoFix,
		"no_fix":      s.NoFix,
		"upgrade":     s.Upgrade,
		"breaking":    s.Breaking,
		"unknown_fix": s.UnknownFix,
	}
	for name, v := range values {
		if err := c.Set(name, v); err != nil {
			return false, fmt.Errorf("policy: binding %s: %w", name, err)
		}
	}
	if err := c.RunContext(ctx); err != nil {
		return false, fmt.Errorf("policy: fail_if: %w", err)
	}
	v := c.Get(resultVar)
	if v.IsUndefined() {
		return false, nil
	}
	return v.Bool(), nil
}

// Summarize applies the ignore rules and counts what remains.
func (p *Policy) Summarize(list []audit.Vulnerability) Summary {
	s := Summary{BySeverity: make(map[finding.Severity]int)}
	for _, v := range list {
		if p.ignored(v) {
			s.Ignored++
			continue
		}
		if p.FailOn.DirectOnly && !v.IsDirect {
			continue
		}
		s.Total++
		s.BySeverity[v.Severity]++
		if v.IsDirect {
			s.Direct++
		} else {
			s.Indirect++
		}
		switch v.FixAvailable.Kind {
		case audit.FixAuto:
			s.AutoFix++
		case audit.FixNone:
			s.NoFix++
		case audit.FixUpgrade:
			s.Upgrade++
			if v.FixAvailable.IsSemVerMajor {
				s.Breaking++
			}
		default:
			s.UnknownFix++
		}
	}
	return s
}

func (p *Policy) ignored(v audit.Vulnerability) bool {
	if slices.Contains(p.Ignore.Packages, v.Name) {
		return true
	}
	if len(p.Ignore.Advisories) == 0 || !v.Via.Sequence || v.Via.Len() == 0 {
		return false
	}
	for _, e := range v.Via.Entries {
		if !audit.IsAdvisory(e) {
			return false
		}
		id := strings.ToUpper(report.AdvisoryID(e.Advisory.URL))
		if !slices.Contains(p.Ignore.Advisories, id) {
			return false
		}
	}
	return true
}

// String returns a human-readable representation of the policy.
func (p *Policy) String() string {
	if p.Name != "" {
		return fmt.Sprintf("Policy(%s v%s)", p.Name, p.Version)
	}
	return fmt.Sprintf("Policy(v%s)", p.Version)
}
