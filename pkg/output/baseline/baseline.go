package baseline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/auditview/auditview/pkg/audit"
	"github.com/auditview/auditview/pkg/finding"
	"github.com/auditview/auditview/pkg/jsonutil"
	"github.com/auditview/auditview/pkg/report"
)

// Version is the current baseline file format version.
const Version = "1.0"

// ErrBaselineNotFound is returned when a baseline file does not exist.
var ErrBaselineNotFound = errors.New("baseline file not found")

// ErrInvalidBaseline is returned when a baseline file is malformed.
var ErrInvalidBaseline = errors.New("invalid baseline file")

// Baseline is the set of vulnerable packages known at some reference audit.
type Baseline struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ReportID  string    `json:"report_id,omitempty"`
	App       string    `json:"app,omitempty"`
	Packages  []Entry   `json:"packages"`
	Summary   Summary   `json:"summary"`

	mu sync.RWMutex
}

// Summary holds aggregate figures of the reference audit.
type Summary struct {
	TotalPackages int              `json:"total_packages"`
	Highest       finding.Severity `json:"highest_severity,omitempty"`
}

// Entry is one vulnerable package.
type Entry struct {
	Name       string           `json:"name"`
	Severity   finding.Severity `json:"severity"`
	Direct     bool             `json:"direct"`
	Advisories []string         `json:"advisories,omitempty"`
	FirstSeen  time.Time        `json:"first_seen"`
}

// ComparisonResult is the outcome of comparing an audit against a baseline.
type ComparisonResult struct {
	// New packages are vulnerable now but absent from the baseline.
	New []Entry `json:"new"`

	// Escalated packages are in both, with a higher severity or an extra
	// advisory now.
	Escalated []Entry `json:"escalated"`

	// Fixed packages are in the baseline but no longer vulnerable.
	Fixed []Entry `json:"fixed"`

	// Unchanged packages are in both without escalation.
	Unchanged []Entry `json:"unchanged"`

	// HasRegression is true when New or Escalated is non-empty.
	HasRegression bool `json:"regression"`

	// Summary is a one-line human-readable verdict.
	Summary string `json:"summary"`
}

// Failures lists one message per regressed package, in the style of
// policy gate failures.
func (r ComparisonResult) Failures() []string {
	out := make([]string, 0, len(r.New)+len(r.Escalated))
	for _, e := range r.New {
		out = append(out, fmt.Sprintf("new %s vulnerability in %s", e.Severity, e.Name))
	}
	for _, e := range r.Escalated {
		out = append(out, fmt.Sprintf("%s escalated to %s", e.Name, e.Severity))
	}
	return out
}

// New creates an empty baseline.
func New() *Baseline {
	now := time.Now().UTC()
	return &Baseline{
		Version:   Version,
		CreatedAt: now,
		UpdatedAt: now,
		Packages:  []Entry{},
	}
}

// LoadBaseline reads a baseline file.
// Returns ErrBaselineNotFound if the file doesn't exist.
// Returns ErrInvalidBaseline if the file is malformed.
func LoadBaseline(path string) (*Baseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrBaselineNotFound, path)
		}
		return nil, fmt.Errorf("reading baseline file: %w", err)
	}

	var b Baseline
	if err := jsonutil.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseline, err)
	}
	if b.Version == "" {
		return nil, fmt.Errorf("%w: missing version field", ErrInvalidBaseline)
	}
	if b.Packages == nil {
		b.Packages = []Entry{}
	}
	return &b, nil
}

// SaveBaseline writes the baseline to path, creating parent directories.
func (b *Baseline) SaveBaseline(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.UpdatedAt = time.Now().UTC()

	data, err := jsonutil.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling baseline: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating baseline directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing baseline file: %w", err)
	}
	return nil
}

// CreateFromDocument builds a baseline from an assembled report.
func CreateFromDocument(doc *report.Document) *Baseline {
	b := New()
	if doc == nil {
		return b
	}
	b.ReportID = doc.ID
	if doc.App != nil {
		b.App = doc.App.Name
	}
	b.Packages = ExtractEntries(doc.Vulnerabilities)
	for i := range b.Packages {
		b.Packages[i].FirstSeen = b.CreatedAt
	}
	b.Summary = summarize(b.Packages)
	return b
}

// ExtractEntries converts vulnerability records to entries sorted by name.
// Repeated names keep the first record.
func ExtractEntries(list []audit.Vulnerability) []Entry {
	out := make([]Entry, 0, len(list))
	seen := make(map[string]bool, len(list))
	for _, v := range list {
		if seen[v.Name] {
			continue
		}
		seen[v.Name] = true
		out = append(out, Entry{
			Name:       v.Name,
			Severity:   v.Severity,
			Direct:     v.IsDirect,
			Advisories: advisoryKeys(v),
		})
	}
	slices.SortFunc(out, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// advisoryKeys identifies advisories by URL, falling back to the title.
func advisoryKeys(v audit.Vulnerability) []string {
	var keys []string
	for _, a := range audit.UniqueAdvisories(v) {
		key := a.URL
		if key == "" {
			key = a.Title
		}
		if key != "" && !slices.Contains(keys, key) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys
}

func summarize(entries []Entry) Summary {
	s := Summary{TotalPackages: len(entries)}
	for _, e := range entries {
		if s.Highest == "" || e.Severity.Rank() < s.Highest.Rank() {
			s.Highest = e.Severity
		}
	}
	return s
}

// Compare classifies the current entries against the baseline.
func (b *Baseline) Compare(current []Entry) ComparisonResult {
	b.mu.RLock()
	defer b.mu.RUnlock()

	known := make(map[string]Entry, len(b.Packages))
	for _, e := range b.Packages {
		known[e.Name] = e
	}
	now := make(map[string]bool, len(current))

	result := ComparisonResult{
		New:       []Entry{},
		Escalated: []Entry{},
		Fixed:     []Entry{},
		Unchanged: []Entry{},
	}
	for _, e := range current {
		now[e.Name] = true
		old, ok := known[e.Name]
		switch {
		case !ok:
			result.New = append(result.New, e)
		case escalated(old, e):
			e.FirstSeen = old.FirstSeen
			result.Escalated = append(result.Escalated, e)
		default:
			e.FirstSeen = old.FirstSeen
			result.Unchanged = append(result.Unchanged, e)
		}
	}
	for _, e := range b.Packages {
		if !now[e.Name] {
			result.Fixed = append(result.Fixed, e)
		}
	}

	result.HasRegression = len(result.New) > 0 || len(result.Escalated) > 0
	result.Summary = generateSummary(result)
	return result
}

func escalated(old, cur Entry) bool {
	if cur.Severity.Rank() < old.Severity.Rank() {
		return true
	}
	for _, a := range cur.Advisories {
		if !slices.Contains(old.Advisories, a) {
			return true
		}
	}
	return false
}

func generateSummary(result ComparisonResult) string {
	var sb strings.Builder
	if result.HasRegression {
		fmt.Fprintf(&sb, "REGRESSION: %d new, %d escalated", len(result.New), len(result.Escalated))
	} else {
		sb.WriteString("No new vulnerabilities")
	}
	if len(result.Fixed) > 0 {
		fmt.Fprintf(&sb, ", %d fixed", len(result.Fixed))
	}
	if len(result.Unchanged) > 0 {
		fmt.Fprintf(&sb, ", %d unchanged", len(result.Unchanged))
	}
	return sb.String()
}

// Refresh replaces the packages with current, keeping FirstSeen for
// packages the baseline already knew.
func (b *Baseline) Refresh(current []Entry, reportID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	firstSeen := make(map[string]time.Time, len(b.Packages))
	for _, e := range b.Packages {
		firstSeen[e.Name] = e.FirstSeen
	}
	now := time.Now().UTC()
	packages := make([]Entry, len(current))
	for i, e := range current {
		if t, ok := firstSeen[e.Name]; ok && !t.IsZero() {
			e.FirstSeen = t
		} else if e.FirstSeen.IsZero() {
			e.FirstSeen = now
		}
		packages[i] = e
	}
	b.Packages = packages
	b.ReportID = reportID
	b.Summary = summarize(packages)
	b.UpdatedAt = now
}

// Get returns the entry for a package name.
func (b *Baseline) Get(name string) (Entry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, e := range b.Packages {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Len returns the number of packages in the baseline.
func (b *Baseline) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.Packages)
}
