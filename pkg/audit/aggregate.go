package audit

import (
	"fmt"

	"github.com/auditview/auditview/pkg/finding"
)

// Counts holds the rollups derived from one report. It is computed, never
// stored back onto records.
type Counts struct {
	// TotalVulnerabilities sums npm's five severity counters. npm counts
	// advisories per path, so this can exceed len(list).
	TotalVulnerabilities int `json:"totalVulnerabilities"`
	TotalDependencies    int `json:"totalDependencies"`
	PackagesUsed         int `json:"packagesUsed"`
	Listed               int `json:"listed"`

	// BooleanFix, ObjectFix and AnomalousFix partition the list.
	BooleanFix   int `json:"booleanFix"`
	ObjectFix    int `json:"objectFix"`
	AnomalousFix int `json:"anomalousFix"`

	// AutoFix and NoFix split BooleanFix into true and false.
	AutoFix int `json:"autoFix"`
	NoFix   int `json:"noFix"`

	// Breaking counts upgrades that cross a major version.
	Breaking int `json:"breaking"`

	Direct   int `json:"direct"`
	Indirect int `json:"indirect"`

	Severity     Chart `json:"severityChart"`
	Dependencies Chart `json:"dependencyChart"`
}

// Chart is one doughnut: fixed-order slices with labels and colors.
type Chart struct {
	Total  int     `json:"total"`
	Slices []Slice `json:"slices"`
}

// Slice is one chart segment.
type Slice struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value int    `json:"value"`
	Color string `json:"color"`
}

// Values returns the slice values in chart order.
func (c Chart) Values() []int {
	out := make([]int, len(c.Slices))
	for i, s := range c.Slices {
		out[i] = s.Value
	}
	return out
}

// Labels returns "Name (n)" labels in chart order.
func (c Chart) Labels() []string {
	out := make([]string, len(c.Slices))
	for i, s := range c.Slices {
		out[i] = fmt.Sprintf("%s (%d)", s.Label, s.Value)
	}
	return out
}

// Colors returns the slice colors in chart order.
func (c Chart) Colors() []string {
	out := make([]string, len(c.Slices))
	for i, s := range c.Slices {
		out[i] = s.Color
	}
	return out
}

// dependencyKinds fixes chart order and coloring for metadata.dependencies.
var dependencyKinds = []struct {
	key   string
	label string
	color string
	value func(DependencyCounts) int
}{
	{"dev", "Dev", finding.Moderate.Color(), func(c DependencyCounts) int { return c.Dev }},
	{"prod", "Prod", finding.Info.Color(), func(c DependencyCounts) int { return c.Prod }},
	{"optional", "Optional", finding.Low.Color(), func(c DependencyCounts) int { return c.Optional }},
	{"peer", "Peer", finding.High.Color(), func(c DependencyCounts) int { return c.Peer }},
	{"peerOptional", "Peer Optional", finding.Grey, func(c DependencyCounts) int { return c.PeerOptional }},
}

// Aggregate computes Counts from a normalized list and npm's metadata.
func Aggregate(list []Vulnerability, meta Metadata) Counts {
	c := Counts{
		TotalVulnerabilities: meta.Vulnerabilities.Sum(),
		TotalDependencies:    meta.Dependencies.Total,
		PackagesUsed:         meta.Dependencies.Used(),
		Listed:               len(list),
	}

	for _, v := range list {
		switch {
		case IsBooleanFix(v.FixAvailable):
			c.BooleanFix++
			if v.FixAvailable.Kind == FixAuto {
				c.AutoFix++
			} else {
				c.NoFix++
			}
		case IsObjectFix(v.FixAvailable):
			c.ObjectFix++
			if v.FixAvailable.IsSemVerMajor {
				c.Breaking++
			}
		default:
			c.AnomalousFix++
		}
		if v.IsDirect {
			c.Direct++
		} else {
			c.Indirect++
		}
	}

	c.Severity = Chart{Total: c.TotalVulnerabilities}
	for _, s := range finding.Ordered() {
		c.Severity.Slices = append(c.Severity.Slices, Slice{
			Key:   string(s),
			Label: s.Label(),
			Value: meta.Vulnerabilities.Of(s),
			Color: s.Color(),
		})
	}

	c.Dependencies = Chart{Total: c.TotalDependencies}
	for _, k := range dependencyKinds {
		c.Dependencies.Slices = append(c.Dependencies.Slices, Slice{
			Key:   k.key,
			Label: k.label,
			Value: k.value(meta.Dependencies),
			Color: k.color,
		})
	}
	return c
}

// Highest returns the most severe level with a non-zero counter, or ""
// when the metadata reports no vulnerabilities.
func (c Counts) Highest() finding.Severity {
	for _, s := range c.Severity.Slices {
		if s.Value > 0 {
			return finding.Severity(s.Key)
		}
	}
	return ""
}
