package audit

import (
	"github.com/auditview/auditview/pkg/finding"
)

// Report is a decoded npm audit document.
type Report struct {
	AuditReportVersion int `json:"auditReportVersion,omitempty"`

	// Vulnerabilities holds one record per affected package in document
	// order. It is empty, never nil, for a clean project.
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`

	Metadata Metadata `json:"metadata"`
}

// Metadata holds npm's authoritative counters.
type Metadata struct {
	Vulnerabilities SeverityCounts   `json:"vulnerabilities"`
	Dependencies    DependencyCounts `json:"dependencies"`
}

// SeverityCounts is metadata.vulnerabilities.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Moderate int `json:"moderate"`
	Low      int `json:"low"`
	Info     int `json:"info"`
	Total    int `json:"total"`
}

// Of returns the counter for s, 0 for unknown levels.
func (c SeverityCounts) Of(s finding.Severity) int {
	switch s {
	case finding.Critical:
		return c.Critical
	case finding.High:
		return c.High
	case finding.Moderate:
		return c.Moderate
	case finding.Low:
		return c.Low
	case finding.Info:
		return c.Info
	}
	return 0
}

// Sum adds the five level counters. It ignores Total.
func (c SeverityCounts) Sum() int {
	return c.Critical + c.High + c.Moderate + c.Low + c.Info
}

// DependencyCounts is metadata.dependencies.
type DependencyCounts struct {
	Dev          int `json:"dev"`
	Prod         int `json:"prod"`
	Optional     int `json:"optional"`
	Peer         int `json:"peer"`
	PeerOptional int `json:"peerOptional"`
	Total        int `json:"total"`
}

// Used is the "Packages Used" figure shown in the report header.
func (c DependencyCounts) Used() int {
	return c.Dev + c.Prod + c.Peer
}

// Vulnerability is one affected package.
type Vulnerability struct {
	Name         string           `json:"name"`
	Severity     finding.Severity `json:"severity"`
	Range        string           `json:"range"`
	IsDirect     bool             `json:"isDirect"`
	FixAvailable FixAvailable     `json:"fixAvailable"`
	Via          Via              `json:"via"`
	Effects      []string         `json:"effects,omitempty"`
	Nodes        []string         `json:"nodes,omitempty"`
}

// Advisory is an object entry of a via list: a published advisory that
// affects the package directly.
type Advisory struct {
	Source     int              `json:"source,omitempty"`
	Name       string           `json:"name,omitempty"`
	Dependency string           `json:"dependency,omitempty"`
	Title      string           `json:"title"`
	URL        string           `json:"url"`
	Severity   finding.Severity `json:"severity"`
	CWE        []string         `json:"cwe"`
	CVSS       *CVSS            `json:"cvss,omitempty"`
	Range      string           `json:"range"`
}

// Score returns the CVSS base score, 0 when none was published.
func (a *Advisory) Score() float64 {
	if a == nil || a.CVSS == nil {
		return 0
	}
	return a.CVSS.Score
}

// CVSS is the scoring block of an advisory.
type CVSS struct {
	Score        float64 `json:"score"`
	VectorString string  `json:"vectorString,omitempty"`
}
