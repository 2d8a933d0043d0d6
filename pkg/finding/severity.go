package finding

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Severity represents the severity level npm assigns to an advisory or an
// affected package. Values are lowercase strings exactly as they appear in
// `npm audit --json`.
type Severity string

const (
	// Critical advisories are exploitable with severe impact.
	Critical Severity = "critical"

	// High advisories need a prompt upgrade.
	High Severity = "high"

	// Moderate is npm's middle level. npm never emits "medium".
	Moderate Severity = "moderate"

	// Low advisories have limited impact.
	Low Severity = "low"

	// Info advisories carry no direct security impact.
	Info Severity = "info"
)

// RankUnknown is the rank of any label outside the five levels. It sorts
// after Info.
const RankUnknown = 5

// Grey is the neutral chart color used for unknown severities and the
// peerOptional dependency slice.
const Grey = "#7a7979"

var ranks = map[Severity]int{
	Critical: 0,
	High:     1,
	Moderate: 2,
	Low:      3,
	Info:     4,
}

var colors = map[Severity]string{
	Critical: "#ff2f2f",
	High:     "#f77a7a",
	Moderate: "#958138",
	Low:      "#4ecd86",
	Info:     "#6da4dd",
}

var titleCaser = cases.Title(language.English)

// Ordered returns the five levels from most to least severe.
func Ordered() []Severity {
	return []Severity{Critical, High, Moderate, Low, Info}
}

// IsValid reports whether s is a recognized severity level.
func (s Severity) IsValid() bool {
	_, ok := ranks[s]
	return ok
}

// Rank returns the sort position of s: Critical=0 through Info=4 and
// RankUnknown for anything else. Lower is more severe.
func (s Severity) Rank() int {
	if r, ok := ranks[s]; ok {
		return r
	}
	return RankUnknown
}

// Label returns the capitalized display form ("Critical"). It returns an
// empty string for an empty severity.
func (s Severity) Label() string {
	if s == "" {
		return ""
	}
	return titleCaser.String(string(s))
}

// Color returns the chart color for s, Grey for unknown levels.
func (s Severity) Color() string {
	if c, ok := colors[s]; ok {
		return c
	}
	return Grey
}

// String returns the severity as a string.
func (s Severity) String() string {
	return string(s)
}
