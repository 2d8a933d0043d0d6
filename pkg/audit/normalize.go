package audit

import (
	"fmt"
	"slices"
)

// SortKey selects the comparator Normalize applies.
type SortKey string

const (
	// SortSeverity orders by severity rank, critical first.
	SortSeverity SortKey = "severity"

	// SortDirect orders by isDirect.
	SortDirect SortKey = "direct"
)

// ParseSortKey validates a user supplied sort key. An empty string selects
// SortSeverity.
func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(s) {
	case "", SortSeverity:
		return SortSeverity, nil
	case SortDirect:
		return SortDirect, nil
	}
	return "", fmt.Errorf("audit: unknown sort key %q (want %q or %q)", s, SortSeverity, SortDirect)
}

// Order is a sort key plus direction. Descending only applies to
// SortDirect, where true puts direct dependencies first.
type Order struct {
	Key        SortKey
	Descending bool
}

// DefaultOrder is the order used by the report: most severe first.
var DefaultOrder = Order{Key: SortSeverity}

// Normalize returns a new, stably sorted copy of the report's records.
// A nil report yields an empty list.
func Normalize(r *Report, o Order) []Vulnerability {
	if r == nil {
		return []Vulnerability{}
	}
	list := slices.Clone(r.Vulnerabilities)
	if list == nil {
		list = []Vulnerability{}
	}
	switch o.Key {
	case SortDirect:
		SortByDirect(list, o.Descending)
	default:
		SortBySeverity(list)
	}
	return list
}

// SortBySeverity sorts list in place by severity rank. Ties keep their
// relative order.
func SortBySeverity(list []Vulnerability) {
	slices.SortStableFunc(list, func(a, b Vulnerability) int {
		return a.Severity.Rank() - b.Severity.Rank()
	})
}

// SortByDirect sorts list in place by isDirect. With descending set,
// direct dependencies come first. Ties keep their relative order.
func SortByDirect(list []Vulnerability, descending bool) {
	key := func(v Vulnerability) int {
		if v.IsDirect == descending {
			return 0
		}
		return 1
	}
	slices.SortStableFunc(list, func(a, b Vulnerability) int {
		return key(a) - key(b)
	})
}
