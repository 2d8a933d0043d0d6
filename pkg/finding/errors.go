package finding

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownSeverity is returned by Parse for labels outside the five npm
// levels. Callers should use errors.Is() to check for it.
var ErrUnknownSeverity = errors.New("finding: unknown severity")

// Parse converts a user supplied label (flags, policy files) to a Severity.
// Matching is case-insensitive so "High" and "HIGH" are accepted.
func Parse(label string) (Severity, error) {
	s := Severity(strings.ToLower(strings.TrimSpace(label)))
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownSeverity, label)
	}
	return s, nil
}
