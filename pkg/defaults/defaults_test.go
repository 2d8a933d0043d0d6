package defaults_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/auditview/auditview/pkg/defaults"
	"github.com/auditview/auditview/pkg/ui"
)

// TestVersionConsistency ensures all version references match defaults.Version
func TestVersionConsistency(t *testing.T) {
	t.Parallel()

	assert.Equal(t, defaults.Version, ui.Version)

	semverPattern := regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9]+)?$`)
	assert.Regexp(t, semverPattern, defaults.Version)
}

func TestLimitsAreOrdered(t *testing.T) {
	t.Parallel()

	assert.Greater(t, defaults.MaxAuditBytes, defaults.MaxManifestBytes)
	assert.GreaterOrEqual(t, defaults.RateLimitBurst, defaults.RateLimitPerSecond)
	assert.Less(t, defaults.ReadHeaderTimeout, defaults.WriteTimeout)
}

func TestExitCodesAreDistinct(t *testing.T) {
	t.Parallel()

	codes := []int{
		defaults.ExitSuccess,
		defaults.ExitPolicyFailed,
		defaults.ExitUserError,
		defaults.ExitInternalError,
	}
	seen := make(map[int]bool)
	for _, c := range codes {
		assert.False(t, seen[c], "duplicate exit code %d", c)
		seen[c] = true
	}
}
