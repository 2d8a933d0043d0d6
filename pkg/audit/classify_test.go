package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixPredicatesPartition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		fix       FixAvailable
		boolean   bool
		object    bool
		anomalous bool
	}{
		{"true", FixAvailable{Kind: FixAuto}, true, false, false},
		{"false", FixAvailable{Kind: FixNone}, true, false, false},
		{"object", FixAvailable{Kind: FixUpgrade, Name: "x", Version: "2.0.0"}, false, true, false},
		{"absent", FixAvailable{}, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.boolean, IsBooleanFix(tt.fix))
			assert.Equal(t, tt.object, IsObjectFix(tt.fix))
			assert.Equal(t, tt.anomalous, IsAnomalousFix(tt.fix))
		})
	}
}

// Every decoded record satisfies exactly one fix predicate.
func TestFixPredicatesExclusiveOnFixtures(t *testing.T) {
	t.Parallel()

	for _, fixture := range []string{"scenario.json", "mixed.json"} {
		for _, v := range parseFixture(t, fixture).Vulnerabilities {
			matches := 0
			for _, p := range []func(FixAvailable) bool{IsBooleanFix, IsObjectFix, IsAnomalousFix} {
				if p(v.FixAvailable) {
					matches++
				}
			}
			assert.Equal(t, 1, matches, "%s/%s", fixture, v.Name)
			assert.False(t, IsBooleanFix(v.FixAvailable) && IsObjectFix(v.FixAvailable))
		}
	}
}

func TestIsTransitiveName(t *testing.T) {
	t.Parallel()

	assert.True(t, IsTransitiveName(ViaEntry{Kind: ViaTransitive, Package: "minimist"}))
	assert.False(t, IsTransitiveName(ViaEntry{Kind: ViaAdvisory, Advisory: &Advisory{}}))
	assert.False(t, IsTransitiveName(ViaEntry{Kind: ViaMalformed}))
	assert.False(t, IsAdvisory(ViaEntry{Kind: ViaAdvisory}), "advisory kind without payload")
}

func TestUniqueAdvisoriesAndTransitive(t *testing.T) {
	t.Parallel()

	r := parseFixture(t, "mixed.json")

	alpha := r.Vulnerabilities[1]
	advs := UniqueAdvisories(alpha)
	if assert.Len(t, advs, 1) {
		assert.Equal(t, "ReDoS", advs[0].Title)
	}
	assert.Empty(t, UniqueTransitive(alpha))

	mid := r.Vulnerabilities[2]
	assert.Equal(t, []string{"alpha-moderate", "ghost-package"}, UniqueTransitive(mid))
	assert.Empty(t, UniqueAdvisories(mid))
}
