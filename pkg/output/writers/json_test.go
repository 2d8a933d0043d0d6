package writers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditview/auditview/pkg/jsonutil"
)

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	out := render(t, NewJSONWriter(JSONConfig{}), loadDoc(t, "scenario.json", nil))
	assert.False(t, strings.Contains(strings.TrimSpace(out), "\n  "), "compact by default")

	var got map[string]any
	require.NoError(t, jsonutil.Unmarshal([]byte(out), &got))
	assert.Equal(t, "NPM Audit Report", got["title"])
	assert.Equal(t, "auditview", got["tool"])
	assert.NotContains(t, got, "Summary")

	counts := got["counts"].(map[string]any)
	assert.Equal(t, float64(2), counts["totalVulnerabilities"])
	assert.Equal(t, float64(44), counts["totalDependencies"])

	vulns := got["vulnerabilities"].([]any)
	require.Len(t, vulns, 2)
	first := vulns[0].(map[string]any)
	second := vulns[1].(map[string]any)
	assert.Equal(t, "minimist", first["name"])
	assert.Equal(t, false, first["fixAvailable"])
	assert.Equal(t, "lodash", second["name"])
	assert.Equal(t, true, second["fixAvailable"])
	assert.Equal(t, []any{"minimist"}, second["via"])

	via := first["via"].([]any)
	adv := via[0].(map[string]any)
	assert.Equal(t, "Prototype Pollution", adv["title"])
}

func TestJSONWriter_Options(t *testing.T) {
	t.Parallel()

	t.Run("pretty", func(t *testing.T) {
		t.Parallel()
		out := render(t, NewJSONWriter(JSONConfig{Pretty: true, IndentSize: 4}), loadDoc(t, "clean.json", nil))
		assert.Contains(t, out, "\n    \"title\"")
	})

	t.Run("summary only", func(t *testing.T) {
		t.Parallel()
		doc := loadDoc(t, "scenario.json", nil)
		out := render(t, NewJSONWriter(JSONConfig{SummaryOnly: true}), doc)

		var got map[string]any
		require.NoError(t, jsonutil.Unmarshal([]byte(out), &got))
		assert.Empty(t, got["vulnerabilities"])
		assert.NotNil(t, got["counts"])
		assert.Len(t, doc.Vulnerabilities, 2, "document is not modified")
	})

	t.Run("upgrade object keeps npm shape", func(t *testing.T) {
		t.Parallel()
		out := render(t, NewJSONWriter(JSONConfig{}), loadDoc(t, "mixed.json", nil))

		var got map[string]any
		require.NoError(t, jsonutil.Unmarshal([]byte(out), &got))
		for _, v := range got["vulnerabilities"].([]any) {
			rec := v.(map[string]any)
			if rec["name"] != "alpha-moderate" {
				continue
			}
			fix := rec["fixAvailable"].(map[string]any)
			assert.Equal(t, "3.0.0", fix["version"])
			assert.Equal(t, true, fix["isSemVerMajor"])
			return
		}
		t.Fatal("alpha-moderate not found")
	})
}
