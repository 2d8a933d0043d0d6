package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditview/auditview/pkg/audit"
	"github.com/auditview/auditview/pkg/jsonutil"
)

func TestConstructors(t *testing.T) {
	t.Parallel()

	before := time.Now()
	tests := []struct {
		name  string
		event Event
		want  EventType
	}{
		{"report", NewReport(SourceCLI, "r1", "html", audit.Counts{Listed: 2}), EventTypeReport},
		{"gate", NewGate(SourceHTTP, "r1", "strict", false, 1, []string{"critical: 1 > 0"}), EventTypeGate},
		{"error", NewError(SourceMCP, "r1", "decode", errors.New("bad")), EventTypeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.event.EventType())
			assert.Equal(t, "r1", tt.event.ReportID())
			assert.False(t, tt.event.Timestamp().Before(before))
		})
	}

	assert.Empty(t, NewError(SourceCLI, "", "write", nil).Message)
}

func TestEventJSON(t *testing.T) {
	t.Parallel()

	e := NewGate(SourceCLI, "abc", "standard", true, 0, nil)
	data, err := jsonutil.Marshal(e)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, jsonutil.Unmarshal(data, &got))
	assert.Equal(t, "gate", got["type"])
	assert.Equal(t, "abc", got["report_id"])
	assert.Equal(t, "cli", got["source"])
	assert.Equal(t, "standard", got["policy"])
	assert.Equal(t, true, got["pass"])
	assert.Equal(t, []any{}, got["failures"])
}
