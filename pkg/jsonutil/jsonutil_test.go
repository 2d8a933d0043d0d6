package jsonutil

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/go-json-experiment/json/jsontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshal(t *testing.T) {
	t.Parallel()

	t.Run("valid object", func(t *testing.T) {
		var result map[string]any
		require.NoError(t, Unmarshal([]byte(`{"name":"test","value":42}`), &result))
		assert.Equal(t, "test", result["name"])
	})

	t.Run("invalid json", func(t *testing.T) {
		var result map[string]any
		assert.Error(t, Unmarshal([]byte(`{invalid}`), &result))
	})
}

func TestMarshalIsDeterministic(t *testing.T) {
	t.Parallel()

	in := map[string]int{"zeta": 1, "alpha": 2, "mid": 3, "beta": 4}
	first, err := Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":4,"mid":3,"zeta":1}`, string(first))

	for range 10 {
		again, err := Marshal(in)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestMarshalIndent(t *testing.T) {
	t.Parallel()

	got, err := MarshalIndent(map[string]int{"a": 1}, "", "  ")
	require.NoError(t, err)
	assert.Contains(t, string(got), "\n  \"a\": 1")
}

func TestForEachMember(t *testing.T) {
	t.Parallel()

	t.Run("document order", func(t *testing.T) {
		var names []string
		err := ForEachMember([]byte(`{"zlib":{"a":1},"acorn":[1],"mid":"x"}`), func(name string, v jsontext.Value) error {
			names = append(names, name)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"zlib", "acorn", "mid"}, names)
	})

	t.Run("values are retained copies", func(t *testing.T) {
		var vals []jsontext.Value
		err := ForEachMember([]byte(`{"a":{"x":1},"b":{"y":2}}`), func(_ string, v jsontext.Value) error {
			vals = append(vals, v)
			return nil
		})
		require.NoError(t, err)
		require.Len(t, vals, 2)
		assert.Equal(t, `{"x":1}`, string(vals[0]))
		assert.Equal(t, `{"y":2}`, string(vals[1]))
	})

	t.Run("names stay paired with their values", func(t *testing.T) {
		got := map[string]string{}
		err := ForEachMember([]byte(`{"@babel/core":{"severity":"high"},"a\u0062c":"x","lodash":[1,2]}`), func(name string, v jsontext.Value) error {
			got[name] = string(v)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{
			"@babel/core": `{"severity":"high"}`,
			"abc":         `"x"`,
			"lodash":      `[1,2]`,
		}, got)
	})

	t.Run("empty object", func(t *testing.T) {
		calls := 0
		require.NoError(t, ForEachMember([]byte(`{}`), func(string, jsontext.Value) error {
			calls++
			return nil
		}))
		assert.Zero(t, calls)
	})

	t.Run("not an object", func(t *testing.T) {
		err := ForEachMember([]byte(`[1,2]`), func(string, jsontext.Value) error { return nil })
		assert.Error(t, err)
	})

	t.Run("callback error stops iteration", func(t *testing.T) {
		stop := errors.New("stop")
		calls := 0
		err := ForEachMember([]byte(`{"a":1,"b":2}`), func(string, jsontext.Value) error {
			calls++
			return stop
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 1, calls)
	})
}

func TestKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want jsontext.Kind
	}{
		{`  {"a":1}`, '{'},
		{`[1]`, '['},
		{`"s"`, '"'},
		{`12.5`, '0'},
		{`true`, 't'},
		{`false`, 'f'},
		{`null`, 'n'},
		{``, 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Kind([]byte(tt.in)))
		})
	}
}

func TestEncoder(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	enc := NewStreamEncoder(&buf)
	enc.SetIndent("", "    ")
	require.NoError(t, enc.Encode(map[string]int{"key": 42}))
	require.NoError(t, enc.Encode(1))

	out := buf.String()
	assert.True(t, strings.HasSuffix(out, "\n"))
	assert.Contains(t, out, "    \"key\": 42")
}

func TestDecoder(t *testing.T) {
	t.Parallel()

	var result map[string]string
	require.NoError(t, NewStreamDecoder(strings.NewReader(`{"name":"test"}`)).Decode(&result))
	assert.Equal(t, "test", result["name"])
}

func TestValid(t *testing.T) {
	t.Parallel()

	assert.True(t, Valid([]byte(`{"key":"value"}`)))
	assert.True(t, Valid([]byte(`null`)))
	assert.False(t, Valid([]byte(`{invalid}`)))
	assert.False(t, Valid([]byte(``)))
}
