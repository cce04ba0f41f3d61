package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAccepts(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		want     string
		expected bool
	}{
		{"exact match", "sdcore.project/v1", "sdcore.project/v1", true},
		{"minor version", "sdcore.project/v1.1", "sdcore.project/v1", true},
		{"patch version", "sdcore.project/v1.0.1", "sdcore.project/v1", true},
		{"major mismatch", "sdcore.project/v2", "sdcore.project/v1", false},
		{"different schema", "sdcore.error/v1", "sdcore.project/v1", false},
		{"missing version", "sdcore.project", "sdcore.project/v1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, Accepts(tt.got, tt.want))
		})
	}
}

func TestMarshalDeterministicSortsKeys(t *testing.T) {
	data := map[string]any{"zebra": "last", "alpha": "first", "middle": "middle"}
	result, err := MarshalDeterministic(data)
	require.NoError(t, err)
	require.Equal(t, `{"alpha":"first","middle":"middle","zebra":"last"}`, string(result))
}

func TestMarshalDeterministicStable(t *testing.T) {
	data := map[string]any{"b": 2, "a": 1, "c": []any{3, 1, 2}}
	a, err := MarshalDeterministic(data)
	require.NoError(t, err)
	b, err := MarshalDeterministic(data)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestFormatJSONCompactAndIndent(t *testing.T) {
	pretty, err := FormatJSON([]byte(`{"a":1}`), false)
	require.NoError(t, err)
	require.Contains(t, string(pretty), "\n")

	compact, err := FormatJSON(pretty, true)
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, string(compact))
}
