package metadata

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLiteral_PythonDict(t *testing.T) {
	v, err := parseLiteral("{'a': 1, 'b': 2.5, 'c': 'text'}")
	require.NoError(t, err)

	m, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(1), m["a"])
	assert.Equal(t, 2.5, m["b"])
	assert.Equal(t, "text", m["c"])
}

func TestParseLiteral_JSON(t *testing.T) {
	v, err := parseLiteral(`{"a": 1, "nested": {"b": [1, 2, 3]}, "flag": true, "missing": null}`)
	require.NoError(t, err)

	m, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(1), m["a"])
	assert.Equal(t, true, m["flag"])
	assert.Nil(t, m["missing"])

	nested, ok := m["nested"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, nested["b"])
}

func TestParseLiteral_HptResShape(t *testing.T) {
	v, err := parseLiteral("{'statsig': [{'historical_window': 86400, 'scan_window': 3600}, 0.23]}")
	require.NoError(t, err)

	m := v.(map[string]any)
	entry, ok := m["statsig"].([]any)
	require.True(t, ok)
	require.Len(t, entry, 2)

	params := entry[0].(map[string]any)
	assert.Equal(t, int64(86400), params["historical_window"])
	assert.Equal(t, 0.23, entry[1])
}

func TestParseLiteral_SpecialValues(t *testing.T) {
	v, err := parseLiteral("{'nan': nan, 'inf': inf, 'neg': -inf, 'none': None, 'yes': True, 'no': False}")
	require.NoError(t, err)

	m := v.(map[string]any)
	assert.True(t, math.IsNaN(m["nan"].(float64)))
	assert.True(t, math.IsInf(m["inf"].(float64), 1))
	assert.True(t, math.IsInf(m["neg"].(float64), -1))
	assert.Nil(t, m["none"])
	assert.Equal(t, true, m["yes"])
	assert.Equal(t, false, m["no"])
}

func TestParseLiteral_TuplesAndTrailingCommas(t *testing.T) {
	v, err := parseLiteral("{'t': (1, 2,), 'l': [3,]}")
	require.NoError(t, err)

	m := v.(map[string]any)
	assert.Equal(t, []any{int64(1), int64(2)}, m["t"])
	assert.Equal(t, []any{int64(3)}, m["l"])
}

func TestParseLiteral_Escapes(t *testing.T) {
	v, err := parseLiteral(`{'a': 'it\'s', 'b': "line\nbreak"}`)
	require.NoError(t, err)

	m := v.(map[string]any)
	assert.Equal(t, "it's", m["a"])
	assert.Equal(t, "line\nbreak", m["b"])
}

func TestParseLiteral_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unterminated dict", "{'a': 1"},
		{"trailing data", "{'a': 1} extra"},
		{"missing colon", "{'a' 1}"},
		{"bad token", "{'a': @}"},
		{"unterminated string", "{'a': 'oops}"},
		{"empty input", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseLiteral(tt.input)
			assert.Error(t, err)
		})
	}
}
