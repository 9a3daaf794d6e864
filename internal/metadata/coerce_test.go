package metadata

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDict_RoundTrip(t *testing.T) {
	// A serialized mapping must equal its structured form after coercion
	m, err := ParseDict("{'a': 1}")
	require.NoError(t, err)

	coerced, err := ToFloat64Map(m)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"a": 1.0}, coerced)
}

func TestParseDict_StructuredPassthrough(t *testing.T) {
	in := map[string]any{"a": 1.0}
	m, err := ParseDict(in)
	require.NoError(t, err)
	assert.Equal(t, in, m)
}

func TestParseDict_ParseFailure(t *testing.T) {
	_, err := ParseDict("{'a': ")
	assert.Error(t, err)
}

func TestParseDict_NotAMapping(t *testing.T) {
	_, err := ParseDict("[1, 2, 3]")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not a mapping")
}

func TestParseDict_InvalidType(t *testing.T) {
	_, err := ParseDict(42)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "expected mapping or string")
}

func TestToFloat64Map(t *testing.T) {
	m, err := ToFloat64Map(map[string]any{
		"float":  1.5,
		"int":    int64(3),
		"string": "0.1235",
		"nan":    "NaN",
	})
	require.NoError(t, err)

	assert.Equal(t, 1.5, m["float"])
	assert.Equal(t, 3.0, m["int"])
	assert.Equal(t, 0.1235, m["string"])
	assert.True(t, math.IsNaN(m["nan"]))
}

func TestToFloat64Map_NonNumeric(t *testing.T) {
	_, err := ToFloat64Map(map[string]any{"bad": "not-a-number"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), `"bad"`)
}

func TestCoerceFeatures_AlreadyCoerced(t *testing.T) {
	in := map[string]float64{"entropy": 0.5}
	out, err := CoerceFeatures(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCoerceFeatures_FromString(t *testing.T) {
	out, err := CoerceFeatures("{'entropy': '0.5000', 'trend': 1.2}")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"entropy": 0.5, "trend": 1.2}, out)
}

func TestDecodeHptResult(t *testing.T) {
	parsed, err := ParseDict("{'statsig': [{'historical_window': 86400}, 0.23], 'cusum': [{'scan_window': 3600}]}")
	require.NoError(t, err)

	hpt, err := DecodeHptResult(parsed)
	require.NoError(t, err)

	require.Contains(t, hpt, "statsig")
	assert.Equal(t, map[string]float64{"historical_window": 86400}, hpt["statsig"].Params)
	assert.Equal(t, []float64{0.23}, hpt["statsig"].Scores)

	require.Contains(t, hpt, "cusum")
	assert.Empty(t, hpt["cusum"].Scores)
}

func TestDecodeHptResult_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]any
	}{
		{"not a list", map[string]any{"m": map[string]any{"p": 1.0}}},
		{"empty list", map[string]any{"m": []any{}}},
		{"first element not a mapping", map[string]any{"m": []any{1.0}}},
		{"non-numeric param", map[string]any{"m": []any{map[string]any{"p": "x"}}}},
		{"non-numeric score", map[string]any{"m": []any{map[string]any{}, "x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeHptResult(tt.in)
			assert.Error(t, err)
		})
	}
}
