package selection

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/detection-selector/internal/metadata"
)

func TestRoundFeatures(t *testing.T) {
	out := RoundFeatures(map[string]float64{
		"entropy": 0.123456,
		"trend":   2.0,
		"acf":     math.NaN(),
	})

	assert.Equal(t, "0.1235", out["entropy"])
	assert.Equal(t, "2.0000", out["trend"])
	assert.True(t, math.IsNaN(out["acf"].(float64)))
}

func TestRoundFeatures_CoercesBack(t *testing.T) {
	coerced, err := metadata.CoerceFeatures(RoundFeatures(map[string]float64{"entropy": 0.123456}))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"entropy": 0.1235}, coerced)
}

func TestFeatureMatrix_SortedColumns(t *testing.T) {
	m, columns, err := FeatureMatrix([]map[string]float64{
		{"trend": 1.0, "entropy": 0.5, "acf": 0.1},
		{"trend": 2.0, "entropy": 0.6, "acf": 0.2},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"acf", "entropy", "trend"}, columns)

	rows, cols := m.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, 0.1, m.At(0, 0))
	assert.Equal(t, 0.5, m.At(0, 1))
	assert.Equal(t, 2.0, m.At(1, 2))
}

func TestFeatureMatrix_Errors(t *testing.T) {
	_, _, err := FeatureMatrix(nil)
	assert.Error(t, err)

	_, _, err = FeatureMatrix([]map[string]float64{
		{"a": 1.0, "b": 2.0},
		{"a": 1.0},
	})
	assert.Error(t, err)

	_, _, err = FeatureMatrix([]map[string]float64{
		{"a": 1.0, "b": 2.0},
		{"a": 1.0, "c": 3.0},
	})
	assert.Error(t, err)
}
