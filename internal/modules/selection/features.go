package selection

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// featurePrecision is the number of decimal places features are rounded to
// before being handed to the classifier, matching what the upstream pipeline
// stored when the classifier was trained.
const featurePrecision = 4

// RoundFeatures formats numeric feature values to fixed precision as text,
// leaving NaN untouched.
func RoundFeatures(raw map[string]float64) map[string]any {
	out := make(map[string]any, len(raw))
	for name, val := range raw {
		if math.IsNaN(val) {
			out[name] = val
			continue
		}
		out[name] = strconv.FormatFloat(val, 'f', featurePrecision, 64)
	}
	return out
}

// FeatureMatrix assembles feature mappings into a dense matrix with a stable
// column order (the sorted feature names of the first row). Every row must
// cover exactly those columns; the classifier aligns columns by name.
func FeatureMatrix(rows []map[string]float64) (*mat.Dense, []string, error) {
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("no feature rows")
	}

	columns := make([]string, 0, len(rows[0]))
	for name := range rows[0] {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	m := mat.NewDense(len(rows), len(columns), nil)
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, nil, fmt.Errorf("row %d has %d features, expected %d", i, len(row), len(columns))
		}
		for j, name := range columns {
			val, ok := row[name]
			if !ok {
				return nil, nil, fmt.Errorf("row %d missing feature %q", i, name)
			}
			m.Set(i, j, val)
		}
	}

	return m, columns, nil
}
