package metadata

import (
	"fmt"
)

// NumSecsInDay converts second-denominated hyper-parameters to days, the unit
// the classifier service was trained on.
const NumSecsInDay = 3600 * 24

// DefaultScaleParams are the hyper-parameters expressed in seconds upstream.
var DefaultScaleParams = []string{"historical_window", "scan_window"}

// TrainingRecord is one flat training example for the classifier service.
type TrainingRecord struct {
	HptRes    HptResult          `json:"hpt_res" msgpack:"hpt_res"`
	Features  map[string]float64 `json:"features" msgpack:"features"`
	BestModel string             `json:"best_model" msgpack:"best_model"`
}

// RowError reports which row and column of a metadata table failed coercion.
type RowError struct {
	Index  int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: column %q: %v", e.Index, e.Column, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Preprocess converts the raw metadata table into the flat training-record
// list the classifier service consumes, one record per row in row order.
// Parsed values are written back into the table's cells, so the table is not
// safe to reuse in its raw serialized form afterwards. Hyper-parameters named
// in scaleParams are divided by NumSecsInDay exactly once: cells that already
// hold a decoded HptResult are left at their scaled values.
func Preprocess(t *Table, scaleParams []string) ([]TrainingRecord, error) {
	scale := make(map[string]bool, len(scaleParams))
	for _, p := range scaleParams {
		scale[p] = true
	}

	records := make([]TrainingRecord, 0, len(t.Rows))
	for i, row := range t.Rows {
		feats, err := CoerceFeatures(row[ColFeatures])
		if err != nil {
			return nil, &RowError{Index: i, Column: ColFeatures, Err: err}
		}
		row[ColFeatures] = feats

		hpt, decoded := row[ColHptRes].(HptResult)
		if !decoded {
			parsed, err := ParseDict(row[ColHptRes])
			if err != nil {
				return nil, &RowError{Index: i, Column: ColHptRes, Err: err}
			}
			hpt, err = DecodeHptResult(parsed)
			if err != nil {
				return nil, &RowError{Index: i, Column: ColHptRes, Err: err}
			}
			for _, result := range hpt {
				for param, val := range result.Params {
					if scale[param] {
						result.Params[param] = val / NumSecsInDay
					}
				}
			}
			row[ColHptRes] = hpt
		}

		best, ok := row[ColBestModel].(string)
		if !ok {
			return nil, &RowError{
				Index:  i,
				Column: ColBestModel,
				Err:    fmt.Errorf("value is %T, expected string", row[ColBestModel]),
			}
		}

		records = append(records, TrainingRecord{
			HptRes:    hpt,
			Features:  feats,
			BestModel: best,
		})
	}

	return records, nil
}
