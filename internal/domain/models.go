package domain

import (
	"fmt"
	"time"
)

// Series is a univariate time series: parallel slices of timestamps and values.
// This is the shape exchanged with the TsFeatures microservice.
type Series struct {
	Times  []time.Time `json:"times"`
	Values []float64   `json:"values"`
}

// Len returns the number of observations
func (s Series) Len() int {
	return len(s.Values)
}

// Validate checks that the series is well formed
func (s Series) Validate() error {
	if len(s.Times) != len(s.Values) {
		return fmt.Errorf("series has %d timestamps but %d values", len(s.Times), len(s.Values))
	}
	if len(s.Values) == 0 {
		return fmt.Errorf("series is empty")
	}
	return nil
}
