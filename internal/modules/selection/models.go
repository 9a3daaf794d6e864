package selection

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/detection-selector/internal/domain"
	"github.com/aristath/detection-selector/internal/metadata"
)

// Classifier is a trained (or trainable) meta-learner over one training set.
// The concrete implementation lives in the MetaLearn microservice.
type Classifier interface {
	// Train fits the classifier and returns its error metrics
	Train(opts TrainOptions) (TrainMetrics, error)

	// PredByFeature predicts a best-model label per matrix row
	PredByFeature(features *mat.Dense, columns []string) ([]string, error)
}

// ClassifierFactory builds a fresh classifier over a training-record list
type ClassifierFactory interface {
	New(records []metadata.TrainingRecord) (Classifier, error)
}

// FeatureExtractor computes time-series features for a single series.
// The concrete implementation lives in the TsFeatures microservice.
type FeatureExtractor interface {
	Extract(series domain.Series) (map[string]float64, error)
}

// CollaboratorError is a failure of a backing microservice: unreachable,
// a reported error, or an unusable response. Handlers map it to 502.
type CollaboratorError struct {
	Service string
	Err     error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s service: %v", e.Service, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// TrainOptions mirror the MetaLearn service's training knobs
type TrainOptions struct {
	Method     string  `json:"method"`
	EvalMethod string  `json:"eval_method"`
	TestSize   float64 `json:"test_size"`
	NTrees     int     `json:"n_trees"`
	NNeighbors int     `json:"n_neighbors"`
}

// DefaultTrainOptions returns the canonical training configuration
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Method:     "RandomForest",
		EvalMethod: "mean",
		TestSize:   0.1,
		NTrees:     500,
		NNeighbors: 5,
	}
}

// withDefaults fills unset fields from the canonical defaults
func (o TrainOptions) withDefaults() TrainOptions {
	defaults := DefaultTrainOptions()
	if o.Method == "" {
		o.Method = defaults.Method
	}
	if o.EvalMethod == "" {
		o.EvalMethod = defaults.EvalMethod
	}
	if o.TestSize == 0 {
		o.TestSize = defaults.TestSize
	}
	if o.NTrees == 0 {
		o.NTrees = defaults.NTrees
	}
	if o.NNeighbors == 0 {
		o.NNeighbors = defaults.NNeighbors
	}
	return o
}

// TrainMetrics is the metrics mapping the classifier service returns after
// training: per-candidate-model fit and prediction errors plus accuracy on
// the held-out split.
type TrainMetrics struct {
	FitError    map[string]float64 `json:"fit_error"`
	PredError   map[string]float64 `json:"pred_error"`
	ClfAccuracy float64            `json:"clf_accuracy"`
}

// ErrorMetricName labels the error measure the classifier service reports
const ErrorMetricName = "Inverted F-score"

// MetricsRow is one labeled row of the metrics summary
type MetricsRow struct {
	Type        string             `json:"type"`
	Errors      map[string]float64 `json:"errors"`
	ErrorMetric string             `json:"error_metric"`
}

// MetricsReport is the two-row fit_error/pred_error summary
type MetricsReport struct {
	Rows        []MetricsRow `json:"rows"`
	ClfAccuracy float64      `json:"clf_accuracy"`
}
