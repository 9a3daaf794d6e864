package selection

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aristath/detection-selector/internal/domain"
	"github.com/aristath/detection-selector/internal/metadata"
)

// MinExamples is the minimum support threshold: training needs strictly more
// rows than this.
const MinExamples = 30

// ErrNotTrained is returned by the predict family before a successful Train
var ErrNotTrained = errors.New("no trained classifier, train first")

// Service orchestrates detection-model selection: it owns the metadata table
// and delegates training and prediction to the classifier collaborator, and
// feature extraction to the TsFeatures collaborator.
//
// The classifier lifecycle is explicit: a Service starts untrained and enters
// the trained state only through a successful Train call, which fully
// replaces any prior classifier.
type Service struct {
	table       *metadata.Table
	scaleParams []string
	factory     ClassifierFactory
	extractor   FeatureExtractor
	log         zerolog.Logger

	mu      sync.RWMutex
	trained *trainedState

	// tableMu serializes table access: Preprocess writes parsed values back
	// into the shared row maps, and handlers run on separate goroutines.
	tableMu sync.Mutex
}

// trainedState wraps the fitted classifier together with its metrics
type trainedState struct {
	clf     Classifier
	metrics TrainMetrics
}

// Option configures a Service
type Option func(*Service)

// WithScaleParams overrides the hyper-parameter names scaled from seconds to days
func WithScaleParams(params []string) Option {
	return func(s *Service) {
		s.scaleParams = params
	}
}

// NewService validates the metadata table and creates an untrained service.
// Validation failures leave no state behind: the table is untouched and no
// classifier is created.
func NewService(
	table *metadata.Table,
	factory ClassifierFactory,
	extractor FeatureExtractor,
	log zerolog.Logger,
	opts ...Option,
) (*Service, error) {
	log = log.With().Str("service", "selection").Logger()

	if table == nil {
		msg := "metadata table is required"
		log.Error().Msg(msg)
		return nil, errors.New(msg)
	}
	if table.Len() <= MinExamples {
		log.Error().Int("rows", table.Len()).Msg("Metadata table is too small to train a meta learner")
		return nil, fmt.Errorf("metadata table has %d rows, need more than %d", table.Len(), MinExamples)
	}
	for _, col := range metadata.RequiredColumns {
		if !table.HasColumn(col) {
			log.Error().Str("column", col).Msg("Metadata table is missing a required column")
			return nil, fmt.Errorf("missing column %q, not able to train a meta learner", col)
		}
	}

	s := &Service{
		table:       table,
		scaleParams: metadata.DefaultScaleParams,
		factory:     factory,
		extractor:   extractor,
		log:         log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Train preprocesses the metadata table, builds a fresh classifier over the
// resulting records and delegates the fit/evaluate/split work to it. The
// returned metrics are stored; a repeat call fully replaces the prior
// classifier state.
func (s *Service) Train(opts TrainOptions) (TrainMetrics, error) {
	opts = opts.withDefaults()

	records, err := s.preprocess()
	if err != nil {
		return TrainMetrics{}, fmt.Errorf("failed to preprocess metadata: %w", err)
	}

	clf, err := s.factory.New(records)
	if err != nil {
		return TrainMetrics{}, fmt.Errorf("failed to build classifier: %w", err)
	}

	metrics, err := clf.Train(opts)
	if err != nil {
		return TrainMetrics{}, fmt.Errorf("classifier training failed: %w", err)
	}

	s.mu.Lock()
	s.trained = &trainedState{clf: clf, metrics: metrics}
	s.mu.Unlock()

	s.log.Info().
		Str("method", opts.Method).
		Int("records", len(records)).
		Float64("clf_accuracy", metrics.ClfAccuracy).
		Msg("Classifier trained")

	return metrics, nil
}

// ReportMetrics summarizes fit and prediction errors as two labeled rows.
// If the service has never been trained it first runs Train with default
// options; that pass hits the classifier service and is logged explicitly.
func (s *Service) ReportMetrics() (MetricsReport, error) {
	if s.current() == nil {
		s.log.Info().Msg("No trained classifier yet, training with default options before reporting")
		if _, err := s.Train(DefaultTrainOptions()); err != nil {
			return MetricsReport{}, err
		}
	}

	metrics := s.current().metrics
	return MetricsReport{
		Rows: []MetricsRow{
			{Type: "fit_error", Errors: metrics.FitError, ErrorMetric: ErrorMetricName},
			{Type: "pred_error", Errors: metrics.PredError, ErrorMetric: ErrorMetricName},
		},
		ClfAccuracy: metrics.ClfAccuracy,
	}, nil
}

// Predict extracts features from a single series and returns the predicted
// best detection model.
func (s *Service) Predict(series domain.Series) (string, error) {
	trained := s.current()
	if trained == nil {
		s.log.Error().Msg("Predict called before training")
		return "", ErrNotTrained
	}

	if err := series.Validate(); err != nil {
		return "", fmt.Errorf("invalid series: %w", err)
	}

	raw, err := s.extractor.Extract(series)
	if err != nil {
		return "", fmt.Errorf("feature extraction failed: %w", err)
	}

	feats, err := metadata.CoerceFeatures(RoundFeatures(raw))
	if err != nil {
		return "", fmt.Errorf("failed to coerce features: %w", err)
	}

	labels, err := s.predictRows(trained, []map[string]float64{feats})
	if err != nil {
		return "", err
	}
	return labels[0], nil
}

// FitResults re-derives features from every stored metadata row and returns
// the classifier's predicted label per row, in original row order.
func (s *Service) FitResults() ([]string, error) {
	trained := s.current()
	if trained == nil {
		s.log.Error().Msg("FitResults called before training")
		return nil, ErrNotTrained
	}

	rows, err := s.featureRows()
	if err != nil {
		return nil, err
	}

	return s.predictRows(trained, rows)
}

// featureRows re-coerces the features column of every stored row
func (s *Service) featureRows() ([]map[string]float64, error) {
	s.tableMu.Lock()
	defer s.tableMu.Unlock()

	rows := make([]map[string]float64, 0, s.table.Len())
	for i, row := range s.table.Rows {
		feats, err := metadata.CoerceFeatures(row[metadata.ColFeatures])
		if err != nil {
			return nil, &metadata.RowError{Index: i, Column: metadata.ColFeatures, Err: err}
		}
		rows = append(rows, feats)
	}
	return rows, nil
}

// PredByFeature predicts a best model per supplied feature mapping, in input
// order. Cells may be serialized literals or structured mappings.
func (s *Service) PredByFeature(featureRows []any) ([]string, error) {
	trained := s.current()
	if trained == nil {
		s.log.Error().Msg("PredByFeature called before training")
		return nil, ErrNotTrained
	}

	rows := make([]map[string]float64, 0, len(featureRows))
	for i, cell := range featureRows {
		feats, err := metadata.CoerceFeatures(cell)
		if err != nil {
			return nil, &metadata.RowError{Index: i, Column: metadata.ColFeatures, Err: err}
		}
		rows = append(rows, feats)
	}

	return s.predictRows(trained, rows)
}

// Records returns the preprocessed training-record list. After the first
// Train call this reads the already-parsed cells, so it is cheap.
func (s *Service) Records() ([]metadata.TrainingRecord, error) {
	return s.preprocess()
}

func (s *Service) preprocess() ([]metadata.TrainingRecord, error) {
	s.tableMu.Lock()
	defer s.tableMu.Unlock()
	return metadata.Preprocess(s.table, s.scaleParams)
}

// Metrics returns the stored training metrics, if trained
func (s *Service) Metrics() (TrainMetrics, bool) {
	trained := s.current()
	if trained == nil {
		return TrainMetrics{}, false
	}
	return trained.metrics, true
}

// Trained reports whether a successful Train has happened
func (s *Service) Trained() bool {
	return s.current() != nil
}

func (s *Service) current() *trainedState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trained
}

func (s *Service) predictRows(trained *trainedState, rows []map[string]float64) ([]string, error) {
	features, columns, err := FeatureMatrix(rows)
	if err != nil {
		return nil, err
	}

	labels, err := trained.clf.PredByFeature(features, columns)
	if err != nil {
		return nil, fmt.Errorf("classifier prediction failed: %w", err)
	}
	if len(labels) != len(rows) {
		return nil, fmt.Errorf("classifier returned %d labels for %d rows", len(labels), len(rows))
	}
	return labels, nil
}
