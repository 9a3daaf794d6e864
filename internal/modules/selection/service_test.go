package selection

import (
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/detection-selector/internal/domain"
	"github.com/aristath/detection-selector/internal/metadata"
)

// mockClassifier records what the service hands it
type mockClassifier struct {
	mu         sync.Mutex
	metrics    TrainMetrics
	trainErr   error
	predErr    error
	gotOpts    TrainOptions
	gotColumns []string
	gotMatrix  *mat.Dense
	trained    bool
}

func (m *mockClassifier) Train(opts TrainOptions) (TrainMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gotOpts = opts
	if m.trainErr != nil {
		return TrainMetrics{}, m.trainErr
	}
	m.trained = true
	return m.metrics, nil
}

func (m *mockClassifier) PredByFeature(features *mat.Dense, columns []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.predErr != nil {
		return nil, m.predErr
	}
	m.gotMatrix = features
	m.gotColumns = columns
	rows, _ := features.Dims()
	labels := make([]string, rows)
	for i := range labels {
		labels[i] = fmt.Sprintf("model_%d", i)
	}
	return labels, nil
}

// mockFactory counts classifier constructions
type mockFactory struct {
	mu         sync.Mutex
	clf        *mockClassifier
	newErr     error
	calls      int
	gotRecords []metadata.TrainingRecord
}

func (f *mockFactory) New(records []metadata.TrainingRecord) (Classifier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotRecords = records
	if f.newErr != nil {
		return nil, f.newErr
	}
	return f.clf, nil
}

// mockExtractor returns fixed features
type mockExtractor struct {
	features map[string]float64
	err      error
}

func (e *mockExtractor) Extract(series domain.Series) (map[string]float64, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.features, nil
}

func testMetrics() TrainMetrics {
	return TrainMetrics{
		FitError:    map[string]float64{"statsig": 0.1, "cusum": 0.3},
		PredError:   map[string]float64{"statsig": 0.2, "cusum": 0.4},
		ClfAccuracy: 0.91,
	}
}

func testTable(rows int) *metadata.Table {
	t := metadata.NewTable(metadata.RequiredColumns)
	for i := 0; i < rows; i++ {
		t.Append(metadata.Row{
			metadata.ColHptRes:    "{'statsig': [{'historical_window': 86400, 'scan_window': 3600}, 0.25]}",
			metadata.ColFeatures:  fmt.Sprintf("{'entropy': 0.5, 'trend': %d}", i),
			metadata.ColBestModel: "statsig",
		})
	}
	return t
}

func testSeries() domain.Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := domain.Series{}
	for i := 0; i < 10; i++ {
		s.Times = append(s.Times, start.Add(time.Duration(i)*time.Hour))
		s.Values = append(s.Values, float64(i))
	}
	return s
}

func newTestService(t *testing.T, rows int) (*Service, *mockFactory, *mockExtractor) {
	factory := &mockFactory{clf: &mockClassifier{metrics: testMetrics()}}
	extractor := &mockExtractor{features: map[string]float64{"entropy": 0.123456, "trend": 1.0}}

	svc, err := NewService(testTable(rows), factory, extractor, zerolog.Nop())
	require.NoError(t, err)
	return svc, factory, extractor
}

func TestNewService_Validation(t *testing.T) {
	factory := &mockFactory{clf: &mockClassifier{}}
	extractor := &mockExtractor{}

	t.Run("nil table", func(t *testing.T) {
		_, err := NewService(nil, factory, extractor, zerolog.Nop())
		assert.Error(t, err)
	})

	t.Run("too few rows", func(t *testing.T) {
		_, err := NewService(testTable(10), factory, extractor, zerolog.Nop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "need more than 30")
	})

	t.Run("exactly the threshold is still too few", func(t *testing.T) {
		_, err := NewService(testTable(30), factory, extractor, zerolog.Nop())
		assert.Error(t, err)
	})

	t.Run("missing column", func(t *testing.T) {
		table := metadata.NewTable([]string{metadata.ColHptRes, metadata.ColFeatures})
		for i := 0; i < 31; i++ {
			table.Append(metadata.Row{})
		}
		_, err := NewService(table, factory, extractor, zerolog.Nop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "best_model")
	})

	// no classifier may be created by a failed construction
	assert.Equal(t, 0, factory.calls)
}

func TestNewService_TableUntouchedOnFailure(t *testing.T) {
	table := testTable(10)
	_, err := NewService(table, &mockFactory{}, &mockExtractor{}, zerolog.Nop())
	require.Error(t, err)

	_, stillRaw := table.Rows[0][metadata.ColFeatures].(string)
	assert.True(t, stillRaw)
}

func TestTrain(t *testing.T) {
	svc, factory, _ := newTestService(t, 31)

	metrics, err := svc.Train(TrainOptions{})
	require.NoError(t, err)

	assert.Equal(t, testMetrics(), metrics)
	assert.Equal(t, 1, factory.calls)
	require.Len(t, factory.gotRecords, 31)
	assert.Equal(t, 1.0, factory.gotRecords[0].HptRes["statsig"].Params["historical_window"])

	// empty options are filled with the defaults
	assert.Equal(t, DefaultTrainOptions(), factory.clf.gotOpts)
	assert.True(t, svc.Trained())
}

func TestTrain_ReplacesPriorClassifier(t *testing.T) {
	svc, factory, _ := newTestService(t, 31)

	_, err := svc.Train(TrainOptions{})
	require.NoError(t, err)

	_, err = svc.Train(TrainOptions{Method: "KNN", NNeighbors: 7})
	require.NoError(t, err)

	assert.Equal(t, 2, factory.calls)
	assert.Equal(t, "KNN", factory.clf.gotOpts.Method)
	assert.Equal(t, 7, factory.clf.gotOpts.NNeighbors)
}

func TestTrain_ClassifierFailureLeavesUntrained(t *testing.T) {
	svc, factory, _ := newTestService(t, 31)
	factory.clf.trainErr = fmt.Errorf("split failed")

	_, err := svc.Train(TrainOptions{})
	require.Error(t, err)
	assert.False(t, svc.Trained())
}

func TestPredictFamily_RequiresTraining(t *testing.T) {
	svc, _, _ := newTestService(t, 31)

	_, err := svc.Predict(testSeries())
	assert.ErrorIs(t, err, ErrNotTrained)

	_, err = svc.FitResults()
	assert.ErrorIs(t, err, ErrNotTrained)

	_, err = svc.PredByFeature([]any{map[string]any{"entropy": 0.5}})
	assert.ErrorIs(t, err, ErrNotTrained)
}

func TestPredict(t *testing.T) {
	svc, factory, _ := newTestService(t, 31)

	_, err := svc.Train(TrainOptions{})
	require.NoError(t, err)

	label, err := svc.Predict(testSeries())
	require.NoError(t, err)
	assert.Equal(t, "model_0", label)

	// features are rounded to 4 decimals before reaching the classifier
	require.Equal(t, []string{"entropy", "trend"}, factory.clf.gotColumns)
	assert.Equal(t, 0.1235, factory.clf.gotMatrix.At(0, 0))
	assert.Equal(t, 1.0, factory.clf.gotMatrix.At(0, 1))
}

func TestPredict_NaNFeaturePassesThrough(t *testing.T) {
	svc, factory, extractor := newTestService(t, 31)
	extractor.features = map[string]float64{"entropy": math.NaN(), "trend": 1.0}

	_, err := svc.Train(TrainOptions{})
	require.NoError(t, err)

	_, err = svc.Predict(testSeries())
	require.NoError(t, err)
	assert.True(t, math.IsNaN(factory.clf.gotMatrix.At(0, 0)))
}

func TestPredict_ExtractionFailure(t *testing.T) {
	svc, _, extractor := newTestService(t, 31)
	extractor.err = fmt.Errorf("service down")

	_, err := svc.Train(TrainOptions{})
	require.NoError(t, err)

	_, err = svc.Predict(testSeries())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feature extraction failed")
}

func TestFitResults(t *testing.T) {
	svc, factory, _ := newTestService(t, 31)

	_, err := svc.Train(TrainOptions{})
	require.NoError(t, err)

	labels, err := svc.FitResults()
	require.NoError(t, err)
	require.Len(t, labels, 31)
	assert.Equal(t, "model_0", labels[0])
	assert.Equal(t, "model_30", labels[30])

	// re-derived from the stored table, in row order
	rows, _ := factory.clf.gotMatrix.Dims()
	assert.Equal(t, 31, rows)
	assert.Equal(t, float64(30), factory.clf.gotMatrix.At(30, 1))
}

func TestPredByFeature(t *testing.T) {
	svc, factory, _ := newTestService(t, 31)

	_, err := svc.Train(TrainOptions{})
	require.NoError(t, err)

	labels, err := svc.PredByFeature([]any{
		map[string]any{"entropy": 0.5, "trend": 1.0},
		"{'entropy': 0.9, 'trend': 2.0}",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"model_0", "model_1"}, labels)
	assert.Equal(t, 0.9, factory.clf.gotMatrix.At(1, 0))
}

func TestPredByFeature_BadRow(t *testing.T) {
	svc, _, _ := newTestService(t, 31)

	_, err := svc.Train(TrainOptions{})
	require.NoError(t, err)

	_, err = svc.PredByFeature([]any{
		map[string]any{"entropy": 0.5},
		"{'entropy': 'oops'}",
	})
	require.Error(t, err)

	var rowErr *metadata.RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 1, rowErr.Index)
}

func TestReportMetrics_TriggersDefaultTraining(t *testing.T) {
	svc, factory, _ := newTestService(t, 31)

	report, err := svc.ReportMetrics()
	require.NoError(t, err)

	// the implicit pass used the defaults
	assert.Equal(t, 1, factory.calls)
	assert.Equal(t, DefaultTrainOptions(), factory.clf.gotOpts)

	require.Len(t, report.Rows, 2)
	assert.Equal(t, "fit_error", report.Rows[0].Type)
	assert.Equal(t, "pred_error", report.Rows[1].Type)
	assert.Equal(t, ErrorMetricName, report.Rows[0].ErrorMetric)
	assert.Equal(t, ErrorMetricName, report.Rows[1].ErrorMetric)
	assert.Equal(t, testMetrics().FitError, report.Rows[0].Errors)
	assert.Equal(t, testMetrics().PredError, report.Rows[1].Errors)
	assert.Equal(t, 0.91, report.ClfAccuracy)
}

func TestConcurrentTrainAndPredictOps(t *testing.T) {
	svc, _, _ := newTestService(t, 31)

	_, err := svc.Train(TrainOptions{})
	require.NoError(t, err)

	// Train mutates the shared table cells in place; FitResults and Records
	// read them. Run under -race to verify table access is serialized.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			_, err := svc.Train(TrainOptions{})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := svc.FitResults()
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := svc.Records()
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestPredict_CollaboratorErrorSurvivesWrapping(t *testing.T) {
	svc, _, extractor := newTestService(t, 31)
	extractor.err = &CollaboratorError{Service: "tsfeatures", Err: fmt.Errorf("connection refused")}

	_, err := svc.Train(TrainOptions{})
	require.NoError(t, err)

	_, err = svc.Predict(testSeries())
	require.Error(t, err)

	var collabErr *CollaboratorError
	require.ErrorAs(t, err, &collabErr)
	assert.Equal(t, "tsfeatures", collabErr.Service)
}

func TestReportMetrics_ReusesExistingTraining(t *testing.T) {
	svc, factory, _ := newTestService(t, 31)

	_, err := svc.Train(TrainOptions{Method: "KNN"})
	require.NoError(t, err)

	_, err = svc.ReportMetrics()
	require.NoError(t, err)
	assert.Equal(t, 1, factory.calls)
}
