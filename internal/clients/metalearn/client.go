package metalearn

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/detection-selector/internal/metadata"
	"github.com/aristath/detection-selector/internal/modules/selection"
)

// Client is an HTTP client for the MetaLearn classifier microservice.
// It implements selection.ClassifierFactory: each New call opens a fresh
// training session over one record set.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new MetaLearn client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 120 * time.Second, // random forest training over large tables can take a while
		},
		log: log.With().Str("client", "metalearn").Logger(),
	}
}

// New creates a classifier session bound to a training-record list
func (c *Client) New(records []metadata.TrainingRecord) (selection.Classifier, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no training records")
	}
	return &Session{client: c, records: records}, nil
}

// Session is one classifier built over a fixed training set. The service
// assigns a model ID at training time; predictions reference it.
type Session struct {
	client  *Client
	records []metadata.TrainingRecord
	modelID string
}

// Request/response types (mirror the Python microservice)

type trainRequest struct {
	Records    []metadata.TrainingRecord `json:"records"`
	Method     string                    `json:"method"`
	EvalMethod string                    `json:"eval_method"`
	TestSize   float64                   `json:"test_size"`
	NTrees     int                       `json:"n_trees"`
	NNeighbors int                       `json:"n_neighbors"`
}

type trainResult struct {
	ModelID     string             `json:"model_id"`
	FitError    map[string]float64 `json:"fit_error"`
	PredError   map[string]float64 `json:"pred_error"`
	ClfAccuracy float64            `json:"clf_accuracy"`
}

type predRequest struct {
	ModelID  string      `json:"model_id"`
	Columns  []string    `json:"columns"`
	Features [][]float64 `json:"features"`
}

type predResult struct {
	Labels []string `json:"labels"`
}

// Train fits the remote classifier and returns its metrics
func (s *Session) Train(opts selection.TrainOptions) (selection.TrainMetrics, error) {
	req := trainRequest{
		Records:    s.records,
		Method:     opts.Method,
		EvalMethod: opts.EvalMethod,
		TestSize:   opts.TestSize,
		NTrees:     opts.NTrees,
		NNeighbors: opts.NNeighbors,
	}

	resp, err := s.client.post("/train", req)
	if err != nil {
		return selection.TrainMetrics{}, err
	}

	var result trainResult
	if err := s.client.parseData(resp.Data, &result); err != nil {
		return selection.TrainMetrics{}, s.client.wrap(fmt.Errorf("failed to parse train result: %w", err))
	}
	if result.ModelID == "" {
		return selection.TrainMetrics{}, s.client.wrap(fmt.Errorf("train response missing model_id"))
	}

	s.modelID = result.ModelID
	return selection.TrainMetrics{
		FitError:    result.FitError,
		PredError:   result.PredError,
		ClfAccuracy: result.ClfAccuracy,
	}, nil
}

// PredByFeature predicts a best-model label per feature-matrix row
func (s *Session) PredByFeature(features *mat.Dense, columns []string) ([]string, error) {
	if s.modelID == "" {
		return nil, fmt.Errorf("classifier session has not been trained")
	}

	rows, _ := features.Dims()
	matrix := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		matrix[i] = mat.Row(nil, i, features)
	}

	resp, err := s.client.post("/pred-by-feature", predRequest{
		ModelID:  s.modelID,
		Columns:  columns,
		Features: matrix,
	})
	if err != nil {
		return nil, err
	}

	var result predResult
	if err := s.client.parseData(resp.Data, &result); err != nil {
		return nil, s.client.wrap(fmt.Errorf("failed to parse prediction result: %w", err))
	}
	return result.Labels, nil
}

// serviceResponse is the standard response format from the microservice
type serviceResponse struct {
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data"`
	Error     *string        `json:"error"`
	Timestamp string         `json:"timestamp"`
}

// post sends a POST request to the microservice
func (c *Client) post(endpoint string, request any) (*serviceResponse, error) {
	url := c.baseURL + endpoint

	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	c.log.Debug().Str("endpoint", endpoint).Msg("Calling MetaLearn service")

	httpReq, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, c.wrap(fmt.Errorf("failed to send request: %w", err))
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, c.wrap(fmt.Errorf("failed to read response: %w", err))
	}

	var resp serviceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, c.wrap(fmt.Errorf("failed to parse response: %w", err))
	}

	if !resp.Success {
		errorMsg := "unknown error"
		if resp.Error != nil {
			errorMsg = *resp.Error
		}
		return nil, c.wrap(fmt.Errorf("%s", errorMsg))
	}

	return &resp, nil
}

// wrap tags a failure as the collaborator's so handlers can map it to 502
func (c *Client) wrap(err error) error {
	return &selection.CollaboratorError{Service: "metalearn", Err: err}
}

// parseData converts response data to the target type
func (c *Client) parseData(data any, target any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonData, target)
}
