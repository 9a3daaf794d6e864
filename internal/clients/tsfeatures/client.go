package tsfeatures

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/detection-selector/internal/domain"
	"github.com/aristath/detection-selector/internal/metadata"
	"github.com/aristath/detection-selector/internal/modules/selection"
)

// Client is an HTTP client for the TsFeatures microservice. It implements
// selection.FeatureExtractor.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new TsFeatures client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		log: log.With().Str("client", "tsfeatures").Logger(),
	}
}

// featuresRequest mirrors the Python microservice's series payload
type featuresRequest struct {
	Times  []string  `json:"times"`
	Values []float64 `json:"values"`
}

// Extract computes time-series features for a single series. NaN feature
// values arrive as the string "NaN" (JSON has no NaN) and are coerced back
// to float64 here.
func (c *Client) Extract(series domain.Series) (map[string]float64, error) {
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("invalid series: %w", err)
	}

	times := make([]string, len(series.Times))
	for i, t := range series.Times {
		times[i] = t.Format(time.RFC3339)
	}

	resp, err := c.post("/features", featuresRequest{
		Times:  times,
		Values: series.Values,
	})
	if err != nil {
		return nil, err
	}

	raw, ok := resp.Data["features"].(map[string]any)
	if !ok {
		return nil, c.wrap(fmt.Errorf("response missing features field"))
	}

	features, err := metadata.ToFloat64Map(raw)
	if err != nil {
		return nil, c.wrap(fmt.Errorf("failed to coerce features: %w", err))
	}
	return features, nil
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

	c.log.Debug().Str("endpoint", endpoint).Msg("Calling TsFeatures service")

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
	return &selection.CollaboratorError{Service: "tsfeatures", Err: err}
}
