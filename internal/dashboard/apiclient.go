package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/capital-weather-dashboard/internal/models"
	"github.com/kjstillabower/capital-weather-dashboard/internal/observability"
)

// APIError is a non-2xx answer from the dashboard's JSON endpoints.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: HTTP %d: %s", e.StatusCode, e.Message)
}

// APIClient is a Backend that goes through /api/countries and /api/weather on
// another instance, the way a browser would.
type APIClient struct {
	baseURL string
	client  *http.Client
}

// NewAPIClient returns a client for the endpoints under baseURL (no trailing slash).
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *APIClient) Countries(ctx context.Context) ([]models.Country, error) {
	var out []models.Country
	if err := c.getJSON(ctx, "/api/countries", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *APIClient) Snapshot(ctx context.Context, capital string) (models.WeatherSnapshot, error) {
	var out models.WeatherSnapshot
	err := c.getJSON(ctx, "/api/weather", url.Values{"capital": {capital}}, &out)
	return out, err
}

func (c *APIClient) Widget(ctx context.Context, capital string, w models.Widget) (models.SnapshotPatch, error) {
	var out models.SnapshotPatch
	err := c.getJSON(ctx, "/api/weather", url.Values{"capital": {capital}, "widget": {string(w)}}, &out)
	return out, err
}

func (c *APIClient) getJSON(ctx context.Context, path string, params url.Values, v interface{}) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("api: read %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &envelope)
		observability.LoggerFrom(ctx).Debug("api error response",
			zap.String("path", path), zap.Int("status", resp.StatusCode), zap.String("error", envelope.Error))
		return &APIError{StatusCode: resp.StatusCode, Message: envelope.Error}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("api: decode %s: %w", path, err)
	}
	return nil
}
