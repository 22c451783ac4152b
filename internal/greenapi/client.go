package greenapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// User agent sent on every backend request
	UserAgent = "GreenUrban-Desktop/1.0"

	// DefaultTimeout bounds a single backend call; satellite aggregation
	// on the backend can take a while
	DefaultTimeout = 120 * time.Second
)

// Client handles communication with the vegetation analytics backend
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a backend client with system proxy support
func NewClient(baseURL string) *Client {
	// Use http.ProxyFromEnvironment to respect system proxy settings
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: transport,
		},
	}
}

// SetBaseURL repoints the client, e.g. after a settings change
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

// do issues one request and decodes the JSON body into out. Non-2xx
// statuses are reported with the server-supplied error message when the
// body carries one.
func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		// The backend sends {"success": false, "error": "..."} on errors
		var envelope struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &envelope) == nil && envelope.Error != "" {
			return fmt.Errorf("backend returned %d: %s", resp.StatusCode, envelope.Error)
		}
		return fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// failure converts a success:false envelope into an error
func failure(msg, fallback string) error {
	if msg != "" {
		return fmt.Errorf("%s", msg)
	}
	return fmt.Errorf("%s", fallback)
}

// GetDistricts fetches the district list with geometry
func (c *Client) GetDistricts(ctx context.Context) ([]District, error) {
	var resp struct {
		Success   bool       `json:"success"`
		Error     string     `json:"error"`
		Districts []District `json:"districts"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/get_semarang_districts", nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, failure(resp.Error, "district list unavailable")
	}
	if resp.Districts == nil {
		return nil, fmt.Errorf("malformed response: missing districts field")
	}
	return resp.Districts, nil
}

// AnalyzeDistrict runs the combined NDVI + classification analysis for a
// district
func (c *Client) AnalyzeDistrict(ctx context.Context, districtName string) (*DistrictAnalysis, error) {
	req := map[string]string{"district_name": districtName}
	var resp struct {
		Success bool              `json:"success"`
		Error   string            `json:"error"`
		Result  *DistrictAnalysis `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/analyze_district", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, failure(resp.Error, "district analysis failed")
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("malformed response: missing result field")
	}
	return resp.Result, nil
}

// AnalyzeCity runs the aggregate city analysis with per-district breakdown
func (c *Client) AnalyzeCity(ctx context.Context, cityName string) (*CityAnalysis, error) {
	req := map[string]string{"city_name": cityName}
	var resp struct {
		Success bool          `json:"success"`
		Error   string        `json:"error"`
		Result  *CityAnalysis `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/analyze_city", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, failure(resp.Error, "city analysis failed")
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("malformed response: missing result field")
	}
	return resp.Result, nil
}

// GetNDVI fetches NDVI statistics for a single coordinate
func (c *Client) GetNDVI(ctx context.Context, lat, lng float64) (*NDVIStats, error) {
	req := map[string]float64{"latitude": lat, "longitude": lng}
	var resp struct {
		Success bool       `json:"success"`
		Error   string     `json:"error"`
		Data    *NDVIStats `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/get_ndvi", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, failure(resp.Error, "NDVI retrieval failed")
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("malformed response: missing data field")
	}
	return resp.Data, nil
}

// Predict classifies vegetation from NDVI statistics at a coordinate
func (c *Client) Predict(ctx context.Context, stats NDVIStats, lat, lng float64) (*Prediction, error) {
	req := map[string]float64{
		"ndvi_mean": stats.Mean,
		"ndvi_min":  stats.Min,
		"ndvi_max":  stats.Max,
		"latitude":  lat,
		"longitude": lng,
	}
	var resp struct {
		Success bool        `json:"success"`
		Error   string      `json:"error"`
		Result  *Prediction `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/predict", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, failure(resp.Error, "classification failed")
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("malformed response: missing result field")
	}
	return resp.Result, nil
}

// PredictNDVI requests a time-series forecast for a district
func (c *Client) PredictNDVI(ctx context.Context, districtName string, days int) (*Forecast, error) {
	req := map[string]interface{}{
		"district_name":   districtName,
		"prediction_days": days,
	}
	var resp struct {
		Success bool      `json:"success"`
		Error   string    `json:"error"`
		Result  *Forecast `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/predict_ndvi", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, failure(resp.Error, "forecast failed")
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("malformed response: missing result field")
	}
	return resp.Result, nil
}

// GetNDVILayer fetches the raster overlay tile URL for a district
func (c *Client) GetNDVILayer(ctx context.Context, districtName string) (string, error) {
	req := map[string]string{"district_name": districtName}
	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
		TileURL string `json:"tile_url"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/get_ndvi_layer", req, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", failure(resp.Error, "NDVI layer unavailable")
	}
	if resp.TileURL == "" {
		return "", fmt.Errorf("malformed response: missing tile_url field")
	}
	return resp.TileURL, nil
}

// GetCityNDVILayer fetches the city-wide raster overlay descriptor
func (c *Client) GetCityNDVILayer(ctx context.Context, cityName string) (*CityLayer, error) {
	req := map[string]string{"city_name": cityName}
	var resp struct {
		Success bool       `json:"success"`
		Error   string     `json:"error"`
		Result  *CityLayer `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/get_city_ndvi_layer", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, failure(resp.Error, "city NDVI layer unavailable")
	}
	if resp.Result == nil || resp.Result.TileURL == "" {
		return nil, fmt.Errorf("malformed response: missing tile_url field")
	}
	return resp.Result, nil
}

// DetectCriticalAreas finds districts whose NDVI falls inside the band
func (c *Client) DetectCriticalAreas(ctx context.Context, thresholdMin, thresholdMax float64) (*CriticalAreasResult, error) {
	req := map[string]float64{
		"threshold_min": thresholdMin,
		"threshold_max": thresholdMax,
	}
	// Detection responses carry statistics and recommendations at the top
	// level rather than under a result key
	var resp struct {
		Success         bool                   `json:"success"`
		Error           string                 `json:"error"`
		Statistics      CriticalAreaStatistics `json:"statistics"`
		CriticalAreas   *[]CriticalArea        `json:"critical_areas"`
		Recommendations Recommendations        `json:"recommendations"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/detect_critical_areas", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, failure(resp.Error, "critical area detection failed")
	}
	if resp.CriticalAreas == nil {
		return nil, fmt.Errorf("malformed response: missing critical_areas field")
	}
	return &CriticalAreasResult{
		Statistics:      resp.Statistics,
		CriticalAreas:   *resp.CriticalAreas,
		Recommendations: resp.Recommendations,
	}, nil
}
