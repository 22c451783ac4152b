package greenapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDistricts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/get_semarang_districts", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"districts": [
				{"name": "Tembalang", "geometry": {"type": "Polygon", "coordinates": []}},
				{"name": "Banyumanik", "geometry": {"type": "Polygon", "coordinates": []}}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	districts, err := client.GetDistricts(context.Background())
	require.NoError(t, err)
	require.Len(t, districts, 2)
	assert.Equal(t, "Tembalang", districts[0].Name)
	assert.NotEmpty(t, districts[0].Geometry)
}

func TestGetDistrictsBackendFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": false, "error": "Earth Engine not initialized"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.GetDistricts(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Earth Engine not initialized")
}

func TestAnalyzeDistrict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/analyze_district", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"result": {
				"district_name": "Tembalang",
				"ndvi_data": {"ndvi_mean": 0.42, "ndvi_min": 0.1, "ndvi_max": 0.8},
				"prediction_label": "Vegetasi Sedang",
				"prediction_class": 1,
				"confidence": {"Low": 0.1, "Medium": 0.75, "High": 0.15}
			}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	analysis, err := client.AnalyzeDistrict(context.Background(), "Tembalang")
	require.NoError(t, err)
	assert.Equal(t, "Tembalang", analysis.DistrictName)
	assert.InDelta(t, 0.42, analysis.NDVI.Mean, 1e-9)
	assert.Equal(t, "Vegetasi Sedang", analysis.PredictionLabel)
	assert.InDelta(t, 0.75, analysis.Confidence["Medium"], 1e-9)
}

func TestAnalyzeDistrictHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success": false, "error": "analysis pipeline crashed"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.AnalyzeDistrict(context.Background(), "Tembalang")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "analysis pipeline crashed")
}

func TestAnalyzeDistrictMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.AnalyzeDistrict(context.Background(), "Tembalang")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed response")
}

func TestGetNDVI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/get_ndvi", r.URL.Path)
		w.Write([]byte(`{
			"success": true,
			"data": {"ndvi_mean": 0.55, "ndvi_min": 0.2, "ndvi_max": 0.9, "date_range": "2025-01-01 to 2025-06-30"}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	stats, err := client.GetNDVI(context.Background(), -7.05, 110.44)
	require.NoError(t, err)
	assert.InDelta(t, 0.55, stats.Mean, 1e-9)
	assert.Equal(t, "2025-01-01 to 2025-06-30", stats.DateRange)
}

func TestPredictNDVI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/predict_ndvi", r.URL.Path)
		w.Write([]byte(`{
			"success": true,
			"result": {
				"statistics": {"avg_prediction": 0.41, "min_prediction": 0.35, "max_prediction": 0.48, "trend": "meningkat"},
				"plot_json": "{\"data\":[]}"
			}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	forecast, err := client.PredictNDVI(context.Background(), "Tembalang", 30)
	require.NoError(t, err)
	assert.Equal(t, "meningkat", forecast.Statistics.Trend)
	assert.NotEmpty(t, forecast.PlotJSON)
}

func TestGetNDVILayer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "tile_url": "https://earthengine.example/tiles/{z}/{x}/{y}"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	url, err := client.GetNDVILayer(context.Background(), "Tembalang")
	require.NoError(t, err)
	assert.Contains(t, url, "{z}/{x}/{y}")
}

func TestDetectCriticalAreas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/detect_critical_areas", r.URL.Path)
		w.Write([]byte(`{
			"success": true,
			"statistics": {
				"total_districts_analyzed": 16,
				"critical_areas_found": 2,
				"percentage_critical": 12.5,
				"avg_ndvi_critical": 0.22
			},
			"critical_areas": [
				{"district_name": "Semarang Tengah", "coordinates": [-6.98, 110.42], "avg_ndvi": 0.19, "risk_score": 85.0},
				{"district_name": "Semarang Utara", "coordinates": [-6.95, 110.42], "avg_ndvi": 0.25, "risk_score": 60.0}
			],
			"recommendations": {
				"general": ["Tambah ruang terbuka hijau"],
				"specific": ["Prioritaskan Semarang Tengah"]
			}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.DetectCriticalAreas(context.Background(), 0.2, 0.3)
	require.NoError(t, err)
	assert.Equal(t, 16, result.Statistics.TotalDistrictsAnalyzed)
	require.Len(t, result.CriticalAreas, 2)
	assert.Equal(t, "Semarang Tengah", result.CriticalAreas[0].DistrictName)
	assert.InDelta(t, -6.98, result.CriticalAreas[0].Coordinates[0], 1e-9)
	assert.Len(t, result.Recommendations.General, 1)
}

func TestDetectCriticalAreasEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"success": true,
			"statistics": {"total_districts_analyzed": 16, "critical_areas_found": 0, "percentage_critical": 0, "avg_ndvi_critical": 0},
			"critical_areas": [],
			"recommendations": {"general": [], "specific": []}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.DetectCriticalAreas(context.Background(), 0.2, 0.3)
	require.NoError(t, err)
	assert.Empty(t, result.CriticalAreas)
	assert.Equal(t, 0, result.Statistics.CriticalAreasFound)
}

func TestNormalizeRiskScore(t *testing.T) {
	assert.InDelta(t, 85.0, NormalizeRiskScore(0.85), 1e-9)
	assert.InDelta(t, 85.0, NormalizeRiskScore(85.0), 1e-9)
	assert.InDelta(t, 100.0, NormalizeRiskScore(120.0), 1e-9)
	assert.InDelta(t, 100.0, NormalizeRiskScore(1.0), 1e-9)
	assert.InDelta(t, 0.0, NormalizeRiskScore(0), 1e-9)
}

func TestContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetDistricts(ctx)
	require.Error(t, err)
}
