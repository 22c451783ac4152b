package greenapi

import "encoding/json"

// NDVIStats holds the NDVI summary statistics the backend derives from
// Sentinel-2 imagery. Std and the percentiles are optional depending on
// the endpoint.
type NDVIStats struct {
	Mean      float64  `json:"ndvi_mean"`
	Min       float64  `json:"ndvi_min"`
	Max       float64  `json:"ndvi_max"`
	Std       *float64 `json:"ndvi_std,omitempty"`
	P25       *float64 `json:"ndvi_p25,omitempty"`
	P50       *float64 `json:"ndvi_p50,omitempty"`
	P75       *float64 `json:"ndvi_p75,omitempty"`
	DateRange string   `json:"date_range"`
	TileURL   string   `json:"ndvi_tile_url,omitempty"`
}

// District represents one administrative district. Geometry is GeoJSON
// passed through to the map untouched; it may be absent for fallback
// districts.
type District struct {
	Name     string          `json:"name"`
	Geometry json.RawMessage `json:"geometry,omitempty"`
}

// DistrictAnalysis is the combined NDVI + classification result for one
// district. Confidence keys vary by backend version (Indonesian labels,
// English labels, or positional indexes as strings).
type DistrictAnalysis struct {
	DistrictName    string             `json:"district_name"`
	NDVI            NDVIStats          `json:"ndvi_data"`
	PredictionLabel string             `json:"prediction_label"`
	PredictionClass int                `json:"prediction_class"`
	Confidence      map[string]float64 `json:"confidence"`
}

// PredictionDistribution counts district classifications across the city
type PredictionDistribution struct {
	VegetasiRendah int `json:"vegetasi_rendah"`
	VegetasiSedang int `json:"vegetasi_sedang"`
	VegetasiTinggi int `json:"vegetasi_tinggi"`
	TotalDistricts int `json:"total_districts"`
}

// DistrictSummary is one row of the per-district breakdown in a city
// analysis
type DistrictSummary struct {
	DistrictName    string  `json:"district_name"`
	NDVIMean        float64 `json:"ndvi_mean"`
	PredictionClass int     `json:"prediction_class"`
}

// CityAnalysis is the aggregate result for the whole city
type CityAnalysis struct {
	CityNDVI               NDVIStats              `json:"city_ndvi_data"`
	PredictionDistribution PredictionDistribution `json:"prediction_distribution"`
	CityClassification     string                 `json:"city_classification"`
	DistrictAnalysis       []DistrictSummary      `json:"district_analysis"`
}

// Prediction is a point classification result
type Prediction struct {
	PredictionLabel string             `json:"prediction_label"`
	PredictionClass int                `json:"prediction_class"`
	Confidence      map[string]float64 `json:"confidence"`
	InputData       NDVIStats          `json:"input_data"`
}

// ForecastStatistics summarizes a forecast horizon
type ForecastStatistics struct {
	AvgPrediction float64 `json:"avg_prediction"`
	MinPrediction float64 `json:"min_prediction"`
	MaxPrediction float64 `json:"max_prediction"`
	Trend         string  `json:"trend"`
}

// Forecast is the time-series forecast result. PlotJSON is an opaque
// chart specification rendered by the frontend as-is.
type Forecast struct {
	Statistics ForecastStatistics `json:"statistics"`
	PlotJSON   string             `json:"plot_json"`
	// ChartHTML carries a locally rendered chart when no backend plot is
	// available (demo mode)
	ChartHTML string `json:"chart_html,omitempty"`
}

// CityLayer is the city-wide raster overlay descriptor
type CityLayer struct {
	TileURL    string          `json:"tile_url"`
	CityBounds json.RawMessage `json:"city_bounds,omitempty"`
}

// CriticalArea is one district flagged inside the requested NDVI band.
// RiskScore is canonically on a 0-100 scale; see NormalizeRiskScore.
type CriticalArea struct {
	DistrictName string     `json:"district_name"`
	Coordinates  [2]float64 `json:"coordinates"` // [lat, lng]
	AvgNDVI      float64    `json:"avg_ndvi"`
	RiskScore    float64    `json:"risk_score"`
	Severity     string     `json:"severity,omitempty"`
}

// CriticalAreaStatistics summarizes a detection run
type CriticalAreaStatistics struct {
	TotalDistrictsAnalyzed int     `json:"total_districts_analyzed"`
	CriticalAreasFound     int     `json:"critical_areas_found"`
	PercentageCritical     float64 `json:"percentage_critical"`
	AvgNDVICritical        float64 `json:"avg_ndvi_critical"`
}

// Recommendations holds remediation guidance produced by the backend
type Recommendations struct {
	General  []string `json:"general"`
	Specific []string `json:"specific"`
}

// CriticalAreasResult is the full detection response payload
type CriticalAreasResult struct {
	Statistics      CriticalAreaStatistics `json:"statistics"`
	CriticalAreas   []CriticalArea         `json:"critical_areas"`
	Recommendations Recommendations        `json:"recommendations"`
}

// NormalizeRiskScore maps a risk score onto the canonical 0-100 scale.
// Older backend revisions reported fractions in [0,1]; the current one
// reports 0-100 directly.
func NormalizeRiskScore(score float64) float64 {
	if score <= 1.0 {
		return score * 100
	}
	if score > 100 {
		return 100
	}
	return score
}
