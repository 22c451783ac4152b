package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// CityBounds represents the geographic bounding box coordinate analysis
// is restricted to
type CityBounds struct {
	LatMin float64 `json:"latMin"`
	LatMax float64 `json:"latMax"`
	LngMin float64 `json:"lngMin"`
	LngMax float64 `json:"lngMax"`
}

// Contains reports whether a point falls inside the bounds (inclusive)
func (b CityBounds) Contains(lat, lng float64) bool {
	return lat >= b.LatMin && lat <= b.LatMax && lng >= b.LngMin && lng <= b.LngMax
}

// UserSettings represents persistent user preferences
type UserSettings struct {
	// Analytics backend
	BackendURL string `json:"backendUrl"`

	// City under analysis
	CityName   string     `json:"cityName"`
	CityBounds CityBounds `json:"cityBounds"`

	// Default map settings
	DefaultZoom      int     `json:"defaultZoom"`
	CityZoom         int     `json:"cityZoom"`
	DefaultCenterLat float64 `json:"defaultCenterLat"`
	DefaultCenterLng float64 `json:"defaultCenterLng"`

	// Analysis settings
	ForecastDays      int     `json:"forecastDays"`
	ForecastRetryDays int     `json:"forecastRetryDays"`
	ThresholdMin      float64 `json:"thresholdMin"`
	ThresholdMax      float64 `json:"thresholdMax"`

	// Report settings
	ReportPath string `json:"reportPath"`

	// Overlay tile cache settings
	CacheMaxSizeMB int `json:"cacheMaxSizeMB"`

	// Demo mode serves synthetic analysis data instead of calling the
	// backend; results are labelled as demo in the UI
	DemoMode bool `json:"demoMode"`

	// UI preferences
	Theme            string `json:"theme"` // "light", "dark", "system"
	AutoOpenReports  bool   `json:"autoOpenReports"`
	ShowNdviLegend   bool   `json:"showNdviLegend"`
	ShowBorderLegend bool   `json:"showBorderLegend"`
}

// DefaultSettings returns default user settings
func DefaultSettings() *UserSettings {
	homeDir, _ := os.UserHomeDir()
	reportPath := filepath.Join(homeDir, "Downloads", "vegetation-reports")

	return &UserSettings{
		BackendURL: "http://localhost:8080",
		CityName:   "Semarang",
		CityBounds: CityBounds{
			LatMin: -7.3,
			LatMax: -6.7,
			LngMin: 110.0,
			LngMax: 110.8,
		},
		DefaultZoom:       11,
		CityZoom:          10,
		DefaultCenterLat:  -7.0051, // Semarang Tengah
		DefaultCenterLng:  110.4381,
		ForecastDays:      30,
		ForecastRetryDays: 14,
		ThresholdMin:      0.2,
		ThresholdMax:      0.3,
		ReportPath:        reportPath,
		CacheMaxSizeMB:    250,
		DemoMode:          false,
		Theme:             "system",
		AutoOpenReports:   true,
		ShowNdviLegend:    true,
		ShowBorderLegend:  true,
	}
}

// GetSettingsPath returns the OS-specific settings file path
func GetSettingsPath() string {
	homeDir, _ := os.UserHomeDir()

	// Unified directory structure: ~/.greenurban/dashboard/settings/
	baseDir := filepath.Join(homeDir, ".greenurban", "dashboard", "settings")

	// Ensure directory exists
	os.MkdirAll(baseDir, 0755)

	return filepath.Join(baseDir, "settings.json")
}

// LoadSettings loads user settings from disk
func LoadSettings() (*UserSettings, error) {
	settingsPath := GetSettingsPath()

	// If file doesn't exist, return defaults
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		return DefaultSettings(), nil
	}

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings UserSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	// Merge with defaults for any missing fields
	defaults := DefaultSettings()
	if settings.BackendURL == "" {
		settings.BackendURL = defaults.BackendURL
	}
	if settings.CityName == "" {
		settings.CityName = defaults.CityName
	}
	if settings.CityBounds == (CityBounds{}) {
		settings.CityBounds = defaults.CityBounds
	}
	if settings.DefaultZoom == 0 {
		settings.DefaultZoom = defaults.DefaultZoom
	}
	if settings.CityZoom == 0 {
		settings.CityZoom = defaults.CityZoom
	}
	if settings.DefaultCenterLat == 0 && settings.DefaultCenterLng == 0 {
		settings.DefaultCenterLat = defaults.DefaultCenterLat
		settings.DefaultCenterLng = defaults.DefaultCenterLng
	}
	if settings.ForecastDays == 0 {
		settings.ForecastDays = defaults.ForecastDays
	}
	if settings.ForecastRetryDays == 0 {
		settings.ForecastRetryDays = defaults.ForecastRetryDays
	}
	if settings.ThresholdMin == 0 && settings.ThresholdMax == 0 {
		settings.ThresholdMin = defaults.ThresholdMin
		settings.ThresholdMax = defaults.ThresholdMax
	}
	if settings.ReportPath == "" {
		settings.ReportPath = defaults.ReportPath
	}
	if settings.CacheMaxSizeMB == 0 {
		settings.CacheMaxSizeMB = defaults.CacheMaxSizeMB
	}
	if settings.Theme == "" {
		settings.Theme = defaults.Theme
	}

	return &settings, nil
}

// SaveSettings saves user settings to disk
func SaveSettings(settings *UserSettings) error {
	settingsPath := GetSettingsPath()

	// Ensure directory exists
	dir := filepath.Dir(settingsPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(settingsPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}

// ValidateSettings checks a settings object before it is applied
func ValidateSettings(settings *UserSettings) error {
	if settings.BackendURL == "" {
		return fmt.Errorf("backend URL is required")
	}
	if settings.ReportPath == "" {
		return fmt.Errorf("report path is required")
	}
	if settings.CacheMaxSizeMB <= 0 {
		return fmt.Errorf("cache size must be positive")
	}
	if settings.ForecastDays <= 0 {
		return fmt.Errorf("forecast horizon must be positive")
	}
	b := settings.CityBounds
	if b.LatMin >= b.LatMax || b.LngMin >= b.LngMax {
		return fmt.Errorf("invalid city bounds: min must be below max")
	}
	if settings.ThresholdMin > settings.ThresholdMax {
		return fmt.Errorf("threshold min must not exceed threshold max")
	}
	return nil
}
