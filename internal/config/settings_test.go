package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettingsAreValid(t *testing.T) {
	require.NoError(t, ValidateSettings(DefaultSettings()))
}

func TestCityBoundsContains(t *testing.T) {
	b := DefaultSettings().CityBounds

	assert.True(t, b.Contains(-7.0051, 110.4381)) // city center
	assert.True(t, b.Contains(-7.3, 110.0))       // inclusive corner
	assert.False(t, b.Contains(-6.2, 106.8))      // Jakarta
	assert.False(t, b.Contains(-7.0051, 111.5))
}

func TestValidateSettingsRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*UserSettings)
	}{
		{"empty backend URL", func(s *UserSettings) { s.BackendURL = "" }},
		{"empty report path", func(s *UserSettings) { s.ReportPath = "" }},
		{"zero cache size", func(s *UserSettings) { s.CacheMaxSizeMB = 0 }},
		{"zero forecast days", func(s *UserSettings) { s.ForecastDays = 0 }},
		{"inverted bounds", func(s *UserSettings) { s.CityBounds.LatMin = s.CityBounds.LatMax + 1 }},
		{"inverted thresholds", func(s *UserSettings) { s.ThresholdMin = 0.5; s.ThresholdMax = 0.2 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := DefaultSettings()
			tc.mutate(s)
			assert.Error(t, ValidateSettings(s))
		})
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	s := DefaultSettings()
	s.BackendURL = "http://example.com:9999"
	s.ForecastDays = 60
	s.DemoMode = true
	require.NoError(t, SaveSettings(s))

	loaded, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "http://example.com:9999", loaded.BackendURL)
	assert.Equal(t, 60, loaded.ForecastDays)
	assert.True(t, loaded.DemoMode)
}

func TestLoadReturnsDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	loaded, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings().BackendURL, loaded.BackendURL)
}

func TestLoadMergesMissingFields(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := GetSettingsPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(`{"backendUrl":"http://other:8000"}`), 0644))

	loaded, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "http://other:8000", loaded.BackendURL)

	defaults := DefaultSettings()
	assert.Equal(t, defaults.CityName, loaded.CityName)
	assert.Equal(t, defaults.CityBounds, loaded.CityBounds)
	assert.Equal(t, defaults.ForecastDays, loaded.ForecastDays)
	assert.Equal(t, defaults.CacheMaxSizeMB, loaded.CacheMaxSizeMB)
}
