package demo

import (
	"context"

	"greenurban-desktop/internal/greenapi"
)

// Backend exposes the generator through the same method set as the live
// analytics client, so the orchestrator can swap between them.
type Backend struct {
	gen *Generator
}

// NewBackend wraps a generator
func NewBackend(gen *Generator) *Backend {
	return &Backend{gen: gen}
}

func (b *Backend) AnalyzeDistrict(_ context.Context, districtName string) (*greenapi.DistrictAnalysis, error) {
	return b.gen.DistrictAnalysis(districtName), nil
}

func (b *Backend) AnalyzeCity(_ context.Context, _ string) (*greenapi.CityAnalysis, error) {
	return b.gen.CityAnalysis(), nil
}

func (b *Backend) GetNDVI(_ context.Context, lat, lng float64) (*greenapi.NDVIStats, error) {
	return b.gen.PointNDVI(lat, lng), nil
}

func (b *Backend) Predict(_ context.Context, stats greenapi.NDVIStats, lat, lng float64) (*greenapi.Prediction, error) {
	return b.gen.PointPrediction(stats, lat, lng), nil
}

func (b *Backend) PredictNDVI(_ context.Context, districtName string, days int) (*greenapi.Forecast, error) {
	return b.gen.Forecast(districtName, days)
}

// GetNDVILayer returns no tile URL; sample sessions run without an
// overlay.
func (b *Backend) GetNDVILayer(_ context.Context, _ string) (string, error) {
	return "", nil
}

func (b *Backend) GetCityNDVILayer(_ context.Context, _ string) (*greenapi.CityLayer, error) {
	return &greenapi.CityLayer{}, nil
}

func (b *Backend) DetectCriticalAreas(_ context.Context, thresholdMin, thresholdMax float64) (*greenapi.CriticalAreasResult, error) {
	return b.gen.CriticalAreas(thresholdMin, thresholdMax), nil
}
