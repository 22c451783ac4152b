// Package demo generates deterministic sample data for running the
// dashboard without a backend. Values are seeded from the district name
// so repeated requests render identically.
package demo

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"

	"greenurban-desktop/internal/greenapi"
)

// DateRange reported on all demo statistics
const DateRange = "2024-01-01 to 2024-12-31"

var classLabels = []string{"Vegetasi Rendah", "Vegetasi Sedang", "Vegetasi Tinggi"}

// Generator produces sample analysis results
type Generator struct {
	mu            sync.RWMutex
	districtNames []string
}

// NewGenerator creates a generator over the given district names
func NewGenerator(districtNames []string) *Generator {
	return &Generator{districtNames: districtNames}
}

// SetDistricts replaces the district list, used when the registry swaps
// its fallback names for the backend's list
func (g *Generator) SetDistricts(names []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.districtNames = append([]string(nil), names...)
}

func (g *Generator) names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.districtNames
}

func seededRand(key string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(key))
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

func sampleStats(r *rand.Rand) greenapi.NDVIStats {
	std := 0.15 + r.Float64()*0.1
	return greenapi.NDVIStats{
		Mean:      0.45 + r.Float64()*0.3,
		Min:       0.1 + r.Float64()*0.2,
		Max:       0.7 + r.Float64()*0.3,
		Std:       &std,
		DateRange: DateRange,
	}
}

func classify(mean float64) (label string, class int) {
	switch {
	case mean >= 0.6:
		return classLabels[2], 2
	case mean >= 0.3:
		return classLabels[1], 1
	default:
		return classLabels[0], 0
	}
}

func confidenceFor(r *rand.Rand, class int) map[string]float64 {
	// The dominant class gets the bulk of the mass, the rest is split
	// between the other two
	dominant := 0.6 + r.Float64()*0.3
	rest := 1 - dominant
	split := r.Float64()
	conf := make(map[string]float64, 3)
	first := true
	for i, label := range classLabels {
		switch {
		case i == class:
			conf[label] = dominant
		case first:
			conf[label] = rest * split
			first = false
		default:
			conf[label] = rest * (1 - split)
		}
	}
	return conf
}

// DistrictAnalysis produces a deterministic sample analysis for a district
func (g *Generator) DistrictAnalysis(name string) *greenapi.DistrictAnalysis {
	r := seededRand("district:" + name)
	stats := sampleStats(r)
	label, class := classify(stats.Mean)
	return &greenapi.DistrictAnalysis{
		DistrictName:    name,
		NDVI:            stats,
		PredictionLabel: label,
		PredictionClass: class,
		Confidence:      confidenceFor(r, class),
	}
}

// PointNDVI produces sample statistics for a coordinate
func (g *Generator) PointNDVI(lat, lng float64) *greenapi.NDVIStats {
	r := seededRand(fmt.Sprintf("point:%.4f:%.4f", lat, lng))
	stats := sampleStats(r)
	return &stats
}

// PointPrediction classifies sample statistics for a coordinate
func (g *Generator) PointPrediction(stats greenapi.NDVIStats, lat, lng float64) *greenapi.Prediction {
	r := seededRand(fmt.Sprintf("predict:%.4f:%.4f", lat, lng))
	label, class := classify(stats.Mean)
	return &greenapi.Prediction{
		PredictionLabel: label,
		PredictionClass: class,
		Confidence:      confidenceFor(r, class),
		InputData:       stats,
	}
}

// ForecastValues generates the forecast series for a district
func (g *Generator) ForecastValues(name string, days int) []float64 {
	if days <= 0 {
		days = 30
	}
	r := seededRand("forecast:" + name)
	base := 0.3 + r.Float64()*0.4
	drift := (r.Float64() - 0.5) * 0.004
	values := make([]float64, days)
	v := base
	for i := range values {
		v += drift + (r.Float64()-0.5)*0.01
		if v < 0.05 {
			v = 0.05
		}
		if v > 0.95 {
			v = 0.95
		}
		values[i] = v
	}
	return values
}

// Forecast produces a sample forecast with trend statistics and an
// embedded chart
func (g *Generator) Forecast(name string, days int) (*greenapi.Forecast, error) {
	values := g.ForecastValues(name, days)

	min, max, sum := values[0], values[0], 0.0
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	avg := sum / float64(len(values))

	trend := "stabil"
	half := len(values) / 2
	if half > 0 {
		firstAvg, secondAvg := 0.0, 0.0
		for _, v := range values[:half] {
			firstAvg += v
		}
		for _, v := range values[half:] {
			secondAvg += v
		}
		firstAvg /= float64(half)
		secondAvg /= float64(len(values) - half)
		if secondAvg > firstAvg+0.05 {
			trend = "meningkat"
		} else if secondAvg < firstAvg-0.05 {
			trend = "menurun"
		}
	}

	chart, err := RenderForecastChart(name, values)
	if err != nil {
		return nil, fmt.Errorf("failed to render demo chart: %w", err)
	}

	return &greenapi.Forecast{
		Statistics: greenapi.ForecastStatistics{
			AvgPrediction: avg,
			MinPrediction: min,
			MaxPrediction: max,
			Trend:         trend,
		},
		ChartHTML: chart,
	}, nil
}

// CityAnalysis aggregates sample results across all districts
func (g *Generator) CityAnalysis() *greenapi.CityAnalysis {
	districtNames := g.names()

	var dist greenapi.PredictionDistribution
	rows := make([]greenapi.DistrictSummary, 0, len(districtNames))
	sum, min, max := 0.0, 1.0, 0.0

	for _, name := range districtNames {
		a := g.DistrictAnalysis(name)
		rows = append(rows, greenapi.DistrictSummary{
			DistrictName:    name,
			NDVIMean:        a.NDVI.Mean,
			PredictionClass: a.PredictionClass,
		})
		switch a.PredictionClass {
		case 0:
			dist.VegetasiRendah++
		case 1:
			dist.VegetasiSedang++
		default:
			dist.VegetasiTinggi++
		}
		sum += a.NDVI.Mean
		if a.NDVI.Mean < min {
			min = a.NDVI.Mean
		}
		if a.NDVI.Mean > max {
			max = a.NDVI.Mean
		}
	}
	dist.TotalDistricts = len(districtNames)

	mean := 0.0
	if len(districtNames) > 0 {
		mean = sum / float64(len(districtNames))
	}
	label, _ := classify(mean)

	return &greenapi.CityAnalysis{
		CityNDVI: greenapi.NDVIStats{
			Mean: mean, Min: min, Max: max, DateRange: DateRange,
		},
		PredictionDistribution: dist,
		CityClassification:     label,
		DistrictAnalysis:       rows,
	}
}

// CriticalAreas flags sample districts whose NDVI falls inside the band
func (g *Generator) CriticalAreas(thresholdMin, thresholdMax float64) *greenapi.CriticalAreasResult {
	districtNames := g.names()
	areas := make([]greenapi.CriticalArea, 0)
	sum := 0.0

	for i, name := range districtNames {
		// Demo NDVI skews green, so rescale into the critical band for a
		// predictable subset of districts
		r := seededRand("critical:" + name)
		avg := 0.15 + r.Float64()*0.3
		if avg < thresholdMin || avg > thresholdMax {
			continue
		}
		risk := (thresholdMax - avg) / (thresholdMax - thresholdMin) * 100
		lat := -7.1 + 0.02*float64(i)
		lng := 110.3 + 0.02*float64(i)
		areas = append(areas, greenapi.CriticalArea{
			DistrictName: name,
			Coordinates:  [2]float64{lat, lng},
			AvgNDVI:      avg,
			RiskScore:    risk,
		})
		sum += avg
	}

	avgCritical := 0.0
	pct := 0.0
	if len(areas) > 0 {
		avgCritical = sum / float64(len(areas))
	}
	if len(districtNames) > 0 {
		pct = float64(len(areas)) / float64(len(districtNames)) * 100
	}

	result := &greenapi.CriticalAreasResult{
		Statistics: greenapi.CriticalAreaStatistics{
			TotalDistrictsAnalyzed: len(districtNames),
			CriticalAreasFound:     len(areas),
			PercentageCritical:     pct,
			AvgNDVICritical:        avgCritical,
		},
		CriticalAreas: areas,
		Recommendations: greenapi.Recommendations{
			General: []string{
				"Tambah ruang terbuka hijau di area padat bangunan.",
				"Pantau perubahan NDVI secara berkala.",
			},
		},
	}
	for _, a := range areas {
		result.Recommendations.Specific = append(result.Recommendations.Specific,
			fmt.Sprintf("Prioritaskan penghijauan di %s.", a.DistrictName))
	}
	return result
}
