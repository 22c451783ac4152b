// Package presenter builds the view models the dashboard frontend renders.
// Everything here is a pure function of already-validated backend results;
// missing optional fields become placeholders, never errors.
package presenter

import (
	"fmt"
	"math"

	"greenurban-desktop/internal/greenapi"
)

// Placeholder shown for values the backend did not supply
const Placeholder = "—"

// Vegetation class colors, also used for map markers
const (
	ColorLowVegetation    = "#e74c3c"
	ColorMediumVegetation = "#f39c12"
	ColorHighVegetation   = "#27ae60"
	ColorUnknown          = "#95a5a6"
)

// Confidence bar band colors
const (
	BandStrongColor = "#22c55e"
	BandMediumColor = "#fbbf24"
	BandWeakColor   = "#ef4444"
)

// ClassColor maps a prediction class index to its display color
func ClassColor(class int) string {
	switch class {
	case 0:
		return ColorLowVegetation
	case 1:
		return ColorMediumVegetation
	case 2:
		return ColorHighVegetation
	default:
		return ColorUnknown
	}
}

// FormatNDVI renders an NDVI value with three decimals, e.g. "0.420"
func FormatNDVI(v float64) string {
	return fmt.Sprintf("%.3f", v)
}

func formatOptional(v *float64) string {
	if v == nil {
		return Placeholder
	}
	return FormatNDVI(*v)
}

// Interpretation returns the Indonesian reading of a mean NDVI value
func Interpretation(mean float64) (text, level string) {
	switch {
	case mean >= 0.6:
		return "Area dengan vegetasi yang sangat baik. Kondisi hijau yang optimal untuk lingkungan urban.", "high"
	case mean >= 0.3:
		return "Area dengan vegetasi sedang. Masih dalam kondisi baik namun dapat ditingkatkan.", "medium"
	default:
		return "Area dengan vegetasi rendah. Perlu peningkatan ruang hijau untuk kondisi lingkungan yang lebih baik.", "low"
	}
}

// NDVIPanel is the statistics card for a point or district
type NDVIPanel struct {
	Mean                string `json:"mean"`
	Min                 string `json:"min"`
	Max                 string `json:"max"`
	Std                 string `json:"std"`
	P25                 string `json:"p25"`
	P50                 string `json:"p50"`
	P75                 string `json:"p75"`
	DateRange           string `json:"date_range"`
	Interpretation      string `json:"interpretation"`
	InterpretationLevel string `json:"interpretation_level"`
}

// RenderNDVIPanel builds the NDVI statistics card
func RenderNDVIPanel(stats greenapi.NDVIStats) NDVIPanel {
	text, level := Interpretation(stats.Mean)
	dateRange := stats.DateRange
	if dateRange == "" {
		dateRange = Placeholder
	}
	return NDVIPanel{
		Mean:                FormatNDVI(stats.Mean),
		Min:                 FormatNDVI(stats.Min),
		Max:                 FormatNDVI(stats.Max),
		Std:                 formatOptional(stats.Std),
		P25:                 formatOptional(stats.P25),
		P50:                 formatOptional(stats.P50),
		P75:                 formatOptional(stats.P75),
		DateRange:           dateRange,
		Interpretation:      text,
		InterpretationLevel: level,
	}
}

// Confidence holds the three class confidences on the canonical keys
type Confidence struct {
	Low    float64 `json:"low"`
	Medium float64 `json:"medium"`
	High   float64 `json:"high"`
}

// AdaptConfidence maps the backend's confidence keys onto the canonical
// {Low, Medium, High} triple. Backend revisions have used Indonesian
// labels, English labels, and stringified class indexes; absent keys
// read as zero.
func AdaptConfidence(raw map[string]float64) Confidence {
	pick := func(keys ...string) float64 {
		for _, k := range keys {
			if v, ok := raw[k]; ok {
				return v
			}
		}
		return 0
	}
	return Confidence{
		Low:    pick("Vegetasi Rendah", "Low", "0"),
		Medium: pick("Vegetasi Sedang", "Medium", "1"),
		High:   pick("Vegetasi Tinggi", "High", "2"),
	}
}

// ConfidenceBar is one rendered percentage bar
type ConfidenceBar struct {
	Label      string `json:"label"`
	Percentage int    `json:"percentage"`
	Color      string `json:"color"`
	Level      string `json:"level"`
}

// BandLevel classifies a percentage by magnitude alone, independent of
// which vegetation class the bar belongs to
func BandLevel(percentage int) (level, color string) {
	switch {
	case percentage >= 70:
		return "strong", BandStrongColor
	case percentage >= 50:
		return "medium", BandMediumColor
	default:
		return "weak", BandWeakColor
	}
}

func makeBar(label string, fraction float64) ConfidenceBar {
	pct := int(math.Round(fraction * 100))
	level, color := BandLevel(pct)
	return ConfidenceBar{Label: label, Percentage: pct, Color: color, Level: level}
}

// ClassificationPanel is the vegetation classification card
type ClassificationPanel struct {
	Label string          `json:"label"`
	Class int             `json:"class"`
	Color string          `json:"color"`
	Bars  []ConfidenceBar `json:"bars"`
}

// RenderClassificationPanel builds the classification card with its three
// confidence bars
func RenderClassificationPanel(label string, class int, confidence map[string]float64) ClassificationPanel {
	if label == "" {
		label = Placeholder
	}
	c := AdaptConfidence(confidence)
	return ClassificationPanel{
		Label: label,
		Class: class,
		Color: ClassColor(class),
		Bars: []ConfidenceBar{
			makeBar("Vegetasi Rendah", c.Low),
			makeBar("Vegetasi Sedang", c.Medium),
			makeBar("Vegetasi Tinggi", c.High),
		},
	}
}

// MaxConfidencePercent returns the dominant confidence as a whole
// percentage, used in marker popups
func MaxConfidencePercent(confidence map[string]float64) int {
	best := 0.0
	for _, v := range confidence {
		if v > best {
			best = v
		}
	}
	return int(math.Round(best * 100))
}

// ForecastPanel is the NDVI forecast card. Available is false when the
// forecast could not be fetched; RetryHint then carries the affordance
// text.
type ForecastPanel struct {
	Available  bool   `json:"available"`
	Avg        string `json:"avg"`
	Min        string `json:"min"`
	Max        string `json:"max"`
	Trend      string `json:"trend"`
	TrendColor string `json:"trend_color"`
	PlotJSON   string `json:"plot_json,omitempty"`
	ChartHTML  string `json:"chart_html,omitempty"`
	RetryHint  string `json:"retry_hint,omitempty"`
}

// TrendColor maps the backend trend label to a display color
func TrendColor(trend string) string {
	switch trend {
	case "meningkat":
		return BandStrongColor
	case "menurun":
		return BandWeakColor
	default:
		return "#64748b"
	}
}

// RenderForecastPanel builds the forecast card from a successful forecast
func RenderForecastPanel(f greenapi.Forecast) ForecastPanel {
	trend := f.Statistics.Trend
	if trend == "" {
		trend = Placeholder
	}
	return ForecastPanel{
		Available:  true,
		Avg:        FormatNDVI(f.Statistics.AvgPrediction),
		Min:        FormatNDVI(f.Statistics.MinPrediction),
		Max:        FormatNDVI(f.Statistics.MaxPrediction),
		Trend:      trend,
		TrendColor: TrendColor(trend),
		PlotJSON:   f.PlotJSON,
		ChartHTML:  f.ChartHTML,
	}
}

// RenderForecastUnavailable builds the degraded forecast card shown when
// both forecast attempts failed
func RenderForecastUnavailable() ForecastPanel {
	return ForecastPanel{
		Available: false,
		Avg:       Placeholder,
		Min:       Placeholder,
		Max:       Placeholder,
		Trend:     Placeholder,
		RetryHint: "Prediksi tidak tersedia. Coba lagi.",
	}
}

// DistrictRow is one line of the per-district summary grid
type DistrictRow struct {
	DistrictName string `json:"district_name"`
	NDVIMean     string `json:"ndvi_mean"`
	Class        int    `json:"class"`
	Color        string `json:"color"`
}

// CityPanel aggregates the city-wide analysis for display. Distribution
// bars reuse the confidence bar rendering with district-count fractions.
type CityPanel struct {
	NDVI             NDVIPanel       `json:"ndvi"`
	Classification   string          `json:"classification"`
	DistributionBars []ConfidenceBar `json:"distribution_bars"`
	Districts        []DistrictRow   `json:"districts"`
}

// RenderCityPanel builds the city aggregate card and the summary grid.
// The grid is rebuilt from scratch on every call so repeated renders
// never accumulate rows.
func RenderCityPanel(city greenapi.CityAnalysis) CityPanel {
	classification := city.CityClassification
	if classification == "" {
		classification = Placeholder
	}

	total := city.PredictionDistribution.TotalDistricts
	fraction := func(n int) float64 {
		if total == 0 {
			return 0
		}
		return float64(n) / float64(total)
	}

	rows := make([]DistrictRow, 0, len(city.DistrictAnalysis))
	for _, d := range city.DistrictAnalysis {
		rows = append(rows, DistrictRow{
			DistrictName: d.DistrictName,
			NDVIMean:     FormatNDVI(d.NDVIMean),
			Class:        d.PredictionClass,
			Color:        ClassColor(d.PredictionClass),
		})
	}

	return CityPanel{
		NDVI:           RenderNDVIPanel(city.CityNDVI),
		Classification: classification,
		DistributionBars: []ConfidenceBar{
			makeBar("Vegetasi Rendah", fraction(city.PredictionDistribution.VegetasiRendah)),
			makeBar("Vegetasi Sedang", fraction(city.PredictionDistribution.VegetasiSedang)),
			makeBar("Vegetasi Tinggi", fraction(city.PredictionDistribution.VegetasiTinggi)),
		},
		Districts: rows,
	}
}

// CoordinatePopup builds the marker popup text for a point analysis
func CoordinatePopup(lat, lng float64, stats greenapi.NDVIStats, pred *greenapi.Prediction) string {
	s := fmt.Sprintf("Koordinat: %.4f, %.4f\nNDVI: %s", lat, lng, FormatNDVI(stats.Mean))
	if pred != nil {
		s += fmt.Sprintf("\nKlasifikasi: %s\nConfidence: %d%%",
			pred.PredictionLabel, MaxConfidencePercent(pred.Confidence))
	}
	return s
}
