package presenter

import (
	"fmt"

	"greenurban-desktop/internal/greenapi"
)

// Severity labels for critical areas
const (
	SeverityVeryCritical        = "SANGAT KRITIS"
	SeverityCritical            = "KRITIS"
	SeverityPotentiallyCritical = "BERPOTENSI KRITIS"
	SeverityNormal              = "NORMAL"
)

// NoCriticalAreasMessage is shown when detection finds nothing in range
const NoCriticalAreasMessage = "Tidak ada area kritis yang terdeteksi dalam rentang yang ditentukan."

// Severity derives the severity label from average NDVI and a 0-100 risk
// score. Used when the backend omits the severity field.
func Severity(avgNDVI, riskScore float64) string {
	switch {
	case avgNDVI <= 0.2 && riskScore >= 70:
		return SeverityVeryCritical
	case avgNDVI <= 0.25 && riskScore >= 50:
		return SeverityCritical
	case avgNDVI <= 0.3 && riskScore >= 30:
		return SeverityPotentiallyCritical
	default:
		return SeverityNormal
	}
}

// SeverityColor maps a severity label to its marker color
func SeverityColor(severity string) string {
	switch severity {
	case SeverityVeryCritical:
		return "#c0392b"
	case SeverityCritical:
		return ColorLowVegetation
	case SeverityPotentiallyCritical:
		return ColorMediumVegetation
	default:
		return ColorUnknown
	}
}

// RiskBadge maps a 0-100 risk score to its Indonesian badge text
func RiskBadge(riskScore float64) string {
	switch {
	case riskScore >= 80:
		return "RISIKO TINGGI"
	case riskScore >= 60:
		return "RISIKO SEDANG"
	case riskScore >= 40:
		return "RISIKO RENDAH"
	default:
		return "MONITORING"
	}
}

// CriticalCard is one entry of the critical-area list
type CriticalCard struct {
	DistrictName string  `json:"district_name"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	AvgNDVI      string  `json:"avg_ndvi"`
	RiskScore    string  `json:"risk_score"`
	RiskBadge    string  `json:"risk_badge"`
	Severity     string  `json:"severity"`
	Color        string  `json:"color"`
}

// CriticalStats is the detection summary header
type CriticalStats struct {
	TotalAnalyzed      int    `json:"total_analyzed"`
	CriticalFound      int    `json:"critical_found"`
	PercentageCritical string `json:"percentage_critical"`
	AvgNDVICritical    string `json:"avg_ndvi_critical"`
}

// CriticalPanel is the full critical-area detection view
type CriticalPanel struct {
	Stats                   CriticalStats  `json:"stats"`
	Areas                   []CriticalCard `json:"areas"`
	EmptyMessage            string         `json:"empty_message,omitempty"`
	GeneralRecommendations  []string       `json:"general_recommendations"`
	SpecificRecommendations []string       `json:"specific_recommendations"`
}

// RenderCriticalPanel builds the detection view. Risk scores are
// normalized onto the 0-100 scale and severity is derived when the
// backend left it out. The list is fully replaced on each call.
func RenderCriticalPanel(result greenapi.CriticalAreasResult) CriticalPanel {
	panel := CriticalPanel{
		Stats: CriticalStats{
			TotalAnalyzed:      result.Statistics.TotalDistrictsAnalyzed,
			CriticalFound:      result.Statistics.CriticalAreasFound,
			PercentageCritical: fmt.Sprintf("%.1f%%", result.Statistics.PercentageCritical),
			AvgNDVICritical:    FormatNDVI(result.Statistics.AvgNDVICritical),
		},
		GeneralRecommendations:  result.Recommendations.General,
		SpecificRecommendations: result.Recommendations.Specific,
	}

	if len(result.CriticalAreas) == 0 {
		panel.EmptyMessage = NoCriticalAreasMessage
		panel.Areas = []CriticalCard{}
		return panel
	}

	for _, area := range result.CriticalAreas {
		risk := greenapi.NormalizeRiskScore(area.RiskScore)
		severity := area.Severity
		if severity == "" {
			severity = Severity(area.AvgNDVI, risk)
		}
		panel.Areas = append(panel.Areas, CriticalCard{
			DistrictName: area.DistrictName,
			Lat:          area.Coordinates[0],
			Lng:          area.Coordinates[1],
			AvgNDVI:      FormatNDVI(area.AvgNDVI),
			RiskScore:    fmt.Sprintf("%.0f%%", risk),
			RiskBadge:    RiskBadge(risk),
			Severity:     severity,
			Color:        SeverityColor(severity),
		})
	}
	return panel
}

// CriticalPopup builds the marker popup text for one flagged district
func CriticalPopup(card CriticalCard) string {
	return fmt.Sprintf("%s\nNDVI: %s\nSkor Risiko: %s\nStatus: %s",
		card.DistrictName, card.AvgNDVI, card.RiskScore, card.Severity)
}
