// Package report serializes the currently displayed analysis results to a
// file. It never re-fetches or recomputes anything; everything comes from
// the session snapshot the panels were rendered from. PDF is preferred,
// with a silent fallback to plain text when PDF generation fails.
package report

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/go-pdf/fpdf"

	"greenurban-desktop/internal/presenter"
	"greenurban-desktop/internal/session"
)

const reportTitle = "Laporan Analisis Vegetasi Kota Semarang"

// Exporter writes analysis reports into a target directory
type Exporter struct {
	dir string
	now func() time.Time
}

// NewExporter creates an exporter writing into dir
func NewExporter(dir string) *Exporter {
	return &Exporter{dir: dir, now: time.Now}
}

// Filename builds the timestamped report filename
func Filename(t time.Time, ext string) string {
	return fmt.Sprintf("Analisis_Vegetasi_Semarang_%s.%s", t.Format("20060102_1504"), ext)
}

// Export writes the snapshot to disk and returns the written path. A PDF
// is attempted first; if that fails the same content is written as plain
// text and no error is surfaced for the fallback itself.
func (e *Exporter) Export(snap *session.Snapshot) (string, error) {
	if snap == nil {
		return "", fmt.Errorf("no analysis results to export")
	}
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	now := e.now()

	pdfPath := filepath.Join(e.dir, Filename(now, "pdf"))
	if err := e.writePDF(pdfPath, snap, now); err == nil {
		return pdfPath, nil
	} else {
		log.Printf("PDF export failed, falling back to text: %v", err)
	}

	txtPath := filepath.Join(e.dir, Filename(now, "txt"))
	if err := os.WriteFile(txtPath, []byte(renderText(snap, now)), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return txtPath, nil
}

// sections flattens the snapshot into titled text blocks shared by both
// output formats
type section struct {
	title string
	lines []string
}

func buildSections(snap *session.Snapshot) []section {
	var sections []section

	switch snap.Kind {
	case session.KindDistrict:
		sections = append(sections, section{"Jenis Analisis", []string{"Analisis Kecamatan: " + snap.DistrictName}})
	case session.KindCoordinate:
		sections = append(sections, section{"Jenis Analisis", []string{
			fmt.Sprintf("Analisis Koordinat: %.4f, %.4f", snap.Lat, snap.Lng)}})
	case session.KindCity:
		sections = append(sections, section{"Jenis Analisis", []string{"Analisis Kota Semarang"}})
	case session.KindCritical:
		sections = append(sections, section{"Jenis Analisis", []string{"Deteksi Area Kritis"}})
	}
	if snap.Demo {
		sections = append(sections, section{"Catatan", []string{"Laporan dibuat dari data contoh (mode demo)."}})
	}

	if snap.NDVI != nil {
		sections = append(sections, ndviSection("Statistik NDVI", snap.NDVI))
	}
	if snap.Class != nil {
		lines := []string{"Klasifikasi: " + snap.Class.Label}
		for _, bar := range snap.Class.Bars {
			lines = append(lines, fmt.Sprintf("%s: %d%%", bar.Label, bar.Percentage))
		}
		sections = append(sections, section{"Klasifikasi Vegetasi", lines})
	}
	if snap.Forecast != nil {
		lines := []string{}
		if snap.Forecast.Available {
			lines = append(lines,
				"Rata-rata Prediksi: "+snap.Forecast.Avg,
				"Minimum: "+snap.Forecast.Min,
				"Maksimum: "+snap.Forecast.Max,
				"Tren: "+snap.Forecast.Trend)
		} else {
			lines = append(lines, "Prediksi tidak tersedia.")
		}
		sections = append(sections, section{"Prediksi NDVI", lines})
	}
	if snap.City != nil {
		sections = append(sections, ndviSection("NDVI Kota", &snap.City.NDVI))
		lines := []string{"Klasifikasi Kota: " + snap.City.Classification}
		for _, bar := range snap.City.DistributionBars {
			lines = append(lines, fmt.Sprintf("%s: %d%%", bar.Label, bar.Percentage))
		}
		sections = append(sections, section{"Distribusi Kecamatan", lines})

		if len(snap.City.Districts) > 0 {
			rows := make([]string, 0, len(snap.City.Districts))
			for _, row := range snap.City.Districts {
				rows = append(rows, fmt.Sprintf("%s: NDVI %s", row.DistrictName, row.NDVIMean))
			}
			sections = append(sections, section{"Ringkasan per Kecamatan", rows})
		}
	}
	if snap.Critical != nil {
		lines := []string{
			fmt.Sprintf("Kecamatan dianalisis: %d", snap.Critical.Stats.TotalAnalyzed),
			fmt.Sprintf("Area kritis ditemukan: %d", snap.Critical.Stats.CriticalFound),
			"Persentase kritis: " + snap.Critical.Stats.PercentageCritical,
			"NDVI rata-rata area kritis: " + snap.Critical.Stats.AvgNDVICritical,
		}
		sections = append(sections, section{"Ringkasan Area Kritis", lines})

		if snap.Critical.EmptyMessage != "" {
			sections = append(sections, section{"Area Kritis", []string{snap.Critical.EmptyMessage}})
		} else {
			rows := make([]string, 0, len(snap.Critical.Areas))
			for _, area := range snap.Critical.Areas {
				rows = append(rows, fmt.Sprintf("%s: NDVI %s, Risiko %s (%s)",
					area.DistrictName, area.AvgNDVI, area.RiskScore, area.Severity))
			}
			sections = append(sections, section{"Area Kritis", rows})
		}
		if len(snap.Critical.GeneralRecommendations) > 0 {
			sections = append(sections, section{"Rekomendasi Umum", snap.Critical.GeneralRecommendations})
		}
		if len(snap.Critical.SpecificRecommendations) > 0 {
			sections = append(sections, section{"Rekomendasi Spesifik", snap.Critical.SpecificRecommendations})
		}
	}

	return sections
}

func ndviSection(title string, p *presenter.NDVIPanel) section {
	return section{title, []string{
		"NDVI Rata-rata: " + p.Mean,
		"NDVI Minimum: " + p.Min,
		"NDVI Maksimum: " + p.Max,
		"Periode Data: " + p.DateRange,
		"Interpretasi: " + p.Interpretation,
	}}
}

func renderText(snap *session.Snapshot, now time.Time) string {
	var b strings.Builder
	b.WriteString(reportTitle + "\n")
	b.WriteString("Tanggal: " + now.Format("2006-01-02 15:04") + "\n")
	b.WriteString(strings.Repeat("=", len(reportTitle)) + "\n\n")

	for _, sec := range buildSections(snap) {
		b.WriteString(sec.title + "\n")
		b.WriteString(strings.Repeat("-", len(sec.title)) + "\n")
		for _, line := range sec.lines {
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (e *Exporter) writePDF(path string, snap *session.Snapshot, now time.Time) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(reportTitle, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, reportTitle, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Tanggal: "+now.Format("2006-01-02 15:04"), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	for _, sec := range buildSections(snap) {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, tr(sec.title), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for _, line := range sec.lines {
			pdf.MultiCell(0, 5, tr(line), "", "L", false)
		}
		pdf.Ln(3)
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}
